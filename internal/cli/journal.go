package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/obscura-fw/obscura/internal/journal"
)

// CycleDump is one boot cycle with its full record, for JSON output.
type CycleDump struct {
	Token       string               `json:"token"`
	Number      uint64               `json:"number"`
	First       bool                 `json:"first"`
	StartedAt   time.Time            `json:"started_at"`
	Transitions []journal.Transition `json:"transitions"`
	Events      []journal.Event      `json:"events"`
}

// NewJournalCommand creates the journal command.
func NewJournalCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal <boot.db>",
		Short: "Dump a boot journal",
		Long: `Dump the boot journal recorded by a previous run: every boot cycle
with its state transitions and events, ordered by the controller's
logical clock.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJournal(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runJournal(opts *RootOptions, dbPath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	// Open would create an empty journal; a dump of a missing file is an
	// error, not an empty result.
	if _, err := os.Stat(dbPath); err != nil {
		_ = formatter.Error("E_NOT_FOUND", fmt.Sprintf("journal %s not found", dbPath), nil)
		return WrapExitError(ExitCommandError, "journal not found", err)
	}

	jrnl, err := journal.Open(dbPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer jrnl.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	dumps, err := collectDumps(ctx, jrnl)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read journal", err)
	}

	if formatter.Format == "json" {
		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		return encoder.Encode(CLIResponse{Status: "ok", Data: dumps})
	}

	for _, dump := range dumps {
		fmt.Fprintf(formatter.Writer, "cycle %s number=%d first=%t started=%s\n",
			dump.Token, dump.Number, dump.First, dump.StartedAt.Format(time.RFC3339))
		printCycleRecord(formatter, dump)
	}
	if len(dumps) == 0 {
		fmt.Fprintln(formatter.Writer, "journal is empty")
	}
	return nil
}

func collectDumps(ctx context.Context, jrnl *journal.Journal) ([]CycleDump, error) {
	cycles, err := jrnl.Cycles(ctx)
	if err != nil {
		return nil, err
	}
	dumps := make([]CycleDump, 0, len(cycles))
	for _, c := range cycles {
		transitions, err := jrnl.Transitions(ctx, c.Token)
		if err != nil {
			return nil, err
		}
		events, err := jrnl.Events(ctx, c.Token)
		if err != nil {
			return nil, err
		}
		dumps = append(dumps, CycleDump{
			Token:       c.Token,
			Number:      c.Number,
			First:       c.First,
			StartedAt:   c.StartedAt,
			Transitions: transitions,
			Events:      events,
		})
	}
	return dumps, nil
}

// printCycleRecord interleaves transitions and events by logical clock.
func printCycleRecord(formatter *OutputFormatter, dump CycleDump) {
	ti, ei := 0, 0
	for ti < len(dump.Transitions) || ei < len(dump.Events) {
		switch {
		case ei >= len(dump.Events) ||
			(ti < len(dump.Transitions) && dump.Transitions[ti].Seq < dump.Events[ei].Seq):
			t := dump.Transitions[ti]
			fmt.Fprintf(formatter.Writer, "  seq=%d %s -> %s\n", t.Seq, t.From, t.To)
			ti++
		default:
			e := dump.Events[ei]
			fmt.Fprintf(formatter.Writer, "  seq=%d event %s detail=%q", e.Seq, e.Kind, e.Detail)
			if e.ScriptHash != "" {
				fmt.Fprintf(formatter.Writer, " hash=%s", e.ScriptHash)
			}
			fmt.Fprintln(formatter.Writer)
			ei++
		}
	}
}
