package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/obscura-fw/obscura/internal/board"
	"github.com/obscura-fw/obscura/internal/memlayout"
)

// ValidationResult holds board validation results.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Board  string            `json:"board,omitempty"`
	Issues []ValidationIssue `json:"issues,omitempty"`
}

// ValidationIssue is one schema or layout problem found in a board file.
type ValidationIssue struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Bank       string `json:"bank,omitempty"`
	Region     string `json:"region,omitempty"`
	Allocation string `json:"allocation,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <board.yaml>",
		Short: "Validate a board definition without booting",
		Long: `Validate a board definition file: schema check against the embedded
board schema, then full partitioning validation (bank bounds, overlaps,
alignment, purpose uniqueness). Nothing is booted.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, boardPath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	if _, err := os.Stat(boardPath); err != nil {
		_ = formatter.Error("E_NOT_FOUND", fmt.Sprintf("board file %s not found", boardPath), nil)
		return WrapExitError(ExitCommandError, "board file not found", err)
	}

	cfg, err := board.Load(boardPath)
	if err != nil {
		var schemaErr *board.SchemaError
		if errors.As(err, &schemaErr) {
			return outputValidationIssues(formatter, "", []ValidationIssue{{
				Code:    "SCHEMA",
				Message: schemaErr.Message,
			}})
		}
		_ = formatter.Error("E_READ", err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to read board file", err)
	}

	formatter.VerboseLog("schema ok: board %s, %d bank(s), %d region(s), %d allocation(s)",
		cfg.Board, len(cfg.Banks), len(cfg.Regions), len(cfg.Allocations))

	banks, regions, allocs := cfg.Partitioning()
	if _, err := memlayout.Validate(banks, regions, allocs); err != nil {
		var layoutErr *memlayout.LayoutError
		if errors.As(err, &layoutErr) {
			return outputValidationIssues(formatter, cfg.Board, []ValidationIssue{{
				Code:       string(layoutErr.Code),
				Message:    layoutErr.Message,
				Bank:       layoutErr.Bank,
				Region:     layoutErr.Region,
				Allocation: layoutErr.Allocation,
			}})
		}
		return outputValidationIssues(formatter, cfg.Board, []ValidationIssue{{
			Code:    "LAYOUT",
			Message: err.Error(),
		}})
	}

	return outputValidateSuccess(formatter, cfg)
}

func outputValidateSuccess(formatter *OutputFormatter, cfg *board.Config) error {
	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true, Board: cfg.Board})
	}
	fmt.Fprintf(formatter.Writer, "✓ board %s layout valid\n", cfg.Board)
	return nil
}

func outputValidationIssues(formatter *OutputFormatter, boardName string, issues []ValidationIssue) error {
	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Board: boardName, Issues: issues},
			Error: &CLIError{
				Code:    issues[0].Code,
				Message: issues[0].Message,
			},
		}
		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d issue(s)", len(issues)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, issue := range issues {
		fmt.Fprintf(formatter.Writer, "  %s: %s\n", issue.Code, issue.Message)
		switch {
		case issue.Allocation != "":
			fmt.Fprintf(formatter.Writer, "    allocation=%s region=%s\n", issue.Allocation, issue.Region)
		case issue.Region != "":
			fmt.Fprintf(formatter.Writer, "    region=%s bank=%s\n", issue.Region, issue.Bank)
		case issue.Bank != "":
			fmt.Fprintf(formatter.Writer, "    bank=%s\n", issue.Bank)
		}
	}

	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d issue(s)", len(issues)))
}
