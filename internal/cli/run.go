package cli

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/obscura-fw/obscura/internal/board"
	"github.com/obscura-fw/obscura/internal/debuglink"
	"github.com/obscura-fw/obscura/internal/firmware"
	"github.com/obscura-fw/obscura/internal/flashvol"
	"github.com/obscura-fw/obscura/internal/journal"
	"github.com/obscura-fw/obscura/internal/memlayout"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Flash  string
	DB     string
	Listen string
	Serial string
	Baud   int
	Cycles int
	Budget time.Duration
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <board.yaml>",
		Short: "Boot the board and drive its lifecycle",
		Long: `Boot the board described by the definition file and drive its
boot/soft-reset lifecycle.

The flash volume is mapped onto a host directory, the boot journal onto a
SQLite database, and the debug channel onto a WebSocket listener and/or a
serial port. Without --cycles the lifecycle loops until interrupted, the
way the device does.

Example:
  obscura run board.yaml --flash ./flash --db boot.db --listen :9000
  obscura run board.yaml --flash ./flash --cycles 1 --verbose`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBoard(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Flash, "flash", "./flash", "directory backing the flash volume")
	cmd.Flags().StringVar(&opts.DB, "db", "", "path to the boot journal database (omit to disable journaling)")
	cmd.Flags().StringVar(&opts.Listen, "listen", "", "address for the WebSocket debug channel (e.g. :9000)")
	cmd.Flags().StringVar(&opts.Serial, "serial", "", "serial device for the debug channel (e.g. /dev/ttyACM0)")
	cmd.Flags().IntVar(&opts.Baud, "baud", 115200, "serial baud rate")
	cmd.Flags().IntVar(&opts.Cycles, "cycles", 0, "stop after N boot cycles (0 = run until interrupted)")
	cmd.Flags().DurationVar(&opts.Budget, "script-budget", 0, "wall-time bound per script execution (0 = unbounded)")

	return cmd
}

func runBoard(opts *RunOptions, boardPath string, cmd *cobra.Command) error {
	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(log)

	cfg, layout, err := loadLayout(boardPath)
	if err != nil {
		blinkBeacon(log, firmware.PatternConfigFault)
		return WrapExitError(ExitCommandError, "board configuration rejected", err)
	}
	log.Info("layout validated", "board", cfg.Board, "banks", len(cfg.Banks), "regions", len(cfg.Regions))

	vol := flashvol.New(opts.Flash)

	channel := debuglink.NewState(log)
	if opts.Listen != "" {
		srv := &http.Server{Addr: opts.Listen, Handler: debuglink.NewWSServer(channel, log)}
		go func() {
			log.Info("debug channel listening", "addr", opts.Listen)
			if serveErr := srv.ListenAndServe(); serveErr != nil && serveErr != http.ErrServerClosed {
				log.Error("debug channel listener failed", "error", serveErr)
			}
		}()
		defer srv.Close()
	}
	if opts.Serial != "" {
		port, serialErr := debuglink.OpenSerial(channel, opts.Serial, opts.Baud, log)
		if serialErr != nil {
			return WrapExitError(ExitCommandError, "failed to open serial port", serialErr)
		}
		defer port.Close()
	}

	ctrlOpts := []firmware.Option{firmware.WithLogger(log)}
	if opts.Budget > 0 {
		ctrlOpts = append(ctrlOpts, firmware.WithScriptBudget(opts.Budget))
	}
	if opts.DB != "" {
		jrnl, jErr := journal.Open(opts.DB)
		if jErr != nil {
			return WrapExitError(ExitCommandError, "failed to open boot journal", jErr)
		}
		defer func() {
			if closeErr := jrnl.Close(); closeErr != nil {
				log.Error("error closing boot journal", "error", closeErr)
			}
		}()
		ctrlOpts = append(ctrlOpts, firmware.WithJournal(jrnl))
	}

	ctrl := firmware.New(cfg, layout, vol, channel, firmware.DefaultRegistry(log), ctrlOpts...)

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			log.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	log.Info("lifecycle starting", "flash", opts.Flash, "cycles", opts.Cycles)
	if err := ctrl.Run(ctx, opts.Cycles); err != nil && err != context.Canceled {
		blinkBeacon(log, firmware.PatternUnrecoverable)
		return WrapExitError(ExitFailure, "lifecycle halted", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "stopped after cycle %d\n", ctrl.Cycle().Number)
	return nil
}

// loadLayout reads the board file and validates its partitioning.
func loadLayout(path string) (*board.Config, *memlayout.Layout, error) {
	cfg, err := board.Load(path)
	if err != nil {
		return nil, nil, err
	}
	banks, regions, allocs := cfg.Partitioning()
	layout, err := memlayout.Validate(banks, regions, allocs)
	if err != nil {
		return nil, nil, err
	}
	return cfg, layout, nil
}

// blinkBeacon plays a fault pattern on the host-side indicator for a few
// repetitions before the process exits. The device blinks forever; a host
// binary has to return an exit code instead.
func blinkBeacon(log *slog.Logger, pattern firmware.Pattern) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	firmware.NewBeacon(logIndicator{log}, pattern, log).Run(ctx)
}

// logIndicator maps the status LED onto debug-level log lines.
type logIndicator struct {
	log *slog.Logger
}

func (l logIndicator) Set(on bool) {
	l.log.Debug("status led", "on", on)
}
