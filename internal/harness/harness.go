package harness

import (
	"context"
	_ "embed"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/obscura-fw/obscura/internal/board"
	"github.com/obscura-fw/obscura/internal/debuglink"
	"github.com/obscura-fw/obscura/internal/firmware"
	"github.com/obscura-fw/obscura/internal/flashvol"
	"github.com/obscura-fw/obscura/internal/journal"
	"github.com/obscura-fw/obscura/internal/memlayout"
	"github.com/obscura-fw/obscura/internal/testutil"
)

//go:embed testdata/board.yaml
var referenceBoard []byte

// harnessEpoch is the frozen wall clock every scenario runs at.
var harnessEpoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// Result is one scenario run.
type Result struct {
	// Transcript is the rendered boot journal.
	Transcript []byte

	// Cycle is the boot cycle after the run.
	Cycle firmware.BootCycle
}

// Run executes a scenario inside workdir. The scenario's volume, journal,
// and channel are built fresh; the transcript is rendered from the journal
// after the controller finishes.
func Run(scenario *Scenario, workdir string) (*Result, error) {
	cfg, err := loadBoard(scenario)
	if err != nil {
		return nil, err
	}
	banks, regions, allocs := cfg.Partitioning()
	layout, err := memlayout.Validate(banks, regions, allocs)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}

	vol, err := buildVolume(scenario, workdir)
	if err != nil {
		return nil, err
	}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	channel := debuglink.NewState(log)
	for _, turn := range scenario.Turns {
		if turn.Exit {
			channel.PushExit()
		} else {
			channel.PushLine(turn.Line)
		}
	}
	if scenario.RemoteScript != "" {
		channel.OfferScript(scenario.RemoteScript)
	}

	jrnl, err := journal.Open(filepath.Join(workdir, "journal.db"))
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}
	defer jrnl.Close()

	ctrl := firmware.New(cfg, layout, vol, channel, firmware.DefaultRegistry(log),
		firmware.WithLogger(log),
		firmware.WithJournal(jrnl),
		firmware.WithTokenGenerator(testutil.NewCycleTokens("")),
		firmware.WithNow(testutil.NewWallClock(harnessEpoch).Now),
		firmware.WithUID("harness-uid"),
		firmware.WithEntropy(func() int64 { return 1 }),
		firmware.WithSettleBound(50*time.Millisecond),
	)

	if err := ctrl.Run(context.Background(), scenario.Cycles); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}

	transcript, err := renderTranscript(scenario.Name, jrnl)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}
	return &Result{Transcript: transcript, Cycle: ctrl.Cycle()}, nil
}

func loadBoard(scenario *Scenario) (*board.Config, error) {
	if scenario.Board == "" {
		return board.Parse(referenceBoard)
	}
	return board.Load(scenario.Board)
}

// buildVolume materializes the scenario's power-on flash state.
func buildVolume(scenario *Scenario, workdir string) (*flashvol.Volume, error) {
	switch scenario.Volume {
	case VolumeBlank:
		return flashvol.New(filepath.Join(workdir, "blank")), nil

	case VolumeBroken:
		// A regular file where the device directory should be makes both
		// mount and format fail.
		blocker := filepath.Join(workdir, "blocker")
		if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
			return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
		}
		return flashvol.New(filepath.Join(blocker, "flash")), nil

	default:
		vol := flashvol.New(filepath.Join(workdir, "flash"))
		if err := vol.Format(); err != nil {
			return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
		}
		if len(scenario.Scripts) == 0 {
			return vol, nil
		}
		if err := vol.Mount(); err != nil {
			return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
		}
		for name, source := range scenario.Scripts {
			if err := vol.WriteScript(name, source); err != nil {
				return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
			}
		}
		vol.Unmount()
		return vol, nil
	}
}
