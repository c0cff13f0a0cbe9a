package journal

import (
	"context"
	"fmt"
	"time"
)

// Event kinds recorded alongside state transitions.
const (
	EventDegradedInit    = "degraded-init"
	EventScriptFault     = "script-fault"
	EventRemoteScript    = "remote-script"
	EventMountFormatted  = "mount-formatted"
	EventFrozenBootstrap = "frozen-bootstrap"
)

// BeginCycle inserts a boot cycle record.
// Uses ON CONFLICT(token) DO NOTHING for idempotency - a cycle that was
// already begun is silently ignored.
func (j *Journal) BeginCycle(ctx context.Context, token string, number uint64, first bool, at time.Time) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO cycles (token, number, first, started_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(token) DO NOTHING
	`,
		token,
		number,
		boolInt(first),
		at.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("begin cycle: %w", err)
	}
	return nil
}

// RecordTransition appends a lifecycle state transition to the journal.
// seq is the controller's logical clock value for this record; duplicate
// (cycle, seq) writes are silently ignored.
//
// Note: the cycle referenced by token must exist (foreign key constraint).
func (j *Journal) RecordTransition(ctx context.Context, token string, seq uint64, from, to string, at time.Time) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO transitions (cycle_token, seq, from_state, to_state, at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(cycle_token, seq) DO NOTHING
	`,
		token,
		seq,
		from,
		to,
		at.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record transition: %w", err)
	}
	return nil
}

// RecordEvent appends a boot event to the journal. detail is free-form
// context; scriptHash identifies a script source when the event concerns
// one (see ScriptHash), empty otherwise.
func (j *Journal) RecordEvent(ctx context.Context, token string, seq uint64, kind, detail, scriptHash string, at time.Time) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO events (cycle_token, seq, kind, detail, script_hash, at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(cycle_token, seq) DO NOTHING
	`,
		token,
		seq,
		kind,
		detail,
		scriptHash,
		at.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record event: %w", err)
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
