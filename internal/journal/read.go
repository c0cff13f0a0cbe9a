package journal

import (
	"context"
	"fmt"
	"time"
)

// Cycle is one boot cycle row.
type Cycle struct {
	Token     string
	Number    uint64
	First     bool
	StartedAt time.Time
}

// Transition is one recorded lifecycle state change.
type Transition struct {
	CycleToken string
	Seq        uint64
	From       string
	To         string
	At         time.Time
}

// Event is one recorded boot event.
type Event struct {
	CycleToken string
	Seq        uint64
	Kind       string
	Detail     string
	ScriptHash string
	At         time.Time
}

// Cycles returns all boot cycles ordered by cycle number.
// Returns an empty slice (not nil) when the journal is empty.
func (j *Journal) Cycles(ctx context.Context) ([]Cycle, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT token, number, first, started_at
		FROM cycles
		ORDER BY number ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query cycles: %w", err)
	}
	defer rows.Close()

	cycles := []Cycle{}
	for rows.Next() {
		var c Cycle
		var first int
		var at string
		if err := rows.Scan(&c.Token, &c.Number, &first, &at); err != nil {
			return nil, fmt.Errorf("scan cycle: %w", err)
		}
		c.First = first != 0
		if c.StartedAt, err = time.Parse(time.RFC3339Nano, at); err != nil {
			return nil, fmt.Errorf("parse cycle time: %w", err)
		}
		cycles = append(cycles, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cycles: %w", err)
	}
	return cycles, nil
}

// Transitions returns the state transitions for one cycle in logical
// clock order.
func (j *Journal) Transitions(ctx context.Context, token string) ([]Transition, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT cycle_token, seq, from_state, to_state, at
		FROM transitions
		WHERE cycle_token = ?
		ORDER BY seq ASC, id ASC
	`, token)
	if err != nil {
		return nil, fmt.Errorf("query transitions: %w", err)
	}
	defer rows.Close()

	transitions := []Transition{}
	for rows.Next() {
		var t Transition
		var at string
		if err := rows.Scan(&t.CycleToken, &t.Seq, &t.From, &t.To, &at); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		if t.At, err = time.Parse(time.RFC3339Nano, at); err != nil {
			return nil, fmt.Errorf("parse transition time: %w", err)
		}
		transitions = append(transitions, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transitions: %w", err)
	}
	return transitions, nil
}

// Events returns the boot events for one cycle in logical clock order.
func (j *Journal) Events(ctx context.Context, token string) ([]Event, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT cycle_token, seq, kind, detail, script_hash, at
		FROM events
		WHERE cycle_token = ?
		ORDER BY seq ASC, id ASC
	`, token)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		var e Event
		var at string
		if err := rows.Scan(&e.CycleToken, &e.Seq, &e.Kind, &e.Detail, &e.ScriptHash, &at); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if e.At, err = time.Parse(time.RFC3339Nano, at); err != nil {
			return nil, fmt.Errorf("parse event time: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}
