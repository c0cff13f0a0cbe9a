package journal

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "boot.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "boot.db")

	j, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer j.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "boot.db")

	for i := 0; i < 3; i++ {
		j, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		j.Close()
	}

	j, err := Open(path)
	if err != nil {
		t.Fatalf("final Open() failed: %v", err)
	}
	defer j.Close()

	for _, table := range []string{"cycles", "transitions", "events"} {
		var count int
		if err := j.db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&count); err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}
}

func TestOpen_AppliesPragmas(t *testing.T) {
	j := openTestJournal(t)

	var mode string
	if err := j.db.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("query journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q, expected \"wal\"", mode)
	}

	var fk int
	if err := j.db.QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil {
		t.Fatalf("query foreign_keys: %v", err)
	}
	if fk != 1 {
		t.Errorf("foreign_keys = %d, expected 1", fk)
	}
}

func TestBeginCycle_Idempotent(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()
	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	if err := j.BeginCycle(ctx, "cyc-1", 0, true, at); err != nil {
		t.Fatalf("BeginCycle() failed: %v", err)
	}
	// Duplicate begin is a no-op.
	if err := j.BeginCycle(ctx, "cyc-1", 0, true, at); err != nil {
		t.Fatalf("duplicate BeginCycle() failed: %v", err)
	}

	cycles, err := j.Cycles(ctx)
	if err != nil {
		t.Fatalf("Cycles() failed: %v", err)
	}
	if len(cycles) != 1 {
		t.Fatalf("got %d cycles, expected 1", len(cycles))
	}
	if cycles[0].Token != "cyc-1" || cycles[0].Number != 0 || !cycles[0].First {
		t.Errorf("unexpected cycle row: %+v", cycles[0])
	}
	if !cycles[0].StartedAt.Equal(at) {
		t.Errorf("StartedAt = %v, expected %v", cycles[0].StartedAt, at)
	}
}

func TestRecordTransition_OrderedBySeq(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()
	at := time.Now()

	if err := j.BeginCycle(ctx, "cyc-1", 0, true, at); err != nil {
		t.Fatalf("BeginCycle() failed: %v", err)
	}

	// Written out of order; read back in logical clock order.
	steps := []struct {
		seq      uint64
		from, to string
	}{
		{3, "fs-ready", "running-bootscripts"},
		{1, "cold-init", "subsystems-up"},
		{2, "subsystems-up", "fs-ready"},
	}
	for _, s := range steps {
		if err := j.RecordTransition(ctx, "cyc-1", s.seq, s.from, s.to, at); err != nil {
			t.Fatalf("RecordTransition(seq=%d) failed: %v", s.seq, err)
		}
	}

	got, err := j.Transitions(ctx, "cyc-1")
	if err != nil {
		t.Fatalf("Transitions() failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d transitions, expected 3", len(got))
	}
	for i, want := range []uint64{1, 2, 3} {
		if got[i].Seq != want {
			t.Errorf("transition %d has seq %d, expected %d", i, got[i].Seq, want)
		}
	}
	if got[0].From != "cold-init" || got[0].To != "subsystems-up" {
		t.Errorf("unexpected first transition: %+v", got[0])
	}
}

func TestRecordTransition_DuplicateSeqIgnored(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()
	at := time.Now()

	if err := j.BeginCycle(ctx, "cyc-1", 0, true, at); err != nil {
		t.Fatalf("BeginCycle() failed: %v", err)
	}
	if err := j.RecordTransition(ctx, "cyc-1", 1, "cold-init", "subsystems-up", at); err != nil {
		t.Fatalf("first write failed: %v", err)
	}
	if err := j.RecordTransition(ctx, "cyc-1", 1, "cold-init", "subsystems-up", at); err != nil {
		t.Fatalf("duplicate write failed: %v", err)
	}

	got, err := j.Transitions(ctx, "cyc-1")
	if err != nil {
		t.Fatalf("Transitions() failed: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("got %d transitions, expected 1", len(got))
	}
}

func TestRecordTransition_UnknownCycleRejected(t *testing.T) {
	j := openTestJournal(t)

	err := j.RecordTransition(context.Background(), "no-such-cycle", 1, "a", "b", time.Now())
	if err == nil {
		t.Fatal("expected foreign key error for unknown cycle")
	}
}

func TestRecordEvent_RoundTrip(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()
	at := time.Now()

	if err := j.BeginCycle(ctx, "cyc-1", 0, true, at); err != nil {
		t.Fatalf("BeginCycle() failed: %v", err)
	}
	hash := ScriptHash("print(1)")
	if err := j.RecordEvent(ctx, "cyc-1", 5, EventRemoteScript, "debug link upload", hash, at); err != nil {
		t.Fatalf("RecordEvent() failed: %v", err)
	}
	if err := j.RecordEvent(ctx, "cyc-1", 6, EventDegradedInit, "sensor probe failed", "", at); err != nil {
		t.Fatalf("RecordEvent() failed: %v", err)
	}

	events, err := j.Events(ctx, "cyc-1")
	if err != nil {
		t.Fatalf("Events() failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, expected 2", len(events))
	}
	if events[0].Kind != EventRemoteScript || events[0].ScriptHash != hash {
		t.Errorf("unexpected first event: %+v", events[0])
	}
	if events[1].Kind != EventDegradedInit || events[1].ScriptHash != "" {
		t.Errorf("unexpected second event: %+v", events[1])
	}
}

func TestCycles_EmptyJournal(t *testing.T) {
	j := openTestJournal(t)

	cycles, err := j.Cycles(context.Background())
	if err != nil {
		t.Fatalf("Cycles() failed: %v", err)
	}
	if cycles == nil {
		t.Error("Cycles() returned nil, expected empty slice")
	}
	if len(cycles) != 0 {
		t.Errorf("got %d cycles, expected 0", len(cycles))
	}
}
