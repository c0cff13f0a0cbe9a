package harness

import (
	"bytes"
	"context"
	"fmt"

	"github.com/obscura-fw/obscura/internal/journal"
)

// renderTranscript turns the boot journal into a line-oriented text form.
// Records are merged per cycle in logical clock order; wall times are
// omitted so the output depends only on what happened, not when.
func renderTranscript(name string, j *journal.Journal) ([]byte, error) {
	ctx := context.Background()
	cycles, err := j.Cycles(ctx)
	if err != nil {
		return nil, err
	}

	var b bytes.Buffer
	fmt.Fprintf(&b, "scenario: %s\n", name)
	for _, c := range cycles {
		fmt.Fprintf(&b, "cycle %s number=%d first=%t\n", c.Token, c.Number, c.First)

		transitions, err := j.Transitions(ctx, c.Token)
		if err != nil {
			return nil, err
		}
		events, err := j.Events(ctx, c.Token)
		if err != nil {
			return nil, err
		}

		// Both slices are already seq-ordered; merge them.
		ti, ei := 0, 0
		for ti < len(transitions) || ei < len(events) {
			if ei >= len(events) || (ti < len(transitions) && transitions[ti].Seq < events[ei].Seq) {
				t := transitions[ti]
				fmt.Fprintf(&b, "  seq=%d %s -> %s\n", t.Seq, t.From, t.To)
				ti++
				continue
			}
			e := events[ei]
			fmt.Fprintf(&b, "  seq=%d event %s detail=%q", e.Seq, e.Kind, e.Detail)
			if e.ScriptHash != "" {
				fmt.Fprintf(&b, " hash=%s", e.ScriptHash)
			}
			b.WriteByte('\n')
			ei++
		}
	}
	return b.Bytes(), nil
}
