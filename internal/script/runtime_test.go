package script

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obscura-fw/obscura/internal/memlayout"
)

func testArena() memlayout.Extent {
	return memlayout.Extent{Base: 0x30000000, Length: 196 * 1024}
}

func TestRuntime_Execute(t *testing.T) {
	r := NewRuntime(testArena(), nil)

	err := r.Execute("boot.js", `var x = 1 + 2;`, nil)
	assert.NoError(t, err)
}

func TestRuntime_Execute_SyntaxFault(t *testing.T) {
	r := NewRuntime(testArena(), nil)

	err := r.Execute("boot.js", `var = ;`, nil)
	require.Error(t, err)
	f, ok := AsFault(err)
	require.True(t, ok)
	assert.Equal(t, "boot.js", f.Script)
	assert.False(t, f.Interrupted)
}

func TestRuntime_Execute_ThrowFault(t *testing.T) {
	r := NewRuntime(testArena(), nil)

	err := r.Execute("main.js", `throw new Error("sensor timeout");`, nil)
	require.Error(t, err)
	f, ok := AsFault(err)
	require.True(t, ok)
	assert.Contains(t, f.Message, "sensor timeout")
	assert.False(t, IsInterrupted(err))
}

func TestRuntime_Execute_Interrupted(t *testing.T) {
	r := NewRuntime(testArena(), nil)
	tok := NewToken()

	go func() {
		time.Sleep(10 * time.Millisecond)
		tok.Interrupt()
	}()

	err := r.Execute("main.js", `for (;;) {}`, tok)
	require.Error(t, err)
	assert.True(t, IsInterrupted(err), "infinite loop must unwind at the interrupt check point")
}

func TestRuntime_Execute_AfterInterruptStillUsable(t *testing.T) {
	r := NewRuntime(testArena(), nil)
	tok := NewToken()
	tok.Interrupt()

	err := r.Execute("a.js", `for (;;) {}`, tok)
	require.True(t, IsInterrupted(err))

	// The interrupt is cleared after the window; the next script runs.
	err = r.Execute("b.js", `1 + 1;`, nil)
	assert.NoError(t, err)
}

func TestRuntime_Execute_BudgetExceeded(t *testing.T) {
	r := NewRuntime(testArena(), nil)
	r.SetBudget(50 * time.Millisecond)

	err := r.Execute("main.js", `for (;;) {}`, nil)
	require.Error(t, err)
	f, ok := AsFault(err)
	require.True(t, ok)
	assert.Contains(t, f.Message, "budget")
	assert.False(t, f.Interrupted, "an overrun is the script's own failure, not an interrupt request")

	// The budget bounds each window, not the runtime's lifetime.
	assert.NoError(t, r.Execute("next.js", `1 + 1;`, nil))
}

func TestRuntime_Execute_WithinBudget(t *testing.T) {
	r := NewRuntime(testArena(), nil)
	r.SetBudget(time.Second)

	assert.NoError(t, r.Execute("boot.js", `var x = 1;`, nil))
}

func TestRuntime_EvalTurn_BudgetExceeded(t *testing.T) {
	r := NewRuntime(testArena(), nil)
	r.SetBudget(50 * time.Millisecond)

	_, err := r.EvalTurn(`while (true) {}`, nil)
	require.Error(t, err)
	assert.False(t, IsInterrupted(err))

	out, err := r.EvalTurn(`"recovered"`, nil)
	require.NoError(t, err)
	assert.Equal(t, "recovered", out)
}

func TestRuntime_EvalTurn(t *testing.T) {
	r := NewRuntime(testArena(), nil)

	out, err := r.EvalTurn(`6 * 7`, nil)
	require.NoError(t, err)
	assert.Equal(t, "42", out)

	out, err = r.EvalTurn(`var y = 1;`, nil)
	require.NoError(t, err)
	assert.Equal(t, "", out, "statements without a value render nothing")
}

func TestRuntime_EvalTurn_FaultDoesNotKillRuntime(t *testing.T) {
	r := NewRuntime(testArena(), nil)

	_, err := r.EvalTurn(`missing()`, nil)
	require.Error(t, err)
	_, ok := AsFault(err)
	assert.True(t, ok)

	out, err := r.EvalTurn(`"still alive"`, nil)
	require.NoError(t, err)
	assert.Equal(t, "still alive", out)
}

func TestRuntime_StatePersistsWithinCycle(t *testing.T) {
	r := NewRuntime(testArena(), nil)

	require.NoError(t, r.Execute("boot.js", `var mode = "ready";`, nil))
	out, err := r.EvalTurn(`mode`, nil)
	require.NoError(t, err)
	assert.Equal(t, "ready", out)
}

func TestRuntime_Sweep(t *testing.T) {
	r := NewRuntime(testArena(), nil)
	require.False(t, r.Swept())

	r.Sweep()
	assert.True(t, r.Swept())

	err := r.Execute("boot.js", `1`, nil)
	require.Error(t, err)
	assert.Error(t, r.Bind("x", 1))
}

func TestRuntime_Bind(t *testing.T) {
	r := NewRuntime(testArena(), nil)
	require.NoError(t, r.Bind("answer", 42))

	out, err := r.EvalTurn(`answer`, nil)
	require.NoError(t, err)
	assert.Equal(t, "42", out)
}

func TestToken_OneShot(t *testing.T) {
	tok := NewToken()
	assert.False(t, tok.Fired())

	tok.Interrupt()
	tok.Interrupt() // idempotent
	assert.True(t, tok.Fired())

	select {
	case <-tok.Done():
	default:
		t.Fatal("Done channel should be closed after Interrupt")
	}
}
