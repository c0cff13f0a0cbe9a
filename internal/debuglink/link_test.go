package debuglink

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestState_ScriptOffer(t *testing.T) {
	s := NewState(nil)
	assert.False(t, s.ScriptReady())

	s.OfferScript("led.toggle()")
	assert.True(t, s.ScriptReady())

	assert.Equal(t, "led.toggle()", s.TakeScript())
	assert.False(t, s.ScriptReady(), "TakeScript clears the ready flag")
	assert.Equal(t, "", s.TakeScript())
}

func TestState_InterruptToggle(t *testing.T) {
	s := NewState(nil)
	fired := 0
	s.BindInterrupt(func() { fired++ })

	// Window closed: requests are dropped.
	s.RequestInterrupt()
	assert.Equal(t, 0, fired)

	s.SetInterruptEnabled(true)
	s.RequestInterrupt()
	assert.Equal(t, 1, fired)

	s.SetInterruptEnabled(false)
	s.RequestInterrupt()
	assert.Equal(t, 1, fired, "closing the window drops requests again")
}

func TestState_InterruptToggleLock(t *testing.T) {
	s := NewState(nil)
	s.SetInterruptEnabled(true)
	s.LockInterruptToggle(true)

	// Locked: attempts to close the window are ignored.
	s.SetInterruptEnabled(false)
	assert.True(t, s.InterruptEnabled())

	s.LockInterruptToggle(false)
	s.SetInterruptEnabled(false)
	assert.False(t, s.InterruptEnabled())
}

func TestState_InterruptUnbound(t *testing.T) {
	s := NewState(nil)
	s.SetInterruptEnabled(true)
	// No binding: request is a no-op, not a panic.
	s.RequestInterrupt()

	s.BindInterrupt(nil)
	s.RequestInterrupt()
}

func TestState_ReadTurn(t *testing.T) {
	s := NewState(nil)
	s.PushLine("1+1")
	s.PushExit()

	line, kind := s.ReadTurn(context.Background())
	assert.Equal(t, TurnLine, kind)
	assert.Equal(t, "1+1", line)

	_, kind = s.ReadTurn(context.Background())
	assert.Equal(t, TurnExit, kind)
}

func TestState_ReadTurn_CancelledContext(t *testing.T) {
	s := NewState(nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, kind := s.ReadTurn(ctx)
	assert.Equal(t, TurnWake, kind,
		"cancellation must break the read so the caller observes it")
}

func TestState_ReadTurn_WokenByScript(t *testing.T) {
	s := NewState(nil)

	go func() {
		time.Sleep(10 * time.Millisecond)
		s.OfferScript("x = 1")
	}()

	_, kind := s.ReadTurn(context.Background())
	assert.Equal(t, TurnWake, kind, "a pending script must break the read so the controller re-polls")
	assert.True(t, s.ScriptReady())
}

func TestState_SenderSwapDuringWrite(t *testing.T) {
	// Transports install their sender from accept goroutines while the
	// controller thread is writing; exercised under the race detector.
	s := NewState(nil)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			s.SetSender(func(kind byte, text string) {})
		}
	}()
	for i := 0; i < 1000; i++ {
		s.WriteTurn("42")
		s.WriteFault("boom")
	}
	<-done
}

func TestState_Settle(t *testing.T) {
	s := NewState(nil)

	// Idle channel settles immediately.
	assert.True(t, s.Settle(context.Background(), 50*time.Millisecond))

	s.BeginCommand()
	assert.False(t, s.Settle(context.Background(), 30*time.Millisecond), "busy channel must time out at the bound")

	go func() {
		time.Sleep(10 * time.Millisecond)
		s.EndCommand()
	}()
	assert.True(t, s.Settle(context.Background(), time.Second))
}

func TestState_Settle_ContextCancelled(t *testing.T) {
	s := NewState(nil)
	s.BeginCommand()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, s.Settle(ctx, time.Second))
}

func TestState_Mode(t *testing.T) {
	s := NewState(nil)
	assert.Equal(t, ModeRaw, s.Mode())

	s.SetMode(ModeFriendly)
	assert.Equal(t, ModeFriendly, s.Mode())
}

func TestState_DispatchFrames(t *testing.T) {
	s := NewState(nil)

	s.dispatch(FrameScript, []byte("a()"))
	require.True(t, s.ScriptReady())
	s.TakeScript()

	s.dispatch(FrameCmdBegin, nil)
	assert.True(t, s.Busy())
	s.dispatch(FrameCmdEnd, nil)
	assert.False(t, s.Busy())

	s.dispatch(FrameMode, []byte("friendly"))
	assert.Equal(t, ModeFriendly, s.Mode())

	s.dispatch(FrameLine, []byte("2*3"))
	line, kind := s.ReadTurn(context.Background())
	assert.Equal(t, TurnLine, kind)
	assert.Equal(t, "2*3", line)
}
