package firmware

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/obscura-fw/obscura/internal/testutil"
)

func TestBootCycle_FirstAndAdvance(t *testing.T) {
	gen := testutil.NewCycleTokens("")

	c := FirstCycle(gen)
	assert.Equal(t, "cycle-0001", c.Token)
	assert.Equal(t, uint64(0), c.Number)
	assert.True(t, c.First)

	next := c.Advance(gen)
	assert.Equal(t, "cycle-0002", next.Token)
	assert.Equal(t, uint64(1), next.Number)
	assert.False(t, next.First, "soft reset clears the first-cycle flag")

	// The flag never comes back on later cycles.
	assert.False(t, next.Advance(gen).First)
}

func TestUUIDv7Generator_TimeSortable(t *testing.T) {
	gen := UUIDv7Generator{}
	a := gen.Generate()
	b := gen.Generate()
	assert.NotEqual(t, a, b)
	assert.Len(t, a, 36)
	assert.LessOrEqual(t, a, b, "v7 tokens sort by creation time")
}

func TestClock_Monotonic(t *testing.T) {
	c := NewClock()
	assert.Equal(t, uint64(0), c.Current())
	assert.Equal(t, uint64(1), c.Next())
	assert.Equal(t, uint64(2), c.Next())
	assert.Equal(t, uint64(2), c.Current())
}
