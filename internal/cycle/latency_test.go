package cycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLatencyBounds(t *testing.T) {
	tests := []struct {
		awake    int
		min, max int
	}{
		{awake: 0, min: 20, max: 39},
		{awake: 1, min: 20, max: 39},
		{awake: 10, min: 15, max: 30},
		{awake: 30, min: 5, max: 10},
		{awake: 36, min: 2, max: 5},
		{awake: 1000, min: 2, max: 5},
	}
	for _, tt := range tests {
		lo, hi := LatencyBounds(tt.awake)
		assert.Equal(t, tt.min, lo, "min for %d awake", tt.awake)
		assert.Equal(t, tt.max, hi, "max for %d awake", tt.awake)
	}
}

func TestLatencyBounds_ShrinkWithLoad(t *testing.T) {
	prevLo, prevHi := LatencyBounds(1)
	for n := 2; n <= 200; n++ {
		lo, hi := LatencyBounds(n)
		assert.LessOrEqual(t, lo, prevLo)
		assert.LessOrEqual(t, hi, prevHi)
		assert.GreaterOrEqual(t, lo, 2)
		assert.GreaterOrEqual(t, hi, 5)
		assert.LessOrEqual(t, lo, hi)
		prevLo, prevHi = lo, hi
	}
}

func TestNaturalLatency(t *testing.T) {
	first := func(int) int { return 0 }
	last := func(n int) int { return n - 1 }

	assert.Equal(t, 20*time.Minute, NaturalLatency(1, first))
	assert.Equal(t, 39*time.Minute, NaturalLatency(1, last))
	assert.Equal(t, 2*time.Minute, NaturalLatency(500, first))
	assert.Equal(t, 5*time.Minute, NaturalLatency(500, last))

	var seen int
	NaturalLatency(10, func(n int) int { seen = n; return 0 })
	assert.Equal(t, 16, seen)
}
