package cycle

import "time"

// LatencyBounds returns the inclusive minute range for a reply's release
// delay. More personas awake at once means shorter delays.
func LatencyBounds(awakeCount int) (minMinutes, maxMinutes int) {
	if awakeCount < 1 {
		awakeCount = 1
	}
	minMinutes = max(2, 20-awakeCount/2)
	maxMinutes = max(5, 40-awakeCount)
	if maxMinutes < minMinutes {
		maxMinutes = minMinutes
	}
	return minMinutes, maxMinutes
}

// NaturalLatency draws a release delay uniformly from LatencyBounds. intn
// must return a value in [0, n).
func NaturalLatency(awakeCount int, intn func(n int) int) time.Duration {
	lo, hi := LatencyBounds(awakeCount)
	minutes := lo + intn(hi-lo+1)
	return time.Duration(minutes) * time.Minute
}
