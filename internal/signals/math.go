package signals

import "math"

// clamp restricts a value to a range
func clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// clampInt restricts an integer to a range
func clampInt(value, min, max int) int {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// roundHalfUp rounds .5 towards positive infinity
func roundHalfUp(value float64) int {
	return int(math.Floor(value + 0.5))
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
