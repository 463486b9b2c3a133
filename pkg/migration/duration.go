package migration

import "math"

// durationBuffer is the safety multiplier applied to the raw sum of
// phase durations when estimating a plan.
const durationBuffer = 1.2

// EstimateDuration computes the buffered duration estimate for a set of
// phases, in minutes. The result is ceil(sum * 1.2); zero when there are
// no phases. The function is pure and idempotent.
func EstimateDuration(phases []Phase) int {
	if len(phases) == 0 {
		return 0
	}
	sum := 0
	for i := range phases {
		sum += phases[i].EstimatedDuration
	}
	return int(math.Ceil(float64(sum) * durationBuffer))
}
