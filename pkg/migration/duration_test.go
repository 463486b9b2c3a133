package migration

import "testing"

func TestEstimateDuration(t *testing.T) {
	tests := []struct {
		name      string
		durations []int
		want      int
	}{
		{"no phases", nil, 0},
		{"single phase", []int{100}, 120},
		{"two phases", []int{60, 120}, 216},
		{"rounds up", []int{1}, 2},
		{"zero durations", []int{0, 0}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			phases := make([]Phase, len(tt.durations))
			for i, d := range tt.durations {
				phases[i] = Phase{EstimatedDuration: d}
			}

			got := EstimateDuration(phases)
			if got != tt.want {
				t.Errorf("EstimateDuration() = %d, want %d", got, tt.want)
			}

			// Pure function: repeated calls agree.
			if again := EstimateDuration(phases); again != got {
				t.Errorf("EstimateDuration() not idempotent: %d then %d", got, again)
			}
		})
	}
}
