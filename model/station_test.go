package model

import "testing"

func TestStationRequesting(t *testing.T) {
	cases := []struct {
		name string
		s    Station
		want bool
	}{
		{"counting down", Station{Phase: PhaseBackoff, Backoff: 3}, false},
		{"expired", Station{Phase: PhaseBackoff, Backoff: 0}, true},
		{"sending", Station{Phase: PhaseSending, Backoff: 0}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.s.Requesting(); got != tc.want {
				t.Fatalf("Requesting() = %t, want %t", got, tc.want)
			}
			if got := tc.s.Sending(); got != (tc.s.Phase == PhaseSending) {
				t.Fatalf("Sending() = %t for phase %v", got, tc.s.Phase)
			}
		})
	}
}
