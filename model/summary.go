package model

import "time"

// Summary is the record emitted once per completed population run.
type Summary struct {
	RunID        string
	StationCount int
	Seed         uint64

	// Published fields, in output-file order.
	OccupiedFraction     float64
	CollisionProbability float64
	FairnessVariance     float64

	TotalSlots      int64
	OccupiedSlots   int64
	Collisions      int64
	Successes       int64
	BlockedRequests int64

	// StationSends holds total_packets_sent per station, by station ID.
	StationSends []int

	Elapsed time.Duration
}

// ShareOf returns the percentage of successful sends won by station i.
func (s Summary) ShareOf(i int) float64 {
	if s.Successes == 0 || i < 0 || i >= len(s.StationSends) {
		return 0
	}
	return float64(s.StationSends[i]) / float64(s.Successes) * 100
}
