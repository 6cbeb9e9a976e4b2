package results

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/signalsfoundry/contention-simulator/model"
)

// JSONLinesSink writes each summary as one protojson-encoded object per line.
type JSONLinesSink struct {
	w      *bufio.Writer
	closer io.Closer
	opts   protojson.MarshalOptions
}

// NewJSONLinesSink returns a sink writing to w.
func NewJSONLinesSink(w io.Writer) *JSONLinesSink {
	s := &JSONLinesSink{
		w:    bufio.NewWriter(w),
		opts: protojson.MarshalOptions{UseProtoNames: true},
	}
	if c, ok := w.(io.Closer); ok {
		s.closer = c
	}
	return s
}

// CreateJSONLinesFile truncates path and returns a sink writing to it.
func CreateJSONLinesFile(path string) (*JSONLinesSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create json lines file: %w", err)
	}
	return NewJSONLinesSink(f), nil
}

// SummaryStruct converts s into a protobuf Struct.
func SummaryStruct(s model.Summary) (*structpb.Struct, error) {
	sends := make([]any, len(s.StationSends))
	for i, v := range s.StationSends {
		sends[i] = v
	}
	return structpb.NewStruct(map[string]any{
		"run_id":                s.RunID,
		"station_count":         s.StationCount,
		"seed":                  float64(s.Seed),
		"occupied_fraction":     s.OccupiedFraction,
		"collision_probability": s.CollisionProbability,
		"fairness_variance":     s.FairnessVariance,
		"total_slots":           s.TotalSlots,
		"occupied_slots":        s.OccupiedSlots,
		"collisions":            s.Collisions,
		"successes":             s.Successes,
		"blocked_requests":      s.BlockedRequests,
		"station_sends":         sends,
		"elapsed_seconds":       s.Elapsed.Seconds(),
	})
}

// Write appends s as one JSON line.
func (j *JSONLinesSink) Write(_ context.Context, s model.Summary) error {
	st, err := SummaryStruct(s)
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	data, err := j.opts.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	if _, err := j.w.Write(data); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	if err := j.w.WriteByte('\n'); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	return j.w.Flush()
}

// Close flushes and closes the underlying writer when it is closable.
func (j *JSONLinesSink) Close() error {
	if err := j.w.Flush(); err != nil {
		return err
	}
	if j.closer != nil {
		return j.closer.Close()
	}
	return nil
}
