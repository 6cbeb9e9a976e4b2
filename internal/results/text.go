package results

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/signalsfoundry/contention-simulator/model"
)

// HeaderLine is the zeroed placeholder record that opens every text file.
const HeaderLine = "0 0 0 0\n"

// TextSink writes one whitespace separated line per summary:
// station_count occupied_fraction collision_probability fairness_variance.
type TextSink struct {
	w      *bufio.Writer
	closer io.Closer
}

// NewTextSink writes the header to w and returns a sink appending to it.
func NewTextSink(w io.Writer) (*TextSink, error) {
	s := &TextSink{w: bufio.NewWriter(w)}
	if c, ok := w.(io.Closer); ok {
		s.closer = c
	}
	if _, err := s.w.WriteString(HeaderLine); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	if err := s.w.Flush(); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	return s, nil
}

// CreateTextFile truncates path and returns a TextSink writing to it.
func CreateTextFile(path string) (*TextSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create results file: %w", err)
	}
	s, err := NewTextSink(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return s, nil
}

// FormatLine renders s the way it appears in the results file.
func FormatLine(s model.Summary) string {
	return fmt.Sprintf("%d %f %f %f\n", s.StationCount, s.OccupiedFraction, s.CollisionProbability, s.FairnessVariance)
}

// Write appends s and flushes so the file is complete after every record.
func (t *TextSink) Write(_ context.Context, s model.Summary) error {
	if _, err := t.w.WriteString(FormatLine(s)); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	if err := t.w.Flush(); err != nil {
		return fmt.Errorf("flush record: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying writer when it is closable.
func (t *TextSink) Close() error {
	if err := t.w.Flush(); err != nil {
		return err
	}
	if t.closer != nil {
		return t.closer.Close()
	}
	return nil
}
