// Package results persists population summaries produced by a sweep.
package results

import (
	"context"
	"errors"

	"github.com/signalsfoundry/contention-simulator/model"
)

// Sink accepts summaries in the order they are produced.
type Sink interface {
	Write(ctx context.Context, s model.Summary) error
	Close() error
}

// Multi fans every summary out to each sink.
type Multi []Sink

// Write forwards s to every sink and joins their errors.
func (m Multi) Write(ctx context.Context, s model.Summary) error {
	var errs []error
	for _, sink := range m {
		if err := sink.Write(ctx, s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink and joins their errors.
func (m Multi) Close() error {
	var errs []error
	for _, sink := range m {
		if err := sink.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
