package report

import (
	"context"
	"errors"
	"fmt"

	"github.com/wonny/aegis/taa/internal/contracts"
)

// Fanout publishes to every sink in order, continuing past failures
type Fanout []contracts.ReportSink

// Publish implements contracts.ReportSink; errors are joined
func (f Fanout) Publish(ctx context.Context, run contracts.RunInfo, records []contracts.DecisionRecord) error {
	var errs []error
	for i, sink := range f {
		if err := sink.Publish(ctx, run, records); err != nil {
			errs = append(errs, fmt.Errorf("sink %d (%T): %w", i, sink, err))
		}
	}
	return errors.Join(errs...)
}
