package report

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JakeFAU/leasecar-etl/internal/pipeline"
)

// Kind classifies a failure.
type Kind string

// Failure kinds.
const (
	// KindConnectivity covers an unreachable API or database.
	KindConnectivity Kind = "connectivity"
	// KindMalformed covers bad responses and missing or unreadable inputs.
	KindMalformed Kind = "malformed"
	// KindData covers rows rejected by the database or by value conversion.
	KindData Kind = "data"
)

// Event is one reported failure.
type Event struct {
	// RunID ties the event to a pipeline run.
	RunID string
	// TS is the UTC time the failure was observed.
	TS time.Time
	// Stage is the job that observed the failure.
	Stage pipeline.Stage
	// Kind is the failure class.
	Kind Kind
	// Subject names the unit that was skipped: an identifier, a table or a file.
	Subject string
	// Err is the underlying error.
	Err error
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	switch e.Stage {
	case pipeline.StageExtract, pipeline.StageLoad, pipeline.StageExport:
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	switch e.Kind {
	case KindConnectivity, KindMalformed, KindData:
	default:
		return fmt.Errorf("unknown kind %q", e.Kind)
	}
	if e.Err == nil {
		return errors.New("error is required")
	}
	return nil
}

// Reporter receives failure events. Implementations must not block for long;
// stages call Report inline.
type Reporter interface {
	Report(ctx context.Context, evt Event)
}

// Multi fans every event out to each reporter in order.
type Multi []Reporter

// Report implements Reporter.
func (m Multi) Report(ctx context.Context, evt Event) {
	for _, r := range m {
		if r != nil {
			r.Report(ctx, evt)
		}
	}
}

// Nop discards events.
type Nop struct{}

// Report implements Reporter.
func (Nop) Report(context.Context, Event) {}
