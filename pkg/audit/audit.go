package audit

import (
	"context"
	"errors"

	"github.com/m-mizutani/smartshelf/pkg/model"
	"github.com/m-mizutani/smartshelf/pkg/utils/logging"
)

// Sink receives one event per Reservation Engine call. Sinks only observe;
// a failing sink never changes the outcome of the call it describes.
type Sink interface {
	Record(ctx context.Context, event *model.AuditEvent) error
}

// Logger writes events to the context logger
type Logger struct{}

func NewLogger() *Logger {
	return &Logger{}
}

func (x *Logger) Record(ctx context.Context, event *model.AuditEvent) error {
	logging.From(ctx).Info("audit",
		"id", event.ID,
		"operation", event.Operation,
		"session_id", event.SessionID,
		"apartment", event.Apartment,
		"spot_id", event.SpotID,
		"outcome", event.Outcome,
		"error", event.Error,
	)
	return nil
}

// Multi fans an event out to every sink and joins their errors
type Multi []Sink

func (x Multi) Record(ctx context.Context, event *model.AuditEvent) error {
	var errs []error
	for _, sink := range x {
		if err := sink.Record(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
