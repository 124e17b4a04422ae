package flow

import (
	"context"

	"github.com/m-mizutani/smartshelf/pkg/model"
	"github.com/m-mizutani/smartshelf/pkg/utils/logging"
)

// Engine is the subset of the Reservation Engine the drivers call
type Engine interface {
	Reset(ctx context.Context) (bool, error)
	RecordSize(ctx context.Context, size string) (*model.Session, error)
	RecordApartment(ctx context.Context, apartment string) (*model.Session, error)
	LocateSpot(ctx context.Context) (*model.Session, error)
	CommitReservation(ctx context.Context) (*model.Session, error)
	LookupPackages(ctx context.Context) (*model.Session, error)
	ReleasePackages(ctx context.Context) (*model.Session, error)
}

// Confirmer asks the person at the desk a yes/no question
type Confirmer interface {
	Confirm(ctx context.Context, question string) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer
type ConfirmFunc func(ctx context.Context, question string) (bool, error)

func (f ConfirmFunc) Confirm(ctx context.Context, question string) (bool, error) {
	return f(ctx, question)
}

// Driver runs the storage and retrieval conversations. Each run starts and
// ends with a session reset, so no field leaks into the next conversation.
type Driver struct {
	engine  Engine
	confirm Confirmer
}

func New(engine Engine, confirm Confirmer) *Driver {
	return &Driver{
		engine:  engine,
		confirm: confirm,
	}
}

// finish resets the session after a run. A failed reset is logged because
// the next run resets again before reading anything.
func (d *Driver) finish(ctx context.Context) {
	if _, err := d.engine.Reset(ctx); err != nil {
		logging.From(ctx).Error("failed to reset session after flow", "error", err)
	}
}
