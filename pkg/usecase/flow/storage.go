package flow

import (
	"context"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/smartshelf/pkg/model"
)

type StoreOutcome string

const (
	StoreReserved StoreOutcome = "reserved"
	StoreNoSpot   StoreOutcome = "no_spot"
	StoreDeclined StoreOutcome = "declined"
	StoreConflict StoreOutcome = "conflict"
)

// StoreResult is what the desk tells the resident after a storage run
type StoreResult struct {
	Outcome   StoreOutcome
	Size      model.Size
	Apartment string
	SpotID    model.SpotID
	Location  string
}

func (r *StoreResult) Message() string {
	switch r.Outcome {
	case StoreReserved:
		return fmt.Sprintf("Storage confirmed. Your spot ID is %s at location %s.", r.SpotID, r.Location)
	case StoreNoSpot:
		return fmt.Sprintf("Sorry, no %s size spot is available right now.", r.Size)
	case StoreDeclined:
		return "Storage cancelled."
	case StoreConflict:
		return fmt.Sprintf("Sorry, spot %s was just taken by someone else. Please try again.", r.SpotID)
	default:
		return string(r.Outcome)
	}
}

// Store runs the storage conversation: record size and apartment, find a
// spot, ask for confirmation, then reserve it.
func (d *Driver) Store(ctx context.Context, size, apartment string) (*StoreResult, error) {
	if _, err := d.engine.Reset(ctx); err != nil {
		return nil, goerr.Wrap(err, "failed to reset session before storage")
	}
	defer d.finish(ctx)

	s, err := d.engine.RecordSize(ctx, size)
	if err != nil {
		return nil, err
	}
	if s, err = d.engine.RecordApartment(ctx, apartment); err != nil {
		return nil, err
	}

	result := &StoreResult{Size: *s.Size, Apartment: *s.ApartmentNumber}

	if s, err = d.engine.LocateSpot(ctx); err != nil {
		return nil, err
	}
	if !*s.SpotAvailable {
		result.Outcome = StoreNoSpot
		return result, nil
	}
	result.SpotID = *s.SpotID
	result.Location = *s.SpotLocation

	question := fmt.Sprintf("A %s size spot is available at %s (spot %s). Store the package for apartment %s?",
		result.Size, result.Location, result.SpotID, result.Apartment)
	ok, err := d.confirm.Confirm(ctx, question)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get confirmation")
	}
	if !ok {
		result.Outcome = StoreDeclined
		return result, nil
	}

	if s, err = d.engine.CommitReservation(ctx); err != nil {
		return nil, err
	}
	if *s.ReservationStatus {
		result.Outcome = StoreReserved
	} else {
		result.Outcome = StoreConflict
	}
	return result, nil
}
