package shelf

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/smartshelf/pkg/model"
	"github.com/m-mizutani/smartshelf/pkg/utils/logging"
)

// LocateSpot looks for a free spot of the recorded size and remembers the
// first one by spot ID. Nothing is held: another caller may take the spot
// before CommitReservation runs.
func (uc *UseCase) LocateSpot(ctx context.Context) (s *model.Session, err error) {
	entry := auditEntry{operation: "locate_spot"}
	defer func() { uc.emit(ctx, entry, err) }()

	current, err := uc.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if current.ApartmentNumber != nil {
		entry.apartment = *current.ApartmentNumber
	}
	size, err := current.RequireSize()
	if err != nil {
		return nil, err
	}

	candidates, err := uc.spots.FindUnoccupied(ctx, size)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to find unoccupied spots", goerr.V("size", size))
	}

	logger := logging.From(ctx)
	if len(candidates) == 0 {
		entry.outcome = "not_found"
		logger.Info("no spot available", "session_id", uc.sessionID, "size", size)

		return uc.update(ctx, func(s *model.Session) {
			s.SpotAvailable = model.Ptr(false)
			s.SpotID = nil
			s.SpotLocation = nil
		})
	}

	spot := candidates[0]
	entry.outcome = "found"
	entry.spotID = spot.ID
	logger.Info("spot available", "session_id", uc.sessionID, "size", size, "spot_id", spot.ID)

	return uc.update(ctx, func(s *model.Session) {
		s.SpotAvailable = model.Ptr(true)
		s.SpotID = model.Ptr(spot.ID)
		s.SpotLocation = model.Ptr(spot.Location)
	})
}
