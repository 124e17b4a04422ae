package shelf

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/smartshelf/pkg/model"
	"github.com/m-mizutani/smartshelf/pkg/utils/logging"
)

// CommitReservation assigns the located spot to the recorded apartment.
// A spot taken in the meantime, or removed, yields reservation_status=false
// rather than an error.
func (uc *UseCase) CommitReservation(ctx context.Context) (s *model.Session, err error) {
	entry := auditEntry{operation: "commit_reservation"}
	defer func() { uc.emit(ctx, entry, err) }()

	current, err := uc.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	apt, err := current.RequireApartment()
	if err != nil {
		return nil, err
	}
	spotID, err := current.RequireSpotID()
	if err != nil {
		return nil, err
	}
	entry.apartment = apt
	entry.spotID = spotID

	applied, err := uc.spots.TryOccupy(ctx, spotID, apt)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to occupy spot", goerr.V("spot_id", spotID), goerr.V("apartment", apt))
	}

	logger := logging.From(ctx)
	if applied {
		entry.outcome = "reserved"
		logger.Info("reservation applied", "session_id", uc.sessionID, "spot_id", spotID, "apartment", apt)
	} else {
		entry.outcome = "rejected"
		logger.Info("reservation rejected, spot is taken or gone", "session_id", uc.sessionID, "spot_id", spotID, "apartment", apt)
	}

	return uc.update(ctx, func(s *model.Session) {
		s.ReservationStatus = model.Ptr(applied)
	})
}
