package shelf

import (
	"context"
	"strconv"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/smartshelf/pkg/model"
	"github.com/m-mizutani/smartshelf/pkg/utils/logging"
)

// LookupPackages records every spot held by the recorded apartment
func (uc *UseCase) LookupPackages(ctx context.Context) (s *model.Session, err error) {
	entry := auditEntry{operation: "lookup_packages"}
	defer func() { uc.emit(ctx, entry, err) }()

	current, err := uc.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	apt, err := current.RequireApartment()
	if err != nil {
		return nil, err
	}
	entry.apartment = apt

	spots, err := uc.spots.FindOccupied(ctx, apt)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to find occupied spots", goerr.V("apartment", apt))
	}

	info := make([]model.PackageInfo, 0, len(spots))
	for _, spot := range spots {
		info = append(info, model.PackageInfo{
			SpotID:   spot.ID,
			Size:     spot.Size,
			Location: spot.Location,
		})
	}
	entry.outcome = "found=" + strconv.Itoa(len(info))
	logging.From(ctx).Info("packages looked up", "session_id", uc.sessionID, "apartment", apt, "count", len(info))

	return uc.update(ctx, func(s *model.Session) {
		s.PackagesFound = model.Ptr(len(info) > 0)
		s.PackagesInfo = info
	})
}

// ReleasePackages frees every spot held by the recorded apartment
func (uc *UseCase) ReleasePackages(ctx context.Context) (s *model.Session, err error) {
	entry := auditEntry{operation: "release_packages"}
	defer func() { uc.emit(ctx, entry, err) }()

	current, err := uc.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	apt, err := current.RequireApartment()
	if err != nil {
		return nil, err
	}
	entry.apartment = apt

	released, err := uc.spots.ReleaseAll(ctx, apt)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to release spots", goerr.V("apartment", apt))
	}
	entry.outcome = "released=" + strconv.Itoa(released)
	logging.From(ctx).Info("packages released", "session_id", uc.sessionID, "apartment", apt, "count", released)

	return uc.update(ctx, func(s *model.Session) {
		s.ReleaseStatus = model.Ptr(released > 0)
		s.ReleasedCount = model.Ptr(released)
	})
}
