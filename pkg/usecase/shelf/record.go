package shelf

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/smartshelf/pkg/model"
	"github.com/m-mizutani/smartshelf/pkg/utils/logging"
)

// RecordSize stores the package size. Anything but S, M or L is rejected
// with ErrInvalidInput and the stored session is left untouched.
func (uc *UseCase) RecordSize(ctx context.Context, size string) (s *model.Session, err error) {
	defer func() {
		uc.emit(ctx, auditEntry{operation: "record_size", outcome: size}, err)
	}()

	parsed, err := model.ParseSize(size)
	if err != nil {
		return nil, err
	}

	s, err = uc.update(ctx, func(s *model.Session) {
		s.Size = &parsed
	})
	if err != nil {
		return nil, err
	}

	logging.From(ctx).Debug("size recorded", "session_id", uc.sessionID, "size", parsed)
	return s, nil
}

// RecordApartment stores the apartment in its canonical uppercase form so
// that "3b" and "3B" name the same occupant.
func (uc *UseCase) RecordApartment(ctx context.Context, apartment string) (s *model.Session, err error) {
	var apt string
	defer func() {
		uc.emit(ctx, auditEntry{operation: "record_apartment", apartment: apt}, err)
	}()

	apt, err = model.NormalizeApartment(apartment)
	if err != nil {
		return nil, err
	}

	s, err = uc.update(ctx, func(s *model.Session) {
		s.ApartmentNumber = &apt
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to record apartment", goerr.V("apartment", apt))
	}

	logging.From(ctx).Debug("apartment recorded", "session_id", uc.sessionID, "apartment", apt)
	return s, nil
}
