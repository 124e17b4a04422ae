package repository

import (
	"context"

	"github.com/m-mizutani/smartshelf/pkg/model"
)

// SpotRepository defines the persistence contract of the shelf inventory.
// Only the Reservation Engine and the bootstrap loader call the mutating methods.
type SpotRepository interface {
	// EnsureSpots inserts every spot whose ID is not present yet and
	// returns how many were inserted. Existing spots are never modified.
	EnsureSpots(ctx context.Context, spots []*model.Spot) (int, error)

	// FindUnoccupied returns free spots of the size ordered by ascending spot ID
	FindUnoccupied(ctx context.Context, size model.Size) ([]*model.Spot, error)

	// TryOccupy assigns the spot to the apartment only if it is free, as a
	// single conditional write. It reports whether the write was applied.
	TryOccupy(ctx context.Context, spotID model.SpotID, apartment string) (bool, error)

	// FindOccupied returns spots held by the apartment ordered by ascending spot ID
	FindOccupied(ctx context.Context, apartment string) ([]*model.Spot, error)

	// ReleaseAll frees every spot held by the apartment in one atomic write
	// and returns how many were released
	ReleaseAll(ctx context.Context, apartment string) (int, error)

	// ListSpots returns the whole inventory ordered by ascending spot ID
	ListSpots(ctx context.Context) ([]*model.Spot, error)

	Close() error
}

// SessionRepository defines the persistence contract of conversation scratch state
type SessionRepository interface {
	// GetOrCreateSession returns the stored session, creating an empty one if absent
	GetOrCreateSession(ctx context.Context, id model.SessionID) (*model.Session, error)

	// UpdateSession applies fn to the current record and stores the result
	// atomically with respect to other updates of the same session. If fn
	// returns an error nothing is written and the error is returned as is.
	UpdateSession(ctx context.Context, id model.SessionID, fn func(s *model.Session) error) (*model.Session, error)

	// DeleteSession removes the session and reports whether it existed
	DeleteSession(ctx context.Context, id model.SessionID) (bool, error)

	Close() error
}
