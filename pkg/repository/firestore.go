package repository

import (
	"context"
	"errors"
	"sort"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/smartshelf/pkg/model"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Firestore implements SpotRepository and SessionRepository using Cloud Firestore.
// Conditional writes run inside transactions, which Firestore serializes
// per document.
type Firestore struct {
	client            *firestore.Client
	spotCollection    string
	sessionCollection string
}

var (
	_ SpotRepository    = (*Firestore)(nil)
	_ SessionRepository = (*Firestore)(nil)
)

// txMaxAttempts bounds retries of contended transactions
const txMaxAttempts = 20

type FirestoreOption func(*Firestore)

// WithSpotCollection overrides the collection name of spots
func WithSpotCollection(name string) FirestoreOption {
	return func(r *Firestore) {
		r.spotCollection = name
	}
}

// WithSessionCollection overrides the collection name of sessions
func WithSessionCollection(name string) FirestoreOption {
	return func(r *Firestore) {
		r.sessionCollection = name
	}
}

// NewFirestore creates a new Firestore repository
func NewFirestore(ctx context.Context, projectID, databaseID string, opts ...FirestoreOption) (*Firestore, error) {
	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	if err != nil {
		return nil, model.StorageError(err, "failed to create firestore client",
			goerr.V("project_id", projectID),
			goerr.V("database_id", databaseID))
	}

	r := &Firestore{
		client:            client,
		spotCollection:    "storage_space_details",
		sessionCollection: "sessions",
	}
	for _, opt := range opts {
		opt(r)
	}

	return r, nil
}

func (r *Firestore) Close() error {
	if err := r.client.Close(); err != nil {
		return goerr.Wrap(err, "failed to close firestore client")
	}
	return nil
}

func (r *Firestore) spots() *firestore.CollectionRef {
	return r.client.Collection(r.spotCollection)
}

func (r *Firestore) sessions() *firestore.CollectionRef {
	return r.client.Collection(r.sessionCollection)
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

func (r *Firestore) EnsureSpots(ctx context.Context, spots []*model.Spot) (int, error) {
	inserted := 0
	for _, spot := range spots {
		if err := spot.Validate(); err != nil {
			return inserted, err
		}

		doc := &model.Spot{ID: spot.ID, Size: spot.Size, Location: spot.Location}
		_, err := r.spots().Doc(string(spot.ID)).Create(ctx, doc)
		if status.Code(err) == codes.AlreadyExists {
			continue
		}
		if err != nil {
			return inserted, model.StorageError(err, "failed to insert spot", goerr.V("spot_id", spot.ID))
		}
		inserted++
	}

	return inserted, nil
}

func (r *Firestore) FindUnoccupied(ctx context.Context, size model.Size) ([]*model.Spot, error) {
	q := r.spots().
		Where("size", "==", string(size)).
		Where("occupied", "==", false)
	return r.querySpots(ctx, q.Documents(ctx))
}

func (r *Firestore) FindOccupied(ctx context.Context, apartment string) ([]*model.Spot, error) {
	q := r.spots().
		Where("occupant", "==", apartment).
		Where("occupied", "==", true)
	return r.querySpots(ctx, q.Documents(ctx))
}

func (r *Firestore) ListSpots(ctx context.Context) ([]*model.Spot, error) {
	return r.querySpots(ctx, r.spots().Documents(ctx))
}

// querySpots sorts in memory so that the equality queries need no composite index
func (r *Firestore) querySpots(ctx context.Context, iter *firestore.DocumentIterator) ([]*model.Spot, error) {
	defer iter.Stop()

	spots := []*model.Spot{}
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, model.StorageError(err, "failed to iterate spots")
		}

		var spot model.Spot
		if err := doc.DataTo(&spot); err != nil {
			return nil, model.StorageError(err, "failed to decode spot", goerr.V("doc", doc.Ref.ID))
		}
		spots = append(spots, &spot)
	}

	sort.Slice(spots, func(i, j int) bool { return spots[i].ID < spots[j].ID })
	return spots, nil
}

func (r *Firestore) TryOccupy(ctx context.Context, spotID model.SpotID, apartment string) (bool, error) {
	if apartment == "" {
		return false, goerr.Wrap(model.ErrInvalidInput, "apartment is required to occupy a spot", goerr.V("spot_id", spotID))
	}

	ref := r.spots().Doc(string(spotID))
	var applied bool
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		applied = false

		doc, err := tx.Get(ref)
		if isNotFound(err) {
			return nil
		}
		if err != nil {
			return err
		}

		var spot model.Spot
		if err := doc.DataTo(&spot); err != nil {
			return err
		}
		if spot.Occupied {
			return nil
		}

		applied = true
		return tx.Update(ref, []firestore.Update{
			{Path: "occupied", Value: true},
			{Path: "occupant", Value: apartment},
		})
	}, firestore.MaxAttempts(txMaxAttempts))
	if err != nil {
		return false, model.StorageError(err, "failed to occupy spot", goerr.V("spot_id", spotID))
	}

	return applied, nil
}

func (r *Firestore) ReleaseAll(ctx context.Context, apartment string) (int, error) {
	if apartment == "" {
		return 0, goerr.Wrap(model.ErrInvalidInput, "apartment is required to release spots")
	}

	q := r.spots().
		Where("occupant", "==", apartment).
		Where("occupied", "==", true)

	var released int
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		released = 0

		docs, err := tx.Documents(q).GetAll()
		if err != nil {
			return err
		}

		for _, doc := range docs {
			if err := tx.Update(doc.Ref, []firestore.Update{
				{Path: "occupied", Value: false},
				{Path: "occupant", Value: ""},
			}); err != nil {
				return err
			}
		}
		released = len(docs)
		return nil
	}, firestore.MaxAttempts(txMaxAttempts))
	if err != nil {
		return 0, model.StorageError(err, "failed to release spots", goerr.V("apartment", apartment))
	}

	return released, nil
}

func (r *Firestore) GetOrCreateSession(ctx context.Context, id model.SessionID) (*model.Session, error) {
	ref := r.sessions().Doc(string(id))

	var session *model.Session
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(ref)
		if isNotFound(err) {
			session = &model.Session{}
			return tx.Create(ref, session)
		}
		if err != nil {
			return err
		}

		session = &model.Session{}
		return doc.DataTo(session)
	})
	if err != nil {
		return nil, model.StorageError(err, "failed to get or create session", goerr.V("session_id", id))
	}

	return session, nil
}

func (r *Firestore) UpdateSession(ctx context.Context, id model.SessionID, fn func(s *model.Session) error) (*model.Session, error) {
	ref := r.sessions().Doc(string(id))

	var (
		session *model.Session
		fnErr   error
	)
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		session = &model.Session{}

		doc, err := tx.Get(ref)
		switch {
		case isNotFound(err):
		case err != nil:
			return err
		default:
			if err := doc.DataTo(session); err != nil {
				return err
			}
		}

		if fnErr = fn(session); fnErr != nil {
			return fnErr
		}
		return tx.Set(ref, session)
	}, firestore.MaxAttempts(txMaxAttempts))
	if fnErr != nil {
		return nil, fnErr
	}
	if err != nil {
		return nil, model.StorageError(err, "failed to update session", goerr.V("session_id", id))
	}

	return session, nil
}

func (r *Firestore) DeleteSession(ctx context.Context, id model.SessionID) (bool, error) {
	ref := r.sessions().Doc(string(id))

	var existed bool
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		existed = false

		if _, err := tx.Get(ref); err != nil {
			if isNotFound(err) {
				return nil
			}
			return err
		}

		existed = true
		return tx.Delete(ref)
	})
	if err != nil {
		return false, model.StorageError(err, "failed to delete session", goerr.V("session_id", id))
	}

	return existed, nil
}
