package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/url"
	"os"
	"path/filepath"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/smartshelf/pkg/model"
	_ "modernc.org/sqlite"
)

// SQLite implements SpotRepository and SessionRepository on a local database file
type SQLite struct {
	db   *sql.DB
	path string
}

var (
	_ SpotRepository    = (*SQLite)(nil)
	_ SessionRepository = (*SQLite)(nil)
)

// NewSQLite opens (creating if needed) the database file at path
func NewSQLite(path string) (*SQLite, error) {
	if path == "" {
		return nil, goerr.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, model.StorageError(err, "failed to create database directory", goerr.V("path", path))
	}

	// Every transaction starts with BEGIN IMMEDIATE so that session
	// read-modify-write cycles take the write lock before reading.
	q := url.Values{}
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "journal_mode(WAL)")
	q.Set("_txlock", "immediate")
	dsn := "file:" + path + "?" + q.Encode()

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, model.StorageError(err, "failed to open database", goerr.V("path", path))
	}
	db.SetMaxOpenConns(1)

	repo := &SQLite{db: db, path: path}
	if err := repo.initSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	return repo, nil
}

func (r *SQLite) initSchema(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS storage_space_details (
			spot_id TEXT PRIMARY KEY,
			size TEXT NOT NULL CHECK (size IN ('S', 'M', 'L')),
			location TEXT NOT NULL,
			apartment TEXT NOT NULL DEFAULT '',
			occupied INTEGER NOT NULL DEFAULT 0 CHECK (occupied IN (0, 1)),
			CHECK ((occupied = 1) = (apartment <> ''))
		);`,
		`CREATE INDEX IF NOT EXISTS idx_storage_space_details_apartment
			ON storage_space_details (apartment);`,
		`CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			data TEXT NOT NULL
		);`,
	}

	for _, query := range queries {
		if _, err := r.db.ExecContext(ctx, query); err != nil {
			return model.StorageError(err, "failed to init schema", goerr.V("path", r.path))
		}
	}
	return nil
}

func (r *SQLite) Close() error {
	if err := r.db.Close(); err != nil {
		return goerr.Wrap(err, "failed to close database", goerr.V("path", r.path))
	}
	return nil
}

func (r *SQLite) EnsureSpots(ctx context.Context, spots []*model.Spot) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, model.StorageError(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	const query = `INSERT INTO storage_space_details (spot_id, size, location)
		VALUES (?, ?, ?) ON CONFLICT (spot_id) DO NOTHING`

	inserted := 0
	for _, spot := range spots {
		if err := spot.Validate(); err != nil {
			return 0, err
		}
		res, err := tx.ExecContext(ctx, query, string(spot.ID), string(spot.Size), spot.Location)
		if err != nil {
			return 0, model.StorageError(err, "failed to insert spot", goerr.V("spot_id", spot.ID))
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, model.StorageError(err, "failed to get affected rows")
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, model.StorageError(err, "failed to commit spots")
	}
	return inserted, nil
}

const spotColumns = `spot_id, size, location, apartment, occupied`

func (r *SQLite) FindUnoccupied(ctx context.Context, size model.Size) ([]*model.Spot, error) {
	return r.querySpots(ctx,
		`SELECT `+spotColumns+` FROM storage_space_details
		WHERE size = ? AND occupied = 0 ORDER BY spot_id`, string(size))
}

func (r *SQLite) FindOccupied(ctx context.Context, apartment string) ([]*model.Spot, error) {
	return r.querySpots(ctx,
		`SELECT `+spotColumns+` FROM storage_space_details
		WHERE apartment = ? AND occupied = 1 ORDER BY spot_id`, apartment)
}

func (r *SQLite) ListSpots(ctx context.Context) ([]*model.Spot, error) {
	return r.querySpots(ctx, `SELECT `+spotColumns+` FROM storage_space_details ORDER BY spot_id`)
}

func (r *SQLite) querySpots(ctx context.Context, query string, args ...any) ([]*model.Spot, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, model.StorageError(err, "failed to query spots")
	}
	defer rows.Close()

	spots := []*model.Spot{}
	for rows.Next() {
		var (
			spot     model.Spot
			occupied int
		)
		if err := rows.Scan(&spot.ID, &spot.Size, &spot.Location, &spot.Occupant, &occupied); err != nil {
			return nil, model.StorageError(err, "failed to scan spot")
		}
		spot.Occupied = occupied == 1
		spots = append(spots, &spot)
	}
	if err := rows.Err(); err != nil {
		return nil, model.StorageError(err, "failed to iterate spots")
	}

	return spots, nil
}

func (r *SQLite) TryOccupy(ctx context.Context, spotID model.SpotID, apartment string) (bool, error) {
	if apartment == "" {
		return false, goerr.Wrap(model.ErrInvalidInput, "apartment is required to occupy a spot", goerr.V("spot_id", spotID))
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE storage_space_details SET occupied = 1, apartment = ?
		WHERE spot_id = ? AND occupied = 0`, apartment, string(spotID))
	if err != nil {
		return false, model.StorageError(err, "failed to occupy spot", goerr.V("spot_id", spotID))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, model.StorageError(err, "failed to get affected rows")
	}

	return n == 1, nil
}

func (r *SQLite) ReleaseAll(ctx context.Context, apartment string) (int, error) {
	if apartment == "" {
		return 0, goerr.Wrap(model.ErrInvalidInput, "apartment is required to release spots")
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE storage_space_details SET occupied = 0, apartment = ''
		WHERE apartment = ? AND occupied = 1`, apartment)
	if err != nil {
		return 0, model.StorageError(err, "failed to release spots", goerr.V("apartment", apartment))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, model.StorageError(err, "failed to get affected rows")
	}

	return int(n), nil
}

func (r *SQLite) GetOrCreateSession(ctx context.Context, id model.SessionID) (*model.Session, error) {
	return r.UpdateSession(ctx, id, func(*model.Session) error { return nil })
}

func (r *SQLite) UpdateSession(ctx context.Context, id model.SessionID, fn func(s *model.Session) error) (*model.Session, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, model.StorageError(err, "failed to begin transaction", goerr.V("session_id", id))
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO sessions (session_id, data) VALUES (?, '{}')
		ON CONFLICT (session_id) DO NOTHING`, string(id)); err != nil {
		return nil, model.StorageError(err, "failed to create session", goerr.V("session_id", id))
	}

	var data string
	if err := tx.QueryRowContext(ctx,
		`SELECT data FROM sessions WHERE session_id = ?`, string(id)).Scan(&data); err != nil {
		return nil, model.StorageError(err, "failed to read session", goerr.V("session_id", id))
	}

	var session model.Session
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		return nil, model.StorageError(err, "session record is corrupt", goerr.V("session_id", id))
	}

	if err := fn(&session); err != nil {
		return nil, err
	}

	raw, err := json.Marshal(&session)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal session", goerr.V("session_id", id))
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE sessions SET data = ? WHERE session_id = ?`, string(raw), string(id)); err != nil {
		return nil, model.StorageError(err, "failed to write session", goerr.V("session_id", id))
	}

	if err := tx.Commit(); err != nil {
		return nil, model.StorageError(err, "failed to commit session", goerr.V("session_id", id))
	}

	return &session, nil
}

func (r *SQLite) DeleteSession(ctx context.Context, id model.SessionID) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE session_id = ?`, string(id))
	if err != nil {
		return false, model.StorageError(err, "failed to delete session", goerr.V("session_id", id))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, model.StorageError(err, "failed to get affected rows")
	}

	return n > 0, nil
}
