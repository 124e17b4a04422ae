package repository

import (
	"context"
	"encoding/json"
	"errors"
	"sort"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/smartshelf/pkg/model"
	"github.com/redis/go-redis/v9"
)

// Redis implements SpotRepository and SessionRepository on a Redis server.
//
// Key layout (all keys are prefixed with "<prefix>:"):
//   - spot:<spot_id>    hash with spot_id, size, location, occupant, occupied
//   - spots             sorted set of all spot IDs, all with score 0
//   - occupant:<apt>    set of spot IDs held by an apartment
//   - session:<id>      JSON encoded session
//
// Spot mutations run as Lua scripts so each is a single atomic step on
// the server. Release scripts touch spot keys derived at run time and
// therefore need a non-cluster deployment.
type Redis struct {
	rdb    *redis.Client
	prefix string
}

var (
	_ SpotRepository    = (*Redis)(nil)
	_ SessionRepository = (*Redis)(nil)
)

const redisMaxRetries = 16

var (
	ensureSpotScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
  return 0
end
redis.call('HSET', KEYS[1], 'spot_id', ARGV[1], 'size', ARGV[2], 'location', ARGV[3], 'occupant', '', 'occupied', '0')
redis.call('ZADD', KEYS[2], 0, ARGV[1])
return 1
`)

	tryOccupyScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return 0
end
if redis.call('HGET', KEYS[1], 'occupied') == '1' then
  return 0
end
redis.call('HSET', KEYS[1], 'occupied', '1', 'occupant', ARGV[1])
redis.call('SADD', KEYS[2], ARGV[2])
return 1
`)

	releaseAllScript = redis.NewScript(`
local ids = redis.call('SMEMBERS', KEYS[1])
local n = 0
for _, id in ipairs(ids) do
  local key = ARGV[1] .. id
  if redis.call('HGET', key, 'occupied') == '1' and redis.call('HGET', key, 'occupant') == ARGV[2] then
    redis.call('HSET', key, 'occupied', '0', 'occupant', '')
    n = n + 1
  end
end
redis.call('DEL', KEYS[1])
return n
`)
)

// NewRedis connects to Redis and verifies the connection
func NewRedis(ctx context.Context, opts *redis.Options, prefix string) (*Redis, error) {
	if prefix == "" {
		prefix = "smartshelf"
	}

	r := &Redis{
		rdb:    redis.NewClient(opts),
		prefix: prefix,
	}

	if err := r.rdb.Ping(ctx).Err(); err != nil {
		r.rdb.Close()
		return nil, model.StorageError(err, "failed to connect to redis", goerr.V("addr", opts.Addr))
	}

	return r, nil
}

func (r *Redis) Close() error {
	if err := r.rdb.Close(); err != nil {
		return goerr.Wrap(err, "failed to close redis client")
	}
	return nil
}

func (r *Redis) spotKey(id model.SpotID) string { return r.spotKeyPrefix() + string(id) }
func (r *Redis) spotKeyPrefix() string          { return r.prefix + ":spot:" }
func (r *Redis) indexKey() string               { return r.prefix + ":spots" }
func (r *Redis) occupantKey(apt string) string  { return r.prefix + ":occupant:" + apt }
func (r *Redis) sessionKey(id model.SessionID) string {
	return r.prefix + ":session:" + string(id)
}

func (r *Redis) EnsureSpots(ctx context.Context, spots []*model.Spot) (int, error) {
	inserted := 0
	for _, spot := range spots {
		if err := spot.Validate(); err != nil {
			return inserted, err
		}

		n, err := ensureSpotScript.Run(ctx, r.rdb,
			[]string{r.spotKey(spot.ID), r.indexKey()},
			string(spot.ID), string(spot.Size), spot.Location,
		).Int()
		if err != nil {
			return inserted, model.StorageError(err, "failed to insert spot", goerr.V("spot_id", spot.ID))
		}
		inserted += n
	}

	return inserted, nil
}

func (r *Redis) FindUnoccupied(ctx context.Context, size model.Size) ([]*model.Spot, error) {
	spots, err := r.ListSpots(ctx)
	if err != nil {
		return nil, err
	}

	result := []*model.Spot{}
	for _, spot := range spots {
		if spot.Size == size && !spot.Occupied {
			result = append(result, spot)
		}
	}
	return result, nil
}

func (r *Redis) FindOccupied(ctx context.Context, apartment string) ([]*model.Spot, error) {
	ids, err := r.rdb.SMembers(ctx, r.occupantKey(apartment)).Result()
	if err != nil {
		return nil, model.StorageError(err, "failed to get occupant index", goerr.V("apartment", apartment))
	}

	spots, err := r.getSpots(ctx, ids)
	if err != nil {
		return nil, err
	}

	result := []*model.Spot{}
	for _, spot := range spots {
		if spot.Occupied && spot.Occupant == apartment {
			result = append(result, spot)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// ListSpots relies on the index holding every member with the same score,
// which makes ZRANGE return IDs in lexicographic order.
func (r *Redis) ListSpots(ctx context.Context) ([]*model.Spot, error) {
	ids, err := r.rdb.ZRange(ctx, r.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, model.StorageError(err, "failed to get spot index")
	}
	return r.getSpots(ctx, ids)
}

func (r *Redis) getSpots(ctx context.Context, ids []string) ([]*model.Spot, error) {
	if len(ids) == 0 {
		return []*model.Spot{}, nil
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	if _, err := r.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, r.spotKey(model.SpotID(id)))
		}
		return nil
	}); err != nil {
		return nil, model.StorageError(err, "failed to get spots")
	}

	spots := make([]*model.Spot, 0, len(ids))
	for i, cmd := range cmds {
		var spot model.Spot
		if err := cmd.Scan(&spot); err != nil {
			return nil, model.StorageError(err, "failed to decode spot", goerr.V("spot_id", ids[i]))
		}
		if spot.ID == "" {
			continue
		}
		spots = append(spots, &spot)
	}
	return spots, nil
}

func (r *Redis) TryOccupy(ctx context.Context, spotID model.SpotID, apartment string) (bool, error) {
	if apartment == "" {
		return false, goerr.Wrap(model.ErrInvalidInput, "apartment is required to occupy a spot", goerr.V("spot_id", spotID))
	}

	n, err := tryOccupyScript.Run(ctx, r.rdb,
		[]string{r.spotKey(spotID), r.occupantKey(apartment)},
		apartment, string(spotID),
	).Int()
	if err != nil {
		return false, model.StorageError(err, "failed to occupy spot", goerr.V("spot_id", spotID))
	}

	return n == 1, nil
}

func (r *Redis) ReleaseAll(ctx context.Context, apartment string) (int, error) {
	if apartment == "" {
		return 0, goerr.Wrap(model.ErrInvalidInput, "apartment is required to release spots")
	}

	n, err := releaseAllScript.Run(ctx, r.rdb,
		[]string{r.occupantKey(apartment)},
		r.spotKeyPrefix(), apartment,
	).Int()
	if err != nil {
		return 0, model.StorageError(err, "failed to release spots", goerr.V("apartment", apartment))
	}

	return n, nil
}

func (r *Redis) GetOrCreateSession(ctx context.Context, id model.SessionID) (*model.Session, error) {
	key := r.sessionKey(id)
	if err := r.rdb.SetNX(ctx, key, "{}", 0).Err(); err != nil {
		return nil, model.StorageError(err, "failed to create session", goerr.V("session_id", id))
	}

	raw, err := r.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		// deleted between SETNX and GET; an empty record is what the caller would have seen
		return &model.Session{}, nil
	}
	if err != nil {
		return nil, model.StorageError(err, "failed to get session", goerr.V("session_id", id))
	}

	return decodeSession(raw, id)
}

func (r *Redis) UpdateSession(ctx context.Context, id model.SessionID, fn func(s *model.Session) error) (*model.Session, error) {
	key := r.sessionKey(id)

	var (
		session *model.Session
		fnErr   error
	)
	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
			session = &model.Session{}
		case err != nil:
			return err
		default:
			if session, err = decodeSession(raw, id); err != nil {
				return err
			}
		}

		if fnErr = fn(session); fnErr != nil {
			return fnErr
		}

		data, err := json.Marshal(session)
		if err != nil {
			return goerr.Wrap(err, "failed to marshal session", goerr.V("session_id", id))
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		return err
	}

	for i := 0; i < redisMaxRetries; i++ {
		err := r.rdb.Watch(ctx, txf, key)
		if err == nil {
			return session, nil
		}
		if fnErr != nil {
			return nil, fnErr
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return nil, model.StorageError(err, "failed to update session", goerr.V("session_id", id))
	}

	return nil, model.StorageError(redis.TxFailedErr, "session update kept conflicting",
		goerr.V("session_id", id),
		goerr.V("retries", redisMaxRetries))
}

func (r *Redis) DeleteSession(ctx context.Context, id model.SessionID) (bool, error) {
	n, err := r.rdb.Del(ctx, r.sessionKey(id)).Result()
	if err != nil {
		return false, model.StorageError(err, "failed to delete session", goerr.V("session_id", id))
	}
	return n > 0, nil
}

func decodeSession(raw []byte, id model.SessionID) (*model.Session, error) {
	var session model.Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, model.StorageError(err, "session record is corrupt", goerr.V("session_id", id))
	}
	return &session, nil
}
