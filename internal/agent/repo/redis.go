package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mf-advisor-core/server/internal/agent/model"
	errx "github.com/mf-advisor-core/server/internal/core/error"
	logx "github.com/mf-advisor-core/server/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// RedisSessionRepository stores each session as one JSON value plus a per-user
// sorted-set index scored by update time.
type RedisSessionRepository struct {
	rdb redis.Cmdable
	ttl time.Duration
	now func() time.Time
}

func NewRedisSessionRepository(rdb redis.Cmdable, ttl time.Duration) *RedisSessionRepository {
	return &RedisSessionRepository{
		rdb: rdb,
		ttl: ttl,
		now: func() time.Time { return time.Now().UTC() },
	}
}

func (r *RedisSessionRepository) sessionKey(key model.SessionKey) string {
	return fmt.Sprintf("session:%s:%s:%s", key.AppName, key.UserID, key.SessionID)
}

func (r *RedisSessionRepository) indexKey(appName, userID string) string {
	return fmt.Sprintf("sessions:%s:%s", appName, userID)
}

func (r *RedisSessionRepository) CreateOrReplace(ctx context.Context, appName, userID, sessionID string, state json.RawMessage) (*model.Session, error) {
	s := newSession(appName, userID, sessionID, state, r.now())
	if err := r.write(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

func (r *RedisSessionRepository) Get(ctx context.Context, key model.SessionKey) (*model.Session, error) {
	k := r.sessionKey(key)

	raw, err := r.rdb.Get(ctx, k).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, notFound(key)
		}
		logx.Error().Err(err).Str("key", k).Msg("failed to load session from redis")
		return nil, errx.WrapRedis(err)
	}

	var s model.Session
	if err := json.Unmarshal(raw, &s); err != nil {
		logx.Error().Err(err).Str("key", k).Msg("failed to unmarshal session")
		return nil, errx.Corruption(fmt.Errorf("unmarshal session: %w", err))
	}
	if s.Events == nil {
		s.Events = []model.Event{}
	}
	return &s, nil
}

func (r *RedisSessionRepository) Save(ctx context.Context, session *model.Session) error {
	session.UpdatedAt = r.now()
	return r.write(ctx, session)
}

// write replaces the document and its index entry in one MULTI/EXEC.
func (r *RedisSessionRepository) write(ctx context.Context, s *model.Session) error {
	b, err := json.Marshal(s)
	if err != nil {
		logx.Error().Err(err).Str("sessionID", s.ID).Msg("failed to marshal session")
		return fmt.Errorf("marshal session: %w", err)
	}
	key := r.sessionKey(s.Key())
	idx := r.indexKey(s.AppName, s.UserID)

	_, err = r.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, key, b, r.ttl)
		p.ZAdd(ctx, idx, redis.Z{Score: float64(s.UpdatedAt.UnixNano()), Member: s.ID})
		// extend TTL on touch
		if r.ttl > 0 {
			p.Expire(ctx, idx, r.ttl)
		}
		return nil
	})
	if err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to write session to redis")
		return errx.WrapRedis(err)
	}
	return nil
}

func (r *RedisSessionRepository) List(ctx context.Context, appName, userID string) ([]model.SessionSummary, error) {
	idx := r.indexKey(appName, userID)

	ids, err := r.rdb.ZRevRange(ctx, idx, 0, -1).Result()
	if err != nil {
		logx.Error().Err(err).Str("key", idx).Msg("failed to read session index")
		return nil, errx.WrapRedis(err)
	}
	out := make([]model.SessionSummary, 0, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.sessionKey(model.SessionKey{AppName: appName, UserID: userID, SessionID: id})
	}
	vals, err := r.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		logx.Error().Err(err).Str("key", idx).Msg("failed to load sessions")
		return nil, errx.WrapRedis(err)
	}

	var stale []any
	for i, v := range vals {
		str, ok := v.(string)
		if !ok {
			// document expired before its index entry
			stale = append(stale, ids[i])
			continue
		}
		var s model.Session
		if err := json.Unmarshal([]byte(str), &s); err != nil {
			logx.Warn().Err(err).Str("key", keys[i]).Msg("skipping undecodable session")
			continue
		}
		out = append(out, model.SessionSummary{ID: s.ID, CreatedAt: s.CreatedAt, UpdatedAt: s.UpdatedAt})
	}
	if len(stale) > 0 {
		if err := r.rdb.ZRem(ctx, idx, stale...).Err(); err != nil {
			logx.Warn().Err(err).Str("key", idx).Msg("failed to prune session index")
		}
	}
	sortSummaries(out)
	return out, nil
}

func (r *RedisSessionRepository) Delete(ctx context.Context, key model.SessionKey) error {
	k := r.sessionKey(key)
	_, err := r.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, k)
		p.ZRem(ctx, r.indexKey(key.AppName, key.UserID), key.SessionID)
		return nil
	})
	if err != nil {
		logx.Error().Err(err).Str("key", k).Msg("failed to delete session from redis")
		return errx.WrapRedis(err)
	}
	return nil
}

var _ model.SessionRepository = (*RedisSessionRepository)(nil)
