package repo

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/mf-advisor-core/server/internal/agent/model"
)

// MemorySessionRepository keeps sessions in process memory. Used by the CLI and tests.
type MemorySessionRepository struct {
	mu       sync.RWMutex
	sessions map[model.SessionKey]*model.Session
	now      func() time.Time
}

func NewMemorySessionRepository() *MemorySessionRepository {
	return &MemorySessionRepository{
		sessions: make(map[model.SessionKey]*model.Session),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (r *MemorySessionRepository) CreateOrReplace(ctx context.Context, appName, userID, sessionID string, state json.RawMessage) (*model.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := newSession(appName, userID, sessionID, state, r.now())

	r.mu.Lock()
	r.sessions[s.Key()] = copySession(s)
	r.mu.Unlock()
	return s, nil
}

func (r *MemorySessionRepository) Get(ctx context.Context, key model.SessionKey) (*model.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[key]
	if !ok {
		return nil, notFound(key)
	}
	return copySession(s), nil
}

func (r *MemorySessionRepository) Save(ctx context.Context, session *model.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	session.UpdatedAt = r.now()

	r.mu.Lock()
	r.sessions[session.Key()] = copySession(session)
	r.mu.Unlock()
	return nil
}

func (r *MemorySessionRepository) List(ctx context.Context, appName, userID string) ([]model.SessionSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	out := make([]model.SessionSummary, 0)
	for k, s := range r.sessions {
		if k.AppName == appName && k.UserID == userID {
			out = append(out, model.SessionSummary{ID: s.ID, CreatedAt: s.CreatedAt, UpdatedAt: s.UpdatedAt})
		}
	}
	r.mu.RUnlock()

	sortSummaries(out)
	return out, nil
}

func (r *MemorySessionRepository) Delete(ctx context.Context, key model.SessionKey) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	delete(r.sessions, key)
	r.mu.Unlock()
	return nil
}

// sortSummaries orders most recent first, ties broken by id.
func sortSummaries(s []model.SessionSummary) {
	sort.Slice(s, func(i, j int) bool {
		if !s[i].UpdatedAt.Equal(s[j].UpdatedAt) {
			return s[i].UpdatedAt.After(s[j].UpdatedAt)
		}
		return s[i].ID < s[j].ID
	})
}

var _ model.SessionRepository = (*MemorySessionRepository)(nil)
