package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mf-advisor-core/server/internal/agent/model"
	errx "github.com/mf-advisor-core/server/internal/core/error"
	logx "github.com/mf-advisor-core/server/pkg/logger"
)

// SQLiteSessionRepository stores sessions in a single table, one row per session.
type SQLiteSessionRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteSessionRepository creates the schema if needed.
func NewSQLiteSessionRepository(ctx context.Context, db *sql.DB) (*SQLiteSessionRepository, error) {
	r := &SQLiteSessionRepository{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
	if err := r.initSchema(ctx); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return r, nil
}

func (r *SQLiteSessionRepository) initSchema(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS sessions (
		app_name TEXT NOT NULL,
		user_id TEXT NOT NULL,
		session_id TEXT NOT NULL,
		state_json TEXT NOT NULL,
		events_json TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (app_name, user_id, session_id)
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_user_updated ON sessions(app_name, user_id, updated_at);
	`
	_, err := r.db.ExecContext(ctx, query)
	return err
}

func (r *SQLiteSessionRepository) CreateOrReplace(ctx context.Context, appName, userID, sessionID string, state json.RawMessage) (*model.Session, error) {
	s := newSession(appName, userID, sessionID, state, r.now())
	if err := r.upsert(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

func (r *SQLiteSessionRepository) Get(ctx context.Context, key model.SessionKey) (*model.Session, error) {
	query := `
	SELECT state_json, events_json, created_at, updated_at
	FROM sessions WHERE app_name = ? AND user_id = ? AND session_id = ?
	`
	var (
		state, events        string
		createdAt, updatedAt int64
	)
	err := r.db.QueryRowContext(ctx, query, key.AppName, key.UserID, key.SessionID).
		Scan(&state, &events, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound(key)
		}
		logx.Error().Err(err).Str("sessionID", key.SessionID).Msg("failed to load session from sqlite")
		return nil, errx.WrapSQL(err)
	}

	s := &model.Session{
		AppName:   key.AppName,
		UserID:    key.UserID,
		ID:        key.SessionID,
		State:     json.RawMessage(state),
		Events:    []model.Event{},
		CreatedAt: time.Unix(0, createdAt).UTC(),
		UpdatedAt: time.Unix(0, updatedAt).UTC(),
	}
	if err := json.Unmarshal([]byte(events), &s.Events); err != nil {
		logx.Error().Err(err).Str("sessionID", key.SessionID).Msg("failed to unmarshal session events")
		return nil, errx.Corruption(fmt.Errorf("unmarshal events: %w", err))
	}
	return s, nil
}

func (r *SQLiteSessionRepository) Save(ctx context.Context, session *model.Session) error {
	session.UpdatedAt = r.now()
	return r.upsert(ctx, session)
}

func (r *SQLiteSessionRepository) upsert(ctx context.Context, s *model.Session) error {
	events, err := json.Marshal(s.Events)
	if err != nil {
		return fmt.Errorf("marshal events: %w", err)
	}
	state := string(s.State)
	if state == "" {
		state = "{}"
	}
	query := `
	INSERT INTO sessions (app_name, user_id, session_id, state_json, events_json, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(app_name, user_id, session_id) DO UPDATE SET
		state_json = excluded.state_json,
		events_json = excluded.events_json,
		created_at = excluded.created_at,
		updated_at = excluded.updated_at
	`
	_, err = r.db.ExecContext(ctx, query,
		s.AppName, s.UserID, s.ID, state, string(events),
		s.CreatedAt.UnixNano(), s.UpdatedAt.UnixNano(),
	)
	if err != nil {
		logx.Error().Err(err).Str("sessionID", s.ID).Msg("failed to write session to sqlite")
		return errx.WrapSQL(err)
	}
	return nil
}

func (r *SQLiteSessionRepository) List(ctx context.Context, appName, userID string) ([]model.SessionSummary, error) {
	query := `
	SELECT session_id, created_at, updated_at
	FROM sessions WHERE app_name = ? AND user_id = ?
	ORDER BY updated_at DESC, session_id ASC
	`
	rows, err := r.db.QueryContext(ctx, query, appName, userID)
	if err != nil {
		logx.Error().Err(err).Str("userID", userID).Msg("failed to list sessions")
		return nil, errx.WrapSQL(err)
	}
	defer rows.Close()

	out := make([]model.SessionSummary, 0)
	for rows.Next() {
		var (
			id                   string
			createdAt, updatedAt int64
		)
		if err := rows.Scan(&id, &createdAt, &updatedAt); err != nil {
			return nil, errx.WrapSQL(err)
		}
		out = append(out, model.SessionSummary{
			ID:        id,
			CreatedAt: time.Unix(0, createdAt).UTC(),
			UpdatedAt: time.Unix(0, updatedAt).UTC(),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, errx.WrapSQL(err)
	}
	return out, nil
}

func (r *SQLiteSessionRepository) Delete(ctx context.Context, key model.SessionKey) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE app_name = ? AND user_id = ? AND session_id = ?`,
		key.AppName, key.UserID, key.SessionID)
	if err != nil {
		logx.Error().Err(err).Str("sessionID", key.SessionID).Msg("failed to delete session from sqlite")
		return errx.WrapSQL(err)
	}
	return nil
}

var _ model.SessionRepository = (*SQLiteSessionRepository)(nil)
