package model

import (
	"context"
	"encoding/json"
	"time"
)

// SessionKey addresses one session.
type SessionKey struct {
	AppName   string `json:"app_name"`
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
}

// Event is one entry of the append-only turn log.
type Event struct {
	Author    string    `json:"author"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is the durable per-user conversation context.
// State is kept raw so a corrupted document can still be loaded and reported.
type Session struct {
	AppName   string          `json:"app_name"`
	UserID    string          `json:"user_id"`
	ID        string          `json:"session_id"`
	State     json.RawMessage `json:"state"`
	Events    []Event         `json:"events"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Key returns the session's address.
func (s *Session) Key() SessionKey {
	return SessionKey{AppName: s.AppName, UserID: s.UserID, SessionID: s.ID}
}

// SessionSummary is what List returns.
type SessionSummary struct {
	ID        string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type SessionRepository interface {
	// CreateOrReplace stores a session with empty events. An empty sessionID allocates a new id.
	CreateOrReplace(ctx context.Context, appName, userID, sessionID string, state json.RawMessage) (*Session, error)

	// Get loads one session; a missing session yields an error matching repo.ErrSessionNotFound.
	Get(ctx context.Context, key SessionKey) (*Session, error)

	// Save replaces the whole session document (state and events) atomically.
	Save(ctx context.Context, session *Session) error

	// List returns the user's sessions, most recently updated first.
	List(ctx context.Context, appName, userID string) ([]SessionSummary, error)

	// Delete removes a session. Deleting a missing session is not an error.
	Delete(ctx context.Context, key SessionKey) error
}

// Locker serializes turns of the same session.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

func (k SessionKey) String() string {
	return k.AppName + ":" + k.UserID + ":" + k.SessionID
}
