package repo

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mf-advisor-core/server/internal/agent/model"
	errx "github.com/mf-advisor-core/server/internal/core/error"
)

// ErrSessionNotFound is matched (errors.Is) by every backend's Get on a missing session.
var ErrSessionNotFound = errors.New("session not found")

func notFound(key model.SessionKey) error {
	return errx.NotFound(fmt.Errorf("%w: %s", ErrSessionNotFound, key))
}

func newSession(appName, userID, sessionID string, state json.RawMessage, now time.Time) *model.Session {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	return &model.Session{
		AppName:   appName,
		UserID:    userID,
		ID:        sessionID,
		State:     append(json.RawMessage(nil), state...),
		Events:    []model.Event{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func copySession(s *model.Session) *model.Session {
	out := *s
	out.State = append(json.RawMessage(nil), s.State...)
	out.Events = append([]model.Event{}, s.Events...)
	return &out
}
