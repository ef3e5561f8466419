package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/icusim/icu-sim/pkg/scenario"
	"github.com/icusim/icu-sim/pkg/session"
)

var (
	// ErrSessionNotFound means the session id has no live state
	// (never created, expired, or reset).
	ErrSessionNotFound = errors.New("session not found")

	// ErrScenarioNotFound means no case file exists for the id.
	ErrScenarioNotFound = errors.New("scenario not found")

	// ErrScenarioFormat means the case file exists but cannot be
	// parsed or fails validation. Surfaced on direct load; listing
	// skips such files silently.
	ErrScenarioFormat = errors.New("scenario format invalid")
)

// Storage persists live session state and serves static scenario
// documents. Sessions are Redis-backed; scenarios are read from disk.
type Storage interface {
	SaveSession(ctx context.Context, s *session.Session) error
	LoadSession(ctx context.Context, id uuid.UUID) (*session.Session, error)
	DeleteSession(ctx context.Context, id uuid.UUID) error

	GetScenario(ctx context.Context, id string) (*scenario.Scenario, error)
	ListScenarios(ctx context.Context) ([]scenario.Summary, error)

	Ping(ctx context.Context) error
	Close() error
}
