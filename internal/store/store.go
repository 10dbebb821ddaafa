package store

import (
	"context"

	"github.com/therealashik/julesctl/internal/models"
)

// Store is the local mirror of remote sessions and activities. It exists to
// warm-start views before the first fetch completes; the remote API remains
// the source of truth and the mirror is overwritten on every sync.
type Store interface {
	// Sessions
	UpsertSession(ctx context.Context, s *models.Session) error
	UpsertSessions(ctx context.Context, sessions []models.Session) error
	GetSession(ctx context.Context, name string) (*models.Session, error)
	ListSessions(ctx context.Context) ([]models.Session, error)
	DeleteSession(ctx context.Context, name string) error

	// Activities
	UpsertActivities(ctx context.Context, sessionName string, activities []models.Activity) error
	ListActivities(ctx context.Context, sessionName string) ([]models.Activity, error)
	LatestActivityTime(ctx context.Context, sessionName string) (string, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
