// Package store persists profiles, field provenance history, match
// results, and rescore checkpoints behind a driver-agnostic interface.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/match-cli/internal/config"
	"github.com/sells-group/match-cli/internal/model"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = eris.New("store: not found")

// Checkpoint records batch-rescore progress so an interrupted run resumes
// from the last completed chunk instead of restarting the corpus.
type Checkpoint struct {
	RunID         string    `json:"run_id"`
	LastPairIndex int64     `json:"last_pair_index"`
	TotalPairs    int64     `json:"total_pairs"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Store defines the persistence interface for the match engine.
type Store interface {
	// Profiles
	EnsureProfile(ctx context.Context, id string) error
	GetProfile(ctx context.Context, id string) (*model.Profile, error)
	ListProfileIDs(ctx context.Context) ([]string, error)

	// Fields
	UpsertField(ctx context.Context, profileID string, f model.Field) error
	AppendHistory(ctx context.Context, h model.FieldHistory) error
	ListHistory(ctx context.Context, profileID string, kind model.FieldKind) ([]model.FieldHistory, error)

	// Match results
	SaveMatch(ctx context.Context, m *model.BidirectionalMatch) error
	GetMatch(ctx context.Context, pairID string) (*model.BidirectionalMatch, error)

	// Rescore checkpoints
	GetCheckpoint(ctx context.Context, runID string) (*Checkpoint, error)
	SaveCheckpoint(ctx context.Context, cp Checkpoint) error
	DeleteCheckpoint(ctx context.Context, runID string) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open creates a store for the configured driver.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "sqlite", "":
		return NewSQLite(cfg.DatabaseURL)
	case "postgres":
		return NewPostgres(ctx, cfg.DatabaseURL)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
}
