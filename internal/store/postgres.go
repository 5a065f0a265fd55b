package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/match-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS profiles (
	id         TEXT PRIMARY KEY,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS profile_fields (
	profile_id             TEXT NOT NULL REFERENCES profiles(id),
	kind                   TEXT NOT NULL,
	value                  TEXT NOT NULL,
	source                 TEXT NOT NULL,
	observed_at            TIMESTAMPTZ NOT NULL,
	verification_count     INT NOT NULL DEFAULT 0,
	cross_validation_count INT NOT NULL DEFAULT 0,
	updated_at             TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (profile_id, kind)
);

CREATE TABLE IF NOT EXISTS field_history (
	id                     BIGSERIAL PRIMARY KEY,
	profile_id             TEXT NOT NULL,
	kind                   TEXT NOT NULL,
	value                  TEXT NOT NULL,
	source                 TEXT NOT NULL,
	observed_at            TIMESTAMPTZ NOT NULL,
	verification_count     INT NOT NULL DEFAULT 0,
	cross_validation_count INT NOT NULL DEFAULT 0,
	replaced_at            TIMESTAMPTZ NOT NULL,
	reason                 TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS matches (
	pair_id     TEXT PRIMARY KEY,
	profile_a   TEXT NOT NULL,
	profile_b   TEXT NOT NULL,
	score_ab    DOUBLE PRECISION NOT NULL,
	score_ba    DOUBLE PRECISION NOT NULL,
	combined    DOUBLE PRECISION NOT NULL,
	strategy    TEXT NOT NULL,
	tier        TEXT NOT NULL,
	breakdown   JSONB NOT NULL,
	computed_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS rescore_checkpoints (
	run_id          TEXT PRIMARY KEY,
	last_pair_index BIGINT NOT NULL,
	total_pairs     BIGINT NOT NULL,
	updated_at      TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_field_history_profile ON field_history(profile_id, kind);
CREATE INDEX IF NOT EXISTS idx_matches_combined ON matches(combined);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) EnsureProfile(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO profiles (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`, id)
	return eris.Wrapf(err, "postgres: ensure profile %s", id)
}

func (s *PostgresStore) GetProfile(ctx context.Context, id string) (*model.Profile, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM profiles WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: check profile %s", id)
	}
	if !exists {
		return nil, ErrNotFound
	}

	rows, err := s.pool.Query(ctx,
		`SELECT kind, value, source, observed_at, verification_count, cross_validation_count
		 FROM profile_fields WHERE profile_id = $1`, id)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: query fields %s", id)
	}
	defer rows.Close()

	p := model.NewProfile(id)
	for rows.Next() {
		var kind, value, source string
		var observedAt time.Time
		var verif, crossVal int
		if err := rows.Scan(&kind, &value, &source, &observedAt, &verif, &crossVal); err != nil {
			return nil, eris.Wrap(err, "postgres: scan field")
		}
		p.Set(model.Field{
			Kind:  model.FieldKind(kind),
			Value: value,
			Provenance: model.FieldProvenance{
				Source:               model.SourceKind(source),
				ObservedAt:           observedAt,
				VerificationCount:    verif,
				CrossValidationCount: crossVal,
			},
		})
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate fields")
	}
	return p, nil
}

func (s *PostgresStore) ListProfileIDs(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT id FROM profiles ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list profiles")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "postgres: scan profile id")
		}
		ids = append(ids, id)
	}
	return ids, eris.Wrap(rows.Err(), "postgres: iterate profiles")
}

func (s *PostgresStore) UpsertField(ctx context.Context, profileID string, f model.Field) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO profile_fields
		   (profile_id, kind, value, source, observed_at, verification_count, cross_validation_count, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		 ON CONFLICT (profile_id, kind) DO UPDATE SET
		   value = EXCLUDED.value,
		   source = EXCLUDED.source,
		   observed_at = EXCLUDED.observed_at,
		   verification_count = EXCLUDED.verification_count,
		   cross_validation_count = EXCLUDED.cross_validation_count,
		   updated_at = now()`,
		profileID, string(f.Kind), f.Value, string(f.Provenance.Source),
		f.Provenance.ObservedAt.UTC(), f.Provenance.VerificationCount,
		f.Provenance.CrossValidationCount,
	)
	return eris.Wrapf(err, "postgres: upsert field %s/%s", profileID, f.Kind)
}

func (s *PostgresStore) AppendHistory(ctx context.Context, h model.FieldHistory) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO field_history
		   (profile_id, kind, value, source, observed_at, verification_count, cross_validation_count, replaced_at, reason)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		h.ProfileID, string(h.Field), h.Value, string(h.Provenance.Source),
		h.Provenance.ObservedAt.UTC(), h.Provenance.VerificationCount,
		h.Provenance.CrossValidationCount, h.ReplacedAt.UTC(), h.Reason,
	)
	return eris.Wrapf(err, "postgres: append history %s/%s", h.ProfileID, h.Field)
}

func (s *PostgresStore) ListHistory(ctx context.Context, profileID string, kind model.FieldKind) ([]model.FieldHistory, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT value, source, observed_at, verification_count, cross_validation_count, replaced_at, reason
		 FROM field_history WHERE profile_id = $1 AND kind = $2 ORDER BY replaced_at`,
		profileID, string(kind))
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list history %s/%s", profileID, kind)
	}
	defer rows.Close()

	var history []model.FieldHistory
	for rows.Next() {
		h := model.FieldHistory{ProfileID: profileID, Field: kind}
		var source string
		if err := rows.Scan(&h.Value, &source, &h.Provenance.ObservedAt,
			&h.Provenance.VerificationCount, &h.Provenance.CrossValidationCount,
			&h.ReplacedAt, &h.Reason); err != nil {
			return nil, eris.Wrap(err, "postgres: scan history")
		}
		h.Provenance.Source = model.SourceKind(source)
		history = append(history, h)
	}
	return history, eris.Wrap(rows.Err(), "postgres: iterate history")
}

func (s *PostgresStore) SaveMatch(ctx context.Context, m *model.BidirectionalMatch) error {
	breakdown, err := json.Marshal(m)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal match")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO matches
		   (pair_id, profile_a, profile_b, score_ab, score_ba, combined, strategy, tier, breakdown, computed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (pair_id) DO UPDATE SET
		   score_ab = EXCLUDED.score_ab,
		   score_ba = EXCLUDED.score_ba,
		   combined = EXCLUDED.combined,
		   strategy = EXCLUDED.strategy,
		   tier = EXCLUDED.tier,
		   breakdown = EXCLUDED.breakdown,
		   computed_at = EXCLUDED.computed_at`,
		m.PairID, m.ProfileA, m.ProfileB, m.ScoreAB, m.ScoreBA, m.Combined,
		m.Strategy, m.Tier, breakdown, m.ComputedAt.UTC(),
	)
	return eris.Wrapf(err, "postgres: save match %s", m.PairID)
}

func (s *PostgresStore) GetMatch(ctx context.Context, pairID string) (*model.BidirectionalMatch, error) {
	var breakdown []byte
	err := s.pool.QueryRow(ctx,
		`SELECT breakdown FROM matches WHERE pair_id = $1`, pairID).Scan(&breakdown)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get match %s", pairID)
	}

	var m model.BidirectionalMatch
	if err := json.Unmarshal(breakdown, &m); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal match")
	}
	return &m, nil
}

func (s *PostgresStore) GetCheckpoint(ctx context.Context, runID string) (*Checkpoint, error) {
	cp := Checkpoint{RunID: runID}
	err := s.pool.QueryRow(ctx,
		`SELECT last_pair_index, total_pairs, updated_at FROM rescore_checkpoints WHERE run_id = $1`,
		runID).Scan(&cp.LastPairIndex, &cp.TotalPairs, &cp.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get checkpoint %s", runID)
	}
	return &cp, nil
}

func (s *PostgresStore) SaveCheckpoint(ctx context.Context, cp Checkpoint) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO rescore_checkpoints (run_id, last_pair_index, total_pairs, updated_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (run_id) DO UPDATE SET
		   last_pair_index = EXCLUDED.last_pair_index,
		   total_pairs = EXCLUDED.total_pairs,
		   updated_at = now()`,
		cp.RunID, cp.LastPairIndex, cp.TotalPairs,
	)
	return eris.Wrapf(err, "postgres: save checkpoint %s", cp.RunID)
}

func (s *PostgresStore) DeleteCheckpoint(ctx context.Context, runID string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM rescore_checkpoints WHERE run_id = $1`, runID)
	return eris.Wrapf(err, "postgres: delete checkpoint %s", runID)
}
