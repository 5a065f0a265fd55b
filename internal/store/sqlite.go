package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/match-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS profiles (
	id         TEXT PRIMARY KEY,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS profile_fields (
	profile_id             TEXT NOT NULL REFERENCES profiles(id),
	kind                   TEXT NOT NULL,
	value                  TEXT NOT NULL,
	source                 TEXT NOT NULL,
	observed_at            DATETIME NOT NULL,
	verification_count     INTEGER NOT NULL DEFAULT 0,
	cross_validation_count INTEGER NOT NULL DEFAULT 0,
	updated_at             DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (profile_id, kind)
);

CREATE TABLE IF NOT EXISTS field_history (
	id                     INTEGER PRIMARY KEY AUTOINCREMENT,
	profile_id             TEXT NOT NULL,
	kind                   TEXT NOT NULL,
	value                  TEXT NOT NULL,
	source                 TEXT NOT NULL,
	observed_at            DATETIME NOT NULL,
	verification_count     INTEGER NOT NULL DEFAULT 0,
	cross_validation_count INTEGER NOT NULL DEFAULT 0,
	replaced_at            DATETIME NOT NULL,
	reason                 TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS matches (
	pair_id     TEXT PRIMARY KEY,
	profile_a   TEXT NOT NULL,
	profile_b   TEXT NOT NULL,
	score_ab    REAL NOT NULL,
	score_ba    REAL NOT NULL,
	combined    REAL NOT NULL,
	strategy    TEXT NOT NULL,
	tier        TEXT NOT NULL,
	breakdown   TEXT NOT NULL,
	computed_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS rescore_checkpoints (
	run_id          TEXT PRIMARY KEY,
	last_pair_index INTEGER NOT NULL,
	total_pairs     INTEGER NOT NULL,
	updated_at      DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_field_history_profile ON field_history(profile_id, kind);
CREATE INDEX IF NOT EXISTS idx_matches_combined ON matches(combined);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) EnsureProfile(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO profiles (id) VALUES (?) ON CONFLICT(id) DO NOTHING`, id)
	return eris.Wrapf(err, "sqlite: ensure profile %s", id)
}

func (s *SQLiteStore) GetProfile(ctx context.Context, id string) (*model.Profile, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM profiles WHERE id = ?`, id).Scan(&exists)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: check profile %s", id)
	}
	if exists == 0 {
		return nil, ErrNotFound
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT kind, value, source, observed_at, verification_count, cross_validation_count
		 FROM profile_fields WHERE profile_id = ?`, id)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: query fields %s", id)
	}
	defer rows.Close()

	p := model.NewProfile(id)
	for rows.Next() {
		var kind, value, source string
		var observedAt time.Time
		var verif, crossVal int
		if err := rows.Scan(&kind, &value, &source, &observedAt, &verif, &crossVal); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan field")
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
		return nil, eris.Wrap(err, "sqlite: iterate fields")
	}
	return p, nil
}

func (s *SQLiteStore) ListProfileIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM profiles ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list profiles")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan profile id")
		}
		ids = append(ids, id)
	}
	return ids, eris.Wrap(rows.Err(), "sqlite: iterate profiles")
}

func (s *SQLiteStore) UpsertField(ctx context.Context, profileID string, f model.Field) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO profile_fields
		   (profile_id, kind, value, source, observed_at, verification_count, cross_validation_count, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(profile_id, kind) DO UPDATE SET
		   value = excluded.value,
		   source = excluded.source,
		   observed_at = excluded.observed_at,
		   verification_count = excluded.verification_count,
		   cross_validation_count = excluded.cross_validation_count,
		   updated_at = excluded.updated_at`,
		profileID, string(f.Kind), f.Value, string(f.Provenance.Source),
		f.Provenance.ObservedAt.UTC(), f.Provenance.VerificationCount,
		f.Provenance.CrossValidationCount, time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: upsert field %s/%s", profileID, f.Kind)
}

func (s *SQLiteStore) AppendHistory(ctx context.Context, h model.FieldHistory) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO field_history
		   (profile_id, kind, value, source, observed_at, verification_count, cross_validation_count, replaced_at, reason)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		h.ProfileID, string(h.Field), h.Value, string(h.Provenance.Source),
		h.Provenance.ObservedAt.UTC(), h.Provenance.VerificationCount,
		h.Provenance.CrossValidationCount, h.ReplacedAt.UTC(), h.Reason,
	)
	return eris.Wrapf(err, "sqlite: append history %s/%s", h.ProfileID, h.Field)
}

func (s *SQLiteStore) ListHistory(ctx context.Context, profileID string, kind model.FieldKind) ([]model.FieldHistory, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT value, source, observed_at, verification_count, cross_validation_count, replaced_at, reason
		 FROM field_history WHERE profile_id = ? AND kind = ? ORDER BY replaced_at`,
		profileID, string(kind))
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list history %s/%s", profileID, kind)
	}
	defer rows.Close()

	var history []model.FieldHistory
	for rows.Next() {
		h := model.FieldHistory{ProfileID: profileID, Field: kind}
		var source string
		if err := rows.Scan(&h.Value, &source, &h.Provenance.ObservedAt,
			&h.Provenance.VerificationCount, &h.Provenance.CrossValidationCount,
			&h.ReplacedAt, &h.Reason); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan history")
		}
		h.Provenance.Source = model.SourceKind(source)
		history = append(history, h)
	}
	return history, eris.Wrap(rows.Err(), "sqlite: iterate history")
}

func (s *SQLiteStore) SaveMatch(ctx context.Context, m *model.BidirectionalMatch) error {
	breakdown, err := json.Marshal(m)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal match")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO matches
		   (pair_id, profile_a, profile_b, score_ab, score_ba, combined, strategy, tier, breakdown, computed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(pair_id) DO UPDATE SET
		   score_ab = excluded.score_ab,
		   score_ba = excluded.score_ba,
		   combined = excluded.combined,
		   strategy = excluded.strategy,
		   tier = excluded.tier,
		   breakdown = excluded.breakdown,
		   computed_at = excluded.computed_at`,
		m.PairID, m.ProfileA, m.ProfileB, m.ScoreAB, m.ScoreBA, m.Combined,
		m.Strategy, m.Tier, string(breakdown), m.ComputedAt.UTC(),
	)
	return eris.Wrapf(err, "sqlite: save match %s", m.PairID)
}

func (s *SQLiteStore) GetMatch(ctx context.Context, pairID string) (*model.BidirectionalMatch, error) {
	var breakdown string
	err := s.db.QueryRowContext(ctx,
		`SELECT breakdown FROM matches WHERE pair_id = ?`, pairID).Scan(&breakdown)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get match %s", pairID)
	}

	var m model.BidirectionalMatch
	if err := json.Unmarshal([]byte(breakdown), &m); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal match")
	}
	return &m, nil
}

func (s *SQLiteStore) GetCheckpoint(ctx context.Context, runID string) (*Checkpoint, error) {
	cp := Checkpoint{RunID: runID}
	err := s.db.QueryRowContext(ctx,
		`SELECT last_pair_index, total_pairs, updated_at FROM rescore_checkpoints WHERE run_id = ?`,
		runID).Scan(&cp.LastPairIndex, &cp.TotalPairs, &cp.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get checkpoint %s", runID)
	}
	return &cp, nil
}

func (s *SQLiteStore) SaveCheckpoint(ctx context.Context, cp Checkpoint) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO rescore_checkpoints (run_id, last_pair_index, total_pairs, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(run_id) DO UPDATE SET
		   last_pair_index = excluded.last_pair_index,
		   total_pairs = excluded.total_pairs,
		   updated_at = excluded.updated_at`,
		cp.RunID, cp.LastPairIndex, cp.TotalPairs, time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: save checkpoint %s", cp.RunID)
}

func (s *SQLiteStore) DeleteCheckpoint(ctx context.Context, runID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM rescore_checkpoints WHERE run_id = ?`, runID)
	return eris.Wrapf(err, "sqlite: delete checkpoint %s", runID)
}
