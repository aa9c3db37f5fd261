package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/lifesignal/backend/internal/models"
)

// SQLiteStore is the local store backend. It implements all three
// repository interfaces over a single database file, for offline and
// development use.
type SQLiteStore struct {
	db *sql.DB
}

var (
	_ EventRepository       = (*SQLiteStore)(nil)
	_ InsightRepository     = (*SQLiteStore)(nil)
	_ ComputationRepository = (*SQLiteStore)(nil)
)

// OpenSQLite opens (or creates) the database at path, configures pragmas
// and runs migrations.
func OpenSQLite(path string) (*SQLiteStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	return initSQLite(db)
}

// OpenSQLiteMemory opens an in-memory database for testing.
func OpenSQLiteMemory() (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open sqlite memory: %w", err)
	}
	return initSQLite(db)
}

func initSQLite(db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db}
	if err := s.configurePragmas(); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) configurePragmas() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("pragma %q: %w", p, err)
		}
	}
	return nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
CREATE TABLE IF NOT EXISTS events (
	id         TEXT PRIMARY KEY,
	type       TEXT NOT NULL,
	created_at TEXT NOT NULL,
	properties TEXT NOT NULL DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS idx_events_type_created ON events(type, created_at);

CREATE TABLE IF NOT EXISTS correlation_insights (
	id             TEXT PRIMARY KEY,
	source_metric  TEXT NOT NULL,
	target_metric  TEXT NOT NULL,
	lag_days       INTEGER NOT NULL,
	coefficient    REAL NOT NULL,
	effect_size    REAL NOT NULL,
	occurrences    INTEGER NOT NULL,
	confidence     TEXT NOT NULL,
	decay_factor   REAL NOT NULL,
	type           TEXT NOT NULL,
	strength       TEXT NOT NULL,
	category       TEXT NOT NULL,
	description    TEXT NOT NULL,
	advice         TEXT,
	first_observed TEXT NOT NULL,
	last_validated TEXT NOT NULL,
	deleted_at     TEXT
);
-- Partial: soft-deleted rows stay behind, and the same relationship must
-- be re-creatable under a fresh id after its predecessor decayed away.
CREATE UNIQUE INDEX IF NOT EXISTS idx_insights_active_natural_key
	ON correlation_insights(source_metric, target_metric, lag_days)
	WHERE deleted_at IS NULL;

CREATE TABLE IF NOT EXISTS computation_records (
	id                 TEXT PRIMARY KEY,
	window_start       TEXT NOT NULL,
	window_end         TEXT NOT NULL,
	data_points        INTEGER NOT NULL,
	metrics_analyzed   INTEGER NOT NULL,
	correlations_found INTEGER NOT NULL,
	insights_created   INTEGER NOT NULL,
	insights_validated INTEGER NOT NULL,
	insights_decayed   INTEGER NOT NULL,
	insights_removed   INTEGER NOT NULL,
	duration_ms        INTEGER NOT NULL,
	cloud_enriched     INTEGER NOT NULL,
	computed_at        TEXT NOT NULL
);`
	_, err := s.db.Exec(schema)
	return err
}

// InsertEvent stores one raw event, for ingestion tooling and tests.
func (s *SQLiteStore) InsertEvent(ctx context.Context, evt models.Event) error {
	props, err := json.Marshal(evt.Properties)
	if err != nil {
		return fmt.Errorf("marshal properties: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO events (id, type, created_at, properties) VALUES (?, ?, ?, ?)`,
		evt.ID, string(evt.Type), evt.CreatedAt.UTC().Format(time.RFC3339), string(props))
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func (s *SQLiteStore) QueryByTypesAndDateRange(ctx context.Context, types []models.EventType, from, to time.Time) ([]models.Event, error) {
	if len(types) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(types))
	args := make([]any, 0, len(types)+2)
	for i, t := range types {
		placeholders[i] = "?"
		args = append(args, string(t))
	}
	args = append(args, from.UTC().Format(time.RFC3339), to.UTC().Format(time.RFC3339))

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT id, type, created_at, properties FROM events
		 WHERE type IN (%s) AND created_at >= ? AND created_at < ?
		 ORDER BY created_at ASC`, strings.Join(placeholders, ",")), args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		var evt models.Event
		var typ, createdAt, props string
		if err := rows.Scan(&evt.ID, &typ, &createdAt, &props); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		evt.Type = models.EventType(typ)
		evt.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parse event timestamp: %w", err)
		}
		if err := json.Unmarshal([]byte(props), &evt.Properties); err != nil {
			return nil, fmt.Errorf("unmarshal event properties: %w", err)
		}
		events = append(events, evt)
	}
	return events, rows.Err()
}

func (s *SQLiteStore) Load(ctx context.Context, includeDeleted bool) ([]models.CorrelationInsight, error) {
	query := `SELECT id, source_metric, target_metric, lag_days, coefficient,
		effect_size, occurrences, confidence, decay_factor, type, strength,
		category, description, advice, first_observed, last_validated, deleted_at
		FROM correlation_insights`
	if !includeDeleted {
		query += ` WHERE deleted_at IS NULL`
	}
	query += ` ORDER BY last_validated DESC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("load insights: %w", err)
	}
	defer rows.Close()

	var insights []models.CorrelationInsight
	for rows.Next() {
		var ins models.CorrelationInsight
		var confidence, typ, strength string
		var advice, deletedAt sql.NullString
		var firstObserved, lastValidated string
		if err := rows.Scan(&ins.ID, &ins.SourceMetric, &ins.TargetMetric,
			&ins.LagDays, &ins.Coefficient, &ins.EffectSize, &ins.Occurrences,
			&confidence, &ins.DecayFactor, &typ, &strength, &ins.Category,
			&ins.Description, &advice, &firstObserved, &lastValidated, &deletedAt); err != nil {
			return nil, fmt.Errorf("scan insight: %w", err)
		}
		ins.Confidence = models.ConfidenceTier(confidence)
		ins.Type = models.CorrelationType(typ)
		ins.Strength = models.CorrelationStrength(strength)
		if advice.Valid {
			ins.Advice = &advice.String
		}
		if ins.FirstObserved, err = time.Parse(time.RFC3339, firstObserved); err != nil {
			return nil, fmt.Errorf("parse first_observed: %w", err)
		}
		if ins.LastValidated, err = time.Parse(time.RFC3339, lastValidated); err != nil {
			return nil, fmt.Errorf("parse last_validated: %w", err)
		}
		if deletedAt.Valid {
			t, err := time.Parse(time.RFC3339, deletedAt.String)
			if err != nil {
				return nil, fmt.Errorf("parse deleted_at: %w", err)
			}
			ins.DeletedAt = &t
		}
		insights = append(insights, ins)
	}
	return insights, rows.Err()
}

func (s *SQLiteStore) Upsert(ctx context.Context, insights []models.CorrelationInsight) error {
	if len(insights) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO correlation_insights (id, source_metric, target_metric,
			lag_days, coefficient, effect_size, occurrences, confidence,
			decay_factor, type, strength, category, description, advice,
			first_observed, last_validated, deleted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)
		ON CONFLICT(id) DO UPDATE SET
			coefficient = excluded.coefficient,
			effect_size = excluded.effect_size,
			occurrences = excluded.occurrences,
			confidence = excluded.confidence,
			decay_factor = excluded.decay_factor,
			strength = excluded.strength,
			description = excluded.description,
			advice = excluded.advice,
			last_validated = excluded.last_validated,
			deleted_at = NULL`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, ins := range insights {
		var advice any
		if ins.Advice != nil {
			advice = *ins.Advice
		}
		_, err := stmt.ExecContext(ctx, ins.ID, ins.SourceMetric, ins.TargetMetric,
			ins.LagDays, ins.Coefficient, ins.EffectSize, ins.Occurrences,
			string(ins.Confidence), ins.DecayFactor, string(ins.Type),
			string(ins.Strength), ins.Category, ins.Description, advice,
			ins.FirstObserved.UTC().Format(time.RFC3339),
			ins.LastValidated.UTC().Format(time.RFC3339))
		if err != nil {
			return fmt.Errorf("upsert insight %s: %w", ins.ID, err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) SoftDeleteNotIn(ctx context.Context, ids []string) error {
	now := time.Now().UTC().Format(time.RFC3339)

	if len(ids) == 0 {
		_, err := s.db.ExecContext(ctx,
			`UPDATE correlation_insights SET deleted_at = ? WHERE deleted_at IS NULL`, now)
		if err != nil {
			return fmt.Errorf("soft delete insights: %w", err)
		}
		return nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, 0, len(ids)+1)
	args = append(args, now)
	for i, id := range ids {
		placeholders[i] = "?"
		args = append(args, id)
	}

	_, err := s.db.ExecContext(ctx, fmt.Sprintf(
		`UPDATE correlation_insights SET deleted_at = ?
		 WHERE deleted_at IS NULL AND id NOT IN (%s)`,
		strings.Join(placeholders, ",")), args...)
	if err != nil {
		return fmt.Errorf("soft delete insights: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Append(ctx context.Context, record models.ComputationRecord) error {
	cloudEnriched := 0
	if record.CloudEnriched {
		cloudEnriched = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO computation_records (id, window_start, window_end,
			data_points, metrics_analyzed, correlations_found,
			insights_created, insights_validated, insights_decayed,
			insights_removed, duration_ms, cloud_enriched, computed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.WindowStart.UTC().Format(time.RFC3339),
		record.WindowEnd.UTC().Format(time.RFC3339),
		record.DataPoints, record.MetricsAnalyzed, record.CorrelationsFound,
		record.InsightsCreated, record.InsightsValidated, record.InsightsDecayed,
		record.InsightsRemoved, record.DurationMS, cloudEnriched,
		record.ComputedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("append computation record: %w", err)
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context, limit int) ([]models.ComputationRecord, error) {
	query := `SELECT id, window_start, window_end, data_points,
		metrics_analyzed, correlations_found, insights_created,
		insights_validated, insights_decayed, insights_removed, duration_ms,
		cloud_enriched, computed_at
		FROM computation_records ORDER BY computed_at DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list computation records: %w", err)
	}
	defer rows.Close()

	var records []models.ComputationRecord
	for rows.Next() {
		var rec models.ComputationRecord
		var windowStart, windowEnd, computedAt string
		var cloudEnriched int
		if err := rows.Scan(&rec.ID, &windowStart, &windowEnd, &rec.DataPoints,
			&rec.MetricsAnalyzed, &rec.CorrelationsFound, &rec.InsightsCreated,
			&rec.InsightsValidated, &rec.InsightsDecayed, &rec.InsightsRemoved,
			&rec.DurationMS, &cloudEnriched, &computedAt); err != nil {
			return nil, fmt.Errorf("scan computation record: %w", err)
		}
		if rec.WindowStart, err = time.Parse(time.RFC3339, windowStart); err != nil {
			return nil, fmt.Errorf("parse window_start: %w", err)
		}
		if rec.WindowEnd, err = time.Parse(time.RFC3339, windowEnd); err != nil {
			return nil, fmt.Errorf("parse window_end: %w", err)
		}
		if rec.ComputedAt, err = time.Parse(time.RFC3339, computedAt); err != nil {
			return nil, fmt.Errorf("parse computed_at: %w", err)
		}
		rec.CloudEnriched = cloudEnriched != 0
		records = append(records, rec)
	}
	return records, rows.Err()
}
