// Package store persists run history, per-operation outcomes, and the
// synthesized technique cache in a workspace-local SQLite database.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"gemsmith/internal/logging"
	"gemsmith/internal/sequencer"
)

// Store manages the gemsmith run database.
type Store struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex
}

// RunRecord summarizes one persisted plan execution.
type RunRecord struct {
	ID              string
	StartedAt       time.Time
	Reasoning       string
	State           string
	ArtifactName    string
	MaterialApplied bool
	OperationCount  int
	Preset          string
}

// Open creates or opens the run store under the workspace.
func Open(workspace string) (*Store, error) {
	dbPath := filepath.Join(workspace, ".gemsmith", "runs.db")
	return OpenPath(dbPath)
}

// OpenPath creates or opens the run store at an explicit path.
func OpenPath(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %s: %w", pragma, err)
		}
	}

	s := &Store{db: db, dbPath: dbPath}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logging.Store("run store opened at %s", dbPath)
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.dbPath
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started_at DATETIME NOT NULL,
		reasoning TEXT NOT NULL,
		state TEXT NOT NULL,
		artifact_name TEXT,
		material_applied INTEGER NOT NULL DEFAULT 0,
		operation_count INTEGER NOT NULL,
		preset TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

	CREATE TABLE IF NOT EXISTS operation_outcomes (
		run_id TEXT NOT NULL,
		op_index INTEGER NOT NULL,
		operation TEXT NOT NULL,
		status TEXT NOT NULL,
		artifact_name TEXT,
		error TEXT,
		duration_ms INTEGER NOT NULL,
		details_json TEXT,
		PRIMARY KEY (run_id, op_index)
	);
	CREATE INDEX IF NOT EXISTS idx_outcomes_run ON operation_outcomes(run_id);

	CREATE TABLE IF NOT EXISTS techniques (
		name TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		origin TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveRun persists a completed run and its outcome log, returning the run ID.
func (s *Store) SaveRun(reasoning, preset string, result *sequencer.Result) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	runID := uuid.New().String()
	artifactName := ""
	if result.Artifact != nil {
		artifactName = result.Artifact.Name
	}

	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO runs (id, started_at, reasoning, state, artifact_name, material_applied, operation_count, preset)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, time.Now().UTC(), reasoning, string(result.State), artifactName,
		boolToInt(result.MaterialApplied), len(result.OutcomeLog), preset,
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}

	for _, outcome := range result.OutcomeLog {
		outcomeArtifact := ""
		if outcome.Artifact != nil {
			outcomeArtifact = outcome.Artifact.Name
		}
		details, _ := json.Marshal(map[string]any{"backend": backendOf(outcome)})
		_, err = tx.Exec(
			`INSERT INTO operation_outcomes (run_id, op_index, operation, status, artifact_name, error, duration_ms, details_json)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, outcome.Index, outcome.Operation, string(outcome.Status),
			outcomeArtifact, outcome.Error, outcome.Duration.Milliseconds(), string(details),
		)
		if err != nil {
			return "", fmt.Errorf("failed to insert outcome %d: %w", outcome.Index, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit run: %w", err)
	}

	logging.Store("saved run %s (%d outcomes)", runID, len(result.OutcomeLog))
	return runID, nil
}

func backendOf(outcome sequencer.OperationOutcome) string {
	if outcome.Artifact != nil {
		return outcome.Artifact.Backend
	}
	return ""
}

// LoadRuns returns the most recent runs, newest first.
func (s *Store) LoadRuns(limit int) ([]RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(
		`SELECT id, started_at, reasoning, state, artifact_name, material_applied, operation_count, COALESCE(preset, '')
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		var r RunRecord
		var materialApplied int
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.Reasoning, &r.State, &r.ArtifactName,
			&materialApplied, &r.OperationCount, &r.Preset); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.MaterialApplied = materialApplied != 0
		records = append(records, r)
	}
	return records, rows.Err()
}

// LoadOutcomes returns the outcome log of one run in plan order.
func (s *Store) LoadOutcomes(runID string) ([]sequencer.OperationOutcome, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		`SELECT op_index, operation, status, COALESCE(error, ''), duration_ms
		 FROM operation_outcomes WHERE run_id = ? ORDER BY op_index`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []sequencer.OperationOutcome
	for rows.Next() {
		var o sequencer.OperationOutcome
		var status string
		var durationMS int64
		if err := rows.Scan(&o.Index, &o.Operation, &status, &o.Error, &durationMS); err != nil {
			return nil, fmt.Errorf("failed to scan outcome: %w", err)
		}
		o.Status = sequencer.OutcomeStatus(status)
		o.Duration = time.Duration(durationMS) * time.Millisecond
		outcomes = append(outcomes, o)
	}
	return outcomes, rows.Err()
}

// SaveTechnique upserts a synthesized technique into the cache.
func (s *Store) SaveTechnique(name, source, origin string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	_, err := s.db.Exec(
		`INSERT INTO techniques (name, source, origin, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET source = excluded.source, origin = excluded.origin, updated_at = excluded.updated_at`,
		name, source, origin, now, now)
	if err != nil {
		return fmt.Errorf("failed to save technique %s: %w", name, err)
	}
	logging.StoreDebug("cached technique %s (origin %s)", name, origin)
	return nil
}

// LookupTechnique retrieves cached technique source by operation name.
func (s *Store) LookupTechnique(name string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var source string
	err := s.db.QueryRow(`SELECT source FROM techniques WHERE name = ?`, name).Scan(&source)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to look up technique %s: %w", name, err)
	}
	return source, true, nil
}

// TechniqueEntry is one row of the technique cache listing.
type TechniqueEntry struct {
	Name      string
	Origin    string
	UpdatedAt time.Time
}

// ListTechniques returns all cached techniques sorted by name.
func (s *Store) ListTechniques() ([]TechniqueEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT name, origin, updated_at FROM techniques ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list techniques: %w", err)
	}
	defer rows.Close()

	var entries []TechniqueEntry
	for rows.Next() {
		var e TechniqueEntry
		if err := rows.Scan(&e.Name, &e.Origin, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan technique: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Lookup and Save satisfy the synthesizer's cache contract.

// Lookup implements the technique cache lookup.
func (s *Store) Lookup(name string) (string, bool, error) {
	return s.LookupTechnique(name)
}

// Save implements the technique cache write-through.
func (s *Store) Save(name, source, origin string) error {
	return s.SaveTechnique(name, source, origin)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
