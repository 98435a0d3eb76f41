// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package runstore keeps the tables of the most recent analysis run in
// SQLite so reports and exports can be produced without rerunning the
// pipeline. Each run replaces the previous contents.
package runstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/publishing-profiler/internal/aggregate"
	"github.com/pdiddy/publishing-profiler/pkg/types"
)

const (
	indexDir = "index"
	dbFile   = "profiler.db"
)

// ErrNoRun is returned when an institution has no stored run.
var ErrNoRun = errors.New("no stored run")

// Concentration scopes.
const (
	ScopeTarget    = "target"
	ScopeAll       = "all"
	ScopeDrillDown = "drill_down"
)

// Store manages the run database.
type Store struct {
	db  *sql.DB
	dir string
	now func() time.Time
}

// NewStore opens or creates the run database at dir/index/profiler.db and
// creates the schema if it does not exist.
func NewStore(dir string) (*Store, error) {
	dbDir := filepath.Join(dir, indexDir)
	if err := os.MkdirAll(dbDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}

	dbPath := filepath.Join(dbDir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, dir: dir, now: time.Now}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			institution TEXT NOT NULL,
			input_path TEXT,
			created_at TEXT NOT NULL,
			records INTEGER NOT NULL,
			target INTEGER NOT NULL,
			drill_down_agency TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_institution ON runs(institution)`,
		`CREATE TABLE IF NOT EXISTS aggregate_tables (
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			name TEXT NOT NULL,
			fields TEXT NOT NULL,
			excluded INTEGER NOT NULL,
			PRIMARY KEY (run_id, name)
		)`,
		`CREATE TABLE IF NOT EXISTS aggregate_rows (
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			name TEXT NOT NULL,
			position INTEGER NOT NULL,
			key TEXT NOT NULL,
			count INTEGER NOT NULL,
			PRIMARY KEY (run_id, name, position)
		)`,
		`CREATE TABLE IF NOT EXISTS concentration (
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			scope TEXT NOT NULL,
			position INTEGER NOT NULL,
			year INTEGER NOT NULL,
			target_percent REAL NOT NULL,
			num_groups INTEGER NOT NULL,
			groups_needed INTEGER NOT NULL,
			PRIMARY KEY (run_id, scope, position)
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Replace stores reps as the only runs in the store, discarding every
// earlier run, in one transaction. The returned reports carry their
// assigned run IDs and time.
func (s *Store) Replace(ctx context.Context, reps []Report) ([]Report, error) {
	seen := make(map[string]bool, len(reps))
	for _, rep := range reps {
		if rep.Run.Institution == "" {
			return nil, fmt.Errorf("saving run: institution is empty")
		}
		if seen[rep.Run.Institution] {
			return nil, fmt.Errorf("saving run: %s appears twice", rep.Run.Institution)
		}
		seen[rep.Run.Institution] = true
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM runs`); err != nil {
		return nil, fmt.Errorf("deleting previous runs: %w", err)
	}

	createdAt := s.now().UTC()
	out := make([]Report, len(reps))
	for i, rep := range reps {
		rep.Run.ID = uuid.NewString()
		rep.Run.CreatedAt = createdAt
		if err := insertReport(ctx, tx, rep); err != nil {
			return nil, err
		}
		out[i] = rep
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing runs: %w", err)
	}
	return out, nil
}

func insertReport(ctx context.Context, tx *sql.Tx, rep Report) error {
	agency := ""
	if rep.DrillDown != nil {
		agency = rep.DrillDown.Agency
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO runs (id, institution, input_path, created_at, records, target, drill_down_agency)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rep.Run.ID, rep.Run.Institution, rep.Run.InputPath,
		rep.Run.CreatedAt.Format(time.RFC3339Nano),
		rep.Run.Records, rep.Run.Target, agency,
	)
	if err != nil {
		return fmt.Errorf("inserting run of %s: %w", rep.Run.Institution, err)
	}

	for _, nt := range rep.tables() {
		if err := insertTable(ctx, tx, rep.Run.ID, nt.name, *nt.table); err != nil {
			return err
		}
	}
	for _, sc := range rep.scopes() {
		if err := insertConcentration(ctx, tx, rep.Run.ID, sc.scope, *sc.results); err != nil {
			return err
		}
	}
	return nil
}

func insertTable(ctx context.Context, tx *sql.Tx, runID, name string, t aggregate.Table) error {
	fieldsJSON, _ := json.Marshal(t.Fields)
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO aggregate_tables (run_id, name, fields, excluded) VALUES (?, ?, ?, ?)`,
		runID, name, string(fieldsJSON), t.Excluded,
	); err != nil {
		return fmt.Errorf("inserting table %s: %w", name, err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO aggregate_rows (run_id, name, position, key, count) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range t.Rows {
		keyJSON, _ := json.Marshal(r.Key)
		if _, err := stmt.ExecContext(ctx, runID, name, i, string(keyJSON), r.Count); err != nil {
			return fmt.Errorf("inserting row %d of %s: %w", i, name, err)
		}
	}
	return nil
}

func insertConcentration(ctx context.Context, tx *sql.Tx, runID, scope string, results []types.ConcentrationResult) error {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO concentration (run_id, scope, position, year, target_percent, num_groups, groups_needed)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i, c := range results {
		if _, err := stmt.ExecContext(ctx, runID, scope, i, c.Year, c.TargetPercent, c.NumGroups, c.GroupsNeeded); err != nil {
			return fmt.Errorf("inserting %s concentration: %w", scope, err)
		}
	}
	return nil
}

// Runs lists the stored runs ordered by institution.
func (s *Store) Runs(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, institution, input_path, created_at, records, target FROM runs ORDER BY institution`)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var (
		run       Run
		inputPath sql.NullString
		createdAt string
	)
	if err := sc.Scan(&run.ID, &run.Institution, &inputPath, &createdAt, &run.Records, &run.Target); err != nil {
		return Run{}, err
	}
	run.InputPath = inputPath.String
	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return Run{}, fmt.Errorf("parsing run time %q: %w", createdAt, err)
	}
	run.CreatedAt = t
	return run, nil
}

// Load returns the stored report of institution.
func (s *Store) Load(ctx context.Context, institution string) (Report, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, institution, input_path, created_at, records, target FROM runs
		 WHERE institution = ? ORDER BY created_at DESC LIMIT 1`, institution)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Report{}, fmt.Errorf("%w for %s", ErrNoRun, institution)
	}
	if err != nil {
		return Report{}, fmt.Errorf("loading run of %s: %w", institution, err)
	}

	var agency sql.NullString
	if err := s.db.QueryRowContext(ctx,
		`SELECT drill_down_agency FROM runs WHERE id = ?`, run.ID,
	).Scan(&agency); err != nil {
		return Report{}, fmt.Errorf("loading drill-down agency: %w", err)
	}

	rep := Report{Run: run}
	if agency.String != "" {
		rep.DrillDown = &DrillDownReport{Agency: agency.String}
	}

	for _, nt := range rep.tables() {
		t, err := s.loadTable(ctx, run.ID, nt.name)
		if err != nil {
			return Report{}, err
		}
		*nt.table = t
	}
	for _, sc := range rep.scopes() {
		results, err := s.loadConcentration(ctx, run.ID, sc.scope)
		if err != nil {
			return Report{}, err
		}
		*sc.results = results
	}
	return rep, nil
}

func (s *Store) loadTable(ctx context.Context, runID, name string) (aggregate.Table, error) {
	var (
		t          aggregate.Table
		fieldsJSON string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT fields, excluded FROM aggregate_tables WHERE run_id = ? AND name = ?`, runID, name,
	).Scan(&fieldsJSON, &t.Excluded)
	if errors.Is(err, sql.ErrNoRows) {
		return aggregate.Table{}, nil
	}
	if err != nil {
		return aggregate.Table{}, fmt.Errorf("loading table %s: %w", name, err)
	}
	if err := json.Unmarshal([]byte(fieldsJSON), &t.Fields); err != nil {
		return aggregate.Table{}, fmt.Errorf("decoding fields of %s: %w", name, err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT key, count FROM aggregate_rows WHERE run_id = ? AND name = ? ORDER BY position`, runID, name)
	if err != nil {
		return aggregate.Table{}, fmt.Errorf("querying rows of %s: %w", name, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			keyJSON string
			r       types.AggregateRow
		)
		if err := rows.Scan(&keyJSON, &r.Count); err != nil {
			return aggregate.Table{}, fmt.Errorf("scanning row of %s: %w", name, err)
		}
		if err := json.Unmarshal([]byte(keyJSON), &r.Key); err != nil {
			return aggregate.Table{}, fmt.Errorf("decoding key of %s: %w", name, err)
		}
		t.Rows = append(t.Rows, r)
	}
	return t, rows.Err()
}

func (s *Store) loadConcentration(ctx context.Context, runID, scope string) ([]types.ConcentrationResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT year, target_percent, num_groups, groups_needed FROM concentration
		 WHERE run_id = ? AND scope = ? ORDER BY position`, runID, scope)
	if err != nil {
		return nil, fmt.Errorf("querying %s concentration: %w", scope, err)
	}
	defer rows.Close()

	var results []types.ConcentrationResult
	for rows.Next() {
		var c types.ConcentrationResult
		if err := rows.Scan(&c.Year, &c.TargetPercent, &c.NumGroups, &c.GroupsNeeded); err != nil {
			return nil, fmt.Errorf("scanning %s concentration: %w", scope, err)
		}
		results = append(results, c)
	}
	return results, rows.Err()
}
