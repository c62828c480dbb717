// Package sqlite provides a SQLite-backed log store for one physical
// location. The resilient primary/scratch layering lives in the failover
// package; this store only knows about its own file.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/ovanier/heatctl-go/internal/domain"
	"github.com/ovanier/heatctl-go/internal/storage"

	_ "modernc.org/sqlite"
)

// Store is a SQLite-backed log store.
type Store struct {
	db      *sql.DB
	path    string
	sources []string
}

// OpenMemory creates an in-memory store. Used in tests.
func OpenMemory(sources []string) (*Store, error) {
	return open(":memory:", sources)
}

// Open opens (or creates) a file-based store.
func Open(path string, sources []string) (*Store, error) {
	return open(path, sources)
}

func open(dsn string, sources []string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: keeps :memory: stores coherent and avoids writer
	// contention on the file stores.
	db.SetMaxOpenConns(1)

	store := &Store{db: db, path: dsn, sources: sources}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	return store, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(schema(len(s.sources)))
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the DSN the store was opened with.
func (s *Store) Path() string {
	return s.path
}

// Heater log

// AppendHeaterStateAt inserts a heater state row with an explicit
// timestamp. Deduplication against the previous state is the caller's
// responsibility.
func (s *Store) AppendHeaterStateAt(ctx context.Context, ts time.Time, on bool) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO heat_log (timestamp, state) VALUES (?, ?)
	`, ts, on)
	return err
}

// LastHeaterState returns the most recently inserted heater state. The
// second return value is false when the log is empty.
func (s *Store) LastHeaterState(ctx context.Context) (bool, bool, error) {
	var state bool
	err := s.db.QueryRowContext(ctx, `
		SELECT state FROM heat_log ORDER BY id DESC LIMIT 1
	`).Scan(&state)
	if err == sql.ErrNoRows {
		return false, false, nil
	}
	if err != nil {
		return false, false, err
	}
	return state, true, nil
}

// QueryHeaterLog returns the heater transitions in [start, end], oldest
// first.
func (s *Store) QueryHeaterLog(ctx context.Context, start, end time.Time) ([]domain.HeaterState, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, timestamp, state FROM heat_log
		WHERE timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp ASC, id ASC
	`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanHeaterStates(rows)
}

// AllHeaterStates returns every heater row in insertion order. Used by
// reconciliation.
func (s *Store) AllHeaterStates(ctx context.Context) ([]domain.HeaterState, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, timestamp, state FROM heat_log ORDER BY id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanHeaterStates(rows)
}

func scanHeaterStates(rows *sql.Rows) ([]domain.HeaterState, error) {
	var states []domain.HeaterState
	for rows.Next() {
		var entry domain.HeaterState
		if err := rows.Scan(&entry.ID, &entry.Timestamp, &entry.On); err != nil {
			return nil, err
		}
		states = append(states, entry)
	}
	return states, rows.Err()
}

// Temperature log

func (s *Store) sourceColumns() string {
	columns := make([]string, len(s.sources))
	for i := range s.sources {
		columns[i] = fmt.Sprintf("source%d", i+1)
	}
	return strings.Join(columns, ", ")
}

// AppendTemperaturesAt inserts one poll cycle row with an explicit
// timestamp. A source absent from the map leaves its column NULL.
func (s *Store) AppendTemperaturesAt(ctx context.Context, ts time.Time, values map[string]float64) error {
	placeholders := make([]string, len(s.sources)+1)
	args := make([]any, len(s.sources)+1)
	placeholders[0] = "?"
	args[0] = ts
	for i, name := range s.sources {
		placeholders[i+1] = "?"
		if v, ok := values[name]; ok {
			args[i+1] = v
		} else {
			args[i+1] = nil
		}
	}

	query := fmt.Sprintf(
		"INSERT INTO temperature_log (timestamp, %s) VALUES (%s)",
		s.sourceColumns(), strings.Join(placeholders, ", "),
	)
	_, err := s.db.ExecContext(ctx, query, args...)
	return err
}

// LatestTemperatures returns the most recent temperature row.
func (s *Store) LatestTemperatures(ctx context.Context) (domain.TemperatureRow, error) {
	query := fmt.Sprintf(
		"SELECT id, timestamp, %s FROM temperature_log ORDER BY timestamp DESC, id DESC LIMIT 1",
		s.sourceColumns(),
	)
	row, err := s.scanTemperatureRow(s.db.QueryRowContext(ctx, query))
	if err == sql.ErrNoRows {
		return domain.TemperatureRow{}, storage.ErrNotFound{Resource: "temperature_log", ID: "latest"}
	}
	return row, err
}

// QueryTemperatureLog returns the temperature rows in [start, end], oldest
// first.
func (s *Store) QueryTemperatureLog(ctx context.Context, start, end time.Time) ([]domain.TemperatureRow, error) {
	query := fmt.Sprintf(`
		SELECT id, timestamp, %s FROM temperature_log
		WHERE timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp ASC, id ASC
	`, s.sourceColumns())
	rows, err := s.db.QueryContext(ctx, query, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return s.scanTemperatureRows(rows)
}

// AllTemperatures returns every temperature row in insertion order. Used by
// reconciliation.
func (s *Store) AllTemperatures(ctx context.Context) ([]domain.TemperatureRow, error) {
	query := fmt.Sprintf(
		"SELECT id, timestamp, %s FROM temperature_log ORDER BY id ASC",
		s.sourceColumns(),
	)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return s.scanTemperatureRows(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanTemperatureRow(scanner rowScanner) (domain.TemperatureRow, error) {
	row := domain.TemperatureRow{Values: make(map[string]*float64, len(s.sources))}
	nullable := make([]sql.NullFloat64, len(s.sources))

	dest := make([]any, 0, len(s.sources)+2)
	dest = append(dest, &row.ID, &row.Timestamp)
	for i := range nullable {
		dest = append(dest, &nullable[i])
	}

	if err := scanner.Scan(dest...); err != nil {
		return domain.TemperatureRow{}, err
	}
	for i, name := range s.sources {
		if nullable[i].Valid {
			v := nullable[i].Float64
			row.Values[name] = &v
		} else {
			row.Values[name] = nil
		}
	}
	return row, nil
}

func (s *Store) scanTemperatureRows(rows *sql.Rows) ([]domain.TemperatureRow, error) {
	var result []domain.TemperatureRow
	for rows.Next() {
		row, err := s.scanTemperatureRow(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

// Setpoint log

// AppendSetpointsAt inserts a setpoint audit row with an explicit
// timestamp.
func (s *Store) AppendSetpointsAt(ctx context.Context, ts time.Time, sp domain.Setpoints) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO setpoint_log (timestamp, off_peak, full_cost) VALUES (?, ?, ?)
	`, ts, sp.OffPeak, sp.FullCost)
	return err
}

// AllSetpoints returns every setpoint row in insertion order. Used by
// reconciliation.
func (s *Store) AllSetpoints(ctx context.Context) ([]domain.SetpointEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, timestamp, off_peak, full_cost FROM setpoint_log ORDER BY id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.SetpointEntry
	for rows.Next() {
		var entry domain.SetpointEntry
		if err := rows.Scan(&entry.ID, &entry.Timestamp, &entry.OffPeak, &entry.FullCost); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Reconciliation

// ImportFrom bulk-inserts every row of the source store into this one,
// preserving original timestamps and insertion order, in a single
// transaction. Either all tables merge or none do.
func (s *Store) ImportFrom(ctx context.Context, src *Store) error {
	heaterStates, err := src.AllHeaterStates(ctx)
	if err != nil {
		return fmt.Errorf("read source heat_log: %w", err)
	}
	temperatures, err := src.AllTemperatures(ctx)
	if err != nil {
		return fmt.Errorf("read source temperature_log: %w", err)
	}
	setpoints, err := src.AllSetpoints(ctx)
	if err != nil {
		return fmt.Errorf("read source setpoint_log: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, entry := range heaterStates {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO heat_log (timestamp, state) VALUES (?, ?)
		`, entry.Timestamp, entry.On); err != nil {
			return fmt.Errorf("merge heat_log: %w", err)
		}
	}

	insertTemps := fmt.Sprintf(
		"INSERT INTO temperature_log (timestamp, %s) VALUES (?%s)",
		s.sourceColumns(), strings.Repeat(", ?", len(s.sources)),
	)
	for _, row := range temperatures {
		args := make([]any, 0, len(s.sources)+1)
		args = append(args, row.Timestamp)
		for _, name := range s.sources {
			if v := row.Values[name]; v != nil {
				args = append(args, *v)
			} else {
				args = append(args, nil)
			}
		}
		if _, err := tx.ExecContext(ctx, insertTemps, args...); err != nil {
			return fmt.Errorf("merge temperature_log: %w", err)
		}
	}

	for _, entry := range setpoints {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO setpoint_log (timestamp, off_peak, full_cost) VALUES (?, ?, ?)
		`, entry.Timestamp, entry.OffPeak, entry.FullCost); err != nil {
			return fmt.Errorf("merge setpoint_log: %w", err)
		}
	}

	return tx.Commit()
}
