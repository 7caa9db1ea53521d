package results

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/GoSim-25-26J-441/readout-calibration/pkg/models"
)

//go:embed schema.sql
var schemaSQL string

const currentSchemaVersion = 1

// SQLiteStore keeps records in a SQLite database in WAL mode.
type SQLiteStore struct {
	db    *sql.DB
	codec *Compressor
}

// OpenSQLite creates or opens the database at path. ":memory:" gives a
// private in-memory database.
func OpenSQLite(path string, compressionLevel int) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite has a single writer; one connection also keeps :memory: databases shared.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	codec, err := NewCompressor(compressionLevel)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db, codec: codec}, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// Put inserts rec. Ids are unique; a second Put with the same id fails.
func (s *SQLiteStore) Put(ctx context.Context, rec *Record) error {
	if err := validateRecord(rec); err != nil {
		return err
	}
	r := rec.Result
	var beta sql.NullFloat64
	if r.Beta != nil {
		beta = sql.NullFloat64{Float64: *r.Beta, Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO results (id, job_id, created_at, pulse_type, amplitude, frequency, beta, fidelity, iq_payload)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.JobID, rec.CreatedAt.UnixNano(), string(r.PulseType),
		r.Amplitude, r.Frequency, beta, r.Fidelity, s.codec.EncodeClouds(r.IQData0, r.IQData1))
	if err != nil {
		return fmt.Errorf("insert result %s: %w", rec.ID, err)
	}
	return nil
}

const selectColumns = `SELECT id, job_id, created_at, pulse_type, amplitude, frequency, beta, fidelity, iq_payload FROM results`

// Get returns the record with id or ErrNotFound.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id)
	rec, err := s.scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return rec, err
}

// List returns records matching f in id order.
func (s *SQLiteStore) List(ctx context.Context, f Filter) ([]*Record, error) {
	var (
		where []string
		args  []any
	)
	if f.JobID != "" {
		where = append(where, "job_id = ?")
		args = append(args, f.JobID)
	}
	q := selectColumns
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY id"
	switch {
	case f.Limit > 0:
		q += " LIMIT ?"
		args = append(args, f.Limit)
	case f.Offset > 0:
		// sqlite only accepts OFFSET after a LIMIT
		q += " LIMIT -1"
	}
	if f.Offset > 0 {
		q += " OFFSET ?"
		args = append(args, f.Offset)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		rec, err := s.scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func (s *SQLiteStore) scan(row scanner) (*Record, error) {
	var (
		rec       Record
		r         models.ExperimentResult
		createdAt int64
		pulseType string
		beta      sql.NullFloat64
		payload   []byte
	)
	if err := row.Scan(&rec.ID, &rec.JobID, &createdAt, &pulseType, &r.Amplitude, &r.Frequency, &beta, &r.Fidelity, &payload); err != nil {
		return nil, err
	}
	r.PulseType = models.PulseType(pulseType)
	if beta.Valid {
		r.Beta = models.Float64(beta.Float64)
	}
	c0, c1, err := s.codec.DecodeClouds(payload)
	if err != nil {
		return nil, fmt.Errorf("result %s: %w", rec.ID, err)
	}
	r.IQData0, r.IQData1 = c0, c1
	rec.CreatedAt = time.Unix(0, createdAt).UTC()
	rec.Result = &r
	return &rec, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	s.codec.Close()
	return s.db.Close()
}
