package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"github.com/hyperjump/docreader/internal/models"
)

// Supported database/sql driver names.
const (
	DriverSQLite3  = "sqlite3" // mattn/go-sqlite3, cgo
	DriverSQLite   = "sqlite"  // modernc.org/sqlite, pure Go
	DriverPostgres = "pgx"     // jackc/pgx stdlib
)

// timeLayout is fixed-width so that text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000Z"

// pageSize is the batch size used by ForEachRecord.
const pageSize = 200

// SQLStorage implements RecordStore on database/sql.
type SQLStorage struct {
	db     *sql.DB
	driver string
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath with the cgo driver.
func NewSQLiteStorage(dbPath string) (*SQLStorage, error) {
	return NewSQLStorage(DriverSQLite3, dbPath)
}

// NewSQLStorage opens the database and initializes the schema. For the SQLite drivers dsn is a
// file path whose parent directories are created; for pgx it is a connection URL.
func NewSQLStorage(driver, dsn string) (*SQLStorage, error) {
	switch driver {
	case DriverSQLite3, DriverSQLite:
		if dir := filepath.Dir(dsn); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	case DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	s := &SQLStorage{db: db, driver: driver}

	if s.isSQLite() {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL: %w", err)
		}
		if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set busy timeout: %w", err)
		}
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLStorage) isSQLite() bool {
	return s.driver == DriverSQLite3 || s.driver == DriverSQLite
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			filename TEXT NOT NULL,
			doc_type TEXT NOT NULL,
			raw_text TEXT NOT NULL,
			extracted_json TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_created_at ON documents(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_doc_type ON documents(doc_type)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (s *SQLStorage) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// CreateRecord inserts rec and sets CreatedAt.
func (s *SQLStorage) CreateRecord(ctx context.Context, rec *models.Record) error {
	rec.CreatedAt = time.Now().UTC().Truncate(time.Microsecond)
	_, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO documents (id, filename, doc_type, raw_text, extracted_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`),
		rec.ID, rec.Filename, rec.DocType, rec.RawText, rec.ExtractedJSON, rec.CreatedAt.Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert record %s: %w", rec.ID, err)
	}
	return nil
}

const selectColumns = `SELECT id, filename, doc_type, raw_text, extracted_json, created_at FROM documents`

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*models.Record, error) {
	var rec models.Record
	var created string
	if err := row.Scan(&rec.ID, &rec.Filename, &rec.DocType, &rec.RawText, &rec.ExtractedJSON, &created); err != nil {
		return nil, err
	}
	t, err := scanTime(created)
	if err != nil {
		return nil, fmt.Errorf("record %s: %w", rec.ID, err)
	}
	rec.CreatedAt = t
	return &rec, nil
}

func scanTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err == nil {
		return t, nil
	}
	if t, err2 := time.Parse(time.RFC3339Nano, s); err2 == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("parse created_at %q: %w", s, err)
}

// GetRecord returns the record with id, or ErrNotFound.
func (s *SQLStorage) GetRecord(ctx context.Context, id string) (*models.Record, error) {
	rec, err := scanRecord(s.db.QueryRowContext(ctx, s.rebind(selectColumns+` WHERE id = ?`), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// DeleteRecord removes the record with id, or returns ErrNotFound.
func (s *SQLStorage) DeleteRecord(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM documents WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete record %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// ListRecords returns records newest first.
func (s *SQLStorage) ListRecords(ctx context.Context, offset, limit int) ([]*models.Record, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(selectColumns+` ORDER BY created_at DESC, id LIMIT ? OFFSET ?`), limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []*models.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// ForEachRecord calls fn for every record, oldest first, reading in pages.
func (s *SQLStorage) ForEachRecord(ctx context.Context, fn func(*models.Record) error) error {
	lastCreated, lastID := "", ""
	for {
		rows, err := s.db.QueryContext(ctx, s.rebind(selectColumns+
			` WHERE created_at > ? OR (created_at = ? AND id > ?) ORDER BY created_at, id LIMIT ?`),
			lastCreated, lastCreated, lastID, pageSize)
		if err != nil {
			return err
		}
		var batch []*models.Record
		for rows.Next() {
			rec, err := scanRecord(rows)
			if err != nil {
				rows.Close()
				return err
			}
			batch = append(batch, rec)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return err
		}
		for _, rec := range batch {
			if err := fn(rec); err != nil {
				return err
			}
		}
		if len(batch) < pageSize {
			return nil
		}
		last := batch[len(batch)-1]
		lastCreated, lastID = last.CreatedAt.Format(timeLayout), last.ID
	}
}

// CountRecords returns the number of stored records.
func (s *SQLStorage) CountRecords(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n)
	return n, err
}

// Ping checks the database connection.
func (s *SQLStorage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *SQLStorage) Close() error {
	return s.db.Close()
}
