package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS violations (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp      TEXT NOT NULL,
	violation_type TEXT NOT NULL,
	severity       TEXT NOT NULL,
	description    TEXT,
	image_path     TEXT,
	metadata       TEXT,
	created_at     TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_violations_created ON violations(created_at);
CREATE INDEX IF NOT EXISTS idx_violations_severity ON violations(severity);
`

// createdLayout sorts lexicographically in chronological order.
const createdLayout = "2006-01-02T15:04:05.000000Z"

// topTypes bounds the by-type ranking in Statistics.
const topTypes = 10
// #endregion schema

// #region store-struct
// SQLiteStore implements Store on a single SQLite file.
type SQLiteStore struct {
	db       *sql.DB
	evidence EvidenceRemover
	logger   *zap.Logger
	now      func() time.Time
}
// #endregion store-struct

// #region constructor
// NewSQLiteStore opens or creates the database at path. evidence may be nil,
// in which case deleted records leave their artifacts in place.
func NewSQLiteStore(path string, evidence EvidenceRemover, logger *zap.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// One writer keeps AUTOINCREMENT assignment serialized across goroutines.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &SQLiteStore{
		db:       db,
		evidence: evidence,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}
// #endregion constructor

// #region close
// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
// #endregion close

// #region add
// Add inserts rec and returns its new id. ID and CreatedAt on rec are
// ignored; the store assigns both.
func (s *SQLiteStore) Add(ctx context.Context, rec Record) (int64, error) {
	now := s.now()
	if rec.Timestamp == "" {
		rec.Timestamp = now.Local().Format(TimestampLayout)
	}
	meta := rec.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return 0, fmt.Errorf("marshal metadata: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO violations (timestamp, violation_type, severity, description, image_path, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.Timestamp, rec.Type, rec.Severity, rec.Description, nullIfEmpty(rec.ImagePath),
		string(metaJSON), now.Format(createdLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("insert violation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert violation id: %w", err)
	}
	return id, nil
}
// #endregion add

// #region get-all
// GetAll returns records newest first.
func (s *SQLiteStore) GetAll(ctx context.Context, p ListParams) ([]Record, error) {
	var where []string
	var args []any
	if p.Severity != "" {
		where = append(where, "severity = ?")
		args = append(args, p.Severity)
	}

	query := `SELECT id, timestamp, violation_type, severity, description, image_path, metadata, created_at
		FROM violations`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	if p.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, p.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list violations: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan violation: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
// #endregion get-all

// #region get-by-id
// GetByID returns ErrNotFound when no record has id.
func (s *SQLiteStore) GetByID(ctx context.Context, id int64) (Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, timestamp, violation_type, severity, description, image_path, metadata, created_at
		 FROM violations WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("violation %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return Record{}, fmt.Errorf("get violation %d: %w", id, err)
	}
	return rec, nil
}
// #endregion get-by-id

// #region delete
// Delete removes one record and, best effort, its evidence. It reports
// false without error when id does not exist.
func (s *SQLiteStore) Delete(ctx context.Context, id int64) (bool, error) {
	var imagePath sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT image_path FROM violations WHERE id = ?`, id).Scan(&imagePath)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup violation %d: %w", id, err)
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM violations WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete violation %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete violation %d: %w", id, err)
	}
	if n == 0 {
		return false, nil
	}
	if imagePath.Valid {
		s.removeEvidence(imagePath.String)
	}
	return true, nil
}
// #endregion delete

// #region prune
// Prune deletes every record persisted at least days ago, along with its
// evidence, and returns how many were removed. days == 0 removes all.
func (s *SQLiteStore) Prune(ctx context.Context, days int) (int, error) {
	if days < 0 {
		return 0, fmt.Errorf("prune: negative age %d", days)
	}
	cutoff := s.now().Add(-time.Duration(days) * 24 * time.Hour).Format(createdLayout)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		`SELECT image_path FROM violations WHERE created_at <= ? AND image_path IS NOT NULL`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("select expired: %w", err)
	}
	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan expired: %w", err)
		}
		paths = append(paths, p)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, fmt.Errorf("select expired: %w", err)
	}
	rows.Close()

	res, err := tx.ExecContext(ctx, `DELETE FROM violations WHERE created_at <= ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune violations: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune violations: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}

	for _, p := range paths {
		s.removeEvidence(p)
	}
	return int(n), nil
}
// #endregion prune

// #region statistics
// Statistics aggregates counts over the whole table.
func (s *SQLiteStore) Statistics(ctx context.Context) (Statistics, error) {
	st := Statistics{
		BySeverity: map[string]int{},
		ByType:     []TypeCount{},
	}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM violations`).Scan(&st.Total); err != nil {
		return st, fmt.Errorf("count violations: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT severity, COUNT(*) FROM violations GROUP BY severity`)
	if err != nil {
		return st, fmt.Errorf("count by severity: %w", err)
	}
	for rows.Next() {
		var sev string
		var n int
		if err := rows.Scan(&sev, &n); err != nil {
			rows.Close()
			return st, fmt.Errorf("scan severity: %w", err)
		}
		st.BySeverity[sev] = n
	}
	rows.Close()

	rows, err = s.db.QueryContext(ctx,
		`SELECT violation_type, COUNT(*) AS cnt FROM violations
		 GROUP BY violation_type ORDER BY cnt DESC, violation_type ASC LIMIT ?`, topTypes)
	if err != nil {
		return st, fmt.Errorf("count by type: %w", err)
	}
	for rows.Next() {
		var tc TypeCount
		if err := rows.Scan(&tc.Type, &tc.Count); err != nil {
			rows.Close()
			return st, fmt.Errorf("scan type: %w", err)
		}
		st.ByType = append(st.ByType, tc)
	}
	rows.Close()

	since := s.now().Add(-24 * time.Hour).Format(createdLayout)
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM violations WHERE created_at >= ?`, since).Scan(&st.Last24h); err != nil {
		return st, fmt.Errorf("count last 24h: %w", err)
	}
	return st, nil
}
// #endregion statistics

// #region helpers
type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (Record, error) {
	var rec Record
	var description, imagePath, meta sql.NullString
	var createdStr string

	if err := row.Scan(&rec.ID, &rec.Timestamp, &rec.Type, &rec.Severity,
		&description, &imagePath, &meta, &createdStr); err != nil {
		return Record{}, err
	}
	rec.Description = description.String
	if imagePath.Valid {
		p := imagePath.String
		rec.ImagePath = &p
	}
	rec.Metadata = map[string]any{}
	if meta.Valid && meta.String != "" {
		if err := json.Unmarshal([]byte(meta.String), &rec.Metadata); err != nil || rec.Metadata == nil {
			rec.Metadata = map[string]any{}
		}
	}
	rec.CreatedAt, _ = time.Parse(createdLayout, createdStr)
	return rec, nil
}

func (s *SQLiteStore) removeEvidence(path string) {
	if s.evidence == nil {
		return
	}
	if err := s.evidence.Remove(path); err != nil {
		s.logger.Warn("evidence removal failed", zap.String("path", path), zap.Error(err))
	}
}

// nullIfEmpty returns nil for a missing or empty string, otherwise the value.
func nullIfEmpty(p *string) interface{} {
	if p == nil || *p == "" {
		return nil
	}
	return *p
}
// #endregion helpers
