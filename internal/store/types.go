// Package store persists violation records in SQLite.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by GetByID for an unknown id.
var ErrNotFound = errors.New("violation not found")

// Severity names stored with each record.
const (
	SeverityInfo     = "INFO"
	SeverityWarning  = "WARNING"
	SeverityAlert    = "ALERT"
	SeverityCritical = "CRITICAL"
)

// TimestampLayout is the display timestamp stored with each record.
const TimestampLayout = "2006-01-02 15:04:05"

// #region record
// Record is one durable violation. Records are never updated after insert.
//
// Metadata is stored as a JSON object and read back with generic JSON
// types: numbers come back as float64, lists as []any and objects as
// map[string]any, whatever Go types were written.
type Record struct {
	ID          int64          `json:"id"`
	Timestamp   string         `json:"timestamp"`
	Type        string         `json:"violation_type"`
	Severity    string         `json:"severity"`
	Description string         `json:"description"`
	ImagePath   *string        `json:"image_path"`
	Metadata    map[string]any `json:"metadata"`
	CreatedAt   time.Time      `json:"created_at"`
}
// #endregion record

// #region params
// ListParams filters GetAll. Zero values mean no filter and no limit.
type ListParams struct {
	Severity string
	Limit    int
}
// #endregion params

// #region statistics
// Statistics aggregates the whole table.
type Statistics struct {
	Total      int            `json:"total"`
	BySeverity map[string]int `json:"by_severity"`
	ByType     []TypeCount    `json:"by_type"`
	Last24h    int            `json:"last_24h"`
}

// TypeCount is one row of the top-types ranking.
type TypeCount struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}
// #endregion statistics

// #region interfaces
// Store is the violation repository consumed by the recorder, the API and
// the CLI.
type Store interface {
	Add(ctx context.Context, rec Record) (int64, error)
	GetAll(ctx context.Context, p ListParams) ([]Record, error)
	GetByID(ctx context.Context, id int64) (Record, error)
	Delete(ctx context.Context, id int64) (bool, error)
	Prune(ctx context.Context, days int) (int, error)
	Statistics(ctx context.Context) (Statistics, error)
	Close() error
}

// EvidenceRemover deletes the artifact a record points at.
type EvidenceRemover interface {
	Remove(path string) error
}
// #endregion interfaces
