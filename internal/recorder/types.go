package recorder

import (
	"context"
	"time"

	"github.com/danielpatrickdp/exam-proctor/go-monitor/internal/fusion"
	"github.com/danielpatrickdp/exam-proctor/go-monitor/internal/store"
)

// Activity levels. Activity entries use their own three-step scale.
const (
	LevelInfo     = "INFO"
	LevelWarning  = "WARNING"
	LevelCritical = "CRITICAL"
)

const (
	activityLayout = "15:04:05"
	entryLayout    = store.TimestampLayout
)

// #region config
// Config controls buffer sizes and the durable persistence policy.
type Config struct {
	ActivityCapacity     int
	ViolationLogCapacity int
	PersistLevels        []fusion.Level
	PersistCooldown      time.Duration // 0 persists every qualifying cycle
}

// DefaultConfig persists CRITICAL cycles, at most once per 5s for an
// unchanged level and type.
func DefaultConfig() Config {
	return Config{
		ActivityCapacity:     50,
		ViolationLogCapacity: 100,
		PersistLevels:        []fusion.Level{fusion.Critical},
		PersistCooldown:      5 * time.Second,
	}
}
// #endregion config

// #region entries
// Activity is one human-readable operator log line.
type Activity struct {
	Timestamp string `json:"timestamp"`
	Message   string `json:"message"`
	Level     string `json:"level"`
}

// Entry is one in-memory violation-log line.
type Entry struct {
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Severity  string `json:"severity"`
	RecordID  int64  `json:"record_id,omitempty"`
}
// #endregion entries

// #region event
// Event is one fusion result handed to Record.
type Event struct {
	At        time.Time
	Decision  fusion.Decision
	Input     fusion.Input
	SessionID string
	FrameSeq  int64

	// Type overrides Decision.Type() for events that do not come from
	// fusion, such as page visibility changes.
	Type string
	// Immediate bypasses the persistence cooldown.
	Immediate bool
}

// EvidenceSupplier lazily returns an encoded snapshot and its extension.
// It is only invoked for CRITICAL records that will be persisted.
type EvidenceSupplier func() (data []byte, ext string, err error)
// #endregion event

// #region deps
// Sink is the part of the violation store the recorder writes to.
type Sink interface {
	Add(ctx context.Context, rec store.Record) (int64, error)
}

// EvidenceWriter stores a snapshot and returns the path to reference.
type EvidenceWriter interface {
	Write(at time.Time, data []byte, ext string) (string, error)
}
// #endregion deps
