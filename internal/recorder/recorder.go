package recorder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/danielpatrickdp/exam-proctor/go-monitor/internal/fusion"
	"github.com/danielpatrickdp/exam-proctor/go-monitor/internal/store"
)

// #region recorder
// Recorder turns fusion results into activity lines, in-memory violation
// entries and durable records. Safe for concurrent use.
type Recorder struct {
	sink     Sink
	evidence EvidenceWriter
	config   Config
	persist  map[fusion.Level]bool
	logger   *zap.Logger

	// mu guards the in-memory logs only; it is never held across store I/O.
	mu         sync.Mutex
	activities []Activity
	entries    []Entry
	total      int

	// persistMu serializes the cooldown check with the write it guards.
	persistMu   sync.Mutex
	lastLevel   fusion.Level
	lastType    string
	lastPersist time.Time
}

// New builds a recorder. sink may be nil for a memory-only recorder;
// evidence may be nil to store records without snapshots.
func New(sink Sink, evidence EvidenceWriter, config Config, logger *zap.Logger) *Recorder {
	def := DefaultConfig()
	if config.ActivityCapacity < 1 {
		config.ActivityCapacity = def.ActivityCapacity
	}
	if config.ViolationLogCapacity < 1 {
		config.ViolationLogCapacity = def.ViolationLogCapacity
	}
	if config.PersistLevels == nil {
		config.PersistLevels = def.PersistLevels
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	persist := make(map[fusion.Level]bool, len(config.PersistLevels))
	for _, l := range config.PersistLevels {
		persist[l] = true
	}
	return &Recorder{
		sink:     sink,
		evidence: evidence,
		config:   config,
		persist:  persist,
		logger:   logger,
	}
}
// #endregion recorder

// #region record
// Record logs one cycle. Activity lines and the in-memory entry are
// appended before any durable write, so a store failure still leaves the
// cycle visible to operators. The only error returned is a store failure.
func (r *Recorder) Record(ctx context.Context, ev Event, supplier EvidenceSupplier) error {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	d := ev.Decision

	for _, reason := range d.Reasons {
		msg, lvl := activityFor(reason, ev.Input)
		r.addActivityAt(ev.At, msg, lvl)
	}

	if d.Level == fusion.Normal {
		return nil
	}

	vType := ev.Type
	if vType == "" {
		vType = d.Type()
	}
	r.appendEntry(Entry{
		Timestamp: ev.At.Format(entryLayout),
		Type:      vType,
		Severity:  d.Level.String(),
	})

	if !r.persist[d.Level] || r.sink == nil {
		return nil
	}

	r.persistMu.Lock()
	defer r.persistMu.Unlock()
	if !ev.Immediate && !r.due(d.Level, vType, ev.At) {
		return nil
	}

	rec := store.Record{
		Timestamp:   ev.At.Format(entryLayout),
		Type:        vType,
		Severity:    d.Level.String(),
		Description: Describe(vType),
		Metadata:    metadata(ev),
	}
	if d.Level == fusion.Critical {
		rec.ImagePath = r.captureEvidence(ev.At, supplier)
	}

	id, err := r.sink.Add(ctx, rec)
	if err != nil {
		r.logger.Error("violation persistence failed",
			zap.String("type", vType), zap.Stringer("level", d.Level), zap.Error(err))
		return fmt.Errorf("persist violation: %w", err)
	}

	r.lastLevel, r.lastType, r.lastPersist = d.Level, vType, ev.At
	r.setEntryRecordID(id)
	r.logger.Info("violation recorded",
		zap.Int64("id", id), zap.String("type", vType), zap.Stringer("level", d.Level),
		zap.Bool("evidence", rec.ImagePath != nil))
	return nil
}

// due reports whether a qualifying cycle should be written now. Callers
// hold persistMu.
func (r *Recorder) due(level fusion.Level, vType string, at time.Time) bool {
	if r.lastPersist.IsZero() || r.config.PersistCooldown <= 0 {
		return true
	}
	if level != r.lastLevel || vType != r.lastType {
		return true
	}
	return at.Sub(r.lastPersist) >= r.config.PersistCooldown
}

func (r *Recorder) captureEvidence(at time.Time, supplier EvidenceSupplier) *string {
	if supplier == nil || r.evidence == nil {
		return nil
	}
	data, ext, err := supplier()
	if err != nil {
		r.logger.Warn("evidence capture failed", zap.Error(err))
		return nil
	}
	if len(data) == 0 {
		return nil
	}
	path, err := r.evidence.Write(at, data, ext)
	if err != nil {
		r.logger.Warn("evidence write failed", zap.Error(err))
		return nil
	}
	return &path
}

func metadata(ev Event) map[string]any {
	reasons := make([]string, len(ev.Decision.Reasons))
	for i, rc := range ev.Decision.Reasons {
		reasons[i] = string(rc)
	}
	m := map[string]any{"reasons": reasons}
	if ev.SessionID != "" {
		m["session_id"] = ev.SessionID
	}
	if ev.Type != "" {
		// Not a fusion cycle; the observations are not meaningful.
		return m
	}

	m["face_detected"] = ev.Input.Face.FaceDetected
	m["eye_status"] = string(ev.Input.Face.Eye)
	m["head_status"] = string(ev.Input.Face.Head)
	m["person_count"] = ev.Input.Objects.PersonCount
	m["phone_detected"] = ev.Input.Objects.PhoneDetected
	m["volume_level"] = ev.Input.Audio.VolumeLevel
	m["speech_detected"] = ev.Input.Audio.SpeechDetected
	m["conversation_detected"] = ev.Input.Audio.ConversationDetected
	if ev.Decision.Trigger != "" {
		m["trigger"] = string(ev.Decision.Trigger)
	}
	if len(ev.Input.Audio.SuspiciousKeywords) > 0 {
		m["suspicious_keywords"] = ev.Input.Audio.SuspiciousKeywords
	}
	if ev.FrameSeq > 0 {
		m["frame_seq"] = ev.FrameSeq
	}
	return m
}
// #endregion record

// #region logs
// AddActivity appends an operator log line stamped now.
func (r *Recorder) AddActivity(message, level string) {
	r.addActivityAt(time.Now(), message, level)
}

func (r *Recorder) addActivityAt(at time.Time, message, level string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.activities = appendBounded(r.activities, Activity{
		Timestamp: at.Format(activityLayout),
		Message:   message,
		Level:     level,
	}, r.config.ActivityCapacity)
}

func (r *Recorder) appendEntry(e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = appendBounded(r.entries, e, r.config.ViolationLogCapacity)
	r.total++
}

func (r *Recorder) setEntryRecordID(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n := len(r.entries); n > 0 {
		r.entries[n-1].RecordID = id
	}
}

// Activities returns up to n most recent activity lines, oldest first.
// n <= 0 returns everything held.
func (r *Recorder) Activities(n int) []Activity {
	r.mu.Lock()
	defer r.mu.Unlock()
	return tail(r.activities, n)
}

// Violations returns up to n most recent in-memory entries, oldest first.
func (r *Recorder) Violations(n int) []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return tail(r.entries, n)
}

// Total counts every entry ever appended, including evicted ones.
func (r *Recorder) Total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.total
}

// Reset clears the in-memory logs and the persistence cooldown.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.activities, r.entries, r.total = nil, nil, 0
	r.mu.Unlock()

	r.persistMu.Lock()
	r.lastLevel, r.lastType, r.lastPersist = fusion.Normal, "", time.Time{}
	r.persistMu.Unlock()
}
// #endregion logs

// #region helpers
func appendBounded[T any](buf []T, x T, capacity int) []T {
	buf = append(buf, x)
	if over := len(buf) - capacity; over > 0 {
		buf = append(buf[:0:0], buf[over:]...)
	}
	return buf
}

func tail[T any](buf []T, n int) []T {
	if n <= 0 || n > len(buf) {
		n = len(buf)
	}
	out := make([]T, n)
	copy(out, buf[len(buf)-n:])
	return out
}
// #endregion helpers
