package replay

import (
	"testing"

	"github.com/danielpatrickdp/exam-proctor/go-monitor/internal/store"
)

// helper: a stored record as it comes back from SQLite, numbers as float64.
func storedRecord(id int64, severity string, meta map[string]any) store.Record {
	return store.Record{ID: id, Severity: severity, Type: "x", Metadata: meta}
}

// TestFixtureFromRecords_RoundTrip exports persisted cycles and replays them;
// raw-driven levels reproduce without validator history.
func TestFixtureFromRecords_RoundTrip(t *testing.T) {
	records := []store.Record{
		storedRecord(3, "ALERT", map[string]any{
			"face_detected": true, "eye_status": "Center", "head_status": "Head Straight",
			"person_count": float64(1), "phone_detected": false, "volume_level": float64(30),
			"speech_detected": true,
		}),
		storedRecord(1, "CRITICAL", map[string]any{
			"face_detected": true, "eye_status": "Center", "head_status": "Head Straight",
			"person_count": float64(1), "phone_detected": true, "volume_level": float64(0),
		}),
		storedRecord(2, "CRITICAL", map[string]any{"reasons": []any{}, "session_id": "s"}),
		storedRecord(4, "CRITICAL", map[string]any{
			"face_detected": true, "eye_status": "Looking Left", "head_status": "Head Straight",
			"person_count": float64(1), "phone_detected": false, "volume_level": float64(20),
			"suspicious_keywords": []any{"answer", 7},
		}),
	}

	f := FixtureFromRecords("exported", records)
	if len(f.Cycles) != 3 {
		t.Fatalf("expected 3 cycles (page event skipped), got %d", len(f.Cycles))
	}
	if f.Cycles[0].CycleID != "violation-1" {
		t.Errorf("expected oldest record first, got %s", f.Cycles[0].CycleID)
	}
	if got := f.Cycles[2].Audio.SuspiciousKeywords; len(got) != 1 || got[0] != "answer" {
		t.Errorf("expected keywords [answer], got %v", got)
	}

	results := Replay(f.ToCycles(), f.Config.ToReplayConfig())
	for _, m := range Compare(results, f.ExpectedResults) {
		t.Errorf("cycle %s: expected %s, got %s", m.CycleID, m.Expected.Level, m.Got.Level)
	}
}

// TestFixtureFromRecords_Empty verifies empty slices rather than nil for JSON output.
func TestFixtureFromRecords_Empty(t *testing.T) {
	f := FixtureFromRecords("none", nil)
	if f.Cycles == nil || f.ExpectedResults == nil {
		t.Error("expected non-nil empty slices")
	}
}
