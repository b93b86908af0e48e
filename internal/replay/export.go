package replay

import (
	"fmt"
	"sort"

	"github.com/danielpatrickdp/exam-proctor/go-monitor/internal/signals"
	"github.com/danielpatrickdp/exam-proctor/go-monitor/internal/store"
)

// #region export

// FixtureFromRecords rebuilds replay cycles from persisted violations,
// oldest first. Records without cycle observations (page events) are
// skipped. Expected levels come from the stored severity; reasons are left
// unchecked because the validator history between persisted cycles is not
// stored.
func FixtureFromRecords(description string, records []store.Record) Fixture {
	sorted := append([]store.Record(nil), records...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	f := Fixture{
		Description:     description,
		Cycles:          []FixtureCycle{},
		ExpectedResults: []FixtureExpectedResult{},
	}
	for _, r := range sorted {
		fc, ok := cycleFromMetadata(r.Metadata)
		if !ok {
			continue
		}
		fc.CycleID = fmt.Sprintf("violation-%d", r.ID)
		f.Cycles = append(f.Cycles, fc)
		f.ExpectedResults = append(f.ExpectedResults, FixtureExpectedResult{
			CycleID: fc.CycleID,
			Level:   r.Severity,
		})
	}
	return f
}

func cycleFromMetadata(m map[string]any) (FixtureCycle, bool) {
	faceDetected, ok := m["face_detected"].(bool)
	if !ok {
		return FixtureCycle{}, false
	}
	face := signals.FaceObservation{
		FaceDetected: faceDetected,
		Eye:          signals.EyeStatus(metaString(m, "eye_status")),
		Head:         signals.HeadStatus(metaString(m, "head_status")),
	}
	objects := signals.ObjectObservation{
		PersonCount:   metaInt(m, "person_count"),
		PhoneDetected: metaBool(m, "phone_detected"),
	}
	audio := signals.AudioObservation{
		VolumeLevel:          metaInt(m, "volume_level"),
		SpeechDetected:       metaBool(m, "speech_detected"),
		ConversationDetected: metaBool(m, "conversation_detected"),
		SuspiciousKeywords:   metaStrings(m, "suspicious_keywords"),
	}
	audio.AudioDetected = audio.SpeechDetected || audio.VolumeLevel > 0
	return FixtureCycle{Face: &face, Objects: &objects, Audio: &audio}, true
}

func metaString(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func metaBool(m map[string]any, key string) bool {
	b, _ := m[key].(bool)
	return b
}

// metaInt accepts the float64 that JSON decoding produces.
func metaInt(m map[string]any, key string) int {
	switch v := m[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	}
	return 0
}

func metaStrings(m map[string]any, key string) []string {
	switch v := m[key].(type) {
	case []string:
		return append([]string(nil), v...)
	case []any:
		out := make([]string, 0, len(v))
		for _, x := range v {
			if s, ok := x.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// #endregion export
