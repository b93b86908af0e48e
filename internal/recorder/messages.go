package recorder

import (
	"fmt"
	"strings"

	"github.com/danielpatrickdp/exam-proctor/go-monitor/internal/fusion"
)

// #region activity-messages
type template struct {
	level  string
	format func(in fusion.Input) string
}

func fixed(s string) func(fusion.Input) string {
	return func(fusion.Input) string { return s }
}

var activityTemplates = map[fusion.ReasonCode]template{
	fusion.ReasonNoFace:   {LevelWarning, fixed("⚠️ No face detected")},
	fusion.ReasonNoPerson: {LevelWarning, fixed("⚠️ No person in frame")},
	fusion.ReasonMultiplePeople: {LevelCritical, func(in fusion.Input) string {
		return fmt.Sprintf("🚨 Multiple people detected (%d)", in.Objects.PersonCount)
	}},
	fusion.ReasonPhoneDetected: {LevelCritical, fixed("🚨 Mobile phone detected")},
	fusion.ReasonSpeechDetected: {LevelWarning, func(in fusion.Input) string {
		if in.Audio.LastSpeech == "" {
			return "⚠️ Speech detected"
		}
		return fmt.Sprintf("⚠️ Speech detected: %q", in.Audio.LastSpeech)
	}},
	fusion.ReasonSuspiciousAudio: {LevelCritical, func(in fusion.Input) string {
		if len(in.Audio.SuspiciousKeywords) > 0 {
			return "🚨 Suspicious keywords: " + strings.Join(in.Audio.SuspiciousKeywords, ", ")
		}
		return "🚨 Conversation pattern detected"
	}},
	fusion.ReasonEyeMovement: {LevelWarning, func(in fusion.Input) string {
		return fmt.Sprintf("⚠️ Suspicious eye movement: %s", in.Face.Eye)
	}},
	fusion.ReasonHeadDown: {LevelWarning, fixed("⚠️ Head looking down")},
	fusion.ReasonHeadUp:   {LevelWarning, fixed("⚠️ Head looking up")},
}

// activityFor returns the operator message and activity level for reason.
func activityFor(reason fusion.ReasonCode, in fusion.Input) (string, string) {
	t, ok := activityTemplates[reason]
	if !ok {
		return "⚠️ " + string(reason), LevelWarning
	}
	return t.format(in), t.level
}
// #endregion activity-messages

// #region descriptions
// descriptions is scanned in order; the first key contained in the type
// wins, so the most severe causes come first.
var descriptions = []struct {
	key  string
	text string
}{
	{"PHONE_DETECTED", "Mobile phone detected in video frame"},
	{"MULTIPLE_PEOPLE", "Multiple people detected in frame"},
	{"SUSPICIOUS_AUDIO", "Suspicious audio: conversation or exam keywords"},
	{"Page visibility", "Candidate switched tab or hid the exam window"},
	{"Fullscreen", "Candidate exited fullscreen mode"},
	{"NO_PERSON", "No person detected in frame"},
	{"NO_FACE", "Candidate's face not visible"},
	{"SPEECH_DETECTED", "Speech detected during exam"},
	{"EYE_MOVEMENT", "Suspicious eye movement"},
	{"HEAD_DOWN", "Head looking down"},
	{"HEAD_UP", "Head looking up"},
}

// Describe maps a violation type to a human description. Unknown types
// are returned verbatim.
func Describe(violationType string) string {
	for _, d := range descriptions {
		if strings.Contains(violationType, d.key) {
			return d.text
		}
	}
	return violationType
}
// #endregion descriptions
