package fusion

import (
	"strings"

	"github.com/danielpatrickdp/exam-proctor/go-monitor/internal/signals"
)

// #region engine

// Engine turns one cycle's observations into a Decision.
type Engine struct {
	config Config
}

// NewEngine creates an engine. Non-positive thresholds fall back to defaults.
func NewEngine(config Config) *Engine {
	def := DefaultConfig()
	if config.Threshold < 1 {
		config.Threshold = def.Threshold
	}
	if config.WarningMinReasons < 1 {
		config.WarningMinReasons = def.WarningMinReasons
	}
	return &Engine{config: config}
}

// Config returns the engine's thresholds.
func (e *Engine) Config() Config {
	return e.config
}

// Evaluate appends every smoothed sample to v, collects reasons in display
// order, then picks the level.
//
// Reasons for people and phones use the validated signals. The CRITICAL and
// ALERT tiers read the raw values of this cycle instead, so a real phone
// sighting raises the level on its first frame even though PHONE_DETECTED
// is only listed once it has been seen for Threshold frames.
func (e *Engine) Evaluate(v *signals.Validator, in Input) Decision {
	th := e.config.Threshold
	face, obj, aud := in.Face, in.Objects, in.Audio

	// Every key is fed on every cycle so histories stay aligned with cycles.
	noPerson := v.Validate(KeyPersonZero, obj.PersonCount == 0, th)
	multiPeople := v.Validate(KeyPersonMulti, obj.PersonCount > 1, th)
	phone := v.Validate(KeyPhone, obj.PhoneDetected, th)

	suspiciousAudio := aud.ConversationDetected || len(aud.SuspiciousKeywords) > 0

	var reasons []ReasonCode

	// --- Reason pass ---

	// 1. Face presence, unsmoothed
	if !face.FaceDetected {
		reasons = append(reasons, ReasonNoFace)
	}

	// 2-3. Person count, smoothed
	if noPerson {
		reasons = append(reasons, ReasonNoPerson)
	}
	if multiPeople {
		reasons = append(reasons, ReasonMultiplePeople)
	}

	// 4. Phone, smoothed
	if phone {
		reasons = append(reasons, ReasonPhoneDetected)
	}

	// 5-6. Audio, unsmoothed
	if aud.SpeechDetected {
		reasons = append(reasons, ReasonSpeechDetected)
	}
	if suspiciousAudio {
		reasons = append(reasons, ReasonSuspiciousAudio)
	}

	// 7. Gaze
	if face.Eye == signals.EyeLeft || face.Eye == signals.EyeRight {
		reasons = append(reasons, ReasonEyeMovement)
	}

	// 8. Head pose
	head := string(face.Head)
	if strings.Contains(head, "Down") {
		reasons = append(reasons, ReasonHeadDown)
	} else if strings.Contains(head, "Up") {
		reasons = append(reasons, ReasonHeadUp)
	}

	// --- Level pass, highest tier first ---
	level, trigger := Normal, ReasonCode("")
	switch {
	case obj.PhoneDetected:
		level, trigger = Critical, ReasonPhoneDetected
	case obj.PersonCount > 1:
		level, trigger = Critical, ReasonMultiplePeople
	case suspiciousAudio:
		level, trigger = Critical, ReasonSuspiciousAudio
	case obj.PersonCount == 0:
		level, trigger = Alert, ReasonNoPerson
	case !face.FaceDetected:
		level, trigger = Alert, ReasonNoFace
	case aud.SpeechDetected:
		level, trigger = Alert, ReasonSpeechDetected
	case len(reasons) >= e.config.WarningMinReasons:
		level = Warning
	}

	return Decision{
		Level:           level,
		Reasons:         reasons,
		Trigger:         trigger,
		SuspiciousAudio: suspiciousAudio,
	}
}

// #endregion engine
