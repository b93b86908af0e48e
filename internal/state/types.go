package state

import (
	"time"

	"github.com/danielpatrickdp/exam-proctor/go-monitor/internal/fusion"
	"github.com/danielpatrickdp/exam-proctor/go-monitor/internal/signals"
)

// #region alert-state
// AlertState is the fused snapshot of one cycle. Values are never mutated
// after publication; writers build a fresh copy and swap it in.
type AlertState struct {
	SessionID string `json:"session_id,omitempty"`
	Running   bool   `json:"monitoring"`

	FaceDetected bool               `json:"face_detected"`
	EyeStatus    signals.EyeStatus  `json:"eye_status"`
	HeadStatus   signals.HeadStatus `json:"head_status"`

	PersonCount   int  `json:"person_count"`
	PhoneDetected bool `json:"phone_detected"`

	AudioDetected        bool     `json:"audio_detected"`
	SpeechDetected       bool     `json:"speech_detected"`
	SuspiciousAudio      bool     `json:"suspicious_audio"`
	ConversationDetected bool     `json:"conversation_detected"`
	SuspiciousKeywords   []string `json:"suspicious_keywords"`
	VolumeLevel          int      `json:"volume_level"`
	LastSpeech           string   `json:"last_speech,omitempty"`

	AlertLevel    fusion.Level        `json:"alert_level"`
	ActiveReasons []fusion.ReasonCode `json:"alerts"`

	TotalViolationCount int        `json:"total_violations"`
	FramesProcessed     int64      `json:"frames_processed"`
	SessionStart        *time.Time `json:"session_start"`
	UpdatedAt           time.Time  `json:"timestamp"`

	Sources          SourceStatus `json:"sources"`
	LastPersistError string       `json:"last_persist_error,omitempty"`
}
// #endregion alert-state

// #region source-status
// SourceStatus reports which detectors are live.
type SourceStatus struct {
	Face    string `json:"face"`
	Objects string `json:"objects"`
	Audio   string `json:"audio"`
}
// #endregion source-status

// #region initial
// Initial returns the state published before the first cycle: defaults for
// every observation and NORMAL.
func Initial() AlertState {
	face := signals.DefaultFace()
	obj := signals.DefaultObjects()
	return AlertState{
		FaceDetected:       face.FaceDetected,
		EyeStatus:          face.Eye,
		HeadStatus:         face.Head,
		PersonCount:        obj.PersonCount,
		PhoneDetected:      obj.PhoneDetected,
		AlertLevel:         fusion.Normal,
		ActiveReasons:      []fusion.ReasonCode{},
		SuspiciousKeywords: []string{},
	}
}
// #endregion initial

// #region from-cycle
// FromCycle builds the next snapshot from this cycle's observations and
// decision, carrying session-scoped fields over from prev.
func FromCycle(prev AlertState, in fusion.Input, d fusion.Decision, at time.Time) AlertState {
	return AlertState{
		SessionID: prev.SessionID,
		Running:   prev.Running,

		FaceDetected: in.Face.FaceDetected,
		EyeStatus:    in.Face.Eye,
		HeadStatus:   in.Face.Head,

		PersonCount:   signals.ClampCount(in.Objects.PersonCount),
		PhoneDetected: in.Objects.PhoneDetected,

		AudioDetected:        in.Audio.AudioDetected,
		SpeechDetected:       in.Audio.SpeechDetected,
		SuspiciousAudio:      d.SuspiciousAudio,
		ConversationDetected: in.Audio.ConversationDetected,
		SuspiciousKeywords:   append([]string{}, in.Audio.SuspiciousKeywords...),
		VolumeLevel:          signals.ClampVolume(in.Audio.VolumeLevel),
		LastSpeech:           in.Audio.LastSpeech,

		AlertLevel:    d.Level,
		ActiveReasons: append([]fusion.ReasonCode{}, d.Reasons...),

		TotalViolationCount: prev.TotalViolationCount,
		FramesProcessed:     prev.FramesProcessed + 1,
		SessionStart:        prev.SessionStart,
		UpdatedAt:           at,

		Sources:          prev.Sources,
		LastPersistError: prev.LastPersistError,
	}
}
// #endregion from-cycle
