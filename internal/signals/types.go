package signals

import (
	"context"
	"errors"
	"time"
)

// #region gaze

// EyeStatus is the gaze category reported by the face analyzer.
type EyeStatus string

const (
	EyeCenter      EyeStatus = "Center"
	EyeLeft        EyeStatus = "Looking Left"
	EyeRight       EyeStatus = "Looking Right"
	EyeUp          EyeStatus = "Looking Up"
	EyeNotDetected EyeStatus = "Not Detected"
)

// HeadStatus is the head-pose category reported by the face analyzer.
type HeadStatus string

const (
	HeadStraight    HeadStatus = "Head Straight"
	HeadDown        HeadStatus = "Head Down"
	HeadUp          HeadStatus = "Head Up"
	HeadNotDetected HeadStatus = "Not Detected"
)

// #endregion gaze

// #region observations

// Frame is one captured video frame. Data is already encoded (e.g. JPEG)
// so it can be written out as evidence without re-encoding.
type Frame struct {
	Seq        int64
	CapturedAt time.Time
	Data       []byte
	Format     string // file extension without dot: "jpg", "png"
}

// FaceObservation is the geometry estimators' output for one frame.
type FaceObservation struct {
	FaceDetected bool       `json:"face_detected"`
	Eye          EyeStatus  `json:"eye_status"`
	Head         HeadStatus `json:"head_status"`
}

// ObjectObservation is the object detector's output for one frame.
type ObjectObservation struct {
	PersonCount   int  `json:"person_count"`
	PhoneDetected bool `json:"phone_detected"`
}

// AudioObservation is the latest audio-pipeline snapshot.
// Polled by the video loop, never pushed.
type AudioObservation struct {
	AudioDetected        bool     `json:"audio_detected"`
	SpeechDetected       bool     `json:"speech_detected"`
	VolumeLevel          int      `json:"volume_level"`
	SuspiciousKeywords   []string `json:"suspicious_keywords"`
	ConversationDetected bool     `json:"conversation_detected"`
	LastSpeech           string   `json:"last_speech,omitempty"`
	Language             string   `json:"language,omitempty"`
}

// DefaultFace is assumed when no face analyzer is available: a present,
// centred, upright face, so a missing estimator never raises an alert.
func DefaultFace() FaceObservation {
	return FaceObservation{FaceDetected: true, Eye: EyeCenter, Head: HeadStraight}
}

// DefaultObjects is the degraded-mode object reading: one person, no phone.
func DefaultObjects() ObjectObservation {
	return ObjectObservation{PersonCount: 1, PhoneDetected: false}
}

// DefaultAudio is silence.
func DefaultAudio() AudioObservation {
	return AudioObservation{}
}

// #endregion observations

// #region capability

// Availability is resolved once when a source is constructed. Consumers
// branch on it instead of on whether a call fails.
type Availability int32

const (
	Available Availability = iota
	Unavailable
)

func (a Availability) String() string {
	if a == Available {
		return "available"
	}
	return "unavailable"
}

// #endregion capability

// #region interfaces

// Camera opens a frame stream. The stream must be closed by the caller.
type Camera interface {
	Open(ctx context.Context) (FrameStream, error)
}

// FrameStream yields frames. Read must honour ctx deadlines so a stop
// request is never blocked behind hardware I/O.
type FrameStream interface {
	Read(ctx context.Context) (Frame, error)
	Close() error
}

// FaceAnalyzer runs the face, landmark, gaze and head-pose estimators.
type FaceAnalyzer interface {
	Analyze(ctx context.Context, f Frame) (FaceObservation, error)
}

// ObjectDetector counts people and looks for phones.
type ObjectDetector interface {
	Detect(ctx context.Context, f Frame) (ObjectObservation, error)
}

// AudioFeed exposes the audio pipeline's latest snapshot.
type AudioFeed interface {
	Status() AudioObservation
	Available() bool
}

// #endregion interfaces

// #region errors

var (
	// ErrSourceClosed means the source disconnected and will not recover
	// during this session.
	ErrSourceClosed = errors.New("source closed")

	// ErrTransient marks a single failed sample; the next cycle retries.
	ErrTransient = errors.New("transient sample failure")
)

// #endregion errors
