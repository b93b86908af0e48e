package fusion

import (
	"fmt"
	"strings"

	"github.com/danielpatrickdp/exam-proctor/go-monitor/internal/signals"
)

// #region level

// Level is the fused alert severity. Ordered NORMAL < WARNING < ALERT < CRITICAL.
type Level int

const (
	Normal Level = iota
	Warning
	Alert
	Critical
)

var levelNames = [...]string{"NORMAL", "WARNING", "ALERT", "CRITICAL"}

func (l Level) String() string {
	if l < Normal || l > Critical {
		return fmt.Sprintf("LEVEL(%d)", int(l))
	}
	return levelNames[l]
}

// AtLeast reports whether l is as severe as other.
func (l Level) AtLeast(other Level) bool {
	return l >= other
}

// ParseLevel accepts the upper- or lower-case level name.
func ParseLevel(s string) (Level, error) {
	for i, name := range levelNames {
		if strings.EqualFold(s, name) {
			return Level(i), nil
		}
	}
	return Normal, fmt.Errorf("unknown alert level %q", s)
}

// MarshalText encodes the level by name for JSON and YAML.
func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText decodes a level name.
func (l *Level) UnmarshalText(b []byte) error {
	v, err := ParseLevel(string(b))
	if err != nil {
		return err
	}
	*l = v
	return nil
}

// #endregion level

// #region reason

// ReasonCode names one contributing cause of the current alert.
type ReasonCode string

const (
	ReasonNoFace          ReasonCode = "NO_FACE"
	ReasonNoPerson        ReasonCode = "NO_PERSON"
	ReasonMultiplePeople  ReasonCode = "MULTIPLE_PEOPLE"
	ReasonPhoneDetected   ReasonCode = "PHONE_DETECTED"
	ReasonSpeechDetected  ReasonCode = "SPEECH_DETECTED"
	ReasonSuspiciousAudio ReasonCode = "SUSPICIOUS_AUDIO"
	ReasonEyeMovement     ReasonCode = "EYE_MOVEMENT"
	ReasonHeadDown        ReasonCode = "HEAD_DOWN"
	ReasonHeadUp          ReasonCode = "HEAD_UP"
)

// Validator keys. The two person-count predicates keep separate histories
// so each one sees an unbroken run of its own samples.
const (
	KeyPersonZero  = "person_count_zero"
	KeyPersonMulti = "person_count_multi"
	KeyPhone       = "phone"
)

// #endregion reason

// #region config

// Config holds the fusion thresholds.
type Config struct {
	Threshold         int // consecutive validated frames required for smoothed reasons
	WarningMinReasons int // reasons needed for WARNING when no raw tier fires
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		Threshold:         3,
		WarningMinReasons: 2,
	}
}

// #endregion config

// #region decision

// Decision is the output of one fusion cycle. Trigger names the raw
// condition that selected a CRITICAL or ALERT level; it can be set while
// the matching reason is still waiting for validation.
type Decision struct {
	Level           Level
	Reasons         []ReasonCode
	Trigger         ReasonCode
	SuspiciousAudio bool
}

// ReasonString joins the reason codes for storage as a violation type.
func (d Decision) ReasonString() string {
	parts := make([]string, len(d.Reasons))
	for i, r := range d.Reasons {
		parts[i] = string(r)
	}
	return strings.Join(parts, ", ")
}

// Type is the violation type recorded for this decision: the joined
// reasons, or the trigger when no reason has validated yet.
func (d Decision) Type() string {
	if len(d.Reasons) > 0 {
		return d.ReasonString()
	}
	return string(d.Trigger)
}

// Has reports whether code is among the active reasons.
func (d Decision) Has(code ReasonCode) bool {
	for _, r := range d.Reasons {
		if r == code {
			return true
		}
	}
	return false
}

// #endregion decision

// Input is one cycle's raw observations.
type Input = signals.Observations
