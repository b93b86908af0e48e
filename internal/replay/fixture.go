package replay

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/danielpatrickdp/exam-proctor/go-monitor/internal/fusion"
	"github.com/danielpatrickdp/exam-proctor/go-monitor/internal/signals"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture.
type Fixture struct {
	Description     string                  `json:"description"`
	Config          FixtureConfig           `json:"config"`
	Cycles          []FixtureCycle          `json:"cycles"`
	ExpectedResults []FixtureExpectedResult `json:"expected_results"`
}

// FixtureConfig mirrors the validation and fusion thresholds with JSON
// tags. Zero values fall back to the defaults.
type FixtureConfig struct {
	Window            int `json:"window"`
	Threshold         int `json:"threshold"`
	WarningMinReasons int `json:"warning_min_reasons"`
}

// FixtureCycle is one recorded cycle. A missing source means that source
// was unavailable and its default observation applies.
type FixtureCycle struct {
	CycleID string                     `json:"cycle_id"`
	Face    *signals.FaceObservation   `json:"face,omitempty"`
	Objects *signals.ObjectObservation `json:"objects,omitempty"`
	Audio   *signals.AudioObservation  `json:"audio,omitempty"`
}

// FixtureExpectedResult captures the expected level and reasons per cycle.
// A nil Reasons slice skips the reason comparison.
type FixtureExpectedResult struct {
	CycleID string   `json:"cycle_id"`
	Level   string   `json:"level"`
	Reasons []string `json:"reasons,omitempty"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	if len(f.Cycles) == 0 {
		return nil, fmt.Errorf("fixture %s: %w", path, errNoCycles)
	}
	for i, e := range f.ExpectedResults {
		if _, err := fusion.ParseLevel(e.Level); err != nil {
			return nil, fmt.Errorf("fixture %s: expected result %d: %w", path, i, err)
		}
	}
	return &f, nil
}

var errNoCycles = errors.New("no cycles")

// ToCycle converts a FixtureCycle to a domain Cycle, substituting defaults
// for absent sources.
func (fc *FixtureCycle) ToCycle() Cycle {
	c := Cycle{
		CycleID: fc.CycleID,
		Input: fusion.Input{
			Face:    signals.DefaultFace(),
			Objects: signals.DefaultObjects(),
			Audio:   signals.DefaultAudio(),
		},
	}
	if fc.Face != nil {
		c.Input.Face = *fc.Face
	}
	if fc.Objects != nil {
		c.Input.Objects = *fc.Objects
		c.Input.Objects.PersonCount = signals.ClampCount(c.Input.Objects.PersonCount)
	}
	if fc.Audio != nil {
		c.Input.Audio = *fc.Audio
		c.Input.Audio.VolumeLevel = signals.ClampVolume(c.Input.Audio.VolumeLevel)
	}
	return c
}

// ToCycles converts every fixture cycle, numbering unnamed ones.
func (f *Fixture) ToCycles() []Cycle {
	cycles := make([]Cycle, len(f.Cycles))
	for i := range f.Cycles {
		cycles[i] = f.Cycles[i].ToCycle()
		if cycles[i].CycleID == "" {
			cycles[i].CycleID = fmt.Sprintf("cycle-%d", i+1)
		}
	}
	return cycles
}

// ToReplayConfig converts a FixtureConfig to a domain ReplayConfig.
func (fc *FixtureConfig) ToReplayConfig() ReplayConfig {
	cfg := DefaultReplayConfig()
	if fc.Window > 0 {
		cfg.Window = fc.Window
	}
	if fc.Threshold > 0 {
		cfg.Fusion.Threshold = fc.Threshold
	}
	if fc.WarningMinReasons > 0 {
		cfg.Fusion.WarningMinReasons = fc.WarningMinReasons
	}
	return cfg
}

// #endregion fixture-loader
