package replay

import (
	"github.com/danielpatrickdp/exam-proctor/go-monitor/internal/fusion"
	"github.com/danielpatrickdp/exam-proctor/go-monitor/internal/signals"
)

// #region types
// Cycle is a single recorded set of observations for replay.
type Cycle struct {
	CycleID string
	Input   fusion.Input
}

// ReplayConfig bundles the validator window and fusion thresholds.
type ReplayConfig struct {
	Window int
	Fusion fusion.Config
}

// DefaultReplayConfig returns the thresholds a live session uses.
func DefaultReplayConfig() ReplayConfig {
	return ReplayConfig{
		Window: signals.DefaultWindow,
		Fusion: fusion.DefaultConfig(),
	}
}

// ReplayResult captures the decision for one replayed cycle.
type ReplayResult struct {
	CycleID  string
	Decision fusion.Decision
}

// ReplaySummary provides aggregate stats from a replay run.
type ReplaySummary struct {
	TotalCycles int
	Normal      int
	Warnings    int
	Alerts      int
	Criticals   int
	Peak        fusion.Level
}

// Mismatch is one cycle whose replayed outcome drifted from the fixture.
type Mismatch struct {
	Index    int
	CycleID  string
	Expected FixtureExpectedResult
	Got      fusion.Decision
}

// #endregion types

// #region replay
// Replay feeds cycles through a fresh validator and fusion engine in order.
// Operates entirely in-memory.
func Replay(cycles []Cycle, config ReplayConfig) []ReplayResult {
	v := signals.NewValidator(config.Window)
	engine := fusion.NewEngine(config.Fusion)

	results := make([]ReplayResult, 0, len(cycles))
	for _, c := range cycles {
		results = append(results, ReplayResult{
			CycleID:  c.CycleID,
			Decision: engine.Evaluate(v, c.Input),
		})
	}
	return results
}

// Summarize computes aggregate stats from replay results.
func Summarize(results []ReplayResult) ReplaySummary {
	s := ReplaySummary{TotalCycles: len(results)}
	for _, r := range results {
		switch r.Decision.Level {
		case fusion.Normal:
			s.Normal++
		case fusion.Warning:
			s.Warnings++
		case fusion.Alert:
			s.Alerts++
		case fusion.Critical:
			s.Criticals++
		}
		if r.Decision.Level > s.Peak {
			s.Peak = r.Decision.Level
		}
	}
	return s
}

// Compare checks results against expected outcomes by position. Results
// beyond the expected list are not checked; a missing result is a mismatch.
func Compare(results []ReplayResult, expected []FixtureExpectedResult) []Mismatch {
	var out []Mismatch
	for i, e := range expected {
		if i >= len(results) {
			out = append(out, Mismatch{Index: i, CycleID: e.CycleID, Expected: e})
			continue
		}
		r := results[i]
		if !Matches(e, r.Decision) {
			out = append(out, Mismatch{Index: i, CycleID: r.CycleID, Expected: e, Got: r.Decision})
		}
	}
	return out
}

// Matches reports whether d has the expected level and, when listed, the
// expected reasons in order.
func Matches(e FixtureExpectedResult, d fusion.Decision) bool {
	level, err := fusion.ParseLevel(e.Level)
	if err != nil || level != d.Level {
		return false
	}
	if e.Reasons == nil {
		return true
	}
	if len(e.Reasons) != len(d.Reasons) {
		return false
	}
	for i, r := range e.Reasons {
		if string(d.Reasons[i]) != r {
			return false
		}
	}
	return true
}

// #endregion replay
