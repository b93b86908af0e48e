package state

import (
	"sync"
	"testing"
	"time"

	"github.com/danielpatrickdp/exam-proctor/go-monitor/internal/fusion"
	"github.com/danielpatrickdp/exam-proctor/go-monitor/internal/signals"
)

func TestNewHolderPublishesInitial(t *testing.T) {
	h := NewHolder()
	s := h.Load()
	if s.AlertLevel != fusion.Normal {
		t.Fatalf("expected NORMAL, got %s", s.AlertLevel)
	}
	if !s.FaceDetected || s.PersonCount != 1 {
		t.Fatalf("expected degraded defaults, got %+v", s)
	}
	if s.SessionStart != nil {
		t.Fatal("session start must be nil before Start")
	}
}

func TestLoadIsIdempotent(t *testing.T) {
	h := NewHolder()
	h.Update(func(s AlertState) AlertState {
		s.PersonCount = 2
		s.AlertLevel = fusion.Critical
		return s
	})
	a, b := h.Load(), h.Load()
	if a.PersonCount != b.PersonCount || a.AlertLevel != b.AlertLevel || a.UpdatedAt != b.UpdatedAt {
		t.Fatalf("snapshots differ: %+v vs %+v", a, b)
	}
}

func TestSwapReturnsPrevious(t *testing.T) {
	h := NewHolder()
	next := Initial()
	next.PersonCount = 3
	prev := h.Swap(next)
	if prev.PersonCount != 1 {
		t.Fatalf("expected previous count 1, got %d", prev.PersonCount)
	}
	if h.Load().PersonCount != 3 {
		t.Fatalf("expected 3, got %d", h.Load().PersonCount)
	}
}

// Writers set paired fields together; a reader must never see one from
// cycle N next to the other from cycle N-1.
func TestConcurrentReadersSeeWholeSnapshots(t *testing.T) {
	h := NewHolder()
	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 2000; i++ {
			h.Update(func(s AlertState) AlertState {
				s.FramesProcessed = int64(i)
				s.PersonCount = i
				return s
			})
		}
		close(stop)
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				s := h.Load()
				if int64(s.PersonCount) != s.FramesProcessed && s.FramesProcessed != 0 {
					t.Errorf("torn snapshot: count=%d frames=%d", s.PersonCount, s.FramesProcessed)
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestFromCycleCarriesSessionFields(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	prev := Initial()
	prev.SessionID = "sess-1"
	prev.Running = true
	prev.SessionStart = &start
	prev.TotalViolationCount = 4

	in := fusion.Input{
		Face:    signals.FaceObservation{FaceDetected: false, Eye: signals.EyeNotDetected, Head: signals.HeadNotDetected},
		Objects: signals.ObjectObservation{PersonCount: -1},
		Audio:   signals.AudioObservation{VolumeLevel: 140, SuspiciousKeywords: []string{"help"}},
	}
	d := fusion.Decision{Level: fusion.Alert, Reasons: []fusion.ReasonCode{fusion.ReasonNoFace}, SuspiciousAudio: true}

	next := FromCycle(prev, in, d, start.Add(time.Second))
	if next.SessionID != "sess-1" || !next.Running || next.SessionStart != &start {
		t.Fatalf("session fields not carried: %+v", next)
	}
	if next.TotalViolationCount != 4 || next.FramesProcessed != 1 {
		t.Fatalf("counters wrong: %+v", next)
	}
	if next.PersonCount != 0 || next.VolumeLevel != 100 {
		t.Fatalf("expected clamped values, got count=%d volume=%d", next.PersonCount, next.VolumeLevel)
	}
	if !next.SuspiciousAudio || next.AlertLevel != fusion.Alert {
		t.Fatalf("decision not applied: %+v", next)
	}

	in.Audio.SuspiciousKeywords[0] = "mutated"
	if next.SuspiciousKeywords[0] != "help" {
		t.Fatal("snapshot aliases caller's keyword slice")
	}
}
