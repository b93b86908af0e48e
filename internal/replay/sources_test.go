package replay

import (
	"bytes"
	"context"
	"errors"
	"image/jpeg"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/danielpatrickdp/exam-proctor/go-monitor/internal/fusion"
	"github.com/danielpatrickdp/exam-proctor/go-monitor/internal/signals"
)

func loadScript(t *testing.T, name string, loop bool) (*Fixture, *Script) {
	t.Helper()
	f, err := LoadFixture(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("LoadFixture: %v", err)
	}
	s, err := NewScript(f, loop)
	if err != nil {
		t.Fatalf("NewScript: %v", err)
	}
	return f, s
}

// TestScript_ExhaustsWithoutLoop verifies the camera closes after the last cycle.
func TestScript_ExhaustsWithoutLoop(t *testing.T) {
	_, s := loadScript(t, "scenario_face_loss.json", false)
	stream, err := s.Open(context.Background())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer stream.Close()

	for i := 1; i <= s.Len(); i++ {
		f, err := stream.Read(context.Background())
		if err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
		if f.Seq != int64(i) {
			t.Errorf("expected seq %d, got %d", i, f.Seq)
		}
	}
	if _, err := stream.Read(context.Background()); !errors.Is(err, signals.ErrSourceClosed) {
		t.Fatalf("expected ErrSourceClosed after last cycle, got %v", err)
	}
}

// TestScript_Loops verifies a looping script wraps back to the first cycle.
func TestScript_Loops(t *testing.T) {
	_, s := loadScript(t, "scenario_face_loss.json", true)
	stream, _ := s.Open(context.Background())
	defer stream.Close()

	var last signals.Frame
	for i := 0; i < 3; i++ {
		f, err := stream.Read(context.Background())
		if err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
		last = f
	}
	face, err := s.Analyze(context.Background(), last)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if face.FaceDetected {
		t.Error("expected third frame to replay the first (face lost) cycle")
	}
}

// TestScript_ClosedStream verifies reads after Close fail as closed.
func TestScript_ClosedStream(t *testing.T) {
	_, s := loadScript(t, "scenario_face_loss.json", true)
	stream, _ := s.Open(context.Background())
	stream.Close()
	if _, err := stream.Read(context.Background()); !errors.Is(err, signals.ErrSourceClosed) {
		t.Fatalf("expected ErrSourceClosed, got %v", err)
	}
}

// TestScript_CancelledRead verifies a cancelled context is honoured.
func TestScript_CancelledRead(t *testing.T) {
	_, s := loadScript(t, "scenario_face_loss.json", true)
	stream, _ := s.Open(context.Background())
	defer stream.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := stream.Read(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if s.Served() != 0 {
		t.Errorf("expected no frame served, got %d", s.Served())
	}
}

// TestScript_FrameIsJPEG verifies the placeholder frame decodes.
func TestScript_FrameIsJPEG(t *testing.T) {
	_, s := loadScript(t, "scenario_face_loss.json", false)
	stream, _ := s.Open(context.Background())
	defer stream.Close()
	f, err := stream.Read(context.Background())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if f.Format != "jpg" {
		t.Errorf("expected jpg format, got %s", f.Format)
	}
	if _, err := jpeg.DecodeConfig(bytes.NewReader(f.Data)); err != nil {
		t.Errorf("expected decodable JPEG: %v", err)
	}
}

// TestScript_AudioFollowsFrames verifies Status tracks the last frame served.
func TestScript_AudioFollowsFrames(t *testing.T) {
	_, s := loadScript(t, "mixed_session.json", false)
	if s.Status().SpeechDetected {
		t.Error("expected silence before the first frame")
	}
	stream, _ := s.Open(context.Background())
	defer stream.Close()
	for i := 0; i < 4; i++ {
		if _, err := stream.Read(context.Background()); err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
	}
	if !s.Status().SpeechDetected {
		t.Error("expected scripted speech on cycle m4")
	}
}

// TestScript_UnscriptedFrame verifies a frame from elsewhere is a transient failure.
func TestScript_UnscriptedFrame(t *testing.T) {
	_, s := loadScript(t, "mixed_session.json", false)
	if _, err := s.Detect(context.Background(), signals.Frame{}); err == nil {
		t.Fatal("expected error for frame without sequence")
	}
}

// TestScript_MatchesReplay drives the scripted sources through a Producer
// and checks the live path fuses to the same decisions as Replay.
func TestScript_MatchesReplay(t *testing.T) {
	f, s := loadScript(t, "mixed_session.json", false)
	config := f.Config.ToReplayConfig()
	want := Replay(f.ToCycles(), config)

	p := signals.NewProducer(signals.Sources{Face: s, Objects: s, Audio: s}, zap.NewNop(), nil)
	v := signals.NewValidator(config.Window)
	engine := fusion.NewEngine(config.Fusion)

	stream, _ := s.Open(context.Background())
	defer stream.Close()
	for i := range want {
		frame, err := stream.Read(context.Background())
		if err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
		got := engine.Evaluate(v, p.Produce(context.Background(), frame, true))
		if got.Level != want[i].Decision.Level || got.ReasonString() != want[i].Decision.ReasonString() {
			t.Errorf("cycle %s: live %s [%s], replay %s [%s]", want[i].CycleID,
				got.Level, got.ReasonString(), want[i].Decision.Level, want[i].Decision.ReasonString())
		}
	}
}

func TestNewScript_Empty(t *testing.T) {
	if _, err := NewScript(&Fixture{}, false); err == nil {
		t.Fatal("expected error for empty fixture")
	}
}
