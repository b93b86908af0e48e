package replay

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danielpatrickdp/exam-proctor/go-monitor/internal/signals"
)

// #region script

// Script plays fixture cycles back as live sources. One value serves as
// the camera, face analyzer, object detector and audio feed; frame
// sequence numbers select the cycle each detector answers for.
type Script struct {
	cycles []Cycle
	loop   bool
	frame  []byte
	now    func() time.Time

	pos atomic.Int64 // sequence of the last frame handed out
}

// NewScript builds scripted sources from f. When loop is false the camera
// reports signals.ErrSourceClosed after the last cycle.
func NewScript(f *Fixture, loop bool) (*Script, error) {
	if f == nil || len(f.Cycles) == 0 {
		return nil, fmt.Errorf("new script: %w", errNoCycles)
	}
	frame, err := placeholderFrame()
	if err != nil {
		return nil, fmt.Errorf("new script: %w", err)
	}
	return &Script{
		cycles: f.ToCycles(),
		loop:   loop,
		frame:  frame,
		now:    time.Now,
	}, nil
}

// Len returns the number of scripted cycles.
func (s *Script) Len() int { return len(s.cycles) }

// Served returns how many frames have been handed out.
func (s *Script) Served() int64 { return s.pos.Load() }

func (s *Script) at(seq int64) (Cycle, bool) {
	if seq < 1 {
		return Cycle{}, false
	}
	return s.cycles[(seq-1)%int64(len(s.cycles))], true
}

// #endregion script

// #region camera

// Open starts a frame stream over the scripted cycles.
func (s *Script) Open(ctx context.Context) (signals.FrameStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &scriptStream{script: s}, nil
}

type scriptStream struct {
	script *Script
	mu     sync.Mutex
	closed bool
}

func (st *scriptStream) Read(ctx context.Context) (signals.Frame, error) {
	if err := ctx.Err(); err != nil {
		return signals.Frame{}, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.closed {
		return signals.Frame{}, signals.ErrSourceClosed
	}

	s := st.script
	if !s.loop && s.pos.Load() >= int64(len(s.cycles)) {
		return signals.Frame{}, fmt.Errorf("script exhausted: %w", signals.ErrSourceClosed)
	}
	seq := s.pos.Add(1)
	return signals.Frame{
		Seq:        seq,
		CapturedAt: s.now(),
		Data:       s.frame,
		Format:     "jpg",
	}, nil
}

func (st *scriptStream) Close() error {
	st.mu.Lock()
	st.closed = true
	st.mu.Unlock()
	return nil
}

// #endregion camera

// #region detectors

// Analyze returns the face observation scripted for the frame's cycle.
func (s *Script) Analyze(_ context.Context, f signals.Frame) (signals.FaceObservation, error) {
	c, ok := s.at(f.Seq)
	if !ok {
		return signals.FaceObservation{}, errUnscriptedFrame
	}
	return c.Input.Face, nil
}

// Detect returns the object observation scripted for the frame's cycle.
func (s *Script) Detect(_ context.Context, f signals.Frame) (signals.ObjectObservation, error) {
	c, ok := s.at(f.Seq)
	if !ok {
		return signals.ObjectObservation{}, errUnscriptedFrame
	}
	return c.Input.Objects, nil
}

// Status returns the audio scripted for the most recent frame, or silence
// before the first frame.
func (s *Script) Status() signals.AudioObservation {
	c, ok := s.at(s.pos.Load())
	if !ok {
		return signals.DefaultAudio()
	}
	a := c.Input.Audio
	a.SuspiciousKeywords = append([]string(nil), a.SuspiciousKeywords...)
	return a
}

// Available always reports true; a script has audio for every cycle.
func (s *Script) Available() bool { return true }

var errUnscriptedFrame = errors.New("frame has no scripted cycle")

// #endregion detectors

// placeholderFrame encodes a small grey JPEG used as evidence bytes.
func placeholderFrame() ([]byte, error) {
	img := image.NewGray(image.Rect(0, 0, 64, 48))
	for i := range img.Pix {
		img.Pix[i] = 128
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 70}); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	return buf.Bytes(), nil
}
