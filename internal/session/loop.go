package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/danielpatrickdp/exam-proctor/go-monitor/internal/recorder"
	"github.com/danielpatrickdp/exam-proctor/go-monitor/internal/signals"
	"github.com/danielpatrickdp/exam-proctor/go-monitor/internal/state"
)

var errNoFrame = errors.New("no frame captured this cycle")

// #region video-loop
// videoLoop runs one fusion cycle per tick until ctx is cancelled. The
// camera stream is scoped to the loop and released on every exit path,
// including a panic inside a cycle.
func (s *Session) videoLoop(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("video loop panic: %v", r)
		}
	}()

	stream := s.openCamera(ctx)
	defer func() {
		if stream != nil {
			stream.Close()
		}
	}()

	ticker := time.NewTicker(s.config.CycleInterval)
	defer ticker.Stop()

	var cycle int64
	for ctx.Err() == nil {
		var frame signals.Frame
		var ok bool
		frame, ok, stream = s.acquire(ctx, stream)
		if ctx.Err() != nil {
			return nil
		}

		var obs signals.Observations
		if ok {
			obs = s.producer.Produce(ctx, frame, cycle%int64(s.config.ObjectDetectEvery) == 0)
		} else {
			obs = s.producer.Idle()
		}
		s.cycle(ctx, obs, frame, ok)
		cycle++

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
	return nil
}

func (s *Session) openCamera(ctx context.Context) signals.FrameStream {
	if s.deps.Camera == nil {
		s.notices.Warn(s.logger, "camera/unavailable", "no camera, running on default video observations")
		return nil
	}
	octx, cancel := context.WithTimeout(ctx, s.config.ReadTimeout)
	defer cancel()
	stream, err := s.deps.Camera.Open(octx)
	if err != nil {
		s.notices.Warn(s.logger, "camera/open", "camera failed to open, running on default video observations",
			zap.Error(err))
		return nil
	}
	return stream
}

// acquire reads one frame with a bounded wait. A closed stream is released
// and dropped so later cycles run on defaults.
func (s *Session) acquire(ctx context.Context, stream signals.FrameStream) (signals.Frame, bool, signals.FrameStream) {
	if stream == nil {
		return signals.Frame{}, false, nil
	}
	rctx, cancel := context.WithTimeout(ctx, s.config.ReadTimeout)
	defer cancel()

	f, err := stream.Read(rctx)
	switch {
	case err == nil:
		return f, true, stream
	case errors.Is(err, signals.ErrSourceClosed):
		s.notices.Warn(s.logger, "camera/closed", "camera disconnected, running on default video observations",
			zap.Error(err))
		stream.Close()
		return signals.Frame{}, false, nil
	default:
		s.logger.Debug("frame read failed", zap.Error(err))
		return signals.Frame{}, false, stream
	}
}
// #endregion video-loop

// #region cycle
// cycle fuses one set of observations, records the result and publishes the
// new snapshot in a single swap.
func (s *Session) cycle(ctx context.Context, obs signals.Observations, frame signals.Frame, haveFrame bool) {
	now := s.deps.Now()
	d := s.engine.Evaluate(s.validator, obs)

	supplier := func() ([]byte, string, error) {
		if !haveFrame || len(frame.Data) == 0 {
			return nil, "", errNoFrame
		}
		return frame.Data, frame.Format, nil
	}
	err := s.recorder.Record(ctx, recorder.Event{
		At:        now,
		Decision:  d,
		Input:     obs,
		SessionID: s.id,
		FrameSeq:  frame.Seq,
	}, supplier)
	if err != nil && ctx.Err() != nil {
		// Cancelled mid-write during stop; not a storage fault.
		err = nil
	}
	errStr := s.setPersistErr(err)

	s.holder.Update(func(prev state.AlertState) state.AlertState {
		next := state.FromCycle(prev, obs, d, now)
		next.TotalViolationCount = s.recorder.Total()
		next.Sources = s.sources()
		next.LastPersistError = errStr
		return next
	})
}
// #endregion cycle
