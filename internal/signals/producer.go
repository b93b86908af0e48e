package signals

import (
	"context"
	"errors"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/danielpatrickdp/exam-proctor/go-monitor/internal/logging"
)

// #region sampler

// sampler wraps one external detector. It degrades to a fallback when the
// detector is unavailable and reuses the last good reading after a
// transient failure, so a glitch never injects a false absence.
type sampler[T any] struct {
	name     string
	avail    atomic.Int32
	fallback T
	last     T
	sample   func(ctx context.Context, f Frame) (T, error)
	logger   *zap.Logger
	notices  *logging.Once
}

func newSampler[T any](name string, fallback T, fn func(context.Context, Frame) (T, error), logger *zap.Logger, notices *logging.Once) *sampler[T] {
	s := &sampler[T]{
		name:     name,
		fallback: fallback,
		last:     fallback,
		sample:   fn,
		logger:   logger,
		notices:  notices,
	}
	if fn == nil {
		s.avail.Store(int32(Unavailable))
	}
	return s
}

func (s *sampler[T]) availability() Availability {
	return Availability(s.avail.Load())
}

func (s *sampler[T]) read(ctx context.Context, f Frame) T {
	if s.availability() == Unavailable {
		s.notices.Warn(s.logger, s.name+"/unavailable", "source unavailable, using default observation",
			zap.String("source", s.name))
		return s.fallback
	}

	v, err := s.sample(ctx, f)
	switch {
	case err == nil:
		s.last = v
		return v
	case errors.Is(err, ErrSourceClosed):
		s.avail.Store(int32(Unavailable))
		s.notices.Warn(s.logger, s.name+"/closed", "source disconnected, using default observation",
			zap.String("source", s.name), zap.Error(err))
		s.last = s.fallback
		return s.fallback
	default:
		s.logger.Debug("transient sample failure, reusing last observation",
			zap.String("source", s.name), zap.Error(err))
		return s.last
	}
}

// #endregion sampler

// #region producer

// Sources bundles the optional detectors. Nil entries resolve to
// Unavailable when the Producer is built.
type Sources struct {
	Face    FaceAnalyzer
	Objects ObjectDetector
	Audio   AudioFeed
}

// Observations is everything sampled for one cycle.
type Observations struct {
	Face    FaceObservation
	Objects ObjectObservation
	Audio   AudioObservation
}

// Producer samples every source once per video cycle. Face and object
// sampling happen on the video loop goroutine only; audio is a snapshot.
type Producer struct {
	face    *sampler[FaceObservation]
	objects *sampler[ObjectObservation]
	audio   AudioFeed
	logger  *zap.Logger
	notices *logging.Once
}

// NewProducer resolves each source's availability once.
func NewProducer(src Sources, logger *zap.Logger, notices *logging.Once) *Producer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notices == nil {
		notices = &logging.Once{}
	}

	var faceFn func(context.Context, Frame) (FaceObservation, error)
	if src.Face != nil {
		faceFn = src.Face.Analyze
	}
	var objFn func(context.Context, Frame) (ObjectObservation, error)
	if src.Objects != nil {
		objFn = func(ctx context.Context, f Frame) (ObjectObservation, error) {
			o, err := src.Objects.Detect(ctx, f)
			o.PersonCount = ClampCount(o.PersonCount)
			return o, err
		}
	}

	return &Producer{
		face:    newSampler("face", DefaultFace(), faceFn, logger, notices),
		objects: newSampler("objects", DefaultObjects(), objFn, logger, notices),
		audio:   src.Audio,
		logger:  logger,
		notices: notices,
	}
}

// Produce samples the face analyzer, optionally the object detector, and
// the current audio snapshot. When sampleObjects is false the previous
// object reading is carried forward.
func (p *Producer) Produce(ctx context.Context, f Frame, sampleObjects bool) Observations {
	obs := Observations{Face: p.face.read(ctx, f)}
	if sampleObjects {
		obs.Objects = p.objects.read(ctx, f)
	} else {
		obs.Objects = p.objects.last
	}
	obs.Audio = p.AudioSnapshot()
	return obs
}

// Idle produces the degraded observation used when no frame could be
// acquired this cycle: last known video readings plus fresh audio.
func (p *Producer) Idle() Observations {
	return Observations{
		Face:    p.face.last,
		Objects: p.objects.last,
		Audio:   p.AudioSnapshot(),
	}
}

// AudioSnapshot returns the latest audio status or silence when the audio
// pipeline is absent.
func (p *Producer) AudioSnapshot() AudioObservation {
	if p.audio == nil || !p.audio.Available() {
		p.notices.Warn(p.logger, "audio/unavailable", "audio pipeline unavailable, assuming silence")
		return DefaultAudio()
	}
	return sanitizeAudio(p.audio.Status())
}

// FaceAvailability reports the face analyzer capability.
func (p *Producer) FaceAvailability() Availability { return p.face.availability() }

// ObjectAvailability reports the object detector capability.
func (p *Producer) ObjectAvailability() Availability { return p.objects.availability() }

// AudioAvailability reports the audio pipeline capability.
func (p *Producer) AudioAvailability() Availability {
	if p.audio == nil || !p.audio.Available() {
		return Unavailable
	}
	return Available
}

// #endregion producer

// #region helpers

// sanitizeAudio clamps volume into [0,100] and copies the keyword slice so
// the caller's snapshot cannot alias the feed's internal state.
func sanitizeAudio(a AudioObservation) AudioObservation {
	a.VolumeLevel = ClampVolume(a.VolumeLevel)
	if a.SuspiciousKeywords != nil {
		a.SuspiciousKeywords = append([]string(nil), a.SuspiciousKeywords...)
	}
	return a
}

// ClampVolume restricts v to [0, 100].
func ClampVolume(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// ClampCount restricts a person count to >= 0.
func ClampCount(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

// #endregion helpers
