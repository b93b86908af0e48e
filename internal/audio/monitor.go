package audio

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/danielpatrickdp/exam-proctor/go-monitor/internal/logging"
	"github.com/danielpatrickdp/exam-proctor/go-monitor/internal/signals"
)

// #region monitor
// Monitor runs the volume and speech loops and publishes the latest audio
// snapshot. It satisfies signals.AudioFeed.
type Monitor struct {
	mic        Microphone
	recognizer Recognizer
	config     Config
	logger     *zap.Logger
	notices    *logging.Once

	mu       sync.RWMutex
	status   signals.AudioObservation
	history  []int
	question *QuestionPaper

	lifeMu  sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// NewMonitor builds a monitor. A nil mic makes the monitor permanently
// unavailable; a nil recognizer disables the speech loop only.
func NewMonitor(mic Microphone, recognizer Recognizer, config Config, logger *zap.Logger) *Monitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultConfig()
	if config.ChunkSize < 1 {
		config.ChunkSize = def.ChunkSize
	}
	if config.PhraseChunks < 1 {
		config.PhraseChunks = def.PhraseChunks
	}
	if config.ReadTimeout <= 0 {
		config.ReadTimeout = def.ReadTimeout
	}
	if config.StopTimeout <= 0 {
		config.StopTimeout = def.StopTimeout
	}
	if config.HistoryCapacity < 1 {
		config.HistoryCapacity = def.HistoryCapacity
	}
	if len(config.Languages) == 0 {
		config.Languages = def.Languages
	}
	return &Monitor{
		mic:        mic,
		recognizer: recognizer,
		config:     config,
		logger:     logger,
		notices:    &logging.Once{},
	}
}

// SetQuestionPaper enables question-paper matching for later phrases.
func (m *Monitor) SetQuestionPaper(q *QuestionPaper) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.question = q
}

// Available reports whether a microphone was supplied.
func (m *Monitor) Available() bool {
	return m.mic != nil
}

// Status returns a copy of the latest snapshot.
func (m *Monitor) Status() signals.AudioObservation {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := m.status
	if s.SuspiciousKeywords != nil {
		s.SuspiciousKeywords = append([]string(nil), s.SuspiciousKeywords...)
	}
	return s
}

// Running reports whether the loops are active.
func (m *Monitor) Running() bool {
	m.lifeMu.Lock()
	defer m.lifeMu.Unlock()
	return m.running
}
// #endregion monitor

// #region lifecycle
// Start launches both loops. It returns false when no microphone is
// available and true when the loops are (already) running.
func (m *Monitor) Start(ctx context.Context) bool {
	if !m.Available() {
		m.notices.Warn(m.logger, "audio/no-mic", "no microphone, audio monitoring disabled")
		return false
	}

	m.lifeMu.Lock()
	defer m.lifeMu.Unlock()
	if m.running {
		return true
	}

	m.mu.Lock()
	m.status = signals.DefaultAudio()
	m.history = nil
	m.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return m.volumeLoop(gctx) })
	if m.recognizer != nil {
		g.Go(func() error { return m.speechLoop(gctx) })
	} else {
		m.notices.Warn(m.logger, "audio/no-recognizer", "no speech recognizer, speech detection disabled")
	}

	done := make(chan struct{})
	go func() {
		if err := g.Wait(); err != nil {
			m.logger.Warn("audio loop exited", zap.Error(err))
		}
		close(done)
	}()

	m.cancel, m.done, m.running = cancel, done, true
	m.logger.Info("audio monitoring started", zap.Bool("speech", m.recognizer != nil))
	return true
}

// Stop signals both loops and waits up to StopTimeout for them to exit.
// Calling Stop when not running is a no-op.
func (m *Monitor) Stop() {
	m.lifeMu.Lock()
	if !m.running {
		m.lifeMu.Unlock()
		return
	}
	cancel, done := m.cancel, m.done
	m.cancel, m.done, m.running = nil, nil, false
	m.lifeMu.Unlock()

	cancel()
	select {
	case <-done:
		m.logger.Info("audio monitoring stopped")
	case <-time.After(m.config.StopTimeout):
		m.logger.Warn("audio loops did not exit before timeout", zap.Duration("timeout", m.config.StopTimeout))
	}
}
// #endregion lifecycle

// #region volume-loop
func (m *Monitor) volumeLoop(ctx context.Context) error {
	stream, err := m.mic.Open(ctx)
	if err != nil {
		m.notices.Warn(m.logger, "audio/volume-open", "volume stream unavailable", zap.Error(err))
		return nil
	}
	defer stream.Close()

	buf := make([]int16, m.config.ChunkSize)
	quiet := 0
	for ctx.Err() == nil {
		n, err := m.read(ctx, stream, buf)
		switch {
		case ctx.Err() != nil:
			return nil
		case errors.Is(err, signals.ErrSourceClosed):
			m.notices.Warn(m.logger, "audio/volume-closed", "microphone disconnected", zap.Error(err))
			m.update(func(s *signals.AudioObservation) { s.AudioDetected, s.VolumeLevel = false, 0 })
			return nil
		case errors.Is(err, context.DeadlineExceeded):
			// No data this period; treat as silence.
			n = 0
		case err != nil:
			m.logger.Debug("volume read failed", zap.Error(err))
			if !sleep(ctx, m.config.VolumeInterval) {
				return nil
			}
			continue
		}

		raw := Volume(buf[:n])
		m.update(func(s *signals.AudioObservation) {
			s.VolumeLevel = Smooth(s.VolumeLevel, raw)
			if s.VolumeLevel > m.config.AudioThreshold {
				s.AudioDetected = true
				quiet = 0
			} else {
				quiet++
				if quiet > m.config.SilenceReads {
					s.AudioDetected = false
				}
			}
			m.history = appendHistory(m.history, s.VolumeLevel, m.config.HistoryCapacity)
			s.ConversationDetected = DetectConversation(m.history,
				m.config.ConversationMinSamples, m.config.ConversationVariance, m.config.ConversationMean)
		})

		if !sleep(ctx, m.config.VolumeInterval) {
			return nil
		}
	}
	return nil
}
// #endregion volume-loop

// #region speech-loop
func (m *Monitor) speechLoop(ctx context.Context) error {
	stream, err := m.mic.Open(ctx)
	if err != nil {
		m.notices.Warn(m.logger, "audio/speech-open", "speech stream unavailable", zap.Error(err))
		return nil
	}
	defer stream.Close()

	chunk := make([]int16, m.config.ChunkSize)
	for ctx.Err() == nil {
		phrase := make([]int16, 0, m.config.ChunkSize*m.config.PhraseChunks)
		closed := false
		for i := 0; i < m.config.PhraseChunks && ctx.Err() == nil; i++ {
			n, err := m.read(ctx, stream, chunk)
			if errors.Is(err, signals.ErrSourceClosed) {
				closed = true
				break
			}
			if err != nil {
				if !errors.Is(err, context.DeadlineExceeded) {
					m.logger.Debug("speech read failed", zap.Error(err))
					sleep(ctx, m.config.VolumeInterval)
				}
				continue
			}
			phrase = append(phrase, chunk[:n]...)
		}
		if ctx.Err() != nil {
			return nil
		}
		if closed {
			m.notices.Warn(m.logger, "audio/speech-closed", "microphone disconnected, speech detection stopped")
			m.update(func(s *signals.AudioObservation) { clearSpeech(s) })
			return nil
		}
		m.processPhrase(ctx, phrase)
	}
	return nil
}

// processPhrase recognizes a phrase when it is loud enough and folds the
// result into the snapshot.
func (m *Monitor) processPhrase(ctx context.Context, phrase []int16) {
	if Volume(phrase) <= m.config.SpeechThreshold {
		m.update(func(s *signals.AudioObservation) { clearSpeech(s) })
		return
	}

	var (
		text, lang  string
		understood  bool
		serviceErrs int
		lastErr     error
	)
	for _, l := range m.config.Languages {
		res := m.recognizer.Recognize(ctx, phrase, l)
		if res.Outcome == Recognized && res.Text != "" {
			text, lang, understood = res.Text, l, true
			break
		}
		if res.Outcome == ServiceError {
			serviceErrs++
			lastErr = res.Err
		}
	}

	switch {
	case understood:
		m.mu.RLock()
		q := m.question
		m.mu.RUnlock()
		hits := MatchKeywords(text, m.config.Keywords, m.config.HindiKeywords)
		hits = append(hits, q.Matches(text, m.config.QuestionMinMatches)...)
		m.update(func(s *signals.AudioObservation) {
			s.SpeechDetected = true
			s.LastSpeech = lowerTrim(text)
			s.Language = lang
			s.SuspiciousKeywords = hits
		})
		m.logger.Debug("speech recognized", zap.String("language", lang), zap.Strings("keywords", hits))
	case serviceErrs == len(m.config.Languages):
		m.notices.Warn(m.logger, "audio/recognizer-error", "speech service unavailable, keeping last speech status",
			zap.Error(lastErr))
	default:
		m.update(func(s *signals.AudioObservation) { clearSpeech(s) })
	}
}
// #endregion speech-loop

// #region helpers
func (m *Monitor) update(fn func(s *signals.AudioObservation)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(&m.status)
	m.status.VolumeLevel = clamp(m.status.VolumeLevel)
}

// read bounds a single stream read by ReadTimeout.
func (m *Monitor) read(ctx context.Context, s Stream, buf []int16) (int, error) {
	rctx, cancel := context.WithTimeout(ctx, m.config.ReadTimeout)
	defer cancel()
	n, err := s.Read(rctx, buf)
	if n > len(buf) {
		n = len(buf)
	}
	if n < 0 {
		n = 0
	}
	return n, err
}

func clearSpeech(s *signals.AudioObservation) {
	s.SpeechDetected = false
	s.LastSpeech = ""
	s.Language = ""
	s.SuspiciousKeywords = nil
}

func appendHistory(h []int, v, capacity int) []int {
	h = append(h, v)
	if over := len(h) - capacity; over > 0 {
		h = append(h[:0:0], h[over:]...)
	}
	return h
}

// sleep waits d or until ctx is done; it reports false on cancellation.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func lowerTrim(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
// #endregion helpers
