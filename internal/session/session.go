package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/danielpatrickdp/exam-proctor/go-monitor/internal/fusion"
	"github.com/danielpatrickdp/exam-proctor/go-monitor/internal/logging"
	"github.com/danielpatrickdp/exam-proctor/go-monitor/internal/recorder"
	"github.com/danielpatrickdp/exam-proctor/go-monitor/internal/signals"
	"github.com/danielpatrickdp/exam-proctor/go-monitor/internal/state"
)

// #region session
// Session is one monitoring session. It owns its alert state, validation
// histories and logs; nothing is shared between sessions except the
// injected store.
type Session struct {
	id       string
	config   Config
	deps     Deps
	logger   *zap.Logger
	notices  *logging.Once
	holder   *state.Holder
	engine   *fusion.Engine
	recorder *recorder.Recorder
	producer *signals.Producer

	// validator is touched only by the video loop goroutine.
	validator *signals.Validator

	lifeMu  sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}

	errMu      sync.Mutex
	persistErr error
}

// New builds an idle session.
func New(deps Deps, config Config) (*Session, error) {
	if deps.Store == nil {
		return nil, ErrStoreRequired
	}
	def := DefaultConfig()
	if config.CycleInterval <= 0 {
		config.CycleInterval = def.CycleInterval
	}
	if config.ReadTimeout <= 0 {
		config.ReadTimeout = def.ReadTimeout
	}
	if config.StopTimeout <= 0 {
		config.StopTimeout = def.StopTimeout
	}
	if config.ObjectDetectEvery < 1 {
		config.ObjectDetectEvery = def.ObjectDetectEvery
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Notices == nil {
		deps.Notices = &logging.Once{}
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	id := uuid.New().String()
	logger := deps.Logger.Named("session").With(zap.String("session_id", id))
	s := &Session{
		id:        id,
		config:    config,
		deps:      deps,
		logger:    logger,
		notices:   deps.Notices,
		holder:    state.NewHolder(),
		engine:    fusion.NewEngine(config.Fusion),
		recorder:  recorder.New(deps.Store, deps.Evidence, config.Recorder, deps.Logger.Named("recorder")),
		validator: signals.NewValidator(config.ValidationWindow),
		producer: signals.NewProducer(signals.Sources{
			Face:    deps.Face,
			Objects: deps.Objects,
			Audio:   deps.Audio,
		}, deps.Logger.Named("signals"), deps.Notices),
	}
	s.holder.Update(func(st state.AlertState) state.AlertState {
		st.SessionID = id
		st.Sources = s.sources()
		return st
	})
	return s, nil
}

// ID returns the session's UUID.
func (s *Session) ID() string {
	return s.id
}
// #endregion session

// #region lifecycle
// Start begins monitoring. Starting a running session returns the current
// snapshot without side effects. The loops outlive ctx's cancellation;
// only Stop ends them.
func (s *Session) Start(ctx context.Context) (state.AlertState, error) {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()
	if s.running {
		return s.holder.Load(), nil
	}

	base, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.validator.Reset()

	if a, ok := s.deps.Audio.(audioLifecycle); ok {
		a.Start(base)
	}

	now := s.deps.Now()
	snap := s.holder.Update(func(st state.AlertState) state.AlertState {
		next := state.Initial()
		next.SessionID = s.id
		next.Running = true
		next.SessionStart = &now
		next.UpdatedAt = now
		next.TotalViolationCount = s.recorder.Total()
		next.Sources = s.sources()
		return next
	})
	s.recorder.AddActivity("System started", recorder.LevelInfo)

	g, gctx := errgroup.WithContext(base)
	g.Go(func() error { return s.videoLoop(gctx) })

	done := make(chan struct{})
	go func() {
		err := g.Wait()
		close(done)
		if err != nil {
			s.abort(done, err)
		}
	}()

	s.running, s.cancel, s.done = true, cancel, done
	s.logger.Info("monitoring started", zap.String("face", snap.Sources.Face),
		zap.String("objects", snap.Sources.Objects), zap.String("audio", snap.Sources.Audio))
	if s.deps.OnLifecycle != nil {
		s.deps.OnLifecycle(true)
	}
	return snap, nil
}

// Stop ends monitoring and waits up to StopTimeout for the video loop,
// which releases the camera on its way out. Stopping an idle session is a
// no-op.
func (s *Session) Stop() {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	s.cancel()

	select {
	case <-s.done:
	case <-time.After(s.config.StopTimeout):
		s.logger.Warn("video loop did not exit before timeout", zap.Duration("timeout", s.config.StopTimeout))
	}
	if a, ok := s.deps.Audio.(audioLifecycle); ok {
		a.Stop()
	}

	s.holder.Update(func(st state.AlertState) state.AlertState {
		next := state.Initial()
		next.SessionID = s.id
		next.UpdatedAt = s.deps.Now()
		next.TotalViolationCount = s.recorder.Total()
		next.Sources = s.sources()
		next.LastPersistError = st.LastPersistError
		return next
	})
	s.recorder.AddActivity("System stopped", recorder.LevelInfo)
	s.logger.Info("monitoring stopped")
	if s.deps.OnLifecycle != nil {
		s.deps.OnLifecycle(false)
	}
}

// abort winds down a session whose video loop ended on its own. It is a
// no-op when Stop already claimed the run identified by done.
func (s *Session) abort(done chan struct{}, err error) {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()
	s.logger.Error("video loop ended abnormally", zap.Error(err))
	if !s.running || s.done != done {
		return
	}
	s.running = false
	s.cancel()
	if a, ok := s.deps.Audio.(audioLifecycle); ok {
		a.Stop()
	}

	s.holder.Update(func(st state.AlertState) state.AlertState {
		st.Running = false
		st.UpdatedAt = s.deps.Now()
		return st
	})
	s.recorder.AddActivity("Monitoring stopped unexpectedly", recorder.LevelCritical)
	if s.deps.OnLifecycle != nil {
		s.deps.OnLifecycle(false)
	}
}

// Running reports whether monitoring is active. A video loop that ends on
// its own clears it, so a later Start resumes monitoring.
func (s *Session) Running() bool {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()
	return s.running
}
// #endregion lifecycle

// #region accessors
// Status returns the current snapshot.
func (s *Session) Status() state.AlertState {
	return s.holder.Load()
}

// Activities returns up to n most recent activity lines.
func (s *Session) Activities(n int) []recorder.Activity {
	return s.recorder.Activities(n)
}

// Violations returns up to n most recent in-memory violation entries and
// the running total.
func (s *Session) Violations(n int) ([]recorder.Entry, int) {
	return s.recorder.Violations(n), s.recorder.Total()
}

// LastPersistError returns the store failure from the latest recorded
// cycle or page event, or nil when it succeeded.
func (s *Session) LastPersistError() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.persistErr
}

func (s *Session) setPersistErr(err error) string {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	s.persistErr = err
	if err == nil {
		return ""
	}
	return err.Error()
}

func (s *Session) sources() state.SourceStatus {
	return state.SourceStatus{
		Face:    s.producer.FaceAvailability().String(),
		Objects: s.producer.ObjectAvailability().String(),
		Audio:   s.producer.AudioAvailability().String(),
	}
}
// #endregion accessors

// #region page-events
// LogPageEvent records a browser visibility or fullscreen change. Tab
// switches and fullscreen exits are CRITICAL violations and are persisted
// immediately; the other known events are informational. Unknown types are
// logged as INFO and never fail.
func (s *Session) LogPageEvent(ctx context.Context, eventType string) error {
	var msg, vType string
	switch eventType {
	case EventPageHidden:
		msg, vType = "🚨 User switched tab/minimized window", "Page visibility: Tab switched or window hidden"
	case EventFullscreenExit:
		msg, vType = "🚨 User exited fullscreen mode", "Fullscreen: User exited fullscreen"
	case EventFullscreenEnter:
		s.recorder.AddActivity("✓ Fullscreen mode activated", recorder.LevelInfo)
		return nil
	case EventPageVisible:
		s.recorder.AddActivity("✓ User returned to exam tab", recorder.LevelInfo)
		return nil
	default:
		s.recorder.AddActivity("Unknown event: "+eventType, recorder.LevelInfo)
		return nil
	}

	s.recorder.AddActivity(msg, recorder.LevelCritical)
	err := s.recorder.Record(ctx, recorder.Event{
		At:        s.deps.Now(),
		Decision:  fusion.Decision{Level: fusion.Critical},
		SessionID: s.id,
		Type:      vType,
		Immediate: true,
	}, nil)
	errStr := s.setPersistErr(err)
	s.holder.Update(func(st state.AlertState) state.AlertState {
		st.TotalViolationCount = s.recorder.Total()
		st.LastPersistError = errStr
		return st
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("page event not persisted", zap.String("event", eventType), zap.Error(err))
	}
	return err
}
// #endregion page-events
