package session

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/danielpatrickdp/exam-proctor/go-monitor/internal/fusion"
	"github.com/danielpatrickdp/exam-proctor/go-monitor/internal/logging"
	"github.com/danielpatrickdp/exam-proctor/go-monitor/internal/recorder"
	"github.com/danielpatrickdp/exam-proctor/go-monitor/internal/signals"
)

// ErrStoreRequired is returned by New when no violation store is injected.
var ErrStoreRequired = errors.New("session: violation store required")

// #region page-events
// Page events reported by the exam front-end.
const (
	EventPageHidden      = "PAGE_HIDDEN"
	EventPageVisible     = "PAGE_VISIBLE"
	EventFullscreenExit  = "FULLSCREEN_EXIT"
	EventFullscreenEnter = "FULLSCREEN_ENTER"
)
// #endregion page-events

// #region config
// Config controls the video loop and everything it drives.
type Config struct {
	CycleInterval     time.Duration
	ReadTimeout       time.Duration
	StopTimeout       time.Duration
	ObjectDetectEvery int

	ValidationWindow int
	Fusion           fusion.Config
	Recorder         recorder.Config
}

// DefaultConfig runs ten cycles a second with object detection on every
// third cycle.
func DefaultConfig() Config {
	return Config{
		CycleInterval:     100 * time.Millisecond,
		ReadTimeout:       500 * time.Millisecond,
		StopTimeout:       2 * time.Second,
		ObjectDetectEvery: 3,
		ValidationWindow:  signals.DefaultWindow,
		Fusion:            fusion.DefaultConfig(),
		Recorder:          recorder.DefaultConfig(),
	}
}
// #endregion config

// #region deps
// Deps are the collaborators a session is built from. Only Store is
// required; every missing source degrades to its default observation.
type Deps struct {
	Camera   signals.Camera
	Face     signals.FaceAnalyzer
	Objects  signals.ObjectDetector
	Audio    signals.AudioFeed
	Store    recorder.Sink
	Evidence recorder.EvidenceWriter

	Logger  *zap.Logger
	Notices *logging.Once
	Now     func() time.Time

	// OnLifecycle is called after every Start and Stop with the new
	// monitoring state.
	OnLifecycle func(running bool)
}

// audioLifecycle is implemented by audio feeds that own background loops.
type audioLifecycle interface {
	Start(ctx context.Context) bool
	Stop()
}
// #endregion deps
