// Package config loads the proctoring monitor's YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/danielpatrickdp/exam-proctor/go-monitor/internal/audio"
	"github.com/danielpatrickdp/exam-proctor/go-monitor/internal/fusion"
	"github.com/danielpatrickdp/exam-proctor/go-monitor/internal/logging"
	"github.com/danielpatrickdp/exam-proctor/go-monitor/internal/recorder"
	"github.com/danielpatrickdp/exam-proctor/go-monitor/internal/session"
)

// #region types

// Config is the monitor configuration.
type Config struct {
	Storage    StorageConfig    `yaml:"storage"`
	Server     ServerConfig     `yaml:"server"`
	Logging    logging.Config   `yaml:"logging"`
	Validation ValidationConfig `yaml:"validation"`
	Recorder   RecorderConfig   `yaml:"recorder"`
	Session    SessionConfig    `yaml:"session"`
	Audio      AudioConfig      `yaml:"audio"`
	Retention  RetentionConfig  `yaml:"retention"`
}

// StorageConfig locates the violation database and evidence images.
type StorageConfig struct {
	DBPath      string `yaml:"db_path"`
	EvidenceDir string `yaml:"evidence_dir"`
}

// ServerConfig holds listen addresses. An empty gRPC address disables the
// health server.
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
	GRPCAddr string `yaml:"grpc_addr"`
}

// ValidationConfig tunes temporal smoothing.
type ValidationConfig struct {
	Window            int `yaml:"window"`
	Threshold         int `yaml:"threshold"`
	WarningMinReasons int `yaml:"warning_min_reasons"`
}

// RecorderConfig sizes the in-memory logs and the persistence policy.
type RecorderConfig struct {
	ActivityCapacity     int           `yaml:"activity_capacity"`
	ViolationLogCapacity int           `yaml:"violation_log_capacity"`
	PersistLevels        []string      `yaml:"persist_levels"`
	PersistCooldown      time.Duration `yaml:"persist_cooldown"`
}

// SessionConfig paces the video loop.
type SessionConfig struct {
	CycleInterval     time.Duration `yaml:"cycle_interval"`
	ReadTimeout       time.Duration `yaml:"read_timeout"`
	StopTimeout       time.Duration `yaml:"stop_timeout"`
	ObjectDetectEvery int           `yaml:"object_detect_every"`
}

// AudioConfig tunes the audio pipeline.
type AudioConfig struct {
	VolumeInterval         time.Duration `yaml:"volume_interval"`
	PhraseWindow           int           `yaml:"phrase_window"` // chunks per phrase
	AudioThreshold         int           `yaml:"audio_threshold"`
	SpeechThreshold        int           `yaml:"speech_threshold"`
	SilenceReads           int           `yaml:"silence_reads"`
	ConversationMinSamples int           `yaml:"conversation_min_samples"`
	ConversationVariance   float64       `yaml:"conversation_variance"`
	ConversationMean       float64       `yaml:"conversation_mean"`
	Languages              []string      `yaml:"languages"`
	Keywords               []string      `yaml:"keywords"`
	HindiKeywords          []string      `yaml:"hindi_keywords"`
	QuestionPaper          string        `yaml:"question_paper"`
}

// RetentionConfig controls pruning of old violation records.
type RetentionConfig struct {
	Days         int  `yaml:"days"`
	PruneOnStart bool `yaml:"prune_on_start"`
}

// #endregion types

// #region defaults

// Default returns the default configuration.
func Default() *Config {
	sess := session.DefaultConfig()
	rec := recorder.DefaultConfig()
	au := audio.DefaultConfig()

	levels := make([]string, len(rec.PersistLevels))
	for i, l := range rec.PersistLevels {
		levels[i] = l.String()
	}

	return &Config{
		Storage: StorageConfig{
			DBPath:      "violations.db",
			EvidenceDir: "violations",
		},
		Server: ServerConfig{
			HTTPAddr: "127.0.0.1:5000",
			GRPCAddr: "127.0.0.1:50051",
		},
		Logging: logging.DefaultConfig(),
		Validation: ValidationConfig{
			Window:            sess.ValidationWindow,
			Threshold:         sess.Fusion.Threshold,
			WarningMinReasons: sess.Fusion.WarningMinReasons,
		},
		Recorder: RecorderConfig{
			ActivityCapacity:     rec.ActivityCapacity,
			ViolationLogCapacity: rec.ViolationLogCapacity,
			PersistLevels:        levels,
			PersistCooldown:      rec.PersistCooldown,
		},
		Session: SessionConfig{
			CycleInterval:     sess.CycleInterval,
			ReadTimeout:       sess.ReadTimeout,
			StopTimeout:       sess.StopTimeout,
			ObjectDetectEvery: sess.ObjectDetectEvery,
		},
		Audio: AudioConfig{
			VolumeInterval:         au.VolumeInterval,
			PhraseWindow:           au.PhraseChunks,
			AudioThreshold:         au.AudioThreshold,
			SpeechThreshold:        au.SpeechThreshold,
			SilenceReads:           au.SilenceReads,
			ConversationMinSamples: au.ConversationMinSamples,
			ConversationVariance:   au.ConversationVariance,
			ConversationMean:       au.ConversationMean,
			Languages:              au.Languages,
			Keywords:               au.Keywords,
			HindiKeywords:          au.HindiKeywords,
			QuestionPaper:          au.QuestionPaper,
		},
		Retention: RetentionConfig{
			Days:         30,
			PruneOnStart: false,
		},
	}
}

// #endregion defaults

// #region load-save

// Load reads the YAML file at path over the defaults. A missing file
// yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Save writes cfg to path as YAML.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// ApplyEnv overrides paths, addresses and log level from the environment.
func (c *Config) ApplyEnv() {
	c.Storage.DBPath = envOr("PROCTOR_DB", c.Storage.DBPath)
	c.Storage.EvidenceDir = envOr("PROCTOR_EVIDENCE_DIR", c.Storage.EvidenceDir)
	c.Server.HTTPAddr = envOr("PROCTOR_HTTP_ADDR", c.Server.HTTPAddr)
	c.Server.GRPCAddr = envOr("PROCTOR_GRPC_ADDR", c.Server.GRPCAddr)
	c.Logging.Level = envOr("PROCTOR_LOG_LEVEL", c.Logging.Level)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion load-save

// #region validate

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.Storage.DBPath == "" {
		bad("storage.db_path must be set")
	}
	if c.Storage.EvidenceDir == "" {
		bad("storage.evidence_dir must be set")
	}
	if c.Server.HTTPAddr == "" {
		bad("server.http_addr must be set")
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "console":
	default:
		bad("logging.format %q: want json or console", c.Logging.Format)
	}

	v := c.Validation
	if v.Threshold < 1 {
		bad("validation.threshold must be >= 1, got %d", v.Threshold)
	}
	if v.Window < v.Threshold {
		bad("validation.window (%d) must be >= threshold (%d)", v.Window, v.Threshold)
	}
	if v.WarningMinReasons < 1 {
		bad("validation.warning_min_reasons must be >= 1, got %d", v.WarningMinReasons)
	}

	r := c.Recorder
	if r.ActivityCapacity < 1 {
		bad("recorder.activity_capacity must be >= 1, got %d", r.ActivityCapacity)
	}
	if r.ViolationLogCapacity < 1 {
		bad("recorder.violation_log_capacity must be >= 1, got %d", r.ViolationLogCapacity)
	}
	if _, err := parseLevels(r.PersistLevels); err != nil {
		bad("recorder.persist_levels: %w", err)
	}
	if r.PersistCooldown < 0 {
		bad("recorder.persist_cooldown must not be negative")
	}

	s := c.Session
	for name, d := range map[string]time.Duration{
		"session.cycle_interval": s.CycleInterval,
		"session.read_timeout":   s.ReadTimeout,
		"session.stop_timeout":   s.StopTimeout,
		"audio.volume_interval":  c.Audio.VolumeInterval,
	} {
		if d <= 0 {
			bad("%s must be positive, got %s", name, d)
		}
	}
	if s.ObjectDetectEvery < 1 {
		bad("session.object_detect_every must be >= 1, got %d", s.ObjectDetectEvery)
	}

	a := c.Audio
	if a.PhraseWindow < 1 {
		bad("audio.phrase_window must be >= 1, got %d", a.PhraseWindow)
	}
	if a.SilenceReads < 1 {
		bad("audio.silence_reads must be >= 1, got %d", a.SilenceReads)
	}
	if a.ConversationMinSamples < 1 {
		bad("audio.conversation_min_samples must be >= 1, got %d", a.ConversationMinSamples)
	}

	if c.Retention.Days < 0 {
		bad("retention.days must not be negative, got %d", c.Retention.Days)
	}

	return errors.Join(errs...)
}

func parseLevels(names []string) ([]fusion.Level, error) {
	levels := make([]fusion.Level, 0, len(names))
	for _, n := range names {
		l, err := fusion.ParseLevel(n)
		if err != nil {
			return nil, err
		}
		levels = append(levels, l)
	}
	return levels, nil
}

// #endregion validate

// #region convert

// ToSession builds the session settings. Call Validate first.
func (c *Config) ToSession() session.Config {
	sc := session.DefaultConfig()
	sc.CycleInterval = c.Session.CycleInterval
	sc.ReadTimeout = c.Session.ReadTimeout
	sc.StopTimeout = c.Session.StopTimeout
	sc.ObjectDetectEvery = c.Session.ObjectDetectEvery
	sc.ValidationWindow = c.Validation.Window
	sc.Fusion = fusion.Config{
		Threshold:         c.Validation.Threshold,
		WarningMinReasons: c.Validation.WarningMinReasons,
	}

	levels, err := parseLevels(c.Recorder.PersistLevels)
	if err != nil {
		levels = recorder.DefaultConfig().PersistLevels
	}
	sc.Recorder = recorder.Config{
		ActivityCapacity:     c.Recorder.ActivityCapacity,
		ViolationLogCapacity: c.Recorder.ViolationLogCapacity,
		PersistLevels:        levels,
		PersistCooldown:      c.Recorder.PersistCooldown,
	}
	return sc
}

// ToAudio builds the audio monitor settings.
func (c *Config) ToAudio() audio.Config {
	ac := audio.DefaultConfig()
	ac.VolumeInterval = c.Audio.VolumeInterval
	ac.PhraseChunks = c.Audio.PhraseWindow
	ac.AudioThreshold = c.Audio.AudioThreshold
	ac.SpeechThreshold = c.Audio.SpeechThreshold
	ac.SilenceReads = c.Audio.SilenceReads
	ac.ConversationMinSamples = c.Audio.ConversationMinSamples
	ac.ConversationVariance = c.Audio.ConversationVariance
	ac.ConversationMean = c.Audio.ConversationMean
	ac.Languages = c.Audio.Languages
	ac.Keywords = c.Audio.Keywords
	ac.HindiKeywords = c.Audio.HindiKeywords
	ac.QuestionPaper = c.Audio.QuestionPaper
	return ac
}

// #endregion convert
