// Package cli implements the proctor command tree.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/exam-proctor/go-monitor/internal/config"
	"github.com/danielpatrickdp/exam-proctor/go-monitor/internal/evidence"
	"github.com/danielpatrickdp/exam-proctor/go-monitor/internal/logging"
	"github.com/danielpatrickdp/exam-proctor/go-monitor/internal/store"
)

// app carries the resolved configuration for one command invocation.
type app struct {
	configPath  string
	dbPath      string
	evidenceDir string
	logLevel    string

	cfg    *config.Config
	logger *zap.Logger
}

// NewRootCmd builds the command tree with fresh flag state.
func NewRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "proctor",
		Short: "Exam proctoring monitor",
		Long: `proctor fuses face, object and audio detections into alert levels,
records violations with evidence in SQLite and serves a JSON dashboard API.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "YAML config file (default: built-in defaults)")
	root.PersistentFlags().StringVarP(&a.dbPath, "db", "d", "", "Violation database path (default: $PROCTOR_DB or storage.db_path)")
	root.PersistentFlags().StringVar(&a.evidenceDir, "evidence-dir", "", "Evidence directory (default: $PROCTOR_EVIDENCE_DIR or storage.evidence_dir)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn, error")

	root.AddCommand(
		newServeCmd(a),
		newViolationsCmd(a),
		newReplayCmd(),
		newStatusCmd(a),
		newConfigCmd(a),
	)
	return root
}

// Execute runs the root command and exits non-zero on error.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// setup resolves config: file, then environment, then flags.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	cfg.ApplyEnv()
	if a.dbPath != "" {
		cfg.Storage.DBPath = a.dbPath
	}
	if a.evidenceDir != "" {
		cfg.Storage.EvidenceDir = a.evidenceDir
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	a.cfg, a.logger = cfg, logger
	return nil
}

func (a *app) openEvidence() (*evidence.Dir, error) {
	dir, err := evidence.NewDir(a.cfg.Storage.EvidenceDir)
	if err != nil {
		return nil, fmt.Errorf("open evidence dir: %w", err)
	}
	return dir, nil
}

func (a *app) openStore() (*store.SQLiteStore, *evidence.Dir, error) {
	dir, err := a.openEvidence()
	if err != nil {
		return nil, nil, err
	}
	s, err := store.NewSQLiteStore(a.cfg.Storage.DBPath, dir, a.logger.Named("store"))
	if err != nil {
		return nil, nil, err
	}
	return s, dir, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
