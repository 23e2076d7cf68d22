// Package cli wires the cobra command tree to the probing engine and its
// supporting services.
package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"ctxprobe/internal/common/fsutil"
	"ctxprobe/internal/config"
	"ctxprobe/internal/ollama"
)

// Version is stamped at build time.
var Version = "dev"

// app carries the merged configuration and shared collaborators built in
// the root PersistentPreRun. One explicit value, injected everywhere; no
// package-global endpoint state.
type app struct {
	cfg config.Config
	log zerolog.Logger

	// flag sinks, merged over file config in PersistentPreRunE
	flagAPI      string
	flagConfig   string
	flagLogLevel string
	flagDataDir  string
}

func (a *app) client() *ollama.Client {
	return ollama.New(ollama.Config{
		BaseURL:        a.cfg.APIBase,
		RequestTimeout: a.cfg.RequestTimeout(),
		InvokeTimeout:  a.cfg.InvokeTimeout(),
	}, a.log)
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	a := &app{}
	root := buildRootCmd(a)
	if err := root.Execute(); err != nil {
		// The logger may not be configured when flag parsing fails.
		fmt.Fprintf(os.Stderr, "ctxprobe: %v\n", err)
		return 1
	}
	return 0
}

func buildRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "ctxprobe",
		Short:         "Find the largest context window that fits in GPU memory for served models",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&a.flagAPI, "api", "a", "", "serving API base URL (defaults OLLAMA_HOST or http://localhost:11434)")
	root.PersistentFlags().StringVarP(&a.flagConfig, "config", "c", "", "config file (.toml/.yaml/.json)")
	root.PersistentFlags().StringVar(&a.flagLogLevel, "log-level", "", "log level: debug|info|warn|error (default info)")
	root.PersistentFlags().StringVar(&a.flagDataDir, "data-dir", "", "directory for result files (default .)")

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cfg := config.Default()
		if a.flagConfig != "" {
			fileCfg, err := config.Load(a.flagConfig)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			cfg = cfg.Merge(fileCfg)
		}
		cfg = cfg.Merge(config.Config{
			APIBase:  a.flagAPI,
			LogLevel: a.flagLogLevel,
			DataDir:  a.flagDataDir,
		})
		dataDir, err := fsutil.ExpandHome(cfg.DataDir)
		if err != nil {
			return fmt.Errorf("data dir: %w", err)
		}
		cfg.DataDir = dataDir
		a.cfg = cfg
		a.log = newLogger(cfg.LogLevel)
		return nil
	}

	contextCmd := &cobra.Command{Use: "context", Short: "Context window analysis"}
	contextCmd.AddCommand(buildProbeCmd(a), buildUsageCmd(a))
	root.AddCommand(contextCmd)

	modelCmd := &cobra.Command{Use: "model", Short: "Installed model management"}
	modelCmd.AddCommand(buildModelListCmd(a), buildModelInitCmd(a), buildModelApplyCmd(a))
	root.AddCommand(modelCmd)

	return root
}

func newLogger(level string) zerolog.Logger {
	lvl := zerolog.InfoLevel
	switch level {
	case "debug":
		lvl = zerolog.DebugLevel
	case "warn":
		lvl = zerolog.WarnLevel
	case "error":
		lvl = zerolog.ErrorLevel
	}
	w := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}
