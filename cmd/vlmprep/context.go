package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"vlmprep/internal/config"
	"vlmprep/internal/logging"
	"vlmprep/internal/metrics"
	"vlmprep/internal/runlog"
	"vlmprep/internal/stageexec"
)

type commandContext struct {
	configFlag   *string
	logLevelFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag, logLevelFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if c.logLevelFlag != nil {
			if level := strings.TrimSpace(*c.logLevelFlag); level != "" {
				cfg.Logging.Level = strings.ToLower(level)
				if err := cfg.Validate(); err != nil {
					c.configErr = err
					return
				}
			}
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// stageConfig returns a copy of the loaded config that a command may apply
// flag overrides to.
func (c *commandContext) stageConfig() (*config.Config, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	clone := *cfg
	return &clone, nil
}

func (c *commandContext) newLogger(cmd *cobra.Command, cfg *config.Config) (*slog.Logger, io.Closer, error) {
	logger, closer, err := logging.NewFromConfig(cfg, cmd.ErrOrStderr())
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return logger, closer, nil
}

type stageRun struct {
	name    string
	input   string
	output  string
	lockDir string
}

// runStage executes body through stageexec with the run log and metrics
// configured for cfg.
func (c *commandContext) runStage(cmd *cobra.Command, cfg *config.Config, logger *slog.Logger, run stageRun, body stageexec.ExecuteFunc) (stageexec.Result, error) {
	opts := stageexec.Options{
		Logger:          logger,
		StageName:       run.name,
		Input:           run.input,
		Output:          run.output,
		LockDir:         run.lockDir,
		Metrics:         metrics.New(),
		MetricsTextfile: cfg.Metrics.Textfile,
		Execute:         body,
	}
	if cfg.RunLog.Enabled {
		store, err := runlog.Open(cfg.RunLogPath())
		if err != nil {
			logging.WarnWithContext(logger, "run log unavailable", "runlog_open_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "this run is missing from `vlmprep runs`"),
			)
		} else {
			defer store.Close()
			opts.RunLog = store
		}
	}
	return stageexec.Run(cmd.Context(), opts)
}

// openRunLogReadOnly opens the run history for listing. A missing database
// returns (nil, nil).
func openRunLogReadOnly(cfg *config.Config) (*runlog.Store, error) {
	path := cfg.RunLogPath()
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("stat run log: %w", err)
	}
	return runlog.Open(path)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
