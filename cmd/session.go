package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Norgate-AV/incr/internal/cache"
	"github.com/Norgate-AV/incr/internal/compiler"
	"github.com/Norgate-AV/incr/internal/config"
	"github.com/Norgate-AV/incr/internal/logging"
	"github.com/Norgate-AV/incr/internal/runner"
	"github.com/Norgate-AV/incr/internal/stagefs"
)

// session is the compiler session behind a command
type session struct {
	cfg    *config.Config
	logger *logging.Logger
	cache  *cache.Cache
	ctx    *compiler.Context
	runner *runner.Runner
}

// loadConfig loads configuration for cmd, honouring --config
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configFile, _ := cmd.Flags().GetString("config")

	cfg, err := config.NewLoader().LoadForBuild(cmd, configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

func newLogger(cfg *config.Config, out io.Writer) *logging.Logger {
	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	}

	return logging.New(&logging.Config{
		Level:  level,
		Format: cfg.LogFormat,
		Output: out,
	})
}

func openSession(cfg *config.Config, logger *logging.Logger) (*session, error) {
	c, err := cache.New(cfg.CacheDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}

	ctx := compiler.NewContext(cfg, stagefs.NewOS(), c, logger)
	logger.Debug("session started", "cache", c.Root())

	return &session{
		cfg:    cfg,
		logger: logger,
		cache:  c,
		ctx:    ctx,
		runner: runner.New(ctx),
	}, nil
}

// close waits for background commits, then persists and closes the cache
func (s *session) close(ctx context.Context) error {
	waitErr := s.runner.Wait(ctx)

	// output of a failed or superseded build is never committed
	if s.ctx.FS.Pending() {
		s.logger.Warn("discarding uncommitted output", "stats", s.ctx.FS.MemoryStats())
	}

	n, commitErr := s.cache.Commit()
	if commitErr == nil {
		s.logger.Debug("cache committed", "entries", n)
	}

	return errors.Join(waitErr, commitErr, s.cache.Close())
}
