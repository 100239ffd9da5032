package cmd

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Norgate-AV/incr/internal/events"
	"github.com/Norgate-AV/incr/internal/metrics"
	"github.com/Norgate-AV/incr/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Build, then rebuild whenever a source changes",
	Long: `Run a full build, then watch the source directory and the config file.
Changes are batched and each batch starts a rebuild. A rebuild that starts
while another is running supersedes it.`,
	RunE:         runWatch,
	SilenceUsage: true,
	Args:         cobra.NoArgs,
}

func init() {
	watchCmd.Flags().String("metrics-addr", "", "Serve prometheus metrics on this address, e.g. :9090")
	watchCmd.Flags().Duration("delay", watch.DefaultDelay, "Quiet period that closes a batch of file changes")
}

func runWatch(cmd *cobra.Command, args []string) error {
	viper.Set("watch", true)

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger := newLogger(cfg, cmd.ErrOrStderr())

	s, err := openSession(cfg, logger)
	if err != nil {
		return err
	}

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}

	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cfg.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		s.ctx.WithRecorder(metrics.NewPrometheusRecorder(reg))

		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.HTTPHandler(reg))
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", "addr", cfg.MetricsAddr, "error", err)
			}
		}()
		defer func() { _ = srv.Shutdown(context.Background()) }()

		logger.Info("serving metrics", "addr", cfg.MetricsAddr)
	}

	delay, _ := cmd.Flags().GetDuration("delay")

	w, err := watch.NewWatcher(cfg.SrcDir, delay, logger)
	if err != nil {
		return err
	}
	defer w.Close()

	w.AddFilter(watch.ExcludeDirsFilter(cfg.WWWDir, cfg.DistDir, cfg.CacheDir))

	if err := w.WatchConfigFile(cfg.ConfigFile); err != nil {
		return err
	}

	var wg sync.WaitGroup
	startBuild := func(report *watch.Report) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.runner.Run(ctx, report); err != nil {
				logger.Error("build failed", "error", err)
			}
		}()
	}

	unsubscribe := s.ctx.Events.On(events.Build, func(payload any) {
		if report, ok := payload.(*watch.Report); ok {
			startBuild(report)
		}
	})
	defer unsubscribe()

	startBuild(nil)
	logger.Info("watching for changes", "dir", cfg.SrcDir)

	err = w.Run(ctx, func(r *watch.Report) {
		watch.Rebuild(s.ctx, r)
	})
	wg.Wait()

	if closeErr := s.close(context.Background()); closeErr != nil {
		err = errors.Join(err, closeErr)
	}

	return err
}
