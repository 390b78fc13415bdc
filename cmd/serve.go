package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"netpulse/internal/cache"
	"netpulse/internal/config"
	"netpulse/internal/logger"
	"netpulse/internal/probe"
	"netpulse/internal/server"
	"netpulse/internal/session"
	"netpulse/internal/stream"
)

func newServeCmd(log *logger.Logger) *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the monitoring API server",
		Long: `Start the HTTP API server and the tick scheduler.
For example:
  netpulse serve --config netpulse.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			appLog, err := logger.New(cfg.Log)
			if err != nil {
				return errors.Wrap(err, "build logger")
			}
			defer func() { _ = appLog.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, appLog)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to the YAML config file")
	return cmd
}

func openArchive(ctx context.Context, cfg config.Config, log *logger.Logger) (cache.Archive, error) {
	if cfg.RedisAddr == "" {
		log.Info("no redis address configured, keeping sessions in memory", "keep", cfg.RecentSessions)
		return cache.NewMemoryArchive(cfg.RecentSessions), nil
	}
	archive, err := cache.NewRedisClient(ctx, cfg.RedisAddr, cfg.SessionTTL, int64(cfg.RecentSessions))
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to Redis")
	}
	log.Info("archiving sessions in redis", "addr", cfg.RedisAddr, "ttl", cfg.SessionTTL)
	return archive, nil
}

func serve(ctx context.Context, cfg config.Config, log *logger.Logger) error {
	loc, err := config.Location(cfg.Timezone)
	if err != nil {
		return err
	}

	archive, err := openArchive(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := archive.Close(); err != nil {
			log.Warn("close archive failed", "error", err)
		}
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	hub := stream.NewHub(ctx, log)
	ctl := session.NewController(cfg.Nodes, probe.NewSimulator(nil), loc)
	runner := session.NewRunner(ctl, cfg.TickInterval, log, server.EngineHooks(ctl, archive, hub, log))
	srv := server.NewServer(runner, archive, hub, log, cfg.CORSOrigins)

	runnerDone := make(chan struct{})
	go func() {
		defer close(runnerDone)
		runner.Run(ctx)
	}()

	log.Info("netpulse starting",
		"listen", cfg.Listen,
		"nodes", len(cfg.Nodes),
		"tick", cfg.TickInterval,
		"timezone", loc.String(),
	)
	err = srv.Run(ctx, cfg.Listen)

	// A failed listener also stops the runner so the archive closes last.
	cancel()
	<-runnerDone
	return err
}
