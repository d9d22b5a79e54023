package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/zulandar/atila/internal/dashboard"
	"github.com/zulandar/atila/internal/normalize"
	"github.com/zulandar/atila/internal/notify"
	"github.com/zulandar/atila/internal/recalc"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the web dashboard and background jobs",
		Long: `Serves the worklist dashboard and JSON API. On startup every project is
recomputed; afterwards ranks are refreshed on the recalc schedule and digests
are posted on the notify schedule.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, port)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to ATILA config file")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (overrides config)")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string, port int) error {
	a, err := openApp(configPath)
	if err != nil {
		return err
	}
	defer a.log.Sync()
	if port <= 0 {
		port = a.cfg.Server.Port
	}

	platforms, err := normalize.LoadPlatformMap(a.cfg.Normalize.PlatformMap)
	if err != nil {
		return err
	}
	senders, err := notify.FromConfig(a.cfg.Notify)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			fmt.Fprintf(cmd.OutOrStdout(), "\nReceived %s, shutting down...\n", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	r := a.svc.Recalculator()
	if a.cfg.RecalcOnStartup() {
		n, err := r.All(ctx)
		if err != nil {
			return fmt.Errorf("startup recompute: %w", err)
		}
		a.log.Info("startup recompute finished", zap.Int("projects", n))
	}

	sched := recalc.NewScheduler(ctx, a.log)
	if err := sched.Add("recalc", a.cfg.Recalc.Schedule, r.AllJob()); err != nil {
		return err
	}
	if len(senders) > 0 {
		if err := sched.Add("digest", a.cfg.Notify.Schedule, notify.Job(a.svc, senders, a.cfg.Notify.TopN, a.log)); err != nil {
			return err
		}
	}
	a.log.Info("scheduler configured", zap.Int("jobs", sched.Len()))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sched.Run()
		return nil
	})
	g.Go(func() error {
		defer cancel()
		return dashboard.Start(gctx, dashboard.StartOpts{
			Service:   a.svc,
			Platforms: platforms,
			Port:      port,
			Out:       cmd.OutOrStdout(),
			Logger:    a.log,
		})
	})
	return g.Wait()
}
