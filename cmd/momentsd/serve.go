package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/Maria-Liakata-NLP-Group/social-media-timeline-dashboard/internal/backend"
	"github.com/Maria-Liakata-NLP-Group/social-media-timeline-dashboard/internal/config"
	"github.com/Maria-Liakata-NLP-Group/social-media-timeline-dashboard/internal/dashboard"
	"github.com/Maria-Liakata-NLP-Group/social-media-timeline-dashboard/internal/fixtures"
	"github.com/Maria-Liakata-NLP-Group/social-media-timeline-dashboard/internal/logging"
	"github.com/Maria-Liakata-NLP-Group/social-media-timeline-dashboard/internal/provider"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the dashboard web server",
		Long:  "Launches the timeline dashboard, serving live backend data when the backend is reachable and static fixtures otherwise.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, port)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "momentsd.yaml", "path to config file")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (overrides config)")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string, port int) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if port > 0 {
		cfg.ListenPort = port
	}
	log := logging.New(cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(cmd.OutOrStdout(), "\nReceived %s, shutting down...\n", sig)
		cancel()
	}()

	client := backend.New(cfg.BackendURL, backend.Options{
		Timeout:    cfg.Timeout(),
		MaxRetries: cfg.HTTP.MaxRetries,
		BaseDelay:  cfg.HTTP.RetryBaseDelay,
	})
	store := fixtures.NewStore(cfg.DataDir)

	// Availability is probed once; the session stays pinned to one source.
	prov := provider.New(ctx, client, store, log)

	hub := dashboard.NewHub()
	manager := dashboard.NewManager(prov, hub, log, cfg.Summary.Models, cfg.Summary.DefaultModel)
	manager.RefreshRoster(ctx)

	// Periodic roster refresh so newly saved datasets appear without a
	// restart.
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.Roster.RefreshSpec, func() {
		manager.RefreshRoster(ctx)
	}); err != nil {
		return fmt.Errorf("serve: schedule roster refresh: %w", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	// In fixture mode new datasets only appear as files; watch the data dir.
	if !prov.BackendAvailable() {
		go func() {
			if err := store.Watch(ctx, log, func() {
				manager.RefreshRoster(ctx)
			}); err != nil {
				log.WithError(err).Warn("fixture watcher stopped")
			}
		}()
	}

	return dashboard.Start(ctx, dashboard.StartOpts{
		Manager:   manager,
		Hub:       hub,
		Log:       log,
		Port:      cfg.ListenPort,
		Detection: cfg.Detection,
		Out:       cmd.OutOrStdout(),
	})
}
