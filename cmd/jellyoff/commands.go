package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/amaumene/jellyoff/internal/api"
	"github.com/amaumene/jellyoff/internal/scheduler"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bridge and the background jobs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			a.logger.Info("Starting jellyoff")

			sched := scheduler.NewScheduler(a.sync, a.cleanup, a.cfg.SyncSchedule, a.cfg.VerifySchedule, a.logger)
			if err := sched.Start(); err != nil {
				return fmt.Errorf("failed to start scheduler: %w", err)
			}
			defer sched.Stop()

			server := api.NewServer(a.cfg, a.db, a.client, api.Controllers{
				Downloads:    a.downloads,
				Progress:     a.progress,
				Sync:         a.sync,
				Library:      a.library,
				Connectivity: a.connectivity,
			}, a.logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return server.Start(ctx)
			})
			g.Go(func() error {
				// push whatever was recorded while the app was closed
				if _, err := a.sync.SyncUnsynced(ctx); err != nil && !errors.Is(err, context.Canceled) {
					a.logger.WithError(err).Warn("Startup progress sync failed")
				}
				return nil
			})

			a.logger.Info("jellyoff is running")
			if err := g.Wait(); err != nil {
				return err
			}

			a.logger.Info("jellyoff stopped")
			return nil
		},
	}
}

func newLoginCommand() *cobra.Command {
	var server, user, password, quickConnect string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to the media server and remember the session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if user == "" && quickConnect == "" {
				return errors.New("either --user or --quick-connect is required")
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			if server != "" {
				info, err := a.session.SetServer(ctx, server)
				if err != nil {
					return fmt.Errorf("failed to reach %s: %w", server, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Connected to %s (version %s)\n", info.ServerName, info.Version)
			}

			if quickConnect != "" {
				u, err := a.session.LoginQuickConnect(ctx, quickConnect)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", u.Name)
				return nil
			}

			u, err := a.session.Login(ctx, user, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", u.Name)
			return nil
		},
	}

	cmd.Flags().StringVar(&server, "server", "", "media server URL")
	cmd.Flags().StringVar(&user, "user", "", "user name")
	cmd.Flags().StringVar(&password, "password", "", "password")
	cmd.Flags().StringVar(&quickConnect, "quick-connect", "", "Quick Connect secret approved on another device")
	return cmd
}

func newSyncCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Push unsynced playback progress to the media server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.sync.SyncUnsynced(cmd.Context())
			if err != nil {
				return err
			}
			if result.Offline {
				fmt.Fprintln(cmd.OutOrStdout(), "Offline mode is on, nothing synced")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Synced %d, failed %d, changed during sync %d\n",
				result.Synced, result.Failed, result.Skipped)
			return nil
		},
	}
}

func newUsageCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "usage",
		Short: "Show how much space downloads take",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			dir, err := a.downloads.DownloadDir()
			if err != nil {
				return err
			}
			usage, err := a.downloads.GetDownloadsUsage()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s in %d files (%s)\n",
				humanize.Bytes(uint64(usage.Size)), usage.Count, dir)
			return nil
		},
	}
}

func newVerifyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Drop download records whose files are gone",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			purged, err := a.cleanup.VerifyDownloads()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Purged %d stale records\n", purged)
			return nil
		},
	}
}
