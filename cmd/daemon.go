package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jon4hz/photomirror/engine"
	"github.com/jon4hz/photomirror/scheduler"
	"github.com/spf13/cobra"
)

var daemonCmdFlags struct {
	Interval time.Duration
}

func init() {
	rootCmd.AddCommand(daemonCmd)
	daemonCmd.Flags().DurationVar(&daemonCmdFlags.Interval, "interval", time.Hour, "Time between sync runs")
}

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Sync periodically until interrupted",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if daemonCmdFlags.Interval < time.Minute {
			return fmt.Errorf("interval %s is below the one minute minimum", daemonCmdFlags.Interval)
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		mgr, err := newManager(cfg)
		if err != nil {
			return err
		}

		sched, err := scheduler.New()
		if err != nil {
			return err
		}

		err = sched.AddIntervalJob("sync", daemonCmdFlags.Interval, func(ctx context.Context) error {
			return mgr.Run(ctx, func(ctx context.Context, identity *engine.Identity) error {
				info, err := identity.Sync(ctx, engine.SyncOptions{})
				if err != nil {
					return err
				}
				log.Info("sync finished", "identity", identity.Name(), "result", info.String())
				return nil
			})
		})
		if err != nil {
			return err
		}

		log.Info("daemon started", "interval", daemonCmdFlags.Interval, "identities", mgr.Identities())
		sched.Start()

		<-cmd.Context().Done()
		log.Info("shutting down gracefully...")
		return sched.Shutdown()
	},
}
