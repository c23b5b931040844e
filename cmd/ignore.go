package cmd

import (
	"context"
	"errors"

	"github.com/charmbracelet/log"
	"github.com/jon4hz/photomirror/engine"
	"github.com/spf13/cobra"
)

var ignoreCmdFlags struct {
	Set   []string
	Reset bool
}

func init() {
	rootCmd.AddCommand(ignoreCmd)
	ignoreCmd.Flags().StringSliceVar(&ignoreCmdFlags.Set, "set", nil, "Remote IDs of media items to ignore")
	ignoreCmd.Flags().BoolVar(&ignoreCmdFlags.Reset, "reset", false, "Revert all ignored media items back to pending")
	ignoreCmd.MarkFlagsMutuallyExclusive("set", "reset")
}

var ignoreCmd = &cobra.Command{
	Use:   "ignore [remote-id...]",
	Short: "Exempt media items from syncing, or revert all exemptions with --reset",
	RunE: func(cmd *cobra.Command, args []string) error {
		ids := append(ignoreCmdFlags.Set, args...) //nolint:gocritic
		if !ignoreCmdFlags.Reset && len(ids) == 0 {
			return errors.New("either pass remote IDs to ignore or use --reset")
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		mgr, err := newManager(cfg)
		if err != nil {
			return err
		}

		return mgr.Run(cmd.Context(), func(ctx context.Context, identity *engine.Identity) error {
			var (
				info engine.ActionStats
				err  error
			)
			if ignoreCmdFlags.Reset {
				info, err = identity.ResetIgnored(ctx)
			} else {
				info, err = identity.Ignore(ctx, ids)
			}
			if err != nil {
				return err
			}
			log.Info("ignore finished", "identity", identity.Name(), "result", info.String())
			return nil
		})
	},
}
