package cmd

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/jon4hz/photomirror/engine"
	"github.com/spf13/cobra"
)

var syncCmdFlags struct {
	Rescan         bool
	SkipIndex      bool
	SkipMediaItems bool
	SkipAlbums     bool
	Albums         []string
	Concurrency    int
}

func init() {
	rootCmd.AddCommand(syncCmd)
	syncCmd.Flags().BoolVar(&syncCmdFlags.Rescan, "rescan", false, "Walk the full remote listing instead of only new items")
	syncCmd.Flags().BoolVar(&syncCmdFlags.SkipIndex, "skip-index", false, "Skip the index phase entirely")
	syncCmd.Flags().BoolVar(&syncCmdFlags.SkipMediaItems, "skip-media-items", false, "Skip indexing media items")
	syncCmd.Flags().BoolVar(&syncCmdFlags.SkipAlbums, "skip-albums", false, "Skip indexing albums")
	syncCmd.Flags().StringSliceVar(&syncCmdFlags.Albums, "album", nil, "Only index the named albums")
	syncCmd.Flags().IntVar(&syncCmdFlags.Concurrency, "concurrency", 0, "Override the configured download concurrency")
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Index the remote library and download everything pending",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		mgr, err := newManager(cfg)
		if err != nil {
			return err
		}

		return mgr.Run(cmd.Context(), func(ctx context.Context, identity *engine.Identity) error {
			info, err := identity.Sync(ctx, engine.SyncOptions{
				IndexOptions: engine.IndexOptions{
					Rescan:         syncCmdFlags.Rescan,
					SkipMediaItems: syncCmdFlags.SkipMediaItems,
					SkipAlbums:     syncCmdFlags.SkipAlbums,
					Albums:         syncCmdFlags.Albums,
				},
				SkipIndex:   syncCmdFlags.SkipIndex,
				Concurrency: syncCmdFlags.Concurrency,
			})
			if err != nil {
				return err
			}
			log.Info("sync finished", "identity", identity.Name(), "result", info.String())
			return nil
		})
	},
}
