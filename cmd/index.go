package cmd

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/jon4hz/photomirror/engine"
	"github.com/spf13/cobra"
)

var indexCmdFlags struct {
	Rescan         bool
	SkipMediaItems bool
	SkipAlbums     bool
	Albums         []string
}

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.Flags().BoolVar(&indexCmdFlags.Rescan, "rescan", false, "Walk the full remote listing instead of only new items")
	indexCmd.Flags().BoolVar(&indexCmdFlags.SkipMediaItems, "skip-media-items", false, "Skip indexing media items")
	indexCmd.Flags().BoolVar(&indexCmdFlags.SkipAlbums, "skip-albums", false, "Skip indexing albums")
	indexCmd.Flags().StringSliceVar(&indexCmdFlags.Albums, "album", nil, "Only index the named albums")
}

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Reconcile the catalog against the remote library without downloading",
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
			info, err := identity.Index(ctx, engine.IndexOptions{
				Rescan:         indexCmdFlags.Rescan,
				SkipMediaItems: indexCmdFlags.SkipMediaItems,
				SkipAlbums:     indexCmdFlags.SkipAlbums,
				Albums:         indexCmdFlags.Albums,
			})
			if err != nil {
				return err
			}
			log.Info("index finished", "identity", identity.Name(), "result", info.String())
			return nil
		})
	},
}
