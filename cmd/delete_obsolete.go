package cmd

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/jon4hz/photomirror/engine"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(deleteObsoleteCmd)
}

var deleteObsoleteCmd = &cobra.Command{
	Use:   "delete-obsolete",
	Short: "Delete local files and catalog rows for items removed from the remote library",
	Long: `Delete everything the last full index marked stale: album links first, then
empty album directories, then media files. Files on disk that no catalog row
points at are swept as well. Items only become stale through a full index run
(index --rescan), so nothing is deleted based on a partial listing.`,
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
			info, err := identity.DeleteObsolete(ctx)
			if err != nil {
				return err
			}
			log.Info("obsolete cleanup finished", "identity", identity.Name(), "result", info.String())
			return nil
		})
	},
}
