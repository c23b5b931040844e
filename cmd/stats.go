package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jon4hz/photomirror/catalog/models"
	"github.com/jon4hz/photomirror/engine"
	"github.com/mergestat/timediff"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(statsCmd)
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show per-identity catalog statistics",
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
			stats, err := identity.Stats(ctx)
			if err != nil {
				return err
			}
			printStats(identity.Name(), stats)
			return nil
		})
	},
}

var (
	mediaItemStatusOrder = []models.MediaItemStatus{
		models.MediaItemStatusPendingSync,
		models.MediaItemStatusSyncError,
		models.MediaItemStatusSynced,
		models.MediaItemStatusStale,
		models.MediaItemStatusIgnored,
	}
	albumStatusOrder = []models.AlbumStatus{
		models.AlbumStatusIndexed,
		models.AlbumStatusIndexError,
		models.AlbumStatusStale,
	}
	albumItemStatusOrder = []models.AlbumItemStatus{
		models.AlbumItemStatusPendingSync,
		models.AlbumItemStatusSyncError,
		models.AlbumItemStatusSynced,
		models.AlbumItemStatusStale,
		models.AlbumItemStatusIgnored,
	}
)

func printStats(name string, stats *engine.Stats) {
	fmt.Printf("Identity: %s\n", name)

	fmt.Println("  Media items:")
	for _, status := range mediaItemStatusOrder {
		fmt.Printf("    %-12s %s\n", status, humanize.Comma(stats.MediaItems[status]))
	}

	fmt.Println("  Albums:")
	for _, status := range albumStatusOrder {
		fmt.Printf("    %-12s %s\n", status, humanize.Comma(stats.Albums[status]))
	}

	fmt.Println("  Album items:")
	for _, status := range albumItemStatusOrder {
		fmt.Printf("    %-12s %s\n", status, humanize.Comma(stats.AlbumItems[status]))
	}

	fmt.Printf("  Last media items index: %s\n", formatLastIndex(stats.LastMediaIndex))
	fmt.Printf("  Last albums index:      %s\n", formatLastIndex(stats.LastAlbumsIndex))
}

func formatLastIndex(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return timediff.TimeDiff(t)
}
