package cmd

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/jon4hz/photomirror/engine"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(authCmd)
}

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Run the interactive OAuth2 flow for an identity",
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
			if err := identity.Auth(ctx); err != nil {
				return err
			}
			log.Info("authenticated", "identity", identity.Name())
			return nil
		})
	},
}
