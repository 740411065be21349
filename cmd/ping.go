package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/plattops/xviol/internal/observability"
	"github.com/plattops/xviol/internal/platform"
)

func newPingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that the configured Xray instance is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}

			platform.LogTokenHealth(cfg.Server.AccessToken, observability.GetLogger())

			httpClient, err := newHTTPClient(cfg)
			if err != nil {
				return err
			}
			defer httpClient.CloseIdleConnections()

			if err := newXrayClient(cfg, httpClient).Ping(ctx); err != nil {
				return fmt.Errorf("xray is not reachable: %w", err)
			}

			cmd.Printf("Xray at %s is up.\n", cfg.Server.BaseURL())
			return nil
		},
	}
}
