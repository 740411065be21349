package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/plattops/xviol/internal/observability"
)

func newWatchesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watches",
		Short: "List the watches defined on the Xray instance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}

			httpClient, err := newHTTPClient(cfg)
			if err != nil {
				return err
			}
			defer httpClient.CloseIdleConnections()

			watches, err := newXrayClient(cfg, httpClient).ListWatches(ctx)
			if err != nil {
				return err
			}
			observability.GetLogger().Debug("Listed watches")

			if len(watches) == 0 {
				cmd.Println("No watches defined.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 8, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tACTIVE\tDESCRIPTION")
			for _, watch := range watches {
				fmt.Fprintf(w, "%s\t%t\t%s\n", watch.GeneralData.Name, watch.GeneralData.Active, watch.GeneralData.Description)
			}
			return w.Flush()
		},
	}
}
