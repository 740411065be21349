package cmd

import (
	"fmt"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/plattops/xviol/internal/enrich"
	"github.com/plattops/xviol/internal/exporter"
	"github.com/plattops/xviol/internal/observability"
	"github.com/plattops/xviol/internal/platform"
)

func newExportCmd() *cobra.Command {
	var noEnrich bool

	exportCmd := &cobra.Command{
		Use:   "export <watch>",
		Short: "Export a watch's violations to an enriched report",
		Long: `Export pages through every security violation recorded for the named
watch, flattens them into one row per violation, resolves the users
responsible for each impacted repository, and writes the result as a
quoted CSV or TSV file.

The watch must exist on the Xray instance; run "xviol watches" to list
the available names.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			if noEnrich {
				cfg.Enrich.Enabled = false
			}

			if cfg.Export.OutputDir, err = homedir.Expand(cfg.Export.OutputDir); err != nil {
				return fmt.Errorf("could not resolve output directory: %w", err)
			}
			if cfg.Export.Output != "" {
				if cfg.Export.Output, err = homedir.Expand(cfg.Export.Output); err != nil {
					return fmt.Errorf("could not resolve output path: %w", err)
				}
			}

			platform.LogTokenHealth(cfg.Server.AccessToken, logger)

			httpClient, err := newHTTPClient(cfg)
			if err != nil {
				return err
			}
			defer httpClient.CloseIdleConnections()

			xrayClient := newXrayClient(cfg, httpClient)

			var resolver exporter.UserResolver
			if cfg.Enrich.Enabled {
				platformClient := platform.NewClient(cfg.Server.BaseURL(), cfg.Server.AccessToken, cfg.Enrich.RequestTimeout, httpClient, logger)
				resolver = enrich.NewResolver(platformClient, rate.Limit(cfg.Enrich.RateLimit), logger)
			}

			summary, err := exporter.New(cfg, xrayClient, resolver, logger).Run(ctx, args[0])
			if err != nil {
				return err
			}

			if summary.Total == 0 {
				cmd.Printf("No violations recorded for watch %q, nothing to export.\n", summary.Watch)
				return nil
			}

			cmd.Printf("Exported %d of %d violations across %d pages (%d repositories) in %s\n",
				summary.Fetched, summary.Total, summary.Pages, summary.Repos,
				summary.Duration.Round(time.Millisecond))
			cmd.Printf("Report written to %s\n", summary.OutputPath)
			return nil
		},
	}

	flags := exportCmd.Flags()
	flags.StringP("output", "o", "", "path for the final report (overrides the default name)")
	flags.StringP("format", "f", "", "report format, csv or tsv")
	flags.Int("page-size", 0, "violations fetched per request (1-500)")
	flags.String("output-dir", "", "directory the report files are written to")
	flags.Bool("keep-raw", false, "keep the intermediate report next to the final one")
	flags.BoolVar(&noEnrich, "no-enrich", false, "skip responsible-user resolution, the Users column becomes NA")

	return exportCmd
}
