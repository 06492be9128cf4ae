// Command incident-etl turns daily police incident summary documents into
// tab-separated incident rows on stdout.
//
// Usage:
//
//	incident-etl --urls urls.csv > incidents.tsv
//
// Each record of the URL file names one document (an http(s) URL or a local
// path) in its first column. Logs go to stderr.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

type options struct {
	urls      string
	httpAddr  string
	cachePath string
	noWeather bool
}

func newRootCmd() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "incident-etl --urls <file>",
		Short: "Extract and augment incidents from daily incident summary documents",
		Long: `incident-etl downloads each listed daily incident summary, recovers the
incident rows from its text, geocodes and ranks them, and writes one
tab-separated row per incident to stdout:

  dayOfWeek  hour  nature  locationRank  quadrant  natureRank  agencyCode  emsFlag

Example:
  incident-etl --urls urls.csv > incidents.tsv
  incident-etl --urls urls.csv --cache-path ./geocode.db --no-weather`,
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.urls, "urls", "", "file listing one document URL or path per line (required)")
	cmd.Flags().StringVar(&opts.httpAddr, "http-addr", "", "serve health, readiness and metrics on this address (overrides HTTP_ADDR)")
	cmd.Flags().StringVar(&opts.cachePath, "cache-path", "", "sqlite file for the persistent geocode cache (overrides GEOCODE_CACHE_PATH)")
	cmd.Flags().BoolVar(&opts.noWeather, "no-weather", false, "skip weather lookups; every weather code is 0")
	_ = cmd.MarkFlagRequired("urls")

	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "incident-etl: %v\n", err)
		os.Exit(1)
	}
}
