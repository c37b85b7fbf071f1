package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/legal-llama/corpus-pipeline/internal/app"
	"github.com/legal-llama/corpus-pipeline/internal/catalog"
)

func newDiscoverCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "discover",
		Short: "Enumerates documents across all configured sources",
		Long: `Walks the configured GOV.UK search verticals, legislation.gov.uk browse
pages and BAILII court indexes and persists one discovered_<source>.json
catalog per source. A source failing discovery never blocks the others.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			_, err = runDiscoverPhase(cmd, a)
			return err
		},
	}
}

func runDiscoverPhase(cmd *cobra.Command, a *app.App) (int, error) {
	merged, err := catalog.Discover(
		cmd.Context(),
		a.Discoverers,
		a.Cfg.Pipeline.MaxDocuments,
		a.Catalog,
		a.Logger.Named("discover"),
	)
	if err != nil {
		return 0, err
	}
	a.Logger.Info("discovery finished",
		zap.Int("entries", len(merged)),
		zap.Int("sources", len(a.Discoverers)),
	)
	return len(merged), nil
}
