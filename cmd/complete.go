package cmd

import (
	"errors"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/legal-llama/corpus-pipeline/internal/app"
)

type completeFlags struct {
	skipDownload bool
	skipDatasets bool
}

func newCompleteCmd() *cobra.Command {
	flags := &completeFlags{}
	cmd := &cobra.Command{
		Use:   "complete",
		Short: "Runs discover, fetch, verify and assemble in sequence",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			return runComplete(cmd, a, *flags, false)
		},
	}
	addCompleteFlags(cmd, flags)
	return cmd
}

func newEnhancedCompleteCmd() *cobra.Command {
	flags := &completeFlags{}
	cmd := &cobra.Command{
		Use:   "enhanced-complete",
		Short: "Runs the full pipeline with a recovery fetch after verification",
		Long: `Like complete, but when verification requeues corrupted pairs it runs a
second fetch cycle and re-verifies before assembling, so a single bad
download never leaks into the datasets.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			return runComplete(cmd, a, *flags, true)
		},
	}
	addCompleteFlags(cmd, flags)
	return cmd
}

func addCompleteFlags(cmd *cobra.Command, flags *completeFlags) {
	cmd.Flags().BoolVar(&flags.skipDownload, "skip-download", false, "reuse existing artifacts instead of fetching")
	cmd.Flags().BoolVar(&flags.skipDatasets, "skip-datasets", false, "stop after verification, do not assemble datasets")
}

func runComplete(cmd *cobra.Command, a *app.App, flags completeFlags, recoveryFetch bool) error {
	ctx := cmd.Context()

	if _, err := runDiscoverPhase(cmd, a); err != nil {
		return err
	}

	// Tolerance failures are deferred so verification and assembly still run
	// over whatever was fetched; the exit code reports the shortfall.
	var toleranceErr error
	if !flags.skipDownload {
		if err := runFetchPhase(ctx, a); err != nil {
			if !errors.Is(err, errExhaustedTolerance) {
				return err
			}
			toleranceErr = err
		}
	}

	report, err := runVerifyPhase(ctx, a)
	if err != nil {
		return err
	}
	if recoveryFetch && len(report.RequeuedIDs) > 0 && !flags.skipDownload {
		a.Logger.Info("refetching requeued pairs", zap.Int("requeued", len(report.RequeuedIDs)))
		if err := runFetchPhase(ctx, a); err != nil && !errors.Is(err, errExhaustedTolerance) {
			return err
		}
		if _, err := runVerifyPhase(ctx, a); err != nil {
			return err
		}
		toleranceErr = checkExhaustedTolerance(a)
	}

	if !flags.skipDatasets {
		if err := runAssemblePhase(ctx, a); err != nil {
			return err
		}
	}
	return toleranceErr
}
