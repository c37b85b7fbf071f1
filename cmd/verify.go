package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/legal-llama/corpus-pipeline/internal/app"
	"github.com/legal-llama/corpus-pipeline/internal/corpus"
	"github.com/legal-llama/corpus-pipeline/internal/verify"
)

func newVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Re-validates every stored artifact against its recorded hash",
		Long: `Re-reads each successfully fetched artifact, compares it to the content
hash recorded at download time, requeues corrupted pairs for one more fetch
cycle and writes verification_report.json.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			_, err = runVerifyPhase(cmd.Context(), a)
			return err
		},
	}
}

func runVerifyPhase(ctx context.Context, a *app.App) (corpus.VerificationReport, error) {
	pass := verify.New(a.Progress, a.Artifacts, a.Hasher, a.Clock, a.Logger.Named("verify"))
	report, err := pass.Run(ctx)
	if err != nil {
		return report, err
	}
	if err := a.Progress.Flush(); err != nil {
		return report, err
	}
	if err := verify.WriteReport(a.Cfg.Pipeline.OutputDir, report); err != nil {
		return report, err
	}
	a.Logger.Info("verification finished",
		zap.Int("intact", report.Intact),
		zap.Int("requeued", len(report.RequeuedIDs)),
		zap.Int("inconclusive", report.Inconclusive),
	)
	return report, nil
}
