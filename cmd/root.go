// Package cmd defines the pipeline CLI. Subcommands map one to one onto
// pipeline phases; composite commands chain them for unattended runs.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/legal-llama/corpus-pipeline/internal/app"
	"github.com/legal-llama/corpus-pipeline/internal/config"
	"github.com/legal-llama/corpus-pipeline/internal/logging"
)

// errExhaustedTolerance marks a run where downloads finished but more pairs
// ended exhausted than fetch.exhausted_tolerance allows. Mapped to exit
// code 2 so schedulers can tell partial corpora from hard failures.
var errExhaustedTolerance = errors.New("exhausted entries exceed tolerance")

type appKeyType struct{}

var appKey appKeyType

type rootFlags struct {
	cfgFile      string
	outputDir    string
	maxDocuments int
	tokenizer    string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	cmd := &cobra.Command{
		Use:   "corpus-pipeline",
		Short: "Bulk-acquires UK legal documents and assembles training datasets",
		Long: `corpus-pipeline discovers UK legal and tax documents across GOV.UK,
legislation.gov.uk and BAILII, downloads them with politeness guarantees and
durable progress, verifies the stored artifacts, and assembles deterministic
instruction, completion and QA training datasets.`,
		SilenceUsage:  true,
		SilenceErrors: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(flags.cfgFile)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("output-dir") {
				cfg.Pipeline.OutputDir = flags.outputDir
			}
			if cmd.Flags().Changed("max-documents") {
				cfg.Pipeline.MaxDocuments = flags.maxDocuments
			}
			if cmd.Flags().Changed("tokenizer") {
				cfg.Pipeline.Tokenizer = flags.tokenizer
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			logger, err := logging.New(cfg.Logging.Development)
			if err != nil {
				return fmt.Errorf("logger init failed: %w", err)
			}
			zap.ReplaceGlobals(logger)

			a, err := app.New(cfg, logger)
			if err != nil {
				return err
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, a))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return
			}
			if cerr := a.Close(); cerr != nil {
				a.Logger.Warn("progress store close failed", zap.Error(cerr))
			}
			_ = a.Logger.Sync()
		},
	}

	cmd.PersistentFlags().StringVar(&flags.cfgFile, "config", "", "config file path")
	cmd.PersistentFlags().StringVar(&flags.outputDir, "output-dir", "", "working directory for state and datasets")
	cmd.PersistentFlags().IntVar(&flags.maxDocuments, "max-documents", 0, "cap on discovered catalog entries (0 = unlimited)")
	cmd.PersistentFlags().StringVar(&flags.tokenizer, "tokenizer", "", "chunking tokenizer (chars or whitespace)")

	cmd.AddCommand(
		newDiscoverCmd(),
		newFetchCmd(),
		newResumeCmd(),
		newVerifyCmd(),
		newAssembleCmd(),
		newCompleteCmd(),
		newEnhancedCompleteCmd(),
	)
	return cmd
}

func resolveApp(ctx context.Context) (*app.App, error) {
	a, ok := ctx.Value(appKey).(*app.App)
	if !ok || a == nil {
		return nil, errors.New("application services not initialized")
	}
	return a, nil
}

// Execute runs the CLI and exits with 0 on success, 2 when the run completed
// but too many entries exhausted their retry budget, and 1 otherwise.
func Execute(ctx context.Context) {
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "corpus-pipeline: %v\n", err)
		if errors.Is(err, errExhaustedTolerance) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
