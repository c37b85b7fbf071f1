package cmd

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/legal-llama/corpus-pipeline/internal/app"
	"github.com/legal-llama/corpus-pipeline/internal/assemble"
	"github.com/legal-llama/corpus-pipeline/internal/corpus"
	"github.com/legal-llama/corpus-pipeline/internal/split"
)

func newAssembleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "assemble",
		Short: "Builds the training datasets from verified artifacts",
		Long: `Loads every verified document, derives instruction, completion and QA
records with deterministic ids, writes per-variant JSONL under processed/,
and emits the split datasets plus final/validation_report.json.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			return runAssemblePhase(cmd.Context(), a)
		},
	}
}

func runAssemblePhase(ctx context.Context, a *app.App) error {
	entries, err := a.Catalog.LoadAll()
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return errors.New("no catalog entries found; run discover first")
	}

	loader := assemble.NewLoader(a.Artifacts, a.Logger.Named("loader"))
	docs, skipped, err := loader.Load(ctx, entries, a.Progress.All())
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		return errors.New("no readable documents; run fetch first")
	}

	chunker, err := assemble.NewChunker(
		a.Cfg.Pipeline.ChunkWindow,
		a.Cfg.Pipeline.ChunkOverlap,
		a.Cfg.Pipeline.Tokenizer,
	)
	if err != nil {
		return err
	}
	assembler := assemble.New([]assemble.Transform{
		assemble.NewInstructionTransform(chunker),
		assemble.NewCompletionTransform(chunker),
		assemble.NewQATransform(),
	}, a.Logger.Named("assemble"))

	out, err := assembler.Run(ctx, docs)
	if err != nil {
		return err
	}
	for _, variant := range corpus.Variants() {
		if err := assemble.WriteProcessed(a.Cfg.Pipeline.OutputDir, variant, out.Records[variant]); err != nil {
			return err
		}
	}

	sink, err := a.BuildSink(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sink.Close(ctx); cerr != nil {
			a.Logger.Warn("sink close failed", zap.Error(cerr))
		}
	}()

	writer, err := split.NewWriter(sink, split.Config{
		TrainFraction: a.Cfg.Pipeline.TrainFraction,
	}, a.Logger.Named("split"))
	if err != nil {
		return err
	}
	report, err := writer.Write(ctx, out.Records)
	if err != nil {
		return err
	}
	if err := split.WriteReport(a.Cfg.Pipeline.OutputDir, report); err != nil {
		return err
	}

	a.Logger.Info("assembly finished",
		zap.Int("documents", out.Stats.Documents),
		zap.Int("skipped_documents", skipped),
		zap.Int("train", report.Totals[split.SplitTrain]),
		zap.Int("validation", report.Totals[split.SplitValidation]),
	)
	return nil
}
