package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/legal-llama/corpus-pipeline/internal/api"
	"github.com/legal-llama/corpus-pipeline/internal/app"
	"github.com/legal-llama/corpus-pipeline/internal/fetch"
	"github.com/legal-llama/corpus-pipeline/internal/progress"
)

func newFetchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fetch",
		Short: "Downloads every discovered document not yet fetched",
		Long: `Drains the merged catalog through the rate-limited worker pool. Progress
is checkpointed to progress.json, so an interrupted run loses at most the
in-flight requests and can be continued with resume.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			return runFetchPhase(cmd.Context(), a)
		},
	}
}

func newResumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resume",
		Short: "Continues an interrupted download run",
		Long: `Reloads the progress snapshot, requeues any pairs left in_progress by a
crash, and drains the remaining work. Completed downloads are never
refetched.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			if a.Progress.Counts().Total() == 0 {
				return errors.New("no progress snapshot to resume; run fetch first")
			}
			return runFetchPhase(cmd.Context(), a)
		},
	}
}

func runFetchPhase(ctx context.Context, a *app.App) error {
	entries, err := a.Catalog.LoadAll()
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return errors.New("no catalog entries found; run discover first")
	}
	if max := a.Cfg.Pipeline.MaxDocuments; max > 0 && len(entries) > max {
		entries = entries[:max]
	}

	stopServer := startStatusServer(a)
	defer stopServer()

	pool := fetch.New(
		a.Sources,
		a.Limiter,
		a.Progress,
		a.Artifacts,
		a.Hasher,
		a.Clock,
		fetch.Config{
			Workers:        a.Cfg.Fetch.Workers,
			MaxAttempts:    a.Cfg.Fetch.MaxAttempts,
			RequestTimeout: a.Cfg.RequestTimeout(),
		},
		a.Logger.Named("fetch"),
	)
	res, err := pool.Run(ctx, entries)
	if err != nil {
		return err
	}
	if ferr := a.Progress.Flush(); ferr != nil {
		return ferr
	}

	report := progress.ExhaustedReport{
		Counts:  a.Progress.Counts(),
		Entries: a.Progress.Exhausted(),
	}
	if err := progress.WriteExhaustedReport(a.Cfg.Pipeline.OutputDir, report); err != nil {
		return err
	}
	for _, e := range report.Entries {
		a.Logger.Warn("entry exhausted retry budget",
			zap.String("entry_id", e.EntryID),
			zap.String("format", string(e.Format)),
			zap.String("error_kind", string(e.ErrorKind)),
			zap.String("error", e.ErrorText),
		)
	}

	a.Logger.Info("fetch finished",
		zap.Int("succeeded", res.Succeeded),
		zap.Int("exhausted", res.Exhausted),
		zap.Int("corrupt", res.Corrupt),
		zap.Int("skipped", res.Skipped),
		zap.Int64("bytes", res.BytesFetched),
	)
	return checkExhaustedTolerance(a)
}

func checkExhaustedTolerance(a *app.App) error {
	exhausted := a.Progress.Counts().Exhausted
	if tolerance := a.Cfg.Fetch.ExhaustedTolerance; exhausted > tolerance {
		return fmt.Errorf("%w: %d exhausted, tolerance %d",
			errExhaustedTolerance, exhausted, tolerance)
	}
	return nil
}

// startStatusServer exposes /healthz, /v1/progress and /metrics while a
// fetch run is active. The returned func shuts the server down.
func startStatusServer(a *app.App) func() {
	if !a.Cfg.Server.Enabled {
		return func() {}
	}
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.Cfg.Server.Port),
		Handler:           api.NewServer(a.Progress, a.Logger.Named("api")).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.Warn("status server failed", zap.Error(err))
		}
	}()
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.Logger.Warn("status server shutdown failed", zap.Error(err))
		}
	}
}
