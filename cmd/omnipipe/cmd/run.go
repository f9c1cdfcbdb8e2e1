package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/wayneeseguin/omnipipe/internal/utils"
	"github.com/wayneeseguin/omnipipe/pkg/health"
	"github.com/wayneeseguin/omnipipe/pkg/omni"
)

var (
	runCount    int
	runWorkers  int
	runCategory string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Push synthetic load through the pipeline",
	Long: `Creates a provider, logs --count entries from --workers concurrent flows,
each inside its own scope, then shuts the provider down and prints the
pipeline metrics and health report as JSON.`,
	RunE: runLoad,
}

func init() {
	runCmd.Flags().IntVarP(&runCount, "count", "n", 1000, "entries per worker")
	runCmd.Flags().IntVarP(&runWorkers, "workers", "w", 4, "concurrent workers")
	runCmd.Flags().StringVar(&runCategory, "category", "omnipipe.load", "logger category")
	rootCmd.AddCommand(runCmd)
}

// runSummary is printed after a load run.
type runSummary struct {
	Entries  int           `json:"entries"`
	Elapsed  string        `json:"elapsed"`
	Metrics  omni.Metrics  `json:"metrics"`
	Health   health.Report `json:"health"`
	Provider string        `json:"provider_id"`
}

func runLoad(cmd *cobra.Command, args []string) error {
	if runCount < 0 || runWorkers <= 0 {
		return errors.New("count must not be negative and workers must be positive")
	}

	cfg, err := loadConfig()
	if err != nil {
		printError("load config", err)
		return err
	}

	provider, err := omni.NewWithConfig(cfg)
	if err != nil {
		printError("create provider", err)
		return err
	}

	summary, err := generateLoad(cmd.Context(), provider, runCategory, runWorkers, runCount)
	if err != nil {
		_ = provider.Close()
		return err
	}
	return writeSummary(cmd.OutOrStdout(), summary)
}

// generateLoad logs workers*count entries, then evaluates health and closes
// the provider. Health is evaluated before Close, while sinks are still open.
func generateLoad(ctx context.Context, provider *omni.Provider, category string, workers, count int) (runSummary, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	logger, err := provider.CreateLogger(category)
	if err != nil {
		return runSummary{}, err
	}

	start := time.Now()
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			flowCtx, _ := utils.CorrelationContext(ctx, "")
			flowCtx, scope := logger.BeginScope(flowCtx, map[string]interface{}{"worker": worker})
			defer scope.Release()

			for i := 0; i < count; i++ {
				switch {
				case i > 0 && i%100 == 0:
					logger.Warn(flowCtx, "Worker {Worker} passed {Processed} entries", worker, i)
				default:
					logger.Info(flowCtx, "Worker {Worker} processed item {Item}", worker, i)
				}
			}
		}(w)
	}
	wg.Wait()

	provider.Flush()
	summary := runSummary{
		Entries:  workers * count,
		Elapsed:  time.Since(start).String(),
		Health:   provider.Evaluate(),
		Provider: provider.ID(),
	}
	_ = provider.Close()
	summary.Metrics = provider.Metrics()
	return summary, nil
}

func writeSummary(w io.Writer, summary runSummary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	return nil
}
