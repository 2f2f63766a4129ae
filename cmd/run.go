// File: cmd/run.go
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/waypoint-cli/api/schemas"
	"github.com/xkilldash9x/waypoint-cli/internal/agent"
	"github.com/xkilldash9x/waypoint-cli/internal/browser"
	"github.com/xkilldash9x/waypoint-cli/internal/llmclient"
	"github.com/xkilldash9x/waypoint-cli/internal/observability"
)

var (
	runTask     string
	runStartURL string
	runHistory  string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute a browsing task end to end",
	Long: `Run starts a browser session, hands the task to the model-driven
agent loop, and executes until the task completes or a budget is exhausted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if runTask == "" {
			return fmt.Errorf("--task is required")
		}
		logger := observability.GetLogger()

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		driver, err := browser.NewDriver(ctx, cfg.Browser, logger)
		if err != nil {
			return fmt.Errorf("failed to start browser: %w", err)
		}
		defer driver.Close()

		if runStartURL != "" {
			if err := driver.Navigate(ctx, runStartURL); err != nil {
				return fmt.Errorf("failed to open start url: %w", err)
			}
		}

		model, err := llmclient.NewClient(ctx, cfg.LLM.Main, logger)
		if err != nil {
			return fmt.Errorf("failed to create model client: %w", err)
		}

		planner, err := newPlanner(ctx, logger)
		if err != nil {
			return err
		}

		estimator, err := newEstimator()
		if err != nil {
			return err
		}

		svc := agent.NewService(cfg.Agent, runTask, driver, model, planner, estimator, logger)
		svc.SetViewportExpansion(cfg.Browser.ViewportExpansion)

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			history, runErr := svc.Run(gctx)
			if saveErr := saveHistory(history); saveErr != nil {
				logger.Warn("Failed to save run history", zap.Error(saveErr))
			}
			if runErr != nil {
				return runErr
			}
			if history.IsDone() {
				fmt.Println(history.FinalResult())
			}
			return nil
		})
		g.Go(func() error {
			// When the context falls (signal or run completion), request a
			// cooperative stop so an in-flight step ends at its next
			// checkpoint.
			<-gctx.Done()
			svc.Stop()
			return nil
		})

		return g.Wait()
	},
}

// newPlanner builds the optional planner client; a zero interval disables
// planning entirely.
func newPlanner(ctx context.Context, logger *zap.Logger) (schemas.ModelService, error) {
	if cfg.Agent.PlannerInterval <= 0 {
		return nil, nil
	}
	svc, err := llmclient.NewClient(ctx, cfg.LLM.Planner, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create planner client: %w", err)
	}
	return svc, nil
}

// newEstimator selects the configured token estimator.
func newEstimator() (agent.TokenEstimator, error) {
	switch cfg.Agent.Tokenizer {
	case "tiktoken":
		return agent.NewTiktokenEstimator("", cfg.Agent.ImageTokens)
	default:
		return agent.NewHeuristicEstimator(cfg.Agent.EstimatedCharsToken, cfg.Agent.ImageTokens), nil
	}
}

// saveHistory persists the run record when a destination is configured.
func saveHistory(history *agent.History) error {
	path := runHistory
	if path == "" {
		path = cfg.Agent.HistoryFile
	}
	if path == "" || history == nil || len(history.Steps) == 0 {
		return nil
	}
	if path == "auto" {
		path = fmt.Sprintf("waypoint-run-%s.json", time.Now().Format("20060102-150405"))
	}
	return history.Save(path)
}

func init() {
	runCmd.Flags().StringVarP(&runTask, "task", "t", "", "the task for the agent to accomplish (required)")
	runCmd.Flags().StringVarP(&runStartURL, "url", "u", "", "optional start URL opened before the first step")
	runCmd.Flags().StringVar(&runHistory, "history", "", "override path for the saved run history")
	rootCmd.AddCommand(runCmd)
}
