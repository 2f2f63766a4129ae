// File: cmd/replay.go
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/waypoint-cli/internal/agent"
	"github.com/xkilldash9x/waypoint-cli/internal/browser"
	"github.com/xkilldash9x/waypoint-cli/internal/controller"
	"github.com/xkilldash9x/waypoint-cli/internal/observability"
)

var (
	replayFile         string
	replaySkipFailures bool
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Re-execute a recorded run against the live page",
	Long: `Replay loads a saved run history and re-executes its recorded actions,
re-resolving each target element by its identity fingerprints so moved
elements are found even when their numeric indices have shifted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if replayFile == "" {
			return fmt.Errorf("--file is required")
		}
		logger := observability.GetLogger()

		history, err := agent.LoadHistory(replayFile, controller.ParseActions)
		if err != nil {
			return fmt.Errorf("failed to load history: %w", err)
		}
		logger.Info("Loaded run history",
			zap.String("file", replayFile),
			zap.Int("steps", len(history.Steps)))

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		driver, err := browser.NewDriver(ctx, cfg.Browser, logger)
		if err != nil {
			return fmt.Errorf("failed to start browser: %w", err)
		}
		defer driver.Close()

		replayCfg := cfg.Replay
		if cmd.Flags().Changed("skip-failures") {
			replayCfg.SkipFailures = replaySkipFailures
		}

		replayer := agent.NewReplayer(replayCfg, driver, logger)
		results, err := replayer.Rerun(ctx, history)
		if err != nil {
			return fmt.Errorf("replay failed after %d action(s): %w", len(results), err)
		}

		failed := 0
		for _, res := range results {
			if res.Error != "" {
				failed++
			}
		}
		fmt.Printf("Replay finished: %d action(s) executed, %d failed\n", len(results), failed)
		return nil
	},
}

func init() {
	replayCmd.Flags().StringVarP(&replayFile, "file", "f", "", "path to the saved run history (required)")
	replayCmd.Flags().BoolVar(&replaySkipFailures, "skip-failures", false, "continue past unresolvable steps instead of aborting")
	rootCmd.AddCommand(replayCmd)
}
