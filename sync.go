package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shiver1514/feishu-sync/internal/trigger"
)

func newRunCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one reconciliation pass",
		Long: `Run executes a single manual reconciliation pass (§4.7 Manual trigger):
it blocks until the pass completes, or fails immediately with a 409-equivalent
busy error if a scheduled or webhook-triggered pass already holds the run lock.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := appFrom(cmd.Context())
			defer a.store.Close()

			manual := trigger.NewManualTrigger(a.coordinator, runFunc(a.engine))
			summary, err := manual.Run(cmd.Context(), dryRun)
			if err != nil {
				return fmt.Errorf("run: %w", err)
			}
			return printRunSummary(summary)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "scan only, skip every remote mutation")
	return cmd
}

func printRunSummary(summary trigger.RunSummary) error {
	if flagJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	}
	if summary.FatalError != "" {
		fmt.Printf("run failed: %s\n", summary.FatalError)
		return nil
	}
	fmt.Printf("run complete: %d error(s)\n", summary.Errors)
	return nil
}
