package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tanq16/xferbench/internal/harness"
	"github.com/tanq16/xferbench/internal/output"
	"github.com/tanq16/xferbench/internal/scheduler"
	"github.com/tanq16/xferbench/internal/utils"
)

func newBatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch [PLAN_FILE] [OPTIONS]",
		Short: "Run several benchmark configurations from a YAML plan",
		Long: `Runs every entry under "runs:" in the plan one after another. Entries
override the values given by flags, environment and config file.

  runs:
    - name: small
      generate: small.bin
      size: 1MiB
      upload: small.bin
      download: small.bin
    - name: chunked
      download: small.bin
      chunked: true
      chunk_size: 64KiB`,
		Args: cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			base := loadRunConfig(cmd)
			jobs, err := scheduler.LoadPlan(args[0], base)
			if err != nil {
				output.PrintError(fmt.Sprintf("Error loading plan: %v", err))
				os.Exit(1)
			}
			ctx, stop := signalContext()
			defer stop()
			s := scheduler.New(
				scheduler.WithObserver(output.PrintIteration),
				scheduler.WithBefore(func(i int, cfg utils.RunConfig, _ *harness.IterationReport, _ error) {
					fmt.Println()
					output.PrintHeader(fmt.Sprintf("%s [%d/%d] %s", output.StyleSymbols["arrow"], i+1, len(jobs), cfg.Name))
				}),
			)
			finish(ctx, s.Run(ctx, jobs))
		},
	}
	return cmd
}
