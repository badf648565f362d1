package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/tanq16/xferbench/internal/config"
	"github.com/tanq16/xferbench/internal/harness"
	"github.com/tanq16/xferbench/internal/output"
	"github.com/tanq16/xferbench/internal/scheduler"
	"github.com/tanq16/xferbench/internal/utils"
)

var configFile string

var XferbenchVersion = "dev"

var rootCmd = &cobra.Command{
	Use:   "xferbench",
	Short: "Xferbench benchmarks uploads and downloads against a file server",
	Long: `Xferbench generates a payload, uploads it, downloads it back (whole or in
ranged chunks) and verifies the SHA-256 digest, repeated for a number of
iterations. It prints per-iteration timings and an aggregate report.`,
	Version: XferbenchVersion,
	Args:    cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadRunConfig(cmd)
		if cfg.GeneratePath == "" && cfg.UploadPath == "" && cfg.DownloadPath == "" {
			cmd.Help()
			return
		}
		ctx, stop := signalContext()
		defer stop()
		s := scheduler.New(scheduler.WithObserver(output.PrintIteration))
		outcomes := s.Run(ctx, []utils.RunConfig{cfg})
		finish(ctx, outcomes)
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	config.RegisterFlags(rootCmd.PersistentFlags())
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "YAML config file (default ./xferbench.yaml if present)")

	rootCmd.AddCommand(newBatchCmd())
	rootCmd.AddCommand(newCleanCmd())
	rootCmd.AddCommand(newHashCmd())
}

// loadRunConfig resolves flags, environment and config file, and sets up
// logging. It exits on invalid configuration.
func loadRunConfig(cmd *cobra.Command) utils.RunConfig {
	loader, err := config.New(cmd.Flags(), configFile)
	if err != nil {
		output.PrintError(err.Error())
		os.Exit(1)
	}
	utils.InitLogger(loader.Debug())
	cfg, err := loader.RunConfig()
	if err != nil {
		output.PrintError(err.Error())
		os.Exit(1)
	}
	return cfg
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// finish prints every outcome, writes report files and exits non-zero if
// any run failed or could not start.
func finish(ctx context.Context, outcomes []scheduler.Outcome) {
	failed := false
	byPath := make(map[string][]*harness.IterationReport)
	var paths []string
	for _, o := range outcomes {
		if o.Report != nil {
			fmt.Println()
			output.PrintReport(o.Report)
		}
		if o.Err != nil {
			output.PrintError(fmt.Sprintf("%s %s", output.StyleSymbols["fail"], o.Err))
		}
		if !o.OK() {
			failed = true
		}
		if o.Report != nil && o.Config.ReportPath != "" {
			if _, seen := byPath[o.Config.ReportPath]; !seen {
				paths = append(paths, o.Config.ReportPath)
			}
			byPath[o.Config.ReportPath] = append(byPath[o.Config.ReportPath], o.Report)
		}
	}
	for _, path := range paths {
		if err := output.WriteReport(path, byPath[path]...); err != nil {
			output.PrintError(fmt.Sprintf("Failed to write report: %v", err))
			failed = true
			continue
		}
		output.PrintInfo(fmt.Sprintf("%s Report written to %s", output.StyleSymbols["info"], path))
	}
	if ctx.Err() != nil {
		output.PrintWarning(fmt.Sprintf("%s Interrupted, remaining iterations were skipped", output.StyleSymbols["warning"]))
		failed = true
	}
	if len(outcomes) == 0 {
		failed = true
	}
	if failed {
		output.PrintError("Encountered failed operation(s)")
		os.Exit(1)
	}
}
