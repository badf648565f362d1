package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tanq16/xferbench/internal/output"
	"github.com/tanq16/xferbench/internal/utils"
)

func newCleanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clean [path]",
		Short: "Remove leftover .download files",
		Args:  cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			removed, err := utils.CleanDownloads(dir)
			for _, path := range removed {
				output.PrintDetail(fmt.Sprintf("%s %s", output.StyleSymbols["bullet"], path))
			}
			if err != nil {
				output.PrintError(fmt.Sprintf("Error cleaning up %s: %v", dir, err))
				os.Exit(1)
			}
			if len(removed) == 0 {
				output.PrintInfo(fmt.Sprintf("No %s files in %s", utils.DownloadSuffix, dir))
				return
			}
			output.PrintSuccess(fmt.Sprintf("Removed %d file(s)", len(removed)))
		},
	}
}
