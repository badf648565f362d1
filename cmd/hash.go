package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tanq16/xferbench/internal/digest"
	"github.com/tanq16/xferbench/internal/output"
	"github.com/tanq16/xferbench/internal/utils"
)

func newHashCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash FILE...",
		Short: "Print the SHA-256 digest of local files",
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			failed := false
			for _, path := range args {
				sum, size, err := digest.File(path)
				if err != nil {
					output.PrintError(err.Error())
					failed = true
					continue
				}
				fmt.Printf("%s  %s %s\n", sum, path, output.FDebug("("+utils.FormatBytes(uint64(size))+")"))
			}
			if failed {
				os.Exit(1)
			}
		},
	}
}
