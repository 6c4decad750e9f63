package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/reliftlabs/relift/driver"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [paths...]",
	Short: "Run the dataflow analysis over textual IR files",
	Long: `Parses the given textual IR files, runs the dataflow analysis on every
function and prints the computed facts: abstract values, memory locations
and reaching definitions.
Example) relift analyze samples/*.ir`,
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) == 0 {
			fmt.Println("error: Please provide IR file paths")
			os.Exit(1)
		}

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		config, err := driver.LoadConfig(cfgFile)
		if err != nil {
			logger.Fatal("Failed to load configuration", zap.Error(err))
		}

		if err := driver.ProcessFiles(ctx, logger, config, args, os.Stdout); err != nil {
			os.Exit(1)
		}
	},
}
