package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mannyrayner/C-LARA-2/internal/cli"
	"github.com/mannyrayner/C-LARA-2/internal/observability"
	"github.com/mannyrayner/C-LARA-2/internal/processor"
)

func main() {
	flags := cli.NewFlags()
	rootCmd := cli.CreateRootCommand(flags)

	cobra.OnInitialize(func() {
		cli.InitConfig(flags.CfgFile)
	})

	rootCmd.AddCommand(
		newRunCommand(flags),
		newBatchCommand(flags),
		newStagesCommand(flags),
		newStatusCommand(flags),
		newCacheCommand(flags),
		newConcordanceCommand(flags),
		newServeCommand(flags),
		newModelsCommand(flags),
		newArchiveCommand(flags),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// newProcessor builds the processor once configuration has been read.
func newProcessor(flags *cli.Flags) *processor.Processor {
	cli.ApplyConfig(flags)

	level, format := cli.LogSettings()
	logger := observability.InitLogger(level, format, os.Stderr)
	return processor.NewProcessor(flags, processor.WithLogger(logger))
}

// runDirArg returns the run directory from args or the --output default.
func runDirArg(args []string, flags *cli.Flags) string {
	if len(args) > 0 {
		return args[0]
	}
	return flags.OutputDir
}
