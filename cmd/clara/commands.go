package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mannyrayner/C-LARA-2/internal/cli"
	"github.com/mannyrayner/C-LARA-2/internal/processor"
)

func newRunCommand(flags *cli.Flags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [file]",
		Short: "Run the pipeline on a source file, text, description or document",
		Long: `Run the annotation stages on one input and write the results to the
run directory. Source files may be .txt, .md, .html, .pdf or .docx.

With --resume the input is the stage output already persisted in the run
directory, and --start names the first stage to run again.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := ""
			if len(args) > 0 {
				input = args[0]
			}
			proc := newProcessor(flags)
			if _, err := proc.Run(cmd.Context(), input); err != nil {
				return err
			}
			fmt.Printf("\nDone! Results saved to: %s\n", flags.OutputDir)
			return nil
		},
	}

	cmd.Flags().StringVar(&flags.Text, "text", "", "Raw text to annotate")
	cmd.Flags().StringVar(&flags.Description, "description", "", "Description to generate a text from (free text or JSON object)")
	cmd.Flags().StringVar(&flags.DocumentPath, "document", "", "Document JSON to start from")
	cmd.Flags().BoolVar(&flags.Resume, "resume", false, "Resume from the stage output in the run directory (requires --start)")
	cli.AddRunFlags(cmd, flags)
	return cmd
}

func newBatchCommand(flags *cli.Flags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch <file>",
		Short: "Run the pipeline for every entry of a batch file",
		Long: `Each line of the batch file is a source file path or
"description: <text>", optionally followed by "= <run name>". Lines starting
with # are ignored. Every entry gets its own run directory under --output.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return newProcessor(flags).ProcessBatch(cmd.Context(), args[0])
		},
	}
	cli.AddRunFlags(cmd, flags)
	return cmd
}

func newStagesCommand(flags *cli.Flags) *cobra.Command {
	return &cobra.Command{
		Use:   "stages",
		Short: "List the pipeline stages in order",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			newProcessor(flags).PrintStages()
		},
	}
}

func newStatusCommand(flags *cli.Flags) *cobra.Command {
	return &cobra.Command{
		Use:   "status [run]",
		Short: "Show the progress log of a run directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			proc := newProcessor(flags)
			return proc.Status(runDirArg(args, flags))
		},
	}
}

func newCacheCommand(flags *cli.Flags) *cobra.Command {
	cacheDir := func(args []string) string {
		if len(args) > 0 {
			return args[0]
		}
		if flags.AudioCacheDir != "" {
			return flags.AudioCacheDir
		}
		return filepath.Join(flags.OutputDir, "audio_cache")
	}

	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the audio cache",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "stats [dir]",
			Short: "Show the number and size of cached audio files",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				proc := newProcessor(flags)
				return proc.CacheStats(cacheDir(args))
			},
		},
		&cobra.Command{
			Use:   "clear [dir]",
			Short: "Delete the audio cache",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				proc := newProcessor(flags)
				return proc.CacheClear(cacheDir(args))
			},
		},
	)
	return cmd
}

func newConcordanceCommand(flags *cli.Flags) *cobra.Command {
	return &cobra.Command{
		Use:   "concordance <document.json>",
		Short: "Print the lemma concordance of an annotated document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return newProcessor(flags).Concordance(args[0])
		},
	}
}

func newServeCommand(flags *cli.Flags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve [run]",
		Short: "Serve a run directory's HTML, progress and metrics over HTTP",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			proc := newProcessor(flags)
			addr := flags.Addr
			if !cmd.Flags().Changed("addr") && cli.ServeAddr() != "" {
				addr = cli.ServeAddr()
			}
			return proc.Serve(cmd.Context(), runDirArg(args, flags), addr)
		},
	}
	cmd.Flags().StringVar(&flags.Addr, "addr", flags.Addr, "Listen address")
	return cmd
}

func newModelsCommand(flags *cli.Flags) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the OpenAI chat and TTS models available to your API key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return newProcessor(flags).ListModels(cmd.Context())
		},
	}
}

func newArchiveCommand(flags *cli.Flags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive [run]",
		Short: "Move a run directory into archive/, snapshot it, or restore a snapshot",
		Long: `Without flags the run directory is moved to archive/run-<timestamp> next to it.
--snapshot writes a .tar.xz of the run and leaves it in place. --restore unpacks
a snapshot into the run directory.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			proc := newProcessor(flags)
			return proc.Archive(runDirArg(args, flags), processor.ArchiveOptions{
				Snapshot: flags.Snapshot,
				Restore:  flags.Restore,
			})
		},
	}
	cmd.Flags().StringVar(&flags.Snapshot, "snapshot", "", "Write a .tar.xz snapshot to this path instead of moving the run")
	cmd.Flags().StringVar(&flags.Restore, "restore", "", "Unpack this .tar.xz snapshot into the run directory")
	return cmd
}
