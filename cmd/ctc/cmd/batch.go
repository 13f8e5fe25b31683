package cmd

import (
	"errors"
	"fmt"
	"io"
	"runtime"

	"github.com/MeKo-Tech/goctc/internal/batch"
	"github.com/MeKo-Tech/goctc/internal/config"
	"github.com/spf13/cobra"
)

func newBatchCmd(st *cliState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch <job-file> | --decode <files or directories>...",
		Short: "Score many label/emission pairs in parallel",
		Long: `Run a job file through a pool of workers. A job file is JSON or YAML:

  jobs:
    - name: first
      label: hello
      file: hello.csv
    - label: ab
      emissions: [[0.1, ...], ...]
    - mode: decode
      file: unknown.json

Relative file paths are resolved against the job file. Results keep the
order of the jobs. With --decode the arguments are emission files or
directories, and every discovered file is decoded.

Examples:
  ctc batch jobs.yaml --workers 8
  ctc batch jobs.json --continue-on-error --format csv -o results.csv
  ctc batch --decode emissions/ --recursive`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, st, args)
		},
	}

	cmd.Flags().IntP("workers", "w", 0, fmt.Sprintf("number of parallel workers (default: config, %d CPUs available)", runtime.NumCPU()))
	cmd.Flags().Bool("continue-on-error", false, "record failed jobs in the output instead of aborting")
	cmd.Flags().BoolP("gradient", "g", false, "include gradients in the results")
	cmd.Flags().Bool("decode", false, "treat arguments as emission files or directories to decode")
	cmd.Flags().Bool("logits", false, "treat discovered emission files as raw scores (with --decode)")
	cmd.Flags().BoolP("recursive", "r", false, "recursively scan directories (with --decode)")
	cmd.Flags().StringSlice("include", batch.DefaultIncludePatterns, "file patterns to include (with --decode)")
	cmd.Flags().StringSlice("exclude", []string{}, "file patterns to exclude (with --decode)")
	cmd.Flags().Bool("progress", false, "show a progress bar on stderr")
	cmd.Flags().Bool("stats", false, "print run statistics on stderr")
	addCTCFlags(cmd)
	addOutputFlags(cmd)
	return cmd
}

// configToBatchConfig maps the configuration and changed flags to
// batch.Config.
func configToBatchConfig(cmd *cobra.Command, cfg *config.Config) batch.Config {
	bc := batch.Config{
		Workers:         cfg.Batch.Workers,
		ContinueOnError: cfg.Batch.ContinueOnError,
		CTC:             ctcConfig(cmd, cfg),
	}
	if cmd.Flags().Changed("workers") {
		bc.Workers, _ = cmd.Flags().GetInt("workers")
	}
	if cmd.Flags().Changed("continue-on-error") {
		bc.ContinueOnError, _ = cmd.Flags().GetBool("continue-on-error")
	}
	bc.WithGradient, _ = cmd.Flags().GetBool("gradient")
	if progress, _ := cmd.Flags().GetBool("progress"); progress {
		bc.Progress = batch.NewConsoleProgressCallback(cmd.ErrOrStderr(), "Scoring: ")
	}
	return bc
}

func runBatch(cmd *cobra.Command, st *cliState, args []string) error {
	cfg := st.GetConfig()
	out, err := outputConfig(cmd, cfg)
	if err != nil {
		return err
	}

	jobs, err := collectJobs(cmd, args)
	if err != nil {
		return err
	}

	res, err := batch.Run(cmd.Context(), jobs, configToBatchConfig(cmd, cfg))
	if err != nil {
		return fmt.Errorf("batch processing failed: %w", err)
	}

	if err := writeOutput(cmd, out.File, func(w io.Writer) error {
		return res.Write(w, out.Format, out.Precision)
	}); err != nil {
		return fmt.Errorf("failed to save results: %w", err)
	}

	if stats, _ := cmd.Flags().GetBool("stats"); stats {
		res.PrintStats(cmd.ErrOrStderr())
	}
	return nil
}

func collectJobs(cmd *cobra.Command, args []string) ([]batch.Job, error) {
	if decode, _ := cmd.Flags().GetBool("decode"); !decode {
		if len(args) != 1 {
			return nil, errors.New("batch takes exactly one job file (or use --decode)")
		}
		return batch.LoadJobFile(args[0])
	}

	recursive, _ := cmd.Flags().GetBool("recursive")
	include, _ := cmd.Flags().GetStringSlice("include")
	exclude, _ := cmd.Flags().GetStringSlice("exclude")
	logits, _ := cmd.Flags().GetBool("logits")

	files, err := batch.DiscoverEmissionFiles(args, recursive, include, exclude)
	if err != nil {
		return nil, fmt.Errorf("failed to discover emission files: %w", err)
	}
	if len(files) == 0 {
		return nil, errors.New("no emission files found")
	}
	return batch.DecodeJobs(files, logits), nil
}
