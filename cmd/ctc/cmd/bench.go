package cmd

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/MeKo-Tech/goctc/internal/alphabet"
	"github.com/MeKo-Tech/goctc/internal/benchmark"
	"github.com/spf13/cobra"
)

func newBenchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Time forward, backward, gradient and decode on random inputs",
		Long: `Run the scoring stages on random emission matrices and random labels and
report the average time and allocation per call. Every --steps value is
combined with every --label-length value.

Examples:
  ctc bench
  ctc bench --steps 100,1000 --label-length 10,50 --iterations 50`,
		Args: cobra.NoArgs,
		RunE: runBench,
	}

	cmd.Flags().IntSlice("steps", []int{50, 200, 1000}, "time steps of the random matrices")
	cmd.Flags().IntSlice("label-length", []int{10}, "lengths of the random labels")
	cmd.Flags().IntP("iterations", "n", 20, "iterations per benchmark")
	cmd.Flags().Uint64("seed", 1, "random seed for the inputs")
	return cmd
}

func runBench(cmd *cobra.Command, _ []string) error {
	steps, _ := cmd.Flags().GetIntSlice("steps")
	lengths, _ := cmd.Flags().GetIntSlice("label-length")
	iterations, _ := cmd.Flags().GetInt("iterations")
	seed, _ := cmd.Flags().GetUint64("seed")

	if iterations <= 0 {
		return errors.New("--iterations must be positive")
	}

	cases := make([]benchmark.Case, 0, len(steps)*len(lengths))
	for _, t := range steps {
		for _, l := range lengths {
			if l > t {
				slog.Warn("Skipping infeasible benchmark case", "steps", t, "label_length", l)
				continue
			}
			cases = append(cases, benchmark.Case{Steps: t, LabelLength: l})
		}
	}
	if len(cases) == 0 {
		return errors.New("no feasible benchmark cases")
	}

	suite, err := benchmark.NewCTCSuite(alphabet.Default(), cases, seed)
	if err != nil {
		return fmt.Errorf("failed to build benchmarks: %w", err)
	}
	for _, r := range suite.RunAll(iterations) {
		if r.Error != nil {
			return r.Error
		}
	}
	suite.WriteResults(cmd.OutOrStdout())
	return nil
}
