package cmd

import (
	"errors"
	"io"
	"math/rand/v2"

	"github.com/MeKo-Tech/goctc/internal/alphabet"
	"github.com/MeKo-Tech/goctc/internal/ctc"
	"github.com/MeKo-Tech/goctc/internal/emission"
	"github.com/spf13/cobra"
)

func newSynthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "synth",
		Short: "Generate a synthetic emission matrix",
		Long: `Write an emission matrix whose best path decodes to --label. Each row puts
--peak on the aligned symbol and spreads the rest uniformly. With --random
the rows are random distributions drawn from --seed instead.

Examples:
  ctc synth --label hello --steps 20 -o hello.json
  ctc synth --label abc --format csv --peak 0.7
  ctc synth --random --steps 50 --seed 7 -o noise.yaml`,
		Args: cobra.NoArgs,
		RunE: runSynth,
	}

	cmd.Flags().StringP("label", "l", "", "label the best path should decode to")
	cmd.Flags().IntP("steps", "T", 0, "number of time steps (default: minimum steps for the label plus its length)")
	cmd.Flags().Float64("peak", 0.9, "probability of the aligned symbol in each row")
	cmd.Flags().Bool("random", false, "draw random rows instead of a peaked path")
	cmd.Flags().Uint64("seed", 1, "random seed (with --random)")
	cmd.Flags().StringP("format", "f", "", "output format: json, csv, yaml (default: from --output extension, else json)")
	cmd.Flags().StringP("output", "o", "", "output file (default: stdout)")
	cmd.Flags().Int("precision", -1, "significant digits for csv (-1 = shortest exact)")
	return cmd
}

func runSynth(cmd *cobra.Command, _ []string) error {
	label, _ := cmd.Flags().GetString("label")
	steps, _ := cmd.Flags().GetInt("steps")
	peak, _ := cmd.Flags().GetFloat64("peak")
	random, _ := cmd.Flags().GetBool("random")
	seed, _ := cmd.Flags().GetUint64("seed")
	file, _ := cmd.Flags().GetString("output")
	precision, _ := cmd.Flags().GetInt("precision")

	format, err := synthFormat(cmd, file)
	if err != nil {
		return err
	}

	ab := alphabet.Default()
	var m *emission.Matrix
	if random {
		if steps <= 0 {
			return errors.New("--steps must be positive with --random")
		}
		m = emission.Random(steps, ab.Size(), 0.05, rand.New(rand.NewPCG(seed, seed)))
	} else {
		encoded, err := ab.Encode(label)
		if err != nil {
			return err
		}
		if steps <= 0 {
			steps = max(ctc.MinSteps(encoded)+len(encoded), 1)
		}
		m, err = emission.Synthesize(encoded, ab.Blank(), ab.Size(), steps, peak)
		if err != nil {
			return err
		}
	}

	return writeOutput(cmd, file, func(w io.Writer) error {
		return emission.Encode(w, m.Rows(), format, precision)
	})
}

func synthFormat(cmd *cobra.Command, file string) (emission.Format, error) {
	if name, _ := cmd.Flags().GetString("format"); name != "" {
		return emission.ParseFormat(name)
	}
	if file != "" {
		return emission.FormatFromPath(file)
	}
	return emission.FormatJSON, nil
}
