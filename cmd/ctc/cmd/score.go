package cmd

import (
	"log/slog"
	"time"

	"github.com/MeKo-Tech/goctc/internal/ctc"
	"github.com/MeKo-Tech/goctc/internal/report"
	"github.com/spf13/cobra"
)

func newScoreCmd(st *cliState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "score <emission-file>",
		Short: "Compute P(label | emissions), optionally with its gradient",
		Long: `Compute the probability of a label given an emission matrix, together
with the best-path decode. With --gradient the derivative of the probability
with respect to every emission entry is printed as well.

Emission files are JSON, CSV or YAML, chosen by extension. Use "-" to read
from stdin (JSON unless --input-format says otherwise).

Examples:
  ctc score emissions.json --label hello
  ctc score emissions.csv -l abc --gradient --format json
  cat emissions.json | ctc score - -l abc`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScore(cmd, st, args[0])
		},
	}

	cmd.Flags().StringP("label", "l", "", "label to score (symbols of the alphabet, may be empty)")
	cmd.Flags().Bool("logits", false, "treat the emissions as raw scores and apply a softmax per row")
	cmd.Flags().BoolP("gradient", "g", false, "include the gradient of P with respect to the emissions")
	cmd.Flags().String("input-format", "json", "format of stdin input (json, csv, yaml)")
	_ = cmd.MarkFlagRequired("label")
	addCTCFlags(cmd)
	addOutputFlags(cmd)
	return cmd
}

func runScore(cmd *cobra.Command, st *cliState, path string) error {
	cfg := st.GetConfig()
	out, err := outputConfig(cmd, cfg)
	if err != nil {
		return err
	}
	label, _ := cmd.Flags().GetString("label")
	logits, _ := cmd.Flags().GetBool("logits")
	withGradient, _ := cmd.Flags().GetBool("gradient")
	inputFormat, _ := cmd.Flags().GetString("input-format")

	start := time.Now()
	em, err := loadEmissions(cmd, path, inputFormat, logits)
	if err != nil {
		return err
	}
	req, err := ctc.NewRequest(nil, label, em, ctcConfig(cmd, cfg))
	if err != nil {
		return err
	}

	var score report.Score
	if withGradient {
		res, err := req.Result()
		if err != nil {
			return err
		}
		score = report.FromResult(res, true)
	} else {
		score = report.Probability(req.Label(), req.Probability(), em.Steps())
		score.BestPath = req.BestPath()
	}
	elapsed := time.Since(start)
	score.Source = path
	score.DurationMs = float64(elapsed.Microseconds()) / 1000

	slog.Debug("Scored emission file", "file", path, "steps", em.Steps(), "duration", elapsed)
	return writeScores(cmd, []report.Score{score}, out)
}
