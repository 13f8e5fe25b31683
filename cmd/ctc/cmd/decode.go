package cmd

import (
	"fmt"

	"github.com/MeKo-Tech/goctc/internal/ctc"
	"github.com/MeKo-Tech/goctc/internal/report"
	"github.com/spf13/cobra"
)

func newDecodeCmd(st *cliState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decode <emission-file>...",
		Short: "Best-path decode emission matrices",
		Long: `Take the most likely symbol at every time step, merge repeats and drop
blanks. No label is needed.

Examples:
  ctc decode emissions.json
  ctc decode a.csv b.csv --format csv`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := st.GetConfig()
			out, err := outputConfig(cmd, cfg)
			if err != nil {
				return err
			}
			logits, _ := cmd.Flags().GetBool("logits")
			inputFormat, _ := cmd.Flags().GetString("input-format")
			core := ctcConfig(cmd, cfg)

			scores := make([]report.Score, 0, len(args))
			for _, path := range args {
				em, err := loadEmissions(cmd, path, inputFormat, logits)
				if err != nil {
					return err
				}
				best, err := ctc.Decode(nil, em, core)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				score := report.Decoded(best, em.Steps())
				score.Source = path
				scores = append(scores, score)
			}
			return writeScores(cmd, scores, out)
		},
	}

	cmd.Flags().Bool("logits", false, "treat the emissions as raw scores and apply a softmax per row")
	cmd.Flags().String("input-format", "json", "format of stdin input (json, csv, yaml)")
	addCTCFlags(cmd)
	addOutputFlags(cmd)
	return cmd
}
