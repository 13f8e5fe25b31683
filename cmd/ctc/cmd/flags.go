package cmd

import (
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/MeKo-Tech/goctc/internal/config"
	"github.com/MeKo-Tech/goctc/internal/ctc"
	"github.com/MeKo-Tech/goctc/internal/emission"
	"github.com/MeKo-Tech/goctc/internal/report"
	"github.com/spf13/cobra"
)

var outputFormats = []string{report.FormatText, report.FormatJSON, report.FormatCSV, report.FormatYAML}

// addCTCFlags registers the scoring flags shared by score, decode, batch and
// serve. They override the ctc section of the configuration when set.
func addCTCFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("strict", true, "reject infeasible alignments and non-finite gradients")
	cmd.Flags().Float64("tolerance", emission.DefaultRowSumTolerance, "allowed deviation of each row sum from 1")
	cmd.Flags().Int("max-steps", 0, "maximum number of time steps (0 = config value)")
	cmd.Flags().Bool("normalize", false, "fold case and diacritics in labels before encoding")
}

func addOutputFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("format", "f", "text", "output format (text, json, csv, yaml)")
	cmd.Flags().StringP("output", "o", "", "output file (default: stdout)")
	cmd.Flags().Int("precision", 6, "significant digits for text and csv (-1 = shortest exact)")
}

// ctcConfig merges the ctc configuration section with changed flags.
func ctcConfig(cmd *cobra.Command, cfg *config.Config) ctc.Config {
	c := cfg.ToCTCConfig()
	if cmd.Flags().Changed("strict") {
		c.Strict, _ = cmd.Flags().GetBool("strict")
	}
	if cmd.Flags().Changed("tolerance") {
		c.RowSumTolerance, _ = cmd.Flags().GetFloat64("tolerance")
	}
	if cmd.Flags().Changed("max-steps") {
		c.MaxTimeSteps, _ = cmd.Flags().GetInt("max-steps")
	}
	if cmd.Flags().Changed("normalize") {
		c.NormalizeLabels, _ = cmd.Flags().GetBool("normalize")
	}
	return c
}

type outputOptions struct {
	Format    string
	File      string
	Precision int
}

// outputConfig merges the output configuration section with changed flags.
func outputConfig(cmd *cobra.Command, cfg *config.Config) (outputOptions, error) {
	out := outputOptions{Format: cfg.Output.Format, File: cfg.Output.File, Precision: cfg.Output.Precision}
	if cmd.Flags().Changed("format") {
		out.Format, _ = cmd.Flags().GetString("format")
	}
	if cmd.Flags().Changed("output") {
		out.File, _ = cmd.Flags().GetString("output")
	}
	if cmd.Flags().Changed("precision") {
		out.Precision, _ = cmd.Flags().GetInt("precision")
	}
	if !slices.Contains(outputFormats, out.Format) {
		return out, fmt.Errorf("invalid output format: %s (must be one of: text, json, csv, yaml)", out.Format)
	}
	return out, nil
}

// writeOutput calls write with the output file, or with the command's
// stdout when no file is set.
func writeOutput(cmd *cobra.Command, file string, write func(io.Writer) error) error {
	if file == "" {
		return write(cmd.OutOrStdout())
	}

	f, err := os.Create(file) //nolint:gosec // G304: output path comes from the CLI
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	return nil
}

func writeScores(cmd *cobra.Command, scores []report.Score, out outputOptions) error {
	return writeOutput(cmd, out.File, func(w io.Writer) error {
		return report.Write(w, scores, out.Format, out.Precision)
	})
}

// loadEmissions reads an emission file, or stdin when path is "-".
func loadEmissions(cmd *cobra.Command, path, inputFormat string, logits bool) (*emission.Matrix, error) {
	if path != "-" {
		return emission.LoadFile(path, logits)
	}

	format, err := emission.ParseFormat(inputFormat)
	if err != nil {
		return nil, err
	}
	doc, err := emission.Decode(cmd.InOrStdin(), format)
	if err != nil {
		return nil, fmt.Errorf("failed to decode stdin: %w", err)
	}
	doc.Logits = doc.Logits || logits
	return doc.Matrix()
}
