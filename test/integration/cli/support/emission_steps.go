package support

import (
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"

	"github.com/MeKo-Tech/goctc/internal/alphabet"
	"github.com/MeKo-Tech/goctc/internal/ctc"
	"github.com/MeKo-Tech/goctc/internal/emission"
	"github.com/cucumber/godog"
)

// writeMatrix encodes m into the temp directory, picking the codec from the
// file extension.
func (testCtx *TestContext) writeMatrix(name string, m *emission.Matrix) error {
	path := testCtx.Path(name)
	format, err := emission.FormatFromPath(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}

	f, err := os.Create(path) //nolint:gosec // G304: scenario temp dir
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", name, err)
	}
	defer func() { _ = f.Close() }()

	if err := emission.Encode(f, m.Rows(), format, -1); err != nil {
		return err
	}
	testCtx.TrackFile(name)
	return nil
}

// anEmissionFileForLabel writes a peaked matrix whose best path is label,
// using the minimum number of steps plus one per symbol.
func (testCtx *TestContext) anEmissionFileForLabel(name, label string) error {
	ab := alphabet.Default()
	encoded, err := ab.Encode(label)
	if err != nil {
		return err
	}
	steps := max(ctc.MinSteps(encoded)+len(encoded), 1)
	return testCtx.anEmissionFileForLabelWithSteps(name, label, steps)
}

func (testCtx *TestContext) anEmissionFileForLabelWithSteps(name, label string, steps int) error {
	ab := alphabet.Default()
	encoded, err := ab.Encode(label)
	if err != nil {
		return err
	}
	m, err := emission.Synthesize(encoded, ab.Blank(), ab.Size(), steps, 0.9)
	if err != nil {
		return err
	}
	return testCtx.writeMatrix(name, m)
}

func (testCtx *TestContext) aRandomEmissionFile(name string, steps int) error {
	rng := rand.New(rand.NewPCG(uint64(steps), 42)) //nolint:gosec // G404: fixture data
	return testCtx.writeMatrix(name, emission.Random(steps, alphabet.Default().Size(), 0.05, rng))
}

// aFileContaining writes a doc string verbatim, for hand-written emission
// files, job files and configuration files.
func (testCtx *TestContext) aFileContaining(name string, content *godog.DocString) error {
	path := testCtx.Path(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(content.Content), 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	testCtx.TrackFile(name)
	return nil
}

// RegisterEmissionSteps registers the fixture step definitions.
func (testCtx *TestContext) RegisterEmissionSteps(sc *godog.ScenarioContext) {
	sc.Step(`^an emission file "([^"]*)" for label "([^"]*)"$`, testCtx.anEmissionFileForLabel)
	sc.Step(`^an emission file "([^"]*)" for label "([^"]*)" with (\d+) steps$`, testCtx.anEmissionFileForLabelWithSteps)
	sc.Step(`^a random emission file "([^"]*)" with (\d+) steps$`, testCtx.aRandomEmissionFile)
	sc.Step(`^a file "([^"]*)" containing:$`, testCtx.aFileContaining)
}
