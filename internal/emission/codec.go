package emission

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format identifies an on-disk encoding of an emission table.
type Format string

// Supported formats.
const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatYAML Format = "yaml"
)

// Document is the structured form of an emission file. A file may also be a
// bare list of rows, in which case Logits is false.
type Document struct {
	Emissions [][]float64 `json:"emissions" yaml:"emissions"`
	Logits    bool        `json:"logits,omitempty" yaml:"logits,omitempty"`
}

// Matrix converts the document, applying a softmax when it holds logits.
func (d Document) Matrix() (*Matrix, error) {
	if d.Logits {
		return FromLogits(d.Emissions)
	}
	return New(d.Emissions)
}

// FormatFromPath picks a format from the file extension, defaulting to JSON.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", "":
		return FormatJSON, nil
	case ".csv":
		return FormatCSV, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported emission file extension: %s", filepath.Ext(path))
	}
}

// ParseFormat validates a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case FormatJSON:
		return FormatJSON, nil
	case FormatCSV:
		return FormatCSV, nil
	case FormatYAML, "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unsupported emission format: %s", s)
}

// LoadFile reads an emission file, picking the codec from its extension.
func LoadFile(path string, logits bool) (*Matrix, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path) //nolint:gosec // G304: reading user-provided emission file is expected
	if err != nil {
		return nil, fmt.Errorf("failed to open emission file: %w", err)
	}
	defer func() { _ = f.Close() }()

	doc, err := Decode(f, format)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	doc.Logits = doc.Logits || logits
	return doc.Matrix()
}

// Decode reads a Document in the given format.
func Decode(r io.Reader, format Format) (Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Document{}, err
	}
	switch format {
	case FormatJSON:
		return decodeJSON(data)
	case FormatYAML:
		return decodeYAML(data)
	case FormatCSV:
		rows, err := decodeCSV(data)
		return Document{Emissions: rows}, err
	}
	return Document{}, fmt.Errorf("unsupported emission format: %s", format)
}

func decodeJSON(data []byte) (Document, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return Document{}, ErrEmpty
	}
	if trimmed[0] == '[' {
		var rows [][]float64
		if err := json.Unmarshal(trimmed, &rows); err != nil {
			return Document{}, err
		}
		return Document{Emissions: rows}, nil
	}
	var doc Document
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return Document{}, err
	}
	return doc, nil
}

func decodeYAML(data []byte) (Document, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return Document{}, err
	}
	if len(node.Content) == 0 {
		return Document{}, ErrEmpty
	}
	root := node.Content[0]
	if root.Kind == yaml.SequenceNode {
		var rows [][]float64
		if err := root.Decode(&rows); err != nil {
			return Document{}, err
		}
		return Document{Emissions: rows}, nil
	}
	var doc Document
	if err := root.Decode(&doc); err != nil {
		return Document{}, err
	}
	return doc, nil
}

// decodeCSV reads one row per line. Lines starting with '#' are comments.
func decodeCSV(data []byte) ([][]float64, error) {
	cr := csv.NewReader(bytes.NewReader(data))
	cr.Comment = '#'
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrEmpty
	}
	rows := make([][]float64, len(records))
	for t, rec := range records {
		row := make([]float64, len(rec))
		for k, field := range rec {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return nil, fmt.Errorf("line %d field %d: %w", t+1, k+1, err)
			}
			row[k] = v
		}
		rows[t] = row
	}
	return rows, nil
}

// Encode writes rows in the given format. precision < 0 keeps the shortest
// exact representation for CSV.
func Encode(w io.Writer, rows [][]float64, format Format, precision int) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(Document{Emissions: rows})
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(Document{Emissions: rows}); err != nil {
			return err
		}
		return enc.Close()
	case FormatCSV:
		cw := csv.NewWriter(w)
		for _, row := range rows {
			rec := make([]string, len(row))
			for k, v := range row {
				rec[k] = strconv.FormatFloat(v, 'g', precision, 64)
			}
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	}
	return errors.New("unsupported emission format: " + string(format))
}
