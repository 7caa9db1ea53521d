package results

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/GoSim-25-26J-441/readout-calibration/pkg/logger"
	"github.com/GoSim-25-26J-441/readout-calibration/pkg/models"
)

// Format is a results file format.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// ErrUnsupportedFormat is returned for formats other than json and csv.
var ErrUnsupportedFormat = errors.New("unsupported save format")

// csvFields are the only columns written in CSV; IQ clouds are dropped.
var csvFields = []string{"pulse_type", "amplitude", "frequency", "fidelity"}

// ParseFormat resolves a format name.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatJSON, FormatCSV:
		return Format(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
}

// FileName is the timestamped name results are written under.
func FileName(format Format, t time.Time) string {
	return fmt.Sprintf("experiment_results_%s.%s", t.Format("20060102_150405"), format)
}

// Saver writes result sets into a directory, one timestamped file per call.
type Saver struct {
	dir    string
	format Format
	now    func() time.Time
}

// NewSaver creates a saver writing format files into dir.
func NewSaver(dir string, format Format) *Saver {
	return &Saver{dir: dir, format: format, now: time.Now}
}

// Save writes results and returns the file path.
func (s *Saver) Save(results []*models.ExperimentResult) (string, error) {
	if _, err := ParseFormat(string(s.format)); err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create results directory: %w", err)
	}

	path := filepath.Join(s.dir, FileName(s.format, s.now()))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to save results to %s: %w", path, err)
	}
	if err := Encode(f, s.format, results); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to save results to %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to save results to %s: %w", path, err)
	}

	logger.Info("results saved", "path", path, "count", len(results))
	return path, nil
}

// SaveBest writes a single optimization result.
func (s *Saver) SaveBest(best *models.OptimizationResult) (string, error) {
	return s.Save([]*models.ExperimentResult{FromOptimization(best)})
}

// FromOptimization lifts an optimization result into the persisted record shape.
func FromOptimization(r *models.OptimizationResult) *models.ExperimentResult {
	return &models.ExperimentResult{
		PulseType: r.PulseType,
		Amplitude: r.Amplitude,
		Frequency: r.Frequency,
		Beta:      models.CopyBeta(r.Beta),
		Fidelity:  r.Fidelity,
	}
}

// Encode writes results to w in format.
func Encode(w io.Writer, format Format, results []*models.ExperimentResult) error {
	switch format {
	case FormatJSON:
		return EncodeJSON(w, results)
	case FormatCSV:
		return EncodeCSV(w, results)
	}
	return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
}

// EncodeJSON writes results as an indented JSON array.
func EncodeJSON(w io.Writer, results []*models.ExperimentResult) error {
	if results == nil {
		results = []*models.ExperimentResult{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}

// EncodeCSV writes the scalar columns of results with a header row.
func EncodeCSV(w io.Writer, results []*models.ExperimentResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvFields); err != nil {
		return err
	}
	for _, r := range results {
		row := []string{
			string(r.PulseType),
			formatFloat(r.Amplitude),
			formatFloat(r.Frequency),
			formatFloat(r.Fidelity),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
