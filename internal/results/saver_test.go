package results

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoSim-25-26J-441/readout-calibration/pkg/models"
)

func sampleResults() []*models.ExperimentResult {
	return []*models.ExperimentResult{
		{
			PulseType: models.PulseSquare,
			Amplitude: 1,
			Frequency: 6.5,
			IQData0:   models.IQCloud{{1, 0}},
			IQData1:   models.IQCloud{{-1, 0.5}},
			Fidelity:  1,
		},
		{
			PulseType: models.PulseDRAG,
			Amplitude: 1.25,
			Frequency: 6.45,
			Beta:      models.Float64(0.5),
			Fidelity:  0.875,
		},
	}
}

func newGoldie(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func TestEncodeGolden(t *testing.T) {
	tests := []struct {
		name   string
		format Format
	}{
		{"results_json", FormatJSON},
		{"results_csv", FormatCSV},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, Encode(&buf, tt.format, sampleResults()))
			newGoldie(t).Assert(t, tt.name, buf.Bytes())
		})
	}
}

func TestEncodeUnsupportedFormat(t *testing.T) {
	var buf bytes.Buffer
	err := Encode(&buf, Format("xml"), sampleResults())
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = ParseFormat("parquet")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestFileName(t *testing.T) {
	ts := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)
	assert.Equal(t, "experiment_results_20240309_140507.json", FileName(FormatJSON, ts))
	assert.Equal(t, "experiment_results_20240309_140507.csv", FileName(FormatCSV, ts))
}

func TestSaverWritesTimestampedFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "results")
	s := NewSaver(dir, FormatJSON)
	s.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.Local) }

	path, err := s.Save(sampleResults())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "experiment_results_20240102_030405.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var decoded []*models.ExperimentResult
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded, 2)
	assert.Equal(t, models.IQCloud{{-1, 0.5}}, decoded[0].IQData1)
	require.NotNil(t, decoded[1].Beta)
	assert.Equal(t, 0.5, *decoded[1].Beta)
}

func TestSaverRejectsUnsupportedFormat(t *testing.T) {
	dir := t.TempDir()
	_, err := NewSaver(dir, Format("yaml")).Save(sampleResults())
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSaveBestCSV(t *testing.T) {
	s := NewSaver(t.TempDir(), FormatCSV)
	path, err := s.SaveBest(&models.OptimizationResult{PulseType: models.PulseGaussian, Amplitude: 1.5, Frequency: 6.5, Fidelity: 0.93})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "pulse_type,amplitude,frequency,fidelity\nGaussian,1.5,6.5,0.93\n", string(data))
}
