package config

import "github.com/GoSim-25-26J-441/readout-calibration/pkg/models"

const (
	DefaultNumShots            = 200
	DefaultNoiseLevel          = 0.5
	DefaultFrequencyShiftScale = 0.1
	DefaultSteps               = 5
	DefaultAmplitudeScaling    = 0.2
	DefaultFrequencyScaling    = 0.05
	DefaultResultsDir          = "results"
)

var (
	DefaultAmplitudeRange = models.NewRange(0.5, 2.0)
	DefaultFrequencyRange = models.NewRange(6.4, 6.6)
	DefaultBetaRange      = models.NewRange(0.1, 1.0)
)

// Default returns the configuration used when no file is supplied
func Default() *Config {
	pulseTypes := make([]string, 0, 3)
	for _, pt := range models.AllPulseTypes() {
		pulseTypes = append(pulseTypes, string(pt))
	}

	return &Config{
		LogLevel: "info",
		Simulation: Simulation{
			NoiseLevel:          DefaultNoiseLevel,
			FrequencyShiftScale: DefaultFrequencyShiftScale,
			NumShots:            DefaultNumShots,
		},
		Ranges: Ranges{
			Amplitude: DefaultAmplitudeRange,
			Frequency: DefaultFrequencyRange,
			Beta:      DefaultBetaRange,
		},
		Optimization: Optimization{
			PulseTypes:       pulseTypes,
			Steps:            DefaultSteps,
			Workers:          1,
			FailurePolicy:    "abort",
			AmplitudeScaling: DefaultAmplitudeScaling,
			FrequencyScaling: DefaultFrequencyScaling,
		},
		Storage: Storage{
			ResultsDir:       DefaultResultsDir,
			Format:           "json",
			Driver:           "none",
			CompressionLevel: 2,
		},
		Server: Server{
			HTTPAddr: ":8080",
			GRPCAddr: ":50051",
			Callbacks: Callback{
				MaxRetries: 3,
				Backoff:    "exponential",
				BaseMs:     1000,
				TimeoutMs:  10000,
			},
		},
	}
}
