package utils

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

var idCounter uint64

// GenerateID generates a unique, time-ordered ID (UUIDv7)
func GenerateID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// Fall back to timestamp + counter
		count := atomic.AddUint64(&idCounter, 1)
		return fmt.Sprintf("%x-%x", time.Now().UnixNano(), count)
	}
	return id.String()
}

// GenerateJobID generates a calibration job ID
func GenerateJobID() string {
	return "cal-" + GenerateID()
}

// GenerateExperimentUID builds the experiment label used in hardware programs,
// e.g. "DRAG_A1.25_F6.50".
func GenerateExperimentUID(pulseType string, amplitude, frequency float64) string {
	return fmt.Sprintf("%s_A%.2f_F%.2f", pulseType, amplitude, frequency)
}
