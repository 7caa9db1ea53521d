package results

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/GoSim-25-26J-441/readout-calibration/pkg/config"
	"github.com/GoSim-25-26J-441/readout-calibration/pkg/models"
	"github.com/GoSim-25-26J-441/readout-calibration/pkg/utils"
)

// ErrNotFound is returned by Get for an unknown record id.
var ErrNotFound = errors.New("record not found")

// Record is one persisted experiment result.
type Record struct {
	ID        string                   `json:"id"`
	JobID     string                   `json:"job_id,omitempty"`
	CreatedAt time.Time                `json:"created_at"`
	Result    *models.ExperimentResult `json:"result"`
}

// NewRecord wraps result with a fresh time-ordered id.
func NewRecord(jobID string, result *models.ExperimentResult) *Record {
	return &Record{
		ID:        utils.GenerateID(),
		JobID:     jobID,
		CreatedAt: time.Now().UTC(),
		Result:    result,
	}
}

// Filter narrows List. A zero Limit returns every match.
type Filter struct {
	JobID  string
	Limit  int
	Offset int
}

// Store persists experiment records. Implementations are safe for concurrent use
// and List returns records in id order, which is creation order.
type Store interface {
	Put(ctx context.Context, rec *Record) error
	Get(ctx context.Context, id string) (*Record, error)
	List(ctx context.Context, f Filter) ([]*Record, error)
	Close() error
}

// Open opens the store selected by cfg.Driver. The "none" driver returns a nil Store.
func Open(cfg config.Storage) (Store, error) {
	switch cfg.Driver {
	case "", "none":
		return nil, nil
	case "sqlite":
		s, err := OpenSQLite(cfg.Path, cfg.CompressionLevel)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "badger":
		s, err := OpenBadger(cfg.Path, cfg.CompressionLevel)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
}

func validateRecord(rec *Record) error {
	if rec == nil || rec.Result == nil {
		return fmt.Errorf("record and result are required")
	}
	if rec.ID == "" {
		return fmt.Errorf("record id is required")
	}
	return nil
}
