package results

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/GoSim-25-26J-441/readout-calibration/pkg/models"
)

// Key layout:
//
//	r/<id>          -> JSON record with the compressed IQ payload
//	j/<job>/<id>    -> empty, job index
const (
	recordPrefix = "r/"
	jobPrefix    = "j/"
)

// BadgerStore keeps records in a BadgerDB key-value store.
type BadgerStore struct {
	db    *badger.DB
	codec *Compressor
}

type badgerRecord struct {
	ID        string           `json:"id"`
	JobID     string           `json:"job_id"`
	CreatedAt int64            `json:"created_at"`
	PulseType models.PulseType `json:"pulse_type"`
	Amplitude float64          `json:"amplitude"`
	Frequency float64          `json:"frequency"`
	Beta      *float64         `json:"beta,omitempty"`
	Fidelity  float64          `json:"fidelity"`
	Payload   []byte           `json:"iq_payload,omitempty"`
}

// OpenBadger opens a store in dir. An empty dir keeps everything in memory.
func OpenBadger(dir string, compressionLevel int) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB: %w", err)
	}
	codec, err := NewCompressor(compressionLevel)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create compressor: %w", err)
	}
	return &BadgerStore{db: db, codec: codec}, nil
}

// Put stores rec and indexes it by job.
func (s *BadgerStore) Put(ctx context.Context, rec *Record) error {
	if err := validateRecord(rec); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	r := rec.Result
	data, err := json.Marshal(badgerRecord{
		ID:        rec.ID,
		JobID:     rec.JobID,
		CreatedAt: rec.CreatedAt.UnixNano(),
		PulseType: r.PulseType,
		Amplitude: r.Amplitude,
		Frequency: r.Frequency,
		Beta:      models.CopyBeta(r.Beta),
		Fidelity:  r.Fidelity,
		Payload:   s.codec.EncodeClouds(r.IQData0, r.IQData1),
	})
	if err != nil {
		return fmt.Errorf("encode result %s: %w", rec.ID, err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		key := []byte(recordPrefix + rec.ID)
		if _, err := txn.Get(key); err == nil {
			return fmt.Errorf("result %s already exists", rec.ID)
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err := txn.Set(key, data); err != nil {
			return err
		}
		if rec.JobID != "" {
			return txn.Set(jobKey(rec.JobID, rec.ID), nil)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("put result %s: %w", rec.ID, err)
	}
	return nil
}

// Get returns the record with id or ErrNotFound.
func (s *BadgerStore) Get(ctx context.Context, id string) (*Record, error) {
	var rec *Record
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		rec, err = s.load(txn, id)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return rec, err
}

// List returns records matching f in id order.
func (s *BadgerStore) List(ctx context.Context, f Filter) ([]*Record, error) {
	var out []*Record
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := []byte(recordPrefix)
		if f.JobID != "" {
			prefix = []byte(jobPrefix + f.JobID + "/")
		}
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = f.JobID == ""
		it := txn.NewIterator(opts)
		defer it.Close()

		skip := f.Offset
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			if skip > 0 {
				skip--
				continue
			}
			id := string(it.Item().Key()[len(prefix):])
			rec, err := s.load(txn, id)
			if err != nil {
				return err
			}
			out = append(out, rec)
			if f.Limit > 0 && len(out) >= f.Limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	return out, nil
}

func (s *BadgerStore) load(txn *badger.Txn, id string) (*Record, error) {
	item, err := txn.Get([]byte(recordPrefix + id))
	if err != nil {
		return nil, err
	}
	var br badgerRecord
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &br)
	}); err != nil {
		return nil, fmt.Errorf("decode result %s: %w", id, err)
	}
	c0, c1, err := s.codec.DecodeClouds(br.Payload)
	if err != nil {
		return nil, fmt.Errorf("result %s: %w", id, err)
	}
	return &Record{
		ID:        br.ID,
		JobID:     br.JobID,
		CreatedAt: time.Unix(0, br.CreatedAt).UTC(),
		Result: &models.ExperimentResult{
			PulseType: br.PulseType,
			Amplitude: br.Amplitude,
			Frequency: br.Frequency,
			Beta:      br.Beta,
			IQData0:   c0,
			IQData1:   c1,
			Fidelity:  br.Fidelity,
		},
	}, nil
}

func jobKey(jobID, id string) []byte {
	return []byte(jobPrefix + jobID + "/" + id)
}

// Close closes the database.
func (s *BadgerStore) Close() error {
	s.codec.Close()
	return s.db.Close()
}
