// Package audit keeps the field confidences reported during each receipt
// analysis in a bbolt database.
package audit

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/zombor/receipt-vision/internal/receipt"
	"go.etcd.io/bbolt"
)

const runsBucket = "analysis_runs"

// ErrNotFound is returned by Get for unknown run ids
var ErrNotFound = errors.New("audit record not found")

// Observation is one field the provider recognized
type Observation struct {
	Document   int     `json:"document"`
	DocType    string  `json:"doc_type,omitempty"`
	Item       int     `json:"item,omitempty"`
	Field      string  `json:"field"`
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
}

// Record is everything observed while mapping one upload
type Record struct {
	ID           string        `json:"id"`
	CreatedAt    time.Time     `json:"created_at"`
	Documents    int           `json:"documents"`
	Observations []Observation `json:"observations"`
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type systemTime struct{}

func (systemTime) Now() time.Time { return time.Now() }

// Store implements receipt.Recorder using BoltDB
type Store struct {
	db   *bbolt.DB
	time TimeSource
}

// NewStore opens (or creates) the audit database at path
func NewStore(path string) (*Store, error) {
	return NewStoreWithTime(path, systemTime{})
}

// NewStoreWithTime opens the audit database with a custom time source for testing
func NewStoreWithTime(path string, ts TimeSource) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(runsBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &Store{db: db, time: ts}, nil
}

// Begin starts collecting the events of the run with the given id
func (s *Store) Begin(id string) receipt.Run {
	return &run{store: s, record: Record{ID: id, CreatedAt: s.time.Now(), Observations: []Observation{}}}
}

func (s *Store) save(r Record) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshaling record: %w", err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(runsBucket)).Put([]byte(r.ID), data)
	})
}

// Get retrieves a record by run id
func (s *Store) Get(id string) (*Record, error) {
	var r *Record
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(runsBucket)).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return json.Unmarshal(data, &r)
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// List returns up to limit records, newest first, after skipping offset,
// together with the total number of records. A limit <= 0 means no limit.
func (s *Store) List(offset, limit int) ([]Record, int, error) {
	records := make([]Record, 0)
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(runsBucket)).ForEach(func(k, v []byte) error {
			var r Record
			if err := json.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("unmarshaling record: %w", err)
			}
			records = append(records, r)
			return nil
		})
	})
	if err != nil {
		return nil, 0, err
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})

	total := len(records)
	if offset < 0 {
		offset = 0
	}
	if offset > total {
		offset = total
	}
	records = records[offset:]
	if limit > 0 && limit < len(records) {
		records = records[:limit]
	}
	return records, total, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// run buffers observations until Commit
type run struct {
	mu      sync.Mutex
	store   *Store
	record  Record
	docType string
}

func (r *run) Emit(e receipt.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch e.Kind {
	case receipt.DocumentStarted:
		r.record.Documents++
		r.docType = e.DocType
	case receipt.FieldObserved:
		r.record.Observations = append(r.record.Observations, Observation{
			Document:   e.Document,
			DocType:    r.docType,
			Item:       e.Item,
			Field:      e.Field,
			Value:      e.Value,
			Confidence: e.Confidence,
		})
	}
}

func (r *run) Commit() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.store.save(r.record)
}
