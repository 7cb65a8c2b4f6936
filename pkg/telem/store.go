// Package telem keeps a short history of extracted signal quality samples
// per monitored (transport, slot), in RAM ring buffers with an optional
// bbolt snapshot so a restarted service can seed trend analysis.
package telem

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/telcoware/qns/pkg"
)

const samplesBucket = "quality_samples"

// Sample is one extracted quality reading.
type Sample struct {
	Timestamp     time.Time         `json:"timestamp"`
	AccessNetwork pkg.AccessNetwork `json:"access_network"`
	Measurement   pkg.Measurement   `json:"measurement"`
	Value         int               `json:"value"`
}

// key identifies one ring buffer.
type key struct {
	Transport pkg.Transport `json:"transport"`
	Slot      int           `json:"slot"`
}

// Store manages quality sample history.
type Store struct {
	mu sync.RWMutex

	retention  time.Duration
	maxSamples int

	buffers map[key]*ring

	db     *bolt.DB
	dbPath string
}

// ring is a fixed-capacity sample buffer.
type ring struct {
	data []Sample
	head int
	size int
}

func newRing(capacity int) *ring {
	return &ring{data: make([]Sample, capacity)}
}

func (r *ring) add(s Sample) {
	r.data[r.head] = s
	r.head = (r.head + 1) % len(r.data)
	if r.size < len(r.data) {
		r.size++
	}
}

// all returns samples oldest-first.
func (r *ring) all() []Sample {
	out := make([]Sample, 0, r.size)
	start := r.head - r.size
	if start < 0 {
		start += len(r.data)
	}
	for i := 0; i < r.size; i++ {
		out = append(out, r.data[(start+i)%len(r.data)])
	}
	return out
}

// NewStore creates a store keeping at most maxSamples per (transport, slot)
// within the retention window.
func NewStore(retention time.Duration, maxSamples int) (*Store, error) {
	if retention <= 0 {
		return nil, fmt.Errorf("retention must be positive")
	}
	if maxSamples < 1 || maxSamples > 100000 {
		return nil, fmt.Errorf("max_samples must be between 1 and 100000")
	}
	return &Store{
		retention:  retention,
		maxSamples: maxSamples,
		buffers:    make(map[key]*ring),
	}, nil
}

// WithPersistence attaches a bbolt file. Existing samples within the
// retention window are loaded; Close writes the current buffers back.
func (s *Store) WithPersistence(path string) error {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return fmt.Errorf("failed to open telemetry database: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(samplesBucket))
		return err
	}); err != nil {
		db.Close()
		return fmt.Errorf("failed to initialize telemetry bucket: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.db = db
	s.dbPath = path
	return s.loadLocked()
}

type persistedBuffer struct {
	Key     key      `json:"key"`
	Samples []Sample `json:"samples"`
}

func (s *Store) loadLocked() error {
	cutoff := time.Now().Add(-s.retention)
	return s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(samplesBucket))
		if b == nil {
			return nil
		}
		return b.ForEach(func(_, v []byte) error {
			var pb persistedBuffer
			if err := json.Unmarshal(v, &pb); err != nil {
				// Corrupt entries are regenerated on the next flush.
				return nil
			}
			r := newRing(s.maxSamples)
			for _, sample := range pb.Samples {
				if sample.Timestamp.After(cutoff) {
					r.add(sample)
				}
			}
			if r.size > 0 {
				s.buffers[pb.Key] = r
			}
			return nil
		})
	})
}

// Add records one sample for (transport, slot). Unavailable readings are
// not recorded.
func (s *Store) Add(transport pkg.Transport, slot int, sample Sample) {
	if sample.Value == pkg.SignalUnavailable {
		return
	}
	if sample.Timestamp.IsZero() {
		sample.Timestamp = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	k := key{Transport: transport, Slot: slot}
	r, ok := s.buffers[k]
	if !ok {
		r = newRing(s.maxSamples)
		s.buffers[k] = r
	}
	r.add(sample)
}

// Since returns the samples for (transport, slot) newer than the window,
// oldest first, optionally filtered to one measurement
// (pkg.MeasurementUnknown selects all).
func (s *Store) Since(transport pkg.Transport, slot int, window time.Duration, m pkg.Measurement) []Sample {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.buffers[key{Transport: transport, Slot: slot}]
	if !ok {
		return nil
	}
	cutoff := time.Now().Add(-window)
	var out []Sample
	for _, sample := range r.all() {
		if sample.Timestamp.Before(cutoff) {
			continue
		}
		if m != pkg.MeasurementUnknown && sample.Measurement != m {
			continue
		}
		out = append(out, sample)
	}
	return out
}

// Flush writes all buffers to the attached database. No-op without
// persistence.
func (s *Store) Flush() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.flushLocked()
}

func (s *Store) flushLocked() error {
	if s.db == nil {
		return nil
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(samplesBucket))
		if err != nil {
			return err
		}
		for k, r := range s.buffers {
			pb := persistedBuffer{Key: k, Samples: r.all()}
			data, err := json.Marshal(&pb)
			if err != nil {
				return err
			}
			id := fmt.Sprintf("%s/%d", k.Transport, k.Slot)
			if err := b.Put([]byte(id), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// Close flushes and releases the database. Safe to call more than once.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.flushLocked()
	if cerr := s.db.Close(); err == nil {
		err = cerr
	}
	s.db = nil
	return err
}
