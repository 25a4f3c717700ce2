package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"ReviewPulse/internal/domain"
	"ReviewPulse/internal/ports"
)

// FileFingerprintStore keeps duplicate fingerprints in a single JSON file,
// written through on every Add. It is the default backend when no database
// is configured.
type FileFingerprintStore struct {
	path           string
	retentionWeeks int
	mu             sync.Mutex
	records        []domain.Fingerprint
	loaded         bool
}

var _ ports.FingerprintStore = (*FileFingerprintStore)(nil)

type fingerprintRecord struct {
	ReviewID string   `json:"review_id"`
	Week     string   `json:"week"`
	Shingles []uint64 `json:"shingles"`
}

type fingerprintDoc struct {
	Fingerprints []fingerprintRecord `json:"fingerprints"`
}

// NewFileFingerprintStore wires the store. retentionWeeks bounds how far back
// fingerprints are kept; entries older than the newest week minus the
// retention window are evicted on load.
func NewFileFingerprintStore(path string, retentionWeeks int) *FileFingerprintStore {
	return &FileFingerprintStore{path: path, retentionWeeks: retentionWeeks}
}

// Load reads the file, applying retention eviction. A missing file is an
// empty store, not an error.
func (s *FileFingerprintStore) Load(ctx context.Context) ([]domain.Fingerprint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(); err != nil {
		return nil, err
	}
	out := make([]domain.Fingerprint, len(s.records))
	copy(out, s.records)
	return out, nil
}

func (s *FileFingerprintStore) loadLocked() error {
	if s.loaded {
		return nil
	}

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.loaded = true
		return nil
	}
	if err != nil {
		return fmt.Errorf("read fingerprint cache: %w", err)
	}

	var doc fingerprintDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("decode fingerprint cache: %w", err)
	}

	records := make([]domain.Fingerprint, 0, len(doc.Fingerprints))
	for _, r := range doc.Fingerprints {
		records = append(records, domain.Fingerprint{
			ReviewID: r.ReviewID,
			WeekKey:  domain.WeekKey(r.Week),
			Shingles: r.Shingles,
		})
	}
	s.records = evictStale(records, s.retentionWeeks)
	s.loaded = true
	return nil
}

// Add appends the fingerprint and rewrites the file.
func (s *FileFingerprintStore) Add(ctx context.Context, fp domain.Fingerprint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(); err != nil {
		return err
	}
	s.records = append(s.records, fp)
	return s.flushLocked()
}

func (s *FileFingerprintStore) flushLocked() error {
	doc := fingerprintDoc{Fingerprints: make([]fingerprintRecord, 0, len(s.records))}
	for _, fp := range s.records {
		doc.Fingerprints = append(doc.Fingerprints, fingerprintRecord{
			ReviewID: fp.ReviewID,
			Week:     string(fp.WeekKey),
			Shingles: fp.Shingles,
		})
	}
	if err := writeJSONAtomic(s.path, doc); err != nil {
		return fmt.Errorf("write fingerprint cache: %w", err)
	}
	return nil
}

// evictStale drops fingerprints older than the newest stored week minus the
// retention window. Anchoring on the newest stored week rather than the wall
// clock keeps replays of historical exports from evicting everything.
func evictStale(records []domain.Fingerprint, retentionWeeks int) []domain.Fingerprint {
	if retentionWeeks <= 0 || len(records) == 0 {
		return records
	}

	var newest domain.WeekKey
	for _, fp := range records {
		if fp.WeekKey > newest {
			newest = fp.WeekKey
		}
	}
	cutoff := newest.Add(-retentionWeeks)

	kept := records[:0]
	for _, fp := range records {
		if fp.WeekKey >= cutoff {
			kept = append(kept, fp)
		}
	}
	return kept
}
