package dedup

import (
	"context"
	"fmt"
	"log/slog"

	"ReviewPulse/internal/domain"
	"ReviewPulse/internal/ports"
)

// Config carries similarity tuning, injected at construction.
type Config struct {
	// Threshold is the Jaccard similarity at which two reviews are the same.
	Threshold float64
	// ShingleSize is the word count per shingle.
	ShingleSize int
	// WindowWeeks bounds candidate lookup to fingerprints within this many
	// weeks of the incoming review, keeping cost linear in new volume.
	WindowWeeks int
}

// DefaultConfig mirrors the production tuning.
func DefaultConfig() Config {
	return Config{Threshold: 0.85, ShingleSize: 3, WindowWeeks: 1}
}

// Deduplicator suppresses near-duplicate reviews within a run and across runs
// through a persistent fingerprint store. The first registered review of a
// duplicate cluster survives; later arrivals are dropped regardless of platform.
type Deduplicator struct {
	store  ports.FingerprintStore
	cfg    Config
	logger *slog.Logger

	byWeek map[domain.WeekKey][]domain.Fingerprint
	known  map[string]struct{}
	loaded bool
}

// New builds a deduplicator over the given fingerprint store.
func New(store ports.FingerprintStore, cfg Config, logger *slog.Logger) *Deduplicator {
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultConfig().Threshold
	}
	if cfg.ShingleSize <= 0 {
		cfg.ShingleSize = DefaultConfig().ShingleSize
	}
	if cfg.WindowWeeks < 0 {
		cfg.WindowWeeks = DefaultConfig().WindowWeeks
	}
	return &Deduplicator{
		store:  store,
		cfg:    cfg,
		logger: logger,
		byWeek: map[domain.WeekKey][]domain.Fingerprint{},
		known:  map[string]struct{}{},
	}
}

// Load pulls previously registered fingerprints from the store so reviews
// re-fetched in a later run are recognized. Safe to call more than once.
func (d *Deduplicator) Load(ctx context.Context) error {
	if d.loaded {
		return nil
	}

	if d.store != nil {
		fingerprints, err := d.store.Load(ctx)
		if err != nil {
			return fmt.Errorf("load fingerprints: %w", err)
		}
		for _, fp := range fingerprints {
			d.index(fp)
		}
		if d.logger != nil {
			d.logger.Debug("fingerprint cache loaded", "count", len(fingerprints))
		}
	}

	d.loaded = true
	return nil
}

// IsDuplicate reports whether the review matches an already registered
// fingerprint in the same or adjacent weeks, returning the surviving review's
// ID on a match.
func (d *Deduplicator) IsDuplicate(review domain.Review) (bool, string) {
	if _, ok := d.known[review.ReviewID]; ok {
		return true, review.ReviewID
	}

	signature := Signature(review.Text, d.cfg.ShingleSize)
	if len(signature) == 0 {
		return false, ""
	}

	week := review.WeekKey()
	for offset := -d.cfg.WindowWeeks; offset <= d.cfg.WindowWeeks; offset++ {
		for _, candidate := range d.byWeek[week.Add(offset)] {
			if Jaccard(signature, candidate.Shingles) >= d.cfg.Threshold {
				return true, candidate.ReviewID
			}
		}
	}
	return false, ""
}

// Register adds the accepted review's fingerprint to the in-memory index and
// the persistent store.
func (d *Deduplicator) Register(ctx context.Context, review domain.Review) error {
	fp := domain.Fingerprint{
		ReviewID: review.ReviewID,
		WeekKey:  review.WeekKey(),
		Shingles: Signature(review.Text, d.cfg.ShingleSize),
	}
	d.index(fp)

	if d.store == nil {
		return nil
	}
	if err := d.store.Add(ctx, fp); err != nil {
		return fmt.Errorf("persist fingerprint %s: %w", review.ReviewID, err)
	}
	return nil
}

func (d *Deduplicator) index(fp domain.Fingerprint) {
	if _, ok := d.known[fp.ReviewID]; ok {
		return
	}
	d.known[fp.ReviewID] = struct{}{}
	d.byWeek[fp.WeekKey] = append(d.byWeek[fp.WeekKey], fp)
}
