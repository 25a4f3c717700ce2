package classify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"ReviewPulse/internal/batch"
	"ReviewPulse/internal/domain"
	"ReviewPulse/internal/ports"
)

// Config tunes retries, pacing and concurrency, injected at construction.
type Config struct {
	MaxAttempts       int
	BackoffBase       float64
	RateLimitCooldown time.Duration
	Workers           int
	RequestsPerSecond float64
	Burst             int
}

// DefaultConfig mirrors the production tuning.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:       5,
		BackoffBase:       2.0,
		RateLimitCooldown: 15 * time.Second,
		Workers:           4,
		RequestsPerSecond: 1,
		Burst:             2,
	}
}

// Deps wires the client's collaborators.
type Deps struct {
	Completer ports.ThemeCompleter
	Sleeper   Sleeper
	Logger    *slog.Logger
}

// Client runs batches against the external classifier with bounded
// concurrency, shared rate pacing and per-batch retry. Every submitted review
// always receives exactly one assignment; classifier trouble degrades to
// fallback themes rather than failing the batch.
type Client struct {
	completer ports.ThemeCompleter
	sleeper   Sleeper
	limiter   *rate.Limiter
	cfg       Config
	logger    *slog.Logger
}

// New builds a classification client. The rate limiter is owned by the client
// so every call it makes, across weeks, shares one pacing budget.
func New(deps Deps, cfg Config) *Client {
	defaults := DefaultConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaults.MaxAttempts
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = defaults.BackoffBase
	}
	if cfg.RateLimitCooldown <= 0 {
		cfg.RateLimitCooldown = defaults.RateLimitCooldown
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaults.Workers
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = defaults.RequestsPerSecond
	}
	if cfg.Burst <= 0 {
		cfg.Burst = defaults.Burst
	}

	sleeper := deps.Sleeper
	if sleeper == nil {
		sleeper = clockSleeper{}
	}

	return &Client{
		completer: deps.Completer,
		sleeper:   sleeper,
		limiter:   rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		cfg:       cfg,
		logger:    deps.Logger,
	}
}

// ClassifyBatches dispatches the batches over a bounded worker pool and
// merges the results into one mapping keyed by review ID. Batches may finish
// in any order; the merged map is independent of completion order because
// batches are disjoint.
func (c *Client) ClassifyBatches(ctx context.Context, batches []batch.Batch) (map[string]domain.ThemeAssignment, error) {
	if len(batches) == 0 {
		return map[string]domain.ThemeAssignment{}, nil
	}

	var (
		mu      sync.Mutex
		merged  = make(map[string]domain.ThemeAssignment)
		reached bool
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Workers)

	for _, b := range batches {
		b := b
		g.Go(func() error {
			assignments, batchReached, err := c.classifyBatch(ctx, b)
			if err != nil {
				return err
			}
			mu.Lock()
			for id, assignment := range assignments {
				merged[id] = assignment
			}
			reached = reached || batchReached
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	// A run where no batch ever reached the classifier stays resumable for
	// the caller rather than being filled with fallback data.
	if !reached {
		return nil, fmt.Errorf("no batch reached the classifier: %w", ports.ErrUnreachable)
	}
	return merged, nil
}

// classifyBatch walks one batch through the retry machine. The error return
// is reserved for context cancellation; classifier failures terminate in
// fallback assignments instead.
func (c *Client) classifyBatch(ctx context.Context, b batch.Batch) (map[string]domain.ThemeAssignment, bool, error) {
	reached := false
	state := statePending

	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, reached, err
		}

		state = stateSent
		labels, err := c.completer.CompleteThemes(ctx, b.Reviews)
		outcome := outcomeOf(err)
		state = advance(state, outcome, attempt, c.cfg.MaxAttempts)

		if state == stateSuccess {
			return c.validateLabels(b, labels), true, nil
		}
		if !errors.Is(err, ports.ErrUnreachable) {
			reached = true
		}
		if ctx.Err() != nil {
			return nil, reached, ctx.Err()
		}

		if state == stateRetry {
			delay := retryDelay(c.cfg, attempt, outcome)
			c.warn("classification attempt failed",
				"batch", b.Index, "attempt", attempt, "delay", delay.String(), "error", err)
			if sleepErr := c.sleeper.Sleep(ctx, delay); sleepErr != nil {
				return nil, reached, sleepErr
			}
			continue
		}

		c.warn("classification retries exhausted, assigning fallback theme",
			"batch", b.Index, "reviews", len(b.Reviews), "error", err)
		break
	}

	return fallbackAssignments(b), reached, nil
}

// validateLabels maps the external response onto the fixed theme set. Missing
// reviews and unknown themes are corrected to the fallback theme without
// failing the batch.
func (c *Client) validateLabels(b batch.Batch, labels []ports.ThemeLabel) map[string]domain.ThemeAssignment {
	byID := make(map[string]ports.ThemeLabel, len(labels))
	for _, label := range labels {
		byID[label.ReviewID] = label
	}

	assignments := make(map[string]domain.ThemeAssignment, len(b.Reviews))
	for _, review := range b.Reviews {
		label, ok := byID[review.ReviewID]
		if !ok {
			c.warn("classifier response missing review", "batch", b.Index, "review_id", review.ReviewID)
			assignments[review.ReviewID] = domain.ThemeAssignment{
				ReviewID: review.ReviewID,
				Theme:    domain.FallbackTheme,
				Source:   domain.SourceFallback,
				Reason:   "classifier response did not include this review",
			}
			continue
		}

		theme := domain.Theme(label.Theme)
		if !theme.Valid() {
			c.warn("classifier returned unknown theme", "batch", b.Index, "review_id", review.ReviewID, "theme", label.Theme)
			assignments[review.ReviewID] = domain.ThemeAssignment{
				ReviewID: review.ReviewID,
				Theme:    domain.FallbackTheme,
				Source:   domain.SourceFallback,
				Reason:   fmt.Sprintf("unknown theme %q corrected to fallback", label.Theme),
			}
			continue
		}

		assignments[review.ReviewID] = domain.ThemeAssignment{
			ReviewID: review.ReviewID,
			Theme:    theme,
			Source:   domain.SourceClassifier,
			Reason:   label.Reason,
		}
	}
	return assignments
}

func fallbackAssignments(b batch.Batch) map[string]domain.ThemeAssignment {
	assignments := make(map[string]domain.ThemeAssignment, len(b.Reviews))
	for _, review := range b.Reviews {
		assignments[review.ReviewID] = domain.ThemeAssignment{
			ReviewID: review.ReviewID,
			Theme:    domain.FallbackTheme,
			Source:   domain.SourceFallback,
			Reason:   "classification could not be completed",
		}
	}
	return assignments
}

func (c *Client) warn(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}
