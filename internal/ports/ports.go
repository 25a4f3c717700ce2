package ports

import (
	"context"
	"errors"
	"time"

	"ReviewPulse/internal/domain"
)

// ReviewSource pulls raw review records from the scraping collaborators.
// Records arrive unsorted and may repeat across calls.
type ReviewSource interface {
	FetchWindow(ctx context.Context, from, to time.Time) ([]domain.RawReview, error)
}

// ThemeLabel is one entry of a classifier response, unvalidated: the theme is
// an external string until the classification client checks it against the
// fixed theme set.
type ThemeLabel struct {
	ReviewID string `json:"review_id"`
	Theme    string `json:"chosen_theme"`
	Reason   string `json:"short_reason"`
}

// ErrRateLimited marks a classifier failure caused by quota exhaustion; the
// caller applies the rate-limit cool-down before retrying.
var ErrRateLimited = errors.New("classifier rate limited")

// ErrUnreachable marks a transport-level failure where the classifier never
// saw the request at all.
var ErrUnreachable = errors.New("classifier unreachable")

// ThemeCompleter sends one batch of reviews to the external classifier.
// Responses may be partial or carry unknown themes; errors are wrapped with
// ErrRateLimited or ErrUnreachable where that can be determined.
type ThemeCompleter interface {
	CompleteThemes(ctx context.Context, reviews []domain.Review) ([]ThemeLabel, error)
}

// FingerprintStore persists duplicate fingerprints across ingestion runs.
type FingerprintStore interface {
	Load(ctx context.Context) ([]domain.Fingerprint, error)
	Add(ctx context.Context, fp domain.Fingerprint) error
}

// WeekStore persists review and theme documents keyed by ISO week, with
// idempotent already-processed detection. Save operations return the stored
// bucket and are no-ops when the stage already completed, unless forced.
type WeekStore interface {
	Status(ctx context.Context, week domain.WeekKey) (domain.BucketStatus, error)
	LoadBucket(ctx context.Context, week domain.WeekKey) (domain.WeekBucket, error)
	SaveReviews(ctx context.Context, week domain.WeekKey, reviews []domain.Review, force bool) (domain.WeekBucket, error)
	LoadReviews(ctx context.Context, week domain.WeekKey) ([]domain.Review, error)
	SaveThemes(ctx context.Context, week domain.WeekKey, assignments []domain.ThemeAssignment, force bool) (domain.WeekBucket, error)
	LoadThemes(ctx context.Context, week domain.WeekKey) ([]domain.ThemeAssignment, error)
	Weeks(ctx context.Context) ([]domain.WeekKey, error)
}

// Scheduler controls when pipeline runs execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
