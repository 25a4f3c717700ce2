package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"ReviewPulse/internal/batch"
	"ReviewPulse/internal/classify"
	"ReviewPulse/internal/dedup"
	"ReviewPulse/internal/domain"
	"ReviewPulse/internal/ports"
	"ReviewPulse/internal/validate"
)

// PipelineDeps wires all collaborators into the orchestration pipeline.
type PipelineDeps struct {
	Source       ports.ReviewSource
	Validator    *validate.Validator
	Deduplicator *dedup.Deduplicator
	Planner      *batch.Planner
	Classifier   *classify.Client
	Weeks        ports.WeekStore
	Logger       *slog.Logger
}

// Pipeline implements the review ingestion and classification workflow.
type Pipeline struct {
	source       ports.ReviewSource
	validator    *validate.Validator
	deduplicator *dedup.Deduplicator
	planner      *batch.Planner
	classifier   *classify.Client
	weeks        ports.WeekStore
	logger       *slog.Logger
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	return &Pipeline{
		source:       deps.Source,
		validator:    deps.Validator,
		deduplicator: deps.Deduplicator,
		planner:      deps.Planner,
		classifier:   deps.Classifier,
		weeks:        deps.Weeks,
		logger:       deps.Logger,
	}
}

// WeekImport summarizes one week of an import run.
type WeekImport struct {
	Week     domain.WeekKey
	Accepted int
	Stored   int
	Skipped  bool
}

// ImportResult is the audit record of one ingestion run.
type ImportResult struct {
	Fetched    int
	Rejected   map[domain.RejectReason]int
	Duplicates int
	Weeks      []WeekImport
}

// ImportReviews runs raw records through validation and duplicate
// suppression, then persists survivors grouped by calendar week. Weeks whose
// review document already exists are left untouched; their counts show up as
// skipped in the result.
func (p *Pipeline) ImportReviews(ctx context.Context, raw []domain.RawReview) (ImportResult, error) {
	result := ImportResult{
		Fetched:  len(raw),
		Rejected: map[domain.RejectReason]int{},
	}

	if p.deduplicator != nil {
		if err := p.deduplicator.Load(ctx); err != nil {
			return result, fmt.Errorf("load duplicate history: %w", err)
		}
	}

	byWeek := map[domain.WeekKey][]domain.Review{}
	for _, record := range raw {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		review, decision := p.validator.Validate(record)
		if !decision.Accepted {
			result.Rejected[decision.Reason]++
			continue
		}

		if p.deduplicator != nil {
			if dup, survivor := p.deduplicator.IsDuplicate(review); dup {
				p.debug("duplicate suppressed", "review_id", review.ReviewID, "survivor", survivor)
				result.Duplicates++
				continue
			}
			if err := p.deduplicator.Register(ctx, review); err != nil {
				return result, fmt.Errorf("register fingerprint %s: %w", review.ReviewID, err)
			}
		}

		week := review.WeekKey()
		byWeek[week] = append(byWeek[week], review)
	}

	weeks := make([]domain.WeekKey, 0, len(byWeek))
	for week := range byWeek {
		weeks = append(weeks, week)
	}
	sort.Slice(weeks, func(i, j int) bool { return weeks[i] < weeks[j] })

	for _, week := range weeks {
		reviews := byWeek[week]
		sort.Slice(reviews, func(i, j int) bool {
			if reviews[i].Date.Equal(reviews[j].Date) {
				return reviews[i].ReviewID < reviews[j].ReviewID
			}
			return reviews[i].Date.Before(reviews[j].Date)
		})

		before, err := p.weeks.Status(ctx, week)
		if err != nil {
			return result, fmt.Errorf("week %s status: %w", week, err)
		}

		bucket, err := p.weeks.SaveReviews(ctx, week, reviews, false)
		if err != nil {
			return result, fmt.Errorf("store week %s: %w", week, err)
		}

		entry := WeekImport{
			Week:     week,
			Accepted: len(reviews),
			Stored:   bucket.ReviewCount,
			Skipped:  before != domain.BucketEmpty,
		}
		if entry.Skipped {
			p.info("week already stored, import skipped", "week", week, "accepted", entry.Accepted)
		} else {
			p.info("week stored", "week", week, "reviews", entry.Stored)
		}
		result.Weeks = append(result.Weeks, entry)
	}

	return result, nil
}

// ClassifyWeek assigns themes to a stored week. Already classified weeks are
// a no-op unless forced; a week with no stored reviews is an error. When the
// classifier is unreachable for the whole run the week keeps its reviews and
// stays eligible for the next attempt.
func (p *Pipeline) ClassifyWeek(ctx context.Context, week domain.WeekKey, force bool) (domain.WeekBucket, error) {
	status, err := p.weeks.Status(ctx, week)
	if err != nil {
		return domain.WeekBucket{}, fmt.Errorf("week %s status: %w", week, err)
	}
	switch status {
	case domain.BucketEmpty:
		return domain.WeekBucket{}, fmt.Errorf("week %s has no stored reviews", week)
	case domain.BucketThemesStored:
		if !force {
			p.info("week already classified", "week", week)
			return p.weeks.LoadBucket(ctx, week)
		}
	}

	reviews, err := p.weeks.LoadReviews(ctx, week)
	if err != nil {
		return domain.WeekBucket{}, fmt.Errorf("load week %s: %w", week, err)
	}

	plan := p.planner.Plan(reviews)
	p.info("classifying week", "week", week, "reviews", len(reviews), "batches", plan.Len())

	assignments, err := p.classifier.ClassifyBatches(ctx, plan.From(0))
	if err != nil {
		return domain.WeekBucket{}, fmt.Errorf("classify week %s: %w", week, err)
	}

	// Union in stored review order so the document is deterministic no
	// matter which batch finished first.
	ordered := make([]domain.ThemeAssignment, 0, len(reviews))
	for _, review := range reviews {
		assignment, ok := assignments[review.ReviewID]
		if !ok {
			assignment = domain.ThemeAssignment{
				ReviewID: review.ReviewID,
				Theme:    domain.FallbackTheme,
				Source:   domain.SourceFallback,
				Reason:   "review missing from classification run",
			}
		}
		ordered = append(ordered, assignment)
	}

	bucket, err := p.weeks.SaveThemes(ctx, week, ordered, force)
	if err != nil {
		return domain.WeekBucket{}, fmt.Errorf("store themes %s: %w", week, err)
	}
	p.info("week classified", "week", week, "themes", len(bucket.ThemeCounts))
	return bucket, nil
}

// ProcessWindow runs the full workflow for a time window: fetch, import,
// then classify every week the import touched. Weeks are independent; one
// failed week does not stop the others, but an unreachable classifier aborts
// the run since every remaining week would fail the same way.
func (p *Pipeline) ProcessWindow(ctx context.Context, from, to time.Time) (ImportResult, error) {
	if p.source == nil {
		return ImportResult{}, fmt.Errorf("no review source configured")
	}

	raw, err := p.source.FetchWindow(ctx, from, to)
	if err != nil {
		return ImportResult{}, fmt.Errorf("fetch window: %w", err)
	}
	p.info("window fetched", "reviews", len(raw),
		"from", from.Format("2006-01-02"), "to", to.Format("2006-01-02"))

	result, err := p.ImportReviews(ctx, raw)
	if err != nil {
		return result, err
	}

	var failed []domain.WeekKey
	for _, entry := range result.Weeks {
		if _, err := p.ClassifyWeek(ctx, entry.Week, false); err != nil {
			if errors.Is(err, ports.ErrUnreachable) || ctx.Err() != nil {
				return result, err
			}
			p.error("week classification failed", "week", entry.Week, "error", err)
			failed = append(failed, entry.Week)
		}
	}
	if len(failed) > 0 {
		return result, fmt.Errorf("classification failed for %d week(s): %v", len(failed), failed)
	}
	return result, nil
}

func (p *Pipeline) debug(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Debug(msg, args...)
	}
}

func (p *Pipeline) info(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Info(msg, args...)
	}
}

func (p *Pipeline) error(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Error(msg, args...)
	}
}
