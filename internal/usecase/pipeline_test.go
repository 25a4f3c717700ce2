package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"ReviewPulse/internal/batch"
	"ReviewPulse/internal/classify"
	"ReviewPulse/internal/dedup"
	"ReviewPulse/internal/domain"
	"ReviewPulse/internal/infrastructure/storage"
	"ReviewPulse/internal/normalize"
	"ReviewPulse/internal/ports"
	"ReviewPulse/internal/validate"
)

type englishDetector struct{}

func (englishDetector) EnglishConfidence(string) float64 { return 1.0 }

type memoryFingerprints struct {
	records []domain.Fingerprint
}

func (m *memoryFingerprints) Load(context.Context) ([]domain.Fingerprint, error) {
	return m.records, nil
}

func (m *memoryFingerprints) Add(_ context.Context, fp domain.Fingerprint) error {
	m.records = append(m.records, fp)
	return nil
}

type stubCompleter struct {
	theme domain.Theme
	err   error
	calls int
}

func (s *stubCompleter) CompleteThemes(_ context.Context, reviews []domain.Review) ([]ports.ThemeLabel, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	labels := make([]ports.ThemeLabel, 0, len(reviews))
	for _, r := range reviews {
		labels = append(labels, ports.ThemeLabel{ReviewID: r.ReviewID, Theme: string(s.theme), Reason: "stub"})
	}
	return labels, nil
}

type stubSource struct {
	reviews []domain.RawReview
}

func (s *stubSource) FetchWindow(context.Context, time.Time, time.Time) ([]domain.RawReview, error) {
	return s.reviews, nil
}

type noSleep struct{}

func (noSleep) Sleep(context.Context, time.Duration) error { return nil }

func newTestPipeline(t *testing.T, completer ports.ThemeCompleter, source ports.ReviewSource) (*Pipeline, ports.WeekStore) {
	t.Helper()

	weeks, err := storage.NewFileWeekStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileWeekStore: %v", err)
	}

	norm := normalize.New()
	validator := validate.New(norm, englishDetector{}, validate.DefaultConfig(), nil)
	deduplicator := dedup.New(&memoryFingerprints{}, dedup.DefaultConfig(), nil)
	classifier := classify.New(classify.Deps{Completer: completer, Sleeper: noSleep{}}, classify.Config{
		MaxAttempts:       2,
		BackoffBase:       0.001,
		RequestsPerSecond: 10_000,
		Burst:             10_000,
	})

	return NewPipeline(PipelineDeps{
		Source:       source,
		Validator:    validator,
		Deduplicator: deduplicator,
		Planner:      batch.NewPlanner(batch.DefaultConfig()),
		Classifier:   classifier,
		Weeks:        weeks,
	}), weeks
}

func rawReview(id, text string, date time.Time) domain.RawReview {
	return domain.RawReview{
		ReviewID: id,
		Text:     text,
		Date:     date,
		Platform: domain.PlatformAppStore,
	}
}

func TestImportReviewsGroupsAndAudits(t *testing.T) {
	t.Parallel()

	pipe, weeks := newTestPipeline(t, &stubCompleter{theme: domain.ThemeOther}, nil)
	ctx := context.Background()

	monday := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	raw := []domain.RawReview{
		rawReview("a-1", "The new dashboard layout is genuinely great to use.", monday),
		rawReview("a-2", "The new dashboard layout is genuinely great to use!!", monday.Add(time.Hour)),
		rawReview("a-3", "short", monday),
		rawReview("a-4", "Crashes constantly after the latest update, please fix it.", monday.AddDate(0, 0, 9)),
	}

	result, err := pipe.ImportReviews(ctx, raw)
	if err != nil {
		t.Fatalf("ImportReviews: %v", err)
	}
	if result.Fetched != 4 {
		t.Fatalf("fetched = %d", result.Fetched)
	}
	if result.Duplicates != 1 {
		t.Fatalf("duplicates = %d, want 1", result.Duplicates)
	}
	if result.Rejected[domain.RejectTooShort] != 1 {
		t.Fatalf("rejected = %+v", result.Rejected)
	}
	if len(result.Weeks) != 2 {
		t.Fatalf("weeks = %+v", result.Weeks)
	}
	if result.Weeks[0].Week != "2026-03-02" || result.Weeks[1].Week != "2026-03-09" {
		t.Fatalf("weeks = %+v", result.Weeks)
	}

	stored, err := weeks.LoadReviews(ctx, "2026-03-02")
	if err != nil {
		t.Fatalf("LoadReviews: %v", err)
	}
	if len(stored) != 1 || stored[0].ReviewID != "a-1" {
		t.Fatalf("stored = %+v, want first arrival only", stored)
	}
}

func TestImportReviewsIdempotent(t *testing.T) {
	t.Parallel()

	pipe, _ := newTestPipeline(t, &stubCompleter{theme: domain.ThemeOther}, nil)
	ctx := context.Background()

	monday := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	raw := []domain.RawReview{
		rawReview("a-1", "The new dashboard layout is genuinely great to use.", monday),
	}

	first, err := pipe.ImportReviews(ctx, raw)
	if err != nil {
		t.Fatalf("first import: %v", err)
	}
	if first.Weeks[0].Skipped {
		t.Fatalf("first import marked skipped: %+v", first.Weeks)
	}

	second, err := pipe.ImportReviews(ctx, raw)
	if err != nil {
		t.Fatalf("second import: %v", err)
	}
	// The replayed review is already registered, so it surfaces as a
	// duplicate and the week document is untouched.
	if second.Duplicates != 1 {
		t.Fatalf("second import duplicates = %d, want 1", second.Duplicates)
	}
	if len(second.Weeks) != 0 {
		t.Fatalf("second import weeks = %+v, want none touched", second.Weeks)
	}
}

func TestClassifyWeekPersistsThemes(t *testing.T) {
	t.Parallel()

	pipe, weeks := newTestPipeline(t, &stubCompleter{theme: domain.ThemeBugReports}, nil)
	ctx := context.Background()

	monday := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	raw := []domain.RawReview{
		rawReview("a-1", "Crashes constantly after the latest update, please fix.", monday),
		rawReview("a-2", "App freezes whenever I open the settings page now.", monday.Add(time.Hour)),
	}
	if _, err := pipe.ImportReviews(ctx, raw); err != nil {
		t.Fatalf("ImportReviews: %v", err)
	}

	bucket, err := pipe.ClassifyWeek(ctx, "2026-03-02", false)
	if err != nil {
		t.Fatalf("ClassifyWeek: %v", err)
	}
	if bucket.Status != domain.BucketThemesStored {
		t.Fatalf("bucket = %+v", bucket)
	}
	if bucket.ThemeCounts[domain.ThemeBugReports] != 2 {
		t.Fatalf("theme counts = %+v", bucket.ThemeCounts)
	}

	assignments, err := weeks.LoadThemes(ctx, "2026-03-02")
	if err != nil {
		t.Fatalf("LoadThemes: %v", err)
	}
	if len(assignments) != 2 || assignments[0].ReviewID != "a-1" {
		t.Fatalf("assignments = %+v, want stored review order", assignments)
	}
}

func TestClassifyWeekSkipsClassified(t *testing.T) {
	t.Parallel()

	completer := &stubCompleter{theme: domain.ThemeUXIssues}
	pipe, _ := newTestPipeline(t, completer, nil)
	ctx := context.Background()

	monday := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	raw := []domain.RawReview{
		rawReview("a-1", "Navigation is confusing since the redesign, honestly.", monday),
	}
	if _, err := pipe.ImportReviews(ctx, raw); err != nil {
		t.Fatalf("ImportReviews: %v", err)
	}
	if _, err := pipe.ClassifyWeek(ctx, "2026-03-02", false); err != nil {
		t.Fatalf("first ClassifyWeek: %v", err)
	}
	callsAfterFirst := completer.calls

	bucket, err := pipe.ClassifyWeek(ctx, "2026-03-02", false)
	if err != nil {
		t.Fatalf("second ClassifyWeek: %v", err)
	}
	if completer.calls != callsAfterFirst {
		t.Fatalf("classifier called again on an already classified week")
	}
	if bucket.Status != domain.BucketThemesStored {
		t.Fatalf("bucket = %+v", bucket)
	}
}

func TestClassifyWeekUnreachableKeepsReviews(t *testing.T) {
	t.Parallel()

	completer := &stubCompleter{err: fmt.Errorf("connection refused: %w", ports.ErrUnreachable)}
	pipe, weeks := newTestPipeline(t, completer, nil)
	ctx := context.Background()

	monday := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	raw := []domain.RawReview{
		rawReview("a-1", "Crashes constantly after the latest update, please fix.", monday),
	}
	if _, err := pipe.ImportReviews(ctx, raw); err != nil {
		t.Fatalf("ImportReviews: %v", err)
	}

	_, err := pipe.ClassifyWeek(ctx, "2026-03-02", false)
	if !errors.Is(err, ports.ErrUnreachable) {
		t.Fatalf("err = %v, want ErrUnreachable", err)
	}

	status, err := weeks.Status(ctx, "2026-03-02")
	if err != nil || status != domain.BucketReviewsStored {
		t.Fatalf("status = %v, %v, want reviews kept", status, err)
	}
}

func TestProcessWindowEndToEnd(t *testing.T) {
	t.Parallel()

	monday := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	source := &stubSource{reviews: []domain.RawReview{
		rawReview("a-1", "Crashes constantly after the latest update, please fix.", monday),
		rawReview("a-2", "Please add an offline mode for the commute, thanks.", monday.AddDate(0, 0, 9)),
	}}
	pipe, weeks := newTestPipeline(t, &stubCompleter{theme: domain.ThemeBugReports}, source)
	ctx := context.Background()

	result, err := pipe.ProcessWindow(ctx, monday.AddDate(0, 0, -1), monday.AddDate(0, 0, 14))
	if err != nil {
		t.Fatalf("ProcessWindow: %v", err)
	}
	if len(result.Weeks) != 2 {
		t.Fatalf("weeks = %+v", result.Weeks)
	}

	for _, week := range []domain.WeekKey{"2026-03-02", "2026-03-09"} {
		status, err := weeks.Status(ctx, week)
		if err != nil || status != domain.BucketThemesStored {
			t.Fatalf("week %s status = %v, %v", week, status, err)
		}
	}
}
