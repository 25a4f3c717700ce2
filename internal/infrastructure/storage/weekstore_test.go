package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"ReviewPulse/internal/domain"
)

func testReviews(ids ...string) []domain.Review {
	date := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	reviews := make([]domain.Review, 0, len(ids))
	for _, id := range ids {
		reviews = append(reviews, domain.Review{
			ReviewID: id,
			Text:     "stored text for " + id,
			RawText:  "raw text for " + id,
			Date:     date,
			Platform: domain.PlatformAppStore,
			Rating:   4,
		})
	}
	return reviews
}

func testAssignments(ids ...string) []domain.ThemeAssignment {
	assignments := make([]domain.ThemeAssignment, 0, len(ids))
	for _, id := range ids {
		assignments = append(assignments, domain.ThemeAssignment{
			ReviewID: id,
			Theme:    domain.ThemeBugReports,
			Source:   domain.SourceClassifier,
			Reason:   "crash report",
		})
	}
	return assignments
}

func TestWeekStoreStatusProgression(t *testing.T) {
	t.Parallel()

	store, err := NewFileWeekStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileWeekStore: %v", err)
	}
	ctx := context.Background()
	week := domain.WeekKey("2026-03-02")

	status, err := store.Status(ctx, week)
	if err != nil || status != domain.BucketEmpty {
		t.Fatalf("fresh week status = %v, %v", status, err)
	}

	if _, err := store.SaveReviews(ctx, week, testReviews("r-1", "r-2"), false); err != nil {
		t.Fatalf("SaveReviews: %v", err)
	}
	status, err = store.Status(ctx, week)
	if err != nil || status != domain.BucketReviewsStored {
		t.Fatalf("after reviews status = %v, %v", status, err)
	}

	if _, err := store.SaveThemes(ctx, week, testAssignments("r-1", "r-2"), false); err != nil {
		t.Fatalf("SaveThemes: %v", err)
	}
	status, err = store.Status(ctx, week)
	if err != nil || status != domain.BucketThemesStored {
		t.Fatalf("after themes status = %v, %v", status, err)
	}
}

func TestWeekStoreSaveReviewsIdempotent(t *testing.T) {
	t.Parallel()

	store, err := NewFileWeekStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileWeekStore: %v", err)
	}
	ctx := context.Background()
	week := domain.WeekKey("2026-03-02")

	first, err := store.SaveReviews(ctx, week, testReviews("r-1", "r-2", "r-3"), false)
	if err != nil {
		t.Fatalf("first SaveReviews: %v", err)
	}
	if first.ReviewCount != 3 {
		t.Fatalf("first bucket = %+v", first)
	}

	// A second run over the same export must not touch the stored document.
	second, err := store.SaveReviews(ctx, week, testReviews("r-9"), false)
	if err != nil {
		t.Fatalf("second SaveReviews: %v", err)
	}
	if second.ReviewCount != 3 || second.Status != domain.BucketReviewsStored {
		t.Fatalf("second bucket = %+v, want stored state untouched", second)
	}

	reviews, err := store.LoadReviews(ctx, week)
	if err != nil {
		t.Fatalf("LoadReviews: %v", err)
	}
	if len(reviews) != 3 || reviews[0].ReviewID != "r-1" {
		t.Fatalf("stored reviews = %+v", reviews)
	}
}

func TestWeekStoreForceRewrites(t *testing.T) {
	t.Parallel()

	store, err := NewFileWeekStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileWeekStore: %v", err)
	}
	ctx := context.Background()
	week := domain.WeekKey("2026-03-02")

	if _, err := store.SaveReviews(ctx, week, testReviews("r-1", "r-2"), false); err != nil {
		t.Fatalf("SaveReviews: %v", err)
	}
	if _, err := store.SaveThemes(ctx, week, testAssignments("r-1", "r-2"), false); err != nil {
		t.Fatalf("SaveThemes: %v", err)
	}

	// Forcing reviews drops the themes document so the pair stays consistent.
	bucket, err := store.SaveReviews(ctx, week, testReviews("r-1"), true)
	if err != nil {
		t.Fatalf("forced SaveReviews: %v", err)
	}
	if bucket.ReviewCount != 1 || bucket.Status != domain.BucketReviewsStored {
		t.Fatalf("forced bucket = %+v", bucket)
	}
	status, err := store.Status(ctx, week)
	if err != nil || status != domain.BucketReviewsStored {
		t.Fatalf("status after force = %v, %v", status, err)
	}
}

func TestWeekStoreThemesRequireReviews(t *testing.T) {
	t.Parallel()

	store, err := NewFileWeekStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileWeekStore: %v", err)
	}

	_, err = store.SaveThemes(context.Background(), "2026-03-02", testAssignments("r-1"), false)
	if !errors.Is(err, domain.ErrInconsistentBucket) {
		t.Fatalf("err = %v, want ErrInconsistentBucket", err)
	}
}

func TestWeekStoreThemeRanking(t *testing.T) {
	t.Parallel()

	store, err := NewFileWeekStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileWeekStore: %v", err)
	}
	ctx := context.Background()
	week := domain.WeekKey("2026-03-02")

	if _, err := store.SaveReviews(ctx, week, testReviews("r-1", "r-2", "r-3", "r-4"), false); err != nil {
		t.Fatalf("SaveReviews: %v", err)
	}

	assignments := []domain.ThemeAssignment{
		{ReviewID: "r-1", Theme: domain.ThemeBugReports, Source: domain.SourceClassifier},
		{ReviewID: "r-2", Theme: domain.ThemeBugReports, Source: domain.SourceClassifier},
		{ReviewID: "r-3", Theme: domain.ThemeUXIssues, Source: domain.SourceClassifier},
		{ReviewID: "r-4", Theme: domain.ThemeOther, Source: domain.SourceFallback},
	}
	bucket, err := store.SaveThemes(ctx, week, assignments, false)
	if err != nil {
		t.Fatalf("SaveThemes: %v", err)
	}
	if bucket.ThemeCounts[domain.ThemeBugReports] != 2 {
		t.Fatalf("theme counts = %+v", bucket.ThemeCounts)
	}

	loaded, err := store.LoadThemes(ctx, week)
	if err != nil {
		t.Fatalf("LoadThemes: %v", err)
	}
	if len(loaded) != 4 || loaded[0].ReviewID != "r-1" {
		t.Fatalf("loaded assignments = %+v", loaded)
	}
}

func TestWeekStoreWeeks(t *testing.T) {
	t.Parallel()

	store, err := NewFileWeekStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileWeekStore: %v", err)
	}
	ctx := context.Background()

	for _, week := range []domain.WeekKey{"2026-03-09", "2026-02-23", "2026-03-02"} {
		if _, err := store.SaveReviews(ctx, week, testReviews("r-"+string(week)), false); err != nil {
			t.Fatalf("SaveReviews %s: %v", week, err)
		}
	}

	weeks, err := store.Weeks(ctx)
	if err != nil {
		t.Fatalf("Weeks: %v", err)
	}
	want := []domain.WeekKey{"2026-02-23", "2026-03-02", "2026-03-09"}
	if len(weeks) != len(want) {
		t.Fatalf("weeks = %v", weeks)
	}
	for i := range want {
		if weeks[i] != want[i] {
			t.Fatalf("weeks = %v, want %v", weeks, want)
		}
	}
}

func TestFileFingerprintStoreRoundTrip(t *testing.T) {
	t.Parallel()

	path := t.TempDir() + "/fingerprints.json"
	ctx := context.Background()

	store := NewFileFingerprintStore(path, 26)
	fp := domain.Fingerprint{ReviewID: "r-1", WeekKey: "2026-03-02", Shingles: []uint64{3, 9, 27}}
	if err := store.Add(ctx, fp); err != nil {
		t.Fatalf("Add: %v", err)
	}

	// A fresh instance simulates the next ingestion run.
	reloaded := NewFileFingerprintStore(path, 26)
	got, err := reloaded.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 1 || got[0].ReviewID != "r-1" || got[0].WeekKey != "2026-03-02" {
		t.Fatalf("loaded = %+v", got)
	}
	if len(got[0].Shingles) != 3 || got[0].Shingles[2] != 27 {
		t.Fatalf("shingles = %v", got[0].Shingles)
	}
}

func TestFileFingerprintStoreMissingFile(t *testing.T) {
	t.Parallel()

	store := NewFileFingerprintStore(t.TempDir()+"/absent.json", 26)
	got, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("loaded = %+v, want empty", got)
	}
}

func TestFileFingerprintStoreRetention(t *testing.T) {
	t.Parallel()

	path := t.TempDir() + "/fingerprints.json"
	ctx := context.Background()

	store := NewFileFingerprintStore(path, 2)
	weeks := []domain.WeekKey{"2026-01-05", "2026-02-16", "2026-02-23", "2026-03-02"}
	for i, week := range weeks {
		fp := domain.Fingerprint{ReviewID: "r-" + string(rune('a'+i)), WeekKey: week, Shingles: []uint64{uint64(i)}}
		if err := store.Add(ctx, fp); err != nil {
			t.Fatalf("Add %s: %v", week, err)
		}
	}

	// Eviction happens when the next run loads the cache: only weeks within
	// two weeks of 2026-03-02 survive.
	reloaded := NewFileFingerprintStore(path, 2)
	got, err := reloaded.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("loaded %d fingerprints %+v, want 3", len(got), got)
	}
	for _, fp := range got {
		if fp.WeekKey < "2026-02-16" {
			t.Fatalf("stale fingerprint survived: %+v", fp)
		}
	}
}
