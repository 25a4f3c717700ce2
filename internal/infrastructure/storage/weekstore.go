package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"ReviewPulse/internal/domain"
	"ReviewPulse/internal/ports"
)

// FileWeekStore keeps one pair of JSON documents per calendar week in a flat
// directory: reviews_<week>.json and themes_<week>.json. Bucket status is
// derived from which files exist, never tracked separately, so the store
// cannot drift from the data on disk.
type FileWeekStore struct {
	dir string
	mu  sync.Mutex
}

var _ ports.WeekStore = (*FileWeekStore)(nil)

// NewFileWeekStore creates the data directory if needed.
func NewFileWeekStore(dir string) (*FileWeekStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &FileWeekStore{dir: dir}, nil
}

type reviewRecord struct {
	ReviewID   string          `json:"review_id"`
	Title      string          `json:"title,omitempty"`
	Text       string          `json:"text"`
	RawText    string          `json:"raw_text,omitempty"`
	Date       time.Time       `json:"date"`
	Platform   domain.Platform `json:"platform"`
	Rating     int             `json:"rating,omitempty"`
	AppVersion string          `json:"app_version,omitempty"`
}

type reviewsDoc struct {
	Week      string         `json:"week"`
	WeekEnd   string         `json:"week_end"`
	Count     int            `json:"count"`
	StoredAt  time.Time      `json:"stored_at"`
	Reviews   []reviewRecord `json:"reviews"`
}

type themeRecord struct {
	ReviewID string                  `json:"review_id"`
	Theme    domain.Theme            `json:"theme"`
	Source   domain.AssignmentSource `json:"source"`
	Reason   string                  `json:"reason,omitempty"`
}

type themeCount struct {
	Theme domain.Theme `json:"theme"`
	Count int          `json:"count"`
}

type themesDoc struct {
	Week        string        `json:"week"`
	WeekEnd     string        `json:"week_end"`
	StoredAt    time.Time     `json:"stored_at"`
	TopThemes   []themeCount  `json:"top_themes"`
	Assignments []themeRecord `json:"assignments"`
}

func (s *FileWeekStore) reviewsPath(week domain.WeekKey) string {
	return filepath.Join(s.dir, fmt.Sprintf("reviews_%s.json", week))
}

func (s *FileWeekStore) themesPath(week domain.WeekKey) string {
	return filepath.Join(s.dir, fmt.Sprintf("themes_%s.json", week))
}

// Status derives the processing stage of a week from file presence. A themes
// document without its reviews document is a corruption the pipeline must not
// paper over, reported as ErrInconsistentBucket.
func (s *FileWeekStore) Status(ctx context.Context, week domain.WeekKey) (domain.BucketStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusLocked(week)
}

func (s *FileWeekStore) statusLocked(week domain.WeekKey) (domain.BucketStatus, error) {
	hasReviews, err := fileExists(s.reviewsPath(week))
	if err != nil {
		return domain.BucketEmpty, err
	}
	hasThemes, err := fileExists(s.themesPath(week))
	if err != nil {
		return domain.BucketEmpty, err
	}

	switch {
	case hasThemes && !hasReviews:
		return domain.BucketEmpty, fmt.Errorf("week %s has themes without reviews: %w", week, domain.ErrInconsistentBucket)
	case hasThemes:
		return domain.BucketThemesStored, nil
	case hasReviews:
		return domain.BucketReviewsStored, nil
	default:
		return domain.BucketEmpty, nil
	}
}

// LoadBucket returns the status plus the counts summarizing the stored data.
func (s *FileWeekStore) LoadBucket(ctx context.Context, week domain.WeekKey) (domain.WeekBucket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadBucketLocked(week)
}

func (s *FileWeekStore) loadBucketLocked(week domain.WeekKey) (domain.WeekBucket, error) {
	status, err := s.statusLocked(week)
	if err != nil {
		return domain.WeekBucket{}, err
	}

	bucket := domain.WeekBucket{WeekKey: week, Status: status}
	if status == domain.BucketEmpty {
		return bucket, nil
	}

	var reviews reviewsDoc
	if err := readJSON(s.reviewsPath(week), &reviews); err != nil {
		return domain.WeekBucket{}, fmt.Errorf("read reviews doc %s: %w", week, err)
	}
	bucket.ReviewCount = reviews.Count

	if status == domain.BucketThemesStored {
		var themes themesDoc
		if err := readJSON(s.themesPath(week), &themes); err != nil {
			return domain.WeekBucket{}, fmt.Errorf("read themes doc %s: %w", week, err)
		}
		bucket.ThemeCounts = make(map[domain.Theme]int, len(themes.TopThemes))
		for _, tc := range themes.TopThemes {
			bucket.ThemeCounts[tc.Theme] = tc.Count
		}
	}
	return bucket, nil
}

// SaveReviews writes the week's review document. When the week already holds
// reviews the call is a no-op returning the stored bucket, unless forced;
// forcing a week that already has themes drops the themes document too so the
// two files cannot disagree.
func (s *FileWeekStore) SaveReviews(ctx context.Context, week domain.WeekKey, reviews []domain.Review, force bool) (domain.WeekBucket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	status, err := s.statusLocked(week)
	if err != nil {
		return domain.WeekBucket{}, err
	}
	if status != domain.BucketEmpty && !force {
		return s.loadBucketLocked(week)
	}
	if status == domain.BucketThemesStored && force {
		if err := os.Remove(s.themesPath(week)); err != nil {
			return domain.WeekBucket{}, fmt.Errorf("drop stale themes doc %s: %w", week, err)
		}
	}

	records := make([]reviewRecord, 0, len(reviews))
	for _, r := range reviews {
		records = append(records, reviewRecord{
			ReviewID:   r.ReviewID,
			Title:      r.Title,
			Text:       r.Text,
			RawText:    r.RawText,
			Date:       r.Date,
			Platform:   r.Platform,
			Rating:     r.Rating,
			AppVersion: r.AppVersion,
		})
	}
	doc := reviewsDoc{
		Week:     string(week),
		WeekEnd:  week.End(),
		Count:    len(records),
		StoredAt: time.Now().UTC(),
		Reviews:  records,
	}
	if err := writeJSONAtomic(s.reviewsPath(week), doc); err != nil {
		return domain.WeekBucket{}, fmt.Errorf("write reviews doc %s: %w", week, err)
	}
	return domain.WeekBucket{WeekKey: week, Status: domain.BucketReviewsStored, ReviewCount: len(records)}, nil
}

// LoadReviews returns the stored reviews in their persisted order.
func (s *FileWeekStore) LoadReviews(ctx context.Context, week domain.WeekKey) ([]domain.Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var doc reviewsDoc
	if err := readJSON(s.reviewsPath(week), &doc); err != nil {
		return nil, fmt.Errorf("read reviews doc %s: %w", week, err)
	}
	reviews := make([]domain.Review, 0, len(doc.Reviews))
	for _, r := range doc.Reviews {
		reviews = append(reviews, domain.Review{
			ReviewID:   r.ReviewID,
			Title:      r.Title,
			Text:       r.Text,
			RawText:    r.RawText,
			Date:       r.Date,
			Platform:   r.Platform,
			Rating:     r.Rating,
			AppVersion: r.AppVersion,
		})
	}
	return reviews, nil
}

// SaveThemes writes the week's theme document, including the theme ranking
// used by reports. Saving themes for a week without reviews is refused.
func (s *FileWeekStore) SaveThemes(ctx context.Context, week domain.WeekKey, assignments []domain.ThemeAssignment, force bool) (domain.WeekBucket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	status, err := s.statusLocked(week)
	if err != nil {
		return domain.WeekBucket{}, err
	}
	if status == domain.BucketEmpty {
		return domain.WeekBucket{}, fmt.Errorf("week %s has no reviews to attach themes to: %w", week, domain.ErrInconsistentBucket)
	}
	if status == domain.BucketThemesStored && !force {
		return s.loadBucketLocked(week)
	}

	records := make([]themeRecord, 0, len(assignments))
	counts := make(map[domain.Theme]int)
	for _, a := range assignments {
		records = append(records, themeRecord{
			ReviewID: a.ReviewID,
			Theme:    a.Theme,
			Source:   a.Source,
			Reason:   a.Reason,
		})
		counts[a.Theme]++
	}

	doc := themesDoc{
		Week:        string(week),
		WeekEnd:     week.End(),
		StoredAt:    time.Now().UTC(),
		TopThemes:   rankThemes(counts),
		Assignments: records,
	}
	if err := writeJSONAtomic(s.themesPath(week), doc); err != nil {
		return domain.WeekBucket{}, fmt.Errorf("write themes doc %s: %w", week, err)
	}

	bucket, err := s.loadBucketLocked(week)
	if err != nil {
		return domain.WeekBucket{}, err
	}
	return bucket, nil
}

// LoadThemes returns the stored assignments in their persisted order.
func (s *FileWeekStore) LoadThemes(ctx context.Context, week domain.WeekKey) ([]domain.ThemeAssignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var doc themesDoc
	if err := readJSON(s.themesPath(week), &doc); err != nil {
		return nil, fmt.Errorf("read themes doc %s: %w", week, err)
	}
	assignments := make([]domain.ThemeAssignment, 0, len(doc.Assignments))
	for _, r := range doc.Assignments {
		assignments = append(assignments, domain.ThemeAssignment{
			ReviewID: r.ReviewID,
			Theme:    r.Theme,
			Source:   r.Source,
			Reason:   r.Reason,
		})
	}
	return assignments, nil
}

// Weeks lists every week that has at least a reviews document, sorted
// ascending. Week keys sort correctly as strings.
func (s *FileWeekStore) Weeks(ctx context.Context) ([]domain.WeekKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read data dir: %w", err)
	}

	var weeks []domain.WeekKey
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, "reviews_") || !strings.HasSuffix(name, ".json") {
			continue
		}
		week := strings.TrimSuffix(strings.TrimPrefix(name, "reviews_"), ".json")
		weeks = append(weeks, domain.WeekKey(week))
	}
	sort.Slice(weeks, func(i, j int) bool { return weeks[i] < weeks[j] })
	return weeks, nil
}

// rankThemes orders counts descending, breaking ties by the stable theme
// order so report output is deterministic.
func rankThemes(counts map[domain.Theme]int) []themeCount {
	ranked := make([]themeCount, 0, len(counts))
	for _, theme := range domain.Themes() {
		if n, ok := counts[theme]; ok {
			ranked = append(ranked, themeCount{Theme: theme, Count: n})
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Count > ranked[j].Count })
	return ranked
}

func fileExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// writeJSONAtomic writes to a temp file in the same directory and renames it
// into place, so readers never observe a half-written document.
func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return nil
}
