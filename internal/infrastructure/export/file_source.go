package export

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"ReviewPulse/internal/domain"
	"ReviewPulse/internal/source"
)

// FileSource reads raw review exports dropped into a directory by the
// scraping collaborators, one JSON file per export run. Records outside the
// requested window are filtered out here so the pipeline only ever sees the
// window it asked for.
type FileSource struct {
	platform domain.Platform
	dir      string
}

var _ source.Source = (*FileSource)(nil)

// NewFileSource serves exports for one platform from the given directory.
func NewFileSource(platform domain.Platform, dir string) *FileSource {
	return &FileSource{platform: platform, dir: dir}
}

type exportRecord struct {
	ReviewID   string    `json:"review_id"`
	Title      string    `json:"title"`
	Text       string    `json:"text"`
	Date       time.Time `json:"date"`
	Rating     int       `json:"rating"`
	AppVersion string    `json:"app_version"`
}

type exportDoc struct {
	Platform string         `json:"platform"`
	Reviews  []exportRecord `json:"reviews"`
}

// Platform identifies the store this source serves.
func (s *FileSource) Platform() domain.Platform {
	return s.platform
}

// Fetch reads every export file in the directory and returns the records
// dated inside [from, to]. Files for other platforms are skipped. Export runs
// overlap, so the same review may appear more than once; callers dedupe.
func (s *FileSource) Fetch(ctx context.Context, from, to time.Time) ([]domain.RawReview, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read export dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	var reviews []domain.RawReview
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		doc, err := s.readExport(filepath.Join(s.dir, name))
		if err != nil {
			return nil, fmt.Errorf("export %s: %w", name, err)
		}
		if doc.Platform != "" && domain.Platform(doc.Platform) != s.platform {
			continue
		}

		for _, r := range doc.Reviews {
			if r.Date.Before(from) || r.Date.After(to) {
				continue
			}
			reviews = append(reviews, domain.RawReview{
				ReviewID:   r.ReviewID,
				Title:      r.Title,
				Text:       r.Text,
				Date:       r.Date,
				Platform:   s.platform,
				Rating:     r.Rating,
				AppVersion: r.AppVersion,
			})
		}
	}
	return reviews, nil
}

func (s *FileSource) readExport(path string) (exportDoc, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return exportDoc{}, err
	}
	var doc exportDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return exportDoc{}, fmt.Errorf("decode: %w", err)
	}
	return doc, nil
}
