package domain

import "time"

// Platform identifies the app store a review was scraped from.
type Platform string

const (
	PlatformAppStore  Platform = "app_store"
	PlatformPlayStore Platform = "play_store"
)

// Valid reports whether the platform is one of the known stores.
func (p Platform) Valid() bool {
	return p == PlatformAppStore || p == PlatformPlayStore
}

// RawReview is a review record exactly as the scraping collaborator hands it over.
type RawReview struct {
	ReviewID   string
	Title      string
	Text       string
	Date       time.Time
	Platform   Platform
	Rating     int // 1-5 stars, 0 when the store did not report one
	AppVersion string
}

// Review is an accepted review: cleaned text plus the original kept for audit.
type Review struct {
	ReviewID   string
	Title      string
	Text       string
	RawText    string
	Date       time.Time
	Platform   Platform
	Rating     int
	AppVersion string
}

// WeekKey returns the Monday-anchored week bucket this review belongs to.
func (r Review) WeekKey() WeekKey {
	return WeekOf(r.Date)
}

// WeekKey is the Monday date of a calendar week, formatted YYYY-MM-DD.
type WeekKey string

const weekKeyLayout = "2006-01-02"

// WeekOf derives the week key for a timestamp. Pure function of the date.
func WeekOf(t time.Time) WeekKey {
	daysSinceMonday := (int(t.Weekday()) + 6) % 7
	monday := t.AddDate(0, 0, -daysSinceMonday)
	return WeekKey(monday.Format(weekKeyLayout))
}

// Time parses the week key back into its Monday midnight timestamp.
func (k WeekKey) Time() (time.Time, error) {
	return time.Parse(weekKeyLayout, string(k))
}

// Add shifts the key by a number of weeks. Invalid keys are returned unchanged.
func (k WeekKey) Add(weeks int) WeekKey {
	t, err := k.Time()
	if err != nil {
		return k
	}
	return WeekKey(t.AddDate(0, 0, 7*weeks).Format(weekKeyLayout))
}

// End returns the Sunday date closing the week, formatted like the key.
func (k WeekKey) End() string {
	t, err := k.Time()
	if err != nil {
		return string(k)
	}
	return t.AddDate(0, 0, 6).Format(weekKeyLayout)
}

// RejectReason is the closed set of validation rejection causes kept for audit.
type RejectReason string

const (
	RejectNone        RejectReason = ""
	RejectNotEnglish  RejectReason = "not_english"
	RejectTooShort    RejectReason = "too_short"
	RejectEmoji       RejectReason = "contains_emoji"
	RejectResidualPII RejectReason = "residual_pii"
)

// Fingerprint is a compact shingle signature of a review's normalized text,
// used to recognize near-duplicates across ingestion runs.
type Fingerprint struct {
	ReviewID string
	WeekKey  WeekKey
	Shingles []uint64
}
