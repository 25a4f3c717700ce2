package domain

import "errors"

// BucketStatus tracks how far a week has advanced through the pipeline.
// It only ever moves forward.
type BucketStatus int

const (
	BucketEmpty BucketStatus = iota
	BucketReviewsStored
	BucketThemesStored
)

func (s BucketStatus) String() string {
	switch s {
	case BucketReviewsStored:
		return "reviews_stored"
	case BucketThemesStored:
		return "themes_stored"
	default:
		return "empty"
	}
}

// ErrInconsistentBucket marks a week whose persisted documents do not match
// their implied status, e.g. themes present without stored reviews. Such a
// bucket needs manual inspection and is never silently repaired.
var ErrInconsistentBucket = errors.New("week bucket state inconsistent")

// WeekBucket summarizes the persisted state of one processing week.
type WeekBucket struct {
	WeekKey     WeekKey
	Status      BucketStatus
	ReviewCount int
	ThemeCounts map[Theme]int
}
