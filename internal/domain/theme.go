package domain

// Theme is one of the five fixed classification labels for a review.
type Theme string

const (
	ThemeFeatureRequests Theme = "Feature Requests"
	ThemeBugReports      Theme = "Bug Reports"
	ThemeUXIssues        Theme = "UX Issues"
	ThemePerformance     Theme = "Performance Issues"
	ThemeOther           Theme = "Other/General Feedback"
)

// FallbackTheme is assigned when classification could not be completed.
const FallbackTheme = ThemeOther

var themeDescriptions = map[Theme]string{
	ThemeFeatureRequests: "requests for new functionality or improvements to existing features",
	ThemeBugReports:      "broken behavior, errors, incorrect data, crashes attributed to defects",
	ThemeUXIssues:        "confusing flows, layout complaints, discoverability and usability friction",
	ThemePerformance:     "slowness, loading time, freezes, battery or resource consumption",
	ThemeOther:           "praise, pricing, support and anything not covered by the other themes",
}

// Themes lists the five allowed labels in a stable order.
func Themes() []Theme {
	return []Theme{
		ThemeFeatureRequests,
		ThemeBugReports,
		ThemeUXIssues,
		ThemePerformance,
		ThemeOther,
	}
}

// Valid reports whether t is one of the five allowed labels.
func (t Theme) Valid() bool {
	_, ok := themeDescriptions[t]
	return ok
}

// Description returns the one-line explanation fed to the classifier prompt.
func (t Theme) Description() string {
	return themeDescriptions[t]
}

// AssignmentSource records whether a theme came from the classifier or from
// the fallback policy after the classifier could not be completed.
type AssignmentSource string

const (
	SourceClassifier AssignmentSource = "classifier"
	SourceFallback   AssignmentSource = "fallback"
)

// ThemeAssignment is the classification result for a single review.
type ThemeAssignment struct {
	ReviewID string
	Theme    Theme
	Source   AssignmentSource
	Reason   string
}
