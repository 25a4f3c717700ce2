package validate

import (
	"log/slog"
	"strings"

	"github.com/forPelevin/gomoji"

	"ReviewPulse/internal/domain"
	"ReviewPulse/internal/normalize"
)

// Config carries the acceptance thresholds, injected at construction.
type Config struct {
	MinLength            int
	MinEnglishConfidence float64
}

// DefaultConfig mirrors the production thresholds.
func DefaultConfig() Config {
	return Config{MinLength: 20, MinEnglishConfidence: 0.7}
}

// LanguageDetector scores how confidently a text reads as English.
type LanguageDetector interface {
	EnglishConfidence(text string) float64
}

// Decision is the outcome of validating a single raw review.
type Decision struct {
	Accepted bool
	Reason   domain.RejectReason
}

// Validator applies the acceptance rules to raw reviews in a fixed order so
// rejection reasons are deterministic: language, length, emoji, residual PII.
type Validator struct {
	norm     *normalize.Normalizer
	detector LanguageDetector
	cfg      Config
	logger   *slog.Logger
}

// New builds a validator around the given normalizer and language detector.
func New(norm *normalize.Normalizer, detector LanguageDetector, cfg Config, logger *slog.Logger) *Validator {
	if cfg.MinLength <= 0 {
		cfg.MinLength = DefaultConfig().MinLength
	}
	if cfg.MinEnglishConfidence <= 0 {
		cfg.MinEnglishConfidence = DefaultConfig().MinEnglishConfidence
	}
	return &Validator{norm: norm, detector: detector, cfg: cfg, logger: logger}
}

// Validate normalizes the raw record and returns the cleaned review together
// with the accept/reject decision. Rejected reviews are never persisted; the
// caller records the reason for audit.
func (v *Validator) Validate(raw domain.RawReview) (domain.Review, Decision) {
	text := v.norm.Normalize(raw.Text)
	title := v.norm.Normalize(raw.Title)

	review := domain.Review{
		ReviewID:   raw.ReviewID,
		Title:      title,
		Text:       text,
		RawText:    raw.Text,
		Date:       raw.Date,
		Platform:   raw.Platform,
		Rating:     raw.Rating,
		AppVersion: raw.AppVersion,
	}

	if !v.isEnglish(text) {
		return review, v.reject(raw, domain.RejectNotEnglish)
	}
	if len(text) < v.cfg.MinLength {
		return review, v.reject(raw, domain.RejectTooShort)
	}
	if gomoji.ContainsEmoji(text) || gomoji.ContainsEmoji(title) {
		return review, v.reject(raw, domain.RejectEmoji)
	}
	if v.norm.HasPII(text) || v.norm.HasPII(title) {
		return review, v.reject(raw, domain.RejectResidualPII)
	}

	return review, Decision{Accepted: true}
}

// isEnglish applies the confidence threshold. Very short texts carry too
// little signal for detection and pass through to the length rule.
func (v *Validator) isEnglish(text string) bool {
	if len(strings.Fields(text)) < 3 {
		return true
	}
	if v.detector == nil {
		return true
	}
	return v.detector.EnglishConfidence(text) >= v.cfg.MinEnglishConfidence
}

func (v *Validator) reject(raw domain.RawReview, reason domain.RejectReason) Decision {
	if v.logger != nil {
		v.logger.Debug("review rejected", "review_id", raw.ReviewID, "reason", string(reason))
	}
	return Decision{Accepted: false, Reason: reason}
}
