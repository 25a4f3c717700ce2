package validate

import "github.com/pemistahl/lingua-go"

// linguaDetector scores English confidence with the lingua language models.
// Building the detector loads the models, so one instance is shared per process.
type linguaDetector struct {
	detector lingua.LanguageDetector
}

var _ LanguageDetector = (*linguaDetector)(nil)

// NewLinguaDetector builds the production language detector. The candidate set
// covers English plus the languages most often seen transliterated or mixed
// into store reviews.
func NewLinguaDetector() LanguageDetector {
	detector := lingua.NewLanguageDetectorBuilder().
		FromLanguages(
			lingua.English,
			lingua.Hindi,
			lingua.Spanish,
			lingua.Portuguese,
			lingua.French,
			lingua.German,
		).
		Build()
	return &linguaDetector{detector: detector}
}

func (l *linguaDetector) EnglishConfidence(text string) float64 {
	return l.detector.ComputeLanguageConfidence(text, lingua.English)
}
