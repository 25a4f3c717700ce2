package batch

import "ReviewPulse/internal/domain"

// Config bounds classification batches, injected at construction.
type Config struct {
	// MaxReviews caps the review count per batch.
	MaxReviews int
	// MaxTokens caps the estimated token footprint per batch. Zero disables
	// the token budget.
	MaxTokens int
}

// DefaultConfig mirrors the production limits.
func DefaultConfig() Config {
	return Config{MaxReviews: 30, MaxTokens: 8000}
}

// Batch is one classifier request worth of reviews.
type Batch struct {
	Index   int
	Reviews []domain.Review
}

// EstimatedTokens returns the token footprint used when the batch was planned.
func (b Batch) EstimatedTokens() int {
	total := 0
	for _, review := range b.Reviews {
		total += estimateTokens(review)
	}
	return total
}

// Plan is an immutable, deterministic partition of a review list: same input,
// same boundaries, so a resumed run re-enters at any batch index without
// recomputing earlier batches.
type Plan struct {
	batches []Batch
}

// Len returns the number of planned batches.
func (p *Plan) Len() int {
	return len(p.batches)
}

// Batch returns the batch at the given index.
func (p *Plan) Batch(i int) Batch {
	return p.batches[i]
}

// From returns the tail of the plan starting at the given batch index,
// clamped to the plan bounds.
func (p *Plan) From(i int) []Batch {
	if i < 0 {
		i = 0
	}
	if i >= len(p.batches) {
		return nil
	}
	return p.batches[i:]
}

// Planner partitions validated, deduplicated review sets into batches.
type Planner struct {
	cfg Config
}

// NewPlanner builds a planner with the given limits.
func NewPlanner(cfg Config) *Planner {
	if cfg.MaxReviews <= 0 {
		cfg.MaxReviews = DefaultConfig().MaxReviews
	}
	return &Planner{cfg: cfg}
}

// Plan splits reviews into ordered, disjoint batches. Order is preserved,
// every review lands in exactly one batch and only the last batch may run
// short. A single oversized review still forms a batch of one.
func (p *Planner) Plan(reviews []domain.Review) *Plan {
	plan := &Plan{}
	var current []domain.Review
	tokens := 0

	flush := func() {
		if len(current) == 0 {
			return
		}
		plan.batches = append(plan.batches, Batch{Index: len(plan.batches), Reviews: current})
		current = nil
		tokens = 0
	}

	for _, review := range reviews {
		cost := estimateTokens(review)
		overBudget := p.cfg.MaxTokens > 0 && len(current) > 0 && tokens+cost > p.cfg.MaxTokens
		if len(current) >= p.cfg.MaxReviews || overBudget {
			flush()
		}
		current = append(current, review)
		tokens += cost
	}
	flush()

	return plan
}

// estimateTokens approximates the classifier cost of one review. A four
// characters per token heuristic plus fixed per-review prompt overhead.
func estimateTokens(review domain.Review) int {
	return (len(review.Title)+len(review.Text))/4 + 16
}
