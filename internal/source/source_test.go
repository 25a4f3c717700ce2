package source

import (
	"context"
	"errors"
	"testing"
	"time"

	"ReviewPulse/internal/domain"
)

type stubSource struct {
	platform domain.Platform
	reviews  []domain.RawReview
	err      error
}

func (s *stubSource) Platform() domain.Platform { return s.platform }

func (s *stubSource) Fetch(_ context.Context, _, _ time.Time) ([]domain.RawReview, error) {
	return s.reviews, s.err
}

func TestRegistryResolve(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	reg.Register(&stubSource{platform: domain.PlatformAppStore})

	if _, err := reg.Resolve(domain.PlatformAppStore); err != nil {
		t.Fatalf("Resolve registered platform: %v", err)
	}
	if _, err := reg.Resolve(domain.PlatformPlayStore); err == nil {
		t.Fatal("Resolve unregistered platform should fail")
	}
}

func TestMultiSourceAggregates(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	reg.Register(&stubSource{
		platform: domain.PlatformPlayStore,
		reviews:  []domain.RawReview{{ReviewID: "p-1"}},
	})
	reg.Register(&stubSource{
		platform: domain.PlatformAppStore,
		reviews:  []domain.RawReview{{ReviewID: "a-1"}, {ReviewID: "a-2"}},
	})

	src := NewMultiSource(reg, nil)
	got, err := src.FetchWindow(context.Background(), time.Now().AddDate(0, 0, -7), time.Now())
	if err != nil {
		t.Fatalf("FetchWindow: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d reviews, want 3", len(got))
	}
	// App Store comes first in the fixed platform order.
	if got[0].ReviewID != "a-1" || got[2].ReviewID != "p-1" {
		t.Fatalf("order = %v, %v, %v", got[0].ReviewID, got[1].ReviewID, got[2].ReviewID)
	}
	for _, r := range got {
		if r.Platform == "" {
			t.Fatalf("platform not stamped on %s", r.ReviewID)
		}
	}
}

func TestMultiSourceFailsOnSourceError(t *testing.T) {
	t.Parallel()

	wantErr := errors.New("store endpoint down")
	reg := NewRegistry()
	reg.Register(&stubSource{platform: domain.PlatformAppStore, err: wantErr})
	reg.Register(&stubSource{
		platform: domain.PlatformPlayStore,
		reviews:  []domain.RawReview{{ReviewID: "p-1"}},
	})

	src := NewMultiSource(reg, nil)
	_, err := src.FetchWindow(context.Background(), time.Now().AddDate(0, 0, -7), time.Now())
	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want wrapped source error", err)
	}
}
