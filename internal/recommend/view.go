// Package recommend builds the recommendation view state: the fetched list
// plus the display mode derived from the user's rating history. The client
// computes no scores; personalization versus global fallback is purely a
// labeling decision.
package recommend

import (
	"context"
	"math"

	"github.com/cinemate/cinemate-web/internal/api"
	"github.com/cinemate/cinemate-web/internal/domain"
)

// Service is the slice of the API client the view fetches through.
type Service interface {
	Recommendations(ctx context.Context) ([]domain.RecommendationItem, error)
	MyRatings(ctx context.Context) (*api.MyRatings, error)
}

// Item is one rendered recommendation entry.
type Item struct {
	Movie          domain.Movie
	PredictedScore float64
	// MatchPercent is round(predicted_score/5*100); only meaningful in
	// personalized mode.
	MatchPercent int
}

// Model is the assembled recommendation view state.
type Model struct {
	// Personalized is true when the user has rating history; the list then
	// carries predicted scores and match badges. Otherwise the same list
	// shape holds global top-rated movies labeled by global average.
	Personalized bool
	Items        []Item
}

// View fetches and assembles recommendation models.
type View struct {
	svc Service
}

// NewView builds a recommendation view over svc.
func NewView(svc Service) *View {
	return &View{svc: svc}
}

// Load fetches the recommendation list and the user's rating count in
// parallel, then decides the display mode. A failed recommendation fetch
// fails the load; a failed rating-count fetch only forces fallback labeling.
func (v *View) Load(ctx context.Context) (*Model, error) {
	type recsResult struct {
		items []domain.RecommendationItem
		err   error
	}
	type countResult struct {
		total int
		err   error
	}

	recsCh := make(chan recsResult, 1)
	countCh := make(chan countResult, 1)

	go func() {
		items, err := v.svc.Recommendations(ctx)
		recsCh <- recsResult{items: items, err: err}
	}()
	go func() {
		mine, err := v.svc.MyRatings(ctx)
		if err != nil {
			countCh <- countResult{err: err}
			return
		}
		countCh <- countResult{total: mine.Total}
	}()

	recs := <-recsCh
	count := <-countCh
	if recs.err != nil {
		return nil, recs.err
	}

	model := &Model{
		Personalized: count.err == nil && count.total > 0,
		Items:        make([]Item, 0, len(recs.items)),
	}
	for _, rec := range recs.items {
		model.Items = append(model.Items, Item{
			Movie:          rec.Movie,
			PredictedScore: rec.PredictedScore,
			MatchPercent:   matchPercent(rec.PredictedScore),
		})
	}
	return model, nil
}

func matchPercent(predicted float64) int {
	return int(math.Round(predicted / 5 * 100))
}
