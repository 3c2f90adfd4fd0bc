package search

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cinemate/cinemate-web/internal/api"
	"github.com/cinemate/cinemate-web/internal/domain"
	"github.com/cinemate/cinemate-web/internal/logging"
	"github.com/cinemate/cinemate-web/internal/metrics"
)

const fetchTimeout = 10 * time.Second

// Catalog is the slice of the API client the controller fetches through.
type Catalog interface {
	Movies(ctx context.Context) ([]domain.Movie, error)
	SearchMovies(ctx context.Context, params api.SearchParams) ([]domain.Movie, error)
}

// Controller owns the filter state and coalesces changes behind a debounce
// window: every change re-arms a cancellable timer, and only the most recent
// filter snapshot is ever fetched. Each fetch carries a sequence number so a
// slow superseded response is dropped instead of overwriting fresher results.
type Controller struct {
	svc      Catalog
	debounce time.Duration
	logger   zerolog.Logger

	mu       sync.Mutex
	filters  Filters
	timer    *time.Timer
	fetchSeq uint64
	movies   []domain.Movie
	fetchErr error
	genres   []string
	onChange func()
}

// NewController builds a controller with the given debounce quiet period.
func NewController(svc Catalog, debounce time.Duration) *Controller {
	return &Controller{
		svc:      svc,
		debounce: debounce,
		logger:   logging.L().With().Str("component", "search").Logger(),
		filters:  Default(),
	}
}

// OnChange registers a callback invoked after results or errors change.
func (c *Controller) OnChange(fn func()) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

func (c *Controller) notify() {
	c.mu.Lock()
	fn := c.onChange
	c.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Apply replaces the filter state and schedules a fetch after the quiet
// period. A change arriving before the timer elapses cancels the scheduled
// fetch and re-arms it, so a burst of changes costs one fetch.
func (c *Controller) Apply(f Filters) {
	c.mu.Lock()
	c.filters = f
	if c.timer != nil {
		if c.timer.Stop() {
			metrics.CountDebounceCoalesced()
		}
	}
	c.timer = time.AfterFunc(c.debounce, func() {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()
		c.fetch(ctx)
	})
	c.mu.Unlock()
}

// Flush runs a scheduled fetch immediately instead of waiting out the quiet
// period. A no-op when nothing is scheduled.
func (c *Controller) Flush(ctx context.Context) {
	c.mu.Lock()
	armed := c.timer != nil && c.timer.Stop()
	c.timer = nil
	c.mu.Unlock()
	if armed {
		c.fetch(ctx)
	}
}

// Clear resets every filter to its default and fetches the unfiltered
// listing immediately, bypassing the debounce window.
func (c *Controller) Clear(ctx context.Context) {
	c.mu.Lock()
	c.filters = Default()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.mu.Unlock()
	c.fetch(ctx)
}

// Refresh re-fetches with the current filters, used after a rating mutation
// so server-owned aggregates are re-read.
func (c *Controller) Refresh(ctx context.Context) {
	c.mu.Lock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.mu.Unlock()
	c.fetch(ctx)
}

// fetch issues the upstream call for the current filter snapshot. Results
// are installed only if no newer fetch has been issued meanwhile.
func (c *Controller) fetch(ctx context.Context) {
	c.mu.Lock()
	c.fetchSeq++
	seq := c.fetchSeq
	snapshot := c.filters
	needGenres := c.genres == nil
	c.mu.Unlock()

	var (
		movies []domain.Movie
		err    error
	)
	if snapshot.Active() {
		metrics.CountSearchFetch("search")
		movies, err = c.svc.SearchMovies(ctx, snapshot.Params())
	} else {
		metrics.CountSearchFetch("list")
		movies, err = c.svc.Movies(ctx)
	}

	c.mu.Lock()
	if c.fetchSeq != seq {
		metrics.CountStaleDropped()
		c.mu.Unlock()
		return
	}
	if err != nil {
		c.fetchErr = err
		c.mu.Unlock()
		c.logger.Warn().Err(err).Msg("catalog fetch failed")
		c.notify()
		return
	}
	c.fetchErr = nil
	c.movies = movies
	if !snapshot.Active() && needGenres {
		c.genres = distinctGenres(movies)
	}
	c.mu.Unlock()
	c.notify()
}

// Movies returns the latest fetched listing in server order.
func (c *Controller) Movies() []domain.Movie {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.Movie, len(c.movies))
	copy(out, c.movies)
	return out
}

// Err returns the error of the latest fetch, or nil.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fetchErr
}

// Filters returns the current filter snapshot.
func (c *Controller) Filters() Filters {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filters
}

// Genres returns the distinct genre values derived from the first unfiltered
// listing, cached for the controller's lifetime.
func (c *Controller) Genres() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.genres))
	copy(out, c.genres)
	return out
}

func distinctGenres(movies []domain.Movie) []string {
	seen := make(map[string]struct{}, len(movies))
	genres := make([]string, 0, len(movies))
	for _, m := range movies {
		if m.Genre == "" {
			continue
		}
		if _, ok := seen[m.Genre]; ok {
			continue
		}
		seen[m.Genre] = struct{}{}
		genres = append(genres, m.Genre)
	}
	sort.Strings(genres)
	return genres
}
