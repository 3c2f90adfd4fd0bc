package search

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cinemate/cinemate-web/internal/api"
	"github.com/cinemate/cinemate-web/internal/domain"
)

type fakeCatalog struct {
	mu          sync.Mutex
	listing     []domain.Movie
	results     []domain.Movie
	err         error
	listCalls   int
	searchCalls int
	lastParams  api.SearchParams
	onSearch    func()
}

func (f *fakeCatalog) Movies(ctx context.Context) ([]domain.Movie, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([]domain.Movie, len(f.listing))
	copy(out, f.listing)
	return out, nil
}

func (f *fakeCatalog) SearchMovies(ctx context.Context, params api.SearchParams) ([]domain.Movie, error) {
	f.mu.Lock()
	f.searchCalls++
	f.lastParams = params
	hook := f.onSearch
	err := f.err
	results := make([]domain.Movie, len(f.results))
	copy(results, f.results)
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (f *fakeCatalog) calls() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls, f.searchCalls
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition never satisfied")
}

func TestDebounceCoalescesToLatestSnapshot(t *testing.T) {
	svc := &fakeCatalog{results: []domain.Movie{{ID: 1, Title: "The Matrix"}}}
	ctrl := NewController(svc, 30*time.Millisecond)

	f1 := Filters{Query: "Mat", Sort: SortTitle}
	f2 := Filters{Query: "Matrix", Sort: SortTitle}
	ctrl.Apply(f1)
	ctrl.Apply(f2)

	waitFor(t, func() bool {
		_, searches := svc.calls()
		return searches > 0
	})
	// Give a potential second fetch time to (incorrectly) land.
	time.Sleep(60 * time.Millisecond)

	lists, searches := svc.calls()
	if searches != 1 {
		t.Fatalf("expected exactly one search fetch, got %d", searches)
	}
	if lists != 0 {
		t.Fatalf("unexpected unfiltered fetches: %d", lists)
	}
	svc.mu.Lock()
	got := svc.lastParams
	svc.mu.Unlock()
	if got.Query != "Matrix" {
		t.Fatalf("fetch used snapshot %+v, want the latest (Matrix)", got)
	}
}

func TestFlushRunsScheduledFetchImmediately(t *testing.T) {
	svc := &fakeCatalog{results: []domain.Movie{{ID: 1, Title: "Heat"}}}
	ctrl := NewController(svc, time.Hour)

	ctrl.Apply(Filters{Query: "Heat", Sort: SortTitle})
	ctrl.Flush(context.Background())

	_, searches := svc.calls()
	if searches != 1 {
		t.Fatalf("expected one search fetch after flush, got %d", searches)
	}
	if got := ctrl.Movies(); len(got) != 1 || got[0].Title != "Heat" {
		t.Fatalf("results not installed: %+v", got)
	}
}

func TestFlushWithoutScheduleIsNoop(t *testing.T) {
	svc := &fakeCatalog{}
	ctrl := NewController(svc, time.Hour)

	ctrl.Flush(context.Background())

	lists, searches := svc.calls()
	if lists != 0 || searches != 0 {
		t.Fatalf("flush without schedule fetched: lists=%d searches=%d", lists, searches)
	}
}

func TestClearResetsAndFetchesImmediately(t *testing.T) {
	svc := &fakeCatalog{listing: []domain.Movie{{ID: 2, Title: "Alien", Genre: "Horror"}}}
	ctrl := NewController(svc, time.Hour)

	ctrl.Apply(Filters{Query: "Alien", Genre: "Horror", Sort: SortRating})
	ctrl.Clear(context.Background())

	if ctrl.Filters() != Default() {
		t.Fatalf("filters not reset: %+v", ctrl.Filters())
	}
	lists, searches := svc.calls()
	if lists != 1 {
		t.Fatalf("expected one immediate unfiltered fetch, got %d", lists)
	}
	if searches != 0 {
		t.Fatalf("cancelled scheduled search still ran: %d", searches)
	}
}

func TestListingOrderPreserved(t *testing.T) {
	listing := []domain.Movie{
		{ID: 3, Title: "Zodiac"},
		{ID: 1, Title: "Alien"},
		{ID: 2, Title: "Misery"},
	}
	svc := &fakeCatalog{listing: listing}
	ctrl := NewController(svc, time.Hour)

	ctrl.Refresh(context.Background())

	got := ctrl.Movies()
	if len(got) != len(listing) {
		t.Fatalf("length mismatch: %d", len(got))
	}
	for i := range listing {
		if got[i].ID != listing[i].ID {
			t.Fatalf("order changed at %d: got %d want %d", i, got[i].ID, listing[i].ID)
		}
	}
}

func TestGenresDerivedOnceFromUnfilteredListing(t *testing.T) {
	svc := &fakeCatalog{listing: []domain.Movie{
		{ID: 1, Genre: "Horror"},
		{ID: 2, Genre: "Drama"},
		{ID: 3, Genre: "Horror"},
		{ID: 4, Genre: ""},
	}}
	ctrl := NewController(svc, time.Hour)

	ctrl.Refresh(context.Background())

	genres := ctrl.Genres()
	if len(genres) != 2 || genres[0] != "Drama" || genres[1] != "Horror" {
		t.Fatalf("genres = %+v", genres)
	}

	// A later listing must not recompute the cached set.
	svc.mu.Lock()
	svc.listing = []domain.Movie{{ID: 9, Genre: "Western"}}
	svc.mu.Unlock()
	ctrl.Refresh(context.Background())

	if genres := ctrl.Genres(); len(genres) != 2 {
		t.Fatalf("genre cache recomputed: %+v", genres)
	}
}

func TestFetchErrorIsScoped(t *testing.T) {
	svc := &fakeCatalog{err: errors.New("boom")}
	ctrl := NewController(svc, time.Hour)

	ctrl.Refresh(context.Background())

	if ctrl.Err() == nil {
		t.Fatalf("fetch error not recorded")
	}

	// Recovery clears the error.
	svc.mu.Lock()
	svc.err = nil
	svc.listing = []domain.Movie{{ID: 1}}
	svc.mu.Unlock()
	ctrl.Refresh(context.Background())
	if ctrl.Err() != nil {
		t.Fatalf("error not cleared after successful fetch")
	}
}

func TestStaleSearchResponseDropped(t *testing.T) {
	svc := &fakeCatalog{results: []domain.Movie{{ID: 1, Title: "Old"}}}
	ctrl := NewController(svc, time.Hour)

	firstInFlight := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	svc.onSearch = func() {
		once.Do(func() {
			close(firstInFlight)
			<-release
		})
	}

	done := make(chan struct{})
	go func() {
		ctrl.Apply(Filters{Query: "Old", Sort: SortTitle})
		ctrl.Flush(context.Background())
		close(done)
	}()
	<-firstInFlight

	// A newer fetch overtakes the blocked one.
	svc.mu.Lock()
	svc.results = []domain.Movie{{ID: 2, Title: "New"}}
	svc.onSearch = nil
	svc.mu.Unlock()
	ctrl.Apply(Filters{Query: "New", Sort: SortTitle})
	ctrl.Flush(context.Background())

	close(release)
	<-done

	got := ctrl.Movies()
	if len(got) != 1 || got[0].Title != "New" {
		t.Fatalf("stale response overwrote fresh results: %+v", got)
	}
}
