package ratings

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cinemate/cinemate-web/internal/api"
	"github.com/cinemate/cinemate-web/internal/domain"
)

// fakeService scripts the upstream behavior for store tests.
type fakeService struct {
	mu sync.Mutex

	ratings    []domain.Rating
	total      int
	myErr      error
	rateErr    error
	editErr    error
	deleteErr  error
	nextID     int64
	rateCalls  int
	editCalls  int
	onRate     func()
	onDelete   func()
	lastEditID int64
}

func (f *fakeService) MyRatings(ctx context.Context) (*api.MyRatings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.myErr != nil {
		return nil, f.myErr
	}
	out := make([]domain.Rating, len(f.ratings))
	copy(out, f.ratings)
	return &api.MyRatings{Ratings: out, Total: f.total}, nil
}

func (f *fakeService) RateMovie(ctx context.Context, movieID int64, score int) (*domain.Rating, error) {
	f.mu.Lock()
	f.rateCalls++
	f.nextID++
	id := f.nextID
	err := f.rateErr
	hook := f.onRate
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	if err != nil {
		return nil, err
	}
	return &domain.Rating{RatingID: id, MovieID: movieID, Score: score}, nil
}

func (f *fakeService) EditRating(ctx context.Context, ratingID int64, score int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.editCalls++
	f.lastEditID = ratingID
	return f.editErr
}

func (f *fakeService) DeleteRating(ctx context.Context, ratingID int64) error {
	f.mu.Lock()
	err := f.deleteErr
	hook := f.onDelete
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	return err
}

func newTestStore(svc Service) *Store {
	return NewStore(svc, 2*time.Second)
}

func TestRateNewMovieConfirms(t *testing.T) {
	for score := 1; score <= 5; score++ {
		svc := &fakeService{nextID: 100}
		store := newTestStore(svc)

		// Observe the optimistic pending entry while the create is in flight.
		var pending domain.Rating
		var pendingOK bool
		svc.onRate = func() {
			pending, pendingOK = store.Get(7)
		}

		if err := store.Rate(context.Background(), 7, score); err != nil {
			t.Fatalf("Rate(score=%d) unexpected error: %v", score, err)
		}

		if !pendingOK || pending.RatingID != domain.PendingRatingID {
			t.Fatalf("score=%d: expected pending sentinel during create, got %+v ok=%v", score, pending, pendingOK)
		}
		if pending.Score != score {
			t.Fatalf("score=%d: pending score = %d", score, pending.Score)
		}

		got, ok := store.Get(7)
		if !ok {
			t.Fatalf("score=%d: entry missing after confirm", score)
		}
		if got.RatingID == domain.PendingRatingID {
			t.Fatalf("score=%d: rating id still sentinel after confirm", score)
		}
		if got.Score != score {
			t.Fatalf("score=%d: confirmed score = %d", score, got.Score)
		}
	}
}

func TestEditPreservesRatingID(t *testing.T) {
	svc := &fakeService{
		ratings: []domain.Rating{{RatingID: 42, MovieID: 7, Score: 3}},
		total:   1,
	}
	store := newTestStore(svc)
	if err := store.LoadAll(context.Background()); err != nil {
		t.Fatalf("LoadAll: %v", err)
	}

	if err := store.Rate(context.Background(), 7, 5); err != nil {
		t.Fatalf("Rate: %v", err)
	}

	got, ok := store.Get(7)
	if !ok {
		t.Fatalf("entry missing after edit")
	}
	if got.RatingID != 42 {
		t.Fatalf("rating id changed on edit: %d", got.RatingID)
	}
	if got.Score != 5 {
		t.Fatalf("score = %d, want 5", got.Score)
	}
	if svc.editCalls != 1 || svc.rateCalls != 0 {
		t.Fatalf("expected one edit call, got edit=%d create=%d", svc.editCalls, svc.rateCalls)
	}
	if svc.lastEditID != 42 {
		t.Fatalf("edit addressed rating %d, want 42", svc.lastEditID)
	}
}

func TestFailedCreateRemovesEntry(t *testing.T) {
	svc := &fakeService{rateErr: errors.New("boom")}
	store := newTestStore(svc)

	if err := store.Rate(context.Background(), 7, 4); err == nil {
		t.Fatalf("expected error")
	}
	if _, ok := store.Get(7); ok {
		t.Fatalf("entry should be removed after failed create")
	}
}

func TestFailedEditRestoresPriorEntry(t *testing.T) {
	prior := domain.Rating{RatingID: 42, MovieID: 7, Score: 3, CreatedAt: "2026-01-02"}
	svc := &fakeService{
		ratings: []domain.Rating{prior},
		total:   1,
		editErr: errors.New("boom"),
	}
	store := newTestStore(svc)
	if err := store.LoadAll(context.Background()); err != nil {
		t.Fatalf("LoadAll: %v", err)
	}

	if err := store.Rate(context.Background(), 7, 5); err == nil {
		t.Fatalf("expected error")
	}

	got, ok := store.Get(7)
	if !ok {
		t.Fatalf("entry missing after rollback")
	}
	if got != prior {
		t.Fatalf("rollback mismatch: got %+v want %+v", got, prior)
	}
}

func TestRemoveIsOptimisticAndResyncsOnFailure(t *testing.T) {
	svc := &fakeService{
		ratings: []domain.Rating{{RatingID: 42, MovieID: 7, Score: 3}},
		total:   1,
	}
	store := newTestStore(svc)
	if err := store.LoadAll(context.Background()); err != nil {
		t.Fatalf("LoadAll: %v", err)
	}

	// Entry must already be gone when the delete call goes out.
	var duringDelete bool
	svc.onDelete = func() {
		_, duringDelete = store.Get(7)
	}

	if err := store.Remove(context.Background(), 42); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if duringDelete {
		t.Fatalf("entry still present while delete request in flight")
	}
	if _, ok := store.Get(7); ok {
		t.Fatalf("entry present after successful delete")
	}
}

func TestRemoveFailureReloadsServerTruth(t *testing.T) {
	svc := &fakeService{
		ratings:   []domain.Rating{{RatingID: 42, MovieID: 7, Score: 3}},
		total:     1,
		deleteErr: errors.New("boom"),
	}
	store := newTestStore(svc)
	if err := store.LoadAll(context.Background()); err != nil {
		t.Fatalf("LoadAll: %v", err)
	}

	if err := store.Remove(context.Background(), 42); err == nil {
		t.Fatalf("expected error")
	}

	// Server still holds the rating, so the resync restores it.
	got, ok := store.Get(7)
	if !ok {
		t.Fatalf("entry missing after resync")
	}
	if got.RatingID != 42 || got.Score != 3 {
		t.Fatalf("resynced entry mismatch: %+v", got)
	}
}

func TestLoadAllFailsSoft(t *testing.T) {
	svc := &fakeService{myErr: errors.New("boom")}
	store := newTestStore(svc)

	if err := store.LoadAll(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
	if store.Len() != 0 {
		t.Fatalf("store should be empty after failed load")
	}
	if store.LoadError() == nil {
		t.Fatalf("load error not recorded")
	}
}

func TestSupersededResponseIsDropped(t *testing.T) {
	svc := &fakeService{nextID: 10}
	store := newTestStore(svc)

	firstInFlight := make(chan struct{})
	releaseFirst := make(chan struct{})
	var once sync.Once
	svc.onRate = func() {
		// Block only the first create so the second can overtake it.
		once.Do(func() {
			close(firstInFlight)
			<-releaseFirst
		})
	}

	done := make(chan error, 1)
	go func() {
		done <- store.Rate(context.Background(), 7, 2)
	}()
	<-firstInFlight

	// Second click before the first request resolves.
	if err := store.Rate(context.Background(), 7, 5); err != nil {
		t.Fatalf("second Rate: %v", err)
	}
	second, _ := store.Get(7)

	close(releaseFirst)
	if err := <-done; err != nil {
		t.Fatalf("first Rate: %v", err)
	}

	got, ok := store.Get(7)
	if !ok {
		t.Fatalf("entry missing")
	}
	if got != second {
		t.Fatalf("stale first response overwrote newer state: got %+v want %+v", got, second)
	}
	if got.Score != 5 {
		t.Fatalf("score = %d, want the superseding 5", got.Score)
	}
	if svc.rateCalls != 2 {
		t.Fatalf("both network calls must be issued, got %d", svc.rateCalls)
	}
}

func TestFeedbackExpires(t *testing.T) {
	svc := &fakeService{nextID: 10}
	store := newTestStore(svc)

	current := time.Unix(1000, 0)
	store.now = func() time.Time { return current }

	if err := store.Rate(context.Background(), 7, 4); err != nil {
		t.Fatalf("Rate: %v", err)
	}

	fb, ok := store.FeedbackFor(7)
	if !ok || fb.Kind != FeedbackSaved {
		t.Fatalf("expected saved feedback, got %+v ok=%v", fb, ok)
	}

	current = current.Add(3 * time.Second)
	if _, ok := store.FeedbackFor(7); ok {
		t.Fatalf("feedback should have expired")
	}
}

func TestOnChangeFires(t *testing.T) {
	svc := &fakeService{nextID: 10}
	store := newTestStore(svc)

	var mu sync.Mutex
	changes := 0
	store.OnChange(func() {
		mu.Lock()
		changes++
		mu.Unlock()
	})

	if err := store.Rate(context.Background(), 7, 4); err != nil {
		t.Fatalf("Rate: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if changes == 0 {
		t.Fatalf("subscriber never notified")
	}
}
