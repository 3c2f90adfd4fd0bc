// Package ratings keeps the user's per-movie rating state in sync with the
// server while giving immediate feedback on every interaction. Writes are
// optimistic: the local entry changes first, the network call follows, and an
// explicit failure rolls the entry back. Each in-flight mutation carries a
// per-movie sequence number so a superseded response can never overwrite a
// fresher local value.
package ratings

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cinemate/cinemate-web/internal/api"
	"github.com/cinemate/cinemate-web/internal/domain"
	"github.com/cinemate/cinemate-web/internal/logging"
	"github.com/cinemate/cinemate-web/internal/metrics"
)

// Service is the slice of the API client the store drives.
type Service interface {
	MyRatings(ctx context.Context) (*api.MyRatings, error)
	RateMovie(ctx context.Context, movieID int64, score int) (*domain.Rating, error)
	EditRating(ctx context.Context, ratingID int64, score int) error
	DeleteRating(ctx context.Context, ratingID int64) error
}

// FeedbackKind distinguishes the transient per-movie annotations.
type FeedbackKind string

const (
	FeedbackSaved  FeedbackKind = "saved"
	FeedbackFailed FeedbackKind = "failed"
)

// Feedback is a transient annotation attached to one movie after a mutation.
// It expires on its own and is not part of the store's rating state.
type Feedback struct {
	Kind    FeedbackKind
	Message string
	expires time.Time
}

// Store is the in-memory mapping from movie id to the user's current rating.
type Store struct {
	svc         Service
	logger      zerolog.Logger
	feedbackTTL time.Duration
	now         func() time.Time

	mu       sync.Mutex
	entries  map[int64]domain.Rating
	seq      map[int64]uint64
	feedback map[int64]Feedback
	total    int
	loadErr  error
	onChange func()
}

// NewStore builds an empty store backed by svc. feedbackTTL bounds how long
// per-movie success/failure annotations stay visible.
func NewStore(svc Service, feedbackTTL time.Duration) *Store {
	return &Store{
		svc:         svc,
		logger:      logging.L().With().Str("component", "ratings").Logger(),
		feedbackTTL: feedbackTTL,
		now:         time.Now,
		entries:     make(map[int64]domain.Rating),
		seq:         make(map[int64]uint64),
		feedback:    make(map[int64]Feedback),
	}
}

// OnChange registers a callback invoked after every state change. The
// rendering layer subscribes here instead of reaching into the store.
func (s *Store) OnChange(fn func()) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

func (s *Store) notify() {
	s.mu.Lock()
	fn := s.onChange
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// LoadAll replaces the store contents with the server's bulk rating list.
// It fails soft: on error the store is left empty with the error recorded,
// and catalog rendering proceeds without per-movie ratings.
func (s *Store) LoadAll(ctx context.Context) error {
	mine, err := s.svc.MyRatings(ctx)

	s.mu.Lock()
	s.entries = make(map[int64]domain.Rating)
	if err != nil {
		s.loadErr = err
		s.total = 0
		s.mu.Unlock()
		s.logger.Warn().Err(err).Msg("bulk ratings fetch failed")
		s.notify()
		return err
	}
	s.loadErr = nil
	for _, r := range mine.Ratings {
		s.entries[r.MovieID] = r
	}
	s.total = mine.Total
	s.mu.Unlock()
	s.notify()
	return nil
}

// LoadError returns the error of the last failed LoadAll, or nil.
func (s *Store) LoadError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadErr
}

// Get returns the user's rating for a movie, if any.
func (s *Store) Get(movieID int64) (domain.Rating, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.entries[movieID]
	return r, ok
}

// Len returns the number of rated movies currently held.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Rate records score for movieID optimistically and persists it. A movie
// without a confirmed entry gets a pending entry and a create call; a movie
// with a confirmed entry keeps its rating id and gets an edit call. On
// failure the exact prior state is restored, unless a newer mutation for the
// same movie has superseded this one.
func (s *Store) Rate(ctx context.Context, movieID int64, score int) error {
	s.mu.Lock()
	prev, had := s.entries[movieID]
	s.seq[movieID]++
	seq := s.seq[movieID]

	edit := had && prev.Confirmed()
	if edit {
		s.entries[movieID] = domain.Rating{
			RatingID:  prev.RatingID,
			MovieID:   movieID,
			Score:     score,
			CreatedAt: prev.CreatedAt,
		}
	} else {
		s.entries[movieID] = domain.Rating{
			RatingID: domain.PendingRatingID,
			MovieID:  movieID,
			Score:    score,
		}
	}
	s.mu.Unlock()
	s.notify()

	if edit {
		return s.persistEdit(ctx, movieID, score, prev, seq)
	}
	return s.persistCreate(ctx, movieID, score, prev, had, seq)
}

func (s *Store) persistEdit(ctx context.Context, movieID int64, score int, prev domain.Rating, seq uint64) error {
	if err := s.svc.EditRating(ctx, prev.RatingID, score); err != nil {
		s.rollback(movieID, prev, true, seq)
		s.flash(movieID, FeedbackFailed, "Could not save rating")
		metrics.CountRatingMutation("edit", "failure")
		s.logger.Warn().Int64("movie_id", movieID).Err(err).Msg("edit rating failed")
		return err
	}
	s.flash(movieID, FeedbackSaved, "Saved")
	metrics.CountRatingMutation("edit", "success")
	return nil
}

func (s *Store) persistCreate(ctx context.Context, movieID int64, score int, prev domain.Rating, had bool, seq uint64) error {
	created, err := s.svc.RateMovie(ctx, movieID, score)
	if err != nil {
		s.rollback(movieID, prev, had, seq)
		s.flash(movieID, FeedbackFailed, "Could not save rating")
		metrics.CountRatingMutation("create", "failure")
		s.logger.Warn().Int64("movie_id", movieID).Err(err).Msg("create rating failed")
		return err
	}

	s.mu.Lock()
	if s.seq[movieID] == seq {
		s.entries[movieID] = domain.Rating{
			RatingID:  created.RatingID,
			MovieID:   movieID,
			Score:     score,
			CreatedAt: created.CreatedAt,
		}
		if !had {
			s.total++
		}
	} else {
		metrics.CountStaleDropped()
	}
	s.mu.Unlock()
	s.notify()
	s.flash(movieID, FeedbackSaved, "Saved")
	metrics.CountRatingMutation("create", "success")
	return nil
}

// rollback restores the pre-mutation entry if this mutation is still the
// latest issued for the movie; a superseded rollback is discarded.
func (s *Store) rollback(movieID int64, prev domain.Rating, had bool, seq uint64) {
	s.mu.Lock()
	if s.seq[movieID] != seq {
		metrics.CountStaleDropped()
		s.mu.Unlock()
		return
	}
	if had {
		s.entries[movieID] = prev
	} else {
		delete(s.entries, movieID)
	}
	s.mu.Unlock()
	s.notify()
}

// Remove deletes the rating optimistically. The entry is discarded before
// the network call resolves; a failed delete resynchronizes the whole store
// from the server since no point-in-time undo is possible.
func (s *Store) Remove(ctx context.Context, ratingID int64) error {
	s.mu.Lock()
	var movieID int64
	found := false
	for id, r := range s.entries {
		if r.RatingID == ratingID {
			movieID = id
			found = true
			break
		}
	}
	if found {
		delete(s.entries, movieID)
		s.seq[movieID]++
		if s.total > 0 {
			s.total--
		}
	}
	s.mu.Unlock()
	if found {
		s.notify()
	}

	if err := s.svc.DeleteRating(ctx, ratingID); err != nil {
		metrics.CountRatingMutation("delete", "failure")
		s.logger.Warn().Int64("rating_id", ratingID).Err(err).Msg("delete rating failed, resyncing")
		if found {
			s.flash(movieID, FeedbackFailed, "Could not delete rating")
		}
		if loadErr := s.LoadAll(ctx); loadErr != nil {
			s.logger.Warn().Err(loadErr).Msg("resync after failed delete also failed")
		}
		return err
	}
	metrics.CountRatingMutation("delete", "success")
	return nil
}

// Total returns the server-reported rating count, adjusted by local
// optimistic mutations since the last LoadAll.
func (s *Store) Total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

// flash attaches a transient annotation to a movie. Expired annotations are
// dropped lazily when read.
func (s *Store) flash(movieID int64, kind FeedbackKind, msg string) {
	s.mu.Lock()
	s.feedback[movieID] = Feedback{
		Kind:    kind,
		Message: msg,
		expires: s.now().Add(s.feedbackTTL),
	}
	s.mu.Unlock()
	s.notify()
}

// FeedbackFor returns the live annotation for a movie, if one has not yet
// expired.
func (s *Store) FeedbackFor(movieID int64) (Feedback, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.feedback[movieID]
	if !ok {
		return Feedback{}, false
	}
	if s.now().After(f.expires) {
		delete(s.feedback, movieID)
		return Feedback{}, false
	}
	return f, true
}
