package web

import (
	_ "embed"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/cinemate/cinemate-web/internal/api"
	"github.com/cinemate/cinemate-web/internal/domain"
	"github.com/cinemate/cinemate-web/internal/search"
	"github.com/cinemate/cinemate-web/internal/view"
)

//go:embed static/app.css
var stylesheet []byte

func (s *Server) handleStylesheet(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	_, _ = w.Write(stylesheet)
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	switch {
	case query.Get("clear") != "":
		s.search.Clear(r.Context())
	case hasFilterParams(query):
		s.search.Apply(filtersFromQuery(query))
		// A full page load cannot wait out the quiet period; run the
		// scheduled fetch now. Background changes still coalesce.
		s.search.Flush(r.Context())
	default:
		s.search.Refresh(r.Context())
	}

	filters := s.search.Filters()
	page := view.CatalogPage{
		Page: view.Page{
			Title: "Movies",
			User:  s.currentUser(),
		},
		Filters:    formFromFilters(filters),
		Genres:     s.search.Genres(),
		HasFilters: filters.Active(),
	}
	if err := s.search.Err(); err != nil {
		if s.redirectOnExpiry(w, r, err) {
			return
		}
		page.Alert = "Could not load movies. Please try again."
	}
	if s.ratings.LoadError() != nil {
		page.RatingsAlert = "Your ratings are unavailable right now."
	}
	for _, m := range s.search.Movies() {
		page.Movies = append(page.Movies, s.cardFor(m))
	}
	s.render(w, "movies.html", page)
}

// cardFor merges the viewer's rating state into one catalog entry.
func (s *Server) cardFor(m domain.Movie) view.MovieCard {
	card := view.MovieCard{Movie: m}
	if s.currentUser() == nil {
		return card
	}
	if rating, ok := s.ratings.Get(m.ID); ok {
		card.YourScore = rating.Score
		card.Pending = !rating.Confirmed()
	}
	if fb, ok := s.ratings.FeedbackFor(m.ID); ok {
		card.Feedback = fb.Message
		card.FeedbackKind = string(fb.Kind)
	}
	return card
}

func (s *Server) handleMovieDetail(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	detail, err := s.client.Movie(r.Context(), id)
	if err != nil {
		if s.redirectOnExpiry(w, r, err) {
			return
		}
		if api.IsNotFound(err) {
			http.NotFound(w, r)
			return
		}
		s.logger.Warn().Int64("movie_id", id).Err(err).Msg("movie detail fetch failed")
		page := view.DetailPage{Page: view.Page{Title: "Movie", User: s.currentUser()}}
		page.Alert = "Could not load this movie. Please try again."
		s.render(w, "movie_detail.html", page)
		return
	}

	card := s.cardFor(detail.Movie)
	// The store wins over the server snapshot: it carries optimistic
	// mutations the detail response may not reflect yet.
	if card.YourScore == 0 && detail.UserRating != nil {
		card.YourScore = *detail.UserRating
	}

	var count int64
	if detail.RatingCount != nil {
		count = *detail.RatingCount
	}
	s.render(w, "movie_detail.html", view.DetailPage{
		Page:        view.Page{Title: detail.Title, User: s.currentUser()},
		Card:        card,
		RatingCount: count,
	})
}

func (s *Server) handleMyRatings(w http.ResponseWriter, r *http.Request) {
	if s.requireUser(w, r) == nil {
		return
	}

	details, err := s.client.MyRatingDetails(r.Context())
	page := view.MyRatingsPage{
		Page:  view.Page{Title: "My Ratings", User: s.currentUser()},
		Total: s.ratings.Total(),
	}
	if err != nil {
		if s.redirectOnExpiry(w, r, err) {
			return
		}
		page.Alert = "Could not load your ratings. Please try again."
	}
	for _, d := range details {
		page.Rows = append(page.Rows, view.RatingRow{
			RatingID:  d.RatingID,
			Score:     d.Score,
			CreatedAt: d.CreatedAt,
			Movie:     d.Movie,
		})
	}
	s.render(w, "my_ratings.html", page)
}

func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	if s.requireUser(w, r) == nil {
		return
	}

	model, err := s.recs.Load(r.Context())
	page := view.RecommendationsPage{
		Page: view.Page{Title: "Recommendations", User: s.currentUser()},
	}
	if err != nil {
		if s.redirectOnExpiry(w, r, err) {
			return
		}
		page.Alert = "Could not load recommendations. Please try again."
		s.render(w, "recommendations.html", page)
		return
	}

	page.Personalized = model.Personalized
	for _, item := range model.Items {
		page.Items = append(page.Items, view.RecommendationCard{
			Movie:          item.Movie,
			PredictedScore: item.PredictedScore,
			MatchPercent:   item.MatchPercent,
		})
	}
	s.render(w, "recommendations.html", page)
}

// hasFilterParams reports whether the request carries any search form field.
func hasFilterParams(query map[string][]string) bool {
	for _, key := range []string{"q", "genre", "year_min", "year_max", "rating_min", "sort"} {
		if _, ok := query[key]; ok {
			return true
		}
	}
	return false
}

// filtersFromQuery parses the search form. Unparseable numbers degrade to
// their zero value rather than failing the page.
func filtersFromQuery(query map[string][]string) search.Filters {
	get := func(key string) string {
		if vals := query[key]; len(vals) > 0 {
			return strings.TrimSpace(vals[0])
		}
		return ""
	}

	f := search.Default()
	f.Query = get("q")
	f.Genre = get("genre")
	if v, err := strconv.Atoi(get("year_min")); err == nil && v > 0 {
		f.YearMin = v
	}
	if v, err := strconv.Atoi(get("year_max")); err == nil && v > 0 {
		f.YearMax = v
	}
	if v, err := strconv.ParseFloat(get("rating_min"), 64); err == nil && v > 0 {
		f.RatingMin = v
	}
	f.Sort = search.ParseSort(get("sort"))
	return f
}

func formFromFilters(f search.Filters) view.FiltersForm {
	form := view.FiltersForm{
		Query: f.Query,
		Genre: f.Genre,
		Sort:  string(f.Sort),
	}
	if f.YearMin > 0 {
		form.YearMin = strconv.Itoa(f.YearMin)
	}
	if f.YearMax > 0 {
		form.YearMax = strconv.Itoa(f.YearMax)
	}
	if f.RatingMin > 0 {
		form.RatingMin = strconv.FormatFloat(f.RatingMin, 'f', -1, 64)
	}
	return form
}
