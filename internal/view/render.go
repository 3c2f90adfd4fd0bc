// Package view renders the server-side HTML pages. Page data is assembled by
// the web layer from the stores; templates only format what they are given
// and never reorder or recompute anything the server already decided.
package view

import (
	"embed"
	"fmt"
	"html/template"
	"io"

	"github.com/cinemate/cinemate-web/internal/domain"
)

//go:embed templates/*.html
var templatesFS embed.FS

// Renderer holds the parsed template set.
type Renderer struct {
	tpl *template.Template
}

// NewRenderer parses the embedded templates.
func NewRenderer() (*Renderer, error) {
	tpl, err := template.New("").Funcs(template.FuncMap{
		"avg":   formatAverage,
		"stars": starRange,
	}).ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Renderer{tpl: tpl}, nil
}

// Render executes the named page template.
func (r *Renderer) Render(w io.Writer, name string, data any) error {
	if err := r.tpl.ExecuteTemplate(w, name, data); err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}
	return nil
}

// formatAverage renders a movie's global average with one decimal, or a
// placeholder when the movie has no ratings yet.
func formatAverage(v *float64) string {
	if v == nil {
		return "not rated yet"
	}
	return fmt.Sprintf("%.1f", *v)
}

// starRange feeds the five-star widget.
func starRange() []int {
	return []int{1, 2, 3, 4, 5}
}

// Page carries the fields every page shares.
type Page struct {
	Title string
	User  *domain.User
	// Alert is a page-scoped error or notice shown at the top of the page.
	Alert string
}

// FiltersForm echoes the search form fields back as entered. Values stay
// strings so an invalid entry round-trips instead of silently vanishing.
type FiltersForm struct {
	Query     string
	Genre     string
	YearMin   string
	YearMax   string
	RatingMin string
	Sort      string
}

// MovieCard is one catalog entry with the viewer's rating state merged in.
type MovieCard struct {
	Movie domain.Movie
	// YourScore is 0 when the viewer has not rated the movie.
	YourScore int
	// Pending marks an optimistic rating not yet confirmed by the server.
	Pending bool
	// Feedback is a transient per-movie annotation, empty when none is live.
	Feedback     string
	FeedbackKind string
}

// CatalogPage drives the movie listing.
type CatalogPage struct {
	Page
	Filters FiltersForm
	Genres  []string
	Movies  []MovieCard
	// RatingsAlert reports a failed bulk ratings load; the catalog still
	// renders, just without per-movie scores.
	RatingsAlert string
	HasFilters   bool
}

// DetailPage drives the single-movie page.
type DetailPage struct {
	Page
	Card        MovieCard
	RatingCount int64
}

// RatingRow is one entry on the my-ratings page.
type RatingRow struct {
	RatingID  int64
	Score     int
	CreatedAt string
	Movie     domain.Movie
}

// MyRatingsPage drives the my-ratings page.
type MyRatingsPage struct {
	Page
	Rows  []RatingRow
	Total int
}

// RecommendationCard is one recommended movie. MatchPercent is shown only in
// personalized mode.
type RecommendationCard struct {
	Movie          domain.Movie
	PredictedScore float64
	MatchPercent   int
}

// RecommendationsPage drives the recommendations page. Personalized selects
// the "predicted for you" labeling over the global-average fallback.
type RecommendationsPage struct {
	Page
	Personalized bool
	Items        []RecommendationCard
}

// FormPage drives login, registration, and profile, echoing submitted values
// next to their validation errors.
type FormPage struct {
	Page
	Values map[string]string
	Errors map[string]string
}

// AdminPage drives the admin dashboard.
type AdminPage struct {
	Page
	Filters FiltersForm
	Movies  []domain.Movie
	// Editing is non-nil when a movie is open in the edit form.
	Editing *domain.Movie
	Notice  string
	Values  map[string]string
	Errors  map[string]string
}
