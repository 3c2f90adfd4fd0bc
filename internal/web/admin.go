package web

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/cinemate/cinemate-web/internal/api"
	"github.com/cinemate/cinemate-web/internal/domain"
	"github.com/cinemate/cinemate-web/internal/validation"
	"github.com/cinemate/cinemate-web/internal/view"
)

// requireAdmin gates the admin pages on the client-readable is_admin flag.
// This is a navigation convenience only; the upstream re-validates every
// admin call and answers 403 regardless of what this client shows.
func (s *Server) requireAdmin(w http.ResponseWriter, r *http.Request) *domain.User {
	u := s.requireUser(w, r)
	if u == nil {
		return nil
	}
	if !u.IsAdmin {
		http.Redirect(w, r, "/movies", http.StatusFound)
		return nil
	}
	return u
}

func (s *Server) handleAdmin(w http.ResponseWriter, r *http.Request) {
	if s.requireAdmin(w, r) == nil {
		return
	}
	query := r.URL.Query()

	page := view.AdminPage{
		Page:    view.Page{Title: "Admin", User: s.currentUser()},
		Filters: view.FiltersForm{Query: strings.TrimSpace(query.Get("q"))},
		Notice:  query.Get("notice"),
		Values:  map[string]string{},
		Errors:  map[string]string{},
	}

	var (
		movies []domain.Movie
		err    error
	)
	if page.Filters.Query != "" {
		movies, err = s.client.SearchMovies(r.Context(), api.SearchParams{Query: page.Filters.Query})
	} else {
		movies, err = s.client.Movies(r.Context())
	}
	if err != nil {
		if s.redirectOnExpiry(w, r, err) {
			return
		}
		page.Alert = "Could not load movies. Please try again."
	}
	page.Movies = movies

	if raw := query.Get("edit"); raw != "" {
		if id, convErr := strconv.ParseInt(raw, 10, 64); convErr == nil {
			detail, detailErr := s.client.Movie(r.Context(), id)
			if detailErr == nil {
				page.Editing = &detail.Movie
				page.Values = movieValues(detail.Movie)
			} else if s.redirectOnExpiry(w, r, detailErr) {
				return
			}
		}
	}

	s.render(w, "admin.html", page)
}

func (s *Server) handleAdminCreate(w http.ResponseWriter, r *http.Request) {
	if s.requireAdmin(w, r) == nil {
		return
	}

	input, values, fields, err := movieInputFromForm(r)
	if err != nil {
		s.logger.Error().Err(err).Msg("movie input validation failed")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	if fields != nil {
		s.renderAdminForm(w, r, nil, values, fields)
		return
	}

	movie, err := s.client.AdminAddMovie(r.Context(), input)
	if err != nil {
		if s.redirectOnExpiry(w, r, err) {
			return
		}
		s.renderAdminForm(w, r, nil, values, map[string]string{})
		return
	}
	redirectAdmin(w, r, "Added "+movie.Title)
}

func (s *Server) handleAdminUpdate(w http.ResponseWriter, r *http.Request) {
	if s.requireAdmin(w, r) == nil {
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	input, values, fields, err := movieInputFromForm(r)
	if err != nil {
		s.logger.Error().Err(err).Msg("movie input validation failed")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	if fields != nil {
		editing := &domain.Movie{ID: id, Title: input.Title}
		s.renderAdminForm(w, r, editing, values, fields)
		return
	}

	movie, err := s.client.AdminUpdateMovie(r.Context(), id, input)
	if err != nil {
		if s.redirectOnExpiry(w, r, err) {
			return
		}
		if api.IsNotFound(err) {
			http.NotFound(w, r)
			return
		}
		editing := &domain.Movie{ID: id, Title: input.Title}
		s.renderAdminForm(w, r, editing, values, map[string]string{})
		return
	}
	redirectAdmin(w, r, "Saved "+movie.Title)
}

func (s *Server) handleAdminDelete(w http.ResponseWriter, r *http.Request) {
	if s.requireAdmin(w, r) == nil {
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	if err := s.client.AdminDeleteMovie(r.Context(), id); err != nil {
		if s.redirectOnExpiry(w, r, err) {
			return
		}
		if api.IsNotFound(err) {
			http.NotFound(w, r)
			return
		}
		redirectAdmin(w, r, "Could not delete the movie")
		return
	}
	redirectAdmin(w, r, "Movie deleted")
}

// renderAdminForm re-renders the dashboard with the submitted form echoed.
// The listing is refetched so the page stays complete around the form.
func (s *Server) renderAdminForm(w http.ResponseWriter, r *http.Request, editing *domain.Movie, values, fields map[string]string) {
	page := view.AdminPage{
		Page:    view.Page{Title: "Admin", User: s.currentUser()},
		Editing: editing,
		Values:  values,
		Errors:  fields,
	}
	if len(fields) == 0 {
		page.Alert = "Could not save the movie. Please try again."
	}
	movies, err := s.client.Movies(r.Context())
	if err == nil {
		page.Movies = movies
	}
	s.render(w, "admin.html", page)
}

func redirectAdmin(w http.ResponseWriter, r *http.Request, notice string) {
	http.Redirect(w, r, "/admin?notice="+url.QueryEscape(notice), http.StatusSeeOther)
}

// movieInputFromForm parses and validates the admin movie form. fields is
// non-nil when validation failed; values always echoes what was submitted.
func movieInputFromForm(r *http.Request) (domain.MovieInput, map[string]string, map[string]string, error) {
	values := map[string]string{
		"title":       strings.TrimSpace(r.PostFormValue("title")),
		"year":        strings.TrimSpace(r.PostFormValue("year")),
		"genre":       strings.TrimSpace(r.PostFormValue("genre")),
		"director":    strings.TrimSpace(r.PostFormValue("director")),
		"description": strings.TrimSpace(r.PostFormValue("description")),
		"poster_url":  strings.TrimSpace(r.PostFormValue("poster_url")),
	}

	input := domain.MovieInput{
		Title:       values["title"],
		Genre:       values["genre"],
		Director:    values["director"],
		Description: values["description"],
		PosterURL:   values["poster_url"],
	}
	year, convErr := strconv.Atoi(values["year"])
	if convErr == nil {
		input.Year = year
	}

	fields, err := validation.Struct(input)
	if err != nil {
		return input, values, nil, err
	}
	if convErr != nil && (fields == nil || fields["year"] == "") {
		if fields == nil {
			fields = map[string]string{}
		}
		fields["year"] = "Enter a valid year"
	}
	return input, values, fields, nil
}

func movieValues(m domain.Movie) map[string]string {
	return map[string]string{
		"title":       m.Title,
		"year":        strconv.Itoa(m.Year),
		"genre":       m.Genre,
		"director":    m.Director,
		"description": m.Description,
		"poster_url":  m.PosterURL,
	}
}
