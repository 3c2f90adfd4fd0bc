package web

import (
	"errors"
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

// backTo picks the redirect target after a form POST: the referring page when
// it is local, otherwise the fallback.
func backTo(r *http.Request, fallback string) string {
	ref := r.Header.Get("Referer")
	if ref == "" {
		return fallback
	}
	parsed, err := url.Parse(ref)
	if err != nil || parsed.Path == "" {
		return fallback
	}
	target := parsed.Path
	if parsed.RawQuery != "" {
		target += "?" + parsed.RawQuery
	}
	return target
}

func (s *Server) handleRate(w http.ResponseWriter, r *http.Request) {
	if s.requireUser(w, r) == nil {
		return
	}

	movieID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	score, err := strconv.Atoi(r.PostFormValue("score"))
	if err != nil || score < 1 || score > 5 {
		http.Error(w, "score must be between 1 and 5", http.StatusBadRequest)
		return
	}

	rateErr := s.ratings.Rate(r.Context(), movieID, score)
	if s.redirectOnExpiry(w, r, rateErr) {
		return
	}
	// Aggregates are server-owned; re-read them so the page reflects the
	// new average. Rollback and feedback are already in the store.
	s.search.Refresh(r.Context())
	http.Redirect(w, r, backTo(r, "/movies"), http.StatusSeeOther)
}

func (s *Server) handleDeleteRating(w http.ResponseWriter, r *http.Request) {
	if s.requireUser(w, r) == nil {
		return
	}

	ratingID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	removeErr := s.ratings.Remove(r.Context(), ratingID)
	if s.redirectOnExpiry(w, r, removeErr) {
		return
	}
	s.search.Refresh(r.Context())
	http.Redirect(w, r, backTo(r, "/ratings"), http.StatusSeeOther)
}

func (s *Server) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	page := view.FormPage{
		Page:   view.Page{Title: "Log in", User: s.currentUser()},
		Values: map[string]string{},
		Errors: map[string]string{},
	}
	if r.URL.Query().Get("expired") != "" {
		page.Alert = "Your session expired. Please log in again."
	}
	s.render(w, "login.html", page)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	creds := domain.Credentials{
		Email:    strings.TrimSpace(r.PostFormValue("email")),
		Password: r.PostFormValue("password"),
	}

	page := view.FormPage{
		Page:   view.Page{Title: "Log in"},
		Values: map[string]string{"email": creds.Email},
		Errors: map[string]string{},
	}

	fields, err := validation.Struct(creds)
	if err != nil {
		s.logger.Error().Err(err).Msg("credentials validation failed")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	if fields != nil {
		page.Errors = fields
		s.render(w, "login.html", page)
		return
	}

	user, err := s.client.Login(r.Context(), creds)
	if err != nil {
		page.Alert = upstreamMessage(err, "Could not log in. Please try again.")
		s.render(w, "login.html", page)
		return
	}

	s.setUser(user)
	// Session established; pull the rating state the catalog merges in.
	// A failure here fails soft and the catalog renders without scores.
	_ = s.ratings.LoadAll(r.Context())
	http.Redirect(w, r, "/movies", http.StatusSeeOther)
}

func (s *Server) handleRegisterForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, "register.html", view.FormPage{
		Page:   view.Page{Title: "Register", User: s.currentUser()},
		Values: map[string]string{},
		Errors: map[string]string{},
	})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	reg := domain.Registration{
		Username: strings.TrimSpace(r.PostFormValue("username")),
		Email:    strings.TrimSpace(r.PostFormValue("email")),
		Password: r.PostFormValue("password"),
	}

	page := view.FormPage{
		Page:   view.Page{Title: "Register"},
		Values: map[string]string{"username": reg.Username, "email": reg.Email},
		Errors: map[string]string{},
	}

	fields, err := validation.Struct(reg)
	if err != nil {
		s.logger.Error().Err(err).Msg("registration validation failed")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	if fields != nil {
		page.Errors = fields
		s.render(w, "register.html", page)
		return
	}

	user, err := s.client.Register(r.Context(), reg)
	if err != nil {
		page.Alert = upstreamMessage(err, "Could not create the account. Please try again.")
		s.render(w, "register.html", page)
		return
	}

	s.setUser(user)
	_ = s.ratings.LoadAll(r.Context())
	http.Redirect(w, r, "/movies", http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.client.Logout(r.Context()); err != nil {
		s.logger.Warn().Err(err).Msg("upstream logout failed")
	}
	s.clearUser()
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (s *Server) handleProfileForm(w http.ResponseWriter, r *http.Request) {
	if s.requireUser(w, r) == nil {
		return
	}

	page := view.FormPage{
		Page:   view.Page{Title: "Profile", User: s.currentUser()},
		Values: map[string]string{},
		Errors: map[string]string{},
	}
	user, err := s.client.Profile(r.Context())
	if err != nil {
		if s.redirectOnExpiry(w, r, err) {
			return
		}
		page.Alert = "Could not load your profile. Please try again."
	} else {
		page.Values["username"] = user.Username
		page.Values["email"] = user.Email
	}
	s.render(w, "profile.html", page)
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	if s.requireUser(w, r) == nil {
		return
	}

	update := domain.ProfileUpdate{
		Username: strings.TrimSpace(r.PostFormValue("username")),
		Email:    strings.TrimSpace(r.PostFormValue("email")),
		Password: r.PostFormValue("password"),
	}

	page := view.FormPage{
		Page:   view.Page{Title: "Profile", User: s.currentUser()},
		Values: map[string]string{"username": update.Username, "email": update.Email},
		Errors: map[string]string{},
	}

	fields, err := validation.Struct(update)
	if err != nil {
		s.logger.Error().Err(err).Msg("profile validation failed")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	if fields != nil {
		page.Errors = fields
		s.render(w, "profile.html", page)
		return
	}

	user, err := s.client.UpdateProfile(r.Context(), update)
	if err != nil {
		if s.redirectOnExpiry(w, r, err) {
			return
		}
		page.Alert = upstreamMessage(err, "Could not save your profile. Please try again.")
		s.render(w, "profile.html", page)
		return
	}

	s.setUser(user)
	page.Page.User = user
	page.Alert = "Profile saved."
	s.render(w, "profile.html", page)
}

// upstreamMessage surfaces the server's own error message when one exists,
// falling back to a generic line for transport failures.
func upstreamMessage(err error, fallback string) string {
	var reqErr *api.RequestError
	if errors.As(err, &reqErr) && reqErr.Message != "" {
		return reqErr.Message
	}
	return fallback
}
