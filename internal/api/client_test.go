package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cinemate/cinemate-web/internal/domain"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := New(srv.URL, 2*time.Second)
	if err != nil {
		t.Fatalf("create client: %v", err)
	}
	return client, srv
}

func TestRequestExtractsErrorBody(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"score out of range"}`))
	}))

	_, err := client.Movies(context.Background())
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("want *RequestError, got %v", err)
	}
	if reqErr.Status != http.StatusBadRequest {
		t.Fatalf("status = %d", reqErr.Status)
	}
	if reqErr.Message != "score out of range" {
		t.Fatalf("message = %q", reqErr.Message)
	}
}

func TestRequestFallsBackToStatusText(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("<html>not json</html>"))
	}))

	_, err := client.Movies(context.Background())
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("want *RequestError, got %v", err)
	}
	if reqErr.Message != http.StatusText(http.StatusInternalServerError) {
		t.Fatalf("message = %q", reqErr.Message)
	}
}

func TestRequestToleratesEmptyBodies(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
	}{
		{"no content", http.StatusNoContent, ""},
		{"blank ok", http.StatusOK, ""},
		{"whitespace ok", http.StatusOK, "  \n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))

			if err := client.DeleteRating(context.Background(), 1); err != nil {
				t.Fatalf("empty body must not fail: %v", err)
			}
		})
	}
}

func TestUnauthorizedTriggersSessionExpiry(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	fired := false
	client.OnSessionExpired = func() { fired = true }

	_, err := client.MyRatings(context.Background())
	if !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("want ErrSessionExpired, got %v", err)
	}
	if !fired {
		t.Fatalf("session expiry hook never fired")
	}
}

func TestUnauthorizedOnAuthEndpointIsPlainError(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid credentials"}`))
	}))

	fired := false
	client.OnSessionExpired = func() { fired = true }

	_, err := client.Login(context.Background(), domain.Credentials{Email: "a@b.com", Password: "password1"})
	if errors.Is(err, ErrSessionExpired) {
		t.Fatalf("auth endpoints must not map 401 to session expiry")
	}
	var reqErr *RequestError
	if !errors.As(err, &reqErr) || reqErr.Message != "invalid credentials" {
		t.Fatalf("unexpected error: %v", err)
	}
	if fired {
		t.Fatalf("session expiry hook fired on login failure")
	}
}

func TestSearchOmitsEmptyParams(t *testing.T) {
	var rawQuery string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rawQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"movies":[]}`))
	}))

	_, err := client.SearchMovies(context.Background(), SearchParams{Query: "Matrix"})
	if err != nil {
		t.Fatalf("SearchMovies: %v", err)
	}
	if rawQuery != "q=Matrix" {
		t.Fatalf("query string = %q, want exactly q=Matrix", rawQuery)
	}
}

func TestSearchEncodesAllParams(t *testing.T) {
	var got string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.RawQuery
		_, _ = w.Write([]byte(`{"movies":[]}`))
	}))

	_, err := client.SearchMovies(context.Background(), SearchParams{
		Query:     "blade",
		Genre:     "Sci-Fi",
		YearMin:   1980,
		YearMax:   1990,
		RatingMin: 3.5,
		Sort:      "rating",
	})
	if err != nil {
		t.Fatalf("SearchMovies: %v", err)
	}
	want := "genre=Sci-Fi&q=blade&rating_min=3.5&sort=rating&year_max=1990&year_min=1980"
	if got != want {
		t.Fatalf("query string = %q, want %q", got, want)
	}
}

func TestSessionCookiePersistsAcrossRequests(t *testing.T) {
	var cookieSeen string
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/login/", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "sessionid", Value: "abc123", Path: "/"})
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"user":{"id":1,"username":"ana","email":"ana@example.com"}}`))
	})
	mux.HandleFunc("/api/ratings/mine/", func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("sessionid"); err == nil {
			cookieSeen = c.Value
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ratings":[],"total_ratings":0}`))
	})

	client, _ := newTestClient(t, mux)

	if _, err := client.Login(context.Background(), domain.Credentials{Email: "ana@example.com", Password: "password1"}); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if _, err := client.MyRatings(context.Background()); err != nil {
		t.Fatalf("MyRatings: %v", err)
	}
	if cookieSeen != "abc123" {
		t.Fatalf("session cookie not propagated, saw %q", cookieSeen)
	}
}

func TestSanitizeEndpoint(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"/movies/", "/movies/"},
		{"/movies/123/", "/movies/:id/"},
		{"/ratings/42/edit/", "/ratings/:id/edit/"},
		{"/movies/search/?q=Matrix", "/movies/search/"},
		{"/admin/movies/7/delete/", "/admin/movies/:id/delete/"},
	}
	for _, tc := range cases {
		if got := sanitizeEndpoint(tc.in); got != tc.want {
			t.Fatalf("sanitizeEndpoint(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestMovieDetailAndRatingsDecode(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/movies/5/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":5,"title":"Stalker","year":1979,"genre":"Sci-Fi",
			"average_rating":4.6,"rating_count":12,"user_rating":5,"user_rating_id":31}`))
	})
	mux.HandleFunc("/api/movies/5/ratings/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ratings":[{"rating_id":31,"movie_id":5,"score":5},{"rating_id":40,"movie_id":5,"score":4}]}`))
	})
	client, _ := newTestClient(t, mux)

	detail, err := client.Movie(context.Background(), 5)
	if err != nil {
		t.Fatalf("Movie: %v", err)
	}
	if detail.Title != "Stalker" || detail.UserRating == nil || *detail.UserRating != 5 {
		t.Fatalf("unexpected detail: %+v", detail)
	}
	if detail.RatingCount == nil || *detail.RatingCount != 12 {
		t.Fatalf("rating count not decoded: %+v", detail)
	}

	all, err := client.MovieRatings(context.Background(), 5)
	if err != nil {
		t.Fatalf("MovieRatings: %v", err)
	}
	if len(all) != 2 || all[0].RatingID != 31 || all[1].Score != 4 {
		t.Fatalf("unexpected ratings: %+v", all)
	}
}

func TestHealth(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health/" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))

	if err := client.Health(context.Background()); err != nil {
		t.Fatalf("Health: %v", err)
	}
}
