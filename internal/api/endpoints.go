package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	json "github.com/goccy/go-json"

	"github.com/cinemate/cinemate-web/internal/domain"
)

// SearchParams are the structured search filters sent to the catalog search
// endpoint. Zero-valued fields are omitted from the query string entirely,
// never sent as empty strings.
type SearchParams struct {
	Query     string
	Genre     string
	YearMin   int
	YearMax   int
	RatingMin float64
	Sort      string
}

func (p SearchParams) encode() string {
	values := url.Values{}
	if p.Query != "" {
		values.Set("q", p.Query)
	}
	if p.Genre != "" {
		values.Set("genre", p.Genre)
	}
	if p.YearMin > 0 {
		values.Set("year_min", strconv.Itoa(p.YearMin))
	}
	if p.YearMax > 0 {
		values.Set("year_max", strconv.Itoa(p.YearMax))
	}
	if p.RatingMin > 0 {
		values.Set("rating_min", strconv.FormatFloat(p.RatingMin, 'f', -1, 64))
	}
	if p.Sort != "" {
		values.Set("sort", p.Sort)
	}
	return values.Encode()
}

// MyRatings is the bulk my-ratings payload: the flat rating list plus the
// server's total count.
type MyRatings struct {
	Ratings []domain.Rating `json:"ratings"`
	Total   int             `json:"total_ratings"`
}

type moviesEnvelope struct {
	Movies []domain.Movie `json:"movies"`
}

type ratingsEnvelope struct {
	Ratings []domain.Rating `json:"ratings"`
}

type ratingDetailsEnvelope struct {
	Ratings []domain.RatingDetail `json:"ratings"`
}

type ratingEnvelope struct {
	Rating domain.Rating `json:"rating"`
}

type recommendationsEnvelope struct {
	Recommendations []domain.RecommendationItem `json:"recommendations"`
}

type userEnvelope struct {
	User domain.User `json:"user"`
}

func decode[T any](raw json.RawMessage) (T, error) {
	var out T
	if raw == nil {
		return out, fmt.Errorf("api: empty response where payload expected")
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("api: decode response: %w", err)
	}
	return out, nil
}

// Login authenticates and establishes the session cookie.
func (c *Client) Login(ctx context.Context, creds domain.Credentials) (*domain.User, error) {
	raw, err := c.request(ctx, http.MethodPost, "/auth/login/", creds)
	if err != nil {
		return nil, err
	}
	env, err := decode[userEnvelope](raw)
	if err != nil {
		return nil, err
	}
	return &env.User, nil
}

// Register creates an account and establishes the session cookie.
func (c *Client) Register(ctx context.Context, reg domain.Registration) (*domain.User, error) {
	raw, err := c.request(ctx, http.MethodPost, "/auth/register/", reg)
	if err != nil {
		return nil, err
	}
	env, err := decode[userEnvelope](raw)
	if err != nil {
		return nil, err
	}
	return &env.User, nil
}

// Logout terminates the server-side session.
func (c *Client) Logout(ctx context.Context) error {
	_, err := c.request(ctx, http.MethodPost, "/auth/logout/", nil)
	return err
}

// Movies fetches the plain unfiltered catalog listing.
func (c *Client) Movies(ctx context.Context) ([]domain.Movie, error) {
	raw, err := c.request(ctx, http.MethodGet, "/movies/", nil)
	if err != nil {
		return nil, err
	}
	env, err := decode[moviesEnvelope](raw)
	if err != nil {
		return nil, err
	}
	return env.Movies, nil
}

// SearchMovies runs a server-side filtered and sorted catalog search.
func (c *Client) SearchMovies(ctx context.Context, params SearchParams) ([]domain.Movie, error) {
	endpoint := "/movies/search/"
	if query := params.encode(); query != "" {
		endpoint += "?" + query
	}
	raw, err := c.request(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	env, err := decode[moviesEnvelope](raw)
	if err != nil {
		return nil, err
	}
	return env.Movies, nil
}

// Movie fetches a single movie with the viewing user's rating attached.
func (c *Client) Movie(ctx context.Context, id int64) (*domain.MovieDetail, error) {
	raw, err := c.request(ctx, http.MethodGet, fmt.Sprintf("/movies/%d/", id), nil)
	if err != nil {
		return nil, err
	}
	detail, err := decode[domain.MovieDetail](raw)
	if err != nil {
		return nil, err
	}
	return &detail, nil
}

// MovieRatings fetches all ratings recorded for one movie.
func (c *Client) MovieRatings(ctx context.Context, id int64) ([]domain.Rating, error) {
	raw, err := c.request(ctx, http.MethodGet, fmt.Sprintf("/movies/%d/ratings/", id), nil)
	if err != nil {
		return nil, err
	}
	env, err := decode[ratingsEnvelope](raw)
	if err != nil {
		return nil, err
	}
	return env.Ratings, nil
}

// MyRatings fetches the user's ratings in flat form.
func (c *Client) MyRatings(ctx context.Context) (*MyRatings, error) {
	raw, err := c.request(ctx, http.MethodGet, "/ratings/mine/", nil)
	if err != nil {
		return nil, err
	}
	out, err := decode[MyRatings](raw)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// MyRatingDetails fetches the user's ratings joined with their movies.
func (c *Client) MyRatingDetails(ctx context.Context) ([]domain.RatingDetail, error) {
	raw, err := c.request(ctx, http.MethodGet, "/ratings/mine/details/", nil)
	if err != nil {
		return nil, err
	}
	env, err := decode[ratingDetailsEnvelope](raw)
	if err != nil {
		return nil, err
	}
	return env.Ratings, nil
}

type scorePayload struct {
	Rating int `json:"rating"`
}

// RateMovie creates a rating and returns the persisted entry including its
// server-assigned id.
func (c *Client) RateMovie(ctx context.Context, movieID int64, score int) (*domain.Rating, error) {
	raw, err := c.request(ctx, http.MethodPost, fmt.Sprintf("/ratings/%d/", movieID), scorePayload{Rating: score})
	if err != nil {
		return nil, err
	}
	env, err := decode[ratingEnvelope](raw)
	if err != nil {
		return nil, err
	}
	return &env.Rating, nil
}

// EditRating changes the score of an existing rating.
func (c *Client) EditRating(ctx context.Context, ratingID int64, score int) error {
	_, err := c.request(ctx, http.MethodPut, fmt.Sprintf("/ratings/%d/edit/", ratingID), scorePayload{Rating: score})
	return err
}

// DeleteRating removes a rating.
func (c *Client) DeleteRating(ctx context.Context, ratingID int64) error {
	_, err := c.request(ctx, http.MethodDelete, fmt.Sprintf("/ratings/%d/delete/", ratingID), nil)
	return err
}

// Recommendations fetches the personalized or fallback recommendation list.
// The payload shape is identical in both modes; the caller decides how to
// label it from the user's rating count.
func (c *Client) Recommendations(ctx context.Context) ([]domain.RecommendationItem, error) {
	raw, err := c.request(ctx, http.MethodGet, "/recommendations/mine/", nil)
	if err != nil {
		return nil, err
	}
	env, err := decode[recommendationsEnvelope](raw)
	if err != nil {
		return nil, err
	}
	return env.Recommendations, nil
}

// Profile fetches the authenticated account.
func (c *Client) Profile(ctx context.Context) (*domain.User, error) {
	raw, err := c.request(ctx, http.MethodGet, "/profile/", nil)
	if err != nil {
		return nil, err
	}
	user, err := decode[domain.User](raw)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateProfile saves profile edits, including an optional password change.
func (c *Client) UpdateProfile(ctx context.Context, update domain.ProfileUpdate) (*domain.User, error) {
	raw, err := c.request(ctx, http.MethodPut, "/profile/", update)
	if err != nil {
		return nil, err
	}
	user, err := decode[domain.User](raw)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// AdminAddMovie creates a movie record.
func (c *Client) AdminAddMovie(ctx context.Context, input domain.MovieInput) (*domain.Movie, error) {
	raw, err := c.request(ctx, http.MethodPost, "/admin/movies/add/", input)
	if err != nil {
		return nil, err
	}
	movie, err := decode[domain.Movie](raw)
	if err != nil {
		return nil, err
	}
	return &movie, nil
}

// AdminUpdateMovie edits a movie record.
func (c *Client) AdminUpdateMovie(ctx context.Context, id int64, input domain.MovieInput) (*domain.Movie, error) {
	raw, err := c.request(ctx, http.MethodPut, fmt.Sprintf("/admin/movies/%d/edit/", id), input)
	if err != nil {
		return nil, err
	}
	movie, err := decode[domain.Movie](raw)
	if err != nil {
		return nil, err
	}
	return &movie, nil
}

// AdminDeleteMovie removes a movie record.
func (c *Client) AdminDeleteMovie(ctx context.Context, id int64) error {
	_, err := c.request(ctx, http.MethodDelete, fmt.Sprintf("/admin/movies/%d/delete/", id), nil)
	return err
}
