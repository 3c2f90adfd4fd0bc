package domain

// Movie is the catalog entity as served by the upstream API. The aggregate
// fields AverageRating and RatingCount are computed and owned by the server;
// the client treats them as read-only snapshots.
type Movie struct {
	ID            int64    `json:"id"`
	Title         string   `json:"title"`
	Year          int      `json:"year"`
	Genre         string   `json:"genre"`
	Director      string   `json:"director,omitempty"`
	Description   string   `json:"description,omitempty"`
	PosterURL     string   `json:"poster_url,omitempty"`
	AverageRating *float64 `json:"average_rating,omitempty"`
	RatingCount   *int64   `json:"rating_count,omitempty"`
}

// MovieDetail extends Movie with the viewing user's own rating, as returned
// by the single-movie endpoint.
type MovieDetail struct {
	Movie
	UserRating   *int   `json:"user_rating,omitempty"`
	UserRatingID *int64 `json:"user_rating_id,omitempty"`
}

// MovieInput carries the fields submitted when creating or editing a movie
// record through the admin panel.
type MovieInput struct {
	Title       string `json:"title" validate:"required,max=512"`
	Genre       string `json:"genre" validate:"required,max=512"`
	Year        int    `json:"year" validate:"required,gte=1888,lte=2100"`
	Director    string `json:"director,omitempty" validate:"max=512"`
	Description string `json:"description,omitempty" validate:"max=2048"`
	PosterURL   string `json:"poster_url,omitempty" validate:"omitempty,url"`
}
