package domain

// PendingRatingID marks a rating that has been applied locally but not yet
// confirmed by the server.
const PendingRatingID int64 = -1

// Rating is the user's score for a single movie. RatingID is assigned by the
// server and stays at PendingRatingID while a create request is in flight.
type Rating struct {
	RatingID  int64  `json:"rating_id"`
	MovieID   int64  `json:"movie_id"`
	Score     int    `json:"score"`
	CreatedAt string `json:"created_at,omitempty"`
}

// Confirmed reports whether the rating has a server-assigned identity.
func (r Rating) Confirmed() bool {
	return r.RatingID != PendingRatingID
}

// RatingDetail is a rating joined server-side with its movie record, as
// returned by the detailed my-ratings endpoint.
type RatingDetail struct {
	RatingID  int64  `json:"rating_id"`
	Score     int    `json:"score"`
	CreatedAt string `json:"created_at,omitempty"`
	Movie     Movie  `json:"movie"`
}
