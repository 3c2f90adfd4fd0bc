package domain

// RecommendationItem is one entry of the recommendation list. PredictedScore
// is a personalized score when the user has rating history, or the movie's
// global average relabeled as the fallback signal when they do not; the
// payload shape is identical in both modes.
type RecommendationItem struct {
	ID             int64   `json:"id"`
	PredictedScore float64 `json:"predicted_score"`
	Movie          Movie   `json:"movie"`
}
