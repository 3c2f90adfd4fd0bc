// Package search holds the catalog filter state and the debounced controller
// that turns filter changes into upstream fetches.
package search

import (
	"github.com/cinemate/cinemate-web/internal/api"
)

// Sort is the closed set of server-side sort keys. Ordering is delegated
// entirely to the server; the client never re-sorts locally.
type Sort string

const (
	SortTitle  Sort = "title"
	SortYear   Sort = "year"
	SortRating Sort = "rating"
)

// ParseSort maps a raw value onto the sort enumeration, falling back to the
// title default for anything unknown.
func ParseSort(raw string) Sort {
	switch Sort(raw) {
	case SortYear:
		return SortYear
	case SortRating:
		return SortRating
	default:
		return SortTitle
	}
}

// Filters is the structured search state. It is a pure value object; the
// zero-with-default-sort value means no filters are active.
type Filters struct {
	Query     string
	Genre     string
	YearMin   int
	YearMax   int
	RatingMin float64
	Sort      Sort
}

// Default returns the empty filter state.
func Default() Filters {
	return Filters{Sort: SortTitle}
}

// Active reports whether any field deviates from its default, which decides
// between the plain listing and the server-side search.
func (f Filters) Active() bool {
	return f.Query != "" ||
		f.Genre != "" ||
		f.YearMin > 0 ||
		f.YearMax > 0 ||
		f.RatingMin > 0 ||
		(f.Sort != "" && f.Sort != SortTitle)
}

// Params converts the filter state to search parameters. Default values are
// left zero so they are omitted from the query string rather than sent as
// empty strings.
func (f Filters) Params() api.SearchParams {
	p := api.SearchParams{
		Query:     f.Query,
		Genre:     f.Genre,
		YearMin:   f.YearMin,
		YearMax:   f.YearMax,
		RatingMin: f.RatingMin,
	}
	if f.Sort != "" && f.Sort != SortTitle {
		p.Sort = string(f.Sort)
	}
	return p
}
