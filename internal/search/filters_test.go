package search

import (
	"testing"
)

func TestParseSort(t *testing.T) {
	cases := []struct {
		raw  string
		want Sort
	}{
		{"title", SortTitle},
		{"year", SortYear},
		{"rating", SortRating},
		{"", SortTitle},
		{"bogus", SortTitle},
	}
	for _, c := range cases {
		if got := ParseSort(c.raw); got != c.want {
			t.Fatalf("ParseSort(%q) = %q, want %q", c.raw, got, c.want)
		}
	}
}

func TestFiltersActive(t *testing.T) {
	if Default().Active() {
		t.Fatalf("default filters must be inactive")
	}
	cases := []Filters{
		{Query: "Matrix", Sort: SortTitle},
		{Genre: "Sci-Fi", Sort: SortTitle},
		{YearMin: 1990, Sort: SortTitle},
		{YearMax: 2000, Sort: SortTitle},
		{RatingMin: 3.5, Sort: SortTitle},
		{Sort: SortRating},
	}
	for i, f := range cases {
		if !f.Active() {
			t.Fatalf("case %d: expected active: %+v", i, f)
		}
	}
}

func TestParamsOmitDefaults(t *testing.T) {
	f := Filters{Query: "Matrix", Sort: SortTitle}
	p := f.Params()

	if p.Query != "Matrix" {
		t.Fatalf("Query = %q", p.Query)
	}
	if p.Genre != "" || p.YearMin != 0 || p.YearMax != 0 || p.RatingMin != 0 {
		t.Fatalf("default fields leaked into params: %+v", p)
	}
	if p.Sort != "" {
		t.Fatalf("default title sort must be omitted, got %q", p.Sort)
	}
}

func TestParamsCarryNonDefaultSort(t *testing.T) {
	p := Filters{Sort: SortRating}.Params()
	if p.Sort != "rating" {
		t.Fatalf("Sort = %q, want rating", p.Sort)
	}
}
