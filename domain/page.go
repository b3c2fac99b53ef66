package domain

const (
	DefaultPage     = 1
	DefaultLimit    = 20
	DefaultMaxLimit = 100
)

// Page is an offset based window, shared by the record store and the search index.
type Page struct {
	Number int
	Limit  int
}

// NewPage clamps raw pagination values.
// A page below 1 becomes the first page, a limit below 1 becomes DefaultLimit
// and a limit above maxLimit is capped. A non-positive maxLimit means DefaultMaxLimit.
func NewPage(number, limit, maxLimit int) Page {
	if maxLimit < 1 {
		maxLimit = DefaultMaxLimit
	}
	if number < 1 {
		number = DefaultPage
	}
	switch {
	case limit < 1:
		limit = DefaultLimit
	case limit > maxLimit:
		limit = maxLimit
	}
	return Page{Number: number, Limit: limit}
}

// Skip is the number of entries before the page.
func (p Page) Skip() int {
	return (p.Number - 1) * p.Limit
}
