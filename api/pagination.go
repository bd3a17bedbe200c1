package api

import (
	"net/http"
	"strconv"

	"github.com/feoblog/feoblog/store"
)

const (
	defaultPageCount = 50
	maxPageCount     = 1000
)

// Pagination holds the parsed `before`/`after`/`count` query parameters
// described in spec §6. `before` wins if both `before` and `after` are
// given.
type Pagination struct {
	Span  store.TimeSpan
	Count int
}

// parsePagination reads the pagination query parameters off a request,
// defaulting to "most recent N" when neither before nor after is given.
func parsePagination(r *http.Request) Pagination {
	q := r.URL.Query()
	count := defaultPageCount
	if raw := q.Get("count"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			count = n
		}
	}
	if count < 1 {
		count = 1
	}
	if count > maxPageCount {
		count = maxPageCount
	}

	if raw := q.Get("before"); raw != "" {
		if ts, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return Pagination{Span: store.Before(ts), Count: count}
		}
	}
	if raw := q.Get("after"); raw != "" {
		if ts, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return Pagination{Span: store.After(ts), Count: count}
		}
	}
	return Pagination{Span: store.Before(maxTimestamp), Count: count}
}

// maxTimestamp stands in for "now, or later" when no cursor was given,
// so an unqualified GET returns the most recent page.
const maxTimestamp = int64(1) << 62
