package pagination

import (
	"net/url"
	"strconv"
)

// QueryMode selects the query parameters of the next page request. It is
// either a TimeWindow (first page) or a Cursor (every later page), so a
// request never carries both from/to and cursor.
type QueryMode interface {
	// Values renders the mode as query parameters
	Values() url.Values
	queryMode()
}

// TimeWindow requests the first page of the [From, To] window
type TimeWindow struct {
	From  string
	To    string
	Limit int
}

// Cursor requests the page after the one that returned Cursor as page.next
type Cursor struct {
	Cursor string
	Limit  int
}

// Values returns from, to and limit
func (w TimeWindow) Values() url.Values {
	return url.Values{
		"from":  {w.From},
		"to":    {w.To},
		"limit": {strconv.Itoa(w.Limit)},
	}
}

// Values returns cursor and limit
func (c Cursor) Values() url.Values {
	return url.Values{
		"cursor": {c.Cursor},
		"limit":  {strconv.Itoa(c.Limit)},
	}
}

func (TimeWindow) queryMode() {}
func (Cursor) queryMode()     {}

// State is the progress of one FetchAll call
type State struct {
	// PageIndex is the 1-based index of the page being fetched
	PageIndex int
	// Mode produces the parameters of the next request
	Mode QueryMode
	// RecordCount is the running total of items in the data arrays
	RecordCount int
}
