package pagination

import "time"

// EndDateField is the record field holding the end of an aggregation bucket.
const EndDateField = "endDate"

// Summary describes a fetched result for reporting.
type Summary struct {
	Pages int
	Items int

	// FirstEndDate and LastEndDate are zero when the record carries no
	// parseable endDate.
	FirstEndDate time.Time
	LastEndDate  time.Time
}

// Summarize reports page and item counts and the endDate of the first and last
// items. It returns ErrEmptyResult when there are no items.
func Summarize(r *Result) (Summary, error) {
	if r == nil || len(r.Items) == 0 {
		return Summary{}, ErrEmptyResult
	}

	s := Summary{Pages: r.Pages, Items: len(r.Items)}
	if t, ok := RecordTime(r.Items[0], EndDateField); ok {
		s.FirstEndDate = t
	}
	if t, ok := RecordTime(r.Items[len(r.Items)-1], EndDateField); ok {
		s.LastEndDate = t
	}
	return s, nil
}
