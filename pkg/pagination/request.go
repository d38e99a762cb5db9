package pagination

import (
	"fmt"
	"maps"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Condition tells the server whether a record must match any or all keywords.
type Condition string

const (
	ConditionOr  Condition = "or"
	ConditionAnd Condition = "and"
)

// Validate reports whether c is a known match condition.
func (c Condition) Validate() error {
	switch c {
	case ConditionOr, ConditionAnd:
		return nil
	default:
		return fmt.Errorf("%w: keywords condition %q must be %q or %q",
			ErrInvalidArgument, c, ConditionOr, ConditionAnd)
	}
}

// Query parameter names understood by the history endpoints.
const (
	ParamStartDate         = "startDate"
	ParamEndDate           = "endDate"
	ParamInterval          = "interval"
	ParamLimit             = "limit"
	ParamKeywords          = "keywords"
	ParamKeywordsCondition = "keywordsCondition"
)

var reservedParams = []string{
	ParamStartDate, ParamEndDate, ParamInterval, ParamLimit, ParamKeywords, ParamKeywordsCondition,
}

// Filters are the query filters of the first page request.
type Filters struct {
	// StartDate and EndDate are ISO-8601 timestamps, e.g. 2024-07-01T00:00:00.000Z.
	StartDate string
	EndDate   string

	// Interval is the aggregation interval in minutes.
	Interval int

	// Limit is the page size.
	Limit int

	// Keywords is a comma separated match expression.
	Keywords string

	// Condition combines Keywords; required when Keywords is set.
	Condition Condition

	// Extra holds further filters such as "source" or "language".
	Extra map[string]string
}

// Params encodes the filters as query parameters. Unset optional filters are
// omitted.
func (f Filters) Params() url.Values {
	v := url.Values{}
	if f.StartDate != "" {
		v.Set(ParamStartDate, f.StartDate)
	}
	if f.EndDate != "" {
		v.Set(ParamEndDate, f.EndDate)
	}
	v.Set(ParamInterval, strconv.Itoa(f.Interval))
	v.Set(ParamLimit, strconv.Itoa(f.Limit))
	if f.Keywords != "" {
		v.Set(ParamKeywords, f.Keywords)
	}
	if f.Condition != "" {
		v.Set(ParamKeywordsCondition, string(f.Condition))
	}
	for key, value := range f.Extra {
		v.Set(key, value)
	}
	return v
}

// Validate checks the filters.
func (f Filters) Validate() error {
	if f.Interval <= 0 {
		return fmt.Errorf("%w: interval must be a positive integer (got %d)", ErrInvalidArgument, f.Interval)
	}
	if f.Limit <= 0 {
		return fmt.Errorf("%w: limit must be a positive integer (got %d)", ErrInvalidArgument, f.Limit)
	}

	start, err := parseDate(ParamStartDate, f.StartDate)
	if err != nil {
		return err
	}
	end, err := parseDate(ParamEndDate, f.EndDate)
	if err != nil {
		return err
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return fmt.Errorf("%w: endDate %s is before startDate %s", ErrInvalidArgument, f.EndDate, f.StartDate)
	}

	if f.Keywords != "" || f.Condition != "" {
		if err := f.Condition.Validate(); err != nil {
			return err
		}
	}

	for key := range f.Extra {
		for _, reserved := range reservedParams {
			if key == reserved {
				return fmt.Errorf("%w: extra filter %q shadows a built-in filter", ErrInvalidArgument, key)
			}
		}
	}
	return nil
}

func parseDate(name, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s %q is not an ISO-8601 timestamp", ErrInvalidArgument, name, value)
	}
	return t, nil
}

// RequestSpec describes one paginated resource.
// It is a value; the With* methods return modified copies.
type RequestSpec struct {
	// Endpoint is the absolute URL of the first page.
	Endpoint string

	// Filters go out with the first page request only.
	Filters Filters
}

// Validate checks the spec before any network call.
func (s RequestSpec) Validate() error {
	if strings.TrimSpace(s.Endpoint) == "" {
		return fmt.Errorf("%w: endpoint is required", ErrInvalidArgument)
	}
	u, err := url.Parse(s.Endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: endpoint %q is not an absolute http(s) URL", ErrInvalidArgument, s.Endpoint)
	}
	return s.Filters.Validate()
}

// WithEndpoint returns a copy of s pointing at endpoint.
func (s RequestSpec) WithEndpoint(endpoint string) RequestSpec {
	s.Endpoint = endpoint
	s.Filters.Extra = maps.Clone(s.Filters.Extra)
	return s
}

// WithKeywords returns a copy of s matching keywords, joined with commas, under
// condition.
func (s RequestSpec) WithKeywords(keywords []string, condition Condition) RequestSpec {
	s.Filters.Keywords = strings.Join(keywords, ",")
	s.Filters.Condition = condition
	s.Filters.Extra = maps.Clone(s.Filters.Extra)
	return s
}
