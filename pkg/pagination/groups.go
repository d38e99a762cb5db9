package pagination

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Format selects how CollectKeywordGroups hands back its results.
type Format string

const (
	// FormatStructured returns the nested mapping only. It is the default.
	FormatStructured Format = "structured"

	// FormatText also renders the nested mapping as indented JSON text.
	FormatText Format = "text"
)

// Validate reports whether f is a known output format. The zero value means
// FormatStructured.
func (f Format) Validate() error {
	switch f {
	case "", FormatStructured, FormatText:
		return nil
	default:
		return fmt.Errorf("%w: output format %q must be %q or %q",
			ErrInvalidArgument, f, FormatStructured, FormatText)
	}
}

// KeywordGroup is a labelled set of synonymous search terms.
type KeywordGroup struct {
	Label    string   `json:"label" mapstructure:"label"`
	Keywords []string `json:"keywords" mapstructure:"keywords"`
}

// ValidateGroups checks that groups form a well-formed label to keywords
// mapping: at least one group, unique non-empty labels, non-empty keywords.
func ValidateGroups(groups []KeywordGroup) error {
	if len(groups) == 0 {
		return fmt.Errorf("%w: at least one keyword group is required", ErrInvalidArgument)
	}

	seen := make(map[string]struct{}, len(groups))
	for i, g := range groups {
		if strings.TrimSpace(g.Label) == "" {
			return fmt.Errorf("%w: keyword group %d has no label", ErrInvalidArgument, i)
		}
		if _, dup := seen[g.Label]; dup {
			return fmt.Errorf("%w: duplicate keyword group label %q", ErrInvalidArgument, g.Label)
		}
		seen[g.Label] = struct{}{}

		if len(g.Keywords) == 0 {
			return fmt.Errorf("%w: keyword group %q has no keywords", ErrInvalidArgument, g.Label)
		}
		for _, kw := range g.Keywords {
			if strings.TrimSpace(kw) == "" {
				return fmt.Errorf("%w: keyword group %q has an empty keyword", ErrInvalidArgument, g.Label)
			}
		}
	}
	return nil
}

// GroupResults maps a keyword group label to its aggregated items.
type GroupResults map[string][]Record

// EndpointResults maps an endpoint URL to its per-group results.
type EndpointResults map[string]GroupResults

// GroupRequest describes a keyword-group batch.
type GroupRequest struct {
	// Endpoints fans the batch out over several endpoints. Empty means the
	// single endpoint of Spec.
	Endpoints []string

	// Spec carries the shared filters. Its keywords are replaced per group.
	Spec RequestSpec

	// Groups are fetched in slice order.
	Groups []KeywordGroup

	Condition Condition
	Format    Format
}

// Collection is the outcome of CollectKeywordGroups.
type Collection struct {
	// Groups is set for a single-endpoint request.
	Groups GroupResults

	// ByEndpoint is set when the request listed Endpoints.
	ByEndpoint EndpointResults

	// Text is the indented JSON rendering of Value, set for FormatText.
	Text string
}

// Value returns the nested mapping held by the collection.
func (c *Collection) Value() any {
	if c.ByEndpoint != nil {
		return c.ByEndpoint
	}
	return c.Groups
}

// specs expands the request into one validated spec per endpoint.
func (r GroupRequest) specs() ([]RequestSpec, error) {
	if err := r.Format.Validate(); err != nil {
		return nil, err
	}
	if err := ValidateGroups(r.Groups); err != nil {
		return nil, err
	}
	if err := r.Condition.Validate(); err != nil {
		return nil, err
	}

	endpoints := r.Endpoints
	if len(endpoints) == 0 {
		endpoints = []string{r.Spec.Endpoint}
	}

	specs := make([]RequestSpec, 0, len(endpoints))
	seen := make(map[string]struct{}, len(endpoints))
	for _, endpoint := range endpoints {
		if _, dup := seen[endpoint]; dup {
			return nil, fmt.Errorf("%w: duplicate endpoint %q", ErrInvalidArgument, endpoint)
		}
		seen[endpoint] = struct{}{}

		spec := r.Spec.WithEndpoint(endpoint)
		// Any group's keywords exercise the same checks.
		if err := spec.WithKeywords(r.Groups[0].Keywords, r.Condition).Validate(); err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// CollectKeywordGroups fetches every keyword group, for every endpoint, one
// after the other in input order.
//
// All arguments are validated before the first request. A failing group keeps
// its partial items and does not stop the groups or endpoints after it; every
// failure is joined into the returned error.
func (f *Fetcher) CollectKeywordGroups(ctx context.Context, req GroupRequest) (*Collection, error) {
	specs, err := req.specs()
	if err != nil {
		return nil, err
	}

	collection := &Collection{}
	var errs []error

	if len(req.Endpoints) == 0 {
		groups, err := f.fetchGroups(ctx, specs[0], req.Groups, req.Condition)
		collection.Groups = groups
		errs = append(errs, err)
	} else {
		collection.ByEndpoint = make(EndpointResults, len(specs))
		for _, spec := range specs {
			f.logger.Info().
				Str("endpoint", spec.Endpoint).
				Int("groups", len(req.Groups)).
				Msg("Fetching keyword groups")

			groups, err := f.fetchGroups(ctx, spec, req.Groups, req.Condition)
			collection.ByEndpoint[spec.Endpoint] = groups
			errs = append(errs, err)
		}
	}

	if req.Format == FormatText {
		text, renderErr := Render(collection.Value())
		if renderErr != nil {
			errs = append(errs, renderErr)
		}
		collection.Text = text
	}

	return collection, errors.Join(errs...)
}

// FetchKeywordGroups fetches each group against spec's endpoint and maps the
// group label to its items.
func (f *Fetcher) FetchKeywordGroups(ctx context.Context, spec RequestSpec, groups []KeywordGroup, condition Condition) (GroupResults, error) {
	if err := ValidateGroups(groups); err != nil {
		return nil, err
	}
	if err := condition.Validate(); err != nil {
		return nil, err
	}
	if err := spec.WithKeywords(groups[0].Keywords, condition).Validate(); err != nil {
		return nil, err
	}
	return f.fetchGroups(ctx, spec, groups, condition)
}

func (f *Fetcher) fetchGroups(ctx context.Context, spec RequestSpec, groups []KeywordGroup, condition Condition) (GroupResults, error) {
	results := make(GroupResults, len(groups))
	var errs []error

	for _, group := range groups {
		f.logger.Info().
			Str("label", group.Label).
			Strs("keywords", group.Keywords).
			Msg("Fetching keyword group")

		result, err := f.FetchAll(ctx, spec.WithKeywords(group.Keywords, condition))
		if result != nil {
			results[group.Label] = result.Items
		} else {
			results[group.Label] = []Record{}
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s [%s]: %w", spec.Endpoint, group.Label, err))
		}
	}

	return results, errors.Join(errs...)
}

// Render encodes v as JSON indented with four spaces.
func Render(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return "", fmt.Errorf("render results: %w", err)
	}
	return string(data), nil
}
