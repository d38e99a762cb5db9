package pagination

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Sternrassler/exorde-client/pkg/client"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for pagination.
var (
	pagesFetchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "exorde_pages_fetched_total",
		Help: "Total pages fetched by endpoint",
	}, []string{"endpoint"})

	itemsFetchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "exorde_items_fetched_total",
		Help: "Total items accumulated by endpoint",
	}, []string{"endpoint"})

	fetchFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "exorde_fetch_failures_total",
		Help: "Total paginated fetches that ended in an error by endpoint",
	}, []string{"endpoint"})

	fetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "exorde_fetch_duration_seconds",
		Help:    "Duration of a complete paginated fetch by endpoint",
		Buckets: []float64{0.5, 1, 5, 15, 60, 300},
	}, []string{"endpoint"})
)

// State is the position of a fetch in its page loop.
type State int

const (
	StateRequesting State = iota
	StateAccumulating
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateRequesting:
		return "requesting"
	case StateAccumulating:
		return "accumulating"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Transport is the single capability the fetcher needs: an HTTP GET with query
// parameters. *client.Client implements it and adds the required headers.
type Transport interface {
	Get(ctx context.Context, rawURL string, params url.Values) (*http.Response, error)
}

// Config holds fetcher configuration.
type Config struct {
	// MaxPages caps the pages of one FetchAll call. 0 follows "next" links
	// for as long as the server provides them.
	MaxPages int

	// MaxErrorBody bounds how much of a failed response body is kept in the error.
	MaxErrorBody int64
}

// DefaultConfig returns the default fetcher configuration: no page cap.
func DefaultConfig() Config {
	return Config{
		MaxPages:     0,
		MaxErrorBody: 64 * 1024,
	}
}

// Result is the flattened outcome of one paginated fetch.
type Result struct {
	// Items holds every page's items in fetch order.
	Items []Record

	// Pages is the number of pages decoded.
	Pages int

	// State is StateDone on success and StateFailed otherwise.
	State State
}

// Fetcher walks paginated resources one page at a time.
type Fetcher struct {
	transport Transport
	config    Config
	logger    zerolog.Logger
}

// NewFetcher creates a new fetcher.
func NewFetcher(transport Transport, config Config) *Fetcher {
	if config.MaxPages < 0 {
		config.MaxPages = 0
	}
	if config.MaxErrorBody <= 0 {
		config.MaxErrorBody = 64 * 1024
	}

	return &Fetcher{
		transport: transport,
		config:    config,
		logger:    log.With().Str("component", "pagination").Logger(),
	}
}

// FetchAll fetches every page of spec and returns the concatenated items.
//
// The loop ends when a page has no next link. A non-200 answer (*client.APIError),
// a transport error, an undecodable page, context cancellation or the MaxPages
// cap ends it early; the items gathered so far are returned with the error.
func (f *Fetcher) FetchAll(ctx context.Context, spec RequestSpec) (*Result, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	endpointLabel := endpointPath(spec.Endpoint)
	logger := f.logger.With().
		Str("fetch_id", uuid.NewString()).
		Str("endpoint", spec.Endpoint).
		Str("keywords", spec.Filters.Keywords).
		Logger()

	start := time.Now()
	defer func() {
		fetchDuration.WithLabelValues(endpointLabel).Observe(time.Since(start).Seconds())
	}()

	result := &Result{Items: []Record{}, State: StateRequesting}
	fail := func(err error) (*Result, error) {
		result.State = StateFailed
		fetchFailuresTotal.WithLabelValues(endpointLabel).Inc()
		logger.Warn().
			Err(err).
			Int("pages", result.Pages).
			Int("items", len(result.Items)).
			Msg("Fetch stopped - returning partial results")
		return result, err
	}

	current := spec.Endpoint
	params := spec.Filters.Params()

	for {
		if err := ctx.Err(); err != nil {
			return fail(fmt.Errorf("fetch page %d: %w", result.Pages+1, err))
		}
		if f.config.MaxPages > 0 && result.Pages >= f.config.MaxPages {
			return fail(fmt.Errorf("%w: stopped after %d pages", ErrPageLimit, result.Pages))
		}

		page, err := f.fetchPage(ctx, current, params)
		if err != nil {
			return fail(fmt.Errorf("fetch page %d: %w", result.Pages+1, err))
		}

		result.State = StateAccumulating
		result.Items = append(result.Items, page.Items...)
		result.Pages++

		pagesFetchedTotal.WithLabelValues(endpointLabel).Inc()
		itemsFetchedTotal.WithLabelValues(endpointLabel).Add(float64(len(page.Items)))
		logger.Info().
			Int("page", result.Pages).
			Int("items", len(page.Items)).
			Msg("Fetched page")

		if !page.HasNext {
			break
		}

		next, err := resolveNext(current, page.Next)
		if err != nil {
			return fail(fmt.Errorf("page %d: %w", result.Pages, err))
		}
		current = next
		params = nil // the next link already carries the filters
		result.State = StateRequesting
	}

	result.State = StateDone
	logger.Info().
		Int("pages", result.Pages).
		Int("items", len(result.Items)).
		Dur("duration", time.Since(start)).
		Msg("Fetch complete")

	return result, nil
}

// fetchPage issues one GET and decodes the body of a 200 answer.
func (f *Fetcher) fetchPage(ctx context.Context, rawURL string, params url.Values) (*Page, error) {
	resp, err := f.transport.Get(ctx, rawURL, params)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, f.config.MaxErrorBody))
		return nil, client.NewAPIError(resp.StatusCode, rawURL, strings.TrimSpace(string(body)))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	return DecodePage(body)
}

// resolveNext resolves a next link against the URL of the page that carried it,
// so relative links work too.
func resolveNext(current, next string) (string, error) {
	base, err := url.Parse(current)
	if err != nil {
		return "", fmt.Errorf("%w: current url %q: %v", ErrDecode, current, err)
	}
	ref, err := url.Parse(next)
	if err != nil {
		return "", fmt.Errorf("%w: next link %q: %v", ErrDecode, next, err)
	}
	return base.ResolveReference(ref).String(), nil
}

// endpointPath keeps metric label cardinality bounded to the URL path.
func endpointPath(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Path == "" {
		return "unknown"
	}
	return u.Path
}
