// Package googlebooks looks up volume metadata in the Google Books API and maps
// it onto catalog drafts.
package googlebooks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"schoolshelf/internal/catalog"

	jsoniter "github.com/json-iterator/go"
	"github.com/samber/lo"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

// DefaultBaseURL is the public volumes endpoint.
const DefaultBaseURL = "https://www.googleapis.com/books/v1/volumes"

const textSearchLimit = 10

// ErrLookupFailed wraps every failure to reach or read the API.
var ErrLookupFailed = errors.New("book metadata lookup failed")

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Config tunes the client.
type Config struct {
	BaseURL       string
	APIKey        string
	Language      string
	Timeout       time.Duration
	RatePerMinute int
}

type Client struct {
	baseURL    string
	apiKey     string
	language   string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	tracer     trace.Tracer
	logger     *slog.Logger
	now        func() time.Time
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RatePerMinute <= 0 {
		cfg.RatePerMinute = 60
	}
	if logger == nil {
		logger = slog.Default()
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "googlebooks",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		language:   cfg.Language,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RatePerMinute)), cfg.RatePerMinute),
		breaker:    breaker,
		tracer:     otel.Tracer("schoolshelf/googlebooks"),
		logger:     logger,
		now:        time.Now,
	}
}

// SearchByText returns drafts for up to ten volumes matching the query.
func (c *Client) SearchByText(ctx context.Context, query string) ([]catalog.Draft, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("maxResults", fmt.Sprint(textSearchLimit))
	if c.language != "" {
		params.Set("langRestrict", c.language)
	}

	volumes, err := c.search(ctx, params)
	if err != nil {
		return nil, err
	}
	now := c.now()
	return lo.Map(volumes, func(v Volume, _ int) catalog.Draft { return v.ToDraft(now) }), nil
}

// SearchByISBN returns the draft of the first volume with the ISBN, or nil
// when there is none.
func (c *Client) SearchByISBN(ctx context.Context, isbn string) (*catalog.Draft, error) {
	params := url.Values{}
	params.Set("q", "isbn:"+isbn)
	params.Set("maxResults", "1")

	volumes, err := c.search(ctx, params)
	if err != nil {
		return nil, err
	}
	if len(volumes) == 0 {
		return nil, nil
	}
	draft := volumes[0].ToDraft(c.now())
	return &draft, nil
}

func (c *Client) search(ctx context.Context, params url.Values) ([]Volume, error) {
	ctx, span := c.tracer.Start(ctx, "googlebooks.search",
		trace.WithAttributes(attribute.String("query", params.Get("q"))),
	)
	defer span.End()

	if c.apiKey != "" {
		params.Set("key", c.apiKey)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: %v", ErrLookupFailed, err)
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.fetch(ctx, c.baseURL+"?"+params.Encode())
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.WarnContext(ctx, "book lookup failed", "query", params.Get("q"), "error", err)
		if errors.Is(err, ErrLookupFailed) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrLookupFailed, err)
	}

	volumes := result.([]Volume)
	span.SetAttributes(attribute.Int("volumes.found", len(volumes)))
	return volumes, nil
}

func (c *Client) fetch(ctx context.Context, endpoint string) ([]Volume, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLookupFailed, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLookupFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: unexpected status code: %d", ErrLookupFailed, resp.StatusCode)
	}

	var body volumesResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrLookupFailed, err)
	}
	return body.Items, nil
}
