package scrape

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"jobintel-engine/internal/domain"
	"jobintel-engine/internal/scrape/util"
)

// Fetcher returns the raw records one source has for a search. Failures are
// fatal for the invocation and wrap domain.ErrFetch.
type Fetcher interface {
	Fetch(ctx context.Context, source string, keywords []string, location string, maxResults int) ([]domain.RawRecord, error)
}

// StatusError is a non-2xx answer from the scrape API.
type StatusError struct {
	Source string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("scrape api %s: status %d: %s", e.Source, e.Code, e.Body)
}

func (e *StatusError) Unwrap() error { return domain.ErrFetch }

type scrapeRequest struct {
	Keywords   string `json:"keywords"`
	Location   string `json:"location"`
	MaxResults int    `json:"max_results"`
}

type scrapeResponse struct {
	Platform  string             `json:"platform"`
	Jobs      []domain.RawRecord `json:"jobs"`
	Count     int                `json:"count"`
	ScrapedAt *domain.FlexTime   `json:"scraped_at"`
}

// Client talks to the scrape API: POST {base}/scrape/{source}.
type Client struct {
	baseURL string
	hc      *http.Client
	limiter *util.HostLimiter
	token   func() string
	log     *slog.Logger
}

type ClientOption func(*Client)

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.hc = hc }
}

func WithLimiter(l *util.HostLimiter) ClientOption {
	return func(c *Client) { c.limiter = l }
}

// WithToken sets a bearer token source; an empty token sends no header.
func WithToken(token func() string) ClientOption {
	return func(c *Client) { c.token = token }
}

func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

func NewClient(baseURL string, timeout time.Duration, opts ...ClientOption) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		hc:      &http.Client{Timeout: timeout},
		limiter: util.NewHostLimiter(0, 1),
		token:   func() string { return "" },
		log:     slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// DefaultLocation is what the scrape API is asked for when no location is
// given: indeed wants a country, seek its own "all" label.
func DefaultLocation(source string) string {
	if strings.EqualFold(source, "indeed") {
		return "Australia"
	}
	return "All Australia"
}

func (c *Client) Fetch(ctx context.Context, source string, keywords []string, location string, maxResults int) ([]domain.RawRecord, error) {
	source = strings.ToLower(strings.TrimSpace(source))
	if strings.TrimSpace(location) == "" {
		location = DefaultLocation(source)
	}
	body, err := json.Marshal(scrapeRequest{
		Keywords:   strings.Join(keywords, " "),
		Location:   location,
		MaxResults: maxResults,
	})
	if err != nil {
		return nil, err
	}

	endpoint := c.baseURL + "/scrape/" + source
	if err := c.limiter.WaitURL(ctx, endpoint); err != nil {
		return nil, fmt.Errorf("scrape api %s: %w: %w", source, domain.ErrFetch, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("scrape api %s: %w: %w", source, domain.ErrFetch, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "JobIntel/1.0 (+engine)")
	if tok := c.token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	c.log.Info("fetching jobs", "source", source, "keywords", strings.Join(keywords, ", "), "location", location)

	res, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("scrape api %s: %w: %w", source, domain.ErrFetch, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, &StatusError{Source: source, Code: res.StatusCode, Body: strings.TrimSpace(string(b))}
	}

	var sr scrapeResponse
	if err := json.NewDecoder(res.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("scrape api %s: decode response: %w: %w", source, domain.ErrFetch, err)
	}

	out := sr.Jobs
	for i := range out {
		clean(&out[i], source)
	}
	c.log.Info("fetched jobs", "source", source, "count", len(out))
	return out, nil
}

// clean does the light tidying the fetch layer owns: HTML descriptions
// become text, state names become codes, and a missing source is filled in.
func clean(r *domain.RawRecord, source string) {
	if r.Source == "" {
		r.Source = source
	}
	if r.Description != nil && util.LooksLikeHTML(*r.Description) {
		txt := util.HTMLToText(*r.Description)
		r.Description = &txt
	}
	if r.Requirements != nil && util.LooksLikeHTML(*r.Requirements) {
		txt := util.HTMLToText(*r.Requirements)
		r.Requirements = &txt
	}
	if r.LocationState != nil {
		r.LocationState = domain.StringPtr(util.NormalizeState(*r.LocationState))
	}
}
