// Package clients provides HTTP clients for communicating with external services.
package clients

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/illmade-knight/random-user/pkg/users"
	"github.com/rs/zerolog"
)

const (
	DefaultBaseURL = "https://randomuser.me"
	DefaultSeed    = "lightening-market"
	DefaultTimeout = 10 * time.Second
)

// RandomUserClient fetches seeded, paginated user pages from the randomuser API.
type RandomUserClient struct {
	baseURL    string
	seed       string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewRandomUserClient creates a new client for the randomuser API. An empty
// seed falls back to DefaultSeed so that pages stay stable across calls.
func NewRandomUserClient(baseURL, seed string, timeout time.Duration, logger zerolog.Logger) *RandomUserClient {
	if seed == "" {
		seed = DefaultSeed
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &RandomUserClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		seed:    seed,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger.With().Str("client", "randomuser").Logger(),
	}
}

// PageURL builds the request URL for a page.
func (c *RandomUserClient) PageURL(page, results int) string {
	q := url.Values{}
	q.Set("seed", c.seed)
	q.Set("page", strconv.Itoa(page))
	q.Set("results", strconv.Itoa(results))
	return c.baseURL + "/api/?" + q.Encode()
}

// FetchPage returns the raw response body for a page.
func (c *RandomUserClient) FetchPage(ctx context.Context, page, results int) ([]byte, error) {
	pageURL := c.PageURL(page, results)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create fetch page request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	c.logger.Debug().Str("url", pageURL).Msg("Fetching user page")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute fetch page request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("randomuser returned unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read user page from response body: %w", err)
	}
	return body, nil
}

// GetUsers fetches and decodes a page of users.
func (c *RandomUserClient) GetUsers(ctx context.Context, page, results int) ([]users.User, error) {
	body, err := c.FetchPage(ctx, page, results)
	if err != nil {
		return nil, err
	}
	list, err := users.Decode(body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode user page %d: %w", page, err)
	}
	c.logger.Info().Int("page", page).Int("count", len(list)).Msg("Successfully fetched user page")
	return list, nil
}
