// Package energyapi is a client for the upstream energy-generation-records
// API that backs the dashboard.
package energyapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/HerbHall/solarwatch/internal/version"
	"github.com/HerbHall/solarwatch/pkg/energy"
)

// Defaults for Options fields left zero.
const (
	DefaultTimeout      = 10 * time.Second
	DefaultMaxRetries   = 3
	DefaultRetryBackoff = 500 * time.Millisecond
)

// maxErrorBody bounds how much of an error response is kept in APIError.Message.
const maxErrorBody = 4 << 10

// Options configure a Client.
type Options struct {
	BaseURL      string // e.g. http://localhost:8000/api
	Token        string // sent as a bearer token when set
	Timeout      time.Duration
	MaxRetries   int // retries after the first attempt
	RetryBackoff time.Duration
	HTTPClient   *http.Client
	Logger       *zap.Logger
}

// Client fetches daily energy records for solar units.
type Client struct {
	base       *url.URL
	token      string
	maxRetries int
	backoff    time.Duration
	http       *http.Client
	logger     *zap.Logger
}

// New validates opts and returns a Client.
func New(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, errors.New("energyapi: base URL is required")
	}
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("energyapi: parse base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("energyapi: base URL %q must be http or https", opts.BaseURL)
	}

	c := &Client{
		base:       base,
		token:      opts.Token,
		maxRetries: opts.MaxRetries,
		backoff:    opts.RetryBackoff,
		http:       opts.HTTPClient,
		logger:     opts.Logger,
	}
	if c.maxRetries < 0 {
		c.maxRetries = 0
	}
	if c.backoff <= 0 {
		c.backoff = DefaultRetryBackoff
	}
	if c.http == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		c.http = &http.Client{Timeout: timeout}
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	return c, nil
}

// wireRecord is the API's grouped-by-date shape.
type wireRecord struct {
	ID struct {
		Date string `json:"date"`
	} `json:"_id"`
	TotalEnergy *float64 `json:"totalEnergy"`
}

// Window returns the most recent limit daily records of unitID in the order
// the API sends them. Retryable failures (429, 5xx, transport errors) are
// retried with linear backoff.
func (c *Client) Window(ctx context.Context, unitID string, limit int) ([]energy.Record, error) {
	if unitID == "" {
		return nil, errors.New("energyapi: unit id is required")
	}
	endpoint := c.windowURL(unitID, limit)

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			wait := time.Duration(attempt) * c.backoff
			c.logger.Debug("retrying records request",
				zap.String("unit_id", unitID),
				zap.Int("attempt", attempt),
				zap.Duration("wait", wait),
				zap.Error(lastErr),
			)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}

		records, err := c.fetch(ctx, endpoint)
		if err == nil {
			return records, nil
		}
		lastErr = err

		var apiErr *APIError
		if !errors.As(err, &apiErr) || !apiErr.IsRetryable() || ctx.Err() != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

func (c *Client) windowURL(unitID string, limit int) string {
	const route = "/energy-generation-records/solar-unit/"
	u := *c.base
	u.Path = c.base.Path + route + unitID
	u.RawPath = c.base.EscapedPath() + route + url.PathEscape(unitID)
	q := url.Values{}
	q.Set("groupBy", "date")
	q.Set("limit", strconv.Itoa(limit))
	u.RawQuery = q.Encode()
	return u.String()
}

func (c *Client) fetch(ctx context.Context, endpoint string) ([]energy.Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &APIError{Endpoint: endpoint, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Endpoint:   endpoint,
			Message:    strings.TrimSpace(string(body)),
		}
	}

	var wire []wireRecord
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("decode records from %s: %w", endpoint, err)
	}

	records := make([]energy.Record, 0, len(wire))
	for i, w := range wire {
		if w.TotalEnergy == nil {
			return nil, fmt.Errorf("decode records from %s: record %d has no totalEnergy", endpoint, i)
		}
		records = append(records, energy.Record{
			Date:        normalizeDate(w.ID.Date),
			TotalEnergy: *w.TotalEnergy,
		})
	}
	return records, nil
}

// normalizeDate reduces RFC 3339 timestamps to their calendar day in the
// timestamp's own offset. Anything else is passed through for the scorer to
// validate.
func normalizeDate(s string) string {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.Format(energy.DateLayout)
	}
	return s
}
