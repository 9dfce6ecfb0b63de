// internal/adapters/nominatim/client.go
package nominatim

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

	"golang.org/x/time/rate"

	"findmyroom/internal/adapters/observability"
	"findmyroom/internal/domain"
)

const DefaultBase = "https://nominatim.openstreetmap.org"

var (
	ErrRateLimited = errors.New("nominatim: rate limited")
	ErrMalformed   = errors.New("nominatim: malformed payload")
)

// StatusError is returned for any non-200 answer.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("nominatim: bad status %d", e.Code)
	}
	return fmt.Sprintf("nominatim: bad status %d: %s", e.Code, e.Body)
}

// Client talks to a Nominatim-compatible /search endpoint.
type Client struct {
	base      string
	ua        string
	countries string
	limit     int
	hc        *http.Client
	rl        *rate.Limiter
}

type Option func(*Client)

// WithCountryCodes restricts results to the given ISO 3166-1 alpha-2 codes ("in", "in,np").
func WithCountryCodes(codes string) Option { return func(c *Client) { c.countries = codes } }

// WithLimit caps the number of candidates the provider returns.
func WithLimit(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.limit = n
		}
	}
}

func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.hc = hc } }

// New builds a client. The public instance rejects anonymous traffic, so a
// User-Agent identifying the application is required.
func New(base, userAgent string, rps float64, opts ...Option) (*Client, error) {
	if strings.TrimSpace(userAgent) == "" {
		return nil, fmt.Errorf("user agent is required")
	}
	if base == "" {
		base = DefaultBase
	}
	if rps <= 0 {
		rps = 1
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	c := &Client{
		base:  strings.TrimRight(base, "/"),
		ua:    userAgent,
		limit: 5,
		// tiers carry their own deadline; this only guards a missing one
		hc: &http.Client{Timeout: 20 * time.Second},
		rl: rate.NewLimiter(rate.Limit(rps), burst),
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Search issues one GET for q and returns the candidates in provider order.
// No retries: a failed call is reported to the caller, which moves on.
func (c *Client) Search(ctx context.Context, q string) ([]domain.GeoCandidate, error) {
	if err := c.rl.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.searchURL(q), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.ua)

	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		observability.ObserveExternal("nominatim", "search", 0, time.Since(start))
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	defer resp.Body.Close()
	observability.ObserveExternal("nominatim", "search", resp.StatusCode, time.Since(start))

	switch resp.StatusCode {
	case http.StatusOK:
		var raw []map[string]any
		if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return mapCandidates(raw)

	case http.StatusTooManyRequests:
		io.Copy(io.Discard, resp.Body)
		return nil, ErrRateLimited

	default:
		// read a small error body for diagnostics
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
}

func (c *Client) searchURL(q string) string {
	v := url.Values{}
	v.Set("format", "json")
	v.Set("q", q)
	v.Set("limit", strconv.Itoa(c.limit))
	if c.countries != "" {
		v.Set("countrycodes", c.countries)
	}
	return c.base + "/search?" + v.Encode()
}

// mapCandidates keeps only lat/lon (and display_name when present). A candidate
// without a usable coordinate makes the whole payload malformed.
func mapCandidates(raw []map[string]any) ([]domain.GeoCandidate, error) {
	out := make([]domain.GeoCandidate, 0, len(raw))
	for i, m := range raw {
		lat, okLat := floatFlexible(m["lat"])
		lon, okLon := floatFlexible(m["lon"])
		if !okLat || !okLon {
			return nil, fmt.Errorf("%w: candidate %d has no usable lat/lon", ErrMalformed, i)
		}
		name, _ := m["display_name"].(string)
		out = append(out, domain.GeoCandidate{Lat: lat, Lon: lon, DisplayName: name})
	}
	return out, nil
}

// floatFlexible accepts a JSON number or a numeric string ("19.1197", "19,1197").
func floatFlexible(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		s := strings.TrimSpace(strings.ReplaceAll(t, ",", "."))
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil
	}
	return 0, false
}
