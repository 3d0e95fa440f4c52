// Package geo resolves postal addresses to coordinates.
package geo

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
	"sync"
	"time"
)

// ErrAddressNotFound is returned when the provider has no match for an
// address.
var ErrAddressNotFound = errors.New("location not found for address")

// Coordinates is a WGS84 point.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Provider resolves an address to coordinates.
type Provider interface {
	Geocode(ctx context.Context, address string) (Coordinates, error)
}

// HTTPGeocoder queries a Nominatim-compatible /search endpoint.
type HTTPGeocoder struct {
	baseURL   string
	userAgent string
	client    *http.Client
}

// NewHTTPGeocoder creates a geocoder for baseURL, e.g.
// "https://nominatim.openstreetmap.org".
func NewHTTPGeocoder(baseURL, userAgent string) *HTTPGeocoder {
	if userAgent == "" {
		userAgent = "clinic-booking"
	}
	return &HTTPGeocoder{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		client:    &http.Client{Timeout: 10 * time.Second},
	}
}

type searchResult struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

// Geocode returns the first match for address.
func (g *HTTPGeocoder) Geocode(ctx context.Context, address string) (Coordinates, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return Coordinates{}, ErrAddressNotFound
	}

	q := url.Values{}
	q.Set("q", address)
	q.Set("format", "json")
	q.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/search?"+q.Encode(), nil)
	if err != nil {
		return Coordinates{}, fmt.Errorf("geocode: build request: %w", err)
	}
	req.Header.Set("User-Agent", g.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return Coordinates{}, fmt.Errorf("geocode: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return Coordinates{}, fmt.Errorf("geocode: provider returned %d", resp.StatusCode)
	}

	var results []searchResult
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&results); err != nil {
		return Coordinates{}, fmt.Errorf("geocode: decode response: %w", err)
	}
	if len(results) == 0 {
		return Coordinates{}, ErrAddressNotFound
	}

	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return Coordinates{}, fmt.Errorf("geocode: bad latitude %q: %w", results[0].Lat, err)
	}
	lng, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return Coordinates{}, fmt.Errorf("geocode: bad longitude %q: %w", results[0].Lon, err)
	}
	return Coordinates{Lat: lat, Lng: lng}, nil
}

// StaticProvider answers from a fixed table and is used in development and
// tests. Unknown addresses resolve to Fallback unless Strict is set.
type StaticProvider struct {
	mu       sync.RWMutex
	known    map[string]Coordinates
	Fallback Coordinates
	Strict   bool
}

// NewStaticProvider creates a provider seeded with entries.
func NewStaticProvider(entries map[string]Coordinates) *StaticProvider {
	known := make(map[string]Coordinates, len(entries))
	for addr, c := range entries {
		known[normalize(addr)] = c
	}
	return &StaticProvider{known: known}
}

// Set adds or replaces an entry.
func (p *StaticProvider) Set(address string, c Coordinates) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.known[normalize(address)] = c
}

func (p *StaticProvider) Geocode(ctx context.Context, address string) (Coordinates, error) {
	if err := ctx.Err(); err != nil {
		return Coordinates{}, err
	}
	key := normalize(address)
	if key == "" {
		return Coordinates{}, ErrAddressNotFound
	}

	p.mu.RLock()
	c, ok := p.known[key]
	p.mu.RUnlock()
	if ok {
		return c, nil
	}
	if p.Strict {
		return Coordinates{}, ErrAddressNotFound
	}
	return p.Fallback, nil
}

func normalize(address string) string {
	return strings.ToLower(strings.Join(strings.Fields(address), " "))
}
