package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// ErrNotFound means the place name resolved to nothing.
var ErrNotFound = errors.New("geocode: no result")

type Place struct {
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
	Name string  `json:"name"` // canonical display name
}

// Resolver turns a free-text place name into coordinates.
type Resolver interface {
	Resolve(ctx context.Context, query string) (Place, error)
}

// HTTPResolver queries a Nominatim-style /search endpoint.
type HTTPResolver struct {
	Endpoint string
	Client   *http.Client
}

func NewHTTPResolver(endpoint string) *HTTPResolver {
	return &HTTPResolver{Endpoint: endpoint, Client: &http.Client{Timeout: 2 * time.Second}}
}

func (g *HTTPResolver) Resolve(ctx context.Context, query string) (Place, error) {
	u := fmt.Sprintf("%s/search?q=%s&format=json&limit=1", g.Endpoint, url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Place{}, err
	}
	resp, err := g.Client.Do(req)
	if err != nil {
		return Place{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Place{}, fmt.Errorf("geocode: status %d", resp.StatusCode)
	}
	var out []struct {
		Lat         string `json:"lat"`
		Lon         string `json:"lon"`
		DisplayName string `json:"display_name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Place{}, err
	}
	if len(out) == 0 {
		return Place{}, ErrNotFound
	}
	lat, err := strconv.ParseFloat(out[0].Lat, 64)
	if err != nil {
		return Place{}, fmt.Errorf("geocode: bad lat: %w", err)
	}
	lng, err := strconv.ParseFloat(out[0].Lon, 64)
	if err != nil {
		return Place{}, fmt.Errorf("geocode: bad lon: %w", err)
	}
	return Place{Lat: lat, Lng: lng, Name: out[0].DisplayName}, nil
}
