package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kamnsolar/field_capture/config"
)

// Geocoder resolves a coordinate to a display address.
type Geocoder interface {
	Reverse(ctx context.Context, lat, lng float64) (string, error)
}

type NominatimAddress struct {
	Road          string `json:"road"`
	Suburb        string `json:"suburb"`
	Village       string `json:"village"`
	Town          string `json:"town"`
	City          string `json:"city"`
	County        string `json:"county"`
	StateDistrict string `json:"state_district"`
	State         string `json:"state"`
	Country       string `json:"country"`
	Postcode      string `json:"postcode"`
	Neighbourhood string `json:"neighbourhood"`
}

type NominatimResponse struct {
	DisplayName string           `json:"display_name"`
	Address     NominatimAddress `json:"address"`
	Error       string           `json:"error"`
}

// locality prefers the most specific populated-place component.
func (a NominatimAddress) locality() string {
	for _, v := range []string{a.Suburb, a.Neighbourhood, a.Village, a.Town} {
		if v != "" {
			return v
		}
	}
	return ""
}

// Format joins road, locality, city, state, country and postcode.
func (a NominatimAddress) Format() string {
	city := a.City
	if city == "" {
		city = a.County
	}
	var parts []string
	for _, v := range []string{a.Road, a.locality(), city, a.State, a.Country, a.Postcode} {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if len(parts) > 0 && parts[len(parts)-1] == v {
			continue
		}
		parts = append(parts, v)
	}
	return strings.Join(parts, ", ")
}

type NominatimGeocoder struct {
	baseURL   string
	userAgent string
	client    *http.Client
}

func NewNominatimGeocoder(baseURL, userAgent string, timeout time.Duration) *NominatimGeocoder {
	return &NominatimGeocoder{
		baseURL:   baseURL,
		userAgent: userAgent,
		client:    &http.Client{Timeout: timeout},
	}
}

func NewNominatimGeocoderFromEnv() *NominatimGeocoder {
	return NewNominatimGeocoder(config.GeocoderURL(), config.GeocoderUserAgent(), 10*time.Second)
}

func (g *NominatimGeocoder) Reverse(ctx context.Context, lat, lng float64) (string, error) {
	q := url.Values{}
	q.Set("format", "json")
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lng, 'f', -1, 64))
	q.Set("zoom", "18")
	q.Set("addressdetails", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}
	// Nominatim rejects requests without a User-Agent
	req.Header.Set("User-Agent", g.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("geocoder error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var result NominatimResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	if result.Error != "" {
		return "", fmt.Errorf("geocoder error: %s", result.Error)
	}
	if addr := result.Address.Format(); addr != "" {
		return addr, nil
	}
	if result.DisplayName != "" {
		return result.DisplayName, nil
	}
	return "", fmt.Errorf("geocoder returned no address")
}
