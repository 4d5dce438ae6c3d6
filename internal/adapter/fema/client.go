// Package fema fetches open shelter records from the FEMA National Shelter
// System ArcGIS feed and normalizes them into domain shelters. Fields the
// feed does not carry stay nil; an optional geocoder fills in county names
// and missing coordinates.
package fema

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/couchcryptid/reliefops/internal/domain"
	"github.com/jonboulle/clockwork"
)

// queryFields are the attributes requested from the ArcGIS layer.
const queryFields = "shelter_id,shelter_name,city,state,zip,address,shelter_status,evacuation_capacity,total_population"

// Client implements the shelter feed against the FEMA ArcGIS service.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	geocoder   domain.Geocoder // optional enrichment
	clock      clockwork.Clock
	logger     *slog.Logger
}

// NewClient creates a FEMA shelter client. geocoder may be nil, in which
// case county falls back to the city name and records without geometry keep
// zero coordinates.
func NewClient(baseURL, userAgent string, timeout time.Duration, geocoder domain.Geocoder, clock clockwork.Clock, logger *slog.Logger) *Client {
	return &Client{
		baseURL:   baseURL,
		userAgent: userAgent,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		geocoder: geocoder,
		clock:    clock,
		logger:   logger,
	}
}

// FetchShelters returns the open shelters for a state.
func (c *Client) FetchShelters(ctx context.Context, region string) ([]domain.Shelter, error) {
	params := url.Values{
		"where":          {fmt.Sprintf("STATE='%s'", region)},
		"outFields":      {queryFields},
		"returnGeometry": {"true"},
		"f":              {"geojson"},
		"outSR":          {"4326"},
	}
	fullURL := fmt.Sprintf("%s/query?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fema request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("fema API error: status %d: %s", resp.StatusCode, body)
	}

	var payload response
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	fetchedAt := c.clock.Now()
	shelters := make([]domain.Shelter, 0, len(payload.Features))
	for _, feature := range payload.Features {
		shelter := c.normalize(feature, fetchedAt)
		c.enrich(ctx, &shelter, region)
		shelters = append(shelters, shelter)
	}
	return shelters, nil
}

// normalize maps one GeoJSON feature to the domain type. Capacity fields
// absent from the payload map to nil, never zero.
func (c *Client) normalize(f feature, fetchedAt time.Time) domain.Shelter {
	p := f.Properties

	id := p.ShelterID
	if id == "" {
		id = domain.NewID()
		c.logger.Debug("fema shelter missing id, fabricated one", "id", id)
	}

	name := p.ShelterName
	if name == "" {
		name = "Unnamed Shelter"
	}

	// The feed has no county attribute; the city name stands in until the
	// geocoder supplies a real one.
	county := "N/A"
	if p.City != nil && *p.City != "" {
		county = *p.City
	}

	var lat, lon float64
	// GeoJSON coordinate order is [lon, lat].
	if len(f.Geometry.Coordinates) == 2 {
		lon = f.Geometry.Coordinates[0]
		lat = f.Geometry.Coordinates[1]
	}

	return domain.Shelter{
		ID:            "fema-" + id,
		Name:          name,
		County:        county,
		City:          emptyToNil(p.City),
		State:         emptyToNil(p.State),
		Zip:           emptyToNil(p.Zip),
		Address:       emptyToNil(p.Address),
		Lat:           lat,
		Lon:           lon,
		CapacityTotal: p.EvacuationCapacity,
		CapacityUsed:  p.TotalPopulation,
		Status:        domain.DeriveShelterStatus(p.TotalPopulation, p.EvacuationCapacity, p.ShelterStatus),
		SourceStatus:  emptyToNil(p.ShelterStatus),
		LastUpdated:   fetchedAt,
		IntakePerHour: []int{},
		Issues:        []domain.ShelterIssue{},
	}
}

// enrich fills county and missing coordinates from the geocoder. Lookup
// failures are logged and the record keeps its normalized values.
func (c *Client) enrich(ctx context.Context, shelter *domain.Shelter, region string) {
	if c.geocoder == nil {
		return
	}

	if shelter.Lat == 0 && shelter.Lon == 0 {
		result, err := c.geocoder.ForwardGeocode(ctx, shelter.Name, region)
		if err != nil {
			c.logger.Warn("forward geocode failed", "shelter", shelter.ID, "error", err)
		} else if result.Lat != 0 || result.Lon != 0 {
			shelter.Lat = result.Lat
			shelter.Lon = result.Lon
		}
	}

	if shelter.Lat == 0 && shelter.Lon == 0 {
		return
	}
	result, err := c.geocoder.ReverseGeocode(ctx, shelter.Lat, shelter.Lon)
	if err != nil {
		c.logger.Warn("reverse geocode failed", "shelter", shelter.ID, "error", err)
		return
	}
	if result.County != "" {
		shelter.County = result.County
	}
}

func emptyToNil(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}

// FEMA ArcGIS GeoJSON response types.

type response struct {
	Features []feature `json:"features"`
}

type feature struct {
	Geometry   geometry   `json:"geometry"`
	Properties properties `json:"properties"`
}

type geometry struct {
	Coordinates []float64 `json:"coordinates"` // [lon, lat]
}

type properties struct {
	ShelterID          string  `json:"shelter_id"`
	ShelterName        string  `json:"shelter_name"`
	City               *string `json:"city"`
	State              *string `json:"state"`
	Zip                *string `json:"zip"`
	Address            *string `json:"address"`
	ShelterStatus      *string `json:"shelter_status"`
	EvacuationCapacity *int    `json:"evacuation_capacity"`
	TotalPopulation    *int    `json:"total_population"`
}
