package fema

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/couchcryptid/reliefops/internal/domain"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubGeocoder struct {
	forward    domain.GeocodingResult
	forwardErr error
	reverse    domain.GeocodingResult
	reverseErr error
}

func (g *stubGeocoder) ForwardGeocode(context.Context, string, string) (domain.GeocodingResult, error) {
	return g.forward, g.forwardErr
}

func (g *stubGeocoder) ReverseGeocode(context.Context, float64, float64) (domain.GeocodingResult, error) {
	return g.reverse, g.reverseErr
}

func newTestClient(t *testing.T, handler http.HandlerFunc, geocoder domain.Geocoder) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	clock := clockwork.NewFakeClockAt(time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC))
	return NewClient(srv.URL, "ReliefOps/1.0 (test@example.com)", 5*time.Second, geocoder, clock, discardLogger())
}

const fullPayload = `{
	"type": "FeatureCollection",
	"features": [
		{
			"geometry": {"type": "Point", "coordinates": [-80.19, 25.76]},
			"properties": {
				"shelter_id": "12345",
				"shelter_name": "Miami Convention Center",
				"city": "Miami",
				"state": "FL",
				"zip": "33130",
				"address": "400 SE 2nd Ave",
				"shelter_status": "OPEN",
				"evacuation_capacity": 1000,
				"total_population": 880
			}
		},
		{
			"geometry": {"type": "Point", "coordinates": [-81.38, 28.54]},
			"properties": {
				"shelter_name": "Orlando Rec Hall",
				"shelter_status": "CLOSED"
			}
		}
	]
}`

func TestFetchShelters(t *testing.T) {
	var gotQuery string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		require.Equal(t, "/query", r.URL.Path)
		w.Write([]byte(fullPayload))
	}, nil)

	shelters, err := client.FetchShelters(context.Background(), "FL")
	require.NoError(t, err)
	require.Len(t, shelters, 2)

	assert.Contains(t, gotQuery, "where=STATE%3D%27FL%27")
	assert.Contains(t, gotQuery, "f=geojson")
	assert.Contains(t, gotQuery, "outSR=4326")

	miami := shelters[0]
	assert.Equal(t, "fema-12345", miami.ID)
	assert.Equal(t, "Miami Convention Center", miami.Name)
	assert.Equal(t, "Miami", miami.County)
	// GeoJSON order is [lon, lat]; the domain record keeps them separate.
	assert.Equal(t, 25.76, miami.Lat)
	assert.Equal(t, -80.19, miami.Lon)
	require.NotNil(t, miami.CapacityTotal)
	assert.Equal(t, 1000, *miami.CapacityTotal)
	require.NotNil(t, miami.CapacityUsed)
	assert.Equal(t, 880, *miami.CapacityUsed)
	// 88% occupancy crosses the at-capacity threshold regardless of OPEN.
	assert.Equal(t, domain.ShelterAtCapacity, miami.Status)
	require.NotNil(t, miami.SourceStatus)
	assert.Equal(t, "OPEN", *miami.SourceStatus)
	assert.Equal(t, time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC), miami.LastUpdated)

	orlando := shelters[1]
	assert.True(t, strings.HasPrefix(orlando.ID, "fema-"))
	assert.Greater(t, len(orlando.ID), len("fema-"))
	assert.Equal(t, "N/A", orlando.County)
	assert.Nil(t, orlando.CapacityTotal)
	assert.Nil(t, orlando.CapacityUsed)
	assert.Nil(t, orlando.HasPower)
	assert.Nil(t, orlando.MedicalLevel)
	assert.Nil(t, orlando.Supplies.Water)
	assert.Equal(t, domain.ShelterCritical, orlando.Status)
}

func TestFetchShelters_GeocoderEnrichment(t *testing.T) {
	geocoder := &stubGeocoder{
		reverse: domain.GeocodingResult{County: "Miami-Dade", FormattedAddress: "Miami, Florida"},
	}
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(fullPayload))
	}, geocoder)

	shelters, err := client.FetchShelters(context.Background(), "FL")
	require.NoError(t, err)
	assert.Equal(t, "Miami-Dade", shelters[0].County)
}

func TestFetchShelters_GeocoderFillsMissingCoordinates(t *testing.T) {
	geocoder := &stubGeocoder{
		forward: domain.GeocodingResult{Lat: 28.54, Lon: -81.38},
		reverse: domain.GeocodingResult{County: "Orange"},
	}
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"features": [{"geometry": {"coordinates": []}, "properties": {"shelter_id": "9", "shelter_name": "No Geometry Hall"}}]}`))
	}, geocoder)

	shelters, err := client.FetchShelters(context.Background(), "FL")
	require.NoError(t, err)
	require.Len(t, shelters, 1)
	assert.Equal(t, 28.54, shelters[0].Lat)
	assert.Equal(t, -81.38, shelters[0].Lon)
	assert.Equal(t, "Orange", shelters[0].County)
}

func TestFetchShelters_GeocoderFailureKeepsRecord(t *testing.T) {
	geocoder := &stubGeocoder{
		reverseErr: errors.New("mapbox down"),
	}
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(fullPayload))
	}, geocoder)

	shelters, err := client.FetchShelters(context.Background(), "FL")
	require.NoError(t, err)
	require.Len(t, shelters, 2)
	assert.Equal(t, "Miami", shelters[0].County)
}

func TestFetchShelters_HTTPError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "internal", http.StatusInternalServerError)
	}, nil)

	_, err := client.FetchShelters(context.Background(), "FL")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestFetchShelters_MalformedBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`not geojson`))
	}, nil)

	_, err := client.FetchShelters(context.Background(), "FL")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode response")
}
