package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLocationTestServer(t *testing.T) (*httptest.Server, *Client) {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/location_search/":
			fmt.Fprint(w, `{"status":"ok","venues":[
				{"pk":"9021","name":"Central Park","lat":40.785091,"lng":-73.968285,"facebook_places_id":"110774245616525"},
				{"pk":"9022","name":"The Pond","lat":40.766,"lng":-73.974}
			]}`)
		case "/api/v1/locations/9021/location_info/":
			fmt.Fprint(w, `{"status":"ok","pk":"9021","name":"Central Park","address":"New York, NY","lat":40.785091,"lng":-73.968285,"external_id":"110774245616525","external_id_source":"facebook_places"}`)
		default:
			t.Errorf("unexpected request to %s", r.URL.Path)
		}
	}))

	c := NewClient()
	c.SetBaseURLs(srv.URL+"/api/v1/", srv.URL+"/")
	return srv, c
}

func TestLocationCompleteFromCoordinates(t *testing.T) {
	srv, c := newLocationTestServer(t)
	defer srv.Close()

	loc, err := c.LocationComplete(context.Background(), Location{Lat: 40.785, Lng: -73.968})
	require.NoError(t, err)

	assert.Equal(t, int64(9021), loc.Pk, "nearest venue wins")
	assert.Equal(t, "Central Park", loc.Name)
}

func TestLocationCompleteFromPk(t *testing.T) {
	srv, c := newLocationTestServer(t)
	defer srv.Close()

	loc, err := c.LocationComplete(context.Background(), Location{Pk: 9021})
	require.NoError(t, err)

	assert.InDelta(t, 40.785091, loc.Lat, 1e-6)
	assert.InDelta(t, -73.968285, loc.Lng, 1e-6)
	assert.Equal(t, "Central Park", loc.Name)
	assert.Equal(t, int64(110774245616525), loc.ExternalID)
	assert.Equal(t, "facebook_places", loc.ExternalIDSource)
}

func TestLocationBuild(t *testing.T) {
	srv, c := newLocationTestServer(t)
	defer srv.Close()

	got, err := c.locationBuild(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "{}", got)

	got, err = c.locationBuild(context.Background(), &Location{
		Pk:               9021,
		Name:             "Central Park",
		Lat:              40.785091,
		Lng:              -73.968285,
		ExternalID:       110774245616525,
		ExternalIDSource: "facebook_places",
	})
	require.NoError(t, err)

	var built map[string]any
	require.NoError(t, json.Unmarshal([]byte(got), &built))
	assert.Equal(t, "Central Park", built["name"])
	assert.Equal(t, "facebook_places", built["external_source"])
	assert.EqualValues(t, 110774245616525, built["facebook_places_id"])
}
