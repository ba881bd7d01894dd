package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-eco/internal/layer"
)

func testSetup(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{BaseURL: srv.URL, Timeout: 5 * time.Second}, nil)
}

func TestSetupROISendsCoordinatesAndParams(t *testing.T) {
	var got SetupROIRequest
	c := testSetup(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/setup-roi", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"status":"success","area_km2":12.3456}`))
	})

	ring := orb.Ring{{10, 50}, {11, 50}, {11, 51}, {10, 50}}
	resp, err := c.SetupROI(context.Background(), SetupROIRequest{
		Coordinates: ring,
		StartDate:   "2021-01-01",
		EndDate:     "2023-01-01",
		Resolution:  10,
	})
	require.NoError(t, err)
	assert.InDelta(t, 12.3456, resp.AreaKm2, 1e-9)
	assert.Equal(t, ring, got.Coordinates)
	assert.Equal(t, 10, got.Resolution)
}

func TestSetupROIApplicationFailure(t *testing.T) {
	c := testSetup(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"error","detail":"polygon too large"}`))
	})

	_, err := c.SetupROI(context.Background(), SetupROIRequest{})
	var gwErr *Error
	require.True(t, errors.As(err, &gwErr))
	assert.Equal(t, KindApplication, gwErr.Kind)
	assert.Equal(t, "polygon too large", Detail(err))
}

func TestAnalyzeLayerTransportFailureCarriesDetail(t *testing.T) {
	c := testSetup(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"detail":"GEE quota exceeded"}`))
	})

	_, err := c.AnalyzeLayer(context.Background(), AnalyzeLayerRequest{LayerType: "wetland"})
	var gwErr *Error
	require.True(t, errors.As(err, &gwErr))
	assert.Equal(t, KindTransport, gwErr.Kind)
	assert.Equal(t, http.StatusInternalServerError, gwErr.Status)
	assert.Equal(t, "GEE quota exceeded", Detail(err))
}

func TestTransportFailureWithoutBodyIsUnknown(t *testing.T) {
	c := testSetup(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`<html>bad gateway</html>`))
	})

	_, err := c.AnalyzeLayer(context.Background(), AnalyzeLayerRequest{LayerType: "soil"})
	assert.Equal(t, UnknownError, Detail(err))
}

func TestNetworkFailure(t *testing.T) {
	c := New(Config{BaseURL: "http://127.0.0.1:1", Timeout: time.Second}, nil)

	_, err := c.Health(context.Background())
	var gwErr *Error
	require.True(t, errors.As(err, &gwErr))
	assert.Equal(t, KindNetwork, gwErr.Kind)
	assert.NotEmpty(t, Detail(err))
}

func TestMapURLRejectsUntrustedHost(t *testing.T) {
	c := testSetup(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tundra/map-url", r.URL.Path)
		w.Write([]byte(`{"tile_url":"https://evil.example.com/{z}/{x}/{y}"}`))
	})

	_, err := c.MapURL(context.Background(), layer.Tundra)
	assert.ErrorIs(t, err, ErrUntrustedTileURL)
}

func TestMapURLAcceptsEarthEngine(t *testing.T) {
	const tileURL = "https://earthengine.googleapis.com/v1/projects/p/maps/abc/tiles/{z}/{x}/{y}"
	c := testSetup(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(MapURLResponse{TileURL: tileURL, MapID: "abc"})
	})

	resp, err := c.MapURL(context.Background(), layer.Forest)
	require.NoError(t, err)
	assert.Equal(t, tileURL, resp.TileURL)
}

func TestLegendsAreKeyedByConvention(t *testing.T) {
	c := testSetup(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/legends/soil", r.URL.Path)
		w.Write([]byte(`{"soil_classification":{"title":"Soil Moisture","type":"classification",
			"items":[{"value":1,"label":"Dry Soil","color":"#D2691E"}],"methodology":"NDVI + NDWI + LST"}}`))
	})

	set, err := c.Legends(context.Background(), layer.Soil)
	require.NoError(t, err)
	legend, ok := set[layer.Soil.LegendKey()]
	require.True(t, ok)
	assert.Equal(t, "Soil Moisture", legend.Title)
	require.Len(t, legend.Items, 1)
	assert.Equal(t, 1, *legend.Items[0].Value)
}

func TestStatisticsReturnsRawRecord(t *testing.T) {
	c := testSetup(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"soil_moisture_level":"Moderate"}`))
	})

	raw, err := c.Statistics(context.Background(), layer.Soil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"soil_moisture_level":"Moderate"}`, string(raw))
}

func TestParseDetailList(t *testing.T) {
	assert.Equal(t, `[{"msg":"field required"}]`, parseDetail([]byte(`{"detail":[{"msg":"field required"}]}`)))
	assert.Equal(t, "", parseDetail([]byte(`{"detail":null}`)))
	assert.Equal(t, "", parseDetail([]byte(`not json`)))
}
