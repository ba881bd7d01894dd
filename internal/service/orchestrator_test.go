package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-eco/internal/gateway"
	"github.com/joeblew999/plat-eco/internal/layer"
	"github.com/joeblew999/plat-eco/internal/stats"
)

// MockBackend is a mock of Backend
type MockBackend struct {
	mock.Mock
}

func (m *MockBackend) SetupROI(ctx context.Context, req gateway.SetupROIRequest) (*gateway.SetupROIResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.SetupROIResponse), args.Error(1)
}

func (m *MockBackend) AnalyzeLayer(ctx context.Context, req gateway.AnalyzeLayerRequest) (*gateway.AnalyzeLayerResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.AnalyzeLayerResponse), args.Error(1)
}

func (m *MockBackend) MapURL(ctx context.Context, l layer.Layer) (*gateway.MapURLResponse, error) {
	args := m.Called(ctx, l)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.MapURLResponse), args.Error(1)
}

func (m *MockBackend) Statistics(ctx context.Context, l layer.Layer) (json.RawMessage, error) {
	args := m.Called(ctx, l)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(json.RawMessage), args.Error(1)
}

func (m *MockBackend) Legends(ctx context.Context, l layer.Layer) (gateway.LegendSet, error) {
	args := m.Called(ctx, l)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(gateway.LegendSet), args.Error(1)
}

func (m *MockBackend) Reset(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type fakeControl struct {
	enabled   bool
	checked   bool
	analyzing bool
	active    bool
	status    string
}

func (c *fakeControl) SetEnabled(v bool)   { c.enabled = v }
func (c *fakeControl) SetChecked(v bool)   { c.checked = v }
func (c *fakeControl) SetAnalyzing(v bool) { c.analyzing = v }
func (c *fakeControl) SetActive(v bool)    { c.active = v }
func (c *fakeControl) SetStatus(s string)  { c.status = s }

type statusMsg struct {
	kind StatusKind
	msg  string
}

type fakeView struct {
	controls    map[layer.Layer]*fakeControl
	overlays    map[layer.Layer]Overlay
	legend      layer.Layer
	legendTitle string
	statsLayer  layer.Layer
	sections    []stats.Section
	statuses    []statusMsg
	ring        orb.Ring
	coords      string
}

func newFakeView() *fakeView {
	v := &fakeView{
		controls: make(map[layer.Layer]*fakeControl),
		overlays: make(map[layer.Layer]Overlay),
	}
	for _, l := range layer.All {
		v.controls[l] = &fakeControl{}
	}
	return v
}

func (v *fakeView) Status(kind StatusKind, msg string) {
	v.statuses = append(v.statuses, statusMsg{kind, msg})
}
func (v *fakeView) Layer(l layer.Layer) LayerControl { return v.controls[l] }
func (v *fakeView) ShowOverlay(o Overlay)            { v.overlays[o.Layer] = o }
func (v *fakeView) HideOverlay(l layer.Layer)        { delete(v.overlays, l) }
func (v *fakeView) ShowROI(ring orb.Ring)            { v.ring = ring }
func (v *fakeView) ClearROI()                        { v.ring = nil }
func (v *fakeView) SetCoordinates(text string)       { v.coords = text }
func (v *fakeView) HideLegend()                      { v.legend = "" }
func (v *fakeView) ClearActiveStatistics()           { v.statsLayer = "" }

func (v *fakeView) ShowLegend(l layer.Layer, legend gateway.Legend) {
	v.legend = l
	v.legendTitle = legend.Title
}

func (v *fakeView) ShowStatistics(l layer.Layer, sections []stats.Section) {
	v.statsLayer = l
	v.sections = sections
}

func (v *fakeView) lastStatus() statusMsg {
	if len(v.statuses) == 0 {
		return statusMsg{}
	}
	return v.statuses[len(v.statuses)-1]
}

var testRing = orb.Ring{{10, 50}, {10.1, 50}, {10.1, 50.1}, {10, 50}}

var success = &gateway.AnalyzeLayerResponse{Status: gateway.StatusSuccess}

func forLayer(l layer.Layer) any {
	return mock.MatchedBy(func(r gateway.AnalyzeLayerRequest) bool { return r.LayerType == l.String() })
}

func stubAssets(m *MockBackend, l layer.Layer) {
	m.On("MapURL", mock.Anything, l).Return(&gateway.MapURLResponse{
		TileURL: "https://earthengine.googleapis.com/v1/maps/" + l.String() + "/tiles/{z}/{x}/{y}",
	}, nil)
	m.On("Legends", mock.Anything, l).Return(gateway.LegendSet{
		l.LegendKey(): {Title: l.Title() + " legend", Type: gateway.LegendClassification},
	}, nil)
	m.On("Statistics", mock.Anything, l).Return(json.RawMessage(`{}`), nil)
}

func newTestOrchestrator(t *testing.T) (*Orchestrator, *MockBackend, *fakeView) {
	t.Helper()
	m := &MockBackend{}
	v := newFakeView()
	return NewOrchestrator(m, v, Options{Session: "test", Pace: -1}), m, v
}

func establish(t *testing.T, o *Orchestrator, m *MockBackend) {
	t.Helper()
	m.On("SetupROI", mock.Anything, mock.Anything).
		Return(&gateway.SetupROIResponse{Status: gateway.StatusSuccess, AreaKm2: 12.3456}, nil).Once()
	stubAssets(m, layer.Forest)
	require.NoError(t, o.ROIChanged(context.Background(), 1, testRing))
}

func TestSetupROIShowsForestAndArea(t *testing.T) {
	o, m, v := newTestOrchestrator(t)
	establish(t, o, m)

	assert.True(t, o.state.Established())
	for _, l := range layer.All {
		assert.True(t, v.controls[l].enabled, l)
		assert.Equal(t, l == layer.Forest, o.state.Analyzed(l), l)
	}
	assert.True(t, v.controls[layer.Forest].checked)
	assert.Equal(t, StatusAnalyzed, v.controls[layer.Forest].status)
	assert.Contains(t, v.overlays, layer.Forest)
	assert.Equal(t, layer.Forest, v.legend)
	assert.Equal(t, layer.Forest, v.statsLayer)

	active, ok := o.state.Active()
	require.True(t, ok)
	assert.Equal(t, layer.Forest, active)

	var found bool
	for _, s := range v.statuses {
		if s.kind == StatusSuccess && strings.Contains(s.msg, "12.35 km²") {
			found = true
		}
	}
	assert.True(t, found, "area status not reported: %v", v.statuses)
}

func TestSetupROISendsForestDefaults(t *testing.T) {
	o, m, _ := newTestOrchestrator(t)
	m.On("SetupROI", mock.Anything, gateway.SetupROIRequest{
		Coordinates: testRing,
		StartDate:   DefaultStartDate,
		EndDate:     DefaultEndDate,
		Resolution:  10,
	}).Return(&gateway.SetupROIResponse{Status: gateway.StatusSuccess, AreaKm2: 1}, nil).Once()
	stubAssets(m, layer.Forest)

	require.NoError(t, o.ROIChanged(context.Background(), 1, testRing))
	m.AssertExpectations(t)
}

func TestSetupROIFailureDisablesLayers(t *testing.T) {
	o, m, v := newTestOrchestrator(t)
	m.On("SetupROI", mock.Anything, mock.Anything).
		Return(nil, &gateway.Error{Op: "setup-roi", Kind: gateway.KindApplication, Detail: "ROI too large"})

	err := o.ROIChanged(context.Background(), 1, testRing)
	require.Error(t, err)

	assert.False(t, o.state.Established())
	for _, l := range layer.All {
		assert.False(t, v.controls[l].enabled, l)
		assert.False(t, v.controls[l].checked, l)
	}
	assert.Equal(t, statusMsg{StatusError, "ROI setup failed: ROI too large"}, v.lastStatus())
}

func TestSetupROIWithoutRegion(t *testing.T) {
	o, m, v := newTestOrchestrator(t)

	assert.ErrorIs(t, o.SetupROI(context.Background()), ErrNoROI)
	assert.Equal(t, StatusError, v.lastStatus().kind)
	m.AssertNotCalled(t, "SetupROI", mock.Anything, mock.Anything)
}

func TestToggleAnalyzesOnceThenReshows(t *testing.T) {
	ctx := context.Background()
	o, m, v := newTestOrchestrator(t)
	establish(t, o, m)
	m.On("AnalyzeLayer", mock.Anything, forLayer(layer.Wetland)).Return(success, nil)
	stubAssets(m, layer.Wetland)

	require.NoError(t, o.Toggle(ctx, layer.Wetland, true))
	assert.True(t, o.state.Analyzed(layer.Wetland))
	assert.Contains(t, v.overlays, layer.Wetland)
	assert.Equal(t, "Wetland legend", v.legendTitle)
	assert.Equal(t, layer.Wetland, v.statsLayer)

	require.NoError(t, o.Toggle(ctx, layer.Wetland, false))
	assert.NotContains(t, v.overlays, layer.Wetland)

	require.NoError(t, o.Toggle(ctx, layer.Wetland, true))
	assert.Contains(t, v.overlays, layer.Wetland)

	m.AssertNumberOfCalls(t, "AnalyzeLayer", 1)
	m.AssertNumberOfCalls(t, "MapURL", 2)
}

func TestROIDeletedResetsEverything(t *testing.T) {
	ctx := context.Background()
	o, m, v := newTestOrchestrator(t)
	establish(t, o, m)
	m.On("AnalyzeLayer", mock.Anything, forLayer(layer.Soil)).Return(success, nil)
	stubAssets(m, layer.Soil)
	require.NoError(t, o.Toggle(ctx, layer.Soil, true))
	m.On("Reset", mock.Anything).Return(nil)

	o.ROICleared(ctx, 2)

	for _, l := range layer.All {
		assert.False(t, o.state.Analyzed(l), l)
		assert.False(t, v.controls[l].enabled, l)
		assert.False(t, v.controls[l].checked, l)
		assert.False(t, v.controls[l].active, l)
	}
	assert.Equal(t, StatusReadyDefault, v.controls[layer.Forest].status)
	assert.Equal(t, StatusClickToRun, v.controls[layer.Soil].status)
	assert.Empty(t, v.overlays)
	assert.Equal(t, layer.Layer(""), v.legend)
	_, ok := o.state.Active()
	assert.False(t, ok)
	m.AssertCalled(t, "Reset", mock.Anything)
}

func TestROIDeletedResetFailureIsIgnored(t *testing.T) {
	o, m, _ := newTestOrchestrator(t)
	establish(t, o, m)
	m.On("Reset", mock.Anything).Return(errors.New("connection refused"))

	o.ROICleared(context.Background(), 2)
	assert.False(t, o.state.Established())
}

func TestHidingOnlyVisibleLayerHidesLegend(t *testing.T) {
	o, m, v := newTestOrchestrator(t)
	establish(t, o, m)
	require.Equal(t, layer.Forest, v.legend)

	require.NoError(t, o.UpdateLayerVisibility(context.Background(), layer.Forest, false))

	assert.Equal(t, layer.Layer(""), v.legend)
	assert.Equal(t, layer.Layer(""), v.statsLayer)
	assert.NotContains(t, v.overlays, layer.Forest)
	assert.True(t, v.controls[layer.Forest].enabled, "forest toggle stays enabled")
	_, ok := o.state.Active()
	assert.False(t, ok)
}

func TestHidingPromotesLastVisibleLayer(t *testing.T) {
	ctx := context.Background()
	o, m, v := newTestOrchestrator(t)
	establish(t, o, m)
	require.NoError(t, o.Toggle(ctx, layer.Forest, false))

	for _, l := range []layer.Layer{layer.Wetland, layer.Soil} {
		m.On("AnalyzeLayer", mock.Anything, forLayer(l)).Return(success, nil)
		stubAssets(m, l)
		require.NoError(t, o.Toggle(ctx, l, true))
	}
	require.NoError(t, o.SetActiveLayer(ctx, layer.Wetland))
	require.Equal(t, layer.Wetland, v.legend)

	require.NoError(t, o.UpdateLayerVisibility(ctx, layer.Wetland, false))

	active, ok := o.state.Active()
	require.True(t, ok)
	assert.Equal(t, layer.Soil, active)
	assert.Equal(t, layer.Soil, v.legend)
	assert.Equal(t, "Soil Moisture legend", v.legendTitle)
	assert.Equal(t, layer.Soil, v.statsLayer)
}

func TestAnalysisFailureSurfacesDetail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/setup-roi":
			w.Write([]byte(`{"status":"success","area_km2":12.3456}`))
		case "/api/forest/map-url":
			w.Write([]byte(`{"tile_url":"https://earthengine.googleapis.com/v1/forest/{z}/{x}/{y}"}`))
		case "/api/legends/forest", "/api/forest/statistics":
			w.Write([]byte(`{}`))
		case "/api/analyze-layer":
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"detail":"GEE quota exceeded"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	v := newFakeView()
	o := NewOrchestrator(gateway.New(gateway.Config{BaseURL: srv.URL, Timeout: 5 * time.Second}, nil), v, Options{Pace: -1})
	ctx := context.Background()
	require.NoError(t, o.ROIChanged(ctx, 1, testRing))

	err := o.Toggle(ctx, layer.Wetland, true)
	require.Error(t, err)

	last := v.lastStatus()
	assert.Equal(t, StatusError, last.kind)
	assert.Contains(t, last.msg, "GEE quota exceeded")
	assert.False(t, o.state.Analyzed(layer.Wetland))
	assert.False(t, o.state.Checked(layer.Wetland))
	assert.False(t, v.controls[layer.Wetland].checked)
	assert.Equal(t, StatusRetry, v.controls[layer.Wetland].status)
}

func TestResolutionDefaults(t *testing.T) {
	ctx := context.Background()
	o, m, _ := newTestOrchestrator(t)
	establish(t, o, m)

	sent := map[string]int{}
	for _, l := range []layer.Layer{layer.Tundra, layer.Chlorophyll} {
		m.On("AnalyzeLayer", mock.Anything, forLayer(l)).
			Run(func(args mock.Arguments) {
				req := args.Get(1).(gateway.AnalyzeLayerRequest)
				sent[req.LayerType] = req.Resolution
			}).
			Return(success, nil)
		stubAssets(m, l)
		require.NoError(t, o.Toggle(ctx, l, true))
	}

	assert.Equal(t, 250, sent["tundra"])
	assert.Equal(t, 4638, sent["chlorophyll"])
}

func TestExplicitResolutionOverridesDefault(t *testing.T) {
	ctx := context.Background()
	o, m, _ := newTestOrchestrator(t)
	establish(t, o, m)
	m.On("AnalyzeLayer", mock.Anything, mock.Anything).Return(success, nil)

	require.NoError(t, o.HandleResolutionChange(ctx, 30))

	m.AssertCalled(t, "AnalyzeLayer", mock.Anything, gateway.AnalyzeLayerRequest{
		LayerType:  "forest",
		StartDate:  DefaultStartDate,
		EndDate:    DefaultEndDate,
		Resolution: 30,
	})
	assert.Equal(t, 30, o.Params().Resolution)
}

func TestDateChangeReanalyzesVisibleLayers(t *testing.T) {
	ctx := context.Background()
	o, m, v := newTestOrchestrator(t)
	establish(t, o, m)
	m.On("AnalyzeLayer", mock.Anything, forLayer(layer.Grassland)).Return(success, nil).Once()
	stubAssets(m, layer.Grassland)
	require.NoError(t, o.Toggle(ctx, layer.Grassland, true))

	var order []string
	m.On("AnalyzeLayer", mock.Anything, mock.MatchedBy(func(r gateway.AnalyzeLayerRequest) bool {
		return r.StartDate == "2022-01-01"
	})).Run(func(args mock.Arguments) {
		order = append(order, args.Get(1).(gateway.AnalyzeLayerRequest).LayerType)
	}).Return(success, nil)

	require.NoError(t, o.HandleDateChange(ctx, "2022-01-01", "2022-12-31"))

	assert.Equal(t, []string{"forest", "grassland"}, order)
	assert.True(t, v.controls[layer.Grassland].checked)
	assert.Equal(t, StatusAnalyzed, v.controls[layer.Grassland].status)
}

func TestParamChangeWithoutROIOnlyStores(t *testing.T) {
	o, m, _ := newTestOrchestrator(t)

	require.NoError(t, o.HandleDateChange(context.Background(), "2020-01-01", "2020-06-01"))
	require.NoError(t, o.HandleResolutionChange(context.Background(), 100))

	assert.Equal(t, Params{StartDate: "2020-01-01", EndDate: "2020-06-01", Resolution: 100}, o.Params())
	m.AssertNotCalled(t, "AnalyzeLayer", mock.Anything, mock.Anything)
}

func TestReanalysisFailureKeepsToggleChecked(t *testing.T) {
	ctx := context.Background()
	o, m, v := newTestOrchestrator(t)
	establish(t, o, m)
	m.On("AnalyzeLayer", mock.Anything, forLayer(layer.Forest)).
		Return(nil, &gateway.Error{Op: "analyze-layer", Kind: gateway.KindTransport, Status: 502, Detail: gateway.UnknownError})

	err := o.HandleResolutionChange(ctx, 20)
	require.Error(t, err)

	assert.True(t, o.state.Checked(layer.Forest))
	assert.True(t, v.controls[layer.Forest].checked)
	assert.False(t, o.state.Analyzed(layer.Forest))
	assert.Equal(t, StatusRetry, v.controls[layer.Forest].status)
	assert.NotContains(t, v.overlays, layer.Forest)
	assert.Equal(t, "Forest analysis failed: Unknown error", v.lastStatus().msg)
}

func TestReanalysisStopsWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m := &MockBackend{}
	v := newFakeView()
	o := NewOrchestrator(m, v, Options{Pace: time.Hour})
	establish(t, o, m)
	m.On("AnalyzeLayer", mock.Anything, forLayer(layer.Tundra)).Return(success, nil).Once()
	stubAssets(m, layer.Tundra)
	require.NoError(t, o.Toggle(ctx, layer.Tundra, true))

	m.On("AnalyzeLayer", mock.Anything, mock.Anything).Run(func(mock.Arguments) { cancel() }).Return(success, nil)

	err := o.HandleDateChange(ctx, "2022-01-01", "2023-01-01")
	assert.ErrorIs(t, err, context.Canceled)
	m.AssertNumberOfCalls(t, "AnalyzeLayer", 2)
}

func TestStaleAnalysisIsDiscarded(t *testing.T) {
	ctx := context.Background()
	o, m, v := newTestOrchestrator(t)
	establish(t, o, m)
	stubAssets(m, layer.Tundra)

	started := make(chan struct{})
	release := make(chan struct{})
	m.On("AnalyzeLayer", mock.Anything, forLayer(layer.Tundra)).
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return(nil, errors.New("slow request failed")).Once()
	m.On("AnalyzeLayer", mock.Anything, forLayer(layer.Tundra)).Return(success, nil).Once()

	errc := make(chan error, 1)
	go func() { errc <- o.Toggle(ctx, layer.Tundra, true) }()
	<-started

	require.NoError(t, o.Toggle(ctx, layer.Tundra, true))
	close(release)
	require.NoError(t, <-errc)

	assert.True(t, o.state.Analyzed(layer.Tundra))
	assert.True(t, o.state.Checked(layer.Tundra))
	assert.Equal(t, StatusAnalyzed, v.controls[layer.Tundra].status)
	assert.Contains(t, v.overlays, layer.Tundra)
}

func TestLateResultAfterToggleOffStaysHidden(t *testing.T) {
	ctx := context.Background()
	o, m, v := newTestOrchestrator(t)
	establish(t, o, m)
	stubAssets(m, layer.Soil)

	started := make(chan struct{})
	release := make(chan struct{})
	m.On("AnalyzeLayer", mock.Anything, forLayer(layer.Soil)).
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return(success, nil).Once()

	errc := make(chan error, 1)
	go func() { errc <- o.Toggle(ctx, layer.Soil, true) }()
	<-started
	require.NoError(t, o.Toggle(ctx, layer.Soil, false))
	close(release)
	require.NoError(t, <-errc)

	assert.True(t, o.state.Analyzed(layer.Soil))
	assert.NotContains(t, v.overlays, layer.Soil)
	assert.Equal(t, layer.Forest, v.legend)
}

func TestToggleWithoutROI(t *testing.T) {
	o, _, v := newTestOrchestrator(t)

	err := o.Toggle(context.Background(), layer.Wetland, true)
	assert.ErrorIs(t, err, ErrNoROI)
	assert.False(t, v.controls[layer.Wetland].checked)
}

func TestToggleInvalidLayer(t *testing.T) {
	o, _, _ := newTestOrchestrator(t)
	assert.ErrorIs(t, o.Toggle(context.Background(), layer.Layer("volcano"), true), layer.ErrInvalidLayer)
}

func TestSetActiveLayerRequiresVisible(t *testing.T) {
	o, m, _ := newTestOrchestrator(t)
	establish(t, o, m)
	assert.ErrorIs(t, o.SetActiveLayer(context.Background(), layer.Wetland), ErrNotVisible)
}

func TestStatisticsFailureWarns(t *testing.T) {
	ctx := context.Background()
	o, m, v := newTestOrchestrator(t)
	establish(t, o, m)
	m.On("AnalyzeLayer", mock.Anything, forLayer(layer.AlgalBlooms)).Return(success, nil)
	m.On("MapURL", mock.Anything, layer.AlgalBlooms).Return(&gateway.MapURLResponse{TileURL: "https://earthengine.googleapis.com/x"}, nil)
	m.On("Legends", mock.Anything, layer.AlgalBlooms).Return(gateway.LegendSet{}, nil)
	m.On("Statistics", mock.Anything, layer.AlgalBlooms).Return(nil, &gateway.Error{Op: "statistics", Kind: gateway.KindTransport, Status: 404, Detail: "No analysis"})

	require.NoError(t, o.Toggle(ctx, layer.AlgalBlooms, true))

	assert.Equal(t, statusMsg{StatusWarning, "Could not load Algal Blooms statistics: No analysis"}, v.lastStatus())
	active, ok := o.state.Active()
	require.True(t, ok)
	assert.Equal(t, layer.AlgalBlooms, active)
	assert.Equal(t, layer.AlgalBlooms, v.statsLayer, "panel must not keep forest statistics")
	assert.Empty(t, v.sections)
	assert.Equal(t, layer.Layer(""), v.legend, "missing legend hides the panel")
}

func TestStaleRegionChangeIsIgnored(t *testing.T) {
	ctx := context.Background()
	o, m, _ := newTestOrchestrator(t)
	newer := orb.Ring{{5, 5}, {6, 5}, {6, 6}, {5, 5}}
	m.On("SetupROI", mock.Anything, mock.MatchedBy(func(r gateway.SetupROIRequest) bool { return r.Coordinates[0] == newer[0] })).
		Return(&gateway.SetupROIResponse{Status: gateway.StatusSuccess, AreaKm2: 2}, nil).Once()
	stubAssets(m, layer.Forest)

	require.NoError(t, o.ROIChanged(ctx, 2, newer))
	require.NoError(t, o.ROIChanged(ctx, 1, testRing))

	assert.Equal(t, newer, o.state.Ring())
	assert.True(t, o.state.Established())
	m.AssertNumberOfCalls(t, "SetupROI", 1)

	o.ROICleared(ctx, 1)
	assert.True(t, o.state.Established())
	m.AssertNotCalled(t, "Reset", mock.Anything)
}

func TestParamsChangeReanalyzesOnce(t *testing.T) {
	ctx := context.Background()
	o, m, _ := newTestOrchestrator(t)
	establish(t, o, m)
	m.On("AnalyzeLayer", mock.Anything, forLayer(layer.Forest)).Return(success, nil)

	require.NoError(t, o.HandleParamsChange(ctx, Params{StartDate: "2022-01-01", EndDate: "2022-12-31", Resolution: 30}))

	assert.Equal(t, Params{StartDate: "2022-01-01", EndDate: "2022-12-31", Resolution: 30}, o.Params())
	m.AssertNumberOfCalls(t, "AnalyzeLayer", 1)
	m.AssertCalled(t, "AnalyzeLayer", mock.Anything, gateway.AnalyzeLayerRequest{
		LayerType:  "forest",
		StartDate:  "2022-01-01",
		EndDate:    "2022-12-31",
		Resolution: 30,
	})
}

func TestRecordsRuns(t *testing.T) {
	rec := &memRecorder{}
	m := &MockBackend{}
	o := NewOrchestrator(m, newFakeView(), Options{Session: "abc", Pace: -1, Runs: rec})
	establish(t, o, m)
	m.On("AnalyzeLayer", mock.Anything, forLayer(layer.Soil)).Return(nil, errors.New("boom"))

	require.Error(t, o.Toggle(context.Background(), layer.Soil, true))

	require.Len(t, rec.runs, 2)
	assert.Equal(t, RunSetup, rec.runs[0].Kind)
	assert.True(t, rec.runs[0].Success)
	assert.InDelta(t, 12.3456, rec.runs[0].AreaKm2, 1e-9)
	assert.Equal(t, RunAnalysis, rec.runs[1].Kind)
	assert.Equal(t, layer.Soil, rec.runs[1].Layer)
	assert.Equal(t, 500, rec.runs[1].Resolution)
	assert.False(t, rec.runs[1].Success)
	assert.Equal(t, "boom", rec.runs[1].Detail)
	assert.Equal(t, "abc", rec.runs[1].Session)
}

func TestRenderReplaysState(t *testing.T) {
	o, m, _ := newTestOrchestrator(t)
	establish(t, o, m)

	fresh := newFakeView()
	o.view = fresh
	o.Render(context.Background())

	assert.Equal(t, testRing, fresh.ring)
	assert.Contains(t, fresh.coords, "3 vertices")
	assert.True(t, fresh.controls[layer.Forest].checked)
	assert.Contains(t, fresh.overlays, layer.Forest)
	assert.Equal(t, layer.Forest, fresh.legend)
	assert.Equal(t, layer.Forest, fresh.statsLayer)
}

type memRecorder struct {
	runs []Run
}

func (r *memRecorder) RecordRun(_ context.Context, run Run) error {
	r.runs = append(r.runs, run)
	return nil
}
