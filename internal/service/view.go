package service

import (
	"context"
	"encoding/json"

	"github.com/joeblew999/plat-eco/internal/gateway"
	"github.com/joeblew999/plat-eco/internal/layer"
	"github.com/joeblew999/plat-eco/internal/roi"
	"github.com/joeblew999/plat-eco/internal/stats"
)

// StatusKind is the flavour of a status message.
type StatusKind string

const (
	StatusSuccess StatusKind = "success"
	StatusError   StatusKind = "error"
	StatusLoading StatusKind = "loading"
	StatusWarning StatusKind = "warning"
)

// Overlay is a tile layer the map can draw.
type Overlay struct {
	Layer   layer.Layer `json:"layer"`
	TileURL string      `json:"tileUrl"`
	MapID   string      `json:"mapId,omitempty"`
}

// LayerControl is the presentation handle for one layer: its toggle, its
// status text and its list item.
type LayerControl interface {
	SetEnabled(enabled bool)
	SetChecked(checked bool)
	SetStatus(text string)
	SetAnalyzing(analyzing bool)
	SetActive(active bool)
}

// View is everything the orchestrator can change on screen.
type View interface {
	roi.Display

	Status(kind StatusKind, msg string)
	Layer(l layer.Layer) LayerControl

	ShowOverlay(o Overlay)
	HideOverlay(l layer.Layer)

	ShowLegend(l layer.Layer, legend gateway.Legend)
	HideLegend()

	ShowStatistics(l layer.Layer, sections []stats.Section)
	ClearActiveStatistics()
}

// Backend is the subset of the analysis backend the orchestrator calls.
type Backend interface {
	SetupROI(ctx context.Context, req gateway.SetupROIRequest) (*gateway.SetupROIResponse, error)
	AnalyzeLayer(ctx context.Context, req gateway.AnalyzeLayerRequest) (*gateway.AnalyzeLayerResponse, error)
	MapURL(ctx context.Context, l layer.Layer) (*gateway.MapURLResponse, error)
	Statistics(ctx context.Context, l layer.Layer) (json.RawMessage, error)
	Legends(ctx context.Context, l layer.Layer) (gateway.LegendSet, error)
	Reset(ctx context.Context) error
}
