// Package api defines the Huma REST routes of the dashboard service.
package api

import (
	"context"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-eco/internal/gateway"
	"github.com/joeblew999/plat-eco/internal/layer"
	"github.com/joeblew999/plat-eco/internal/service"
)

// Version is the API version reported by /health and /api/v1/info.
const Version = "1.0.0"

// HealthChecker reports whether the analysis backend is up.
type HealthChecker interface {
	Health(ctx context.Context) (*gateway.HealthResponse, error)
}

// Services holds the service dependencies for API handlers.
type Services struct {
	Backend  HealthChecker
	Sessions *service.Store
}

// Types

type LayerInput struct {
	Layer string `path:"layer" doc:"Analysis layer" example:"forest" enum:"forest,wetland,tundra,grassland,algal_blooms,soil,chlorophyll"`
}

type LayerBody struct {
	Name              layer.Layer `json:"name" doc:"Layer identifier" example:"forest"`
	Title             string      `json:"title" doc:"Display name" example:"Forest"`
	DefaultResolution int         `json:"defaultResolution" doc:"Resolution used when none is set, in metres" example:"10"`
	LegendKey         string      `json:"legendKey" doc:"Key of the layer's classification legend" example:"forest_classification"`
	AutoAnalyzed      bool        `json:"autoAnalyzed" doc:"Whether ROI setup analyses this layer"`
}

type LayerOutput struct {
	Body LayerBody
}

type LayersOutput struct {
	Body []LayerBody
}

type HealthBody struct {
	Status   string `json:"status" doc:"Health status" example:"ok" enum:"ok,degraded"`
	Version  string `json:"version" doc:"API version" example:"1.0.0"`
	Backend  string `json:"backend" doc:"Analysis backend status" example:"healthy"`
	Sessions int    `json:"sessions" doc:"Live dashboard sessions"`
}

type SessionInput struct {
	Session string `cookie:"eco_session" doc:"Dashboard session id"`
}

type SessionOutput struct {
	Body service.Snapshot
}

// APIHandler holds the REST handlers. Methods named Register* are
// auto-discovered by huma.AutoRegister.
type APIHandler struct {
	svc *Services
}

func NewAPIHandler(svc *Services) *APIHandler {
	return &APIHandler{svc: svc}
}

// RegisterHealth registers health check routes.
func (h *APIHandler) RegisterHealth(api huma.API) {
	huma.Get(api, "/health", h.GetHealth, huma.OperationTags("health"))
}

// RegisterLayers registers the layer catalogue routes.
func (h *APIHandler) RegisterLayers(api huma.API) {
	huma.Get(api, "/api/v1/layers", h.GetLayers, huma.OperationTags("layers"))
	huma.Get(api, "/api/v1/layers/{layer}", h.GetLayer, huma.OperationTags("layers"))
}

// RegisterSession registers the session snapshot route.
func (h *APIHandler) RegisterSession(api huma.API) {
	huma.Get(api, "/api/v1/session", h.GetSession, huma.OperationTags("session"))
}

// Handlers

func (h *APIHandler) GetHealth(ctx context.Context, input *struct{}) (*struct{ Body HealthBody }, error) {
	body := HealthBody{Status: "ok", Version: Version, Backend: "unknown"}
	if h.svc != nil && h.svc.Sessions != nil {
		body.Sessions = h.svc.Sessions.Len()
	}
	if h.svc != nil && h.svc.Backend != nil {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		resp, err := h.svc.Backend.Health(ctx)
		if err != nil {
			body.Status = "degraded"
			body.Backend = gateway.Detail(err)
		} else {
			body.Backend = resp.Status
		}
	}
	return &struct{ Body HealthBody }{Body: body}, nil
}

func layerBody(l layer.Layer) LayerBody {
	return LayerBody{
		Name:              l,
		Title:             l.Title(),
		DefaultResolution: l.DefaultResolution(),
		LegendKey:         l.LegendKey(),
		AutoAnalyzed:      l == layer.Forest,
	}
}

func (h *APIHandler) GetLayers(ctx context.Context, input *struct{}) (*LayersOutput, error) {
	out := make([]LayerBody, 0, len(layer.All))
	for _, l := range layer.All {
		out = append(out, layerBody(l))
	}
	return &LayersOutput{Body: out}, nil
}

func (h *APIHandler) GetLayer(ctx context.Context, input *LayerInput) (*LayerOutput, error) {
	l, err := layer.Parse(input.Layer)
	if err != nil {
		return nil, huma.Error404NotFound("layer not found")
	}
	return &LayerOutput{Body: layerBody(l)}, nil
}

func (h *APIHandler) GetSession(ctx context.Context, input *SessionInput) (*SessionOutput, error) {
	if h.svc == nil || h.svc.Sessions == nil {
		return nil, huma.Error503ServiceUnavailable("sessions not available")
	}
	sess, ok := h.svc.Sessions.Get(input.Session)
	if !ok {
		return nil, huma.Error404NotFound("session not found")
	}
	return &SessionOutput{Body: sess.Orchestrator.Snapshot()}, nil
}
