package dashboard

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"go.uber.org/zap"

	"github.com/joeblew999/plat-eco/internal/layer"
	"github.com/joeblew999/plat-eco/internal/roi"
	"github.com/joeblew999/plat-eco/internal/service"
	"github.com/joeblew999/plat-eco/internal/templates"
)

// CookieName is the cookie holding the dashboard session id.
const CookieName = "eco_session"

// SessionInput carries the session cookie.
type SessionInput struct {
	Session string `cookie:"eco_session" doc:"Dashboard session id"`
}

// ActionInput is a user action carrying Datastar signals.
type ActionInput struct {
	SessionInput
	SignalsInput
}

// ToggleInput is a layer toggle.
type ToggleInput struct {
	SessionInput
	SignalsInput
	Layer string `path:"layer" doc:"Analysis layer" enum:"forest,wetland,tundra,grassland,algal_blooms,soil,chlorophyll"`
}

// Handler serves the Datastar endpoints of the dashboard.
type Handler struct {
	store    *service.Store
	renderer *templates.Renderer
	logger   *zap.Logger
}

// NewHandler creates a dashboard handler.
func NewHandler(store *service.Store, renderer *templates.Renderer, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, renderer: renderer, logger: logger}
}

// RegisterRoutes registers dashboard SSE routes with Huma.
func (h *Handler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/dashboard/events", h.Events, huma.OperationTags("dashboard"))
	huma.Post(api, "/api/v1/dashboard/roi", h.DrawROI, huma.OperationTags("dashboard"))
	huma.Delete(api, "/api/v1/dashboard/roi", h.DeleteROI, huma.OperationTags("dashboard"))
	huma.Post(api, "/api/v1/dashboard/layers/{layer}/toggle", h.ToggleLayer, huma.OperationTags("dashboard"))
	huma.Post(api, "/api/v1/dashboard/params", h.UpdateParams, huma.OperationTags("dashboard"))
}

// session resolves the caller's session, issuing a cookie for new ones.
// It must run before the SSE headers are written.
func (h *Handler) session(humaCtx huma.Context, id string) *service.Session {
	sess, created := h.store.GetOrCreate(id)
	if created {
		humaCtx.AppendHeader("Set-Cookie", sessionCookie(sess.ID).String())
	}
	return sess
}

func sessionCookie(id string) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

// action streams the response of a user action. fn runs detached from the
// request cancellation. Its view updates reach the browser on the events
// stream.
func (h *Handler) action(id string, fn func(ctx context.Context, sess *service.Session, sse SSE) error) *huma.StreamResponse {
	return &huma.StreamResponse{
		Body: func(humaCtx huma.Context) {
			sess := h.session(humaCtx, id)
			sse := NewSSE(humaCtx)
			ctx := context.WithoutCancel(humaCtx.Context())
			if err := fn(ctx, sess, sse); err != nil {
				h.logger.Debug("Dashboard action finished with error",
					zap.String("session", sess.ID), zap.Error(err))
			}
		},
	}
}

// status patches a status message into the action's own response.
func (h *Handler) status(sse SSE, kind service.StatusKind, msg string) {
	html, err := h.renderer.Render("status", statusData{Kind: kind, Message: msg})
	if err != nil {
		h.logger.Error("Failed to render status", zap.Error(err))
		return
	}
	sse.Patch(html, StatusSelector)
}

// Events streams every UI update of the session, starting with a full
// replay of its current state.
func (h *Handler) Events(ctx context.Context, input *SessionInput) (*huma.StreamResponse, error) {
	return &huma.StreamResponse{
		Body: func(humaCtx huma.Context) {
			sess := h.session(humaCtx, input.Session)
			ch := sess.Bus.Subscribe()
			defer sess.Bus.Unsubscribe(ch)

			reqCtx := humaCtx.Context()
			sse := NewSSE(humaCtx)
			h.logger.Debug("Dashboard stream connected", zap.String("session", sess.ID))
			go sess.Orchestrator.Render(reqCtx)

			for {
				select {
				case <-reqCtx.Done():
					return
				case e, ok := <-ch:
					if !ok {
						return
					}
					if err := sse.Send(e); err != nil {
						return
					}
				}
			}
		},
	}, nil
}

// DrawROI receives a drawn or edited shape in the "roi" signal.
func (h *Handler) DrawROI(ctx context.Context, input *ActionInput) (*huma.StreamResponse, error) {
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}
	shape, ok := signals.Raw("roi")
	if !ok {
		return nil, huma.Error400BadRequest("roi signal is required")
	}
	return h.action(input.Session, func(ctx context.Context, sess *service.Session, sse SSE) error {
		if _, err := roi.ParseRing(shape); err != nil {
			h.status(sse, service.StatusError, "Invalid region: "+err.Error())
			return err
		}
		if len(sess.ROI.Current()) > 0 {
			return sess.ROI.Edited(ctx, shape)
		}
		return sess.ROI.Created(ctx, shape)
	}), nil
}

// DeleteROI clears the region.
func (h *Handler) DeleteROI(ctx context.Context, input *SessionInput) (*huma.StreamResponse, error) {
	return h.action(input.Session, func(ctx context.Context, sess *service.Session, _ SSE) error {
		sess.ROI.Deleted(ctx)
		return nil
	}), nil
}

// ToggleLayer checks or unchecks a layer from the "checked" signal, or
// from the bound layers.<layer>.checked signal.
func (h *Handler) ToggleLayer(ctx context.Context, input *ToggleInput) (*huma.StreamResponse, error) {
	l, err := layer.Parse(input.Layer)
	if err != nil {
		return nil, huma.Error404NotFound(err.Error())
	}
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}
	var checked bool
	switch {
	case signals.Has("checked"):
		checked = signals.Bool("checked")
	case signals.Has("layers." + l.String() + ".checked"):
		checked = signals.Bool("layers." + l.String() + ".checked")
	default:
		return nil, huma.Error400BadRequest("checked signal is required")
	}
	return h.action(input.Session, func(ctx context.Context, sess *service.Session, _ SSE) error {
		return sess.Orchestrator.Toggle(ctx, l, checked)
	}), nil
}

// UpdateParams applies the date range and resolution signals, re-running
// visible analyses once when any value changed.
func (h *Handler) UpdateParams(ctx context.Context, input *ActionInput) (*huma.StreamResponse, error) {
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}
	return h.action(input.Session, func(ctx context.Context, sess *service.Session, _ SSE) error {
		current := sess.Orchestrator.Params()
		next := service.Params{
			StartDate:  current.Start(),
			EndDate:    current.End(),
			Resolution: current.Resolution,
		}
		if signals.Has("startdate") {
			next.StartDate = signals.String("startdate")
		}
		if signals.Has("enddate") {
			next.EndDate = signals.String("enddate")
		}
		if signals.Has("resolution") {
			next.Resolution = max(signals.Int("resolution"), 0)
		}
		if next.StartDate == current.Start() && next.EndDate == current.End() && next.Resolution == current.Resolution {
			return nil
		}
		return sess.Orchestrator.HandleParamsChange(ctx, next)
	}), nil
}
