package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-eco/internal/db"
	"github.com/joeblew999/plat-eco/internal/layer"
	"github.com/joeblew999/plat-eco/internal/service"
)

// RunLister lists recorded analysis runs.
type RunLister interface {
	ListRuns(ctx context.Context, f db.RunFilter) ([]service.Run, int, error)
}

// RunsHandler serves the run history.
type RunsHandler struct {
	runs RunLister
}

// NewRunsHandler creates a runs handler. runs may be nil when the database
// is unavailable.
func NewRunsHandler(runs RunLister) *RunsHandler {
	return &RunsHandler{runs: runs}
}

// RegisterRoutes registers run history routes with Huma.
func (h *RunsHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/runs", h.ListRuns, huma.OperationTags("runs"))
}

// RunsInput filters and pages the run history.
type RunsInput struct {
	Session string `query:"session" doc:"Only runs of this session"`
	Layer   string `query:"layer" doc:"Only runs of this layer" enum:"forest,wetland,tundra,grassland,algal_blooms,soil,chlorophyll"`
	Limit   int    `query:"limit" doc:"Page size" default:"50" minimum:"1" maximum:"500"`
	Offset  int    `query:"offset" doc:"Items to skip" default:"0" minimum:"0"`
}

// RunsOutput is a page of runs.
type RunsOutput struct {
	Body PageBody[service.Run]
}

// ListRuns returns recorded runs, newest first.
func (h *RunsHandler) ListRuns(ctx context.Context, input *RunsInput) (*RunsOutput, error) {
	if h.runs == nil {
		return nil, huma.Error503ServiceUnavailable("Database not available")
	}

	runs, total, err := h.runs.ListRuns(ctx, db.RunFilter{
		Session: input.Session,
		Layer:   layer.Layer(input.Layer),
		Limit:   input.Limit,
		Offset:  input.Offset,
	})
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to list runs", err)
	}

	return &RunsOutput{Body: PageBody[service.Run]{
		Total:  total,
		Offset: input.Offset,
		Limit:  input.Limit,
		Data:   runs,
	}}, nil
}
