package service

import (
	"context"
	"time"

	"github.com/joeblew999/plat-eco/internal/layer"
)

// RunKind tells what kind of backend analysis a run was.
type RunKind string

const (
	RunSetup      RunKind = "setup"
	RunAnalysis   RunKind = "analysis"
	RunReanalysis RunKind = "reanalysis"
)

// Run is one completed backend analysis call.
type Run struct {
	ID         string      `json:"id" doc:"Run identifier"`
	Session    string      `json:"session" doc:"Session that issued the run"`
	Kind       RunKind     `json:"kind" enum:"setup,analysis,reanalysis"`
	Layer      layer.Layer `json:"layer" doc:"Analysed layer, forest for ROI setup"`
	StartDate  string      `json:"startDate"`
	EndDate    string      `json:"endDate"`
	Resolution int         `json:"resolution" doc:"Resolution sent to the backend in metres"`
	Success    bool        `json:"success"`
	Detail     string      `json:"detail,omitempty" doc:"Failure detail"`
	AreaKm2    float64     `json:"areaKm2,omitempty"`
	DurationMs int64       `json:"durationMs"`
	StartedAt  time.Time   `json:"startedAt"`
}

// RunRecorder persists run history.
type RunRecorder interface {
	RecordRun(ctx context.Context, run Run) error
}

type nopRecorder struct{}

func (nopRecorder) RecordRun(context.Context, Run) error { return nil }
