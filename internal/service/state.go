package service

import (
	"github.com/paulmach/orb"

	"github.com/joeblew999/plat-eco/internal/gateway"
	"github.com/joeblew999/plat-eco/internal/layer"
)

// Default analysis period used when the user has not picked dates.
const (
	DefaultStartDate = "2021-01-01"
	DefaultEndDate   = "2023-01-01"
)

// Layer status texts.
const (
	StatusReadyDefault = "Ready (default)"
	StatusClickToRun   = "Click to analyze"
	StatusAnalyzing    = "Analyzing..."
	StatusAnalyzed     = "Analyzed"
	StatusRetry        = "Analysis failed - toggle to retry"
)

// Params are the analysis parameters shared by every layer of a session.
// A zero Resolution means each layer uses its own default.
type Params struct {
	StartDate  string `json:"startDate" doc:"Start of the analysis period" example:"2021-01-01"`
	EndDate    string `json:"endDate" doc:"End of the analysis period" example:"2023-01-01"`
	Resolution int    `json:"resolution,omitempty" doc:"Resolution in metres, 0 for the layer default"`
}

// Start returns the start date or its default.
func (p Params) Start() string {
	if p.StartDate == "" {
		return DefaultStartDate
	}
	return p.StartDate
}

// End returns the end date or its default.
func (p Params) End() string {
	if p.EndDate == "" {
		return DefaultEndDate
	}
	return p.EndDate
}

type layerState struct {
	analyzed   bool
	checked    bool
	enabled    bool
	analyzing  bool
	status     string
	overlay    *Overlay
	legend     *gateway.Legend
	generation uint64
}

// State is the authoritative per-session state. It is not safe for
// concurrent use; the Orchestrator guards it.
type State struct {
	ring        orb.Ring
	established bool
	areaKm2     float64
	params      Params
	active      layer.Layer
	activeGen   uint64
	roiGen      uint64
	roiSeq      uint64
	layers      map[layer.Layer]*layerState
}

// NewState returns a state with no region and every layer reset.
func NewState(p Params) *State {
	s := &State{
		params: p,
		layers: make(map[layer.Layer]*layerState, len(layer.All)),
	}
	for _, l := range layer.All {
		s.layers[l] = &layerState{}
	}
	s.resetLayers()
	return s
}

func placeholder(l layer.Layer) string {
	if l == layer.Forest {
		return StatusReadyDefault
	}
	return StatusClickToRun
}

// resetLayers clears every layer and bumps every generation so that
// in-flight results are discarded.
func (s *State) resetLayers() {
	s.roiGen++
	for _, l := range layer.All {
		ls := s.layers[l]
		*ls = layerState{status: placeholder(l), generation: ls.generation + 1}
	}
	s.setActive("")
}

func (s *State) layer(l layer.Layer) *layerState {
	return s.layers[l]
}

func (s *State) setActive(l layer.Layer) uint64 {
	s.active = l
	s.activeGen++
	return s.activeGen
}

// Analyzed reports whether l has a completed analysis for the current region.
func (s *State) Analyzed(l layer.Layer) bool {
	ls, ok := s.layers[l]
	return ok && ls.analyzed
}

// Checked reports whether the toggle for l is on.
func (s *State) Checked(l layer.Layer) bool {
	ls, ok := s.layers[l]
	return ok && ls.checked
}

// Active returns the layer whose statistics are shown.
func (s *State) Active() (layer.Layer, bool) {
	return s.active, s.active != ""
}

// Established reports whether the backend accepted the current region.
func (s *State) Established() bool {
	return s.established
}

// Params returns the analysis parameters.
func (s *State) Params() Params {
	return s.params
}

// Ring returns the current region, or nil.
func (s *State) Ring() orb.Ring {
	return s.ring
}

// LayerSnapshot is the externally visible state of one layer.
type LayerSnapshot struct {
	Layer     layer.Layer `json:"layer"`
	Analyzed  bool        `json:"analyzed"`
	Checked   bool        `json:"checked"`
	Enabled   bool        `json:"enabled"`
	Analyzing bool        `json:"analyzing"`
	Status    string      `json:"status"`
	TileURL   string      `json:"tileUrl,omitempty"`
}

// Snapshot is a copy of the session state for the REST API.
type Snapshot struct {
	Session     string          `json:"session"`
	Established bool            `json:"established"`
	ROI         [][]float64     `json:"roi,omitempty" doc:"Closed ring of [lng, lat] pairs"`
	AreaKm2     float64         `json:"areaKm2,omitempty"`
	Params      Params          `json:"params"`
	Active      layer.Layer     `json:"active,omitempty"`
	Layers      []LayerSnapshot `json:"layers"`
}

func (s *State) snapshot(session string) Snapshot {
	snap := Snapshot{
		Session:     session,
		Established: s.established,
		AreaKm2:     s.areaKm2,
		Params:      s.params,
		Active:      s.active,
		Layers:      make([]LayerSnapshot, 0, len(layer.All)),
	}
	for _, p := range s.ring {
		snap.ROI = append(snap.ROI, []float64{p.Lon(), p.Lat()})
	}
	for _, l := range layer.All {
		ls := s.layers[l]
		item := LayerSnapshot{
			Layer:     l,
			Analyzed:  ls.analyzed,
			Checked:   ls.checked,
			Enabled:   ls.enabled,
			Analyzing: ls.analyzing,
			Status:    ls.status,
		}
		if ls.overlay != nil {
			item.TileURL = ls.overlay.TileURL
		}
		snap.Layers = append(snap.Layers, item)
	}
	return snap
}
