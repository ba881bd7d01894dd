package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/joeblew999/plat-eco/internal/gateway"
	"github.com/joeblew999/plat-eco/internal/layer"
	"github.com/joeblew999/plat-eco/internal/roi"
	"github.com/joeblew999/plat-eco/internal/stats"
)

// DefaultPace is the delay between consecutive re-analyses after a
// parameter change.
const DefaultPace = 500 * time.Millisecond

var (
	// ErrNoROI is returned when an operation needs an established region.
	ErrNoROI = errors.New("no region of interest")
	// ErrNotVisible is returned when activating a layer that is hidden or
	// not analyzed.
	ErrNotVisible = errors.New("layer is not visible")
)

// Options configures an Orchestrator.
type Options struct {
	Session string
	Params  Params
	// Pace between re-analyses. Zero means DefaultPace, negative means none.
	Pace   time.Duration
	Runs   RunRecorder
	Logger *zap.Logger
}

// Orchestrator owns one session's layer state and drives the view from
// backend results. The mutex is held while state and view change, never
// across backend calls.
type Orchestrator struct {
	mu      sync.Mutex
	state   *State
	backend Backend
	view    View
	runs    RunRecorder
	logger  *zap.Logger
	pace    time.Duration
	session string
}

// statsRequest names a statistics fetch. It is dropped if the active layer
// changed before the response arrived.
type statsRequest struct {
	layer layer.Layer
	gen   uint64
}

// NewOrchestrator creates an orchestrator with no region.
func NewOrchestrator(backend Backend, view View, opts Options) *Orchestrator {
	pace := opts.Pace
	if pace == 0 {
		pace = DefaultPace
	}
	runs := opts.Runs
	if runs == nil {
		runs = nopRecorder{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		state:   NewState(opts.Params),
		backend: backend,
		view:    view,
		runs:    runs,
		logger:  logger.With(zap.String("session", opts.Session)),
		pace:    pace,
		session: opts.Session,
	}
}

// Snapshot returns a copy of the current state.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state.snapshot(o.session)
}

// Params returns the current analysis parameters.
func (o *Orchestrator) Params() Params {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state.params
}

// ROIChanged stores a new region and sets it up. A change older than the
// last applied one is ignored.
func (o *Orchestrator) ROIChanged(ctx context.Context, seq uint64, ring orb.Ring) error {
	o.mu.Lock()
	if seq <= o.state.roiSeq {
		o.mu.Unlock()
		o.logger.Debug("Discarding stale region", zap.Uint64("seq", seq))
		return nil
	}
	o.state.roiSeq = seq
	o.state.ring = ring
	o.mu.Unlock()
	return o.SetupROI(ctx)
}

// ROICleared drops the region, resets every layer and asks the backend to
// forget its analyses. A clear older than the last applied change is ignored.
func (o *Orchestrator) ROICleared(ctx context.Context, seq uint64) {
	o.mu.Lock()
	if seq <= o.state.roiSeq {
		o.mu.Unlock()
		o.logger.Debug("Discarding stale region clear", zap.Uint64("seq", seq))
		return
	}
	o.state.roiSeq = seq
	o.state.ring = nil
	o.state.established = false
	o.state.areaKm2 = 0
	o.state.resetLayers()
	o.renderReset()
	o.view.Status(StatusWarning, "Region cleared")
	o.mu.Unlock()

	if err := o.backend.Reset(ctx); err != nil {
		o.logger.Warn("Backend reset failed", zap.Error(err))
	}
}

// SetupROI registers the current region with the backend. On success forest
// is analyzed, shown and made active.
func (o *Orchestrator) SetupROI(ctx context.Context) error {
	o.mu.Lock()
	if len(o.state.ring) == 0 {
		o.view.Status(StatusError, "Please draw a region of interest first")
		o.mu.Unlock()
		return ErrNoROI
	}
	o.state.established = false
	o.state.areaKm2 = 0
	o.state.resetLayers()
	o.renderReset()
	roiGen := o.state.roiGen
	params := o.state.params
	req := gateway.SetupROIRequest{
		Coordinates: o.state.ring.Clone(),
		StartDate:   params.Start(),
		EndDate:     params.End(),
		Resolution:  layer.Forest.Resolution(params.Resolution),
	}
	o.view.Status(StatusLoading, "Setting up region of interest...")
	o.mu.Unlock()

	started := time.Now()
	resp, err := o.backend.SetupROI(ctx, req)
	run := Run{Kind: RunSetup, Layer: layer.Forest, StartDate: req.StartDate, EndDate: req.EndDate, Resolution: req.Resolution}
	if resp != nil {
		run.AreaKm2 = resp.AreaKm2
	}
	o.record(ctx, run, started, err)

	o.mu.Lock()
	if roiGen != o.state.roiGen {
		o.mu.Unlock()
		o.logger.Debug("Discarding stale ROI setup")
		return nil
	}
	if err != nil {
		o.renderReset()
		o.view.Status(StatusError, "ROI setup failed: "+gateway.Detail(err))
		o.mu.Unlock()
		o.logger.Error("ROI setup failed", zap.Error(err))
		return err
	}

	o.state.established = true
	o.state.areaKm2 = resp.AreaKm2
	for _, l := range layer.All {
		o.state.layer(l).enabled = true
	}
	forest := o.state.layer(layer.Forest)
	forest.analyzed = true
	forest.checked = true
	forest.analyzing = true
	gen := forest.generation
	for _, l := range layer.All {
		o.renderLayer(l)
	}
	o.view.Status(StatusSuccess, fmt.Sprintf("ROI setup complete. Area: %.2f km²", resp.AreaKm2))
	o.mu.Unlock()
	o.logger.Info("ROI established", zap.Float64("area_km2", resp.AreaKm2))

	overlay, legend, err := o.fetchAssets(ctx, layer.Forest)

	o.mu.Lock()
	forest = o.state.layer(layer.Forest)
	if forest.generation != gen {
		o.mu.Unlock()
		return nil
	}
	forest.analyzing = false
	if err != nil {
		forest.analyzed = false
		forest.checked = false
		forest.status = StatusRetry
		o.renderLayer(layer.Forest)
		o.view.Status(StatusWarning, "Forest layer could not be loaded: "+gateway.Detail(err))
		o.mu.Unlock()
		return nil
	}
	forest.overlay = overlay
	forest.legend = legend
	forest.status = StatusAnalyzed
	var sr statsRequest
	if forest.checked {
		sr = o.applyVisibility(layer.Forest, true)
	}
	o.renderLayer(layer.Forest)
	o.mu.Unlock()

	o.refreshStatistics(ctx, sr)
	return nil
}

// AnalyzeLayer runs the backend analysis for l. An already analyzed layer
// is only re-shown unless reanalysis is set.
func (o *Orchestrator) AnalyzeLayer(ctx context.Context, l layer.Layer, reanalysis bool) error {
	if !l.Valid() {
		return fmt.Errorf("%w: %q", layer.ErrInvalidLayer, l)
	}

	o.mu.Lock()
	if !o.state.established {
		o.view.Status(StatusError, "Please set up a region of interest first")
		o.mu.Unlock()
		return ErrNoROI
	}
	ls := o.state.layer(l)
	if ls.analyzed && !reanalysis {
		sr := o.applyVisibility(l, ls.checked)
		o.mu.Unlock()
		o.refreshStatistics(ctx, sr)
		return nil
	}
	ls.generation++
	gen := ls.generation
	ls.analyzing = true
	ls.status = StatusAnalyzing
	o.renderLayer(l)
	o.view.Status(StatusLoading, fmt.Sprintf("Analyzing %s...", l.Title()))
	params := o.state.params
	o.mu.Unlock()

	req := gateway.AnalyzeLayerRequest{
		LayerType:  l.String(),
		StartDate:  params.Start(),
		EndDate:    params.End(),
		Resolution: l.Resolution(params.Resolution),
	}
	kind := RunAnalysis
	if reanalysis {
		kind = RunReanalysis
	}

	started := time.Now()
	_, err := o.backend.AnalyzeLayer(ctx, req)
	o.record(ctx, Run{Kind: kind, Layer: l, StartDate: req.StartDate, EndDate: req.EndDate, Resolution: req.Resolution}, started, err)

	var (
		overlay *Overlay
		legend  *gateway.Legend
	)
	if err == nil {
		overlay, legend, err = o.fetchAssets(ctx, l)
	}

	o.mu.Lock()
	ls = o.state.layer(l)
	if ls.generation != gen {
		o.mu.Unlock()
		o.logger.Debug("Discarding stale analysis", zap.String("layer", l.String()))
		return nil
	}
	ls.analyzing = false

	if err != nil {
		ls.analyzed = false
		ls.status = StatusRetry
		var sr statsRequest
		if reanalysis {
			sr = o.applyVisibility(l, false)
		} else {
			ls.checked = false
		}
		o.renderLayer(l)
		o.view.Status(StatusError, fmt.Sprintf("%s analysis failed: %s", l.Title(), gateway.Detail(err)))
		o.mu.Unlock()
		o.logger.Error("Layer analysis failed", zap.String("layer", l.String()), zap.Bool("reanalysis", reanalysis), zap.Error(err))
		o.refreshStatistics(ctx, sr)
		return err
	}

	ls.analyzed = true
	ls.overlay = overlay
	ls.legend = legend
	ls.status = StatusAnalyzed
	var sr statsRequest
	if ls.checked {
		sr = o.applyVisibility(l, true)
	}
	o.renderLayer(l)
	o.view.Status(StatusSuccess, fmt.Sprintf("%s analysis complete", l.Title()))
	o.mu.Unlock()

	o.logger.Info("Layer analyzed", zap.String("layer", l.String()), zap.Duration("elapsed", time.Since(started)))
	o.refreshStatistics(ctx, sr)
	return nil
}

// UpdateLayerVisibility shows or hides l and picks the active layer.
func (o *Orchestrator) UpdateLayerVisibility(ctx context.Context, l layer.Layer, visible bool) error {
	if !l.Valid() {
		return fmt.Errorf("%w: %q", layer.ErrInvalidLayer, l)
	}
	o.mu.Lock()
	sr := o.applyVisibility(l, visible)
	o.mu.Unlock()

	o.refreshStatistics(ctx, sr)
	return nil
}

// SetActiveLayer makes l the layer whose statistics are shown and fetches
// them afresh.
func (o *Orchestrator) SetActiveLayer(ctx context.Context, l layer.Layer) error {
	if !l.Valid() {
		return fmt.Errorf("%w: %q", layer.ErrInvalidLayer, l)
	}
	o.mu.Lock()
	ls := o.state.layer(l)
	if !ls.analyzed || !ls.checked {
		o.mu.Unlock()
		return fmt.Errorf("%s: %w", l, ErrNotVisible)
	}
	o.showLegend(l)
	sr := o.activate(l)
	o.mu.Unlock()

	o.refreshStatistics(ctx, sr)
	return nil
}

// Toggle records the toggle state of l and analyzes or hides it.
func (o *Orchestrator) Toggle(ctx context.Context, l layer.Layer, checked bool) error {
	if !l.Valid() {
		return fmt.Errorf("%w: %q", layer.ErrInvalidLayer, l)
	}
	o.mu.Lock()
	ls := o.state.layer(l)
	if !o.state.established {
		ls.checked = false
		o.view.Layer(l).SetChecked(false)
		o.view.Status(StatusError, "Please draw a region of interest first")
		o.mu.Unlock()
		return ErrNoROI
	}
	ls.checked = checked
	o.view.Layer(l).SetChecked(checked)
	o.mu.Unlock()

	if checked {
		return o.AnalyzeLayer(ctx, l, false)
	}
	return o.UpdateLayerVisibility(ctx, l, false)
}

// HandleDateChange stores the new period and re-analyzes visible layers.
func (o *Orchestrator) HandleDateChange(ctx context.Context, start, end string) error {
	p := o.Params()
	p.StartDate, p.EndDate = start, end
	return o.HandleParamsChange(ctx, p)
}

// HandleResolutionChange stores the new resolution and re-analyzes visible
// layers. Values below 1 select the per-layer default.
func (o *Orchestrator) HandleResolutionChange(ctx context.Context, resolution int) error {
	p := o.Params()
	p.Resolution = resolution
	return o.HandleParamsChange(ctx, p)
}

// HandleParamsChange stores dates and resolution together and re-analyzes
// visible layers once.
func (o *Orchestrator) HandleParamsChange(ctx context.Context, p Params) error {
	if p.Resolution < 0 {
		p.Resolution = 0
	}
	o.mu.Lock()
	o.state.params = p
	targets := o.reanalysisTargets()
	o.mu.Unlock()
	return o.reanalyze(ctx, targets)
}

// Render pushes the whole state to the view, for a freshly connected client.
func (o *Orchestrator) Render(ctx context.Context) {
	o.mu.Lock()
	if len(o.state.ring) > 0 {
		o.view.ShowROI(o.state.ring.Clone())
	} else {
		o.view.ClearROI()
	}
	o.view.SetCoordinates(roi.Readout(o.state.ring))
	for _, l := range layer.All {
		ls := o.state.layer(l)
		o.renderLayer(l)
		visible := ls.checked && ls.analyzed && ls.overlay != nil
		if visible {
			o.view.ShowOverlay(*ls.overlay)
		} else {
			o.view.HideOverlay(l)
		}
		o.view.Layer(l).SetActive(visible)
	}
	var sr statsRequest
	if active, ok := o.state.Active(); ok {
		o.showLegend(active)
		sr = o.activate(active)
	} else {
		o.view.HideLegend()
		o.view.ClearActiveStatistics()
	}
	o.mu.Unlock()

	o.refreshStatistics(ctx, sr)
}

// reanalysisTargets lists analyzed, visible layers in enumeration order.
// Called with the lock held.
func (o *Orchestrator) reanalysisTargets() []layer.Layer {
	if !o.state.established {
		return nil
	}
	var targets []layer.Layer
	for _, l := range layer.All {
		if ls := o.state.layer(l); ls.analyzed && ls.checked {
			targets = append(targets, l)
		}
	}
	if len(targets) > 0 {
		o.view.Status(StatusLoading, fmt.Sprintf("Updating %d layer(s) with new parameters...", len(targets)))
	}
	return targets
}

func (o *Orchestrator) reanalyze(ctx context.Context, targets []layer.Layer) error {
	var errs []error
	for i, l := range targets {
		if i > 0 && o.pace > 0 {
			t := time.NewTimer(o.pace)
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		o.mu.Lock()
		ls := o.state.layer(l)
		still := o.state.established && ls.checked
		o.mu.Unlock()
		if !still {
			continue
		}
		if err := o.AnalyzeLayer(ctx, l, true); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// applyVisibility updates overlays, legend and the active layer for l.
// Called with the lock held; the returned request is run after unlocking.
func (o *Orchestrator) applyVisibility(l layer.Layer, visible bool) statsRequest {
	o.view.HideOverlay(l)
	ls := o.state.layer(l)

	var sr statsRequest
	switch {
	case visible && ls.analyzed && ls.overlay != nil:
		o.view.ShowOverlay(*ls.overlay)
		o.view.Layer(l).SetActive(true)
		o.showLegend(l)
		sr = o.activate(l)
	case !visible:
		o.view.Layer(l).SetActive(false)
		var next layer.Layer
		for _, other := range layer.All {
			if other == l {
				continue
			}
			if s := o.state.layer(other); s.analyzed && s.checked {
				next = other
			}
		}
		if next != "" {
			o.showLegend(next)
			sr = o.activate(next)
		} else {
			o.view.HideLegend()
			o.view.ClearActiveStatistics()
			o.state.setActive("")
		}
	}

	if forest := o.state.layer(layer.Forest); forest.analyzed {
		forest.enabled = true
		o.view.Layer(layer.Forest).SetEnabled(true)
	}
	return sr
}

func (o *Orchestrator) activate(l layer.Layer) statsRequest {
	return statsRequest{layer: l, gen: o.state.setActive(l)}
}

func (o *Orchestrator) showLegend(l layer.Layer) {
	if lg := o.state.layer(l).legend; lg != nil {
		o.view.ShowLegend(l, *lg)
		return
	}
	o.view.HideLegend()
}

// refreshStatistics fetches and renders statistics for sr unless another
// layer became active in the meantime.
func (o *Orchestrator) refreshStatistics(ctx context.Context, sr statsRequest) {
	if sr.layer == "" {
		return
	}
	raw, err := o.backend.Statistics(ctx, sr.layer)
	var sections []stats.Section
	if err == nil {
		var rec stats.Record
		if rec, err = stats.Decode(sr.layer, raw); err == nil {
			sections = stats.Format(rec)
		}
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state.activeGen != sr.gen {
		return
	}
	if err != nil {
		o.logger.Warn("Statistics unavailable", zap.String("layer", sr.layer.String()), zap.Error(err))
		o.view.ShowStatistics(sr.layer, nil)
		o.view.Status(StatusWarning, fmt.Sprintf("Could not load %s statistics: %s", sr.layer.Title(), gateway.Detail(err)))
		return
	}
	o.view.ShowStatistics(sr.layer, sections)
}

// fetchAssets loads the tile overlay and legend for l concurrently. A
// missing legend is not an error.
func (o *Orchestrator) fetchAssets(ctx context.Context, l layer.Layer) (*Overlay, *gateway.Legend, error) {
	var (
		overlay *Overlay
		legend  *gateway.Legend
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		resp, err := o.backend.MapURL(gctx, l)
		if err != nil {
			return err
		}
		overlay = &Overlay{Layer: l, TileURL: resp.TileURL, MapID: resp.MapID}
		return nil
	})
	g.Go(func() error {
		set, err := o.backend.Legends(gctx, l)
		if err != nil {
			o.logger.Warn("Legend unavailable", zap.String("layer", l.String()), zap.Error(err))
			return nil
		}
		if lg, ok := set[l.LegendKey()]; ok && (lg.Type == "" || lg.Type == gateway.LegendClassification) {
			legend = &lg
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return overlay, legend, nil
}

// renderLayer pushes the control state of l. Called with the lock held.
func (o *Orchestrator) renderLayer(l layer.Layer) {
	ls := o.state.layer(l)
	c := o.view.Layer(l)
	c.SetEnabled(ls.enabled)
	c.SetChecked(ls.checked)
	c.SetAnalyzing(ls.analyzing)
	c.SetStatus(ls.status)
}

// renderReset hides every overlay and the legend and resets every control.
// Called with the lock held.
func (o *Orchestrator) renderReset() {
	for _, l := range layer.All {
		o.view.HideOverlay(l)
		o.view.Layer(l).SetActive(false)
		o.renderLayer(l)
	}
	o.view.HideLegend()
	o.view.ClearActiveStatistics()
}

func (o *Orchestrator) record(ctx context.Context, run Run, started time.Time, err error) {
	run.ID = uuid.NewString()
	run.Session = o.session
	run.StartedAt = started.UTC()
	run.DurationMs = time.Since(started).Milliseconds()
	run.Success = err == nil
	if err != nil {
		run.Detail = gateway.Detail(err)
	}
	if rerr := o.runs.RecordRun(context.WithoutCancel(ctx), run); rerr != nil {
		o.logger.Warn("Failed to record run", zap.String("kind", string(run.Kind)), zap.Error(rerr))
	}
}
