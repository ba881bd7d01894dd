package dashboard

import (
	"sync"

	"github.com/paulmach/orb"
	"go.uber.org/zap"

	"github.com/joeblew999/plat-eco/internal/gateway"
	"github.com/joeblew999/plat-eco/internal/layer"
	"github.com/joeblew999/plat-eco/internal/service"
	"github.com/joeblew999/plat-eco/internal/stats"
	"github.com/joeblew999/plat-eco/internal/templates"
)

// Selectors of the page regions the view patches.
const (
	StatusSelector = "#status"
	LegendSelector = "#legend"
	StatsSelector  = "#stats"
)

// statusData feeds the "status" fragment.
type statusData struct {
	Kind    service.StatusKind
	Message string
}

// legendData feeds the "legend" fragment.
type legendData struct {
	Layer  layer.Layer
	Legend gateway.Legend
}

// statsData feeds the "stats" fragment.
type statsData struct {
	Layer    layer.Layer
	Title    string
	Sections []stats.Section
}

// View renders orchestrator updates as Datastar events on a session bus.
type View struct {
	bus      *service.EventBus
	renderer *templates.Renderer
	logger   *zap.Logger

	mu       sync.Mutex
	controls map[layer.Layer]*control
}

// NewView creates a view publishing to bus.
func NewView(bus *service.EventBus, renderer *templates.Renderer, logger *zap.Logger) *View {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &View{
		bus:      bus,
		renderer: renderer,
		logger:   logger,
		controls: make(map[layer.Layer]*control, len(layer.All)),
	}
}

// Factory returns a service.ViewFactory building views with renderer.
func Factory(renderer *templates.Renderer, logger *zap.Logger) service.ViewFactory {
	return func(bus *service.EventBus) service.View {
		return NewView(bus, renderer, logger)
	}
}

func (v *View) signals(s map[string]any) {
	v.bus.Publish(service.Event{Signals: s})
}

func (v *View) patch(selector, tmpl string, data any) {
	html, err := v.renderer.Render(tmpl, data)
	if err != nil {
		v.logger.Error("Failed to render fragment", zap.String("template", tmpl), zap.Error(err))
		return
	}
	v.bus.Publish(service.Event{Selector: selector, HTML: html})
}

// ShowROI draws ring on the map.
func (v *View) ShowROI(ring orb.Ring) {
	v.signals(map[string]any{"roishape": ring})
}

// ClearROI removes the drawn shape.
func (v *View) ClearROI() {
	v.signals(map[string]any{"roishape": []orb.Point{}})
}

// SetCoordinates updates the ROI readout.
func (v *View) SetCoordinates(text string) {
	v.signals(map[string]any{"coordinates": text})
}

// Status replaces the status message.
func (v *View) Status(kind service.StatusKind, msg string) {
	v.patch(StatusSelector, "status", statusData{Kind: kind, Message: msg})
}

// Layer returns the control of l.
func (v *View) Layer(l layer.Layer) service.LayerControl {
	v.mu.Lock()
	defer v.mu.Unlock()
	c, ok := v.controls[l]
	if !ok {
		c = &control{view: v, layer: l}
		v.controls[l] = c
	}
	return c
}

// ShowOverlay attaches the tile overlay of o.Layer.
func (v *View) ShowOverlay(o service.Overlay) {
	v.signals(map[string]any{"overlays": map[string]any{o.Layer.String(): o.TileURL}})
}

// HideOverlay detaches the tile overlay of l.
func (v *View) HideOverlay(l layer.Layer) {
	v.signals(map[string]any{"overlays": map[string]any{l.String(): ""}})
}

// ShowLegend renders legend and shows the legend panel.
func (v *View) ShowLegend(l layer.Layer, legend gateway.Legend) {
	v.patch(LegendSelector, "legend", legendData{Layer: l, Legend: legend})
	v.signals(map[string]any{"legendvisible": true})
}

// HideLegend hides the legend panel.
func (v *View) HideLegend() {
	v.signals(map[string]any{"legendvisible": false})
}

// ShowStatistics renders the statistics of the active layer l.
func (v *View) ShowStatistics(l layer.Layer, sections []stats.Section) {
	v.patch(StatsSelector, "stats", statsData{Layer: l, Title: l.Title(), Sections: sections})
	v.signals(map[string]any{"activelayer": l.String()})
}

// ClearActiveStatistics empties the statistics panel.
func (v *View) ClearActiveStatistics() {
	v.patch(StatsSelector, "empty-state", map[string]string{
		"Title":   "No active layer",
		"Message": "Toggle an analyzed layer to see its statistics",
	})
	v.signals(map[string]any{"activelayer": ""})
}

// control drives the layers.<layer>.* signals of one layer.
type control struct {
	view  *View
	layer layer.Layer
}

func (c *control) set(key string, value any) {
	c.view.signals(map[string]any{
		"layers": map[string]any{
			c.layer.String(): map[string]any{key: value},
		},
	})
}

func (c *control) SetEnabled(enabled bool)     { c.set("enabled", enabled) }
func (c *control) SetChecked(checked bool)     { c.set("checked", checked) }
func (c *control) SetStatus(text string)       { c.set("status", text) }
func (c *control) SetAnalyzing(analyzing bool) { c.set("analyzing", analyzing) }
func (c *control) SetActive(active bool)       { c.set("active", active) }

var _ service.View = (*View)(nil)
