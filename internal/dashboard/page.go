package dashboard

import (
	"encoding/json"
	"html/template"
	"net/http"
	"strconv"

	"github.com/paulmach/orb"
	"go.uber.org/zap"

	"github.com/joeblew999/plat-eco/internal/layer"
	"github.com/joeblew999/plat-eco/internal/roi"
	"github.com/joeblew999/plat-eco/internal/service"
)

// Map view the page opens on.
var (
	DefaultCenter = orb.Point{-60.0, -3.0}
	DefaultZoom   = 5
)

// pageLayer is one entry of the layer panel.
type pageLayer struct {
	Name  string
	Title string
	Bind  template.HTMLAttr
}

// pageCenter is the initial map centre.
type pageCenter struct {
	Lat float64
	Lon float64
}

// pageData feeds the "dashboard" page.
type pageData struct {
	Title   string
	Signals string
	Layers  []pageLayer
	Center  pageCenter
	Zoom    int
}

// InitialSignals returns the signal set the page starts with for params.
func InitialSignals(params service.Params) map[string]any {
	layers := make(map[string]any, len(layer.All))
	overlays := make(map[string]any, len(layer.All))
	for _, l := range layer.All {
		layers[l.String()] = map[string]any{
			"enabled":   false,
			"checked":   false,
			"status":    "",
			"analyzing": false,
			"active":    false,
		}
		overlays[l.String()] = ""
	}
	resolution := ""
	if params.Resolution > 0 {
		resolution = strconv.Itoa(params.Resolution)
	}
	return map[string]any{
		"layers":        layers,
		"overlays":      overlays,
		"legendvisible": false,
		"activelayer":   "",
		"coordinates":   roi.Placeholder,
		"roishape":      []orb.Point{},
		"startdate":     params.Start(),
		"enddate":       params.End(),
		"resolution":    resolution,
	}
}

// Page serves the dashboard HTML.
func (h *Handler) Page(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	var id string
	if c, err := r.Cookie(CookieName); err == nil {
		id = c.Value
	}
	sess, created := h.store.GetOrCreate(id)
	if created {
		http.SetCookie(w, sessionCookie(sess.ID))
	}

	signals, err := json.Marshal(InitialSignals(sess.Orchestrator.Params()))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	data := pageData{
		Title:   "Environmental Analysis Dashboard",
		Signals: string(signals),
		Center:  pageCenter{Lat: DefaultCenter.Lat(), Lon: DefaultCenter.Lon()},
		Zoom:    DefaultZoom,
	}
	for _, l := range layer.All {
		data.Layers = append(data.Layers, pageLayer{
			Name:  l.String(),
			Title: l.Title(),
			Bind:  template.HTMLAttr("data-bind:layers." + l.String() + ".checked"),
		})
	}

	html, err := h.renderer.Render("dashboard", data)
	if err != nil {
		h.logger.Error("Failed to render dashboard", zap.Error(err))
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(html))
}
