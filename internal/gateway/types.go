package gateway

import "github.com/paulmach/orb"

// StatusSuccess is the application-level success marker in response bodies.
const StatusSuccess = "success"

// SetupROIRequest is the body of POST /api/setup-roi.
type SetupROIRequest struct {
	Coordinates orb.Ring `json:"coordinates"`
	StartDate   string   `json:"start_date"`
	EndDate     string   `json:"end_date"`
	Resolution  int      `json:"resolution"`
}

// SetupROIResponse is the success body of POST /api/setup-roi.
type SetupROIResponse struct {
	Status         string  `json:"status"`
	AreaKm2        float64 `json:"area_km2"`
	AnalysisPeriod string  `json:"analysis_period,omitempty"`
	Resolution     string  `json:"resolution,omitempty"`
	Message        string  `json:"message,omitempty"`
	Detail         string  `json:"detail,omitempty"`
}

// AnalyzeLayerRequest is the body of POST /api/analyze-layer.
type AnalyzeLayerRequest struct {
	LayerType  string `json:"layer_type"`
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"`
	Resolution int    `json:"resolution"`
}

// AnalyzeLayerResponse is the success body of POST /api/analyze-layer.
type AnalyzeLayerResponse struct {
	Status  string `json:"status"`
	Layer   string `json:"layer,omitempty"`
	Message string `json:"message,omitempty"`
	Detail  string `json:"detail,omitempty"`
}

// MapURLResponse is the body of GET /api/{layer}/map-url.
type MapURLResponse struct {
	TileURL string `json:"tile_url"`
	MapID   string `json:"map_id,omitempty"`
}

// LegendItem is one colour/label entry of a classification legend.
type LegendItem struct {
	Value       *int   `json:"value,omitempty"`
	Label       string `json:"label"`
	Color       string `json:"color"`
	Description string `json:"description,omitempty"`
}

// Legend describes how to render a layer's classification key.
type Legend struct {
	Title       string       `json:"title"`
	Type        string       `json:"type"`
	Items       []LegendItem `json:"items"`
	Methodology string       `json:"methodology,omitempty"`
	DataSources string       `json:"data_sources,omitempty"`
}

// LegendClassification is the only legend type the dashboard renders.
const LegendClassification = "classification"

// LegendSet is the body of GET /api/legends/{layer}, keyed by legend key.
type LegendSet map[string]Legend

// HealthResponse is the body of GET /api/health.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp,omitempty"`
}
