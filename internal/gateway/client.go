// Package gateway is the HTTP client for the external analysis backend.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/joeblew999/plat-eco/internal/layer"
)

var tracer = otel.Tracer("eco-backend-client")

// DefaultTileHosts are the tile services whose URLs are trusted by default.
var DefaultTileHosts = []string{"earthengine.googleapis.com"}

// Config holds the backend connection settings.
type Config struct {
	BaseURL          string
	Timeout          time.Duration
	TrustedTileHosts []string
}

// Client calls the analysis backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tileHosts  []string
	logger     *zap.Logger
}

// New creates a backend client.
func New(cfg Config, logger *zap.Logger) *Client {
	hosts := cfg.TrustedTileHosts
	if len(hosts) == 0 {
		hosts = DefaultTileHosts
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		tileHosts: hosts,
		logger:    logger,
	}
}

// SetupROI registers the region of interest and runs the default forest analysis.
func (c *Client) SetupROI(ctx context.Context, req SetupROIRequest) (*SetupROIResponse, error) {
	var resp SetupROIResponse
	if err := c.do(ctx, "setup-roi", http.MethodPost, "/api/setup-roi", req, &resp); err != nil {
		return nil, err
	}
	if resp.Status != StatusSuccess {
		return nil, applicationError("setup-roi", resp.Detail)
	}
	return &resp, nil
}

// AnalyzeLayer runs the analysis for one layer over the registered ROI.
func (c *Client) AnalyzeLayer(ctx context.Context, req AnalyzeLayerRequest) (*AnalyzeLayerResponse, error) {
	var resp AnalyzeLayerResponse
	if err := c.do(ctx, "analyze-layer", http.MethodPost, "/api/analyze-layer", req, &resp); err != nil {
		return nil, err
	}
	if resp.Status != StatusSuccess {
		return nil, applicationError("analyze-layer", resp.Detail)
	}
	return &resp, nil
}

// MapURL returns the tile URL template for an analyzed layer.
func (c *Client) MapURL(ctx context.Context, l layer.Layer) (*MapURLResponse, error) {
	var resp MapURLResponse
	if err := c.do(ctx, "map-url", http.MethodGet, "/api/"+l.String()+"/map-url", nil, &resp); err != nil {
		return nil, err
	}
	if !c.trusted(resp.TileURL) {
		c.logger.Warn("Rejected tile URL", zap.String("layer", l.String()), zap.String("tile_url", resp.TileURL))
		return nil, fmt.Errorf("map-url %s: %w", l, ErrUntrustedTileURL)
	}
	return &resp, nil
}

// Statistics returns the raw statistics record for an analyzed layer.
func (c *Client) Statistics(ctx context.Context, l layer.Layer) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.do(ctx, "statistics", http.MethodGet, "/api/"+l.String()+"/statistics", nil, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// Legends returns the legend descriptors for a layer.
func (c *Client) Legends(ctx context.Context, l layer.Layer) (LegendSet, error) {
	var set LegendSet
	if err := c.do(ctx, "legends", http.MethodGet, "/api/legends/"+l.String(), nil, &set); err != nil {
		return nil, err
	}
	return set, nil
}

// Reset clears every analysis held by the backend.
func (c *Client) Reset(ctx context.Context) error {
	return c.do(ctx, "reset", http.MethodDelete, "/api/analysis/reset", nil, nil)
}

// Health checks the backend.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.do(ctx, "health", http.MethodGet, "/api/health", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) trusted(tileURL string) bool {
	if tileURL == "" {
		return false
	}
	for _, host := range c.tileHosts {
		if strings.Contains(tileURL, host) {
			return true
		}
	}
	return false
}

func (c *Client) do(ctx context.Context, op, method, path string, body, out any) (err error) {
	ctx, span := tracer.Start(ctx, op)
	span.SetAttributes(attribute.String("http.route", path))
	defer func() {
		if err != nil {
			span.RecordError(err)
		}
		span.End()
	}()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: failed to encode request: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%s: failed to create request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug("Calling analysis backend", zap.String("op", op), zap.String("method", method), zap.String("path", path))
	start := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Backend request failed", zap.String("op", op), zap.Error(err))
		return &Error{Op: op, Kind: KindNetwork, Detail: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Op: op, Kind: KindNetwork, Status: resp.StatusCode, Detail: err.Error(), Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail := parseDetail(data)
		if detail == "" {
			detail = UnknownError
		}
		c.logger.Error("Backend returned error",
			zap.String("op", op),
			zap.Int("status_code", resp.StatusCode),
			zap.String("detail", detail))
		return &Error{Op: op, Kind: KindTransport, Status: resp.StatusCode, Detail: detail}
	}

	c.logger.Debug("Backend call successful",
		zap.String("op", op),
		zap.Int("status_code", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &Error{Op: op, Kind: KindApplication, Status: resp.StatusCode, Detail: "invalid response: " + err.Error(), Err: err}
	}
	return nil
}

func applicationError(op, detail string) error {
	if detail == "" {
		detail = UnknownError
	}
	return &Error{Op: op, Kind: KindApplication, Detail: detail}
}
