// Package roi holds the single region of interest drawn on the map and turns
// draw, edit and delete events into orchestrator calls.
package roi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/geojson"
)

// Placeholder is the readout shown when no region is drawn.
const Placeholder = "Draw a polygon on the map to select a region"

var (
	// ErrNotPolygon is returned for shapes other than a polygon.
	ErrNotPolygon = errors.New("shape is not a polygon")
	// ErrTooFewVertices is returned for rings with fewer than 3 distinct points.
	ErrTooFewVertices = errors.New("polygon needs at least 3 distinct vertices")
)

// Handler reacts to the region being set or cleared. seq increases with
// every change the controller commits; a handler must ignore a change whose
// seq is not above the last one it applied.
type Handler interface {
	ROIChanged(ctx context.Context, seq uint64, ring orb.Ring) error
	ROICleared(ctx context.Context, seq uint64)
}

// Display renders the drawn shape and the coordinate readout.
type Display interface {
	ShowROI(ring orb.Ring)
	ClearROI()
	SetCoordinates(text string)
}

// Controller owns the current region. Drawing a new shape replaces the old one.
type Controller struct {
	mu      sync.Mutex
	current orb.Ring
	seq     uint64
	handler Handler
	display Display
}

// NewController creates a controller with no region.
func NewController(h Handler, d Display) *Controller {
	return &Controller{handler: h, display: d}
}

// Created handles a newly drawn shape.
func (c *Controller) Created(ctx context.Context, shape []byte) error {
	return c.replace(ctx, shape)
}

// Edited handles an edited shape. Edits are treated like a fresh drawing.
func (c *Controller) Edited(ctx context.Context, shape []byte) error {
	return c.replace(ctx, shape)
}

// Deleted clears the region and resets every layer.
func (c *Controller) Deleted(ctx context.Context) {
	c.mu.Lock()
	c.current = nil
	c.seq++
	seq := c.seq
	c.display.ClearROI()
	c.display.SetCoordinates(Placeholder)
	c.mu.Unlock()

	c.handler.ROICleared(ctx, seq)
}

// Current returns a copy of the region, or nil.
func (c *Controller) Current() orb.Ring {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return nil
	}
	return c.current.Clone()
}

func (c *Controller) replace(ctx context.Context, shape []byte) error {
	ring, err := ParseRing(shape)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.current = ring
	c.seq++
	seq := c.seq
	c.display.ShowROI(ring)
	c.display.SetCoordinates(Readout(ring))
	c.mu.Unlock()

	return c.handler.ROIChanged(ctx, seq, ring.Clone())
}

// ParseRing extracts the outer ring of a GeoJSON polygon. It accepts a bare
// geometry, a Feature, or a FeatureCollection whose first polygon is used.
// Open rings are closed.
func ParseRing(data []byte) (orb.Ring, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("invalid GeoJSON: %w", err)
	}

	var g orb.Geometry
	switch head.Type {
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return nil, fmt.Errorf("invalid GeoJSON: %w", err)
		}
		for _, f := range fc.Features {
			if _, ok := f.Geometry.(orb.Polygon); ok {
				g = f.Geometry
				break
			}
		}
	case "Feature":
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return nil, fmt.Errorf("invalid GeoJSON: %w", err)
		}
		g = f.Geometry
	default:
		geom, err := geojson.UnmarshalGeometry(data)
		if err != nil {
			return nil, fmt.Errorf("invalid GeoJSON: %w", err)
		}
		g = geom.Geometry()
	}

	poly, ok := g.(orb.Polygon)
	if !ok || len(poly) == 0 {
		return nil, ErrNotPolygon
	}
	return closeRing(poly[0])
}

func closeRing(r orb.Ring) (orb.Ring, error) {
	distinct := make(map[orb.Point]struct{}, len(r))
	for _, p := range r {
		distinct[p] = struct{}{}
	}
	if len(distinct) < 3 {
		return nil, ErrTooFewVertices
	}
	ring := r.Clone()
	if !ring.Closed() {
		ring = append(ring, ring[0])
	}
	return ring, nil
}

// Readout summarises a ring for the coordinate panel.
func Readout(ring orb.Ring) string {
	if len(ring) == 0 {
		return Placeholder
	}
	b := ring.Bound()
	km2 := math.Abs(geo.Area(ring)) / 1e6
	return fmt.Sprintf("%d vertices | SW %.4f, %.4f | NE %.4f, %.4f | ~%.2f km²",
		len(ring)-1, b.Min.Lat(), b.Min.Lon(), b.Max.Lat(), b.Max.Lon(), km2)
}
