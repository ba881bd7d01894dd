// Package layer defines the fixed catalogue of environmental analysis layers.
package layer

import (
	"errors"
	"fmt"
)

// Layer identifies one of the seven analysis types. The value is used
// unchanged on the wire and in URLs.
type Layer string

const (
	Forest      Layer = "forest"
	Wetland     Layer = "wetland"
	Tundra      Layer = "tundra"
	Grassland   Layer = "grassland"
	AlgalBlooms Layer = "algal_blooms"
	Soil        Layer = "soil"
	Chlorophyll Layer = "chlorophyll"
)

// All lists every layer in enumeration order. Visibility scans and batch
// re-analysis iterate in this order.
var All = []Layer{Forest, Wetland, Tundra, Grassland, AlgalBlooms, Soil, Chlorophyll}

// ErrInvalidLayer is returned by Parse for unknown identifiers.
var ErrInvalidLayer = errors.New("invalid layer")

type info struct {
	title      string
	resolution int
}

var catalogue = map[Layer]info{
	Forest:      {title: "Forest", resolution: 10},
	Wetland:     {title: "Wetland", resolution: 10},
	Tundra:      {title: "Tundra", resolution: 250},
	Grassland:   {title: "Grassland", resolution: 10},
	AlgalBlooms: {title: "Algal Blooms", resolution: 300},
	Soil:        {title: "Soil Moisture", resolution: 500},
	Chlorophyll: {title: "Ocean Chlorophyll", resolution: 4638},
}

// Parse validates a layer identifier.
func Parse(s string) (Layer, error) {
	l := Layer(s)
	if !l.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidLayer, s)
	}
	return l, nil
}

// Valid reports whether l is part of the catalogue.
func (l Layer) Valid() bool {
	_, ok := catalogue[l]
	return ok
}

// String implements fmt.Stringer.
func (l Layer) String() string {
	return string(l)
}

// Title is the human-readable name shown in the UI.
func (l Layer) Title() string {
	if i, ok := catalogue[l]; ok {
		return i.title
	}
	return string(l)
}

// DefaultResolution is the resolution in metres sent when the user has not
// picked one.
func (l Layer) DefaultResolution() int {
	return catalogue[l].resolution
}

// Resolution returns res if it is set, otherwise the layer default.
func (l Layer) Resolution(res int) int {
	if res > 0 {
		return res
	}
	return l.DefaultResolution()
}

// LegendKey is the key the backend uses for this layer's legend descriptor.
func (l Layer) LegendKey() string {
	return string(l) + "_classification"
}
