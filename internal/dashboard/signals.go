package dashboard

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/danielgtaylor/huma/v2"
)

// Signals provides typed access to the Datastar signals a request carries.
// Nested signals are addressed with dotted paths such as
// "layers.forest.checked".
type Signals map[string]any

// ParseSignals parses Datastar signals from a raw request body. An empty
// body yields no signals.
func ParseSignals(body []byte) (Signals, error) {
	signals := Signals{}
	if len(body) == 0 {
		return signals, nil
	}
	if err := json.Unmarshal(body, &signals); err != nil {
		return nil, err
	}
	return signals, nil
}

// Lookup returns the value at a dotted path.
func (s Signals) Lookup(path string) (any, bool) {
	var cur any = map[string]any(s)
	for _, key := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = m[key]; !ok {
			return nil, false
		}
	}
	return cur, true
}

// Has reports whether the path exists, even when zero-valued.
func (s Signals) Has(path string) bool {
	_, ok := s.Lookup(path)
	return ok
}

// String returns a string signal value, or empty string if not found.
func (s Signals) String(path string) string {
	if v, ok := s.Lookup(path); ok {
		if str, ok := v.(string); ok {
			return str
		}
	}
	return ""
}

// Int returns an int signal value, or 0 if not found. Number inputs bound
// with data-bind arrive as strings, so numeric strings are accepted.
func (s Signals) Int(path string) int {
	v, _ := s.Lookup(path)
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil {
			return int(f)
		}
	}
	return 0
}

// Bool returns a bool signal value, or false if not found.
func (s Signals) Bool(path string) bool {
	if v, ok := s.Lookup(path); ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return false
}

// Raw re-encodes the value at path as JSON, for nested documents such as
// GeoJSON.
func (s Signals) Raw(path string) (json.RawMessage, bool) {
	v, ok := s.Lookup(path)
	if !ok || v == nil {
		return nil, false
	}
	if str, ok := v.(string); ok {
		return json.RawMessage(str), true
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, false
	}
	return b, true
}

// SignalsInput is an input struct for handlers that receive Datastar signals.
type SignalsInput struct {
	RawBody []byte
}

// MustParse parses signals or returns a Huma 400 error.
func (i *SignalsInput) MustParse() (Signals, error) {
	signals, err := ParseSignals(i.RawBody)
	if err != nil {
		return nil, huma.Error400BadRequest("Invalid request data: " + err.Error())
	}
	return signals, nil
}
