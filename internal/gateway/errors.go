package gateway

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// UnknownError is the detail used when a failed response carries nothing usable.
const UnknownError = "Unknown error"

// ErrUntrustedTileURL is returned when a map-url response points at a host
// outside the configured tile services.
var ErrUntrustedTileURL = errors.New("untrusted tile URL")

// ErrorKind classifies backend failures.
type ErrorKind string

const (
	// KindApplication: a response was parsed but reported a non-success status.
	KindApplication ErrorKind = "application"
	// KindTransport: non-2xx HTTP status.
	KindTransport ErrorKind = "transport"
	// KindNetwork: the request itself failed (DNS, refused, timeout).
	KindNetwork ErrorKind = "network"
)

// Error is returned by every Client call that fails.
type Error struct {
	Op     string
	Kind   ErrorKind
	Status int
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s (status %d): %s", e.Op, e.Kind, e.Status, e.Detail)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Detail)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Detail extracts the human-readable message for err.
func Detail(err error) string {
	if err == nil {
		return ""
	}
	var gwErr *Error
	if errors.As(err, &gwErr) {
		if gwErr.Detail != "" {
			return gwErr.Detail
		}
		return UnknownError
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return UnknownError
}

// parseDetail pulls the "detail" field out of an error body. FastAPI
// validation errors send detail as a list, which is passed through as JSON.
func parseDetail(body []byte) string {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Detail) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(payload.Detail, &s); err == nil {
		return s
	}
	if bytes.Equal(payload.Detail, []byte("null")) {
		return ""
	}
	return string(payload.Detail)
}
