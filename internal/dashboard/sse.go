// Package dashboard serves the map dashboard over Datastar: the per-session
// patch stream, the user action endpoints and the view the orchestrator
// draws on.
package dashboard

import (
	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/starfederation/datastar-go/datastar"

	"github.com/joeblew999/plat-eco/internal/service"
)

// SSE wraps a Datastar SSE generator with the patches the dashboard sends.
type SSE struct {
	*datastar.ServerSentEventGenerator
}

// NewSSE creates a Datastar SSE helper from a Huma streaming context.
// Response headers must be set before calling it.
func NewSSE(ctx huma.Context) SSE {
	r, w := humago.Unwrap(ctx)
	return SSE{datastar.NewSSE(w, r)}
}

// Patch sends HTML to replace inner content at a CSS selector.
func (s SSE) Patch(html, selector string) error {
	return s.PatchElements(html,
		datastar.WithSelector(selector),
		datastar.WithModeInner(),
		datastar.WithViewTransitions(),
	)
}

// Signals sends a signal patch.
func (s SSE) Signals(signals map[string]any) error {
	return s.MarshalAndPatchSignals(signals)
}

// Send forwards one bus event to the browser.
func (s SSE) Send(e service.Event) error {
	if e.Selector != "" {
		if err := s.Patch(e.HTML, e.Selector); err != nil {
			return err
		}
	}
	if len(e.Signals) > 0 {
		return s.Signals(e.Signals)
	}
	return nil
}
