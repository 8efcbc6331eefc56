// ABOUTME: Ordered HTTP middleware pipeline wrapping every inbound request
// ABOUTME: Stage order is a fixed constant so security and tracing invariants hold by construction

package pipeline

import (
	"errors"
	"fmt"
	"net/http"
)

// Stage wraps the next handler in the chain. It may short-circuit.
type Stage func(next http.Handler) http.Handler

// Stage names, outermost first.
const (
	StageServedBy   = "served-by"
	StageCORS       = "cors"
	StageRequestLog = "request-log"
	StageMetrics    = "metrics"
	StageRateLimit  = "rate-limit"
	StageAuth       = "auth"
)

// Order is the composition order, outer to inner. Logging wraps auth so
// rejected requests are still logged; auth is innermost so it gates dispatch.
var Order = []string{
	StageServedBy,
	StageCORS,
	StageRequestLog,
	StageMetrics,
	StageRateLimit,
	StageAuth,
}

// ErrMissingStage indicates Build was not given a stage named in Order.
var ErrMissingStage = errors.New("pipeline stage missing")

// ErrUnknownStage indicates Build was given a stage Order does not name.
var ErrUnknownStage = errors.New("unknown pipeline stage")

// Passthrough is a stage that does nothing, for optional features that are off.
func Passthrough(next http.Handler) http.Handler { return next }

// Build composes stages around terminal in Order. Every stage in Order must be
// present; use Passthrough for disabled ones.
func Build(stages map[string]Stage, terminal http.Handler) (http.Handler, error) {
	known := make(map[string]bool, len(Order))
	for _, name := range Order {
		known[name] = true
		if stages[name] == nil {
			return nil, fmt.Errorf("%w: %s", ErrMissingStage, name)
		}
	}
	for name := range stages {
		if !known[name] {
			return nil, fmt.Errorf("%w: %s", ErrUnknownStage, name)
		}
	}

	h := terminal
	for i := len(Order) - 1; i >= 0; i-- {
		h = stages[Order[i]](h)
	}
	return h, nil
}
