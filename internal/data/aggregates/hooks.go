package aggregates

import (
	"strings"
	"time"

	"github.com/clinicore/conventions/internal/platform/logger"
)

// Hooks captures aggregate-level operation outcomes.
type Hooks interface {
	ObserveOperation(name, status string, dur time.Duration)
	IncConflict(name string)
	IncRetry(name string)
}

type noopHooks struct{}

func (noopHooks) ObserveOperation(string, string, time.Duration) {}
func (noopHooks) IncConflict(string)                             {}
func (noopHooks) IncRetry(string)                                {}

type logHooks struct {
	log  *logger.Logger
	slow time.Duration
}

// NewLogHooks reports aggregate outcomes through the structured logger. Successful
// operations are logged at debug level unless slower than slow.
func NewLogHooks(log *logger.Logger, slow time.Duration) Hooks {
	if log == nil {
		return noopHooks{}
	}
	return &logHooks{log: log.With("component", "aggregate_hooks"), slow: slow}
}

func (h *logHooks) ObserveOperation(name, status string, dur time.Duration) {
	name = strings.TrimSpace(name)
	status = strings.TrimSpace(status)
	switch {
	case status != "success":
		h.log.Warn("aggregate operation failed", "op", name, "status", status, "duration_ms", dur.Milliseconds())
	case h.slow > 0 && dur > h.slow:
		h.log.Warn("aggregate operation slow", "op", name, "duration_ms", dur.Milliseconds())
	default:
		h.log.Debug("aggregate operation", "op", name, "duration_ms", dur.Milliseconds())
	}
}

func (h *logHooks) IncConflict(name string) {
	h.log.Info("aggregate conflict", "op", strings.TrimSpace(name))
}

func (h *logHooks) IncRetry(name string) {
	h.log.Info("aggregate retryable failure", "op", strings.TrimSpace(name))
}
