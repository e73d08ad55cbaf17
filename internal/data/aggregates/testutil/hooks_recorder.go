package testutil

import (
	"sync"
	"time"

	"github.com/clinicore/conventions/internal/data/aggregates"
)

// HooksRecorder keeps, per operation name, every status observed and the conflict and
// retry signals. The zero value is ready to use and safe for concurrent aggregates.
type HooksRecorder struct {
	mu        sync.Mutex
	statuses  map[string][]string
	conflicts map[string]int
	retries   map[string]int
	slowest   time.Duration
}

var _ aggregates.Hooks = (*HooksRecorder)(nil)

func (h *HooksRecorder) ObserveOperation(name, status string, dur time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.statuses == nil {
		h.statuses = map[string][]string{}
	}
	h.statuses[name] = append(h.statuses[name], status)
	if dur > h.slowest {
		h.slowest = dur
	}
}

func (h *HooksRecorder) IncConflict(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conflicts == nil {
		h.conflicts = map[string]int{}
	}
	h.conflicts[name]++
}

func (h *HooksRecorder) IncRetry(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.retries == nil {
		h.retries = map[string]int{}
	}
	h.retries[name]++
}

// Statuses lists the outcomes of op in call order.
func (h *HooksRecorder) Statuses(op string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.statuses[op]...)
}

func (h *HooksRecorder) LastStatus(op string) (string, bool) {
	all := h.Statuses(op)
	if len(all) == 0 {
		return "", false
	}
	return all[len(all)-1], true
}

func (h *HooksRecorder) ConflictCount(op string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.conflicts[op]
}

func (h *HooksRecorder) RetryCount(op string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.retries[op]
}

// Slowest is the longest duration observed across all operations.
func (h *HooksRecorder) Slowest() time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.slowest
}
