package edimap

import (
	"sync"

	"github.com/agentstation/edimap/pkg/extract"
	"github.com/agentstation/edimap/pkg/reconcile"
)

// Hook function types for pipeline stages
type (
	// ExtractedHook is called once constraint extraction has finished
	ExtractedHook func(res *extract.Result)

	// ReconciledHook is called with the final result of a run
	ReconciledHook func(res *reconcile.Result)
)

// hooks manages stage callbacks
type hooks struct {
	mu           sync.RWMutex
	onExtracted  []ExtractedHook
	onReconciled []ReconciledHook
}

// newHooks creates a new hooks instance
func newHooks() *hooks {
	return &hooks{}
}

// OnExtracted registers a callback for finished extractions
func (h *hooks) OnExtracted(fn ExtractedHook) {
	if fn == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onExtracted = append(h.onExtracted, fn)
}

// OnReconciled registers a callback for finished runs
func (h *hooks) OnReconciled(fn ReconciledHook) {
	if fn == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onReconciled = append(h.onReconciled, fn)
}

func (h *hooks) extracted(res *extract.Result) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, fn := range h.onExtracted {
		fn(res)
	}
}

func (h *hooks) reconciled(res *reconcile.Result) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, fn := range h.onReconciled {
		fn(res)
	}
}
