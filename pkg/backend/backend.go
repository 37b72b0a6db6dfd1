// Package backend defines the text-generation capability used by the
// extraction, matching and flagging stages, and a retrying wrapper that
// gives any implementation bounded attempts, a per-call timeout and
// client-side rate limiting.
package backend

import (
	"context"
	"time"
)

// Completer sends a prompt with a system prompt and returns the reply text.
type Completer interface {
	Complete(ctx context.Context, prompt, systemPrompt string) (string, error)
}

// CompleterFunc adapts a function to the Completer interface.
type CompleterFunc func(ctx context.Context, prompt, systemPrompt string) (string, error)

// Complete calls f.
func (f CompleterFunc) Complete(ctx context.Context, prompt, systemPrompt string) (string, error) {
	return f(ctx, prompt, systemPrompt)
}

// Namer is implemented by completers that can identify themselves in logs and errors.
type Namer interface {
	Name() string
}

// NameOf returns the name of c, or "backend" when it has none.
func NameOf(c Completer) string {
	if n, ok := c.(Namer); ok && n.Name() != "" {
		return n.Name()
	}
	return "backend"
}

// Observer receives one notification per attempt.
type Observer interface {
	ObserveAttempt(backend string, attempt int, elapsed time.Duration, err error)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(backend string, attempt int, elapsed time.Duration, err error)

// ObserveAttempt calls f.
func (f ObserverFunc) ObserveAttempt(backend string, attempt int, elapsed time.Duration, err error) {
	f(backend, attempt, elapsed, err)
}
