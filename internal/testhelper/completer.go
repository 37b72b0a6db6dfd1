// Package testhelper provides a scripted text-generation backend and
// testdata helpers for package tests.
package testhelper

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/agentstation/edimap/pkg/errors"
)

// Call is one recorded Complete invocation.
type Call struct {
	Prompt       string
	SystemPrompt string
}

// Responder produces the reply for a matched call.
type Responder func(call Call) (string, error)

// Reply returns a Responder that always answers text.
func Reply(text string) Responder {
	return func(Call) (string, error) { return text, nil }
}

// Fail returns a Responder that always fails with err.
func Fail(err error) Responder {
	return func(Call) (string, error) { return "", err }
}

type rule struct {
	match   func(Call) bool
	respond Responder
}

// Script is a backend.Completer answering from registered rules. The first
// matching rule wins. Calls without a rule fail.
type Script struct {
	mu    sync.Mutex
	name  string
	rules []rule
	calls []Call
}

// NewScript creates an empty script.
func NewScript() *Script {
	return &Script{name: "script"}
}

// Handle registers respond for calls accepted by match.
func (s *Script) Handle(match func(Call) bool, respond Responder) *Script {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = append(s.rules, rule{match: match, respond: respond})
	return s
}

// OnSystem registers respond for calls sent with the given system prompt.
func (s *Script) OnSystem(system string, respond Responder) *Script {
	return s.Handle(func(c Call) bool { return c.SystemPrompt == system }, respond)
}

// OnPrompt registers respond for calls whose prompt contains substr.
func (s *Script) OnPrompt(substr string, respond Responder) *Script {
	return s.Handle(func(c Call) bool { return strings.Contains(c.Prompt, substr) }, respond)
}

// Name implements backend.Namer.
func (s *Script) Name() string { return s.name }

// Complete implements backend.Completer.
func (s *Script) Complete(ctx context.Context, prompt, systemPrompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", errors.Join(errors.ErrCanceled, err)
	}

	call := Call{Prompt: prompt, SystemPrompt: systemPrompt}
	s.mu.Lock()
	s.calls = append(s.calls, call)
	rules := s.rules
	s.mu.Unlock()

	for _, r := range rules {
		if r.match(call) {
			return r.respond(call)
		}
	}
	return "", &errors.APIError{
		Backend:    s.name,
		StatusCode: 400,
		Message:    fmt.Sprintf("no scripted reply for prompt %q", errors.Truncate(prompt, 60)),
	}
}

// Calls returns a copy of the recorded calls in arrival order.
func (s *Script) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// CountSystem returns the number of calls sent with the given system prompt.
func (s *Script) CountSystem(system string) int {
	n := 0
	for _, c := range s.Calls() {
		if c.SystemPrompt == system {
			n++
		}
	}
	return n
}
