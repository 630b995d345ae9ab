// Package rules implements the rule registry and the request context handed
// to rule bodies. Rules declare what they produce; the dependencies they take
// are whatever they ask for at run time.
package rules

import (
	"context"
	"sort"
	"sync"

	"go.trai.ch/forge/internal/core/domain"
	"go.trai.ch/zerr"
)

// Body computes one rule invocation. Every read it performs through rc
// becomes a recorded dependency of the invocation.
type Body func(ctx context.Context, rc *Context) (any, error)

// Rule produces values of one output type from positional parameters.
type Rule struct {
	// Output is the produced type name. At most one rule per output exists.
	Output string

	// Params names the positional parameter types, for diagnostics.
	Params []string

	Body Body
}

// Registry holds the installed rules, keyed by output type.
type Registry struct {
	mu    sync.RWMutex
	rules map[string]Rule
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{rules: make(map[string]Rule)}
}

// Register installs a rule. Registering a second rule for the same output
// fails with domain.ErrRuleExists.
func (r *Registry) Register(rule Rule) error {
	if rule.Output == "" {
		return zerr.New("rule output must not be empty")
	}
	if rule.Body == nil {
		return zerr.With(zerr.New("rule body must not be nil"), "output", rule.Output)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.rules[rule.Output]; exists {
		return zerr.With(domain.ErrRuleExists, "output", rule.Output)
	}
	r.rules[rule.Output] = rule
	return nil
}

// Lookup returns the rule producing the output type, or domain.ErrNoRule.
func (r *Registry) Lookup(output string) (Rule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rule, ok := r.rules[output]
	if !ok {
		return Rule{}, zerr.With(domain.ErrNoRule, "output", output)
	}
	return rule, nil
}

// Outputs returns the sorted output types of every installed rule.
func (r *Registry) Outputs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	outputs := make([]string, 0, len(r.rules))
	for output := range r.rules {
		outputs = append(outputs, output)
	}
	sort.Strings(outputs)
	return outputs
}
