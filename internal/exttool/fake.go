package exttool

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Invocation records a single Run call made against a FakeRunner.
type Invocation struct {
	Name string
	Args []string
}

// FakeRunner is a Runner for tests: it records every invocation and serves
// canned responses keyed by tool name.
type FakeRunner struct {
	mu sync.Mutex

	// Responses maps tool name to stdout bytes. Missing entries succeed
	// with empty output.
	Responses map[string][]byte

	// Errors maps tool name to a forced failure.
	Errors map[string]error

	// Missing lists tool names LookPath should report as not installed.
	Missing []string

	// OnRun, when set, is called for each invocation; use it to create
	// side-effect files the way a real tool would.
	OnRun func(name string, args []string) error

	Invocations []Invocation
}

func (f *FakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	f.mu.Lock()
	f.Invocations = append(f.Invocations, Invocation{Name: name, Args: append([]string(nil), args...)})
	f.mu.Unlock()

	if err, ok := f.Errors[name]; ok {
		return nil, err
	}
	if f.OnRun != nil {
		if err := f.OnRun(name, args); err != nil {
			return nil, err
		}
	}
	return f.Responses[name], nil
}

func (f *FakeRunner) LookPath(name string) (string, error) {
	for _, m := range f.Missing {
		if m == name {
			return "", fmt.Errorf("%s: executable file not found in $PATH", name)
		}
	}
	return "/usr/bin/" + name, nil
}

// Invoked reports whether any recorded invocation ran the named tool.
func (f *FakeRunner) Invoked(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, inv := range f.Invocations {
		if inv.Name == name {
			return true
		}
	}
	return false
}

// CommandLines renders recorded invocations as "name arg arg..." strings,
// convenient for assertions on ordering.
func (f *FakeRunner) CommandLines() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.Invocations))
	for i, inv := range f.Invocations {
		out[i] = strings.Join(append([]string{inv.Name}, inv.Args...), " ")
	}
	return out
}
