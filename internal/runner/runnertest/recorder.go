// Package runnertest provides a scripted runner.Runner for tests.
package runnertest

import (
	"context"
	"strings"
	"sync"
)

type Call struct {
	Name string
	Args []string
}

func (c Call) CommandLine() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// Result is returned for every call whose command line starts with Prefix
type Result struct {
	Prefix string
	Output string
	Err    error
	// Hook runs before the result is returned, e.g. to write a file the real command would produce
	Hook func(call Call)
}

// Recorder records every call and answers with the first matching scripted Result.
// Calls without a matching result succeed with an empty output.
type Recorder struct {
	mu      sync.Mutex
	Calls   []Call
	Results []Result
}

func (r *Recorder) Run(_ context.Context, name string, args ...string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	call := Call{Name: name, Args: append([]string{}, args...)}
	r.Calls = append(r.Calls, call)
	for _, result := range r.Results {
		if strings.HasPrefix(call.CommandLine(), result.Prefix) {
			if result.Hook != nil {
				result.Hook(call)
			}
			return result.Output, result.Err
		}
	}
	return "", nil
}

// CallsTo returns the recorded calls whose command line starts with prefix
func (r *Recorder) CallsTo(prefix string) []Call {
	r.mu.Lock()
	defer r.mu.Unlock()

	var calls []Call
	for _, call := range r.Calls {
		if strings.HasPrefix(call.CommandLine(), prefix) {
			calls = append(calls, call)
		}
	}
	return calls
}
