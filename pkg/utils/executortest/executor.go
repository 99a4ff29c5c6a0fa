// pkg/utils/executortest/executor.go

// Package executortest provides a scripted utils.CommandExecutor for tests.
package executortest

import (
	"context"
	"sync"

	"github.com/smuckster/fleetcheck/pkg/utils"
)

// Call is one command received by the executor
type Call struct {
	Command    string
	Privileged bool
}

// Response is the scripted outcome of a command. A non-nil Err is returned
// wrapped in a utils.ConnectionError.
type Response struct {
	Stdout     string
	Stderr     string
	ExitStatus int
	Err        error
}

// Executor answers commands from a table of exact command strings. Unknown
// commands exit with status 127.
type Executor struct {
	Hostname string
	Addr     string

	mu        sync.Mutex
	responses map[string][]Response
	calls     []Call
	closed    bool
}

// New creates an executor for hostname
func New(hostname string) *Executor {
	return &Executor{
		Hostname:  hostname,
		Addr:      "10.0.0.1",
		responses: make(map[string][]Response),
	}
}

// On scripts the response to command. Repeated calls queue responses that
// are consumed in order; the last one is reused.
func (e *Executor) On(command string, response Response) *Executor {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.responses[command] = append(e.responses[command], response)
	return e
}

// Run records the call and returns the scripted response
func (e *Executor) Run(ctx context.Context, command string, privileged bool) (*utils.CommandResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.calls = append(e.calls, Call{Command: command, Privileged: privileged})

	if err := ctx.Err(); err != nil {
		return nil, &utils.ConnectionError{Host: e.Hostname, Err: err}
	}

	queue := e.responses[command]
	if len(queue) == 0 {
		return &utils.CommandResult{Stderr: "command not found", ExitStatus: 127}, nil
	}
	response := queue[0]
	if len(queue) > 1 {
		e.responses[command] = queue[1:]
	}

	if response.Err != nil {
		return nil, &utils.ConnectionError{Host: e.Hostname, Err: response.Err}
	}
	return &utils.CommandResult{
		Stdout:     response.Stdout,
		Stderr:     response.Stderr,
		ExitStatus: response.ExitStatus,
	}, nil
}

// Calls returns every command received so far
func (e *Executor) Calls() []Call {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Call(nil), e.calls...)
}

// Commands returns the command strings received so far
func (e *Executor) Commands() []string {
	var commands []string
	for _, call := range e.Calls() {
		commands = append(commands, call.Command)
	}
	return commands
}

// Closed reports whether Close was called
func (e *Executor) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// GetHostname returns the host name
func (e *Executor) GetHostname() string {
	return e.Hostname
}

// Address returns the scripted address
func (e *Executor) Address() string {
	return e.Addr
}

// IsLocal returns false
func (e *Executor) IsLocal() bool {
	return false
}

// Close marks the executor closed
func (e *Executor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}
