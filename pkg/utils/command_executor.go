// pkg/utils/command_executor.go

package utils

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"strings"
)

// CommandResult holds the captured output of a single command
type CommandResult struct {
	Stdout     string
	Stderr     string
	ExitStatus int
}

// Success reports whether the command exited with status 0
func (r *CommandResult) Success() bool {
	return r != nil && r.ExitStatus == 0
}

// CommandExecutor interface defines methods for executing commands on one host.
// Run returns an error only when the command could not be executed at all; a
// command that ran and exited non-zero is reported through ExitStatus.
// Implementations are not safe for concurrent use.
type CommandExecutor interface {
	Run(ctx context.Context, command string, privileged bool) (*CommandResult, error)
	GetHostname() string
	Address() string
	IsLocal() bool
	Close() error
}

// ConnectionError marks a failure to reach or talk to a host
type ConnectionError struct {
	Host string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection to %s failed: %v", e.Host, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// IsConnectionError reports whether err is (or wraps) a ConnectionError
func IsConnectionError(err error) bool {
	var connErr *ConnectionError
	return errors.As(err, &connErr)
}

// LocalExecutor executes commands on the machine running the scan
type LocalExecutor struct {
	hostname string
	become   BecomeConfig
}

// RemoteExecutor executes commands via SSH
type RemoteExecutor struct {
	hostname   string
	become     BecomeConfig
	connection *SSHConnection
}

// NewLocalExecutor creates a new local executor
func NewLocalExecutor(name string, become BecomeConfig) *LocalExecutor {
	if name == "" {
		if hostname, err := os.Hostname(); err == nil {
			name = hostname
		} else {
			name = "localhost"
		}
	}
	if RunningAsRoot() {
		become.AlreadyRoot = true
	}
	return &LocalExecutor{hostname: name, become: become}
}

// NewRemoteExecutor connects to the host described by config
func NewRemoteExecutor(ctx context.Context, config *SSHConfig, become BecomeConfig) (*RemoteExecutor, error) {
	conn := NewSSHConnection(config)
	if err := conn.Connect(ctx); err != nil {
		return nil, &ConnectionError{Host: config.Alias, Err: err}
	}

	if config.User == "root" {
		become.AlreadyRoot = true
	}

	return &RemoteExecutor{
		hostname:   config.Alias,
		become:     become,
		connection: conn,
	}, nil
}

// Run executes a command locally through sh
func (e *LocalExecutor) Run(ctx context.Context, command string, privileged bool) (*CommandResult, error) {
	wrapped, stdin := e.become.Wrap(command, privileged)

	cmd := exec.CommandContext(ctx, "sh", "-c", wrapped)
	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}

	err := cmd.Run()
	result := &CommandResult{Stdout: stdoutBuf.String(), Stderr: stderrBuf.String()}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && ctx.Err() == nil {
			result.ExitStatus = exitErr.ExitCode()
			return result, nil
		}
		return result, &ConnectionError{Host: e.hostname, Err: err}
	}
	return result, nil
}

// GetHostname returns the hostname
func (e *LocalExecutor) GetHostname() string {
	return e.hostname
}

// Address returns the first non-loopback IPv4 address of this machine
func (e *LocalExecutor) Address() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "127.0.0.1"
	}
	for _, addr := range addrs {
		if ipNet, ok := addr.(*net.IPNet); ok && !ipNet.IP.IsLoopback() && ipNet.IP.To4() != nil {
			return ipNet.IP.String()
		}
	}
	return "127.0.0.1"
}

// IsLocal returns true for local executor
func (e *LocalExecutor) IsLocal() bool {
	return true
}

// Close is a no-op for the local executor
func (e *LocalExecutor) Close() error {
	return nil
}

// Run executes a command remotely
func (e *RemoteExecutor) Run(ctx context.Context, command string, privileged bool) (*CommandResult, error) {
	// Ensure connection is still alive
	if e.connection == nil || e.connection.Client == nil {
		return nil, &ConnectionError{Host: e.hostname, Err: errors.New("remote connection is not established")}
	}

	wrapped, stdin := e.become.Wrap(command, privileged)
	result, err := e.connection.Run(ctx, wrapped, stdin)
	if err != nil {
		return result, &ConnectionError{Host: e.hostname, Err: err}
	}
	return result, nil
}

// GetHostname returns the host alias used to connect
func (e *RemoteExecutor) GetHostname() string {
	return e.hostname
}

// Address returns the IP address the SSH connection was made to
func (e *RemoteExecutor) Address() string {
	return e.connection.RemoteIP()
}

// IsLocal returns false for remote executor
func (e *RemoteExecutor) IsLocal() bool {
	return false
}

// Close closes the remote connection
func (e *RemoteExecutor) Close() error {
	if e.connection != nil {
		return e.connection.Close()
	}
	return nil
}
