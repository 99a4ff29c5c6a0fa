// pkg/utils/ssh.go

package utils

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"
)

// SSHConfig holds SSH connection configuration
type SSHConfig struct {
	Alias          string // name the host is reported under
	Host           string // address to dial
	Port           string
	User           string
	Password       string
	KeyFile        string
	KnownHostsFile string
	Timeout        time.Duration
	Logger         *slog.Logger
}

// SSHConnection represents an SSH connection to a remote host
type SSHConnection struct {
	Config    *SSHConfig
	Client    *ssh.Client
	agentConn net.Conn
}

// NewSSHConnection creates a new, not yet connected, SSH connection
func NewSSHConnection(config *SSHConfig) *SSHConnection {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &SSHConnection{
		Config: config,
	}
}

// Connect establishes the SSH connection
func (s *SSHConnection) Connect(ctx context.Context) error {
	authMethods, err := s.authMethods()
	if err != nil {
		return err
	}

	hostKeyCallback, err := s.hostKeyCallback()
	if err != nil {
		return err
	}

	sshConfig := &ssh.ClientConfig{
		User:            s.Config.User,
		Auth:            authMethods,
		HostKeyCallback: hostKeyCallback,
		Timeout:         s.Config.Timeout,
	}

	// Close existing connection if any
	if s.Client != nil {
		s.Client.Close()
		s.Client = nil
	}

	address := net.JoinHostPort(s.Config.Host, s.Config.Port)

	dialer := net.Dialer{Timeout: s.Config.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", address, err)
	}

	// ClientConfig.Timeout only covers ssh.Dial, so bound the handshake here
	if deadline, ok := s.handshakeDeadline(ctx); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			conn.Close()
			return fmt.Errorf("failed to set handshake deadline for %s: %w", address, err)
		}
	}
	stop := context.AfterFunc(ctx, func() {
		conn.Close()
	})

	clientConn, chans, reqs, err := ssh.NewClientConn(conn, address, sshConfig)
	if !stop() {
		if err == nil {
			clientConn.Close()
		}
		return fmt.Errorf("ssh handshake with %s interrupted: %w", address, ctx.Err())
	}
	if err != nil {
		conn.Close()
		return fmt.Errorf("ssh handshake with %s failed: %w", address, err)
	}
	if err := conn.SetDeadline(time.Time{}); err != nil {
		clientConn.Close()
		return fmt.Errorf("failed to clear handshake deadline for %s: %w", address, err)
	}

	s.Client = ssh.NewClient(clientConn, chans, reqs)
	return nil
}

// handshakeDeadline is the earlier of the connect timeout and ctx's deadline
func (s *SSHConnection) handshakeDeadline(ctx context.Context) (time.Time, bool) {
	var deadline time.Time
	if s.Config.Timeout > 0 {
		deadline = time.Now().Add(s.Config.Timeout)
	}
	if ctxDeadline, ok := ctx.Deadline(); ok && (deadline.IsZero() || ctxDeadline.Before(deadline)) {
		deadline = ctxDeadline
	}
	return deadline, !deadline.IsZero()
}

// authMethods collects password, key file, agent and default key authentication
func (s *SSHConnection) authMethods() ([]ssh.AuthMethod, error) {
	var authMethods []ssh.AuthMethod

	if s.Config.Password != "" {
		authMethods = append(authMethods, ssh.Password(s.Config.Password))
	}

	if s.Config.KeyFile != "" {
		signer, err := loadSigner(s.Config.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load SSH key from %s: %w", s.Config.KeyFile, err)
		}
		authMethods = append(authMethods, ssh.PublicKeys(signer))
	}

	if sock := os.Getenv("SSH_AUTH_SOCK"); sock != "" && s.agentConn == nil {
		if conn, err := net.Dial("unix", sock); err == nil {
			s.agentConn = conn
		} else {
			s.Config.Logger.Debug("ssh agent unavailable", "socket", sock, "error", err)
		}
	}
	if s.agentConn != nil {
		authMethods = append(authMethods, ssh.PublicKeysCallback(agent.NewClient(s.agentConn).Signers))
	}

	if s.Config.KeyFile == "" {
		home, _ := os.UserHomeDir()
		var signers []ssh.Signer
		for _, name := range []string{"id_ed25519", "id_ecdsa", "id_rsa"} {
			path := filepath.Join(home, ".ssh", name)
			if !fileExists(path) {
				continue
			}
			if signer, err := loadSigner(path); err == nil {
				signers = append(signers, signer)
			}
		}
		if len(signers) > 0 {
			authMethods = append(authMethods, ssh.PublicKeys(signers...))
		}
	}

	if len(authMethods) == 0 {
		return nil, errors.New("no authentication method available - no password, agent or SSH key found")
	}
	return authMethods, nil
}

// hostKeyCallback verifies against known_hosts when one is available
func (s *SSHConnection) hostKeyCallback() (ssh.HostKeyCallback, error) {
	path := s.Config.KnownHostsFile
	if path == "" {
		home, _ := os.UserHomeDir()
		path = filepath.Join(home, ".ssh", "known_hosts")
	}

	if !fileExists(path) {
		s.Config.Logger.Warn("known_hosts not found, host keys are not verified", "path", path, "host", s.Config.Alias)
		return ssh.InsecureIgnoreHostKey(), nil
	}

	callback, err := knownhosts.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read known hosts %s: %w", path, err)
	}
	return callback, nil
}

// loadSigner reads an unencrypted private key
func loadSigner(path string) (ssh.Signer, error) {
	key, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read private key: %w", err)
	}

	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		// Passphrase-protected keys have to come through the agent
		return nil, fmt.Errorf("unable to parse private key (it may be passphrase-protected): %w", err)
	}
	return signer, nil
}

// newSession opens a session, reconnecting once if the connection has died
func (s *SSHConnection) newSession(ctx context.Context) (*ssh.Session, error) {
	if s.Client == nil {
		if err := s.Connect(ctx); err != nil {
			return nil, fmt.Errorf("SSH client not connected and reconnection failed: %w", err)
		}
	}

	session, err := s.Client.NewSession()
	if err == nil {
		return session, nil
	}

	s.Config.Logger.Debug("session creation failed, reconnecting", "host", s.Config.Alias, "error", err)
	if err := s.Connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to create session and reconnection failed: %w", err)
	}

	session, err = s.Client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create session after reconnection: %w", err)
	}
	return session, nil
}

// Run executes a shell command on the remote host. A non-zero exit status is
// returned in the result, not as an error.
func (s *SSHConnection) Run(ctx context.Context, command string, stdin string) (*CommandResult, error) {
	session, err := s.newSession(ctx)
	if err != nil {
		return nil, err
	}
	defer session.Close()

	var stdoutBuf, stderrBuf bytes.Buffer
	session.Stdout = &stdoutBuf
	session.Stderr = &stderrBuf
	if stdin != "" {
		session.Stdin = strings.NewReader(stdin)
	}

	if err := session.Start(command); err != nil {
		return nil, fmt.Errorf("failed to start command: %w", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- session.Wait()
	}()

	select {
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGKILL)
		session.Close()
		return nil, ctx.Err()
	case err = <-done:
	}

	result := &CommandResult{
		Stdout: stdoutBuf.String(),
		Stderr: stderrBuf.String(),
	}

	if err != nil {
		var exitErr *ssh.ExitError
		if errors.As(err, &exitErr) {
			result.ExitStatus = exitErr.ExitStatus()
			return result, nil
		}
		return result, fmt.Errorf("command did not complete: %w", err)
	}

	return result, nil
}

// RemoteIP returns the IP address of the connected peer
func (s *SSHConnection) RemoteIP() string {
	if s.Client != nil {
		if tcpAddr, ok := s.Client.RemoteAddr().(*net.TCPAddr); ok {
			return tcpAddr.IP.String()
		}
	}
	return s.Config.Host
}

// Close closes the SSH connection
func (s *SSHConnection) Close() error {
	if s.agentConn != nil {
		s.agentConn.Close()
		s.agentConn = nil
	}
	if s.Client != nil {
		err := s.Client.Close()
		s.Client = nil
		return err
	}
	return nil
}

// fileExists checks if a file exists
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
