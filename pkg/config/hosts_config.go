// pkg/config/hosts_config.go

package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kevinburke/ssh_config"
)

// HostsConfig is the registry of known hosts
type HostsConfig struct {
	Defaults DefaultConfig
	Hosts    []HostEntry
	Groups   map[string][]HostEntry

	sshConfig *ssh_config.Config
}

// DefaultConfig holds default settings for all hosts
type DefaultConfig struct {
	User                string
	Port                string
	Password            string // SSH password
	SSHKeyFile          string
	KnownHostsFile      string
	SSHTimeout          int
	ParallelConnections int
	// Privilege escalation settings
	Become       bool
	BecomeMethod string
	BecomeUser   string
	BecomePass   string
	BecomeFlags  string
}

// HostEntry represents a single host configuration
type HostEntry struct {
	Hostname   string // name used on the command line and in reports
	Address    string // address to dial, defaults to Hostname
	Port       string
	User       string
	Password   string // SSH password
	SSHKeyFile string
	Connection string // "ssh" or "local"
	Group      string
	// Privilege escalation settings
	Become       bool
	BecomeMethod string
	BecomeUser   string
	BecomePass   string
	BecomeFlags  string
}

// NewHostsConfig creates a new hosts configuration with defaults
func NewHostsConfig() *HostsConfig {
	user := os.Getenv("USER")
	if user == "" {
		user = "root"
	}
	return &HostsConfig{
		Defaults: DefaultConfig{
			User:                user,
			Port:                "22",
			SSHTimeout:          30,
			ParallelConnections: 5,
			BecomeMethod:        "sudo",
			BecomeUser:          "root",
		},
		Hosts:  []HostEntry{},
		Groups: make(map[string][]HostEntry),
	}
}

// LoadSSHConfig reads an OpenSSH client config so host aliases resolve the
// way they do for the ssh command. A missing file is not an error.
func (hc *HostsConfig) LoadSSHConfig(filename string) error {
	file, err := os.Open(expandPath(filename))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to open ssh config: %w", err)
	}
	defer file.Close()

	return hc.ReadSSHConfig(file)
}

// ReadSSHConfig decodes an OpenSSH client config from r
func (hc *HostsConfig) ReadSSHConfig(r io.Reader) error {
	cfg, err := ssh_config.Decode(r)
	if err != nil {
		return fmt.Errorf("failed to parse ssh config: %w", err)
	}
	hc.sshConfig = cfg
	return nil
}

// LoadFromFile loads hosts configuration from an INI-style file
func (hc *HostsConfig) LoadFromFile(filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("failed to open hosts file: %w", err)
	}
	defer file.Close()

	return hc.Load(file)
}

// Load reads an INI-style hosts registry from r
func (hc *HostsConfig) Load(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	currentGroup := ""

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}

		// Check for group headers
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			currentGroup = strings.Trim(line, "[]")

			if currentGroup == "defaults" || currentGroup == "all:vars" {
				currentGroup = "defaults"
			} else if _, exists := hc.Groups[currentGroup]; !exists {
				hc.Groups[currentGroup] = []HostEntry{}
			}
			continue
		}

		if currentGroup == "defaults" {
			// Unknown or malformed default lines are ignored
			_ = hc.parseDefaultLine(line)
			continue
		}

		// Skip lines that look like variable assignments in host groups
		if strings.Contains(line, "=") && !strings.Contains(line, " ") {
			continue
		}

		host, err := hc.parseHostLine(line, currentGroup)
		if err != nil {
			continue
		}

		hc.Hosts = append(hc.Hosts, host)
		if currentGroup != "" {
			hc.Groups[currentGroup] = append(hc.Groups[currentGroup], host)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading hosts file: %w", err)
	}

	// Defaults may appear after the hosts that use them
	for i := range hc.Hosts {
		hc.resolveHost(&hc.Hosts[i])
	}
	for group, hosts := range hc.Groups {
		for i := range hosts {
			hc.resolveHost(&hosts[i])
		}
		hc.Groups[group] = hosts
	}

	return nil
}

// parseDefaultLine parses a default configuration line
func (hc *HostsConfig) parseDefaultLine(line string) error {
	parts := strings.SplitN(line, "=", 2)
	if len(parts) != 2 {
		return fmt.Errorf("invalid default line format: %s", line)
	}

	key := strings.TrimSpace(parts[0])
	value := strings.TrimSpace(parts[1])

	// Remove ALL types of quotes (single, double, backticks)
	value = strings.Trim(value, "\"'`")

	switch key {
	case "user", "ssh_user":
		hc.Defaults.User = value
	case "port", "ssh_port":
		hc.Defaults.Port = value
	case "password", "ssh_password":
		hc.Defaults.Password = value
	case "ssh_key_file", "ssh_key":
		hc.Defaults.SSHKeyFile = expandPath(value)
	case "known_hosts", "ssh_known_hosts_file":
		hc.Defaults.KnownHostsFile = expandPath(value)
	case "ssh_timeout", "timeout":
		if timeout, err := strconv.Atoi(value); err == nil {
			hc.Defaults.SSHTimeout = timeout
		}
	case "parallel_connections", "parallel":
		if parallel, err := strconv.Atoi(value); err == nil {
			hc.Defaults.ParallelConnections = parallel
		}
	case "become":
		hc.Defaults.Become = parseBool(value)
	case "become_method":
		hc.Defaults.BecomeMethod = value
	case "become_user":
		hc.Defaults.BecomeUser = value
	case "become_pass", "become_password":
		hc.Defaults.BecomePass = value
	case "become_flags":
		hc.Defaults.BecomeFlags = value
	default:
		return fmt.Errorf("unknown default key: %s", key)
	}

	return nil
}

// parseHostLine parses a host configuration line
func (hc *HostsConfig) parseHostLine(line string, group string) (HostEntry, error) {
	host := HostEntry{
		Group: group,
	}

	parts := strings.Fields(line)
	if len(parts) == 0 {
		return host, fmt.Errorf("empty host line")
	}

	host.Hostname = parts[0]
	if host.Hostname == "" || strings.HasPrefix(host.Hostname, "#") {
		return host, fmt.Errorf("invalid hostname")
	}

	// Parse variables (key=value pairs)
	for i := 1; i < len(parts); i++ {
		keyValue := strings.SplitN(parts[i], "=", 2)
		if len(keyValue) != 2 {
			continue
		}

		key := strings.TrimSpace(keyValue[0])
		value := strings.Trim(strings.TrimSpace(keyValue[1]), "\"'`")

		switch key {
		case "address", "ansible_host", "host":
			host.Address = value
		case "user", "ssh_user", "ansible_user":
			host.User = value
		case "port", "ssh_port", "ansible_port":
			host.Port = value
		case "password", "ssh_password":
			host.Password = value
		case "ssh_key_file", "ssh_key":
			host.SSHKeyFile = expandPath(value)
		case "connection", "ansible_connection":
			host.Connection = value
		case "become":
			host.Become = parseBool(value)
		case "become_method":
			host.BecomeMethod = value
		case "become_user":
			host.BecomeUser = value
		case "become_pass", "become_password":
			host.BecomePass = value
		case "become_flags":
			host.BecomeFlags = value
		}
	}

	return host, nil
}

// resolveHost fills unset fields from ~/.ssh/config and then the defaults
func (hc *HostsConfig) resolveHost(host *HostEntry) {
	hc.applySSHConfigToHost(host)
	hc.applyDefaultsToHost(host)
}

// applySSHConfigToHost fills unset connection fields from the ssh config
func (hc *HostsConfig) applySSHConfigToHost(host *HostEntry) {
	if hc.sshConfig == nil {
		return
	}

	lookup := func(key string) string {
		value, err := hc.sshConfig.Get(host.Hostname, key)
		if err != nil {
			return ""
		}
		return value
	}

	if host.Address == "" {
		host.Address = lookup("HostName")
	}
	if host.User == "" {
		host.User = lookup("User")
	}
	if host.Port == "" {
		host.Port = lookup("Port")
	}
	if host.SSHKeyFile == "" {
		if identity := lookup("IdentityFile"); identity != "" {
			host.SSHKeyFile = expandPath(identity)
		}
	}
}

// applyDefaultsToHost applies default values to a host entry
func (hc *HostsConfig) applyDefaultsToHost(host *HostEntry) {
	if host.Address == "" {
		host.Address = host.Hostname
	}
	if host.Connection == "" {
		host.Connection = "ssh"
	}
	if host.Port == "" {
		host.Port = hc.Defaults.Port
	}
	if host.User == "" {
		host.User = hc.Defaults.User
	}
	if host.Password == "" {
		host.Password = hc.Defaults.Password
	}
	if host.SSHKeyFile == "" {
		host.SSHKeyFile = hc.Defaults.SSHKeyFile
	}

	// Only apply become if not explicitly set in host line
	if !host.Become && hc.Defaults.Become {
		host.Become = hc.Defaults.Become
	}

	if host.BecomeMethod == "" {
		host.BecomeMethod = hc.Defaults.BecomeMethod
	}
	if host.BecomeUser == "" {
		host.BecomeUser = hc.Defaults.BecomeUser
	}
	if host.BecomePass == "" {
		host.BecomePass = hc.Defaults.BecomePass
	}
	if host.BecomeFlags == "" {
		host.BecomeFlags = hc.Defaults.BecomeFlags
	}
}

// GetAllHosts returns all configured hosts in file order
func (hc *HostsConfig) GetAllHosts() []HostEntry {
	return hc.Hosts
}

// GetHostsByGroup returns hosts in a specific group
func (hc *HostsConfig) GetHostsByGroup(group string) []HostEntry {
	return hc.Groups[group]
}

// GetHost returns a specific host by name
func (hc *HostsConfig) GetHost(hostname string) (*HostEntry, bool) {
	for _, host := range hc.Hosts {
		if host.Hostname == hostname {
			return &host, true
		}
	}
	return nil, false
}

// EntryFor returns the registry entry for hostname, or a new entry built
// from the defaults and ssh config when the host is not registered
func (hc *HostsConfig) EntryFor(hostname string) HostEntry {
	if host, ok := hc.GetHost(hostname); ok {
		return *host
	}
	host := HostEntry{Hostname: hostname}
	hc.resolveHost(&host)
	return host
}

// expandPath expands ~ and environment variables in file paths
func expandPath(path string) string {
	if path == "" {
		return ""
	}

	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[2:])
		}
	}

	return os.ExpandEnv(path)
}

// parseBool parses various boolean representations
func parseBool(value string) bool {
	value = strings.ToLower(strings.TrimSpace(value))
	return value == "true" || value == "yes" || value == "1" || value == "on"
}
