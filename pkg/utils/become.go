// pkg/utils/become.go

package utils

import (
	"strings"
)

// BecomeConfig describes how privileged commands are escalated
type BecomeConfig struct {
	// Always escalates every command, not only the privileged ones
	Always   bool
	Method   string // sudo, doas or none
	User     string
	Password string
	Flags    string

	// AlreadyRoot skips escalation when the login user is root
	AlreadyRoot bool
}

// Wrap returns the shell command to run and the data to feed on stdin
func (b BecomeConfig) Wrap(command string, privileged bool) (string, string) {
	if !(privileged || b.Always) || b.AlreadyRoot {
		return command, ""
	}

	user := b.User
	if user == "" {
		user = "root"
	}

	var sb strings.Builder
	stdin := ""

	switch b.Method {
	case "none":
		return command, ""
	case "doas":
		sb.WriteString("doas -n")
		if user != "root" {
			sb.WriteString(" -u ")
			sb.WriteString(ShellQuote(user))
		}
	default:
		sb.WriteString("sudo")
		if b.Password != "" {
			// Read the password from stdin and keep the prompt off stderr
			sb.WriteString(" -S -p ''")
			stdin = b.Password + "\n"
		} else {
			sb.WriteString(" -n")
		}
		if user != "root" {
			sb.WriteString(" -u ")
			sb.WriteString(ShellQuote(user))
		}
	}

	if b.Flags != "" {
		sb.WriteString(" ")
		sb.WriteString(b.Flags)
	}
	sb.WriteString(" sh -c ")
	sb.WriteString(ShellQuote(command))

	return sb.String(), stdin
}

// ShellQuote quotes s for a POSIX shell using single quotes
func ShellQuote(s string) string {
	if s == "" {
		return "''"
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
