// Package policy gates the shell tool against an allowlist/blocklist so a
// misbehaving or adversarial agent turn can't run arbitrary commands.
package policy

import (
	"strings"
)

// Policy decides whether a shell command may run. A command is checked
// against Blocklist first (deny wins), then Allowlist if non-empty (if
// set, only matching commands may run).
type Policy struct {
	Allowlist []string
	Blocklist []string
}

// Default blocks the commands capable of destroying the host or
// exfiltrating credentials outright; it does not allowlist anything, so
// every other command is permitted unless the tenant configures one.
func Default() Policy {
	return Policy{
		Blocklist: []string{
			"rm -rf /", "mkfs", "dd if=", ":(){ :|:& };:", "shutdown", "reboot",
		},
	}
}

// Allowed reports whether cmd may execute under p.
func (p Policy) Allowed(cmd string) bool {
	trimmed := strings.TrimSpace(cmd)
	for _, blocked := range p.Blocklist {
		if blocked != "" && strings.Contains(trimmed, blocked) {
			return false
		}
	}
	if len(p.Allowlist) == 0 {
		return true
	}
	for _, allowed := range p.Allowlist {
		if strings.HasPrefix(trimmed, allowed) {
			return true
		}
	}
	return false
}
