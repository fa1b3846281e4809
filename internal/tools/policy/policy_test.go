package policy

import "testing"

func TestDefaultBlocksDestructiveCommands(t *testing.T) {
	p := Default()
	if p.Allowed("rm -rf / --no-preserve-root") {
		t.Fatal("expected rm -rf / to be blocked")
	}
	if !p.Allowed("ls -la") {
		t.Fatal("expected ls to be allowed with no allowlist configured")
	}
}

func TestAllowlistRestrictsToPrefixes(t *testing.T) {
	p := Policy{Allowlist: []string{"git status", "git diff"}}
	if !p.Allowed("git status --short") {
		t.Fatal("expected allowlisted prefix to be allowed")
	}
	if p.Allowed("git push --force") {
		t.Fatal("expected non-allowlisted command to be denied")
	}
}

func TestBlocklistWinsOverAllowlist(t *testing.T) {
	p := Policy{Allowlist: []string{"rm"}, Blocklist: []string{"rm -rf /"}}
	if p.Allowed("rm -rf / --no-preserve-root") {
		t.Fatal("expected blocklist to take priority over allowlist")
	}
}
