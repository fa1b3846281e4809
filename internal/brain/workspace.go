// Package brain manages a tenant's brain workspace: a directory of
// markdown files (SOUL.md, IDENTITY.md, USER.md, and a dated daily log)
// that get assembled into the agent's system prompt and append-logged
// with compaction summaries over time.
package brain

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	soulFile     = "SOUL.md"
	identityFile = "IDENTITY.md"
	userFile     = "USER.md"
	logDir       = "logs"
)

var defaultFiles = map[string]string{
	soulFile: "# SOUL\n\nYou are steady, direct, and genuinely helpful. You say what you mean.\n",
	identityFile: "# IDENTITY\n\nNo identity has been configured for this agent yet.\n",
	userFile: "# USER\n\nNothing is known about the user yet. Update this file as you learn.\n",
}

// assembleOrder is the order brain files are concatenated into the
// system prompt; it mirrors the order they matter to the agent's voice:
// who it is, what it's called, then who it's talking to.
var assembleOrder = []string{soulFile, identityFile, userFile}

// Workspace is one tenant's on-disk brain directory.
type Workspace struct {
	Root string
}

// New builds a Workspace rooted at dir.
func New(dir string) *Workspace {
	return &Workspace{Root: dir}
}

// Initialize seeds any brain file that doesn't exist yet with a sensible
// default. Existing files are left untouched.
func (w *Workspace) Initialize() error {
	if err := os.MkdirAll(w.Root, 0o755); err != nil {
		return fmt.Errorf("brain: create workspace: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(w.Root, logDir), 0o755); err != nil {
		return fmt.Errorf("brain: create log dir: %w", err)
	}
	for _, name := range assembleOrder {
		path := filepath.Join(w.Root, name)
		if _, err := os.Stat(path); err == nil {
			continue
		} else if !os.IsNotExist(err) {
			return fmt.Errorf("brain: stat %s: %w", name, err)
		}
		if err := os.WriteFile(path, []byte(defaultFiles[name]), 0o644); err != nil {
			return fmt.Errorf("brain: seed %s: %w", name, err)
		}
	}
	return nil
}

// Assemble concatenates the brain files, in voice order, skipping any
// that are absent or empty. The result is appended to the configured
// identity system prompt by the turn engine.
func (w *Workspace) Assemble() string {
	var parts []string
	for _, name := range assembleOrder {
		data, err := os.ReadFile(filepath.Join(w.Root, name))
		if err != nil {
			continue
		}
		text := strings.TrimSpace(string(data))
		if text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n\n")
}

// UpdateUser overwrites USER.md with new content, used when the agent
// learns something durable about who it's talking to.
func (w *Workspace) UpdateUser(content string) error {
	return os.WriteFile(filepath.Join(w.Root, userFile), []byte(content), 0o644)
}
