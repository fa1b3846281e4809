package brain

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DailyLog appends dated entries (compaction summaries, notable events)
// to one markdown file per day under the workspace's log directory.
type DailyLog struct {
	root string
	now  func() time.Time
}

// NewDailyLog builds a daily log writer rooted at the workspace
// directory w.Root.
func NewDailyLog(w *Workspace) *DailyLog {
	return &DailyLog{root: filepath.Join(w.Root, logDir), now: time.Now}
}

func (d *DailyLog) pathFor(t time.Time) string {
	return filepath.Join(d.root, t.UTC().Format("2006-01-02")+".md")
}

// SaveCompaction appends a compaction summary to today's log entry,
// persisting the long-term memory that would otherwise be dropped when
// the conversation window is summarized away.
func (d *DailyLog) SaveCompaction(summary string) error {
	return d.append("Compaction", summary)
}

// Append appends an arbitrary note under a heading to today's log.
func (d *DailyLog) Append(heading, body string) error {
	return d.append(heading, body)
}

func (d *DailyLog) append(heading, body string) error {
	if err := os.MkdirAll(d.root, 0o755); err != nil {
		return fmt.Errorf("brain: create log dir: %w", err)
	}
	now := d.now()
	path := d.pathFor(now)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("brain: open daily log: %w", err)
	}
	defer f.Close()

	entry := fmt.Sprintf("## %s — %s\n\n%s\n\n", heading, now.UTC().Format(time.RFC3339), body)
	if _, err := f.WriteString(entry); err != nil {
		return fmt.Errorf("brain: write daily log: %w", err)
	}
	return nil
}
