package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"toolbelt/internal/download"
)

// RowUpdateMsg updates a single row's fields by column name.
type RowUpdateMsg struct {
	Key    string
	Fields map[string]string
}

// WorkDoneMsg signals that all background work has completed.
type WorkDoneMsg struct{}

// ErrorMsg signals a fatal error; the TUI should quit.
type ErrorMsg struct {
	Err error
}

// Reporter translates download callbacks for one tool into row updates.
// Wire its OnState and OnProgress methods into download.Downloader and
// download.Options before starting an install.
type Reporter struct {
	key  string
	send func(tea.Msg)
}

// NewReporter builds a reporter that updates the row identified by key.
func NewReporter(key string, send func(tea.Msg)) *Reporter {
	return &Reporter{key: key, send: send}
}

// OnState satisfies download.StateFunc.
func (r *Reporter) OnState(state download.State, detail string) {
	fields := map[string]string{"STATUS": string(state)}
	if detail != "" {
		fields["DETAIL"] = detail
	}
	r.send(RowUpdateMsg{Key: r.key, Fields: fields})
}

// OnProgress satisfies download.ProgressFunc.
func (r *Reporter) OnProgress(written, total int64) {
	r.send(RowUpdateMsg{
		Key:    r.key,
		Fields: map[string]string{"PROGRESS": FormatProgress(written, total)},
	})
}

// FormatProgress renders a byte counter like "1.2 MB/8.0 MB". A zero total
// means the size is unknown and only the written count is shown.
func FormatProgress(written, total int64) string {
	if total <= 0 {
		return HumanBytes(written)
	}
	return fmt.Sprintf("%s/%s", HumanBytes(written), HumanBytes(total))
}

// HumanBytes renders a byte count with a binary-prefix unit.
func HumanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}
