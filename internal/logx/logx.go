package logx

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"toolbelt/internal/paths"
)

// New creates a logger that writes to a timestamped file inside the user's
// toolbelt logs directory. The returned closer should be closed when logging
// is no longer needed.
func New(p paths.Paths) (*log.Logger, io.Closer, error) {
	if err := p.EnsureLogsDir(); err != nil {
		return nil, nil, err
	}

	filename := time.Now().Format("20060102-150405") + ".log"
	filePath := filepath.Join(p.LogsDir, filename)
	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}

	logger := log.New(file, "", log.LstdFlags|log.Lmicroseconds)
	return logger, file, nil
}

// Discard returns a logger that drops everything, for callers that have no
// log sink yet.
func Discard() *log.Logger {
	return log.New(io.Discard, "", 0)
}
