package indexer

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// IndexLogger writes a per-build event log of key=value lines.
// A nil *IndexLogger discards everything.
type IndexLogger struct {
	mu   sync.Mutex
	file *os.File
	path string
}

// OpenIndexLogger creates a new event log under logDir named after the corpus.
func OpenIndexLogger(logDir, corpusName string) (*IndexLogger, error) {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}

	timestamp := time.Now().Format("20060102-150405")
	path := filepath.Join(logDir, fmt.Sprintf("index-%s-%s.log", corpusName, timestamp))

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	logger := &IndexLogger{file: file, path: path}
	logger.Info("index log opened", map[string]interface{}{"log_file": path})
	return logger, nil
}

// Path returns the log file location.
func (l *IndexLogger) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

func (l *IndexLogger) log(level string, message string, details map[string]interface{}) {
	if l == nil {
		return
	}

	line := fmt.Sprintf("[%s] %s: %s", time.Now().Format("2006-01-02 15:04:05.000"), level, message)
	keys := make([]string, 0, len(details))
	for k := range details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		line += fmt.Sprintf(" %s=%v", k, details[k])
	}
	line += "\n"

	l.mu.Lock()
	defer l.mu.Unlock()
	l.file.WriteString(line)
}

func (l *IndexLogger) Info(message string, details map[string]interface{}) {
	l.log("INFO", message, details)
}

func (l *IndexLogger) Warn(message string, details map[string]interface{}) {
	l.log("WARN", message, details)
}

func (l *IndexLogger) Error(message string, details map[string]interface{}) {
	l.log("ERROR", message, details)
}

// Close flushes and closes the log file.
func (l *IndexLogger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	l.Info("index log closing", nil)
	return l.file.Close()
}
