package internal

import (
	"os"
	"path/filepath"

	"golang.org/x/term"
)

// LogDir returns ~/.caseindex/logs.
func LogDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".caseindex", "logs"), nil
}

// StdoutIsTerminal reports whether stdout is attached to a terminal.
func StdoutIsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// ResolveOutput makes a report path absolute relative to the working directory.
func ResolveOutput(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	return filepath.Abs(path)
}
