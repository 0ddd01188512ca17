package logging

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultLogDir returns the default log directory (~/.kbcore/logs/).
// Falls back to temp directory if home directory is unavailable.
func DefaultLogDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".kbcore", "logs")
	}
	return filepath.Join(home, ".kbcore", "logs")
}

// DefaultLogPath returns the default core log path.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), "core.log")
}

// HeartbeatLogPath returns the heartbeat worker's dedicated log path, kept
// separate so a noisy background sweep doesn't drown out request logs.
func HeartbeatLogPath() string {
	return filepath.Join(DefaultLogDir(), "heartbeat.log")
}

// LogSource represents the source of logs to view.
type LogSource string

const (
	// LogSourceCore is the main process log (default).
	LogSourceCore LogSource = "core"
	// LogSourceHeartbeat is the background heartbeat worker's log.
	LogSourceHeartbeat LogSource = "heartbeat"
	// LogSourceAll combines all log sources.
	LogSourceAll LogSource = "all"
)

// FindLogFile attempts to find the log file for viewing.
// Priority:
//  1. Explicit path (if provided)
//  2. ~/.kbcore/logs/core.log (default)
//
// Returns an error if no log file is found.
func FindLogFile(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit, nil
		}
		return "", fmt.Errorf("log file not found: %s", explicit)
	}

	globalPath := DefaultLogPath()
	if _, err := os.Stat(globalPath); err == nil {
		return globalPath, nil
	}

	return "", fmt.Errorf("no log file found. Run with --debug first.\nExpected at: %s", globalPath)
}

// FindLogFileBySource finds log files based on the source type.
// Returns a list of log file paths that exist.
func FindLogFileBySource(source LogSource, explicit string) ([]string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return []string{explicit}, nil
		}
		return nil, fmt.Errorf("log file not found: %s", explicit)
	}

	var paths []string
	var checked []string

	switch source {
	case LogSourceCore:
		corePath := DefaultLogPath()
		checked = append(checked, corePath)
		if _, err := os.Stat(corePath); err == nil {
			paths = append(paths, corePath)
		}

	case LogSourceHeartbeat:
		hbPath := HeartbeatLogPath()
		checked = append(checked, hbPath)
		if _, err := os.Stat(hbPath); err == nil {
			paths = append(paths, hbPath)
		}

	case LogSourceAll:
		corePath := DefaultLogPath()
		hbPath := HeartbeatLogPath()
		checked = append(checked, corePath, hbPath)

		if _, err := os.Stat(corePath); err == nil {
			paths = append(paths, corePath)
		}
		if _, err := os.Stat(hbPath); err == nil {
			paths = append(paths, hbPath)
		}

	default:
		return nil, fmt.Errorf("unknown log source: %s (use: core, heartbeat, all)", source)
	}

	if len(paths) == 0 {
		return nil, fmt.Errorf("no log files found for source '%s'.\nChecked: %v\n\nRun with --debug to generate logs", source, checked)
	}

	return paths, nil
}

// ParseLogSource parses a string into a LogSource.
func ParseLogSource(s string) LogSource {
	switch s {
	case "heartbeat":
		return LogSourceHeartbeat
	case "all":
		return LogSourceAll
	default:
		return LogSourceCore
	}
}

// EnsureLogDir creates the log directory if it doesn't exist.
func EnsureLogDir() error {
	dir := DefaultLogDir()
	return os.MkdirAll(dir, 0o755)
}
