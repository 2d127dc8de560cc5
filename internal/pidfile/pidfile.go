// Package pidfile keeps a single skybit server per data directory.
package pidfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
)

// FileName is the PID file created inside the data directory.
const FileName = "skybit.pid"

// ErrAlreadyRunning is returned by Acquire when a live process owns the
// PID file.
var ErrAlreadyRunning = errors.New("another skybit server is running")

// Path returns the PID file location for dataDir.
func Path(dataDir string) string {
	return filepath.Join(dataDir, FileName)
}

// Write records pid in dataDir.
func Write(dataDir string, pid int) error {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	if err := os.WriteFile(Path(dataDir), []byte(fmt.Sprintf("%d\n", pid)), 0600); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}
	return nil
}

// Read returns the PID recorded in dataDir.
func Read(dataDir string) (int, error) {
	data, err := os.ReadFile(Path(dataDir))
	if err != nil {
		return 0, err
	}

	var pid int
	if _, err := fmt.Sscanf(string(data), "%d", &pid); err != nil {
		return 0, fmt.Errorf("invalid PID file: %w", err)
	}
	return pid, nil
}

// IsRunning reports whether a process with pid exists.
func IsRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// Signal 0 only checks that the process exists.
	return process.Signal(syscall.Signal(0)) == nil
}

// Acquire claims dataDir for the current process. A stale or unreadable
// file is replaced. The returned release removes the file.
func Acquire(dataDir string) (func() error, error) {
	if pid, err := Read(dataDir); err == nil && pid != os.Getpid() && IsRunning(pid) {
		return nil, fmt.Errorf("%w (pid %d, %s)", ErrAlreadyRunning, pid, Path(dataDir))
	}

	if err := Write(dataDir, os.Getpid()); err != nil {
		return nil, err
	}
	return func() error { return Remove(dataDir) }, nil
}

// Remove deletes the PID file. A missing file is not an error.
func Remove(dataDir string) error {
	if err := os.Remove(Path(dataDir)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
