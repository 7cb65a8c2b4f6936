// Package pidfile guards against a second daemon instance by writing the
// process ID to a lock file and refusing to start while the recorded owner
// is still alive.
package pidfile

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// File is one PID lock file.
type File struct {
	path string
	pid  int
}

// New binds a lock file path to the current process.
func New(path string) *File {
	return &File{path: path, pid: os.Getpid()}
}

// Path returns the lock file path.
func (f *File) Path() string { return f.path }

// Acquire writes the lock file. A stale file left by a dead process is
// replaced; a live owner makes Acquire fail with its PID in the error.
func (f *File) Acquire() error {
	if owner, err := f.Owner(); err == nil && owner != 0 {
		return fmt.Errorf("already running with pid %d", owner)
	}

	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("create pid file directory: %w", err)
	}
	if err := os.WriteFile(f.path, []byte(strconv.Itoa(f.pid)+"\n"), 0o644); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	return nil
}

// Release removes the lock file when this process owns it.
func (f *File) Release() error {
	pid, err := f.read()
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return os.Remove(f.path)
	}
	if pid != f.pid {
		return fmt.Errorf("pid file owned by %d, not removing", pid)
	}
	return os.Remove(f.path)
}

// Owner returns the PID of a live process holding the lock, or 0 when the
// file is absent or stale.
func (f *File) Owner() (int, error) {
	pid, err := f.read()
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	if !alive(pid) {
		return 0, nil
	}
	return pid, nil
}

func (f *File) read() (int, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("malformed pid file %s: %w", f.path, err)
	}
	return pid, nil
}

// alive probes the process with signal 0.
func alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
