package lock

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// FileName is the lock file created inside a locked directory.
const FileName = "LOCK"

// HeldError is returned when another process holds the data directory lock.
type HeldError struct {
	Info Info
	Path string
}

func (e *HeldError) Error() string {
	if e.Info.Endpoint != "" {
		return fmt.Sprintf("data dir locked by PID %d serving %s (%s)", e.Info.PID, e.Info.Endpoint, e.Path)
	}
	return fmt.Sprintf("data dir locked by PID %d (%s)", e.Info.PID, e.Path)
}

// Info is the diagnostic content of a lock file.
type Info struct {
	PID      int
	Endpoint string
	Since    time.Time
}

// Lock represents an acquired directory lock.
type Lock struct {
	file *os.File
	path string
}

// Acquire takes an exclusive lock on dir so only one duochatd serves a data
// directory. endpoint is recorded for diagnostics. Returns *HeldError if
// another process already holds it.
func Acquire(dir, endpoint string) (*Lock, error) {
	lockPath := filepath.Join(dir, FileName)

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		info, _ := Inspect(dir)
		_ = f.Close()
		return nil, &HeldError{Info: info, Path: lockPath}
	}

	if err := f.Truncate(0); err != nil {
		_ = f.Close()
		return nil, err
	}
	if _, err := f.Seek(0, 0); err != nil {
		_ = f.Close()
		return nil, err
	}
	content := fmt.Sprintf("pid=%d\nendpoint=%s\ntime=%s\n", os.Getpid(), endpoint, time.Now().UTC().Format(time.RFC3339))
	if _, err := f.WriteString(content); err != nil {
		_ = f.Close()
		return nil, err
	}

	return &Lock{file: f, path: lockPath}, nil
}

// Inspect reads the lock file in dir without acquiring it.
func Inspect(dir string) (Info, error) {
	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		return Info{}, err
	}
	return parse(string(data)), nil
}

// Release releases the lock. Safe to call on nil receiver.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	// Remove lock file before closing to avoid stale files.
	_ = os.Remove(l.path)
	err := l.file.Close()
	l.file = nil
	return err
}

func parse(content string) Info {
	var info Info
	for _, line := range strings.Split(content, "\n") {
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		switch key {
		case "pid":
			info.PID, _ = strconv.Atoi(value)
		case "endpoint":
			info.Endpoint = value
		case "time":
			info.Since, _ = time.Parse(time.RFC3339, value)
		}
	}
	return info
}
