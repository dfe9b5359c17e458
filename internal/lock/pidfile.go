// Package lock keeps a second relay from starting against the same pid file.
package lock

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"syscall"
)

// ErrHeld is returned when another process holds the lock.
var ErrHeld = errors.New("pid file is locked by another process")

// PIDFile is an flock(2)-held pid file. The lock lives as long as the
// descriptor stays open.
type PIDFile struct {
	path string
	f    *os.File
}

// HeldError reports the holder of a contended pid file.
type HeldError struct {
	Path string
	PID  int // 0 when the file did not contain a readable pid
}

func (e *HeldError) Error() string {
	if e.PID > 0 {
		return fmt.Sprintf("%s: held by pid %d", e.Path, e.PID)
	}
	return fmt.Sprintf("%s: held by another process", e.Path)
}

func (e *HeldError) Is(target error) bool { return target == ErrHeld }

// Acquire takes an exclusive non-blocking lock on path and records the
// current pid in it.
func Acquire(path string) (*PIDFile, error) {
	if path == "" {
		return nil, errors.New("pid file path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create pid file directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open pid file: %w", err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		defer f.Close()
		if errors.Is(err, syscall.EWOULDBLOCK) {
			return nil, &HeldError{Path: path, PID: readPID(f)}
		}
		return nil, fmt.Errorf("lock pid file: %w", err)
	}

	p := &PIDFile{path: path, f: f}
	if err := p.writePID(); err != nil {
		_ = p.Release()
		return nil, err
	}
	return p, nil
}

func (p *PIDFile) writePID() error {
	if err := p.f.Truncate(0); err != nil {
		return fmt.Errorf("truncate pid file: %w", err)
	}
	if _, err := p.f.WriteAt([]byte(strconv.Itoa(os.Getpid())+"\n"), 0); err != nil {
		return fmt.Errorf("write pid: %w", err)
	}
	return p.f.Sync()
}

func readPID(f *os.File) int {
	buf := make([]byte, 32)
	n, _ := f.ReadAt(buf, 0)
	pid, err := strconv.Atoi(string(bytes.TrimSpace(buf[:n])))
	if err != nil {
		return 0
	}
	return pid
}

// Path returns the pid file location.
func (p *PIDFile) Path() string { return p.path }

// Release unlocks and closes the pid file. The file itself is left in place.
func (p *PIDFile) Release() error {
	if p == nil || p.f == nil {
		return nil
	}
	_ = syscall.Flock(int(p.f.Fd()), syscall.LOCK_UN)
	err := p.f.Close()
	p.f = nil
	return err
}
