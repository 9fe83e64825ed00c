// Package workspace manages the per-shard temporary directories the
// dispatcher builds shard jobs inside of.
package workspace

import (
	"os"
	"runtime"

	"github.com/sirupsen/logrus"
)

// Workspace is a scoped temporary directory exclusive to one shard.
// Deletion is idempotent and safe to call more than once.
type Workspace struct {
	dir    string
	closed bool
	logger *logrus.Entry
}

// New creates a workspace directory under parent (or the default temp
// directory if parent is ""), with its mode copied from the current
// process's working directory so the shard's ambient file-creation mask
// matches the caller's environment.
func New(parent string, logger *logrus.Entry) (*Workspace, error) {
	dir, err := os.MkdirTemp(parent, "shard-")
	if err != nil {
		return nil, err
	}

	if mode, err := cwdMode(); err == nil {
		_ = os.Chmod(dir, mode)
	}

	ws := &Workspace{dir: dir, logger: logger}
	// Belt-and-braces safety net: Go has no destructors, so an abandoned
	// Workspace (never Close'd by wait/kill) is still reclaimed best-effort
	// when the garbage collector notices it's unreachable.
	runtime.SetFinalizer(ws, func(w *Workspace) { w.Close() })
	return ws, nil
}

// Dir returns the workspace's directory path.
func (w *Workspace) Dir() string { return w.dir }

// Close removes the workspace directory. It is idempotent.
func (w *Workspace) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if _, err := os.Stat(w.dir); os.IsNotExist(err) {
		return nil
	}
	if w.logger != nil {
		w.logger.WithField("dir", w.dir).Debug("cleaning up shard workspace")
	}
	return os.RemoveAll(w.dir)
}

func cwdMode() (os.FileMode, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return 0, err
	}
	info, err := os.Stat(cwd)
	if err != nil {
		return 0, err
	}
	return info.Mode(), nil
}
