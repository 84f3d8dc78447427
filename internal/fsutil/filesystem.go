// Package fsutil waits for image files written by acquisition software.
package fsutil

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/banshee-data/spotcall/internal/iss"
	"github.com/banshee-data/spotcall/internal/timeutil"
)

// StatFS is the filesystem view WaitForFile needs.
type StatFS interface {
	Stat(name string) (fs.FileInfo, error)
}

// OSFileSystem implements StatFS using the os package.
type OSFileSystem struct{}

// Stat returns file info for the named file.
func (OSFileSystem) Stat(name string) (fs.FileInfo, error) {
	return os.Stat(name)
}

// NoFileError reports a file that did not appear within the wait time.
type NoFileError struct {
	Path    string
	Timeout time.Duration
}

func (e *NoFileError) Error() string {
	return fmt.Sprintf("no file %s after waiting %v", e.Path, e.Timeout)
}

// WaitOptions controls WaitForFile. Zero durations select the defaults.
type WaitOptions struct {
	Timeout time.Duration // how long to wait for the file to appear
	Poll    time.Duration // existence poll interval, default 1s
	Settle  time.Duration // size poll interval once found, default 5s
}

func (o WaitOptions) withDefaults() WaitOptions {
	if o.Poll <= 0 {
		o.Poll = time.Second
	}
	if o.Settle <= 0 {
		o.Settle = 5 * time.Second
	}
	return o
}

// WaitForFile returns once path exists as a regular file. A file present on
// the first check returns immediately. Otherwise it polls until the file
// appears or Timeout passes, then polls the size until it stops growing.
func WaitForFile(ctx context.Context, fsys StatFS, clock timeutil.Clock, path string, opts WaitOptions) error {
	opts = opts.withDefaults()
	if ok, err := isFile(fsys, path); err != nil || ok {
		return err
	}

	iss.Opsf("no file %s yet, waiting up to %v", path, opts.Timeout)
	start := clock.Now()
	found := false
	for clock.Since(start) < opts.Timeout {
		if err := ctx.Err(); err != nil {
			return err
		}
		clock.Sleep(opts.Poll)
		ok, err := isFile(fsys, path)
		if err != nil {
			return err
		}
		if ok {
			found = true
			break
		}
	}
	if !found {
		return &NoFileError{Path: path, Timeout: opts.Timeout}
	}

	iss.Diagf("file %s found, waiting for it to finish writing", path)
	var prev int64 = -1
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		clock.Sleep(opts.Settle)
		info, err := fsys.Stat(path)
		if err != nil {
			return fmt.Errorf("stat %s: %w", path, err)
		}
		if info.Size() <= prev {
			return nil
		}
		prev = info.Size()
	}
}

func isFile(fsys StatFS, path string) (bool, error) {
	info, err := fsys.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", path, err)
	}
	return info.Mode().IsRegular(), nil
}
