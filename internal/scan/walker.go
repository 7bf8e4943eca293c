package scan

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// ErrSymlinkCycle is reported for a symlinked directory that resolves to a
// directory already entered during the walk.
var ErrSymlinkCycle = errors.New("symlink cycle")

// Entry is a recognized audio file found during a walk.
type Entry struct {
	Path string
	Ext  Extension
	Size int64
}

// WalkError records a path that could not be entered or inspected.
// The subtree below it is skipped; the walk continues elsewhere.
type WalkError struct {
	Path string
	Err  error
}

func (e WalkError) Error() string {
	return fmt.Sprintf("walk %s: %v", e.Path, e.Err)
}

func (e WalkError) Unwrap() error { return e.Err }

// Enumerator produces the recognized files under a set of roots.
type Enumerator interface {
	Walk(ctx context.Context, roots []string, fn func(Entry) error) ([]WalkError, error)
}

// Walker is the filesystem Enumerator.
type Walker struct {
	extensions     ExtensionSet
	followSymlinks bool
	logger         *zap.Logger
}

// NewWalker creates a walker that reports files whose extension is in exts.
// A nil or empty set selects DefaultExtensions.
func NewWalker(exts ExtensionSet) *Walker {
	if len(exts) == 0 {
		exts = DefaultExtensions()
	}
	return &Walker{
		extensions: exts,
		logger:     zap.NewNop(),
	}
}

// SetFollowSymlinks configures whether symlinks to directories and files are followed.
func (w *Walker) SetFollowSymlinks(follow bool) {
	w.followSymlinks = follow
}

// SetLogger sets the logger for per-entry warnings.
func (w *Walker) SetLogger(l *zap.Logger) {
	w.logger = l
}

// Walk visits every recognized regular file under roots and calls fn for
// each, in lexical order within a directory. Unreadable directories and
// symlink cycles are returned as WalkErrors and do not stop the walk.
// Walk stops early only when ctx is done or fn returns an error; that error
// is returned together with the WalkErrors collected so far.
func (w *Walker) Walk(ctx context.Context, roots []string, fn func(Entry) error) ([]WalkError, error) {
	state := &walkState{
		fn:      fn,
		visited: make(map[string]bool),
	}

	for _, root := range roots {
		info, err := os.Stat(root)
		if err != nil {
			state.fail(w, root, err)
			continue
		}
		if !info.IsDir() {
			state.fail(w, root, fmt.Errorf("not a directory"))
			continue
		}
		if err := w.walkDir(ctx, state, filepath.Clean(root)); err != nil {
			return state.errs, err
		}
	}

	return state.errs, nil
}

type walkState struct {
	fn      func(Entry) error
	visited map[string]bool
	errs    []WalkError
}

func (s *walkState) fail(w *Walker, path string, err error) {
	w.logger.Warn("skipping path", zap.String("path", path), zap.Error(err))
	s.errs = append(s.errs, WalkError{Path: path, Err: err})
}

func (w *Walker) walkDir(ctx context.Context, s *walkState, dir string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	resolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		s.fail(w, dir, err)
		return nil
	}
	if s.visited[resolved] {
		if w.followSymlinks {
			s.fail(w, dir, ErrSymlinkCycle)
		}
		return nil
	}
	s.visited[resolved] = true

	entries, err := os.ReadDir(dir)
	if err != nil {
		s.fail(w, dir, err)
		return nil
	}

	for _, de := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}

		path := filepath.Join(dir, de.Name())
		mode := de.Type()

		if mode&fs.ModeSymlink != 0 {
			if !w.followSymlinks {
				continue
			}
			info, err := os.Stat(path)
			if err != nil {
				s.fail(w, path, err)
				continue
			}
			mode = info.Mode().Type()
		}

		switch {
		case mode.IsDir():
			if err := w.walkDir(ctx, s, path); err != nil {
				return err
			}
		case mode.IsRegular():
			ext, ok := w.extensions.Match(path)
			if !ok {
				continue
			}
			info, err := os.Stat(path)
			if err != nil {
				s.fail(w, path, err)
				continue
			}
			if err := s.fn(Entry{Path: path, Ext: ext, Size: info.Size()}); err != nil {
				return err
			}
		}
	}

	return nil
}
