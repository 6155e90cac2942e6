// Package versioning implements the lazy copy-on-write project snapshotter:
// before a MODIFY run's first destructive write, the project root is copied
// once into a subdirectory of itself named <root><DDMMYYYYHHMM>, which
// future Walk calls then exclude as a versioning artifact.
package versioning

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/kajovo/cascade/internal/pathsafety"
)

// Snapshotter lazily snapshots a root directory at most once per instance.
type Snapshotter struct {
	root string
	done bool
	path string
}

// New returns a Snapshotter for root. Call Ensure before the first write.
func New(root string) *Snapshotter {
	return &Snapshotter{root: root}
}

// Ensure copies root into a timestamped subdirectory of root the first time
// it's called (the copy skips that subdirectory and any older snapshots);
// subsequent calls are no-ops and return the same path.
func (s *Snapshotter) Ensure(now time.Time) (string, error) {
	if s.done {
		return s.path, nil
	}
	base := filepath.Base(filepath.Clean(s.root))
	// DDMMYYYYHHMM: day, month, year, hour, minute — 12 digits.
	stamp := now.Format("02012006") + fmt.Sprintf("%02d%02d", now.Hour(), now.Minute())
	name := base + stamp
	dest := filepath.Join(filepath.Clean(s.root), name)

	if err := copyTree(s.root, dest); err != nil {
		return "", fmt.Errorf("versioning: snapshot %s: %w", s.root, err)
	}
	s.done = true
	s.path = dest
	return dest, nil
}

// Done reports whether a snapshot has already been taken.
func (s *Snapshotter) Done() bool { return s.done }

// Path returns the snapshot directory once Ensure has run, else "".
func (s *Snapshotter) Path() string { return s.path }

func copyTree(src, dst string) error {
	rootName := filepath.Base(filepath.Clean(src))
	return filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return os.MkdirAll(dst, 0o750)
		}
		if d.IsDir() && pathsafety.IsSnapshotDir(d.Name(), rootName) {
			return filepath.SkipDir
		}
		target, err := pathsafety.SafeJoin(dst, rel)
		if err != nil {
			return err
		}
		if d.IsDir() {
			return os.MkdirAll(target, 0o750)
		}
		return copyFile(path, target)
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
