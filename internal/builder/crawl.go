package builder

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5/osfs"
	gitignore "github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

type entry struct {
	path string
	dir  bool
}

type ignoreMatcher struct {
	matcher gitignore.Matcher
}

func loadIgnoreMatcher(root string, scanAll bool) (*ignoreMatcher, error) {
	if scanAll {
		return &ignoreMatcher{}, nil
	}
	patterns, err := gitignore.ReadPatterns(osfs.New(root), nil)
	if err != nil {
		return nil, err
	}
	return &ignoreMatcher{matcher: gitignore.NewMatcher(patterns)}, nil
}

func (m *ignoreMatcher) isIgnored(relPath string, isDir bool) bool {
	if m == nil || m.matcher == nil {
		return false
	}
	relPath = strings.Trim(filepath.ToSlash(relPath), "/")
	if relPath == "" || relPath == "." {
		return false
	}
	return m.matcher.Match(strings.Split(relPath, "/"), isDir)
}

// crawl lists root and everything below it by canonical path. root must be
// canonical. Symlinks are listed as their targets, once, and never descended
// into. Hidden and gitignored entries are left out unless scanAll is set.
// Unreadable entries and dangling links are skipped.
func crawl(root string, scanAll bool) ([]entry, error) {
	ignore, err := loadIgnoreMatcher(root, scanAll)
	if err != nil {
		return nil, err
	}

	var entries []entry
	seen := make(map[string]bool)
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path != root && (errors.Is(err, fs.ErrPermission) || errors.Is(err, fs.ErrNotExist)) {
				if d != nil && d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			return err
		}

		if path != root {
			rel, _ := filepath.Rel(root, path)
			hidden := strings.HasPrefix(d.Name(), ".")
			if (!scanAll && hidden) || ignore.isIgnored(rel, d.IsDir()) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
		}

		e := entry{path: path, dir: d.IsDir()}
		if d.Type()&fs.ModeSymlink != 0 {
			target, err := filepath.EvalSymlinks(path)
			if err != nil {
				return nil
			}
			info, err := os.Stat(target)
			if err != nil {
				return nil
			}
			e = entry{path: target, dir: info.IsDir()}
		}
		if seen[e.path] {
			return nil
		}
		seen[e.path] = true
		entries = append(entries, e)
		return nil
	})
	return entries, err
}
