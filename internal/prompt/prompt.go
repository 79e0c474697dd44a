package prompt

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/dshills/semlaunch/pkg/types"
)

// DefaultMaxBytes caps how much of a file is read for paragraph prompts.
const DefaultMaxBytes = 4 << 20

// Extractor turns a (path, state) pair into embedding prompts.
type Extractor struct {
	// MaxBytes skips content prompts for larger files. Zero means DefaultMaxBytes.
	MaxBytes int64
}

// New returns an Extractor with default limits.
func New() *Extractor {
	return &Extractor{MaxBytes: DefaultMaxBytes}
}

// Prompts derives the prompts for item. None yields nothing, Name yields the
// name prompts and Paragraphs(n) yields at most n grouped paragraphs of the
// file's text. Directories have no content. A non-nil error explains why no
// content prompts could be produced; the prompts are empty in that case.
func (e *Extractor) Prompts(ctx context.Context, item types.CacheItem) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch item.State.Kind {
	case types.KindName:
		return NamePrompts(item.Path, isDir(item.Path)), nil
	case types.KindParagraphs:
		if isDir(item.Path) {
			return nil, nil
		}
		limit := e.MaxBytes
		if limit <= 0 {
			limit = DefaultMaxBytes
		}
		content, err := ReadContent(item.Path, limit)
		if err != nil {
			return nil, err
		}
		return GroupParagraphs(content, item.State.N), nil
	default:
		return nil, nil
	}
}

// NamePrompts returns the filename derived prompts:
//
//	directory: <name> | file: <name>
//	name: <stem with '_' as ' '>
//	extension: <ext>      (files only)
func NamePrompts(path string, dir bool) []string {
	name := fileName(path)
	if name == "" {
		return nil
	}
	name = norm.NFC.String(name)

	prompts := make([]string, 0, 3)
	if dir {
		prompts = append(prompts, "directory: "+name)
	} else {
		prompts = append(prompts, "file: "+name)
	}

	stem, ext := splitExt(name)
	if s := strings.ReplaceAll(stem, "_", " "); strings.TrimSpace(s) != "" {
		prompts = append(prompts, "name: "+s)
	}
	if !dir && ext != "" {
		prompts = append(prompts, "extension: "+ext)
	}
	return prompts
}

// GroupParagraphs splits content on blank lines and merges neighbouring
// paragraphs pairwise until at most n groups remain. n <= 1 keeps the whole
// content as one prompt.
func GroupParagraphs(content string, n int) []string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	if strings.TrimSpace(content) == "" {
		return nil
	}
	if n <= 1 {
		return []string{content}
	}

	var paragraphs []string
	for _, p := range strings.Split(content, "\n\n") {
		if strings.TrimSpace(p) != "" {
			paragraphs = append(paragraphs, p)
		}
	}

	for len(paragraphs) > n {
		merged := make([]string, 0, (len(paragraphs)+1)/2)
		for i := 0; i < len(paragraphs); i += 2 {
			if i+1 < len(paragraphs) {
				merged = append(merged, paragraphs[i]+"\n\n"+paragraphs[i+1])
			} else {
				merged = append(merged, paragraphs[i])
			}
		}
		paragraphs = merged
	}
	return paragraphs
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// fileName returns the final path element, or "" for roots and dot entries.
func fileName(path string) string {
	base := filepath.Base(filepath.Clean(path))
	if base == "." || base == ".." || base == string(filepath.Separator) {
		return ""
	}
	return base
}

// splitExt splits name at its last dot. A single leading dot belongs to the
// stem, so ".bashrc" has no extension.
func splitExt(name string) (stem, ext string) {
	i := strings.LastIndexByte(name, '.')
	if i <= 0 {
		return name, ""
	}
	return name[:i], name[i+1:]
}
