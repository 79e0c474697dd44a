package prompt

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/semlaunch/pkg/types"
)

func TestNamePrompts(t *testing.T) {
	tests := []struct {
		name string
		path string
		dir  bool
		want []string
	}{
		{
			name: "file with extension",
			path: "/home/u/annual_report.docx",
			want: []string{"file: annual_report.docx", "name: annual report", "extension: docx"},
		},
		{
			name: "directory",
			path: "/home/u/my_projects",
			dir:  true,
			want: []string{"directory: my_projects", "name: my projects"},
		},
		{
			name: "directory with dot keeps no extension",
			path: "/srv/site.d",
			dir:  true,
			want: []string{"directory: site.d", "name: site"},
		},
		{
			name: "dotfile",
			path: "/home/u/.bashrc",
			want: []string{"file: .bashrc", "name: .bashrc"},
		},
		{
			name: "double extension",
			path: "backup.tar.gz",
			want: []string{"file: backup.tar.gz", "name: backup.tar", "extension: gz"},
		},
		{
			name: "no extension",
			path: "/usr/bin/Makefile",
			want: []string{"file: Makefile", "name: Makefile"},
		},
		{
			name: "root",
			path: "/",
			dir:  true,
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NamePrompts(tt.path, tt.dir))
		})
	}
}

func TestNamePrompts_NFC(t *testing.T) {
	got := NamePrompts("/tmp/cafe\u0301.txt", false)
	assert.Equal(t, "file: caf\u00e9.txt", got[0])
	assert.Equal(t, "name: caf\u00e9", got[1])
}

func TestGroupParagraphs(t *testing.T) {
	para := func(n int) string {
		parts := make([]string, n)
		for i := range parts {
			parts[i] = string(rune('a' + i))
		}
		return strings.Join(parts, "\n\n")
	}

	tests := []struct {
		name    string
		content string
		n       int
		want    []string
	}{
		{"fewer than n stays ungrouped", para(3), 5, []string{"a", "b", "c"}},
		{"exactly n", para(4), 4, []string{"a", "b", "c", "d"}},
		{"merged once", para(4), 2, []string{"a\n\nb", "c\n\nd"}},
		{"odd count keeps tail", para(5), 3, []string{"a\n\nb", "c\n\nd", "e"}},
		{"merged repeatedly", para(8), 2, []string{"a\n\nb\n\nc\n\nd", "e\n\nf\n\ng\n\nh"}},
		{"one group is whole content", "x\n\ny", 1, []string{"x\n\ny"}},
		{"empty paragraphs dropped", "a\n\n\n\nb\n\n  \n\nc", 5, []string{"a", "b", "c"}},
		{"crlf", "a\r\n\r\nb", 5, []string{"a", "b"}},
		{"blank content", "  \n\n ", 3, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GroupParagraphs(tt.content, tt.n))
		})
	}
}

func TestGroupParagraphs_NeverExceedsN(t *testing.T) {
	content := strings.Repeat("para\n\n", 37)
	for n := 1; n < 40; n++ {
		got := GroupParagraphs(content, n)
		assert.LessOrEqual(t, len(got), n)
		assert.NotEmpty(t, got)
	}
}

func TestExtractor_Prompts(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "notes.md")
	require.NoError(t, os.WriteFile(file, []byte("one\n\ntwo\n\nthree"), 0o644))

	e := New()
	ctx := context.Background()

	got, err := e.Prompts(ctx, types.CacheItem{Path: file, State: types.StateNone()})
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = e.Prompts(ctx, types.CacheItem{Path: file, State: types.StateName()})
	require.NoError(t, err)
	assert.Equal(t, []string{"file: notes.md", "name: notes", "extension: md"}, got)

	got, err = e.Prompts(ctx, types.CacheItem{Path: dir, State: types.StateName()})
	require.NoError(t, err)
	assert.Equal(t, "directory: "+filepath.Base(dir), got[0])

	got, err = e.Prompts(ctx, types.CacheItem{Path: file, State: types.StateParagraphs(5)})
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two", "three"}, got)

	got, err = e.Prompts(ctx, types.CacheItem{Path: file, State: types.StateParagraphs(1)})
	require.NoError(t, err)
	assert.Equal(t, []string{"one\n\ntwo\n\nthree"}, got)

	got, err = e.Prompts(ctx, types.CacheItem{Path: dir, State: types.StateParagraphs(3)})
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = e.Prompts(ctx, types.CacheItem{Path: filepath.Join(dir, "gone.txt"), State: types.StateParagraphs(3)})
	assert.Error(t, err)
}

func TestExtractor_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New().Prompts(ctx, types.CacheItem{Path: "/x", State: types.StateName()})
	assert.ErrorIs(t, err, context.Canceled)
}
