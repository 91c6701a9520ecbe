package deps

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/qobs-build/qide/internal/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mapScanner serves include lists from memory.
type mapScanner map[string][]string

func (m mapScanner) ScanIncludes(file string) ([]string, error) {
	includes, ok := m[file]
	if !ok {
		return nil, os.ErrNotExist
	}
	return includes, nil
}

func objectFor(src string) string {
	rel := strings.TrimPrefix(src, "src/")
	return filepath.Join("build", strings.TrimSuffix(rel, filepath.Ext(rel))+".o")
}

func newResolver(scan mapScanner, sources, headers []string) *Resolver {
	return NewResolver(scan, Project{
		Sources:    sources,
		Headers:    headers,
		HeaderDir:  "include",
		ObjectDirs: []string{"build"},
		ObjectFor:  objectFor,
	})
}

func TestSourceFor(t *testing.T) {
	r := newResolver(mapScanner{}, []string{"src/main.cpp", "src/sub/util.cpp"}, nil)

	src, err := r.SourceFor("build/main.o")
	require.NoError(t, err)
	assert.Equal(t, "src/main.cpp", src)

	src, err = r.SourceFor("build/sub/../sub/util.o")
	require.NoError(t, err)
	assert.Equal(t, "src/sub/util.cpp", src)

	_, err = r.SourceFor("build/missing.o")
	assert.ErrorIs(t, err, ErrNoSource)
}

func TestSourceForConflict(t *testing.T) {
	flat := func(src string) string {
		base := filepath.Base(src)
		return filepath.Join("build", strings.TrimSuffix(base, filepath.Ext(base))+".o")
	}
	r := NewResolver(mapScanner{}, Project{
		Sources:   []string{"src/foo.cpp", "src/sub/foo.cpp"},
		ObjectFor: flat,
	})

	_, err := r.SourceFor("build/foo.o")
	assert.ErrorIs(t, err, ErrConflictingSources)
	assert.Contains(t, err.Error(), "src/sub/foo.cpp")
}

func TestClosureIgnoresNonLocalIncludes(t *testing.T) {
	scan := mapScanner{
		"src/main.cpp":     {"util.h", "stdio.h"},
		"include/util.h":   {"vector", "helper.h"},
		"include/helper.h": nil,
		"include/unused.h": nil,
	}
	r := newResolver(scan, []string{"src/main.cpp"}, []string{"helper.h", "unused.h", "util.h"})

	deps, err := r.All("build/main.o")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"build",
		filepath.Join("include", "util.h"),
		filepath.Join("include", "helper.h"),
		"src/main.cpp",
	}, deps)
}

func TestClosureTerminatesOnCycles(t *testing.T) {
	scan := mapScanner{
		"src/main.c":  {"a.h"},
		"include/a.h": {"b.h", "a.h"},
		"include/b.h": {"a.h"},
	}
	r := newResolver(scan, []string{"src/main.c"}, []string{"a.h", "b.h"})

	u, err := r.Resolve("build/main.o")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join("include", "a.h"), filepath.Join("include", "b.h")}, u.Headers)
	assert.Equal(t, "src/main.c", u.Source)
}

func TestClosureDeduplicatesDiamonds(t *testing.T) {
	scan := mapScanner{
		"src/main.c":      {"left.h", "right.h", "left.h"},
		"include/left.h":  {"base.h"},
		"include/right.h": {"base.h"},
		"include/base.h":  nil,
	}
	r := newResolver(scan, []string{"src/main.c"}, []string{"base.h", "left.h", "right.h"})

	headers, err := r.Closure("src/main.c")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join("include", "left.h"),
		filepath.Join("include", "right.h"),
		filepath.Join("include", "base.h"),
	}, headers)
}

func TestNoLocalIncludes(t *testing.T) {
	scan := mapScanner{"src/main.c": {"stdio.h"}}
	r := newResolver(scan, []string{"src/main.c"}, []string{"util.h"})

	deps, err := r.All("build/main.o")
	require.NoError(t, err)
	assert.Equal(t, []string{"build", "src/main.c"}, deps)
}

func TestLocalIncludesMatchesByPathNotSubstring(t *testing.T) {
	scan := mapScanner{"src/main.c": {"sub/util.h", "util.h.in", "./config.h"}}
	r := newResolver(scan, []string{"src/main.c"}, []string{"config.h", "util.h"})

	local, err := r.LocalIncludes("src/main.c")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join("include", "config.h")}, local)
}

func TestUnreadableHeaderFailsResolution(t *testing.T) {
	scan := mapScanner{"src/main.c": {"gone.h"}}
	r := newResolver(scan, []string{"src/main.c"}, []string{"gone.h"})

	_, err := r.All("build/main.o")
	require.Error(t, err)
	assert.Contains(t, err.Error(), filepath.Join("include", "gone.h"))
}

func TestResolveOnDisk(t *testing.T) {
	root := t.TempDir()
	write := func(rel, content string) {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	write("src/main.cpp", "#include \"util.h\"\nint main() {}\n")
	write("include/util.h", "#include <vector>\n#include \"helper.h\"\n")
	write("include/helper.h", "")

	src := filepath.Join(root, "src", "main.cpp")
	headerDir := filepath.Join(root, "include")
	buildDir := filepath.Join(root, "build")
	r := NewResolver(tool.NewCompiler(tool.GXX), Project{
		Sources:    []string{src},
		Headers:    []string{"helper.h", "util.h"},
		HeaderDir:  headerDir,
		ObjectDirs: []string{buildDir},
		ObjectFor:  func(string) string { return filepath.Join(buildDir, "main.o") },
	})

	deps, err := r.All(filepath.Join(buildDir, "main.o"))
	require.NoError(t, err)
	assert.Equal(t, []string{
		buildDir,
		filepath.Join(headerDir, "util.h"),
		filepath.Join(headerDir, "helper.h"),
		src,
	}, deps)
}
