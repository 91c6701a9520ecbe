// Package layout maps the logical directories of a native project (headers,
// sources, objects, binaries, libraries) onto paths and lists the files
// inside them.
package layout

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"slices"

	"github.com/bmatcuk/doublestar/v4"
)

type Kind int

const (
	Header Kind = iota
	Source
	Build
	Binary
	Library
)

var kindNames = [...]string{"header", "source", "build", "binary", "library"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind maps a directory name as written in Qide.toml to a Kind.
func ParseKind(s string) (Kind, bool) {
	for i, name := range kindNames {
		if name == s {
			return Kind(i), true
		}
	}
	return 0, false
}

// Defaults are the conventional directory names.
var Defaults = [...]string{
	Header:  "include",
	Source:  "src",
	Build:   "build",
	Binary:  "bin",
	Library: "lib",
}

// Resolve joins workingDir with the directory attribute. An empty attribute
// stands for ".". Binary directories get the target name appended when
// prefix is set.
func Resolve(kind Kind, workingDir, attr, target string, prefix bool) string {
	if attr == "" {
		attr = "."
	}
	elems := []string{attr}
	if workingDir != "" {
		elems = []string{workingDir, attr}
	}
	if kind == Binary && prefix && target != "" {
		elems = append(elems, target)
	}
	return filepath.Join(elems...)
}

// Layout holds directory configuration and memoised file listings. The
// listings are dropped by every setter.
type Layout struct {
	workingDir   string
	dirs         [len(kindNames)]string
	targetPrefix bool

	sources *listing
	headers *listing
}

type listing struct {
	pattern string
	files   []string
}

func New() *Layout {
	return &Layout{
		dirs:         Defaults,
		targetPrefix: true,
	}
}

func (l *Layout) WorkingDirectory() string { return l.workingDir }

func (l *Layout) SetWorkingDirectory(dir string) {
	l.workingDir = dir
	l.Invalidate()
}

// Attr returns the raw configured name of a directory.
func (l *Layout) Attr(kind Kind) string { return l.dirs[kind] }

func (l *Layout) SetDirectory(kind Kind, name string) {
	l.dirs[kind] = name
	l.Invalidate()
}

func (l *Layout) TargetPrefix() bool { return l.targetPrefix }

func (l *Layout) SetTargetPrefix(enabled bool) {
	l.targetPrefix = enabled
	l.Invalidate()
}

// Invalidate drops memoised source and header listings.
func (l *Layout) Invalidate() {
	l.sources = nil
	l.headers = nil
}

// Dir resolves a directory kind for the given target.
func (l *Layout) Dir(kind Kind, target string) string {
	return Resolve(kind, l.workingDir, l.dirs[kind], target, l.targetPrefix)
}

// SourceFiles lists files below the source directory whose base name
// matches pattern. Paths include the source directory.
func (l *Layout) SourceFiles(pattern *regexp.Regexp) ([]string, error) {
	if l.sources != nil && l.sources.pattern == pattern.String() {
		return l.sources.files, nil
	}
	dir := l.Dir(Source, "")
	rel, err := listFiles(dir, pattern)
	if err != nil {
		return nil, fmt.Errorf("listing sources in %s: %w", dir, err)
	}
	files := make([]string, len(rel))
	for i, r := range rel {
		files[i] = filepath.Join(dir, filepath.FromSlash(r))
	}
	l.sources = &listing{pattern: pattern.String(), files: files}
	return files, nil
}

// HeaderFiles lists files below the header directory whose base name
// matches pattern. Paths are slash-separated and relative to the header
// directory, the form they take in include directives.
func (l *Layout) HeaderFiles(pattern *regexp.Regexp) ([]string, error) {
	if l.headers != nil && l.headers.pattern == pattern.String() {
		return l.headers.files, nil
	}
	dir := l.Dir(Header, "")
	files, err := listFiles(dir, pattern)
	if err != nil {
		return nil, fmt.Errorf("listing headers in %s: %w", dir, err)
	}
	l.headers = &listing{pattern: pattern.String(), files: files}
	return files, nil
}

func listFiles(dir string, pattern *regexp.Regexp) ([]string, error) {
	if !isDir(dir) {
		return nil, nil
	}
	matches, err := doublestar.Glob(os.DirFS(dir), "**", doublestar.WithFilesOnly())
	if err != nil {
		return nil, err
	}
	var files []string
	for _, m := range matches {
		if pattern.MatchString(path.Base(m)) {
			files = append(files, m)
		}
	}
	slices.Sort(files)
	return files, nil
}

// DirectoryStructure returns root and every directory below it, sorted.
// A missing root yields just the root itself.
func DirectoryStructure(root string) ([]string, error) {
	dirs := []string{filepath.Clean(root)}
	if !isDir(root) {
		return dirs, nil
	}
	var sub []string
	err := doublestar.GlobWalk(os.DirFS(root), "**", func(p string, d fs.DirEntry) error {
		if d.IsDir() && p != "." {
			sub = append(sub, filepath.Join(root, filepath.FromSlash(p)))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}
	slices.Sort(sub)
	return append(dirs, sub...), nil
}

func isDir(p string) bool {
	stat, err := os.Stat(p)
	return err == nil && stat.IsDir()
}
