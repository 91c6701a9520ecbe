// Package deps computes the prerequisites of an object file: the object
// directory tree, every project-local header the source reaches through
// include directives, and the source itself.
package deps

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

var (
	ErrNoSource           = errors.New("no corresponding source file")
	ErrConflictingSources = errors.New("conflicting source file names")
)

// Scanner lists the include targets of one file.
type Scanner interface {
	ScanIncludes(file string) ([]string, error)
}

// Project is the snapshot a Resolver works from.
type Project struct {
	Sources []string
	// Headers are relative to HeaderDir and slash-separated.
	Headers   []string
	HeaderDir string
	// ObjectDirs is the mirrored build tree, build root included.
	ObjectDirs []string
	ObjectFor  func(source string) string
}

// Resolver is read-only after construction, so one instance may serve many
// goroutines.
type Resolver struct {
	scanner    Scanner
	headerDir  string
	headers    map[string]struct{}
	objectDirs []string
	objects    map[string][]string // object -> sources mapping to it
}

func NewResolver(scanner Scanner, p Project) *Resolver {
	r := &Resolver{
		scanner:    scanner,
		headerDir:  p.HeaderDir,
		headers:    make(map[string]struct{}, len(p.Headers)),
		objectDirs: p.ObjectDirs,
		objects:    make(map[string][]string, len(p.Sources)),
	}
	for _, h := range p.Headers {
		r.headers[h] = struct{}{}
	}
	for _, src := range p.Sources {
		obj := filepath.Clean(p.ObjectFor(src))
		r.objects[obj] = append(r.objects[obj], src)
	}
	return r
}

// Unit is a resolved translation unit.
type Unit struct {
	Object  string
	Source  string
	Headers []string
	Dirs    []string
}

// Prerequisites lists directories, then headers, then the source.
func (u *Unit) Prerequisites() []string {
	out := make([]string, 0, len(u.Dirs)+len(u.Headers)+1)
	out = append(out, u.Dirs...)
	out = append(out, u.Headers...)
	return append(out, u.Source)
}

// SourceFor maps an object path back to the one source that produces it.
func (r *Resolver) SourceFor(object string) (string, error) {
	sources := r.objects[filepath.Clean(object)]
	switch len(sources) {
	case 0:
		return "", fmt.Errorf("%w for %s", ErrNoSource, object)
	case 1:
		return sources[0], nil
	}
	return "", fmt.Errorf("%w for %s: %s", ErrConflictingSources, object, strings.Join(sources, ", "))
}

// LocalIncludes returns the includes of file that name a known project
// header, as paths under the header directory. Whether the directive used
// quotes or angle brackets does not matter.
func (r *Resolver) LocalIncludes(file string) ([]string, error) {
	includes, err := r.scanner.ScanIncludes(file)
	if err != nil {
		return nil, err
	}
	var local []string
	for _, inc := range includes {
		key := path.Clean(filepath.ToSlash(inc))
		if _, ok := r.headers[key]; ok {
			local = append(local, filepath.Join(r.headerDir, filepath.FromSlash(key)))
		}
	}
	return local, nil
}

// Closure returns every local header reachable from file, each once, in
// breadth-first discovery order. Headers already collected are never
// expanded again, which is what ends the walk on include cycles.
func (r *Resolver) Closure(file string) ([]string, error) {
	direct, err := r.LocalIncludes(file)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", file, err)
	}

	seen := make(map[string]bool)
	var all []string
	add := func(hs []string) []string {
		var fresh []string
		for _, h := range hs {
			if !seen[h] {
				seen[h] = true
				fresh = append(fresh, h)
			}
		}
		all = append(all, fresh...)
		return fresh
	}

	frontier := add(direct)
	for len(frontier) > 0 {
		var found []string
		for _, h := range frontier {
			includes, err := r.LocalIncludes(h)
			if err != nil {
				return nil, fmt.Errorf("scanning %s: %w", h, err)
			}
			found = append(found, includes...)
		}
		frontier = add(found)
	}
	return all, nil
}

// Resolve finds the source of object and its header closure.
func (r *Resolver) Resolve(object string) (*Unit, error) {
	src, err := r.SourceFor(object)
	if err != nil {
		return nil, err
	}
	headers, err := r.Closure(src)
	if err != nil {
		return nil, err
	}
	return &Unit{
		Object:  object,
		Source:  src,
		Headers: headers,
		Dirs:    r.objectDirs,
	}, nil
}

// All is Resolve flattened into a prerequisite list.
func (r *Resolver) All(object string) ([]string, error) {
	u, err := r.Resolve(object)
	if err != nil {
		return nil, err
	}
	return u.Prerequisites(), nil
}
