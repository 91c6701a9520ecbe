package toolchain

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/qobs-build/qide/internal/deps"
	"github.com/qobs-build/qide/internal/layout"
)

func (tc *Toolchain) SourceFiles() ([]string, error) {
	pattern, err := tc.compiler.SourcePattern()
	if err != nil {
		return nil, fmt.Errorf("source files: %w", err)
	}
	return tc.layout.SourceFiles(pattern)
}

// HeaderFiles lists project headers relative to the header directory.
func (tc *Toolchain) HeaderFiles() ([]string, error) {
	pattern, err := tc.compiler.HeaderPattern()
	if err != nil {
		return nil, fmt.Errorf("header files: %w", err)
	}
	return tc.layout.HeaderFiles(pattern)
}

// objectMapper returns the source -> object path substitution for the
// current configuration.
func (tc *Toolchain) objectMapper() (func(string) string, error) {
	pattern, err := tc.compiler.SourcePattern()
	if err != nil {
		return nil, err
	}
	srcDir, buildDir := tc.SourceDir(), tc.BuildDir()
	ext := tc.compiler.ObjectExtension()
	flatten := tc.flatten

	return func(src string) string {
		rel, err := filepath.Rel(srcDir, src)
		if err != nil || strings.HasPrefix(rel, "..") {
			rel = filepath.Base(src)
		}
		if flatten {
			rel = filepath.Base(rel)
		}
		return filepath.Join(buildDir, pattern.ReplaceAllLiteralString(rel, ext))
	}, nil
}

// ObjectFor maps one source file to its object file.
func (tc *Toolchain) ObjectFor(src string) (string, error) {
	mapper, err := tc.objectMapper()
	if err != nil {
		return "", err
	}
	return mapper(src), nil
}

// ObjectFiles maps every source file to its object file, in source order.
func (tc *Toolchain) ObjectFiles() ([]string, error) {
	sources, err := tc.SourceFiles()
	if err != nil {
		return nil, err
	}
	mapper, err := tc.objectMapper()
	if err != nil {
		return nil, err
	}
	objects := make([]string, len(sources))
	for i, src := range sources {
		objects[i] = mapper(src)
	}
	return objects, nil
}

// objectTree mirrors the source directory tree under the build directory,
// build root first.
func (tc *Toolchain) objectTree() ([]string, error) {
	buildDir := filepath.Clean(tc.BuildDir())
	if tc.flatten {
		return []string{buildDir}, nil
	}
	srcDir := tc.SourceDir()
	dirs, err := layout.DirectoryStructure(srcDir)
	if err != nil {
		return nil, err
	}
	tree := make([]string, 0, len(dirs))
	for _, d := range dirs {
		rel, err := filepath.Rel(srcDir, d)
		if err != nil {
			return nil, err
		}
		tree = append(tree, filepath.Join(buildDir, rel))
	}
	return tree, nil
}

// ObjectDirectoryStructure lists the object directories that need creating,
// without the build root itself.
func (tc *Toolchain) ObjectDirectoryStructure() ([]string, error) {
	tree, err := tc.objectTree()
	if err != nil {
		return nil, err
	}
	return tree[1:], nil
}

// Resolver snapshots the current file lists into a read-only resolver that
// is safe to share between goroutines.
func (tc *Toolchain) Resolver() (*deps.Resolver, error) {
	sources, err := tc.SourceFiles()
	if err != nil {
		return nil, err
	}
	headers, err := tc.HeaderFiles()
	if err != nil {
		return nil, err
	}
	tree, err := tc.objectTree()
	if err != nil {
		return nil, err
	}
	mapper, err := tc.objectMapper()
	if err != nil {
		return nil, err
	}
	return deps.NewResolver(tc.compiler, deps.Project{
		Sources:    sources,
		Headers:    headers,
		HeaderDir:  tc.HeaderDir(),
		ObjectDirs: tree,
		ObjectFor:  mapper,
	}), nil
}

// DependenciesFor lists what must exist before object can be built:
// object directories, reachable local headers, then the source.
func (tc *Toolchain) DependenciesFor(object string) ([]string, error) {
	r, err := tc.Resolver()
	if err != nil {
		return nil, err
	}
	return r.All(object)
}
