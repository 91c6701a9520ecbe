// Package tool renders argument vectors for compilers, linkers and archive
// managers. Concrete tool families (gcc, g++, ar) are embedded into the
// per-kind tool types; the rest of qide only sees the interfaces below.
package tool

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
)

var ErrNoFamily = errors.New("no tool family bound")

type Kind int

const (
	KindCompiler Kind = iota
	KindLinker
	KindArchiver
)

func (k Kind) String() string {
	switch k {
	case KindCompiler:
		return "compiler"
	case KindLinker:
		return "linker"
	case KindArchiver:
		return "archive manager"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Option names a setting that may be broadcast to every tool. A tool that
// has no such setting ignores it.
type Option string

const (
	OptOptions         Option = "options"
	OptPaths           Option = "paths"
	OptMultiThreaded   Option = "multi-threaded"
	OptExecutable      Option = "executable"
	OptObjectExtension Option = "object-extension"
	OptLibraries       Option = "libraries"
)

// Setting is one option assignment.
type Setting struct {
	Key   Option
	Value any
}

type Tool interface {
	Kind() Kind
	Name() string
	Options() []string
	Paths() []string
	AddPath(paths ...string)
	AddTargetOptions(target string, opts ...string)
	Target() string
	SetTarget(name string)
	// SetOption reports whether key applies to this tool. Unknown keys are
	// ignored without error.
	SetOption(key Option, value any) (bool, error)
}

type Compiler interface {
	Tool
	Compile(file, out string) ([]string, error)
	ScanIncludes(file string) ([]string, error)
	SourcePattern() (*regexp.Regexp, error)
	HeaderPattern() (*regexp.Regexp, error)
	ObjectExtension() string
}

type Linker interface {
	Tool
	Link(objects []string, out string) ([]string, error)
	Libraries() []string
}

type Archiver interface {
	Tool
	Archive(files []string, name string) ([]string, error)
}

// Base carries the state every tool kind shares.
type Base struct {
	kind          Kind
	name          string
	options       []string
	paths         PathSet
	target        string
	targetOptions map[string][]string
}

func (b *Base) Kind() Kind      { return b.kind }
func (b *Base) Name() string    { return b.name }
func (b *Base) Paths() []string { return b.paths.Slice() }
func (b *Base) Target() string  { return b.target }

// SetTarget mirrors the toolchain's active target.
func (b *Base) SetTarget(name string) {
	b.target = name
}

func (b *Base) AddPath(paths ...string) {
	b.paths.Add(paths...)
}

// Options returns the common options followed by those registered for the
// active target.
func (b *Base) Options() []string {
	opts := slices.Clone(b.options)
	return append(opts, b.targetOptions[b.target]...)
}

func (b *Base) AddTargetOptions(target string, opts ...string) {
	if b.targetOptions == nil {
		b.targetOptions = make(map[string][]string)
	}
	b.targetOptions[target] = append(b.targetOptions[target], opts...)
}

// SetMultiThreaded adds or removes -pthread.
func (b *Base) SetMultiThreaded(enabled bool) {
	const flag = "-pthread"
	if !enabled {
		b.options = slices.DeleteFunc(b.options, func(o string) bool { return o == flag })
		return
	}
	if !slices.Contains(b.options, flag) {
		b.options = append(b.options, flag)
	}
}

// setOption handles the keys shared by all kinds.
func (b *Base) setOption(key Option, value any) (bool, error) {
	switch key {
	case OptOptions:
		opts, err := stringList(key, value)
		if err != nil {
			return true, err
		}
		b.options = append(b.options, opts...)
	case OptPaths:
		paths, err := stringList(key, value)
		if err != nil {
			return true, err
		}
		b.paths.Add(paths...)
	case OptMultiThreaded:
		v, ok := value.(bool)
		if !ok {
			return true, typeError(key, "bool", value)
		}
		b.SetMultiThreaded(v)
	case OptExecutable:
		v, ok := value.(string)
		if !ok {
			return true, typeError(key, "string", value)
		}
		b.name = v
	default:
		return false, nil
	}
	return true, nil
}

func typeError(key Option, want string, got any) error {
	return fmt.Errorf("option %q: expected %s, got %T", key, want, got)
}

// stringList accepts a single string or a list of strings, the shapes a
// TOML decoder produces.
func stringList(key Option, value any) ([]string, error) {
	switch v := value.(type) {
	case string:
		return []string{v}, nil
	case []string:
		return v, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, typeError(key, "list of strings", value)
			}
			out = append(out, s)
		}
		return out, nil
	}
	return nil, typeError(key, "string or list of strings", value)
}

func prefixed(prefix string, items []string) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = prefix + item
	}
	return out
}
