// Package toolchain binds a project layout, a compiler, a linker and an
// archive manager together with the build target system. It produces the
// object list, per-object prerequisites and command vectors a scheduler
// needs; it never decides what is stale.
package toolchain

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/qobs-build/qide/internal/layout"
	"github.com/qobs-build/qide/internal/tool"
)

var ErrInvalidDirectory = errors.New("invalid directory")

const DefaultExecutableName = "app"

// Toolchain is the configuration root of one build. Setters must not run
// concurrently with each other or with resolution; configure first, then
// hand the Resolver to workers.
type Toolchain struct {
	layout   *layout.Layout
	compiler tool.Compiler
	linker   tool.Linker
	archiver tool.Archiver

	defaultTarget string
	active        string // empty until the first activation
	available     []string
	hooks         map[string]Hook

	settings       []tool.Setting
	executableName string
	flatten        bool
}

func New() *Toolchain {
	return &Toolchain{
		layout:         layout.New(),
		compiler:       tool.NewUnboundCompiler(),
		linker:         tool.NewUnboundLinker(),
		archiver:       tool.NewUnboundArchiver(),
		defaultTarget:  DefaultTarget,
		hooks:          make(map[string]Hook),
		executableName: DefaultExecutableName,
	}
}

func (tc *Toolchain) Layout() *layout.Layout  { return tc.layout }
func (tc *Toolchain) Compiler() tool.Compiler { return tc.compiler }
func (tc *Toolchain) Linker() tool.Linker     { return tc.linker }
func (tc *Toolchain) Archiver() tool.Archiver { return tc.archiver }

func (tc *Toolchain) tools() []tool.Tool {
	return []tool.Tool{tc.compiler, tc.linker, tc.archiver}
}

// SetWorkingDirectory roots every directory at dir. An empty dir means the
// process working directory.
func (tc *Toolchain) SetWorkingDirectory(dir string) error {
	if dir != "" {
		stat, err := os.Stat(dir)
		if err != nil || !stat.IsDir() {
			return fmt.Errorf("%w: %s", ErrInvalidDirectory, dir)
		}
	}
	tc.layout.SetWorkingDirectory(dir)
	return nil
}

func (tc *Toolchain) SetDirectory(kind layout.Kind, name string) {
	tc.layout.SetDirectory(kind, name)
}

func (tc *Toolchain) SetTargetPrefix(enabled bool) {
	tc.layout.SetTargetPrefix(enabled)
}

// SetFlatten places every object directly in the build directory instead of
// mirroring the source tree.
func (tc *Toolchain) SetFlatten(enabled bool) {
	tc.flatten = enabled
}

func (tc *Toolchain) ExecutableName() string { return tc.executableName }

func (tc *Toolchain) SetExecutableName(name string) {
	tc.executableName = name
}

func (tc *Toolchain) SetCompiler(c tool.Compiler) error {
	tc.compiler = c
	tc.layout.Invalidate()
	return tc.bind(c)
}

func (tc *Toolchain) SetLinker(l tool.Linker) error {
	tc.linker = l
	return tc.bind(l)
}

func (tc *Toolchain) SetArchiver(a tool.Archiver) error {
	tc.archiver = a
	return tc.bind(a)
}

// bind brings a freshly bound tool up to date with the retained options and
// the active target.
func (tc *Toolchain) bind(t tool.Tool) error {
	t.SetTarget(tc.active)
	var errs []error
	for _, s := range tc.settings {
		if _, err := t.SetOption(s.Key, s.Value); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", t.Kind(), err))
		}
	}
	return errors.Join(errs...)
}

// SetToolOption broadcasts settings to every bound tool. Tools without a
// matching option ignore it. Settings are kept and replayed onto tools
// bound later.
func (tc *Toolchain) SetToolOption(settings ...tool.Setting) error {
	var errs []error
	for _, s := range settings {
		tc.settings = append(tc.settings, s)
		for _, t := range tc.tools() {
			if _, err := t.SetOption(s.Key, s.Value); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", t.Kind(), err))
			}
		}
	}
	return errors.Join(errs...)
}

func (tc *Toolchain) HeaderDir() string  { return tc.layout.Dir(layout.Header, tc.Target()) }
func (tc *Toolchain) SourceDir() string  { return tc.layout.Dir(layout.Source, tc.Target()) }
func (tc *Toolchain) BuildDir() string   { return tc.layout.Dir(layout.Build, tc.Target()) }
func (tc *Toolchain) BinaryDir() string  { return tc.layout.Dir(layout.Binary, tc.Target()) }
func (tc *Toolchain) LibraryDir() string { return tc.layout.Dir(layout.Library, tc.Target()) }

// ExecPath is where the linked executable goes.
func (tc *Toolchain) ExecPath() string {
	return filepath.Join(tc.BinaryDir(), tc.executableName)
}

// ArchivePath is where the static library called name goes.
func (tc *Toolchain) ArchivePath(name string) string {
	return filepath.Join(tc.LibraryDir(), "lib"+name+".a")
}

// CompileCommand renders the compiler invocation for one file. The header
// directory is merged into the compiler's search paths first.
func (tc *Toolchain) CompileCommand(file, out string) ([]string, error) {
	tc.compiler.AddPath(tc.HeaderDir())
	return tc.compiler.Compile(file, out)
}

// LinkCommand links every object file into ExecPath.
func (tc *Toolchain) LinkCommand() ([]string, error) {
	objects, err := tc.ObjectFiles()
	if err != nil {
		return nil, err
	}
	tc.linker.AddPath(tc.LibraryDir())
	return tc.linker.Link(objects, tc.ExecPath())
}

// ArchiveCommand packs every object file into ArchivePath(name).
func (tc *Toolchain) ArchiveCommand(name string) ([]string, error) {
	objects, err := tc.ObjectFiles()
	if err != nil {
		return nil, err
	}
	return tc.archiver.Archive(objects, tc.ArchivePath(name))
}
