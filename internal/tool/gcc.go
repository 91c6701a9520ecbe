package tool

import (
	"fmt"
	"regexp"
	"slices"
)

// Family describes a GCC-style toolset: its driver executable and the file
// name patterns it compiles.
type Family struct {
	Name   string
	Source *regexp.Regexp
	Header *regexp.Regexp
}

var (
	GCC = Family{
		Name:   "gcc",
		Source: regexp.MustCompile(`\.c$`),
		Header: regexp.MustCompile(`\.h$`),
	}
	GXX = Family{
		Name:   "g++",
		Source: regexp.MustCompile(`\.c((pp|xx)?|c)$`),
		Header: regexp.MustCompile(`\.(h(pp|xx|h)?|inl)$`),
	}
)

// FamilyByName looks up a built-in family.
func FamilyByName(name string) (Family, bool) {
	switch name {
	case GCC.Name:
		return GCC, true
	case GXX.Name:
		return GXX, true
	}
	return Family{}, false
}

// WithExecutable returns a copy of f that invokes exe.
func (f Family) WithExecutable(exe string) Family {
	f.Name = exe
	return f
}

const DefaultObjectExtension = ".o"

type GCCCompiler struct {
	Base
	family    Family
	objectExt string
}

func NewCompiler(f Family) *GCCCompiler {
	return &GCCCompiler{
		Base:      Base{kind: KindCompiler, name: f.Name},
		family:    f,
		objectExt: DefaultObjectExtension,
	}
}

// Compile renders `name options... -Ipath... -c file [-o out]`.
func (c *GCCCompiler) Compile(file, out string) ([]string, error) {
	argv := []string{c.name}
	argv = append(argv, c.Options()...)
	argv = append(argv, prefixed("-I", c.paths.Slice())...)
	argv = append(argv, "-c", file)
	if out != "" {
		argv = append(argv, "-o", out)
	}
	return argv, nil
}

func (c *GCCCompiler) ScanIncludes(file string) ([]string, error) {
	return ScanIncludes(file)
}

func (c *GCCCompiler) SourcePattern() (*regexp.Regexp, error) { return c.family.Source, nil }
func (c *GCCCompiler) HeaderPattern() (*regexp.Regexp, error) { return c.family.Header, nil }
func (c *GCCCompiler) ObjectExtension() string                { return c.objectExt }

func (c *GCCCompiler) SetOption(key Option, value any) (bool, error) {
	if key == OptObjectExtension {
		v, ok := value.(string)
		if !ok {
			return true, typeError(key, "string", value)
		}
		c.objectExt = v
		return true, nil
	}
	return c.setOption(key, value)
}

type GCCLinker struct {
	Base
	family    Family
	libraries []string
}

func NewLinker(f Family) *GCCLinker {
	return &GCCLinker{
		Base:   Base{kind: KindLinker, name: f.Name},
		family: f,
	}
}

// Link renders `name options... -Lpath... -o out objects... -llib...`.
func (l *GCCLinker) Link(objects []string, out string) ([]string, error) {
	argv := []string{l.name}
	argv = append(argv, l.Options()...)
	argv = append(argv, prefixed("-L", l.paths.Slice())...)
	argv = append(argv, "-o", out)
	argv = append(argv, objects...)
	argv = append(argv, prefixed("-l", l.libraries)...)
	return argv, nil
}

func (l *GCCLinker) Libraries() []string { return slices.Clone(l.libraries) }

func (l *GCCLinker) AddLibraries(libs ...string) {
	for _, lib := range libs {
		if !slices.Contains(l.libraries, lib) {
			l.libraries = append(l.libraries, lib)
		}
	}
}

func (l *GCCLinker) SetOption(key Option, value any) (bool, error) {
	if key == OptLibraries {
		libs, err := stringList(key, value)
		if err != nil {
			return true, err
		}
		l.AddLibraries(libs...)
		return true, nil
	}
	return l.setOption(key, value)
}

// Ar drives the `ar` archive manager.
type Ar struct {
	Base
}

func NewAr() *Ar {
	return &Ar{Base: Base{kind: KindArchiver, name: "ar", options: []string{"rvs"}}}
}

// Archive renders `ar rvs name files...`.
func (a *Ar) Archive(files []string, name string) ([]string, error) {
	if name == "" {
		return nil, fmt.Errorf("archive: empty archive name")
	}
	argv := []string{a.name}
	argv = append(argv, a.Options()...)
	argv = append(argv, name)
	argv = append(argv, files...)
	return argv, nil
}

// SetOption only honours the executable; compiler flags broadcast to every
// tool make no sense on an ar command line.
func (a *Ar) SetOption(key Option, value any) (bool, error) {
	if key != OptExecutable {
		return false, nil
	}
	return a.setOption(key, value)
}
