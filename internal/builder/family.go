package builder

import (
	"path/filepath"

	"github.com/qobs-build/qide/internal/layout"
	"github.com/qobs-build/qide/internal/tool"
	"github.com/qobs-build/qide/internal/toolchain"
)

// selectFamily turns project.family into a tool family. "auto" (or nothing)
// probes CC/CXX and the PATH, picking a C++ driver when srcDir holds C++
// sources. Any other value is a compiler executable.
func selectFamily(name, srcDir string) (tool.Family, error) {
	if f, ok := tool.FamilyByName(name); ok {
		return f, nil
	}
	switch name {
	case "", "auto":
		return tool.DetectFamily(hasCxxSources(srcDir))
	}
	if tool.IsCxx(name) {
		return tool.GXX.WithExecutable(name), nil
	}
	return tool.GCC.WithExecutable(name), nil
}

func hasCxxSources(srcDir string) bool {
	l := layout.New()
	l.SetWorkingDirectory(srcDir)
	l.SetDirectory(layout.Source, "")
	files, err := l.SourceFiles(tool.GXX.Source)
	if err != nil {
		return false
	}
	for _, f := range files {
		if filepath.Ext(f) != ".c" {
			return true
		}
	}
	return false
}

// bindFamily binds a compiler, a linker and ar for f. The linker uses the
// same driver so that the C++ runtime gets linked in.
func bindFamily(tc *toolchain.Toolchain, f tool.Family) error {
	if err := tc.SetCompiler(tool.NewCompiler(f)); err != nil {
		return err
	}
	if err := tc.SetLinker(tool.NewLinker(f)); err != nil {
		return err
	}
	return tc.SetArchiver(tool.NewAr())
}
