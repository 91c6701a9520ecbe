package toolchain

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/qobs-build/qide/internal/deps"
	"github.com/qobs-build/qide/internal/layout"
	"github.com/qobs-build/qide/internal/msg"
	"github.com/qobs-build/qide/internal/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeProject(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	return root
}

func newGXX(t *testing.T, root string) *Toolchain {
	t.Helper()
	tc := New()
	require.NoError(t, tc.SetWorkingDirectory(root))
	require.NoError(t, tc.SetCompiler(tool.NewCompiler(tool.GXX)))
	require.NoError(t, tc.SetLinker(tool.NewLinker(tool.GXX)))
	require.NoError(t, tc.SetArchiver(tool.NewAr()))
	return tc
}

func quiet(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	old := msg.Out
	msg.Out = &buf
	t.Cleanup(func() { msg.Out = old })
	return &buf
}

func TestDependenciesForEndToEnd(t *testing.T) {
	root := writeProject(t, map[string]string{
		"src/main.cpp":     "#include \"util.h\"\nint main() { return 0; }\n",
		"include/util.h":   "#include <vector>\n#include \"helper.h\"\n",
		"include/helper.h": "",
	})
	tc := newGXX(t, root)

	got, err := tc.DependenciesFor(filepath.Join(root, "build", "main.o"))
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, "build"),
		filepath.Join(root, "include", "util.h"),
		filepath.Join(root, "include", "helper.h"),
		filepath.Join(root, "src", "main.cpp"),
	}, got)
}

func TestDependenciesForRelativeLayout(t *testing.T) {
	root := writeProject(t, map[string]string{
		"src/main.c": "#include <stdio.h>\n",
	})
	t.Chdir(root)

	tc := New()
	require.NoError(t, tc.SetCompiler(tool.NewCompiler(tool.GCC)))

	got, err := tc.DependenciesFor("build/main.o")
	require.NoError(t, err)
	assert.Equal(t, []string{"build", filepath.Join("src", "main.c")}, got)
}

func TestObjectFilesBijection(t *testing.T) {
	root := writeProject(t, map[string]string{
		"src/main.cpp":        "",
		"src/net/socket.cc":   "",
		"src/net/tls/tls.cxx": "",
		"src/legacy.c":        "",
		"src/README.md":       "",
	})
	tc := newGXX(t, root)

	sources, err := tc.SourceFiles()
	require.NoError(t, err)
	objects, err := tc.ObjectFiles()
	require.NoError(t, err)
	require.Len(t, objects, len(sources))

	build := filepath.Join(root, "build")
	assert.Equal(t, []string{
		filepath.Join(build, "legacy.o"),
		filepath.Join(build, "main.o"),
		filepath.Join(build, "net", "socket.o"),
		filepath.Join(build, "net", "tls", "tls.o"),
	}, objects)

	r, err := tc.Resolver()
	require.NoError(t, err)
	for i, obj := range objects {
		src, err := r.SourceFor(obj)
		require.NoError(t, err)
		assert.Equal(t, sources[i], src)
	}
}

func TestObjectDirectoryStructure(t *testing.T) {
	root := writeProject(t, map[string]string{
		"src/main.c":     "",
		"src/a/x.c":      "",
		"src/a/b/y.c":    "",
		"include/util.h": "",
	})
	tc := newGXX(t, root)

	dirs, err := tc.ObjectDirectoryStructure()
	require.NoError(t, err)
	build := filepath.Join(root, "build")
	assert.Equal(t, []string{filepath.Join(build, "a"), filepath.Join(build, "a", "b")}, dirs)

	got, err := tc.DependenciesFor(filepath.Join(build, "a", "x.o"))
	require.NoError(t, err)
	assert.Equal(t, []string{
		build,
		filepath.Join(build, "a"),
		filepath.Join(build, "a", "b"),
		filepath.Join(root, "src", "a", "x.c"),
	}, got)
}

func TestFlattenConflict(t *testing.T) {
	root := writeProject(t, map[string]string{
		"src/foo.cpp":     "",
		"src/sub/foo.cpp": "",
		"src/bar.cpp":     "",
	})
	tc := newGXX(t, root)
	tc.SetFlatten(true)

	_, err := tc.DependenciesFor(filepath.Join(root, "build", "foo.o"))
	assert.ErrorIs(t, err, deps.ErrConflictingSources)

	got, err := tc.DependenciesFor(filepath.Join(root, "build", "bar.o"))
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "build"), filepath.Join(root, "src", "bar.cpp")}, got)

	dirs, err := tc.ObjectDirectoryStructure()
	require.NoError(t, err)
	assert.Empty(t, dirs)
}

func TestDependenciesForMissingSource(t *testing.T) {
	root := writeProject(t, map[string]string{"src/main.c": ""})
	tc := newGXX(t, root)

	_, err := tc.DependenciesFor(filepath.Join(root, "build", "other.o"))
	assert.ErrorIs(t, err, deps.ErrNoSource)
}

func TestSetWorkingDirectory(t *testing.T) {
	tc := New()
	assert.NoError(t, tc.SetWorkingDirectory(""))
	assert.NoError(t, tc.SetWorkingDirectory(t.TempDir()))

	err := tc.SetWorkingDirectory(filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, ErrInvalidDirectory)

	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	assert.ErrorIs(t, tc.SetWorkingDirectory(file), ErrInvalidDirectory)
}

func TestSetTarget(t *testing.T) {
	quiet(t)
	tc := newGXX(t, t.TempDir())
	tc.SetDefaultTarget("debug")
	tc.SetAvailableTargets("debug", "release")
	assert.False(t, tc.Configured())
	assert.Equal(t, "debug", tc.Target())

	act, err := tc.SetTarget("release")
	require.NoError(t, err)
	assert.Equal(t, Activation{Previous: "debug", Active: "release", Changed: true}, act)
	for _, tl := range []tool.Tool{tc.Compiler(), tc.Linker(), tc.Archiver()} {
		assert.Equal(t, "release", tl.Target())
	}
	assert.True(t, tc.Configured())
}

func TestSetTargetUnavailable(t *testing.T) {
	out := quiet(t)
	tc := newGXX(t, t.TempDir())
	tc.SetDefaultTarget("debug")
	tc.SetAvailableTargets("debug", "release")
	_, err := tc.SetTarget("release")
	require.NoError(t, err)

	act, err := tc.SetTarget("profile")
	assert.ErrorIs(t, err, ErrUnavailableTarget)
	assert.False(t, act.Changed)
	assert.Equal(t, "release", tc.Target())
	assert.Equal(t, "release", tc.Compiler().Target())
	assert.Contains(t, out.String(), `"profile"`)

	// the default target is always available
	tc.SetAvailableTargets("release")
	_, err = tc.SetTarget("debug")
	assert.NoError(t, err)
	assert.Equal(t, []string{"debug", "release"}, tc.AvailableTargets())
}

func TestSetTargetWithoutRestrictions(t *testing.T) {
	tc := New()
	act, err := tc.SetTarget("anything")
	require.NoError(t, err)
	assert.Equal(t, "anything", act.Active)
}

func TestTargetHooks(t *testing.T) {
	tc := newGXX(t, t.TempDir())
	calls := map[string]int{}
	tc.DeclareTargetHook("release", func(*Toolchain) error {
		calls["first"]++
		return nil
	})
	tc.DeclareTargetHook("release", func(tc *Toolchain) error {
		calls["release"]++
		tc.Compiler().AddTargetOptions("release", "-O3")
		return nil
	})

	_, err := tc.SetTarget("release")
	require.NoError(t, err)
	_, err = tc.SetTarget("release")
	require.NoError(t, err)

	assert.Equal(t, map[string]int{"release": 1}, calls)
	assert.Equal(t, []string{"-O3"}, tc.Compiler().Options())

	_, err = tc.SetTarget("debug")
	require.NoError(t, err)
	assert.Empty(t, tc.Compiler().Options())
	_, err = tc.SetTarget("release")
	require.NoError(t, err)
	assert.Equal(t, 2, calls["release"])
}

func TestTargetHookError(t *testing.T) {
	tc := New()
	boom := errors.New("boom")
	tc.DeclareTargetHook("debug", func(*Toolchain) error { return boom })

	act, err := tc.SetTarget("debug")
	assert.ErrorIs(t, err, boom)
	assert.True(t, act.Changed)
}

func TestSetToolOptionBroadcastAndReplay(t *testing.T) {
	tc := New()
	err := tc.SetToolOption(
		tool.Setting{Key: tool.OptOptions, Value: []string{"-Wall"}},
		tool.Setting{Key: tool.OptLibraries, Value: []string{"m"}},
		tool.Setting{Key: "not-an-option", Value: 1},
	)
	require.NoError(t, err)

	// tools bound afterwards still see the settings
	require.NoError(t, tc.SetCompiler(tool.NewCompiler(tool.GCC)))
	require.NoError(t, tc.SetLinker(tool.NewLinker(tool.GCC)))
	require.NoError(t, tc.SetArchiver(tool.NewAr()))

	assert.Equal(t, []string{"-Wall"}, tc.Compiler().Options())
	assert.Equal(t, []string{"-Wall"}, tc.Linker().Options())
	assert.Equal(t, []string{"m"}, tc.Linker().Libraries())
	assert.Equal(t, []string{"rvs"}, tc.Archiver().Options())

	err = tc.SetToolOption(tool.Setting{Key: tool.OptMultiThreaded, Value: "on"})
	assert.Error(t, err)
}

func TestCommands(t *testing.T) {
	root := writeProject(t, map[string]string{
		"src/main.c": "",
		"src/util.c": "",
	})
	tc := New()
	require.NoError(t, tc.SetWorkingDirectory(root))
	require.NoError(t, tc.SetCompiler(tool.NewCompiler(tool.GCC)))
	require.NoError(t, tc.SetLinker(tool.NewLinker(tool.GCC)))
	require.NoError(t, tc.SetArchiver(tool.NewAr()))
	require.NoError(t, tc.SetToolOption(tool.Setting{Key: tool.OptOptions, Value: "-Wall"}))
	tc.SetExecutableName("hello")
	_, err := tc.SetTarget("debug")
	require.NoError(t, err)

	include := filepath.Join(root, "include")
	src := filepath.Join(root, "src", "main.c")
	obj := filepath.Join(root, "build", "main.o")

	argv, err := tc.CompileCommand(src, obj)
	require.NoError(t, err)
	assert.Equal(t, []string{"gcc", "-Wall", "-I" + include, "-c", src, "-o", obj}, argv)

	// repeated rendering does not grow the search paths
	again, err := tc.CompileCommand(src, obj)
	require.NoError(t, err)
	assert.Equal(t, argv, again)

	exe := filepath.Join(root, "bin", "debug", "hello")
	assert.Equal(t, exe, tc.ExecPath())
	argv, err = tc.LinkCommand()
	require.NoError(t, err)
	assert.Equal(t, []string{
		"gcc", "-Wall", "-L" + filepath.Join(root, "lib"), "-o", exe,
		obj, filepath.Join(root, "build", "util.o"),
	}, argv)

	argv, err = tc.ArchiveCommand("hello")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"ar", "rvs", filepath.Join(root, "lib", "libhello.a"),
		obj, filepath.Join(root, "build", "util.o"),
	}, argv)
}

func TestUnboundToolchain(t *testing.T) {
	tc := New()
	_, err := tc.CompileCommand("main.c", "")
	assert.ErrorIs(t, err, tool.ErrNoFamily)
	_, err = tc.ObjectFiles()
	assert.ErrorIs(t, err, tool.ErrNoFamily)
	_, err = tc.DependenciesFor("build/main.o")
	assert.ErrorIs(t, err, tool.ErrNoFamily)
}

func TestRebindingCompilerInvalidatesListings(t *testing.T) {
	root := writeProject(t, map[string]string{
		"src/a.c":   "",
		"src/b.cpp": "",
	})
	tc := New()
	require.NoError(t, tc.SetWorkingDirectory(root))
	require.NoError(t, tc.SetCompiler(tool.NewCompiler(tool.GCC)))

	sources, err := tc.SourceFiles()
	require.NoError(t, err)
	assert.Len(t, sources, 1)

	require.NoError(t, tc.SetCompiler(tool.NewCompiler(tool.GXX)))
	sources, err = tc.SourceFiles()
	require.NoError(t, err)
	assert.Len(t, sources, 2)
}

func TestDirectoriesFollowTarget(t *testing.T) {
	tc := New()
	tc.SetDirectory(layout.Binary, "out")
	_, err := tc.SetTarget("debug")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("out", "debug"), tc.BinaryDir())

	tc.SetTargetPrefix(false)
	assert.Equal(t, "out", tc.BinaryDir())
	assert.Equal(t, "lib", tc.LibraryDir())
}
