package builder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/qobs-build/qide/internal/builder/gen"
	"github.com/qobs-build/qide/internal/deps"
	"github.com/qobs-build/qide/internal/layout"
	"github.com/qobs-build/qide/internal/msg"
	"github.com/qobs-build/qide/internal/tool"
	"github.com/qobs-build/qide/internal/toolchain"
	"golang.org/x/sync/errgroup"
)

var (
	errCantRunLib = errors.New("can't run a library project (project.lib is true)")
)

const (
	GeneratorQide   = "qide"
	GeneratorNinja  = "ninja"
	GeneratorCompdb = "compdb"
)

// Options are the command line overrides for one build.
type Options struct {
	// Target to activate; empty means the project's default target.
	Target string
	// Family overrides project.family.
	Family string
	// Jobs limits parallel compiles; zero means one per CPU.
	Jobs int
}

type Builder struct {
	cfg     *Config
	basedir string
	env     ConfigEnv
	tc      *toolchain.Toolchain
	opts    Options
}

func NewBuilderInDirectory(path string, opts Options) (*Builder, error) {
	var err error
	path, err = filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	configPath := filepath.Join(path, ConfigFilename)
	env := NewConfigEnv(path, opts.Target)
	cfg, err := ParseConfigFromFile(configPath, env)
	if err != nil {
		return nil, err
	}

	// reparse so that templates see the target that will actually be active
	if opts.Target == "" && cfg.Project.DefaultTarget != "" {
		env = NewConfigEnv(path, cfg.Project.DefaultTarget)
		if cfg, err = ParseConfigFromFile(configPath, env); err != nil {
			return nil, err
		}
	}

	b := &Builder{cfg: cfg, basedir: path, env: env, opts: opts}
	if b.tc, err = b.configure(); err != nil {
		return nil, err
	}
	return b, nil
}

// configure builds the toolchain described by the config and activates the
// requested target.
func (b *Builder) configure() (*toolchain.Toolchain, error) {
	cfg := b.cfg
	tc := toolchain.New()

	if err := tc.SetWorkingDirectory(b.basedir); err != nil {
		return nil, err
	}
	cfg.Directories.each(func(kind layout.Kind, name string) {
		tc.SetDirectory(kind, name)
	})
	prefix, err := cfg.Project.targetPrefix()
	if err != nil {
		return nil, err
	}
	tc.SetTargetPrefix(prefix)
	tc.SetFlatten(cfg.Project.flatten())
	tc.SetExecutableName(cfg.Project.Name)

	if cfg.Project.DefaultTarget != "" {
		tc.SetDefaultTarget(cfg.Project.DefaultTarget)
	}
	tc.SetAvailableTargets(cfg.Targets()...)

	familyName := cfg.Project.Family
	if b.opts.Family != "" {
		familyName = b.opts.Family
	}
	family, err := selectFamily(familyName, tc.SourceDir())
	if err != nil {
		return nil, err
	}
	if err := tc.SetToolOption(cfg.Options.Settings()...); err != nil {
		return nil, fmt.Errorf("[options]: %w", err)
	}
	if err := bindFamily(tc, family); err != nil {
		return nil, err
	}

	for _, section := range []struct {
		name     string
		settings []tool.Setting
		t        tool.Tool
	}{
		{"compiler", cfg.Compiler.Settings(), tc.Compiler()},
		{"linker", cfg.Linker.Settings(), tc.Linker()},
		{"archiver", cfg.Archiver.Settings(), tc.Archiver()},
	} {
		for _, s := range section.settings {
			applied, err := section.t.SetOption(s.Key, s.Value)
			if err != nil {
				return nil, fmt.Errorf("[%s]: %w", section.name, err)
			}
			if !applied {
				msg.Warn("[%s] has no option %q", section.name, s.Key)
			}
		}
	}

	for name, target := range cfg.Target {
		tc.Compiler().AddTargetOptions(name, target.CompilerFlags()...)
		tc.Linker().AddTargetOptions(name, target.LinkerOptions...)
		if target.Hook != "" {
			env := b.env
			env.Target = name
			tc.DeclareTargetHook(name, func(*toolchain.Toolchain) error {
				return target.RunHook(name, env)
			})
		}
	}

	name := b.opts.Target
	if name == "" {
		name = tc.DefaultTarget()
	}
	if _, err := tc.SetTarget(name); err != nil {
		return nil, err
	}
	return tc, nil
}

// Toolchain exposes the configured toolchain.
func (b *Builder) Toolchain() *toolchain.Toolchain { return b.tc }

func (b *Builder) Config() *Config { return b.cfg }

func createGenerator(generator string) gen.Generator {
	switch generator {
	case GeneratorNinja:
		return &gen.NinjaGen{}
	case GeneratorQide:
		return gen.NewQideBuilder()
	case GeneratorCompdb:
		return &gen.CompdbGen{}
	default:
		panic("createGenerator: unreachable")
	}
}

// outputPath is the executable, or the archive for library projects.
func (b *Builder) outputPath() string {
	if b.cfg.Project.IsLib() {
		return b.tc.ArchivePath(b.cfg.Project.Name)
	}
	return b.tc.ExecPath()
}

// Plan resolves every object and renders all commands. Rendering happens
// here, on one goroutine, so generators never touch the toolchain.
func (b *Builder) Plan(ctx context.Context) (*gen.Plan, error) {
	tc := b.tc
	objects, err := tc.ObjectFiles()
	if err != nil {
		return nil, err
	}
	if len(objects) == 0 {
		return nil, fmt.Errorf("no source files found in %s", tc.SourceDir())
	}
	resolver, err := tc.Resolver()
	if err != nil {
		return nil, err
	}
	structure, err := tc.ObjectDirectoryStructure()
	if err != nil {
		return nil, err
	}

	plan := &gen.Plan{
		Root:       b.basedir,
		ObjectDirs: append([]string{tc.BuildDir()}, structure...),
		Units:      make([]gen.Unit, len(objects)),
		Output:     b.outputPath(),
		Lib:        b.cfg.Project.IsLib(),
		Jobs:       b.opts.Jobs,
	}
	plan.OutputDir = filepath.Dir(plan.Output)

	// the resolver is read-only, so header scanning can fan out
	resolved := make([]*deps.Unit, len(objects))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(jobLimit(b.opts.Jobs))
	for i, obj := range objects {
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			unit, err := resolver.Resolve(obj)
			resolved[i] = unit
			return err
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	for i, unit := range resolved {
		obj := unit.Object
		cmd, err := tc.CompileCommand(unit.Source, obj)
		if err != nil {
			return nil, err
		}
		plan.Units[i] = gen.Unit{
			Source:        unit.Source,
			Object:        obj,
			Command:       cmd,
			Prerequisites: unit.Prerequisites(),
		}
	}

	if plan.Lib {
		plan.OutputCommand, err = tc.ArchiveCommand(b.cfg.Project.Name)
	} else {
		plan.OutputCommand, err = tc.LinkCommand()
	}
	if err != nil {
		return nil, err
	}
	return plan, nil
}

// Build plans the active target and then invokes the generator (or builder)
func (b *Builder) Build(ctx context.Context, generator string) error {
	plan, err := b.Plan(ctx)
	if err != nil {
		return err
	}

	buildDir := b.tc.BuildDir()
	if err := os.MkdirAll(buildDir, 0755); err != nil {
		return err
	}

	g := createGenerator(generator)
	out, err := g.Generate(plan)
	if err != nil {
		return err
	}
	if out != "" {
		buildFile := filepath.Join(buildDir, g.BuildFile())
		if err = os.WriteFile(buildFile, []byte(out), 0644); err != nil {
			return err
		}
		msg.Info("wrote %s", buildFile)
	}

	return g.Invoke(ctx, plan, buildDir)
}

// jobLimit is the errgroup limit for jobs; zero or less means one per CPU.
func jobLimit(jobs int) int {
	if jobs <= 0 {
		return runtime.NumCPU()
	}
	return jobs
}

func (b *Builder) BuildAndRun(ctx context.Context, args []string, generator string) error {
	if b.cfg.Project.IsLib() {
		return errCantRunLib
	}

	if err := b.Build(ctx, generator); err != nil {
		return err
	}

	execPath := b.tc.ExecPath()
	if _, err := os.Stat(execPath); err != nil {
		return fmt.Errorf("the executable %s doesn't exist, build it first", execPath)
	}

	msg.Command(append([]string{execPath}, args...))
	cmd := exec.CommandContext(ctx, execPath, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Stdin = os.Stdin
	return cmd.Run()
}

// Clean removes every object file of the active target.
func (b *Builder) Clean() error {
	objects, err := b.tc.ObjectFiles()
	if err != nil {
		return err
	}
	return removeAll(objects)
}

// Purge cleans and also removes the executable or archive.
func (b *Builder) Purge() error {
	if err := b.Clean(); err != nil {
		return err
	}
	return removeAll([]string{b.outputPath()})
}

// removeAll deletes files, ignoring the ones already gone.
func removeAll(files []string) error {
	var errs []error
	for _, f := range files {
		if err := os.Remove(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		msg.Command([]string{"rm", "-f", f})
	}
	return errors.Join(errs...)
}

// Dependencies lists the prerequisites of one object file. A relative
// object is taken relative to the project directory.
func (b *Builder) Dependencies(object string) ([]string, error) {
	if !filepath.IsAbs(object) {
		object = filepath.Join(b.basedir, object)
	}
	return b.tc.DependenciesFor(object)
}

// Objects lists every object file of the active target.
func (b *Builder) Objects() ([]string, error) {
	return b.tc.ObjectFiles()
}

// Describe summarizes the active configuration for `qide info`.
func (b *Builder) Describe() string {
	tc := b.tc
	var sb strings.Builder
	fmt.Fprintf(&sb, "project:  %s\n", b.cfg.Project.Name)
	fmt.Fprintf(&sb, "target:   %s (available: %s)\n", tc.Target(), strings.Join(tc.AvailableTargets(), ", "))
	fmt.Fprintf(&sb, "compiler: %s %s\n", tc.Compiler().Name(), strings.Join(tc.Compiler().Options(), " "))
	fmt.Fprintf(&sb, "linker:   %s %s\n", tc.Linker().Name(), strings.Join(tc.Linker().Options(), " "))
	for _, kind := range []layout.Kind{layout.Header, layout.Source, layout.Build, layout.Binary, layout.Library} {
		fmt.Fprintf(&sb, "%-9s %s\n", kind.String()+":", tc.Layout().Dir(kind, tc.Target()))
	}
	fmt.Fprintf(&sb, "output:   %s\n", b.outputPath())
	return sb.String()
}
