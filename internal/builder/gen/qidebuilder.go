package gen

import (
	"bufio"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/qobs-build/qide/internal/msg"
	"golang.org/x/sync/errgroup"
)

// BuildState records the command each output was last built with.
type BuildState struct {
	Objects map[string]string `json:"objects,omitempty"` // object -> command hash
	Output  string            `json:"output,omitempty"`  // link or archive command hash
}

// RunFunc executes one command vector.
type RunFunc func(ctx context.Context, argv []string) ([]byte, error)

type QideBuilder struct {
	// Run executes commands; tests replace it.
	Run RunFunc

	stateFile string
	state     BuildState
	mu        sync.Mutex // guards state and output
}

func NewQideBuilder() *QideBuilder {
	return &QideBuilder{Run: runCommand}
}

func (g *QideBuilder) BuildFile() string {
	return "qide_build_state.json"
}

func (g *QideBuilder) Generate(*Plan) (string, error) {
	return "", nil // no build file needed
}

// Invoke performs the actual build
func (g *QideBuilder) Invoke(ctx context.Context, plan *Plan, buildDir string) error {
	g.stateFile = filepath.Join(buildDir, g.BuildFile())
	if err := g.loadBuildState(); err != nil {
		msg.Warn("failed to load build state: %v", err)
	}

	dirs := append([]string{buildDir, plan.OutputDir}, plan.ObjectDirs...)
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	stale, err := g.staleUnits(ctx, plan)
	if err != nil {
		return fmt.Errorf("build planning failed: %w", err)
	}
	relink := len(stale) > 0 || g.outputStale(plan)

	if !relink {
		msg.Info("no work to do.")
		return nil
	}

	err = g.compile(ctx, stale, plan.Jobs)
	// forget the last link until this one succeeds
	g.mu.Lock()
	g.state.Output = ""
	g.mu.Unlock()
	if serr := g.saveBuildState(); serr != nil {
		msg.Warn("failed to save build state: %v", serr)
	}
	if err != nil {
		return fmt.Errorf("compilation failed: %w", err)
	}

	if err := g.link(ctx, plan); err != nil {
		return fmt.Errorf("linking failed: %w", err)
	}
	if err := g.saveBuildState(); err != nil {
		msg.Warn("failed to save build state: %v", err)
	}

	return nil
}

// staleUnits checks every unit concurrently and returns the stale ones in
// plan order.
func (g *QideBuilder) staleUnits(ctx context.Context, plan *Plan) ([]Unit, error) {
	dirty := make([]bool, len(plan.Units))

	eg, _ := errgroup.WithContext(ctx)
	eg.SetLimit(jobLimit(plan.Jobs))
	for i, unit := range plan.Units {
		eg.Go(func() error {
			isDirty, err := g.isUnitDirty(unit)
			if err != nil {
				return fmt.Errorf("could not check status of %s: %w", unit.Object, err)
			}
			dirty[i] = isDirty
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	var stale []Unit
	for i, unit := range plan.Units {
		if dirty[i] {
			stale = append(stale, unit)
		}
	}
	return stale, nil
}

// isUnitDirty reports whether an object is missing, older than any
// prerequisite file, or was built with a different command.
func (g *QideBuilder) isUnitDirty(unit Unit) (bool, error) {
	objStat, err := os.Stat(unit.Object)
	if errors.Is(err, os.ErrNotExist) {
		return true, nil
	} else if err != nil {
		return false, err
	}

	g.mu.Lock()
	prevHash := g.state.Objects[unit.Object]
	g.mu.Unlock()
	if prevHash != commandHash(unit.Command) {
		return true, nil
	}

	for _, prereq := range unit.Prerequisites {
		stat, err := os.Stat(prereq)
		if errors.Is(err, os.ErrNotExist) {
			if prereq == unit.Source {
				return false, fmt.Errorf("source file %s not found", prereq)
			}
			return true, nil
		} else if err != nil {
			return false, err
		}
		if stat.IsDir() {
			continue // directory mtimes change whenever a file is added
		}
		if stat.ModTime().After(objStat.ModTime()) {
			return true, nil
		}
	}
	return false, nil
}

// outputStale reports whether the output is missing, was produced by a
// different command, or is older than one of its objects.
func (g *QideBuilder) outputStale(plan *Plan) bool {
	outStat, err := os.Stat(plan.Output)
	if err != nil {
		return true
	}
	g.mu.Lock()
	prevHash := g.state.Output
	g.mu.Unlock()
	if prevHash != commandHash(plan.OutputCommand) {
		return true
	}
	for _, obj := range plan.Objects() {
		stat, err := os.Stat(obj)
		if err != nil || stat.ModTime().After(outStat.ModTime()) {
			return true
		}
	}
	return false
}

// compile runs the stale units in parallel
func (g *QideBuilder) compile(ctx context.Context, units []Unit, jobs int) error {
	if len(units) == 0 {
		return nil
	}

	var pb *msg.ProgressBar
	if !msg.Verbose {
		pb = msg.NewProgressBar("CC", len(units), msg.Out)
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(jobLimit(jobs))
	for _, unit := range units {
		eg.Go(func() error {
			if pb == nil {
				g.mu.Lock()
				msg.Action("CC", unit.Source)
				g.mu.Unlock()
			}
			if err := g.exec(ctx, unit.Command); err != nil {
				return fmt.Errorf("%s: %w", unit.Source, err)
			}

			g.mu.Lock()
			g.state.Objects[unit.Object] = commandHash(unit.Command)
			g.mu.Unlock()
			if pb != nil {
				pb.Step(1)
			}
			return nil
		})
	}

	err := eg.Wait()
	if pb != nil {
		pb.Finish()
	}
	return err
}

func (g *QideBuilder) link(ctx context.Context, plan *Plan) error {
	verb := "LINK"
	if plan.Lib {
		verb = "AR"
		// ar appends to an existing archive, so members of removed sources would linger
		if err := os.Remove(plan.Output); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	msg.Action(verb, plan.Output)

	if err := g.exec(ctx, plan.OutputCommand); err != nil {
		return err
	}

	g.mu.Lock()
	g.state.Output = commandHash(plan.OutputCommand)
	g.mu.Unlock()
	return nil
}

// exec runs argv and forwards its output, indented, as one block.
func (g *QideBuilder) exec(ctx context.Context, argv []string) error {
	if len(argv) == 0 {
		return errors.New("empty command")
	}
	msg.Command(argv)
	out, err := g.Run(ctx, argv)

	g.mu.Lock()
	defer g.mu.Unlock()
	if len(out) > 0 {
		w := &msg.IndentWriter{Indent: "    ", W: msg.Out}
		w.Write(out)
		if !bytes.HasSuffix(out, []byte("\n")) {
			w.Write([]byte("\n"))
		}
	}
	if err != nil {
		msg.Error("%s", strings.Join(argv, " "))
	}
	return err
}

func runCommand(ctx context.Context, argv []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.WaitDelay = time.Second
	return cmd.CombinedOutput()
}

func jobLimit(jobs int) int {
	if jobs <= 0 {
		return runtime.NumCPU()
	}
	return jobs
}

func commandHash(argv []string) string {
	sum := sha256.Sum256([]byte(strings.Join(argv, "\x00")))
	return hex.EncodeToString(sum[:])
}

// loadBuildState loads the previous build state from disk
func (g *QideBuilder) loadBuildState() error {
	g.state = BuildState{Objects: make(map[string]string)}

	f, err := os.Open(g.stateFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // no previous state, that's fine
		}
		return err
	}
	defer f.Close()

	if err := json.NewDecoder(bufio.NewReader(f)).Decode(&g.state); err != nil {
		g.state = BuildState{Objects: make(map[string]string)}
		return err
	}
	if g.state.Objects == nil {
		g.state.Objects = make(map[string]string)
	}
	return nil
}

// saveBuildState saves the current build state to disk
func (g *QideBuilder) saveBuildState() error {
	g.mu.Lock()
	data, err := json.MarshalIndent(g.state, "", "  ")
	g.mu.Unlock()
	if err != nil {
		return err
	}

	return os.WriteFile(g.stateFile, data, 0644)
}
