package gen

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/qobs-build/qide/internal/msg"
)

type NinjaGen struct{}

func (g *NinjaGen) BuildFile() string { return "build.ninja" }

var ninjaPathEscaper = strings.NewReplacer("$", "$$", ":", "$:", " ", "$ ")

func quote(s string) string { return ninjaPathEscaper.Replace(filepath.ToSlash(s)) }

// shellJoin renders argv as a ninja variable value run through /bin/sh.
func shellJoin(argv []string) string {
	parts := make([]string, len(argv))
	for i, arg := range argv {
		if arg == "" || strings.ContainsAny(arg, " \t\"'\\$&|;<>()*?#~`") {
			arg = "'" + strings.ReplaceAll(arg, "'", `'\''`) + "'"
		}
		parts[i] = strings.ReplaceAll(arg, "$", "$$")
	}
	return strings.Join(parts, " ")
}

func (g *NinjaGen) Generate(plan *Plan) (string, error) {
	var sb strings.Builder

	writeln(&sb, "ninja_required_version = 1.1")
	writeln(&sb)

	// every edge carries its own rendered command
	write(&sb,
		`rule cc
  command = $cmd
  description = CC $in
`)
	write(&sb,
		`rule link
  command = $cmd
  description = LINK $out
`)
	write(&sb,
		`rule ar
  command = rm -f $out && $cmd
  description = AR $out
`)
	writeln(&sb)

	// build object files
	for _, unit := range plan.Units {
		write(&sb, "build ", quote(unit.Object), ": cc ", quote(unit.Source))
		var implicit []string
		for _, prereq := range unit.Prerequisites {
			if prereq == unit.Source || isDir(prereq) || containsPath(plan.ObjectDirs, prereq) {
				continue
			}
			implicit = append(implicit, quote(prereq))
		}
		if len(implicit) > 0 {
			write(&sb, " | ", strings.Join(implicit, " "))
		}
		writeln(&sb)
		writeln(&sb, "  cmd = ", shellJoin(unit.Command))
	}
	writeln(&sb)

	// ar/link
	rule := "link"
	if plan.Lib {
		rule = "ar"
	}
	write(&sb, "build ", quote(plan.Output), ": ", rule)
	for _, obj := range plan.Objects() {
		write(&sb, " ", quote(obj))
	}
	writeln(&sb)
	writeln(&sb, "  cmd = ", shellJoin(plan.OutputCommand))
	writeln(&sb)
	writeln(&sb, "default ", quote(plan.Output))

	return sb.String(), nil
}

func containsPath(paths []string, p string) bool {
	for _, q := range paths {
		if filepath.Clean(q) == filepath.Clean(p) {
			return true
		}
	}
	return false
}

func (g *NinjaGen) Invoke(ctx context.Context, plan *Plan, buildDir string) error {
	argv := []string{"ninja", "-C", buildDir}
	if plan.Jobs > 0 {
		argv = append(argv, "-j", strconv.Itoa(plan.Jobs))
	}
	msg.Command(argv)

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	return cmd.Run()
}
