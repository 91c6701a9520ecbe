// qide init <name>, qide new <path>
package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/go-git/go-git/v6"
	"github.com/qobs-build/qide/internal/builder"
	"github.com/qobs-build/qide/internal/msg"
	"github.com/qobs-build/qide/internal/scaffold"
	"github.com/spf13/cobra"
)

func writefile(content string, elem ...string) {
	path := filepath.Join(elem...)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err = os.WriteFile(path, []byte(content), 0o644); err != nil {
			msg.Fatal("create file %s: %v", path, err)
		}
		fmt.Fprintf(msg.Out, "%s file: %s\n", color.HiGreenString("Created"), filepath.ToSlash(path))
	}
}

func mkdir(elem ...string) {
	path := filepath.Join(elem...)
	if err := os.MkdirAll(path, 0o755); err != nil {
		msg.Fatal("mkdir %s: %v", path, err)
	}
}

func getProgramName() string {
	if len(os.Args) == 0 {
		return "qide"
	}
	basename := filepath.Base(os.Args[0])
	return strings.TrimSuffix(basename, filepath.Ext(basename))
}

func projectConfig(name string, lib bool) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, `[project]
name = %q
family = "auto"
default-target = "debug"
`, name)
	if lib {
		sb.WriteString("lib = true\n")
	}
	sb.WriteString(`
[options]
options = ["-Wall", "-Wextra"]

[target.release]
defines = { NDEBUG = "" }
`)
	return sb.String()
}

// initRepo creates a git repository unless dir is already inside one.
func initRepo(dir string) {
	if _, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true}); err == nil {
		return
	}
	if _, err := git.PlainInit(dir, false); err != nil {
		msg.Warn("git init %s: %v", dir, err)
		return
	}
	fmt.Fprintf(msg.Out, "%s git repository: %s\n", color.HiGreenString("Initialized"), filepath.ToSlash(dir))
}

// initIn initializes a project in an existing specified directory
func initIn(dir, name string, lib bool) {
	writefile(projectConfig(name, lib), dir, builder.ConfigFilename)

	mkdir(dir, "src")
	mkdir(dir, "include")

	if lib {
		// src/hello_world.c
		writefile(`#include <stdio.h>
#include "hello_world.h"

void hello_world(void) {
    puts("Hello, World!");
}
`, dir, "src", "hello_world.c")

		// include/hello_world.h
		writefile(`#ifndef HELLOWORLD_H
#define HELLOWORLD_H

#ifdef __cplusplus
extern "C" {
#endif

void hello_world(void);

#ifdef __cplusplus
} // extern "C"
#endif

#endif
`, dir, "include", "hello_world.h")
	} else {
		// src/main.c
		writefile(`// You may change this to a .cpp (.cc) file if you'd like
#include <stdio.h>

int main(void) {
    puts("Hello, World!");
    return 0;
}
`, dir, "src", "main.c")
	}

	// .gitignore
	writefile(`build/
bin/
lib/
`, dir, ".gitignore")

	if !noGit {
		initRepo(dir)
	}

	programName := getProgramName()
	fmt.Fprintf(msg.Out, "You can now do %s to build, or %s to build and run.\n", color.HiCyanString(programName+" "+dir), color.HiCyanString(programName+" run "+dir))
}

var (
	library bool
	noGit   bool
	fromSrc string
)

var initCmd = &cobra.Command{
	Use:   "init [name]",
	Short: "Create a new project in the current directory",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		initIn(".", args[0], library)
	},
}

var newCmd = &cobra.Command{
	Use:   "new [path]",
	Short: "Create a new project in a new directory",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if fromSrc != "" {
			scaffold.Progress = msg.Out
			if err := scaffold.Fetch(fromSrc, args[0]); err != nil {
				msg.Fatal("%v", err)
			}
		}
		mkdir(args[0])
		initIn(args[0], filepath.Base(args[0]), library)
	},
}

func init() {
	for _, c := range []*cobra.Command{initCmd, newCmd} {
		rootCmd.AddCommand(c)
		c.Flags().BoolVarP(&library, "lib", "l", false, "Create a static library project")
		c.Flags().BoolVar(&noGit, "no-git", false, "Don't create a git repository")
	}
	newCmd.Flags().StringVar(&fromSrc, "from", "", "Start from a template repository (gh:user/repo, git:<url>, a URL or a local repository)")
}
