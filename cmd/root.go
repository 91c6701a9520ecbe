// qide [path], qide build [path]
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/qobs-build/qide/internal/builder"
	"github.com/qobs-build/qide/internal/msg"
	"github.com/spf13/cobra"
)

var (
	flagTarget    string
	flagFamily    string
	flagJobs      int
	flagGenerator EnumValue = NewEnumValue(builder.GeneratorQide, map[string]string{
		builder.GeneratorQide:   "Use qide's incremental builder (default)",
		builder.GeneratorNinja:  "Generates a build.ninja file and runs ninja",
		builder.GeneratorCompdb: "Generates compile_commands.json only",
	})
)

func builderOptions() builder.Options {
	return builder.Options{
		Target: flagTarget,
		Family: flagFamily,
		Jobs:   flagJobs,
	}
}

// projectPath returns the project directory argument, "." when absent.
func projectPath(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return "."
}

func newBuilder(path string) *builder.Builder {
	b, err := builder.NewBuilderInDirectory(path, builderOptions())
	if err != nil {
		msg.Fatal("%v", err)
	}
	return b
}

func doBuild(cmd *cobra.Command, args []string) {
	b := newBuilder(projectPath(args))
	if err := b.Build(cmd.Context(), flagGenerator.Value()); err != nil {
		msg.Fatal("%v", err)
	}
}

var rootCmd = &cobra.Command{
	Use:   "qide [project path]",
	Short: "C/C++ project builder",
	Long:  `Builds C and C++ projects laid out as include/, src/, build/, bin/ and lib/ directories.`,
	Args:  cobra.MaximumNArgs(1),
	Run:   doBuild,
}

var buildCmd = &cobra.Command{
	Use:   "build [project path]",
	Short: "Build the project",
	Long:  `Build the project. If no project path is given, uses "."`,
	Args:  cobra.MaximumNArgs(1),
	Run:   doBuild,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&msg.Verbose, "verbose", "v", false, "Print every command that is run")
	addBuildFlags(rootCmd)

	// qide build subcommand
	rootCmd.AddCommand(buildCmd)
	addBuildFlags(buildCmd)
}

// addTargetFlags registers the flags needed to configure a toolchain.
func addTargetFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&flagTarget, "target", "t", "", "Activate the given target instead of the project's default")
	cmd.Flags().StringVar(&flagFamily, "family", "", "Override project.family (gcc, g++, auto or a compiler executable)")
}

func addBuildFlags(cmd *cobra.Command) {
	addTargetFlags(cmd)
	cmd.Flags().IntVarP(&flagJobs, "jobs", "j", 0, "Number of parallel compile jobs (default: number of CPUs)")
	cmd.Flags().VarP(&flagGenerator, "gen", "g", "Generator to build with, one of "+flagGenerator.HelpString())
	cmd.RegisterFlagCompletionFunc("gen", flagGenerator.CompletionFunc())
}

func Execute(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
