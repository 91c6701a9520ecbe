// qide run [path] [args...]
package cmd

import (
	"github.com/qobs-build/qide/internal/msg"
	"github.com/spf13/cobra"
)

func doRun(cmd *cobra.Command, args []string) {
	path := projectPath(args)
	if len(args) > 0 {
		args = args[1:] // other arguments will be passed to program
	}
	b := newBuilder(path)
	if err := b.BuildAndRun(cmd.Context(), args, flagGenerator.Value()); err != nil {
		msg.Fatal("%v", err)
	}
}

var runCmd = &cobra.Command{
	Use:   "run [project path] [args...]",
	Short: "Build and run the project",
	Long:  `Build and run the project's executable. If no project path is given, uses "."`,
	Args:  cobra.ArbitraryArgs,
	Run:   doRun,
}

func init() {
	// qide run subcommand
	rootCmd.AddCommand(runCmd)
	addBuildFlags(runCmd)
}
