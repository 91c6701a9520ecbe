// qide clean|purge|rebuild [path]
package cmd

import (
	"github.com/qobs-build/qide/internal/msg"
	"github.com/spf13/cobra"
)

var cleanCmd = &cobra.Command{
	Use:   "clean [project path]",
	Short: "Remove all object files",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := newBuilder(projectPath(args)).Clean(); err != nil {
			msg.Fatal("%v", err)
		}
	},
}

var purgeCmd = &cobra.Command{
	Use:   "purge [project path]",
	Short: "Remove all object files and the executable (or archive)",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := newBuilder(projectPath(args)).Purge(); err != nil {
			msg.Fatal("%v", err)
		}
	},
}

var rebuildCmd = &cobra.Command{
	Use:   "rebuild [project path]",
	Short: "Remove all object files, then build from scratch",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		b := newBuilder(projectPath(args))
		if err := b.Clean(); err != nil {
			msg.Fatal("%v", err)
		}
		if err := b.Build(cmd.Context(), flagGenerator.Value()); err != nil {
			msg.Fatal("%v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(cleanCmd)
	addTargetFlags(cleanCmd)

	rootCmd.AddCommand(purgeCmd)
	addTargetFlags(purgeCmd)

	rootCmd.AddCommand(rebuildCmd)
	addBuildFlags(rebuildCmd)
}
