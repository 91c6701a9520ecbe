// qide deps <object>, qide objects, qide info
package cmd

import (
	"fmt"

	"github.com/qobs-build/qide/internal/msg"
	"github.com/spf13/cobra"
)

var flagDir string

var depsCmd = &cobra.Command{
	Use:   "deps <object file>",
	Short: "Print what an object file depends on",
	Long: `Print the prerequisites of an object file: the object directories, the
project headers it includes (directly or not) and its source file.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		deps, err := newBuilder(flagDir).Dependencies(args[0])
		if err != nil {
			msg.Fatal("%v", err)
		}
		for _, d := range deps {
			fmt.Fprintln(cmd.OutOrStdout(), d)
		}
	},
}

var objectsCmd = &cobra.Command{
	Use:   "objects",
	Short: "Print every object file of the active target",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		objects, err := newBuilder(flagDir).Objects()
		if err != nil {
			msg.Fatal("%v", err)
		}
		for _, o := range objects {
			fmt.Fprintln(cmd.OutOrStdout(), o)
		}
	},
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Print the resolved project configuration",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprint(cmd.OutOrStdout(), newBuilder(flagDir).Describe())
	},
}

func init() {
	for _, c := range []*cobra.Command{depsCmd, objectsCmd, infoCmd} {
		rootCmd.AddCommand(c)
		addTargetFlags(c)
		c.Flags().StringVarP(&flagDir, "dir", "C", ".", "Project directory")
	}
}
