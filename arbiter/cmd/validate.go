package cmd

import (
	"fmt"
	"strings"

	"github.com/sarchlab/motorarbiter/robotconfig"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a robot description without running it.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		path, _ := cmd.Flags().GetString("config")

		robot, err := robotconfig.Load(path)
		if err != nil {
			return err
		}

		_, err = robot.ManagerBuilder(robot.BuildMotors()).Build(robot.Name)
		if err != nil {
			return err
		}

		fmt.Fprint(cmd.OutOrStdout(), describe(robot))

		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func describe(robot *robotconfig.Robot) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s: %d motors at %g Hz, reduction %s\n",
		robot.Name, len(robot.Motors), robot.Freq, robot.Reduction)

	for _, m := range robot.BuildMotors() {
		fmt.Fprintf(&b, "  %s\n", m)
	}

	return b.String()
}
