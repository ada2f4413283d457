// Package cmd provides the command-line interface of the arbiter.
package cmd

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "arbiter",
	Short: "Arbiter runs motor primitives against a robot description.",
	Long: `Arbiter loads a robot description, builds its motors, and runs ` +
		`the arbitration loop that merges the orders of every primitive ` +
		`into one write per motor per tick. Defaults for the flags can be ` +
		`given as ARBITER_* variables in a .env file.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}

func init() {
	// A missing .env file is fine, the variables may come from the shell.
	_ = godotenv.Load()

	rootCmd.PersistentFlags().StringP("config", "c",
		envString("ARBITER_CONFIG", "robot.yaml"),
		"Path to the robot description.")
}

func envString(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}

	return fallback
}

func envInt(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}

	return n
}

func envFloat(key string, fallback float64) float64 {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}

	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}

	return f
}
