package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/Norgate-AV/incr/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "incr",
	Short: "Incremental build orchestrator",
	Long: `Build a web project incrementally: stage the output of every source,
commit it to the www directory and mirror it into a distribution copy.
Run "incr watch" to rebuild whenever a source changes.`,
	RunE:         runBuild,
	SilenceUsage: true,
	Args:         cobra.NoArgs,
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.Version = version.String()
	rootCmd.PersistentFlags().StringP("config", "c", "", "Config file (default is .incr.yml in the working directory or a parent)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().Bool("dev", false, "Build in development mode")
	rootCmd.PersistentFlags().String("log-format", "", "Log format (text or json)")
	rootCmd.PersistentFlags().String("src", "", "Source directory")
	rootCmd.PersistentFlags().String("www", "", "Output directory")
	rootCmd.PersistentFlags().String("dist", "", "Distribution directory")
	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(cacheCmd)
}
