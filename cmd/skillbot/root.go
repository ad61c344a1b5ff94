package main

import (
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "skillbot",
	Short: "Skillbot - Personal AI Assistant with Learnable Skills",
	Long: `Skillbot is a self-hosted Telegram assistant that executes markdown
skill documents as tools, learns new skills from teaching sessions and
runs confirmed tasks on cron schedules.`,
	Version: Version,
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(serveCmd)
}
