// Package app implements the main application commands.
package app

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "nasuha-connect",
	Short: "NASUHA Connect is the administrative backend for the NASUHA membership organization",
	Long: `NASUHA Connect is the administrative backend for the NASUHA membership
organization. It manages regional branches (kordas), users with dynamic
role-based permissions, and the media content library through a JSON API.`,
	Args: cobra.OnlyValidArgs,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
