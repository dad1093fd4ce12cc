package cmd

import "github.com/spf13/cobra"

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage tickdash configuration file values.",
	Long: `Create, edit and display the tickdash configuration file.

The configuration stores application-wide values:
- backend.url / backend.page_size
- web.port
- tracker.save_debounce_ms`,
	Example: `
  # Create default config in $HOME/.tickdash.yaml
  tickdash config create

  # Show active config and source file
  tickdash config show

  # Open active config in editor (creates example if missing)
  tickdash config edit
`,
}

func init() {
	rootCmd.AddCommand(configCmd)
}
