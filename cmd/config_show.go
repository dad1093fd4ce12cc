package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"tickdash/config"
)

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show active configuration values.",
	Long: `Display the currently loaded configuration and the resolved config file path.

This command validates the configuration before printing values.`,
	Example: `
  # Show active configuration
  tickdash config show
`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.LoadAndValidate()
		if err != nil {
			fmt.Println("Invalid config:", err)
			return
		}

		if configPath := viper.ConfigFileUsed(); configPath != "" {
			fmt.Println("Config file loaded from:", configPath)
			fmt.Println("Configuration:")
			fmt.Printf("backend.url: %s\n", cfg.Backend.URL)
			fmt.Printf("backend.page_size: %d\n", cfg.Backend.PageSize)
			fmt.Printf("web.port: %d\n", cfg.Web.Port)
			fmt.Printf("tracker.save_debounce_ms: %d\n", cfg.Tracker.SaveDebounceMillis)
		}
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
}
