/*
Copyright © 2025 tickdash authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"tickdash/config"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tickdash",
	Short: "Terminal and local-web dashboard for a remote time-tracking backend.",
	Long: `
**********************************************
*               TICKDASH                     *
**********************************************

This CLI talks to a remote time-tracking backend: log in, list and edit timers
grouped per day, manage projects and clients, export timer pages to CSV or
Excel, and serve a local web dashboard with offline-capable snapshots.
`,
	Example: `
  # Create configuration file
  tickdash config create

  # Log in and store the session token
  tickdash login --email you@example.com

  # List the first page of grouped timers
  tickdash timers list --page 0

  # Start and stop a timer
  tickdash timers start -d "Code review" --project 5
  tickdash timers stop 42

  # Serve the local web dashboard
  tickdash serve

  # Export the current timer page
  tickdash export --mode raw --output ./timers.csv
  tickdash export --mode daily --output ./daily-summary.xlsx
`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	config.SetDefaults()

	rootCmd.PersistentFlags().StringVar(&cfgFile, "configFile", "", "Config file override (default discovery: $HOME/.tickdash.yaml, then ./.tickdash.yaml)")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".tickdash" (without extension).
		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".tickdash")
	}

	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err != nil {
		fmt.Fprintln(os.Stderr, "No config file found. Create one first with: tickdash config create")
	}
}
