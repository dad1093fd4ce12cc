package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"tickdash/config"
	"tickdash/storage"
	"tickdash/tracker"
)

var (
	timersPage        int
	timersDBPath      string
	timersSessionFile string

	timersStartDescription string
	timersStartProject     int64
)

var timersCmd = &cobra.Command{
	Use:   "timers",
	Short: "List, start and stop timers on the backend.",
	Example: `
  # List the first page of grouped timers
  tickdash timers list --page 0

  # Start a timer with a description and project
  tickdash timers start -d "Code review" --project 5

  # Stop a running timer by id
  tickdash timers stop 42
`,
}

var timersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List one page of timers, grouped per day.",
	Long: `Fetch a page of timers from the backend and print it grouped per day.

Consecutive timers with the same description and project are collapsed into one
row with an aggregated duration. When the backend is unreachable the last
snapshot cached in the local SQLite database is shown instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadAndValidate()
		if err != nil {
			return err
		}
		client, err := newAPIClient(cfg, timersSessionFile)
		if err != nil {
			return err
		}

		cache, err := storage.OpenSQLite(timersDBPath)
		if err != nil {
			return err
		}
		defer cache.Close()

		service := tracker.NewService(client, tracker.Options{Cache: cache})

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		loadErr := service.LoadPage(ctx, timersPage)
		snapshot := service.Snapshot()
		if loadErr != nil && len(snapshot.Days) == 0 {
			return loadErr
		}
		if loadErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: backend unreachable, showing cached data: %v\n", loadErr)
		}

		printSnapshot(snapshot)
		return nil
	},
}

var timersStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a new timer now.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadAndValidate()
		if err != nil {
			return err
		}
		client, err := newAPIClient(cfg, timersSessionFile)
		if err != nil {
			return err
		}

		service := tracker.NewService(client, tracker.Options{})

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		started, err := service.StartTimer(ctx, strings.TrimSpace(timersStartDescription), timersStartProject)
		if err != nil {
			return err
		}
		fmt.Printf("Timer %d started.\n", started.ID)
		return nil
	},
}

var timersStopCmd = &cobra.Command{
	Use:   "stop <id>",
	Short: "Stop a running timer.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseTimerID(args[0])
		if err != nil {
			return err
		}

		cfg, err := config.LoadAndValidate()
		if err != nil {
			return err
		}
		client, err := newAPIClient(cfg, timersSessionFile)
		if err != nil {
			return err
		}

		service := tracker.NewService(client, tracker.Options{})

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		stopped, err := service.StopTimer(ctx, id)
		if err != nil {
			return err
		}
		fmt.Printf("Timer %d stopped.\n", stopped.ID)
		return nil
	},
}

func printSnapshot(snapshot tracker.Snapshot) {
	for _, day := range snapshot.Days {
		fmt.Printf("%s\n", day.Date)
		for _, unit := range day.Units {
			if unit.IsCluster() {
				cluster := unit.Cluster
				representative := cluster.Representative()
				fmt.Printf("  [%d] %-30s x%d  %s\n",
					representative.ID,
					truncateText(representative.DescriptionText(), 30),
					len(cluster.Entries),
					formatDurationMinutes(cluster.AggregateDuration))
				continue
			}
			timer := *unit.Single
			marker := " "
			if timer.Running() {
				marker = "*"
			}
			fmt.Printf("  [%d] %-30s %s  %s\n",
				timer.ID,
				truncateText(timer.DescriptionText(), 30),
				marker,
				formatDurationMinutes(timer.DurationMinutes()))
		}
	}
	fmt.Printf("Page %d", snapshot.Page)
	if snapshot.TotalPages > 0 {
		fmt.Printf(" of %d", snapshot.TotalPages)
	}
	if snapshot.FromCache {
		fmt.Print(" (cached)")
	}
	fmt.Println()
}

func parseTimerID(raw string) (int64, error) {
	id, err := parseID(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid timer id %q", raw)
	}
	return id, nil
}

func truncateText(value string, limit int) string {
	if len(value) <= limit {
		return value
	}
	if limit <= 3 {
		return value[:limit]
	}
	return value[:limit-3] + "..."
}

func init() {
	rootCmd.AddCommand(timersCmd)
	timersCmd.AddCommand(timersListCmd)
	timersCmd.AddCommand(timersStartCmd)
	timersCmd.AddCommand(timersStopCmd)

	timersCmd.PersistentFlags().StringVar(&timersSessionFile, "session-file", "", "Path to session JSON (default: $HOME/.tickdash/session.json)")

	timersListCmd.Flags().IntVar(&timersPage, "page", 0, "Zero-based page index")
	timersListCmd.Flags().StringVar(&timersDBPath, "db", "./tickdash.db", "Path to local SQLite snapshot cache")

	timersStartCmd.Flags().StringVarP(&timersStartDescription, "description", "d", "", "Timer description")
	timersStartCmd.Flags().Int64Var(&timersStartProject, "project", 0, "Project id to attach")
}
