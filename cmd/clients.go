package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"tickdash/api"
	"tickdash/config"
)

var (
	clientsSessionFile string
	clientsPage        int
	clientsPageSize    int
	clientsSearch      string
	clientsSortField   string
	clientsSortOrder   string

	clientCreateName        string
	clientCreateDescription string
)

var clientsCmd = &cobra.Command{
	Use:   "clients",
	Short: "List and manage clients on the backend.",
	Example: `
  # List clients
  tickdash clients list

  # Create a client
  tickdash clients create --name "ACME Corp"

  # Delete a client
  tickdash clients delete 3
`,
}

var clientsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List one page of clients.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadAndValidate()
		if err != nil {
			return err
		}
		client, err := newAPIClient(cfg, clientsSessionFile)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		pageSize := clientsPageSize
		if pageSize <= 0 {
			pageSize = cfg.Backend.PageSize
		}
		result, err := client.ListClients(ctx, api.ListQuery{
			Page:      clientsPage,
			PageSize:  pageSize,
			Search:    strings.TrimSpace(clientsSearch),
			SortField: clientsSortField,
			SortOrder: clientsSortOrder,
		})
		if err != nil {
			return err
		}

		for _, customer := range result.Items {
			fmt.Printf("[%d] %s\n", customer.ID, customer.Name)
			if customer.Description != "" {
				fmt.Printf("    %s\n", customer.Description)
			}
		}
		fmt.Printf("%d total, page %d\n", result.TotalCount, clientsPage)
		return nil
	},
}

var clientsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new client.",
	RunE: func(cmd *cobra.Command, args []string) error {
		name := strings.TrimSpace(clientCreateName)
		if name == "" {
			return fmt.Errorf("--name is required")
		}

		cfg, err := config.LoadAndValidate()
		if err != nil {
			return err
		}
		client, err := newAPIClient(cfg, clientsSessionFile)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		created, err := client.CreateClient(ctx, api.CustomerCreate{
			Name:        name,
			Description: strings.TrimSpace(clientCreateDescription),
		})
		if err != nil {
			return err
		}
		fmt.Printf("Client %d created: %s\n", created.ID, created.Name)
		return nil
	},
}

var clientsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a client by id.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return fmt.Errorf("invalid client id %q", args[0])
		}

		cfg, err := config.LoadAndValidate()
		if err != nil {
			return err
		}
		client, err := newAPIClient(cfg, clientsSessionFile)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := client.DeleteClient(ctx, api.Customer{ID: id}); err != nil {
			return err
		}
		fmt.Printf("Client %d deleted.\n", id)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(clientsCmd)
	clientsCmd.AddCommand(clientsListCmd)
	clientsCmd.AddCommand(clientsCreateCmd)
	clientsCmd.AddCommand(clientsDeleteCmd)

	clientsCmd.PersistentFlags().StringVar(&clientsSessionFile, "session-file", "", "Path to session JSON (default: $HOME/.tickdash/session.json)")

	clientsListCmd.Flags().IntVar(&clientsPage, "page", 0, "Zero-based page index")
	clientsListCmd.Flags().IntVar(&clientsPageSize, "page-size", 0, "Items per page (default: backend.page_size)")
	clientsListCmd.Flags().StringVar(&clientsSearch, "search", "", "Filter clients by name")
	clientsListCmd.Flags().StringVar(&clientsSortField, "sort-field", "", "Sort field, e.g. name")
	clientsListCmd.Flags().StringVar(&clientsSortOrder, "sort-order", "", "Sort order: ASC|DESC")

	clientsCreateCmd.Flags().StringVar(&clientCreateName, "name", "", "Client name")
	clientsCreateCmd.Flags().StringVar(&clientCreateDescription, "description", "", "Client description")
}
