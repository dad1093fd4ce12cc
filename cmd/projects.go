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
	projectsSessionFile string
	projectsPage        int
	projectsPageSize    int
	projectsSearch      string
	projectsSortField   string
	projectsSortOrder   string

	projectCreateName        string
	projectCreateDescription string
	projectCreateClient      int64
)

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "List and manage projects on the backend.",
	Example: `
  # List projects sorted by name
  tickdash projects list --sort-field name --sort-order ASC

  # Search projects by name
  tickdash projects list --search website

  # Create a project attached to a client
  tickdash projects create --name "Website Redesign" --client 3

  # Delete a project
  tickdash projects delete 7
`,
}

var projectsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List one page of projects.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadAndValidate()
		if err != nil {
			return err
		}
		client, err := newAPIClient(cfg, projectsSessionFile)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		pageSize := projectsPageSize
		if pageSize <= 0 {
			pageSize = cfg.Backend.PageSize
		}
		result, err := client.ListProjects(ctx, api.ListQuery{
			Page:      projectsPage,
			PageSize:  pageSize,
			Search:    strings.TrimSpace(projectsSearch),
			SortField: projectsSortField,
			SortOrder: projectsSortOrder,
		})
		if err != nil {
			return err
		}

		for _, project := range result.Items {
			clientLabel := ""
			if project.ClientID != nil {
				clientLabel = fmt.Sprintf(" (client %d)", *project.ClientID)
			}
			fmt.Printf("[%d] %s%s\n", project.ID, project.Name, clientLabel)
			if project.Description != "" {
				fmt.Printf("    %s\n", project.Description)
			}
		}
		fmt.Printf("%d total, page %d\n", result.TotalCount, projectsPage)
		return nil
	},
}

var projectsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new project.",
	RunE: func(cmd *cobra.Command, args []string) error {
		name := strings.TrimSpace(projectCreateName)
		if name == "" {
			return fmt.Errorf("--name is required")
		}

		cfg, err := config.LoadAndValidate()
		if err != nil {
			return err
		}
		client, err := newAPIClient(cfg, projectsSessionFile)
		if err != nil {
			return err
		}

		create := api.ProjectCreate{
			Name:        name,
			Description: strings.TrimSpace(projectCreateDescription),
		}
		if projectCreateClient > 0 {
			create.ClientID = &projectCreateClient
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		created, err := client.CreateProject(ctx, create)
		if err != nil {
			return err
		}
		fmt.Printf("Project %d created: %s\n", created.ID, created.Name)
		return nil
	},
}

var projectsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a project by id.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return fmt.Errorf("invalid project id %q", args[0])
		}

		cfg, err := config.LoadAndValidate()
		if err != nil {
			return err
		}
		client, err := newAPIClient(cfg, projectsSessionFile)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := client.DeleteProject(ctx, api.Project{ID: id}); err != nil {
			return err
		}
		fmt.Printf("Project %d deleted.\n", id)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(projectsCmd)
	projectsCmd.AddCommand(projectsListCmd)
	projectsCmd.AddCommand(projectsCreateCmd)
	projectsCmd.AddCommand(projectsDeleteCmd)

	projectsCmd.PersistentFlags().StringVar(&projectsSessionFile, "session-file", "", "Path to session JSON (default: $HOME/.tickdash/session.json)")

	projectsListCmd.Flags().IntVar(&projectsPage, "page", 0, "Zero-based page index")
	projectsListCmd.Flags().IntVar(&projectsPageSize, "page-size", 0, "Items per page (default: backend.page_size)")
	projectsListCmd.Flags().StringVar(&projectsSearch, "search", "", "Filter projects by name")
	projectsListCmd.Flags().StringVar(&projectsSortField, "sort-field", "", "Sort field, e.g. name")
	projectsListCmd.Flags().StringVar(&projectsSortOrder, "sort-order", "", "Sort order: ASC|DESC")

	projectsCreateCmd.Flags().StringVar(&projectCreateName, "name", "", "Project name")
	projectsCreateCmd.Flags().StringVar(&projectCreateDescription, "description", "", "Project description")
	projectsCreateCmd.Flags().Int64Var(&projectCreateClient, "client", 0, "Client id to attach")
}
