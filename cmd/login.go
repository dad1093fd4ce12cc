package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"tickdash/api"
	"tickdash/config"
	"tickdash/session"
)

var (
	loginEmail       string
	loginPassword    string
	loginSessionFile string
	loginSkipVerify  bool
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in to the backend and save the session token.",
	Long: `Authenticate against the backend with email and password and store the
returned bearer token in the session file.

The password is read from --password or, when omitted, from a prompt on stdin.
By default the stored token is verified with a test API call before saving.`,
	Example: `
  # Prompt for the password and verify the token
  tickdash login --email you@example.com

  # Non-interactive login with an explicit session file
  tickdash login --email you@example.com --password secret --session-file /tmp/session.json
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadAndValidate()
		if err != nil {
			return err
		}

		email := strings.TrimSpace(loginEmail)
		if email == "" {
			return fmt.Errorf("--email is required")
		}

		password := loginPassword
		if password == "" {
			fmt.Print("Password: ")
			reader := bufio.NewReader(os.Stdin)
			line, readErr := reader.ReadString('\n')
			if readErr != nil {
				return fmt.Errorf("read password: %w", readErr)
			}
			password = strings.TrimRight(line, "\r\n")
		}
		if password == "" {
			return fmt.Errorf("password must not be empty")
		}

		client, err := api.NewClient(api.ClientConfig{
			BaseURL:   cfg.Backend.URL,
			UserAgent: "tickdash/1.0",
		})
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		token, err := client.Login(ctx, email, password)
		if err != nil {
			return fmt.Errorf("login failed: %w", err)
		}

		if !loginSkipVerify {
			authed, verifyErr := api.NewClient(api.ClientConfig{
				BaseURL:   cfg.Backend.URL,
				Token:     token,
				UserAgent: "tickdash/1.0",
			})
			if verifyErr != nil {
				return verifyErr
			}
			if verifyErr := authed.Verify(ctx); verifyErr != nil {
				return fmt.Errorf("token verification failed: %w", verifyErr)
			}
		}

		path, err := resolveSessionPath(loginSessionFile)
		if err != nil {
			return err
		}
		state := session.Session{
			Token:   token,
			Email:   email,
			SavedAt: time.Now(),
		}
		if err := session.Save(path, state); err != nil {
			return err
		}

		fmt.Printf("Logged in as %s. Session saved: %s\n", email, path)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the stored session token.",
	Example: `
  # Forget the stored session
  tickdash logout
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := resolveSessionPath(loginSessionFile)
		if err != nil {
			return err
		}
		if err := session.Clear(path); err != nil {
			return err
		}
		fmt.Println("Session cleared.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)

	loginCmd.Flags().StringVar(&loginEmail, "email", "", "Account email address")
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "Account password (prompted when omitted)")
	loginCmd.Flags().StringVar(&loginSessionFile, "session-file", "", "Path to session JSON (default: $HOME/.tickdash/session.json)")
	loginCmd.Flags().BoolVar(&loginSkipVerify, "skip-verify", false, "Skip the post-login token verification call")

	logoutCmd.Flags().StringVar(&loginSessionFile, "session-file", "", "Path to session JSON (default: $HOME/.tickdash/session.json)")
}
