package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tickdash/config"
	"tickdash/internal/logging"
	"tickdash/storage"
	"tickdash/tracker"
	"tickdash/web"
)

var (
	servePort        int
	serveDBPath      string
	serveSessionFile string
	serveNoOpen      bool
	serveDebug       bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local web dashboard.",
	Long: `Start a local HTTP server with the grouped timer dashboard and project/client
management pages.

Timer pages fetched from the backend are cached in a local SQLite database so
the dashboard stays readable while the backend is unreachable.`,
	Example: `
  # Start local server on the configured port
  tickdash serve

  # Start with explicit port, cache db and session file
  tickdash serve --port 9090 --db ./tickdash.db --session-file ~/.tickdash/session.json
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadAndValidate()
		if err != nil {
			return err
		}

		log, err := logging.New(serveDebug)
		if err != nil {
			return err
		}
		defer logging.Sync(log)

		client, err := newAPIClient(cfg, serveSessionFile)
		if err != nil {
			return err
		}

		cache, err := storage.OpenSQLite(serveDBPath)
		if err != nil {
			return err
		}
		defer cache.Close()

		service := tracker.NewService(client, tracker.Options{
			Cache:        cache,
			Logger:       log,
			SaveDebounce: time.Duration(cfg.Tracker.SaveDebounceMillis) * time.Millisecond,
		})

		port := servePort
		if port == 0 {
			port = cfg.Web.Port
		}
		addr := fmt.Sprintf(":%d", port)
		server := &http.Server{
			Addr:    addr,
			Handler: web.NewServer(service, client, cache, *cfg, log),
		}

		errCh := make(chan error, 1)
		go func() {
			errCh <- server.ListenAndServe()
		}()

		listenURL := fmt.Sprintf("http://localhost:%d", port)
		fmt.Printf("Listening on %s\n", listenURL)
		log.Info("web dashboard started", zap.String("addr", addr))
		if !serveNoOpen {
			if openErr := openURLInBrowser(listenURL); openErr != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to open browser: %v\n", openErr)
			}
		}

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sigCh)

		select {
		case err := <-errCh:
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		case <-sigCh:
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(ctx); err != nil {
				return fmt.Errorf("shutdown server: %w", err)
			}
			err := <-errCh
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntVar(&servePort, "port", 0, "HTTP port for the local web server (default: web.port)")
	serveCmd.Flags().StringVar(&serveDBPath, "db", "./tickdash.db", "Path to local SQLite snapshot cache")
	serveCmd.Flags().StringVar(&serveSessionFile, "session-file", "", "Path to session JSON (default: $HOME/.tickdash/session.json)")
	serveCmd.Flags().BoolVar(&serveNoOpen, "no-open", false, "Do not open browser automatically")
	serveCmd.Flags().BoolVar(&serveDebug, "debug", false, "Enable debug logging")
}

func openURLInBrowser(rawURL string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", rawURL)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", rawURL)
	default:
		cmd = exec.Command("xdg-open", rawURL)
	}
	return cmd.Start()
}
