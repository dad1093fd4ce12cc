package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"tickdash/api"
	"tickdash/config"
	"tickdash/internal/timefmt"
	"tickdash/session"
)

// newAPIClient builds an authenticated backend client from the validated
// config and the stored session token.
func newAPIClient(cfg *config.Config, sessionPath string) (*api.HTTPClient, error) {
	path, err := resolveSessionPath(sessionPath)
	if err != nil {
		return nil, err
	}
	state, err := session.Load(path)
	if err != nil {
		return nil, err
	}

	return api.NewClient(api.ClientConfig{
		BaseURL:   cfg.Backend.URL,
		Token:     state.Token,
		UserAgent: "tickdash/1.0",
	})
}

func resolveSessionPath(override string) (string, error) {
	if strings.TrimSpace(override) != "" {
		return override, nil
	}
	return session.DefaultPath()
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, err
	}
	if id <= 0 {
		return 0, fmt.Errorf("id must be > 0")
	}
	return id, nil
}

// formatDurationMinutes renders minutes as HH:MM:SS for terminal output,
// falling back to a raw minute count for values the formatter rejects.
func formatDurationMinutes(minutes float64) string {
	formatted, err := timefmt.MinutesToDuration(minutes)
	if err != nil {
		return fmt.Sprintf("%.0f min", minutes)
	}
	return formatted
}

func resolveConfigEditPath(configFileFlag, configFileUsed string) (string, error) {
	if strings.TrimSpace(configFileFlag) != "" {
		return configFileFlag, nil
	}
	if strings.TrimSpace(configFileUsed) != "" {
		return configFileUsed, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".tickdash.yaml"), nil
}

func ensureConfigFileWithTemplate(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return false, nil
	}
	if !os.IsNotExist(err) {
		return false, fmt.Errorf("checking config file failed: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("creating config directory failed: %w", err)
	}
	if err := os.WriteFile(path, []byte(config.ExampleYAML()), 0o600); err != nil {
		return false, fmt.Errorf("creating example config failed: %w", err)
	}

	return true, nil
}
