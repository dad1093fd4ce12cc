package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"tickdash/api"
	"tickdash/config"
	"tickdash/output"
	"tickdash/storage"
)

var (
	exportFormat      string
	exportMode        string
	exportOutput      string
	exportPage        int
	exportDBPath      string
	exportSessionFile string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a timer page to CSV/Excel",
	Long: `Export one page of timers fetched from the backend.

Modes:
- raw: export each timer row with its date, times, duration, project and tag
- daily: export per-day aggregates (tracked time, timer count, running count)

Output format can be selected explicitly via --format or inferred from --output
extension. When the backend is unreachable the locally cached page is exported
instead.`,
	Example: `
  # Export raw rows to CSV
  tickdash export --mode raw --output ./timers.csv

  # Export raw rows of page 2 to Excel
  tickdash export --mode raw --page 2 --output ./timers.xlsx

  # Export daily summary to CSV
  tickdash export --mode daily --output ./daily-summary.csv

  # Force Excel format independent of extension
  tickdash export --mode daily --format excel --output ./daily-summary.out
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		format := exportFormat
		if strings.TrimSpace(format) == "" {
			format = detectExportFormat(exportOutput)
		}

		cfg, err := config.LoadAndValidate()
		if err != nil {
			return err
		}
		client, err := newAPIClient(cfg, exportSessionFile)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		result, err := client.GetTimers(ctx, exportPage)
		if err != nil {
			cached, cacheErr := loadCachedPage(exportDBPath, exportPage)
			if cacheErr != nil {
				return fmt.Errorf("fetch timers page %d: %w", exportPage, err)
			}
			fmt.Fprintf(os.Stderr, "Warning: backend unreachable, exporting cached data: %v\n", err)
			result = cached
		}

		mode := strings.TrimSpace(strings.ToLower(exportMode))
		switch mode {
		case "", "raw":
			writer, writerErr := output.WriterForFormat(format)
			if writerErr != nil {
				return writerErr
			}
			rows := output.Flatten(result.GroupedTimers)
			if err := writer.Write(exportOutput, rows); err != nil {
				return err
			}
			fmt.Printf("Export completed. Rows: %d, Mode: raw, Format: %s, File: %s\n", len(rows), format, exportOutput)
		case "daily":
			summaries := output.BuildDailySummaries(result.GroupedTimers)
			if err := output.WriteDailySummaries(exportOutput, format, summaries); err != nil {
				return err
			}
			fmt.Printf("Export completed. Days: %d, Mode: daily, Format: %s, File: %s\n", len(summaries), format, exportOutput)
		default:
			return fmt.Errorf("unsupported export mode: %s (supported: raw, daily)", exportMode)
		}
		return nil
	},
}

func loadCachedPage(dbPath string, page int) (api.TimersPage, error) {
	cache, err := storage.OpenSQLite(dbPath)
	if err != nil {
		return api.TimersPage{}, err
	}
	defer cache.Close()

	cached, err := cache.LoadTimersPage(page)
	if err != nil {
		if errors.Is(err, storage.ErrPageNotCached) {
			return api.TimersPage{}, err
		}
		return api.TimersPage{}, fmt.Errorf("load cached page %d: %w", page, err)
	}
	return cached, nil
}

func detectExportFormat(path string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	switch ext {
	case "csv":
		return "csv"
	case "xlsx", "xlsm", "xls":
		return "excel"
	default:
		return "csv"
	}
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVar(&exportMode, "mode", "raw", "Export mode: raw|daily")
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "", "Output format: csv|excel (optional, inferred from output extension)")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file path")
	exportCmd.Flags().IntVar(&exportPage, "page", 0, "Zero-based page index to export")
	exportCmd.Flags().StringVar(&exportDBPath, "db", "./tickdash.db", "Path to local SQLite snapshot cache")
	exportCmd.Flags().StringVar(&exportSessionFile, "session-file", "", "Path to session JSON (default: $HOME/.tickdash/session.json)")

	_ = exportCmd.MarkFlagRequired("output")
}
