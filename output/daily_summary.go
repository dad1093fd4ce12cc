package output

import (
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/xuri/excelize/v2"

	"tickdash/api"
	"tickdash/internal/timefmt"
)

// DailySummary aggregates one backend date group for export. The date label
// stays opaque; sorting relies on its lexical order.
type DailySummary struct {
	Date         string
	TrackedMins  float64
	Tracked      string
	TimerCount   int
	RunningCount int
}

func BuildDailySummaries(groups []api.GroupedTimers) []DailySummary {
	if len(groups) == 0 {
		return []DailySummary{}
	}

	byDate := make(map[string]*DailySummary, len(groups))
	dates := make([]string, 0, len(groups))
	for _, group := range groups {
		summary, ok := byDate[group.Date]
		if !ok {
			summary = &DailySummary{Date: group.Date}
			byDate[group.Date] = summary
			dates = append(dates, group.Date)
		}
		for _, timer := range group.Timers {
			summary.TrackedMins += timer.DurationMinutes()
			summary.TimerCount++
			if timer.Running() {
				summary.RunningCount++
			}
		}
	}
	sort.Strings(dates)

	summaries := make([]DailySummary, 0, len(dates))
	for _, date := range dates {
		summary := byDate[date]
		if formatted, err := timefmt.MinutesToDuration(summary.TrackedMins); err == nil {
			summary.Tracked = formatted
		}
		summaries = append(summaries, *summary)
	}
	return summaries
}

func WriteDailySummaries(path, format string, summaries []DailySummary) error {
	switch normalizeFormat(format) {
	case "csv":
		return writeDailySummariesCSV(path, summaries)
	case "excel", "xlsx":
		return writeDailySummariesExcel(path, summaries)
	default:
		return fmt.Errorf("unsupported output format for daily summaries: %s", format)
	}
}

func writeDailySummariesCSV(path string, summaries []DailySummary) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv output %s: %w", path, err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	headers := []string{"Date", "Tracked", "TrackedMinutes", "TimerCount", "RunningCount"}
	if err := writer.Write(headers); err != nil {
		return fmt.Errorf("write csv headers: %w", err)
	}

	for _, summary := range summaries {
		row := []string{
			summary.Date,
			summary.Tracked,
			fmt.Sprintf("%.2f", summary.TrackedMins),
			strconv.Itoa(summary.TimerCount),
			strconv.Itoa(summary.RunningCount),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}

	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush csv output: %w", err)
	}

	return nil
}

func writeDailySummariesExcel(path string, summaries []DailySummary) error {
	file := excelize.NewFile()
	defer file.Close()

	sheet := file.GetSheetName(0)
	headers := []string{"Date", "Tracked", "TrackedMinutes", "TimerCount", "RunningCount"}

	for col, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := file.SetCellValue(sheet, cell, header); err != nil {
			return fmt.Errorf("set excel header %s: %w", cell, err)
		}
	}

	for i, summary := range summaries {
		values := []any{
			summary.Date,
			summary.Tracked,
			summary.TrackedMins,
			summary.TimerCount,
			summary.RunningCount,
		}
		for col, value := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, i+2)
			if err := file.SetCellValue(sheet, cell, value); err != nil {
				return fmt.Errorf("set excel value %s: %w", cell, err)
			}
		}
	}

	if err := file.SaveAs(path); err != nil {
		return fmt.Errorf("save excel output %s: %w", path, err)
	}

	return nil
}
