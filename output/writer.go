// Package output exports fetched timers to CSV or Excel files.
package output

import (
	"fmt"
	"strings"
	"time"

	"tickdash/api"
	"tickdash/internal/timefmt"
)

// Row is one flattened timer as written to an export file.
type Row struct {
	Date        string
	TimerID     int64
	Start       string
	End         string
	Duration    string
	Minutes     float64
	Description string
	Project     string
	Tag         string
}

type Writer interface {
	Write(path string, rows []Row) error
}

func WriterForFormat(format string) (Writer, error) {
	switch normalizeFormat(format) {
	case "csv":
		return &CSVWriter{}, nil
	case "excel", "xlsx":
		return &ExcelWriter{}, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

// Flatten turns date-grouped timers into export rows, preserving the backend's
// ordering.
func Flatten(groups []api.GroupedTimers) []Row {
	rows := make([]Row, 0, len(groups))
	for _, group := range groups {
		for _, timer := range group.Timers {
			rows = append(rows, rowFromTimer(group.Date, timer))
		}
	}
	return rows
}

func rowFromTimer(date string, timer api.Timer) Row {
	row := Row{
		Date:        date,
		TimerID:     timer.ID,
		Minutes:     timer.DurationMinutes(),
		Description: timer.DescriptionText(),
	}
	if timer.StartTime != nil {
		row.Start = timer.StartTime.Format(time.RFC3339)
	}
	if timer.EndTime != nil {
		row.End = timer.EndTime.Format(time.RFC3339)
	}
	if formatted, err := timefmt.MinutesToDuration(row.Minutes); err == nil {
		row.Duration = formatted
	}
	if timer.Project != nil {
		row.Project = timer.Project.Name
	}
	if timer.Tag != nil {
		row.Tag = timer.Tag.Name
	}
	return row
}

func normalizeFormat(value string) string {
	return strings.TrimSpace(strings.ToLower(value))
}
