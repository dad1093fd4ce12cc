package output

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
)

type CSVWriter struct{}

func (w *CSVWriter) Write(path string, rows []Row) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv output %s: %w", path, err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	headers := []string{"Date", "TimerID", "Start", "End", "Duration", "Minutes", "Description", "Project", "Tag"}
	if err := writer.Write(headers); err != nil {
		return fmt.Errorf("write csv headers: %w", err)
	}

	for _, row := range rows {
		record := []string{
			row.Date,
			strconv.FormatInt(row.TimerID, 10),
			row.Start,
			row.End,
			row.Duration,
			fmt.Sprintf("%.2f", row.Minutes),
			row.Description,
			row.Project,
			row.Tag,
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}

	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush csv output: %w", err)
	}

	return nil
}
