package web

import (
	"fmt"
	"time"

	"tickdash/api"
	"tickdash/grouping"
	"tickdash/internal/timefmt"
	"tickdash/tracker"
)

type DashboardView struct {
	Title      string `json:"title"`
	State      string `json:"state"`
	Page       int    `json:"page"`
	TotalPages int    `json:"totalPages"`
	PrevPage   int    `json:"prevPage"`
	NextPage   int    `json:"nextPage"`
	HasPrev    bool   `json:"hasPrev"`
	HasNext    bool   `json:"hasNext"`
	FromCache  bool   `json:"fromCache"`
	LastError  string `json:"lastError,omitempty"`

	Days []DayView `json:"days"`
}

type DayView struct {
	Date string    `json:"date"`
	Rows []RowView `json:"rows"`
}

// RowView is one rendered line: either a single timer or a collapsed cluster
// represented by its first member.
type RowView struct {
	ID          int64  `json:"id"`
	IsCluster   bool   `json:"isCluster"`
	GroupKey    string `json:"groupKey,omitempty"`
	Expanded    bool   `json:"expanded,omitempty"`
	Count       int    `json:"count"`
	Description string `json:"description"`
	Project     string `json:"project"`
	Start       string `json:"start"`
	End         string `json:"end"`
	Duration    string `json:"duration"`
	Running     bool   `json:"running"`

	Members []RowView `json:"members,omitempty"`
}

type ProjectsPageView struct {
	Title      string
	Search     string
	SortField  string
	SortOrder  string
	Page       int
	TotalCount int
	Projects   []api.Project
}

type ClientsPageView struct {
	Title      string
	Search     string
	SortField  string
	SortOrder  string
	Page       int
	TotalCount int
	Clients    []api.Customer
}

func buildDashboardView(snapshot tracker.Snapshot) DashboardView {
	view := DashboardView{
		Title:      "tickdash - timers",
		State:      snapshot.State.String(),
		Page:       snapshot.Page,
		TotalPages: snapshot.TotalPages,
		PrevPage:   snapshot.Page - 1,
		NextPage:   snapshot.Page + 1,
		HasPrev:    snapshot.Page > 0,
		HasNext:    snapshot.TotalPages > 0 && snapshot.Page < snapshot.TotalPages-1,
		FromCache:  snapshot.FromCache,
		LastError:  snapshot.LastError,
		Days:       make([]DayView, 0, len(snapshot.Days)),
	}

	for _, day := range snapshot.Days {
		rows := make([]RowView, 0, len(day.Units))
		for _, unit := range day.Units {
			rows = append(rows, buildRowView(day.Date, unit, snapshot.Expanded))
		}
		view.Days = append(view.Days, DayView{Date: day.Date, Rows: rows})
	}
	return view
}

func buildRowView(date string, unit grouping.DisplayUnit, expanded map[string]bool) RowView {
	if !unit.IsCluster() {
		row := timerRowView(*unit.Single)
		row.Count = 1
		return row
	}

	cluster := unit.Cluster
	key := cluster.Key(date)
	row := timerRowView(cluster.Representative())
	row.IsCluster = true
	row.GroupKey = key
	row.Expanded = expanded[key]
	row.Count = len(cluster.Entries)
	row.Duration = formatMinutes(cluster.AggregateDuration)
	row.Start = ""
	row.End = ""

	if row.Expanded {
		row.Members = make([]RowView, 0, len(cluster.Entries))
		for _, member := range cluster.Entries {
			memberRow := timerRowView(member)
			memberRow.Count = 1
			row.Members = append(row.Members, memberRow)
		}
	}
	return row
}

func timerRowView(timer api.Timer) RowView {
	row := RowView{
		ID:          timer.ID,
		Description: timer.DescriptionText(),
		Duration:    formatMinutes(timer.DurationMinutes()),
		Running:     timer.Running(),
	}
	if timer.Project != nil {
		row.Project = timer.Project.Name
	}
	if timer.StartTime != nil {
		row.Start = formatClock(*timer.StartTime)
	}
	if timer.EndTime != nil {
		row.End = formatClock(*timer.EndTime)
	}
	return row
}

func buildProjectsView(result api.ProjectPage, query api.ListQuery) ProjectsPageView {
	return ProjectsPageView{
		Title:      "tickdash - projects",
		Search:     query.Search,
		SortField:  query.SortField,
		SortOrder:  query.SortOrder,
		Page:       query.Page,
		TotalCount: result.TotalCount,
		Projects:   result.Items,
	}
}

func buildClientsView(result api.CustomerPage, query api.ListQuery) ClientsPageView {
	return ClientsPageView{
		Title:      "tickdash - clients",
		Search:     query.Search,
		SortField:  query.SortField,
		SortOrder:  query.SortOrder,
		Page:       query.Page,
		TotalCount: result.TotalCount,
		Clients:    result.Items,
	}
}

func formatMinutes(minutes float64) string {
	formatted, err := timefmt.MinutesToDuration(minutes)
	if err != nil {
		return fmt.Sprintf("%.0f min", minutes)
	}
	return formatted
}

func formatClock(value time.Time) string {
	return value.Local().Format("15:04:05")
}
