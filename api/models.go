package api

import "time"

// Timer is one tracked work interval. Start, end and duration are optional on
// the wire: a missing end means the timer is still running, and duration
// (minutes) is authoritative only when the backend has it set explicitly.
type Timer struct {
	ID          int64      `json:"id"`
	StartTime   *time.Time `json:"startTime,omitempty"`
	EndTime     *time.Time `json:"endTime,omitempty"`
	Duration    *float64   `json:"duration,omitempty"`
	Description *string    `json:"description,omitempty"`
	Project     *Project   `json:"project,omitempty"`
	Tag         *Tag       `json:"tag,omitempty"`
}

// Running reports whether the timer has been started but not yet stopped.
func (t Timer) Running() bool {
	return t.StartTime != nil && t.EndTime == nil
}

// DurationMinutes returns the stored duration, falling back to the start/end
// difference and finally to 0.
func (t Timer) DurationMinutes() float64 {
	if t.Duration != nil {
		return *t.Duration
	}
	if t.StartTime != nil && t.EndTime != nil && t.EndTime.After(*t.StartTime) {
		return t.EndTime.Sub(*t.StartTime).Minutes()
	}
	return 0
}

// ProjectID returns the associated project id, or 0 when unset.
func (t Timer) ProjectID() int64 {
	if t.Project == nil {
		return 0
	}
	return t.Project.ID
}

// DescriptionText returns the description, or "" when unset.
func (t Timer) DescriptionText() string {
	if t.Description == nil {
		return ""
	}
	return *t.Description
}

type TimerCreate struct {
	StartTime   time.Time  `json:"startTime"`
	EndTime     *time.Time `json:"endTime,omitempty"`
	Duration    *float64   `json:"duration,omitempty"`
	Description *string    `json:"description,omitempty"`
	ProjectID   *int64     `json:"projectId,omitempty"`
	TagID       *int64     `json:"tagId,omitempty"`
}

// TimerUpdate carries only the fields being changed; nil fields are omitted
// from the request body and left untouched by the backend.
type TimerUpdate struct {
	StartTime   *time.Time `json:"startTime,omitempty"`
	EndTime     *time.Time `json:"endTime,omitempty"`
	Duration    *float64   `json:"duration,omitempty"`
	Description *string    `json:"description,omitempty"`
	ProjectID   *int64     `json:"projectId,omitempty"`
	TagID       *int64     `json:"tagId,omitempty"`
}

// IsZero reports whether the update carries no changed fields.
func (u TimerUpdate) IsZero() bool {
	return u.StartTime == nil && u.EndTime == nil && u.Duration == nil &&
		u.Description == nil && u.ProjectID == nil && u.TagID == nil
}

// GroupedTimers is one calendar day worth of timers as paged by the backend.
// The date label is an opaque grouping key; the client never parses it.
type GroupedTimers struct {
	Date   string  `json:"date"`
	Timers []Timer `json:"timers"`
}

// TimersPage is the response of GET /timer?page={n}.
type TimersPage struct {
	GroupedTimers []GroupedTimers `json:"groupedTimers"`
	TotalCount    int             `json:"totalCount"`
}

type Project struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	ClientID    *int64 `json:"clientId,omitempty"`
}

type ProjectCreate struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	ClientID    *int64 `json:"clientId,omitempty"`
}

// Customer is the backend's "client" entity (the people work is billed to).
// Named Customer locally to avoid clashing with the API client itself.
type Customer struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type CustomerCreate struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type Tag struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

// ListQuery mirrors the backend's paged list parameters for CRUD screens.
type ListQuery struct {
	Page      int
	PageSize  int
	Search    string
	SortField string
	SortOrder string
}

type ProjectPage struct {
	Items      []Project `json:"items"`
	TotalCount int       `json:"totalCount"`
}

type CustomerPage struct {
	Items      []Customer `json:"items"`
	TotalCount int        `json:"totalCount"`
}
