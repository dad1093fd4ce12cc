// Package storage caches the most recent backend responses in SQLite so the
// dashboard can keep rendering retained data when a fetch fails. The backend
// stays authoritative; nothing here is ever written back to it.
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"tickdash/api"
)

type SQLiteCache struct {
	db *sql.DB
}

var ErrPageNotCached = errors.New("timer page not cached")

func OpenSQLite(path string) (*SQLiteCache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	cache := &SQLiteCache{db: db}
	if err := cache.ensureSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return cache, nil
}

func (c *SQLiteCache) Close() error {
	return c.db.Close()
}

func (c *SQLiteCache) ensureSchema() error {
	const schema = `
CREATE TABLE IF NOT EXISTS timer_pages (
	page INTEGER PRIMARY KEY,
	total_count INTEGER NOT NULL,
	fetched_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS timers (
	page INTEGER NOT NULL,
	position INTEGER NOT NULL,
	group_date TEXT NOT NULL,
	timer_id INTEGER NOT NULL,
	start_time TEXT,
	end_time TEXT,
	duration REAL,
	description TEXT,
	project_id INTEGER,
	project_name TEXT,
	tag_id INTEGER,
	tag_name TEXT,
	PRIMARY KEY (page, position)
);
CREATE TABLE IF NOT EXISTS projects (
	id INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	client_id INTEGER
);
CREATE TABLE IF NOT EXISTS tags (
	id INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	color TEXT NOT NULL DEFAULT ''
);
`
	if _, err := c.db.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// SaveTimersPage replaces the cached snapshot for one page.
func (c *SQLiteCache) SaveTimersPage(page int, data api.TimersPage) error {
	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM timers WHERE page = ?;`, page); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("clear cached timers for page %d: %w", page, err)
	}
	if _, err := tx.Exec(
		`INSERT OR REPLACE INTO timer_pages (page, total_count, fetched_at) VALUES (?, ?, ?);`,
		page, data.TotalCount, time.Now().Format(time.RFC3339),
	); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("upsert timer page %d: %w", page, err)
	}

	const insertStmt = `
INSERT INTO timers (
	page, position, group_date, timer_id,
	start_time, end_time, duration, description,
	project_id, project_name, tag_id, tag_name
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`

	stmt, err := tx.Prepare(insertStmt)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare timer insert: %w", err)
	}
	defer stmt.Close()

	position := 0
	for _, group := range data.GroupedTimers {
		for _, timer := range group.Timers {
			var projectID sql.NullInt64
			var projectName sql.NullString
			if timer.Project != nil {
				projectID = sql.NullInt64{Int64: timer.Project.ID, Valid: true}
				projectName = sql.NullString{String: timer.Project.Name, Valid: true}
			}
			var tagID sql.NullInt64
			var tagName sql.NullString
			if timer.Tag != nil {
				tagID = sql.NullInt64{Int64: timer.Tag.ID, Valid: true}
				tagName = sql.NullString{String: timer.Tag.Name, Valid: true}
			}

			if _, err := stmt.Exec(
				page, position, group.Date, timer.ID,
				nullableTime(timer.StartTime), nullableTime(timer.EndTime),
				nullableFloat(timer.Duration), nullableString(timer.Description),
				projectID, projectName, tagID, tagName,
			); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("insert cached timer %d: %w", timer.ID, err)
			}
			position++
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit timer page %d: %w", page, err)
	}
	return nil
}

// LoadTimersPage returns the cached snapshot for one page, preserving the date
// grouping and ordering the backend sent.
func (c *SQLiteCache) LoadTimersPage(page int) (api.TimersPage, error) {
	var totalCount int
	err := c.db.QueryRow(`SELECT total_count FROM timer_pages WHERE page = ?;`, page).Scan(&totalCount)
	if errors.Is(err, sql.ErrNoRows) {
		return api.TimersPage{}, ErrPageNotCached
	}
	if err != nil {
		return api.TimersPage{}, fmt.Errorf("load timer page %d: %w", page, err)
	}

	rows, err := c.db.Query(`
SELECT group_date, timer_id, start_time, end_time, duration, description,
	project_id, project_name, tag_id, tag_name
FROM timers WHERE page = ? ORDER BY position;`, page)
	if err != nil {
		return api.TimersPage{}, fmt.Errorf("load cached timers for page %d: %w", page, err)
	}
	defer rows.Close()

	result := api.TimersPage{TotalCount: totalCount}
	for rows.Next() {
		var (
			groupDate   string
			timerID     int64
			startTime   sql.NullString
			endTime     sql.NullString
			duration    sql.NullFloat64
			description sql.NullString
			projectID   sql.NullInt64
			projectName sql.NullString
			tagID       sql.NullInt64
			tagName     sql.NullString
		)
		if err := rows.Scan(
			&groupDate, &timerID, &startTime, &endTime, &duration, &description,
			&projectID, &projectName, &tagID, &tagName,
		); err != nil {
			return api.TimersPage{}, fmt.Errorf("scan cached timer: %w", err)
		}

		timer := api.Timer{ID: timerID}
		if timer.StartTime, err = parseNullableTime(startTime); err != nil {
			return api.TimersPage{}, err
		}
		if timer.EndTime, err = parseNullableTime(endTime); err != nil {
			return api.TimersPage{}, err
		}
		if duration.Valid {
			value := duration.Float64
			timer.Duration = &value
		}
		if description.Valid {
			value := description.String
			timer.Description = &value
		}
		if projectID.Valid {
			timer.Project = &api.Project{ID: projectID.Int64, Name: projectName.String}
		}
		if tagID.Valid {
			timer.Tag = &api.Tag{ID: tagID.Int64, Name: tagName.String}
		}

		if n := len(result.GroupedTimers); n == 0 || result.GroupedTimers[n-1].Date != groupDate {
			result.GroupedTimers = append(result.GroupedTimers, api.GroupedTimers{Date: groupDate})
		}
		last := len(result.GroupedTimers) - 1
		result.GroupedTimers[last].Timers = append(result.GroupedTimers[last].Timers, timer)
	}
	if err := rows.Err(); err != nil {
		return api.TimersPage{}, fmt.Errorf("iterate cached timers: %w", err)
	}

	return result, nil
}

// SaveProjects replaces the cached project reference list.
func (c *SQLiteCache) SaveProjects(projects []api.Project) error {
	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM projects;`); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("clear cached projects: %w", err)
	}
	for _, project := range projects {
		var clientID sql.NullInt64
		if project.ClientID != nil {
			clientID = sql.NullInt64{Int64: *project.ClientID, Valid: true}
		}
		if _, err := tx.Exec(
			`INSERT INTO projects (id, name, description, client_id) VALUES (?, ?, ?, ?);`,
			project.ID, project.Name, project.Description, clientID,
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert cached project %d: %w", project.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit projects: %w", err)
	}
	return nil
}

func (c *SQLiteCache) LoadProjects() ([]api.Project, error) {
	rows, err := c.db.Query(`SELECT id, name, description, client_id FROM projects ORDER BY name, id;`)
	if err != nil {
		return nil, fmt.Errorf("load cached projects: %w", err)
	}
	defer rows.Close()

	projects := make([]api.Project, 0, 16)
	for rows.Next() {
		var project api.Project
		var clientID sql.NullInt64
		if err := rows.Scan(&project.ID, &project.Name, &project.Description, &clientID); err != nil {
			return nil, fmt.Errorf("scan cached project: %w", err)
		}
		if clientID.Valid {
			value := clientID.Int64
			project.ClientID = &value
		}
		projects = append(projects, project)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cached projects: %w", err)
	}
	return projects, nil
}

// SaveTags replaces the cached tag reference list.
func (c *SQLiteCache) SaveTags(tags []api.Tag) error {
	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM tags;`); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("clear cached tags: %w", err)
	}
	for _, tag := range tags {
		if _, err := tx.Exec(
			`INSERT INTO tags (id, name, color) VALUES (?, ?, ?);`,
			tag.ID, tag.Name, tag.Color,
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert cached tag %d: %w", tag.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tags: %w", err)
	}
	return nil
}

func (c *SQLiteCache) LoadTags() ([]api.Tag, error) {
	rows, err := c.db.Query(`SELECT id, name, color FROM tags ORDER BY name, id;`)
	if err != nil {
		return nil, fmt.Errorf("load cached tags: %w", err)
	}
	defer rows.Close()

	tags := make([]api.Tag, 0, 16)
	for rows.Next() {
		var tag api.Tag
		if err := rows.Scan(&tag.ID, &tag.Name, &tag.Color); err != nil {
			return nil, fmt.Errorf("scan cached tag: %w", err)
		}
		tags = append(tags, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cached tags: %w", err)
	}
	return tags, nil
}

func nullableTime(value *time.Time) sql.NullString {
	if value == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: value.Format(time.RFC3339Nano), Valid: true}
}

func parseNullableTime(value sql.NullString) (*time.Time, error) {
	if !value.Valid {
		return nil, nil
	}
	parsed, err := time.Parse(time.RFC3339Nano, value.String)
	if err != nil {
		return nil, fmt.Errorf("parse cached timestamp %q: %w", value.String, err)
	}
	return &parsed, nil
}

func nullableFloat(value *float64) sql.NullFloat64 {
	if value == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *value, Valid: true}
}

func nullableString(value *string) sql.NullString {
	if value == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *value, Valid: true}
}
