package storage

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"tickdash/api"
)

func openTestCache(t *testing.T) *SQLiteCache {
	t.Helper()

	cache, err := OpenSQLite(filepath.Join(t.TempDir(), "tickdash_test.db"))
	if err != nil {
		t.Fatalf("open sqlite cache: %v", err)
	}
	t.Cleanup(func() { _ = cache.Close() })
	return cache
}

func TestSQLiteCache_TimerPageRoundTrip(t *testing.T) {
	t.Parallel()

	cache := openTestCache(t)

	start := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	end := start.Add(90 * time.Minute)
	duration := 90.0
	description := "Coding"

	page := api.TimersPage{
		TotalCount: 3,
		GroupedTimers: []api.GroupedTimers{
			{
				Date: "2024-01-02",
				Timers: []api.Timer{
					{
						ID:          2,
						StartTime:   &start,
						EndTime:     &end,
						Duration:    &duration,
						Description: &description,
						Project:     &api.Project{ID: 5, Name: "Dashboard"},
						Tag:         &api.Tag{ID: 3, Name: "deep-work"},
					},
				},
			},
			{
				Date: "2024-01-01",
				Timers: []api.Timer{
					{ID: 1, StartTime: &start},
					{ID: 3},
				},
			},
		},
	}

	if err := cache.SaveTimersPage(0, page); err != nil {
		t.Fatalf("save timers page: %v", err)
	}

	loaded, err := cache.LoadTimersPage(0)
	if err != nil {
		t.Fatalf("load timers page: %v", err)
	}
	if loaded.TotalCount != 3 {
		t.Fatalf("expected total count 3, got %d", loaded.TotalCount)
	}
	if len(loaded.GroupedTimers) != 2 {
		t.Fatalf("expected 2 date groups, got %d", len(loaded.GroupedTimers))
	}
	if loaded.GroupedTimers[0].Date != "2024-01-02" || loaded.GroupedTimers[1].Date != "2024-01-01" {
		t.Fatalf("group order not preserved: %+v", loaded.GroupedTimers)
	}

	first := loaded.GroupedTimers[0].Timers[0]
	if first.ID != 2 || first.Duration == nil || *first.Duration != 90 {
		t.Fatalf("unexpected first timer: %+v", first)
	}
	if first.Project == nil || first.Project.ID != 5 || first.Project.Name != "Dashboard" {
		t.Fatalf("project not restored: %+v", first.Project)
	}
	if first.Tag == nil || first.Tag.Name != "deep-work" {
		t.Fatalf("tag not restored: %+v", first.Tag)
	}
	if first.StartTime == nil || !first.StartTime.Equal(start) {
		t.Fatalf("start time not restored: %v", first.StartTime)
	}

	running := loaded.GroupedTimers[1].Timers[0]
	if !running.Running() {
		t.Fatalf("expected running timer, got %+v", running)
	}
	bare := loaded.GroupedTimers[1].Timers[1]
	if bare.StartTime != nil || bare.EndTime != nil || bare.Duration != nil || bare.Description != nil {
		t.Fatalf("expected bare timer, got %+v", bare)
	}
}

func TestSQLiteCache_SavingPageReplacesPreviousSnapshot(t *testing.T) {
	t.Parallel()

	cache := openTestCache(t)

	if err := cache.SaveTimersPage(1, api.TimersPage{
		TotalCount:    2,
		GroupedTimers: []api.GroupedTimers{{Date: "2024-01-01", Timers: []api.Timer{{ID: 1}, {ID: 2}}}},
	}); err != nil {
		t.Fatalf("save first snapshot: %v", err)
	}
	if err := cache.SaveTimersPage(1, api.TimersPage{
		TotalCount:    1,
		GroupedTimers: []api.GroupedTimers{{Date: "2024-01-01", Timers: []api.Timer{{ID: 9}}}},
	}); err != nil {
		t.Fatalf("save second snapshot: %v", err)
	}

	loaded, err := cache.LoadTimersPage(1)
	if err != nil {
		t.Fatalf("load timers page: %v", err)
	}
	if len(loaded.GroupedTimers) != 1 || len(loaded.GroupedTimers[0].Timers) != 1 {
		t.Fatalf("stale rows survived replacement: %+v", loaded)
	}
	if loaded.GroupedTimers[0].Timers[0].ID != 9 {
		t.Fatalf("unexpected timer after replacement: %+v", loaded.GroupedTimers[0].Timers[0])
	}
}

func TestSQLiteCache_MissingPage(t *testing.T) {
	t.Parallel()

	cache := openTestCache(t)

	if _, err := cache.LoadTimersPage(7); !errors.Is(err, ErrPageNotCached) {
		t.Fatalf("expected ErrPageNotCached, got %v", err)
	}
}

func TestSQLiteCache_ReferenceLists(t *testing.T) {
	t.Parallel()

	cache := openTestCache(t)

	clientID := int64(7)
	projects := []api.Project{
		{ID: 2, Name: "Internal"},
		{ID: 1, Name: "Dashboard", Description: "main app", ClientID: &clientID},
	}
	if err := cache.SaveProjects(projects); err != nil {
		t.Fatalf("save projects: %v", err)
	}

	loaded, err := cache.LoadProjects()
	if err != nil {
		t.Fatalf("load projects: %v", err)
	}
	if len(loaded) != 2 || loaded[0].Name != "Dashboard" || loaded[1].Name != "Internal" {
		t.Fatalf("unexpected projects: %+v", loaded)
	}
	if loaded[0].ClientID == nil || *loaded[0].ClientID != 7 {
		t.Fatalf("client id not restored: %+v", loaded[0])
	}

	tags := []api.Tag{{ID: 1, Name: "billable", Color: "#00ff00"}}
	if err := cache.SaveTags(tags); err != nil {
		t.Fatalf("save tags: %v", err)
	}
	loadedTags, err := cache.LoadTags()
	if err != nil {
		t.Fatalf("load tags: %v", err)
	}
	if len(loadedTags) != 1 || loadedTags[0].Color != "#00ff00" {
		t.Fatalf("unexpected tags: %+v", loadedTags)
	}
}
