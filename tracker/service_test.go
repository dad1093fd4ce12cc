package tracker

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"tickdash/api"
	"tickdash/storage"
)

type fakeBackend struct {
	mu      sync.Mutex
	pages   map[int]api.TimersPage
	getErr  error
	getHook func(ctx context.Context, page int)
	updates []recordedUpdate
	creates []api.TimerCreate
	fetches int
}

type recordedUpdate struct {
	id     int64
	update api.TimerUpdate
}

func (f *fakeBackend) GetTimers(ctx context.Context, page int) (api.TimersPage, error) {
	if f.getHook != nil {
		f.getHook(ctx, page)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if f.getErr != nil {
		return api.TimersPage{}, f.getErr
	}
	return f.pages[page], nil
}

func (f *fakeBackend) CreateTimer(ctx context.Context, create api.TimerCreate) (api.Timer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates = append(f.creates, create)
	return api.Timer{ID: 100, StartTime: &create.StartTime}, nil
}

func (f *fakeBackend) UpdateTimer(ctx context.Context, id int64, update api.TimerUpdate) (api.Timer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, recordedUpdate{id: id, update: update})
	return api.Timer{ID: id}, nil
}

func (f *fakeBackend) recordedUpdates() []recordedUpdate {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedUpdate(nil), f.updates...)
}

func (f *fakeBackend) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

func strPtr(value string) *string { return &value }

func f64Ptr(value float64) *float64 { return &value }

func i64Ptr(value int64) *int64 { return &value }

func timePtr(value time.Time) *time.Time { return &value }

func samplePage() api.TimersPage {
	return api.TimersPage{
		TotalCount: 3,
		GroupedTimers: []api.GroupedTimers{
			{
				Date: "2024-01-01",
				Timers: []api.Timer{
					{
						ID:          1,
						Description: strPtr("Coding"),
						Project:     &api.Project{ID: 5, Name: "Dashboard"},
						Duration:    f64Ptr(30),
						StartTime:   timePtr(time.Date(2024, 1, 1, 9, 0, 0, 0, time.Local)),
						EndTime:     timePtr(time.Date(2024, 1, 1, 9, 30, 0, 0, time.Local)),
					},
					{
						ID:          2,
						Description: strPtr("Review"),
						Project:     &api.Project{ID: 5, Name: "Dashboard"},
						Duration:    f64Ptr(15),
					},
					{
						ID:          3,
						Description: strPtr("Coding"),
						Project:     &api.Project{ID: 5, Name: "Dashboard"},
						Duration:    f64Ptr(45),
					},
				},
			},
		},
	}
}

func TestLoadPage_GroupsFetchedTimers(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{pages: map[int]api.TimersPage{0: samplePage()}}
	service := NewService(backend, Options{})

	if err := service.LoadPage(context.Background(), 0); err != nil {
		t.Fatalf("load page: %v", err)
	}

	snapshot := service.Snapshot()
	if snapshot.State != Ready {
		t.Fatalf("expected Ready state, got %v", snapshot.State)
	}
	if snapshot.TotalPages != 3 {
		t.Fatalf("expected 3 total pages, got %d", snapshot.TotalPages)
	}
	if len(snapshot.Days) != 1 {
		t.Fatalf("expected 1 day group, got %d", len(snapshot.Days))
	}

	units := snapshot.Days[0].Units
	if len(units) != 2 {
		t.Fatalf("expected 2 display units, got %d", len(units))
	}
	if !units[0].IsCluster() || len(units[0].Cluster.Entries) != 2 {
		t.Fatalf("expected Coding cluster of 2, got %+v", units[0])
	}
	if units[0].Cluster.AggregateDuration != 75 {
		t.Fatalf("expected aggregate 75, got %v", units[0].Cluster.AggregateDuration)
	}
	if units[1].Single == nil || units[1].Single.ID != 2 {
		t.Fatalf("expected Review singleton, got %+v", units[1])
	}
}

func TestLoadPage_FailureRetainsPreviousData(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{pages: map[int]api.TimersPage{0: samplePage()}}
	service := NewService(backend, Options{})

	if err := service.LoadPage(context.Background(), 0); err != nil {
		t.Fatalf("load page: %v", err)
	}

	backend.mu.Lock()
	backend.getErr = errors.New("connection refused")
	backend.mu.Unlock()

	if err := service.LoadPage(context.Background(), 0); err == nil {
		t.Fatalf("expected fetch error")
	}

	snapshot := service.Snapshot()
	if snapshot.State != FetchFailed {
		t.Fatalf("expected FetchFailed, got %v", snapshot.State)
	}
	if len(snapshot.Days) != 1 {
		t.Fatalf("previous data must be retained, got %+v", snapshot.Days)
	}
	if snapshot.LastError == "" {
		t.Fatalf("expected surfaced error message")
	}
}

func TestLoadPage_SupersededFetchIsDiscarded(t *testing.T) {
	t.Parallel()

	secondPage := api.TimersPage{
		TotalCount: 3,
		GroupedTimers: []api.GroupedTimers{
			{
				Date: "2024-01-02",
				Timers: []api.Timer{
					{ID: 7, Description: strPtr("Planning"), Duration: f64Ptr(20)},
				},
			},
		},
	}

	firstStarted := make(chan struct{})
	release := make(chan struct{})
	backend := &fakeBackend{pages: map[int]api.TimersPage{0: samplePage(), 1: secondPage}}
	backend.getHook = func(ctx context.Context, page int) {
		if page != 0 {
			return
		}
		close(firstStarted)
		select {
		case <-release:
		case <-ctx.Done():
		}
	}
	service := NewService(backend, Options{})

	firstDone := make(chan error, 1)
	go func() { firstDone <- service.LoadPage(context.Background(), 0) }()
	<-firstStarted

	if err := service.LoadPage(context.Background(), 1); err != nil {
		t.Fatalf("load page 1: %v", err)
	}
	close(release)
	if err := <-firstDone; err != nil {
		t.Fatalf("superseded load must report nothing, got %v", err)
	}

	snapshot := service.Snapshot()
	if snapshot.State != Ready || snapshot.Page != 1 {
		t.Fatalf("expected Ready on page 1, got %v page %d", snapshot.State, snapshot.Page)
	}
	if len(snapshot.Days) != 1 || snapshot.Days[0].Date != "2024-01-02" {
		t.Fatalf("stale page 0 result overwrote page 1: %+v", snapshot.Days)
	}
}

func TestLoadPage_UnauthorizedPropagatesDistinctly(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{getErr: api.ErrUnauthorized}
	service := NewService(backend, Options{})

	err := service.LoadPage(context.Background(), 0)
	if !errors.Is(err, api.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestLoadPage_ClampsToKnownRange(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{pages: map[int]api.TimersPage{
		0: samplePage(),
		2: {TotalCount: 3},
	}}
	service := NewService(backend, Options{})

	if err := service.LoadPage(context.Background(), 0); err != nil {
		t.Fatalf("load first page: %v", err)
	}
	if err := service.LoadPage(context.Background(), 99); err != nil {
		t.Fatalf("load clamped page: %v", err)
	}
	if got := service.Snapshot().Page; got != 2 {
		t.Fatalf("expected page clamped to 2, got %d", got)
	}

	if err := service.LoadPage(context.Background(), -5); err != nil {
		t.Fatalf("load negative page: %v", err)
	}
	if got := service.Snapshot().Page; got != 0 {
		t.Fatalf("expected page clamped to 0, got %d", got)
	}
}

func TestLoadPage_FallsBackToCacheWhenNothingRetained(t *testing.T) {
	t.Parallel()

	cache, err := storage.OpenSQLite(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	defer cache.Close()

	if err := cache.SaveTimersPage(0, samplePage()); err != nil {
		t.Fatalf("seed cache: %v", err)
	}

	backend := &fakeBackend{getErr: errors.New("connection refused")}
	service := NewService(backend, Options{Cache: cache})

	if err := service.LoadPage(context.Background(), 0); err == nil {
		t.Fatalf("expected fetch error")
	}

	snapshot := service.Snapshot()
	if snapshot.State != FetchFailed {
		t.Fatalf("expected FetchFailed, got %v", snapshot.State)
	}
	if !snapshot.FromCache {
		t.Fatalf("expected cached data to be marked as such")
	}
	if len(snapshot.Days) != 1 || len(snapshot.Days[0].Units) != 2 {
		t.Fatalf("expected cached page to render, got %+v", snapshot.Days)
	}
}

func TestPageChangeDiscardsPendingEditsAndExpandState(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{pages: map[int]api.TimersPage{
		0: samplePage(),
		1: {TotalCount: 3},
	}}
	service := NewService(backend, Options{})

	if err := service.LoadPage(context.Background(), 0); err != nil {
		t.Fatalf("load page: %v", err)
	}

	service.ToggleGroup("2024-01-01/1")
	if !service.Snapshot().Expanded["2024-01-01/1"] {
		t.Fatalf("expected group to be expanded")
	}

	service.ScheduleEdit("description", RecordEdit{ID: 1, Description: strPtr("changed")})

	if err := service.LoadPage(context.Background(), 1); err != nil {
		t.Fatalf("load second page: %v", err)
	}

	snapshot := service.Snapshot()
	if len(snapshot.Expanded) != 0 {
		t.Fatalf("expand state must reset across pages, got %+v", snapshot.Expanded)
	}

	// The scheduled edit was discarded by the page change; flushing must not
	// issue an update.
	service.FlushEdit(1, "description")
	if updates := backend.recordedUpdates(); len(updates) != 0 {
		t.Fatalf("discarded edit still saved: %+v", updates)
	}
}

func TestSaveEdit_SingleRecordSendsOnlyChangedFields(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{pages: map[int]api.TimersPage{0: samplePage()}}
	service := NewService(backend, Options{})

	if err := service.LoadPage(context.Background(), 0); err != nil {
		t.Fatalf("load page: %v", err)
	}

	if err := service.SaveEdit(context.Background(), RecordEdit{
		ID:          2,
		Description: strPtr("Code review"),
	}); err != nil {
		t.Fatalf("save edit: %v", err)
	}

	updates := backend.recordedUpdates()
	if len(updates) != 1 {
		t.Fatalf("expected 1 update, got %d", len(updates))
	}
	update := updates[0]
	if update.id != 2 {
		t.Fatalf("wrong record updated: %d", update.id)
	}
	if update.update.Description == nil || *update.update.Description != "Code review" {
		t.Fatalf("description missing from payload: %+v", update.update)
	}
	if update.update.StartTime != nil || update.update.EndTime != nil || update.update.ProjectID != nil {
		t.Fatalf("unchanged fields leaked into payload: %+v", update.update)
	}
}

func TestSaveEdit_ClusterFansOutToEveryMember(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{pages: map[int]api.TimersPage{0: samplePage()}}
	service := NewService(backend, Options{})

	if err := service.LoadPage(context.Background(), 0); err != nil {
		t.Fatalf("load page: %v", err)
	}

	// Record 1 is the representative of the Coding cluster {1, 3}.
	if err := service.SaveEdit(context.Background(), RecordEdit{
		ID:        1,
		ProjectID: i64Ptr(9),
	}); err != nil {
		t.Fatalf("save cluster edit: %v", err)
	}

	updates := backend.recordedUpdates()
	if len(updates) != 2 {
		t.Fatalf("expected fan-out of 2 updates, got %d", len(updates))
	}
	if updates[0].id != 1 || updates[1].id != 3 {
		t.Fatalf("unexpected fan-out targets: %+v", updates)
	}
	for _, update := range updates {
		if update.update.ProjectID == nil || *update.update.ProjectID != 9 {
			t.Fatalf("fan-out payload mismatch: %+v", update.update)
		}
	}
}

func TestSaveEdit_SuccessTriggersRefetch(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{pages: map[int]api.TimersPage{0: samplePage()}}
	service := NewService(backend, Options{})

	if err := service.LoadPage(context.Background(), 0); err != nil {
		t.Fatalf("load page: %v", err)
	}
	before := backend.fetchCount()

	if err := service.SaveEdit(context.Background(), RecordEdit{ID: 2, Description: strPtr("x")}); err != nil {
		t.Fatalf("save edit: %v", err)
	}
	if after := backend.fetchCount(); after != before+1 {
		t.Fatalf("expected one re-fetch after save, got %d", after-before)
	}
}

func TestSaveEdit_InvalidTimeInputIsDroppedSilently(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{pages: map[int]api.TimersPage{0: samplePage()}}
	service := NewService(backend, Options{})

	if err := service.LoadPage(context.Background(), 0); err != nil {
		t.Fatalf("load page: %v", err)
	}

	// The only change is a garbage start time; the edit must degrade to a
	// no-op with no update call.
	if err := service.SaveEdit(context.Background(), RecordEdit{
		ID:         1,
		StartInput: strPtr("xx"),
	}); err != nil {
		t.Fatalf("save edit: %v", err)
	}
	if updates := backend.recordedUpdates(); len(updates) != 0 {
		t.Fatalf("invalid edit still saved: %+v", updates)
	}
}

func TestBuildUpdate_RecomputesDurationFromEndpoints(t *testing.T) {
	t.Parallel()

	record := api.Timer{
		ID:        1,
		StartTime: timePtr(time.Date(2024, 1, 1, 9, 0, 0, 0, time.Local)),
		EndTime:   timePtr(time.Date(2024, 1, 1, 9, 30, 0, 0, time.Local)),
		Duration:  f64Ptr(30),
	}

	update := buildUpdate(record, RecordEdit{ID: 1, EndInput: strPtr("1015")})
	if update.EndTime == nil {
		t.Fatalf("expected end time in payload: %+v", update)
	}
	if update.EndTime.Hour() != 10 || update.EndTime.Minute() != 15 {
		t.Fatalf("unexpected end time: %v", update.EndTime)
	}
	if update.Duration == nil || *update.Duration != 75 {
		t.Fatalf("expected recomputed duration 75, got %+v", update.Duration)
	}
}

func TestBuildUpdate_TypedDurationWins(t *testing.T) {
	t.Parallel()

	record := api.Timer{
		ID:        1,
		StartTime: timePtr(time.Date(2024, 1, 1, 9, 0, 0, 0, time.Local)),
		EndTime:   timePtr(time.Date(2024, 1, 1, 9, 30, 0, 0, time.Local)),
		Duration:  f64Ptr(30),
	}

	update := buildUpdate(record, RecordEdit{
		ID:            1,
		EndInput:      strPtr("1015"),
		DurationInput: strPtr("02:00:00"),
	})
	if update.Duration == nil || *update.Duration != 120 {
		t.Fatalf("typed duration must win, got %+v", update.Duration)
	}
}

func TestScheduleEdit_DebounceReplacesEarlierEdit(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{pages: map[int]api.TimersPage{0: samplePage()}}
	service := NewService(backend, Options{SaveDebounce: 20 * time.Millisecond})

	if err := service.LoadPage(context.Background(), 0); err != nil {
		t.Fatalf("load page: %v", err)
	}

	service.ScheduleEdit("description", RecordEdit{ID: 2, Description: strPtr("first")})
	service.ScheduleEdit("description", RecordEdit{ID: 2, Description: strPtr("second")})

	deadline := time.Now().Add(2 * time.Second)
	for {
		updates := backend.recordedUpdates()
		if len(updates) == 1 {
			if got := *updates[0].update.Description; got != "second" {
				t.Fatalf("expected last edit to win, got %q", got)
			}
			break
		}
		if len(updates) > 1 {
			t.Fatalf("earlier edit was not replaced: %+v", updates)
		}
		if time.Now().After(deadline) {
			t.Fatalf("scheduled save never ran")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestFlushEditRunsPendingSaveImmediately(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{pages: map[int]api.TimersPage{0: samplePage()}}
	service := NewService(backend, Options{SaveDebounce: time.Hour})

	if err := service.LoadPage(context.Background(), 0); err != nil {
		t.Fatalf("load page: %v", err)
	}

	service.ScheduleEdit("description", RecordEdit{ID: 2, Description: strPtr("flushed")})
	service.FlushEdit(2, "description")

	updates := backend.recordedUpdates()
	if len(updates) != 1 || *updates[0].update.Description != "flushed" {
		t.Fatalf("flush did not run pending save: %+v", updates)
	}
}

func TestStartAndStopTimer(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.Local)
	backend := &fakeBackend{pages: map[int]api.TimersPage{0: samplePage()}}
	service := NewService(backend, Options{Now: func() time.Time { return now }})

	started, err := service.StartTimer(context.Background(), "New work", 5)
	if err != nil {
		t.Fatalf("start timer: %v", err)
	}
	if started.ID != 100 {
		t.Fatalf("unexpected started timer: %+v", started)
	}
	if len(backend.creates) != 1 || !backend.creates[0].StartTime.Equal(now) {
		t.Fatalf("unexpected create payload: %+v", backend.creates)
	}
	if backend.creates[0].ProjectID == nil || *backend.creates[0].ProjectID != 5 {
		t.Fatalf("project missing from create payload: %+v", backend.creates[0])
	}

	if _, err := service.StopTimer(context.Background(), 100); err != nil {
		t.Fatalf("stop timer: %v", err)
	}
	updates := backend.recordedUpdates()
	if len(updates) != 1 || updates[0].update.EndTime == nil || !updates[0].update.EndTime.Equal(now) {
		t.Fatalf("unexpected stop payload: %+v", updates)
	}
}

func TestRunningPicksNewestUnstoppedTimer(t *testing.T) {
	t.Parallel()

	page := samplePage()
	page.GroupedTimers[0].Timers = append(page.GroupedTimers[0].Timers,
		api.Timer{ID: 7, StartTime: timePtr(time.Date(2024, 1, 1, 11, 0, 0, 0, time.Local))},
		api.Timer{ID: 8, StartTime: timePtr(time.Date(2024, 1, 1, 13, 0, 0, 0, time.Local))},
	)
	backend := &fakeBackend{pages: map[int]api.TimersPage{0: page}}
	service := NewService(backend, Options{})

	if err := service.LoadPage(context.Background(), 0); err != nil {
		t.Fatalf("load page: %v", err)
	}

	running := service.Running()
	if running == nil || running.ID != 8 {
		t.Fatalf("expected timer 8 running, got %+v", running)
	}
}
