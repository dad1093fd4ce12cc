// Package tracker drives the paged timer view: it fetches pages from the
// backend, runs them through the grouping engine, tracks expand/collapse
// state, and mediates edits back to the backend.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"tickdash/api"
	"tickdash/grouping"
	"tickdash/internal/timefmt"
	"tickdash/storage"
)

// State is the per-page-load lifecycle of the view.
type State int

const (
	Idle State = iota
	Fetching
	Ready
	FetchFailed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Fetching:
		return "fetching"
	case Ready:
		return "ready"
	case FetchFailed:
		return "fetch-failed"
	default:
		return "unknown"
	}
}

// DayGroup is one rendered date section: the backend's opaque date label plus
// the grouped display units derived from its timers.
type DayGroup struct {
	Date  string
	Units []grouping.DisplayUnit
}

// Snapshot is an immutable copy of the view state handed to renderers.
type Snapshot struct {
	State      State
	Page       int
	TotalPages int
	FromCache  bool
	Days       []DayGroup
	Expanded   map[string]bool
	LastError  string
}

// RecordEdit carries the blurred field values for one row. Nil fields were
// not touched. Time inputs arrive as the raw typed strings and are normalized
// here; inputs that fail normalization are silently dropped so the prior
// value survives.
type RecordEdit struct {
	ID            int64
	Description   *string
	StartInput    *string
	EndInput      *string
	DurationInput *string
	ProjectID     *int64
	TagID         *int64
}

// Backend is the slice of the API client the driver needs.
type Backend interface {
	GetTimers(ctx context.Context, page int) (api.TimersPage, error)
	CreateTimer(ctx context.Context, create api.TimerCreate) (api.Timer, error)
	UpdateTimer(ctx context.Context, id int64, update api.TimerUpdate) (api.Timer, error)
}

type Service struct {
	client Backend
	cache  *storage.SQLiteCache
	log    *zap.Logger

	now func() time.Time

	mu         sync.Mutex
	state      State
	page       int
	totalPages int
	fromCache  bool
	raw        []api.GroupedTimers
	days       []DayGroup
	expanded   map[string]bool
	lastErr    error

	fetchSeq    int
	fetchCancel context.CancelFunc

	saves *saveScheduler
}

type Options struct {
	// Cache, when set, persists fetched pages and serves them back after a
	// failed fetch with no in-memory data to retain.
	Cache *storage.SQLiteCache

	Logger *zap.Logger

	// SaveDebounce is the keystroke-to-save delay; zero disables scheduling
	// so only explicit blurs save.
	SaveDebounce time.Duration

	// Now is the clock used for start/stop timestamps. Defaults to time.Now.
	Now func() time.Time
}

func NewService(client Backend, opts Options) *Service {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		client:   client,
		cache:    opts.Cache,
		log:      log,
		now:      now,
		state:    Idle,
		expanded: make(map[string]bool),
		saves:    newSaveScheduler(opts.SaveDebounce),
	}
}

// Snapshot returns a copy of the current view state.
func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := Snapshot{
		State:      s.state,
		Page:       s.page,
		TotalPages: s.totalPages,
		FromCache:  s.fromCache,
		Days:       append([]DayGroup(nil), s.days...),
		Expanded:   make(map[string]bool, len(s.expanded)),
	}
	for key := range s.expanded {
		snapshot.Expanded[key] = true
	}
	if s.lastErr != nil {
		snapshot.LastError = s.lastErr.Error()
	}
	return snapshot
}

// LoadPage fetches the given page, clamped to the known page range, and
// re-groups it. A newer LoadPage cancels the in-flight fetch of an older one,
// and unsaved scheduled edits are discarded on any page change.
func (s *Service) LoadPage(ctx context.Context, page int) error {
	s.mu.Lock()
	page = clampPage(page, s.totalPages)
	if page != s.page {
		s.saves.CancelAll()
		s.expanded = make(map[string]bool)
	}
	s.page = page
	s.state = Fetching
	if s.fetchCancel != nil {
		s.fetchCancel()
	}
	fetchCtx, cancel := context.WithCancel(ctx)
	s.fetchCancel = cancel
	s.fetchSeq++
	seq := s.fetchSeq
	s.mu.Unlock()

	result, err := s.client.GetTimers(fetchCtx, page)
	cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	if seq != s.fetchSeq {
		// A newer load superseded this one; its outcome is irrelevant.
		return nil
	}

	if err != nil {
		if errors.Is(err, api.ErrUnauthorized) {
			s.state = FetchFailed
			s.lastErr = err
			return err
		}
		s.log.Warn("timer page fetch failed", zap.Int("page", page), zap.Error(err))
		s.state = FetchFailed
		s.lastErr = err
		if len(s.raw) == 0 && s.cache != nil {
			if cached, cacheErr := s.cache.LoadTimersPage(page); cacheErr == nil {
				s.applyPageLocked(cached, true)
				s.state = FetchFailed
				return err
			}
		}
		return err
	}

	s.applyPageLocked(result, false)
	s.state = Ready
	s.lastErr = nil

	if s.cache != nil {
		if cacheErr := s.cache.SaveTimersPage(page, result); cacheErr != nil {
			s.log.Warn("timer page cache write failed", zap.Int("page", page), zap.Error(cacheErr))
		}
	}
	return nil
}

func (s *Service) applyPageLocked(result api.TimersPage, fromCache bool) {
	s.raw = result.GroupedTimers
	s.totalPages = result.TotalCount
	s.fromCache = fromCache

	days := make([]DayGroup, 0, len(result.GroupedTimers))
	for _, group := range result.GroupedTimers {
		days = append(days, DayGroup{
			Date:  group.Date,
			Units: grouping.GroupTimers(group.Timers),
		})
	}
	s.days = days
}

// Refresh re-fetches the current page.
func (s *Service) Refresh(ctx context.Context) error {
	s.mu.Lock()
	page := s.page
	s.mu.Unlock()
	return s.LoadPage(ctx, page)
}

// ToggleGroup flips the expand state for a cluster key.
func (s *Service) ToggleGroup(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.expanded[key] {
		delete(s.expanded, key)
		return
	}
	s.expanded[key] = true
}

// StartTimer creates a running timer starting now and refreshes the view.
func (s *Service) StartTimer(ctx context.Context, description string, projectID int64) (api.Timer, error) {
	create := api.TimerCreate{StartTime: s.now()}
	if description != "" {
		create.Description = &description
	}
	if projectID > 0 {
		create.ProjectID = &projectID
	}

	started, err := s.client.CreateTimer(ctx, create)
	if err != nil {
		return api.Timer{}, fmt.Errorf("start timer: %w", err)
	}
	if err := s.Refresh(ctx); err != nil {
		s.log.Warn("refresh after start failed", zap.Error(err))
	}
	return started, nil
}

// StopTimer sets the end time of a running timer to now and refreshes.
func (s *Service) StopTimer(ctx context.Context, id int64) (api.Timer, error) {
	end := s.now()
	stopped, err := s.client.UpdateTimer(ctx, id, api.TimerUpdate{EndTime: &end})
	if err != nil {
		return api.Timer{}, fmt.Errorf("stop timer %d: %w", id, err)
	}
	if err := s.Refresh(ctx); err != nil {
		s.log.Warn("refresh after stop failed", zap.Error(err))
	}
	return stopped, nil
}

// Running returns the newest fetched record without an end time, or nil.
// There is no server-side exclusivity; this is a client-side convention.
func (s *Service) Running() *api.Timer {
	s.mu.Lock()
	defer s.mu.Unlock()

	var newest *api.Timer
	for _, group := range s.raw {
		for i := range group.Timers {
			timer := group.Timers[i]
			if !timer.Running() {
				continue
			}
			if newest == nil || (timer.StartTime != nil && newest.StartTime != nil && timer.StartTime.After(*newest.StartTime)) {
				copied := timer
				newest = &copied
			}
		}
	}
	return newest
}

// scheduledSaveTimeout bounds deferred saves, which fire after the request
// that scheduled them has already completed.
const scheduledSaveTimeout = 30 * time.Second

// ScheduleEdit queues a save for a record field after the debounce delay,
// replacing any previously scheduled save for the same record and field. The
// deferred save runs on a service-owned context, not the caller's: by the
// time the timer fires the scheduling request is gone and its context
// cancelled.
func (s *Service) ScheduleEdit(field string, edit RecordEdit) {
	s.saves.Schedule(edit.ID, field, func() {
		ctx, cancel := context.WithTimeout(context.Background(), scheduledSaveTimeout)
		defer cancel()
		if err := s.SaveEdit(ctx, edit); err != nil {
			s.log.Warn("scheduled save failed", zap.Int64("timer", edit.ID), zap.String("field", field), zap.Error(err))
		}
	})
}

// FlushEdit runs the pending scheduled save for a record field immediately.
// Called on blur.
func (s *Service) FlushEdit(id int64, field string) {
	s.saves.Flush(id, field)
}

// SaveEdit applies a blurred edit. Rows that are cluster representatives fan
// the identical change out to every member, since the grouping key encodes
// "these are the same logical task". On success the current page is
// re-fetched; on failure the fetched data is left untouched so the user can
// retry.
func (s *Service) SaveEdit(ctx context.Context, edit RecordEdit) error {
	s.mu.Lock()
	record, ok := s.findRecordLocked(edit.ID)
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("timer %d is not on the current page", edit.ID)
	}
	members := s.clusterMembersLocked(edit.ID)
	s.mu.Unlock()

	update := buildUpdate(record, edit)
	if update.IsZero() {
		return nil
	}

	targets := []api.Timer{record}
	if len(members) > 1 {
		targets = members
	}

	for _, target := range targets {
		if _, err := s.client.UpdateTimer(ctx, target.ID, update); err != nil {
			s.log.Warn("timer update failed",
				zap.Int64("timer", target.ID),
				zap.Int("fanout", len(targets)),
				zap.Error(err))
			return fmt.Errorf("update timer %d: %w", target.ID, err)
		}
	}

	if err := s.Refresh(ctx); err != nil {
		s.log.Warn("refresh after save failed", zap.Error(err))
	}
	return nil
}

// buildUpdate turns the typed edit into a partial update against the current
// record. Invalid time input degrades to "field unchanged" rather than an
// error, per the edit-boundary contract.
func buildUpdate(record api.Timer, edit RecordEdit) api.TimerUpdate {
	var update api.TimerUpdate

	if edit.Description != nil && *edit.Description != record.DescriptionText() {
		update.Description = edit.Description
	}
	if edit.ProjectID != nil && *edit.ProjectID != record.ProjectID() {
		update.ProjectID = edit.ProjectID
	}
	if edit.TagID != nil {
		update.TagID = edit.TagID
	}

	if edit.StartInput != nil && record.StartTime != nil {
		if combined, err := timefmt.CombineDateAndTime(*record.StartTime, *edit.StartInput); err == nil {
			if !combined.Equal(*record.StartTime) {
				update.StartTime = &combined
			}
		}
	}
	if edit.EndInput != nil {
		base := record.EndTime
		if base == nil {
			base = record.StartTime
		}
		if base != nil {
			if combined, err := timefmt.CombineDateAndTime(*base, *edit.EndInput); err == nil {
				if record.EndTime == nil || !combined.Equal(*record.EndTime) {
					update.EndTime = &combined
				}
			}
		}
	}

	durationTyped := false
	if edit.DurationInput != nil {
		if normalized, ok := timefmt.NormalizeTimeInput(*edit.DurationInput); ok {
			if minutes, err := timefmt.DurationToMinutes(normalized); err == nil {
				if record.Duration == nil || *record.Duration != minutes {
					update.Duration = &minutes
					durationTyped = true
				}
			}
		}
	}

	// With both endpoints known and no explicitly typed duration, keep the
	// stored duration consistent with the interval.
	if !durationTyped && (update.StartTime != nil || update.EndTime != nil) {
		start := record.StartTime
		if update.StartTime != nil {
			start = update.StartTime
		}
		end := record.EndTime
		if update.EndTime != nil {
			end = update.EndTime
		}
		if start != nil && end != nil && end.After(*start) {
			minutes := end.Sub(*start).Minutes()
			update.Duration = &minutes
		}
	}

	return update
}

func (s *Service) findRecordLocked(id int64) (api.Timer, bool) {
	for _, group := range s.raw {
		for _, timer := range group.Timers {
			if timer.ID == id {
				return timer, true
			}
		}
	}
	return api.Timer{}, false
}

// clusterMembersLocked returns the cluster entries when id is a cluster
// representative on the current page, otherwise nil.
func (s *Service) clusterMembersLocked(id int64) []api.Timer {
	for _, day := range s.days {
		for _, unit := range day.Units {
			if unit.IsCluster() && unit.Cluster.Representative().ID == id {
				return unit.Cluster.Entries
			}
		}
	}
	return nil
}

func clampPage(page, totalPages int) int {
	if page < 0 {
		return 0
	}
	if totalPages > 0 && page > totalPages-1 {
		return totalPages - 1
	}
	return page
}
