// Package web serves a localhost-only single-user dashboard; it intentionally
// has no auth/CSRF protection in this mode.
package web

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"tickdash/api"
	"tickdash/config"
	"tickdash/storage"
	"tickdash/tracker"
)

//go:embed templates/*.html
var templateFS embed.FS

type Server struct {
	tracker *tracker.Service
	client  api.Client
	cache   *storage.SQLiteCache
	cfg     config.Config
	log     *zap.Logger
	mux     *http.ServeMux
}

type timerEditRequest struct {
	Description *string `json:"description"`
	Start       *string `json:"start"`
	End         *string `json:"end"`
	Duration    *string `json:"duration"`
	ProjectID   *int64  `json:"projectId"`
	TagID       *int64  `json:"tagId"`
}

type timerStartRequest struct {
	Description string `json:"description"`
	ProjectID   int64  `json:"projectId"`
}

type groupToggleRequest struct {
	Key string `json:"key"`
}

// NewServer builds the dashboard handler. The cache, when non-nil, persists
// project and tag reference lists so edit dropdowns keep working while the
// backend is unreachable.
func NewServer(trackerService *tracker.Service, client api.Client, cache *storage.SQLiteCache, cfg config.Config, log *zap.Logger) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	server := &Server{
		tracker: trackerService,
		client:  client,
		cache:   cache,
		cfg:     cfg,
		log:     log,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", server.handleDashboard)
	mux.HandleFunc("POST /toggle", server.handleToggleForm)
	mux.HandleFunc("GET /projects", server.handleProjectsPage)
	mux.HandleFunc("GET /clients", server.handleClientsPage)

	mux.HandleFunc("GET /api/timers", server.handleAPITimers)
	mux.HandleFunc("POST /api/timer/start", server.handleAPITimerStart)
	mux.HandleFunc("POST /api/timer/{id}/stop", server.handleAPITimerStop)
	mux.HandleFunc("POST /api/timer/{id}/edit", server.handleAPITimerEdit)
	mux.HandleFunc("PATCH /api/timer/{id}", server.handleAPITimerPatch)
	mux.HandleFunc("POST /api/group/toggle", server.handleAPIGroupToggle)

	mux.HandleFunc("GET /api/projects", server.handleAPIProjects)
	mux.HandleFunc("POST /api/project", server.handleAPIProjectCreate)
	mux.HandleFunc("PATCH /api/project/{id}", server.handleAPIProjectPatch)
	mux.HandleFunc("DELETE /api/project/{id}", server.handleAPIProjectDelete)

	mux.HandleFunc("GET /api/clients", server.handleAPIClients)
	mux.HandleFunc("POST /api/client", server.handleAPIClientCreate)
	mux.HandleFunc("PATCH /api/client/{id}", server.handleAPIClientPatch)
	mux.HandleFunc("DELETE /api/client/{id}", server.handleAPIClientDelete)

	mux.HandleFunc("GET /api/projects/all", server.handleAPIProjectsAll)
	mux.HandleFunc("GET /api/tags", server.handleAPITags)
	server.mux = mux

	return server
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleDashboard loads the requested page and renders the grouped view. A
// failed fetch still renders whatever data survived it, with a 502 status so
// clients can tell the page is stale.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	page := s.tracker.Snapshot().Page
	if raw := strings.TrimSpace(r.URL.Query().Get("page")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			http.Error(w, "invalid page number", http.StatusBadRequest)
			return
		}
		page = parsed
	}

	loadErr := s.tracker.LoadPage(r.Context(), page)
	if errors.Is(loadErr, api.ErrUnauthorized) {
		http.Error(w, "session expired, log in again", http.StatusUnauthorized)
		return
	}

	snapshot := s.tracker.Snapshot()
	view := buildDashboardView(snapshot)
	if loadErr != nil {
		w.WriteHeader(http.StatusBadGateway)
	}
	if err := renderTemplate(w, "dashboard.html", view); err != nil {
		s.log.Warn("render dashboard failed", zap.Error(err))
		if loadErr == nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}

func (s *Server) handleToggleForm(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimSpace(r.FormValue("key"))
	if key == "" {
		http.Error(w, "missing group key", http.StatusBadRequest)
		return
	}
	s.tracker.ToggleGroup(key)

	target := "/"
	if page := strings.TrimSpace(r.FormValue("page")); page != "" {
		target = "/?page=" + page
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (s *Server) handleAPITimers(w http.ResponseWriter, r *http.Request) {
	page := s.tracker.Snapshot().Page
	if raw := strings.TrimSpace(r.URL.Query().Get("page")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			http.Error(w, "invalid page number", http.StatusBadRequest)
			return
		}
		page = parsed
	}

	loadErr := s.tracker.LoadPage(r.Context(), page)
	if errors.Is(loadErr, api.ErrUnauthorized) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	snapshot := s.tracker.Snapshot()
	status := http.StatusOK
	if loadErr != nil {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, buildDashboardView(snapshot))
}

func (s *Server) handleAPITimerStart(w http.ResponseWriter, r *http.Request) {
	var body timerStartRequest
	if err := decodeJSON(r, &body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	started, err := s.tracker.StartTimer(r.Context(), strings.TrimSpace(body.Description), body.ProjectID)
	if err != nil {
		http.Error(w, fmt.Sprintf("start timer: %v", err), upstreamStatus(err))
		return
	}
	writeJSON(w, http.StatusCreated, started)
}

func (s *Server) handleAPITimerStop(w http.ResponseWriter, r *http.Request) {
	id, err := parsePositiveInt64(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid timer id", http.StatusBadRequest)
		return
	}

	stopped, err := s.tracker.StopTimer(r.Context(), id)
	if err != nil {
		http.Error(w, fmt.Sprintf("stop timer: %v", err), upstreamStatus(err))
		return
	}
	writeJSON(w, http.StatusOK, stopped)
}

// handleAPITimerEdit schedules debounced saves for fields as they are typed.
// Each field gets its own pending save so later keystrokes replace earlier
// ones; the PATCH request sent on blur flushes whatever is still pending.
func (s *Server) handleAPITimerEdit(w http.ResponseWriter, r *http.Request) {
	id, err := parsePositiveInt64(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid timer id", http.StatusBadRequest)
		return
	}

	var body timerEditRequest
	if err := decodeJSON(r, &body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	edits := fieldEdits(id, body)
	if len(edits) == 0 {
		http.Error(w, "no fields to edit", http.StatusBadRequest)
		return
	}
	for field, edit := range edits {
		s.tracker.ScheduleEdit(field, edit)
	}
	writeJSON(w, http.StatusAccepted, map[string]int{"scheduled": len(edits)})
}

// handleAPITimerPatch applies a blurred row edit. The tracker fans the change
// out to every cluster member when the id is a cluster representative.
func (s *Server) handleAPITimerPatch(w http.ResponseWriter, r *http.Request) {
	id, err := parsePositiveInt64(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid timer id", http.StatusBadRequest)
		return
	}

	var body timerEditRequest
	if err := decodeJSON(r, &body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// Blur: run any keystroke save still pending for these fields first so
	// the scheduler cannot fire again after the authoritative save below.
	for field := range fieldEdits(id, body) {
		s.tracker.FlushEdit(id, field)
	}

	edit := tracker.RecordEdit{
		ID:            id,
		Description:   body.Description,
		StartInput:    body.Start,
		EndInput:      body.End,
		DurationInput: body.Duration,
		ProjectID:     body.ProjectID,
		TagID:         body.TagID,
	}
	if err := s.tracker.SaveEdit(r.Context(), edit); err != nil {
		http.Error(w, fmt.Sprintf("save edit: %v", err), upstreamStatus(err))
		return
	}
	writeJSON(w, http.StatusOK, buildDashboardView(s.tracker.Snapshot()))
}

// fieldEdits splits a request body into one single-field edit per set field,
// keyed the way the save scheduler keys pending saves.
func fieldEdits(id int64, body timerEditRequest) map[string]tracker.RecordEdit {
	edits := make(map[string]tracker.RecordEdit)
	if body.Description != nil {
		edits["description"] = tracker.RecordEdit{ID: id, Description: body.Description}
	}
	if body.Start != nil {
		edits["start"] = tracker.RecordEdit{ID: id, StartInput: body.Start}
	}
	if body.End != nil {
		edits["end"] = tracker.RecordEdit{ID: id, EndInput: body.End}
	}
	if body.Duration != nil {
		edits["duration"] = tracker.RecordEdit{ID: id, DurationInput: body.Duration}
	}
	if body.ProjectID != nil {
		edits["project"] = tracker.RecordEdit{ID: id, ProjectID: body.ProjectID}
	}
	if body.TagID != nil {
		edits["tag"] = tracker.RecordEdit{ID: id, TagID: body.TagID}
	}
	return edits
}

func (s *Server) handleAPIGroupToggle(w http.ResponseWriter, r *http.Request) {
	var body groupToggleRequest
	if err := decodeJSON(r, &body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(body.Key) == "" {
		http.Error(w, "missing group key", http.StatusBadRequest)
		return
	}
	s.tracker.ToggleGroup(body.Key)
	writeJSON(w, http.StatusOK, buildDashboardView(s.tracker.Snapshot()))
}

func (s *Server) handleProjectsPage(w http.ResponseWriter, r *http.Request) {
	query, err := listQueryFromRequest(r, s.cfg.Backend.PageSize)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := s.client.ListProjects(r.Context(), query)
	if err != nil {
		http.Error(w, fmt.Sprintf("list projects: %v", err), upstreamStatus(err))
		return
	}

	view := buildProjectsView(result, query)
	if err := renderTemplate(w, "projects.html", view); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) handleClientsPage(w http.ResponseWriter, r *http.Request) {
	query, err := listQueryFromRequest(r, s.cfg.Backend.PageSize)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := s.client.ListClients(r.Context(), query)
	if err != nil {
		http.Error(w, fmt.Sprintf("list clients: %v", err), upstreamStatus(err))
		return
	}

	view := buildClientsView(result, query)
	if err := renderTemplate(w, "clients.html", view); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) handleAPIProjects(w http.ResponseWriter, r *http.Request) {
	query, err := listQueryFromRequest(r, s.cfg.Backend.PageSize)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := s.client.ListProjects(r.Context(), query)
	if err != nil {
		http.Error(w, fmt.Sprintf("list projects: %v", err), upstreamStatus(err))
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleAPIProjectCreate(w http.ResponseWriter, r *http.Request) {
	var body api.ProjectCreate
	if err := decodeJSON(r, &body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(body.Name) == "" {
		http.Error(w, "project name is required", http.StatusBadRequest)
		return
	}

	created, err := s.client.CreateProject(r.Context(), body)
	if err != nil {
		http.Error(w, fmt.Sprintf("create project: %v", err), upstreamStatus(err))
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleAPIProjectPatch(w http.ResponseWriter, r *http.Request) {
	id, err := parsePositiveInt64(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid project id", http.StatusBadRequest)
		return
	}

	var body api.Project
	if err := decodeJSON(r, &body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	body.ID = id

	updated, err := s.client.UpdateProject(r.Context(), body)
	if err != nil {
		http.Error(w, fmt.Sprintf("update project: %v", err), upstreamStatus(err))
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleAPIProjectDelete(w http.ResponseWriter, r *http.Request) {
	id, err := parsePositiveInt64(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid project id", http.StatusBadRequest)
		return
	}

	if err := s.client.DeleteProject(r.Context(), api.Project{ID: id}); err != nil {
		http.Error(w, fmt.Sprintf("delete project: %v", err), upstreamStatus(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAPIClients(w http.ResponseWriter, r *http.Request) {
	query, err := listQueryFromRequest(r, s.cfg.Backend.PageSize)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := s.client.ListClients(r.Context(), query)
	if err != nil {
		http.Error(w, fmt.Sprintf("list clients: %v", err), upstreamStatus(err))
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleAPIClientCreate(w http.ResponseWriter, r *http.Request) {
	var body api.CustomerCreate
	if err := decodeJSON(r, &body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(body.Name) == "" {
		http.Error(w, "client name is required", http.StatusBadRequest)
		return
	}

	created, err := s.client.CreateClient(r.Context(), body)
	if err != nil {
		http.Error(w, fmt.Sprintf("create client: %v", err), upstreamStatus(err))
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleAPIClientPatch(w http.ResponseWriter, r *http.Request) {
	id, err := parsePositiveInt64(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid client id", http.StatusBadRequest)
		return
	}

	var body api.Customer
	if err := decodeJSON(r, &body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	body.ID = id

	updated, err := s.client.UpdateClient(r.Context(), body)
	if err != nil {
		http.Error(w, fmt.Sprintf("update client: %v", err), upstreamStatus(err))
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleAPIClientDelete(w http.ResponseWriter, r *http.Request) {
	id, err := parsePositiveInt64(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid client id", http.StatusBadRequest)
		return
	}

	if err := s.client.DeleteClient(r.Context(), api.Customer{ID: id}); err != nil {
		http.Error(w, fmt.Sprintf("delete client: %v", err), upstreamStatus(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleAPIProjectsAll serves the full project list used to populate edit
// dropdowns, falling back to the cached copy when the backend is down.
func (s *Server) handleAPIProjectsAll(w http.ResponseWriter, r *http.Request) {
	projects, err := s.client.ListAllProjects(r.Context())
	if err != nil {
		if s.cache != nil {
			if cached, cacheErr := s.cache.LoadProjects(); cacheErr == nil && len(cached) > 0 {
				s.log.Warn("project list fetch failed, serving cache", zap.Error(err))
				writeJSON(w, http.StatusOK, cached)
				return
			}
		}
		http.Error(w, fmt.Sprintf("list projects: %v", err), upstreamStatus(err))
		return
	}

	if s.cache != nil {
		if cacheErr := s.cache.SaveProjects(projects); cacheErr != nil {
			s.log.Warn("project list cache write failed", zap.Error(cacheErr))
		}
	}
	writeJSON(w, http.StatusOK, projects)
}

func (s *Server) handleAPITags(w http.ResponseWriter, r *http.Request) {
	tags, err := s.client.ListAllTags(r.Context())
	if err != nil {
		if s.cache != nil {
			if cached, cacheErr := s.cache.LoadTags(); cacheErr == nil && len(cached) > 0 {
				s.log.Warn("tag list fetch failed, serving cache", zap.Error(err))
				writeJSON(w, http.StatusOK, cached)
				return
			}
		}
		http.Error(w, fmt.Sprintf("list tags: %v", err), upstreamStatus(err))
		return
	}

	if s.cache != nil {
		if cacheErr := s.cache.SaveTags(tags); cacheErr != nil {
			s.log.Warn("tag list cache write failed", zap.Error(cacheErr))
		}
	}
	writeJSON(w, http.StatusOK, tags)
}

func listQueryFromRequest(r *http.Request, defaultPageSize int) (api.ListQuery, error) {
	query := api.ListQuery{
		PageSize:  defaultPageSize,
		Search:    strings.TrimSpace(r.URL.Query().Get("search")),
		SortField: strings.TrimSpace(r.URL.Query().Get("sortField")),
		SortOrder: strings.TrimSpace(r.URL.Query().Get("sortOrder")),
	}

	if raw := strings.TrimSpace(r.URL.Query().Get("page")); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 0 {
			return api.ListQuery{}, fmt.Errorf("invalid page number")
		}
		query.Page = page
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("pageSize")); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil || size <= 0 {
			return api.ListQuery{}, fmt.Errorf("invalid page size")
		}
		query.PageSize = size
	}
	return query, nil
}

func renderTemplate(w http.ResponseWriter, pageTemplate string, data any) error {
	tmpl, err := template.New("base.html").ParseFS(templateFS, "templates/base.html", "templates/"+pageTemplate)
	if err != nil {
		return fmt.Errorf("parse template %s: %w", pageTemplate, err)
	}
	if err := tmpl.ExecuteTemplate(w, "base", data); err != nil {
		return fmt.Errorf("render template %s: %w", pageTemplate, err)
	}
	return nil
}

func parsePositiveInt64(value string) (int64, error) {
	parsed, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return 0, err
	}
	if parsed <= 0 {
		return 0, fmt.Errorf("value must be > 0")
	}
	return parsed, nil
}

func decodeJSON(r *http.Request, out any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		return err
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return fmt.Errorf("request body must contain a single JSON object")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// upstreamStatus maps backend client failures onto proxy-style statuses so the
// session layer can react to expired tokens.
func upstreamStatus(err error) int {
	if errors.Is(err, api.ErrUnauthorized) {
		return http.StatusUnauthorized
	}
	return http.StatusBadGateway
}
