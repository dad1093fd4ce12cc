// Package api is the typed HTTP client for the time-tracking backend. All
// business logic lives server-side; this client only moves JSON and maps
// failure classes for the callers.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ErrUnauthorized marks a 401 response. It is kept distinct from other
// failures so the session layer can redirect to login instead of retrying.
var ErrUnauthorized = errors.New("session invalid or expired")

// APIError is a non-2xx, non-401 backend response.
type APIError struct {
	Status int
	Method string
	Path   string
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("request %s %s failed with status %d: %s", e.Method, e.Path, e.Status, e.Body)
}

// Client defines the backend operations the dashboard consumes.
type Client interface {
	Login(ctx context.Context, email, password string) (string, error)
	Verify(ctx context.Context) error

	GetTimers(ctx context.Context, page int) (TimersPage, error)
	CreateTimer(ctx context.Context, create TimerCreate) (Timer, error)
	UpdateTimer(ctx context.Context, id int64, update TimerUpdate) (Timer, error)

	ListAllProjects(ctx context.Context) ([]Project, error)
	ListAllClients(ctx context.Context) ([]Customer, error)
	ListAllTags(ctx context.Context) ([]Tag, error)

	ListProjects(ctx context.Context, query ListQuery) (ProjectPage, error)
	CreateProject(ctx context.Context, create ProjectCreate) (Project, error)
	UpdateProject(ctx context.Context, project Project) (Project, error)
	DeleteProject(ctx context.Context, project Project) error

	ListClients(ctx context.Context, query ListQuery) (CustomerPage, error)
	CreateClient(ctx context.Context, create CustomerCreate) (Customer, error)
	UpdateClient(ctx context.Context, customer Customer) (Customer, error)
	DeleteClient(ctx context.Context, customer Customer) error
}

type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type ClientConfig struct {
	BaseURL    string
	Token      string
	UserAgent  string
	HTTPClient httpDoer
}

type HTTPClient struct {
	baseURL    string
	token      string
	userAgent  string
	httpClient httpDoer
}

func NewClient(cfg ClientConfig) (*HTTPClient, error) {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		return nil, errors.New("base URL is required")
	}
	baseURL = strings.TrimRight(baseURL, "/")

	parsedBase, err := url.Parse(baseURL)
	if err != nil || parsedBase.Scheme == "" || parsedBase.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q", cfg.BaseURL)
	}

	doer := cfg.HTTPClient
	if doer == nil {
		doer = &http.Client{Timeout: 30 * time.Second}
	}

	return &HTTPClient{
		baseURL:    baseURL,
		token:      strings.TrimSpace(cfg.Token),
		userAgent:  strings.TrimSpace(cfg.UserAgent),
		httpClient: doer,
	}, nil
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

func (c *HTTPClient) Login(ctx context.Context, email, password string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return "", errors.New("email and password are required")
	}

	var out loginResponse
	if err := c.doJSON(ctx, http.MethodPost, "/auth/login", loginRequest{Email: email, Password: password}, &out); err != nil {
		return "", err
	}
	if out.Token == "" {
		return "", errors.New("login response contained no token")
	}
	return out.Token, nil
}

func (c *HTTPClient) Verify(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodGet, "/auth/verify", nil, nil)
}

func (c *HTTPClient) GetTimers(ctx context.Context, page int) (TimersPage, error) {
	if page < 0 {
		page = 0
	}
	var out TimersPage
	if err := c.doJSON(ctx, http.MethodGet, "/timer?page="+strconv.Itoa(page), nil, &out); err != nil {
		return TimersPage{}, err
	}
	return out, nil
}

func (c *HTTPClient) CreateTimer(ctx context.Context, create TimerCreate) (Timer, error) {
	var out Timer
	if err := c.doJSON(ctx, http.MethodPost, "/timer", create, &out); err != nil {
		return Timer{}, err
	}
	return out, nil
}

func (c *HTTPClient) UpdateTimer(ctx context.Context, id int64, update TimerUpdate) (Timer, error) {
	if update.IsZero() {
		return Timer{}, errors.New("timer update payload must not be empty")
	}
	var out Timer
	if err := c.doJSON(ctx, http.MethodPut, "/timer/"+strconv.FormatInt(id, 10), update, &out); err != nil {
		return Timer{}, err
	}
	return out, nil
}

func (c *HTTPClient) ListAllProjects(ctx context.Context) ([]Project, error) {
	var out []Project
	if err := c.doJSON(ctx, http.MethodGet, "/project/all", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) ListAllClients(ctx context.Context) ([]Customer, error) {
	var out []Customer
	if err := c.doJSON(ctx, http.MethodGet, "/client/all", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) ListAllTags(ctx context.Context) ([]Tag, error) {
	var out []Tag
	if err := c.doJSON(ctx, http.MethodGet, "/tag/all", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) ListProjects(ctx context.Context, query ListQuery) (ProjectPage, error) {
	var out ProjectPage
	if err := c.doJSON(ctx, http.MethodGet, "/project?"+encodeListQuery(query), nil, &out); err != nil {
		return ProjectPage{}, err
	}
	return out, nil
}

func (c *HTTPClient) CreateProject(ctx context.Context, create ProjectCreate) (Project, error) {
	var out Project
	if err := c.doJSON(ctx, http.MethodPost, "/project", create, &out); err != nil {
		return Project{}, err
	}
	return out, nil
}

func (c *HTTPClient) UpdateProject(ctx context.Context, project Project) (Project, error) {
	var out Project
	if err := c.doJSON(ctx, http.MethodPut, "/project/"+strconv.FormatInt(project.ID, 10), project, &out); err != nil {
		return Project{}, err
	}
	return out, nil
}

// DeleteProject sends the full entity in the request body; the backend keys
// the delete off the body, not the path.
func (c *HTTPClient) DeleteProject(ctx context.Context, project Project) error {
	return c.doJSON(ctx, http.MethodDelete, "/project", project, nil)
}

func (c *HTTPClient) ListClients(ctx context.Context, query ListQuery) (CustomerPage, error) {
	var out CustomerPage
	if err := c.doJSON(ctx, http.MethodGet, "/client?"+encodeListQuery(query), nil, &out); err != nil {
		return CustomerPage{}, err
	}
	return out, nil
}

func (c *HTTPClient) CreateClient(ctx context.Context, create CustomerCreate) (Customer, error) {
	var out Customer
	if err := c.doJSON(ctx, http.MethodPost, "/client", create, &out); err != nil {
		return Customer{}, err
	}
	return out, nil
}

func (c *HTTPClient) UpdateClient(ctx context.Context, customer Customer) (Customer, error) {
	var out Customer
	if err := c.doJSON(ctx, http.MethodPut, "/client/"+strconv.FormatInt(customer.ID, 10), customer, &out); err != nil {
		return Customer{}, err
	}
	return out, nil
}

func (c *HTTPClient) DeleteClient(ctx context.Context, customer Customer) error {
	return c.doJSON(ctx, http.MethodDelete, "/client", customer, nil)
}

func encodeListQuery(query ListQuery) string {
	values := url.Values{}
	page := query.Page
	if page < 0 {
		page = 0
	}
	values.Set("page", strconv.Itoa(page))
	pageSize := query.PageSize
	if pageSize <= 0 {
		pageSize = 10
	}
	values.Set("pageSize", strconv.Itoa(pageSize))
	if search := strings.TrimSpace(query.Search); search != "" {
		values.Set("search", search)
	}
	if field := strings.TrimSpace(query.SortField); field != "" {
		values.Set("sortField", field)
		order := strings.ToLower(strings.TrimSpace(query.SortOrder))
		if order != "desc" {
			order = "asc"
		}
		values.Set("sortOrder", order)
	}
	return values.Encode()
}

func (c *HTTPClient) doJSON(ctx context.Context, method, endpointPath string, body any, out any) error {
	var bodyReader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(payload)
	}

	url := c.baseURL + endpointPath
	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("create request %s %s: %w", method, endpointPath, err)
	}

	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json; charset=UTF-8")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s failed: %w", method, endpointPath, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("request %s %s: %w", method, endpointPath, ErrUnauthorized)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		responseBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{
			Status: resp.StatusCode,
			Method: method,
			Path:   endpointPath,
			Body:   strings.TrimSpace(string(responseBody)),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("decode response %s %s: %w", method, endpointPath, err)
	}
	return nil
}
