// Package api is the typed client for the assistant backend. One Client is shared
// by every caller so that the session header and the 401 handling stay uniform.
package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	apihttp "moodle-assistant/internal/common/http"
	"moodle-assistant/internal/common/logger"
	"moodle-assistant/internal/common/observability"
	"moodle-assistant/internal/models"
	"moodle-assistant/internal/storage"
)

// SessionHeader carries the cached session id on every request.
const SessionHeader = "X-Session-ID"

// UnauthorizedHandler is called after a 401 has cleared the persisted session.
type UnauthorizedHandler func(ctx context.Context)

type Client struct {
	transport *apihttp.Client
	store     *storage.Store
	obs       *observability.Observability
	logger    logger.Logger

	mu       sync.RWMutex
	nextID   int
	handlers map[int]UnauthorizedHandler
}

// New wires the session interceptors into transport. obs may be nil.
func New(transport *apihttp.Client, store *storage.Store, obs *observability.Observability, log logger.Logger) *Client {
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	c := &Client{
		transport: transport,
		store:     store,
		obs:       obs,
		logger:    log.WithFields(map[string]interface{}{"component": "api"}),
		handlers:  make(map[int]UnauthorizedHandler),
	}

	transport.UseRequest(c.attachSession)
	transport.UseResponse(c.interceptUnauthorized)

	return c
}

// OnUnauthorized registers fn to run after any call receives a 401. The returned
// function unregisters it.
func (c *Client) OnUnauthorized(fn UnauthorizedHandler) (remove func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextID
	c.nextID++
	c.handlers[id] = fn

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.handlers, id)
	}
}

func (c *Client) attachSession(req *http.Request) error {
	sessionID, _ := c.store.GetString(req.Context(), models.StorageKeySessionID)
	if sessionID != "" {
		req.Header.Set(SessionHeader, sessionID)
	}
	return nil
}

func (c *Client) interceptUnauthorized(resp *http.Response) {
	if resp.StatusCode != http.StatusUnauthorized {
		return
	}

	ctx := context.Background()
	if resp.Request != nil {
		ctx = resp.Request.Context()
	}

	c.logger.Warn("backend rejected session, clearing local credentials", map[string]interface{}{
		"path": requestPath(resp),
	})
	c.ClearSession(ctx)

	c.mu.RLock()
	handlers := make([]UnauthorizedHandler, 0, len(c.handlers))
	for _, fn := range c.handlers {
		handlers = append(handlers, fn)
	}
	c.mu.RUnlock()

	for _, fn := range handlers {
		fn(ctx)
	}
}

func requestPath(resp *http.Response) string {
	if resp.Request == nil || resp.Request.URL == nil {
		return ""
	}
	return resp.Request.URL.Path
}

// ClearSession removes the persisted session id and user profile.
func (c *Client) ClearSession(ctx context.Context) {
	c.store.Remove(ctx, models.StorageKeySessionID)
	c.store.Remove(ctx, models.StorageKeyUser)
}

func (c *Client) persistSession(ctx context.Context, sessionID string, user models.UserInfo) {
	if !c.store.Set(ctx, models.StorageKeySessionID, sessionID).OK() ||
		!c.store.Set(ctx, models.StorageKeyUser, user).OK() {
		// a lone session id would be rejected on the next start anyway
		c.ClearSession(ctx)
		c.logger.Warn("session not persisted, it will not survive a restart", map[string]interface{}{
			"session_id": logger.Mask(sessionID),
		})
	}
}

func (c *Client) call(ctx context.Context, endpoint, method, path string, query url.Values, body, out interface{}) error {
	start := time.Now()
	status, err := c.transport.Do(ctx, method, path, query, body, out)
	elapsed := time.Since(start)

	c.obs.RecordRequest(ctx, endpoint, status, elapsed)

	fields := map[string]interface{}{
		"endpoint":    endpoint,
		"status":      status,
		"duration_ms": elapsed.Milliseconds(),
	}
	if err != nil {
		c.logger.WithError(err).Debug("api request failed", fields)
		return err
	}
	c.logger.Debug("api request completed", fields)
	return nil
}

// Login posts the credentials. A complete response is persisted before Login
// returns; anything else persists nothing. Storage failures never fail the call.
func (c *Client) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	var resp models.LoginResponse
	if err := c.call(ctx, "auth.login", http.MethodPost, "/api/auth/login", nil, req, &resp); err != nil {
		return nil, err
	}

	if resp.Complete() {
		c.persistSession(ctx, resp.SessionID, *resp.UserInfo)
	}
	return &resp, nil
}

// Logout tells the backend to end the session and always clears the local copy.
// The returned error is informational.
func (c *Client) Logout(ctx context.Context) error {
	defer c.ClearSession(ctx)
	return c.call(ctx, "auth.logout", http.MethodPost, "/api/auth/logout", nil, nil, nil)
}

func (c *Client) ValidateSession(ctx context.Context) (*models.ValidateResponse, error) {
	var resp models.ValidateResponse
	if err := c.call(ctx, "auth.validate", http.MethodGet, "/api/auth/validate", nil, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) SessionInfo(ctx context.Context) (*models.Session, error) {
	var resp models.Session
	if err := c.call(ctx, "auth.session_info", http.MethodGet, "/api/auth/session-info", nil, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Courses(ctx context.Context) ([]models.Course, error) {
	var resp []models.Course
	if err := c.call(ctx, "courses.list", http.MethodGet, "/api/courses/", nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) Course(ctx context.Context, courseID int64) (*models.Course, error) {
	var resp models.Course
	if err := c.call(ctx, "courses.get", http.MethodGet, coursePath(courseID, ""), nil, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) CourseContents(ctx context.Context, courseID int64) ([]models.CourseContent, error) {
	var resp []models.CourseContent
	if err := c.call(ctx, "courses.contents", http.MethodGet, coursePath(courseID, "contents"), nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// CourseFiles lists downloadable files. An empty fileType lists every type.
func (c *Client) CourseFiles(ctx context.Context, courseID int64, fileType string) (*models.DownloadInfo, error) {
	var query url.Values
	if fileType != "" {
		query = url.Values{"file_type": {fileType}}
	}

	var resp models.DownloadInfo
	if err := c.call(ctx, "courses.download", http.MethodGet, coursePath(courseID, "download"), query, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func coursePath(courseID int64, sub string) string {
	path := "/api/courses/" + strconv.FormatInt(courseID, 10)
	if sub != "" {
		path = fmt.Sprintf("%s/%s", path, sub)
	}
	return path
}

func (c *Client) SendMessage(ctx context.Context, req models.ChatRequest) (*models.ChatResponse, error) {
	var resp models.ChatResponse
	if err := c.call(ctx, "chat.send", http.MethodPost, "/api/chat/", nil, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) ChatSuggestions(ctx context.Context) (*models.ChatSuggestions, error) {
	var resp models.ChatSuggestions
	if err := c.call(ctx, "chat.suggestions", http.MethodGet, "/api/chat/suggestions", nil, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) HealthCheck(ctx context.Context) (*models.HealthStatus, error) {
	var resp models.HealthStatus
	if err := c.call(ctx, "health", http.MethodGet, "/health", nil, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) APIStatus(ctx context.Context) (*models.APIStatus, error) {
	var resp models.APIStatus
	if err := c.call(ctx, "status", http.MethodGet, "/api/status", nil, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
