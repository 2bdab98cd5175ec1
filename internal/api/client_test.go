package api

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"moodle-assistant/internal/api/apitest"
	apperrors "moodle-assistant/internal/common/errors"
	apihttp "moodle-assistant/internal/common/http"
	"moodle-assistant/internal/common/logger"
	"moodle-assistant/internal/models"
	"moodle-assistant/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const moodleURL = "https://moodle.example.edu"

func newTestClient(t *testing.T, backend storage.Backend) (*Client, *storage.Store, *apitest.Server) {
	t.Helper()
	srv := apitest.NewServer(t)
	store := storage.NewStore(backend, logger.NewTestLogger(t))
	client := New(apihttp.NewClient(srv.URL, 2*time.Second), store, nil, logger.NewTestLogger(t))
	return client, store, srv
}

func seedSession(t *testing.T, store *storage.Store, sessionID string) {
	t.Helper()
	ctx := context.Background()
	require.True(t, store.Set(ctx, models.StorageKeySessionID, sessionID).OK())
	require.True(t, store.Set(ctx, models.StorageKeyUser, models.UserInfo{Username: "alice", MoodleURL: moodleURL}).OK())
}

type brokenBackend struct{}

func (brokenBackend) Get(context.Context, string) (string, error) { return "", errors.New("disk gone") }
func (brokenBackend) Set(context.Context, string, string) error   { return errors.New("disk gone") }
func (brokenBackend) Delete(context.Context, string) error        { return errors.New("disk gone") }

func TestSessionHeader(t *testing.T) {
	ctx := context.Background()
	client, store, srv := newTestClient(t, storage.NewMemoryBackend())
	srv.Reply(http.MethodGet, "/health", 200, map[string]interface{}{"status": "healthy", "active_sessions": 1})

	_, err := client.HealthCheck(ctx)
	require.NoError(t, err)
	req, _ := srv.Last("/health")
	assert.Empty(t, req.SessionID)

	seedSession(t, store, "abc123")
	_, err = client.HealthCheck(ctx)
	require.NoError(t, err)
	req, _ = srv.Last("/health")
	assert.Equal(t, "abc123", req.SessionID)
}

func TestLogin_CompleteResponsePersists(t *testing.T) {
	ctx := context.Background()
	client, store, srv := newTestClient(t, storage.NewMemoryBackend())
	srv.Reply(http.MethodPost, "/api/auth/login", 200, apitest.LoginSuccess("abc123", "alice", moodleURL))

	resp, err := client.Login(ctx, models.LoginRequest{MoodleURL: moodleURL, Username: "alice", Password: "secret"})
	require.NoError(t, err)
	assert.True(t, resp.Complete())

	sessionID, res := store.GetString(ctx, models.StorageKeySessionID)
	assert.True(t, res.OK())
	assert.Equal(t, "abc123", sessionID)

	user, res := storage.Get(ctx, store, models.StorageKeyUser, models.UserInfo{})
	assert.True(t, res.OK())
	assert.Equal(t, "alice", user.Username)

	req, ok := srv.Last("/api/auth/login")
	require.True(t, ok)
	assert.JSONEq(t, `{"moodle_url":"https://moodle.example.edu","username":"alice","password":"secret"}`, string(req.Body))
}

func TestLogin_IncompleteResponsePersistsNothing(t *testing.T) {
	tests := []struct {
		name string
		body map[string]interface{}
	}{
		{name: "rejected", body: map[string]interface{}{"success": false, "message": "Invalid credentials"}},
		{name: "missing user", body: map[string]interface{}{"success": true, "session_id": "abc123"}},
		{name: "missing session", body: map[string]interface{}{"success": true, "user_info": map[string]string{"username": "alice"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			client, store, srv := newTestClient(t, storage.NewMemoryBackend())
			srv.Reply(http.MethodPost, "/api/auth/login", 200, tt.body)

			resp, err := client.Login(ctx, models.LoginRequest{MoodleURL: moodleURL, Username: "alice", Password: "x"})
			require.NoError(t, err)
			assert.False(t, resp.Complete())

			_, res := store.GetString(ctx, models.StorageKeySessionID)
			assert.Equal(t, storage.StatusAbsent, res.Status)
			_, res = store.GetString(ctx, models.StorageKeyUser)
			assert.Equal(t, storage.StatusAbsent, res.Status)
		})
	}
}

func TestLogin_RejectedKeepsExistingSession(t *testing.T) {
	ctx := context.Background()
	client, store, srv := newTestClient(t, storage.NewMemoryBackend())
	seedSession(t, store, "previous")
	srv.Reply(http.MethodPost, "/api/auth/login", 200, map[string]interface{}{
		"success": false,
		"message": "Invalid credentials",
	})

	resp, err := client.Login(ctx, models.LoginRequest{MoodleURL: moodleURL, Username: "bob", Password: "wrong"})
	require.NoError(t, err)
	assert.False(t, resp.Complete())
	assert.Equal(t, "Invalid credentials", resp.Message)

	sessionID, res := store.GetString(ctx, models.StorageKeySessionID)
	require.True(t, res.OK())
	assert.Equal(t, "previous", sessionID)

	user, res := storage.Get(ctx, store, models.StorageKeyUser, models.UserInfo{})
	require.True(t, res.OK())
	assert.Equal(t, models.UserInfo{Username: "alice", MoodleURL: moodleURL}, user)
}

func TestLogin_StorageFailureDoesNotFailLogin(t *testing.T) {
	client, _, srv := newTestClient(t, brokenBackend{})
	srv.Reply(http.MethodPost, "/api/auth/login", 200, apitest.LoginSuccess("abc123", "alice", moodleURL))

	resp, err := client.Login(context.Background(), models.LoginRequest{MoodleURL: moodleURL, Username: "alice", Password: "secret"})
	require.NoError(t, err)
	assert.True(t, resp.Complete())
}

func TestUnauthorized_ClearsSessionAndNotifies(t *testing.T) {
	ctx := context.Background()
	client, store, srv := newTestClient(t, storage.NewMemoryBackend())
	seedSession(t, store, "stale")

	srv.Reply(http.MethodGet, "/api/courses/", 401, map[string]string{"detail": "Invalid or expired session"})
	srv.Reply(http.MethodGet, "/health", 200, map[string]string{"status": "healthy"})

	var notified int32
	remove := client.OnUnauthorized(func(context.Context) { atomic.AddInt32(&notified, 1) })

	_, err := client.Courses(ctx)
	require.Error(t, err)
	assert.True(t, apperrors.IsUnauthorized(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&notified))

	_, res := store.GetString(ctx, models.StorageKeySessionID)
	assert.Equal(t, storage.StatusAbsent, res.Status)
	_, res = store.GetString(ctx, models.StorageKeyUser)
	assert.Equal(t, storage.StatusAbsent, res.Status)

	_, err = client.HealthCheck(ctx)
	require.NoError(t, err)
	req, _ := srv.Last("/health")
	assert.Empty(t, req.SessionID)

	remove()
	_, _ = client.Courses(ctx)
	assert.Equal(t, int32(1), atomic.LoadInt32(&notified))
}

func TestUnauthorized_EveryAuthenticatedOperation(t *testing.T) {
	ops := map[string]struct {
		method, path string
		call         func(*Client) error
	}{
		"validate":     {http.MethodGet, "/api/auth/validate", func(c *Client) error { _, err := c.ValidateSession(context.Background()); return err }},
		"session info": {http.MethodGet, "/api/auth/session-info", func(c *Client) error { _, err := c.SessionInfo(context.Background()); return err }},
		"course":       {http.MethodGet, "/api/courses/7", func(c *Client) error { _, err := c.Course(context.Background(), 7); return err }},
		"contents":     {http.MethodGet, "/api/courses/7/contents", func(c *Client) error { _, err := c.CourseContents(context.Background(), 7); return err }},
		"files":        {http.MethodGet, "/api/courses/7/download", func(c *Client) error { _, err := c.CourseFiles(context.Background(), 7, ""); return err }},
		"chat":         {http.MethodPost, "/api/chat/", func(c *Client) error { _, err := c.SendMessage(context.Background(), models.ChatRequest{Message: "hi"}); return err }},
		"suggestions":  {http.MethodGet, "/api/chat/suggestions", func(c *Client) error { _, err := c.ChatSuggestions(context.Background()); return err }},
	}

	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			client, store, srv := newTestClient(t, storage.NewMemoryBackend())
			seedSession(t, store, "stale")
			srv.Reply(op.method, op.path, 401, map[string]string{"detail": "expired"})

			err := op.call(client)
			assert.True(t, apperrors.IsUnauthorized(err))

			_, res := store.GetString(context.Background(), models.StorageKeySessionID)
			assert.Equal(t, storage.StatusAbsent, res.Status)
		})
	}
}

func TestLogout_AlwaysClears(t *testing.T) {
	for _, status := range []int{200, 500} {
		ctx := context.Background()
		client, store, srv := newTestClient(t, storage.NewMemoryBackend())
		seedSession(t, store, "abc123")
		srv.Reply(http.MethodPost, "/api/auth/logout", status, map[string]interface{}{"success": status == 200})

		err := client.Logout(ctx)
		if status == 200 {
			assert.NoError(t, err)
		} else {
			assert.Error(t, err)
		}

		_, res := store.GetString(ctx, models.StorageKeySessionID)
		assert.Equal(t, storage.StatusAbsent, res.Status)

		req, ok := srv.Last("/api/auth/logout")
		require.True(t, ok)
		assert.Equal(t, "abc123", req.SessionID)
	}
}

func TestLogout_Unreachable(t *testing.T) {
	ctx := context.Background()
	client, store, srv := newTestClient(t, storage.NewMemoryBackend())
	seedSession(t, store, "abc123")
	srv.Close()

	err := client.Logout(ctx)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeTransportFailed))

	_, res := store.GetString(ctx, models.StorageKeySessionID)
	assert.Equal(t, storage.StatusAbsent, res.Status)
}

func TestCourseFiles_FileTypeQuery(t *testing.T) {
	ctx := context.Background()
	client, _, srv := newTestClient(t, storage.NewMemoryBackend())
	srv.Reply(http.MethodGet, "/api/courses/42/download", 200, models.DownloadInfo{
		CourseID:   42,
		FilesCount: 1,
		Files:      []models.FileInfo{{Filename: "notes.pdf", Filesize: 2048}},
	})

	info, err := client.CourseFiles(ctx, 42, "pdf")
	require.NoError(t, err)
	assert.Equal(t, 1, info.FilesCount)
	req, _ := srv.Last("/api/courses/42/download")
	assert.Equal(t, "file_type=pdf", req.Query)

	_, err = client.CourseFiles(ctx, 42, "")
	require.NoError(t, err)
	req, _ = srv.Last("/api/courses/42/download")
	assert.Empty(t, req.Query)
}

func TestReadOperations(t *testing.T) {
	ctx := context.Background()
	client, _, srv := newTestClient(t, storage.NewMemoryBackend())

	srv.Reply(http.MethodGet, "/api/courses/", 200, []models.Course{{ID: 1, Fullname: "Biology 101"}, {ID: 2, Fullname: "Chemistry"}})
	srv.Reply(http.MethodGet, "/api/courses/1", 200, models.Course{ID: 1, Fullname: "Biology 101"})
	srv.Reply(http.MethodGet, "/api/courses/1/contents", 200, []models.CourseContent{{ID: 10, Name: "Week 1"}})
	srv.Reply(http.MethodGet, "/api/chat/suggestions", 200, models.ChatSuggestions{Suggestions: []string{"Show me my courses"}, User: "Alice"})
	srv.Reply(http.MethodPost, "/api/chat/", 200, models.ChatResponse{Response: "Hello!"})
	srv.Reply(http.MethodGet, "/api/status", 200, models.APIStatus{Status: "operational", ActiveSessions: 3})
	srv.Reply(http.MethodGet, "/api/auth/session-info", 200, models.Session{SessionID: "abc123", MoodleURL: moodleURL, CreatedAt: "2024-01-02T03:04:05.123456"})

	courses, err := client.Courses(ctx)
	require.NoError(t, err)
	assert.Len(t, courses, 2)

	course, err := client.Course(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Biology 101", course.Fullname)

	contents, err := client.CourseContents(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Week 1", contents[0].Name)

	suggestions, err := client.ChatSuggestions(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Alice", suggestions.User)

	reply, err := client.SendMessage(ctx, models.ChatRequest{Message: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "Hello!", reply.Response)

	status, err := client.APIStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, status.ActiveSessions)

	session, err := client.SessionInfo(ctx)
	require.NoError(t, err)
	created, ok := session.Created()
	assert.True(t, ok)
	assert.Equal(t, 2024, created.Year())
}

func TestServerErrorMessageSurfaces(t *testing.T) {
	client, _, srv := newTestClient(t, storage.NewMemoryBackend())
	srv.Reply(http.MethodGet, "/api/courses/9", 404, map[string]string{"detail": "Course not found"})

	_, err := client.Course(context.Background(), 9)
	require.Error(t, err)
	assert.Equal(t, "Course not found", apperrors.UserMessage(err, ""))
	assert.False(t, apperrors.IsRetryable(err))
}
