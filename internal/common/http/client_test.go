package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"moodle-assistant/internal/common/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echo struct {
	Method string `json:"method"`
	Path   string `json:"path"`
	Query  string `json:"query"`
	Header string `json:"header"`
	Body   string `json:"body"`
}

func echoServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(echo{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.RawQuery,
			Header: r.Header.Get("X-Session-ID"),
			Body:   string(body),
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDo_JSONRoundTrip(t *testing.T) {
	srv := echoServer(t)
	client := NewClient(srv.URL+"/", time.Second)

	var got echo
	status, err := client.Do(context.Background(), http.MethodPost, "/api/chat/message",
		url.Values{"file_type": {"pdf"}}, map[string]string{"message": "hi"}, &got)

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, http.MethodPost, got.Method)
	assert.Equal(t, "/api/chat/message", got.Path)
	assert.Equal(t, "file_type=pdf", got.Query)
	assert.JSONEq(t, `{"message":"hi"}`, got.Body)
}

func TestDo_InterceptorsRunInOrder(t *testing.T) {
	srv := echoServer(t)
	client := NewClient(srv.URL, time.Second)

	client.UseRequest(func(req *http.Request) error {
		req.Header.Set("X-Session-ID", "first")
		return nil
	})
	client.UseRequest(func(req *http.Request) error {
		req.Header.Set("X-Session-ID", req.Header.Get("X-Session-ID")+"-second")
		return nil
	})

	var seen int32
	client.UseResponse(func(resp *http.Response) {
		atomic.AddInt32(&seen, 1)
	})

	var got echo
	_, err := client.Do(context.Background(), http.MethodGet, "health", nil, nil, &got)
	require.NoError(t, err)
	assert.Equal(t, "first-second", got.Header)
	assert.Equal(t, int32(1), atomic.LoadInt32(&seen))
}

func TestDo_RequestInterceptorAborts(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second)
	client.UseRequest(func(*http.Request) error { return assert.AnError })

	_, err := client.Do(context.Background(), http.MethodGet, "/x", nil, nil, nil)
	assert.ErrorIs(t, err, assert.AnError)
	assert.Zero(t, atomic.LoadInt32(&hits))
}

func TestDo_StatusMapping(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		code      errors.ErrorCode
		message   string
		retryable bool
	}{
		{name: "unauthorized", status: 401, body: `{"detail":"Invalid or expired session"}`, code: errors.ErrCodeSessionUnauthorized, message: "Invalid or expired session"},
		{name: "client error with message", status: 400, body: `{"message":"Invalid file type"}`, code: errors.ErrCodeAPIError, message: "Invalid file type"},
		{name: "server error", status: 503, body: `oops`, code: errors.ErrCodeAPIError, message: "Service Unavailable", retryable: true},
		{name: "error field", status: 404, body: `{"error":"Course not found"}`, code: errors.ErrCodeAPIError, message: "Course not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			status, err := NewClient(srv.URL, time.Second).Do(context.Background(), http.MethodGet, "/", nil, nil, nil)
			require.Error(t, err)
			assert.Equal(t, tt.status, status)

			stdErr, ok := errors.As(err)
			require.True(t, ok)
			assert.Equal(t, tt.code, stdErr.Code)
			assert.Equal(t, tt.message, stdErr.Message)
			assert.Equal(t, tt.status, stdErr.StatusCode)
			assert.Equal(t, tt.retryable, stdErr.Retryable)
		})
	}
}

func TestDo_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{not json`))
	}))
	defer srv.Close()

	var out map[string]interface{}
	_, err := NewClient(srv.URL, time.Second).Do(context.Background(), http.MethodGet, "/", nil, nil, &out)
	assert.True(t, errors.HasCode(err, errors.ErrCodeMalformedResponse))
}

func TestDo_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	addr := srv.URL
	srv.Close()

	status, err := NewClient(addr, time.Second).Do(context.Background(), http.MethodGet, "/", nil, nil, nil)
	assert.Zero(t, status)
	assert.True(t, errors.HasCode(err, errors.ErrCodeTransportFailed))
	assert.Equal(t, errors.MsgConnectionFailed, errors.UserMessage(err, ""))
	assert.True(t, errors.IsRetryable(err))
}

func TestDo_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	_, err := NewClient(srv.URL, 50*time.Millisecond).Do(context.Background(), http.MethodGet, "/", nil, nil, nil)
	assert.True(t, errors.HasCode(err, errors.ErrCodeTimeout))
}

func TestNewClient_DefaultTimeout(t *testing.T) {
	assert.Equal(t, DefaultTimeout, NewClient("http://localhost", 0).Timeout())
}

func TestServerMessage(t *testing.T) {
	assert.Equal(t, "bad", ServerMessage([]byte(`{"message":"bad","detail":"ignored"}`)))
	assert.Equal(t, "", ServerMessage([]byte(`{"detail":[{"loc":"body"}]}`)))
	assert.Equal(t, "", ServerMessage([]byte(`<html>`)))
}
