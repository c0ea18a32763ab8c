package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/high001/webpanel/internal/models"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL)
	require.NoError(t, err)
	return c
}

type jsonBody map[string]any

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestNewRejectsBadURL(t *testing.T) {
	_, err := New("ftp://agent")
	assert.Error(t, err)
	_, err = New("://nope")
	assert.Error(t, err)

	c, err := New("http://agent:5000/")
	require.NoError(t, err)
	assert.Equal(t, "http://agent:5000", c.BaseURL())
}

func TestLoginInitialisesSession(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req models.LoginRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.Password != "hunter2" {
			writeJSON(w, http.StatusUnauthorized, jsonBody{"success": false, "message": "Invalid credentials", "error": "Invalid credentials"})
			return
		}
		writeJSON(w, http.StatusOK, models.LoginResponse{Success: true, Message: "Login successful", Token: "tok"})
	})

	err := c.Login(context.Background(), "admin", "wrong")
	require.Error(t, err)
	assert.True(t, IsAuth(err))
	assert.Equal(t, "Invalid credentials", Message(err))
	assert.False(t, c.Session().Active())

	require.NoError(t, c.Login(context.Background(), "admin", "hunter2"))
	assert.True(t, c.Session().Active())
	assert.Equal(t, "tok", c.Session().Token())
	assert.Equal(t, "admin", c.Session().Username())
}

func TestStatusMapsToKind(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusBadRequest, ErrValidation},
		{http.StatusUnauthorized, ErrAuth},
		{http.StatusForbidden, ErrDenied},
		{http.StatusNotFound, ErrServer},
		{http.StatusInternalServerError, ErrServer},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, models.ErrorResponse{Error: "Process 42 not found"})
			})
			_, err := c.KillProcess(context.Background(), 42)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)

			var ce *Error
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.status, ce.Status)
			assert.Equal(t, "POST /api/processes/42/kill", ce.Op)
			assert.Equal(t, "Process 42 not found", ce.Message)
		})
	}
}

func TestUnauthorizedTearsDownSession(t *testing.T) {
	var requests []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		requests = append(requests, r.Header.Get("Authorization"))
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Session expired"})
	})
	c.Session().Init("stale", "admin")

	var reasons []error
	c.Session().OnTeardown(func(reason error) { reasons = append(reasons, reason) })

	_, err := c.Processes(context.Background())
	require.Error(t, err)
	assert.False(t, c.Session().Active())
	assert.Empty(t, c.Session().Token())
	require.Len(t, reasons, 1)
	assert.True(t, IsAuth(reasons[0]))

	// a second failure does not fire listeners again
	_, _ = c.Processes(context.Background())
	assert.Len(t, reasons, 1)

	// the torn-down session stops sending its token
	assert.Equal(t, []string{"Bearer stale", ""}, requests)
}

func TestNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	c, err := New(srv.URL)
	require.NoError(t, err)

	_, err = c.DashboardStats(context.Background())
	assert.ErrorIs(t, err, ErrNetwork)
	assert.Empty(t, Message(err))
	assert.Equal(t, "fallback", MessageOr(err, "fallback"))
}

func TestUnparsableErrorBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, "<html>bad gateway</html>")
	})

	_, err := c.Users(context.Background())
	assert.ErrorIs(t, err, ErrServer)
	assert.Empty(t, Message(err))
	assert.Contains(t, err.Error(), "Bad Gateway")
}

func TestExecuteBlockedIsDenied(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req models.CommandRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if strings.Contains(req.Command, "rm -rf") {
			writeJSON(w, http.StatusForbidden, models.ErrorResponse{Error: "Command not allowed for security reasons"})
			return
		}
		writeJSON(w, http.StatusOK, models.CommandResult{Success: true, Stdout: "ok\n", ReturnCode: 1})
	})

	res, err := c.Execute(context.Background(), "false; echo ok")
	require.NoError(t, err)
	assert.Equal(t, 1, res.ReturnCode)

	_, err = c.Execute(context.Background(), "rm -rf /")
	assert.True(t, errors.Is(err, ErrDenied))
	assert.Equal(t, "Command not allowed for security reasons", Message(err))
}

func TestTailLogQuery(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/logs", r.URL.Path)
		assert.Equal(t, "/var/log/syslog", r.URL.Query().Get("file"))
		assert.Equal(t, "50", r.URL.Query().Get("lines"))
		writeJSON(w, http.StatusOK, models.LogTail{Logs: []string{}, File: "/var/log/syslog"})
	})

	tail, err := c.TailLog(context.Background(), "/var/log/syslog", 50)
	require.NoError(t, err)
	assert.Empty(t, tail.Logs)
	assert.Zero(t, tail.TotalLines)
}

func TestUploadMultipart(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "/tmp", r.FormValue("path"))
		f, hdr, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer f.Close()
		data, _ := io.ReadAll(f)
		assert.Equal(t, "notes.txt", hdr.Filename)
		assert.Equal(t, "hello", string(data))
		writeJSON(w, http.StatusOK, models.MessageResponse{Success: true, Message: "File uploaded to /tmp/notes.txt"})
	})

	msg, err := c.Upload(context.Background(), "/tmp", "notes.txt", strings.NewReader("hello"))
	require.NoError(t, err)
	assert.Equal(t, "File uploaded to /tmp/notes.txt", msg)
}

func TestLogoutAlwaysEndsSession(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "boom"})
	})
	c.Session().Init("tok", "admin")

	err := c.Logout(context.Background())
	assert.Error(t, err)
	assert.False(t, c.Session().Active())
}
