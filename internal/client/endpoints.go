package client

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"

	"github.com/high001/webpanel/internal/models"
)

// Login authenticates against the agent and initialises the session
func (c *Client) Login(ctx context.Context, username, password string) error {
	var out models.LoginResponse
	err := c.sendJSON(ctx, http.MethodPost, "/api/login", models.LoginRequest{Username: username, Password: password}, &out)
	if err != nil {
		return err
	}
	if !out.Success || out.Token == "" {
		return &Error{Kind: KindAuth, Op: "POST /api/login", Message: out.Message}
	}
	c.session.Init(out.Token, username)
	c.logger.Info().Str("user", username).Msg("session established")
	return nil
}

// Logout ends the session locally even when the agent cannot be reached
func (c *Client) Logout(ctx context.Context) error {
	_, err := c.sendMessage(ctx, http.MethodPost, "/api/logout", nil)
	c.session.Teardown(nil)
	return err
}

func (c *Client) CheckAuth(ctx context.Context) (*models.AuthStatus, error) {
	var out models.AuthStatus
	if err := c.getJSON(ctx, "/api/check-auth", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DashboardStats(ctx context.Context) (*models.DashboardStats, error) {
	var out models.DashboardStats
	if err := c.getJSON(ctx, "/api/dashboard/stats", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Processes(ctx context.Context) ([]models.ProcessInfo, error) {
	var out models.ProcessList
	if err := c.getJSON(ctx, "/api/processes", nil, &out); err != nil {
		return nil, err
	}
	return out.Processes, nil
}

func (c *Client) KillProcess(ctx context.Context, pid int32) (string, error) {
	return c.sendMessage(ctx, http.MethodPost, "/api/processes/"+strconv.FormatInt(int64(pid), 10)+"/kill", nil)
}

func (c *Client) Services(ctx context.Context) ([]models.ServiceInfo, error) {
	var out models.ServiceList
	if err := c.getJSON(ctx, "/api/services", nil, &out); err != nil {
		return nil, err
	}
	return out.Services, nil
}

// ServiceAction runs start, stop, restart or reload on a unit
func (c *Client) ServiceAction(ctx context.Context, name, action string) (string, error) {
	return c.sendMessage(ctx, http.MethodPost, "/api/services/"+url.PathEscape(name)+"/"+url.PathEscape(action), nil)
}

func (c *Client) ListFiles(ctx context.Context, dir string) (*models.FileListing, error) {
	var out models.FileListing
	if err := c.getJSON(ctx, "/api/files", url.Values{"path": {dir}}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Download streams the remote file into w and returns the bytes written
func (c *Client) Download(ctx context.Context, remotePath string, w io.Writer) (int64, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/files/download", url.Values{"path": {remotePath}}, nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, &Error{Kind: KindNetwork, Op: "GET /api/files/download", Err: err}
	}
	return n, nil
}

// Upload sends content as a multipart file named filename into remoteDir
func (c *Client) Upload(ctx context.Context, remoteDir, filename string, content io.Reader) (string, error) {
	const op = "POST /api/files/upload"

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("path", remoteDir); err != nil {
		return "", &Error{Kind: KindValidation, Op: op, Err: err}
	}
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", &Error{Kind: KindValidation, Op: op, Err: err}
	}
	if _, err := io.Copy(part, content); err != nil {
		return "", &Error{Kind: KindValidation, Op: op, Err: err}
	}
	if err := mw.Close(); err != nil {
		return "", &Error{Kind: KindValidation, Op: op, Err: err}
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/files/upload", nil, &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := c.do(req)
	if err != nil {
		return "", err
	}
	var out models.MessageResponse
	if err := c.decode(resp, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

func (c *Client) LogFiles(ctx context.Context) ([]models.LogFile, error) {
	var out models.LogFileList
	if err := c.getJSON(ctx, "/api/logs/list", nil, &out); err != nil {
		return nil, err
	}
	return out.LogFiles, nil
}

// TailLog returns the last lines of file. An empty Logs slice is a valid,
// successful answer.
func (c *Client) TailLog(ctx context.Context, file string, lines int) (*models.LogTail, error) {
	q := url.Values{"file": {file}}
	if lines > 0 {
		q.Set("lines", strconv.Itoa(lines))
	}
	var out models.LogTail
	if err := c.getJSON(ctx, "/api/logs", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Users(ctx context.Context) ([]models.UserAccount, error) {
	var out models.UserList
	if err := c.getJSON(ctx, "/api/users", nil, &out); err != nil {
		return nil, err
	}
	return out.Users, nil
}

func (c *Client) CreateUser(ctx context.Context, username, password string) (string, error) {
	return c.sendMessage(ctx, http.MethodPost, "/api/users", models.CreateUserRequest{Username: username, Password: password})
}

func (c *Client) DeleteUser(ctx context.Context, username string) (string, error) {
	return c.sendMessage(ctx, http.MethodDelete, "/api/users/"+url.PathEscape(username), nil)
}

func (c *Client) ChangePassword(ctx context.Context, username, password string) (string, error) {
	return c.sendMessage(ctx, http.MethodPost, "/api/users/"+url.PathEscape(username)+"/password", models.PasswordRequest{Password: password})
}

// Execute runs command on the agent. A blocked command comes back as a
// KindDenied error carrying the agent's reason.
func (c *Client) Execute(ctx context.Context, command string) (*models.CommandResult, error) {
	var out models.CommandResult
	if err := c.sendJSON(ctx, http.MethodPost, "/api/command", models.CommandRequest{Command: command}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
