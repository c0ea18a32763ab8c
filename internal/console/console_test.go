package console

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/high001/webpanel/internal/client"
	"github.com/high001/webpanel/internal/config"
	"github.com/high001/webpanel/internal/models"
)

type fakeAgent struct {
	mu        sync.Mutex
	gets      map[string]int
	kills     []string
	commands  []string
	logQuery  url.Values
	logs      []string
	expired   bool
	blockCmds bool
}

func newFakeAgent() *fakeAgent {
	return &fakeAgent{gets: map[string]int{}}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *fakeAgent) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/login", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, models.LoginResponse{Success: true, Message: "Login successful", Token: "token-1"})
	})
	mux.HandleFunc("POST /api/logout", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, models.MessageResponse{Success: true, Message: "Logged out"})
	})
	mux.HandleFunc("GET /api/dashboard/stats", func(w http.ResponseWriter, r *http.Request) {
		a.count("stats")
		writeJSON(w, http.StatusOK, models.DashboardStats{
			CPU:      models.CPUStats{Percent: 12.5, Count: 4},
			Memory:   models.MemoryStats{Total: 8 << 30, Used: 2 << 30, Percent: 25},
			Disk:     models.DiskStats{Total: 100 << 30, Used: 40 << 30, Free: 60 << 30, Percent: 40},
			Hostname: "web-01",
		})
	})
	mux.HandleFunc("GET /api/processes", func(w http.ResponseWriter, r *http.Request) {
		a.count("processes")
		a.mu.Lock()
		expired := a.expired
		a.mu.Unlock()
		if expired {
			writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Session expired"})
			return
		}
		writeJSON(w, http.StatusOK, models.ProcessList{Processes: []models.ProcessInfo{
			{PID: 1, Name: "systemd", Username: "root", Status: "sleeping"},
			{PID: 1234, Name: "nginx", Username: "www-data", Status: "running"},
			{PID: 99, Name: "sshd", Username: "root", Status: "sleeping"},
		}})
	})
	mux.HandleFunc("POST /api/processes/{pid}/kill", func(w http.ResponseWriter, r *http.Request) {
		pid := r.PathValue("pid")
		a.mu.Lock()
		a.kills = append(a.kills, pid)
		a.mu.Unlock()
		if pid == "1" {
			writeJSON(w, http.StatusForbidden, models.ErrorResponse{Error: "Access denied"})
			return
		}
		writeJSON(w, http.StatusOK, models.MessageResponse{Success: true, Message: "Process " + pid + " terminated"})
	})
	mux.HandleFunc("GET /api/logs/list", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, models.LogFileList{LogFiles: []models.LogFile{{Name: "syslog", Path: "/var/log/syslog"}}})
	})
	mux.HandleFunc("GET /api/logs", func(w http.ResponseWriter, r *http.Request) {
		a.mu.Lock()
		a.logQuery = r.URL.Query()
		lines := a.logs
		a.mu.Unlock()
		writeJSON(w, http.StatusOK, models.LogTail{Logs: lines, File: r.URL.Query().Get("file"), TotalLines: len(lines)})
	})
	mux.HandleFunc("POST /api/command", func(w http.ResponseWriter, r *http.Request) {
		var req models.CommandRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		a.mu.Lock()
		a.commands = append(a.commands, req.Command)
		block := a.blockCmds
		a.mu.Unlock()
		if block {
			writeJSON(w, http.StatusForbidden, models.ErrorResponse{Error: "Command blocked for security reasons"})
			return
		}
		writeJSON(w, http.StatusOK, models.CommandResult{Success: true, Stdout: "out of " + req.Command + "\n"})
	})
	return mux
}

func (a *fakeAgent) count(name string) {
	a.mu.Lock()
	a.gets[name]++
	a.mu.Unlock()
}

func (a *fakeAgent) getCount(name string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.gets[name]
}

func (a *fakeAgent) killed() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.kills...)
}

func noTimer(time.Duration, tea.Msg) tea.Cmd { return nil }

func newTestConsole(t *testing.T, login bool) (*Model, *fakeAgent) {
	t.Helper()
	agent := newFakeAgent()
	srv := httptest.NewServer(agent.handler())
	t.Cleanup(srv.Close)

	c, err := client.New(srv.URL)
	require.NoError(t, err)
	if login {
		require.NoError(t, c.Login(context.Background(), "admin", "secret"))
	}

	cfg := config.DefaultConsole()
	cfg.AgentURL = srv.URL
	cfg.Files.DownloadDir = t.TempDir()
	m := New(cfg, c, WithSchedule(noTimer), WithAfterFunc(noTimer))
	drive(t, m, m.Init())
	return m, agent
}

// drive runs cmd and every command it produces, feeding messages to m
func drive(t *testing.T, m *Model, cmd tea.Cmd) {
	t.Helper()
	queue := []tea.Cmd{cmd}
	for steps := 0; len(queue) > 0; steps++ {
		require.Less(t, steps, 1000, "command loop did not settle")
		c := queue[0]
		queue = queue[1:]
		if c == nil {
			continue
		}
		msg := c()
		if batch, ok := msg.(tea.BatchMsg); ok {
			queue = append(queue, batch...)
			continue
		}
		if msg == nil {
			continue
		}
		_, next := m.Update(msg)
		queue = append(queue, next)
	}
}

func press(t *testing.T, m *Model, msgs ...tea.KeyMsg) {
	t.Helper()
	for _, k := range msgs {
		_, cmd := m.Update(k)
		drive(t, m, cmd)
	}
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

var (
	keyDown  = tea.KeyMsg{Type: tea.KeyDown}
	keyEnter = tea.KeyMsg{Type: tea.KeyEnter}
	keyTab   = tea.KeyMsg{Type: tea.KeyTab}
	keyEsc   = tea.KeyMsg{Type: tea.KeyEsc}
)

func TestKillRequiresConfirmation(t *testing.T) {
	m, agent := newTestConsole(t, true)

	press(t, m, runes("2"))
	require.Equal(t, 1, agent.getCount("processes"))
	assert.Contains(t, m.View(), "nginx")

	press(t, m, keyDown, runes("k"))
	assert.Contains(t, m.View(), "Kill process 1234 (nginx)?")
	assert.Empty(t, agent.killed(), "no mutation before confirmation")

	press(t, m, runes("n"))
	assert.Empty(t, agent.killed(), "cancelled confirmation must not mutate")
	assert.Equal(t, 1, agent.getCount("processes"), "displayed list unchanged")
	assert.NotContains(t, m.View(), "Kill process 1234")

	press(t, m, runes("k"), runes("y"))
	assert.Equal(t, []string{"1234"}, agent.killed())
	assert.Contains(t, m.View(), "Process 1234 terminated")
	assert.Equal(t, 2, agent.getCount("processes"), "one reconciliation fetch")
}

func TestKillFailureShowsAgentMessage(t *testing.T) {
	m, agent := newTestConsole(t, true)

	press(t, m, runes("2"), runes("k"), runes("y"))
	assert.Equal(t, []string{"1"}, agent.killed())
	assert.Contains(t, m.View(), "Access denied")
	assert.Equal(t, 1, agent.getCount("processes"), "failed mutations are not reconciled")

	// leaving the view drops its banner
	press(t, m, runes("1"))
	assert.NotContains(t, m.View(), "Access denied")
}

func TestZeroLogLinesRendersEmptyState(t *testing.T) {
	m, agent := newTestConsole(t, true)

	press(t, m, runes("5"))

	agent.mu.Lock()
	q := agent.logQuery
	agent.mu.Unlock()
	require.NotNil(t, q)
	assert.Equal(t, "100", q.Get("lines"))
	assert.Equal(t, "/var/log/syslog", q.Get("file"))

	view := m.View()
	assert.Contains(t, view, emptyLogText)
	assert.NotContains(t, view, "Failed")
}

func TestLogLinesRendered(t *testing.T) {
	m, agent := newTestConsole(t, true)
	agent.logs = []string{"first line", "second line"}

	press(t, m, runes("5"))
	view := m.View()
	assert.Contains(t, view, "first line")
	assert.Contains(t, view, "second line")
	assert.NotContains(t, view, emptyLogText)

	press(t, m, runes("+"))
	agent.mu.Lock()
	assert.Equal(t, "200", agent.logQuery.Get("lines"))
	agent.mu.Unlock()
}

func TestLoginScreen(t *testing.T) {
	m, agent := newTestConsole(t, false)
	assert.Contains(t, m.View(), "enter sign in")
	assert.Zero(t, agent.getCount("stats"))

	press(t, m, keyEnter)
	assert.Contains(t, m.View(), "Username and password are required")

	press(t, m, runes("admin"), keyTab, runes("secret"), keyEnter)
	assert.True(t, m.loggedIn)
	assert.Equal(t, "admin", m.client.Session().Username())
	assert.Equal(t, 1, agent.getCount("stats"))
	assert.Contains(t, m.View(), "web-01")
}

func TestAuthErrorReturnsToLogin(t *testing.T) {
	m, agent := newTestConsole(t, true)
	agent.mu.Lock()
	agent.expired = true
	agent.mu.Unlock()

	press(t, m, runes("2"))
	assert.False(t, m.loggedIn)
	assert.Contains(t, m.View(), "Session expired")
	assert.False(t, m.client.Session().Active())
}

func TestCommandOutcomeReplacesPrevious(t *testing.T) {
	m, agent := newTestConsole(t, true)

	press(t, m, runes("7"), runes("uptime"), keyEnter)
	assert.Contains(t, m.View(), `Run "uptime" on the host?`)
	assert.Empty(t, agent.commands)

	press(t, m, runes("y"))
	assert.Contains(t, m.View(), "out of uptime")

	m.command.SetValue("whoami")
	press(t, m, keyEnter, runes("y"))
	view := m.View()
	assert.Contains(t, view, "out of whoami")
	assert.NotContains(t, view, "out of uptime")
	assert.Equal(t, []string{"uptime", "whoami"}, agent.commands)
}

func TestBlockedCommandSurfacesDenial(t *testing.T) {
	m, agent := newTestConsole(t, true)
	agent.blockCmds = true

	press(t, m, runes("7"), runes("rm -rf /"), keyEnter, runes("y"))
	view := m.View()
	assert.Contains(t, view, "Command blocked for security reasons")
	assert.Nil(t, m.outcome)
}

func TestEmptyCommandIsRejectedLocally(t *testing.T) {
	m, agent := newTestConsole(t, true)
	press(t, m, runes("7"), keyEnter)
	assert.Contains(t, m.View(), "No command provided")
	assert.Nil(t, m.confirm)
	assert.Empty(t, agent.commands)
}

func TestViewSwitchDropsPendingConfirmation(t *testing.T) {
	m, _ := newTestConsole(t, true)
	press(t, m, runes("2"), runes("k"))
	require.NotNil(t, m.confirm)

	press(t, m, keyTab)
	assert.Nil(t, m.confirm)
	assert.Equal(t, viewServices, m.view)
	_, pending := m.dispatch.Pending()
	assert.False(t, pending)
	assert.False(t, strings.Contains(m.View(), "Kill process"))
}

func TestConfirmRequestAfterViewSwitchIsIgnored(t *testing.T) {
	m, agent := newTestConsole(t, true)
	press(t, m, runes("2"), runes("k"))
	require.NotNil(t, m.confirm)
	stale := *m.confirm

	press(t, m, keyTab)
	_, cmd := m.Update(stale)
	assert.Nil(t, cmd)
	assert.Nil(t, m.confirm)
	assert.NotContains(t, m.View(), "Kill process")

	press(t, m, runes("y"))
	assert.Empty(t, agent.killed())
}

func TestEscCancelsConfirmation(t *testing.T) {
	m, agent := newTestConsole(t, true)
	press(t, m, runes("2"), runes("k"))
	require.NotNil(t, m.confirm)

	press(t, m, keyEsc)
	assert.Nil(t, m.confirm)
	_, pending := m.dispatch.Pending()
	assert.False(t, pending)

	press(t, m, runes("y"))
	assert.Empty(t, agent.killed())
	assert.Equal(t, viewProcesses, m.view)
}
