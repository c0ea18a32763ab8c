// Package console is the operator's terminal front end to the agent. It owns
// one poller, one notification scheduler, one dispatcher and the file browser,
// and rebuilds their state whenever the operator switches views.
package console

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/high001/webpanel/internal/browser"
	"github.com/high001/webpanel/internal/client"
	"github.com/high001/webpanel/internal/config"
	"github.com/high001/webpanel/internal/dispatch"
	"github.com/high001/webpanel/internal/models"
	"github.com/high001/webpanel/internal/notify"
	"github.com/high001/webpanel/internal/poller"
)

type view int

const (
	viewDashboard view = iota
	viewProcesses
	viewServices
	viewFiles
	viewLogs
	viewUsers
	viewCommand
	viewCount
)

func (v view) String() string {
	switch v {
	case viewDashboard:
		return "Dashboard"
	case viewProcesses:
		return "Processes"
	case viewServices:
		return "Services"
	case viewFiles:
		return "Files"
	case viewLogs:
		return "Logs"
	case viewUsers:
		return "Users"
	case viewCommand:
		return "Command"
	default:
		return "?"
	}
}

type promptKind int

const (
	promptNone promptKind = iota
	promptUpload
	promptNewUser
	promptNewUserPassword
	promptPassword
)

// SessionEndedMsg returns the console to the login screen
type SessionEndedMsg struct {
	Err error
}

type loginDoneMsg struct {
	err error
}

type logoutDoneMsg struct{}

const maxLogLines = 1000

type Model struct {
	cfg    config.ConsoleConfig
	client *client.Client
	th     theme
	help   help.Model
	logger zerolog.Logger

	schedule poller.ScheduleFunc
	after    notify.AfterFunc

	poller   *poller.Poller
	notes    *notify.Scheduler
	dispatch *dispatch.Dispatcher
	browser  *browser.Browser

	width    int
	height   int
	loggedIn bool
	view     view
	cursor   int

	confirm *dispatch.ConfirmRequestMsg

	prompt    promptKind
	promptFor string
	input     textinput.Model
	newUser   string
	command   textinput.Model
	lastCmd   string
	outcome   *models.CommandResult
	logFile   string
	logLines  int
	loginUser textinput.Model
	loginPass textinput.Model
	loginErr  string
	loggingIn bool
	quitting  bool
}

// Option configures a Model
type Option func(*Model)

// WithSchedule replaces the poller's tick source
func WithSchedule(fn poller.ScheduleFunc) Option {
	return func(m *Model) {
		m.schedule = fn
	}
}

// WithAfterFunc replaces the notification expiry timer source
func WithAfterFunc(fn notify.AfterFunc) Option {
	return func(m *Model) {
		m.after = fn
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(m *Model) {
		m.logger = l
	}
}

func newInput(placeholder string) textinput.Model {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.Cursor.SetMode(cursor.CursorStatic)
	return ti
}

// New builds the console for an agent client. The session of c decides
// whether the console starts on the login screen.
func New(cfg config.ConsoleConfig, c *client.Client, opts ...Option) *Model {
	m := &Model{
		cfg:      cfg,
		client:   c,
		th:       defaultTheme(),
		help:     help.New(),
		logger:   zerolog.Nop(),
		schedule: poller.TeaSchedule,
		after:    notify.TeaAfter,
		logFile:  cfg.Logs.DefaultFile,
		logLines: cfg.Logs.DefaultLines,
	}
	for _, opt := range opts {
		opt(m)
	}

	m.poller = poller.New(
		poller.WithSchedule(m.schedule),
		poller.WithLogger(m.logger.With().Str("component", "poller").Logger()),
	)
	m.notes = notify.New(cfg.Notifications.SuccessTTL, cfg.Notifications.ErrorTTL, notify.WithAfterFunc(m.after))
	m.dispatch = dispatch.New(c, m.poller, m.notes,
		dispatch.WithLogger(m.logger.With().Str("component", "dispatch").Logger()))
	m.browser = browser.New(c, m.poller, cfg.Files.StartPath)

	m.poller.Subscribe(models.ResourceMetrics, cfg.Poll.Metrics, m.fetch(models.ResourceMetrics, nil))
	m.poller.Subscribe(models.ResourceProcesses, cfg.Poll.Processes, m.fetch(models.ResourceProcesses, nil))
	m.poller.Subscribe(models.ResourceServices, cfg.Poll.Services, m.fetch(models.ResourceServices, nil))
	m.poller.Subscribe(models.ResourceUsers, cfg.Poll.Users, m.fetch(models.ResourceUsers, nil))
	m.poller.Subscribe(models.ResourceLogFiles, 0, m.fetch(models.ResourceLogFiles, nil))
	m.poller.Subscribe(models.ResourceLogs, cfg.Poll.Logs, m.tailFetch())

	m.input = newInput("")
	m.command = newInput("command to run on the host")
	m.command.Prompt = "$ "
	m.loginUser = newInput("username")
	m.loginPass = newInput("password")
	m.loginPass.EchoMode = textinput.EchoPassword
	m.loginUser.Focus()
	return m
}

func (m *Model) fetch(r models.Resource, params url.Values) poller.FetchFunc {
	c := m.client
	return func(ctx context.Context) (any, error) {
		return c.Fetch(ctx, r, params)
	}
}

func (m *Model) tailFetch() poller.FetchFunc {
	return m.fetch(models.ResourceLogs, url.Values{
		client.ParamFile:  {m.logFile},
		client.ParamLines: {strconv.Itoa(m.logLines)},
	})
}

func (m *Model) Init() tea.Cmd {
	if m.client.Session().Active() {
		m.loggedIn = true
		return m.activate(viewDashboard)
	}
	return nil
}

// deactivate tears down everything the current view owns
func (m *Model) deactivate() {
	m.poller.DeactivateAll()
	m.notes.ClearAll()
	m.dispatch.Reset()
	m.confirm = nil
	m.closePrompt()
	m.outcome = nil
	m.lastCmd = ""
	m.command.Blur()
	m.cursor = 0
}

func (m *Model) activate(v view) tea.Cmd {
	m.deactivate()
	m.view = v
	m.logger.Debug().Stringer("view", v).Msg("view activated")

	switch v {
	case viewDashboard:
		return m.poller.Activate(models.ResourceMetrics)
	case viewProcesses:
		return m.poller.Activate(models.ResourceProcesses)
	case viewServices:
		return m.poller.Activate(models.ResourceServices)
	case viewFiles:
		return m.browser.Activate()
	case viewLogs:
		m.poller.Rebind(models.ResourceLogs, m.tailFetch())
		return tea.Batch(
			m.poller.Activate(models.ResourceLogFiles),
			m.poller.Activate(models.ResourceLogs),
		)
	case viewUsers:
		return m.poller.Activate(models.ResourceUsers)
	case viewCommand:
		m.command.Reset()
		return m.command.Focus()
	}
	return nil
}

// resources returns the poller resources the current view displays
func (m *Model) resources() []models.Resource {
	switch m.view {
	case viewDashboard:
		return []models.Resource{models.ResourceMetrics}
	case viewProcesses:
		return []models.Resource{models.ResourceProcesses}
	case viewServices:
		return []models.Resource{models.ResourceServices}
	case viewFiles:
		return []models.Resource{models.ResourceFiles}
	case viewLogs:
		return []models.Resource{models.ResourceLogFiles, models.ResourceLogs}
	case viewUsers:
		return []models.Resource{models.ResourceUsers}
	}
	return nil
}

func (m *Model) endSession(reason error) tea.Cmd {
	if !m.loggedIn {
		return nil
	}
	m.deactivate()
	m.loggedIn = false
	m.loggingIn = false
	m.loginErr = ""
	if reason != nil {
		m.loginErr = client.MessageOr(reason, "Session expired, please log in again")
	}
	m.loginPass.Reset()
	m.loginPass.Blur()
	m.logger.Info().Err(reason).Msg("session ended")
	return m.loginUser.Focus()
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		return m, nil

	case SessionEndedMsg:
		return m, m.endSession(msg.Err)

	case loginDoneMsg:
		m.loggingIn = false
		if msg.err != nil {
			m.loginErr = client.MessageOr(msg.err, "Login failed")
			return m, nil
		}
		m.loginErr = ""
		m.loggedIn = true
		m.loginPass.Reset()
		m.loginUser.Blur()
		m.loginPass.Blur()
		return m, m.activate(viewDashboard)

	case logoutDoneMsg:
		return m, m.endSession(nil)

	case poller.TickMsg, poller.ResultMsg:
		return m, m.onPoll(msg)

	case notify.ExpiredMsg:
		m.notes.Update(msg)
		return m, nil

	case dispatch.ConfirmRequestMsg:
		// a request raised before a view switch has no pending action left
		if p, ok := m.dispatch.Pending(); !ok || p.ID != msg.ActionID {
			return m, nil
		}
		m.confirm = &msg
		return m, nil

	case dispatch.DoneMsg:
		return m, m.onDone(msg)

	case browser.DownloadedMsg:
		if msg.Err != nil {
			return m, m.fail(msg.Err, "Failed to download file")
		}
		return m, m.notes.ShowDefault(notify.Success, fmt.Sprintf("Saved %s (%s)", msg.Local, humanBytes(msg.Bytes)))

	case browser.UploadedMsg:
		if msg.Err != nil {
			return m, m.fail(msg.Err, "Failed to upload file")
		}
		text := msg.Message
		if text == "" {
			text = "Uploaded " + msg.Filename
		}
		return m, tea.Batch(m.notes.ShowDefault(notify.Success, text), m.browser.Uploaded(msg))

	case tea.KeyMsg:
		return m, m.onKey(msg)
	}
	return m, nil
}

func (m *Model) onPoll(msg tea.Msg) tea.Cmd {
	res, cmd := m.poller.Update(msg)
	if res.Resource == models.ResourceFiles {
		m.browser.Apply(res)
	}
	if res.Err != nil {
		cmd = tea.Batch(cmd, m.fail(res.Err, "Failed to load "+label(res.Resource)))
	}
	m.clampCursor()
	return cmd
}

func (m *Model) onDone(msg dispatch.DoneMsg) tea.Cmd {
	out, cmd := m.dispatch.Update(msg)
	if !out.Handled {
		return nil
	}
	if out.Err != nil && client.IsAuth(out.Err) {
		return m.endSession(out.Err)
	}
	if out.Action.Resource == models.ResourceCommand {
		m.lastCmd = out.Action.Target
		m.outcome = nil
		if out.Result != nil {
			m.outcome = out.Result.Command
		}
	}
	return cmd
}

// fail raises an error banner, or ends the session for auth failures
func (m *Model) fail(err error, fallback string) tea.Cmd {
	if client.IsAuth(err) {
		return m.endSession(err)
	}
	return m.notes.ShowDefault(notify.Error, client.MessageOr(err, fallback))
}

func label(r models.Resource) string {
	switch r {
	case models.ResourceMetrics:
		return "system stats"
	case models.ResourceLogFiles:
		return "log files"
	case models.ResourceFiles:
		return "directory"
	}
	return r.String()
}

func (m *Model) listLen() int {
	switch m.view {
	case viewProcesses:
		procs, _ := poller.SnapshotAs[[]models.ProcessInfo](m.poller, models.ResourceProcesses)
		return len(procs)
	case viewServices:
		svcs, _ := poller.SnapshotAs[[]models.ServiceInfo](m.poller, models.ResourceServices)
		return len(svcs)
	case viewFiles:
		return len(m.browser.Entries())
	case viewLogs:
		files, _ := poller.SnapshotAs[[]models.LogFile](m.poller, models.ResourceLogFiles)
		return len(files)
	case viewUsers:
		users, _ := poller.SnapshotAs[[]models.UserAccount](m.poller, models.ResourceUsers)
		return len(users)
	}
	return 0
}

func (m *Model) clampCursor() {
	n := m.listLen()
	if m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m *Model) onKey(k tea.KeyMsg) tea.Cmd {
	if key.Matches(k, keys.Force) {
		m.quitting = true
		return tea.Quit
	}
	if !m.loggedIn {
		return m.onLoginKey(k)
	}
	switch {
	case key.Matches(k, keys.Next):
		return m.activate((m.view + 1) % viewCount)
	case key.Matches(k, keys.Prev):
		return m.activate((m.view + viewCount - 1) % viewCount)
	}
	if m.confirm != nil {
		return m.onConfirmKey(k)
	}
	if m.prompt != promptNone {
		return m.onPromptKey(k)
	}

	if key.Matches(k, keys.Logout) {
		c := m.client
		return func() tea.Msg {
			_ = c.Logout(context.Background())
			return logoutDoneMsg{}
		}
	}
	if m.view == viewCommand {
		return m.onCommandKey(k)
	}

	for i, b := range keys.Views {
		if key.Matches(k, b) {
			return m.activate(view(i))
		}
	}

	switch {
	case key.Matches(k, keys.Quit):
		m.quitting = true
		return tea.Quit
	case key.Matches(k, keys.Dismiss):
		m.notes.Clear(notify.Error)
		return nil
	case key.Matches(k, keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
		return nil
	case key.Matches(k, keys.Down):
		if m.cursor < m.listLen()-1 {
			m.cursor++
		}
		return nil
	case key.Matches(k, keys.Refresh):
		if m.view == viewFiles {
			return m.browser.Refresh()
		}
		var cmds []tea.Cmd
		for _, r := range m.resources() {
			cmds = append(cmds, m.poller.Refresh(r))
		}
		return tea.Batch(cmds...)
	}

	switch m.view {
	case viewProcesses:
		return m.onProcessesKey(k)
	case viewServices:
		return m.onServicesKey(k)
	case viewFiles:
		return m.onFilesKey(k)
	case viewLogs:
		return m.onLogsKey(k)
	case viewUsers:
		return m.onUsersKey(k)
	}
	return nil
}

func (m *Model) onLoginKey(k tea.KeyMsg) tea.Cmd {
	if m.loggingIn {
		return nil
	}
	switch {
	case key.Matches(k, keys.Next), key.Matches(k, keys.Prev):
		if m.loginUser.Focused() {
			m.loginUser.Blur()
			return m.loginPass.Focus()
		}
		m.loginPass.Blur()
		return m.loginUser.Focus()
	case key.Matches(k, keys.Submit):
		user := strings.TrimSpace(m.loginUser.Value())
		pass := m.loginPass.Value()
		if user == "" || pass == "" {
			m.loginErr = "Username and password are required"
			return nil
		}
		m.loggingIn = true
		c := m.client
		return func() tea.Msg {
			return loginDoneMsg{err: c.Login(context.Background(), user, pass)}
		}
	}

	var cmd tea.Cmd
	if m.loginUser.Focused() {
		m.loginUser, cmd = m.loginUser.Update(k)
	} else {
		m.loginPass, cmd = m.loginPass.Update(k)
	}
	return cmd
}

func (m *Model) onConfirmKey(k tea.KeyMsg) tea.Cmd {
	req := *m.confirm
	switch {
	case key.Matches(k, keys.Yes):
		m.confirm = nil
		return m.dispatch.Confirm(dispatch.Confirmation{ActionID: req.ActionID, Target: req.Target, Affirmative: true})
	case key.Matches(k, keys.No):
		m.confirm = nil
		return m.dispatch.Confirm(dispatch.Confirmation{ActionID: req.ActionID, Target: req.Target, Affirmative: false})
	case key.Matches(k, keys.Dismiss):
		m.confirm = nil
		m.dispatch.Cancel()
	}
	return nil
}

func (m *Model) openPrompt(kind promptKind, target, placeholder string, secret bool) tea.Cmd {
	m.prompt = kind
	m.promptFor = target
	m.input.Reset()
	m.input.Placeholder = placeholder
	m.input.EchoMode = textinput.EchoNormal
	if secret {
		m.input.EchoMode = textinput.EchoPassword
	}
	return m.input.Focus()
}

func (m *Model) closePrompt() {
	m.prompt = promptNone
	m.promptFor = ""
	m.newUser = ""
	m.input.Reset()
	m.input.Blur()
}

func (m *Model) onPromptKey(k tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(k, keys.Dismiss):
		m.closePrompt()
		return nil
	case key.Matches(k, keys.Submit):
		return m.submitPrompt()
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(k)
	return cmd
}

func (m *Model) submitPrompt() tea.Cmd {
	value := m.input.Value()
	kind, target := m.prompt, m.promptFor

	switch kind {
	case promptUpload:
		m.closePrompt()
		if strings.TrimSpace(value) == "" {
			return nil
		}
		return m.browser.Upload(strings.TrimSpace(value), "")

	case promptNewUser:
		name := strings.TrimSpace(value)
		if name == "" {
			return m.notes.ShowDefault(notify.Error, "Username is required")
		}
		cmd := m.openPrompt(promptNewUserPassword, name, "password for "+name, true)
		m.newUser = name
		return cmd

	case promptNewUserPassword:
		name := m.newUser
		m.closePrompt()
		if value == "" {
			return m.notes.ShowDefault(notify.Error, "Password is required")
		}
		return m.dispatch.Request(dispatch.Action{
			Resource:    models.ResourceUsers,
			Target:      name,
			Op:          client.OpCreate,
			Payload:     models.CreateUserRequest{Username: name, Password: value},
			Noun:        "user",
			FailureText: "Failed to create user",
		})

	case promptPassword:
		m.closePrompt()
		if value == "" {
			return m.notes.ShowDefault(notify.Error, "Password is required")
		}
		return m.dispatch.Request(dispatch.Action{
			Resource:    models.ResourceUsers,
			Target:      target,
			Op:          client.OpPassword,
			Payload:     models.PasswordRequest{Password: value},
			FailureText: "Failed to change password",
		})
	}
	m.closePrompt()
	return nil
}

func (m *Model) onCommandKey(k tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(k, keys.Dismiss):
		m.notes.Clear(notify.Error)
		return nil
	case key.Matches(k, keys.Submit):
		line := strings.TrimSpace(m.command.Value())
		if line == "" {
			return m.notes.ShowDefault(notify.Error, "No command provided")
		}
		return m.dispatch.Request(dispatch.Action{
			Resource:    models.ResourceCommand,
			Target:      line,
			Op:          client.OpExecute,
			Noun:        "command",
			Destructive: true,
			Prompt:      fmt.Sprintf("Run %q on the host?", line),
			SuccessText: "Command executed",
			FailureText: "Command execution failed",
		})
	}
	var cmd tea.Cmd
	m.command, cmd = m.command.Update(k)
	return cmd
}

func (m *Model) selectedProcess() (models.ProcessInfo, bool) {
	procs, _ := poller.SnapshotAs[[]models.ProcessInfo](m.poller, models.ResourceProcesses)
	if m.cursor < 0 || m.cursor >= len(procs) {
		return models.ProcessInfo{}, false
	}
	return procs[m.cursor], true
}

func (m *Model) onProcessesKey(k tea.KeyMsg) tea.Cmd {
	if !key.Matches(k, keys.Kill) {
		return nil
	}
	p, ok := m.selectedProcess()
	if !ok {
		return nil
	}
	return m.dispatch.Request(dispatch.Action{
		Resource:    models.ResourceProcesses,
		Target:      strconv.FormatInt(int64(p.PID), 10),
		Op:          client.OpKill,
		Noun:        "process",
		Destructive: true,
		Prompt:      fmt.Sprintf("Kill process %d (%s)?", p.PID, p.Name),
	})
}

func (m *Model) onServicesKey(k tea.KeyMsg) tea.Cmd {
	var op string
	switch {
	case key.Matches(k, keys.Start):
		op = models.ServiceStart
	case key.Matches(k, keys.Stop):
		op = models.ServiceStop
	case key.Matches(k, keys.Restart):
		op = models.ServiceRestart
	case key.Matches(k, keys.Reload):
		op = models.ServiceReload
	default:
		return nil
	}
	svcs, _ := poller.SnapshotAs[[]models.ServiceInfo](m.poller, models.ResourceServices)
	if m.cursor >= len(svcs) {
		return nil
	}
	name := svcs[m.cursor].Name
	return m.dispatch.Request(dispatch.Action{
		Resource:    models.ResourceServices,
		Target:      name,
		Op:          op,
		Noun:        "service",
		Destructive: op == models.ServiceStop,
		Prompt:      fmt.Sprintf("Stop service %s?", name),
	})
}

func (m *Model) onFilesKey(k tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(k, keys.Open):
		cmd := m.browser.Enter(m.cursor)
		if cmd != nil {
			m.cursor = 0
		}
		return cmd
	case key.Matches(k, keys.Parent):
		cmd := m.browser.Up()
		if cmd != nil {
			m.cursor = 0
		}
		return cmd
	case key.Matches(k, keys.Download):
		entries := m.browser.Entries()
		if m.cursor >= len(entries) || entries[m.cursor].IsDirectory {
			return nil
		}
		return m.browser.Download(entries[m.cursor].Path, m.cfg.Files.DownloadDir)
	case key.Matches(k, keys.Upload):
		return m.openPrompt(promptUpload, m.browser.Path(), "local file to upload into "+m.browser.Path(), false)
	}
	return nil
}

func (m *Model) onLogsKey(k tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(k, keys.Open):
		files, _ := poller.SnapshotAs[[]models.LogFile](m.poller, models.ResourceLogFiles)
		if m.cursor >= len(files) {
			return nil
		}
		m.logFile = files[m.cursor].Path
	case key.Matches(k, keys.More):
		m.logLines = min(m.logLines*2, maxLogLines)
	case key.Matches(k, keys.Less):
		m.logLines = max(m.logLines/2, 10)
	default:
		return nil
	}
	m.poller.Rebind(models.ResourceLogs, m.tailFetch())
	return m.poller.Refresh(models.ResourceLogs)
}

func (m *Model) selectedUser() (models.UserAccount, bool) {
	users, _ := poller.SnapshotAs[[]models.UserAccount](m.poller, models.ResourceUsers)
	if m.cursor < 0 || m.cursor >= len(users) {
		return models.UserAccount{}, false
	}
	return users[m.cursor], true
}

func (m *Model) onUsersKey(k tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(k, keys.AddUser):
		return m.openPrompt(promptNewUser, "", "new username", false)
	case key.Matches(k, keys.Password):
		u, ok := m.selectedUser()
		if !ok {
			return nil
		}
		return m.openPrompt(promptPassword, u.Username, "new password for "+u.Username, true)
	case key.Matches(k, keys.DelUser):
		u, ok := m.selectedUser()
		if !ok {
			return nil
		}
		return m.dispatch.Request(dispatch.Action{
			Resource:    models.ResourceUsers,
			Target:      u.Username,
			Op:          client.OpDelete,
			Noun:        "user",
			Destructive: true,
			Prompt:      fmt.Sprintf("Delete user %s and their home directory?", u.Username),
		})
	}
	return nil
}
