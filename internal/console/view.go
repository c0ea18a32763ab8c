package console

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/high001/webpanel/internal/models"
	"github.com/high001/webpanel/internal/notify"
	"github.com/high001/webpanel/internal/poller"
)

const (
	emptyLogText = "No log lines in this file"
	loadingText  = "Loading..."
)

func humanBytes(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.IBytes(uint64(n))
}

func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.loggedIn {
		return m.viewLogin()
	}

	var b strings.Builder
	b.WriteString(m.viewTabs())
	b.WriteString("\n\n")
	b.WriteString(m.viewBanners())

	switch m.view {
	case viewDashboard:
		b.WriteString(m.viewDashboard())
	case viewProcesses:
		b.WriteString(m.viewProcesses())
	case viewServices:
		b.WriteString(m.viewServices())
	case viewFiles:
		b.WriteString(m.viewFiles())
	case viewLogs:
		b.WriteString(m.viewLogs())
	case viewUsers:
		b.WriteString(m.viewUsers())
	case viewCommand:
		b.WriteString(m.viewCommand())
	}
	b.WriteString("\n")

	switch {
	case m.confirm != nil:
		b.WriteString(m.th.Confirm.Render(m.confirm.Prompt + "  " + m.th.Muted.Render("[y]es / [n]o")))
		b.WriteString("\n")
	case m.prompt != promptNone:
		b.WriteString(m.th.Frame.Render(m.input.View()))
		b.WriteString("\n")
	}

	b.WriteString(m.help.ShortHelpView(append(viewHelp(m.view), keys.Next, keys.Logout, keys.Quit)))
	return b.String()
}

func (m *Model) viewLogin() string {
	var b strings.Builder
	b.WriteString(m.th.Header.Render("webpanel"))
	b.WriteString(m.th.Muted.Render("  " + m.client.BaseURL()))
	b.WriteString("\n\n")
	b.WriteString(m.loginUser.View())
	b.WriteString("\n")
	b.WriteString(m.loginPass.View())
	b.WriteString("\n\n")
	switch {
	case m.loggingIn:
		b.WriteString(m.th.Muted.Render("Signing in..."))
	case m.loginErr != "":
		b.WriteString(m.th.Danger.Render(m.loginErr))
	default:
		b.WriteString(m.th.Muted.Render("tab switch field · enter sign in · ctrl+c quit"))
	}
	return m.th.Frame.Render(b.String())
}

func (m *Model) viewTabs() string {
	tabs := make([]string, 0, viewCount)
	for v := view(0); v < viewCount; v++ {
		name := fmt.Sprintf("%d %s", v+1, v)
		if v == m.view {
			tabs = append(tabs, m.th.TabOn.Render(name))
		} else {
			tabs = append(tabs, m.th.Tab.Render(name))
		}
	}
	user := m.th.Muted.Render("  " + m.client.Session().Username())
	return lipgloss.JoinHorizontal(lipgloss.Top, append(tabs, user)...)
}

func (m *Model) viewBanners() string {
	var b strings.Builder
	if n, ok := m.notes.Current(notify.Success); ok {
		b.WriteString(m.th.Success.Render("✓ " + n.Message))
		b.WriteString("\n")
	}
	if n, ok := m.notes.Current(notify.Error); ok {
		b.WriteString(m.th.Danger.Render("✗ " + n.Message))
		b.WriteString(m.th.Muted.Render("  (esc)"))
		b.WriteString("\n")
	}
	if b.Len() > 0 {
		b.WriteString("\n")
	}
	return b.String()
}

func (m *Model) row(i int, text string) string {
	if i == m.cursor {
		return m.th.Selected.Render("> " + text)
	}
	return "  " + text
}

func (m *Model) status(r models.Resource) (string, bool) {
	if m.poller.Loading(r) {
		return m.th.Muted.Render(loadingText), true
	}
	if _, ok := m.poller.Snapshot(r); !ok {
		return m.th.Muted.Render("No data"), true
	}
	return "", false
}

func (m *Model) updated(r models.Resource) string {
	at := m.poller.FetchedAt(r)
	if at.IsZero() {
		return ""
	}
	return m.th.Muted.Render("updated " + humanize.Time(at))
}

func meter(percent float64, width int) string {
	filled := int(percent / 100 * float64(width))
	filled = min(max(filled, 0), width)
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func (m *Model) usageStyle(percent float64) lipgloss.Style {
	switch {
	case percent >= 90:
		return m.th.Danger
	case percent >= 70:
		return m.th.Alert
	default:
		return m.th.Success
	}
}

func formatUptime(u models.Uptime) string {
	d := time.Duration(u.Days)*24*time.Hour + time.Duration(u.Hours)*time.Hour + time.Duration(u.Minutes)*time.Minute
	if d == 0 {
		return "just booted"
	}
	return fmt.Sprintf("%dd %dh %dm", u.Days, u.Hours, u.Minutes)
}

func (m *Model) viewDashboard() string {
	if s, empty := m.status(models.ResourceMetrics); empty {
		return s
	}
	stats, _ := poller.SnapshotAs[*models.DashboardStats](m.poller, models.ResourceMetrics)

	gauge := func(name string, percent float64, detail string) string {
		return fmt.Sprintf("%-7s %s %5.1f%%  %s",
			name, m.usageStyle(percent).Render(meter(percent, 30)), percent, m.th.Muted.Render(detail))
	}

	lines := []string{
		m.th.Header.Render(stats.Hostname) + m.th.Muted.Render("  "+stats.IPAddress+"  up "+formatUptime(stats.Uptime)),
		"",
		gauge("CPU", stats.CPU.Percent, fmt.Sprintf("%d cores", stats.CPU.Count)),
		gauge("Memory", stats.Memory.Percent,
			fmt.Sprintf("%s / %s", humanize.IBytes(stats.Memory.Used), humanize.IBytes(stats.Memory.Total))),
		gauge("Disk", stats.Disk.Percent,
			fmt.Sprintf("%s / %s, %s free", humanize.Bytes(stats.Disk.Used), humanize.Bytes(stats.Disk.Total), humanize.Bytes(stats.Disk.Free))),
		"",
		m.updated(models.ResourceMetrics),
	}
	return m.th.Frame.Render(strings.Join(lines, "\n"))
}

func (m *Model) viewProcesses() string {
	if s, empty := m.status(models.ResourceProcesses); empty {
		return s
	}
	procs, _ := poller.SnapshotAs[[]models.ProcessInfo](m.poller, models.ResourceProcesses)

	var b strings.Builder
	b.WriteString(m.th.Header.Render(fmt.Sprintf("  %7s  %-24s %-12s %6s %6s  %-10s %s",
		"PID", "NAME", "USER", "CPU%", "MEM%", "STATUS", "STARTED")))
	b.WriteString("\n")
	for i, p := range procs {
		b.WriteString(m.row(i, fmt.Sprintf("%7d  %-24s %-12s %6.1f %6.1f  %-10s %s",
			p.PID, truncate(p.Name, 24), truncate(p.Username, 12), p.CPUPercent, p.MemoryPercent, p.Status, p.CreateTime)))
		b.WriteString("\n")
	}
	b.WriteString(m.th.Muted.Render(fmt.Sprintf("%s processes  ", humanize.Comma(int64(len(procs))))))
	b.WriteString(m.updated(models.ResourceProcesses))
	return b.String()
}

func (m *Model) viewServices() string {
	if s, empty := m.status(models.ResourceServices); empty {
		return s
	}
	svcs, _ := poller.SnapshotAs[[]models.ServiceInfo](m.poller, models.ResourceServices)

	var b strings.Builder
	b.WriteString(m.th.Header.Render(fmt.Sprintf("  %-36s %-10s %-10s %s", "UNIT", "ACTIVE", "SUB", "DESCRIPTION")))
	b.WriteString("\n")
	for i, s := range svcs {
		var active string
		switch s.Active {
		case "active":
			active = m.th.Success.Render(fmt.Sprintf("%-10s", s.Active))
		case "failed":
			active = m.th.Danger.Render(fmt.Sprintf("%-10s", s.Active))
		default:
			active = fmt.Sprintf("%-10s", s.Active)
		}
		b.WriteString(m.row(i, fmt.Sprintf("%-36s %s %-10s %s", truncate(s.Name, 36), active, s.Sub, s.Description)))
		b.WriteString("\n")
	}
	if len(svcs) == 0 {
		b.WriteString(m.th.Muted.Render("No services reported"))
	}
	return b.String()
}

func (m *Model) viewFiles() string {
	var b strings.Builder
	b.WriteString(m.th.Header.Render(m.browser.Path()))
	if r := m.browser.Resolved(); r != m.browser.Path() {
		b.WriteString(m.th.Alert.Render("  (agent listed " + r + ")"))
	}
	b.WriteString("\n")

	if !m.browser.Listed() {
		b.WriteString(m.th.Muted.Render(loadingText))
		return b.String()
	}
	entries := m.browser.Entries()
	if len(entries) == 0 {
		b.WriteString(m.th.Muted.Render("Empty directory"))
		return b.String()
	}
	for i, e := range entries {
		name := e.Name
		size := humanBytes(e.Size)
		if e.IsDirectory {
			name = m.th.Accent.Render(name + "/")
			size = "-"
		}
		b.WriteString(m.row(i, fmt.Sprintf("%-10s %9s  %-19s %s", e.Permissions, size, e.Modified, name)))
		b.WriteString("\n")
	}
	return b.String()
}

func (m *Model) viewLogs() string {
	files, _ := poller.SnapshotAs[[]models.LogFile](m.poller, models.ResourceLogFiles)
	var list strings.Builder
	list.WriteString(m.th.Header.Render("Log files"))
	list.WriteString("\n")
	for i, f := range files {
		name := f.Name
		if f.Path == m.logFile {
			name = m.th.Accent.Render(name)
		}
		list.WriteString(m.row(i, name))
		list.WriteString("\n")
	}
	if len(files) == 0 {
		list.WriteString(m.th.Muted.Render("none"))
	}

	var tail strings.Builder
	tail.WriteString(m.th.Header.Render(fmt.Sprintf("%s (last %d lines)", m.logFile, m.logLines)))
	tail.WriteString("\n")
	if s, empty := m.status(models.ResourceLogs); empty {
		tail.WriteString(s)
	} else {
		t, _ := poller.SnapshotAs[*models.LogTail](m.poller, models.ResourceLogs)
		if t == nil || len(t.Logs) == 0 {
			tail.WriteString(m.th.Muted.Render(emptyLogText))
		} else {
			tail.WriteString(strings.Join(t.Logs, "\n"))
			tail.WriteString("\n")
			tail.WriteString(m.th.Muted.Render(fmt.Sprintf("%s lines shown", humanize.Comma(int64(t.TotalLines)))))
		}
	}

	return lipgloss.JoinHorizontal(lipgloss.Top,
		m.th.Frame.Render(list.String()),
		m.th.Frame.Render(tail.String()),
	)
}

func (m *Model) viewUsers() string {
	if s, empty := m.status(models.ResourceUsers); empty {
		return s
	}
	users, _ := poller.SnapshotAs[[]models.UserAccount](m.poller, models.ResourceUsers)

	var b strings.Builder
	b.WriteString(m.th.Header.Render(fmt.Sprintf("  %-20s %6s %6s  %-28s %s", "USER", "UID", "GID", "HOME", "SHELL")))
	b.WriteString("\n")
	for i, u := range users {
		b.WriteString(m.row(i, fmt.Sprintf("%-20s %6d %6d  %-28s %s", u.Username, u.UID, u.GID, u.Home, u.Shell)))
		b.WriteString("\n")
	}
	return b.String()
}

func (m *Model) viewCommand() string {
	var b strings.Builder
	b.WriteString(m.th.Frame.Render(m.command.View()))
	b.WriteString("\n")
	if m.outcome == nil {
		return b.String()
	}

	o := m.outcome
	status := m.th.Success.Render(fmt.Sprintf("exit %d", o.ReturnCode))
	if !o.Success {
		status = m.th.Danger.Render(fmt.Sprintf("exit %d", o.ReturnCode))
	}
	b.WriteString(m.th.Muted.Render("$ "+m.lastCmd) + "  " + status + "\n")
	if o.Stdout != "" {
		b.WriteString(strings.TrimRight(o.Stdout, "\n"))
		b.WriteString("\n")
	}
	if o.Stderr != "" {
		b.WriteString(m.th.Danger.Render(strings.TrimRight(o.Stderr, "\n")))
		b.WriteString("\n")
	}
	return b.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
