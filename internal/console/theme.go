package console

import "github.com/charmbracelet/lipgloss"

type theme struct {
	Header   lipgloss.Style
	Tab      lipgloss.Style
	TabOn    lipgloss.Style
	Frame    lipgloss.Style
	Muted    lipgloss.Style
	Accent   lipgloss.Style
	Selected lipgloss.Style
	Success  lipgloss.Style
	Alert    lipgloss.Style
	Danger   lipgloss.Style
	Confirm  lipgloss.Style
}

func defaultTheme() theme {
	accent := lipgloss.Color("#00FFFF")
	secondary := lipgloss.Color("#7D7D7D")
	success := lipgloss.Color("#00FF00")
	alert := lipgloss.Color("#FFBF00")
	danger := lipgloss.Color("#FF0055")

	return theme{
		Header: lipgloss.NewStyle().
			Bold(true).
			Foreground(accent),
		Tab: lipgloss.NewStyle().
			Foreground(secondary).
			Padding(0, 1),
		TabOn: lipgloss.NewStyle().
			Bold(true).
			Foreground(accent).
			Underline(true).
			Padding(0, 1),
		Frame: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(secondary).
			Padding(0, 1),
		Muted: lipgloss.NewStyle().
			Foreground(secondary),
		Accent: lipgloss.NewStyle().
			Foreground(accent),
		Selected: lipgloss.NewStyle().
			Bold(true).
			Foreground(accent),
		Success: lipgloss.NewStyle().
			Foreground(success),
		Alert: lipgloss.NewStyle().
			Foreground(alert),
		Danger: lipgloss.NewStyle().
			Foreground(danger),
		Confirm: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(danger).
			Padding(0, 1),
	}
}
