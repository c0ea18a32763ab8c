package console

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Quit     key.Binding
	Force    key.Binding
	Next     key.Binding
	Prev     key.Binding
	Up       key.Binding
	Down     key.Binding
	Refresh  key.Binding
	Dismiss  key.Binding
	Yes      key.Binding
	No       key.Binding
	Submit   key.Binding
	Logout   key.Binding
	Views    [7]key.Binding
	Kill     key.Binding
	Start    key.Binding
	Stop     key.Binding
	Restart  key.Binding
	Reload   key.Binding
	Open     key.Binding
	Parent   key.Binding
	Download key.Binding
	Upload   key.Binding
	More     key.Binding
	Less     key.Binding
	AddUser  key.Binding
	Password key.Binding
	DelUser  key.Binding
}

var keys = keyMap{
	Quit:    key.NewBinding(key.WithKeys("q"), key.WithHelp("q", "quit")),
	Force:   key.NewBinding(key.WithKeys("ctrl+c")),
	Next:    key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next view")),
	Prev:    key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "prev view")),
	Up:      key.NewBinding(key.WithKeys("up"), key.WithHelp("↑", "up")),
	Down:    key.NewBinding(key.WithKeys("down"), key.WithHelp("↓", "down")),
	Refresh: key.NewBinding(key.WithKeys("ctrl+r"), key.WithHelp("ctrl+r", "refresh")),
	Dismiss: key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "dismiss")),
	Yes:     key.NewBinding(key.WithKeys("y", "enter"), key.WithHelp("y", "confirm")),
	No:      key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "cancel")),
	Submit:  key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "submit")),
	Logout:  key.NewBinding(key.WithKeys("ctrl+l"), key.WithHelp("ctrl+l", "log out")),
	Views: [7]key.Binding{
		key.NewBinding(key.WithKeys("1"), key.WithHelp("1", "dashboard")),
		key.NewBinding(key.WithKeys("2"), key.WithHelp("2", "processes")),
		key.NewBinding(key.WithKeys("3"), key.WithHelp("3", "services")),
		key.NewBinding(key.WithKeys("4"), key.WithHelp("4", "files")),
		key.NewBinding(key.WithKeys("5"), key.WithHelp("5", "logs")),
		key.NewBinding(key.WithKeys("6"), key.WithHelp("6", "users")),
		key.NewBinding(key.WithKeys("7"), key.WithHelp("7", "command")),
	},
	Kill:     key.NewBinding(key.WithKeys("k"), key.WithHelp("k", "kill")),
	Start:    key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "start")),
	Stop:     key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "stop")),
	Restart:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "restart")),
	Reload:   key.NewBinding(key.WithKeys("l"), key.WithHelp("l", "reload")),
	Open:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "open")),
	Parent:   key.NewBinding(key.WithKeys("backspace"), key.WithHelp("⌫", "parent")),
	Download: key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "download")),
	Upload:   key.NewBinding(key.WithKeys("u"), key.WithHelp("u", "upload")),
	More:     key.NewBinding(key.WithKeys("+"), key.WithHelp("+", "more lines")),
	Less:     key.NewBinding(key.WithKeys("-"), key.WithHelp("-", "fewer lines")),
	AddUser:  key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add")),
	Password: key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "password")),
	DelUser:  key.NewBinding(key.WithKeys("D"), key.WithHelp("D", "delete")),
}

// viewHelp lists the bindings shown in the footer of each view
func viewHelp(v view) []key.Binding {
	switch v {
	case viewProcesses:
		return []key.Binding{keys.Kill, keys.Refresh}
	case viewServices:
		return []key.Binding{keys.Start, keys.Stop, keys.Restart, keys.Reload, keys.Refresh}
	case viewFiles:
		return []key.Binding{keys.Open, keys.Parent, keys.Download, keys.Upload, keys.Refresh}
	case viewLogs:
		return []key.Binding{keys.Open, keys.More, keys.Less, keys.Refresh}
	case viewUsers:
		return []key.Binding{keys.AddUser, keys.Password, keys.DelUser, keys.Refresh}
	case viewCommand:
		return []key.Binding{keys.Submit}
	default:
		return []key.Binding{keys.Refresh}
	}
}
