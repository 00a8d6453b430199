package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the roster screen's key bindings.
type KeyMap struct {
	Up   key.Binding
	Down key.Binding

	// Per-student marks on the selected row.
	Present key.Binding
	Absent  key.Binding
	Clear   key.Binding

	// Whole-roster marks for the selected day.
	AllPresent key.Binding
	AllAbsent  key.Binding
	ClearDay   key.Binding

	PrevDay   key.Binding
	NextDay   key.Binding
	Today     key.Binding
	NextClass key.Binding
	Reload    key.Binding

	Search      key.Binding
	SearchClear key.Binding
	Confirm     key.Binding

	CopyShare key.Binding
	Quit      key.Binding
}

var DefaultKeyMap = KeyMap{
	Up: key.NewBinding(
		key.WithKeys("k", "up"),
		key.WithHelp("k/↑", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("j", "down"),
		key.WithHelp("j/↓", "down"),
	),
	Present: key.NewBinding(
		key.WithKeys("p"),
		key.WithHelp("p", "present"),
	),
	Absent: key.NewBinding(
		key.WithKeys("a"),
		key.WithHelp("a", "absent"),
	),
	Clear: key.NewBinding(
		key.WithKeys("c"),
		key.WithHelp("c", "clear"),
	),
	AllPresent: key.NewBinding(
		key.WithKeys("P"),
		key.WithHelp("P", "all present"),
	),
	AllAbsent: key.NewBinding(
		key.WithKeys("A"),
		key.WithHelp("A", "all absent"),
	),
	ClearDay: key.NewBinding(
		key.WithKeys("C"),
		key.WithHelp("C", "clear day"),
	),
	PrevDay: key.NewBinding(
		key.WithKeys("["),
		key.WithHelp("[", "prev day"),
	),
	NextDay: key.NewBinding(
		key.WithKeys("]"),
		key.WithHelp("]", "next day"),
	),
	Today: key.NewBinding(
		key.WithKeys("t"),
		key.WithHelp("t", "today"),
	),
	NextClass: key.NewBinding(
		key.WithKeys("tab"),
		key.WithHelp("tab", "next class"),
	),
	Reload: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "reload"),
	),
	Search: key.NewBinding(
		key.WithKeys("/"),
		key.WithHelp("/", "search"),
	),
	SearchClear: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "clear search"),
	),
	Confirm: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "done"),
	),
	CopyShare: key.NewBinding(
		key.WithKeys("y"),
		key.WithHelp("y", "copy summary"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// ShortHelp lists the bindings shown in the help bar.
func (keys KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{
		keys.Present, keys.Absent, keys.Clear,
		keys.AllPresent, keys.ClearDay,
		keys.PrevDay, keys.NextDay, keys.NextClass,
		keys.Search, keys.CopyShare, keys.Quit,
	}
}
