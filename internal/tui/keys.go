package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Left     key.Binding
	Right    key.Binding
	Up       key.Binding
	Down     key.Binding
	Grab     key.Binding
	Cancel   key.Binding
	Grouping key.Binding
	Add      key.Binding
	Rename   key.Binding
	Remove   key.Binding
	Save     key.Binding
	Reload   key.Binding
	Help     key.Binding
	Quit     key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Left:     key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "prev group")),
		Right:    key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "next group")),
		Up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:     key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Grab:     key.NewBinding(key.WithKeys(" ", "space", "enter"), key.WithHelp("space", "pick up/drop")),
		Cancel:   key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel drag")),
		Grouping: key.NewBinding(key.WithKeys("g"), key.WithHelp("g", "switch grouping")),
		Add:      key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add recipe")),
		Rename:   key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "rename group")),
		Remove:   key.NewBinding(key.WithKeys("x", "delete"), key.WithHelp("x", "remove")),
		Save:     key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "save recipe")),
		Reload:   key.NewBinding(key.WithKeys("R"), key.WithHelp("R", "reload")),
		Help:     key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Grab, k.Cancel, k.Grouping, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Left, k.Right, k.Up, k.Down},
		{k.Grab, k.Cancel, k.Grouping},
		{k.Add, k.Rename, k.Remove, k.Save},
		{k.Reload, k.Help, k.Quit},
	}
}
