package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Rotate   key.Binding
	Pause    key.Binding
	Step     key.Binding
	Back     key.Binding
	Forward  key.Binding
	Restart  key.Binding
	Faster   key.Binding
	Slower   key.Binding
	Next     key.Binding
	Prev     key.Binding
	Sync     key.Binding
	Bookmark key.Binding
	Help     key.Binding
	Quit     key.Binding
}

var keys = keyMap{
	Rotate:   key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "auto-rotate")),
	Pause:    key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "pause/play")),
	Step:     key.NewBinding(key.WithKeys("."), key.WithHelp(".", "step")),
	Back:     key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "seek back")),
	Forward:  key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "seek forward")),
	Restart:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "restart")),
	Faster:   key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "faster")),
	Slower:   key.NewBinding(key.WithKeys("-"), key.WithHelp("-", "slower")),
	Next:     key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next viewport")),
	Prev:     key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("S-tab", "prev viewport")),
	Sync:     key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "resync")),
	Bookmark: key.NewBinding(key.WithKeys("b"), key.WithHelp("b", "bookmark")),
	Help:     key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
	Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Rotate, k.Pause, k.Step, k.Back, k.Forward, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Pause, k.Step, k.Restart, k.Back, k.Forward},
		{k.Faster, k.Slower, k.Rotate, k.Sync},
		{k.Next, k.Prev, k.Bookmark, k.Help, k.Quit},
	}
}
