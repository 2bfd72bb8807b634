package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Open key.Binding
	Call key.Binding
	End  key.Binding
	Back key.Binding
	Quit key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Open: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "start interview")),
		Call: key.NewBinding(key.WithKeys("enter", "c"), key.WithHelp("enter", "call")),
		End:  key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "end call")),
		Back: key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		Quit: key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// homeKeys and sessionKeys adapt the key map to help.KeyMap for each view.
type homeKeys struct{ keyMap }

func (k homeKeys) ShortHelp() []key.Binding  { return []key.Binding{k.Open, k.Quit} }
func (k homeKeys) FullHelp() [][]key.Binding { return [][]key.Binding{k.ShortHelp()} }

type sessionKeys struct{ keyMap }

func (k sessionKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Call, k.End, k.Back, k.Quit}
}
func (k sessionKeys) FullHelp() [][]key.Binding { return [][]key.Binding{k.ShortHelp()} }
