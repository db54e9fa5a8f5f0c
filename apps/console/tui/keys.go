package tui

import "github.com/charmbracelet/bubbles/key"

type keysKeyMap struct {
	Up     key.Binding
	Down   key.Binding
	Open   key.Binding
	Reload key.Binding
	Quit   key.Binding
}

func (km keysKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{km.Up, km.Down, km.Open, km.Reload, km.Quit}
}

func (km keysKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{km.ShortHelp()}
}

type editorKeyMap struct {
	Up        key.Binding
	Down      key.Binding
	Toggle    key.Binding
	ToggleAll key.Binding
	Search    key.Binding
	Retry     key.Binding
	Save      key.Binding
	Cancel    key.Binding
	Quit      key.Binding
}

func (km editorKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{km.Up, km.Down, km.Toggle, km.ToggleAll, km.Search, km.Retry, km.Save, km.Cancel}
}

func (km editorKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{km.Up, km.Down, km.Toggle, km.ToggleAll},
		{km.Search, km.Retry, km.Save, km.Cancel, km.Quit},
	}
}

// searchKeyMap applies while the search input has the focus.
type searchKeyMap struct {
	Done key.Binding
}

func (km searchKeyMap) ShortHelp() []key.Binding  { return []key.Binding{km.Done} }
func (km searchKeyMap) FullHelp() [][]key.Binding { return [][]key.Binding{km.ShortHelp()} }

func newKeysKeyMap() keysKeyMap {
	return keysKeyMap{
		Up:     key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:   key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Open:   key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "edit MFOs")),
		Reload: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
		Quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func newEditorKeyMap() editorKeyMap {
	return editorKeyMap{
		Up:        key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:      key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Toggle:    key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "toggle")),
		ToggleAll: key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "toggle all visible")),
		Search:    key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
		Retry:     key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload list")),
		Save:      key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "save")),
		Cancel:    key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
		Quit:      key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
	}
}

func newSearchKeyMap() searchKeyMap {
	return searchKeyMap{
		Done: key.NewBinding(key.WithKeys("enter", "esc"), key.WithHelp("enter/esc", "done")),
	}
}
