// Package tui is the terminal front-end of the console: a satellite key picker
// and the MFO relation editor modal.
package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"

	"github.com/trezcool/finadmin/core"
	"github.com/trezcool/finadmin/core/relation"
	"github.com/trezcool/finadmin/core/satellite"
)

// Backend is the API the console works against.
type Backend interface {
	relation.Lister
	ListSatelliteKeys(ctx context.Context, search string) ([]satellite.Key, error)
	GetSatelliteKey(ctx context.Context, id int) (satellite.Key, error)
	SatelliteGateway(keyID int, onSaved func(satellite.Key)) relation.Gateway
}

type screen int

const (
	keysScreen screen = iota
	editorScreen
)

type (
	keysLoadedMsg struct {
		keys []satellite.Key
		err  error
	}

	keyLoadedMsg struct {
		key satellite.Key
		err error
	}

	// fetchDoneMsg and saveDoneMsg carry the editor that issued the request:
	// the editor alone decides whether the result is still current.
	fetchDoneMsg struct {
		editor *relation.Editor
		res    relation.FetchResult
	}

	saveDoneMsg struct {
		editor *relation.Editor
		res    relation.SaveResult
	}

	noticeExpiredMsg struct{ id int }
)

type Options struct {
	Backend Backend
	Logger  core.Logger
	// RequestTimeout bounds every API call; zero means no deadline. Closing the
	// editor is enough to get rid of a hung call: its late result is dropped.
	RequestTimeout time.Duration
	// NoticeTTL is how long transient notifications stay on screen. Defaults to 4s.
	NoticeTTL time.Duration
}

type Model struct {
	backend   Backend
	logger    core.Logger
	timeout   time.Duration
	noticeTTL time.Duration

	screen screen
	width  int
	height int

	// key picker
	keysKeys    keysKeyMap
	satKeys     []satellite.Key
	keysErr     error
	loadingKeys bool
	keyCursor   int
	opening     bool

	// relation editor
	editorKeys editorKeyMap
	searchKeys searchKeyMap
	editor     *relation.Editor
	key        satellite.Key
	candidates []relation.Candidate // last list fetched, reused when reopening
	cursor     int
	search     textinput.Model

	notice   string
	noticeID int
	spinner  spinner.Model
	help     help.Model
}

func New(opts Options) Model {
	if opts.NoticeTTL <= 0 {
		opts.NoticeTTL = 4 * time.Second
	}

	search := textinput.New()
	search.Placeholder = "search by name or website"
	search.Prompt = "/ "
	search.CharLimit = 100

	return Model{
		backend:     opts.Backend,
		logger:      opts.Logger,
		timeout:     opts.RequestTimeout,
		noticeTTL:   opts.NoticeTTL,
		keysKeys:    newKeysKeyMap(),
		editorKeys:  newEditorKeyMap(),
		searchKeys:  newSearchKeyMap(),
		search:      search,
		loadingKeys: true,
		spinner:     spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(dimStyle)),
		help:        help.New(),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.loadKeys(), m.spinner.Tick)
}

// Commands

func (m Model) context() (context.Context, context.CancelFunc) {
	if m.timeout <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), m.timeout)
}

func (m Model) loadKeys() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := m.context()
		defer cancel()
		keys, err := m.backend.ListSatelliteKeys(ctx, "")
		return keysLoadedMsg{keys: keys, err: errors.Wrap(err, "listing satellite keys")}
	}
}

func (m Model) loadKey(id int) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := m.context()
		defer cancel()
		key, err := m.backend.GetSatelliteKey(ctx, id)
		return keyLoadedMsg{key: key, err: errors.Wrap(err, "getting satellite key")}
	}
}

func (m Model) fetch(ed *relation.Editor, req *relation.FetchRequest) tea.Cmd {
	if req == nil {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := m.context()
		defer cancel()
		return fetchDoneMsg{editor: ed, res: req.Run(ctx)}
	}
}

func (m Model) save(ed *relation.Editor, req *relation.SaveRequest) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := m.context()
		defer cancel()
		return saveDoneMsg{editor: ed, res: req.Run(ctx)}
	}
}

func (m *Model) notify(format string, args ...interface{}) tea.Cmd {
	m.noticeID++
	m.notice = fmt.Sprintf(format, args...)
	id := m.noticeID
	return tea.Tick(m.noticeTTL, func(time.Time) tea.Msg { return noticeExpiredMsg{id: id} })
}

func (m Model) logError(msg string, err error) {
	if m.logger != nil {
		m.logger.Error(msg, err)
	}
}

// Update

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case noticeExpiredMsg:
		if msg.id == m.noticeID {
			m.notice = ""
		}
		return m, nil

	case keysLoadedMsg:
		m.loadingKeys = false
		m.keysErr = msg.err
		if msg.err != nil {
			m.logError("loading satellite keys", msg.err)
			return m, nil
		}
		m.satKeys = msg.keys
		m.keyCursor = clamp(m.keyCursor, len(m.satKeys))
		return m, nil

	case keyLoadedMsg:
		m.opening = false
		if msg.err != nil {
			m.logError("opening satellite key", msg.err)
			cmd := m.notify("could not open key: %v", msg.err)
			return m, cmd
		}
		return m.openEditor(msg.key)

	case fetchDoneMsg:
		if msg.editor.ApplyFetch(msg.res) && msg.editor == m.editor {
			if msg.res.Err != nil {
				m.logError("fetching MFOs", msg.res.Err)
			} else {
				m.candidates = msg.res.Candidates
			}
			m.cursor = clamp(m.cursor, len(m.editor.Rows()))
		}
		return m, nil

	case saveDoneMsg:
		if !msg.editor.ApplySave(msg.res) || msg.editor != m.editor {
			return m, nil
		}
		if msg.res.Err != nil {
			m.logError("saving MFO changes", msg.res.Err)
			cmd := m.notify("save failed: %v", msg.res.Err)
			return m, cmd
		}
		m.closeEditor()
		m.loadingKeys = true
		cmd := m.notify("%s saved: +%d / −%d", m.key.Key, len(msg.res.Changes.Added), len(msg.res.Changes.Removed))
		return m, tea.Batch(cmd, m.loadKeys())

	case tea.KeyMsg:
		if m.screen == editorScreen {
			return m.updateEditor(msg)
		}
		return m.updateKeys(msg)
	}
	return m, nil
}

func (m Model) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keysKeys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keysKeys.Up):
		if m.keyCursor > 0 {
			m.keyCursor--
		}
	case key.Matches(msg, m.keysKeys.Down):
		if m.keyCursor < len(m.satKeys)-1 {
			m.keyCursor++
		}
	case key.Matches(msg, m.keysKeys.Reload):
		m.loadingKeys = true
		return m, m.loadKeys()
	case key.Matches(msg, m.keysKeys.Open):
		if len(m.satKeys) == 0 || m.opening {
			return m, nil
		}
		m.opening = true
		return m, m.loadKey(m.satKeys[m.keyCursor].ID)
	}
	return m, nil
}

// openEditor opens the relation editor on key, with the key's current MFOs as baseline.
// The list fetched last time is reused; it is fetched when there is none yet.
func (m Model) openEditor(k satellite.Key) (tea.Model, tea.Cmd) {
	m.key = k
	m.editor = relation.NewEditor(
		fmt.Sprintf("MFOs of %s (%s)", k.Key, k.TitleUK),
		m.backend,
		m.backend.SatelliteGateway(k.ID, nil),
	)
	req := m.editor.Open(m.candidates, k.MFOIDs)
	m.screen = editorScreen
	m.cursor = 0
	m.search.Reset()
	m.search.Blur()
	return m, m.fetch(m.editor, req)
}

func (m *Model) closeEditor() {
	m.screen = keysScreen
	m.search.Reset()
	m.search.Blur()
	m.cursor = 0
}

func (m Model) updateEditor(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	ed := m.editor

	if m.search.Focused() {
		if key.Matches(msg, m.searchKeys.Done) {
			m.search.Blur()
			return m, nil
		}
		var cmd tea.Cmd
		m.search, cmd = m.search.Update(msg)
		ed.SetSearch(m.search.Value())
		m.cursor = clamp(m.cursor, len(ed.Rows()))
		return m, cmd
	}

	fetchState, _ := ed.FetchState()
	saving := ed.Saving()
	m.editorKeys.Save.SetEnabled(ed.HasChanges() && !saving)
	m.editorKeys.Toggle.SetEnabled(!saving)
	m.editorKeys.ToggleAll.SetEnabled(!saving)
	m.editorKeys.Retry.SetEnabled(fetchState != relation.FetchLoading)

	rows := ed.Rows()
	switch {
	case key.Matches(msg, m.editorKeys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.editorKeys.Cancel):
		ed.Cancel()
		m.closeEditor()
	case key.Matches(msg, m.editorKeys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.editorKeys.Down):
		if m.cursor < len(rows)-1 {
			m.cursor++
		}
	case key.Matches(msg, m.editorKeys.Toggle):
		if m.cursor < len(rows) {
			ed.Toggle(rows[m.cursor].ID)
		}
	case key.Matches(msg, m.editorKeys.ToggleAll):
		ed.ToggleAllVisible()
	case key.Matches(msg, m.editorKeys.Search):
		cmd := m.search.Focus()
		return m, cmd
	case key.Matches(msg, m.editorKeys.Retry):
		return m, m.fetch(ed, ed.Retry())
	case key.Matches(msg, m.editorKeys.Save):
		req, err := ed.BeginSave()
		if err != nil {
			cmd := m.notify("cannot save: %v", err)
			return m, cmd
		}
		return m, m.save(ed, req)
	}
	return m, nil
}

func clamp(cursor, n int) int {
	if cursor >= n {
		cursor = n - 1
	}
	if cursor < 0 {
		cursor = 0
	}
	return cursor
}
