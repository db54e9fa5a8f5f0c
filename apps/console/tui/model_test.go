package tui

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/cursor"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/finadmin/core/relation"
	"github.com/trezcool/finadmin/core/satellite"
)

type fakeBackend struct {
	mu        sync.Mutex
	keys      map[int]satellite.Key
	lists     [][]relation.Candidate // successive ListCandidates results
	listErrs  []error
	listCalls int
	saveErr   error
	saved     []relation.ChangeSet
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		keys: map[int]satellite.Key{
			1: {ID: 1, Key: "kredit-online", TitleUK: "Кредит онлайн", MFOIDs: []int{10}},
			2: {ID: 2, Key: "kredit-na-kartu", TitleUK: "Кредит на картку", MFOIDs: []int{}},
		},
		lists: [][]relation.Candidate{{
			{ID: 10, Label: "Moneyveo", Detail: "moneyveo.ua"},
			{ID: 11, Label: "CreditPlus", Detail: "creditplus.ua"},
			{ID: 12, Label: "Monobank", Detail: "monobank.ua"},
		}},
	}
}

func (b *fakeBackend) ListCandidates(context.Context) ([]relation.Candidate, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	i := b.listCalls
	b.listCalls++
	if i < len(b.listErrs) && b.listErrs[i] != nil {
		return nil, b.listErrs[i]
	}
	if i >= len(b.lists) {
		i = len(b.lists) - 1
	}
	return b.lists[i], nil
}

func (b *fakeBackend) ListSatelliteKeys(context.Context, string) ([]satellite.Key, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return []satellite.Key{b.keys[1], b.keys[2]}, nil
}

func (b *fakeBackend) GetSatelliteKey(_ context.Context, id int) (satellite.Key, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	k, ok := b.keys[id]
	if !ok {
		return satellite.Key{}, satellite.ErrNotFound
	}
	return k, nil
}

func (b *fakeBackend) SatelliteGateway(keyID int, _ func(satellite.Key)) relation.Gateway {
	return func(_ context.Context, added, removed []int) error {
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.saveErr != nil {
			return b.saveErr
		}
		cs := relation.ChangeSet{Added: added, Removed: removed}
		b.saved = append(b.saved, cs)
		k := b.keys[keyID]
		k.MFOIDs = cs.Apply(relation.NewSet(k.MFOIDs...)).Slice()
		b.keys[keyID] = k
		return nil
	}
}

var (
	keyDown  = tea.KeyMsg{Type: tea.KeyDown}
	keyEnter = tea.KeyMsg{Type: tea.KeyEnter}
	keyEsc   = tea.KeyMsg{Type: tea.KeyEsc}
	keySpace = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
)

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// run executes cmd and feeds the resulting messages of this package back to the model.
// Spinner ticks and quit messages are dropped.
func run(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	if cmd == nil {
		return m
	}
	switch msg := cmd().(type) {
	case tea.BatchMsg:
		for _, c := range msg {
			m = run(t, m, c)
		}
	case keysLoadedMsg, keyLoadedMsg, fetchDoneMsg, saveDoneMsg, noticeExpiredMsg:
		var next tea.Cmd
		m, next = update(t, m, msg)
		m = run(t, m, next)
	}
	return m
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	model, ok := next.(Model)
	require.True(t, ok)
	return model, cmd
}

// press sends msg and runs the returned command to completion.
func press(t *testing.T, m Model, msgs ...tea.Msg) Model {
	t.Helper()
	for _, msg := range msgs {
		var cmd tea.Cmd
		m, cmd = update(t, m, msg)
		m = run(t, m, cmd)
	}
	return m
}

func newTestModel(t *testing.T, b *fakeBackend) Model {
	t.Helper()
	m := New(Options{Backend: b, NoticeTTL: time.Millisecond})
	m.search.Cursor.SetMode(cursor.CursorStatic)
	m = run(t, m, m.loadKeys())
	require.Len(t, m.satKeys, 2)
	return m
}

func TestModel_openEditor(t *testing.T) {
	b := newFakeBackend()
	m := newTestModel(t, b)
	assert.Contains(t, m.View(), "kredit-online")

	m = press(t, m, keyEnter)
	require.Equal(t, editorScreen, m.screen)
	assert.True(t, m.editor.IsOpen())
	assert.Equal(t, []int{10}, m.editor.Baseline())
	assert.Len(t, m.editor.Rows(), 3)
	assert.Equal(t, 1, b.listCalls)

	view := m.View()
	assert.Contains(t, view, "MFOs of kredit-online")
	assert.Contains(t, view, "[x] Moneyveo")
	assert.Contains(t, view, "[ ] CreditPlus")
	assert.Contains(t, view, "no changes")

	// reopening reuses the fetched list
	m = press(t, m, keyEsc, keyDown, keyEnter)
	require.Equal(t, editorScreen, m.screen)
	assert.Equal(t, "kredit-na-kartu", m.key.Key)
	assert.Empty(t, m.editor.Baseline())
	assert.Len(t, m.editor.Rows(), 3)
	assert.Equal(t, 1, b.listCalls)
}

func TestModel_toggleAndSave(t *testing.T) {
	b := newFakeBackend()
	m := newTestModel(t, b)
	m = press(t, m, keyEnter)

	// enter does nothing without changes
	m = press(t, m, keyEnter)
	assert.Empty(t, b.saved)
	assert.True(t, m.editor.IsOpen())

	m = press(t, m, keySpace, keyDown, keySpace)
	view := m.View()
	assert.Contains(t, view, "− will be removed")
	assert.Contains(t, view, "+ will be added")
	assert.Equal(t, relation.ChangeSet{Added: []int{11}, Removed: []int{10}}, m.editor.ChangeSet())

	m = press(t, m, keyEnter)
	require.Equal(t, []relation.ChangeSet{{Added: []int{11}, Removed: []int{10}}}, b.saved)
	assert.Equal(t, keysScreen, m.screen)
	assert.False(t, m.editor.IsOpen())
	assert.Equal(t, []int{11}, m.satKeys[0].MFOIDs)
}

func TestModel_togglesIgnoredWhileSaving(t *testing.T) {
	b := newFakeBackend()
	m := newTestModel(t, b)
	m = press(t, m, keyEnter, keyDown, keySpace)

	m, cmd := update(t, m, keyEnter)
	require.True(t, m.editor.Saving())

	m = press(t, m, keySpace, keyDown, keySpace, runes("a"))
	assert.Equal(t, []int{10, 11}, m.editor.Working())

	m = run(t, m, cmd)
	require.Equal(t, []relation.ChangeSet{{Added: []int{11}, Removed: []int{}}}, b.saved)
	assert.Equal(t, keysScreen, m.screen)
	assert.Equal(t, []int{10, 11}, m.satKeys[0].MFOIDs)
}

func TestModel_netZeroToggle(t *testing.T) {
	b := newFakeBackend()
	m := newTestModel(t, b)
	m = press(t, m, keyEnter, keyDown, keySpace, keySpace)
	assert.False(t, m.editor.HasChanges())
	assert.Contains(t, m.View(), "no changes")

	m = press(t, m, keyEnter)
	assert.Empty(t, b.saved)
	assert.Equal(t, editorScreen, m.screen)
}

func TestModel_saveFailureKeepsSelection(t *testing.T) {
	b := newFakeBackend()
	b.saveErr = errors.New("connection refused")
	m := newTestModel(t, b)
	m = press(t, m, keyEnter, keyDown, keySpace)

	var cmd tea.Cmd
	m, cmd = update(t, m, keyEnter)
	assert.True(t, m.editor.Saving())
	m, cmd = update(t, m, cmd())
	assert.Contains(t, m.View(), "save failed: connection refused")

	assert.Equal(t, editorScreen, m.screen)
	assert.True(t, m.editor.IsOpen())
	assert.Equal(t, []int{10, 11}, m.editor.Working())
	assert.EqualError(t, m.editor.LastError(), "connection refused")

	// the notification is transient
	m = run(t, m, cmd)
	assert.NotContains(t, m.View(), "save failed")

	b.saveErr = nil
	m = press(t, m, keyEnter)
	assert.Equal(t, []relation.ChangeSet{{Added: []int{11}, Removed: []int{}}}, b.saved)
	assert.Equal(t, keysScreen, m.screen)
}

func TestModel_searchAndToggleAll(t *testing.T) {
	b := newFakeBackend()
	m := newTestModel(t, b)
	m = press(t, m, keyDown, keyEnter) // key without MFOs

	m = press(t, m, runes("/"), runes("m"), runes("o"), runes("n"))
	assert.True(t, m.search.Focused())
	assert.Equal(t, "mon", m.editor.Search())
	assert.Len(t, m.editor.Rows(), 2)

	// keys are typed into the search input while it has the focus
	m = press(t, m, runes("a"))
	assert.Equal(t, "mona", m.editor.Search())
	assert.Empty(t, m.editor.Working())
	m = press(t, m, tea.KeyMsg{Type: tea.KeyBackspace}, keyEsc)
	assert.False(t, m.search.Focused())
	assert.Equal(t, editorScreen, m.screen)

	m = press(t, m, runes("a"))
	assert.Equal(t, []int{10, 12}, m.editor.Working())
	assert.True(t, m.editor.AllVisibleSelected())
	assert.Contains(t, m.View(), "all visible selected")

	m = press(t, m, runes("a"))
	assert.Empty(t, m.editor.Working())
}

func TestModel_cancelDiscards(t *testing.T) {
	b := newFakeBackend()
	m := newTestModel(t, b)
	m = press(t, m, keyEnter, keySpace, keyDown, keySpace, keyEsc)
	assert.Equal(t, keysScreen, m.screen)
	assert.Empty(t, b.saved)

	m = press(t, m, keyEnter)
	assert.Equal(t, []int{10}, m.editor.Working())
	assert.False(t, m.editor.HasChanges())
}

func TestModel_fetchFailureAndRetry(t *testing.T) {
	b := newFakeBackend()
	b.listErrs = []error{errors.New("timeout")}
	m := newTestModel(t, b)

	m = press(t, m, keyEnter)
	state, err := m.editor.FetchState()
	assert.Equal(t, relation.FetchFailed, state)
	assert.EqualError(t, err, "timeout")
	assert.Contains(t, m.View(), "press r to retry")

	m = press(t, m, runes("r"))
	state, _ = m.editor.FetchState()
	assert.Equal(t, relation.FetchLoaded, state)
	assert.Len(t, m.editor.Rows(), 3)
	assert.Equal(t, 2, b.listCalls)
}

func TestModel_staleFetchDiscarded(t *testing.T) {
	b := newFakeBackend()
	b.lists = [][]relation.Candidate{
		{{ID: 10, Label: "Stale"}},
		{{ID: 10, Label: "Moneyveo"}, {ID: 11, Label: "CreditPlus"}},
	}
	m := newTestModel(t, b)

	// open, keep the fetch pending, cancel and open another key
	m, _ = update(t, m, keyEnter)
	m, cmd := update(t, m, keyLoadedMsg{key: b.keys[1]})
	staleFetch := cmd
	m = press(t, m, keyEsc, keyDown)
	m, cmd = update(t, m, keyLoadedMsg{key: b.keys[2]})

	staleMsg := staleFetch() // first ListCandidates call
	m = run(t, m, cmd)
	m, _ = update(t, m, staleMsg)

	rows := m.editor.Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, "Moneyveo", rows[0].Label)
	assert.Equal(t, "Moneyveo", m.candidates[0].Label)
}

func TestWindow(t *testing.T) {
	tests := []struct {
		cursor, n, height int
		wantFrom, wantTo  int
	}{
		{0, 3, 10, 0, 3},
		{0, 20, 5, 0, 5},
		{10, 20, 5, 8, 13},
		{19, 20, 5, 15, 20},
	}
	for _, tt := range tests {
		from, to := window(tt.cursor, tt.n, tt.height)
		if from != tt.wantFrom || to != tt.wantTo {
			t.Errorf("window(%d, %d, %d) = %d, %d, want %d, %d", tt.cursor, tt.n, tt.height, from, to, tt.wantFrom, tt.wantTo)
		}
	}
}
