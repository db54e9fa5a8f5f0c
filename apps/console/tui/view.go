package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/trezcool/finadmin/core/relation"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	cursorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	addedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	removedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	noticeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("229")).Background(lipgloss.Color("57")).Padding(0, 1)
	modalStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("63")).Padding(0, 1)
)

const minListHeight = 5

func (m Model) View() string {
	var b strings.Builder
	if m.screen == editorScreen {
		b.WriteString(m.editorView())
	} else {
		b.WriteString(m.keysView())
	}
	if m.notice != "" {
		b.WriteString("\n" + noticeStyle.Render(m.notice))
	}
	return b.String()
}

func (m Model) keysView() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Satellite pages") + "\n\n")

	switch {
	case m.keysErr != nil:
		b.WriteString(errorStyle.Render(m.keysErr.Error()) + "\n")
		b.WriteString(dimStyle.Render("press r to reload") + "\n")
	case m.loadingKeys && len(m.satKeys) == 0:
		b.WriteString(m.spinner.View() + " loading…\n")
	case len(m.satKeys) == 0:
		b.WriteString(dimStyle.Render("no satellite pages yet") + "\n")
	default:
		from, to := window(m.keyCursor, len(m.satKeys), m.listHeight())
		for i := from; i < to; i++ {
			k := m.satKeys[i]
			line := fmt.Sprintf("%s %s", k.Key, dimStyle.Render(fmt.Sprintf("%s · %d MFOs", k.TitleUK, len(k.MFOIDs))))
			b.WriteString(m.cursorLine(i == m.keyCursor, line) + "\n")
		}
	}
	if m.opening {
		b.WriteString(m.spinner.View() + " opening…\n")
	}
	b.WriteString("\n" + m.help.View(m.keysKeys))
	return b.String()
}

func (m Model) editorView() string {
	ed := m.editor
	var b strings.Builder
	b.WriteString(titleStyle.Render(ed.Title()) + "\n")

	if m.search.Focused() || m.search.Value() != "" {
		b.WriteString(m.search.View() + "\n")
	}
	b.WriteString("\n")

	fetchState, fetchErr := ed.FetchState()
	switch fetchState {
	case relation.FetchLoading:
		b.WriteString(m.spinner.View() + " loading MFOs…\n")
	case relation.FetchFailed:
		b.WriteString(errorStyle.Render("could not load MFOs: "+fetchErr.Error()) + "\n")
		b.WriteString(dimStyle.Render("press r to retry") + "\n")
	default:
		rows := ed.Rows()
		if len(rows) == 0 {
			b.WriteString(dimStyle.Render("no MFO matches") + "\n")
		}
		from, to := window(m.cursor, len(rows), m.listHeight())
		for i := from; i < to; i++ {
			b.WriteString(m.cursorLine(i == m.cursor, rowLine(rows[i])) + "\n")
		}
	}

	b.WriteString("\n" + m.footer() + "\n")

	keys := m.help.View(m.editorKeys)
	if m.search.Focused() {
		keys = m.help.View(m.searchKeys)
	}
	return modalStyle.Render(b.String()) + "\n" + keys
}

func (m Model) footer() string {
	ed := m.editor
	cs := ed.ChangeSet()
	var parts []string
	switch {
	case ed.Saving():
		parts = append(parts, m.spinner.View()+" saving…")
	case cs.IsEmpty():
		parts = append(parts, dimStyle.Render("no changes"))
	default:
		parts = append(parts,
			addedStyle.Render(fmt.Sprintf("+%d", len(cs.Added))),
			removedStyle.Render(fmt.Sprintf("−%d", len(cs.Removed))),
		)
	}
	if ed.AllVisibleSelected() {
		parts = append(parts, dimStyle.Render("all visible selected"))
	}
	parts = append(parts, dimStyle.Render(fmt.Sprintf("%d selected", len(ed.Working()))))
	return strings.Join(parts, "  ")
}

func rowLine(row relation.Row) string {
	box := "[ ]"
	if row.Selected {
		box = "[x]"
	}
	line := box + " " + row.Label
	if row.Detail != "" {
		line += " " + dimStyle.Render(row.Detail)
	}
	switch row.Status {
	case relation.PendingAdd:
		line += " " + addedStyle.Render("+ "+row.Status.String())
	case relation.PendingRemove:
		line += " " + removedStyle.Render("− "+row.Status.String())
	}
	return line
}

func (m Model) cursorLine(active bool, line string) string {
	if active {
		return cursorStyle.Render("›") + " " + line
	}
	return "  " + line
}

// listHeight is the number of list lines that fit the terminal; unbounded until its size is known.
func (m Model) listHeight() int {
	if m.height == 0 {
		return 1 << 16
	}
	if h := m.height - 10; h > minListHeight {
		return h
	}
	return minListHeight
}

// window returns the [from, to) range of n items to display around cursor.
func window(cursor, n, height int) (int, int) {
	if n <= height {
		return 0, n
	}
	from := cursor - height/2
	if from < 0 {
		from = 0
	}
	if from+height > n {
		from = n - height
	}
	return from, from + height
}
