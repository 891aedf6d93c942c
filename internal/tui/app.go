package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mgomes/nestfind/internal/search"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCase = cases.Title(language.English)

// SearchModel renders one search engine: the input line and the suggestions
// grouped by index.
type SearchModel struct {
	engine *search.Engine
	input  textinput.Model
	snap   search.Snapshot
	status string
	error  string
	width  int
	height int
}

func NewSearchModel(engine *search.Engine, initial string) SearchModel {
	input := textinput.New()
	input.Placeholder = engine.Placeholder()
	input.Width = 60
	input.Focus()

	engine.Focus()
	if initial != "" {
		input.SetValue(initial)
		engine.SetText(initial)
	}

	return SearchModel{
		engine: engine,
		input:  input,
		width:  80,
	}
}

// RunSearch runs the interactive search box until the user quits, then
// closes the engine.
func RunSearch(engine *search.Engine, initial string) error {
	defer engine.Close() //nolint:errcheck

	program := tea.NewProgram(NewSearchModel(engine, initial), tea.WithReportFocus())
	unsubscribe := engine.Subscribe(func(s search.Snapshot) {
		// The engine calls observers under its lock.
		go program.Send(SnapshotMsg{Snapshot: s})
	})
	defer unsubscribe()

	_, err := program.Run()
	return err
}

func (m SearchModel) Init() tea.Cmd {
	engine := m.engine
	return tea.Batch(textinput.Blink, func() tea.Msg {
		return SnapshotMsg{Snapshot: engine.Snapshot()}
	})
}

func (m SearchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit

		case "esc":
			if m.snap.Visible {
				m.engine.Hide()
				return m, nil
			}
			return m, tea.Quit

		case "up", "ctrl+p", "shift+tab":
			m.engine.MoveHighlight(-1)
			return m, nil

		case "down", "ctrl+n", "tab":
			m.engine.MoveHighlight(1)
			return m, nil

		case "enter":
			m.selectHighlighted()
			return m, nil
		}

		before := m.input.Value()
		m.input, cmd = m.input.Update(msg)
		if after := m.input.Value(); after != before {
			m.status, m.error = "", ""
			m.engine.SetText(after)
		}

	case SnapshotMsg:
		// Snapshots are delivered on separate goroutines and may arrive
		// out of order.
		if msg.Snapshot.Version >= m.snap.Version {
			m.snap = msg.Snapshot
		}

	case tea.FocusMsg:
		m.engine.Focus()
		cmd = m.input.Focus()

	case tea.BlurMsg:
		m.engine.Blur()
		m.input.Blur()

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	default:
		m.input, cmd = m.input.Update(msg)
	}

	return m, cmd
}

func (m *SearchModel) selectHighlighted() {
	action, err := m.engine.SelectHighlighted()
	if err != nil {
		m.error = err.Error()
		m.status = ""
		return
	}
	if action.Kind != 0 {
		m.status = action.Kind.String() + " " + action.Target
		m.error = ""
	}
}

func (m SearchModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("nfind") + "\n")
	b.WriteString(inputStyle.Render(m.input.View()) + "\n")

	switch m.snap.Phase {
	case search.PhasePending, search.PhaseFetching:
		b.WriteString(phaseStyle.Render("searching...") + "\n")
	default:
		b.WriteString("\n")
	}

	if m.snap.Visible {
		m.renderSuggestions(&b)
	}

	if m.error != "" {
		b.WriteString("\n" + errorStyle.Render("Error: "+truncate(m.error, m.lineWidth())) + "\n")
	} else if m.status != "" {
		b.WriteString("\n" + activeStyle.Render(truncate(m.status, m.lineWidth())) + "\n")
	}

	b.WriteString("\n" + helpStyle.Render("↑/↓ navigate  enter open  esc hide  ctrl+c quit"))

	return b.String()
}

func (m SearchModel) renderSuggestions(b *strings.Builder) {
	set := m.snap.Suggestions
	if set.Empty() {
		b.WriteString(dimStyle.Render("No matches") + "\n")
		return
	}

	for ri, result := range set.Results {
		b.WriteString(headingStyle.Render(titleCase.String(result.IndexName)) + "\n")

		for hi, hit := range result.Hits {
			h := m.snap.Highlight
			if h != nil && h.Result == ri && h.Hit == hi {
				b.WriteString(selectedStyle.Render("> " + hit.DisplayName()))
			} else {
				b.WriteString("  " + hit.DisplayName())
			}
			if link := hit.Link(); link != "" {
				b.WriteString(" " + linkStyle.Render(truncate(link, 50)))
			}
			b.WriteString("\n")

			for _, line := range wrapText(detail(hit), m.lineWidth()-4, 2) {
				b.WriteString("    " + detailStyle.Render(line) + "\n")
			}
		}
	}
}

func (m SearchModel) lineWidth() int {
	return max(m.width-4, 20)
}

// detail is the secondary line shown under a suggestion.
func detail(hit search.Hit) string {
	switch h := hit.(type) {
	case search.ChapterHit:
		return joinNonEmpty(h.Region, h.Summary)
	case search.ProjectHit:
		return joinNonEmpty(h.Level, h.Summary)
	case search.OrganizationHit:
		return h.Description
	case search.UserHit:
		return h.Company
	case search.EventHit:
		return joinNonEmpty(h.StartDate, h.Category)
	}
	return ""
}

func joinNonEmpty(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " · ")
}

func truncate(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}

func wrapText(s string, width, maxLines int) []string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\t", " ")
	s = strings.TrimSpace(s)

	for strings.Contains(s, "  ") {
		s = strings.ReplaceAll(s, "  ", " ")
	}

	if len(s) == 0 {
		return nil
	}

	var lines []string
	for len(s) > 0 && len(lines) < maxLines {
		if len(s) <= width {
			lines = append(lines, s)
			break
		}

		breakAt := width
		for breakAt > width/2 && s[breakAt] != ' ' {
			breakAt--
		}
		if s[breakAt] != ' ' {
			breakAt = width
		}

		lines = append(lines, strings.TrimSpace(s[:breakAt]))
		s = strings.TrimSpace(s[breakAt:])
	}

	if len(s) > 0 && len(lines) == maxLines {
		lastLine := lines[maxLines-1]
		if len(lastLine) > width-3 {
			lastLine = lastLine[:width-3]
		}
		lines[maxLines-1] = lastLine + "..."
	}

	return lines
}
