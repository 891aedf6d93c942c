package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

const (
	fieldBaseURL = iota
	fieldAPIKey
	fieldSiteURL
)

var setupLabels = []string{
	fieldBaseURL: "Search Service URL:",
	fieldAPIKey:  "API Key (optional):",
	fieldSiteURL: "Site URL:",
}

type SetupModel struct {
	inputs []textinput.Model
	focus  int
	error  string
	width  int
	height int
}

// NewSetupModel pre-fills the wizard with the current configuration.
func NewSetupModel(baseURL, apiKey, siteURL string) SetupModel {
	base := textinput.New()
	base.Placeholder = "https://search.example.org"
	base.SetValue(baseURL)
	base.Width = 60

	key := textinput.New()
	key.Placeholder = "Paste your search API key here..."
	key.SetValue(apiKey)
	key.Width = 60
	key.EchoMode = textinput.EchoPassword
	key.EchoCharacter = '•'

	site := textinput.New()
	site.Placeholder = "https://nest.example.org"
	site.SetValue(siteURL)
	site.Width = 60

	inputs := []textinput.Model{base, key, site}
	inputs[0].Focus()

	return SetupModel{inputs: inputs}
}

func (m SetupModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m SetupModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit

		case "tab", "down":
			m.moveFocus(1)
			return m, nil

		case "shift+tab", "up":
			m.moveFocus(-1)
			return m, nil

		case "enter":
			base := strings.TrimSpace(m.inputs[fieldBaseURL].Value())
			site := strings.TrimSpace(m.inputs[fieldSiteURL].Value())

			if base == "" {
				m.error = "Search service URL is required"
				return m, nil
			}
			if site == "" {
				m.error = "Site URL is required"
				return m, nil
			}

			submit := SetupSubmitMsg{
				BaseURL: base,
				APIKey:  strings.TrimSpace(m.inputs[fieldAPIKey].Value()),
				SiteURL: site,
			}
			return m, func() tea.Msg { return submit }
		}

		m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case SetupErrorMsg:
		m.error = msg.Error

	default:
		m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	}

	return m, cmd
}

func (m *SetupModel) moveFocus(delta int) {
	m.inputs[m.focus].Blur()
	m.focus = (m.focus + delta + len(m.inputs)) % len(m.inputs)
	m.inputs[m.focus].Focus()
}

func (m SetupModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("nestfind - Setup") + "\n\n")
	b.WriteString("Point nfind at the search service that serves the community indexes.\n")
	b.WriteString("Selections open pages on the site URL in your browser.\n\n")

	for i, input := range m.inputs {
		label := setupLabels[i]
		if i == m.focus {
			label = activeStyle.Render("> " + label)
		} else {
			label = "  " + label
		}
		b.WriteString(label + "\n")
		b.WriteString(inputStyle.Render(input.View()) + "\n\n")
	}

	if m.error != "" {
		b.WriteString(errorStyle.Render("Error: "+m.error) + "\n")
	}

	b.WriteString("\n" + helpStyle.Render("tab switch field  enter submit  ctrl+c quit"))

	return b.String()
}
