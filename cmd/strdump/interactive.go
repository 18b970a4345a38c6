package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/bindecode/format"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	queryStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	typeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type modelState int

const (
	stateQuery modelState = iota
	stateBrowse
)

// chrome is the number of lines View draws around the viewport.
const chrome = 6

type interactiveModel struct {
	err      error
	root     any
	current  any
	table    *format.Table
	filename string
	query    string
	input    textinput.Model
	view     viewport.Model
	history  []string
	state    modelState
	ready    bool
}

func newInteractiveModel(filename string, root any) *interactiveModel {
	ti := textinput.New()
	ti.Placeholder = "path or expression, empty for root"
	ti.Prompt = "query: "
	ti.Width = 60
	ti.Focus()
	return &interactiveModel{
		root:     root,
		current:  root,
		table:    format.NewTable(),
		filename: filename,
		input:    ti,
		state:    stateQuery,
	}
}

func runInteractive(filename string, root any) error {
	p := tea.NewProgram(newInteractiveModel(filename, root), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

func (m *interactiveModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if !m.ready {
			m.view = viewport.New(msg.Width, msg.Height-chrome)
			m.ready = true
			m.refresh()
		} else {
			m.view.Width = msg.Width
			m.view.Height = msg.Height - chrome
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit

		case "q":
			if m.state == stateBrowse {
				return m, tea.Quit
			}

		case "tab":
			if m.state == stateQuery {
				m.state = stateBrowse
				m.input.Blur()
			} else {
				m.state = stateQuery
				m.input.Focus()
			}
			return m, nil

		case "enter":
			if m.state == stateQuery {
				m.run(strings.TrimSpace(m.input.Value()))
				return m, nil
			}

		case "esc":
			m.input.SetValue("")
			m.run("")
			return m, nil

		case "up":
			if m.state == stateQuery && len(m.history) > 0 {
				m.input.SetValue(m.history[len(m.history)-1])
				m.input.CursorEnd()
				return m, nil
			}
		}
	}

	var cmd tea.Cmd
	if m.state == stateQuery {
		m.input, cmd = m.input.Update(msg)
	} else if m.ready {
		m.view, cmd = m.view.Update(msg)
	}
	return m, cmd
}

func (m *interactiveModel) run(q string) {
	m.query = q
	m.err = nil
	if q == "" {
		m.current = m.root
	} else {
		v, err := query(m.root, q)
		if err != nil {
			m.err = err
		} else {
			m.current = v
			m.history = append(m.history, q)
		}
	}
	m.refresh()
}

func (m *interactiveModel) refresh() {
	if !m.ready {
		return
	}
	if m.err != nil {
		m.view.SetContent(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
	} else {
		m.view.SetContent(m.table.Format("", m.current))
	}
	m.view.GotoTop()
}

func (m *interactiveModel) View() string {
	if !m.ready {
		return "Decoding..."
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("strdump"))
	b.WriteString(" ")
	b.WriteString(m.filename)
	b.WriteString(" ")
	b.WriteString(typeStyle.Render(typeOf(m.current)))
	b.WriteString("\n\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")
	if m.query != "" {
		b.WriteString(queryStyle.Render("= " + m.query))
	}
	b.WriteString("\n")
	b.WriteString(m.view.View())
	b.WriteString("\n")

	switch m.state {
	case stateQuery:
		b.WriteString(helpStyle.Render("enter query • ↑ last query • esc root • tab browse • ctrl+c quit"))
	case stateBrowse:
		b.WriteString(helpStyle.Render(fmt.Sprintf("↑/↓ scroll %3.f%% • tab query • esc root • q quit", m.view.ScrollPercent()*100)))
	}

	return b.String()
}
