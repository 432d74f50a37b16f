package main

import (
	"strings"
	"sync/atomic"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	inputStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("230")).Background(lipgloss.Color("24")).Padding(0, 1)
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

type model struct {
	cfg     appConfig
	source  string
	view    viewport.Model
	input   textinput.Model
	ready   bool
	status  string
	running bool
	events  <-chan tea.Msg
	pending *pendingInput
	lines   []string
	stop    *atomic.Bool
}

func newModel(cfg appConfig, source string) model {
	vp := viewport.New(80, 20)
	ti := textinput.New()
	ti.Prompt = "> "
	ti.CharLimit = 1024
	return model{
		cfg:    cfg,
		source: source,
		view:   vp,
		input:  ti,
		status: "starting",
		stop:   &atomic.Bool{},
	}
}

func startProgram(cfg appConfig, source string, stop *atomic.Bool) tea.Cmd {
	return func() tea.Msg {
		events := make(chan tea.Msg, 256)
		go runProgram(cfg, source, stop, events)
		return vmStartedMsg{events: events}
	}
}

func waitEvent(events <-chan tea.Msg) tea.Cmd {
	if events == nil {
		return nil
	}
	return func() tea.Msg {
		msg, ok := <-events
		if !ok {
			return nil
		}
		return msg
	}
}

func (m model) Init() tea.Cmd {
	return startProgram(m.cfg, m.source, m.stop)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		footer := 2
		if m.pending != nil {
			footer++
		}
		vh := msg.Height - footer
		if vh < 1 {
			vh = 1
		}
		m.view.Width = msg.Width
		m.view.Height = vh
		m.ready = true
		return m, nil

	case vmStartedMsg:
		m.events = msg.events
		m.running = true
		m.status = "running"
		return m, waitEvent(m.events)

	case vmOutputMsg:
		m.lines = append(m.lines, msg.line)
		m.view.SetContent(strings.Join(m.lines, "\n"))
		m.view.GotoBottom()
		return m, waitEvent(m.events)

	case vmPromptMsg:
		m.pending = &pendingInput{prompt: msg.prompt, resp: msg.resp}
		m.input.SetValue("")
		m.input.Focus()
		m.status = "input " + msg.prompt
		return m, nil

	case vmDoneMsg:
		m.running = false
		m.pending = nil
		m.input.Blur()
		if msg.err != nil {
			m.lines = append(m.lines, errStyle.Render(msg.err.Error()))
			m.view.SetContent(strings.Join(m.lines, "\n"))
			m.view.GotoBottom()
			m.status = "failed"
		} else {
			m.status = "done"
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.stop.Store(true)
			if m.pending != nil {
				m.pending.resp <- inputResp{cancelled: true}
				m.pending = nil
			}
			return m, tea.Quit
		}
		if m.pending != nil {
			if msg.String() == "enter" {
				m.pending.resp <- inputResp{value: m.input.Value()}
				m.pending = nil
				m.input.Blur()
				m.input.SetValue("")
				m.status = "running"
				return m, waitEvent(m.events)
			}
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			return m, cmd
		}
		switch msg.String() {
		case "q":
			if !m.running {
				return m, tea.Quit
			}
		case "r":
			if !m.running {
				m.lines = nil
				m.view.SetContent("")
				m.stop = &atomic.Bool{}
				m.status = "restarting"
				return m, startProgram(m.cfg, m.source, m.stop)
			}
		case "g", "home":
			m.view.GotoTop()
			return m, nil
		case "G", "end":
			m.view.GotoBottom()
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.view, cmd = m.view.Update(msg)
	return m, cmd
}

func (m model) View() string {
	if !m.ready {
		return "initializing..."
	}
	parts := []string{m.view.View()}
	if m.pending != nil {
		parts = append(parts, inputStyle.Render(m.input.View()))
	}
	parts = append(parts, statusStyle.Render(m.status))
	return strings.Join(parts, "\n")
}
