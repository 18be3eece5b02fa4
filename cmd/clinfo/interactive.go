package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/panicz/clops/cl"
	"github.com/panicz/clops/native"
	"github.com/panicz/clops/options"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	platformStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	keyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

// entry is one row of the browser: a platform, or a device under it.
type entry struct {
	platform *cl.Platform
	device   *cl.Device
}

func (e entry) label() string {
	if e.device != nil {
		return "  " + e.device.Name() + " " + keyStyle.Render(e.device.Type())
	}
	return platformStyle.Render(e.platform.Name())
}

type modelState int

const (
	stateBrowse modelState = iota
	stateFilter
	stateDetail
)

type interactiveModel struct {
	err      error
	session  *cl.Session
	driver   string
	selector []string
	entries  []entry
	filter   textinput.Model
	selected int
	state    modelState
}

func newInteractiveModel(s *cl.Session, driver string, selector []string) *interactiveModel {
	ti := textinput.New()
	ti.Prompt = "device types: "
	ti.Placeholder = strings.Join(options.DeviceTypeGrammar().Symbols(), " ")
	ti.Width = 60
	return &interactiveModel{
		session:  s,
		driver:   driver,
		selector: selector,
		filter:   ti,
		state:    stateBrowse,
	}
}

type loadedMsg struct {
	err     error
	entries []entry
}

func (m *interactiveModel) Init() tea.Cmd {
	return m.load
}

func (m *interactiveModel) load() tea.Msg {
	platforms, err := m.session.Platforms()
	if err != nil {
		return loadedMsg{err: err}
	}
	var entries []entry
	for _, p := range platforms {
		entries = append(entries, entry{platform: p})
		devices, err := p.Devices(m.selector...)
		if err != nil {
			continue
		}
		for _, d := range devices {
			entries = append(entries, entry{platform: p, device: d})
		}
	}
	return loadedMsg{entries: entries}
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.state == stateFilter {
			switch msg.String() {
			case "enter":
				m.selector = options.Split(m.filter.Value())
				m.filter.Blur()
				m.state = stateBrowse
				m.selected = 0
				return m, m.load
			case "esc":
				m.filter.Blur()
				m.state = stateBrowse
				return m, nil
			}
			var cmd tea.Cmd
			m.filter, cmd = m.filter.Update(msg)
			return m, cmd
		}

		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit

		case "up", "k":
			if m.state == stateBrowse && m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.state == stateBrowse && m.selected < len(m.entries)-1 {
				m.selected++
			}

		case "/":
			if m.state == stateBrowse {
				m.filter.SetValue(strings.Join(m.selector, " "))
				m.filter.Focus()
				m.state = stateFilter
				return m, textinput.Blink
			}

		case "enter":
			switch m.state {
			case stateBrowse:
				if len(m.entries) > 0 {
					m.state = stateDetail
				}
			case stateDetail:
				m.state = stateBrowse
			}

		case "esc":
			m.state = stateBrowse
		}

	case loadedMsg:
		m.err = msg.err
		m.entries = msg.entries
	}

	return m, nil
}

var (
	platformParams = []struct {
		name  string
		param native.PlatformInfo
	}{
		{"name", native.PlatformName},
		{"vendor", native.PlatformVendor},
		{"version", native.PlatformVersion},
		{"profile", native.PlatformProfile},
		{"extensions", native.PlatformExtensions},
	}
	deviceParams = []struct {
		name  string
		param native.DeviceInfo
	}{
		{"name", native.DeviceName},
		{"vendor", native.DeviceVendor},
		{"version", native.DeviceVersion},
		{"driver", native.DeviceDriverVersion},
		{"profile", native.DeviceProfile},
	}
)

func (m *interactiveModel) detail(e entry) string {
	var b strings.Builder
	row := func(k, v string) {
		fmt.Fprintf(&b, "%s %s\n", keyStyle.Render(fmt.Sprintf("%-11s", k)), v)
	}
	if e.device != nil {
		b.WriteString(e.device.String() + "\n\n")
		row("type", e.device.Type())
		for _, p := range deviceParams {
			row(p.name, e.device.Info(p.param))
		}
		return b.String()
	}
	b.WriteString(e.platform.String() + "\n\n")
	for _, p := range platformParams {
		row(p.name, e.platform.Info(p.param))
	}
	if v, ok := native.ParseVersion(e.platform.Version()); ok {
		row("api", v)
		row("opencl 1.2", fmt.Sprint(native.AtLeast(e.platform.Version(), "1.2")))
	}
	return b.String()
}

func (m *interactiveModel) View() string {
	if m.err != nil {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("OpenCL platforms"))
	b.WriteString(" driver " + m.driver)
	if len(m.selector) > 0 {
		b.WriteString(" types " + strings.Join(m.selector, " "))
	}
	b.WriteString("\n\n")

	switch m.state {
	case stateBrowse, stateFilter:
		if len(m.entries) == 0 {
			b.WriteString("No platforms found.\n")
		}
		for i, e := range m.entries {
			if i == m.selected {
				b.WriteString(selectedStyle.Render("> " + e.label()))
			} else {
				b.WriteString("  " + e.label())
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		if m.state == stateFilter {
			b.WriteString(m.filter.View())
			b.WriteString("\n")
			b.WriteString(helpStyle.Render("enter apply • esc cancel"))
		} else {
			b.WriteString(helpStyle.Render("↑/↓ select • enter details • / device types • q quit"))
		}

	case stateDetail:
		b.WriteString(m.detail(m.entries[m.selected]))
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("enter back • q quit"))
	}

	return b.String()
}

func runInteractive(s *cl.Session, driver string, selector []string) error {
	p := tea.NewProgram(newInteractiveModel(s, driver, selector), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
