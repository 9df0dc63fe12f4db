package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pithecene-io/rpbridge/cli/reader"
)

// InspectModel is a Bubble Tea model for inspect views.
type InspectModel struct {
	viewType    string
	data        any
	width       int
	height      int
	offset      int
	showMetrics bool
	quitting    bool
}

// NewInspectModel creates a new inspect model.
func NewInspectModel(viewType string, data any) InspectModel {
	return InspectModel{
		viewType: viewType,
		data:     data,
	}
}

// Init implements tea.Model.
func (m InspectModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m InspectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, keys.Metrics):
			m.showMetrics = !m.showMetrics
		case key.Matches(msg, keys.Down):
			if m.offset < m.rowCount()-1 {
				m.offset++
			}
		case key.Matches(msg, keys.Up):
			if m.offset > 0 {
				m.offset--
			}
		}
	}

	return m, nil
}

// View implements tea.Model.
func (m InspectModel) View() string {
	if m.quitting {
		return ""
	}

	var content, help string
	switch m.viewType {
	case ViewReport:
		content = m.renderReport()
		help = "m: toggle metrics • q: quit"
	case ViewLaunch:
		content = m.renderLaunch()
		help = "↑/↓: scroll • q: quit"
	default:
		content = fmt.Sprintf("Unknown view type: %s", m.viewType)
		help = "q: quit"
	}

	return content + "\n" + HelpStyle.Render(help)
}

func (m InspectModel) renderReport() string {
	data, ok := m.data.(*reader.ReportDetail)
	if !ok || data.Report == nil {
		return "Invalid data type for inspect_report"
	}
	r := data.Report

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Run Report"))
	b.WriteString("\n")

	rows := [][2]string{
		{"Launch", r.Launch},
		{"Launch ID", r.LaunchID},
		{"Transport", r.Transport},
		{"Outcome", r.Outcome},
		{"Message", r.Message},
		{"Exit Code", fmt.Sprintf("%d", r.ExitCode)},
		{"Duration", r.Duration},
		{"Suites", fmt.Sprintf("%d", r.Suites)},
		{"Events", fmt.Sprintf("%d (%d dropped)", r.Events, r.Dropped)},
	}
	for _, row := range rows {
		if row[1] == "" {
			continue
		}
		value := ValueStyle.Render(row[1])
		if row[0] == "Outcome" {
			value = OutcomeStyle(r.Outcome).Render(row[1])
		}
		fmt.Fprintf(&b, "%s %s\n", LabelStyle.Render(row[0]+":"), value)
	}

	b.WriteString("\n")
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		CountStyle.Render(fmt.Sprintf("tests\n%d", r.Tests)),
		CountStyle.Render(SuccessStyle.Render(fmt.Sprintf("passed\n%d", r.Passed))),
		CountStyle.Render(ErrorStyle.Render(fmt.Sprintf("failed\n%d", r.Failed))),
	))
	b.WriteString("\n")

	if m.showMetrics {
		b.WriteString("\n")
		b.WriteString(TitleStyle.Render("Metrics"))
		b.WriteString("\n")
		if len(data.Metrics) == 0 {
			b.WriteString(LabelStyle.Width(0).Render("(none)"))
			b.WriteString("\n")
		}
		for _, mr := range data.Metrics {
			fmt.Fprintf(&b, "%s %s\n",
				LabelStyle.Width(22).Render(mr.Name),
				ValueStyle.Render(fmt.Sprintf("%d", mr.Value)))
		}
	}

	return BoxStyle.Render(b.String())
}

func (m InspectModel) renderLaunch() string {
	rows, ok := m.data.([]reader.RecordRow)
	if !ok {
		return "Invalid data type for inspect_launch"
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render(fmt.Sprintf("Launch Records (%d)", len(rows))))
	b.WriteString("\n")

	for _, row := range rows[m.offset:m.visibleEnd(len(rows))] {
		detail := row.Detail
		if row.Kind == "item_finished" {
			detail = OutcomeStyle(row.Detail).Render(row.Detail)
		}
		fmt.Fprintf(&b, "%4d  %s  %s\n",
			row.Seq,
			KindStyle(row.Kind).Render(fmt.Sprintf("%-16s", row.Kind)),
			detail)
	}

	return BoxStyle.Render(b.String())
}

// visibleEnd bounds the rows shown for the current window height.
func (m InspectModel) visibleEnd(n int) int {
	page := n
	if m.height > 10 {
		page = m.height - 10
	}
	return min(n, m.offset+page)
}

func (m InspectModel) rowCount() int {
	if rows, ok := m.data.([]reader.RecordRow); ok {
		return len(rows)
	}
	return 0
}

// keyMap defines key bindings.
type keyMap struct {
	Quit    key.Binding
	Metrics key.Binding
	Up      key.Binding
	Down    key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
	Metrics: key.NewBinding(
		key.WithKeys("m"),
		key.WithHelp("m", "toggle metrics"),
	),
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑/k", "scroll up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓/j", "scroll down"),
	),
}

// RunInspectTUI runs the inspect TUI.
func RunInspectTUI(viewType string, data any) error {
	model := NewInspectModel(viewType, data)
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// RenderInspectStatic renders inspect data without the full TUI.
func RenderInspectStatic(viewType string, data any) string {
	model := NewInspectModel(viewType, data)
	model.width = 80
	model.height = 24
	return lipgloss.NewStyle().Padding(1, 2).Render(model.View())
}
