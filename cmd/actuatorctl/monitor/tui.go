package monitor

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mdouchement/actuatord"
)

type model struct {
	table table.Model
}

func newTUI() *model {
	columns := []table.Column{
		{Title: "Field", Width: 20},
		{Title: "Value", Width: 40},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(false),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		Foreground(lipgloss.Color("#00afff")).
		BorderForeground(lipgloss.Color("#00afff")).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("#ffffff")).
		Bold(false)
	t.SetStyles(s)

	return &model{
		table: t,
	}
}

func (m *model) Init() tea.Cmd {
	return nil
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.table.SetWidth(msg.Width)
		m.table.SetHeight(msg.Height)
	case actuatord.Status:
		m.table.SetRows(rows(msg))
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}
	}
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *model) View() string {
	return m.table.View()
}

func rows(s actuatord.Status) []table.Row {
	mo := s.Motion

	state := "stopped"
	if mo.Running {
		state = "running " + mo.Direction
	}
	if mo.Fault != "" {
		state = "halted: " + mo.Fault
	}
	mode := "continuous"
	if mo.StepMode {
		mode = fmt.Sprintf("stepping (%.3g ms / %.3g ms)", float64(mo.StepTime)/1000, float64(mo.StillTime)/1000)
	} else if !mo.SteppingAvailable {
		mode += " (stepping unavailable)"
	}

	update := "off"
	if s.Updating {
		update = s.UpdateURL
	}

	return []table.Row{
		{"Device", s.DeviceID},
		{"Indicator", s.Indicator},
		{"Motion", state},
		{"Mode", mode},
		{"Voltage", fmt.Sprintf("%d V", mo.Voltage)},
		{"Duty", fmt.Sprintf("%g %%", mo.Duty)},
		{"Forward", fmt.Sprintf("%d Hz @ %g°", mo.ForwardFreq, mo.ForwardPhase)},
		{"Backward", fmt.Sprintf("%d Hz @ %g°", mo.BackwardFreq, mo.BackwardPhase)},
		{"Reversed", strconv.FormatBool(mo.Reversed)},
		{"Phase offset", fmt.Sprintf("%d ticks", mo.PhaseTicks)},
		{"Update", update},
		{"Frames", fmt.Sprintf("%d (%d errors)", s.Frames, s.Errors)},
		{"Last update", s.At.Format("15:04:05")},
	}
}
