// Package tui implements the interactive candidate picker on bubbletea.
// The picker presents the menu builder's options for one group; choosing an
// enabled option hands the addition to the change engine, so every pick goes
// through the same planning and confirmation path as the CLI commands.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/meterflow/meterflow/internal/cli"
	"github.com/meterflow/meterflow/internal/model"
)

// OptionSource builds the candidate list the picker displays.
type OptionSource interface {
	Options(ctx context.Context, groupID model.GroupID) ([]model.MenuOption, error)
}

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(cli.PrimaryColor)
	cursorStyle   = lipgloss.NewStyle().Bold(true).Foreground(cli.PrimaryColor)
	disabledStyle = lipgloss.NewStyle().Foreground(cli.SubtleColor).Strikethrough(true)
	statusStyle   = lipgloss.NewStyle().Foreground(cli.WarningColor)
	helpStyle     = lipgloss.NewStyle().Foreground(cli.SubtleColor)
)

type optionsLoadedMsg struct {
	options []model.MenuOption
}

type loadFailedMsg struct {
	err error
}

// Model is the picker's bubbletea model.
type Model struct {
	load    tea.Cmd
	choice  *model.MenuOption
	group   *model.Group
	err     error
	status  string
	options []model.MenuOption
	spinner spinner.Model
	keys    KeyMap
	cursor  int
	width   int
	height  int
	loading bool
	aborted bool
}

// New creates a picker for the group. Options are loaded asynchronously so
// the spinner shows while candidate sets are resolved.
func New(ctx context.Context, source OptionSource, group *model.Group) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(cli.PrimaryColor)

	return Model{
		group:   group,
		keys:    DefaultKeyMap(),
		spinner: sp,
		loading: true,
		load: func() tea.Msg {
			options, err := source.Options(ctx, group.ID)
			if err != nil {
				return loadFailedMsg{err: err}
			}
			return optionsLoadedMsg{options: options}
		},
	}
}

// Init starts the spinner and the option load.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.load)
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case optionsLoadedMsg:
		m.loading = false
		m.options = msg.options
		m.cursor = firstEnabled(msg.options)
		return m, nil

	case loadFailedMsg:
		m.loading = false
		m.err = msg.err
		return m, tea.Quit

	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) || key.Matches(msg, m.keys.ForceQuit) {
		m.aborted = true
		return m, tea.Quit
	}

	if m.loading || len(m.options) == 0 {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Up):
		m.cursor = (m.cursor + len(m.options) - 1) % len(m.options)
		m.status = ""

	case key.Matches(msg, m.keys.Down):
		m.cursor = (m.cursor + 1) % len(m.options)
		m.status = ""

	case key.Matches(msg, m.keys.Home):
		m.cursor = 0
		m.status = ""

	case key.Matches(msg, m.keys.End):
		m.cursor = len(m.options) - 1
		m.status = ""

	case key.Matches(msg, m.keys.Select):
		opt := m.options[m.cursor]
		if opt.Disabled {
			m.status = "This candidate would leave the group with no compatible units."
			return m, nil
		}
		m.choice = &opt
		return m, tea.Quit
	}

	return m, nil
}

// View renders the picker.
func (m Model) View() string {
	if m.err != nil {
		return ""
	}

	if m.loading {
		return fmt.Sprintf("\n  %s Building menu for %s...\n", m.spinner.View(), m.group.Name)
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("Add to %s", m.group.Name)))
	b.WriteString("\n\n")

	if len(m.options) == 0 {
		b.WriteString(helpStyle.Render("No candidates can be added to this group."))
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("[Q] Cancel"))
		return b.String()
	}

	for i := range m.options {
		b.WriteString(m.renderOption(i))
		b.WriteString("\n")
	}

	if m.status != "" {
		b.WriteString("\n")
		b.WriteString(statusStyle.Render(cli.WarningIcon + " " + m.status))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render("[↑↓] Navigate | [Enter] Add | [Q] Cancel"))
	return b.String()
}

func (m Model) renderOption(i int) string {
	opt := m.options[i]

	prefix := "  "
	if i == m.cursor {
		prefix = cursorStyle.Render("> ")
	}

	label := opt.Label
	if opt.Candidate.Kind == model.CandidateGroup {
		label += " (group)"
	}
	if opt.Disabled {
		label = disabledStyle.Render(label)
	}

	return fmt.Sprintf("%s%s  %s", prefix, label, cli.StyleChangeCase(opt.ChangeCase))
}

// Choice returns the chosen option, or nil if the picker was canceled.
func (m Model) Choice() *model.MenuOption {
	return m.choice
}

// Aborted reports whether the user quit without choosing.
func (m Model) Aborted() bool {
	return m.aborted
}

// Err returns the option load error, if any.
func (m Model) Err() error {
	return m.err
}

// firstEnabled returns the index of the first selectable option, or 0.
func firstEnabled(options []model.MenuOption) int {
	for i, opt := range options {
		if !opt.Disabled {
			return i
		}
	}
	return 0
}
