package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/sync/errgroup"

	"hrclock/internal/refresh"
)

// Styles
var baseStyle = lipgloss.NewStyle().
	BorderStyle(lipgloss.RoundedBorder()).
	BorderForeground(lipgloss.Color("240")).
	Padding(0, 1)

var headerStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("#FAFAFA")).
	Background(lipgloss.Color("#0288D1")).
	PaddingLeft(1).
	PaddingRight(1)

var labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
var valueStyle = lipgloss.NewStyle().Bold(true)
var doneStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
var commentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("208")).Italic(true)
var errStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
var helpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))

type refreshedMsg struct{ err error }

type credentialsChangedMsg struct{}

type tickMsg time.Time

type tuiModel struct {
	ctx     context.Context
	app     *app
	spinner spinner.Model
	loading bool
	comment string
	err     error
}

func newTUIModel(ctx context.Context, a *app) tuiModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	return tuiModel{ctx: ctx, app: a, spinner: s, loading: true}
}

func (m tuiModel) refreshCmd() tea.Cmd {
	return func() tea.Msg {
		return refreshedMsg{err: m.app.refresher.Refresh(m.ctx)}
	}
}

func tick() tea.Cmd {
	return tea.Tick(30*time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m tuiModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.refreshCmd(), tick())
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "r":
			return m.startRefresh()
		}
	case credentialsChangedMsg:
		return m.startRefresh()
	case refreshedMsg:
		if errors.Is(msg.err, refresh.ErrInFlight) {
			return m, nil
		}
		m.loading = false
		m.err = msg.err
		// one comment per fetch, not per redraw
		m.comment = m.app.summary().Comment
		return m, nil
	case tickMsg:
		return m, tick()
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m tuiModel) startRefresh() (tea.Model, tea.Cmd) {
	if m.loading {
		m.app.logger.Debug("refresh key pressed while loading")
		return m, nil
	}
	m.loading = true
	return m, tea.Batch(m.spinner.Tick, m.refreshCmd())
}

func (m tuiModel) View() string {
	sum := m.app.summary()
	st := m.app.refresher.State()

	value := func(v string) string {
		if m.loading {
			return m.spinner.View() + " Loading"
		}
		return valueStyle.Render(v)
	}
	clockOut := value(sum.ClockOut)
	if sum.Complete && !m.loading {
		clockOut = doneStyle.Render(sum.ClockOut)
	}

	rows := []string{
		headerStyle.Render("Break Timing"),
		"",
		labelStyle.Render("Break Hours:"),
		value(sum.Break),
		labelStyle.Render("Total Work Hours:"),
		value(sum.Worked),
		labelStyle.Render("Net Work Hours:"),
		value(sum.Net),
		labelStyle.Render(fmt.Sprintf("Clock Out (target %s):", m.app.cfg.TargetWorkday)),
		clockOut,
	}
	if m.comment != "" && sum.Overtime && !m.loading {
		rows = append(rows, "", commentStyle.Render(m.comment))
	}
	if m.err != nil {
		rows = append(rows, "", errStyle.Render(mapRefreshError(m.err).Error()))
	}
	footer := "r refresh • q quit"
	if !st.LastSuccess.IsZero() {
		footer = fmt.Sprintf("updated %s • %s", st.LastSuccess.Format("15:04:05"), footer)
	}
	rows = append(rows, "", helpStyle.Render(footer))

	return baseStyle.Render(lipgloss.JoinVertical(lipgloss.Left, rows...)) + "\n"
}

func runTUI(ctx context.Context, a *app, watch bool) error {
	p := tea.NewProgram(newTUIModel(ctx, a), tea.WithContext(ctx))
	watchCtx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(watchCtx)
	if watch {
		g.Go(func() error {
			a.watch(gctx, func() { p.Send(credentialsChangedMsg{}) })
			return nil
		})
	}
	_, err := p.Run()
	cancel()
	_ = g.Wait()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("tui run failed: %w", err)
	}
	return nil
}
