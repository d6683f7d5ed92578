package status

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stratustools/core/internal/store"
	"github.com/stratustools/core/tui/theme"
)

const actionTimeout = 15 * time.Second

// Source is the part of the Store the view needs.
type Source interface {
	Get() store.State
	Subscribe() chan store.Update
	Unsubscribe(ch chan store.Update)
	Refresh(ctx context.Context) error
	StartUpdate(ctx context.Context) error
	DismissUpdate()
}

type keyMap struct {
	Quit    key.Binding
	Refresh key.Binding
	Update  key.Binding
	Dismiss key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Refresh, k.Update, k.Dismiss, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

var keys = keyMap{
	Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	Refresh: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
	Update:  key.NewBinding(key.WithKeys("u"), key.WithHelp("u", "update server")),
	Dismiss: key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "dismiss")),
}

// storeChangedMsg carries one store notification into the program.
type storeChangedMsg store.Update

// subscriptionClosedMsg is sent when the store subscription ends.
type subscriptionClosedMsg struct{}

// actionDoneMsg reports the result of a refresh or update request.
type actionDoneMsg struct {
	action string
	err    error
}

// Model is the live status view.
type Model struct {
	ctx     context.Context
	source  Source
	updates chan store.Update
	state   store.State

	renderer Renderer
	spinner  spinner.Model
	help     help.Model

	lastErr  string
	quitting bool
}

// New creates the view and subscribes to source. Call Close when the
// program has exited.
func New(ctx context.Context, source Source) Model {
	t := theme.DefaultTheme
	return Model{
		ctx:      ctx,
		source:   source,
		updates:  source.Subscribe(),
		state:    source.Get(),
		renderer: Renderer{Theme: t},
		spinner:  spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(t.Info)),
		help:     help.New(),
	}
}

// Close releases the store subscription.
func (m Model) Close() {
	m.source.Unsubscribe(m.updates)
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForChange(m.updates))
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.renderer.Width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, keys.Refresh):
			return m, m.run("refresh", m.source.Refresh)
		case key.Matches(msg, keys.Update):
			if m.state.Update.InProgress() {
				return m, nil
			}
			return m, m.run("update", m.source.StartUpdate)
		case key.Matches(msg, keys.Dismiss):
			m.source.DismissUpdate()
			m.lastErr = ""
			m.state = m.source.Get()
			return m, nil
		}
		return m, nil

	case storeChangedMsg:
		m.state = m.source.Get()
		return m, waitForChange(m.updates)

	case subscriptionClosedMsg:
		return m, nil

	case actionDoneMsg:
		m.lastErr = ""
		if msg.err != nil {
			m.lastErr = msg.action + ": " + msg.err.Error()
		}
		m.state = m.source.Get()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	t := m.renderer.Theme

	view := m.renderer.Render(m.state)
	if m.state.Loading || m.state.Update.InProgress() {
		view = m.spinner.View() + " " + view
	}
	if m.lastErr != "" {
		view += "\n\n" + t.Error.Render(m.lastErr)
	}
	return view + "\n\n" + m.help.View(keys) + "\n"
}

// State returns the state the view last rendered.
func (m Model) State() store.State {
	return m.state
}

func (m Model) run(action string, fn func(context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, actionTimeout)
		defer cancel()
		return actionDoneMsg{action: action, err: fn(ctx)}
	}
}

func waitForChange(ch chan store.Update) tea.Cmd {
	return func() tea.Msg {
		u, ok := <-ch
		if !ok {
			return subscriptionClosedMsg{}
		}
		return storeChangedMsg(u)
	}
}
