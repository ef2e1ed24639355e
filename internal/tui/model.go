package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/i474232898/weather-widget/internal/controller"
)

// DefaultDebounce is how long typing must pause before the place is applied.
const DefaultDebounce = 300 * time.Millisecond

// Controller is the part of the query controller the widget drives.
type Controller interface {
	SetPlace(text string)
	Refresh()
}

// stateMsg carries a controller state update.
type stateMsg controller.State

// updatesClosedMsg is sent once the update channel is closed.
type updatesClosedMsg struct{}

// placeDebounceMsg is sent after the debounce timer expires.
type placeDebounceMsg struct {
	text string
	seq  int
}

type keyMap struct {
	Refresh key.Binding
	Quit    key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Refresh: key.NewBinding(
			key.WithKeys("ctrl+r"),
			key.WithHelp("ctrl+r", "refresh"),
		),
		Quit: key.NewBinding(
			key.WithKeys("esc", "ctrl+c"),
			key.WithHelp("esc", "quit"),
		),
	}
}

// Option configures a Model.
type Option func(*Model)

// WithDebounce overrides the typing debounce. Zero applies every keystroke.
func WithDebounce(d time.Duration) Option {
	return func(m *Model) { m.debounce = d }
}

// WithStyles overrides the default styles.
func WithStyles(s Styles) Option {
	return func(m *Model) { m.styles = s }
}

// Model is the bubbletea model of the weather widget.
type Model struct {
	ctrl    Controller
	updates <-chan controller.State
	styles  Styles
	keys    keyMap

	textInput textinput.Model
	spinner   spinner.Model
	debounce  time.Duration

	// State
	state       controller.State
	lastValue   string // input value last scheduled for the controller
	debounceSeq int    // monotonic counter to discard stale debounce msgs
	closed      bool
}

// New creates the widget. updates is usually Controller.Updates; initial
// pre-fills the input without issuing a query.
func New(ctrl Controller, updates <-chan controller.State, initial string, opts ...Option) Model {
	m := Model{
		ctrl:     ctrl,
		updates:  updates,
		styles:   NewStyles(),
		keys:     defaultKeyMap(),
		debounce: DefaultDebounce,
	}
	for _, opt := range opts {
		opt(&m)
	}

	ti := textinput.New()
	ti.Placeholder = "Enter city name"
	ti.CharLimit = 256
	ti.SetValue(initial)
	ti.CursorEnd()
	ti.Focus()
	m.textInput = ti
	m.lastValue = initial

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = m.styles.Spinner
	m.spinner = s

	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, waitForState(m.updates))
}

func waitForState(ch <-chan controller.State) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		s, ok := <-ch
		if !ok {
			return updatesClosedMsg{}
		}
		return stateMsg(s)
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if msg.Width > 4 {
			m.textInput.Width = msg.Width - 4
		}
		return m, nil

	case stateMsg:
		wasLoading := m.state.Display().Loading
		m.state = controller.State(msg)
		cmds := []tea.Cmd{waitForState(m.updates)}
		if !wasLoading && m.state.Display().Loading {
			cmds = append(cmds, m.spinner.Tick)
		}
		return m, tea.Batch(cmds...)

	case updatesClosedMsg:
		m.closed = true
		return m, nil

	case placeDebounceMsg:
		if msg.seq == m.debounceSeq {
			m.ctrl.SetPlace(msg.text)
		}
		return m, nil

	case spinner.TickMsg:
		if !m.state.Display().Loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Refresh):
			m.ctrl.Refresh()
			return m, nil
		}
		return m, m.updateInput(msg)
	}

	var cmd tea.Cmd
	m.textInput, cmd = m.textInput.Update(msg)
	return m, cmd
}

func (m *Model) updateInput(msg tea.KeyMsg) tea.Cmd {
	var cmd tea.Cmd
	m.textInput, cmd = m.textInput.Update(msg)

	text := m.textInput.Value()
	if text == m.lastValue {
		return cmd
	}
	m.lastValue = text
	m.debounceSeq++

	if m.debounce <= 0 {
		m.ctrl.SetPlace(text)
		return cmd
	}

	seq := m.debounceSeq
	debounceCmd := tea.Tick(m.debounce, func(time.Time) tea.Msg {
		return placeDebounceMsg{text: text, seq: seq}
	})
	return tea.Batch(cmd, debounceCmd)
}

// View implements tea.Model.
func (m Model) View() string {
	d := m.state.Display()

	lines := []string{
		m.styles.Title.Render("Weather"),
		m.textInput.View(),
	}

	if d.Message != "" {
		lines = append(lines, m.styles.Error.Render(d.Message))
	}
	if d.Loading {
		lines = append(lines, m.spinner.View()+" Loading...")
	}
	if d.Snapshot != nil {
		lines = append(lines, renderCard(m.styles, *d.Snapshot))
	}
	if m.closed {
		lines = append(lines, m.styles.Muted.Render("Updates stopped."))
	}

	lines = append(lines, m.styles.Muted.Render(m.helpLine()))
	return lipgloss.JoinVertical(lipgloss.Left, lines...) + "\n"
}

func (m Model) helpLine() string {
	r, q := m.keys.Refresh.Help(), m.keys.Quit.Help()
	return r.Key + " " + r.Desc + " • " + q.Key + " " + q.Desc
}
