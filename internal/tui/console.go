package tui

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/audiows/internal/client"
	"github.com/muurk/audiows/internal/protocol"
	"github.com/muurk/audiows/internal/state"
)

const (
	maxHistory     = 8
	refreshTimeout = 2 * time.Second

	// Amplitude shown as a full bar.
	amplitudeScale = 2.0
)

// Controller is the subset of *client.Client the console drives.
type Controller interface {
	SetRecording(on bool) error
	SetAmplitude(v float64) error
	ClearAmplitude() error
	SendRaw(frame []byte) (protocol.ServerMessage, error)
}

// StateFetcher reads the server's current state.
type StateFetcher func(ctx context.Context) (*client.State, error)

// Messages for async operations
type replyMsg struct {
	action string
	result string
	err    error
	apply  func(*state.AudioState) // Applied on success until the next refresh
}

type stateMsg struct {
	state *client.State
	err   error
}

// HistoryEntry is one line of the console's request log.
type HistoryEntry struct {
	At     time.Time
	Action string
	Result string
	OK     bool
}

// consoleKeyMap defines key bindings for the console
type consoleKeyMap struct {
	Toggle  key.Binding
	Up      key.Binding
	Down    key.Binding
	Clear   key.Binding
	Refresh key.Binding
	Raw     key.Binding
	Help    key.Binding
	Quit    key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k consoleKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Toggle, k.Up, k.Down, k.Raw, k.Help, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k consoleKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Toggle, k.Up, k.Down, k.Clear},
		{k.Refresh, k.Raw, k.Help, k.Quit},
	}
}

// rawModeKeyMap defines key bindings while typing a raw frame
type rawModeKeyMap struct {
	Send   key.Binding
	Cancel key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k rawModeKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Send, k.Cancel}
}

// FullHelp returns keybindings for the expanded help view
func (k rawModeKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Send, k.Cancel}}
}

// ConsoleModel is the interactive control console for one server.
type ConsoleModel struct {
	ctrl  Controller
	fetch StateFetcher

	URL  string
	Step float64

	// Last known server state
	State       state.AudioState
	Connections int
	Known       bool
	Err         error

	Busy    bool
	Pending string
	History []HistoryEntry

	RawMode  bool
	RawInput textinput.Model

	// UI state
	Width   int
	Height  int
	Spinner spinner.Model
	Bar     progress.Model
	Help    help.Model
	Keys    consoleKeyMap
	RawKeys rawModeKeyMap
}

// NewConsoleModel creates a console for the server at url. fetch may be nil,
// in which case the console only shows state it has set itself.
func NewConsoleModel(ctrl Controller, fetch StateFetcher, url string, step float64) ConsoleModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	raw := textinput.New()
	raw.Placeholder = `{"type":"Command","data":{"rec":true}}`
	raw.Prompt = "frame> "
	raw.PromptStyle = FocusedInputStyle
	raw.CharLimit = 4096
	raw.Width = 50

	bar := progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage())
	bar.Width = 30

	if step <= 0 {
		step = 0.1
	}

	return ConsoleModel{
		ctrl:     ctrl,
		fetch:    fetch,
		URL:      url,
		Step:     step,
		State:    state.AudioState{Amplitude: state.DefaultAmplitude},
		Width:    DefaultWidth,
		Height:   DefaultHeight,
		Spinner:  s,
		Bar:      bar,
		Help:     help.New(),
		RawInput: raw,
		Keys: consoleKeyMap{
			Toggle: key.NewBinding(
				key.WithKeys("r", " "),
				key.WithHelp("r/space", "toggle rec"),
			),
			Up: key.NewBinding(
				key.WithKeys("+", "=", "up", "k"),
				key.WithHelp("+/↑", "amp up"),
			),
			Down: key.NewBinding(
				key.WithKeys("-", "down", "j"),
				key.WithHelp("-/↓", "amp down"),
			),
			Clear: key.NewBinding(
				key.WithKeys("c"),
				key.WithHelp("c", "empty parameter"),
			),
			Refresh: key.NewBinding(
				key.WithKeys("s"),
				key.WithHelp("s", "refresh"),
			),
			Raw: key.NewBinding(
				key.WithKeys(":"),
				key.WithHelp(":", "raw frame"),
			),
			Help: key.NewBinding(
				key.WithKeys("?"),
				key.WithHelp("?", "help"),
			),
			Quit: key.NewBinding(
				key.WithKeys("q", "ctrl+c"),
				key.WithHelp("q", "quit"),
			),
		},
		RawKeys: rawModeKeyMap{
			Send: key.NewBinding(
				key.WithKeys("enter"),
				key.WithHelp("enter", "send"),
			),
			Cancel: key.NewBinding(
				key.WithKeys("esc"),
				key.WithHelp("esc", "cancel"),
			),
		},
	}
}

// Init fetches the initial state
func (m ConsoleModel) Init() tea.Cmd {
	return fetchStateCmd(m.fetch)
}

// Update handles key presses and async results
func (m ConsoleModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.Help.Width = msg.Width
		return m, nil

	case spinner.TickMsg:
		if !m.Busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd

	case replyMsg:
		m.Busy = false
		m.Pending = ""
		entry := HistoryEntry{At: time.Now(), Action: msg.action, Result: msg.result, OK: msg.err == nil}
		if msg.err != nil {
			entry.Result = msg.err.Error()
		} else if msg.apply != nil {
			msg.apply(&m.State)
		}
		m.record(entry)
		return m, fetchStateCmd(m.fetch)

	case stateMsg:
		m.Err = msg.err
		if msg.err == nil && msg.state != nil {
			m.State = msg.state.AudioState
			m.Connections = msg.state.Connections
			m.Known = true
		}
		return m, nil

	case tea.KeyMsg:
		if m.RawMode {
			return m.updateRawMode(msg)
		}
		return m.updateNormalMode(msg)
	}

	return m, nil
}

func (m ConsoleModel) updateNormalMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.Keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.Keys.Help):
		m.Help.ShowAll = !m.Help.ShowAll
		return m, nil
	case key.Matches(msg, m.Keys.Refresh):
		return m, fetchStateCmd(m.fetch)
	}

	// One request in flight at a time.
	if m.Busy {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.Keys.Toggle):
		on := !m.State.Recording
		return m.start(recLabel(on), setRecordingCmd(m.ctrl, on))
	case key.Matches(msg, m.Keys.Up):
		v := StepAmplitude(m.State.Amplitude, m.Step)
		return m.start(ampLabel(v), setAmplitudeCmd(m.ctrl, v))
	case key.Matches(msg, m.Keys.Down):
		v := StepAmplitude(m.State.Amplitude, -m.Step)
		return m.start(ampLabel(v), setAmplitudeCmd(m.ctrl, v))
	case key.Matches(msg, m.Keys.Clear):
		return m.start("amp (none)", clearAmplitudeCmd(m.ctrl))
	case key.Matches(msg, m.Keys.Raw):
		m.RawMode = true
		m.RawInput.SetValue("")
		return m, m.RawInput.Focus()
	}
	return m, nil
}

func (m ConsoleModel) updateRawMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.String() == "ctrl+c":
		return m, tea.Quit
	case key.Matches(msg, m.RawKeys.Cancel):
		m.RawMode = false
		m.RawInput.Blur()
		return m, nil
	case key.Matches(msg, m.RawKeys.Send):
		frame := strings.TrimSpace(m.RawInput.Value())
		if frame == "" || m.Busy {
			return m, nil
		}
		m.RawMode = false
		m.RawInput.Blur()
		return m.start("raw "+frame, sendRawCmd(m.ctrl, frame))
	}

	var cmd tea.Cmd
	m.RawInput, cmd = m.RawInput.Update(msg)
	return m, cmd
}

// start marks a request in flight and runs it alongside the spinner.
func (m ConsoleModel) start(action string, cmd tea.Cmd) (tea.Model, tea.Cmd) {
	m.Busy = true
	m.Pending = action
	return m, tea.Batch(m.Spinner.Tick, cmd)
}

func (m *ConsoleModel) record(e HistoryEntry) {
	m.History = append(m.History, e)
	if len(m.History) > maxHistory {
		m.History = m.History[len(m.History)-maxHistory:]
	}
}

// View renders the console
func (m ConsoleModel) View() string {
	var b strings.Builder

	b.WriteString(LabelStyle.Render("Server") + ValueStyle.Render(m.URL) + "\n")

	rec := IdleStyle.Render("○ idle")
	if m.State.Recording {
		rec = RecordingStyle.Render("● recording")
	}
	b.WriteString(LabelStyle.Render("Recording") + rec + "\n")

	amp := ValueStyle.Render(fmt.Sprintf("%-6s", formatAmp(m.State.Amplitude)))
	b.WriteString(LabelStyle.Render("Amplitude") + amp + " " + m.Bar.ViewAs(barPercent(m.State.Amplitude)) + "\n")

	clients := "?"
	if m.Known {
		clients = fmt.Sprintf("%d", m.Connections)
	}
	b.WriteString(LabelStyle.Render("Clients") + ValueStyle.Render(clients))

	switch {
	case m.Busy:
		b.WriteString("\n" + StatusStyle.Render(m.Spinner.View()+" sending "+m.Pending))
	case m.Err != nil:
		b.WriteString("\n" + StatusStyle.Render("state unavailable: "+m.Err.Error()))
	}

	if m.RawMode {
		b.WriteString("\n\n  " + m.RawInput.View())
	}

	if len(m.History) > 0 {
		b.WriteString("\n" + SectionTitleStyle.Render("Recent") + "\n")
		for _, e := range m.History {
			marker, style := "✓", HistoryOKStyle
			if !e.OK {
				marker, style = "✗", HistoryErrorStyle
			}
			line := HistoryTimeStyle.Render(e.At.Format("15:04:05")) + " " +
				style.Render(marker+" "+e.Action) + "  " + lipgloss.NewStyle().Foreground(SubtleColor).Render(e.Result)
			b.WriteString(line + "\n")
		}
	}

	footer := m.Help.View(m.Keys)
	if m.RawMode {
		footer = m.Help.View(m.RawKeys)
	}
	return RenderApplicationContainer(b.String(), footer, m.Width, m.Height)
}

// StepAmplitude adds delta to v, rounded to three decimals.
func StepAmplitude(v, delta float64) float64 {
	return math.Round((v+delta)*1000) / 1000
}

func barPercent(amp float64) float64 {
	return math.Max(0, math.Min(1, amp/amplitudeScale))
}

func formatAmp(v float64) string {
	return fmt.Sprintf("%g", v)
}

func recLabel(on bool) string {
	if on {
		return "rec on"
	}
	return "rec off"
}

func ampLabel(v float64) string {
	return "amp " + formatAmp(v)
}

func setRecordingCmd(ctrl Controller, on bool) tea.Cmd {
	return func() tea.Msg {
		err := ctrl.SetRecording(on)
		return replyMsg{
			action: recLabel(on),
			result: protocol.StatusReceived,
			err:    err,
			apply:  func(s *state.AudioState) { s.Recording = on },
		}
	}
}

func setAmplitudeCmd(ctrl Controller, v float64) tea.Cmd {
	return func() tea.Msg {
		err := ctrl.SetAmplitude(v)
		return replyMsg{
			action: ampLabel(v),
			result: protocol.StatusReceived,
			err:    err,
			apply:  func(s *state.AudioState) { s.Amplitude = v },
		}
	}
}

func clearAmplitudeCmd(ctrl Controller) tea.Cmd {
	return func() tea.Msg {
		err := ctrl.ClearAmplitude()
		return replyMsg{action: "amp (none)", result: protocol.StatusReceived, err: err}
	}
}

// sendRawCmd sends frame verbatim. An Error reply is shown as a failed entry
// but is not a transport error.
func sendRawCmd(ctrl Controller, frame string) tea.Cmd {
	return func() tea.Msg {
		msg := replyMsg{action: "raw " + frame}
		reply, err := ctrl.SendRaw([]byte(frame))
		if err != nil {
			msg.err = err
			return msg
		}
		msg.result = reply.String()
		msg.err = client.ReplyError(reply)
		return msg
	}
}

func fetchStateCmd(fetch StateFetcher) tea.Cmd {
	if fetch == nil {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
		defer cancel()
		st, err := fetch(ctx)
		return stateMsg{state: st, err: err}
	}
}
