package tui

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/muurk/audiows/internal/client"
	"github.com/muurk/audiows/internal/protocol"
	"github.com/muurk/audiows/internal/state"
)

// fakeController records calls and answers like a server would.
type fakeController struct {
	mu    sync.Mutex
	calls []string
	err   error
	reply protocol.ServerMessage
}

func (f *fakeController) log(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	return f.err
}

func (f *fakeController) SetRecording(on bool) error {
	if on {
		return f.log("rec on")
	}
	return f.log("rec off")
}

func (f *fakeController) SetAmplitude(v float64) error {
	return f.log("amp " + formatAmp(v))
}

func (f *fakeController) ClearAmplitude() error {
	return f.log("amp none")
}

func (f *fakeController) SendRaw(frame []byte) (protocol.ServerMessage, error) {
	if err := f.log("raw " + string(frame)); err != nil {
		return nil, err
	}
	if f.reply != nil {
		return f.reply, nil
	}
	return protocol.ReceivedAck(), nil
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// collect runs cmd and any batched commands, returning the resulting
// replyMsg and stateMsg values in order.
func collect(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	switch msg := cmd().(type) {
	case tea.BatchMsg:
		var out []tea.Msg
		for _, c := range msg {
			out = append(out, collect(c)...)
		}
		return out
	case replyMsg, stateMsg:
		return []tea.Msg{msg}
	default:
		return nil
	}
}

// press sends a key and feeds every resulting message back into the model.
func press(t *testing.T, m ConsoleModel, k tea.KeyMsg) ConsoleModel {
	t.Helper()
	next, cmd := m.Update(k)
	m = next.(ConsoleModel)
	return drain(m, cmd)
}

func drain(m ConsoleModel, cmd tea.Cmd) ConsoleModel {
	for _, msg := range collect(cmd) {
		next, follow := m.Update(msg)
		m = next.(ConsoleModel)
		m = drain(m, follow)
	}
	return m
}

func TestConsole_ToggleRecording(t *testing.T) {
	ctrl := &fakeController{}
	m := NewConsoleModel(ctrl, nil, "ws://127.0.0.1:9001/", 0.1)

	m = press(t, m, runes("r"))
	if !m.State.Recording {
		t.Fatal("Recording = false after toggle")
	}
	m = press(t, m, runes("r"))
	if m.State.Recording {
		t.Fatal("Recording = true after second toggle")
	}

	want := []string{"rec on", "rec off"}
	if strings.Join(ctrl.calls, ",") != strings.Join(want, ",") {
		t.Errorf("calls = %v, want %v", ctrl.calls, want)
	}
	if len(m.History) != 2 || !m.History[0].OK {
		t.Errorf("history = %+v", m.History)
	}
	if m.Busy {
		t.Error("Busy after reply")
	}
}

func TestConsole_AmplitudeSteps(t *testing.T) {
	ctrl := &fakeController{}
	m := NewConsoleModel(ctrl, nil, "ws://x/", 0.1)

	m = press(t, m, runes("+"))
	m = press(t, m, runes("+"))
	m = press(t, m, tea.KeyMsg{Type: tea.KeyDown})
	m = press(t, m, runes("c"))

	if got := m.State.Amplitude; got != 1.1 {
		t.Errorf("Amplitude = %v, want 1.1", got)
	}
	want := []string{"amp 1.1", "amp 1.2", "amp 1.1", "amp none"}
	if strings.Join(ctrl.calls, ",") != strings.Join(want, ",") {
		t.Errorf("calls = %v, want %v", ctrl.calls, want)
	}
}

func TestConsole_FailedRequestKeepsState(t *testing.T) {
	ctrl := &fakeController{err: client.ErrRejected}
	m := NewConsoleModel(ctrl, nil, "ws://x/", 0.5)

	m = press(t, m, runes("+"))

	if m.State.Amplitude != state.DefaultAmplitude {
		t.Errorf("Amplitude = %v after failed request", m.State.Amplitude)
	}
	if len(m.History) != 1 || m.History[0].OK {
		t.Fatalf("history = %+v, want one failed entry", m.History)
	}
	if !strings.Contains(m.History[0].Result, "rejected") {
		t.Errorf("Result = %q", m.History[0].Result)
	}
}

func TestConsole_BusyIgnoresActions(t *testing.T) {
	ctrl := &fakeController{}
	m := NewConsoleModel(ctrl, nil, "ws://x/", 0.1)

	next, cmd := m.Update(runes("r"))
	m = next.(ConsoleModel)
	if !m.Busy || cmd == nil {
		t.Fatal("toggle did not start a request")
	}

	next, second := m.Update(runes("+"))
	m = next.(ConsoleModel)
	if second != nil {
		t.Error("second request started while busy")
	}
	if m.Pending != "rec on" {
		t.Errorf("Pending = %q, want rec on", m.Pending)
	}
}

func TestConsole_RawFrame(t *testing.T) {
	ctrl := &fakeController{reply: protocol.InvalidFormatError()}
	m := NewConsoleModel(ctrl, nil, "ws://x/", 0.1)

	m = press(t, m, runes(":"))
	if !m.RawMode {
		t.Fatal("raw mode not entered")
	}
	// Keys typed in raw mode go to the input, not to the key map.
	m = press(t, m, runes("q"))
	if m.RawInput.Value() != "q" {
		t.Fatalf("RawInput = %q, want q", m.RawInput.Value())
	}

	m.RawInput.SetValue(`{"type":"Bogus"}`)
	m = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	if m.RawMode {
		t.Error("still in raw mode after send")
	}
	if len(ctrl.calls) != 1 || ctrl.calls[0] != `raw {"type":"Bogus"}` {
		t.Errorf("calls = %v", ctrl.calls)
	}
	if len(m.History) != 1 || m.History[0].OK {
		t.Errorf("history = %+v, want one failed entry", m.History)
	}

	m = press(t, m, runes(":"))
	m = press(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.RawMode {
		t.Error("esc did not leave raw mode")
	}
}

func TestConsole_StateRefresh(t *testing.T) {
	fetches := 0
	fetch := func(context.Context) (*client.State, error) {
		fetches++
		return &client.State{AudioState: state.AudioState{Recording: true, Amplitude: 0.3}, Connections: 4}, nil
	}
	m := NewConsoleModel(&fakeController{}, fetch, "ws://x/", 0.1)

	m = drain(m, m.Init())
	if !m.Known || !m.State.Recording || m.State.Amplitude != 0.3 || m.Connections != 4 {
		t.Errorf("state after Init = %+v known=%v clients=%d", m.State, m.Known, m.Connections)
	}

	// Every reply triggers a refresh.
	m = press(t, m, runes("c"))
	if fetches != 2 {
		t.Errorf("fetches = %d, want 2", fetches)
	}

	failing := func(context.Context) (*client.State, error) { return nil, errors.New("refused") }
	m.fetch = failing
	m = press(t, m, runes("s"))
	if m.Err == nil {
		t.Error("Err not set after failed refresh")
	}
	if !strings.Contains(m.View(), "state unavailable") {
		t.Error("View does not report the refresh failure")
	}
}

func TestConsole_QuitAndHelp(t *testing.T) {
	m := NewConsoleModel(&fakeController{}, nil, "ws://x/", 0.1)

	next, _ := m.Update(runes("?"))
	if !next.(ConsoleModel).Help.ShowAll {
		t.Error("? did not expand help")
	}

	_, cmd := m.Update(runes("q"))
	if cmd == nil {
		t.Fatal("q returned no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q did not quit")
	}
}

func TestConsole_View(t *testing.T) {
	m := NewConsoleModel(&fakeController{}, nil, "ws://studio:9001/", 0.1)
	m = press(t, m, runes("r"))

	out := m.View()
	for _, want := range []string{AppName, "ws://studio:9001/", "recording", "Recent", "rec on"} {
		if !strings.Contains(out, want) {
			t.Errorf("View missing %q", want)
		}
	}
}

func TestStepAmplitude(t *testing.T) {
	tests := []struct {
		v, delta, want float64
	}{
		{1, 0.1, 1.1},
		{0.1, -0.1, 0},
		{0.3, 0.1, 0.4},
		{0, -0.25, -0.25},
	}
	for _, tt := range tests {
		if got := StepAmplitude(tt.v, tt.delta); got != tt.want {
			t.Errorf("StepAmplitude(%v, %v) = %v, want %v", tt.v, tt.delta, got, tt.want)
		}
	}
}
