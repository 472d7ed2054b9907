package protocol

import (
	"sync"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/muurk/audiows/internal/logging"
	"github.com/muurk/audiows/internal/state"
)

func observeLogs(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	t.Cleanup(logging.SetLogger(zap.New(core)))
	return logs
}

func TestApplyCommand(t *testing.T) {
	tests := []struct {
		name    string
		initial bool
		rec     bool
		wantLog string
	}{
		{"start from idle", false, true, "Start recording"},
		{"stop while recording", true, false, "Stop recording"},
		{"start while recording", true, true, "Start recording"},
		{"stop while idle", false, false, "Stop recording"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logs := observeLogs(t)
			cell := state.NewCell()
			cell.With(func(s *state.AudioState) { s.Recording = tt.initial })

			ApplyCommand(NewCommand(tt.rec), cell)

			got := cell.Snapshot()
			if got.Recording != tt.rec {
				t.Errorf("Recording = %v, want %v", got.Recording, tt.rec)
			}
			if got.Amplitude != state.DefaultAmplitude {
				t.Errorf("Amplitude changed to %v", got.Amplitude)
			}
			if n := logs.FilterMessage(tt.wantLog).Len(); n != 1 {
				t.Errorf("%q logged %d times, want 1", tt.wantLog, n)
			}
		})
	}
}

func TestApplyParameter(t *testing.T) {
	t.Run("sets amplitude", func(t *testing.T) {
		logs := observeLogs(t)
		cell := state.NewCell()

		ApplyParameter(NewParameter(2.5), cell)

		if got := cell.Snapshot().Amplitude; got != 2.5 {
			t.Errorf("Amplitude = %v, want 2.5", got)
		}
		entries := logs.FilterMessage("Set amplitude").All()
		if len(entries) != 1 {
			t.Fatalf("Set amplitude logged %d times, want 1", len(entries))
		}
		if v := entries[0].ContextMap()["value"]; v != 2.5 {
			t.Errorf("logged value = %v, want 2.5", v)
		}
	})

	t.Run("no amplitude is a no-op", func(t *testing.T) {
		logs := observeLogs(t)
		cell := state.NewCell()
		cell.With(func(s *state.AudioState) { s.Amplitude = 0.25 })

		ApplyParameter(EmptyParameter(), cell)

		if got := cell.Snapshot().Amplitude; got != 0.25 {
			t.Errorf("Amplitude = %v, want unchanged 0.25", got)
		}
		if logs.Len() != 0 {
			t.Errorf("no-op parameter logged %d entries, want 0", logs.Len())
		}
	})

	t.Run("out of range values are accepted", func(t *testing.T) {
		observeLogs(t)
		cell := state.NewCell()

		ApplyParameter(NewParameter(-1000), cell)

		if got := cell.Snapshot().Amplitude; got != -1000 {
			t.Errorf("Amplitude = %v, want -1000", got)
		}
	})
}

func TestDispatch(t *testing.T) {
	observeLogs(t)
	cell := state.NewCell()

	for _, msg := range []ClientMessage{NewCommand(true), NewParameter(0.5), EmptyParameter()} {
		if err := Dispatch(msg, cell); err != nil {
			t.Fatalf("Dispatch(%s) error = %v", msg, err)
		}
	}

	got := cell.Snapshot()
	if !got.Recording || got.Amplitude != 0.5 {
		t.Errorf("state = %+v, want recording at 0.5", got)
	}
}

func TestDispatch_ConcurrentHandlers(t *testing.T) {
	observeLogs(t)
	cell := state.NewCell()

	values := []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8}
	var wg sync.WaitGroup
	for i, v := range values {
		wg.Add(1)
		go func(rec bool, amp float64) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = Dispatch(NewCommand(rec), cell)
				_ = Dispatch(NewParameter(amp), cell)
			}
		}(i%2 == 0, v)
	}
	wg.Wait()

	got := cell.Snapshot()
	found := false
	for _, v := range values {
		if got.Amplitude == v {
			found = true
		}
	}
	if !found {
		t.Errorf("final amplitude %v was never issued", got.Amplitude)
	}
}
