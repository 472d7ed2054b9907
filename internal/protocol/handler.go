package protocol

import (
	"fmt"

	"github.com/muurk/audiows/internal/logging"
	"github.com/muurk/audiows/internal/state"
)

// ApplyCommand sets the recording flag.
func ApplyCommand(cmd Command, cell *state.Cell) {
	cell.With(func(s *state.AudioState) {
		s.Recording = cmd.Rec
	})

	if cmd.Rec {
		logging.LogStateChange("Start recording", "recording", true)
	} else {
		logging.LogStateChange("Stop recording", "recording", false)
	}
}

// ApplyParameter sets the amplitude when one is given. Values are not range
// checked.
func ApplyParameter(param Parameter, cell *state.Cell) {
	if param.Amplitude == nil {
		return
	}
	amplitude := *param.Amplitude

	cell.With(func(s *state.AudioState) {
		s.Amplitude = amplitude
	})

	logging.LogStateChange("Set amplitude", "amplitude", amplitude)
}

// Dispatch applies a decoded message to the shared state.
func Dispatch(msg ClientMessage, cell *state.Cell) error {
	switch m := msg.(type) {
	case Command:
		ApplyCommand(m, cell)
	case Parameter:
		ApplyParameter(m, cell)
	default:
		return fmt.Errorf("dispatch %T: %w", msg, ErrUnknownMessageType)
	}
	return nil
}
