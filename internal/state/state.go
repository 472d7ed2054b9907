// Package state holds the single piece of audio state shared by every
// control connection.
package state

import "sync"

// DefaultAmplitude is the amplitude a fresh cell starts with.
const DefaultAmplitude = 1.0

// AudioState is the mutable record controlled by clients.
type AudioState struct {
	Recording bool    `json:"recording"`
	Amplitude float64 `json:"amplitude"`
}

// Cell serializes access to one AudioState. Every access is exclusive, reads
// included. Share the *Cell between goroutines; never copy the struct.
type Cell struct {
	mu    sync.Mutex
	state AudioState
}

// NewCell returns a cell holding the default state (not recording, amplitude 1.0).
func NewCell() *Cell {
	return &Cell{
		state: AudioState{
			Recording: false,
			Amplitude: DefaultAmplitude,
		},
	}
}

// With runs fn while holding the cell exclusively. The lock is released when
// fn returns, including when it panics. fn must not call back into the cell
// or block on I/O.
func (c *Cell) With(fn func(s *AudioState)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(&c.state)
}

// Snapshot returns a copy of the current state.
func (c *Cell) Snapshot() AudioState {
	var s AudioState
	c.With(func(cur *AudioState) { s = *cur })
	return s
}
