// Package logging provides structured logging for the audiows server and CLI.
//
// It wraps a package-level zap logger with convenience functions for the
// events the control channel emits: connection lifecycle, WebSocket frames,
// and shared-state changes.
//
// # Log Levels
//
//   - Debug: frame-level detail (hex dumps of binary frames, replies sent)
//   - Info: connections, decoded commands, state changes
//   - Warn: recoverable issues (malformed client messages)
//   - Error: transport failures, startup failures
//
// # Usage
//
//	if err := logging.Initialize("info"); err != nil {
//	    return err
//	}
//	defer logging.Sync()
//
//	logging.LogConnection(remoteAddr, "websocket_upgraded")
//	logging.LogStateChange("Start recording", "recording", true)
//
// Until Initialize is called every function is a no-op, which keeps CLI
// commands quiet by default. AUDIOWS_LOG_LEVEL enables output without a flag.
//
// # Testing
//
// SetLogger swaps the global logger and returns a restore func, so tests can
// install a zaptest/observer core and assert on emitted entries.
//
// All functions are safe for concurrent use.
package logging
