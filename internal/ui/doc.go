// Package ui provides terminal UI components for the audiows-ctl CLI.
//
// These components follow a "run once and exit" pattern: they render output
// with Lipgloss but never wait for input. The interactive console lives in
// package tui.
//
// The package provides three component types:
//
//   - Header: command banner showing operation name and parameters
//   - Result: success/failure/warning boxes with ordered details
//   - Printer: writes components, server state and scan tables to a writer
//
// Example:
//
//	p := ui.NewPrinter(os.Stdout)
//	p.Header("Set amplitude", "audiows-ctl amp 0.5",
//	    ui.Param{Key: "Server", Value: url},
//	)
//	if err := c.SetAmplitude(0.5); err != nil {
//	    p.Failure("Amplitude not set", err, "Is audiows-server running?")
//	    return err
//	}
//	p.Success("Amplitude set", ui.Param{Key: "Amplitude", Value: "0.5"})
//
// # Logging Integration
//
// This package expects logging to be controlled via the AUDIOWS_LOG_LEVEL
// environment variable. When unset or empty, zap logging is silent, allowing
// the UI output to be displayed cleanly.
package ui
