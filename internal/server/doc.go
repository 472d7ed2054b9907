// Package server implements the audiows WebSocket control server.
//
// Clients connect over plain WebSocket (any request path upgrades) and send
// JSON text frames that mutate one shared in-memory audio state. Every text
// frame receives exactly one reply: an Ack when the frame decoded and was
// applied, an Error when it could not be decoded. A malformed frame never
// closes the connection.
//
// # Connections
//
// Each accepted connection runs on its own goroutine and shares the same
// *state.Cell. Frames on one connection are processed strictly in order; frames
// on different connections interleave arbitrarily, but each mutation is
// applied atomically under the cell's lock. Binary frames are logged and
// ignored. A close frame or transport error ends only that connection.
//
// # Side routes
//
// The same listener also answers two JSON routes:
//   - GET /healthz returns {"status":"ok"}
//   - GET /state returns the current state and the active connection count
//
// # Usage Example
//
//	cell := state.NewCell()
//	srv, err := server.New(&server.Config{
//	    Host:      "127.0.0.1",
//	    Port:      9001,
//	    LogLevel:  "info",
//	    ReadLimit: 64 << 10,
//	}, cell)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Start blocks until SIGINT/SIGTERM or an accept failure.
//	if err := srv.Start(); err != nil {
//	    log.Fatal(err)
//	}
//
// Embedders that manage their own lifetime use ListenAndServe with a context.
//
// # Frame Capture
//
// When Config.CaptureDir is set, every inbound frame and outbound reply is
// appended as one JSON line to capture-<start time>.jsonl in that directory.
//
// # Graceful Shutdown
//
// On shutdown the server:
//  1. Withdraws its mDNS advertisement
//  2. Stops accepting new connections
//  3. Sends a going-away close frame to every active connection
//  4. Waits up to 10 seconds for connection goroutines to finish
package server
