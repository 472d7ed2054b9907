// Package tui implements the interactive control console of audiows-ctl.
//
// The console is a single Bubble Tea screen connected to one server. It shows
// the server's recording flag, amplitude and client count, and sends control
// messages on key presses:
//
//	r / space   toggle recording
//	+ / ↑       raise amplitude by the configured step
//	- / ↓       lower amplitude by the configured step
//	c           send a Parameter without an amplitude
//	:           type and send a raw JSON frame
//	s           refresh state from GET /state
//
// Only one request is in flight at a time. Every reply is logged in the
// console's history and followed by a state refresh; when the refresh is not
// available the console shows the values it last set.
//
// # Usage Example
//
//	c, err := client.Dial(ctx, url, 0)
//	if err != nil {
//	    return err
//	}
//	defer c.Close()
//
//	fetch := func(ctx context.Context) (*client.State, error) {
//	    return client.FetchState(ctx, c.URL())
//	}
//	model := tui.NewConsoleModel(c, fetch, c.URL(), 0.1)
//	_, err = tea.NewProgram(model, tea.WithAltScreen()).Run()
package tui
