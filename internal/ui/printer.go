package ui

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/muurk/audiows/internal/discovery"
	"github.com/muurk/audiows/internal/state"
)

// Printer writes UI components to a writer. This is the primary way
// audiows-ctl commands produce styled output.
type Printer struct {
	out   io.Writer
	width int
}

// NewPrinter creates a new Printer that writes to the given writer.
// If w is nil, os.Stdout is used.
func NewPrinter(w io.Writer) *Printer {
	if w == nil {
		w = os.Stdout
	}
	return &Printer{
		out:   w,
		width: GetTerminalWidth(),
	}
}

// SetWidth overrides the detected terminal width.
func (p *Printer) SetWidth(width int) *Printer {
	p.width = width
	return p
}

// Width returns the width components are rendered at.
func (p *Printer) Width() int {
	return p.width
}

// Println writes content with a newline
func (p *Printer) Println(content string) {
	_, _ = fmt.Fprintln(p.out, content)
}

// Newline prints an empty line
func (p *Printer) Newline() {
	_, _ = fmt.Fprintln(p.out)
}

// Header prints a command header followed by a blank line.
func (p *Printer) Header(title, command string, params ...Param) {
	p.Println(NewHeader(title, command, params...).SetWidth(p.width).Render())
	p.Newline()
}

// Success prints a success box.
func (p *Printer) Success(title string, details ...Param) {
	p.Println(NewSuccessResult(title, details...).SetWidth(p.width).Render())
}

// Failure prints a failure box with optional troubleshooting tips.
func (p *Printer) Failure(title string, err error, troubleshooting ...string) {
	p.Println(NewFailureResult(title, err, troubleshooting...).SetWidth(p.width).Render())
}

// Warning prints a warning box.
func (p *Printer) Warning(title string, details ...Param) {
	p.Println(NewWarningResult(title, details...).SetWidth(p.width).Render())
}

// State prints a server's audio state.
func (p *Printer) State(url string, st state.AudioState, connections int) {
	p.Success("Server state",
		Param{Key: "Server", Value: url},
		Param{Key: "Recording", Value: RecordingLabel(st.Recording)},
		Param{Key: "Amplitude", Value: FormatAmplitude(st.Amplitude)},
		Param{Key: "Clients", Value: strconv.Itoa(connections)},
	)
}

// Endpoints prints discovered servers as a table.
func (p *Printer) Endpoints(endpoints []*discovery.Endpoint) {
	if len(endpoints) == 0 {
		p.Warning("No audiows servers found",
			Param{Key: "Service", Value: discovery.ServiceType},
		)
		return
	}
	p.Println(RenderEndpointTable(endpoints))
}

// RenderEndpointTable renders instance, address, URL and version columns.
func RenderEndpointTable(endpoints []*discovery.Endpoint) string {
	headers := []string{"INSTANCE", "ADDRESS", "URL", "VERSION"}
	rows := make([][]string, 0, len(endpoints))
	for _, ep := range endpoints {
		version := ep.GetMetadata(discovery.TXTVersion)
		if version == "" {
			version = "-"
		}
		rows = append(rows, []string{
			ep.Instance,
			ep.IP + ":" + strconv.Itoa(ep.Port),
			ep.WSURL(),
			version,
		})
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	pad := func(s string, w int) string {
		return s + strings.Repeat(" ", w-len(s))
	}

	var b strings.Builder
	cols := make([]string, len(headers))
	for i, h := range headers {
		cols[i] = TableHeaderStyle.Render(pad(h, widths[i]))
	}
	b.WriteString("  " + strings.Join(cols, "  ") + "\n")
	for _, row := range rows {
		for i, cell := range row {
			cols[i] = TableCellStyle.Render(pad(cell, widths[i]))
		}
		b.WriteString("  " + strings.Join(cols, "  ") + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatAmplitude formats an amplitude for display.
func FormatAmplitude(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
