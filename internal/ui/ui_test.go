package ui

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/muurk/audiows/internal/discovery"
	"github.com/muurk/audiows/internal/state"
)

func TestClampWidth(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{0, MinTerminalWidth},
		{MinTerminalWidth - 1, MinTerminalWidth},
		{80, 80},
		{MaxContentWidth + 50, MaxContentWidth},
	}
	for _, tt := range tests {
		if got := ClampWidth(tt.in); got != tt.want {
			t.Errorf("ClampWidth(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestResult_Render(t *testing.T) {
	tests := []struct {
		name   string
		result *Result
		want   []string
	}{
		{
			name:   "success keeps detail order",
			result: NewSuccessResult("Amplitude set", Param{"Server", "ws://a/"}, Param{"Amplitude", "0.5"}),
			want:   []string{"SUCCESS", "Amplitude set", "Server:", "ws://a/", "Amplitude:", "0.5"},
		},
		{
			name:   "failure shows error and tips",
			result: NewFailureResult("Not sent", errors.New("connection refused"), "Is the server running?"),
			want:   []string{"FAILED", "Not sent", "connection refused", "Troubleshooting:", "Is the server running?"},
		},
		{
			name:   "warning",
			result: NewWarningResult("Nothing found"),
			want:   []string{"WARNING", "Nothing found"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := tt.result.SetWidth(80).Render()
			last := -1
			for _, w := range tt.want {
				i := strings.Index(out, w)
				if i < 0 {
					t.Fatalf("output missing %q:\n%s", w, out)
				}
				if i < last {
					t.Errorf("%q rendered out of order", w)
				}
				last = i
			}
		})
	}
}

func TestHeader_Render(t *testing.T) {
	out := NewHeader("Set amplitude", "audiows-ctl amp 0.5",
		Param{Key: "Server", Value: "ws://127.0.0.1:9001/"},
		Param{Key: "Amplitude", Value: "0.5"},
	).SetWidth(70).Render()

	for _, want := range []string{"SET AMPLITUDE", "audiows-ctl amp 0.5", "Server:", "ws://127.0.0.1:9001/", "Amplitude:"} {
		if !strings.Contains(out, want) {
			t.Errorf("header missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "Server:") > strings.Index(out, "Amplitude:") {
		t.Error("params rendered out of order")
	}
}

func TestPrinter_State(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).SetWidth(80).State("ws://127.0.0.1:9001/", state.AudioState{Recording: true, Amplitude: 0.25}, 3)

	out := buf.String()
	for _, want := range []string{"recording", "0.25", "Clients:", "3"} {
		if !strings.Contains(out, want) {
			t.Errorf("state output missing %q:\n%s", want, out)
		}
	}
}

func TestPrinter_Endpoints(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		var buf bytes.Buffer
		NewPrinter(&buf).SetWidth(80).Endpoints(nil)
		if !strings.Contains(buf.String(), "No audiows servers found") {
			t.Errorf("unexpected output:\n%s", buf.String())
		}
	})

	t.Run("table", func(t *testing.T) {
		eps := []*discovery.Endpoint{
			{Instance: "studio", IP: "192.168.1.20", Port: 9001, Metadata: map[string]string{"version": "v1.2.0"}},
			{Instance: "kitchen", IP: "192.168.1.21", Port: 9002},
		}
		lines := strings.Split(RenderEndpointTable(eps), "\n")
		if len(lines) != 3 {
			t.Fatalf("table has %d lines, want 3", len(lines))
		}
		for i, want := range []string{"INSTANCE", "ws://192.168.1.20:9001/", "kitchen"} {
			if !strings.Contains(lines[i], want) {
				t.Errorf("line %d = %q, want it to contain %q", i, lines[i], want)
			}
		}
		if !strings.Contains(lines[1], "v1.2.0") || !strings.Contains(lines[2], " -") {
			t.Errorf("version column wrong:\n%s", strings.Join(lines, "\n"))
		}
	})
}

func TestFormatAmplitude(t *testing.T) {
	tests := map[float64]string{1: "1", 0.5: "0.5", -3.25: "-3.25"}
	for in, want := range tests {
		if got := FormatAmplitude(in); got != want {
			t.Errorf("FormatAmplitude(%v) = %q, want %q", in, got, want)
		}
	}
}
