package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/muurk/audiows/internal/config"
	"github.com/muurk/audiows/internal/server"
	"github.com/muurk/audiows/internal/state"
)

func TestParseOnOff(t *testing.T) {
	tests := []struct {
		in      string
		want    bool
		wantErr bool
	}{
		{"on", true, false},
		{"ON", true, false},
		{"start", true, false},
		{"true", true, false},
		{"off", false, false},
		{"stop", false, false},
		{"0", false, false},
		{"maybe", false, true},
	}
	for _, tt := range tests {
		got, err := parseOnOff(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseOnOff(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("parseOnOff(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLookupServer(t *testing.T) {
	registry := config.NewRegistry()
	registry.UpdateServerLastSeen("studio", "192.168.1.20", 9001, "v1.0.0")

	tests := []struct {
		value  string
		want   string
		wantOK bool
	}{
		{"127.0.0.1:9001", "ws://127.0.0.1:9001/", true},
		{"ws://host:9002/ctl", "ws://host:9002/ctl", true},
		{"http://host:9002", "ws://host:9002/", true},
		{"studio", "ws://192.168.1.20:9001/", true},
		{"kitchen", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			got, ok := lookupServer(tt.value, registry)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("lookupServer(%q) = %q, %v; want %q, %v", tt.value, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestResolveServer_Default(t *testing.T) {
	serverAddr = ""
	registry := config.NewRegistry()

	got, err := resolveServer(context.Background(), registry)
	if err != nil {
		t.Fatalf("resolveServer: %v", err)
	}
	if got != "ws://127.0.0.1:9001/" {
		t.Errorf("resolveServer = %q", got)
	}

	registry.Preferences.DefaultServer = "ws://studio.local:9001/"
	if got, _ := resolveServer(context.Background(), registry); got != "ws://studio.local:9001/" {
		t.Errorf("resolveServer with preference = %q", got)
	}
}

// execute runs the CLI against a fresh server and config file.
func execute(t *testing.T, addr string, args ...string) (string, error) {
	t.Helper()
	serverAddr, configPath, replyTimeout, clearAmp = "", "", 0, false

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(append(args,
		"--server", addr,
		"--config", filepath.Join(t.TempDir(), "config.yaml"),
		"--timeout", "2",
	))
	err := rootCmd.Execute()
	return buf.String(), err
}

func startServer(t *testing.T) (string, *state.Cell) {
	t.Helper()
	cell := state.NewCell()
	srv, err := server.New(&server.Config{Host: "127.0.0.1", Port: 0}, cell)
	if err != nil {
		t.Fatalf("server.New: %v", err)
	}
	if err := srv.Listen(); err != nil {
		t.Fatalf("Listen: %v", err)
	}
	go func() { _ = srv.Serve() }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	return srv.Addr(), cell
}

func TestCommands_AgainstServer(t *testing.T) {
	addr, cell := startServer(t)

	out, err := execute(t, addr, "rec", "on")
	if err != nil {
		t.Fatalf("rec on: %v\n%s", err, out)
	}
	if !strings.Contains(out, "SUCCESS") {
		t.Errorf("rec on output:\n%s", out)
	}

	if _, err := execute(t, addr, "amp", "0.25"); err != nil {
		t.Fatalf("amp: %v", err)
	}
	if _, err := execute(t, addr, "amp", "--clear"); err != nil {
		t.Fatalf("amp --clear: %v", err)
	}

	got := cell.Snapshot()
	if !got.Recording || got.Amplitude != 0.25 {
		t.Errorf("state = %+v, want recording at 0.25", got)
	}

	out, err = execute(t, addr, "state")
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if !strings.Contains(out, "0.25") {
		t.Errorf("state output missing amplitude:\n%s", out)
	}
}

func TestCommands_SendRejected(t *testing.T) {
	addr, cell := startServer(t)

	out, err := execute(t, addr, "send", `{"type":"Bogus"}`)
	if err == nil {
		t.Fatal("send of unknown type succeeded")
	}
	if !strings.Contains(out, "Invalid message format") {
		t.Errorf("output missing server error:\n%s", out)
	}
	if got := cell.Snapshot(); got != (state.AudioState{Amplitude: state.DefaultAmplitude}) {
		t.Errorf("state changed by rejected frame: %+v", got)
	}
}

func TestAmp_ArgumentErrors(t *testing.T) {
	tests := [][]string{
		{"amp"},
		{"amp", "0.5", "--clear"},
		{"amp", "loud"},
	}
	for _, args := range tests {
		if _, err := execute(t, "127.0.0.1:1", args...); err == nil {
			t.Errorf("%v: expected error", args)
		}
	}
}
