package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/muurk/audiows/internal/protocol"
	"github.com/muurk/audiows/internal/server"
	"github.com/muurk/audiows/internal/state"
)

func startServer(t *testing.T) (*server.Server, *state.Cell) {
	t.Helper()
	cell := state.NewCell()
	srv, err := server.New(&server.Config{Host: "127.0.0.1", Port: 0}, cell)
	if err != nil {
		t.Fatalf("server.New() error = %v", err)
	}
	if err := srv.Listen(); err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- srv.Serve() }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
		<-done
	})
	return srv, cell
}

// fakeServer answers every text frame with reply, or never answers when
// reply is empty.
func fakeServer(t *testing.T, reply string) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
			if reply == "" {
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, []byte(reply)); err != nil {
				return
			}
		}
	}))
	t.Cleanup(ts.Close)
	return "ws" + strings.TrimPrefix(ts.URL, "http")
}

func TestClient_AgainstServer(t *testing.T) {
	srv, cell := startServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := Dial(ctx, srv.Addr(), 0)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer c.Close()

	if err := c.SetRecording(true); err != nil {
		t.Fatalf("SetRecording() error = %v", err)
	}
	if err := c.SetAmplitude(0.4); err != nil {
		t.Fatalf("SetAmplitude() error = %v", err)
	}
	if err := c.ClearAmplitude(); err != nil {
		t.Fatalf("ClearAmplitude() error = %v", err)
	}
	if err := c.SendBinary([]byte{0x00}); err != nil {
		t.Fatalf("SendBinary() error = %v", err)
	}

	reply, err := c.SendRaw([]byte(`{"type":"Command"}`))
	if err != nil {
		t.Fatalf("SendRaw() error = %v", err)
	}
	if reply != protocol.InvalidFormatError() {
		t.Errorf("SendRaw(bad) reply = %v, want %v", reply, protocol.InvalidFormatError())
	}

	got := cell.Snapshot()
	if !got.Recording || got.Amplitude != 0.4 {
		t.Errorf("state = %+v, want recording at 0.4", got)
	}

	st, err := FetchState(ctx, c.URL())
	if err != nil {
		t.Fatalf("FetchState() error = %v", err)
	}
	if st.AudioState != got || st.Connections != 1 {
		t.Errorf("FetchState() = %+v, want %+v with 1 connection", st, got)
	}
}

func TestClient_Rejected(t *testing.T) {
	url := fakeServer(t, `{"type":"Error","data":{"message":"Invalid message format"}}`)

	c, err := Dial(context.Background(), url, time.Second)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer c.Close()

	err = c.SetRecording(true)
	if !errors.Is(err, ErrRejected) {
		t.Fatalf("SetRecording() error = %v, want ErrRejected", err)
	}
	if !strings.Contains(err.Error(), "Invalid message format") {
		t.Errorf("error %q does not carry the server message", err)
	}
}

func TestClient_ReplyTimeout(t *testing.T) {
	url := fakeServer(t, "")

	c, err := Dial(context.Background(), url, 100*time.Millisecond)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer c.Close()

	start := time.Now()
	if err := c.SetAmplitude(1); err == nil {
		t.Fatal("SetAmplitude() error = nil without a reply")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("timeout took %s", elapsed)
	}
}

func TestClient_GarbledReply(t *testing.T) {
	url := fakeServer(t, `{"type":"Ack"}`)

	c, err := Dial(context.Background(), url, time.Second)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer c.Close()

	var de *protocol.DecodeError
	if _, err := c.SendRaw([]byte(`{}`)); !errors.As(err, &de) {
		t.Errorf("SendRaw() error = %v, want *protocol.DecodeError", err)
	}
}

func TestClient_Closed(t *testing.T) {
	srv, _ := startServer(t)

	c, err := Dial(context.Background(), srv.Addr(), 0)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if err := c.SetRecording(true); !errors.Is(err, ErrClosed) {
		t.Errorf("SetRecording() after Close error = %v, want ErrClosed", err)
	}
	if err := c.SendBinary(nil); !errors.Is(err, ErrClosed) {
		t.Errorf("SendBinary() after Close error = %v, want ErrClosed", err)
	}
}

func TestDial_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := Dial(ctx, "127.0.0.1:1", 0); err == nil {
		t.Error("Dial() error = nil for a closed port")
	}
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "127.0.0.1:9001", want: "ws://127.0.0.1:9001/"},
		{in: " studio.local:9001 ", want: "ws://studio.local:9001/"},
		{in: "ws://127.0.0.1:9001", want: "ws://127.0.0.1:9001/"},
		{in: "ws://127.0.0.1:9001/control", want: "ws://127.0.0.1:9001/control"},
		{in: "http://127.0.0.1:9001/", want: "ws://127.0.0.1:9001/"},
		{in: "wss://127.0.0.1:9001/", wantErr: true},
		{in: "ftp://host/", wantErr: true},
		{in: "ws:///nohost", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizeURL(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NormalizeURL() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("NormalizeURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestReplyError(t *testing.T) {
	if err := ReplyError(protocol.ReceivedAck()); err != nil {
		t.Errorf("ReplyError(ack) = %v", err)
	}
	if err := ReplyError(protocol.InvalidFormatError()); !errors.Is(err, ErrRejected) {
		t.Errorf("ReplyError(error) = %v, want ErrRejected", err)
	}
}
