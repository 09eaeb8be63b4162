package stream

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"misskeyrelay/internal/domain"
	"misskeyrelay/internal/misskey"

	"github.com/gorilla/websocket"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

var upgrader = websocket.Upgrader{}

// fakeServer accepts one streaming connection, checks the token and connect
// message, then hands the socket to serve.
func fakeServer(t *testing.T, serve func(conn *websocket.Conn)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/streaming" || r.URL.Query().Get("i") != "secret" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var msg misskey.ConnectMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Errorf("read connect message: %v", err)
			return
		}
		if msg.Type != "connect" || msg.Body.Channel != "homeTimeline" || msg.Body.ID != "sub1" {
			t.Errorf("unexpected connect message: %+v", msg)
		}
		serve(conn)
	}))
}

func newTestManager(srv *httptest.Server, token string) *Manager {
	return NewManager(Config{
		Scheme:         "ws",
		Host:           strings.TrimPrefix(srv.URL, "http://"),
		Token:          token,
		SubscriptionID: "sub1",
		Logger:         testLogger(),
	})
}

func TestConnect_ReceivesTextFrames(t *testing.T) {
	srv := fakeServer(t, func(conn *websocket.Conn) {
		conn.WriteMessage(websocket.BinaryMessage, []byte{0x01})
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"channel"}`))
		time.Sleep(200 * time.Millisecond)
	})
	defer srv.Close()

	conn, err := newTestManager(srv, "secret").Connect(context.Background())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer conn.Close()

	data, err := conn.Receive(context.Background(), 2*time.Second)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if string(data) != `{"type":"channel"}` {
		t.Errorf("unexpected frame: %s", data)
	}
}

func TestReceive_NoData(t *testing.T) {
	release := make(chan struct{})
	srv := fakeServer(t, func(conn *websocket.Conn) {
		<-release
	})
	defer srv.Close()
	defer close(release)

	conn, err := newTestManager(srv, "secret").Connect(context.Background())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer conn.Close()

	for i := 0; i < 2; i++ {
		if _, err := conn.Receive(context.Background(), 50*time.Millisecond); !errors.Is(err, domain.ErrNoData) {
			t.Fatalf("receive %d: expected ErrNoData, got %v", i, err)
		}
	}
}

func TestReceive_ServerClose(t *testing.T) {
	srv := fakeServer(t, func(conn *websocket.Conn) {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "bye"))
		time.Sleep(100 * time.Millisecond)
	})
	defer srv.Close()

	conn, err := newTestManager(srv, "secret").Connect(context.Background())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Receive(context.Background(), 2*time.Second); !errors.Is(err, domain.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestReceive_ContextCancelled(t *testing.T) {
	release := make(chan struct{})
	srv := fakeServer(t, func(conn *websocket.Conn) {
		<-release
	})
	defer srv.Close()
	defer close(release)

	conn, err := newTestManager(srv, "secret").Connect(context.Background())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := conn.Receive(ctx, time.Second); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestConnect_BadToken(t *testing.T) {
	srv := fakeServer(t, func(conn *websocket.Conn) {})
	defer srv.Close()

	if _, err := newTestManager(srv, "wrong").Connect(context.Background()); err == nil {
		t.Fatal("expected error for rejected handshake")
	}
}

func TestReceive_ConnectionDropIsNotClose(t *testing.T) {
	srv := fakeServer(t, func(conn *websocket.Conn) {
		conn.UnderlyingConn().Close()
	})
	defer srv.Close()

	conn, err := newTestManager(srv, "secret").Connect(context.Background())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer conn.Close()

	_, err = conn.Receive(context.Background(), 2*time.Second)
	if err == nil {
		t.Fatal("expected read error after connection drop")
	}
	if errors.Is(err, domain.ErrClosed) || errors.Is(err, domain.ErrNoData) {
		t.Fatalf("connection drop without close frame should be a plain read error, got %v", err)
	}
}
