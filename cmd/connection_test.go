// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Thermoquad/vfdctl/pkg/vfd"
)

// newBridge starts a WebSocket server that answers every Status? with OK,
// split across two frames of the given type
func newBridge(t *testing.T, frameType int, gotAuth chan<- string) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if gotAuth != nil {
			gotAuth <- r.Header.Get("Authorization")
		}
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		for {
			mt, data, err := ws.ReadMessage()
			if err != nil {
				return
			}
			if mt != websocket.TextMessage || string(data) != "Status?\n" {
				ws.WriteMessage(websocket.TextMessage, []byte("Invalid\n"))
				continue
			}
			ws.WriteMessage(frameType, []byte("O"))
			ws.WriteMessage(frameType, []byte("K\n"))
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

// ============================================================
// WebSocket Connection Tests
// ============================================================

func TestWebSocketConnection_Frames(t *testing.T) {
	tests := []struct {
		name      string
		frameType int
	}{
		{"text frames", websocket.TextMessage},
		{"binary frames", websocket.BinaryMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn, err := OpenWebSocketConnection(newBridge(t, tt.frameType, nil), "", "", false)
			if err != nil {
				t.Fatalf("OpenWebSocketConnection: %v", err)
			}
			defer conn.Close()

			client := vfd.NewClient(conn, time.Second)
			if err := client.Status(); err != nil {
				t.Errorf("Status: %v", err)
			}
		})
	}
}

func TestWebSocketConnection_BasicAuth(t *testing.T) {
	gotAuth := make(chan string, 1)
	conn, err := OpenWebSocketConnection(newBridge(t, websocket.TextMessage, gotAuth), "admin", "secret", false)
	if err != nil {
		t.Fatalf("OpenWebSocketConnection: %v", err)
	}
	defer conn.Close()

	// base64("admin:secret")
	if auth := <-gotAuth; auth != "Basic YWRtaW46c2VjcmV0" {
		t.Errorf("Authorization = %q", auth)
	}
}

func TestWebSocketConnection_ClosedRead(t *testing.T) {
	conn, err := OpenWebSocketConnection(newBridge(t, websocket.TextMessage, nil), "", "", false)
	if err != nil {
		t.Fatalf("OpenWebSocketConnection: %v", err)
	}
	conn.Close()

	buf := make([]byte, 16)
	for i := 0; i < 2; i++ {
		if _, err := conn.Read(buf); !errors.Is(err, vfd.ErrConnectionClosed) {
			t.Errorf("read %d: got %v, want ErrConnectionClosed", i, err)
		}
	}
}

func TestWebSocketConnection_SmallReads(t *testing.T) {
	conn, err := OpenWebSocketConnection(newBridge(t, websocket.TextMessage, nil), "", "", false)
	if err != nil {
		t.Fatalf("OpenWebSocketConnection: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte("Status?\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	// frames "O" and "K\n" read one byte at a time
	var got []byte
	buf := make([]byte, 1)
	for len(got) < 3 {
		n, err := conn.Read(buf)
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		got = append(got, buf[:n]...)
	}
	if string(got) != "OK\n" {
		t.Errorf("got %q", got)
	}
}

func TestOpenWebSocketConnection_BadScheme(t *testing.T) {
	if _, err := OpenWebSocketConnection("http://localhost:1", "", "", false); err == nil {
		t.Error("http:// accepted")
	}
}
