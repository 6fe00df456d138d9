package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hexforge/hexforge/internal/config"
	"github.com/hexforge/hexforge/internal/core/bridge"
	"github.com/hexforge/hexforge/internal/core/document"
	"github.com/hexforge/hexforge/internal/core/observability/log"
	"github.com/hexforge/hexforge/internal/core/registry"
	"github.com/hexforge/hexforge/internal/core/storage"
	"github.com/hexforge/hexforge/internal/provider"
)

func newTestServer(t *testing.T, store storage.FileStore) (*Server, *provider.Provider) {
	t.Helper()
	logger := log.Nop()
	p := provider.New(store, registry.New(), bridge.New(logger), "backups", logger)
	return New(config.Default(), p, logger), p
}

func dialSurface(t *testing.T, handler http.HandlerFunc, query string) *websocket.Conn {
	t.Helper()
	s := httptest.NewServer(handler)
	t.Cleanup(s.Close)

	u := "ws" + strings.TrimPrefix(s.URL, "http") + query
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("could not connect: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func TestHandleSurface_RequiresURI(t *testing.T) {
	srv, _ := newTestServer(t, storage.NewMemStore())

	s := httptest.NewServer(http.HandlerFunc(srv.handleSurface))
	defer s.Close()

	u := "ws" + strings.TrimPrefix(s.URL, "http")
	_, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err == nil {
		t.Fatal("expected error when connecting without uri")
	}
}

func TestHandleSurface_ReadyInitRoundTrip(t *testing.T) {
	store := storage.NewMemStore()
	if err := store.Write("doc.bin", []byte{0xBE, 0xEF}); err != nil {
		t.Fatal(err)
	}
	srv, _ := newTestServer(t, store)

	conn := dialSurface(t, srv.handleSurface, "?uri=doc.bin")

	ready, _ := json.Marshal(bridge.Envelope{Type: bridge.MessageReady})
	if err := conn.WriteMessage(websocket.TextMessage, ready); err != nil {
		t.Fatalf("could not send ready: %v", err)
	}

	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("could not read init: %v", err)
	}
	env, err := bridge.DecodeEnvelope(raw)
	if err != nil {
		t.Fatalf("bad init envelope: %v", err)
	}
	if env.Type != bridge.MessageInit {
		t.Fatalf("expected init, got %s", env.Type)
	}

	var body bridge.InitBody
	if err = json.Unmarshal(env.Body, &body); err != nil {
		t.Fatalf("bad init body: %v", err)
	}
	if body.Untitled {
		t.Error("document should not be untitled")
	}
	if string(body.Data) != string([]byte{0xBE, 0xEF}) {
		t.Errorf("init carries wrong bytes: %v", body.Data)
	}
}

func TestHandleSurface_UpdateMarksDocumentDirty(t *testing.T) {
	store := storage.NewMemStore()
	srv, p := newTestServer(t, store)

	conn := dialSurface(t, srv.handleSurface, "?uri=doc.bin")

	edit, _ := json.Marshal(document.Edit{Label: "insert", Data: []byte{1}})
	update, _ := json.Marshal(bridge.Envelope{Type: bridge.MessageUpdate, Body: edit})
	if err := conn.WriteMessage(websocket.TextMessage, update); err != nil {
		t.Fatalf("could not send update: %v", err)
	}

	// The read loop runs on the server side; take another reference to the
	// shared document and poll for the edit to land.
	doc, err := p.OpenDocument(t.Context(), "doc.bin", "")
	if err != nil {
		t.Fatalf("could not reference document: %v", err)
	}
	defer p.Release(doc)

	deadline := time.Now().Add(2 * time.Second)
	for len(doc.Edits()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("edit never applied")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if !doc.Dirty() {
		t.Error("document should be dirty after update")
	}
}
