package provider

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hexforge/hexforge/internal/core/bridge"
	"github.com/hexforge/hexforge/internal/core/document"
	"github.com/hexforge/hexforge/internal/core/observability/log"
	"github.com/hexforge/hexforge/internal/core/registry"
	"github.com/hexforge/hexforge/internal/core/storage"
)

// echoSurface answers every getFileData request with its configured bytes,
// mimicking a live webview that serializes its buffer on demand.
type echoSurface struct {
	id string

	mu       sync.Mutex
	current  []byte
	frames   []bridge.Envelope
	provider *Provider
	doc      *document.Document
}

func (s *echoSurface) ID() string { return s.id }

func (s *echoSurface) Send(data []byte) error {
	env, err := bridge.DecodeEnvelope(data)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.frames = append(s.frames, env)
	current := make([]byte, len(s.current))
	copy(current, s.current)
	s.mu.Unlock()

	if env.Type == bridge.MessageGetFileData {
		body, _ := json.Marshal(bridge.FileDataBody{Data: current})
		raw, _ := json.Marshal(bridge.Envelope{
			Type:      bridge.MessageResponse,
			RequestID: env.RequestID,
			Body:      body,
		})
		// Respond asynchronously, as a real surface would.
		go func() { _ = s.provider.HandleIncoming(s.doc, s, raw) }()
	}
	return nil
}

func (s *echoSurface) setBytes(data []byte) {
	s.mu.Lock()
	s.current = data
	s.mu.Unlock()
}

func (s *echoSurface) received(msgType bridge.MessageType) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, env := range s.frames {
		if env.Type == msgType {
			return true
		}
	}
	return false
}

func newTestProvider(store storage.FileStore) *Provider {
	logger := log.Nop()
	return New(store, registry.New(), bridge.New(logger), "backups", logger)
}

func attach(t *testing.T, p *Provider, uri string) (*document.Document, *echoSurface, func()) {
	t.Helper()
	doc, err := p.OpenDocument(context.Background(), uri, "")
	require.NoError(t, err)
	surface := &echoSurface{id: "s-" + uri, provider: p, doc: doc}
	detach := p.AttachSurface(doc, surface)
	return doc, surface, detach
}

func TestProvider_SaveRoundTrip(t *testing.T) {
	store := storage.NewMemStore()
	p := newTestProvider(store)

	doc, surface, detach := attach(t, p, "doc.bin")
	defer detach()
	defer p.Release(doc)

	surface.setBytes([]byte{1, 2, 3})
	require.NoError(t, doc.ApplyEdit(document.Edit{Data: []byte{1, 2, 3}}))

	require.NoError(t, p.Save(context.Background(), doc))

	written, err := store.Read("doc.bin")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, written)
	assert.False(t, doc.Dirty())
	assert.True(t, surface.received(bridge.MessageSaved), "surface should be acknowledged")
}

func TestProvider_SaveWithoutSurfaceFails(t *testing.T) {
	store := storage.NewMemStore()
	p := newTestProvider(store)

	doc, err := p.OpenDocument(context.Background(), "doc.bin", "")
	require.NoError(t, err)
	defer p.Release(doc)

	err = p.Save(context.Background(), doc)
	assert.ErrorIs(t, err, ErrNoSurface)
	assert.False(t, store.Exists("doc.bin"))
}

func TestProvider_BackupAndReopenFromBackup(t *testing.T) {
	store := storage.NewMemStore()
	p := newTestProvider(store)

	doc, surface, detach := attach(t, p, "doc.bin")
	surface.setBytes([]byte{9, 8, 7})

	handle, err := p.Backup(context.Background(), doc, "doc.bin.bak")
	require.NoError(t, err)
	assert.Equal(t, "backups/doc.bin.bak", handle.ID)
	assert.True(t, store.Exists("backups/doc.bin.bak"))

	detach()
	p.Release(doc)

	// Reopen routed through the backup: bytes come from the backup copy.
	reopened, err := p.OpenDocument(context.Background(), "doc.bin", "doc.bin.bak")
	require.NoError(t, err)
	defer p.Release(reopened)
	assert.Equal(t, []byte{9, 8, 7}, reopened.Bytes())

	handle.Delete()
	assert.False(t, store.Exists("backups/doc.bin.bak"))
}

func TestProvider_RevertNotifiesSurfaces(t *testing.T) {
	store := storage.NewMemStore()
	require.NoError(t, store.Write("doc.bin", []byte{1}))
	p := newTestProvider(store)

	doc, surface, detach := attach(t, p, "doc.bin")
	defer detach()
	defer p.Release(doc)

	require.NoError(t, doc.ApplyEdit(document.Edit{Data: []byte{1, 2}}))
	require.NoError(t, p.Revert(context.Background(), doc))

	assert.Empty(t, doc.Edits())
	assert.True(t, surface.received(bridge.MessageReverted))
}

func TestProvider_OpenDocumentIsRefCounted(t *testing.T) {
	p := newTestProvider(storage.NewMemStore())

	first, err := p.OpenDocument(context.Background(), "doc.bin", "")
	require.NoError(t, err)
	second, err := p.OpenDocument(context.Background(), "doc.bin", "")
	require.NoError(t, err)
	assert.Same(t, first, second, "same URI shares one document")

	disposed := false
	first.OnDisposed(func(struct{}) { disposed = true })

	p.Release(second)
	assert.False(t, disposed, "still referenced")
	p.Release(first)
	assert.True(t, disposed, "last release disposes")
}

func TestProvider_SaveCancelledWhileWaiting(t *testing.T) {
	store := storage.NewMemStore()
	p := newTestProvider(store)

	doc, err := p.OpenDocument(context.Background(), "doc.bin", "")
	require.NoError(t, err)
	defer p.Release(doc)

	// A surface that never answers getFileData.
	mute := &muteSurface{id: "mute"}
	detach := p.AttachSurface(doc, mute)
	defer detach()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err = p.Save(ctx, doc)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, store.Exists("doc.bin"))
	assert.Equal(t, 1, p.Bridge().PendingRequests(),
		"abandoning the wait must not expire the correlation entry")
}

type muteSurface struct{ id string }

func (s *muteSurface) ID() string             { return s.id }
func (s *muteSurface) Send(data []byte) error { return nil }
