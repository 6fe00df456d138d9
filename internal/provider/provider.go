package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"sync"

	"github.com/hexforge/hexforge/internal/core/bridge"
	"github.com/hexforge/hexforge/internal/core/document"
	"github.com/hexforge/hexforge/internal/core/observability/log"
	"github.com/hexforge/hexforge/internal/core/registry"
	"github.com/hexforge/hexforge/internal/core/storage"
)

// Provider errors
var (
	ErrNoSurface = errors.New("no display surface attached")
)

// Provider implements the host-facing document lifecycle: open, save,
// save-as, revert, backup and release. It binds each document's
// byte-provider delegate to a getFileData round-trip with the first
// attached surface.
type Provider struct {
	store     storage.FileStore
	registry  *registry.Registry
	bridge    *bridge.Bridge
	log       log.Log
	backupDir string

	mu   sync.Mutex
	open map[string]*openEntry
}

type openEntry struct {
	doc  *document.Document
	refs int
}

// New creates a Provider. backupDir is the store subtree backup names are
// resolved under.
func New(store storage.FileStore, reg *registry.Registry, br *bridge.Bridge, backupDir string, logger log.Log) *Provider {
	return &Provider{
		store:     store,
		registry:  reg,
		bridge:    br,
		log:       logger,
		backupDir: backupDir,
		open:      make(map[string]*openEntry),
	}
}

// Bridge returns the bridge documents are wired through.
func (p *Provider) Bridge() *bridge.Bridge { return p.bridge }

// Registry returns the surface registry.
func (p *Provider) Registry() *registry.Registry { return p.registry }

// OpenDocument opens the document for uri, or hands out another reference
// to an already-open one. A non-empty backupID makes a fresh open load
// bytes from that backup instead of the resource. Every OpenDocument must
// be paired with a Release.
func (p *Provider) OpenDocument(ctx context.Context, uri, backupID string) (*document.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if entry, ok := p.open[uri]; ok {
		entry.refs++
		return entry.doc, nil
	}

	backupURI := ""
	if backupID != "" {
		backupURI = p.backupURI(backupID)
	}
	doc, err := document.Open(p.store, uri, backupURI, p.bytesProvider(uri), p.log)
	if err != nil {
		return nil, err
	}
	p.open[uri] = &openEntry{doc: doc, refs: 1}
	return doc, nil
}

// Release drops one reference to the document; the last release disposes
// it.
func (p *Provider) Release(doc *document.Document) {
	p.mu.Lock()
	entry, ok := p.open[doc.URI()]
	if ok {
		entry.refs--
		if entry.refs <= 0 {
			delete(p.open, doc.URI())
		} else {
			ok = false
		}
	}
	p.mu.Unlock()

	if ok {
		doc.Dispose()
	}
}

// AttachSurface registers surface under the document and returns a detach
// function. The caller keeps feeding the surface's incoming frames to
// HandleIncoming until it detaches.
func (p *Provider) AttachSurface(doc *document.Document, surface bridge.Surface) func() {
	p.registry.Add(doc.URI(), surface)
	p.log.Debug("surface attached",
		log.String("uri", doc.URI()),
		log.String("surface", surface.ID()),
	)
	return func() {
		p.registry.Remove(doc.URI(), surface.ID())
		p.log.Debug("surface detached",
			log.String("uri", doc.URI()),
			log.String("surface", surface.ID()),
		)
	}
}

// HandleIncoming dispatches one raw frame from an attached surface.
func (p *Provider) HandleIncoming(doc *document.Document, surface bridge.Surface, raw []byte) error {
	return p.bridge.HandleIncoming(doc, surface, raw)
}

// Save persists the document in place and acknowledges attached surfaces.
func (p *Provider) Save(ctx context.Context, doc *document.Document) error {
	if err := doc.Save(ctx); err != nil {
		return err
	}
	p.notifySurfaces(doc, bridge.MessageSaved, bridge.EditStateBody{EditCount: len(doc.Edits())})
	return nil
}

// SaveAs persists current bytes to target without touching the document's
// saved-edit snapshot.
func (p *Provider) SaveAs(ctx context.Context, doc *document.Document, target string) error {
	return doc.SaveTo(ctx, target)
}

// Revert reloads the document from its resource and pushes the restored
// content to attached surfaces.
func (p *Provider) Revert(ctx context.Context, doc *document.Document) error {
	if err := doc.Revert(ctx); err != nil {
		return err
	}
	p.notifySurfaces(doc, bridge.MessageReverted, bridge.EditStateBody{
		Data:      doc.Bytes(),
		EditCount: len(doc.Edits()),
	})
	return nil
}

// Backup writes current bytes to the named backup location and returns its
// handle.
func (p *Provider) Backup(ctx context.Context, doc *document.Document, name string) (*document.BackupHandle, error) {
	return doc.Backup(ctx, p.backupURI(name))
}

func (p *Provider) backupURI(name string) string {
	if p.backupDir == "" {
		return name
	}
	return path.Join(p.backupDir, name)
}

// bytesProvider builds the byte-provider delegate for uri: a getFileData
// round-trip with the first attached surface. With zero surfaces attached
// the request fails immediately; there is no fallback byte source.
func (p *Provider) bytesProvider(uri string) document.BytesProvider {
	return func(ctx context.Context) ([]byte, error) {
		surface, ok := p.registry.First(uri)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNoSurface, uri)
		}
		ch, err := p.bridge.Request(surface, bridge.MessageGetFileData, nil)
		if err != nil {
			return nil, err
		}
		select {
		case raw := <-ch:
			var body bridge.FileDataBody
			if err = json.Unmarshal(raw, &body); err != nil {
				return nil, fmt.Errorf("decode file data from surface %s: %w", surface.ID(), err)
			}
			return body.Data, nil
		case <-ctx.Done():
			// The caller abandons the wait; the correlation entry stays
			// until a response arrives or the bridge is dropped.
			return nil, ctx.Err()
		}
	}
}

func (p *Provider) notifySurfaces(doc *document.Document, msgType bridge.MessageType, body any) {
	for _, surface := range p.registry.Get(doc.URI()) {
		if err := p.bridge.Notify(surface, msgType, body); err != nil {
			p.log.Warn("surface notification failed",
				log.String("uri", doc.URI()),
				log.String("surface", surface.ID()),
				log.String("type", string(msgType)),
				log.Err(err),
			)
		}
	}
}
