package document

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/hexforge/hexforge/internal/core/events"
	"github.com/hexforge/hexforge/internal/core/observability/log"
	"github.com/hexforge/hexforge/internal/core/storage"
	"github.com/hexforge/hexforge/pkg/sequence"
)

// Document holds the authoritative in-memory bytes of one open resource,
// an undo-capable edit log, and the edit-log snapshot taken at the last
// successful save. Save, revert and backup are the only mutation entry
// points visible to the host.
type Document struct {
	uri      string
	untitled bool

	mu         sync.Mutex
	data       []byte
	edits      *sequence.Stack[Edit]
	undone     *sequence.Stack[Edit]
	savedEdits []Edit
	disposed   bool

	provider BytesProvider
	store    storage.FileStore
	log      log.Log

	changed        *events.Emitter[Change]
	contentChanged *events.Emitter[ContentChange]
	disposedEv     *events.Emitter[struct{}]
	disposeOnce    sync.Once
}

// Open loads a document for uri. When backupURI is non-empty the bytes come
// from the backup location; otherwise from the resource itself; a resource
// that does not exist yet yields an empty untitled document. provider
// supplies current bytes at save time.
func Open(store storage.FileStore, uri, backupURI string, provider BytesProvider, logger log.Log) (*Document, error) {
	var (
		data     []byte
		untitled bool
	)
	switch {
	case backupURI != "":
		loaded, err := store.Read(backupURI)
		if err != nil {
			return nil, fmt.Errorf("open %s from backup: %w", uri, err)
		}
		data = loaded
	default:
		loaded, err := store.Read(uri)
		if err != nil {
			if !errors.Is(err, storage.ErrNotExist) {
				return nil, fmt.Errorf("open %s: %w", uri, err)
			}
			untitled = true
		} else {
			data = loaded
		}
	}

	d := &Document{
		uri:            uri,
		untitled:       untitled,
		data:           data,
		edits:          sequence.NewStack[Edit](),
		undone:         sequence.NewStack[Edit](),
		provider:       provider,
		store:          store,
		log:            logger.With(log.String("uri", uri)),
		changed:        events.NewEmitter[Change](),
		contentChanged: events.NewEmitter[ContentChange](),
		disposedEv:     events.NewEmitter[struct{}](),
	}
	d.log.Debug("document opened",
		log.Bool("untitled", untitled),
		log.Bool("from_backup", backupURI != ""),
		log.ByteLen("size", data),
		log.Uint64("checksum", xxhash.Sum64(data)),
	)
	return d, nil
}

// URI returns the resource locator the document is bound to.
func (d *Document) URI() string { return d.uri }

// Untitled reports whether the resource did not exist when opened.
func (d *Document) Untitled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.untitled
}

// Bytes returns a copy of the current in-memory buffer.
func (d *Document) Bytes() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]byte, len(d.data))
	copy(out, d.data)
	return out
}

// Checksum returns the xxhash64 of the current in-memory buffer.
func (d *Document) Checksum() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return xxhash.Sum64(d.data)
}

// Edits returns a copy of the live edit log, oldest first.
func (d *Document) Edits() []Edit {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.edits.Items()
}

// SavedEdits returns a copy of the edit log captured at the last save.
func (d *Document) SavedEdits() []Edit {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Edit, len(d.savedEdits))
	copy(out, d.savedEdits)
	return out
}

// Dirty reports whether the live edit log differs from the saved snapshot.
func (d *Document) Dirty() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dirtyLocked()
}

func (d *Document) dirtyLocked() bool {
	live := d.edits.Items()
	if len(live) != len(d.savedEdits) {
		return true
	}
	for i := range live {
		if live[i].Label != d.savedEdits[i].Label || !bytes.Equal(live[i].Data, d.savedEdits[i].Data) {
			return true
		}
	}
	return false
}

// CanUndo reports whether the edit log is non-empty.
func (d *Document) CanUndo() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.edits.Len() > 0
}

// CanRedo reports whether an undone edit is available for re-application.
func (d *Document) CanRedo() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.undone.Len() > 0
}

// OnChanged registers a listener for edit-log mutations.
func (d *Document) OnChanged(fn func(Change)) *events.Subscription {
	return d.changed.Subscribe(fn)
}

// OnContentChanged registers a listener for bulk content transitions.
func (d *Document) OnContentChanged(fn func(ContentChange)) *events.Subscription {
	return d.contentChanged.Subscribe(fn)
}

// OnDisposed registers a listener fired exactly once when the document is
// disposed.
func (d *Document) OnDisposed(fn func(struct{})) *events.Subscription {
	return d.disposedEv.Subscribe(fn)
}

// ApplyEdit appends edit to the live edit log and discards any redoable
// edits. Applying an edit never materializes bytes; the buffer is only
// refreshed at save or revert time.
func (d *Document) ApplyEdit(edit Edit) error {
	d.mu.Lock()
	if d.disposed {
		d.mu.Unlock()
		return ErrDisposed
	}
	d.edits.Push(edit)
	d.undone.Clear()
	change := Change{
		Edit:    edit,
		CanUndo: true,
		CanRedo: false,
		Dirty:   d.dirtyLocked(),
	}
	d.mu.Unlock()

	d.changed.Fire(change)
	return nil
}

// Undo removes the most recently applied edit and keeps it for Redo.
// Returns false when the edit log is empty.
func (d *Document) Undo() bool {
	d.mu.Lock()
	if d.disposed {
		d.mu.Unlock()
		return false
	}
	edit, ok := d.edits.Pop()
	if !ok {
		d.mu.Unlock()
		return false
	}
	d.undone.Push(edit)
	content := ContentChange{Edits: d.edits.Items()}
	change := Change{
		Edit:    edit,
		CanUndo: d.edits.Len() > 0,
		CanRedo: true,
		Dirty:   d.dirtyLocked(),
	}
	d.mu.Unlock()

	d.contentChanged.Fire(content)
	d.changed.Fire(change)
	return true
}

// Redo re-appends the edit most recently removed by Undo. Returns false
// when there is nothing to redo.
func (d *Document) Redo() bool {
	d.mu.Lock()
	if d.disposed {
		d.mu.Unlock()
		return false
	}
	edit, ok := d.undone.Pop()
	if !ok {
		d.mu.Unlock()
		return false
	}
	d.edits.Push(edit)
	content := ContentChange{Edits: d.edits.Items()}
	change := Change{
		Edit:    edit,
		CanUndo: true,
		CanRedo: d.undone.Len() > 0,
		Dirty:   d.dirtyLocked(),
	}
	d.mu.Unlock()

	d.contentChanged.Fire(content)
	d.changed.Fire(change)
	return true
}

// Save materializes current bytes through the provider delegate and writes
// them to the document's own resource, then captures the saved-edit
// snapshot.
func (d *Document) Save(ctx context.Context) error {
	return d.SaveTo(ctx, d.uri)
}

// SaveTo writes current bytes to target. Saving in place (target equal to
// the document URI) additionally replaces the saved-edit snapshot; save-as
// to another location leaves the snapshot untouched. Cancellation observed
// after the delegate returns skips the write entirely.
func (d *Document) SaveTo(ctx context.Context, target string) error {
	data, err := d.materialize(ctx)
	if err != nil {
		return err
	}
	if err = ctx.Err(); err != nil {
		return err
	}
	if err = d.store.Write(target, data); err != nil {
		return err
	}

	d.mu.Lock()
	if target == d.uri {
		d.data = data
		d.untitled = false
		d.savedEdits = d.edits.Items()
	}
	d.mu.Unlock()

	d.log.Debug("document saved",
		log.String("target", target),
		log.ByteLen("size", data),
		log.Uint64("checksum", xxhash.Sum64(data)),
	)
	return nil
}

// Revert reloads bytes from the original resource, ignoring any backup,
// and restores the edit log to the last-saved snapshot.
func (d *Document) Revert(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	disposed := d.disposed
	d.mu.Unlock()
	if disposed {
		return ErrDisposed
	}

	data, err := d.store.Read(d.uri)
	if err != nil {
		return fmt.Errorf("revert: %w", err)
	}

	d.mu.Lock()
	d.data = data
	d.edits.Replace(d.savedEdits)
	d.undone.Clear()
	content := ContentChange{Data: data, Edits: d.edits.Items()}
	d.mu.Unlock()

	d.contentChanged.Fire(content)
	d.log.Debug("document reverted", log.ByteLen("size", data))
	return nil
}

// Backup materializes current bytes and writes them to dest, returning a
// handle whose Delete removes the backup on a best-effort basis. A backup
// never touches the saved-edit snapshot.
func (d *Document) Backup(ctx context.Context, dest string) (*BackupHandle, error) {
	data, err := d.materialize(ctx)
	if err != nil {
		return nil, err
	}
	if err = ctx.Err(); err != nil {
		return nil, err
	}
	if err = d.store.Write(dest, data); err != nil {
		return nil, err
	}
	d.log.Debug("document backed up", log.String("dest", dest), log.ByteLen("size", data))
	return &BackupHandle{ID: dest, store: d.store, log: d.log}, nil
}

// Dispose fires the disposed notification exactly once and tears down all
// emitters. Further mutations fail with ErrDisposed.
func (d *Document) Dispose() {
	d.disposeOnce.Do(func() {
		d.mu.Lock()
		d.disposed = true
		d.mu.Unlock()

		d.disposedEv.Fire(struct{}{})
		d.changed.Close()
		d.contentChanged.Close()
		d.disposedEv.Close()
		d.log.Debug("document disposed")
	})
}

func (d *Document) materialize(ctx context.Context) ([]byte, error) {
	d.mu.Lock()
	disposed, provider := d.disposed, d.provider
	d.mu.Unlock()
	if disposed {
		return nil, ErrDisposed
	}
	if provider == nil {
		return nil, ErrNoProvider
	}
	return provider(ctx)
}
