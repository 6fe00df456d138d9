package bridge

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/hexforge/hexforge/internal/core/document"
	"github.com/hexforge/hexforge/internal/core/observability/log"
)

// Surface is one attached display surface: an interactive panel rendering
// and editing a document.
type Surface interface {
	ID() string
	Send(data []byte) error
}

// Bridge correlates asynchronous request/response round-trips with display
// surfaces and dispatches their incoming messages. Request identifiers are
// strictly increasing from 1 and never reused for the lifetime of the
// bridge.
type Bridge struct {
	mu      sync.Mutex
	nextID  uint64
	pending map[uint64]chan json.RawMessage
	log     log.Log
}

// New creates a Bridge.
func New(logger log.Log) *Bridge {
	return &Bridge{
		pending: make(map[uint64]chan json.RawMessage),
		log:     logger,
	}
}

// Request sends {type, requestId, body} to the surface and returns a
// channel that yields the response body when a matching response arrives.
// No timeout is enforced: a surface that never responds leaves the channel
// open indefinitely.
func (b *Bridge) Request(surface Surface, msgType MessageType, body any) (<-chan json.RawMessage, error) {
	if surface == nil {
		return nil, ErrNilSurface
	}

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	ch := make(chan json.RawMessage, 1)
	b.pending[id] = ch
	b.mu.Unlock()

	data, err := EncodeEnvelope(msgType, id, body)
	if err != nil {
		b.drop(id)
		return nil, err
	}
	if err = surface.Send(data); err != nil {
		b.drop(id)
		return nil, fmt.Errorf("send %s to surface %s: %w", msgType, surface.ID(), err)
	}

	b.log.Debug("request issued",
		log.String("type", string(msgType)),
		log.Uint64("request_id", id),
		log.String("surface", surface.ID()),
	)
	return ch, nil
}

// Notify sends a fire-and-forget {type, body} to the surface. No identifier
// is allocated and no response is expected.
func (b *Bridge) Notify(surface Surface, msgType MessageType, body any) error {
	if surface == nil {
		return ErrNilSurface
	}
	data, err := EncodeEnvelope(msgType, 0, body)
	if err != nil {
		return err
	}
	if err = surface.Send(data); err != nil {
		return fmt.Errorf("send %s to surface %s: %w", msgType, surface.ID(), err)
	}
	return nil
}

// HandleIncoming dispatches one raw frame from surface against doc:
// a ready message triggers the init notification, an update message is
// applied as an edit, and a response message resolves its pending request.
// A response with an unknown identifier is ignored.
func (b *Bridge) HandleIncoming(doc *document.Document, surface Surface, raw []byte) error {
	env, err := DecodeEnvelope(raw)
	if err != nil {
		return err
	}

	switch env.Type {
	case MessageReady:
		return b.sendInit(doc, surface)

	case MessageUpdate:
		var edit document.Edit
		if err = json.Unmarshal(env.Body, &edit); err != nil {
			return fmt.Errorf("decode update body: %w", err)
		}
		return doc.ApplyEdit(edit)

	case MessageResponse:
		b.resolve(env.RequestID, env.Body)
		return nil

	default:
		b.log.Debug("unrecognized message type",
			log.String("type", string(env.Type)),
			log.String("surface", surface.ID()),
		)
		return nil
	}
}

func (b *Bridge) sendInit(doc *document.Document, surface Surface) error {
	body := InitBody{Untitled: doc.Untitled()}
	if !body.Untitled {
		body.Data = doc.Bytes()
		body.Checksum = doc.Checksum()
	}
	return b.Notify(surface, MessageInit, body)
}

func (b *Bridge) resolve(id uint64, body json.RawMessage) {
	b.mu.Lock()
	ch, ok := b.pending[id]
	if ok {
		delete(b.pending, id)
	}
	b.mu.Unlock()

	if !ok {
		// Already resolved, or a stale surface answered. Not an error.
		b.log.Debug("response for unknown request", log.Uint64("request_id", id))
		return
	}
	ch <- body
	close(ch)
}

func (b *Bridge) drop(id uint64) {
	b.mu.Lock()
	delete(b.pending, id)
	b.mu.Unlock()
}

// PendingRequests returns the number of unresolved requests.
func (b *Bridge) PendingRequests() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}
