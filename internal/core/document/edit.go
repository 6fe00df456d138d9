package document

import "context"

// Edit is a full-snapshot record representing the document state after one
// user action. Edits are never deltas: Data always carries the complete
// serialized payload.
type Edit struct {
	Label string `json:"label,omitempty"`
	Data  []byte `json:"data"`
}

// BytesProvider yields the current authoritative byte sequence for a
// document. The in-memory buffer is not kept byte-synchronized on every
// keystroke, so save and backup materialize bytes through this delegate.
type BytesProvider func(ctx context.Context) ([]byte, error)

// Change describes an edit-log mutation. Carried by the Changed emitter so
// the host can refresh its dirty indicator and undo/redo availability.
type Change struct {
	Edit    Edit
	CanUndo bool
	CanRedo bool
	Dirty   bool
}

// ContentChange describes a bulk content transition (undo, redo, revert).
// Data is nil for undo/redo, which adjust the edit log without
// materializing bytes.
type ContentChange struct {
	Data  []byte
	Edits []Edit
}
