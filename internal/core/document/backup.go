package document

import (
	"github.com/hexforge/hexforge/internal/core/observability/log"
	"github.com/hexforge/hexforge/internal/core/storage"
)

// BackupHandle identifies a persisted backup. ID is the backup location's
// string form, reported back to the host.
type BackupHandle struct {
	ID string

	store storage.FileStore
	log   log.Log
}

// Delete removes the backup file. Best effort: failures are logged and
// swallowed, never surfaced to the caller.
func (h *BackupHandle) Delete() {
	if err := h.store.Delete(h.ID); err != nil {
		h.log.Debug("backup delete failed", log.String("backup", h.ID), log.Err(err))
	}
}
