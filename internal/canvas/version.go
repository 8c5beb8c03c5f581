package canvas

import (
	"log"
	"time"

	"canvas-backend/internal/model"
)

// =============================================================================
// Version snapshots
// =============================================================================

// SaveVersion durably stores a named snapshot of the submitted history.
// Save and delete are the only operations with a user-visible failure surface:
// the requester gets an explicit error event instead of silence.
func (h *Hub) SaveVersion(connID, roomID, versionName string, history model.History) {
	h.mu.Lock()
	c, ok := h.conns[connID]
	if !ok {
		h.mu.Unlock()
		return
	}
	creator := c.name
	h.mu.Unlock()

	if versionName == "" || len(history) == 0 {
		h.sendError(connID, "version name and history are required")
		return
	}
	for _, stroke := range history {
		if err := stroke.Validate(); err != nil {
			h.sendError(connID, "invalid stroke in history")
			return
		}
	}

	if h.dir == nil {
		h.sendError(connID, "failed to save version")
		return
	}

	// Suspension point: durable save happens before any fan-out.
	version, err := h.dir.CreateVersion(roomID, creator, versionName, history)
	if err != nil {
		log.Printf("[Room %s] Failed to save version %q: %v", roomID, versionName, err)
		h.sendError(connID, "failed to save version")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.sendLocked(h.conns[connID], Event{Event: EventVersionSaved, Data: VersionSavedData{
		VersionID:   version.ID,
		CreatedAt:   version.CreatedAt.Format(time.RFC3339),
		CreatorName: version.CreatorName,
	}})
	if sess, ok := h.sessions[roomID]; ok {
		sess.LastActive = time.Now()
		h.broadcastLocked(sess.ID, Event{Event: EventHistoryUpdated}, "")
	}
}

// LoadVersion restores a stored snapshot into its room's live session and
// fans the restored history out to every member, requester included.
func (h *Hub) LoadVersion(connID, versionID string) {
	if versionID == "" {
		return
	}
	if h.dir == nil {
		h.sendError(connID, "version not found")
		return
	}

	// Suspension point: fetch the snapshot, then re-resolve the session.
	version, err := h.dir.GetVersion(versionID)
	if err != nil {
		log.Printf("[Canvas] Failed to load version %s: %v", versionID, err)
		h.sendError(connID, "version not found")
		return
	}

	history, err := version.ParseHistory()
	if err != nil {
		log.Printf("[Canvas] Corrupt history in version %s: %v", versionID, err)
		h.sendError(connID, "failed to load version")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	sess := h.getOrCreateLocked(version.RoomID)
	sess.History = history
	sess.LastActive = time.Now()
	h.broadcastLocked(sess.ID, Event{Event: EventUpdateHistory, Data: historyPayload(sess)}, "")
	log.Printf("[Room %s] Loaded version %q (%d strokes)", sess.ID, version.VersionName, len(history))
}

// sendError delivers an error event to one connection.
func (h *Hub) sendError(connID, message string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sendLocked(h.conns[connID], Event{Event: EventError, Data: message})
}
