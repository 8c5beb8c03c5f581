package canvas

import (
	"log"
	"time"

	"canvas-backend/internal/model"
)

// =============================================================================
// History synchronization
// =============================================================================
//
// The server holds the latest full stroke log as ground truth for late joiners
// and reconnects. Appends extend it; undo/redo/clear arrive as a wholesale
// replacement computed by the client. Every mutation and its fan-out happen
// under the hub lock, so all members of a room observe the same order.

// Append adds one stroke to the sender's room and fans it out to every other
// member. Invalid strokes and unbound connections are dropped.
func (h *Hub) Append(connID string, stroke model.Stroke) {
	if err := stroke.Validate(); err != nil {
		log.Printf("[Canvas] Dropping invalid stroke from %s: %v", connID, err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	c, sess := h.boundSessionLocked(connID)
	if sess == nil {
		return
	}

	sess.History = append(sess.History, stroke)
	sess.LastActive = time.Now()
	h.broadcastLocked(sess.ID, Event{Event: EventDraw, Data: stroke}, c.id)
}

// Replace swaps in a full new history (undo/redo resync) and fans it out to
// every other member.
func (h *Hub) Replace(connID string, history model.History) {
	for _, stroke := range history {
		if err := stroke.Validate(); err != nil {
			log.Printf("[Canvas] Dropping history replace from %s: %v", connID, err)
			return
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	c, sess := h.boundSessionLocked(connID)
	if sess == nil {
		return
	}

	sess.History = history.Clone()
	sess.LastActive = time.Now()
	h.broadcastLocked(sess.ID, Event{Event: EventUpdateHistory, Data: historyPayload(sess)}, c.id)
}

// ReplayTo delivers the current history to exactly one connection.
func (h *Hub) ReplayTo(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, sess := h.boundSessionLocked(connID)
	if sess == nil {
		return
	}

	h.sendLocked(c, Event{Event: EventUpdateHistory, Data: historyPayload(sess)})
}

// Clear empties the sender's room history. The distinct clear-canvas event
// goes to the whole room, sender included, so clients also drop any rendered
// document overlay.
func (h *Hub) Clear(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	_, sess := h.boundSessionLocked(connID)
	if sess == nil {
		return
	}

	sess.History = nil
	sess.LastActive = time.Now()
	h.broadcastLocked(sess.ID, Event{Event: EventClearCanvas}, "")
	log.Printf("[Room %s] Canvas cleared", sess.ID)
}

// =============================================================================
// Document sharing
// =============================================================================

// SharePDF announces an uploaded document URL to the whole room, sender
// included.
func (h *Hub) SharePDF(connID, roomID, url string) {
	if roomID == "" || url == "" {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	sess, ok := h.sessions[roomID]
	if !ok {
		return
	}
	sess.LastActive = time.Now()
	h.broadcastLocked(sess.ID, Event{Event: EventPDFReceived, Data: PDFReceivedData{URL: url}}, "")
	log.Printf("[Room %s] PDF shared: %s", roomID, url)
}

// ShareScrape fans scraped page content out to the whole room. Unlike SharePDF
// the sender must be an admitted member of the target room; scraped content
// from strangers is dropped.
func (h *Hub) ShareScrape(connID, roomID, content string) {
	if roomID == "" || content == "" {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	c, sess := h.boundSessionLocked(connID)
	if sess == nil || c.roomID != roomID {
		return
	}
	sess.LastActive = time.Now()
	h.broadcastLocked(sess.ID, Event{Event: EventScrapeShared, Data: ScrapeSharedData{
		FromUser: c.name,
		Content:  content,
	}}, "")
}

// boundSessionLocked resolves a connection to its admitted session, or nil.
func (h *Hub) boundSessionLocked(connID string) (*client, *Session) {
	c, ok := h.conns[connID]
	if !ok || c.roomID == "" {
		return nil, nil
	}
	sess, ok := h.sessions[c.roomID]
	if !ok {
		return c, nil
	}
	return c, sess
}
