// Package canvas is the real-time room session coordinator: live membership,
// owner-gated admission, the ordered stroke log, and version snapshots, fanned
// out over per-connection senders.
package canvas

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"canvas-backend/internal/model"
	"canvas-backend/internal/presence"
)

// Sender delivers one outbound event to one connection. The websocket
// transport implements it; tests use recording fakes.
type Sender interface {
	Send(ev Event) error
}

// Directory is the durable collaborator surface the hub needs. Satisfied by
// directory.Service; narrow so the hub is testable without Postgres.
type Directory interface {
	EnsureRoom(roomID string) (*model.Room, error)
	SetRoomOwner(roomID, ownerName string) error
	AddRoomMember(roomID, username string) error
	CreateVersion(roomID, creatorName, versionName string, history model.History) (*model.CanvasVersion, error)
	GetVersion(versionID string) (*model.CanvasVersion, error)
}

// Session is the in-memory coordination state for one room: membership, live
// owner, stroke log and pending join requests live together so they cannot
// drift apart.
type Session struct {
	ID         string
	Members    map[string]struct{}
	Owner      string
	History    model.History
	Pending    map[string]*JoinRequest
	LastActive time.Time
}

// JoinRequest is one unresolved gated admission attempt.
type JoinRequest struct {
	ID        string
	RoomID    string
	Name      string
	ConnID    string
	CreatedAt time.Time
}

// client binds a connection id to its sender and, once admitted, to a
// (room, display name) pair. roomID stays empty while admission is pending.
type client struct {
	id     string
	roomID string
	name   string
	sender Sender
}

// Hub owns every Session and every connection binding. All in-memory state is
// guarded by one mutex; an in-memory mutation and its fan-out happen under the
// lock, which gives every room a total order of observed operations. Directory
// calls are made outside the lock and the relevant state is re-checked after
// they return.
type Hub struct {
	mu       sync.Mutex
	sessions map[string]*Session
	conns    map[string]*client

	dir    Directory
	mirror *presence.Mirror
}

func NewHub(dir Directory, mirror *presence.Mirror) *Hub {
	return &Hub{
		sessions: make(map[string]*Session),
		conns:    make(map[string]*client),
		dir:      dir,
		mirror:   mirror,
	}
}

// getOrCreateLocked lazily creates the session entry for a room.
func (h *Hub) getOrCreateLocked(roomID string) *Session {
	if sess, ok := h.sessions[roomID]; ok {
		return sess
	}

	sess := &Session{
		ID:         roomID,
		Members:    make(map[string]struct{}),
		Pending:    make(map[string]*JoinRequest),
		LastActive: time.Now(),
	}
	h.sessions[roomID] = sess
	log.Printf("[Room %s] Session created", roomID)
	return sess
}

// =============================================================================
// Fan-out helpers (call with h.mu held)
// =============================================================================

// sendLocked delivers to a single connection; send failures are logged and
// never propagate to the event that triggered them.
func (h *Hub) sendLocked(c *client, ev Event) {
	if c == nil {
		return
	}
	if err := c.sender.Send(ev); err != nil {
		log.Printf("[Room %s] Failed to send %s to %s: %v", c.roomID, ev.Event, c.id, err)
	}
}

// broadcastLocked sends to every admitted connection in the room. exceptConnID
// may be empty to include everyone.
func (h *Hub) broadcastLocked(roomID string, ev Event, exceptConnID string) {
	for _, c := range h.conns {
		if c.roomID != roomID || c.id == exceptConnID {
			continue
		}
		h.sendLocked(c, ev)
	}
}

// historyPayload keeps the wire shape an array even for an empty log.
func historyPayload(sess *Session) model.History {
	if sess.History == nil {
		return model.History{}
	}
	return sess.History
}

// memberNamesLocked 정렬된 멤버 이름 목록 (user-list payload)
func memberNamesLocked(sess *Session) []string {
	names := make([]string, 0, len(sess.Members))
	for name := range sess.Members {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ownerConnLocked resolves the owner's live connection, if any.
func (h *Hub) ownerConnLocked(sess *Session) *client {
	if sess.Owner == "" {
		return nil
	}
	for _, c := range h.conns {
		if c.roomID == sess.ID && c.name == sess.Owner {
			return c
		}
	}
	return nil
}

// =============================================================================
// Membership & ownership
// =============================================================================

// Join admits a connection directly into a room (ungated path).
func (h *Hub) Join(connID string, sender Sender, roomID, name string) {
	if roomID == "" || name == "" {
		return
	}

	h.mu.Lock()
	sess := h.getOrCreateLocked(roomID)
	c := &client{id: connID, sender: sender}
	h.conns[connID] = c
	newOwner := h.admitLocked(sess, c, name)
	h.mu.Unlock()

	h.persistAdmission(roomID, name, newOwner)
}

// admitLocked performs the in-memory admission bookkeeping and its fan-out.
// Idempotent for a name already in the member set. Returns whether the
// participant became owner.
func (h *Hub) admitLocked(sess *Session, c *client, name string) bool {
	c.roomID = sess.ID
	c.name = name
	sess.Members[name] = struct{}{}
	sess.LastActive = time.Now()

	newOwner := false
	if sess.Owner == "" {
		sess.Owner = name
		newOwner = true
		log.Printf("[Room %s] %s is now owner", sess.ID, name)
	}

	// Admission fan-out: roster to the room, history to the newcomer only,
	// then the owner announcement and the admission confirmation.
	h.broadcastLocked(sess.ID, Event{Event: EventUserList, Data: memberNamesLocked(sess)}, "")
	h.sendLocked(c, Event{Event: EventUpdateHistory, Data: historyPayload(sess)})
	h.broadcastLocked(sess.ID, Event{Event: EventRoomOwner, Data: sess.Owner}, "")
	h.sendLocked(c, Event{Event: EventJoinApproved})

	log.Printf("[Room %s] %s joined (%d members)", sess.ID, name, len(sess.Members))
	return newOwner
}

// persistAdmission mirrors the admission into the directory and Redis.
// Best-effort: failures are logged, the live session is already committed.
func (h *Hub) persistAdmission(roomID, name string, newOwner bool) {
	if h.dir != nil {
		if _, err := h.dir.EnsureRoom(roomID); err != nil {
			log.Printf("[Room %s] Failed to persist room: %v", roomID, err)
		}
		if newOwner {
			if err := h.dir.SetRoomOwner(roomID, name); err != nil {
				log.Printf("[Room %s] Failed to persist owner %s: %v", roomID, name, err)
			}
		}
		if err := h.dir.AddRoomMember(roomID, name); err != nil {
			log.Printf("[Room %s] Failed to persist member %s: %v", roomID, name, err)
		}
	}

	h.mirrorAsync(func(ctx context.Context) {
		h.mirror.UserJoined(ctx, roomID, name)
	})
}

// Disconnect unbinds a connection and cleans up its membership. Safe to call
// twice; an unknown connection id is a no-op.
func (h *Hub) Disconnect(connID string) {
	h.mu.Lock()
	c, ok := h.conns[connID]
	if !ok {
		h.mu.Unlock()
		return
	}
	delete(h.conns, connID)

	if c.roomID == "" {
		// Never admitted; any pending request it left behind expires later.
		h.mu.Unlock()
		return
	}

	sess, ok := h.sessions[c.roomID]
	if !ok {
		h.mu.Unlock()
		return
	}

	delete(sess.Members, c.name)
	sess.LastActive = time.Now()

	wasOwner := c.name == sess.Owner
	if wasOwner {
		// Ownership is cleared, the session and its history stay queryable.
		sess.Owner = ""
		h.broadcastLocked(sess.ID, Event{Event: EventRoomClosed}, "")
		log.Printf("[Room %s] Owner %s disconnected, room closed", sess.ID, c.name)
	} else {
		h.broadcastLocked(sess.ID, Event{Event: EventUserList, Data: memberNamesLocked(sess)}, "")
		log.Printf("[Room %s] %s disconnected (%d members)", sess.ID, c.name, len(sess.Members))
	}
	roomID, name := c.roomID, c.name
	h.mu.Unlock()

	h.mirrorAsync(func(ctx context.Context) {
		h.mirror.UserLeft(ctx, roomID, name)
	})
}

// =============================================================================
// Join approval
// =============================================================================

// RequestJoin runs the gated admission path. A room with no reachable owner
// admits directly (bootstrap); otherwise the owner is asked and the requester
// waits for ResolveJoin.
func (h *Hub) RequestJoin(connID string, sender Sender, roomID, name string) {
	if roomID == "" || name == "" {
		return
	}

	h.mu.Lock()
	sess := h.getOrCreateLocked(roomID)
	c := &client{id: connID, sender: sender}
	h.conns[connID] = c

	ownerConn := h.ownerConnLocked(sess)
	if ownerConn == nil {
		newOwner := h.admitLocked(sess, c, name)
		h.mu.Unlock()
		h.persistAdmission(roomID, name, newOwner)
		return
	}

	req := &JoinRequest{
		ID:        uuid.NewString(),
		RoomID:    roomID,
		Name:      name,
		ConnID:    connID,
		CreatedAt: time.Now(),
	}
	sess.Pending[req.ID] = req
	sess.LastActive = time.Now()

	h.sendLocked(ownerConn, Event{Event: EventJoinApproval, Data: JoinApprovalData{
		RequestID:   req.ID,
		RoomID:      roomID,
		DisplayName: name,
		RequesterID: connID,
	}})
	h.sendLocked(c, Event{Event: EventJoinPending, Data: JoinPendingData{RequestID: req.ID}})
	log.Printf("[Room %s] Join request %s from %s pending approval", roomID, req.ID, name)
	h.mu.Unlock()
}

// ResolveJoin applies the owner's verdict on a pending request. Non-owner
// approvers, unknown request ids, and already-resolved requests are silently
// ignored, so resolution is idempotent.
func (h *Hub) ResolveJoin(approverConnID, requestID string, approved bool) {
	h.mu.Lock()
	approver, ok := h.conns[approverConnID]
	if !ok || approver.roomID == "" {
		h.mu.Unlock()
		return
	}
	sess, ok := h.sessions[approver.roomID]
	if !ok || approver.name != sess.Owner {
		h.mu.Unlock()
		return
	}
	req, ok := sess.Pending[requestID]
	if !ok {
		h.mu.Unlock()
		return
	}
	delete(sess.Pending, requestID)

	if !approved {
		h.sendLocked(h.conns[req.ConnID], Event{Event: EventJoinDenied})
		log.Printf("[Room %s] Join request %s from %s denied", sess.ID, req.ID, req.Name)
		h.mu.Unlock()
		return
	}
	h.mu.Unlock()

	// Suspension point: persist membership before committing the live admit.
	newOwner := false
	if h.dir != nil {
		if _, err := h.dir.EnsureRoom(req.RoomID); err != nil {
			log.Printf("[Room %s] Failed to persist room: %v", req.RoomID, err)
		}
		if err := h.dir.AddRoomMember(req.RoomID, req.Name); err != nil {
			log.Printf("[Room %s] Failed to persist member %s: %v", req.RoomID, req.Name, err)
		}
	}

	// Re-validate after the suspension: the requester may have disconnected
	// and the owner may have left, changing who admission makes owner.
	h.mu.Lock()
	requester, ok := h.conns[req.ConnID]
	if !ok || requester.roomID != "" {
		h.mu.Unlock()
		return
	}
	sess, ok = h.sessions[req.RoomID]
	if !ok {
		h.mu.Unlock()
		return
	}
	newOwner = h.admitLocked(sess, requester, req.Name)
	h.mu.Unlock()

	if newOwner && h.dir != nil {
		if err := h.dir.SetRoomOwner(req.RoomID, req.Name); err != nil {
			log.Printf("[Room %s] Failed to persist owner %s: %v", req.RoomID, req.Name, err)
		}
	}
	h.mirrorAsync(func(ctx context.Context) {
		h.mirror.UserJoined(ctx, req.RoomID, req.Name)
	})
}

// =============================================================================
// Introspection (REST surface / tests)
// =============================================================================

// RoomSnapshot is a read-only view of live session state.
type RoomSnapshot struct {
	RoomID  string   `json:"roomId"`
	Members []string `json:"members"`
	Owner   string   `json:"owner,omitempty"`
	Strokes int      `json:"strokes"`
	Pending int      `json:"pendingRequests"`
}

// Snapshot returns the live state of a room, or false if no session exists.
func (h *Hub) Snapshot(roomID string) (RoomSnapshot, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sess, ok := h.sessions[roomID]
	if !ok {
		return RoomSnapshot{}, false
	}
	return RoomSnapshot{
		RoomID:  sess.ID,
		Members: memberNamesLocked(sess),
		Owner:   sess.Owner,
		Strokes: len(sess.History),
		Pending: len(sess.Pending),
	}, true
}

// mirrorAsync runs a best-effort presence update off the event path.
func (h *Hub) mirrorAsync(fn func(ctx context.Context)) {
	if h.mirror == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		fn(ctx)
	}()
}
