package canvas

import (
	"context"
	"log"
	"time"
)

// CleanupIdle evicts empty sessions that have been idle longer than maxIdle
// and expires pending join requests older than pendingTTL (the requester gets
// a denial). A zero duration disables the corresponding sweep. Meant to run
// from a ticker goroutine.
func (h *Hub) CleanupIdle(maxIdle, pendingTTL time.Duration) {
	now := time.Now()
	var closed []string

	h.mu.Lock()
	for roomID, sess := range h.sessions {
		if pendingTTL > 0 {
			for id, req := range sess.Pending {
				if now.Sub(req.CreatedAt) < pendingTTL {
					continue
				}
				delete(sess.Pending, id)
				h.sendLocked(h.conns[req.ConnID], Event{Event: EventJoinDenied})
				log.Printf("[Room %s] Join request %s from %s expired", roomID, id, req.Name)
			}
		}

		if maxIdle > 0 && len(sess.Members) == 0 && len(sess.Pending) == 0 &&
			now.Sub(sess.LastActive) >= maxIdle {
			delete(h.sessions, roomID)
			closed = append(closed, roomID)
			log.Printf("[Room %s] Evicted idle session", roomID)
		}
	}
	h.mu.Unlock()

	for _, roomID := range closed {
		roomID := roomID
		h.mirrorAsync(func(ctx context.Context) {
			h.mirror.RoomClosed(ctx, roomID)
		})
	}
}

// RunCleanup loops CleanupIdle on the given interval until ctx is cancelled.
func (h *Hub) RunCleanup(ctx context.Context, interval, maxIdle, pendingTTL time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.CleanupIdle(maxIdle, pendingTTL)
		}
	}
}
