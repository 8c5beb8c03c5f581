package handler

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"

	"canvas-backend/internal/canvas"
	"canvas-backend/internal/model"
)

// CanvasWSHandler binds one websocket connection to the room session hub for
// its lifetime and routes envelope events both ways.
type CanvasWSHandler struct {
	hub          *canvas.Hub
	writeTimeout time.Duration
}

func NewCanvasWSHandler(hub *canvas.Hub, writeTimeout time.Duration) *CanvasWSHandler {
	return &CanvasWSHandler{hub: hub, writeTimeout: writeTimeout}
}

// wsEnvelope 인바운드 이벤트 봉투: {"event": "...", "data": ...}
type wsEnvelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type joinPayload struct {
	RoomID      string `json:"roomId"`
	DisplayName string `json:"displayName"`
}

type joinApprovePayload struct {
	RequestID string `json:"requestId"`
	Approved  bool   `json:"approved"`
}

type saveVersionPayload struct {
	RoomID      string        `json:"roomId"`
	VersionName string        `json:"versionName"`
	History     model.History `json:"history"`
}

type loadVersionPayload struct {
	VersionID string `json:"versionId"`
}

type pdfUploadedPayload struct {
	RoomID string `json:"roomId"`
	URL    string `json:"url"`
}

type scrapeRequestPayload struct {
	RoomID  string `json:"roomId"`
	Content string `json:"content"`
}

// wsSender serializes writes to one connection. canvas.Sender implementation.
type wsSender struct {
	conn    *websocket.Conn
	timeout time.Duration
	mu      sync.Mutex
}

func (s *wsSender) Send(ev canvas.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timeout > 0 {
		s.conn.SetWriteDeadline(time.Now().Add(s.timeout))
	}
	return s.conn.WriteJSON(ev)
}

// HandleWebSocket runs the per-connection read loop. The upgrade middleware
// has already verified the JWT and placed username/connID in Locals.
func (h *CanvasWSHandler) HandleWebSocket(c *websocket.Conn) {
	username, ok1 := c.Locals("username").(string)
	connID, ok2 := c.Locals("connID").(string)
	if !ok1 || !ok2 || username == "" || connID == "" {
		c.WriteMessage(websocket.TextMessage, []byte(`{"event":"error","data":"invalid session"}`))
		c.Close()
		return
	}

	sender := &wsSender{conn: c, timeout: h.writeTimeout}
	log.Printf("[Canvas] Connection %s opened (user: %s)", connID, username)

	// 연결 해제 시 정리 - 멤버십 정리는 무조건 수행
	defer func() {
		h.hub.Disconnect(connID)
		c.Close()
		log.Printf("[Canvas] Connection %s closed (user: %s)", connID, username)
	}()

	for {
		_, msgBytes, err := c.ReadMessage()
		if err != nil {
			break
		}

		var env wsEnvelope
		if err := json.Unmarshal(msgBytes, &env); err != nil {
			continue
		}

		h.dispatch(connID, username, sender, env)
	}
}

// dispatch routes one inbound envelope. Malformed payloads are dropped
// without a reply; a failure here must never take the connection down.
func (h *CanvasWSHandler) dispatch(connID, username string, sender *wsSender, env wsEnvelope) {
	switch env.Event {
	case canvas.EventJoinRoom:
		var p joinPayload
		if json.Unmarshal(env.Data, &p) != nil {
			return
		}
		h.hub.Join(connID, sender, p.RoomID, displayName(p, username))

	case canvas.EventRequestJoin:
		var p joinPayload
		if json.Unmarshal(env.Data, &p) != nil {
			return
		}
		h.hub.RequestJoin(connID, sender, p.RoomID, displayName(p, username))

	case canvas.EventJoinApprove:
		var p joinApprovePayload
		if json.Unmarshal(env.Data, &p) != nil {
			return
		}
		h.hub.ResolveJoin(connID, p.RequestID, p.Approved)

	case canvas.EventDraw:
		var stroke model.Stroke
		if json.Unmarshal(env.Data, &stroke) != nil {
			return
		}
		h.hub.Append(connID, stroke)

	case canvas.EventUpdateHistory:
		var history model.History
		if json.Unmarshal(env.Data, &history) != nil {
			return
		}
		h.hub.Replace(connID, history)

	case canvas.EventRequestHistory:
		h.hub.ReplayTo(connID)

	case canvas.EventClearCanvas:
		h.hub.Clear(connID)

	case canvas.EventSaveVersion:
		var p saveVersionPayload
		if json.Unmarshal(env.Data, &p) != nil {
			return
		}
		h.hub.SaveVersion(connID, p.RoomID, p.VersionName, p.History)

	case canvas.EventLoadVersion:
		var p loadVersionPayload
		if json.Unmarshal(env.Data, &p) != nil {
			return
		}
		h.hub.LoadVersion(connID, p.VersionID)

	case canvas.EventPDFUploaded:
		var p pdfUploadedPayload
		if json.Unmarshal(env.Data, &p) != nil {
			return
		}
		h.hub.SharePDF(connID, p.RoomID, p.URL)

	case canvas.EventScrapeRequest:
		var p scrapeRequestPayload
		if json.Unmarshal(env.Data, &p) != nil {
			return
		}
		h.hub.ShareScrape(connID, p.RoomID, p.Content)

	default:
		// Unknown events are ignored.
	}
}

// displayName 클라이언트가 보낸 이름이 없으면 인증된 username 사용
func displayName(p joinPayload, username string) string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return username
}
