package canvas

// Event is the wire envelope for everything flowing over a canvas socket,
// in both directions: {"event": "...", "data": ...}.
type Event struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// Inbound event names (client → server)
const (
	EventJoinRoom       = "join-room"
	EventRequestJoin    = "request-join"
	EventJoinApprove    = "join-approve"
	EventDraw           = "draw"
	EventUpdateHistory  = "update-history"
	EventRequestHistory = "request-history"
	EventClearCanvas    = "clear-canvas"
	EventSaveVersion    = "save-version"
	EventLoadVersion    = "load-version"
	EventPDFUploaded    = "pdf-uploaded"
	EventScrapeRequest  = "share-scrape-request"
)

// Outbound event names (server → client)
const (
	EventUserList       = "user-list"
	EventRoomOwner      = "room-owner"
	EventJoinPending    = "join-pending"
	EventJoinApproval   = "join-approval"
	EventJoinApproved   = "join-approved"
	EventJoinDenied     = "join-denied"
	EventRoomClosed     = "room-closed"
	EventVersionSaved   = "version-saved-success"
	EventHistoryUpdated = "history-updated"
	EventPDFReceived    = "pdf-received"
	EventScrapeShared   = "scrape-shared"
	EventError          = "error"
)

// JoinApprovalData is delivered to the room owner when a gated join arrives.
type JoinApprovalData struct {
	RequestID   string `json:"requestId"`
	RoomID      string `json:"roomId"`
	DisplayName string `json:"displayName"`
	RequesterID string `json:"requesterConnectionId"`
}

// JoinPendingData acknowledges a gated join to the requester.
type JoinPendingData struct {
	RequestID string `json:"requestId"`
}

// VersionSavedData confirms a snapshot save to the requesting connection.
type VersionSavedData struct {
	VersionID   string `json:"versionId"`
	CreatedAt   string `json:"createdAt"`
	CreatorName string `json:"creatorName"`
}

// PDFReceivedData announces an uploaded document to the whole room.
type PDFReceivedData struct {
	URL string `json:"url"`
}

// ScrapeSharedData fans scraped page content out to the whole room.
type ScrapeSharedData struct {
	FromUser string `json:"fromUser"`
	Content  string `json:"content"`
}
