package model

import (
	"encoding/json"
	"time"
)

// User 사용자 계정 -- the display name participants are known by inside rooms
type User struct {
	ID           int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Username     string    `gorm:"type:varchar(100);uniqueIndex;not null" json:"username"`
	Email        string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"type:varchar(255);not null" json:"-"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (User) TableName() string {
	return "users"
}

// Room durable directory record for one canvas room. OwnerName mirrors the
// first admitted participant; it is set once and survives live-owner
// disconnects (the session coordinator only clears in-memory ownership).
type Room struct {
	ID        string    `gorm:"type:varchar(100);primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(200)" json:"name"`
	OwnerName string    `gorm:"type:varchar(100)" json:"owner_name"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`

	// Relations
	Members  []RoomMember    `gorm:"foreignKey:RoomID" json:"members,omitempty"`
	Versions []CanvasVersion `gorm:"foreignKey:RoomID" json:"versions,omitempty"`
}

func (Room) TableName() string {
	return "rooms"
}

// RoomMember one username's durable membership in a room
type RoomMember struct {
	ID       int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	RoomID   string    `gorm:"type:varchar(100);not null;uniqueIndex:idx_room_member" json:"room_id"`
	Username string    `gorm:"type:varchar(100);not null;uniqueIndex:idx_room_member" json:"username"`
	JoinedAt time.Time `gorm:"autoCreateTime" json:"joined_at"`
}

func (RoomMember) TableName() string {
	return "room_members"
}

// CanvasVersion a named, immutable snapshot of a room's stroke history.
// Never mutated after creation; deleted only by its creator.
type CanvasVersion struct {
	ID          string    `gorm:"type:varchar(64);primaryKey" json:"id"`
	RoomID      string    `gorm:"type:varchar(100);not null;index:idx_version_room_created" json:"room_id"`
	CreatorName string    `gorm:"type:varchar(100);not null" json:"creator_name"`
	VersionName string    `gorm:"type:varchar(200);not null" json:"version_name"`
	HistoryData string    `gorm:"type:jsonb;not null" json:"-"` // JSON array of strokes
	CreatedAt   time.Time `gorm:"autoCreateTime;index:idx_version_room_created" json:"created_at"`
}

func (CanvasVersion) TableName() string {
	return "canvas_versions"
}

// SetHistory serializes the stroke log into the jsonb column.
func (v *CanvasVersion) SetHistory(h History) error {
	data, err := json.Marshal(h)
	if err != nil {
		return err
	}
	v.HistoryData = string(data)
	return nil
}

// ParseHistory deserializes the stored stroke log.
func (v *CanvasVersion) ParseHistory() (History, error) {
	if v.HistoryData == "" {
		return History{}, nil
	}
	var h History
	if err := json.Unmarshal([]byte(v.HistoryData), &h); err != nil {
		return nil, err
	}
	return h, nil
}

// VersionSummary list-view projection of a CanvasVersion; the history payload
// is deliberately omitted.
type VersionSummary struct {
	ID          string    `json:"id"`
	VersionName string    `json:"version_name"`
	CreatorName string    `json:"creator_name"`
	CreatedAt   time.Time `json:"created_at"`
}
