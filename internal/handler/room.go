package handler

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"canvas-backend/internal/auth"
	"canvas-backend/internal/canvas"
	"canvas-backend/internal/directory"
	"canvas-backend/internal/model"
)

// roomStore 방 디렉터리 저장소 (directory.Service가 구현)
type roomStore interface {
	CreateRoom(roomID, name, ownerName string) (*model.Room, error)
	GetRoom(roomID string) (*model.Room, error)
	ListRooms() ([]model.Room, error)
	DeleteRoom(roomID string) error
	AddRoomMember(roomID, username string) error
	RemoveRoomMember(roomID, username string) error
	ListRoomMembers(roomID string) ([]model.RoomMember, error)
}

// RoomHandler 방 CRUD 핸들러. 실시간 세션 상태는 hub에서 읽는다.
type RoomHandler struct {
	rooms roomStore
	hub   *canvas.Hub
}

func NewRoomHandler(rooms roomStore, hub *canvas.Hub) *RoomHandler {
	return &RoomHandler{rooms: rooms, hub: hub}
}

// RoomResponse 방 응답 - 디렉터리 레코드에 라이브 세션 상태를 겹친다
type RoomResponse struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	OwnerName   string   `json:"owner_name,omitempty"`
	CreatedAt   string   `json:"created_at"`
	LiveMembers []string `json:"live_members,omitempty"`
	LiveOwner   string   `json:"live_owner,omitempty"`
}

// CreateRoomRequest 방 생성 요청
type CreateRoomRequest struct {
	Name string `json:"name"`
}

// ListRooms GET /api/rooms
func (h *RoomHandler) ListRooms(c *fiber.Ctx) error {
	rooms, err := h.rooms.ListRooms()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to list rooms",
		})
	}

	responses := make([]RoomResponse, len(rooms))
	for i := range rooms {
		responses[i] = h.toRoomResponse(&rooms[i])
	}

	return c.JSON(fiber.Map{
		"rooms": responses,
		"total": len(responses),
	})
}

// GetRoom GET /api/rooms/:roomId
func (h *RoomHandler) GetRoom(c *fiber.Ctx) error {
	roomID := c.Params("roomId")

	room, err := h.rooms.GetRoom(roomID)
	if err != nil {
		if errors.Is(err, directory.ErrRoomNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "room not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to get room",
		})
	}

	return c.JSON(h.toRoomResponse(room))
}

// CreateRoom POST /api/rooms/create
func (h *RoomHandler) CreateRoom(c *fiber.Ctx) error {
	claims := c.Locals("claims").(*auth.Claims)

	var req CreateRoomRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "name is required",
		})
	}

	room, err := h.rooms.CreateRoom(uuid.NewString(), req.Name, claims.Username)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to create room",
		})
	}

	// 멤버십 기록 실패는 방 생성을 막지 않는다
	_ = h.rooms.AddRoomMember(room.ID, claims.Username)

	return c.Status(fiber.StatusCreated).JSON(h.toRoomResponse(room))
}

// JoinRoom POST /api/rooms/:roomId/join - 영속 멤버십만 기록, 라이브 입장은 소켓으로
func (h *RoomHandler) JoinRoom(c *fiber.Ctx) error {
	claims := c.Locals("claims").(*auth.Claims)
	roomID := c.Params("roomId")

	if _, err := h.rooms.GetRoom(roomID); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "room not found",
		})
	}

	if err := h.rooms.AddRoomMember(roomID, claims.Username); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to join room",
		})
	}

	return c.JSON(fiber.Map{"message": "joined"})
}

// LeaveRoom POST /api/rooms/:roomId/leave
func (h *RoomHandler) LeaveRoom(c *fiber.Ctx) error {
	claims := c.Locals("claims").(*auth.Claims)
	roomID := c.Params("roomId")

	if err := h.rooms.RemoveRoomMember(roomID, claims.Username); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to leave room",
		})
	}

	return c.JSON(fiber.Map{"message": "left"})
}

// DeleteRoom DELETE /api/rooms/:roomId - 방장만 가능
func (h *RoomHandler) DeleteRoom(c *fiber.Ctx) error {
	claims := c.Locals("claims").(*auth.Claims)
	roomID := c.Params("roomId")

	room, err := h.rooms.GetRoom(roomID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "room not found",
		})
	}

	if room.OwnerName != claims.Username {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "only the room owner can delete the room",
		})
	}

	if err := h.rooms.DeleteRoom(roomID); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to delete room",
		})
	}

	return c.JSON(fiber.Map{"message": "room deleted"})
}

// GetRoomMembers GET /api/rooms/:roomId/members - 영속 멤버십 목록
func (h *RoomHandler) GetRoomMembers(c *fiber.Ctx) error {
	roomID := c.Params("roomId")

	members, err := h.rooms.ListRoomMembers(roomID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to list members",
		})
	}

	type memberResponse struct {
		Username string `json:"username"`
		JoinedAt string `json:"joined_at"`
	}
	responses := make([]memberResponse, len(members))
	for i, m := range members {
		responses[i] = memberResponse{
			Username: m.Username,
			JoinedAt: m.JoinedAt.Format(time.RFC3339),
		}
	}

	return c.JSON(fiber.Map{
		"members": responses,
		"total":   len(responses),
	})
}

func (h *RoomHandler) toRoomResponse(room *model.Room) RoomResponse {
	resp := RoomResponse{
		ID:        room.ID,
		Name:      room.Name,
		OwnerName: room.OwnerName,
		CreatedAt: room.CreatedAt.Format(time.RFC3339),
	}

	if h.hub != nil {
		if snap, ok := h.hub.Snapshot(room.ID); ok {
			resp.LiveMembers = snap.Members
			resp.LiveOwner = snap.Owner
		}
	}
	return resp
}
