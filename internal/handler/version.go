package handler

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"canvas-backend/internal/auth"
	"canvas-backend/internal/directory"
	"canvas-backend/internal/model"
)

// versionStore 버전 스냅샷 저장소 (directory.Service가 구현)
type versionStore interface {
	ListVersions(roomID string) ([]model.VersionSummary, error)
	GetVersion(versionID string) (*model.CanvasVersion, error)
	DeleteVersion(versionID, requester string) error
}

// VersionHandler 버전 스냅샷 REST 핸들러
type VersionHandler struct {
	versions versionStore
}

func NewVersionHandler(versions versionStore) *VersionHandler {
	return &VersionHandler{versions: versions}
}

// VersionResponse 목록용 버전 응답 (history 페이로드 제외)
type VersionResponse struct {
	VersionID   string `json:"versionId"`
	VersionName string `json:"versionName"`
	CreatorName string `json:"creatorName"`
	CreatedAt   string `json:"createdAt"`
}

// ListVersions GET /api/canvas/:roomId/versions - 최신순
func (h *VersionHandler) ListVersions(c *fiber.Ctx) error {
	roomID := c.Params("roomId")
	if roomID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "room id is required",
		})
	}

	summaries, err := h.versions.ListVersions(roomID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to list versions",
		})
	}

	responses := make([]VersionResponse, len(summaries))
	for i, s := range summaries {
		responses[i] = VersionResponse{
			VersionID:   s.ID,
			VersionName: s.VersionName,
			CreatorName: s.CreatorName,
			CreatedAt:   s.CreatedAt.Format(time.RFC3339),
		}
	}

	return c.JSON(fiber.Map{
		"versions": responses,
		"total":    len(responses),
	})
}

// GetVersion GET /api/canvas/versions/:versionId - history 포함 단건 조회
func (h *VersionHandler) GetVersion(c *fiber.Ctx) error {
	versionID := c.Params("versionId")

	version, err := h.versions.GetVersion(versionID)
	if err != nil {
		if errors.Is(err, directory.ErrVersionNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "version not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to get version",
		})
	}

	history, err := version.ParseHistory()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to decode version history",
		})
	}

	return c.JSON(fiber.Map{
		"versionId":   version.ID,
		"roomId":      version.RoomID,
		"versionName": version.VersionName,
		"creatorName": version.CreatorName,
		"createdAt":   version.CreatedAt.Format(time.RFC3339),
		"history":     history,
	})
}

// DeleteVersion DELETE /api/canvas/versions/:versionId - 생성자만 가능
func (h *VersionHandler) DeleteVersion(c *fiber.Ctx) error {
	claims := c.Locals("claims").(*auth.Claims)
	versionID := c.Params("versionId")

	err := h.versions.DeleteVersion(versionID, claims.Username)
	if err != nil {
		switch {
		case errors.Is(err, directory.ErrVersionNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "version not found",
			})
		case errors.Is(err, directory.ErrNotCreator):
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "only the creator can delete this version",
			})
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to delete version",
			})
		}
	}

	return c.JSON(fiber.Map{"message": "version deleted"})
}
