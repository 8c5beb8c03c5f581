package handler

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"canvas-backend/internal/storage"
	"canvas-backend/internal/tools"
)

// ToolsHandler 문서 배치 작업 프록시 + PDF 업로드 presign
type ToolsHandler struct {
	client *tools.Client
	s3     *storage.S3Service
}

func NewToolsHandler(client *tools.Client, s3 *storage.S3Service) *ToolsHandler {
	return &ToolsHandler{client: client, s3: s3}
}

// PresignUploadRequest PDF 업로드용 presigned URL 요청
type PresignUploadRequest struct {
	RoomID      string `json:"room_id"`
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
}

// PresignUpload POST /api/tools/upload-pdf/presign
func (h *ToolsHandler) PresignUpload(c *fiber.Ctx) error {
	if h.s3 == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "S3 service is not configured",
		})
	}

	var req PresignUploadRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	if req.RoomID == "" || req.FileName == "" || req.ContentType == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "room_id, file_name and content_type are required",
		})
	}

	presigned, err := h.s3.GenerateUploadURL(req.RoomID, req.FileName, req.ContentType)
	if err != nil {
		log.Printf("[Tools] Failed to presign upload: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to generate presigned URL",
		})
	}

	return c.JSON(fiber.Map{
		"upload_url": presigned.URL,
		"key":        presigned.Key,
		"public_url": h.s3.GetPublicURL(presigned.Key),
		"expires_at": presigned.ExpiresAt,
	})
}

// Scrape POST /api/tools/scrape {url}
func (h *ToolsHandler) Scrape(c *fiber.Ctx) error {
	var req struct {
		URL string `json:"url"`
	}
	if err := c.BodyParser(&req); err != nil || req.URL == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "url is required",
		})
	}

	content, err := h.client.Scrape(c.UserContext(), req.URL)
	if err != nil {
		log.Printf("[Tools] Scrape failed for %s: %v", req.URL, err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "scraper failed",
		})
	}

	return c.JSON(fiber.Map{"content": content})
}

// GenerateQuestions POST /api/tools/questions {syllabus_url, pyqs_url}
func (h *ToolsHandler) GenerateQuestions(c *fiber.Ctx) error {
	var req struct {
		SyllabusURL string `json:"syllabus_url"`
		PyqsURL     string `json:"pyqs_url"`
	}
	if err := c.BodyParser(&req); err != nil || req.SyllabusURL == "" || req.PyqsURL == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "syllabus_url and pyqs_url are required",
		})
	}

	questions, err := h.client.GenerateQuestions(c.UserContext(), req.SyllabusURL, req.PyqsURL)
	if err != nil {
		log.Printf("[Tools] Question generation failed: %v", err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "failed to generate questions",
		})
	}

	return c.JSON(fiber.Map{"questions": questions})
}

// Summarize POST /api/tools/summarize {file_url}
func (h *ToolsHandler) Summarize(c *fiber.Ctx) error {
	var req struct {
		FileURL string `json:"file_url"`
	}
	if err := c.BodyParser(&req); err != nil || req.FileURL == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "file_url is required",
		})
	}

	summary, err := h.client.SummarizePPT(c.UserContext(), req.FileURL)
	if err != nil {
		log.Printf("[Tools] Summarization failed: %v", err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "summarization failed",
		})
	}

	return c.JSON(fiber.Map{"summary": summary})
}
