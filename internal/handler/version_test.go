package handler

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canvas-backend/internal/auth"
	"canvas-backend/internal/directory"
	"canvas-backend/internal/model"
)

type fakeVersionStore struct {
	versions map[string]*model.CanvasVersion
}

func newFakeVersionStore() *fakeVersionStore {
	return &fakeVersionStore{versions: make(map[string]*model.CanvasVersion)}
}

func (s *fakeVersionStore) add(id, roomID, creator, name string) {
	v := &model.CanvasVersion{
		ID:          id,
		RoomID:      roomID,
		CreatorName: creator,
		VersionName: name,
		CreatedAt:   time.Now(),
	}
	_ = v.SetHistory(model.History{model.NewText(model.TextStroke{X: 1, Y: 2, Text: "hi", Color: "#000"})})
	s.versions[id] = v
}

func (s *fakeVersionStore) ListVersions(roomID string) ([]model.VersionSummary, error) {
	var out []model.VersionSummary
	for _, v := range s.versions {
		if v.RoomID == roomID {
			out = append(out, model.VersionSummary{
				ID: v.ID, VersionName: v.VersionName,
				CreatorName: v.CreatorName, CreatedAt: v.CreatedAt,
			})
		}
	}
	return out, nil
}

func (s *fakeVersionStore) GetVersion(versionID string) (*model.CanvasVersion, error) {
	v, ok := s.versions[versionID]
	if !ok {
		return nil, directory.ErrVersionNotFound
	}
	return v, nil
}

func (s *fakeVersionStore) DeleteVersion(versionID, requester string) error {
	v, ok := s.versions[versionID]
	if !ok {
		return directory.ErrVersionNotFound
	}
	if v.CreatorName != requester {
		return directory.ErrNotCreator
	}
	delete(s.versions, versionID)
	return nil
}

func newVersionApp(username string, store versionStore) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("claims", &auth.Claims{Username: username})
		return c.Next()
	})

	h := NewVersionHandler(store)
	app.Get("/api/canvas/versions/:versionId", h.GetVersion)
	app.Delete("/api/canvas/versions/:versionId", h.DeleteVersion)
	app.Get("/api/canvas/:roomId/versions", h.ListVersions)
	return app
}

func TestDeleteVersionRequiresCreator(t *testing.T) {
	store := newFakeVersionStore()
	store.add("v1", "R1", "bob", "first")

	app := newVersionApp("alice", store)
	resp, err := app.Test(httptest.NewRequest("DELETE", "/api/canvas/versions/v1", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	// Snapshot stays intact.
	_, ok := store.versions["v1"]
	assert.True(t, ok)
}

func TestDeleteVersionByCreator(t *testing.T) {
	store := newFakeVersionStore()
	store.add("v1", "R1", "bob", "first")

	app := newVersionApp("bob", store)
	resp, err := app.Test(httptest.NewRequest("DELETE", "/api/canvas/versions/v1", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Empty(t, store.versions)
}

func TestDeleteVersionNotFound(t *testing.T) {
	app := newVersionApp("bob", newFakeVersionStore())
	resp, err := app.Test(httptest.NewRequest("DELETE", "/api/canvas/versions/missing", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestListVersionsProjection(t *testing.T) {
	store := newFakeVersionStore()
	store.add("v1", "R1", "bob", "first")
	store.add("v2", "R2", "bob", "other-room")

	app := newVersionApp("alice", store)
	resp, err := app.Test(httptest.NewRequest("GET", "/api/canvas/R1/versions", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var parsed struct {
		Versions []VersionResponse `json:"versions"`
		Total    int               `json:"total"`
	}
	require.NoError(t, json.Unmarshal(body, &parsed))
	require.Equal(t, 1, parsed.Total)
	assert.Equal(t, "v1", parsed.Versions[0].VersionID)
	assert.Equal(t, "bob", parsed.Versions[0].CreatorName)
	assert.Equal(t, "first", parsed.Versions[0].VersionName)
}

func TestGetVersionIncludesHistory(t *testing.T) {
	store := newFakeVersionStore()
	store.add("v1", "R1", "bob", "first")

	app := newVersionApp("alice", store)
	resp, err := app.Test(httptest.NewRequest("GET", "/api/canvas/versions/v1", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var parsed struct {
		RoomID  string        `json:"roomId"`
		History model.History `json:"history"`
	}
	require.NoError(t, json.Unmarshal(body, &parsed))
	assert.Equal(t, "R1", parsed.RoomID)
	require.Len(t, parsed.History, 1)
	assert.Equal(t, model.StrokeKindText, parsed.History[0].Kind)
}
