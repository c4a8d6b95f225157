package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/notes-service/internal/api/dto"
	"github.com/spec-kit/notes-service/internal/auth"
	"github.com/spec-kit/notes-service/internal/service"
	apperrors "github.com/spec-kit/notes-service/pkg/util/errorutil"
)

// NotesHandler exposes note endpoints. All routes sit behind the authentication gate.
type NotesHandler struct {
	notes *service.NoteService
}

// NewNotesHandler constructs handler.
func NewNotesHandler(notes *service.NoteService) *NotesHandler {
	return &NotesHandler{notes: notes}
}

// Create handles POST /api/notes.
func (h *NotesHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateNoteRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	identity, _ := auth.IdentityFromContext(c)
	note, err := h.notes.Create(c.UserContext(), identity, service.NoteInput{
		Title:       req.Title,
		Content:     req.Content,
		ContentHTML: req.ContentHTML,
		Tags:        req.Tags,
		Reminder:    req.Reminder,
		TodoItems:   req.TodoItems,
		IsPinned:    req.IsPinned,
		IsArchived:  req.IsArchived,
		Color:       req.Color,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"success": true,
		"note":    dto.NewNoteResponse(note),
	})
}

// List handles GET /api/notes.
func (h *NotesHandler) List(c *fiber.Ctx) error {
	identity, _ := auth.IdentityFromContext(c)
	notes, err := h.notes.List(c.UserContext(), identity, parseNoteQuery(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success": true,
		"count":   len(notes),
		"notes":   dto.NewNoteResponses(notes),
	})
}

// Get handles GET /api/notes/:id.
func (h *NotesHandler) Get(c *fiber.Ctx) error {
	identity, _ := auth.IdentityFromContext(c)
	note, err := h.notes.Get(c.UserContext(), identity, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "note": dto.NewNoteResponse(note)})
}

// Update handles PUT /api/notes/:id.
func (h *NotesHandler) Update(c *fiber.Ctx) error {
	var req dto.UpdateNoteRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	reminderSet, reminder, err := req.ReminderChange()
	if err != nil {
		return apperrors.NewValidationError("invalid reminder", map[string]any{"reminder": "must be an RFC 3339 timestamp or null"})
	}

	patch := service.NotePatch{
		Title:       req.Title,
		Content:     req.Content,
		ContentHTML: req.ContentHTML,
		Tags:        req.Tags,
		TodoItems:   req.TodoItems,
		IsPinned:    req.IsPinned,
		IsArchived:  req.IsArchived,
		Color:       req.Color,
	}
	if reminderSet {
		patch.Reminder = reminder
		patch.ClearReminder = reminder == nil
	}

	identity, _ := auth.IdentityFromContext(c)
	note, err := h.notes.Update(c.UserContext(), identity, c.Params("id"), patch)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "note": dto.NewNoteResponse(note)})
}

// Delete handles DELETE /api/notes/:id.
func (h *NotesHandler) Delete(c *fiber.Ctx) error {
	identity, _ := auth.IdentityFromContext(c)
	if err := h.notes.Delete(c.UserContext(), identity, c.Params("id")); err != nil {
		return err
	}
	return c.JSON(dto.MessageResponse{Success: true, Message: "Note deleted successfully"})
}

// Tags handles GET /api/notes/tags/all.
func (h *NotesHandler) Tags(c *fiber.Ctx) error {
	identity, _ := auth.IdentityFromContext(c)
	tags, err := h.notes.Tags(c.UserContext(), identity)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "count": len(tags), "tags": tags})
}

// TextContent handles GET /api/notes/:id/text-content.
func (h *NotesHandler) TextContent(c *fiber.Ctx) error {
	identity, _ := auth.IdentityFromContext(c)
	text, err := h.notes.TextContent(c.UserContext(), identity, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success":     true,
		"noteId":      text.NoteID,
		"title":       text.Title,
		"textContent": text.TextContent,
	})
}

func parseNoteQuery(c *fiber.Ctx) service.NoteListFilter {
	filter := service.NoteListFilter{
		Tag:         c.Query("tag"),
		Search:      c.Query("search"),
		HasReminder: c.Query("hasReminder") == "true",
	}
	if v := c.Query("isPinned"); v != "" {
		pinned := v == "true"
		filter.IsPinned = &pinned
	}
	if v := c.Query("isArchived"); v != "" {
		archived := v == "true"
		filter.IsArchived = &archived
	}
	return filter
}
