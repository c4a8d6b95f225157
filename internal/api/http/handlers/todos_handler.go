package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/notes-service/internal/api/dto"
	"github.com/spec-kit/notes-service/internal/auth"
	"github.com/spec-kit/notes-service/internal/service"
	apperrors "github.com/spec-kit/notes-service/pkg/util/errorutil"
)

// TodosHandler exposes checklist endpoints on a note.
type TodosHandler struct {
	notes *service.NoteService
}

// NewTodosHandler constructs handler.
func NewTodosHandler(notes *service.NoteService) *TodosHandler {
	return &TodosHandler{notes: notes}
}

// Add handles POST /api/todos/:noteId.
func (h *TodosHandler) Add(c *fiber.Ctx) error {
	var req dto.TodoItemRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	input := service.TodoInput{Position: req.Position}
	if req.Text != nil {
		input.Text = *req.Text
	}
	if req.Completed != nil {
		input.Completed = *req.Completed
	}

	identity, _ := auth.IdentityFromContext(c)
	item, err := h.notes.AddTodo(c.UserContext(), identity, c.Params("noteId"), input)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"success": true, "todoItem": item})
}

// Update handles PUT /api/todos/:noteId/:todoId.
func (h *TodosHandler) Update(c *fiber.Ctx) error {
	var req dto.TodoItemRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	identity, _ := auth.IdentityFromContext(c)
	item, err := h.notes.UpdateTodo(c.UserContext(), identity, c.Params("noteId"), c.Params("todoId"), service.TodoPatch{
		Text:      req.Text,
		Completed: req.Completed,
		Position:  req.Position,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "todoItem": item})
}

// Delete handles DELETE /api/todos/:noteId/:todoId.
func (h *TodosHandler) Delete(c *fiber.Ctx) error {
	identity, _ := auth.IdentityFromContext(c)
	if err := h.notes.DeleteTodo(c.UserContext(), identity, c.Params("noteId"), c.Params("todoId")); err != nil {
		return err
	}
	return c.JSON(dto.MessageResponse{Success: true, Message: "Todo item deleted successfully"})
}
