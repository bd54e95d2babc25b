package chat

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/supportal/api/model"
	"github.com/supportal/api/services"
	"github.com/supportal/api/utils/middleware"
	"github.com/supportal/api/utils/response"
	"github.com/supportal/api/utils/validation"
	"gorm.io/gorm"
)

// ChatHandler handles chat widget requests. The widget serves anonymous
// visitors, so most endpoints work with or without a token.
type ChatHandler struct {
	db        *gorm.DB
	chat      *services.ChatService
	validator *validation.Validator
}

// NewChatHandler creates a new chat handler
func NewChatHandler(db *gorm.DB, chat *services.ChatService) *ChatHandler {
	return &ChatHandler{
		db:        db,
		chat:      chat,
		validator: validation.NewValidator(),
	}
}

// SendMessageRequest is the chat widget's message payload
type SendMessageRequest struct {
	ConversationID *uint  `json:"conversationId"`
	Message        string `json:"message" validate:"required,max=4000"`
}

// SendMessage runs the full chat pipeline: persists the user message,
// retrieves knowledge base context and returns the generated answer. An
// unknown conversationId silently starts a fresh conversation.
func (h *ChatHandler) SendMessage(c *fiber.Ctx) error {
	var req SendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	var userID *uint
	if user, ok := middleware.GetUser(c); ok {
		userID = &user.ID
	}

	result, err := h.chat.HandleMessage(c.Context(), services.ChatRequest{
		ConversationID: req.ConversationID,
		SessionID:      c.Get("X-Session-Id"),
		UserID:         userID,
		Content:        req.Message,
		Metadata: model.JSONMap{
			"user_agent": c.Get("User-Agent"),
			"referrer":   c.Get("Referer"),
			"ip":         c.IP(),
		},
	})
	if err != nil {
		return response.InternalServerError(c, "Failed to process message")
	}

	return response.Success(c, result)
}

// GetConversation returns a conversation's metadata
func (h *ChatHandler) GetConversation(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return response.BadRequest(c, "Invalid conversation id")
	}

	conv, err := h.chat.GetConversation(c.Context(), id)
	if err != nil {
		if errors.Is(err, services.ErrConversationNotFound) {
			return response.NotFound(c, "Conversation not found")
		}
		return response.InternalServerError(c, "Failed to load conversation")
	}

	if err := h.authorize(c, conv); err != nil {
		return err
	}

	return response.Success(c, conv)
}

// GetMessages returns a conversation's messages in order
func (h *ChatHandler) GetMessages(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return response.BadRequest(c, "Invalid conversation id")
	}

	conv, err := h.chat.GetConversation(c.Context(), id)
	if err != nil {
		if errors.Is(err, services.ErrConversationNotFound) {
			return response.NotFound(c, "Conversation not found")
		}
		return response.InternalServerError(c, "Failed to load conversation")
	}

	if err := h.authorize(c, conv); err != nil {
		return err
	}

	messages, err := h.chat.ListMessages(c.Context(), id)
	if err != nil {
		return response.InternalServerError(c, "Failed to load messages")
	}
	return response.Success(c, messages)
}

// CloseConversation marks a conversation closed
func (h *ChatHandler) CloseConversation(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return response.BadRequest(c, "Invalid conversation id")
	}

	conv, err := h.chat.GetConversation(c.Context(), id)
	if err != nil {
		if errors.Is(err, services.ErrConversationNotFound) {
			return response.NotFound(c, "Conversation not found")
		}
		return response.InternalServerError(c, "Failed to load conversation")
	}

	if err := h.authorize(c, conv); err != nil {
		return err
	}

	if err := h.chat.CloseConversation(c.Context(), id); err != nil {
		return response.InternalServerError(c, "Failed to close conversation")
	}
	return response.SuccessWithMessage(c, "Conversation closed", nil)
}

// DeleteConversation removes a conversation. Admin only, enforced at the
// route layer.
func (h *ChatHandler) DeleteConversation(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return response.BadRequest(c, "Invalid conversation id")
	}

	if err := h.chat.DeleteConversation(c.Context(), id); err != nil {
		if errors.Is(err, services.ErrConversationNotFound) {
			return response.NotFound(c, "Conversation not found")
		}
		return response.InternalServerError(c, "Failed to delete conversation")
	}
	return response.NoContent(c)
}

// authorize checks conversation access: the owning user, the matching
// anonymous session, or staff.
func (h *ChatHandler) authorize(c *fiber.Ctx, conv *model.Conversation) error {
	if user, ok := middleware.GetUser(c); ok {
		if user.IsStaff() {
			return nil
		}
		if conv.UserID != nil && *conv.UserID == user.ID {
			return nil
		}
	}

	if sessionID := c.Get("X-Session-Id"); sessionID != "" && sessionID == conv.SessionID {
		return nil
	}

	return response.Forbidden(c, "Not allowed to access this conversation")
}

func parseID(c *fiber.Ctx) (uint, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	return uint(id), err
}
