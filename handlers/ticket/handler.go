package ticket

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

// maxAttachmentSize caps ticket attachments at 10 MB
const maxAttachmentSize = 10 << 20

// TicketHandler handles support ticket requests
type TicketHandler struct {
	db        *gorm.DB
	tickets   *services.TicketService
	validator *validation.Validator
}

// NewTicketHandler creates a new ticket handler
func NewTicketHandler(db *gorm.DB, tickets *services.TicketService) *TicketHandler {
	return &TicketHandler{
		db:        db,
		tickets:   tickets,
		validator: validation.NewValidator(),
	}
}

// Create opens a new ticket for the authenticated user
func (h *TicketHandler) Create(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}

	var input services.CreateTicketInput
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(input); err != nil {
		return response.ValidationError(c, err)
	}

	ticket, err := h.tickets.Create(c.Context(), user, input)
	if err != nil {
		return response.InternalServerError(c, "Failed to create ticket")
	}
	return response.Created(c, ticket)
}

// List returns tickets visible to the viewer, filtered and paginated
func (h *TicketHandler) List(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}

	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	limit := c.QueryInt("limit", 20)

	opts := services.TicketListOptions{
		Status:   model.TicketStatus(c.Query("status")),
		Priority: model.TicketPriority(c.Query("priority")),
		Limit:    limit,
		Offset:   (page - 1) * limit,
	}

	if assigneeStr := c.Query("assignee_id"); assigneeStr != "" && user.IsStaff() {
		assigneeID, err := strconv.ParseUint(assigneeStr, 10, 64)
		if err != nil {
			return response.BadRequest(c, "Invalid assignee_id")
		}
		id := uint(assigneeID)
		opts.AssigneeID = &id
	}

	tickets, total, err := h.tickets.List(c.Context(), user, opts)
	if err != nil {
		return response.InternalServerError(c, "Failed to list tickets")
	}

	return response.Paginated(c, tickets, response.CalculatePagination(page, opts.Limit, total))
}

// Get returns a single ticket with its comments and attachments
func (h *TicketHandler) Get(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}

	id, err := parseID(c)
	if err != nil {
		return response.BadRequest(c, "Invalid ticket id")
	}

	ticket, err := h.tickets.GetByID(c.Context(), user, id)
	if err != nil {
		return ticketError(c, err, "Failed to load ticket")
	}
	return response.Success(c, ticket)
}

// UpdateStatusRequest carries a ticket status transition
type UpdateStatusRequest struct {
	Status model.TicketStatus `json:"status" validate:"required,oneof=open in_progress waiting_for_customer resolved closed"`
}

// UpdateStatus moves a ticket through its workflow. Staff only.
func (h *TicketHandler) UpdateStatus(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return response.BadRequest(c, "Invalid ticket id")
	}

	var req UpdateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	ticket, err := h.tickets.UpdateStatus(c.Context(), id, req.Status)
	if err != nil {
		if errors.Is(err, services.ErrInvalidTransition) {
			return response.BadRequest(c, err.Error())
		}
		return ticketError(c, err, "Failed to update ticket")
	}
	return response.Success(c, ticket)
}

// AssignRequest carries the new assignee; null clears the assignment
type AssignRequest struct {
	AssigneeID *uint `json:"assignee_id"`
}

// Assign sets or clears the ticket assignee. Staff only.
func (h *TicketHandler) Assign(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return response.BadRequest(c, "Invalid ticket id")
	}

	var req AssignRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	ticket, err := h.tickets.Assign(c.Context(), id, req.AssigneeID)
	if err != nil {
		if errors.Is(err, services.ErrAssigneeNotStaff) {
			return response.BadRequest(c, "Assignee must be a support agent or admin")
		}
		return ticketError(c, err, "Failed to assign ticket")
	}
	return response.Success(c, ticket)
}

// AddCommentRequest carries a new ticket comment
type AddCommentRequest struct {
	Content    string `json:"content" validate:"required,max=10000"`
	IsInternal bool   `json:"is_internal"`
}

// AddComment appends a comment to a ticket
func (h *TicketHandler) AddComment(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}

	id, err := parseID(c)
	if err != nil {
		return response.BadRequest(c, "Invalid ticket id")
	}

	var req AddCommentRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	comment, err := h.tickets.AddComment(c.Context(), user, id, req.Content, req.IsInternal)
	if err != nil {
		return ticketError(c, err, "Failed to add comment")
	}
	return response.Created(c, comment)
}

// AddAttachment uploads a file and attaches it to the ticket
func (h *TicketHandler) AddAttachment(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}

	id, err := parseID(c)
	if err != nil {
		return response.BadRequest(c, "Invalid ticket id")
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return response.BadRequest(c, "A file is required")
	}
	if fileHeader.Size > maxAttachmentSize {
		return response.BadRequest(c, "File exceeds the 10 MB attachment limit")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return response.InternalServerError(c, "Failed to read uploaded file")
	}
	defer file.Close()

	attachment, err := h.tickets.AddAttachment(c.Context(), user, id, fileHeader.Filename, fileHeader.Size, file)
	if err != nil {
		return ticketError(c, err, "Failed to upload attachment")
	}
	return response.Created(c, attachment)
}

// Delete removes a ticket. Admin only, enforced at the route layer.
func (h *TicketHandler) Delete(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return response.BadRequest(c, "Invalid ticket id")
	}

	if err := h.tickets.Delete(c.Context(), id); err != nil {
		return ticketError(c, err, "Failed to delete ticket")
	}
	return response.NoContent(c)
}

// ticketError maps ticket service errors to HTTP responses
func ticketError(c *fiber.Ctx, err error, fallback string) error {
	switch {
	case errors.Is(err, services.ErrTicketNotFound):
		return response.NotFound(c, "Ticket not found")
	case errors.Is(err, services.ErrTicketForbidden):
		return response.Forbidden(c, "Not allowed to access this ticket")
	case errors.Is(err, services.ErrTicketClosed):
		return response.Conflict(c, "Ticket is closed")
	}
	return response.InternalServerError(c, fallback)
}

func parseID(c *fiber.Ctx) (uint, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	return uint(id), err
}
