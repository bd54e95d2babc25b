package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/supportal/api/model"
	"github.com/supportal/api/services/storage"
	"gorm.io/gorm"
)

var (
	ErrTicketNotFound    = errors.New("ticket not found")
	ErrTicketClosed      = errors.New("ticket is closed")
	ErrTicketForbidden   = errors.New("not allowed to access this ticket")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrAssigneeNotStaff  = errors.New("assignee must be a support agent or admin")
)

// TicketService manages support tickets, their comments and attachments
type TicketService struct {
	db     *gorm.DB
	spaces *storage.SpacesClient
}

// NewTicketService creates a new ticket service. spaces may be nil, in which
// case attachment uploads are rejected.
func NewTicketService(db *gorm.DB, spaces *storage.SpacesClient) *TicketService {
	return &TicketService{db: db, spaces: spaces}
}

// CreateTicketInput holds the fields accepted on ticket creation
type CreateTicketInput struct {
	Title       string               `json:"title" validate:"required,max=255"`
	Description string               `json:"description" validate:"required"`
	Priority    model.TicketPriority `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	Category    string               `json:"category" validate:"max=100"`
}

// Create opens a new ticket for the requestor and records it in their
// activity feed.
func (s *TicketService) Create(ctx context.Context, requestor *model.User, input CreateTicketInput) (*model.Ticket, error) {
	priority := input.Priority
	if priority == "" {
		priority = model.TicketPriorityMedium
	}

	ticket := model.Ticket{
		Title:       input.Title,
		Description: input.Description,
		Status:      model.TicketStatusOpen,
		Priority:    priority,
		Category:    input.Category,
		RequestorID: requestor.ID,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&ticket).Error; err != nil {
			return err
		}

		var user model.User
		if err := tx.First(&user, requestor.ID).Error; err != nil {
			return err
		}
		user.Activity.RecordTicket(model.TicketSummary{
			TicketID:  ticket.ID,
			Title:     ticket.Title,
			Status:    string(ticket.Status),
			CreatedAt: time.Now(),
		})
		return tx.Model(&user).Update("activity", user.Activity).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create ticket: %w", err)
	}

	return &ticket, nil
}

// GetByID loads a ticket with its comments and attachments, enforcing
// visibility: requestors see their own tickets with internal comments
// stripped, staff see everything.
func (s *TicketService) GetByID(ctx context.Context, viewer *model.User, id uint) (*model.Ticket, error) {
	var ticket model.Ticket
	err := s.db.WithContext(ctx).
		Preload("Comments", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Preload("Comments.Author").
		Preload("Attachments").
		Preload("Requestor").
		Preload("Assignee").
		First(&ticket, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTicketNotFound
		}
		return nil, err
	}

	if !viewer.IsStaff() {
		if ticket.RequestorID != viewer.ID {
			return nil, ErrTicketForbidden
		}
		ticket.Comments = filterInternalComments(ticket.Comments)
	}

	return &ticket, nil
}

// filterInternalComments strips agent-only comments for customer views
func filterInternalComments(comments []model.TicketComment) []model.TicketComment {
	visible := make([]model.TicketComment, 0, len(comments))
	for _, c := range comments {
		if !c.IsInternal {
			visible = append(visible, c)
		}
	}
	return visible
}

// TicketListOptions filters and pages ticket listings
type TicketListOptions struct {
	Status     model.TicketStatus
	Priority   model.TicketPriority
	AssigneeID *uint
	Limit      int
	Offset     int
}

// List returns tickets visible to the viewer: staff see all tickets,
// customers only their own.
func (s *TicketService) List(ctx context.Context, viewer *model.User, opts TicketListOptions) ([]model.Ticket, int64, error) {
	if opts.Limit <= 0 || opts.Limit > 100 {
		opts.Limit = 20
	}

	query := s.db.WithContext(ctx).Model(&model.Ticket{})

	if !viewer.IsStaff() {
		query = query.Where("requestor_id = ?", viewer.ID)
	}
	if opts.Status != "" {
		query = query.Where("status = ?", opts.Status)
	}
	if opts.Priority != "" {
		query = query.Where("priority = ?", opts.Priority)
	}
	if opts.AssigneeID != nil {
		query = query.Where("assignee_id = ?", *opts.AssigneeID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var tickets []model.Ticket
	err := query.Preload("Requestor").Preload("Assignee").
		Order("created_at DESC").
		Limit(opts.Limit).
		Offset(opts.Offset).
		Find(&tickets).Error
	return tickets, total, err
}

// validTransitions maps each status to the statuses it may move to.
// Closed is terminal.
var validTransitions = map[model.TicketStatus][]model.TicketStatus{
	model.TicketStatusOpen:               {model.TicketStatusInProgress, model.TicketStatusResolved, model.TicketStatusClosed},
	model.TicketStatusInProgress:         {model.TicketStatusWaitingForCustomer, model.TicketStatusResolved, model.TicketStatusClosed},
	model.TicketStatusWaitingForCustomer: {model.TicketStatusInProgress, model.TicketStatusResolved, model.TicketStatusClosed},
	model.TicketStatusResolved:           {model.TicketStatusInProgress, model.TicketStatusClosed},
	model.TicketStatusClosed:             {},
}

// UpdateStatus moves a ticket through its workflow, stamping ResolvedAt and
// ClosedAt on the corresponding transitions.
func (s *TicketService) UpdateStatus(ctx context.Context, id uint, status model.TicketStatus) (*model.Ticket, error) {
	var ticket model.Ticket
	if err := s.db.WithContext(ctx).First(&ticket, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTicketNotFound
		}
		return nil, err
	}

	if !transitionAllowed(ticket.Status, status) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, ticket.Status, status)
	}

	now := time.Now()
	ticket.Status = status
	switch status {
	case model.TicketStatusResolved:
		ticket.ResolvedAt = &now
	case model.TicketStatusClosed:
		ticket.ClosedAt = &now
	}

	if err := s.db.WithContext(ctx).Save(&ticket).Error; err != nil {
		return nil, fmt.Errorf("failed to update ticket status: %w", err)
	}
	return &ticket, nil
}

func transitionAllowed(from, to model.TicketStatus) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Assign sets or clears the assignee. Assignees must be staff.
func (s *TicketService) Assign(ctx context.Context, id uint, assigneeID *uint) (*model.Ticket, error) {
	var ticket model.Ticket
	if err := s.db.WithContext(ctx).First(&ticket, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTicketNotFound
		}
		return nil, err
	}

	if assigneeID != nil {
		var assignee model.User
		if err := s.db.WithContext(ctx).First(&assignee, *assigneeID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrAssigneeNotStaff
			}
			return nil, err
		}
		if !assignee.IsStaff() {
			return nil, ErrAssigneeNotStaff
		}

		if ticket.Status == model.TicketStatusOpen {
			ticket.Status = model.TicketStatusInProgress
		}
	}

	ticket.AssigneeID = assigneeID
	if err := s.db.WithContext(ctx).Save(&ticket).Error; err != nil {
		return nil, fmt.Errorf("failed to assign ticket: %w", err)
	}
	return &ticket, nil
}

// AddComment appends a comment. Customers may only comment on their own
// tickets and never internally; closed tickets accept no comments.
func (s *TicketService) AddComment(ctx context.Context, author *model.User, ticketID uint, content string, internal bool) (*model.TicketComment, error) {
	var ticket model.Ticket
	if err := s.db.WithContext(ctx).First(&ticket, ticketID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTicketNotFound
		}
		return nil, err
	}

	if ticket.IsTerminal() {
		return nil, ErrTicketClosed
	}

	if !author.IsStaff() {
		if ticket.RequestorID != author.ID {
			return nil, ErrTicketForbidden
		}
		internal = false
	}

	comment := model.TicketComment{
		TicketID:   ticketID,
		AuthorID:   author.ID,
		Content:    content,
		IsInternal: internal,
	}
	if err := s.db.WithContext(ctx).Create(&comment).Error; err != nil {
		return nil, fmt.Errorf("failed to add comment: %w", err)
	}

	// A customer reply moves a waiting ticket back into the queue
	if !author.IsStaff() && ticket.Status == model.TicketStatusWaitingForCustomer {
		s.db.WithContext(ctx).Model(&ticket).Update("status", model.TicketStatusInProgress)
	}

	return &comment, nil
}

// AddAttachment uploads a file to object storage and records it on the ticket
func (s *TicketService) AddAttachment(ctx context.Context, uploader *model.User, ticketID uint, filename string, size int64, data io.Reader) (*model.TicketAttachment, error) {
	if s.spaces == nil {
		return nil, errors.New("attachment storage not configured")
	}

	var ticket model.Ticket
	if err := s.db.WithContext(ctx).First(&ticket, ticketID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTicketNotFound
		}
		return nil, err
	}

	if ticket.IsTerminal() {
		return nil, ErrTicketClosed
	}
	if !uploader.IsStaff() && ticket.RequestorID != uploader.ID {
		return nil, ErrTicketForbidden
	}

	key := storage.GenerateKey(fmt.Sprintf("tickets/%d", ticketID), filename)
	url, err := s.spaces.UploadFile(ctx, key, data, storage.GetContentType(filename))
	if err != nil {
		return nil, fmt.Errorf("failed to upload attachment: %w", err)
	}

	attachment := model.TicketAttachment{
		TicketID: ticketID,
		Filename: filename,
		Size:     size,
		URL:      url,
	}
	if err := s.db.WithContext(ctx).Create(&attachment).Error; err != nil {
		return nil, fmt.Errorf("failed to record attachment: %w", err)
	}
	return &attachment, nil
}

// Delete soft-deletes a ticket. Admin only, enforced at the route layer.
func (s *TicketService) Delete(ctx context.Context, id uint) error {
	result := s.db.WithContext(ctx).Delete(&model.Ticket{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrTicketNotFound
	}
	return nil
}
