package model

import (
	"time"

	"gorm.io/gorm"
)

// TicketStatus represents the workflow state of a support ticket
type TicketStatus string

const (
	TicketStatusOpen               TicketStatus = "open"
	TicketStatusInProgress         TicketStatus = "in_progress"
	TicketStatusWaitingForCustomer TicketStatus = "waiting_for_customer"
	TicketStatusResolved           TicketStatus = "resolved"
	TicketStatusClosed             TicketStatus = "closed"
)

// TicketPriority represents the urgency of a support ticket
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "low"
	TicketPriorityMedium TicketPriority = "medium"
	TicketPriorityHigh   TicketPriority = "high"
	TicketPriorityUrgent TicketPriority = "urgent"
)

// Ticket represents a customer support ticket
type Ticket struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
	Title       string         `gorm:"not null" json:"title"`
	Description string         `gorm:"type:text;not null" json:"description"`
	Status      TicketStatus   `gorm:"type:varchar(30);default:'open';index" json:"status"`
	Priority    TicketPriority `gorm:"type:varchar(20);default:'medium'" json:"priority"`
	Category    string         `gorm:"type:varchar(100)" json:"category"` // Free text, not a foreign key
	RequestorID uint           `gorm:"not null;index" json:"requestor_id"`
	AssigneeID  *uint          `gorm:"index" json:"assignee_id,omitempty"`
	ResolvedAt  *time.Time     `json:"resolved_at,omitempty"`
	ClosedAt    *time.Time     `json:"closed_at,omitempty"`

	// Relationships
	Requestor   User               `gorm:"foreignKey:RequestorID;constraint:OnDelete:CASCADE" json:"requestor,omitempty"`
	Assignee    *User              `gorm:"foreignKey:AssigneeID;constraint:OnDelete:SET NULL" json:"assignee,omitempty"`
	Comments    []TicketComment    `gorm:"foreignKey:TicketID;constraint:OnDelete:CASCADE" json:"comments,omitempty"`
	Attachments []TicketAttachment `gorm:"foreignKey:TicketID;constraint:OnDelete:CASCADE" json:"attachments,omitempty"`
}

// TableName specifies the table name for Ticket
func (Ticket) TableName() string {
	return "tickets"
}

// TicketComment represents a comment on a ticket. Internal comments are
// visible to agents and admins only.
type TicketComment struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	TicketID   uint      `gorm:"not null;index" json:"ticket_id"`
	AuthorID   uint      `gorm:"not null" json:"author_id"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	IsInternal bool      `gorm:"default:false" json:"is_internal"`

	// Relationships
	Ticket Ticket `gorm:"foreignKey:TicketID;constraint:OnDelete:CASCADE" json:"-"`
	Author User   `gorm:"foreignKey:AuthorID;constraint:OnDelete:CASCADE" json:"author,omitempty"`
}

// TableName specifies the table name for TicketComment
func (TicketComment) TableName() string {
	return "ticket_comments"
}

// TicketAttachment represents an uploaded file attached to a ticket
type TicketAttachment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	TicketID  uint      `gorm:"not null;index" json:"ticket_id"`
	Filename  string    `gorm:"not null" json:"filename"`
	Size      int64     `gorm:"default:0" json:"size"`
	URL       string    `gorm:"type:text;not null" json:"url"`

	// Relationships
	Ticket Ticket `gorm:"foreignKey:TicketID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName specifies the table name for TicketAttachment
func (TicketAttachment) TableName() string {
	return "ticket_attachments"
}

// IsTerminal returns true if the ticket cannot move to another status
func (t *Ticket) IsTerminal() bool {
	return t.Status == TicketStatusClosed
}
