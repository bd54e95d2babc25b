package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
)

// ConversationStatus represents the lifecycle state of a chat conversation
type ConversationStatus string

const (
	ConversationStatusActive ConversationStatus = "active"
	ConversationStatusClosed ConversationStatus = "closed"
)

// MessageRole represents the role of the message sender
type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
	MessageRoleSystem    MessageRole = "system"
)

// Source represents a single knowledge base article cited by an assistant message
type Source struct {
	ArticleID uint    `json:"article_id"`
	Title     string  `json:"title"`
	Slug      string  `json:"slug"`
	Score     float64 `json:"score"`
}

// Sources is a custom type for storing source citations as JSONB
type Sources []Source

// JSONMap is a custom type for storing JSON data as JSONB
type JSONMap map[string]interface{}

// Scan implements the sql.Scanner interface for reading from database
func (j *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*j = JSONMap{}
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("failed to unmarshal JSONMap value")
	}

	if len(bytes) == 0 {
		*j = JSONMap{}
		return nil
	}

	return json.Unmarshal(bytes, j)
}

// Value implements the driver.Valuer interface for writing to database
func (j JSONMap) Value() (driver.Value, error) {
	if len(j) == 0 {
		return []byte("{}"), nil // Return empty JSON object instead of nil
	}
	return json.Marshal(j)
}

// Scan implements the sql.Scanner interface for reading from database
func (s *Sources) Scan(value interface{}) error {
	if value == nil {
		*s = Sources{}
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("failed to unmarshal sources value")
	}

	return json.Unmarshal(bytes, s)
}

// Value implements the driver.Valuer interface for writing to database
func (s Sources) Value() (driver.Value, error) {
	if len(s) == 0 {
		return []byte("[]"), nil // Return empty JSON array instead of nil
	}
	return json.Marshal(s)
}

// Conversation represents a chat widget conversation, grouped by a visitor
// session identifier. UserID is set only for authenticated visitors.
type Conversation struct {
	ID            uint               `gorm:"primaryKey" json:"id"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
	DeletedAt     gorm.DeletedAt     `gorm:"index" json:"-"`
	SessionID     string             `gorm:"type:varchar(64);not null;index" json:"session_id"`
	UserID        *uint              `gorm:"index" json:"user_id,omitempty"`
	Title         string             `gorm:"type:varchar(255)" json:"title"` // Derived from the first message
	Status        ConversationStatus `gorm:"type:varchar(20);default:'active'" json:"status"`
	LastMessageAt *time.Time         `json:"last_message_at"`
	Metadata      JSONMap            `gorm:"type:jsonb;default:'{}'" json:"metadata,omitempty"` // user agent, IP, referrer

	// Relationships
	User     *User     `gorm:"foreignKey:UserID;constraint:OnDelete:SET NULL" json:"user,omitempty"`
	Messages []Message `gorm:"foreignKey:ConversationID;constraint:OnDelete:CASCADE" json:"messages,omitempty"`
}

// TableName specifies the table name for Conversation
func (Conversation) TableName() string {
	return "conversations"
}

// Message represents a single message in a conversation. Messages are
// immutable once created and ordered by creation time.
type Message struct {
	ID             uint        `gorm:"primaryKey" json:"id"`
	CreatedAt      time.Time   `gorm:"index" json:"created_at"`
	ConversationID uint        `gorm:"not null;index" json:"conversation_id"`
	Role           MessageRole `gorm:"type:varchar(20);not null" json:"role"`
	Content        string      `gorm:"type:text;not null" json:"content"`
	Sources        Sources     `gorm:"type:jsonb" json:"sources,omitempty"`
	Metadata       JSONMap     `gorm:"type:jsonb;default:'{}'" json:"metadata,omitempty"` // token counts, latency

	// Relationships
	Conversation Conversation `gorm:"foreignKey:ConversationID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName specifies the table name for Message
func (Message) TableName() string {
	return "messages"
}
