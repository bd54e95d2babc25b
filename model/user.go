package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
)

// UserRole represents the authorization role of a user
type UserRole string

const (
	UserRoleUser         UserRole = "user"
	UserRoleSupportAgent UserRole = "support_agent"
	UserRoleAdmin        UserRole = "admin"
)

// ActivityListCap is the maximum number of entries kept per activity sub-list.
// Older entries are dropped as new ones arrive.
const ActivityListCap = 50

// SearchEntry records a single search made by the user
type SearchEntry struct {
	Query      string    `json:"query"`
	SearchedAt time.Time `json:"searched_at"`
}

// ArticleViewEntry accumulates views of a single article by the user
type ArticleViewEntry struct {
	ArticleID   uint      `json:"article_id"`
	ViewCount   int       `json:"view_count"`
	TimeSpentMS int64     `json:"time_spent_ms"`
	LastViewed  time.Time `json:"last_viewed"`
}

// TicketSummary records a ticket the user opened, for quick profile display
type TicketSummary struct {
	TicketID  uint      `json:"ticket_id"`
	Title     string    `json:"title"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// SupportActivity is the per-user activity log stored as JSONB. Each sub-list
// keeps at most the ActivityListCap most recent entries.
type SupportActivity struct {
	SearchHistory []SearchEntry      `json:"search_history"`
	ArticleViews  []ArticleViewEntry `json:"article_views"`
	Tickets       []TicketSummary    `json:"tickets"`
}

// KnowledgeProfile captures user interests for rudimentary recommendation
type KnowledgeProfile struct {
	InterestTags    []string          `json:"interest_tags"`
	ExpertiseLevels map[string]string `json:"expertise_levels"` // tag -> beginner|intermediate|expert
}

// Scan implements the sql.Scanner interface for reading from database
func (a *SupportActivity) Scan(value interface{}) error {
	if value == nil {
		*a = SupportActivity{}
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("failed to unmarshal support activity value")
	}

	if len(bytes) == 0 {
		*a = SupportActivity{}
		return nil
	}

	return json.Unmarshal(bytes, a)
}

// Value implements the driver.Valuer interface for writing to database
func (a SupportActivity) Value() (driver.Value, error) {
	return json.Marshal(a)
}

// Scan implements the sql.Scanner interface for reading from database
func (p *KnowledgeProfile) Scan(value interface{}) error {
	if value == nil {
		*p = KnowledgeProfile{}
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("failed to unmarshal knowledge profile value")
	}

	if len(bytes) == 0 {
		*p = KnowledgeProfile{}
		return nil
	}

	return json.Unmarshal(bytes, p)
}

// Value implements the driver.Valuer interface for writing to database
func (p KnowledgeProfile) Value() (driver.Value, error) {
	return json.Marshal(p)
}

// User represents a registered user in the system
type User struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
	Email        string         `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string         `json:"-"` // Empty for OAuth-only accounts
	Name         string         `gorm:"not null" json:"name"`
	Role         UserRole       `gorm:"type:varchar(20);default:'user'" json:"role"`
	Plan         string         `gorm:"type:varchar(50);default:'free'" json:"plan"`
	TokenVersion int            `gorm:"default:0" json:"-"` // Increment to invalidate all user tokens

	// OAuth identity (set on first OAuth login)
	OAuthProvider string `gorm:"column:o_auth_provider;type:varchar(50)" json:"oauth_provider,omitempty"`
	OAuthID       string `gorm:"column:o_auth_id;type:varchar(255);index" json:"-"`

	Activity SupportActivity  `gorm:"type:jsonb;default:'{}'" json:"activity,omitempty"`
	Profile  KnowledgeProfile `gorm:"type:jsonb;default:'{}'" json:"profile,omitempty"`

	// Relationships
	Tickets         []Ticket            `gorm:"foreignKey:RequestorID;constraint:OnDelete:CASCADE" json:"-"`
	AssignedTickets []Ticket            `gorm:"foreignKey:AssigneeID" json:"-"`
	Conversations   []Conversation      `gorm:"foreignKey:UserID" json:"-"`
	Feedback        []ArticleFeedback   `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	AuditLog        []AdminAuditLog     `gorm:"foreignKey:AdminID;constraint:OnDelete:CASCADE" json:"-"`
	TokenBlacklist  []JWTTokenBlacklist `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName specifies the table name for User
func (User) TableName() string {
	return "users"
}

// IsStaff returns true for support agents and admins
func (u *User) IsStaff() bool {
	return u.Role == UserRoleSupportAgent || u.Role == UserRoleAdmin
}

// RecordSearch appends a search to the history, dropping the oldest entry
// once the cap is reached
func (a *SupportActivity) RecordSearch(query string, at time.Time) {
	a.SearchHistory = append(a.SearchHistory, SearchEntry{Query: query, SearchedAt: at})
	if len(a.SearchHistory) > ActivityListCap {
		a.SearchHistory = a.SearchHistory[len(a.SearchHistory)-ActivityListCap:]
	}
}

// RecordArticleView increments the view count and time-spent accumulator for
// an article, creating the entry if it does not exist yet
func (a *SupportActivity) RecordArticleView(articleID uint, timeSpentMS int64, at time.Time) {
	for i := range a.ArticleViews {
		if a.ArticleViews[i].ArticleID == articleID {
			a.ArticleViews[i].ViewCount++
			a.ArticleViews[i].TimeSpentMS += timeSpentMS
			a.ArticleViews[i].LastViewed = at
			return
		}
	}

	a.ArticleViews = append(a.ArticleViews, ArticleViewEntry{
		ArticleID:   articleID,
		ViewCount:   1,
		TimeSpentMS: timeSpentMS,
		LastViewed:  at,
	})
	if len(a.ArticleViews) > ActivityListCap {
		a.ArticleViews = a.ArticleViews[len(a.ArticleViews)-ActivityListCap:]
	}
}

// RecordTicket appends a ticket summary, dropping the oldest entry once the
// cap is reached
func (a *SupportActivity) RecordTicket(summary TicketSummary) {
	a.Tickets = append(a.Tickets, summary)
	if len(a.Tickets) > ActivityListCap {
		a.Tickets = a.Tickets[len(a.Tickets)-ActivityListCap:]
	}
}

// AddInterest records an interest tag if not already present
func (p *KnowledgeProfile) AddInterest(tag string) {
	for _, t := range p.InterestTags {
		if t == tag {
			return
		}
	}
	p.InterestTags = append(p.InterestTags, tag)
}
