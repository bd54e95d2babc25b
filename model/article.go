package model

import (
	"time"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

// ArticleStatus represents the lifecycle state of a knowledge base article
type ArticleStatus string

const (
	ArticleStatusDraft     ArticleStatus = "draft"
	ArticleStatusPublished ArticleStatus = "published"
	ArticleStatusArchived  ArticleStatus = "archived"
)

// EmbeddingDimensions is the vector size produced by the embedding model
// (text-embedding-ada-002). Changing the model without re-embedding every
// article would silently corrupt the vector index.
const EmbeddingDimensions = 1536

// Article represents a knowledge base article
type Article struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`
	Title            string         `gorm:"not null" json:"title"`
	Slug             string         `gorm:"uniqueIndex;not null;type:varchar(255)" json:"slug"`
	Content          string         `gorm:"type:text;not null" json:"content"` // Markdown
	ShortDescription string         `gorm:"type:varchar(500)" json:"short_description"`
	CategoryID       *uint          `gorm:"index" json:"category_id,omitempty"` // Nullable - deleting a category orphans its articles
	Tags             pq.StringArray `gorm:"type:text[]" json:"tags"`
	Status           ArticleStatus  `gorm:"type:varchar(20);default:'draft';index" json:"status"`
	PublishedAt      *time.Time     `json:"published_at,omitempty"`
	ViewCount        int64          `gorm:"default:0" json:"view_count"`
	HelpfulCount     int64          `gorm:"default:0" json:"helpful_count"`
	UnhelpfulCount   int64          `gorm:"default:0" json:"unhelpful_count"`

	// Embedding is present only after the publish-and-embed step. Content
	// edits clear it; the re-embed cron restores it.
	Embedding *pgvector.Vector `gorm:"type:vector(1536)" json:"-"`

	// Relationships
	Category *Category `gorm:"foreignKey:CategoryID;constraint:OnDelete:SET NULL" json:"category,omitempty"`
	Related  []Article `gorm:"many2many:article_related;joinForeignKey:ArticleID;joinReferences:RelatedID" json:"related,omitempty"`
	Feedback []ArticleFeedback `gorm:"foreignKey:ArticleID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName specifies the table name for Article
func (Article) TableName() string {
	return "articles"
}

// IsPublished returns true if the article is visible to search and chat retrieval
func (a *Article) IsPublished() bool {
	return a.Status == ArticleStatusPublished
}

// HasEmbedding returns true if the article participates in vector search
func (a *Article) HasEmbedding() bool {
	return a.Embedding != nil
}

// ArticleFeedback records a single helpful/unhelpful vote. One vote per user
// per article; repeat submissions conflict.
type ArticleFeedback struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ArticleID uint      `gorm:"not null;uniqueIndex:idx_article_feedback_once" json:"article_id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_article_feedback_once" json:"user_id"`
	Helpful   bool      `gorm:"not null" json:"helpful"`
	Comment   string    `gorm:"type:text" json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`

	// Relationships
	Article Article `gorm:"foreignKey:ArticleID;constraint:OnDelete:CASCADE" json:"-"`
	User    User    `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName specifies the table name for ArticleFeedback
func (ArticleFeedback) TableName() string {
	return "article_feedback"
}
