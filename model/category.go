package model

import (
	"time"

	"gorm.io/gorm"
)

// Category groups knowledge base articles for browsing
type Category struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
	Name         string         `gorm:"not null" json:"name"`
	Slug         string         `gorm:"uniqueIndex;not null;type:varchar(255)" json:"slug"`
	Description  string         `gorm:"type:text" json:"description,omitempty"`
	DisplayOrder int            `gorm:"default:0" json:"display_order"`
	IsActive     bool           `gorm:"default:true" json:"is_active"`

	// Deleting a category does not cascade; article references are set NULL
	Articles []Article `gorm:"foreignKey:CategoryID;constraint:OnDelete:SET NULL" json:"articles,omitempty"`
}

// TableName specifies the table name for Category
func (Category) TableName() string {
	return "categories"
}
