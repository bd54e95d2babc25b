package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/supportal/api/model"
	"gorm.io/gorm"
)

// CategoryService manages knowledge base categories
type CategoryService struct {
	db *gorm.DB
}

// NewCategoryService creates a new category service
func NewCategoryService(db *gorm.DB) *CategoryService {
	return &CategoryService{db: db}
}

// CategoryInput holds the fields accepted on category create and update
type CategoryInput struct {
	Name         string `json:"name" validate:"required,max=100"`
	Slug         string `json:"slug" validate:"omitempty,slug,max=100"`
	Description  string `json:"description" validate:"max=500"`
	DisplayOrder int    `json:"display_order"`
	IsActive     *bool  `json:"is_active"`
}

// Create creates a new category
func (s *CategoryService) Create(ctx context.Context, input CategoryInput) (*model.Category, error) {
	slug := input.Slug
	if slug == "" {
		slug = Slugify(input.Name)
	}

	category := model.Category{
		Name:         input.Name,
		Slug:         slug,
		Description:  input.Description,
		DisplayOrder: input.DisplayOrder,
		IsActive:     true,
	}
	if input.IsActive != nil {
		category.IsActive = *input.IsActive
	}

	if err := s.db.WithContext(ctx).Create(&category).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrSlugTaken
		}
		return nil, fmt.Errorf("failed to create category: %w", err)
	}
	return &category, nil
}

// Update applies changes to an existing category
func (s *CategoryService) Update(ctx context.Context, id uint, input CategoryInput) (*model.Category, error) {
	category, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	category.Name = input.Name
	if input.Slug != "" {
		category.Slug = input.Slug
	}
	category.Description = input.Description
	category.DisplayOrder = input.DisplayOrder
	if input.IsActive != nil {
		category.IsActive = *input.IsActive
	}

	if err := s.db.WithContext(ctx).Save(category).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrSlugTaken
		}
		return nil, fmt.Errorf("failed to update category: %w", err)
	}
	return category, nil
}

// GetByID loads a category by id
func (s *CategoryService) GetByID(ctx context.Context, id uint) (*model.Category, error) {
	var category model.Category
	if err := s.db.WithContext(ctx).First(&category, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCategoryNotFound
		}
		return nil, err
	}
	return &category, nil
}

// GetBySlug loads a category by slug
func (s *CategoryService) GetBySlug(ctx context.Context, slug string) (*model.Category, error) {
	var category model.Category
	if err := s.db.WithContext(ctx).Where("slug = ?", slug).First(&category).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCategoryNotFound
		}
		return nil, err
	}
	return &category, nil
}

// CategoryWithCount pairs a category with its published article count
type CategoryWithCount struct {
	model.Category
	ArticleCount int64 `json:"article_count"`
}

// List returns active categories ordered for display, each with its count of
// published articles. includeInactive widens the listing for admin views.
func (s *CategoryService) List(ctx context.Context, includeInactive bool) ([]CategoryWithCount, error) {
	query := s.db.WithContext(ctx).Model(&model.Category{}).
		Select("categories.*, count(articles.id) AS article_count").
		Joins("LEFT JOIN articles ON articles.category_id = categories.id AND articles.status = ? AND articles.deleted_at IS NULL", model.ArticleStatusPublished).
		Group("categories.id").
		Order("categories.display_order ASC, categories.name ASC")

	if !includeInactive {
		query = query.Where("categories.is_active = ?", true)
	}

	var categories []CategoryWithCount
	err := query.Find(&categories).Error
	return categories, err
}

// Delete soft-deletes a category. Its articles keep existing with a null
// category reference.
func (s *CategoryService) Delete(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Delete(&model.Category{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrCategoryNotFound
		}

		return tx.Model(&model.Article{}).
			Where("category_id = ?", id).
			Update("category_id", nil).Error
	})
}
