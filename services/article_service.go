package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/supportal/api/model"
	"gorm.io/gorm"
)

var (
	ErrArticleNotFound  = errors.New("article not found")
	ErrSlugTaken        = errors.New("slug already in use")
	ErrAlreadySubmitted = errors.New("feedback already submitted for this article")
	ErrCategoryNotFound = errors.New("category not found")
)

// ArticleService manages knowledge base articles and their embeddings
type ArticleService struct {
	db       *gorm.DB
	embedder Embedder
}

// NewArticleService creates a new article service
func NewArticleService(db *gorm.DB, embedder Embedder) *ArticleService {
	return &ArticleService{db: db, embedder: embedder}
}

// CreateArticleInput holds the fields accepted on article creation
type CreateArticleInput struct {
	Title            string   `json:"title" validate:"required,max=255"`
	Slug             string   `json:"slug" validate:"omitempty,slug,max=255"`
	Content          string   `json:"content" validate:"required"`
	ShortDescription string   `json:"short_description" validate:"max=500"`
	CategoryID       *uint    `json:"category_id"`
	Tags             []string `json:"tags" validate:"max=20,dive,max=50"`
}

// UpdateArticleInput holds the fields accepted on article update. Nil
// pointers leave the current value untouched.
type UpdateArticleInput struct {
	Title            *string   `json:"title" validate:"omitempty,max=255"`
	Slug             *string   `json:"slug" validate:"omitempty,slug,max=255"`
	Content          *string   `json:"content"`
	ShortDescription *string   `json:"short_description" validate:"omitempty,max=500"`
	CategoryID       *uint     `json:"category_id"`
	Tags             *[]string `json:"tags" validate:"omitempty,max=20,dive,max=50"`
}

// Create creates a new draft article. Slug collisions fail without touching
// the existing article.
func (s *ArticleService) Create(ctx context.Context, input CreateArticleInput) (*model.Article, error) {
	slug := input.Slug
	if slug == "" {
		slug = Slugify(input.Title)
	}

	if input.CategoryID != nil {
		if err := s.checkCategory(ctx, *input.CategoryID); err != nil {
			return nil, err
		}
	}

	article := model.Article{
		Title:            input.Title,
		Slug:             slug,
		Content:          input.Content,
		ShortDescription: input.ShortDescription,
		CategoryID:       input.CategoryID,
		Tags:             pq.StringArray(input.Tags),
		Status:           model.ArticleStatusDraft,
	}

	if err := s.db.WithContext(ctx).Create(&article).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrSlugTaken
		}
		return nil, fmt.Errorf("failed to create article: %w", err)
	}

	return &article, nil
}

// Update applies a partial update. Content changes invalidate the stored
// embedding so that search never serves vectors for stale text.
func (s *ArticleService) Update(ctx context.Context, id uint, input UpdateArticleInput) (*model.Article, error) {
	article, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	contentChanged := false

	if input.Title != nil && *input.Title != article.Title {
		article.Title = *input.Title
		contentChanged = true
	}
	if input.Slug != nil && *input.Slug != article.Slug {
		article.Slug = *input.Slug
	}
	if input.Content != nil && *input.Content != article.Content {
		article.Content = *input.Content
		contentChanged = true
	}
	if input.ShortDescription != nil {
		article.ShortDescription = *input.ShortDescription
	}
	if input.CategoryID != nil {
		if err := s.checkCategory(ctx, *input.CategoryID); err != nil {
			return nil, err
		}
		article.CategoryID = input.CategoryID
	}
	if input.Tags != nil {
		article.Tags = pq.StringArray(*input.Tags)
	}

	if contentChanged {
		article.Embedding = nil
	}

	if err := s.db.WithContext(ctx).Save(article).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrSlugTaken
		}
		return nil, fmt.Errorf("failed to update article: %w", err)
	}

	if contentChanged && article.IsPublished() {
		s.embedAsync(article.ID)
	}

	return article, nil
}

// GetByID loads an article by its numeric id
func (s *ArticleService) GetByID(ctx context.Context, id uint) (*model.Article, error) {
	var article model.Article
	if err := s.db.WithContext(ctx).Preload("Category").First(&article, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrArticleNotFound
		}
		return nil, err
	}
	return &article, nil
}

// GetByIDOrSlug resolves either a numeric id or a slug. Numeric lookup wins
// when the value parses as an integer.
func (s *ArticleService) GetByIDOrSlug(ctx context.Context, idOrSlug string) (*model.Article, error) {
	if id, err := strconv.ParseUint(idOrSlug, 10, 64); err == nil {
		return s.GetByID(ctx, uint(id))
	}

	var article model.Article
	if err := s.db.WithContext(ctx).Preload("Category").Where("slug = ?", idOrSlug).First(&article).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrArticleNotFound
		}
		return nil, err
	}
	return &article, nil
}

// ListOptions filters and pages article listings
type ListOptions struct {
	Status     model.ArticleStatus
	CategoryID *uint
	Tag        string
	Limit      int
	Offset     int
}

// List returns articles matching the filters with the total count
func (s *ArticleService) List(ctx context.Context, opts ListOptions) ([]model.Article, int64, error) {
	if opts.Limit <= 0 || opts.Limit > 100 {
		opts.Limit = 20
	}

	query := s.db.WithContext(ctx).Model(&model.Article{})

	if opts.Status != "" {
		query = query.Where("status = ?", opts.Status)
	}
	if opts.CategoryID != nil {
		query = query.Where("category_id = ?", *opts.CategoryID)
	}
	if opts.Tag != "" {
		query = query.Where("? = ANY(tags)", opts.Tag)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var articles []model.Article
	err := query.Preload("Category").
		Order("created_at DESC").
		Limit(opts.Limit).
		Offset(opts.Offset).
		Find(&articles).Error
	return articles, total, err
}

// Publish moves an article to published, stamps PublishedAt on the first
// publish and computes its embedding. Embedding failures do not block the
// publish; the re-embed cron picks the article up later.
func (s *ArticleService) Publish(ctx context.Context, id uint) (*model.Article, error) {
	article, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	article.Status = model.ArticleStatusPublished
	if article.PublishedAt == nil {
		now := time.Now()
		article.PublishedAt = &now
	}

	if err := s.EmbedArticle(ctx, article); err != nil {
		log.Printf("Warning: embedding failed for article %d, publishing without it: %v", article.ID, err)
	}

	if err := s.db.WithContext(ctx).Save(article).Error; err != nil {
		return nil, fmt.Errorf("failed to publish article: %w", err)
	}

	return article, nil
}

// Archive moves an article to archived, removing it from search and listings
func (s *ArticleService) Archive(ctx context.Context, id uint) (*model.Article, error) {
	article, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	article.Status = model.ArticleStatusArchived
	if err := s.db.WithContext(ctx).Save(article).Error; err != nil {
		return nil, fmt.Errorf("failed to archive article: %w", err)
	}
	return article, nil
}

// Delete soft-deletes an article
func (s *ArticleService) Delete(ctx context.Context, id uint) error {
	result := s.db.WithContext(ctx).Delete(&model.Article{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrArticleNotFound
	}
	return nil
}

// EmbedArticle computes and stores the embedding for an article's current text
func (s *ArticleService) EmbedArticle(ctx context.Context, article *model.Article) error {
	if s.embedder == nil {
		return errors.New("no embedder configured")
	}

	vec, err := s.embedder.Embed(ctx, article.Title+"\n\n"+article.Content)
	if err != nil {
		return err
	}

	v := pgvector.NewVector(vec)
	article.Embedding = &v
	return nil
}

// embedAsync re-embeds an article in the background after a content change
func (s *ArticleService) embedAsync(articleID uint) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		var article model.Article
		if err := s.db.WithContext(ctx).First(&article, articleID).Error; err != nil {
			return
		}
		if err := s.EmbedArticle(ctx, &article); err != nil {
			log.Printf("Warning: background re-embed failed for article %d: %v", articleID, err)
			return
		}
		if err := s.db.WithContext(ctx).Model(&model.Article{}).
			Where("id = ?", articleID).
			Update("embedding", article.Embedding).Error; err != nil {
			log.Printf("Warning: failed to store embedding for article %d: %v", articleID, err)
		}
	}()
}

// IncrementView bumps the view counter atomically
func (s *ArticleService) IncrementView(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Model(&model.Article{}).
		Where("id = ?", id).
		UpdateColumn("view_count", gorm.Expr("view_count + 1")).Error
}

// SubmitFeedback records a one-per-user helpful/unhelpful vote and bumps the
// matching counter. A second vote from the same user fails with
// ErrAlreadySubmitted and leaves the counters untouched.
func (s *ArticleService) SubmitFeedback(ctx context.Context, articleID, userID uint, helpful bool, comment string) error {
	if _, err := s.GetByID(ctx, articleID); err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		feedback := model.ArticleFeedback{
			ArticleID: articleID,
			UserID:    userID,
			Helpful:   helpful,
			Comment:   comment,
		}
		if err := tx.Create(&feedback).Error; err != nil {
			if isUniqueViolation(err) {
				return ErrAlreadySubmitted
			}
			return err
		}

		column := "helpful_count"
		if !helpful {
			column = "unhelpful_count"
		}
		return tx.Model(&model.Article{}).
			Where("id = ?", articleID).
			UpdateColumn(column, gorm.Expr(column+" + 1")).Error
	})
}

// Related returns the curated related articles, published ones only
func (s *ArticleService) Related(ctx context.Context, id uint) ([]model.Article, error) {
	article, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	var related []model.Article
	err = s.db.WithContext(ctx).Model(article).
		Where("status = ?", model.ArticleStatusPublished).
		Association("Related").
		Find(&related)
	return related, err
}

// SetRelated replaces the curated related-article set
func (s *ArticleService) SetRelated(ctx context.Context, id uint, relatedIDs []uint) error {
	article, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	var related []model.Article
	if len(relatedIDs) > 0 {
		if err := s.db.WithContext(ctx).Find(&related, relatedIDs).Error; err != nil {
			return err
		}
	}
	return s.db.WithContext(ctx).Model(article).Association("Related").Replace(related)
}

func (s *ArticleService) checkCategory(ctx context.Context, categoryID uint) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&model.Category{}).
		Where("id = ?", categoryID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ErrCategoryNotFound
	}
	return nil
}

// Slugify derives a URL-safe slug from a title
func Slugify(title string) string {
	slug := strings.ToLower(strings.TrimSpace(title))
	var b strings.Builder
	lastDash := true
	for _, r := range slug {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// isUniqueViolation reports whether err is a Postgres unique constraint
// error. TranslateError maps these to gorm.ErrDuplicatedKey; the driver
// check covers raw SQL paths that bypass the translation.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
