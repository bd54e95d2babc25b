package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/supportal/api/model"
	"gorm.io/gorm"
)

var ErrUnknownActivityType = errors.New("unknown activity type")

// Activity types accepted by TrackActivity
const (
	ActivityTypeSearch      = "search"
	ActivityTypeArticleView = "article_view"
)

// recommendationLimit caps the personalized article suggestions
const recommendationLimit = 5

// ActivityService maintains per-user activity logs and the knowledge profile
// that drives recommendations.
type ActivityService struct {
	db *gorm.DB
}

// NewActivityService creates a new activity service
func NewActivityService(db *gorm.DB) *ActivityService {
	return &ActivityService{db: db}
}

// TrackActivityInput is a single activity event from the portal frontend
type TrackActivityInput struct {
	Type        string `json:"type" validate:"required,oneof=search article_view"`
	Query       string `json:"query" validate:"required_if=Type search"`
	ArticleID   uint   `json:"article_id" validate:"required_if=Type article_view"`
	TimeSpentMS int64  `json:"time_spent_ms" validate:"gte=0"`
}

// TrackActivity records a search or article view in the user's capped
// activity log and, for article views, folds the article's tags into the
// user's interest profile.
func (s *ActivityService) TrackActivity(ctx context.Context, userID uint, input TrackActivityInput) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user model.User
		if err := tx.First(&user, userID).Error; err != nil {
			return err
		}

		now := time.Now()
		switch input.Type {
		case ActivityTypeSearch:
			user.Activity.RecordSearch(input.Query, now)

		case ActivityTypeArticleView:
			var article model.Article
			if err := tx.First(&article, input.ArticleID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrArticleNotFound
				}
				return err
			}

			user.Activity.RecordArticleView(article.ID, input.TimeSpentMS, now)
			for _, tag := range article.Tags {
				user.Profile.AddInterest(tag)
			}

		default:
			return ErrUnknownActivityType
		}

		return tx.Model(&user).Updates(map[string]interface{}{
			"activity": user.Activity,
			"profile":  user.Profile,
		}).Error
	})
}

// GetActivity returns the user's activity log
func (s *ActivityService) GetActivity(ctx context.Context, userID uint) (*model.SupportActivity, error) {
	var user model.User
	if err := s.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		return nil, err
	}
	return &user.Activity, nil
}

// Recommendations returns published articles tagged with the user's interests
// that the user has not viewed yet, most popular first. Users with no
// interests fall back to the overall most viewed articles.
func (s *ActivityService) Recommendations(ctx context.Context, userID uint) ([]model.Article, error) {
	var user model.User
	if err := s.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	query := s.db.WithContext(ctx).Model(&model.Article{}).
		Where("status = ?", model.ArticleStatusPublished)

	if len(user.Profile.InterestTags) > 0 {
		query = query.Where("tags && ?", pq.StringArray(user.Profile.InterestTags))
	}

	viewed := make([]uint, 0, len(user.Activity.ArticleViews))
	for _, v := range user.Activity.ArticleViews {
		viewed = append(viewed, v.ArticleID)
	}
	if len(viewed) > 0 {
		query = query.Where("id NOT IN ?", viewed)
	}

	var articles []model.Article
	err := query.Order("view_count DESC").Limit(recommendationLimit).Find(&articles).Error
	return articles, err
}
