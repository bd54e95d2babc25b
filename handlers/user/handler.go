package user

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/supportal/api/services"
	"github.com/supportal/api/utils/middleware"
	"github.com/supportal/api/utils/response"
	"github.com/supportal/api/utils/validation"
	"gorm.io/gorm"
)

// UserHandler handles per-user activity, feedback and recommendation requests
type UserHandler struct {
	db        *gorm.DB
	activity  *services.ActivityService
	articles  *services.ArticleService
	validator *validation.Validator
}

// NewUserHandler creates a new user handler
func NewUserHandler(db *gorm.DB, activity *services.ActivityService, articles *services.ArticleService) *UserHandler {
	return &UserHandler{
		db:        db,
		activity:  activity,
		articles:  articles,
		validator: validation.NewValidator(),
	}
}

// TrackActivity records a search or article view in the user's activity log
func (h *UserHandler) TrackActivity(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}

	var input services.TrackActivityInput
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(input); err != nil {
		return response.ValidationError(c, err)
	}

	if err := h.activity.TrackActivity(c.Context(), user.ID, input); err != nil {
		switch {
		case errors.Is(err, services.ErrArticleNotFound):
			return response.NotFound(c, "Article not found")
		case errors.Is(err, services.ErrUnknownActivityType):
			return response.BadRequest(c, "Unknown activity type")
		}
		return response.InternalServerError(c, "Failed to record activity")
	}

	return response.SuccessWithMessage(c, "Activity recorded", nil)
}

// GetActivity returns the user's activity log
func (h *UserHandler) GetActivity(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}

	activity, err := h.activity.GetActivity(c.Context(), user.ID)
	if err != nil {
		return response.InternalServerError(c, "Failed to load activity")
	}
	return response.Success(c, activity)
}

// Recommendations returns personalized article suggestions based on the
// user's interest tags and reading history
func (h *UserHandler) Recommendations(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}

	articles, err := h.activity.Recommendations(c.Context(), user.ID)
	if err != nil {
		return response.InternalServerError(c, "Failed to load recommendations")
	}
	return response.Success(c, articles)
}

// FeedbackRequest carries a helpful/unhelpful vote on an article
type FeedbackRequest struct {
	ArticleID uint   `json:"article_id" validate:"required"`
	Helpful   bool   `json:"helpful"`
	Comment   string `json:"comment" validate:"max=1000"`
}

// SubmitFeedback records a one-per-user vote on an article. A repeat vote
// returns a conflict and leaves the counters untouched.
func (h *UserHandler) SubmitFeedback(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}

	var req FeedbackRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	err := h.articles.SubmitFeedback(c.Context(), req.ArticleID, user.ID, req.Helpful, req.Comment)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrArticleNotFound):
			return response.NotFound(c, "Article not found")
		case errors.Is(err, services.ErrAlreadySubmitted):
			return response.Conflict(c, "Feedback already submitted for this article")
		}
		return response.InternalServerError(c, "Failed to record feedback")
	}

	return response.SuccessWithMessage(c, "Feedback recorded", nil)
}
