package admin

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/supportal/api/database"
	"github.com/supportal/api/model"
	"github.com/supportal/api/utils/response"
	"github.com/supportal/api/utils/validation"
	"gorm.io/gorm"
)

// AdminHandler handles the admin dashboard and management endpoints
type AdminHandler struct {
	db        *gorm.DB
	store     database.Storage
	validator *validation.Validator
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(db *gorm.DB, store database.Storage) *AdminHandler {
	return &AdminHandler{
		db:        db,
		store:     store,
		validator: validation.NewValidator(),
	}
}

// DashboardStats aggregates the portal-wide counters shown on the admin
// landing page
type DashboardStats struct {
	TotalUsers           int64 `json:"total_users"`
	TotalArticles        int64 `json:"total_articles"`
	PublishedArticles    int64 `json:"published_articles"`
	UnembeddedArticles   int64 `json:"unembedded_articles"`
	OpenTickets          int64 `json:"open_tickets"`
	TicketsLast7Days     int64 `json:"tickets_last_7_days"`
	ActiveConversations  int64 `json:"active_conversations"`
	MessagesLast24Hours  int64 `json:"messages_last_24_hours"`
	SearchableCategories int64 `json:"searchable_categories"`
}

// Dashboard returns portal-wide statistics
func (h *AdminHandler) Dashboard(c *fiber.Ctx) error {
	var stats DashboardStats
	db := h.db.WithContext(c.Context())
	now := time.Now()

	db.Model(&model.User{}).Count(&stats.TotalUsers)
	db.Model(&model.Article{}).Count(&stats.TotalArticles)
	db.Model(&model.Article{}).Where("status = ?", model.ArticleStatusPublished).Count(&stats.PublishedArticles)
	db.Model(&model.Article{}).Where("status = ? AND embedding IS NULL", model.ArticleStatusPublished).Count(&stats.UnembeddedArticles)
	db.Model(&model.Ticket{}).Where("status NOT IN ?", []model.TicketStatus{model.TicketStatusResolved, model.TicketStatusClosed}).Count(&stats.OpenTickets)
	db.Model(&model.Ticket{}).Where("created_at > ?", now.AddDate(0, 0, -7)).Count(&stats.TicketsLast7Days)
	db.Model(&model.Conversation{}).Where("status = ?", model.ConversationStatusActive).Count(&stats.ActiveConversations)
	db.Model(&model.Message{}).Where("created_at > ?", now.Add(-24*time.Hour)).Count(&stats.MessagesLast24Hours)
	db.Model(&model.Category{}).Where("is_active = ?", true).Count(&stats.SearchableCategories)

	return response.Success(c, stats)
}

// Health reports database connectivity for the admin status page
func (h *AdminHandler) Health(c *fiber.Ctx) error {
	if err := h.store.HealthCheck(); err != nil {
		return response.ServiceUnavailable(c, "Database unreachable")
	}
	return response.Success(c, fiber.Map{"database": "ok"})
}

// ListUsers returns a paginated user listing with optional role filter
func (h *AdminHandler) ListUsers(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	limit := c.QueryInt("limit", 20)
	if limit < 1 || limit > 100 {
		limit = 20
	}

	query := h.db.WithContext(c.Context()).Model(&model.User{})
	if role := c.Query("role"); role != "" {
		query = query.Where("role = ?", role)
	}
	if email := c.Query("email"); email != "" {
		query = query.Where("email ILIKE ?", "%"+email+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return response.InternalServerError(c, "Failed to count users")
	}

	var users []model.User
	err := query.Order("created_at DESC").
		Limit(limit).
		Offset((page - 1) * limit).
		Find(&users).Error
	if err != nil {
		return response.InternalServerError(c, "Failed to list users")
	}

	return response.Paginated(c, users, response.CalculatePagination(page, limit, total))
}

// UpdateUserRequest carries the admin-editable user fields
type UpdateUserRequest struct {
	Role model.UserRole `json:"role" validate:"omitempty,oneof=user support_agent admin"`
	Plan string         `json:"plan" validate:"omitempty,max=50"`
}

// UpdateUser changes a user's role or plan. Role changes bump the token
// version so outstanding tokens with the old role stop working.
func (h *AdminHandler) UpdateUser(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return response.BadRequest(c, "Invalid user id")
	}

	var req UpdateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	var user model.User
	if err := h.db.WithContext(c.Context()).First(&user, id).Error; err != nil {
		return response.NotFound(c, "User not found")
	}

	updates := map[string]interface{}{}
	if req.Role != "" && req.Role != user.Role {
		updates["role"] = req.Role
		updates["token_version"] = gorm.Expr("token_version + 1")
	}
	if req.Plan != "" {
		updates["plan"] = req.Plan
	}

	if len(updates) > 0 {
		if err := h.db.WithContext(c.Context()).Model(&user).Updates(updates).Error; err != nil {
			return response.InternalServerError(c, "Failed to update user")
		}
	}

	return response.Success(c, user)
}

// DeleteUser soft-deletes a user account
func (h *AdminHandler) DeleteUser(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return response.BadRequest(c, "Invalid user id")
	}

	result := h.db.WithContext(c.Context()).Delete(&model.User{}, id)
	if result.Error != nil {
		return response.InternalServerError(c, "Failed to delete user")
	}
	if result.RowsAffected == 0 {
		return response.NotFound(c, "User not found")
	}
	return response.NoContent(c)
}

// ListConversations returns a paginated conversation listing for review
func (h *AdminHandler) ListConversations(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	limit := c.QueryInt("limit", 20)
	if limit < 1 || limit > 100 {
		limit = 20
	}

	query := h.db.WithContext(c.Context()).Model(&model.Conversation{})
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return response.InternalServerError(c, "Failed to count conversations")
	}

	var conversations []model.Conversation
	err := query.Order("created_at DESC").
		Limit(limit).
		Offset((page - 1) * limit).
		Find(&conversations).Error
	if err != nil {
		return response.InternalServerError(c, "Failed to list conversations")
	}

	return response.Paginated(c, conversations, response.CalculatePagination(page, limit, total))
}

// ListAuditLog returns the most recent admin actions
func (h *AdminHandler) ListAuditLog(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	limit := c.QueryInt("limit", 50)
	if limit < 1 || limit > 200 {
		limit = 50
	}

	query := h.db.WithContext(c.Context()).Model(&model.AdminAuditLog{})
	if action := c.Query("action"); action != "" {
		query = query.Where("action = ?", action)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return response.InternalServerError(c, "Failed to count audit entries")
	}

	var entries []model.AdminAuditLog
	err := query.Order("created_at DESC").
		Limit(limit).
		Offset((page - 1) * limit).
		Find(&entries).Error
	if err != nil {
		return response.InternalServerError(c, "Failed to list audit entries")
	}

	return response.Paginated(c, entries, response.CalculatePagination(page, limit, total))
}
