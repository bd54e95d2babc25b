package article

import (
	"errors"
	"io"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/supportal/api/model"
	"github.com/supportal/api/services"
	"github.com/supportal/api/utils/response"
	"github.com/supportal/api/utils/validation"
	"gorm.io/gorm"
)

// maxImportSize caps uploaded PDF imports at 25 MB
const maxImportSize = 25 << 20

// ArticleHandler handles knowledge base article requests
type ArticleHandler struct {
	db        *gorm.DB
	articles  *services.ArticleService
	importer  *services.ArticleImporter
	validator *validation.Validator
}

// NewArticleHandler creates a new article handler
func NewArticleHandler(db *gorm.DB, articles *services.ArticleService, importer *services.ArticleImporter) *ArticleHandler {
	return &ArticleHandler{
		db:        db,
		articles:  articles,
		importer:  importer,
		validator: validation.NewValidator(),
	}
}

// List returns published articles for the public portal. Staff can request
// any status via the status query parameter.
func (h *ArticleHandler) List(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	limit := c.QueryInt("limit", 20)

	opts := services.ListOptions{
		Status: model.ArticleStatusPublished,
		Tag:    c.Query("tag"),
		Limit:  limit,
		Offset: (page - 1) * limit,
	}

	if status := c.Query("status"); status != "" && isStaffRequest(c) {
		opts.Status = model.ArticleStatus(status)
	}

	if categoryStr := c.Query("category_id"); categoryStr != "" {
		categoryID, err := strconv.ParseUint(categoryStr, 10, 64)
		if err != nil {
			return response.BadRequest(c, "Invalid category_id")
		}
		id := uint(categoryID)
		opts.CategoryID = &id
	}

	articles, total, err := h.articles.List(c.Context(), opts)
	if err != nil {
		return response.InternalServerError(c, "Failed to list articles")
	}

	return response.Paginated(c, articles, response.CalculatePagination(page, opts.Limit, total))
}

// Get returns a single article by id or slug. Unpublished articles are
// visible to staff only.
func (h *ArticleHandler) Get(c *fiber.Ctx) error {
	article, err := h.articles.GetByIDOrSlug(c.Context(), c.Params("idOrSlug"))
	if err != nil {
		if errors.Is(err, services.ErrArticleNotFound) {
			return response.NotFound(c, "Article not found")
		}
		return response.InternalServerError(c, "Failed to load article")
	}

	if !article.IsPublished() && !isStaffRequest(c) {
		return response.NotFound(c, "Article not found")
	}

	if article.IsPublished() {
		// View counting is fire-and-forget
		h.articles.IncrementView(c.Context(), article.ID)
	}

	return response.Success(c, article)
}

// Related returns the curated related articles
func (h *ArticleHandler) Related(c *fiber.Ctx) error {
	article, err := h.articles.GetByIDOrSlug(c.Context(), c.Params("idOrSlug"))
	if err != nil {
		if errors.Is(err, services.ErrArticleNotFound) {
			return response.NotFound(c, "Article not found")
		}
		return response.InternalServerError(c, "Failed to load article")
	}

	related, err := h.articles.Related(c.Context(), article.ID)
	if err != nil {
		return response.InternalServerError(c, "Failed to load related articles")
	}
	return response.Success(c, related)
}

// Create creates a draft article. Staff only.
func (h *ArticleHandler) Create(c *fiber.Ctx) error {
	var input services.CreateArticleInput
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(input); err != nil {
		return response.ValidationError(c, err)
	}

	article, err := h.articles.Create(c.Context(), input)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrSlugTaken):
			return response.Conflict(c, "An article with this slug already exists")
		case errors.Is(err, services.ErrCategoryNotFound):
			return response.BadRequest(c, "Category does not exist")
		}
		return response.InternalServerError(c, "Failed to create article")
	}

	return response.Created(c, article)
}

// Update applies a partial update to an article. Staff only.
func (h *ArticleHandler) Update(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return response.BadRequest(c, "Invalid article id")
	}

	var input services.UpdateArticleInput
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(input); err != nil {
		return response.ValidationError(c, err)
	}

	article, err := h.articles.Update(c.Context(), id, input)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrArticleNotFound):
			return response.NotFound(c, "Article not found")
		case errors.Is(err, services.ErrSlugTaken):
			return response.Conflict(c, "An article with this slug already exists")
		case errors.Is(err, services.ErrCategoryNotFound):
			return response.BadRequest(c, "Category does not exist")
		}
		return response.InternalServerError(c, "Failed to update article")
	}

	return response.Success(c, article)
}

// Publish moves an article to published and embeds it for vector search
func (h *ArticleHandler) Publish(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return response.BadRequest(c, "Invalid article id")
	}

	article, err := h.articles.Publish(c.Context(), id)
	if err != nil {
		if errors.Is(err, services.ErrArticleNotFound) {
			return response.NotFound(c, "Article not found")
		}
		return response.InternalServerError(c, "Failed to publish article")
	}
	return response.Success(c, article)
}

// Archive moves an article to archived
func (h *ArticleHandler) Archive(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return response.BadRequest(c, "Invalid article id")
	}

	article, err := h.articles.Archive(c.Context(), id)
	if err != nil {
		if errors.Is(err, services.ErrArticleNotFound) {
			return response.NotFound(c, "Article not found")
		}
		return response.InternalServerError(c, "Failed to archive article")
	}
	return response.Success(c, article)
}

// Delete removes an article. Admin only, enforced at the route layer.
func (h *ArticleHandler) Delete(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return response.BadRequest(c, "Invalid article id")
	}

	if err := h.articles.Delete(c.Context(), id); err != nil {
		if errors.Is(err, services.ErrArticleNotFound) {
			return response.NotFound(c, "Article not found")
		}
		return response.InternalServerError(c, "Failed to delete article")
	}
	return response.NoContent(c)
}

// SetRelatedRequest carries the replacement related-article set
type SetRelatedRequest struct {
	RelatedIDs []uint `json:"related_ids" validate:"max=10"`
}

// SetRelated replaces the curated related-article set. Staff only.
func (h *ArticleHandler) SetRelated(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return response.BadRequest(c, "Invalid article id")
	}

	var req SetRelatedRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	if err := h.articles.SetRelated(c.Context(), id, req.RelatedIDs); err != nil {
		if errors.Is(err, services.ErrArticleNotFound) {
			return response.NotFound(c, "Article not found")
		}
		return response.InternalServerError(c, "Failed to update related articles")
	}
	return response.SuccessWithMessage(c, "Related articles updated", nil)
}

// ImportPDF creates a draft article from an uploaded PDF. Staff only.
func (h *ArticleHandler) ImportPDF(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return response.BadRequest(c, "A PDF file is required")
	}
	if fileHeader.Size > maxImportSize {
		return response.BadRequest(c, "File exceeds the 25 MB import limit")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return response.InternalServerError(c, "Failed to read uploaded file")
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return response.InternalServerError(c, "Failed to read uploaded file")
	}

	var categoryID *uint
	if categoryStr := c.FormValue("category_id"); categoryStr != "" {
		parsed, err := strconv.ParseUint(categoryStr, 10, 64)
		if err != nil {
			return response.BadRequest(c, "Invalid category_id")
		}
		id := uint(parsed)
		categoryID = &id
	}

	result, err := h.importer.ImportPDF(c.Context(), c.FormValue("title"), content, categoryID)
	if err != nil {
		if errors.Is(err, services.ErrSlugTaken) {
			return response.Conflict(c, "An article with this slug already exists")
		}
		return response.BadRequest(c, "Failed to extract text from PDF: "+err.Error())
	}

	return response.Created(c, result)
}

func parseID(c *fiber.Ctx) (uint, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	return uint(id), err
}

// isStaffRequest reports whether the request carries a staff user
func isStaffRequest(c *fiber.Ctx) bool {
	role, ok := c.Locals("user_role").(string)
	if !ok {
		return false
	}
	return role == string(model.UserRoleSupportAgent) || role == string(model.UserRoleAdmin)
}
