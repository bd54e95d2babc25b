package category

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/supportal/api/services"
	"github.com/supportal/api/utils/response"
	"github.com/supportal/api/utils/validation"
	"gorm.io/gorm"
)

// CategoryHandler handles knowledge base category requests
type CategoryHandler struct {
	db         *gorm.DB
	categories *services.CategoryService
	validator  *validation.Validator
}

// NewCategoryHandler creates a new category handler
func NewCategoryHandler(db *gorm.DB, categories *services.CategoryService) *CategoryHandler {
	return &CategoryHandler{
		db:         db,
		categories: categories,
		validator:  validation.NewValidator(),
	}
}

// List returns categories with their published article counts. Inactive
// categories are included only when include_inactive is set by staff.
func (h *CategoryHandler) List(c *fiber.Ctx) error {
	includeInactive := c.QueryBool("include_inactive", false) && isStaffRequest(c)

	categories, err := h.categories.List(c.Context(), includeInactive)
	if err != nil {
		return response.InternalServerError(c, "Failed to list categories")
	}
	return response.Success(c, categories)
}

// Get returns a single category by slug
func (h *CategoryHandler) Get(c *fiber.Ctx) error {
	category, err := h.categories.GetBySlug(c.Context(), c.Params("slug"))
	if err != nil {
		if errors.Is(err, services.ErrCategoryNotFound) {
			return response.NotFound(c, "Category not found")
		}
		return response.InternalServerError(c, "Failed to load category")
	}
	return response.Success(c, category)
}

// Create creates a new category. Admin only.
func (h *CategoryHandler) Create(c *fiber.Ctx) error {
	var input services.CategoryInput
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(input); err != nil {
		return response.ValidationError(c, err)
	}

	category, err := h.categories.Create(c.Context(), input)
	if err != nil {
		if errors.Is(err, services.ErrSlugTaken) {
			return response.Conflict(c, "A category with this slug already exists")
		}
		return response.InternalServerError(c, "Failed to create category")
	}
	return response.Created(c, category)
}

// Update updates a category. Admin only.
func (h *CategoryHandler) Update(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return response.BadRequest(c, "Invalid category id")
	}

	var input services.CategoryInput
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(input); err != nil {
		return response.ValidationError(c, err)
	}

	category, err := h.categories.Update(c.Context(), uint(id), input)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrCategoryNotFound):
			return response.NotFound(c, "Category not found")
		case errors.Is(err, services.ErrSlugTaken):
			return response.Conflict(c, "A category with this slug already exists")
		}
		return response.InternalServerError(c, "Failed to update category")
	}
	return response.Success(c, category)
}

// Delete removes a category, orphaning its articles. Admin only.
func (h *CategoryHandler) Delete(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return response.BadRequest(c, "Invalid category id")
	}

	if err := h.categories.Delete(c.Context(), uint(id)); err != nil {
		if errors.Is(err, services.ErrCategoryNotFound) {
			return response.NotFound(c, "Category not found")
		}
		return response.InternalServerError(c, "Failed to delete category")
	}
	return response.NoContent(c)
}

func isStaffRequest(c *fiber.Ctx) bool {
	role, ok := c.Locals("user_role").(string)
	return ok && (role == "support_agent" || role == "admin")
}
