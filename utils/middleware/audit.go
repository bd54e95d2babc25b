package middleware

import (
	"encoding/json"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/supportal/api/model"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AdminAuditLog creates an audit log entry for admin actions. Must run after
// an auth middleware that stored the user in locals.
func AdminAuditLog(db *gorm.DB, action, resource string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, ok := GetUser(c)
		if !ok || user == nil {
			return c.Next() // Continue without logging if user not found
		}

		var resourceID uint
		if id := c.Params("id"); id != "" {
			if parsedID, err := strconv.ParseUint(id, 10, 32); err == nil {
				resourceID = uint(parsedID)
			}
		}

		newValue := datatypes.JSON("{}")
		if c.Method() == "POST" || c.Method() == "PUT" {
			if body := c.Body(); len(body) > 0 && json.Valid(body) {
				newValue = datatypes.JSON(body)
			}
		}

		entry := model.AdminAuditLog{
			AdminID:    user.ID,
			Action:     action,
			Resource:   resource,
			ResourceID: resourceID,
			NewValue:   newValue,
			IPAddress:  c.IP(),
			UserAgent:  c.Get("User-Agent"),
		}

		// Audit failures never block the admin action itself
		if err := db.Create(&entry).Error; err != nil {
			return c.Next()
		}

		return c.Next()
	}
}
