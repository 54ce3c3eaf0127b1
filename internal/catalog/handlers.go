// Package catalog serves the public service taxonomy: categories and the
// services inside them.
package catalog

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/trabajapp/trabajapp-backend/pkg/models"
)

type Handler struct {
	db *gorm.DB
}

func NewHandler(db *gorm.DB) *Handler { return &Handler{db: db} }

// ListCategories godoc
// @Summary      List service categories
// @Tags         catalog
// @Produce      json
// @Success      200  {array}  models.ServiceCategory
// @Router       /api/catalog/categories [get]
func (h *Handler) ListCategories(c *fiber.Ctx) error {
	var cats []models.ServiceCategory
	if err := h.db.Where("is_active = true").
		Order("sort_order ASC, name ASC").
		Find(&cats).Error; err != nil {
		return err
	}
	if cats == nil {
		cats = []models.ServiceCategory{}
	}
	return c.JSON(cats)
}

// ListServices godoc
// @Summary      List services
// @Description  Optionally filtered by category
// @Tags         catalog
// @Produce      json
// @Param        categoryId query string false "category filter"
// @Success      200  {array}  models.Service
// @Router       /api/catalog/services [get]
func (h *Handler) ListServices(c *fiber.Ctx) error {
	q := h.db.Where("is_active = true")

	if categoryID := strings.TrimSpace(c.Query("categoryId")); categoryID != "" {
		if _, err := uuid.Parse(categoryID); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid categoryId")
		}
		q = q.Where("category_id = ?", categoryID)
	}

	var services []models.Service
	if err := q.Order("name ASC").Find(&services).Error; err != nil {
		return err
	}
	if services == nil {
		services = []models.Service{}
	}
	return c.JSON(services)
}
