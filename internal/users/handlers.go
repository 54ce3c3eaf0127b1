// Package users exposes account self-service: profile and location
// updates, soft account deactivation, and public user lookups.
package users

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/trabajapp/trabajapp-backend/internal/auth"
	"github.com/trabajapp/trabajapp-backend/pkg/apperr"
	"github.com/trabajapp/trabajapp-backend/pkg/models"
	"github.com/trabajapp/trabajapp-backend/pkg/validation"
)

type Handler struct{ db *gorm.DB }

func NewHandler(db *gorm.DB) *Handler { return &Handler{db: db} }

type UpdateMeRequest struct {
	FirstName *string `json:"first_name" validate:"omitempty,min=2,max=60"`
	LastName  *string `json:"last_name" validate:"omitempty,min=2,max=60"`
	Phone     *string `json:"phone" validate:"omitempty,max=30"`
	Address   *string `json:"address" validate:"omitempty,max=200"`
	City      *string `json:"city" validate:"omitempty,max=60"`
	// Location moves as a pair
	Latitude  *float64 `json:"latitude" validate:"omitempty,latitude"`
	Longitude *float64 `json:"longitude" validate:"omitempty,longitude"`
}

// UpdateMe godoc
// @Summary      Update own account profile
// @Description  Partial update of name, contact and location fields
// @Tags         users
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body  UpdateMeRequest  true  "fields to change"
// @Success      200  {object}  models.User
// @Failure      400  {object}  models.ValidationErrorResponse
// @Router       /api/users/me [put]
func (h *Handler) UpdateMe(c *fiber.Ctx) error {
	var in UpdateMeRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	if errs, err := validation.Validate(in); err != nil {
		return err
	} else if errs != nil {
		return validation.Respond(c, errs)
	}
	if (in.Latitude == nil) != (in.Longitude == nil) {
		return validation.Respond(c, map[string][]string{
			"latitude": {"Latitude and longitude must be provided together"},
		})
	}

	userID := auth.MustUserID(c)
	var u models.User
	if err := h.db.First(&u, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.ErrNotFound
		}
		return err
	}

	updates := map[string]any{"updated_at": time.Now()}
	if in.FirstName != nil {
		u.FirstName = strings.TrimSpace(*in.FirstName)
		updates["first_name"] = u.FirstName
	}
	if in.LastName != nil {
		u.LastName = strings.TrimSpace(*in.LastName)
		updates["last_name"] = u.LastName
	}
	if in.Phone != nil {
		u.Phone = strings.TrimSpace(*in.Phone)
		updates["phone"] = u.Phone
	}
	if in.Address != nil {
		u.Address = strings.TrimSpace(*in.Address)
		updates["address"] = u.Address
	}
	if in.City != nil {
		u.City = strings.TrimSpace(*in.City)
		updates["city"] = u.City
	}
	if in.Latitude != nil {
		u.Latitude = in.Latitude
		u.Longitude = in.Longitude
		updates["latitude"] = *in.Latitude
		updates["longitude"] = *in.Longitude
	}

	if err := h.db.Model(&u).Updates(updates).Error; err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"id":         u.ID,
		"email":      u.Email,
		"first_name": u.FirstName,
		"last_name":  u.LastName,
		"phone":      u.Phone,
		"address":    u.Address,
		"city":       u.City,
		"latitude":   u.Latitude,
		"longitude":  u.Longitude,
	})
}

// DeactivateMe godoc
// @Summary      Deactivate own account
// @Description  Accounts are never deleted. The row is kept for job and
// @Description  review history, the email is rewritten so it can be reused,
// @Description  and login is refused from then on.
// @Tags         users
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /api/users/me [delete]
func (h *Handler) DeactivateMe(c *fiber.Ctx) error {
	userID := auth.MustUserID(c)

	res := h.db.Model(&models.User{}).
		Where("id = ? AND is_active = true", userID).
		Updates(map[string]any{
			"is_active":  false,
			"email":      fmt.Sprintf("deleted_%d_%s@trabajapp.com", time.Now().Unix(), userID),
			"phone":      "",
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.ErrNotFound
	}
	return c.JSON(fiber.Map{"message": "account deactivated"})
}

// GetPublicProfile godoc
// @Summary      Public user profile
// @Description  Basic public info for any active user. Professionals have a
// @Description  richer profile under /api/professionals/{id}.
// @Tags         users
// @Produce      json
// @Param        id   path string true "user id (uuid)"
// @Failure      404  {object}  models.ErrorResponse
// @Router       /api/users/{id} [get]
func (h *Handler) GetPublicProfile(c *fiber.Ctx) error {
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid user id")
	}

	var u models.User
	if err := h.db.First(&u, "id = ? AND is_active = true", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.ErrNotFound
		}
		return err
	}

	return c.JSON(fiber.Map{
		"id":           u.ID,
		"first_name":   u.FirstName,
		"last_name":    u.LastName,
		"user_type":    u.UserType,
		"city":         u.City,
		"rating_avg":   u.RatingAvg,
		"rating_count": u.RatingCount,
		"member_since": u.CreatedAt,
	})
}
