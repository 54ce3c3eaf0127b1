package professionals

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/trabajapp/trabajapp-backend/internal/auth"
	"github.com/trabajapp/trabajapp-backend/internal/search"
	"github.com/trabajapp/trabajapp-backend/pkg/apperr"
	"github.com/trabajapp/trabajapp-backend/pkg/models"
	"github.com/trabajapp/trabajapp-backend/pkg/validation"
)

// Featured portfolio slots per profile.
const maxFeaturedItems = 3

type Handler struct {
	db     *gorm.DB
	engine *search.Engine
}

func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db, engine: search.NewEngine(db)}
}

// profileFor loads the professional profile owned by the authenticated user.
func (h *Handler) profileFor(c *fiber.Ctx) (*models.ProfessionalProfile, error) {
	userID := auth.MustUserID(c)
	var p models.ProfessionalProfile
	if err := h.db.First(&p, "user_id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// ===== Search =====

// Search godoc
// @Summary      Search professionals
// @Description  Geo-filtered, ranked professional search (public)
// @Tags         professionals
// @Produce      json
// @Param        latitude   query number true  "search point latitude"
// @Param        longitude  query number true  "search point longitude"
// @Param        radiusKm   query number false "1-50, default 10"
// @Param        serviceId  query string false "service filter"
// @Param        categoryId query string false "category filter"
// @Param        minRating  query number false "1-5"
// @Param        maxPrice   query number false "max offered price"
// @Param        emergencyOnly query bool false "only emergency-accepting"
// @Param        verifiedOnly  query bool false "only verified"
// @Param        page       query int    false "default 1"
// @Param        limit      query int    false "1-50, default 20"
// @Success      200  {object}  search.Page
// @Failure      400  {object}  models.ValidationErrorResponse
// @Router       /api/professionals/search [get]
func (h *Handler) Search(c *fiber.Ctx) error {
	var crit search.Criteria
	if err := c.QueryParser(&crit); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid query parameters")
	}
	if errs, err := validation.Validate(crit); err != nil {
		return err
	} else if errs != nil {
		return validation.Respond(c, errs)
	}

	page, err := h.engine.Search(crit)
	if err != nil {
		return err
	}
	return c.JSON(page)
}

// ===== Public profile =====

// GetPublicProfile godoc
// @Summary      Professional public profile
// @Tags         professionals
// @Produce      json
// @Param        id   path string true "user id (uuid)"
// @Router       /api/professionals/{id} [get]
func (h *Handler) GetPublicProfile(c *fiber.Ctx) error {
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid professional id")
	}

	var u models.User
	err := h.db.First(&u, "id = ? AND user_type = ? AND is_active = true", id, models.UserProfessional).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.ErrNotFound
		}
		return err
	}

	var p models.ProfessionalProfile
	err = h.db.
		Preload("Services", func(db *gorm.DB) *gorm.DB { return db.Where("is_active = true") }).
		Preload("Portfolio", func(db *gorm.DB) *gorm.DB {
			return db.Order("is_featured DESC, sort_order ASC, created_at DESC")
		}).
		First(&p, "user_id = ?", u.ID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.ErrNotFound
		}
		return err
	}
	if p.Services == nil {
		p.Services = []models.ProfessionalService{}
	}
	if p.Portfolio == nil {
		p.Portfolio = []models.PortfolioItem{}
	}

	return c.JSON(fiber.Map{
		"id":          u.ID,
		"firstName":   u.FirstName,
		"lastName":    u.LastName,
		"city":        u.City,
		"province":    u.Province,
		"ratingAvg":   u.RatingAvg,
		"ratingCount": u.RatingCount,
		"profile":     p,
	})
}

// ===== Own profile =====

type UpdateProfileRequest struct {
	Bio                *string  `json:"bio" validate:"omitempty,max=1000"`
	ExperienceYears    *int     `json:"experience_years" validate:"omitempty,gte=0,lte=50"`
	HourlyRate         *float64 `json:"hourly_rate" validate:"omitempty,gte=0"`
	WorkRadiusKm       *int     `json:"work_radius_km" validate:"omitempty,gte=1,lte=100"`
	AcceptsEmergencies *bool    `json:"accepts_emergencies"`
	HasVehicle         *bool    `json:"has_vehicle"`
	HasTools           *bool    `json:"has_tools"`
}

// UpdateProfile godoc
// @Summary      Update own professional profile
// @Tags         professionals
// @Security     BearerAuth
// @Accept       json
// @Router       /api/professionals/me/profile [put]
func (h *Handler) UpdateProfile(c *fiber.Ctx) error {
	var in UpdateProfileRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	if errs, err := validation.Validate(in); err != nil {
		return err
	} else if errs != nil {
		return validation.Respond(c, errs)
	}

	p, err := h.profileFor(c)
	if err != nil {
		return err
	}

	updates := map[string]any{"updated_at": time.Now()}
	if in.Bio != nil {
		updates["bio"] = strings.TrimSpace(*in.Bio)
	}
	if in.ExperienceYears != nil {
		updates["experience_years"] = *in.ExperienceYears
	}
	if in.HourlyRate != nil {
		updates["hourly_rate"] = *in.HourlyRate
	}
	if in.WorkRadiusKm != nil {
		updates["work_radius_km"] = *in.WorkRadiusKm
	}
	if in.AcceptsEmergencies != nil {
		updates["accepts_emergencies"] = *in.AcceptsEmergencies
	}
	if in.HasVehicle != nil {
		updates["has_vehicle"] = *in.HasVehicle
	}
	if in.HasTools != nil {
		updates["has_tools"] = *in.HasTools
	}

	if err := h.db.Model(p).Updates(updates).Error; err != nil {
		return err
	}
	return c.JSON(p)
}

type availabilityReq struct {
	IsAvailable *bool `json:"is_available" validate:"required"`
}

// SetAvailability godoc
// @Summary      Toggle availability (gates search visibility)
// @Tags         professionals
// @Security     BearerAuth
// @Router       /api/professionals/me/availability [put]
func (h *Handler) SetAvailability(c *fiber.Ctx) error {
	var in availabilityReq
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	if errs, err := validation.Validate(in); err != nil {
		return err
	} else if errs != nil {
		return validation.Respond(c, errs)
	}

	p, err := h.profileFor(c)
	if err != nil {
		return err
	}
	if err := h.db.Model(p).Updates(map[string]any{
		"is_available": *in.IsAvailable,
		"updated_at":   time.Now(),
	}).Error; err != nil {
		return err
	}
	return c.JSON(fiber.Map{"isAvailable": *in.IsAvailable})
}

// ===== Offered services =====

type AddServiceRequest struct {
	ServiceID   string  `json:"service_id" validate:"required,uuid4"`
	CustomPrice float64 `json:"custom_price" validate:"required,gt=0"`
	PriceUnit   string  `json:"price_unit" validate:"omitempty,priceunit"`
	Description string  `json:"description" validate:"omitempty,max=500"`
}

// AddService godoc
// @Summary      Offer a catalog service at a custom price
// @Tags         professionals
// @Security     BearerAuth
// @Router       /api/professionals/me/services [post]
func (h *Handler) AddService(c *fiber.Ctx) error {
	var in AddServiceRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	if errs, err := validation.Validate(in); err != nil {
		return err
	} else if errs != nil {
		return validation.Respond(c, errs)
	}

	p, err := h.profileFor(c)
	if err != nil {
		return err
	}

	serviceID, _ := uuid.Parse(in.ServiceID)
	var svcCount int64
	if err := h.db.Model(&models.Service{}).
		Where("id = ? AND is_active = true", serviceID).
		Count(&svcCount).Error; err != nil {
		return err
	}
	if svcCount == 0 {
		return validation.Respond(c, map[string][]string{
			"service_id": {"Unknown service"},
		})
	}

	var dup int64
	if err := h.db.Model(&models.ProfessionalService{}).
		Where("professional_id = ? AND service_id = ?", p.ID, serviceID).
		Count(&dup).Error; err != nil {
		return err
	}
	if dup > 0 {
		return fiber.NewError(fiber.StatusConflict, "service already offered")
	}

	ps := models.ProfessionalService{
		ProfessionalID: p.ID,
		ServiceID:      serviceID,
		CustomPrice:    in.CustomPrice,
		Description:    strings.TrimSpace(in.Description),
	}
	if in.PriceUnit != "" {
		ps.PriceUnit = in.PriceUnit
	}
	if err := h.db.Create(&ps).Error; err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(ps)
}

// RemoveService godoc
// @Summary      Stop offering a service
// @Tags         professionals
// @Security     BearerAuth
// @Router       /api/professionals/me/services/{serviceId} [delete]
func (h *Handler) RemoveService(c *fiber.Ctx) error {
	serviceID := c.Params("serviceId")
	if _, err := uuid.Parse(serviceID); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid service id")
	}

	p, err := h.profileFor(c)
	if err != nil {
		return err
	}

	res := h.db.Where("professional_id = ? AND service_id = ?", p.ID, serviceID).
		Delete(&models.ProfessionalService{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.ErrNotFound
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ===== Portfolio =====

type AddPortfolioRequest struct {
	Title         string     `json:"title" validate:"required,max=120"`
	Description   string     `json:"description" validate:"omitempty,max=1000"`
	ServiceID     *string    `json:"service_id" validate:"omitempty,uuid4"`
	ImageURL      string     `json:"image_url" validate:"omitempty,url,max=500"`
	CompletedDate *time.Time `json:"completed_date"`
	IsFeatured    bool       `json:"is_featured"`
}

// AddPortfolioItem godoc
// @Summary      Add a portfolio item (max 3 featured)
// @Tags         professionals
// @Security     BearerAuth
// @Router       /api/professionals/me/portfolio [post]
func (h *Handler) AddPortfolioItem(c *fiber.Ctx) error {
	var in AddPortfolioRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	if errs, err := validation.Validate(in); err != nil {
		return err
	} else if errs != nil {
		return validation.Respond(c, errs)
	}

	p, err := h.profileFor(c)
	if err != nil {
		return err
	}

	if in.IsFeatured {
		var featured int64
		if err := h.db.Model(&models.PortfolioItem{}).
			Where("professional_id = ? AND is_featured = true", p.ID).
			Count(&featured).Error; err != nil {
			return err
		}
		if featured >= maxFeaturedItems {
			return validation.Respond(c, map[string][]string{
				"is_featured": {"At most 3 featured items per profile"},
			})
		}
	}

	item := models.PortfolioItem{
		ProfessionalID: p.ID,
		Title:          strings.TrimSpace(in.Title),
		Description:    strings.TrimSpace(in.Description),
		ImageURL:       strings.TrimSpace(in.ImageURL),
		CompletedDate:  in.CompletedDate,
		IsFeatured:     in.IsFeatured,
	}
	if in.ServiceID != nil {
		sid, _ := uuid.Parse(*in.ServiceID)
		item.ServiceID = &sid
	}
	if err := h.db.Create(&item).Error; err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(item)
}

// RemovePortfolioItem godoc
// @Summary      Remove a portfolio item
// @Tags         professionals
// @Security     BearerAuth
// @Router       /api/professionals/me/portfolio/{id} [delete]
func (h *Handler) RemovePortfolioItem(c *fiber.Ctx) error {
	itemID := c.Params("id")
	if _, err := uuid.Parse(itemID); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid portfolio item id")
	}

	p, err := h.profileFor(c)
	if err != nil {
		return err
	}

	res := h.db.Where("id = ? AND professional_id = ?", itemID, p.ID).
		Delete(&models.PortfolioItem{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.ErrNotFound
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ===== Stats =====

// Stats godoc
// @Summary      Own dashboard numbers
// @Tags         professionals
// @Security     BearerAuth
// @Produce      json
// @Router       /api/professionals/me/stats [get]
func (h *Handler) Stats(c *fiber.Ctx) error {
	userID, _ := uuid.Parse(auth.MustUserID(c))

	var (
		completedJobs  int64
		activeJobs     int64
		quotationsSent int64
		quotationsWon  int64
		totalEarnings  float64
	)

	if err := h.db.Model(&models.Job{}).
		Where("professional_id = ? AND status = ?", userID, models.JobDelivered).
		Count(&completedJobs).Error; err != nil {
		return err
	}
	if err := h.db.Model(&models.Job{}).
		Where("professional_id = ? AND status IN ?", userID, []models.JobStatus{
			models.JobAssigned, models.JobConfirmed, models.JobInProgress, models.JobCompleted,
		}).Count(&activeJobs).Error; err != nil {
		return err
	}
	if err := h.db.Model(&models.Quotation{}).
		Where("professional_id = ?", userID).
		Count(&quotationsSent).Error; err != nil {
		return err
	}
	if err := h.db.Model(&models.Quotation{}).
		Where("professional_id = ? AND status = ?", userID, models.QuotationAccepted).
		Count(&quotationsWon).Error; err != nil {
		return err
	}
	if err := h.db.Model(&models.Payment{}).
		Where("professional_id = ?", userID).
		Select("COALESCE(SUM(professional_amount), 0)").
		Scan(&totalEarnings).Error; err != nil {
		return err
	}

	var acceptanceRate float64
	if quotationsSent > 0 {
		acceptanceRate = float64(quotationsWon) / float64(quotationsSent)
	}

	var u models.User
	if err := h.db.Select("rating_avg, rating_count").
		First(&u, "id = ?", userID).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"completedJobs":  completedJobs,
		"activeJobs":     activeJobs,
		"quotationsSent": quotationsSent,
		"quotationsWon":  quotationsWon,
		"acceptanceRate": acceptanceRate,
		"totalEarnings":  totalEarnings,
		"ratingAvg":      u.RatingAvg,
		"ratingCount":    u.RatingCount,
	})
}
