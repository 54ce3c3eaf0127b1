package quotations

import (
	"math"
	"strconv"
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

type Handler struct {
	db  *gorm.DB
	svc *Service
}

func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db, svc: NewService(db)}
}

func parsePage(c *fiber.Ctx) (page, size int) {
	page, _ = strconv.Atoi(c.Query("page", "1"))
	size, _ = strconv.Atoi(c.Query("pageSize", "20"))
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 50 {
		size = 20
	}
	return
}

// =====================================
// POST /api/quotations (professional)
// =====================================

type submitReq struct {
	JobID              string     `json:"job_id" validate:"required,uuid4"`
	TotalPrice         float64    `json:"total_price" validate:"required,gt=0"`
	Currency           string     `json:"currency" validate:"required,currency"`
	Description        string     `json:"description" validate:"required,min=10,max=2000"`
	EstimatedHours     *int       `json:"estimated_hours" validate:"omitempty,gt=0"`
	EstimatedStartDate *time.Time `json:"estimated_start_date"`
	ValidUntil         time.Time  `json:"valid_until" validate:"required"`
}

// Submit godoc
// @Summary      Submit or update a quotation for a job
// @Tags         quotations
// @Security     BearerAuth
// @Router       /api/quotations [post]
func (h *Handler) Submit(c *fiber.Ctx) error {
	professionalID, _ := uuid.Parse(auth.MustUserID(c))

	var in submitReq
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	in.Currency = strings.ToUpper(strings.TrimSpace(in.Currency))
	if errs, err := validation.Validate(in); err != nil {
		return err
	} else if errs != nil {
		return validation.Respond(c, errs)
	}
	jobID, _ := uuid.Parse(in.JobID)

	q, err := h.svc.Submit(jobID, professionalID, SubmitInput{
		TotalPrice:         in.TotalPrice,
		Currency:           in.Currency,
		Description:        strings.TrimSpace(in.Description),
		EstimatedHours:     in.EstimatedHours,
		EstimatedStartDate: in.EstimatedStartDate,
		ValidUntil:         in.ValidUntil,
	})
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id":         q.ID,
		"jobId":      q.JobID,
		"totalPrice": q.TotalPrice,
		"currency":   q.Currency,
		"status":     EffectiveStatus(q, time.Now()),
		"validUntil": q.ValidUntil,
		"createdAt":  q.CreatedAt,
	})
}

// ==========================================================
// GET /api/quotations/mine?page=&pageSize=&status= (professional)
// ==========================================================

type myQuotationItem struct {
	ID         uuid.UUID              `json:"id"`
	JobID      uuid.UUID              `json:"jobId"`
	JobNumber  string                 `json:"jobNumber"`
	JobTitle   string                 `json:"jobTitle"`
	JobStatus  models.JobStatus       `json:"jobStatus"`
	TotalPrice float64                `json:"totalPrice"`
	Currency   string                 `json:"currency"`
	Status     models.QuotationStatus `json:"status"`
	ValidUntil time.Time              `json:"validUntil"`
	CreatedAt  time.Time              `json:"createdAt"`
}

// ListMine godoc
// @Summary      List the professional's quotations
// @Tags         quotations
// @Security     BearerAuth
// @Router       /api/quotations/mine [get]
func (h *Handler) ListMine(c *fiber.Ctx) error {
	professionalID := auth.MustUserID(c)
	page, size := parsePage(c)
	status := strings.TrimSpace(c.Query("status"))

	q := h.db.Table("quotations q").
		Joins("JOIN jobs j ON j.id = q.job_id").
		Where("q.professional_id = ?", professionalID)

	// Expiry is a read-time view over stored rows, so the pending and
	// expired filters split on valid_until.
	now := time.Now()
	switch status {
	case "":
	case string(models.QuotationPending):
		q = q.Where("q.status = ? AND q.valid_until > ?", models.QuotationPending, now)
	case string(models.QuotationExpired):
		q = q.Where("q.status = ? AND q.valid_until <= ?", models.QuotationPending, now)
	case string(models.QuotationAccepted), string(models.QuotationRejected), string(models.QuotationWithdrawn):
		q = q.Where("q.status = ?", status)
	default:
		return fiber.NewError(fiber.StatusBadRequest, "invalid status filter")
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return err
	}

	var rows []models.Quotation
	if err := q.Select("q.*").Order("q.created_at DESC").
		Offset((page - 1) * size).Limit(size).
		Find(&rows).Error; err != nil {
		return err
	}

	jobMeta := map[uuid.UUID]struct {
		Number string
		Title  string
		Status models.JobStatus
	}{}
	if len(rows) > 0 {
		ids := make([]uuid.UUID, 0, len(rows))
		for _, r := range rows {
			ids = append(ids, r.JobID)
		}
		var jobRows []models.Job
		if err := h.db.Select("id, job_number, title, status").
			Find(&jobRows, "id IN ?", ids).Error; err != nil {
			return err
		}
		for _, j := range jobRows {
			jobMeta[j.ID] = struct {
				Number string
				Title  string
				Status models.JobStatus
			}{j.JobNumber, j.Title, j.Status}
		}
	}

	items := make([]myQuotationItem, 0, len(rows))
	for i := range rows {
		r := &rows[i]
		m := jobMeta[r.JobID]
		items = append(items, myQuotationItem{
			ID:         r.ID,
			JobID:      r.JobID,
			JobNumber:  m.Number,
			JobTitle:   m.Title,
			JobStatus:  m.Status,
			TotalPrice: r.TotalPrice,
			Currency:   r.Currency,
			Status:     EffectiveStatus(r, now),
			ValidUntil: r.ValidUntil,
			CreatedAt:  r.CreatedAt,
		})
	}

	return c.JSON(fiber.Map{
		"page": page, "pageSize": size, "total": total,
		"pages": int(math.Ceil(float64(total) / float64(size))),
		"items": items,
	})
}

// ============================================================
// GET /api/jobs/:id/quotations (client owner)
// ============================================================

type jobQuotationItem struct {
	ID                 uuid.UUID              `json:"id"`
	ProfessionalID     uuid.UUID              `json:"professionalId"`
	ProfessionalName   string                 `json:"professionalName"`
	RatingAvg          float64                `json:"ratingAvg"`
	RatingCount        int                    `json:"ratingCount"`
	TotalPrice         float64                `json:"totalPrice"`
	Currency           string                 `json:"currency"`
	Description        string                 `json:"description"`
	EstimatedHours     *int                   `json:"estimatedHours"`
	EstimatedStartDate *time.Time             `json:"estimatedStartDate"`
	Status             models.QuotationStatus `json:"status"`
	ValidUntil         time.Time              `json:"validUntil"`
	CreatedAt          time.Time              `json:"createdAt"`
}

// ListByJobForOwner godoc
// @Summary      List quotations received on the client's job
// @Tags         quotations
// @Security     BearerAuth
// @Router       /api/jobs/{id}/quotations [get]
func (h *Handler) ListByJobForOwner(c *fiber.Ctx) error {
	clientID := auth.MustUserID(c)
	jobID := c.Params("id")
	if _, err := uuid.Parse(jobID); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid job id")
	}

	var cnt int64
	if err := h.db.Model(&models.Job{}).
		Where("id = ? AND client_id = ?", jobID, clientID).
		Count(&cnt).Error; err != nil {
		return err
	}
	if cnt == 0 {
		return apperr.ErrForbidden
	}

	page, size := parsePage(c)
	q := h.db.Model(&models.Quotation{}).Where("job_id = ?", jobID)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return err
	}

	var rows []models.Quotation
	if err := q.Order("created_at ASC").
		Offset((page - 1) * size).Limit(size).
		Find(&rows).Error; err != nil {
		return err
	}

	pros := map[uuid.UUID]models.User{}
	if len(rows) > 0 {
		ids := make([]uuid.UUID, 0, len(rows))
		for _, r := range rows {
			ids = append(ids, r.ProfessionalID)
		}
		var users []models.User
		if err := h.db.Select("id, first_name, last_name, rating_avg, rating_count").
			Find(&users, "id IN ?", ids).Error; err != nil {
			return err
		}
		for _, u := range users {
			pros[u.ID] = u
		}
	}

	now := time.Now()
	items := make([]jobQuotationItem, 0, len(rows))
	for i := range rows {
		r := &rows[i]
		u := pros[r.ProfessionalID]
		items = append(items, jobQuotationItem{
			ID:                 r.ID,
			ProfessionalID:     r.ProfessionalID,
			ProfessionalName:   strings.TrimSpace(u.FirstName + " " + u.LastName),
			RatingAvg:          u.RatingAvg,
			RatingCount:        u.RatingCount,
			TotalPrice:         r.TotalPrice,
			Currency:           r.Currency,
			Description:        r.Description,
			EstimatedHours:     r.EstimatedHours,
			EstimatedStartDate: r.EstimatedStartDate,
			Status:             EffectiveStatus(r, now),
			ValidUntil:         r.ValidUntil,
			CreatedAt:          r.CreatedAt,
		})
	}

	return c.JSON(fiber.Map{
		"page": page, "pageSize": size, "total": total,
		"pages": int(math.Ceil(float64(total) / float64(size))),
		"items": items,
	})
}

// =====================================
// POST /api/quotations/:id/respond (client)
// =====================================

type respondReq struct {
	Decision string `json:"decision" validate:"required,oneof=accept reject"`
	Feedback string `json:"feedback" validate:"omitempty,max=1000"`
}

// Respond godoc
// @Summary      Accept or reject a quotation
// @Tags         quotations
// @Security     BearerAuth
// @Router       /api/quotations/{id}/respond [post]
func (h *Handler) Respond(c *fiber.Ctx) error {
	clientID, _ := uuid.Parse(auth.MustUserID(c))
	quotationID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid quotation id")
	}

	var in respondReq
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	if errs, err := validation.Validate(in); err != nil {
		return err
	} else if errs != nil {
		return validation.Respond(c, errs)
	}

	job, q, err := h.svc.Respond(quotationID, clientID, in.Decision, strings.TrimSpace(in.Feedback))
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"quotation": fiber.Map{
			"id":     q.ID,
			"status": q.Status,
		},
		"job": fiber.Map{
			"id":             job.ID,
			"status":         job.Status,
			"professionalId": job.ProfessionalID,
			"finalPrice":     job.FinalPrice,
		},
	})
}

// =====================================
// POST /api/quotations/:id/withdraw (professional)
// =====================================

// Withdraw godoc
// @Summary      Withdraw the professional's own quotation
// @Tags         quotations
// @Security     BearerAuth
// @Router       /api/quotations/{id}/withdraw [post]
func (h *Handler) Withdraw(c *fiber.Ctx) error {
	professionalID, _ := uuid.Parse(auth.MustUserID(c))
	quotationID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid quotation id")
	}

	q, err := h.svc.Withdraw(quotationID, professionalID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"id": q.ID, "status": q.Status})
}
