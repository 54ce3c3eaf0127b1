package jobs

import (
	"errors"
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
	"github.com/trabajapp/trabajapp-backend/pkg/sanitize"
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

func actor(c *fiber.Ctx) Actor {
	id, _ := uuid.Parse(auth.MustUserID(c))
	return Actor{ID: id, Type: models.UserType(auth.MustRole(c))}
}

// ===== DTOs =====

type CreateJobRequest struct {
	Title            string     `json:"title" validate:"required,min=5,max=120"`
	Description      string     `json:"description" validate:"required,min=10,max=2000"`
	ServiceID        string     `json:"service_id" validate:"required,uuid4"`
	WorkAddress      string     `json:"work_address" validate:"required,max=255"`
	WorkLatitude     *float64   `json:"work_latitude" validate:"omitempty,latitude"`
	WorkLongitude    *float64   `json:"work_longitude" validate:"omitempty,longitude"`
	WorkCity         string     `json:"work_city" validate:"omitempty,max=100"`
	Urgency          string     `json:"urgency" validate:"omitempty,oneof=normal urgent emergency"`
	PreferredDate    *time.Time `json:"preferred_date"`
	FlexibleSchedule *bool      `json:"flexible_schedule"`
	BudgetMin        *float64   `json:"budget_min" validate:"omitempty,gte=0"`
	BudgetMax        *float64   `json:"budget_max" validate:"omitempty,gte=0"`
	Currency         string     `json:"currency" validate:"omitempty,currency"`
}

// Create godoc
// @Summary      Create job (draft)
// @Description  Client creates a new job in draft status
// @Tags         jobs
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body  CreateJobRequest  true  "Job payload"
// @Success      201  {object}  map[string]string  "id, jobNumber"
// @Failure      400  {object}  models.ValidationErrorResponse
// @Router       /api/jobs [post]
func (h *Handler) Create(c *fiber.Ctx) error {
	var in CreateJobRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	in.Currency = strings.ToUpper(strings.TrimSpace(in.Currency))
	if errs, err := validation.Validate(in); err != nil {
		return err
	} else if errs != nil {
		return validation.Respond(c, errs)
	}
	if in.BudgetMin != nil && in.BudgetMax != nil && *in.BudgetMax < *in.BudgetMin {
		return validation.Respond(c, map[string][]string{
			"budget_max": {"Must be greater than or equal to budget_min"},
		})
	}
	if (in.WorkLatitude == nil) != (in.WorkLongitude == nil) {
		return validation.Respond(c, map[string][]string{
			"work_latitude": {"Latitude and longitude must be provided together"},
		})
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

	clientID, _ := uuid.Parse(auth.MustUserID(c))
	job := models.Job{
		ClientID:    clientID,
		ServiceID:   serviceID,
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		WorkAddress: strings.TrimSpace(in.WorkAddress),
		Status:      models.JobDraft,
	}
	if in.WorkLatitude != nil {
		job.WorkLatitude = in.WorkLatitude
		job.WorkLongitude = in.WorkLongitude
	}
	if in.WorkCity != "" {
		job.WorkCity = strings.TrimSpace(in.WorkCity)
	}
	if in.Urgency != "" {
		job.Urgency = models.JobUrgency(in.Urgency)
	}
	job.PreferredDate = in.PreferredDate
	if in.FlexibleSchedule != nil {
		job.FlexibleSchedule = *in.FlexibleSchedule
	} else {
		job.FlexibleSchedule = true
	}
	job.BudgetMin = in.BudgetMin
	job.BudgetMax = in.BudgetMax
	if in.Currency != "" {
		job.Currency = in.Currency
	}

	err := h.db.Transaction(func(tx *gorm.DB) error {
		number, err := NextJobNumber(tx)
		if err != nil {
			return err
		}
		job.JobNumber = number
		return tx.Create(&job).Error
	})
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id":        job.ID,
		"jobNumber": job.JobNumber,
		"status":    job.Status,
	})
}

// ===== Listing (owner) =====

type jobWithCounts struct {
	ID          uuid.UUID        `json:"id"`
	JobNumber   string           `json:"jobNumber"`
	Title       string           `json:"title"`
	Status      models.JobStatus `json:"status"`
	Urgency     string           `json:"urgency"`
	FinalPrice  *float64         `json:"finalPrice"`
	Currency    string           `json:"currency"`
	CreatedAt   time.Time        `json:"createdAt"`
	PublishedAt *time.Time       `json:"publishedAt"`
	Quotations  int64            `json:"quotations"`
}

// ListMine godoc
// @Summary      List my jobs
// @Description  Client lists their own jobs with quotation counts
// @Tags         jobs
// @Security     BearerAuth
// @Produce      json
// @Param        page      query int    false "page"
// @Param        pageSize  query int    false "pageSize"
// @Param        status    query string false "status filter"
// @Router       /api/jobs/mine [get]
func (h *Handler) ListMine(c *fiber.Ctx) error {
	clientID := auth.MustUserID(c)
	page, size := parsePage(c)
	status := strings.TrimSpace(c.Query("status"))

	base := h.db.Model(&models.Job{}).Where("client_id = ?", clientID)
	if status != "" {
		if !validJobStatus(status) {
			return fiber.NewError(fiber.StatusBadRequest, "invalid status filter")
		}
		base = base.Where("status = ?", status)
	}

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return err
	}

	rows := make([]jobWithCounts, 0, size)
	q := h.db.Table("jobs").
		Select(`jobs.id, jobs.job_number, jobs.title, jobs.status, jobs.urgency,
          jobs.final_price, jobs.currency, jobs.created_at, jobs.published_at,
          COUNT(quotations.id) AS quotations`).
		Joins("LEFT JOIN quotations ON quotations.job_id = jobs.id").
		Where("jobs.client_id = ?", clientID)
	if status != "" {
		q = q.Where("jobs.status = ?", status)
	}
	if err := q.Group("jobs.id").
		Order("jobs.created_at DESC").
		Offset((page - 1) * size).Limit(size).
		Scan(&rows).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"page": page, "pageSize": size, "total": total,
		"pages": int(math.Ceil(float64(total) / float64(size))),
		"items": rows,
	})
}

func validJobStatus(s string) bool {
	switch models.JobStatus(s) {
	case models.JobDraft, models.JobPending, models.JobQuoted, models.JobAssigned,
		models.JobConfirmed, models.JobInProgress, models.JobCompleted,
		models.JobDelivered, models.JobCancelled, models.JobDisputed:
		return true
	}
	return false
}

// GetDetail godoc
// @Summary      Job detail
// @Description  Owner or the assigned professional gets the full job
// @Tags         jobs
// @Security     BearerAuth
// @Produce      json
// @Param        id   path string true "job id (uuid)"
// @Router       /api/jobs/{id} [get]
func (h *Handler) GetDetail(c *fiber.Ctx) error {
	userID, _ := uuid.Parse(auth.MustUserID(c))
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid job id")
	}

	var job models.Job
	if err := h.db.First(&job, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.ErrNotFound
		}
		return err
	}

	isOwner := job.ClientID == userID
	isAssigned := job.ProfessionalID != nil && *job.ProfessionalID == userID
	if !isOwner && !isAssigned {
		return apperr.ErrForbidden
	}

	return c.JSON(job)
}

// ===== Open jobs feed (professional) =====

type OpenJobItem struct {
	ID               uuid.UUID        `json:"id"`
	JobNumber        string           `json:"jobNumber"`
	Title            string           `json:"title"`
	ServiceID        uuid.UUID        `json:"serviceId"`
	Status           models.JobStatus `json:"status"`
	Urgency          string           `json:"urgency"`
	WorkCity         string           `json:"workCity"`
	BudgetMin        *float64         `json:"budgetMin"`
	BudgetMax        *float64         `json:"budgetMax"`
	Currency         string           `json:"currency"`
	PublishedAt      *time.Time       `json:"publishedAt"`
	Preview          string           `json:"preview"`
	HasMyQuotation   bool             `json:"hasMyQuotation"`
	FlexibleSchedule bool             `json:"flexibleSchedule"`
}

// OpenFeed godoc
// @Summary      Open jobs feed
// @Description  Professional browses pending and quoted jobs. Descriptions
// @Description  are previewed with contact details redacted.
// @Tags         jobs
// @Security     BearerAuth
// @Produce      json
// @Param        page       query int    false "page"
// @Param        pageSize   query int    false "pageSize"
// @Param        serviceId  query string false "service filter"
// @Param        urgency    query string false "normal|urgent|emergency"
// @Param        city       query string false "work city"
// @Router       /api/jobs/open [get]
func (h *Handler) OpenFeed(c *fiber.Ctx) error {
	professionalID := auth.MustUserID(c)
	page, size := parsePage(c)

	dbq := h.db.Model(&models.Job{}).
		Where("status IN ?", []models.JobStatus{models.JobPending, models.JobQuoted})

	if serviceID := strings.TrimSpace(c.Query("serviceId")); serviceID != "" {
		if _, err := uuid.Parse(serviceID); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid serviceId")
		}
		dbq = dbq.Where("service_id = ?", serviceID)
	}
	if urgency := strings.TrimSpace(c.Query("urgency")); urgency != "" {
		switch models.JobUrgency(urgency) {
		case models.UrgencyNormal, models.UrgencyUrgent, models.UrgencyEmergency:
			dbq = dbq.Where("urgency = ?", urgency)
		default:
			return fiber.NewError(fiber.StatusBadRequest, "invalid urgency filter")
		}
	}
	if city := strings.TrimSpace(c.Query("city")); city != "" {
		dbq = dbq.Where("work_city ILIKE ?", city)
	}

	var total int64
	if err := dbq.Count(&total).Error; err != nil {
		return err
	}

	var list []models.Job
	if err := dbq.Order("published_at DESC").
		Offset((page - 1) * size).Limit(size).
		Find(&list).Error; err != nil {
		return err
	}

	// Jobs this professional already quoted, limited to the page shown.
	jobIDs := make([]uuid.UUID, 0, len(list))
	for _, j := range list {
		jobIDs = append(jobIDs, j.ID)
	}
	quotedMap := map[uuid.UUID]bool{}
	if len(jobIDs) > 0 {
		var quotedIDs []uuid.UUID
		if err := h.db.Model(&models.Quotation{}).
			Where("professional_id = ? AND job_id IN ?", professionalID, jobIDs).
			Pluck("DISTINCT job_id", &quotedIDs).Error; err != nil {
			return err
		}
		for _, id := range quotedIDs {
			quotedMap[id] = true
		}
	}

	items := make([]OpenJobItem, 0, len(list))
	for _, j := range list {
		preview := sanitize.Summary(sanitize.RedactContactInfo(j.Description), 240)
		items = append(items, OpenJobItem{
			ID:               j.ID,
			JobNumber:        j.JobNumber,
			Title:            j.Title,
			ServiceID:        j.ServiceID,
			Status:           j.Status,
			Urgency:          string(j.Urgency),
			WorkCity:         j.WorkCity,
			BudgetMin:        j.BudgetMin,
			BudgetMax:        j.BudgetMax,
			Currency:         j.Currency,
			PublishedAt:      j.PublishedAt,
			Preview:          preview,
			HasMyQuotation:   quotedMap[j.ID],
			FlexibleSchedule: j.FlexibleSchedule,
		})
	}

	return c.JSON(fiber.Map{
		"page": page, "pageSize": size, "total": total,
		"pages": int(math.Ceil(float64(total) / float64(size))),
		"items": items,
	})
}

// ===== Lifecycle transitions =====

type transitionReq struct {
	Reason string `json:"reason" validate:"omitempty,max=1000"`
}

// advance builds the handler for one lifecycle endpoint. The body is an
// optional {"reason": ...}; cancel and dispute require it, which the
// orchestrator enforces.
func (h *Handler) advance(ev Event) fiber.Handler {
	return func(c *fiber.Ctx) error {
		jobID, err := uuid.Parse(c.Params("id"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid job id")
		}

		var in transitionReq
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&in); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "invalid json")
			}
			if errs, err := validation.Validate(in); err != nil {
				return err
			} else if errs != nil {
				return validation.Respond(c, errs)
			}
		}

		job, err := h.svc.Transition(jobID, ev, actor(c), strings.TrimSpace(in.Reason))
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{
			"id":        job.ID,
			"jobNumber": job.JobNumber,
			"status":    job.Status,
		})
	}
}

// Publish godoc
// @Summary      Publish a draft job
// @Tags         jobs
// @Security     BearerAuth
// @Router       /api/jobs/{id}/publish [post]
func (h *Handler) Publish(c *fiber.Ctx) error { return h.advance(EventPublish)(c) }

// Confirm godoc
// @Summary      Confirm the assigned professional
// @Tags         jobs
// @Security     BearerAuth
// @Router       /api/jobs/{id}/confirm [post]
func (h *Handler) Confirm(c *fiber.Ctx) error { return h.advance(EventConfirm)(c) }

// Start godoc
// @Summary      Start work (assigned professional)
// @Tags         jobs
// @Security     BearerAuth
// @Router       /api/jobs/{id}/start [post]
func (h *Handler) Start(c *fiber.Ctx) error { return h.advance(EventStartWork)(c) }

// Complete godoc
// @Summary      Mark work completed (assigned professional)
// @Tags         jobs
// @Security     BearerAuth
// @Router       /api/jobs/{id}/complete [post]
func (h *Handler) Complete(c *fiber.Ctx) error { return h.advance(EventCompleteWork)(c) }

// Deliver godoc
// @Summary      Confirm delivery (client)
// @Tags         jobs
// @Security     BearerAuth
// @Router       /api/jobs/{id}/deliver [post]
func (h *Handler) Deliver(c *fiber.Ctx) error { return h.advance(EventDeliver)(c) }

// Cancel godoc
// @Summary      Cancel a job (requires reason)
// @Tags         jobs
// @Security     BearerAuth
// @Router       /api/jobs/{id}/cancel [post]
func (h *Handler) Cancel(c *fiber.Ctx) error { return h.advance(EventCancel)(c) }

// Dispute godoc
// @Summary      Raise a dispute (requires reason)
// @Tags         jobs
// @Security     BearerAuth
// @Router       /api/jobs/{id}/dispute [post]
func (h *Handler) Dispute(c *fiber.Ctx) error { return h.advance(EventDispute)(c) }
