// Package reviews handles post-delivery ratings between the two parties
// of a job. Each review updates the reviewee's aggregate rating in the
// same transaction.
package reviews

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/trabajapp/trabajapp-backend/internal/auth"
	"github.com/trabajapp/trabajapp-backend/internal/notifications"
	"github.com/trabajapp/trabajapp-backend/pkg/apperr"
	"github.com/trabajapp/trabajapp-backend/pkg/models"
	"github.com/trabajapp/trabajapp-backend/pkg/validation"
)

type Handler struct {
	db *gorm.DB
}

func NewHandler(db *gorm.DB) *Handler { return &Handler{db: db} }

type CreateReviewRequest struct {
	JobID   string `json:"job_id" validate:"required,uuid4"`
	Rating  int    `json:"rating" validate:"required,gte=1,lte=5"`
	Comment string `json:"comment" validate:"omitempty,max=1000"`
}

// Create godoc
// @Summary      Review the other party of a delivered job
// @Tags         reviews
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body  CreateReviewRequest  true  "Review payload"
// @Success      201  {object}  models.Review
// @Failure      400  {object}  models.ValidationErrorResponse
// @Router       /api/reviews [post]
func (h *Handler) Create(c *fiber.Ctx) error {
	var in CreateReviewRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	if errs, err := validation.Validate(in); err != nil {
		return err
	} else if errs != nil {
		return validation.Respond(c, errs)
	}

	reviewerID, _ := uuid.Parse(auth.MustUserID(c))
	jobID, _ := uuid.Parse(in.JobID)

	var review models.Review
	err := h.db.Transaction(func(tx *gorm.DB) error {
		var job models.Job
		if err := tx.First(&job, "id = ?", jobID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.ErrNotFound
			}
			return err
		}
		if job.Status != models.JobDelivered {
			return &apperr.InvalidTransitionError{From: string(job.Status), Event: "review"}
		}

		// Reviewer must be a party; the reviewee is the other one.
		var revieweeID uuid.UUID
		switch {
		case job.ClientID == reviewerID:
			if job.ProfessionalID == nil {
				return apperr.ErrForbidden
			}
			revieweeID = *job.ProfessionalID
		case job.ProfessionalID != nil && *job.ProfessionalID == reviewerID:
			revieweeID = job.ClientID
		default:
			return apperr.ErrForbidden
		}

		var dup int64
		if err := tx.Model(&models.Review{}).
			Where("job_id = ? AND reviewer_id = ?", jobID, reviewerID).
			Count(&dup).Error; err != nil {
			return err
		}
		if dup > 0 {
			return fiber.NewError(fiber.StatusConflict, "job already reviewed")
		}

		review = models.Review{
			JobID:      jobID,
			ReviewerID: reviewerID,
			RevieweeID: revieweeID,
			Rating:     in.Rating,
			Comment:    strings.TrimSpace(in.Comment),
		}
		if err := tx.Create(&review).Error; err != nil {
			return err
		}

		// Fold the new rating into the reviewee's aggregate.
		if err := tx.Model(&models.User{}).
			Where("id = ?", revieweeID).
			Updates(map[string]any{
				"rating_avg": gorm.Expr(
					"ROUND(((rating_avg * rating_count) + ?) / (rating_count + 1), 2)", in.Rating),
				"rating_count": gorm.Expr("rating_count + 1"),
				"updated_at":   time.Now(),
			}).Error; err != nil {
			return err
		}

		notifications.Emit(tx, notifications.Event{
			UserID:  revieweeID,
			Type:    models.NotifReviewReceived,
			Title:   "New review",
			Message: fmt.Sprintf("%s (%s)", job.Title, job.JobNumber),
			JobID:   &job.ID,
		})
		return nil
	})
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(review)
}

type reviewItem struct {
	ID           uuid.UUID `json:"id"`
	JobID        uuid.UUID `json:"jobId"`
	ReviewerName string    `json:"reviewerName"`
	Rating       int       `json:"rating"`
	Comment      string    `json:"comment"`
	CreatedAt    time.Time `json:"createdAt"`
}

// ListForUser godoc
// @Summary      List reviews about a user
// @Tags         reviews
// @Produce      json
// @Param        id       path  string true  "user id (uuid)"
// @Param        page     query int    false "page"
// @Param        pageSize query int    false "pageSize"
// @Router       /api/users/{id}/reviews [get]
func (h *Handler) ListForUser(c *fiber.Ctx) error {
	userID := c.Params("id")
	if _, err := uuid.Parse(userID); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid user id")
	}

	page, _ := strconv.Atoi(c.Query("page", "1"))
	size, _ := strconv.Atoi(c.Query("pageSize", "20"))
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 50 {
		size = 20
	}

	q := h.db.Model(&models.Review{}).Where("reviewee_id = ?", userID)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return err
	}

	var rows []models.Review
	if err := q.Order("created_at DESC").
		Offset((page - 1) * size).Limit(size).
		Find(&rows).Error; err != nil {
		return err
	}

	names := map[uuid.UUID]string{}
	if len(rows) > 0 {
		ids := make([]uuid.UUID, 0, len(rows))
		for _, r := range rows {
			ids = append(ids, r.ReviewerID)
		}
		var users []models.User
		if err := h.db.Select("id, first_name, last_name").
			Find(&users, "id IN ?", ids).Error; err != nil {
			return err
		}
		for _, u := range users {
			names[u.ID] = strings.TrimSpace(u.FirstName + " " + u.LastName)
		}
	}

	items := make([]reviewItem, 0, len(rows))
	for _, r := range rows {
		items = append(items, reviewItem{
			ID:           r.ID,
			JobID:        r.JobID,
			ReviewerName: names[r.ReviewerID],
			Rating:       r.Rating,
			Comment:      r.Comment,
			CreatedAt:    r.CreatedAt,
		})
	}

	return c.JSON(fiber.Map{
		"page": page, "pageSize": size, "total": total,
		"pages": int(math.Ceil(float64(total) / float64(size))),
		"items": items,
	})
}
