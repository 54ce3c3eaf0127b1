package quotations

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/trabajapp/trabajapp-backend/internal/jobs"
	"github.com/trabajapp/trabajapp-backend/internal/notifications"
	"github.com/trabajapp/trabajapp-backend/pkg/apperr"
	"github.com/trabajapp/trabajapp-backend/pkg/models"
	"github.com/trabajapp/trabajapp-backend/pkg/utils"
)

// Service coordinates quotation actions with the job state machine. Every
// operation locks the job row first, so only one quotation mutation per
// job can be in flight.
type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service { return &Service{db: db} }

// SubmitInput carries the quotation fields a professional proposes.
type SubmitInput struct {
	TotalPrice         float64
	Currency           string
	Description        string
	EstimatedHours     *int
	EstimatedStartDate *time.Time
	ValidUntil         time.Time
}

// Submit creates the professional's quotation for a job, or updates it if
// a still-pending one exists. The first quotation moves the job from
// pending to quoted.
func (s *Service) Submit(jobID, professionalID uuid.UUID, in SubmitInput) (*models.Quotation, error) {
	now := time.Now()
	if !in.ValidUntil.After(now) {
		return nil, &apperr.ValidationError{Field: "valid_until", Message: "validity deadline must be in the future"}
	}

	var q models.Quotation
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var job models.Job
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&job, "id = ?", jobID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.ErrNotFound
			}
			return err
		}

		if job.Status != models.JobPending && job.Status != models.JobQuoted {
			return &apperr.InvalidTransitionError{From: string(job.Status), Event: string(jobs.EventReceiveQuotation)}
		}

		// One quotation per (job, professional); resubmission updates a
		// pending or expired one. The new valid_until is already checked
		// to be in the future, so an expired quote becomes pending again.
		err := tx.Where("job_id = ? AND professional_id = ?", jobID, professionalID).First(&q).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			q = models.Quotation{
				JobID:              jobID,
				ProfessionalID:     professionalID,
				TotalPrice:         in.TotalPrice,
				Currency:           in.Currency,
				Description:        in.Description,
				EstimatedHours:     in.EstimatedHours,
				EstimatedStartDate: in.EstimatedStartDate,
				Status:             models.QuotationPending,
				ValidUntil:         in.ValidUntil,
				CreatedAt:          now,
				UpdatedAt:          now,
			}
			if err := tx.Create(&q).Error; err != nil {
				return err
			}
		case err == nil:
			if st := EffectiveStatus(&q, now); st != models.QuotationPending && st != models.QuotationExpired {
				return &apperr.InvalidQuotationStateError{Status: string(st), Action: "resubmit"}
			}
			updates := map[string]any{
				"total_price":          in.TotalPrice,
				"currency":             in.Currency,
				"description":          in.Description,
				"estimated_hours":      in.EstimatedHours,
				"estimated_start_date": in.EstimatedStartDate,
				"valid_until":          in.ValidUntil,
				"updated_at":           now,
			}
			if err := tx.Model(&q).Updates(updates).Error; err != nil {
				return err
			}
			q.TotalPrice = in.TotalPrice
			q.Currency = in.Currency
			q.Description = in.Description
			q.EstimatedHours = in.EstimatedHours
			q.EstimatedStartDate = in.EstimatedStartDate
			q.ValidUntil = in.ValidUntil
		default:
			return err
		}

		// First quotation moves the job to quoted.
		if job.Status == models.JobPending {
			oldStatus := job.Status
			if err := jobs.Transition(&job, jobs.EventReceiveQuotation, now); err != nil {
				return err
			}
			res := tx.Model(&models.Job{}).
				Where("id = ? AND status = ?", job.ID, oldStatus).
				Updates(map[string]any{"status": job.Status, "updated_at": now})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return apperr.ErrConcurrencyConflict
			}
			utils.LogJobHistory(tx, job.ID, professionalID, string(jobs.EventReceiveQuotation), oldStatus, job.Status, "")
		}

		notifications.Emit(tx, notifications.Event{
			UserID:      job.ClientID,
			Type:        models.NotifNewQuotation,
			Title:       "New quotation",
			Message:     fmt.Sprintf("%s (%s)", job.Title, job.JobNumber),
			JobID:       &job.ID,
			QuotationID: &q.ID,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &q, nil
}

// Respond applies the client's decision on a quotation.
//
// Accepting runs the full cascade in one transaction: the chosen
// quotation becomes accepted, every sibling still pending becomes
// rejected, and the job moves to assigned with the professional and final
// price set. Either all of it commits or none does.
func (s *Service) Respond(quotationID, clientID uuid.UUID, decision, feedback string) (*models.Job, *models.Quotation, error) {
	if decision != "accept" && decision != "reject" {
		return nil, nil, &apperr.ValidationError{Field: "decision", Message: "must be accept or reject"}
	}

	var (
		job models.Job
		q   models.Quotation
	)
	err := s.db.Transaction(func(tx *gorm.DB) error {
		// Resolve the job first, then take its lock before touching any
		// quotation row.
		if err := tx.First(&q, "id = ?", quotationID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.ErrNotFound
			}
			return err
		}
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&job, "id = ?", q.JobID).Error; err != nil {
			return err
		}
		if job.ClientID != clientID {
			return apperr.ErrForbidden
		}
		// Re-read under the job lock; the row may have changed while we
		// waited.
		if err := tx.First(&q, "id = ?", quotationID).Error; err != nil {
			return err
		}

		now := time.Now()
		if decision == "reject" {
			return s.reject(tx, &job, &q, clientID, feedback, now)
		}
		return s.accept(tx, &job, &q, clientID, now)
	})
	if err != nil {
		return nil, nil, err
	}
	return &job, &q, nil
}

func (s *Service) reject(tx *gorm.DB, job *models.Job, q *models.Quotation, clientID uuid.UUID, feedback string, now time.Time) error {
	if err := Reject(q, feedback, now); err != nil {
		return err
	}

	res := tx.Model(&models.Quotation{}).
		Where("id = ? AND status = ?", q.ID, models.QuotationPending).
		Updates(map[string]any{
			"status":          q.Status,
			"client_feedback": q.ClientFeedback,
			"responded_at":    q.RespondedAt,
			"updated_at":      now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.ErrConcurrencyConflict
	}

	utils.LogJobHistory(tx, job.ID, clientID, "quotation_rejected", job.Status, job.Status, feedback)
	notifications.Emit(tx, notifications.Event{
		UserID:      q.ProfessionalID,
		Type:        models.NotifQuotationRejected,
		Title:       "Quotation rejected",
		Message:     fmt.Sprintf("%s (%s)", job.Title, job.JobNumber),
		JobID:       &job.ID,
		QuotationID: &q.ID,
	})
	return nil
}

func (s *Service) accept(tx *gorm.DB, job *models.Job, q *models.Quotation, clientID uuid.UUID, now time.Time) error {
	if err := Accept(q, job, now); err != nil {
		return err
	}

	oldStatus := job.Status
	if err := jobs.Transition(job, jobs.EventAcceptQuotation, now); err != nil {
		return err
	}
	job.ProfessionalID = &q.ProfessionalID
	job.FinalPrice = &q.TotalPrice

	// Winner.
	res := tx.Model(&models.Quotation{}).
		Where("id = ? AND status = ?", q.ID, models.QuotationPending).
		Updates(map[string]any{
			"status":       models.QuotationAccepted,
			"responded_at": now,
			"updated_at":   now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.ErrConcurrencyConflict
	}

	// Siblings to reject, remembered for their notifications.
	var siblingPros []uuid.UUID
	if err := tx.Model(&models.Quotation{}).
		Where("job_id = ? AND id <> ? AND status = ?", job.ID, q.ID, models.QuotationPending).
		Pluck("professional_id", &siblingPros).Error; err != nil {
		return err
	}
	if err := tx.Model(&models.Quotation{}).
		Where("job_id = ? AND id <> ? AND status = ?", job.ID, q.ID, models.QuotationPending).
		Updates(map[string]any{
			"status":       models.QuotationRejected,
			"responded_at": now,
			"updated_at":   now,
		}).Error; err != nil {
		return err
	}

	// Job gets its professional and final price.
	res = tx.Model(&models.Job{}).
		Where("id = ? AND status = ?", job.ID, oldStatus).
		Updates(map[string]any{
			"status":          job.Status,
			"professional_id": q.ProfessionalID,
			"final_price":     q.TotalPrice,
			"assigned_at":     job.AssignedAt,
			"updated_at":      now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.ErrConcurrencyConflict
	}

	utils.LogJobHistory(tx, job.ID, clientID, "quotation_accepted", oldStatus, job.Status, "")

	notifications.Emit(tx, notifications.Event{
		UserID:      q.ProfessionalID,
		Type:        models.NotifQuotationAccepted,
		Title:       "Quotation accepted",
		Message:     fmt.Sprintf("%s (%s)", job.Title, job.JobNumber),
		JobID:       &job.ID,
		QuotationID: &q.ID,
	})
	notifications.Emit(tx, notifications.Event{
		UserID:  q.ProfessionalID,
		Type:    models.NotifJobAssigned,
		Title:   "Job assigned",
		Message: fmt.Sprintf("%s (%s)", job.Title, job.JobNumber),
		JobID:   &job.ID,
	})
	for _, pro := range siblingPros {
		notifications.Emit(tx, notifications.Event{
			UserID:  pro,
			Type:    models.NotifQuotationRejected,
			Title:   "Quotation rejected",
			Message: fmt.Sprintf("%s (%s)", job.Title, job.JobNumber),
			JobID:   &job.ID,
		})
	}
	return nil
}

// Withdraw retracts the professional's own pending quotation, legal only
// before the job reaches assigned.
func (s *Service) Withdraw(quotationID, professionalID uuid.UUID) (*models.Quotation, error) {
	var q models.Quotation
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&q, "id = ?", quotationID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.ErrNotFound
			}
			return err
		}
		if q.ProfessionalID != professionalID {
			return apperr.ErrForbidden
		}

		var job models.Job
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&job, "id = ?", q.JobID).Error; err != nil {
			return err
		}
		if err := tx.First(&q, "id = ?", quotationID).Error; err != nil {
			return err
		}

		now := time.Now()
		if err := Withdraw(&q, &job, now); err != nil {
			return err
		}

		res := tx.Model(&models.Quotation{}).
			Where("id = ? AND status = ?", q.ID, models.QuotationPending).
			Updates(map[string]any{
				"status":       q.Status,
				"responded_at": q.RespondedAt,
				"updated_at":   now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.ErrConcurrencyConflict
		}

		utils.LogJobHistory(tx, job.ID, professionalID, "quotation_withdrawn", job.Status, job.Status, "")
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &q, nil
}
