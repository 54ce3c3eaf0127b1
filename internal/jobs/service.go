package jobs

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/trabajapp/trabajapp-backend/internal/notifications"
	"github.com/trabajapp/trabajapp-backend/internal/payments"
	"github.com/trabajapp/trabajapp-backend/pkg/apperr"
	"github.com/trabajapp/trabajapp-backend/pkg/models"
	"github.com/trabajapp/trabajapp-backend/pkg/utils"
)

// Actor identifies who is requesting a transition.
type Actor struct {
	ID   uuid.UUID
	Type models.UserType
}

// Service is the job orchestrator: it coordinates state machine
// transitions with their side effects (audit rows, domain events, the
// payment record on delivery) inside one transaction per operation.
type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service { return &Service{db: db} }

// quotationEvents only happen through the quotation flow, never through
// the transition API directly.
var quotationEvents = map[Event]bool{
	EventReceiveQuotation: true,
	EventAcceptQuotation:  true,
}

// Transition applies ev to the job on behalf of actor. The job row is
// locked for the duration of the transaction, and the status update
// carries an optimistic guard on the prior status: a concurrent commit
// that beat us surfaces as ErrConcurrencyConflict.
func (s *Service) Transition(jobID uuid.UUID, ev Event, actor Actor, reason string) (*models.Job, error) {
	if quotationEvents[ev] {
		return nil, &apperr.ValidationError{Field: "event", Message: fmt.Sprintf("%s is not a direct transition", ev)}
	}
	if ev == EventCancel && reason == "" {
		return nil, &apperr.ValidationError{Field: "reason", Message: "cancellation requires a reason"}
	}
	if ev == EventDispute && reason == "" {
		return nil, &apperr.ValidationError{Field: "reason", Message: "dispute requires a reason"}
	}

	var job models.Job
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&job, "id = ?", jobID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.ErrNotFound
			}
			return err
		}

		if err := authorize(&job, ev, actor); err != nil {
			return err
		}

		oldStatus := job.Status
		now := time.Now()
		if err := Transition(&job, ev, now); err != nil {
			return err
		}

		updates := map[string]any{"status": job.Status, "updated_at": now}
		switch ev {
		case EventPublish:
			updates["published_at"] = job.PublishedAt
		case EventStartWork:
			updates["started_at"] = job.StartedAt
		case EventCompleteWork:
			updates["completed_at"] = job.CompletedAt
		case EventDeliver:
			updates["delivered_at"] = job.DeliveredAt
		case EventCancel:
			job.CancellationReason = reason
			updates["cancelled_at"] = job.CancelledAt
			updates["cancellation_reason"] = reason
		case EventDispute:
			job.DisputeReason = reason
			updates["dispute_reason"] = reason
		}

		res := tx.Model(&models.Job{}).
			Where("id = ? AND status = ?", job.ID, oldStatus).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.ErrConcurrencyConflict
		}

		if ev == EventDeliver {
			if _, err := payments.CreateForJob(tx, &job); err != nil {
				return err
			}
		}

		utils.LogJobHistory(tx, job.ID, actor.ID, string(ev), oldStatus, job.Status, reason)
		s.notify(tx, &job, ev, actor)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// authorize checks the actor against the party each event belongs to.
func authorize(job *models.Job, ev Event, actor Actor) error {
	isOwner := job.ClientID == actor.ID
	isAssigned := job.ProfessionalID != nil && *job.ProfessionalID == actor.ID

	switch ev {
	case EventPublish, EventConfirm, EventDeliver, EventCancel:
		if !isOwner {
			return apperr.ErrForbidden
		}
	case EventStartWork, EventCompleteWork:
		if !isAssigned {
			return apperr.ErrForbidden
		}
	case EventDispute:
		if !isOwner && !isAssigned {
			return apperr.ErrForbidden
		}
	}
	return nil
}

// notify records the domain event for the counterparty.
func (s *Service) notify(tx *gorm.DB, job *models.Job, ev Event, actor Actor) {
	var (
		target uuid.UUID
		typ    models.NotificationType
		title  string
	)

	switch ev {
	case EventConfirm:
		if job.ProfessionalID == nil {
			return
		}
		target, typ, title = *job.ProfessionalID, models.NotifJobConfirmed, "Job confirmed"
	case EventStartWork:
		target, typ, title = job.ClientID, models.NotifJobStarted, "Work started"
	case EventCompleteWork:
		target, typ, title = job.ClientID, models.NotifJobCompleted, "Work completed"
	case EventDeliver:
		if job.ProfessionalID == nil {
			return
		}
		target, typ, title = *job.ProfessionalID, models.NotifJobDelivered, "Job delivered"
	case EventCancel:
		if job.ProfessionalID == nil {
			return
		}
		target, typ, title = *job.ProfessionalID, models.NotifJobCancelled, "Job cancelled"
	case EventDispute:
		// Notify whichever party did not raise the dispute.
		if actor.ID == job.ClientID && job.ProfessionalID != nil {
			target = *job.ProfessionalID
		} else {
			target = job.ClientID
		}
		typ, title = models.NotifJobDisputed, "Job disputed"
	default:
		return
	}

	notifications.Emit(tx, notifications.Event{
		UserID:  target,
		Type:    typ,
		Title:   title,
		Message: fmt.Sprintf("%s (%s)", job.Title, job.JobNumber),
		JobID:   &job.ID,
	})
}

// NextJobNumber produces the next sequential display code (TJ-001, ...).
// Must run inside the transaction that inserts the job.
func NextJobNumber(tx *gorm.DB) (string, error) {
	var count int64
	if err := tx.Model(&models.Job{}).Count(&count).Error; err != nil {
		return "", err
	}
	return fmt.Sprintf("TJ-%03d", count+1), nil
}
