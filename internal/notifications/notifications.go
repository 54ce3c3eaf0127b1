// Package notifications persists the domain events the job orchestrator
// emits (job.assigned, new_quotation, ...). Push/email delivery is an
// external dispatcher's job; these rows are the contract.
package notifications

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/trabajapp/trabajapp-backend/pkg/models"
)

// Event describes one notification to record for a user.
type Event struct {
	UserID      uuid.UUID
	Type        models.NotificationType
	Title       string
	Message     string
	JobID       *uuid.UUID
	QuotationID *uuid.UUID
}

// Emit writes a notification row. Best-effort: a failed insert never
// aborts the transaction that produced the event.
func Emit(db *gorm.DB, ev Event) {
	_ = db.Create(&models.Notification{
		UserID:      ev.UserID,
		Type:        ev.Type,
		Title:       ev.Title,
		Message:     ev.Message,
		JobID:       ev.JobID,
		QuotationID: ev.QuotationID,
	}).Error
}
