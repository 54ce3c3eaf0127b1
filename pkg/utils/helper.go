package utils

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/trabajapp/trabajapp-backend/pkg/models"
)

// LogJobHistory inserts an audit record into job_histories.
// Used to track important status changes and actions on a job.
// Errors are ignored on purpose (best-effort logging).
func LogJobHistory(
	db *gorm.DB,
	jobID, actorID uuid.UUID,
	action string,
	oldS, newS models.JobStatus,
	reason string,
) {
	_ = db.Create(&models.JobHistory{
		JobID:     jobID,
		ActorID:   actorID,
		Action:    action,
		OldStatus: oldS,
		NewStatus: newS,
		Reason:    reason,
		CreatedAt: time.Now(),
	}).Error
}
