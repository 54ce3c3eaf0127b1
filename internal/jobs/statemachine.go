package jobs

import (
	"time"

	"github.com/trabajapp/trabajapp-backend/pkg/apperr"
	"github.com/trabajapp/trabajapp-backend/pkg/models"
)

// Event is a job lifecycle event.
type Event string

const (
	EventPublish          Event = "publish"
	EventReceiveQuotation Event = "receive_quotation"
	EventAcceptQuotation  Event = "accept_quotation"
	EventConfirm          Event = "confirm"
	EventStartWork        Event = "start_work"
	EventCompleteWork     Event = "complete_work"
	EventDeliver          Event = "deliver"
	EventCancel           Event = "cancel"
	EventDispute          Event = "dispute"
)

type transition struct {
	from []models.JobStatus
	to   models.JobStatus
}

// The full lifecycle. Any event applied from a status not listed in its
// "from" set fails, never silently succeeds.
var transitions = map[Event]transition{
	EventPublish:          {from: []models.JobStatus{models.JobDraft}, to: models.JobPending},
	EventReceiveQuotation: {from: []models.JobStatus{models.JobPending}, to: models.JobQuoted},
	EventAcceptQuotation:  {from: []models.JobStatus{models.JobPending, models.JobQuoted}, to: models.JobAssigned},
	EventConfirm:          {from: []models.JobStatus{models.JobAssigned}, to: models.JobConfirmed},
	EventStartWork:        {from: []models.JobStatus{models.JobConfirmed}, to: models.JobInProgress},
	EventCompleteWork:     {from: []models.JobStatus{models.JobInProgress}, to: models.JobCompleted},
	EventDeliver:          {from: []models.JobStatus{models.JobCompleted}, to: models.JobDelivered},
	EventCancel: {
		from: []models.JobStatus{models.JobDraft, models.JobPending, models.JobQuoted, models.JobAssigned, models.JobConfirmed},
		to:   models.JobCancelled,
	},
	EventDispute: {
		from: []models.JobStatus{models.JobInProgress, models.JobCompleted, models.JobDelivered},
		to:   models.JobDisputed,
	},
}

// CanApply reports whether ev is legal from the given status.
func CanApply(status models.JobStatus, ev Event) bool {
	tr, ok := transitions[ev]
	if !ok {
		return false
	}
	for _, s := range tr.from {
		if s == status {
			return true
		}
	}
	return false
}

// Transition applies ev to the job in place: it moves the status and sets
// the timestamp the event produces, each exactly once. The job is left
// untouched when the event is illegal from its current status.
//
// Fields beyond status and timestamps (assigned professional, final price,
// cancellation reason, dispute metadata) are the orchestrator's concern.
func Transition(job *models.Job, ev Event, now time.Time) error {
	if !CanApply(job.Status, ev) {
		return &apperr.InvalidTransitionError{From: string(job.Status), Event: string(ev)}
	}

	job.Status = transitions[ev].to

	switch ev {
	case EventPublish:
		job.PublishedAt = &now
	case EventAcceptQuotation:
		job.AssignedAt = &now
	case EventStartWork:
		job.StartedAt = &now
	case EventCompleteWork:
		job.CompletedAt = &now
	case EventDeliver:
		job.DeliveredAt = &now
	case EventCancel:
		job.CancelledAt = &now
	}

	return nil
}
