package quotations

import (
	"time"

	"github.com/trabajapp/trabajapp-backend/pkg/apperr"
	"github.com/trabajapp/trabajapp-backend/pkg/models"
)

// Stored-pending quotations past their validity deadline read as expired.
// Expiry is computed here, at read time; there is no background sweep and
// the stored row keeps saying "pending" (see DESIGN.md).
func EffectiveStatus(q *models.Quotation, now time.Time) models.QuotationStatus {
	if q.Status == models.QuotationPending && now.After(q.ValidUntil) {
		return models.QuotationExpired
	}
	return q.Status
}

// jobStatusesPastAssignment are the job states in which a professional can
// no longer pull out of the deal.
var jobStatusesPastAssignment = map[models.JobStatus]bool{
	models.JobAssigned:   true,
	models.JobConfirmed:  true,
	models.JobInProgress: true,
	models.JobCompleted:  true,
	models.JobDelivered:  true,
}

func requirePending(q *models.Quotation, action string, now time.Time) error {
	if st := EffectiveStatus(q, now); st != models.QuotationPending {
		return &apperr.InvalidQuotationStateError{Status: string(st), Action: action}
	}
	return nil
}

// Accept marks the quotation accepted on behalf of the client. Legal only
// while the quotation is effectively pending and the parent job can still
// take accept_quotation. The cascade to sibling quotations and the job's
// own transition are the orchestrator's responsibility.
func Accept(q *models.Quotation, job *models.Job, now time.Time) error {
	if err := requirePending(q, "accept", now); err != nil {
		return err
	}
	if job.Status != models.JobPending && job.Status != models.JobQuoted {
		return &apperr.InvalidTransitionError{From: string(job.Status), Event: "accept_quotation"}
	}
	q.Status = models.QuotationAccepted
	q.RespondedAt = &now
	return nil
}

// Reject marks the quotation rejected, either by the client's explicit
// decision or by the cascade after a sibling was accepted.
func Reject(q *models.Quotation, feedback string, now time.Time) error {
	if err := requirePending(q, "reject", now); err != nil {
		return err
	}
	q.Status = models.QuotationRejected
	q.ClientFeedback = feedback
	q.RespondedAt = &now
	return nil
}

// Withdraw retracts the quotation on behalf of its professional. Legal
// only while pending and before the job reaches assigned.
func Withdraw(q *models.Quotation, job *models.Job, now time.Time) error {
	if err := requirePending(q, "withdraw", now); err != nil {
		return err
	}
	if jobStatusesPastAssignment[job.Status] {
		return &apperr.InvalidQuotationStateError{Status: string(q.Status), Action: "withdraw"}
	}
	q.Status = models.QuotationWithdrawn
	q.RespondedAt = &now
	return nil
}
