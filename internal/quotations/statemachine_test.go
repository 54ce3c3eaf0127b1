package quotations

import (
	"errors"
	"testing"
	"time"

	"github.com/trabajapp/trabajapp-backend/pkg/apperr"
	"github.com/trabajapp/trabajapp-backend/pkg/models"
)

func pendingQuotation(validFor time.Duration) *models.Quotation {
	return &models.Quotation{
		Status:     models.QuotationPending,
		ValidUntil: time.Now().Add(validFor),
	}
}

func Test_EffectiveStatus_LazyExpiry(t *testing.T) {
	now := time.Now()

	q := pendingQuotation(-time.Hour)
	if st := EffectiveStatus(q, now); st != models.QuotationExpired {
		t.Fatalf("expired quotation reads as %s", st)
	}
	// The stored status is untouched.
	if q.Status != models.QuotationPending {
		t.Fatalf("stored status mutated to %s", q.Status)
	}

	q = pendingQuotation(time.Hour)
	if st := EffectiveStatus(q, now); st != models.QuotationPending {
		t.Fatalf("valid quotation reads as %s", st)
	}

	// Non-pending statuses never read as expired.
	q = &models.Quotation{Status: models.QuotationAccepted, ValidUntil: now.Add(-time.Hour)}
	if st := EffectiveStatus(q, now); st != models.QuotationAccepted {
		t.Fatalf("accepted quotation reads as %s", st)
	}
}

func Test_Accept(t *testing.T) {
	now := time.Now()

	for _, jobStatus := range []models.JobStatus{models.JobPending, models.JobQuoted} {
		q := pendingQuotation(time.Hour)
		job := &models.Job{Status: jobStatus}
		if err := Accept(q, job, now); err != nil {
			t.Fatalf("accept with job %s: %v", jobStatus, err)
		}
		if q.Status != models.QuotationAccepted || q.RespondedAt == nil {
			t.Fatalf("accept with job %s: %+v", jobStatus, q)
		}
	}

	// Job already assigned.
	q := pendingQuotation(time.Hour)
	err := Accept(q, &models.Job{Status: models.JobAssigned}, now)
	var ite *apperr.InvalidTransitionError
	if !errors.As(err, &ite) {
		t.Fatalf("expected InvalidTransitionError, got %v", err)
	}

	// Expired quotation.
	q = pendingQuotation(-time.Minute)
	err = Accept(q, &models.Job{Status: models.JobQuoted}, now)
	var iqe *apperr.InvalidQuotationStateError
	if !errors.As(err, &iqe) {
		t.Fatalf("expected InvalidQuotationStateError, got %v", err)
	}
	if iqe.Status != "expired" || iqe.Action != "accept" {
		t.Fatalf("error detail = %+v", iqe)
	}

	// Already responded.
	q = &models.Quotation{Status: models.QuotationRejected, ValidUntil: now.Add(time.Hour)}
	if err := Accept(q, &models.Job{Status: models.JobQuoted}, now); err == nil {
		t.Fatal("accepting a rejected quotation must fail")
	}
}

func Test_Reject_RecordsFeedback(t *testing.T) {
	now := time.Now()
	q := pendingQuotation(time.Hour)

	if err := Reject(q, "too expensive", now); err != nil {
		t.Fatal(err)
	}
	if q.Status != models.QuotationRejected || q.ClientFeedback != "too expensive" || q.RespondedAt == nil {
		t.Fatalf("%+v", q)
	}

	if err := Reject(q, "", now); err == nil {
		t.Fatal("rejecting twice must fail")
	}
}

func Test_Withdraw(t *testing.T) {
	now := time.Now()

	q := pendingQuotation(time.Hour)
	if err := Withdraw(q, &models.Job{Status: models.JobQuoted}, now); err != nil {
		t.Fatal(err)
	}
	if q.Status != models.QuotationWithdrawn {
		t.Fatalf("%+v", q)
	}

	// Job already past assignment.
	for _, st := range []models.JobStatus{
		models.JobAssigned, models.JobConfirmed, models.JobInProgress,
		models.JobCompleted, models.JobDelivered,
	} {
		q := pendingQuotation(time.Hour)
		var iqe *apperr.InvalidQuotationStateError
		if err := Withdraw(q, &models.Job{Status: st}, now); !errors.As(err, &iqe) {
			t.Fatalf("withdraw with job %s: got %v", st, err)
		}
		if q.Status != models.QuotationPending {
			t.Fatalf("withdraw with job %s mutated quotation", st)
		}
	}
}
