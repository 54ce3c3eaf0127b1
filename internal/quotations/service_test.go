package quotations

import (
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/trabajapp/trabajapp-backend/pkg/apperr"
	"github.com/trabajapp/trabajapp-backend/pkg/models"
)

/* ===== helpers ===== */

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	_ = godotenv.Load()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL is empty")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.User{}, &models.ServiceCategory{}, &models.Service{},
		&models.Job{}, &models.Quotation{}, &models.Payment{},
		&models.JobHistory{}, &models.Notification{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	t.Cleanup(func() {
		sql := `
TRUNCATE TABLE
	notifications,
	job_histories,
	payments,
	quotations,
	jobs,
	services,
	service_categories,
	users
RESTART IDENTITY CASCADE`
		if err := db.Exec(sql).Error; err != nil {
			t.Logf("truncate failed (ignored): %v", err)
		}
	})

	return db
}

type seedOut struct {
	ClientID       uuid.UUID
	ProfessionalID uuid.UUID
	JobID          uuid.UUID
}

func seedJob(t *testing.T, db *gorm.DB, status models.JobStatus) seedOut {
	t.Helper()
	clientID := uuid.New()
	proID := uuid.New()

	mustCreate(t, db, &models.User{
		ID: clientID, Email: fmt.Sprintf("c+%s@test.local", uuid.NewString()),
		UserType: models.UserClient, FirstName: "C", LastName: "T",
	})
	mustCreate(t, db, &models.User{
		ID: proID, Email: fmt.Sprintf("p+%s@test.local", uuid.NewString()),
		UserType: models.UserProfessional, FirstName: "P", LastName: "T",
	})

	cat := models.ServiceCategory{ID: uuid.New(), Name: "Plomería", Slug: "plomeria-" + uuid.NewString()}
	mustCreate(t, db, &cat)
	svc := models.Service{ID: uuid.New(), CategoryID: cat.ID, Name: "Destapación", Slug: "destapacion-" + uuid.NewString()}
	mustCreate(t, db, &svc)

	job := models.Job{
		ID:          uuid.New(),
		JobNumber:   "TJ-" + uuid.NewString()[:8],
		ClientID:    clientID,
		ServiceID:   svc.ID,
		Title:       "Canilla que pierde",
		Description: "Pierde agua sin parar",
		WorkAddress: "San Martín 123",
		Status:      status,
		CreatedAt:   time.Now(),
	}
	mustCreate(t, db, &job)

	return seedOut{ClientID: clientID, ProfessionalID: proID, JobID: job.ID}
}

func seedProfessional(t *testing.T, db *gorm.DB) uuid.UUID {
	t.Helper()
	id := uuid.New()
	mustCreate(t, db, &models.User{
		ID: id, Email: fmt.Sprintf("p+%s@test.local", uuid.NewString()),
		UserType: models.UserProfessional, FirstName: "P", LastName: "T",
	})
	return id
}

func mustCreate(t *testing.T, db *gorm.DB, v any) {
	t.Helper()
	if err := db.Create(v).Error; err != nil {
		t.Fatal(err)
	}
}

func submitInput(price float64) SubmitInput {
	return SubmitInput{
		TotalPrice:  price,
		Currency:    "ARS",
		Description: "Cambio el cuerito y reviso la instalación",
		ValidUntil:  time.Now().Add(48 * time.Hour),
	}
}

/* ================== TESTS ================== */

func Test_Submit_FirstQuotationMovesJobToQuoted(t *testing.T) {
	db := openTestDB(t)
	seed := seedJob(t, db, models.JobPending)
	svc := NewService(db)

	q, err := svc.Submit(seed.JobID, seed.ProfessionalID, submitInput(1000))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if q.Status != models.QuotationPending {
		t.Fatalf("quotation status = %s", q.Status)
	}

	var job models.Job
	if err := db.First(&job, "id = ?", seed.JobID).Error; err != nil {
		t.Fatal(err)
	}
	if job.Status != models.JobQuoted {
		t.Fatalf("job status = %s, want quoted", job.Status)
	}
}

func Test_Submit_UpdatesExistingNotCreateNew(t *testing.T) {
	db := openTestDB(t)
	seed := seedJob(t, db, models.JobPending)
	svc := NewService(db)

	if _, err := svc.Submit(seed.JobID, seed.ProfessionalID, submitInput(1000)); err != nil {
		t.Fatalf("submit-1: %v", err)
	}
	if _, err := svc.Submit(seed.JobID, seed.ProfessionalID, submitInput(1500)); err != nil {
		t.Fatalf("submit-2: %v", err)
	}

	var cnt int64
	if err := db.Model(&models.Quotation{}).
		Where("job_id = ? AND professional_id = ?", seed.JobID, seed.ProfessionalID).
		Count(&cnt).Error; err != nil {
		t.Fatal(err)
	}
	if cnt != 1 {
		t.Fatalf("want 1 row, got %d", cnt)
	}
	var q models.Quotation
	if err := db.First(&q, "job_id = ?", seed.JobID).Error; err != nil {
		t.Fatal(err)
	}
	if q.TotalPrice != 1500 {
		t.Fatalf("not updated: %+v", q)
	}
}

func Test_Submit_RefreshesExpiredQuotation(t *testing.T) {
	db := openTestDB(t)
	seed := seedJob(t, db, models.JobQuoted)
	svc := NewService(db)

	old := models.Quotation{
		ID:             uuid.New(),
		JobID:          seed.JobID,
		ProfessionalID: seed.ProfessionalID,
		TotalPrice:     800,
		Currency:       "ARS",
		Description:    "d",
		Status:         models.QuotationPending,
		ValidUntil:     time.Now().Add(-time.Hour),
	}
	mustCreate(t, db, &old)

	q, err := svc.Submit(seed.JobID, seed.ProfessionalID, submitInput(1200))
	if err != nil {
		t.Fatalf("resubmit after expiry: %v", err)
	}
	if q.ID != old.ID {
		t.Fatalf("new row created instead of updating %s", old.ID)
	}

	var stored models.Quotation
	if err := db.First(&stored, "id = ?", old.ID).Error; err != nil {
		t.Fatal(err)
	}
	if stored.TotalPrice != 1200 {
		t.Fatalf("price not updated: %+v", stored)
	}
	if !stored.ValidUntil.After(time.Now()) {
		t.Fatalf("deadline not refreshed: %s", stored.ValidUntil)
	}
	if EffectiveStatus(&stored, time.Now()) != models.QuotationPending {
		t.Fatalf("quotation still reads as expired")
	}
}

func Test_Submit_RejectedWhenJobNotOpen(t *testing.T) {
	db := openTestDB(t)
	svc := NewService(db)

	for _, st := range []models.JobStatus{
		models.JobDraft, models.JobAssigned, models.JobInProgress,
		models.JobDelivered, models.JobCancelled,
	} {
		seed := seedJob(t, db, st)
		_, err := svc.Submit(seed.JobID, seed.ProfessionalID, submitInput(1000))
		var ite *apperr.InvalidTransitionError
		if !errors.As(err, &ite) {
			t.Fatalf("status %s: want InvalidTransitionError, got %v", st, err)
		}
	}
}

func Test_Submit_PastValidityDeadline(t *testing.T) {
	db := openTestDB(t)
	seed := seedJob(t, db, models.JobPending)
	svc := NewService(db)

	in := submitInput(1000)
	in.ValidUntil = time.Now().Add(-time.Hour)
	_, err := svc.Submit(seed.JobID, seed.ProfessionalID, in)
	var ve *apperr.ValidationError
	if !errors.As(err, &ve) || ve.Field != "valid_until" {
		t.Fatalf("want validation error on valid_until, got %v", err)
	}
}

func Test_Accept_CascadeRejectsSiblingsAndAssignsJob(t *testing.T) {
	db := openTestDB(t)
	seed := seedJob(t, db, models.JobPending)
	svc := NewService(db)

	q1, err := svc.Submit(seed.JobID, seed.ProfessionalID, submitInput(100))
	if err != nil {
		t.Fatalf("submit q1: %v", err)
	}
	proB := seedProfessional(t, db)
	q2, err := svc.Submit(seed.JobID, proB, submitInput(150))
	if err != nil {
		t.Fatalf("submit q2: %v", err)
	}

	job, accepted, err := svc.Respond(q1.ID, seed.ClientID, "accept", "")
	if err != nil {
		t.Fatalf("respond: %v", err)
	}

	if job.Status != models.JobAssigned {
		t.Fatalf("job status = %s, want assigned", job.Status)
	}
	if job.ProfessionalID == nil || *job.ProfessionalID != seed.ProfessionalID {
		t.Fatalf("professional not set: %+v", job.ProfessionalID)
	}
	if job.FinalPrice == nil || *job.FinalPrice != 100 {
		t.Fatalf("final price = %+v, want 100", job.FinalPrice)
	}
	if accepted.Status != models.QuotationAccepted {
		t.Fatalf("accepted status = %s", accepted.Status)
	}

	var sibling models.Quotation
	if err := db.First(&sibling, "id = ?", q2.ID).Error; err != nil {
		t.Fatal(err)
	}
	if sibling.Status != models.QuotationRejected {
		t.Fatalf("sibling status = %s, want rejected", sibling.Status)
	}

	var dbJob models.Job
	if err := db.First(&dbJob, "id = ?", seed.JobID).Error; err != nil {
		t.Fatal(err)
	}
	if dbJob.AssignedAt == nil {
		t.Fatal("assigned_at not set")
	}
}

func Test_Accept_SecondAcceptFails(t *testing.T) {
	db := openTestDB(t)
	seed := seedJob(t, db, models.JobPending)
	svc := NewService(db)

	q1, _ := svc.Submit(seed.JobID, seed.ProfessionalID, submitInput(100))
	proB := seedProfessional(t, db)
	q2, _ := svc.Submit(seed.JobID, proB, submitInput(150))

	if _, _, err := svc.Respond(q1.ID, seed.ClientID, "accept", ""); err != nil {
		t.Fatalf("first accept: %v", err)
	}
	_, _, err := svc.Respond(q2.ID, seed.ClientID, "accept", "")
	var iqse *apperr.InvalidQuotationStateError
	if !errors.As(err, &iqse) {
		t.Fatalf("want InvalidQuotationStateError, got %v", err)
	}
}

func Test_Accept_ExpiredQuotationFails(t *testing.T) {
	db := openTestDB(t)
	seed := seedJob(t, db, models.JobQuoted)
	svc := NewService(db)

	q := models.Quotation{
		ID:             uuid.New(),
		JobID:          seed.JobID,
		ProfessionalID: seed.ProfessionalID,
		TotalPrice:     1000,
		Currency:       "ARS",
		Description:    "d",
		Status:         models.QuotationPending,
		ValidUntil:     time.Now().Add(-time.Hour),
	}
	mustCreate(t, db, &q)

	_, _, err := svc.Respond(q.ID, seed.ClientID, "accept", "")
	var iqse *apperr.InvalidQuotationStateError
	if !errors.As(err, &iqse) || iqse.Status != string(models.QuotationExpired) {
		t.Fatalf("want expired InvalidQuotationStateError, got %v", err)
	}

	// Expiry is a read-time view; the stored row stays pending.
	var stored models.Quotation
	if err := db.First(&stored, "id = ?", q.ID).Error; err != nil {
		t.Fatal(err)
	}
	if stored.Status != models.QuotationPending {
		t.Fatalf("stored status = %s, want pending", stored.Status)
	}
}

func Test_Respond_ForbiddenForNonOwner(t *testing.T) {
	db := openTestDB(t)
	seed := seedJob(t, db, models.JobPending)
	svc := NewService(db)

	q, _ := svc.Submit(seed.JobID, seed.ProfessionalID, submitInput(100))
	_, _, err := svc.Respond(q.ID, uuid.New(), "accept", "")
	if !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("want ErrForbidden, got %v", err)
	}
}

func Test_Reject_StoresFeedback(t *testing.T) {
	db := openTestDB(t)
	seed := seedJob(t, db, models.JobPending)
	svc := NewService(db)

	q, _ := svc.Submit(seed.JobID, seed.ProfessionalID, submitInput(100))
	if _, _, err := svc.Respond(q.ID, seed.ClientID, "reject", "demasiado caro"); err != nil {
		t.Fatalf("reject: %v", err)
	}

	var stored models.Quotation
	if err := db.First(&stored, "id = ?", q.ID).Error; err != nil {
		t.Fatal(err)
	}
	if stored.Status != models.QuotationRejected || stored.ClientFeedback != "demasiado caro" {
		t.Fatalf("got %+v", stored)
	}

	// Rejecting one quotation does not move the job.
	var job models.Job
	if err := db.First(&job, "id = ?", seed.JobID).Error; err != nil {
		t.Fatal(err)
	}
	if job.Status != models.JobQuoted {
		t.Fatalf("job status = %s, want quoted", job.Status)
	}
}

func Test_Withdraw_BlockedAfterAssignment(t *testing.T) {
	db := openTestDB(t)
	seed := seedJob(t, db, models.JobPending)
	svc := NewService(db)

	q, _ := svc.Submit(seed.JobID, seed.ProfessionalID, submitInput(100))
	if _, _, err := svc.Respond(q.ID, seed.ClientID, "accept", ""); err != nil {
		t.Fatalf("accept: %v", err)
	}

	_, err := svc.Withdraw(q.ID, seed.ProfessionalID)
	var iqse *apperr.InvalidQuotationStateError
	if !errors.As(err, &iqse) {
		t.Fatalf("want InvalidQuotationStateError, got %v", err)
	}
}

func Test_Withdraw_PendingQuotation(t *testing.T) {
	db := openTestDB(t)
	seed := seedJob(t, db, models.JobPending)
	svc := NewService(db)

	q, _ := svc.Submit(seed.JobID, seed.ProfessionalID, submitInput(100))
	out, err := svc.Withdraw(q.ID, seed.ProfessionalID)
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if out.Status != models.QuotationWithdrawn {
		t.Fatalf("status = %s", out.Status)
	}
}
