package jobs

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

type fixture struct {
	Client       Actor
	Professional Actor
	JobID        uuid.UUID
}

// seedAssignedJob creates a job already assigned to the professional,
// with professional_id and final_price set the way an accepted
// quotation leaves them.
func seedAssignedJob(t *testing.T, db *gorm.DB, status models.JobStatus) fixture {
	t.Helper()
	f := seedJobFixture(t, db, status)

	if status != models.JobDraft && status != models.JobPending && status != models.JobQuoted {
		price := 1000.0
		now := time.Now()
		if err := db.Model(&models.Job{}).Where("id = ?", f.JobID).Updates(map[string]any{
			"professional_id": f.Professional.ID,
			"final_price":     price,
			"assigned_at":     now,
		}).Error; err != nil {
			t.Fatal(err)
		}
	}
	return f
}

func seedJobFixture(t *testing.T, db *gorm.DB, status models.JobStatus) fixture {
	t.Helper()
	clientID := uuid.New()
	proID := uuid.New()

	if err := db.Create(&models.User{
		ID: clientID, Email: fmt.Sprintf("c+%s@test.local", uuid.NewString()),
		UserType: models.UserClient, FirstName: "C", LastName: "T",
	}).Error; err != nil {
		t.Fatal(err)
	}
	if err := db.Create(&models.User{
		ID: proID, Email: fmt.Sprintf("p+%s@test.local", uuid.NewString()),
		UserType: models.UserProfessional, FirstName: "P", LastName: "T",
	}).Error; err != nil {
		t.Fatal(err)
	}

	cat := models.ServiceCategory{ID: uuid.New(), Name: "Electricidad", Slug: "electricidad-" + uuid.NewString()}
	if err := db.Create(&cat).Error; err != nil {
		t.Fatal(err)
	}
	svc := models.Service{ID: uuid.New(), CategoryID: cat.ID, Name: "Instalación", Slug: "instalacion-" + uuid.NewString()}
	if err := db.Create(&svc).Error; err != nil {
		t.Fatal(err)
	}

	job := models.Job{
		ID:          uuid.New(),
		JobNumber:   "TJ-" + uuid.NewString()[:8],
		ClientID:    clientID,
		ServiceID:   svc.ID,
		Title:       "Tablero nuevo",
		Description: "Cambio de tablero eléctrico",
		WorkAddress: "Córdoba 456",
		Status:      status,
		CreatedAt:   time.Now(),
	}
	if err := db.Create(&job).Error; err != nil {
		t.Fatal(err)
	}

	return fixture{
		Client:       Actor{ID: clientID, Type: models.UserClient},
		Professional: Actor{ID: proID, Type: models.UserProfessional},
		JobID:        job.ID,
	}
}

/* ================== TESTS ================== */

func Test_Transition_Publish(t *testing.T) {
	db := openTestDB(t)
	f := seedJobFixture(t, db, models.JobDraft)
	svc := NewService(db)

	job, err := svc.Transition(f.JobID, EventPublish, f.Client, "")
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if job.Status != models.JobPending {
		t.Fatalf("status = %s, want pending", job.Status)
	}

	var stored models.Job
	if err := db.First(&stored, "id = ?", f.JobID).Error; err != nil {
		t.Fatal(err)
	}
	if stored.PublishedAt == nil {
		t.Fatal("published_at not set")
	}
}

func Test_Transition_FullLifecycleCreatesPayment(t *testing.T) {
	db := openTestDB(t)
	f := seedAssignedJob(t, db, models.JobAssigned)
	svc := NewService(db)

	steps := []struct {
		ev    Event
		actor Actor
		want  models.JobStatus
	}{
		{EventConfirm, f.Client, models.JobConfirmed},
		{EventStartWork, f.Professional, models.JobInProgress},
		{EventCompleteWork, f.Professional, models.JobCompleted},
		{EventDeliver, f.Client, models.JobDelivered},
	}
	for _, s := range steps {
		job, err := svc.Transition(f.JobID, s.ev, s.actor, "")
		if err != nil {
			t.Fatalf("%s: %v", s.ev, err)
		}
		if job.Status != s.want {
			t.Fatalf("%s: status = %s, want %s", s.ev, job.Status, s.want)
		}
	}

	var pay models.Payment
	if err := db.First(&pay, "job_id = ?", f.JobID).Error; err != nil {
		t.Fatalf("payment not created: %v", err)
	}
	if pay.TotalAmount != 1000 {
		t.Fatalf("total = %v, want 1000", pay.TotalAmount)
	}
	if pay.PlatformFee != 80 {
		t.Fatalf("fee = %v, want 80", pay.PlatformFee)
	}
	if pay.ProfessionalAmount != 920 {
		t.Fatalf("professional amount = %v, want 920", pay.ProfessionalAmount)
	}
	if pay.ProfessionalID != f.Professional.ID || pay.ClientID != f.Client.ID {
		t.Fatalf("parties wrong: %+v", pay)
	}
}

func Test_Transition_CancelRequiresReason(t *testing.T) {
	db := openTestDB(t)
	f := seedJobFixture(t, db, models.JobPending)
	svc := NewService(db)

	_, err := svc.Transition(f.JobID, EventCancel, f.Client, "")
	var ve *apperr.ValidationError
	if !errors.As(err, &ve) || ve.Field != "reason" {
		t.Fatalf("want validation error on reason, got %v", err)
	}

	job, err := svc.Transition(f.JobID, EventCancel, f.Client, "ya no hace falta")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if job.Status != models.JobCancelled {
		t.Fatalf("status = %s", job.Status)
	}

	var stored models.Job
	if err := db.First(&stored, "id = ?", f.JobID).Error; err != nil {
		t.Fatal(err)
	}
	if stored.CancellationReason != "ya no hace falta" || stored.CancelledAt == nil {
		t.Fatalf("cancellation not recorded: %+v", stored)
	}
}

func Test_Transition_AuthzByParty(t *testing.T) {
	db := openTestDB(t)
	svc := NewService(db)

	// Professional cannot publish the client's job.
	f := seedJobFixture(t, db, models.JobDraft)
	if _, err := svc.Transition(f.JobID, EventPublish, f.Professional, ""); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("publish by professional: want ErrForbidden, got %v", err)
	}

	// Client cannot start work.
	f2 := seedAssignedJob(t, db, models.JobConfirmed)
	if _, err := svc.Transition(f2.JobID, EventStartWork, f2.Client, ""); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("start by client: want ErrForbidden, got %v", err)
	}

	// A third party cannot dispute.
	f3 := seedAssignedJob(t, db, models.JobInProgress)
	stranger := Actor{ID: uuid.New(), Type: models.UserClient}
	if _, err := svc.Transition(f3.JobID, EventDispute, stranger, "x"); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("dispute by stranger: want ErrForbidden, got %v", err)
	}
}

func Test_Transition_QuotationEventsBlocked(t *testing.T) {
	db := openTestDB(t)
	f := seedJobFixture(t, db, models.JobPending)
	svc := NewService(db)

	for _, ev := range []Event{EventReceiveQuotation, EventAcceptQuotation} {
		_, err := svc.Transition(f.JobID, ev, f.Client, "")
		var ve *apperr.ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("%s: want validation error, got %v", ev, err)
		}
	}
}

func Test_Transition_IllegalEventLeavesJobUntouched(t *testing.T) {
	db := openTestDB(t)
	f := seedJobFixture(t, db, models.JobDraft)
	svc := NewService(db)

	_, err := svc.Transition(f.JobID, EventStartWork, f.Professional, "")
	if err == nil {
		t.Fatal("want error")
	}

	var stored models.Job
	if err := db.First(&stored, "id = ?", f.JobID).Error; err != nil {
		t.Fatal(err)
	}
	if stored.Status != models.JobDraft {
		t.Fatalf("status = %s, want draft", stored.Status)
	}
}

func Test_NextJobNumber_Sequential(t *testing.T) {
	db := openTestDB(t)

	first, err := NextJobNumber(db)
	if err != nil {
		t.Fatal(err)
	}
	seedJobFixture(t, db, models.JobDraft)
	second, err := NextJobNumber(db)
	if err != nil {
		t.Fatal(err)
	}
	if first == second {
		t.Fatalf("job number did not advance: %s", first)
	}
}
