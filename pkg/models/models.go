package models

import (
	"time"

	"github.com/google/uuid"
)

/* =============================== Enums ================================== */

// UserType defines the type of user in the system.
type UserType string

const (
	UserClient       UserType = "client"
	UserProfessional UserType = "professional"
)

// JobStatus defines lifecycle states for a job.
type JobStatus string

const (
	JobDraft      JobStatus = "draft"       // client still editing
	JobPending    JobStatus = "pending"     // published, waiting for quotations
	JobQuoted     JobStatus = "quoted"      // at least one quotation received
	JobAssigned   JobStatus = "assigned"    // a quotation was accepted
	JobConfirmed  JobStatus = "confirmed"   // confirmed by both parties
	JobInProgress JobStatus = "in_progress" // work started
	JobCompleted  JobStatus = "completed"   // professional finished the work
	JobDelivered  JobStatus = "delivered"   // client accepted the result
	JobCancelled  JobStatus = "cancelled"
	JobDisputed   JobStatus = "disputed"
)

// JobUrgency defines how soon a job needs attention.
type JobUrgency string

const (
	UrgencyNormal    JobUrgency = "normal"
	UrgencyUrgent    JobUrgency = "urgent"
	UrgencyEmergency JobUrgency = "emergency"
)

// QuotationStatus defines lifecycle states for a quotation.
type QuotationStatus string

const (
	QuotationPending   QuotationStatus = "pending"
	QuotationAccepted  QuotationStatus = "accepted"
	QuotationRejected  QuotationStatus = "rejected"
	QuotationWithdrawn QuotationStatus = "withdrawn"
	QuotationExpired   QuotationStatus = "expired"
)

// VerificationStatus defines the review state of a professional's documents.
type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "pending"
	VerificationVerified VerificationStatus = "verified"
	VerificationRejected VerificationStatus = "rejected"
)

// SubscriptionTier defines the professional's subscription level.
// Premium profiles rank first in search results.
type SubscriptionTier string

const (
	TierFree    SubscriptionTier = "free"
	TierPremium SubscriptionTier = "premium"
)

// PaymentStatus defines lifecycle states for a payment.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentHeld      PaymentStatus = "held"
	PaymentCompleted PaymentStatus = "completed"
	PaymentRefunded  PaymentStatus = "refunded"
	PaymentFailed    PaymentStatus = "failed"
)

// NotificationType tags domain events emitted by the job orchestrator.
type NotificationType string

const (
	NotifNewQuotation      NotificationType = "new_quotation"
	NotifQuotationAccepted NotificationType = "quotation_accepted"
	NotifQuotationRejected NotificationType = "quotation_rejected"
	NotifJobAssigned       NotificationType = "job_assigned"
	NotifJobConfirmed      NotificationType = "job_confirmed"
	NotifJobStarted        NotificationType = "job_started"
	NotifJobCompleted      NotificationType = "job_completed"
	NotifJobDelivered      NotificationType = "job_delivered"
	NotifJobCancelled      NotificationType = "job_cancelled"
	NotifJobDisputed       NotificationType = "job_disputed"
	NotifReviewReceived    NotificationType = "review_received"
)

/* =============================== Entities =============================== */

// User represents a client or professional.
type User struct {
	ID           uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Email        string    `gorm:"uniqueIndex;not null"`
	PasswordHash string    `gorm:"not null"`
	UserType     UserType  `gorm:"type:varchar(20);not null;index"`
	FirstName    string    `gorm:"not null"`
	LastName     string    `gorm:"not null"`
	Phone        string
	Address      string
	Latitude     *float64 `gorm:"type:decimal(10,8)"`
	Longitude    *float64 `gorm:"type:decimal(11,8)"`
	City         string   `gorm:"default:'Rosario'"`
	Province     string   `gorm:"default:'Santa Fe'"`
	Country      string   `gorm:"default:'Argentina'"`
	IsActive     bool     `gorm:"default:true;index"` // accounts are soft-deactivated, never deleted
	RatingAvg    float64  `gorm:"type:decimal(3,2);default:0"`
	RatingCount  int      `gorm:"default:0"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ServiceCategory groups services (plumbing, electricity, ...).
type ServiceCategory struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Name      string    `gorm:"not null"`
	Slug      string    `gorm:"uniqueIndex;not null"`
	IsActive  bool      `gorm:"default:true"`
	SortOrder int       `gorm:"default:0"`
	CreatedAt time.Time
}

// Service is a catalog entry inside a category.
type Service struct {
	ID          uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	CategoryID  uuid.UUID `gorm:"type:uuid;not null;index:idx_category_slug,unique"`
	Name        string    `gorm:"not null"`
	Slug        string    `gorm:"not null;index:idx_category_slug,unique"`
	Description string
	BasePrice   float64 `gorm:"type:decimal(10,2)"`
	PriceUnit   string  `gorm:"default:'servicio'"`
	IsEmergency bool    `gorm:"default:false"`
	IsActive    bool    `gorm:"default:true"`
	CreatedAt   time.Time
}

// ProfessionalProfile is the one-to-one extension of a professional user.
type ProfessionalProfile struct {
	ID                 uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID             uuid.UUID `gorm:"type:uuid;not null;uniqueIndex"`
	Bio                string
	ExperienceYears    int                `gorm:"default:0"`
	HourlyRate         float64            `gorm:"type:decimal(8,2)"`
	WorkRadiusKm       int                `gorm:"default:10"`
	AcceptsEmergencies bool               `gorm:"default:false"`
	HasVehicle         bool               `gorm:"default:false"`
	HasTools           bool               `gorm:"default:false"`
	VerificationStatus VerificationStatus `gorm:"type:varchar(20);default:'pending';index"`
	VerifiedAt         *time.Time
	IsAvailable        bool             `gorm:"default:true;index"` // gates search visibility
	SubscriptionTier   SubscriptionTier `gorm:"type:varchar(20);default:'free';index"`
	SubscriptionUntil  *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time

	// Relations
	Services  []ProfessionalService `gorm:"foreignKey:ProfessionalID"`
	Portfolio []PortfolioItem       `gorm:"foreignKey:ProfessionalID"`
}

// ProfessionalService is a service the professional offers at a custom price.
type ProfessionalService struct {
	ID             uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	ProfessionalID uuid.UUID `gorm:"type:uuid;not null;index:idx_prof_service,unique"` // -> ProfessionalProfile.ID
	ServiceID      uuid.UUID `gorm:"type:uuid;not null;index:idx_prof_service,unique"`
	CustomPrice    float64   `gorm:"type:decimal(10,2);not null"`
	PriceUnit      string    `gorm:"default:'servicio'"`
	Description    string
	IsActive       bool `gorm:"default:true"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// PortfolioItem is a past work showcased on a professional's profile.
// At most 3 items per profile may be featured.
type PortfolioItem struct {
	ID             uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	ProfessionalID uuid.UUID `gorm:"type:uuid;not null;index"` // -> ProfessionalProfile.ID
	Title          string    `gorm:"not null"`
	Description    string
	ServiceID      *uuid.UUID `gorm:"type:uuid"`
	ImageURL       string
	CompletedDate  *time.Time
	IsFeatured     bool `gorm:"default:false"`
	SortOrder      int  `gorm:"default:0"`
	CreatedAt      time.Time
}

// Job represents a unit of requested work posted by a client.
//
// ProfessionalID and FinalPrice are non-null iff the job has passed
// "assigned"; the lifecycle timestamps are each set exactly once, by the
// corresponding transition.
type Job struct {
	ID             uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	JobNumber      string     `gorm:"uniqueIndex;not null"` // TJ-001, TJ-002, ...
	ClientID       uuid.UUID  `gorm:"type:uuid;not null;index"`
	ProfessionalID *uuid.UUID `gorm:"type:uuid;index"` // set when a quotation is accepted
	ServiceID      uuid.UUID  `gorm:"type:uuid;not null;index"`

	Title       string `gorm:"not null"`
	Description string `gorm:"not null"`

	WorkAddress   string `gorm:"not null"`
	WorkLatitude  *float64
	WorkLongitude *float64
	WorkCity      string `gorm:"default:'Rosario'"`

	Urgency          JobUrgency `gorm:"type:varchar(20);default:'normal';index"`
	PreferredDate    *time.Time
	FlexibleSchedule bool `gorm:"default:true"`

	Status JobStatus `gorm:"type:varchar(20);default:'draft';index"`

	BudgetMin  *float64 `gorm:"type:decimal(10,2)"`
	BudgetMax  *float64 `gorm:"type:decimal(10,2)"`
	FinalPrice *float64 `gorm:"type:decimal(10,2)"` // price of the accepted quotation
	Currency   string   `gorm:"default:'ARS'"`

	PublishedAt *time.Time
	AssignedAt  *time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
	DeliveredAt *time.Time
	CancelledAt *time.Time

	CancellationReason string
	DisputeReason      string

	CreatedAt time.Time
	UpdatedAt time.Time

	// Relations
	Quotations []Quotation
}

// Quotation represents a priced proposal submitted by a professional
// against a job. At most one quotation per job may be accepted.
type Quotation struct {
	ID             uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	JobID          uuid.UUID `gorm:"type:uuid;not null;index:idx_job_professional,unique"`
	ProfessionalID uuid.UUID `gorm:"type:uuid;not null;index:idx_job_professional,unique"`

	TotalPrice  float64 `gorm:"type:decimal(10,2);not null"`
	Currency    string  `gorm:"default:'ARS'"`
	Description string  `gorm:"not null"`

	EstimatedHours     *int
	EstimatedStartDate *time.Time

	Status     QuotationStatus `gorm:"type:varchar(20);default:'pending';index"`
	ValidUntil time.Time       `gorm:"not null;index"`

	ClientFeedback string // reason when rejected by the client
	RespondedAt    *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Payment represents the payment owed for a delivered job. Created by the
// deliver transition; collection and release are handled externally.
type Payment struct {
	ID             uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	PaymentNumber  string    `gorm:"uniqueIndex;not null"` // PAY-001, PAY-002, ...
	JobID          uuid.UUID `gorm:"type:uuid;not null;uniqueIndex"`
	ClientID       uuid.UUID `gorm:"type:uuid;not null;index"`
	ProfessionalID uuid.UUID `gorm:"type:uuid;not null;index"`

	TotalAmount        float64 `gorm:"type:decimal(10,2);not null"`
	ProfessionalAmount float64 `gorm:"type:decimal(10,2);not null"`
	PlatformFee        float64 `gorm:"type:decimal(10,2);not null"` // 8% of the total
	Currency           string  `gorm:"default:'ARS'"`

	Status     PaymentStatus `gorm:"type:varchar(20);default:'pending';index"`
	PaidAt     *time.Time
	ReleasedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Review is a rating left by one party about the other after delivery.
// One review per (job, reviewer).
type Review struct {
	ID         uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	JobID      uuid.UUID `gorm:"type:uuid;not null;index:idx_job_reviewer,unique"`
	ReviewerID uuid.UUID `gorm:"type:uuid;not null;index:idx_job_reviewer,unique"`
	RevieweeID uuid.UUID `gorm:"type:uuid;not null;index"`
	Rating     int       `gorm:"not null"` // 1-5
	Comment    string
	CreatedAt  time.Time
}

// JobHistory is an audit log entry for important job changes.
type JobHistory struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	JobID     uuid.UUID `gorm:"type:uuid;not null;index"`
	ActorID   uuid.UUID `gorm:"type:uuid;not null;index"`  // who performed the action
	Action    string    `gorm:"type:varchar(50);not null"` // e.g. published, quotation_accepted, cancelled
	OldStatus JobStatus `gorm:"type:varchar(20)"`
	NewStatus JobStatus `gorm:"type:varchar(20)"`
	Reason    string    `gorm:"type:text"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// Notification is a persisted domain event. Actual delivery (push/email)
// is handled by an external dispatcher reading these rows.
type Notification struct {
	ID          uuid.UUID        `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID      uuid.UUID        `gorm:"type:uuid;not null;index"`
	Type        NotificationType `gorm:"type:varchar(40);not null;index"`
	Title       string           `gorm:"not null"`
	Message     string           `gorm:"not null"`
	JobID       *uuid.UUID       `gorm:"type:uuid"`
	QuotationID *uuid.UUID       `gorm:"type:uuid"`
	IsRead      bool             `gorm:"default:false;index"`
	ReadAt      *time.Time
	CreatedAt   time.Time
}
