// Package payments records the money owed for delivered jobs. Charging
// the client and releasing funds to the professional happen in an
// external payment collaborator; this package owns the records it reads.
package payments

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/trabajapp/trabajapp-backend/pkg/apperr"
	"github.com/trabajapp/trabajapp-backend/pkg/models"
)

// PlatformFeeRate is the commission withheld from the professional.
const PlatformFeeRate = 0.08

// CreateForJob inserts the payment record for a just-delivered job, inside
// the caller's transaction. The job must carry its final price and
// assigned professional.
func CreateForJob(tx *gorm.DB, job *models.Job) (*models.Payment, error) {
	if job.FinalPrice == nil || job.ProfessionalID == nil {
		return nil, &apperr.ValidationError{Field: "job", Message: "job has no final price or professional"}
	}

	number, err := nextPaymentNumber(tx)
	if err != nil {
		return nil, err
	}

	total := *job.FinalPrice
	fee := round2(total * PlatformFeeRate)

	pay := models.Payment{
		PaymentNumber:      number,
		JobID:              job.ID,
		ClientID:           job.ClientID,
		ProfessionalID:     *job.ProfessionalID,
		TotalAmount:        total,
		ProfessionalAmount: round2(total - fee),
		PlatformFee:        fee,
		Currency:           job.Currency,
		Status:             models.PaymentPending,
	}
	if err := tx.Create(&pay).Error; err != nil {
		return nil, err
	}
	return &pay, nil
}

func nextPaymentNumber(tx *gorm.DB) (string, error) {
	var count int64
	if err := tx.Model(&models.Payment{}).Count(&count).Error; err != nil {
		return "", err
	}
	return fmt.Sprintf("PAY-%03d", count+1), nil
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
