package betaapp

import "time"

type ApplicationStatus string

const (
	ApplicationPending  ApplicationStatus = "pending"
	ApplicationAccepted ApplicationStatus = "accepted"
	ApplicationRejected ApplicationStatus = "rejected"
)

type PayoutStatus string

const (
	PayoutPending PayoutStatus = "pending"
	PayoutPaid    PayoutStatus = "paid"
	PayoutFailed  PayoutStatus = "failed"
)

// ValidPayoutStatus reports whether s is a payout state an admin may set.
func ValidPayoutStatus(s PayoutStatus) bool {
	switch s {
	case PayoutPending, PayoutPaid, PayoutFailed:
		return true
	}
	return false
}

// Application is a tester's application to a beta test. The payout_* columns
// are the cash-payout tracker for accepted testers; the fee breakdown is
// snapshotted at acceptance time and never recomputed.
type Application struct {
	ID               string            `gorm:"column:id;primaryKey" json:"id"`
	BetaTestID       string            `gorm:"column:beta_test_id;uniqueIndex:idx_app_test_applicant" json:"beta_test_id"`
	ApplicantUserID  string            `gorm:"column:applicant_user_id;uniqueIndex:idx_app_test_applicant" json:"applicant_user_id"`
	Status           ApplicationStatus `gorm:"column:status" json:"status"`
	PayoutStatus     PayoutStatus      `gorm:"column:payout_status" json:"payout_status,omitempty"`
	PayoutGrossMinor int64             `gorm:"column:payout_gross_minor" json:"payout_gross_minor,omitempty"`
	PayoutFeeMinor   int64             `gorm:"column:payout_fee_minor" json:"payout_fee_minor,omitempty"`
	PayoutNetMinor   int64             `gorm:"column:payout_net_minor" json:"payout_net_minor,omitempty"`
	PayoutNote       string            `gorm:"column:payout_note" json:"payout_note,omitempty"`
	PayoutPaidAt     *time.Time        `gorm:"column:payout_paid_at" json:"payout_paid_at,omitempty"`
	CreatedAt        time.Time         `gorm:"column:created_at" json:"created_at"`
	UpdatedAt        time.Time         `gorm:"column:updated_at" json:"updated_at"`
}

func (Application) TableName() string {
	return "beta_applications"
}

// PayoutAuditLog is the append-only trail of payout transitions. One row per
// admin action, including no-op writes; disputes are reconstructed from it,
// so it is never updated or deleted.
type PayoutAuditLog struct {
	ID              string       `gorm:"column:id;primaryKey" json:"id"`
	BetaTestID      string       `gorm:"column:beta_test_id;index:idx_audit_test_applicant" json:"beta_test_id"`
	ApplicantUserID string       `gorm:"column:applicant_user_id;index:idx_audit_test_applicant" json:"applicant_user_id"`
	PreviousStatus  PayoutStatus `gorm:"column:previous_status" json:"previous_status"`
	NextStatus      PayoutStatus `gorm:"column:next_status" json:"next_status"`
	Note            string       `gorm:"column:note" json:"note"`
	AdminUserID     string       `gorm:"column:admin_user_id" json:"admin_user_id"`
	CreatedAt       time.Time    `gorm:"column:created_at" json:"created_at"`
}

func (PayoutAuditLog) TableName() string {
	return "payout_audit_logs"
}
