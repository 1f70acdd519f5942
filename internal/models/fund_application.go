package models

import "time"

type FundStatus string

const (
	FundPending  FundStatus = "pending"
	FundApproved FundStatus = "approved"
	FundRejected FundStatus = "rejected"
)

func (s FundStatus) Valid() bool {
	switch s {
	case FundPending, FundApproved, FundRejected:
		return true
	}
	return false
}

type FundCategory string

const (
	FundEducation FundCategory = "education"
	FundHealth    FundCategory = "health"
	FundEmergency FundCategory = "emergency"
	FundEquipment FundCategory = "equipment"
)

// fundLedgerCategory is the ledger category an approved application is booked under.
// health and emergency both land in other.
var fundLedgerCategory = map[FundCategory]TransactionCategory{
	FundEducation: CategoryOfficeSupplies,
	FundHealth:    CategoryOther,
	FundEmergency: CategoryOther,
	FundEquipment: CategoryOfficeSupplies,
}

func (c FundCategory) Valid() bool {
	_, ok := fundLedgerCategory[c]
	return ok
}

func (c FundCategory) LedgerCategory() TransactionCategory {
	if cat, ok := fundLedgerCategory[c]; ok {
		return cat
	}
	return CategoryOther
}

type FundApplication struct {
	ID              string       `json:"id" db:"id"`
	UserID          string       `json:"userId" db:"user_id"`
	ClassID         string       `json:"classId" db:"class_id"`
	Purpose         string       `json:"purpose" db:"purpose"`
	Description     string       `json:"description" db:"description"`
	Category        FundCategory `json:"category" db:"category"`
	Amount          int64        `json:"amount" db:"amount"`
	Status          FundStatus   `json:"status" db:"status"`
	ReviewedBy      *string      `json:"reviewedBy" db:"reviewed_by"`
	ReviewedAt      *time.Time   `json:"reviewedAt" db:"reviewed_at"`
	RejectionReason *string      `json:"rejectionReason" db:"rejection_reason"`
	AttachmentURL   *string      `json:"attachmentUrl" db:"attachment_url"`
	CreatedAt       time.Time    `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time    `json:"updatedAt" db:"updated_at"`
}
