package models

import "time"

type BillStatus string

const (
	BillUnpaid               BillStatus = "unpaid"
	BillAwaitingConfirmation BillStatus = "awaiting_confirmation"
	BillPaid                 BillStatus = "paid"
)

func (s BillStatus) Valid() bool {
	switch s {
	case BillUnpaid, BillAwaitingConfirmation, BillPaid:
		return true
	}
	return false
}

type PaymentMethod string

const (
	PaymentBank    PaymentMethod = "bank"
	PaymentEwallet PaymentMethod = "ewallet"
	PaymentCash    PaymentMethod = "cash"
)

// CashBill is one student's dues for one month. Amounts are in rupiah.
type CashBill struct {
	ID               string         `json:"id" db:"id"`
	BillID           string         `json:"billId" db:"bill_id"`
	UserID           string         `json:"userId" db:"user_id"`
	ClassID          string         `json:"classId" db:"class_id"`
	Month            int            `json:"month" db:"month"`
	Year             int            `json:"year" db:"year"`
	DueDate          time.Time      `json:"dueDate" db:"due_date"`
	KasKelas         int64          `json:"kasKelas" db:"kas_kelas"`
	BiayaAdmin       int64          `json:"biayaAdmin" db:"biaya_admin"`
	TotalAmount      int64          `json:"totalAmount" db:"total_amount"`
	Status           BillStatus     `json:"status" db:"status"`
	PaymentMethod    *PaymentMethod `json:"paymentMethod" db:"payment_method"`
	PaymentProofURL  *string        `json:"paymentProofUrl" db:"payment_proof_url"`
	PaymentAccountID *string        `json:"paymentAccountId" db:"payment_account_id"`
	PaidAt           *time.Time     `json:"paidAt" db:"paid_at"`
	ConfirmedBy      *string        `json:"confirmedBy" db:"confirmed_by"`
	ConfirmedAt      *time.Time     `json:"confirmedAt" db:"confirmed_at"`
	CreatedAt        time.Time      `json:"createdAt" db:"created_at"`
	UpdatedAt        time.Time      `json:"updatedAt" db:"updated_at"`
}

func (b *CashBill) Period() Period {
	return Period{Month: b.Month, Year: b.Year}
}

// ClearPayment drops everything a payment submission recorded.
func (b *CashBill) ClearPayment() {
	b.PaymentMethod = nil
	b.PaymentProofURL = nil
	b.PaymentAccountID = nil
	b.PaidAt = nil
}
