package models

import "time"

type AccountType string

const (
	AccountBank    AccountType = "bank"
	AccountEwallet AccountType = "ewallet"
)

type AccountStatus string

const (
	AccountActive   AccountStatus = "active"
	AccountInactive AccountStatus = "inactive"
)

// PaymentAccount is a treasury receiving account students transfer dues to.
type PaymentAccount struct {
	ID            string        `json:"id" db:"id"`
	Name          string        `json:"name" db:"name"`
	AccountType   AccountType   `json:"accountType" db:"account_type"`
	AccountNumber string        `json:"accountNumber" db:"account_number"`
	AccountHolder string        `json:"accountHolder" db:"account_holder"`
	Description   *string       `json:"description" db:"description"`
	Status        AccountStatus `json:"status" db:"status"`
	CreatedAt     time.Time     `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time     `json:"updatedAt" db:"updated_at"`
}
