package models

import "time"

type TransactionType string

const (
	TransactionIncome  TransactionType = "income"
	TransactionExpense TransactionType = "expense"
)

func (t TransactionType) Valid() bool {
	return t == TransactionIncome || t == TransactionExpense
}

type TransactionCategory string

const (
	CategoryKasKelas       TransactionCategory = "kas_kelas"
	CategoryDonation       TransactionCategory = "donation"
	CategoryFundraising    TransactionCategory = "fundraising"
	CategoryOfficeSupplies TransactionCategory = "office_supplies"
	CategoryConsumption    TransactionCategory = "consumption"
	CategoryEvent          TransactionCategory = "event"
	CategoryMaintenance    TransactionCategory = "maintenance"
	CategoryOther          TransactionCategory = "other"
)

var transactionCategories = map[TransactionCategory]bool{
	CategoryKasKelas:       true,
	CategoryDonation:       true,
	CategoryFundraising:    true,
	CategoryOfficeSupplies: true,
	CategoryConsumption:    true,
	CategoryEvent:          true,
	CategoryMaintenance:    true,
	CategoryOther:          true,
}

func (c TransactionCategory) Valid() bool {
	return transactionCategories[c]
}

// SourceType names the entity a ledger entry was derived from.
type SourceType string

const (
	SourceCashBill        SourceType = "cash_bill"
	SourceFundApplication SourceType = "fund_application"
)

// Transaction is an immutable ledger entry. Manual entries have no source.
type Transaction struct {
	ID          string              `json:"id" db:"id"`
	ClassID     string              `json:"classId" db:"class_id"`
	Type        TransactionType     `json:"type" db:"type"`
	Category    TransactionCategory `json:"category" db:"category"`
	Amount      int64               `json:"amount" db:"amount"`
	Description string              `json:"description" db:"description"`
	Date        time.Time           `json:"date" db:"date"`
	SourceType  *SourceType         `json:"sourceType,omitempty" db:"source_type"`
	SourceID    *string             `json:"sourceId,omitempty" db:"source_id"`
	CreatedAt   time.Time           `json:"createdAt" db:"created_at"`
}

// Totals is the aggregate of a set of ledger entries.
type Totals struct {
	Income  int64 `json:"totalIncome"`
	Expense int64 `json:"totalExpense"`
	Count   int   `json:"transactionCount"`
}

func (t Totals) Balance() int64 {
	return t.Income - t.Expense
}

type DailyAmount struct {
	Date   string `json:"date"`
	Amount int64  `json:"amount"`
}

type CategoryAmount struct {
	Category TransactionCategory `json:"category"`
	Amount   int64               `json:"amount"`
	Count    int                 `json:"count"`
}
