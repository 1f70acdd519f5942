package services

import (
	"context"
	"testing"
	"time"

	"github.com/kaskelas/backend/internal/config"
	"github.com/kaskelas/backend/internal/models"
	"github.com/kaskelas/backend/internal/repository/memory"
	"github.com/stretchr/testify/require"
)

var (
	student      = Actor{UserID: "u1", Role: models.RoleStudent, ClassID: "class-a"}
	classmate    = Actor{UserID: "u2", Role: models.RoleStudent, ClassID: "class-a"}
	treasurer    = Actor{UserID: "t1", Role: models.RoleBendahara, ClassID: "class-a"}
	otherCashier = Actor{UserID: "t2", Role: models.RoleBendahara, ClassID: "class-b"}
)

var fixedNow = time.Date(2025, time.October, 3, 9, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *memory.Store {
	t.Helper()
	store := memory.New()
	for _, a := range []Actor{student, classmate, treasurer, otherCashier} {
		store.AddUser(models.User{ID: a.UserID, NIM: "nim-" + a.UserID, Name: a.UserID, Role: a.Role, ClassID: a.ClassID})
	}
	ctx := context.Background()
	for _, acc := range []models.PaymentAccount{
		{ID: "acc-active", Name: "BCA Kas", AccountType: models.AccountBank, AccountNumber: "123", AccountHolder: "Bendahara", Status: models.AccountActive},
		{ID: "acc-inactive", Name: "Old Wallet", AccountType: models.AccountEwallet, AccountNumber: "0812", AccountHolder: "Bendahara", Status: models.AccountInactive},
	} {
		acc := acc
		require.NoError(t, store.CreatePaymentAccount(ctx, &acc))
	}
	return store
}

func seedBill(t *testing.T, store *memory.Store, id string, owner Actor, status models.BillStatus, amount int64) {
	t.Helper()
	bill := &models.CashBill{
		ID:          id,
		BillID:      "BILL-2025-10-" + id,
		UserID:      owner.UserID,
		ClassID:     owner.ClassID,
		Month:       10,
		Year:        2025,
		DueDate:     time.Date(2025, time.November, 1, 0, 0, 0, 0, time.UTC),
		KasKelas:    amount,
		TotalAmount: amount,
		Status:      status,
		CreatedAt:   fixedNow,
		UpdatedAt:   fixedNow,
	}
	if status == models.BillAwaitingConfirmation {
		method := models.PaymentBank
		proof := "https://storage.example/proof.jpg"
		bill.PaymentMethod = &method
		bill.PaymentProofURL = &proof
		bill.PaidAt = &fixedNow
	}
	require.NoError(t, store.CreateBill(context.Background(), bill))
}

func testPolicy(t *testing.T) config.BillingPolicy {
	t.Helper()
	policy, err := config.LoadBillingPolicy(config.DefaultRates, 0, "1,2,7,8", 1, "Asia/Jakarta")
	require.NoError(t, err)
	return policy
}

// recordingCache is an in-memory Cache that remembers which keys were deleted.
type recordingCache struct {
	values  map[string]any
	deleted []string
}

func newRecordingCache() *recordingCache {
	return &recordingCache{values: make(map[string]any)}
}

func (c *recordingCache) GetJSON(_ context.Context, key string, dst any) bool {
	v, ok := c.values[key]
	if !ok {
		return false
	}
	switch d := dst.(type) {
	case *LedgerSummary:
		*d = v.(LedgerSummary)
	case *StudentSummary:
		*d = v.(StudentSummary)
	case *TreasurerDashboard:
		*d = v.(TreasurerDashboard)
	default:
		return false
	}
	return true
}

func (c *recordingCache) SetJSON(_ context.Context, key string, value any, _ time.Duration) {
	c.values[key] = value
}

func (c *recordingCache) Delete(_ context.Context, keys ...string) {
	for _, k := range keys {
		delete(c.values, k)
		c.deleted = append(c.deleted, k)
	}
}
