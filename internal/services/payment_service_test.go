package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kaskelas/backend/internal/cache"
	"github.com/kaskelas/backend/internal/models"
	"github.com/kaskelas/backend/internal/repository"
	"github.com/kaskelas/backend/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPaymentService(t *testing.T) (*PaymentService, *memory.Store) {
	t.Helper()
	store := newTestStore(t)
	svc := NewPaymentService(store, nil, nil, nil)
	svc.now = func() time.Time { return fixedNow }
	return svc, store
}

func submitRequest() SubmitPaymentRequest {
	return SubmitPaymentRequest{
		Method:    models.PaymentBank,
		ProofURL:  "https://storage.example/proof.jpg",
		AccountID: "acc-active",
	}
}

func TestPaymentService_SubmitThenConfirm(t *testing.T) {
	svc, store := newPaymentService(t)
	ctx := context.Background()
	seedBill(t, store, "b1", student, models.BillUnpaid, 15000)

	bill, err := svc.SubmitPayment(ctx, "b1", student, submitRequest())
	require.NoError(t, err)
	assert.Equal(t, models.BillAwaitingConfirmation, bill.Status)
	require.NotNil(t, bill.PaymentAccountID)
	assert.Equal(t, "acc-active", *bill.PaymentAccountID)
	assert.Empty(t, store.Transactions())

	bill, err = svc.ConfirmPayment(ctx, "b1", treasurer)
	require.NoError(t, err)
	assert.Equal(t, models.BillPaid, bill.Status)
	require.NotNil(t, bill.ConfirmedBy)
	assert.Equal(t, treasurer.UserID, *bill.ConfirmedBy)

	entries := store.Transactions()
	require.Len(t, entries, 1)
	entry := entries[0]
	assert.Equal(t, models.TransactionIncome, entry.Type)
	assert.Equal(t, models.CategoryKasKelas, entry.Category)
	assert.Equal(t, int64(15000), entry.Amount)
	assert.Equal(t, "class-a", entry.ClassID)
	assert.Equal(t, "Bill payment confirmed: BILL-2025-10-b1", entry.Description)
	require.NotNil(t, entry.SourceID)
	assert.Equal(t, "b1", *entry.SourceID)

	totals, err := store.SumTransactions(ctx, repository.LedgerRange{ClassID: "class-a"})
	require.NoError(t, err)
	assert.Equal(t, int64(15000), totals.Balance())
}

func TestPaymentService_SubmitThenReject(t *testing.T) {
	svc, store := newPaymentService(t)
	ctx := context.Background()
	seedBill(t, store, "b1", student, models.BillUnpaid, 15000)

	_, err := svc.SubmitPayment(ctx, "b1", student, submitRequest())
	require.NoError(t, err)

	bill, err := svc.RejectPayment(ctx, "b1", treasurer, "blurry proof")
	require.NoError(t, err)
	assert.Equal(t, models.BillUnpaid, bill.Status)
	assert.Nil(t, bill.PaymentMethod)
	assert.Nil(t, bill.PaymentProofURL)
	assert.Nil(t, bill.PaymentAccountID)
	assert.Nil(t, bill.PaidAt)
	assert.Empty(t, store.Transactions())

	// The student may submit again after a rejection.
	_, err = svc.SubmitPayment(ctx, "b1", student, submitRequest())
	require.NoError(t, err)
}

func TestPaymentService_ConfirmTwice(t *testing.T) {
	svc, store := newPaymentService(t)
	ctx := context.Background()
	seedBill(t, store, "b1", student, models.BillAwaitingConfirmation, 15000)

	_, err := svc.ConfirmPayment(ctx, "b1", treasurer)
	require.NoError(t, err)

	_, err = svc.ConfirmPayment(ctx, "b1", treasurer)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidState))
	assert.Equal(t, string(models.BillPaid), AsError(err).State)
	assert.Len(t, store.Transactions(), 1)
}

func TestPaymentService_ConcurrentConfirm(t *testing.T) {
	svc, store := newPaymentService(t)
	seedBill(t, store, "b1", student, models.BillAwaitingConfirmation, 15000)

	const workers = 10
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		invalid   int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.ConfirmPayment(context.Background(), "b1", treasurer)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrInvalidState):
				invalid++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, workers-1, invalid)
	assert.Len(t, store.Transactions(), 1)
}

func TestPaymentService_InvalidTransitions(t *testing.T) {
	ctx := context.Background()

	t.Run("confirm unpaid bill", func(t *testing.T) {
		svc, store := newPaymentService(t)
		seedBill(t, store, "b1", student, models.BillUnpaid, 15000)

		_, err := svc.ConfirmPayment(ctx, "b1", treasurer)
		assert.True(t, errors.Is(err, ErrInvalidState))
		assert.Equal(t, string(models.BillUnpaid), AsError(err).State)
		assert.Empty(t, store.Transactions())
	})

	t.Run("submit paid bill", func(t *testing.T) {
		svc, store := newPaymentService(t)
		seedBill(t, store, "b1", student, models.BillPaid, 15000)

		_, err := svc.SubmitPayment(ctx, "b1", student, submitRequest())
		assert.True(t, errors.Is(err, ErrInvalidState))
	})

	t.Run("reject unpaid bill", func(t *testing.T) {
		svc, store := newPaymentService(t)
		seedBill(t, store, "b1", student, models.BillUnpaid, 15000)

		_, err := svc.RejectPayment(ctx, "b1", treasurer, "")
		assert.True(t, errors.Is(err, ErrInvalidState))
	})

	t.Run("cancel paid bill", func(t *testing.T) {
		svc, store := newPaymentService(t)
		seedBill(t, store, "b1", student, models.BillPaid, 15000)

		_, err := svc.CancelPayment(ctx, "b1", student)
		assert.True(t, errors.Is(err, ErrInvalidState))
	})

	t.Run("unknown bill", func(t *testing.T) {
		svc, _ := newPaymentService(t)

		_, err := svc.ConfirmPayment(ctx, "missing", treasurer)
		assert.True(t, errors.Is(err, ErrNotFound))
	})
}

func TestPaymentService_Authorization(t *testing.T) {
	ctx := context.Background()

	t.Run("classmate cannot cancel", func(t *testing.T) {
		svc, store := newPaymentService(t)
		seedBill(t, store, "b1", student, models.BillAwaitingConfirmation, 15000)

		_, err := svc.CancelPayment(ctx, "b1", classmate)
		assert.True(t, errors.Is(err, ErrForbidden))

		bill, err := store.GetBill(ctx, "b1")
		require.NoError(t, err)
		assert.Equal(t, models.BillAwaitingConfirmation, bill.Status)
		assert.NotNil(t, bill.PaymentProofURL)
	})

	t.Run("classmate cannot submit", func(t *testing.T) {
		svc, store := newPaymentService(t)
		seedBill(t, store, "b1", student, models.BillUnpaid, 15000)

		_, err := svc.SubmitPayment(ctx, "b1", classmate, submitRequest())
		assert.True(t, errors.Is(err, ErrForbidden))
	})

	t.Run("student cannot confirm", func(t *testing.T) {
		svc, store := newPaymentService(t)
		seedBill(t, store, "b1", student, models.BillAwaitingConfirmation, 15000)

		_, err := svc.ConfirmPayment(ctx, "b1", student)
		assert.True(t, errors.Is(err, ErrForbidden))
		assert.Empty(t, store.Transactions())
	})

	t.Run("treasurer of another class cannot confirm", func(t *testing.T) {
		svc, store := newPaymentService(t)
		seedBill(t, store, "b1", student, models.BillAwaitingConfirmation, 15000)

		_, err := svc.ConfirmPayment(ctx, "b1", otherCashier)
		assert.True(t, errors.Is(err, ErrForbidden))
		assert.Empty(t, store.Transactions())
	})
}

func TestPaymentService_SubmitValidation(t *testing.T) {
	ctx := context.Background()
	svc, store := newPaymentService(t)
	seedBill(t, store, "b1", student, models.BillUnpaid, 15000)

	t.Run("inactive account", func(t *testing.T) {
		req := submitRequest()
		req.AccountID = "acc-inactive"
		_, err := svc.SubmitPayment(ctx, "b1", student, req)
		assert.True(t, errors.Is(err, ErrInvalidAccount))
		assert.Equal(t, string(models.AccountInactive), AsError(err).State)
	})

	t.Run("unknown account", func(t *testing.T) {
		req := submitRequest()
		req.AccountID = "acc-missing"
		_, err := svc.SubmitPayment(ctx, "b1", student, req)
		assert.True(t, errors.Is(err, ErrInvalidAccount))
	})

	t.Run("unknown method", func(t *testing.T) {
		req := submitRequest()
		req.Method = "crypto"
		_, err := svc.SubmitPayment(ctx, "b1", student, req)
		assert.True(t, errors.Is(err, ErrValidation))
	})

	t.Run("missing proof", func(t *testing.T) {
		req := submitRequest()
		req.ProofURL = "  "
		_, err := svc.SubmitPayment(ctx, "b1", student, req)
		assert.True(t, errors.Is(err, ErrValidation))
	})

	bill, err := store.GetBill(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, models.BillUnpaid, bill.Status)
}

func TestPaymentService_CheckSubmittable(t *testing.T) {
	svc, store := newPaymentService(t)
	ctx := context.Background()
	seedBill(t, store, "b1", student, models.BillUnpaid, 15000)
	seedBill(t, store, "b2", student, models.BillAwaitingConfirmation, 15000)

	assert.NoError(t, svc.CheckSubmittable(ctx, "b1", student))
	assert.True(t, errors.Is(svc.CheckSubmittable(ctx, "b1", classmate), ErrForbidden))
	assert.True(t, errors.Is(svc.CheckSubmittable(ctx, "nope", student), ErrNotFound))

	err := svc.CheckSubmittable(ctx, "b2", student)
	assert.True(t, errors.Is(err, ErrInvalidState))
	assert.Equal(t, string(models.BillAwaitingConfirmation), AsError(err).State)
}

func TestPaymentService_CancelRestoresUnpaid(t *testing.T) {
	svc, store := newPaymentService(t)
	ctx := context.Background()
	seedBill(t, store, "b1", student, models.BillAwaitingConfirmation, 15000)

	bill, err := svc.CancelPayment(ctx, "b1", student)
	require.NoError(t, err)
	assert.Equal(t, models.BillUnpaid, bill.Status)
	assert.Nil(t, bill.PaymentProofURL)
}

func TestPaymentService_ConfirmInvalidatesCache(t *testing.T) {
	store := newTestStore(t)
	rc := newRecordingCache()
	svc := NewPaymentService(store, rc, nil, nil)
	seedBill(t, store, "b1", student, models.BillAwaitingConfirmation, 15000)
	rc.values[cache.BalanceKey("class-a")] = LedgerSummary{Balance: 0}

	_, err := svc.ConfirmPayment(context.Background(), "b1", treasurer)
	require.NoError(t, err)

	assert.NotContains(t, rc.values, cache.BalanceKey("class-a"))
	assert.Contains(t, rc.deleted, cache.RecapKey("class-a"))
	assert.Contains(t, rc.deleted, cache.DashboardKey("class-a"))
	assert.Contains(t, rc.deleted, cache.StudentSummaryKey(student.UserID))
}

func TestPaymentService_ListBillsScope(t *testing.T) {
	svc, store := newPaymentService(t)
	ctx := context.Background()
	seedBill(t, store, "b1", student, models.BillUnpaid, 15000)
	seedBill(t, store, "b2", classmate, models.BillAwaitingConfirmation, 15000)

	own, total, err := svc.ListBills(ctx, student, repository.BillFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "b1", own[0].ID)

	all, total, err := svc.ListBills(ctx, treasurer, repository.BillFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, all, 2)

	pending, total, err := svc.PendingPayments(ctx, treasurer, repository.Pagination{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "b2", pending[0].ID)

	_, _, err = svc.PendingPayments(ctx, student, repository.Pagination{})
	assert.True(t, errors.Is(err, ErrForbidden))

	_, err = svc.GetBill(ctx, "b2", student)
	assert.True(t, errors.Is(err, ErrForbidden))
	_, err = svc.GetBill(ctx, "b2", otherCashier)
	assert.True(t, errors.Is(err, ErrForbidden))
}
