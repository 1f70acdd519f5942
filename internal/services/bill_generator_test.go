package services

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/kaskelas/backend/internal/models"
	"github.com/kaskelas/backend/internal/repository"
	"github.com/kaskelas/backend/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGenerator(t *testing.T, store repository.Store) *BillGenerator {
	t.Helper()
	g := NewBillGenerator(store, nil, testPolicy(t), nil, nil)
	g.now = func() time.Time { return fixedNow }
	return g
}

func TestBillGenerator_GenerateForPeriod(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	g := newGenerator(t, store)

	result, err := g.GenerateForPeriod(ctx, 10, 2025)
	require.NoError(t, err)
	assert.Equal(t, GenerationResult{Month: 10, Year: 2025, Created: 2}, result)

	bills, total, err := store.ListBills(ctx, repository.BillFilter{Month: 10, Year: 2025})
	require.NoError(t, err)
	require.Equal(t, 2, total)

	billID := regexp.MustCompile(`^BILL-2025-10-[0-9A-F]{8}$`)
	for _, b := range bills {
		assert.Equal(t, models.BillUnpaid, b.Status)
		assert.Equal(t, int64(10000), b.KasKelas)
		assert.Equal(t, b.KasKelas+b.BiayaAdmin, b.TotalAmount)
		assert.Regexp(t, billID, b.BillID)
		assert.Equal(t, "class-a", b.ClassID)

		due := b.DueDate.In(testPolicy(t).Location)
		assert.Equal(t, time.November, due.Month())
		assert.Equal(t, 1, due.Day())
	}
}

func TestBillGenerator_Idempotent(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	g := newGenerator(t, store)

	_, err := g.GenerateForPeriod(ctx, 10, 2025)
	require.NoError(t, err)

	result, err := g.GenerateForPeriod(ctx, 10, 2025)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Created)
	assert.Equal(t, 2, result.Skipped)

	n, err := store.CountBills(ctx, repository.BillFilter{Month: 10, Year: 2025})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestBillGenerator_ExcludedMonths(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	g := newGenerator(t, store)

	for _, month := range []int{1, 2, 7, 8} {
		result, err := g.GenerateForPeriod(ctx, month, 2025)
		require.NoError(t, err)
		assert.True(t, result.Excluded, "month %d", month)
		assert.Zero(t, result.Created)
	}

	n, err := store.CountBills(ctx, repository.BillFilter{})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestBillGenerator_RateHistory(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	g := newGenerator(t, store)

	_, err := g.GenerateForPeriod(ctx, 3, 2025)
	require.NoError(t, err)
	_, err = g.GenerateForPeriod(ctx, 9, 2025)
	require.NoError(t, err)

	march, _, err := store.ListBills(ctx, repository.BillFilter{UserID: "u1", Month: 3, Year: 2025})
	require.NoError(t, err)
	require.Len(t, march, 1)
	assert.Equal(t, int64(15000), march[0].TotalAmount)

	september, _, err := store.ListBills(ctx, repository.BillFilter{UserID: "u1", Month: 9, Year: 2025})
	require.NoError(t, err)
	require.Len(t, september, 1)
	assert.Equal(t, int64(10000), september[0].TotalAmount)
}

func TestBillGenerator_InvalidPeriod(t *testing.T) {
	g := newGenerator(t, newTestStore(t))

	_, err := g.GenerateForPeriod(context.Background(), 13, 2025)
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestBillGenerator_GenerateCurrent(t *testing.T) {
	store := newTestStore(t)
	g := newGenerator(t, store)
	// 20:00 UTC on 30 September is already October in Jakarta.
	g.now = func() time.Time { return time.Date(2025, time.September, 30, 20, 0, 0, 0, time.UTC) }

	result, err := g.GenerateCurrent(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10, result.Month)
	assert.Equal(t, 2025, result.Year)
}

func TestBillGenerator_Backfill(t *testing.T) {
	store := newTestStore(t)
	g := newGenerator(t, store)

	results, err := g.Backfill(context.Background(), []models.Period{{Month: 8, Year: 2024}, {Month: 9, Year: 2024}})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.True(t, results[0].Excluded)
	assert.Equal(t, 2, results[1].Created)
}

// flakyStore fails or collides CreateBill for chosen students.
type flakyStore struct {
	*memory.Store
	failUser    string
	collideOnce map[string]bool
}

func (s *flakyStore) CreateBill(ctx context.Context, b *models.CashBill) error {
	if b.UserID == s.failUser {
		return errors.New("connection reset")
	}
	if s.collideOnce[b.UserID] {
		delete(s.collideOnce, b.UserID)
		return repository.ErrConflict
	}
	return s.Store.CreateBill(ctx, b)
}

func TestBillGenerator_PartialFailure(t *testing.T) {
	store := &flakyStore{Store: newTestStore(t), failUser: "u1"}
	g := newGenerator(t, store)

	result, err := g.GenerateForPeriod(context.Background(), 10, 2025)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 1, result.Failed)
}

func TestBillGenerator_RetriesBillIDCollision(t *testing.T) {
	store := &flakyStore{Store: newTestStore(t), collideOnce: map[string]bool{"u1": true}}
	g := newGenerator(t, store)

	result, err := g.GenerateForPeriod(context.Background(), 10, 2025)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Created)
	assert.Zero(t, result.Failed)
}
