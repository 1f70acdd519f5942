package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kaskelas/backend/internal/audit"
	"github.com/kaskelas/backend/internal/config"
	"github.com/kaskelas/backend/internal/metrics"
	"github.com/kaskelas/backend/internal/models"
	"github.com/kaskelas/backend/internal/repository"
)

// GenerationResult summarizes one generator run for one period.
type GenerationResult struct {
	Month    int  `json:"month"`
	Year     int  `json:"year"`
	Created  int  `json:"created"`
	Skipped  int  `json:"skipped"`
	Failed   int  `json:"failed"`
	Excluded bool `json:"excluded"`
}

// BillGenerator creates one unpaid bill per student per period.
type BillGenerator struct {
	store   repository.Store
	cache   Cache
	policy  config.BillingPolicy
	audit   *audit.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewBillGenerator(store repository.Store, c Cache, policy config.BillingPolicy, auditLog *audit.Logger, m *metrics.Metrics) *BillGenerator {
	return &BillGenerator{
		store:   store,
		cache:   orNoCache(c),
		policy:  policy,
		audit:   auditLog,
		metrics: m,
		now:     time.Now,
	}
}

// GenerateCurrent bills the period containing now in the billing timezone.
func (g *BillGenerator) GenerateCurrent(ctx context.Context) (GenerationResult, error) {
	p := g.policy.Current(g.now())
	return g.GenerateForPeriod(ctx, p.Month, p.Year)
}

// GenerateForPeriod is idempotent: students who already have a bill for the period are skipped.
// Individual failures are logged and counted without stopping the batch.
func (g *BillGenerator) GenerateForPeriod(ctx context.Context, month, year int) (GenerationResult, error) {
	period := models.Period{Month: month, Year: year}
	result := GenerationResult{Month: month, Year: year}
	if err := period.Validate(); err != nil {
		return result, validationError("period", err.Error())
	}

	if g.policy.Excluded(period) {
		result.Excluded = true
		slog.Info("bill generation skipped for excluded month", "period", period.String())
		return result, nil
	}

	students, err := g.store.ListStudents(ctx, "")
	if err != nil {
		return result, storeError("user", "students", err)
	}

	kasKelas := g.policy.KasKelasFor(period)
	dueDate := g.policy.DueDate(period)
	classes := make(map[string]bool)
	var billed []string

	for _, student := range students {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		created, err := g.createBill(ctx, student, period, kasKelas, dueDate)
		switch {
		case err != nil:
			result.Failed++
			slog.Error("failed to create bill", "user_id", student.ID, "period", period.String(), "error", err)
			g.audit.LogError("BILL_GENERATION", "user", student.ID, err)
		case created:
			result.Created++
			classes[student.ClassID] = true
			billed = append(billed, student.ID)
		default:
			result.Skipped++
		}
	}

	g.metrics.BillsGenerated("created", result.Created)
	g.metrics.BillsGenerated("skipped", result.Skipped)
	g.metrics.BillsGenerated("failed", result.Failed)
	g.cache.Delete(ctx, billsGeneratedKeys(classes, billed)...)

	slog.Info("bill generation finished",
		"period", period.String(),
		"created", result.Created,
		"skipped", result.Skipped,
		"failed", result.Failed,
	)
	g.audit.LogOperation("BILLS_GENERATED", "period", period.String(), "", map[string]string{
		"created": fmt.Sprint(result.Created),
		"skipped": fmt.Sprint(result.Skipped),
		"failed":  fmt.Sprint(result.Failed),
	})
	return result, nil
}

// Backfill generates bills for each listed period in order.
func (g *BillGenerator) Backfill(ctx context.Context, periods []models.Period) ([]GenerationResult, error) {
	results := make([]GenerationResult, 0, len(periods))
	for _, p := range periods {
		result, err := g.GenerateForPeriod(ctx, p.Month, p.Year)
		if err != nil {
			return results, fmt.Errorf("backfill %s: %w", p, err)
		}
		results = append(results, result)
	}
	return results, nil
}

func (g *BillGenerator) createBill(ctx context.Context, student models.User, period models.Period, kasKelas int64, dueDate time.Time) (bool, error) {
	exists, err := g.store.BillExists(ctx, student.ID, period)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	now := g.now().UTC()
	bill := &models.CashBill{
		ID:          uuid.NewString(),
		BillID:      NewBillID(period),
		UserID:      student.ID,
		ClassID:     student.ClassID,
		Month:       period.Month,
		Year:        period.Year,
		DueDate:     dueDate,
		KasKelas:    kasKelas,
		BiayaAdmin:  g.policy.BiayaAdmin,
		TotalAmount: kasKelas + g.policy.BiayaAdmin,
		Status:      models.BillUnpaid,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	for attempt := 0; ; attempt++ {
		err := g.store.CreateBill(ctx, bill)
		if err == nil {
			return true, nil
		}
		if !errors.Is(err, repository.ErrConflict) {
			return false, err
		}

		// Either another run billed this student first or the bill number collided.
		exists, checkErr := g.store.BillExists(ctx, student.ID, period)
		if checkErr != nil {
			return false, checkErr
		}
		if exists {
			return false, nil
		}
		if attempt == maxBillIDAttempts-1 {
			return false, err
		}
		bill.BillID = NewBillID(period)
	}
}

const maxBillIDAttempts = 3

// NewBillID formats the human-readable bill number, e.g. BILL-2025-09-1A2B3C4D.
func NewBillID(period models.Period) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("BILL-%04d-%02d-%s", period.Year, period.Month, suffix)
}
