package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kaskelas/backend/internal/audit"
	"github.com/kaskelas/backend/internal/metrics"
	"github.com/kaskelas/backend/internal/models"
	"github.com/kaskelas/backend/internal/repository"
)

const (
	actionSubmit  = "submit"
	actionConfirm = "confirm"
	actionReject  = "reject"
	actionCancel  = "cancel"
)

type billTransition struct {
	from, to  models.BillStatus
	eventType string
}

// billTransitions is the complete cash bill state machine.
var billTransitions = map[string]billTransition{
	actionSubmit:  {models.BillUnpaid, models.BillAwaitingConfirmation, "PAYMENT_SUBMITTED"},
	actionConfirm: {models.BillAwaitingConfirmation, models.BillPaid, "PAYMENT_CONFIRMED"},
	actionReject:  {models.BillAwaitingConfirmation, models.BillUnpaid, "PAYMENT_REJECTED"},
	actionCancel:  {models.BillAwaitingConfirmation, models.BillUnpaid, "PAYMENT_CANCELLED"},
}

// PaymentService drives cash bills through submission, confirmation, rejection and cancellation.
type PaymentService struct {
	store   repository.Store
	cache   Cache
	audit   *audit.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewPaymentService(store repository.Store, c Cache, auditLog *audit.Logger, m *metrics.Metrics) *PaymentService {
	return &PaymentService{
		store:   store,
		cache:   orNoCache(c),
		audit:   auditLog,
		metrics: m,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

type SubmitPaymentRequest struct {
	Method    models.PaymentMethod
	ProofURL  string
	AccountID string
}

// billStep describes one guarded transition. mutate runs before the status write,
// record after it, both inside the same transaction.
type billStep struct {
	action    string
	actor     Actor
	authorize func(bill *models.CashBill) error
	mutate    func(ctx context.Context, q repository.Queries, bill *models.CashBill, now time.Time) error
	record    func(ctx context.Context, q repository.Queries, bill *models.CashBill, now time.Time) error
	details   map[string]string
}

func (s *PaymentService) transition(ctx context.Context, billID string, step billStep) (*models.CashBill, error) {
	tr := billTransitions[step.action]

	var updated *models.CashBill
	err := s.store.WithTx(ctx, func(q repository.Queries) error {
		bill, err := q.GetBillForUpdate(ctx, billID)
		if err != nil {
			return storeError("bill", billID, err)
		}
		if err := step.authorize(bill); err != nil {
			return err
		}
		if bill.Status != tr.from {
			return invalidStateError(
				fmt.Sprintf("cannot %s payment for bill %s: status must be %s", step.action, bill.BillID, tr.from),
				bill.Status,
			)
		}

		now := s.now()
		if step.mutate != nil {
			if err := step.mutate(ctx, q, bill, now); err != nil {
				return err
			}
		}
		bill.Status = tr.to
		bill.UpdatedAt = now

		ok, err := q.UpdateBillIfStatus(ctx, bill, tr.from)
		if err != nil {
			return storeError("bill", billID, err)
		}
		if !ok {
			current := models.BillStatus("unknown")
			if fresh, err := q.GetBill(ctx, billID); err == nil {
				current = fresh.Status
			}
			return invalidStateError(fmt.Sprintf("bill %s changed while being updated", bill.BillID), current)
		}

		if step.record != nil {
			if err := step.record(ctx, q, bill, now); err != nil {
				return err
			}
		}
		updated = bill
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.BillTransition(step.action)
	s.audit.LogTransition(audit.Transition{
		EventType:  tr.eventType,
		EntityType: "cash_bill",
		EntityID:   updated.ID,
		ActorID:    step.actor.UserID,
		ClassID:    updated.ClassID,
		From:       string(tr.from),
		To:         string(tr.to),
		Amount:     updated.TotalAmount,
		Details:    step.details,
	})
	return updated, nil
}

func ownerOnly(actor Actor) func(*models.CashBill) error {
	return func(bill *models.CashBill) error {
		if bill.UserID != actor.UserID {
			return forbiddenError("bill belongs to another student")
		}
		return nil
	}
}

func treasurerOf(actor Actor) func(*models.CashBill) error {
	return func(bill *models.CashBill) error {
		return requireTreasurerOf(actor, bill.ClassID)
	}
}

// CheckSubmittable is the read-only ownership and status check of SubmitPayment.
// Handlers call it before storing the proof file; SubmitPayment re-checks under the row lock.
func (s *PaymentService) CheckSubmittable(ctx context.Context, billID string, actor Actor) error {
	bill, err := s.store.GetBill(ctx, billID)
	if err != nil {
		return storeError("bill", billID, err)
	}
	if err := ownerOnly(actor)(bill); err != nil {
		return err
	}
	if from := billTransitions[actionSubmit].from; bill.Status != from {
		return invalidStateError(
			fmt.Sprintf("cannot %s payment for bill %s: status must be %s", actionSubmit, bill.BillID, from),
			bill.Status,
		)
	}
	return nil
}

// SubmitPayment records a student's payment claim and waits for the treasurer.
func (s *PaymentService) SubmitPayment(ctx context.Context, billID string, actor Actor, req SubmitPaymentRequest) (*models.CashBill, error) {
	switch req.Method {
	case models.PaymentBank, models.PaymentEwallet, models.PaymentCash:
	default:
		return nil, validationError("paymentMethod", "payment method must be bank, ewallet or cash")
	}
	if strings.TrimSpace(req.ProofURL) == "" {
		return nil, validationError("paymentProof", "payment proof is required")
	}

	bill, err := s.transition(ctx, billID, billStep{
		action:    actionSubmit,
		actor:     actor,
		authorize: ownerOnly(actor),
		mutate: func(ctx context.Context, q repository.Queries, bill *models.CashBill, now time.Time) error {
			if req.AccountID != "" {
				account, err := q.GetPaymentAccount(ctx, req.AccountID)
				if errors.Is(err, repository.ErrNotFound) {
					return &Error{Kind: ErrInvalidAccount, Message: fmt.Sprintf("payment account %s does not exist", req.AccountID)}
				}
				if err != nil {
					return storeError("payment account", req.AccountID, err)
				}
				if account.Status != models.AccountActive {
					return &Error{Kind: ErrInvalidAccount, Message: fmt.Sprintf("payment account %s is not active", account.Name), State: string(account.Status)}
				}
				accountID := account.ID
				bill.PaymentAccountID = &accountID
			}
			method := req.Method
			proof := req.ProofURL
			bill.PaymentMethod = &method
			bill.PaymentProofURL = &proof
			bill.PaidAt = &now
			return nil
		},
		details: map[string]string{"method": string(req.Method)},
	})
	if err != nil {
		return nil, err
	}

	s.cache.Delete(ctx, paymentSubmittedKeys(bill.ClassID, bill.UserID)...)
	return bill, nil
}

// ConfirmPayment marks the bill paid and books exactly one kas kelas income entry.
func (s *PaymentService) ConfirmPayment(ctx context.Context, billID string, actor Actor) (*models.CashBill, error) {
	bill, err := s.transition(ctx, billID, billStep{
		action:    actionConfirm,
		actor:     actor,
		authorize: treasurerOf(actor),
		mutate: func(_ context.Context, _ repository.Queries, bill *models.CashBill, now time.Time) error {
			confirmedBy := actor.UserID
			bill.ConfirmedBy = &confirmedBy
			bill.ConfirmedAt = &now
			return nil
		},
		record: func(ctx context.Context, q repository.Queries, bill *models.CashBill, now time.Time) error {
			entry := billIncome(bill, now)
			if err := q.AppendTransaction(ctx, entry); err != nil {
				if errors.Is(err, repository.ErrConflict) {
					return invalidStateError(fmt.Sprintf("bill %s is already booked in the ledger", bill.BillID), models.BillPaid)
				}
				return storeError("transaction", entry.ID, err)
			}
			return nil
		},
	})
	if err != nil {
		return nil, err
	}

	s.metrics.LedgerEntry(string(models.TransactionIncome), string(models.SourceCashBill))
	s.cache.Delete(ctx, paymentConfirmedKeys(bill.ClassID, bill.UserID)...)
	return bill, nil
}

func billIncome(bill *models.CashBill, now time.Time) *models.Transaction {
	source := models.SourceCashBill
	sourceID := bill.ID
	return &models.Transaction{
		ID:          uuid.NewString(),
		ClassID:     bill.ClassID,
		Type:        models.TransactionIncome,
		Category:    models.CategoryKasKelas,
		Amount:      bill.TotalAmount,
		Description: "Bill payment confirmed: " + bill.BillID,
		Date:        now,
		SourceType:  &source,
		SourceID:    &sourceID,
		CreatedAt:   now,
	}
}

// RejectPayment sends the bill back to unpaid and discards the submitted proof.
func (s *PaymentService) RejectPayment(ctx context.Context, billID string, actor Actor, reason string) (*models.CashBill, error) {
	details := map[string]string{}
	if reason = strings.TrimSpace(reason); reason != "" {
		details["reason"] = reason
	}

	bill, err := s.transition(ctx, billID, billStep{
		action:    actionReject,
		actor:     actor,
		authorize: treasurerOf(actor),
		mutate:    clearPayment,
		details:   details,
	})
	if err != nil {
		return nil, err
	}

	s.cache.Delete(ctx, paymentRejectedKeys(bill.ClassID, bill.UserID)...)
	return bill, nil
}

// CancelPayment lets the owner withdraw a submission before it is reviewed.
func (s *PaymentService) CancelPayment(ctx context.Context, billID string, actor Actor) (*models.CashBill, error) {
	bill, err := s.transition(ctx, billID, billStep{
		action:    actionCancel,
		actor:     actor,
		authorize: ownerOnly(actor),
		mutate:    clearPayment,
	})
	if err != nil {
		return nil, err
	}

	s.cache.Delete(ctx, paymentSubmittedKeys(bill.ClassID, bill.UserID)...)
	return bill, nil
}

func clearPayment(_ context.Context, _ repository.Queries, bill *models.CashBill, _ time.Time) error {
	bill.ClearPayment()
	return nil
}

// GetBill returns a bill the actor may see: their own, or any bill of a treasurer's class.
func (s *PaymentService) GetBill(ctx context.Context, billID string, actor Actor) (*models.CashBill, error) {
	bill, err := s.store.GetBill(ctx, billID)
	if err != nil {
		return nil, storeError("bill", billID, err)
	}
	if actor.IsTreasurer() {
		if err := requireTreasurerOf(actor, bill.ClassID); err != nil {
			return nil, err
		}
		return bill, nil
	}
	if err := ownerOnly(actor)(bill); err != nil {
		return nil, err
	}
	return bill, nil
}

// ListBills scopes students to their own bills and treasurers to their class.
func (s *PaymentService) ListBills(ctx context.Context, actor Actor, f repository.BillFilter) ([]models.CashBill, int, error) {
	if actor.IsTreasurer() {
		f.ClassID = actor.ClassID
	} else {
		f.UserID = actor.UserID
		f.ClassID = ""
	}
	if f.Status != "" && !f.Status.Valid() {
		return nil, 0, validationError("status", "unknown bill status")
	}

	bills, total, err := s.store.ListBills(ctx, f)
	if err != nil {
		return nil, 0, storeError("bill", "list", err)
	}
	return bills, total, nil
}

// PendingPayments lists bills of the treasurer's class that await confirmation.
func (s *PaymentService) PendingPayments(ctx context.Context, actor Actor, p repository.Pagination) ([]models.CashBill, int, error) {
	if !actor.IsTreasurer() {
		return nil, 0, forbiddenError("treasurer role required")
	}
	return s.ListBills(ctx, actor, repository.BillFilter{
		Status:     models.BillAwaitingConfirmation,
		SortBy:     "dueDate",
		Pagination: p,
	})
}
