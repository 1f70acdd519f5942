package services

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kaskelas/backend/internal/audit"
	"github.com/kaskelas/backend/internal/models"
	"github.com/kaskelas/backend/internal/repository"
	"github.com/skip2/go-qrcode"
)

// PaymentAccountService manages the treasury's receiving accounts.
type PaymentAccountService struct {
	store repository.Store
	audit *audit.Logger
	now   func() time.Time
}

func NewPaymentAccountService(store repository.Store, auditLog *audit.Logger) *PaymentAccountService {
	return &PaymentAccountService{
		store: store,
		audit: auditLog,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

type PaymentAccountRequest struct {
	Name          string
	AccountType   models.AccountType
	AccountNumber string
	AccountHolder string
	Description   string
}

func (r PaymentAccountRequest) validate() error {
	switch {
	case strings.TrimSpace(r.Name) == "":
		return validationError("name", "name is required")
	case r.AccountType != models.AccountBank && r.AccountType != models.AccountEwallet:
		return validationError("accountType", "account type must be bank or ewallet")
	case strings.TrimSpace(r.AccountNumber) == "":
		return validationError("accountNumber", "account number is required")
	case strings.TrimSpace(r.AccountHolder) == "":
		return validationError("accountHolder", "account holder is required")
	}
	return nil
}

func (r PaymentAccountRequest) apply(acc *models.PaymentAccount) {
	acc.Name = strings.TrimSpace(r.Name)
	acc.AccountType = r.AccountType
	acc.AccountNumber = strings.TrimSpace(r.AccountNumber)
	acc.AccountHolder = strings.TrimSpace(r.AccountHolder)
	acc.Description = nil
	if d := strings.TrimSpace(r.Description); d != "" {
		acc.Description = &d
	}
}

func (s *PaymentAccountService) List(ctx context.Context, status models.AccountStatus) ([]models.PaymentAccount, error) {
	if status != "" && status != models.AccountActive && status != models.AccountInactive {
		return nil, validationError("status", "status must be active or inactive")
	}
	accounts, err := s.store.ListPaymentAccounts(ctx, status)
	if err != nil {
		return nil, storeError("payment account", "list", err)
	}
	return nonNil(accounts), nil
}

func (s *PaymentAccountService) Get(ctx context.Context, id string) (*models.PaymentAccount, error) {
	acc, err := s.store.GetPaymentAccount(ctx, id)
	if err != nil {
		return nil, storeError("payment account", id, err)
	}
	return acc, nil
}

func (s *PaymentAccountService) Create(ctx context.Context, actor Actor, req PaymentAccountRequest) (*models.PaymentAccount, error) {
	if !actor.IsTreasurer() {
		return nil, forbiddenError("treasurer role required")
	}
	if err := req.validate(); err != nil {
		return nil, err
	}

	now := s.now()
	acc := &models.PaymentAccount{
		ID:        uuid.NewString(),
		Status:    models.AccountActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	req.apply(acc)

	if err := s.store.CreatePaymentAccount(ctx, acc); err != nil {
		return nil, storeError("payment account", acc.ID, err)
	}
	s.audit.LogOperation("PAYMENT_ACCOUNT_CREATED", "payment_account", acc.ID, actor.UserID, map[string]string{"name": acc.Name})
	return acc, nil
}

func (s *PaymentAccountService) Update(ctx context.Context, actor Actor, id string, req PaymentAccountRequest) (*models.PaymentAccount, error) {
	if !actor.IsTreasurer() {
		return nil, forbiddenError("treasurer role required")
	}
	if err := req.validate(); err != nil {
		return nil, err
	}

	acc, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	req.apply(acc)
	acc.UpdatedAt = s.now()

	if err := s.store.UpdatePaymentAccount(ctx, acc); err != nil {
		return nil, storeError("payment account", id, err)
	}
	s.audit.LogOperation("PAYMENT_ACCOUNT_UPDATED", "payment_account", acc.ID, actor.UserID, nil)
	return acc, nil
}

// SetStatus activates or deactivates an account. Bills already submitted keep their reference.
func (s *PaymentAccountService) SetStatus(ctx context.Context, actor Actor, id string, status models.AccountStatus) (*models.PaymentAccount, error) {
	if !actor.IsTreasurer() {
		return nil, forbiddenError("treasurer role required")
	}
	if status != models.AccountActive && status != models.AccountInactive {
		return nil, validationError("status", "status must be active or inactive")
	}

	acc, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if acc.Status == status {
		return acc, nil
	}
	from := acc.Status
	acc.Status = status
	acc.UpdatedAt = s.now()

	if err := s.store.UpdatePaymentAccount(ctx, acc); err != nil {
		return nil, storeError("payment account", id, err)
	}
	s.audit.LogTransition(audit.Transition{
		EventType:  "PAYMENT_ACCOUNT_" + strings.ToUpper(string(status)),
		EntityType: "payment_account",
		EntityID:   acc.ID,
		ActorID:    actor.UserID,
		From:       string(from),
		To:         string(status),
	})
	return acc, nil
}

// Delete refuses while any bill references the account.
func (s *PaymentAccountService) Delete(ctx context.Context, actor Actor, id string) error {
	if !actor.IsTreasurer() {
		return forbiddenError("treasurer role required")
	}

	return s.store.WithTx(ctx, func(q repository.Queries) error {
		if _, err := q.GetPaymentAccount(ctx, id); err != nil {
			return storeError("payment account", id, err)
		}
		used, err := q.CountBillsUsingAccount(ctx, id)
		if err != nil {
			return storeError("bill", "count", err)
		}
		if used > 0 {
			return &Error{
				Kind:    ErrConflict,
				Message: fmt.Sprintf("payment account is referenced by %d bills; deactivate it instead", used),
			}
		}
		if err := q.DeletePaymentAccount(ctx, id); err != nil {
			return storeError("payment account", id, err)
		}
		s.audit.LogOperation("PAYMENT_ACCOUNT_DELETED", "payment_account", id, actor.UserID, nil)
		return nil
	})
}

// QRCode renders the account's transfer details as a PNG. Only active accounts are rendered.
func (s *PaymentAccountService) QRCode(ctx context.Context, id string, size int) ([]byte, error) {
	acc, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if acc.Status != models.AccountActive {
		return nil, &Error{Kind: ErrInvalidAccount, Message: "payment account is not active", State: string(acc.Status)}
	}
	if size <= 0 || size > 1024 {
		size = 256
	}

	payload := fmt.Sprintf("%s|%s|%s|%s", acc.AccountType, acc.Name, acc.AccountNumber, acc.AccountHolder)
	qr, err := qrcode.New(payload, qrcode.Medium)
	if err != nil {
		return nil, &Error{Kind: ErrInfrastructure, Message: "failed to build QR code", Cause: err}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, qr.Image(size)); err != nil {
		return nil, &Error{Kind: ErrInfrastructure, Message: "failed to encode QR code", Cause: err}
	}
	return buf.Bytes(), nil
}
