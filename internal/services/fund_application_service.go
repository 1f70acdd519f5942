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

type FundApplicationService struct {
	store   repository.Store
	cache   Cache
	audit   *audit.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewFundApplicationService(store repository.Store, c Cache, auditLog *audit.Logger, m *metrics.Metrics) *FundApplicationService {
	return &FundApplicationService{
		store:   store,
		cache:   orNoCache(c),
		audit:   auditLog,
		metrics: m,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

type CreateFundApplicationRequest struct {
	Purpose       string
	Description   string
	Category      models.FundCategory
	Amount        int64
	AttachmentURL string
}

// Create files a pending application on behalf of the student.
func (s *FundApplicationService) Create(ctx context.Context, actor Actor, req CreateFundApplicationRequest) (*models.FundApplication, error) {
	purpose := strings.TrimSpace(req.Purpose)
	switch {
	case purpose == "":
		return nil, validationError("purpose", "purpose is required")
	case len(purpose) > 255:
		return nil, validationError("purpose", "purpose must be at most 255 characters")
	case !req.Category.Valid():
		return nil, validationError("category", "category must be education, health, emergency or equipment")
	case req.Amount <= 0:
		return nil, validationError("amount", "amount must be greater than 0")
	}

	now := s.now()
	app := &models.FundApplication{
		ID:          uuid.NewString(),
		UserID:      actor.UserID,
		ClassID:     actor.ClassID,
		Purpose:     purpose,
		Description: strings.TrimSpace(req.Description),
		Category:    req.Category,
		Amount:      req.Amount,
		Status:      models.FundPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if req.AttachmentURL != "" {
		url := req.AttachmentURL
		app.AttachmentURL = &url
	}

	if err := s.store.CreateFundApplication(ctx, app); err != nil {
		return nil, storeError("fund application", app.ID, err)
	}

	s.cache.Delete(ctx, fundSubmittedKeys(app.ClassID, app.UserID)...)
	s.audit.LogTransition(audit.Transition{
		EventType:  "FUND_APPLICATION_SUBMITTED",
		EntityType: "fund_application",
		EntityID:   app.ID,
		ActorID:    actor.UserID,
		ClassID:    app.ClassID,
		To:         string(app.Status),
		Amount:     app.Amount,
	})
	return app, nil
}

// Get returns the application to its applicant or to the treasurer of its class.
func (s *FundApplicationService) Get(ctx context.Context, id string, actor Actor) (*models.FundApplication, error) {
	app, err := s.store.GetFundApplication(ctx, id)
	if err != nil {
		return nil, storeError("fund application", id, err)
	}
	if actor.IsTreasurer() {
		if err := requireTreasurerOf(actor, app.ClassID); err != nil {
			return nil, err
		}
		return app, nil
	}
	if app.UserID != actor.UserID {
		return nil, forbiddenError("fund application belongs to another student")
	}
	return app, nil
}

// List scopes students to their own applications and treasurers to their class.
func (s *FundApplicationService) List(ctx context.Context, actor Actor, f repository.FundFilter) ([]models.FundApplication, int, error) {
	if actor.IsTreasurer() {
		f.ClassID = actor.ClassID
	} else {
		f.UserID = actor.UserID
		f.ClassID = ""
	}
	if f.Status != "" && !f.Status.Valid() {
		return nil, 0, validationError("status", "unknown fund application status")
	}
	if f.MinAmount > 0 && f.MaxAmount > 0 && f.MaxAmount < f.MinAmount {
		return nil, 0, validationError("maxAmount", "maxAmount must not be below minAmount")
	}

	apps, total, err := s.store.ListFundApplications(ctx, f)
	if err != nil {
		return nil, 0, storeError("fund application", "list", err)
	}
	return apps, total, nil
}

// Approve closes the application and books its amount as one expense entry.
func (s *FundApplicationService) Approve(ctx context.Context, id string, actor Actor) (*models.FundApplication, error) {
	app, err := s.review(ctx, id, actor, models.FundApproved, nil)
	if err != nil {
		return nil, err
	}

	s.metrics.LedgerEntry(string(models.TransactionExpense), string(models.SourceFundApplication))
	s.cache.Delete(ctx, fundApprovedKeys(app.ClassID, app.UserID)...)
	return app, nil
}

// Reject closes the application with a reason and no ledger effect.
func (s *FundApplicationService) Reject(ctx context.Context, id string, actor Actor, reason string) (*models.FundApplication, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, &Error{
			Kind:    ErrMissingReason,
			Message: "rejection reason is required",
			Details: map[string]string{"rejectionReason": "required"},
		}
	}

	app, err := s.review(ctx, id, actor, models.FundRejected, &reason)
	if err != nil {
		return nil, err
	}

	s.cache.Delete(ctx, fundRejectedKeys(app.ClassID, app.UserID)...)
	return app, nil
}

func (s *FundApplicationService) review(ctx context.Context, id string, actor Actor, to models.FundStatus, reason *string) (*models.FundApplication, error) {
	var reviewed *models.FundApplication
	err := s.store.WithTx(ctx, func(q repository.Queries) error {
		app, err := q.GetFundApplicationForUpdate(ctx, id)
		if err != nil {
			return storeError("fund application", id, err)
		}
		if err := requireTreasurerOf(actor, app.ClassID); err != nil {
			return err
		}
		if app.Status != models.FundPending {
			return invalidStateError(fmt.Sprintf("fund application %s has already been reviewed", app.ID), app.Status)
		}

		now := s.now()
		reviewer := actor.UserID
		app.Status = to
		app.ReviewedBy = &reviewer
		app.ReviewedAt = &now
		app.RejectionReason = reason
		app.UpdatedAt = now

		ok, err := q.UpdateFundApplicationIfStatus(ctx, app, models.FundPending)
		if err != nil {
			return storeError("fund application", id, err)
		}
		if !ok {
			current := models.FundStatus("unknown")
			if fresh, err := q.GetFundApplication(ctx, id); err == nil {
				current = fresh.Status
			}
			return invalidStateError(fmt.Sprintf("fund application %s changed while being reviewed", app.ID), current)
		}

		if to == models.FundApproved {
			entry := fundExpense(app, now)
			if err := q.AppendTransaction(ctx, entry); err != nil {
				if errors.Is(err, repository.ErrConflict) {
					return invalidStateError(fmt.Sprintf("fund application %s is already booked in the ledger", app.ID), models.FundApproved)
				}
				return storeError("transaction", entry.ID, err)
			}
		}
		reviewed = app
		return nil
	})
	if err != nil {
		return nil, err
	}

	details := map[string]string{"category": string(reviewed.Category)}
	if reason != nil {
		details["reason"] = *reason
	}
	s.metrics.FundTransition(string(to))
	s.audit.LogTransition(audit.Transition{
		EventType:  "FUND_APPLICATION_" + strings.ToUpper(string(to)),
		EntityType: "fund_application",
		EntityID:   reviewed.ID,
		ActorID:    actor.UserID,
		ClassID:    reviewed.ClassID,
		From:       string(models.FundPending),
		To:         string(to),
		Amount:     reviewed.Amount,
		Details:    details,
	})
	return reviewed, nil
}

func fundExpense(app *models.FundApplication, now time.Time) *models.Transaction {
	source := models.SourceFundApplication
	sourceID := app.ID
	return &models.Transaction{
		ID:          uuid.NewString(),
		ClassID:     app.ClassID,
		Type:        models.TransactionExpense,
		Category:    app.Category.LedgerCategory(),
		Amount:      app.Amount,
		Description: "Fund application approved: " + app.Purpose,
		Date:        now,
		SourceType:  &source,
		SourceID:    &sourceID,
		CreatedAt:   now,
	}
}
