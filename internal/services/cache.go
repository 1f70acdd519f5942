package services

import (
	"context"
	"time"

	"github.com/kaskelas/backend/internal/cache"
)

// Cache is the optional aggregate cache. Implementations must fail open.
type Cache interface {
	GetJSON(ctx context.Context, key string, dst any) bool
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration)
	Delete(ctx context.Context, keys ...string)
}

type noCache struct{}

func (noCache) GetJSON(context.Context, string, any) bool           { return false }
func (noCache) SetJSON(context.Context, string, any, time.Duration) {}
func (noCache) Delete(context.Context, ...string)                   {}

func orNoCache(c Cache) Cache {
	if c == nil {
		return noCache{}
	}
	return c
}

// The functions below list exactly which cached aggregates each mutation makes stale.

// paymentSubmittedKeys covers submit and cancel: pending counts change, balance does not.
func paymentSubmittedKeys(classID, userID string) []string {
	return []string{cache.DashboardKey(classID), cache.StudentSummaryKey(userID)}
}

// paymentRejectedKeys matches submit: the bill returns to unpaid without money moving.
func paymentRejectedKeys(classID, userID string) []string {
	return paymentSubmittedKeys(classID, userID)
}

// paymentConfirmedKeys covers confirmation, which appends income.
func paymentConfirmedKeys(classID, userID string) []string {
	return append(ledgerChangedKeys(classID), cache.StudentSummaryKey(userID))
}

// fundSubmittedKeys covers a new pending application.
func fundSubmittedKeys(classID, userID string) []string {
	return []string{cache.DashboardKey(classID), cache.StudentSummaryKey(userID)}
}

// fundApprovedKeys covers approval, which appends an expense.
func fundApprovedKeys(classID, applicantID string) []string {
	return append(ledgerChangedKeys(classID), cache.StudentSummaryKey(applicantID))
}

func fundRejectedKeys(classID, applicantID string) []string {
	return fundSubmittedKeys(classID, applicantID)
}

// ledgerChangedKeys covers any new ledger entry in the class.
func ledgerChangedKeys(classID string) []string {
	return []string{cache.BalanceKey(classID), cache.RecapKey(classID), cache.DashboardKey(classID)}
}

// billsGeneratedKeys covers fresh unpaid bills for the given students.
func billsGeneratedKeys(classIDs map[string]bool, userIDs []string) []string {
	keys := make([]string, 0, len(classIDs)+len(userIDs))
	for classID := range classIDs {
		keys = append(keys, cache.DashboardKey(classID))
	}
	for _, userID := range userIDs {
		keys = append(keys, cache.StudentSummaryKey(userID))
	}
	return keys
}
