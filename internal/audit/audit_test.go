package audit

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_LogTransition(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(slog.New(slog.NewJSONHandler(&buf, nil)))

	logger.LogTransition(Transition{
		EventType:  "PAYMENT_CONFIRMED",
		EntityType: "cash_bill",
		EntityID:   "bill-1",
		ActorID:    "treasurer-1",
		From:       "awaiting_confirmation",
		To:         "paid",
		Amount:     15000,
	})

	var record struct {
		Msg   string `json:"msg"`
		Event string `json:"event"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "AUDIT", record.Msg)

	var event Event
	require.NoError(t, json.Unmarshal([]byte(record.Event), &event))
	assert.Equal(t, "PAYMENT_CONFIRMED", event.EventType)
	assert.Equal(t, "paid", event.ToStatus)
	assert.Equal(t, int64(15000), event.Amount)
	assert.Equal(t, "SUCCESS", event.Status)
}

func TestLogger_LogError(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(slog.New(slog.NewJSONHandler(&buf, nil)))

	logger.LogError("BILL_GENERATION", "cash_bill", "user-1", errors.New("db down"))
	assert.Contains(t, buf.String(), "FAILED")
	assert.Contains(t, buf.String(), "db down")
}
