package audit

import (
	"encoding/json"
	"log/slog"
	"time"
)

type Event struct {
	Timestamp  time.Time         `json:"timestamp"`
	EventType  string            `json:"event_type"`
	EntityType string            `json:"entity_type"`
	EntityID   string            `json:"entity_id"`
	ActorID    string            `json:"actor_id,omitempty"`
	ClassID    string            `json:"class_id,omitempty"`
	FromStatus string            `json:"from_status,omitempty"`
	ToStatus   string            `json:"to_status,omitempty"`
	Amount     int64             `json:"amount,omitempty"`
	Status     string            `json:"status"`
	Details    map[string]string `json:"details,omitempty"`
}

// Logger writes one AUDIT record per money-relevant change. A nil Logger uses slog.Default.
type Logger struct {
	logger *slog.Logger
}

func NewLogger(logger *slog.Logger) *Logger {
	return &Logger{logger: logger}
}

// Transition records an entity moving between statuses.
type Transition struct {
	EventType  string
	EntityType string
	EntityID   string
	ActorID    string
	ClassID    string
	From       string
	To         string
	Amount     int64
	Details    map[string]string
}

func (a *Logger) LogTransition(t Transition) {
	a.log(Event{
		Timestamp:  time.Now(),
		EventType:  t.EventType,
		EntityType: t.EntityType,
		EntityID:   t.EntityID,
		ActorID:    t.ActorID,
		ClassID:    t.ClassID,
		FromStatus: t.From,
		ToStatus:   t.To,
		Amount:     t.Amount,
		Status:     "SUCCESS",
		Details:    t.Details,
	})
}

func (a *Logger) LogOperation(eventType, entityType, entityID, actorID string, details map[string]string) {
	a.log(Event{
		Timestamp:  time.Now(),
		EventType:  eventType,
		EntityType: entityType,
		EntityID:   entityID,
		ActorID:    actorID,
		Status:     "SUCCESS",
		Details:    details,
	})
}

func (a *Logger) LogError(eventType, entityType, entityID string, err error) {
	a.log(Event{
		Timestamp:  time.Now(),
		EventType:  eventType,
		EntityType: entityType,
		EntityID:   entityID,
		Status:     "FAILED",
		Details:    map[string]string{"error": err.Error()},
	})
}

func (a *Logger) log(event Event) {
	logger := slog.Default()
	if a != nil && a.logger != nil {
		logger = a.logger
	}
	data, _ := json.Marshal(event)
	logger.Info("AUDIT", "event", string(data))
}
