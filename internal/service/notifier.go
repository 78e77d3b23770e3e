package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/rubiai-api/internal/observability"
)

// Evaluation event types.
const (
	EventEvaluationCompleted = "evaluation.completed"
	EventEvaluationFailed    = "evaluation.failed"
)

// EvaluationEvent is the outcome of one submission.
type EvaluationEvent struct {
	Type         string    `json:"type"`
	UploadID     string    `json:"uploadId"`
	EvaluationID string    `json:"evaluationId,omitempty"`
	FileName     string    `json:"fileName"`
	RubricType   string    `json:"rubricType"`
	Strategy     string    `json:"strategy"`
	Percentage   float64   `json:"percentage,omitempty"`
	Grade        string    `json:"grade,omitempty"`
	Reason       string    `json:"reason,omitempty"`
	OccurredAt   time.Time `json:"occurredAt"`
}

// Notifier surfaces submission outcomes to the user.
type Notifier interface {
	Notify(ctx context.Context, event EvaluationEvent)
}

// NotifierOptions configures the broadcast channels. Empty values disable a channel.
type NotifierOptions struct {
	Hub          *EventHub
	Redis        *redis.Client
	RedisChannel string
	NATS         *nats.Conn
	NATSSubject  string
}

type eventNotifier struct {
	hub          *EventHub
	redis        *redis.Client
	redisChannel string
	nats         *nats.Conn
	natsSubject  string
	logger       zerolog.Logger
}

// NewNotifier logs every outcome and broadcasts it on the configured channels.
func NewNotifier(opts NotifierOptions, logger zerolog.Logger) Notifier {
	return &eventNotifier{
		hub:          opts.Hub,
		redis:        opts.Redis,
		redisChannel: opts.RedisChannel,
		nats:         opts.NATS,
		natsSubject:  opts.NATSSubject,
		logger:       logger.With().Str("component", "evaluation_notifier").Logger(),
	}
}

func (n *eventNotifier) Notify(ctx context.Context, event EvaluationEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	logEvent := n.logger.Info()
	if event.Type == EventEvaluationFailed {
		logEvent = n.logger.Warn().Str("reason", event.Reason)
	}
	logEvent.
		Str("event", event.Type).
		Str("upload_id", event.UploadID).
		Str("evaluation_id", event.EvaluationID).
		Str("rubric_type", event.RubricType).
		Str("strategy", event.Strategy).
		Msg("submission finished")

	if n.hub != nil {
		n.hub.Broadcast(event)
	}
	if n.redis == nil && n.nats == nil {
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		n.logger.Error().Err(err).Msg("failed to encode evaluation event")
		return
	}

	if n.redis != nil && n.redisChannel != "" {
		if err := n.redis.Publish(ctx, n.redisChannel, payload).Err(); err != nil {
			n.logger.Warn().Err(err).Msg("failed to publish evaluation event to redis")
		}
	}
	if n.nats != nil && n.natsSubject != "" {
		if err := n.nats.Publish(n.natsSubject, payload); err != nil {
			n.logger.Warn().Err(err).Msg("failed to publish evaluation event to nats")
		}
	}
}

const eventSubscriberBuffer = 16

// EventHub fans evaluation events out to connected clients.
type EventHub struct {
	mu          sync.RWMutex
	subscribers map[chan EvaluationEvent]struct{}
	closed      bool
	logger      zerolog.Logger
}

// NewEventHub creates an empty hub.
func NewEventHub(logger zerolog.Logger) *EventHub {
	return &EventHub{
		subscribers: make(map[chan EvaluationEvent]struct{}),
		logger:      logger.With().Str("component", "evaluation_event_hub").Logger(),
	}
}

// Subscribe registers a listener. The channel is closed by the returned cancel func or by Close.
func (h *EventHub) Subscribe() (<-chan EvaluationEvent, func()) {
	events := make(chan EvaluationEvent, eventSubscriberBuffer)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(events)
		return events, func() {}
	}
	h.subscribers[events] = struct{}{}
	h.mu.Unlock()
	observability.EventStreamClients().Inc()

	var once sync.Once
	return events, func() {
		once.Do(func() { h.remove(events) })
	}
}

// Broadcast delivers the event to every subscriber without blocking. Slow subscribers miss events.
func (h *EventHub) Broadcast(event EvaluationEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for events := range h.subscribers {
		select {
		case events <- event:
		default:
			h.logger.Warn().Str("upload_id", event.UploadID).Msg("dropping evaluation event for slow subscriber")
		}
	}
}

// Subscribers returns the number of connected listeners.
func (h *EventHub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Close disconnects every subscriber and rejects new ones.
func (h *EventHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for events := range h.subscribers {
		delete(h.subscribers, events)
		close(events)
		observability.EventStreamClients().Dec()
	}
}

func (h *EventHub) remove(events chan EvaluationEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subscribers[events]; !ok {
		return
	}
	delete(h.subscribers, events)
	close(events)
	observability.EventStreamClients().Dec()
}
