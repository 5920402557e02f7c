package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"crisis-escalation-service/pkg/constants"
	"crisis-escalation-service/pkg/metrics"
	"crisis-escalation-service/pkg/models"
)

// Emitter delivers one event to one logical room. The real-time transport
// owns connection state; from here delivery is best-effort, at-most-once.
type Emitter interface {
	Emit(ctx context.Context, room, event string, payload interface{}) error
}

// Envelope is the published wire frame: the subscribing transport unwraps it
// and forwards the event to every live connection joined to the room.
type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// RedisEmitter publishes envelopes on the Redis channel named after the room.
type RedisEmitter struct {
	rdb    *redis.Client
	logger *logrus.Logger
}

func NewRedisEmitter(rdb *redis.Client, logger *logrus.Logger) *RedisEmitter {
	return &RedisEmitter{rdb: rdb, logger: logger}
}

func (e *RedisEmitter) Emit(ctx context.Context, room, event string, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", event, err)
	}
	frame, err := json.Marshal(Envelope{Event: event, Payload: raw})
	if err != nil {
		return fmt.Errorf("failed to marshal %s envelope: %w", event, err)
	}
	if err := e.rdb.Publish(ctx, room, frame).Err(); err != nil {
		return fmt.Errorf("failed to publish %s to %s: %w", event, room, err)
	}
	return nil
}

// LocalEmitter keeps emitted events in memory. Used when the service runs
// without Redis and as the recording double in tests.
type LocalEmitter struct {
	mu     sync.Mutex
	events []LocalEvent
}

type LocalEvent struct {
	Room    string
	Event   string
	Payload interface{}
}

func NewLocalEmitter() *LocalEmitter {
	return &LocalEmitter{}
}

func (e *LocalEmitter) Emit(ctx context.Context, room, event string, payload interface{}) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, LocalEvent{Room: room, Event: event, Payload: payload})
	return nil
}

func (e *LocalEmitter) Events() []LocalEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]LocalEvent, len(e.events))
	copy(out, e.events)
	return out
}

// FanOut delivers crisis events to the originating user's room and to the
// responder broadcast room.
type FanOut struct {
	emitter Emitter
	logger  *logrus.Logger
	metrics *metrics.Metrics
}

func NewFanOut(emitter Emitter, logger *logrus.Logger, m *metrics.Metrics) *FanOut {
	return &FanOut{emitter: emitter, logger: logger, metrics: m}
}

// UserRoom names the per-user session room.
func UserRoom(userID string) string {
	return constants.UserRoomPrefix + userID
}

// NotifyCrisis sends the supportive user-facing notification first so the
// user's own client updates promptly, then the responder broadcast. The two
// deliveries are independent: failure of one never suppresses the other.
// esc may be nil for sub-critical assessments.
func (f *FanOut) NotifyCrisis(ctx context.Context, userID, conversationID string, assessment models.CrisisAssessment, esc *models.Escalation) {
	now := time.Now()

	userAlert := models.CrisisAlert{
		CrisisLevel:     assessment.Score,
		Urgency:         assessment.Urgency,
		Keywords:        assessment.Triggers,
		Sentiment:       assessment.Sentiment,
		Timestamp:       now,
		Recommendations: assessment.Recommendations,
	}
	f.send(ctx, UserRoom(userID), constants.EventCrisisDetected, userAlert, "user")

	responderAlert := userAlert
	responderAlert.UserID = userID
	responderAlert.ConversationID = conversationID
	responderAlert.Recommendations = nil
	if esc != nil {
		responderAlert.EscalationID = esc.ID
	}
	f.send(ctx, constants.RespondersRoom, constants.EventTherapistAlert, responderAlert, "responders")
}

// NotifyClaimed tells the responder room an escalation has an owner so other
// claimants' alert views clear.
func (f *FanOut) NotifyClaimed(ctx context.Context, esc *models.Escalation) {
	f.send(ctx, constants.RespondersRoom, constants.EventCrisisClaimed, esc, "responders")
}

// NotifyEmergencyAssignment tells the assigned responder's own room it now
// owns a critical escalation.
func (f *FanOut) NotifyEmergencyAssignment(ctx context.Context, responderID string, esc *models.Escalation) {
	f.send(ctx, UserRoom(responderID), constants.EventEmergencyAssignment, esc, "responder")
}

// NotifyBotReply pushes the generated reply to the user's room.
func (f *FanOut) NotifyBotReply(ctx context.Context, userID string, msg *models.Message) {
	f.send(ctx, UserRoom(userID), constants.EventBotReply, msg, "user")
}

func (f *FanOut) send(ctx context.Context, room, event string, payload interface{}, roomKind string) {
	if err := f.emitter.Emit(ctx, room, event, payload); err != nil {
		f.metrics.NotificationFailuresTotal.WithLabelValues(roomKind).Inc()
		f.logger.WithError(err).WithFields(logrus.Fields{
			"room":  room,
			"event": event,
		}).Warn("Notification delivery failed")
		return
	}
	f.metrics.NotificationsSentTotal.WithLabelValues(roomKind).Inc()
}
