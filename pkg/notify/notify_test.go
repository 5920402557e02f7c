package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crisis-escalation-service/pkg/constants"
	"crisis-escalation-service/pkg/metrics"
	"crisis-escalation-service/pkg/models"
	"crisis-escalation-service/pkg/policy"
)

// Shared across the package: prometheus collectors register globally.
var testMetrics = metrics.NewMetrics()

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

// failingRoomEmitter records every attempted delivery and fails those
// addressed to one room.
type failingRoomEmitter struct {
	LocalEmitter
	failRoom string
}

func (e *failingRoomEmitter) Emit(ctx context.Context, room, event string, payload interface{}) error {
	if err := e.LocalEmitter.Emit(ctx, room, event, payload); err != nil {
		return err
	}
	if room == e.failRoom {
		return errors.New("connection reset")
	}
	return nil
}

func testAssessment() models.CrisisAssessment {
	return models.CrisisAssessment{
		Score:                       9,
		Urgency:                     policy.UrgencyCritical,
		Triggers:                    []string{"end_it_all"},
		Sentiment:                   models.Sentiment{Label: "negative", Score: 0.95},
		Recommendations:             []string{"Immediate professional intervention"},
		RequiresImmediateEscalation: true,
	}
}

func roomsByEvent(events []LocalEvent) map[string]string {
	out := make(map[string]string, len(events))
	for _, ev := range events {
		out[ev.Event] = ev.Room
	}
	return out
}

func TestNotifyCrisis_UserFailureDoesNotSuppressBroadcast(t *testing.T) {
	emitter := &failingRoomEmitter{failRoom: UserRoom("user_1")}
	f := NewFanOut(emitter, testLogger(), testMetrics)

	f.NotifyCrisis(context.Background(), "user_1", "conv_1", testAssessment(), &models.Escalation{ID: "esc_1"})

	attempted := roomsByEvent(emitter.Events())
	assert.Equal(t, UserRoom("user_1"), attempted[constants.EventCrisisDetected])
	assert.Equal(t, constants.RespondersRoom, attempted[constants.EventTherapistAlert],
		"responder broadcast must still be attempted after a user delivery failure")
}

func TestNotifyCrisis_BroadcastFailureDoesNotSuppressUserDelivery(t *testing.T) {
	emitter := &failingRoomEmitter{failRoom: constants.RespondersRoom}
	f := NewFanOut(emitter, testLogger(), testMetrics)

	f.NotifyCrisis(context.Background(), "user_1", "conv_1", testAssessment(), &models.Escalation{ID: "esc_1"})

	attempted := roomsByEvent(emitter.Events())
	assert.Equal(t, UserRoom("user_1"), attempted[constants.EventCrisisDetected])
	assert.Equal(t, constants.RespondersRoom, attempted[constants.EventTherapistAlert])
}

func TestNotifyCrisis_PayloadShaping(t *testing.T) {
	emitter := NewLocalEmitter()
	f := NewFanOut(emitter, testLogger(), testMetrics)

	f.NotifyCrisis(context.Background(), "user_1", "conv_1", testAssessment(), &models.Escalation{ID: "esc_1"})

	events := emitter.Events()
	require.Len(t, events, 2)

	userAlert, ok := events[0].Payload.(models.CrisisAlert)
	require.True(t, ok)
	assert.Empty(t, userAlert.UserID, "user payload carries no identifying context")
	assert.NotEmpty(t, userAlert.Recommendations)

	responderAlert, ok := events[1].Payload.(models.CrisisAlert)
	require.True(t, ok)
	assert.Equal(t, "user_1", responderAlert.UserID)
	assert.Equal(t, "conv_1", responderAlert.ConversationID)
	assert.Equal(t, "esc_1", responderAlert.EscalationID)
	assert.Empty(t, responderAlert.Recommendations, "clinical recommendations stay off the broadcast")
}

func TestNotifyCrisis_NilEscalationOmitsID(t *testing.T) {
	emitter := NewLocalEmitter()
	f := NewFanOut(emitter, testLogger(), testMetrics)

	f.NotifyCrisis(context.Background(), "user_1", "conv_1", testAssessment(), nil)

	events := emitter.Events()
	require.Len(t, events, 2)
	responderAlert, ok := events[1].Payload.(models.CrisisAlert)
	require.True(t, ok)
	assert.Empty(t, responderAlert.EscalationID)
}
