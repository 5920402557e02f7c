package escalation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"crisis-escalation-service/pkg/bot"
	"crisis-escalation-service/pkg/constants"
	"crisis-escalation-service/pkg/detector"
	"crisis-escalation-service/pkg/metrics"
	"crisis-escalation-service/pkg/models"
	"crisis-escalation-service/pkg/notify"
	"crisis-escalation-service/pkg/policy"
	"crisis-escalation-service/pkg/responders"
	"crisis-escalation-service/pkg/store"
)

// ErrValidation rejects malformed input before any evaluation runs.
var ErrValidation = errors.New("invalid message")

// Evaluator is the detection cascade. Satisfied by *detector.Evaluator.
type Evaluator interface {
	Evaluate(ctx context.Context, text string, ec detector.EvalContext) (models.CrisisAssessment, error)
}

// InboundMessage is one user- or bot-authored chat message entering the
// pipeline.
type InboundMessage struct {
	ConversationID string
	SenderID       string
	Content        string
	Type           string
}

// HandleResult is the orchestration outcome: the persisted message with its
// assessment metadata, the escalation when one fired, and the bot reply.
type HandleResult struct {
	Message    *models.Message
	Assessment *models.CrisisAssessment
	Escalation *models.Escalation
	Reply      *models.Message
}

// Coordinator turns inbound messages into assessments, escalations, and
// fan-out. It is a generator of escalation events, not a gate: an escalating
// conversation keeps accepting new messages.
type Coordinator struct {
	store     store.Store
	evaluator Evaluator
	fanout    *notify.FanOut
	roster    responders.Roster
	responder bot.Responder
	logger    *logrus.Logger
	metrics   *metrics.Metrics
}

func NewCoordinator(st store.Store, ev Evaluator, fo *notify.FanOut, roster responders.Roster, responder bot.Responder, logger *logrus.Logger, m *metrics.Metrics) *Coordinator {
	return &Coordinator{
		store:     st,
		evaluator: ev,
		fanout:    fo,
		roster:    roster,
		responder: responder,
		logger:    logger,
		metrics:   m,
	}
}

// HandleMessage runs the full pipeline for one inbound message. Bot-authored
// messages are persisted untouched and never evaluated: self-generated
// content must not re-trigger escalation, regardless of what it says.
func (c *Coordinator) HandleMessage(ctx context.Context, in InboundMessage) (*HandleResult, error) {
	if in.ConversationID == "" {
		return nil, fmt.Errorf("%w: missing conversation id", ErrValidation)
	}
	if in.SenderID == "" {
		return nil, fmt.Errorf("%w: missing sender id", ErrValidation)
	}
	if strings.TrimSpace(in.Content) == "" {
		return nil, fmt.Errorf("%w: empty content", ErrValidation)
	}

	msg := &models.Message{
		ID:             "msg_" + uuid.New().String(),
		ConversationID: in.ConversationID,
		SenderID:       in.SenderID,
		Content:        in.Content,
		Type:           in.Type,
		Timestamp:      time.Now(),
	}
	if msg.Type == "" {
		msg.Type = "text"
	}

	if in.SenderID == constants.SenderBot {
		c.persistMessage(ctx, msg)
		return &HandleResult{Message: msg}, nil
	}

	history := c.recentHistory(ctx, in.ConversationID)

	assessment, err := c.evaluator.Evaluate(ctx, in.Content, detector.EvalContext{
		UserID:         in.SenderID,
		ConversationID: in.ConversationID,
		History:        history,
	})
	if err != nil {
		if errors.Is(err, detector.ErrEmptyText) {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		return nil, fmt.Errorf("evaluation failed: %w", err)
	}

	// The assessment rides on the persisted message whether or not
	// escalation fires, preserving the audit trail.
	msg.Assessment = &assessment
	c.persistMessage(ctx, msg)

	result := &HandleResult{Message: msg, Assessment: &assessment}

	if assessment.RequiresImmediateEscalation {
		esc := c.createEscalation(ctx, in, assessment)
		result.Escalation = esc
		c.fanout.NotifyCrisis(ctx, in.SenderID, in.ConversationID, assessment, esc)
		if policy.AutoAssign(assessment.Urgency) {
			c.autoAssign(ctx, esc)
		}
	} else if assessment.Urgency == policy.UrgencyHigh {
		// Sub-critical but elevated: responders see the alert, no record.
		c.fanout.NotifyCrisis(ctx, in.SenderID, in.ConversationID, assessment, nil)
	}

	result.Reply = c.generateReply(ctx, in, assessment)
	return result, nil
}

// Claim attempts the pending->claimed transition for a responder. The
// conflict outcome is typed, not an error: the caller's UI reacts to
// "already handled by someone else", not to a failure.
func (c *Coordinator) Claim(ctx context.Context, escalationID, responderID string) (models.ClaimOutcome, error) {
	if escalationID == "" || responderID == "" {
		return models.ClaimOutcome{}, fmt.Errorf("%w: missing escalation or responder id", ErrValidation)
	}

	esc, err := c.store.ClaimEscalation(ctx, escalationID, responderID)
	if err != nil {
		if errors.Is(err, store.ErrAlreadyClaimed) {
			c.metrics.ClaimAttemptsTotal.WithLabelValues("conflict").Inc()
			claimedBy := ""
			if current, findErr := c.store.FindEscalation(ctx, escalationID); findErr == nil {
				claimedBy = current.ClaimedBy
			}
			return models.ClaimOutcome{Accepted: false, ClaimedBy: claimedBy}, nil
		}
		c.metrics.ClaimAttemptsTotal.WithLabelValues("error").Inc()
		return models.ClaimOutcome{}, err
	}

	c.metrics.ClaimAttemptsTotal.WithLabelValues("accepted").Inc()
	if err := c.roster.Touch(ctx, responderID); err != nil {
		c.logger.WithError(err).WithField("responder_id", responderID).Warn("Failed to touch duty roster")
	}
	c.fanout.NotifyClaimed(ctx, esc)
	c.updatePendingGauge(ctx)

	c.logger.WithFields(logrus.Fields{
		"escalation_id": escalationID,
		"responder_id":  responderID,
	}).Info("Escalation claimed")

	return models.ClaimOutcome{Accepted: true, ClaimedBy: responderID}, nil
}

// Resolve transitions claimed->resolved for the claimant.
func (c *Coordinator) Resolve(ctx context.Context, escalationID, responderID string) (*models.Escalation, error) {
	esc, err := c.store.ResolveEscalation(ctx, escalationID, responderID)
	if err != nil {
		return nil, err
	}

	c.logger.WithFields(logrus.Fields{
		"escalation_id": escalationID,
		"responder_id":  responderID,
	}).Info("Escalation resolved")

	return esc, nil
}

func (c *Coordinator) createEscalation(ctx context.Context, in InboundMessage, assessment models.CrisisAssessment) *models.Escalation {
	trigger := "Automatic detection"
	if len(assessment.Triggers) > 0 {
		trigger = strings.Join(assessment.Triggers, ", ")
	}

	esc := &models.Escalation{
		ID:             "esc_" + uuid.New().String(),
		ConversationID: in.ConversationID,
		UserID:         in.SenderID,
		CrisisLevel:    assessment.Score,
		Trigger:        trigger,
		Status:         models.StatusPending,
		CreatedAt:      time.Now(),
	}

	c.logger.WithFields(logrus.Fields{
		"escalation_id":   esc.ID,
		"conversation_id": in.ConversationID,
		"crisis_level":    esc.CrisisLevel,
	}).Warn("Crisis escalation triggered")

	// One synchronous retry, then degrade to notify-without-persist: in this
	// domain availability of the alert outranks durability of the record.
	err := c.store.CreateEscalation(ctx, esc)
	if err != nil {
		c.logger.WithError(err).WithField("escalation_id", esc.ID).Error("Escalation persist failed, retrying once")
		err = c.store.CreateEscalation(ctx, esc)
	}
	if err != nil {
		c.logger.WithError(err).WithField("escalation_id", esc.ID).Error("Escalation persist failed permanently, notifying anyway")
	}

	c.metrics.EscalationsCreatedTotal.WithLabelValues(string(assessment.Urgency)).Inc()
	c.updatePendingGauge(ctx)
	return esc
}

// autoAssign attempts a best-effort automatic claim for the highest urgency
// tier. It goes through the same compare-and-set as manual claims, so a
// responder racing it can win and the assignment simply stands down.
func (c *Coordinator) autoAssign(ctx context.Context, esc *models.Escalation) {
	responderID, err := c.roster.PickLeastRecentlyAssigned(ctx)
	if err != nil {
		if errors.Is(err, responders.ErrNoneAvailable) {
			c.logger.WithField("escalation_id", esc.ID).Info("No responder available for automatic assignment, escalation stays pending")
		} else {
			c.logger.WithError(err).WithField("escalation_id", esc.ID).Error("Automatic assignment roster pick failed")
		}
		return
	}

	claimed, err := c.store.ClaimEscalation(ctx, esc.ID, responderID)
	if err != nil {
		if errors.Is(err, store.ErrAlreadyClaimed) {
			c.metrics.ClaimAttemptsTotal.WithLabelValues("auto_conflict").Inc()
			c.logger.WithField("escalation_id", esc.ID).Info("Manual claim won the race, automatic assignment stands down")
		} else {
			c.logger.WithError(err).WithField("escalation_id", esc.ID).Error("Automatic assignment claim failed")
		}
		return
	}

	c.metrics.ClaimAttemptsTotal.WithLabelValues("auto_accepted").Inc()
	c.fanout.NotifyEmergencyAssignment(ctx, responderID, claimed)
	c.fanout.NotifyClaimed(ctx, claimed)
	c.updatePendingGauge(ctx)

	c.logger.WithFields(logrus.Fields{
		"escalation_id": esc.ID,
		"responder_id":  responderID,
	}).Info("Emergency responder assigned automatically")
}

func (c *Coordinator) generateReply(ctx context.Context, in InboundMessage, assessment models.CrisisAssessment) *models.Message {
	reply, err := c.responder.Reply(ctx, in.Content, assessment, in.ConversationID)
	if err != nil {
		c.logger.WithError(err).WithField("conversation_id", in.ConversationID).Warn("Bot reply generation failed")
		return nil
	}

	replyMsg := &models.Message{
		ID:             "msg_" + uuid.New().String(),
		ConversationID: in.ConversationID,
		SenderID:       constants.SenderBot,
		Content:        reply.Content,
		Type:           "bot_response",
		Timestamp:      time.Now(),
	}
	c.persistMessage(ctx, replyMsg)
	c.fanout.NotifyBotReply(ctx, in.SenderID, replyMsg)
	return replyMsg
}

func (c *Coordinator) recentHistory(ctx context.Context, conversationID string) []string {
	msgs, err := c.store.RecentMessages(ctx, conversationID, constants.RecentHistoryDepth)
	if err != nil {
		c.logger.WithError(err).WithField("conversation_id", conversationID).Warn("Failed to load recent history")
		return nil
	}
	history := make([]string, 0, len(msgs))
	for _, m := range msgs {
		history = append(history, m.Content)
	}
	return history
}

func (c *Coordinator) persistMessage(ctx context.Context, msg *models.Message) {
	if err := c.store.AppendMessage(ctx, msg); err != nil {
		c.logger.WithError(err).WithFields(logrus.Fields{
			"conversation_id": msg.ConversationID,
			"message_id":      msg.ID,
		}).Error("Failed to persist message")
	}
}

func (c *Coordinator) updatePendingGauge(ctx context.Context) {
	if count, err := c.store.PendingCount(ctx); err == nil {
		c.metrics.PendingEscalationsCount.Set(float64(count))
	}
}
