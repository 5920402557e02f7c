package models

import (
	"time"

	"crisis-escalation-service/pkg/policy"
)

// AssessmentSource identifies which cascade stage produced the final score.
type AssessmentSource string

const (
	SourceLexical        AssessmentSource = "lexical"
	SourceLocalSentiment AssessmentSource = "local-sentiment"
	SourceRemote         AssessmentSource = "remote-classifier"
)

// Sentiment is a polarity estimate with a confidence in [0,1].
type Sentiment struct {
	Label string  `json:"label"` // positive, negative, neutral
	Score float64 `json:"score"`
}

// CrisisAssessment is the per-message output of the detection cascade. It is
// ephemeral: folded into message metadata and, when escalation fires, into an
// Escalation snapshot. Field names are the wire contract with existing
// clients.
type CrisisAssessment struct {
	Score                       int              `json:"crisis_level"`
	Urgency                     policy.Urgency   `json:"urgency"`
	Triggers                    []string         `json:"keywords_detected"`
	TriggerCategories           []string         `json:"-"`
	Sentiment                   Sentiment        `json:"sentiment_analysis"`
	Source                      AssessmentSource `json:"source"`
	RequiresImmediateEscalation bool             `json:"requires_immediate_escalation"`
	Recommendations             []string         `json:"recommendations,omitempty"`
}

// EscalationStatus is the lifecycle state of an Escalation.
type EscalationStatus string

const (
	StatusPending  EscalationStatus = "pending"
	StatusClaimed  EscalationStatus = "claimed"
	StatusResolved EscalationStatus = "resolved"
	StatusExpired  EscalationStatus = "expired"
)

// Escalation records a decision that human intervention is required.
// CrisisLevel is an immutable snapshot of the assessment score at creation.
// Status and ClaimedBy only ever move through the store's compare-and-set
// path; nothing mutates a resolved or expired record except audit appends.
type Escalation struct {
	ID             string           `json:"id"`
	ConversationID string           `json:"conversation_id"`
	UserID         string           `json:"user_id"`
	CrisisLevel    int              `json:"crisis_level"`
	Trigger        string           `json:"trigger"`
	Status         EscalationStatus `json:"status"`
	ClaimedBy      string           `json:"claimed_by,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	ClaimedAt      *time.Time       `json:"claimed_at,omitempty"`
	ResolvedAt     *time.Time       `json:"resolved_at,omitempty"`
}

// AuditEntry is one append-only lifecycle event for an escalation.
type AuditEntry struct {
	EscalationID string    `json:"escalation_id"`
	Event        string    `json:"event"` // created, claimed, resolved, expired
	Actor        string    `json:"actor,omitempty"`
	At           time.Time `json:"at"`
}

// Message is a persisted chat message with its assessment attached as
// metadata. Bot-authored messages carry no assessment.
type Message struct {
	ID             string            `json:"id"`
	ConversationID string            `json:"conversation_id"`
	SenderID       string            `json:"sender_id"`
	Content        string            `json:"content"`
	Type           string            `json:"type"` // text, bot_response
	Timestamp      time.Time         `json:"timestamp"`
	Assessment     *CrisisAssessment `json:"assessment,omitempty"`
}

// CrisisAlert is the payload pushed to the user's own room and, with
// identifying context added, broadcast to responders.
type CrisisAlert struct {
	CrisisLevel     int            `json:"crisisLevel"`
	Urgency         policy.Urgency `json:"urgency"`
	Keywords        []string       `json:"keywords"`
	Sentiment       Sentiment      `json:"sentiment"`
	Timestamp       time.Time      `json:"timestamp"`
	Recommendations []string       `json:"recommendations,omitempty"`
	UserID          string         `json:"userId,omitempty"`
	ConversationID  string         `json:"conversationId,omitempty"`
	EscalationID    string         `json:"escalationId,omitempty"`
}

// BotReply is the synchronous response generator output.
type BotReply struct {
	Content     string   `json:"content"`
	Suggestions []string `json:"suggestions"`
}

// ClaimOutcome is the typed result of a claim attempt. Conflict is an
// expected outcome, not an error condition.
type ClaimOutcome struct {
	Accepted  bool   `json:"accepted"`
	ClaimedBy string `json:"claimed_by,omitempty"`
}
