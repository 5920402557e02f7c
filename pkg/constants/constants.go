package constants

// Redis key names
const (
	EscalationKeyPrefix   = "escalation:"
	PendingEscalationsKey = "pending_escalations"
	ConversationKeyPrefix = "conversation:"
	MessagesKeySuffix     = ":messages"
	RespondersOnDutyKey   = "responders:on_duty"
	SweeperLeaderKey      = "escalation:sweeper:leader"
)

// Pub/sub rooms. Rooms map one-to-one onto Redis channels.
const (
	RespondersRoom = "responders"
	UserRoomPrefix = "user_"
)

// Event names carried inside the pub/sub envelope. These are the wire
// contract with existing clients and must not be renamed.
const (
	EventCrisisDetected      = "crisis:detected"
	EventTherapistAlert      = "therapist:crisis_alert"
	EventCrisisClaimed       = "crisis:claimed"
	EventEmergencyAssignment = "crisis:emergency_assignment"
	EventBotReply            = "chat:message"
)

// SenderBot identifies bot-authored messages. Messages from this sender
// never enter the detection cascade.
const SenderBot = "bot"

// Per-conversation history depth forwarded to the remote classifier.
const RecentHistoryDepth = 5

// Crisis support resources surfaced to the user at elevated levels.
var (
	CrisisLifeline  = "Suicide & Crisis Lifeline: 988"
	CrisisTextLine  = "Crisis Text Line: Text HOME to 741741"
	CrisisResources = []string{CrisisLifeline, CrisisTextLine}
)
