package store

import (
	"context"
	"errors"
	"time"

	"crisis-escalation-service/pkg/models"
)

var (
	// ErrNotFound means the escalation does not exist in this store.
	ErrNotFound = errors.New("escalation not found")

	// ErrAlreadyClaimed is the expected outcome of losing a claim race.
	// Callers surface it as a typed rejection, not a server error.
	ErrAlreadyClaimed = errors.New("escalation already claimed")

	// ErrInvalidTransition rejects lifecycle moves outside
	// pending->claimed->resolved / pending->expired.
	ErrInvalidTransition = errors.New("invalid escalation status transition")
)

// Store is the persistence contract for the escalation pipeline. Claim and
// Resolve are atomic compare-and-set transitions: concurrent claims on the
// same escalation are the expected common case and exactly one may win.
//
// Implementations: RedisStore (durable) and MemoryStore (injectable
// fallback with identical semantics), selected by configuration.
type Store interface {
	CreateEscalation(ctx context.Context, esc *models.Escalation) error
	FindEscalation(ctx context.Context, id string) (*models.Escalation, error)

	// ClaimEscalation transitions pending->claimed for exactly one caller.
	// Losers receive ErrAlreadyClaimed with the winner readable via
	// FindEscalation.
	ClaimEscalation(ctx context.Context, id, responderID string) (*models.Escalation, error)

	// ResolveEscalation transitions claimed->resolved for the claimant.
	ResolveEscalation(ctx context.Context, id, responderID string) (*models.Escalation, error)

	// ExpirePending transitions every pending escalation created before the
	// cutoff to expired and returns their IDs.
	ExpirePending(ctx context.Context, cutoff time.Time) ([]string, error)

	PendingCount(ctx context.Context) (int64, error)
	AuditTrail(ctx context.Context, id string) ([]models.AuditEntry, error)

	AppendMessage(ctx context.Context, msg *models.Message) error
	RecentMessages(ctx context.Context, conversationID string, n int) ([]models.Message, error)
}
