package store

import (
	"context"
	"sync"
	"time"

	"crisis-escalation-service/pkg/models"
)

// MemoryStore implements Store with the same compare-and-set semantics as
// RedisStore. It is the injectable fallback for standalone or degraded
// operation, selected by configuration rather than ambient global state.
type MemoryStore struct {
	mu          sync.Mutex
	escalations map[string]*models.Escalation
	audits      map[string][]models.AuditEntry
	messages    map[string][]models.Message
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		escalations: make(map[string]*models.Escalation),
		audits:      make(map[string][]models.AuditEntry),
		messages:    make(map[string][]models.Message),
	}
}

func (s *MemoryStore) CreateEscalation(ctx context.Context, esc *models.Escalation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *esc
	s.escalations[esc.ID] = &copied
	s.appendAuditLocked(esc.ID, "created", "", esc.CreatedAt)
	return nil
}

func (s *MemoryStore) FindEscalation(ctx context.Context, id string) (*models.Escalation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	esc, ok := s.escalations[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *esc
	return &copied, nil
}

func (s *MemoryStore) ClaimEscalation(ctx context.Context, id, responderID string) (*models.Escalation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	esc, ok := s.escalations[id]
	if !ok {
		return nil, ErrNotFound
	}
	if esc.Status != models.StatusPending {
		return nil, ErrAlreadyClaimed
	}

	now := time.Now()
	esc.Status = models.StatusClaimed
	esc.ClaimedBy = responderID
	esc.ClaimedAt = &now
	s.appendAuditLocked(id, "claimed", responderID, now)

	copied := *esc
	return &copied, nil
}

func (s *MemoryStore) ResolveEscalation(ctx context.Context, id, responderID string) (*models.Escalation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	esc, ok := s.escalations[id]
	if !ok {
		return nil, ErrNotFound
	}
	if esc.Status != models.StatusClaimed || esc.ClaimedBy != responderID {
		return nil, ErrInvalidTransition
	}

	now := time.Now()
	esc.Status = models.StatusResolved
	esc.ResolvedAt = &now
	s.appendAuditLocked(id, "resolved", responderID, now)

	copied := *esc
	return &copied, nil
}

func (s *MemoryStore) ExpirePending(ctx context.Context, cutoff time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expired []string
	now := time.Now()
	for id, esc := range s.escalations {
		if esc.Status == models.StatusPending && esc.CreatedAt.Before(cutoff) {
			esc.Status = models.StatusExpired
			s.appendAuditLocked(id, "expired", "", now)
			expired = append(expired, id)
		}
	}
	return expired, nil
}

func (s *MemoryStore) PendingCount(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	for _, esc := range s.escalations {
		if esc.Status == models.StatusPending {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) AuditTrail(ctx context.Context, id string) ([]models.AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]models.AuditEntry, len(s.audits[id]))
	copy(entries, s.audits[id])
	return entries, nil
}

func (s *MemoryStore) AppendMessage(ctx context.Context, msg *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *msg
	history := append(s.messages[msg.ConversationID], copied)
	if len(history) > messageHistoryCap {
		history = history[len(history)-messageHistoryCap:]
	}
	s.messages[msg.ConversationID] = history
	return nil
}

func (s *MemoryStore) RecentMessages(ctx context.Context, conversationID string, n int) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := s.messages[conversationID]
	if len(history) > n {
		history = history[len(history)-n:]
	}
	out := make([]models.Message, len(history))
	copy(out, history)
	return out, nil
}

func (s *MemoryStore) appendAuditLocked(id, event, actor string, at time.Time) {
	s.audits[id] = append(s.audits[id], models.AuditEntry{
		EscalationID: id,
		Event:        event,
		Actor:        actor,
		At:           at,
	})
}
