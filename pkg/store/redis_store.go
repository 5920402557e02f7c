package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"crisis-escalation-service/pkg/constants"
	"crisis-escalation-service/pkg/metrics"
	"crisis-escalation-service/pkg/models"
)

const messageHistoryCap = 200

// claimScript is the single compare-and-set path shared by manual claims and
// automatic assignment. It inspects and transitions the status/claimed_by
// pair in one atomic step so two claimants can never both win.
const claimScript = `
local status = redis.call("HGET", KEYS[1], "status")
if not status then
	return {"not_found", ""}
end
if status ~= "pending" then
	local cb = redis.call("HGET", KEYS[1], "claimed_by")
	return {"conflict", cb or ""}
end
redis.call("HSET", KEYS[1], "status", "claimed", "claimed_by", ARGV[1], "claimed_at", ARGV[2])
redis.call("ZREM", KEYS[2], ARGV[3])
return {"ok", ARGV[1]}
`

const resolveScript = `
local status = redis.call("HGET", KEYS[1], "status")
if not status then
	return {"not_found", ""}
end
if status ~= "claimed" then
	return {"conflict", status}
end
local cb = redis.call("HGET", KEYS[1], "claimed_by")
if cb ~= ARGV[1] then
	return {"conflict", cb or ""}
end
redis.call("HSET", KEYS[1], "status", "resolved", "resolved_at", ARGV[2])
return {"ok", ARGV[1]}
`

const expireScript = `
local status = redis.call("HGET", KEYS[1], "status")
if status ~= "pending" then
	return 0
end
redis.call("HSET", KEYS[1], "status", "expired")
redis.call("ZREM", KEYS[2], ARGV[1])
return 1
`

// RedisStore persists escalations as hashes with a pending index sorted set
// scored by creation time, per-escalation audit streams, and capped
// per-conversation message lists.
type RedisStore struct {
	rdb     *redis.Client
	logger  *logrus.Logger
	metrics *metrics.Metrics
}

func NewRedisStore(rdb *redis.Client, logger *logrus.Logger, m *metrics.Metrics) *RedisStore {
	return &RedisStore{rdb: rdb, logger: logger, metrics: m}
}

func escalationKey(id string) string {
	return constants.EscalationKeyPrefix + id
}

func auditKey(id string) string {
	return constants.EscalationKeyPrefix + id + ":audit"
}

func messagesKey(conversationID string) string {
	return constants.ConversationKeyPrefix + conversationID + constants.MessagesKeySuffix
}

func (s *RedisStore) CreateEscalation(ctx context.Context, esc *models.Escalation) error {
	start := time.Now()
	defer func() {
		s.metrics.StoreOperationDuration.WithLabelValues("create_escalation").Observe(time.Since(start).Seconds())
	}()

	pipe := s.rdb.Pipeline()
	pipe.HSet(ctx, escalationKey(esc.ID), map[string]interface{}{
		"id":              esc.ID,
		"conversation_id": esc.ConversationID,
		"user_id":         esc.UserID,
		"crisis_level":    esc.CrisisLevel,
		"trigger":         esc.Trigger,
		"status":          string(esc.Status),
		"claimed_by":      "",
		"created_at":      esc.CreatedAt.UnixMilli(),
	})
	pipe.ZAdd(ctx, constants.PendingEscalationsKey, &redis.Z{
		Score:  float64(esc.CreatedAt.UnixMilli()),
		Member: esc.ID,
	})
	pipe.XAdd(ctx, &redis.XAddArgs{
		Stream: auditKey(esc.ID),
		Values: auditValues(esc.ID, "created", "", esc.CreatedAt),
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to create escalation: %w", err)
	}
	return nil
}

func (s *RedisStore) FindEscalation(ctx context.Context, id string) (*models.Escalation, error) {
	start := time.Now()
	defer func() {
		s.metrics.StoreOperationDuration.WithLabelValues("find_escalation").Observe(time.Since(start).Seconds())
	}()

	fields, err := s.rdb.HGetAll(ctx, escalationKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read escalation: %w", err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}
	return escalationFromFields(fields), nil
}

func (s *RedisStore) ClaimEscalation(ctx context.Context, id, responderID string) (*models.Escalation, error) {
	start := time.Now()
	defer func() {
		s.metrics.StoreOperationDuration.WithLabelValues("claim_escalation").Observe(time.Since(start).Seconds())
	}()

	now := time.Now()
	result, err := s.rdb.Eval(ctx, claimScript,
		[]string{escalationKey(id), constants.PendingEscalationsKey},
		responderID, now.UnixMilli(), id).Result()
	if err != nil {
		return nil, fmt.Errorf("claim script failed: %w", err)
	}

	code, _ := scriptReply(result)
	switch code {
	case "ok":
		s.appendAudit(ctx, id, "claimed", responderID, now)
		return s.FindEscalation(ctx, id)
	case "not_found":
		return nil, ErrNotFound
	default:
		return nil, ErrAlreadyClaimed
	}
}

func (s *RedisStore) ResolveEscalation(ctx context.Context, id, responderID string) (*models.Escalation, error) {
	start := time.Now()
	defer func() {
		s.metrics.StoreOperationDuration.WithLabelValues("resolve_escalation").Observe(time.Since(start).Seconds())
	}()

	now := time.Now()
	result, err := s.rdb.Eval(ctx, resolveScript,
		[]string{escalationKey(id)},
		responderID, now.UnixMilli()).Result()
	if err != nil {
		return nil, fmt.Errorf("resolve script failed: %w", err)
	}

	code, _ := scriptReply(result)
	switch code {
	case "ok":
		s.appendAudit(ctx, id, "resolved", responderID, now)
		return s.FindEscalation(ctx, id)
	case "not_found":
		return nil, ErrNotFound
	default:
		return nil, ErrInvalidTransition
	}
}

func (s *RedisStore) ExpirePending(ctx context.Context, cutoff time.Time) ([]string, error) {
	start := time.Now()
	defer func() {
		s.metrics.StoreOperationDuration.WithLabelValues("expire_pending").Observe(time.Since(start).Seconds())
	}()

	ids, err := s.rdb.ZRangeByScore(ctx, constants.PendingEscalationsKey, &redis.ZRangeBy{
		Min: "0",
		Max: fmt.Sprintf("%d", cutoff.UnixMilli()),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list stale pending escalations: %w", err)
	}

	var expired []string
	now := time.Now()
	for _, id := range ids {
		// Per-ID CAS: a claim landing between the range read and this call
		// simply makes the script a no-op.
		n, err := s.rdb.Eval(ctx, expireScript,
			[]string{escalationKey(id), constants.PendingEscalationsKey}, id).Int64()
		if err != nil {
			s.logger.WithError(err).WithField("escalation_id", id).Error("Failed to expire escalation")
			continue
		}
		if n == 1 {
			s.appendAudit(ctx, id, "expired", "", now)
			expired = append(expired, id)
		}
	}
	return expired, nil
}

func (s *RedisStore) PendingCount(ctx context.Context) (int64, error) {
	count, err := s.rdb.ZCard(ctx, constants.PendingEscalationsKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count pending escalations: %w", err)
	}
	return count, nil
}

func (s *RedisStore) AuditTrail(ctx context.Context, id string) ([]models.AuditEntry, error) {
	msgs, err := s.rdb.XRange(ctx, auditKey(id), "-", "+").Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read audit trail: %w", err)
	}
	entries := make([]models.AuditEntry, 0, len(msgs))
	for _, m := range msgs {
		entry := models.AuditEntry{EscalationID: id}
		if v, ok := m.Values["event"].(string); ok {
			entry.Event = v
		}
		if v, ok := m.Values["actor"].(string); ok {
			entry.Actor = v
		}
		if v, ok := m.Values["at"].(string); ok {
			if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
				entry.At = time.UnixMilli(ms)
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (s *RedisStore) AppendMessage(ctx context.Context, msg *models.Message) error {
	start := time.Now()
	defer func() {
		s.metrics.StoreOperationDuration.WithLabelValues("append_message").Observe(time.Since(start).Seconds())
	}()

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	key := messagesKey(msg.ConversationID)
	pipe := s.rdb.Pipeline()
	pipe.RPush(ctx, key, data)
	pipe.LTrim(ctx, key, int64(-messageHistoryCap), -1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}
	return nil
}

func (s *RedisStore) RecentMessages(ctx context.Context, conversationID string, n int) ([]models.Message, error) {
	raw, err := s.rdb.LRange(ctx, messagesKey(conversationID), int64(-n), -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read recent messages: %w", err)
	}
	messages := make([]models.Message, 0, len(raw))
	for _, item := range raw {
		var msg models.Message
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			s.logger.WithError(err).WithField("conversation_id", conversationID).Warn("Skipping undecodable message")
			continue
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

func (s *RedisStore) appendAudit(ctx context.Context, id, event, actor string, at time.Time) {
	if err := s.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: auditKey(id),
		Values: auditValues(id, event, actor, at),
	}).Err(); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"escalation_id": id,
			"event":         event,
		}).Error("Failed to append audit entry")
	}
}

func auditValues(id, event, actor string, at time.Time) map[string]interface{} {
	return map[string]interface{}{
		"escalation_id": id,
		"event":         event,
		"actor":         actor,
		"at":            at.UnixMilli(),
	}
}

func scriptReply(result interface{}) (string, string) {
	arr, ok := result.([]interface{})
	if !ok || len(arr) == 0 {
		return "", ""
	}
	code, _ := arr[0].(string)
	detail := ""
	if len(arr) > 1 {
		detail, _ = arr[1].(string)
	}
	return code, detail
}

func escalationFromFields(fields map[string]string) *models.Escalation {
	esc := &models.Escalation{
		ID:             fields["id"],
		ConversationID: fields["conversation_id"],
		UserID:         fields["user_id"],
		Trigger:        fields["trigger"],
		Status:         models.EscalationStatus(fields["status"]),
		ClaimedBy:      fields["claimed_by"],
	}
	if v, err := strconv.Atoi(fields["crisis_level"]); err == nil {
		esc.CrisisLevel = v
	}
	if ms, err := strconv.ParseInt(fields["created_at"], 10, 64); err == nil {
		esc.CreatedAt = time.UnixMilli(ms)
	}
	if fields["claimed_at"] != "" {
		if ms, err := strconv.ParseInt(fields["claimed_at"], 10, 64); err == nil {
			t := time.UnixMilli(ms)
			esc.ClaimedAt = &t
		}
	}
	if fields["resolved_at"] != "" {
		if ms, err := strconv.ParseInt(fields["resolved_at"], 10, 64); err == nil {
			t := time.UnixMilli(ms)
			esc.ResolvedAt = &t
		}
	}
	return esc
}
