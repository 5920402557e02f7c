package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"crisis-escalation-service/pkg/models"
)

// Typed outcomes for the caller. The evaluator treats both as a signal to
// fall back to its local estimate; neither is ever surfaced to the end user.
var (
	ErrTimeout            = errors.New("remote classifier timed out")
	ErrServiceUnavailable = errors.New("remote classifier unavailable")
)

// Request carries the message text and conversation context posted to the
// inference service.
type Request struct {
	Text           string
	UserID         string
	ConversationID string
	History        []string
}

// Result is the inference service's response. Field names are the ML
// service's wire contract.
type Result struct {
	CrisisLevel     int              `json:"crisis_level"`
	Urgency         string           `json:"urgency"`
	Keywords        []string         `json:"keywords_detected"`
	Sentiment       models.Sentiment `json:"sentiment_analysis"`
	Recommendations []string         `json:"recommendations"`
}

// Client calls the external ML inference endpoint with a hard per-call
// timeout. It never retries: control must return to the evaluator within the
// latency budget regardless of outcome, and any retry policy belongs to the
// caller.
type Client struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	logger     *logrus.Logger
}

func NewClient(baseURL string, timeout time.Duration, logger *logrus.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		timeout: timeout,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// Classify posts the message to POST {base}/analyze/message and decodes the
// result. Returns ErrTimeout when the deadline is exceeded and
// ErrServiceUnavailable for every other transport or protocol failure.
func (c *Client) Classify(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body := map[string]interface{}{
		"text":    req.Text,
		"user_id": req.UserID,
		"context": map[string]interface{}{
			"conversation_id": req.ConversationID,
			"history":         req.History,
		},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal classify request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/analyze/message", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build classify request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if isTimeout(ctx, err) {
			return nil, fmt.Errorf("classify %s: %w", c.baseURL, ErrTimeout)
		}
		return nil, fmt.Errorf("classify %s: %v: %w", c.baseURL, err, ErrServiceUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("classify %s: status %d: %w", c.baseURL, resp.StatusCode, ErrServiceUnavailable)
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("classify %s: decode: %v: %w", c.baseURL, err, ErrServiceUnavailable)
	}

	c.logger.WithFields(logrus.Fields{
		"conversation_id": req.ConversationID,
		"crisis_level":    result.CrisisLevel,
		"duration":        time.Since(start),
	}).Debug("Remote classification completed")

	return &result, nil
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
