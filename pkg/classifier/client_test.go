package classifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func TestClassify_Success(t *testing.T) {
	var gotBody map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/analyze/message", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		json.NewEncoder(w).Encode(map[string]interface{}{
			"crisis_level":      6,
			"urgency":           "high",
			"keywords_detected": []string{"isolation"},
			"sentiment_analysis": map[string]interface{}{
				"label": "negative",
				"score": 0.88,
			},
			"recommendations": []string{"Schedule a session"},
		})
	}))
	defer server.Close()

	c := NewClient(server.URL, time.Second, testLogger())
	result, err := c.Classify(context.Background(), Request{
		Text:           "I feel cut off from everyone",
		UserID:         "user_1",
		ConversationID: "conv_1",
		History:        []string{"earlier message"},
	})
	require.NoError(t, err)

	assert.Equal(t, 6, result.CrisisLevel)
	assert.Equal(t, []string{"isolation"}, result.Keywords)
	assert.Equal(t, "negative", result.Sentiment.Label)

	// Wire contract: text, user_id, and nested conversation context.
	assert.Equal(t, "I feel cut off from everyone", gotBody["text"])
	assert.Equal(t, "user_1", gotBody["user_id"])
	reqCtx, ok := gotBody["context"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "conv_1", reqCtx["conversation_id"])
}

func TestClassify_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer server.Close()

	c := NewClient(server.URL, 50*time.Millisecond, testLogger())

	start := time.Now()
	_, err := c.Classify(context.Background(), Request{Text: "hello"})
	elapsed := time.Since(start)

	assert.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, elapsed, 400*time.Millisecond, "call must return within the timeout budget")
}

func TestClassify_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	c := NewClient(server.URL, time.Second, testLogger())
	_, err := c.Classify(context.Background(), Request{Text: "hello"})
	assert.ErrorIs(t, err, ErrServiceUnavailable)
}

func TestClassify_Unreachable(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", time.Second, testLogger())
	_, err := c.Classify(context.Background(), Request{Text: "hello"})
	assert.ErrorIs(t, err, ErrServiceUnavailable)
}

func TestClassify_MalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer server.Close()

	c := NewClient(server.URL, time.Second, testLogger())
	_, err := c.Classify(context.Background(), Request{Text: "hello"})
	assert.ErrorIs(t, err, ErrServiceUnavailable)
}
