package bot

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crisis-escalation-service/pkg/models"
	"crisis-escalation-service/pkg/policy"
)

func TestReply_CriticalIsMinimalAndSafetyFocused(t *testing.T) {
	r := NewTemplateResponder()

	reply, err := r.Reply(context.Background(), "I want to end it all", models.CrisisAssessment{
		Score:   9,
		Urgency: policy.UrgencyCritical,
	}, "conv_1")
	require.NoError(t, err)

	assert.Contains(t, reply.Content, "988")
	assert.Contains(t, reply.Suggestions, "Call 988")
	assert.Contains(t, reply.Suggestions, "I will stay safe")
}

func TestReply_HighSurfacesBothHotlines(t *testing.T) {
	r := NewTemplateResponder()

	reply, err := r.Reply(context.Background(), "I started cutting again", models.CrisisAssessment{
		Score:   7,
		Urgency: policy.UrgencyHigh,
	}, "conv_1")
	require.NoError(t, err)

	assert.Contains(t, reply.Content, "988")
	assert.Contains(t, reply.Content, "741741")
}

func TestReply_LowAdaptsToSentiment(t *testing.T) {
	r := NewTemplateResponder()
	ctx := context.Background()

	positive, err := r.Reply(ctx, "today was a good day", models.CrisisAssessment{
		Score:     1,
		Urgency:   policy.UrgencyLow,
		Sentiment: models.Sentiment{Label: "positive", Score: 0.8},
	}, "conv_1")
	require.NoError(t, err)

	neutral, err := r.Reply(ctx, "nothing much happened", models.CrisisAssessment{
		Score:     1,
		Urgency:   policy.UrgencyLow,
		Sentiment: models.Sentiment{Label: "neutral", Score: 0.5},
	}, "conv_1")
	require.NoError(t, err)

	assert.NotEqual(t, positive.Content, neutral.Content)
	assert.NotEmpty(t, positive.Suggestions)
}

func TestReply_ModerateInvitesElaboration(t *testing.T) {
	r := NewTemplateResponder()

	reply, err := r.Reply(context.Background(), "I feel so hopeless", models.CrisisAssessment{
		Score:   4,
		Urgency: policy.UrgencyModerate,
	}, "conv_1")
	require.NoError(t, err)

	assert.NotEmpty(t, reply.Content)
	assert.Contains(t, reply.Suggestions, "Tell me more")
}
