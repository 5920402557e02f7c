package bot

import (
	"context"
	"strings"

	"crisis-escalation-service/pkg/constants"
	"crisis-escalation-service/pkg/models"
	"crisis-escalation-service/pkg/policy"
)

// Responder generates the supportive reply sent back into the conversation.
// The production implementation is an external LLM service; this interface
// keeps the coordinator independent of it.
type Responder interface {
	Reply(ctx context.Context, message string, assessment models.CrisisAssessment, conversationID string) (models.BotReply, error)
}

// TemplateResponder is the built-in fallback generator. At critical levels
// it deliberately returns a minimal, safety-focused reply: the escalation UI
// is the primary channel there, not the chat bubble.
type TemplateResponder struct{}

func NewTemplateResponder() *TemplateResponder {
	return &TemplateResponder{}
}

func (r *TemplateResponder) Reply(ctx context.Context, message string, assessment models.CrisisAssessment, conversationID string) (models.BotReply, error) {
	switch assessment.Urgency {
	case policy.UrgencyCritical:
		return models.BotReply{
			Content: "I'm detecting that you're going through a very difficult moment. " +
				"I want to ensure you're safe. Please reach out to the " +
				constants.CrisisLifeline + ". Your life matters, and help is on the way.",
			Suggestions: []string{"Call 988", "Crisis Resources", "I will stay safe"},
		}, nil
	case policy.UrgencyHigh:
		return models.BotReply{
			Content: "It sounds like you're carrying a lot right now, and I'm glad you told me. " +
				"If things feel unsafe, the " + constants.CrisisLifeline + " and " +
				constants.CrisisTextLine + " are there any time. Would you like to talk about what's been hardest?",
			Suggestions: []string{"Call 988", "Crisis Resources", "Tell me more"},
		}, nil
	case policy.UrgencyModerate:
		return models.BotReply{
			Content: "I hear you. That sounds really hard. " +
				"Sometimes naming what we're feeling is a first step. What's weighing on you most right now?",
			Suggestions: []string{"Tell me more", "Breathing exercise", "I am listening"},
		}, nil
	default:
		content := "Thank you for sharing that with me. I'm here whenever you want to talk."
		if strings.EqualFold(assessment.Sentiment.Label, "positive") {
			content = "That's wonderful to hear. I'm glad things are feeling brighter."
		}
		return models.BotReply{
			Content:     content,
			Suggestions: []string{"Tell me more", "I am listening", "Thank you"},
		}, nil
	}
}
