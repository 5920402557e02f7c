package detector

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"crisis-escalation-service/pkg/classifier"
	"crisis-escalation-service/pkg/metrics"
	"crisis-escalation-service/pkg/models"
	"crisis-escalation-service/pkg/policy"
)

// ErrEmptyText rejects blank input before the cascade runs. Empty text must
// never be silently scored as "no crisis".
var ErrEmptyText = errors.New("message text is empty")

// Classifier is the remote inference stage. Satisfied by *classifier.Client.
type Classifier interface {
	Classify(ctx context.Context, req classifier.Request) (*classifier.Result, error)
}

// EvalContext carries the conversation context forwarded to the remote
// classifier.
type EvalContext struct {
	UserID         string
	ConversationID string
	History        []string
}

// Evaluator runs the ordered detection cascade: lexical tiers, dictionary
// sentiment, then the remote classifier. It never returns an error for a
// classifier failure; the local estimate always stands in.
type Evaluator struct {
	lexical    *LexicalMatcher
	sentiment  *SentimentScorer
	classifier Classifier
	timeout    time.Duration
	logger     *logrus.Logger
	metrics    *metrics.Metrics
}

func NewEvaluator(cl Classifier, timeout time.Duration, logger *logrus.Logger, m *metrics.Metrics) *Evaluator {
	return &Evaluator{
		lexical:    NewLexicalMatcher(),
		sentiment:  NewSentimentScorer(),
		classifier: cl,
		timeout:    timeout,
		logger:     logger,
		metrics:    m,
	}
}

// Evaluate assesses one message. An emergency-tier lexical hit returns
// immediately without calling the remote classifier: latency matters more
// than refinement when risk is highest. Otherwise the local estimate is
// refined by the remote stage, with the higher of the two scores winning.
func (e *Evaluator) Evaluate(ctx context.Context, text string, ec EvalContext) (models.CrisisAssessment, error) {
	if strings.TrimSpace(text) == "" {
		return models.CrisisAssessment{}, ErrEmptyText
	}

	start := time.Now()
	defer func() {
		e.metrics.EvaluationDuration.Observe(time.Since(start).Seconds())
	}()

	lex := e.lexical.Match(text)

	if lex.Matched && lex.Category == policy.TriggerCategoryEmergency {
		a := e.fromLexical(lex, 0.95)
		a.Recommendations = []string{"Immediate professional intervention", "Safety plan"}
		e.logger.WithFields(logrus.Fields{
			"conversation_id": ec.ConversationID,
			"triggers":        lex.Triggers,
		}).Warn("Emergency lexical match, short-circuiting cascade")
		e.count(a)
		return a, nil
	}

	var local models.CrisisAssessment
	if lex.Matched {
		confidence := 0.8
		if lex.Category == policy.TriggerCategoryDistress {
			confidence = 0.6
		}
		local = e.fromLexical(lex, confidence)
	} else {
		sr := e.sentiment.Score(text)
		local = models.CrisisAssessment{
			Score:     sr.Score,
			Urgency:   policy.UrgencyForScore(sr.Score),
			Sentiment: sr.Sentiment,
			Source:    models.SourceLocalSentiment,
		}
	}
	local.RequiresImmediateEscalation = policy.RequiresImmediateEscalation(local.Score, local.TriggerCategories)

	cctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	callStart := time.Now()
	result, err := e.classifier.Classify(cctx, classifier.Request{
		Text:           text,
		UserID:         ec.UserID,
		ConversationID: ec.ConversationID,
		History:        ec.History,
	})
	e.metrics.ClassifierCallDuration.Observe(time.Since(callStart).Seconds())
	if err != nil {
		reason := "unavailable"
		if errors.Is(err, classifier.ErrTimeout) {
			reason = "timeout"
		}
		e.metrics.ClassifierFailuresTotal.WithLabelValues(reason).Inc()
		e.logger.WithError(err).WithField("conversation_id", ec.ConversationID).Warn("Remote classifier degraded, using local estimate")
		e.count(local)
		return local, nil
	}

	merged := e.merge(local, result)
	e.count(merged)
	return merged, nil
}

func (e *Evaluator) fromLexical(lex LexicalMatch, confidence float64) models.CrisisAssessment {
	return models.CrisisAssessment{
		Score:             lex.Score,
		Urgency:           policy.UrgencyForScore(lex.Score),
		Triggers:          lex.Triggers,
		TriggerCategories: []string{lex.Category},
		Sentiment:         models.Sentiment{Label: "negative", Score: confidence},
		Source:            models.SourceLexical,
		RequiresImmediateEscalation: policy.RequiresImmediateEscalation(
			lex.Score, []string{lex.Category}),
	}
}

// merge applies the tie-break rule: the higher numeric score wins, never the
// average. A remote success can only raise the local estimate; the lexical
// floor is never lowered by a remote downgrade.
func (e *Evaluator) merge(local models.CrisisAssessment, remote *classifier.Result) models.CrisisAssessment {
	if remote.CrisisLevel <= local.Score {
		if len(local.Recommendations) == 0 {
			local.Recommendations = remote.Recommendations
		}
		return local
	}

	merged := models.CrisisAssessment{
		Score:             remote.CrisisLevel,
		Urgency:           policy.UrgencyForScore(remote.CrisisLevel),
		Triggers:          unionKeywords(local.Triggers, remote.Keywords),
		TriggerCategories: local.TriggerCategories,
		Sentiment:         remote.Sentiment,
		Source:            models.SourceRemote,
		Recommendations:   remote.Recommendations,
	}
	merged.RequiresImmediateEscalation = policy.RequiresImmediateEscalation(merged.Score, merged.TriggerCategories)
	return merged
}

func (e *Evaluator) count(a models.CrisisAssessment) {
	e.metrics.EvaluationsTotal.WithLabelValues(string(a.Urgency), string(a.Source)).Inc()
}

func unionKeywords(local, remote []string) []string {
	seen := make(map[string]bool, len(local)+len(remote))
	var out []string
	for _, k := range append(append([]string{}, local...), remote...) {
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}
