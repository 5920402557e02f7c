package detector

import (
	"strings"

	"crisis-escalation-service/pkg/models"
)

// Fixed polarity dictionaries. Deliberately small: this stage only nudges
// the score when the lexical tiers found nothing, and the remote classifier
// remains the authority on nuance when it is reachable.
var negativeWords = map[string]bool{
	"sad": true, "depressed": true, "anxious": true, "scared": true,
	"hurt": true, "pain": true, "bad": true, "terrible": true,
	"awful": true, "cry": true, "crying": true, "lonely": true,
	"tired": true, "hate": true, "fear": true,
}

var positiveWords = map[string]bool{
	"happy": true, "good": true, "great": true, "better": true,
	"love": true, "excited": true, "wonderful": true, "thanks": true,
	"thank": true, "hope": true, "joy": true,
}

// SentimentResult is the dictionary scorer's low-confidence estimate.
type SentimentResult struct {
	Score     int
	Tally     int
	Sentiment models.Sentiment
}

// SentimentScorer derives a signed word tally from fixed positive/negative
// lists. Stateless and safe for concurrent use.
type SentimentScorer struct{}

func NewSentimentScorer() *SentimentScorer {
	return &SentimentScorer{}
}

// Score tokenizes the text and counts dictionary hits. A strongly negative
// tally elevates the crisis score slightly; everything else stays at the
// floor.
func (s *SentimentScorer) Score(text string) SentimentResult {
	tally := 0
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,!?;:'\"()")
		if negativeWords[w] {
			tally--
		}
		if positiveWords[w] {
			tally++
		}
	}

	label := "neutral"
	if tally > 0 {
		label = "positive"
	} else if tally < 0 {
		label = "negative"
	}

	score := 1
	if tally < -2 {
		score = 4
	}

	confidence := 0.5 + 0.1*float64(abs(tally))
	if confidence > 0.95 {
		confidence = 0.95
	}

	return SentimentResult{
		Score: score,
		Tally: tally,
		Sentiment: models.Sentiment{
			Label: label,
			Score: confidence,
		},
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
