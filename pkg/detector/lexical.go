package detector

import (
	"regexp"

	"crisis-escalation-service/pkg/policy"
)

// pattern is one high-specificity lexical rule. ID is the trigger identifier
// recorded on the assessment when the rule matches.
type pattern struct {
	ID string
	Re *regexp.Regexp
}

// tier groups patterns by severity. Tiers are checked highest-first and the
// first tier with any match wins outright.
type tier struct {
	Category string
	Score    int
	Patterns []pattern
}

// LexicalMatch is the result of running the tiers over one message.
type LexicalMatch struct {
	Matched  bool
	Category string
	Score    int
	Triggers []string
}

// LexicalMatcher scores text against fixed severity-tiered patterns. It is
// stateless and safe for concurrent use.
type LexicalMatcher struct {
	tiers []tier
}

func NewLexicalMatcher() *LexicalMatcher {
	return &LexicalMatcher{tiers: []tier{
		{
			// Direct self-harm intent. A hit here short-circuits the cascade.
			Category: policy.TriggerCategoryEmergency,
			Score:    9,
			Patterns: []pattern{
				{ID: "suicide_intent", Re: regexp.MustCompile(`(?i)suicid`)},
				{ID: "self_harm_intent", Re: regexp.MustCompile(`(?i)(kill|end|hurt).*(myself|my life)`)},
				{ID: "death_wish", Re: regexp.MustCompile(`(?i)(want|wish).*(die|dead)`)},
				{ID: "no_reason_to_live", Re: regexp.MustCompile(`(?i)(no reason|nothing).*(to )?live`)},
				{ID: "end_it_all", Re: regexp.MustCompile(`(?i)\bend(ing)? it all\b`)},
				{ID: "better_off_without", Re: regexp.MustCompile(`(?i)better off without me`)},
			},
		},
		{
			// Self-harm behaviors and substance misuse vocabulary.
			Category: policy.TriggerCategoryElevated,
			Score:    7,
			Patterns: []pattern{
				{ID: "self_harm", Re: regexp.MustCompile(`(?i)self[\s-]?harm`)},
				{ID: "cutting", Re: regexp.MustCompile(`(?i)\bcutting\b`)},
				{ID: "overdose", Re: regexp.MustCompile(`(?i)overdos`)},
				{ID: "hurt_self", Re: regexp.MustCompile(`(?i)hurt(ing)? myself`)},
				{ID: "substance_cope", Re: regexp.MustCompile(`(?i)(drink|drinking|using).*(to cope|to forget|numb)`)},
				{ID: "relapse", Re: regexp.MustCompile(`(?i)\brelaps`)},
			},
		},
		{
			// General distress vocabulary.
			Category: policy.TriggerCategoryDistress,
			Score:    4,
			Patterns: []pattern{
				{ID: "hopeless", Re: regexp.MustCompile(`(?i)\bhopeless`)},
				{ID: "worthless", Re: regexp.MustCompile(`(?i)\bworthless`)},
				{ID: "cant_go_on", Re: regexp.MustCompile(`(?i)can.?t (go on|take this|cope)`)},
				{ID: "give_up", Re: regexp.MustCompile(`(?i)giv(e|ing) up`)},
				{ID: "panic_attack", Re: regexp.MustCompile(`(?i)panic attack`)},
				{ID: "breaking_down", Re: regexp.MustCompile(`(?i)(falling apart|breaking down)`)},
			},
		},
	}}
}

// Match returns the highest tier with at least one pattern hit, with every
// matching trigger ID from that tier. Lower tiers are not consulted once a
// tier matches.
func (m *LexicalMatcher) Match(text string) LexicalMatch {
	for _, t := range m.tiers {
		var triggers []string
		for _, p := range t.Patterns {
			if p.Re.MatchString(text) {
				triggers = append(triggers, p.ID)
			}
		}
		if len(triggers) > 0 {
			return LexicalMatch{
				Matched:  true,
				Category: t.Category,
				Score:    t.Score,
				Triggers: triggers,
			}
		}
	}
	return LexicalMatch{}
}
