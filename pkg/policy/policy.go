package policy

// Urgency classifies a crisis score into an operational tier.
type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyModerate Urgency = "moderate"
	UrgencyHigh     Urgency = "high"
	UrgencyCritical Urgency = "critical"
)

// Band maps an urgency tier onto its score range and escalation behavior.
// This table is the single source of truth for every threshold in the
// pipeline; call sites must never compare against raw score literals.
type Band struct {
	Urgency    Urgency
	MinScore   int
	MaxScore   int
	AutoAssign bool
}

// Bands is ordered from lowest to highest urgency. Scores run 1-10.
var Bands = []Band{
	{Urgency: UrgencyLow, MinScore: 1, MaxScore: 3, AutoAssign: false},
	{Urgency: UrgencyModerate, MinScore: 4, MaxScore: 5, AutoAssign: false},
	{Urgency: UrgencyHigh, MinScore: 6, MaxScore: 7, AutoAssign: false},
	{Urgency: UrgencyCritical, MinScore: 8, MaxScore: 10, AutoAssign: true},
}

// EscalationThreshold is the lowest score that forces immediate escalation
// on its own. It equals the critical band floor.
var EscalationThreshold = bandFor(UrgencyCritical).MinScore

// Trigger categories attached to lexical matches.
const (
	TriggerCategoryEmergency = "emergency"
	TriggerCategoryElevated  = "elevated"
	TriggerCategoryDistress  = "distress"
)

// UrgencyForScore maps a 1-10 score onto its band. Out-of-range scores
// clamp to the nearest band rather than failing, since a conservative
// urgency is always preferable to none.
func UrgencyForScore(score int) Urgency {
	if score < Bands[0].MinScore {
		return Bands[0].Urgency
	}
	for _, b := range Bands {
		if score >= b.MinScore && score <= b.MaxScore {
			return b.Urgency
		}
	}
	return Bands[len(Bands)-1].Urgency
}

// RequiresImmediateEscalation reports whether a score and trigger set demand
// human intervention: score at or above the critical floor, or any trigger
// in the emergency category.
func RequiresImmediateEscalation(score int, triggerCategories []string) bool {
	if score >= EscalationThreshold {
		return true
	}
	for _, cat := range triggerCategories {
		if cat == TriggerCategoryEmergency {
			return true
		}
	}
	return false
}

// AutoAssign reports whether escalations at the given urgency get an
// automatic responder assignment attempt at creation time.
func AutoAssign(u Urgency) bool {
	return bandFor(u).AutoAssign
}

func bandFor(u Urgency) Band {
	for _, b := range Bands {
		if b.Urgency == u {
			return b
		}
	}
	return Bands[0]
}
