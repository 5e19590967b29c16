package triage

import "time"

const deadlineWindow = 48 * time.Hour

var gateWeights = map[Gate]int{
	GateDecision:     5,
	GateTime:         4,
	GateRelationship: 3,
	GateImpact:       4,
	GateWatch:        2,
}

func evaluateTimeGate(deadlineAt *time.Time, now time.Time) GateEvaluation {
	if deadlineAt == nil {
		return GateEvaluation{Gate: GateTime, Reason: "No explicit deadline."}
	}

	matched := deadlineAt.Sub(now) <= deadlineWindow
	if !matched {
		return GateEvaluation{Gate: GateTime, Reason: "Deadline exists but is not urgent."}
	}
	return GateEvaluation{
		Gate:    GateTime,
		Matched: true,
		Reason:  "Deadline is within 48 hours.",
		Score:   gateWeights[GateTime],
	}
}

// EvaluateGates runs all five approval gates against a signal. The result is
// always five evaluations in fixed order: decision, time, relationship,
// impact, watch.
func EvaluateGates(signal IntakeSignal, now time.Time) []GateEvaluation {
	decision := GateEvaluation{Gate: GateDecision, Reason: "No owner decision required."}
	if signal.RequiresDecision {
		decision = GateEvaluation{
			Gate:    GateDecision,
			Matched: true,
			Reason:  "Only owner can approve this action.",
			Score:   gateWeights[GateDecision],
		}
	}

	relationship := GateEvaluation{Gate: GateRelationship, Reason: "Relationship sensitivity below threshold."}
	if signal.RelationshipScore >= 0.75 {
		relationship = GateEvaluation{
			Gate:    GateRelationship,
			Matched: true,
			Reason:  "High relationship sensitivity detected.",
			Score:   gateWeights[GateRelationship],
		}
	}

	impact := GateEvaluation{Gate: GateImpact, Reason: "Low impact signal."}
	if signal.ImpactScore >= 0.70 {
		impact = GateEvaluation{
			Gate:    GateImpact,
			Matched: true,
			Reason:  "Material customer or revenue impact.",
			Score:   gateWeights[GateImpact],
		}
	}

	watch := GateEvaluation{Gate: GateWatch, Reason: "No watch rule matched."}
	if signal.WatchMatched {
		watch = GateEvaluation{
			Gate:    GateWatch,
			Matched: true,
			Reason:  "Matched explicit watch rule.",
			Score:   gateWeights[GateWatch],
		}
	}

	return []GateEvaluation{
		decision,
		evaluateTimeGate(signal.DeadlineAt, now),
		relationship,
		impact,
		watch,
	}
}
