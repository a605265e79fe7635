package snapshot

import "github.com/sentrychain/pulse/internal/store"

// computeCoverage reports three independent percentages: the share of
// actors, edges, and transfers that touch at least one attributed
// (non-"unknown") actor (spec §4.5). An empty graph reports 0% on every
// axis rather than dividing by zero.
func computeCoverage(actors []store.Actor, edges []store.Edge, events []store.RawEvent, known map[string]store.Actor) store.Coverage {
	if len(actors) == 0 {
		return store.Coverage{}
	}

	attributedActors := 0
	for _, a := range actors {
		if _, ok := known[a.ActorID]; ok {
			attributedActors++
		}
	}
	actorsPct := percent(attributedActors, len(actors))

	attributedEdges := 0
	for _, e := range edges {
		if isKnown(known, e.FromActorID) || isKnown(known, e.ToActorID) {
			attributedEdges++
		}
	}
	edgesPct := percent(attributedEdges, len(edges))

	attributedTransfers := 0
	for _, ev := range events {
		if isKnown(known, ev.From) || isKnown(known, ev.To) {
			attributedTransfers++
		}
	}
	transfersPct := percent(attributedTransfers, len(events))

	return store.Coverage{
		ActorsPct:    actorsPct,
		EdgesPct:     edgesPct,
		TransfersPct: transfersPct,
	}
}

func isKnown(known map[string]store.Actor, actorID string) bool {
	_, ok := known[actorID]
	return ok
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}

// QualityBand classifies a coverage percentage into HIGH/MEDIUM/LOW
// bands (spec §4.5: "quality by coverage bands ≥70/≥50/else").
func QualityBand(actorsPct float64) string {
	switch {
	case actorsPct >= 70:
		return "HIGH"
	case actorsPct >= 50:
		return "MEDIUM"
	default:
		return "LOW"
	}
}
