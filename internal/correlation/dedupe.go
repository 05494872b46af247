package correlation

import (
	"cmp"
	"slices"
)

// Deduplicate unions the directly linked and fuzzy-matched lists of one
// session. The first occurrence of an event id wins, and direct entries come
// first, so a direct link always beats a fuzzy match. The result is sorted
// most recent first.
func Deduplicate(direct, fuzzy []ViolationEvent) []ViolationEvent {
	seen := make(map[EventID]struct{}, len(direct)+len(fuzzy))
	out := make([]ViolationEvent, 0, len(direct)+len(fuzzy))
	for _, list := range [...][]ViolationEvent{direct, fuzzy} {
		for _, e := range list {
			if _, ok := seen[e.ID]; ok {
				continue
			}
			seen[e.ID] = struct{}{}
			out = append(out, e)
		}
	}
	SortRecentFirst(out)
	return out
}

// SortRecentFirst orders events newest first. Events without a timestamp go
// last; ties break on event id so the order is stable across runs.
func SortRecentFirst(events []ViolationEvent) {
	slices.SortStableFunc(events, func(a, b ViolationEvent) int {
		switch {
		case a.HasTime() && !b.HasTime():
			return -1
		case !a.HasTime() && b.HasTime():
			return 1
		case a.HasTime() && b.HasTime():
			if c := b.OccurredAt.Compare(*a.OccurredAt); c != 0 {
				return c
			}
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

// resolveClaim picks the one session that keeps an event several sessions
// matched. A claimant whose own partition key equals the event's key under
// that claimant wins; otherwise, or among several exact matches, the first
// claimant wins. Claimants arrive in the stable session order.
func resolveClaim(e ViolationEvent, claimants []Session) (Session, bool) {
	if len(claimants) == 1 {
		return claimants[0], false
	}
	subject := e.EffectiveSubjectCode()
	for _, s := range claimants {
		eventSubject := subject
		if eventSubject == "" {
			eventSubject = s.SubjectCode
		}
		if CanMerge(SessionKey(s), s.SubjectCode, EventPartitionKey(e, s.ID), eventSubject) {
			return s, true
		}
	}
	return claimants[0], true
}
