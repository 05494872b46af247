// Package correlation reconstructs which violation events belong to which exam
// session when the references between them are missing or wrong.
//
// A pass runs in four steps over an in-memory snapshot:
//
//  1. Direct linking groups events by their session reference.
//  2. Fuzzy matching recovers unreferenced events by participant identity,
//     subject and time window.
//  3. Partition keys keep retakes of the same subject apart.
//  4. Deduplication merges the two lists per session and settles events
//     that several sessions claimed.
//
// The package does no I/O and never mutates its inputs, so a pass is safe to
// run concurrently and yields identical output for identical input.
package correlation

import (
	"cmp"
	"slices"
	"strings"

	dErrors "proctor/pkg/domain-errors"
	pstrings "proctor/pkg/platform/strings"
)

// Engine runs correlation passes with fixed options.
type Engine struct {
	opts Options
}

// NewEngine builds an engine. Unset fields in opts fall back to defaults.
func NewEngine(opts Options) *Engine {
	return &Engine{opts: opts.withDefaults()}
}

// Options returns the options the engine runs with.
func (e *Engine) Options() Options {
	return e.opts
}

// preparedEvent is an input event after dedupe, fallback resolution and
// stale-reference clearing.
type preparedEvent struct {
	event     ViolationEvent
	ref       SessionID
	candidate Candidate
}

// Correlate runs one pass. It fails only when Sessions or Events is nil,
// which is a caller bug; every data-quality problem degrades to "no match"
// and is recorded in Result.Diagnostics.
func (e *Engine) Correlate(snap Snapshot) (*Result, error) {
	if snap.Sessions == nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "sessions snapshot is required")
	}
	if snap.Events == nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "violation events snapshot is required")
	}

	m := newMatcher(e.opts, snap.Subjects)
	participants := indexParticipants(snap.Participants)
	sessions := prepareSessions(snap.Sessions, participants)
	order := StableOrder(sessions)

	byID := make(map[SessionID]Session, len(sessions))
	for _, s := range sessions {
		byID[s.ID] = s
	}

	var diags []Diagnostic
	events, eventDiags := prepareEvents(snap.Events, byID, participants, m)
	diags = append(diags, eventDiags...)

	authoritative := make([]ViolationEvent, 0, len(events))
	pool := make([]preparedEvent, 0, len(events))
	for _, pe := range events {
		if pe.ref != "" {
			authoritative = append(authoritative, pe.event)
			continue
		}
		pool = append(pool, pe)
	}
	direct := DirectLink(sessions, authoritative)

	claims := make(map[EventID][]Session)
	for _, s := range order {
		t := m.target(s)
		for _, pe := range pool {
			if Match(t, pe.candidate) == MatchOK {
				claims[pe.event.ID] = append(claims[pe.event.ID], s)
			}
		}
	}

	fuzzy := make(map[SessionID][]ViolationEvent)
	for _, pe := range pool {
		claimants := claims[pe.event.ID]
		if len(claimants) == 0 {
			kind := DiagUnmatched
			if !pe.candidate.HasIdentity() {
				kind = DiagMissingReference
			}
			diags = append(diags, Diagnostic{Kind: kind, EventID: pe.event.ID})
			continue
		}
		winner, ambiguous := resolveClaim(pe.event, claimants)
		if ambiguous {
			diags = append(diags, Diagnostic{
				Kind:       DiagAmbiguousMatch,
				EventID:    pe.event.ID,
				SessionID:  winner.ID,
				Candidates: sessionIDs(claimants),
			})
		}
		fuzzy[winner.ID] = append(fuzzy[winner.ID], pe.event)
	}

	result := &Result{
		Sessions:    byID,
		BySession:   make(map[SessionID][]ViolationEvent, len(sessions)),
		Summaries:   make(map[SessionID]Summary, len(sessions)),
		Order:       sessionIDs(order),
		Diagnostics: diags,
		EventCount:  len(events),
	}
	for _, s := range order {
		list := Deduplicate(direct[s.ID], fuzzy[s.ID])
		result.BySession[s.ID] = list
		result.Summaries[s.ID] = Summarize(list)
	}
	return result, nil
}

// FuzzyMatch returns the events in pool that match target, in pool order. The
// pool should not contain events already linked to target directly. Only the
// engine's options apply: no participant backfill or per-subject durations.
func (e *Engine) FuzzyMatch(target Session, pool []ViolationEvent) []ViolationEvent {
	m := newMatcher(e.opts, nil)
	t := m.target(target)
	var matched []ViolationEvent
	for _, ev := range pool {
		if Match(t, m.candidate(ev, ev.SessionID)) == MatchOK {
			matched = append(matched, ev)
		}
	}
	return matched
}

// StableOrder sorts sessions most recently started first. Sessions without a
// start time go last; ties break on id. The order decides which session wins
// an ambiguous event, so it must not depend on input order.
func StableOrder(sessions []Session) []Session {
	out := slices.Clone(sessions)
	slices.SortStableFunc(out, func(a, b Session) int {
		switch {
		case a.HasStart() && !b.HasStart():
			return -1
		case !a.HasStart() && b.HasStart():
			return 1
		case a.HasStart() && b.HasStart():
			if c := b.StartedAt.Compare(*a.StartedAt); c != 0 {
				return c
			}
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

// Summarize computes the dashboard digest of one session's final list.
func Summarize(events []ViolationEvent) Summary {
	sum := Summary{
		ViolationCount: len(events),
		CountsByType:   make(map[string]int),
	}
	types := make([]string, 0, len(events))
	for _, e := range events {
		t := strings.TrimSpace(e.Type)
		if t != "" {
			sum.CountsByType[t]++
			types = append(types, t)
		}
		if e.Severity == SeverityHigh {
			sum.HighSeverityCount++
		}
		if !e.HasTime() {
			continue
		}
		if sum.FirstViolationAt == nil || e.OccurredAt.Before(*sum.FirstViolationAt) {
			at := *e.OccurredAt
			sum.FirstViolationAt = &at
		}
		if sum.LastViolationAt == nil || e.OccurredAt.After(*sum.LastViolationAt) {
			at := *e.OccurredAt
			sum.LastViolationAt = &at
		}
	}
	sum.DistinctEventTypes = pstrings.DedupeAndTrim(types)
	slices.Sort(sum.DistinctEventTypes)
	return sum
}

func indexParticipants(participants []Participant) map[string]Participant {
	idx := make(map[string]Participant, len(participants))
	for _, p := range participants {
		id := strings.TrimSpace(p.ID)
		if id == "" {
			continue
		}
		if _, dup := idx[id]; !dup {
			idx[id] = p
		}
	}
	return idx
}

// prepareSessions trims identifiers, backfills participant fields and drops
// sessions without an id. The returned slice is a copy.
func prepareSessions(in []Session, participants map[string]Participant) []Session {
	out := make([]Session, 0, len(in))
	seen := make(map[SessionID]struct{}, len(in))
	for _, s := range in {
		s.ID = SessionID(strings.TrimSpace(string(s.ID)))
		if s.ID == "" {
			continue
		}
		if _, dup := seen[s.ID]; dup {
			continue
		}
		seen[s.ID] = struct{}{}

		s.ParticipantID = strings.TrimSpace(s.ParticipantID)
		s.SubjectCode = strings.TrimSpace(s.SubjectCode)
		if p, ok := participants[s.ParticipantID]; ok {
			if strings.TrimSpace(s.ParticipantName) == "" {
				s.ParticipantName = p.DisplayName
			}
			if strings.TrimSpace(s.AlternateID) == "" {
				s.AlternateID = p.AlternateID
			}
		}
		out = append(out, s)
	}
	return out
}

// prepareEvents drops id-less and repeated rows and resolves each event's
// reference, clearing references to sessions outside the snapshot. The
// participant backfill only feeds the match candidate; returned events keep
// their recorded fields.
func prepareEvents(in []ViolationEvent, sessions map[SessionID]Session, participants map[string]Participant, m *matcher) ([]preparedEvent, []Diagnostic) {
	var diags []Diagnostic
	out := make([]preparedEvent, 0, len(in))
	seen := make(map[EventID]struct{}, len(in))
	for _, e := range in {
		e.ID = EventID(strings.TrimSpace(string(e.ID)))
		if e.ID == "" {
			diags = append(diags, Diagnostic{Kind: DiagMissingID})
			continue
		}
		if _, dup := seen[e.ID]; dup {
			diags = append(diags, Diagnostic{Kind: DiagDuplicateID, EventID: e.ID})
			continue
		}
		seen[e.ID] = struct{}{}

		enriched := e
		if strings.TrimSpace(enriched.Details.AlternateID) == "" {
			if p, ok := participants[e.EffectiveParticipantID()]; ok {
				enriched.Details.AlternateID = p.AlternateID
			}
		}

		ref := SessionID(strings.TrimSpace(string(e.SessionID)))
		if ref != "" {
			if _, ok := sessions[ref]; !ok {
				diags = append(diags, Diagnostic{Kind: DiagStaleReference, EventID: e.ID, SessionID: ref})
				ref = ""
			}
		}
		if ref != "" {
			e.SessionID = ref
		}
		out = append(out, preparedEvent{
			event:     e,
			ref:       ref,
			candidate: m.candidate(enriched, ref),
		})
	}
	return out, diags
}

func sessionIDs(sessions []Session) []SessionID {
	ids := make([]SessionID, len(sessions))
	for i, s := range sessions {
		ids[i] = s.ID
	}
	return ids
}
