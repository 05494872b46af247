package correlation

// DirectLink groups events under the session their reference names. Events
// whose reference is empty or unknown are left out; the fuzzy matcher handles
// them. Input order is preserved within each group.
func DirectLink(sessions []Session, events []ViolationEvent) map[SessionID][]ViolationEvent {
	known := make(map[SessionID]struct{}, len(sessions))
	for _, s := range sessions {
		known[s.ID] = struct{}{}
	}

	linked := make(map[SessionID][]ViolationEvent)
	for _, e := range events {
		if e.SessionID == "" {
			continue
		}
		if _, ok := known[e.SessionID]; !ok {
			continue
		}
		linked[e.SessionID] = append(linked[e.SessionID], e)
	}
	return linked
}
