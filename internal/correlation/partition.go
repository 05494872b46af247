package correlation

import "time"

const dateLayout = "2006-01-02"

func dateOf(t time.Time) string {
	return t.UTC().Format(dateLayout)
}

// PartitionKey derives the key that keeps two attempts apart:
//
//	<session>_<date>  when the event has a timestamp and a session is known
//	date_<date>       when the event has a timestamp but no session
//	event_<id>        when the event has no timestamp
//
// Dates are the UTC calendar date of the event. An event without a timestamp
// gets a key no other event shares, so it can only ever sit in one group.
func PartitionKey(eventID EventID, sessionID SessionID, at *time.Time) string {
	if at == nil || at.IsZero() {
		return "event_" + string(eventID)
	}
	date := dateOf(*at)
	if sessionID != "" {
		return string(sessionID) + "_" + date
	}
	return "date_" + date
}

// EventPartitionKey is PartitionKey for an event attributed to sessionID.
func EventPartitionKey(e ViolationEvent, sessionID SessionID) string {
	return PartitionKey(e.ID, sessionID, e.OccurredAt)
}

// SessionKey is the partition key an event of s carries when it happened on
// the day s started. Empty for sessions that have not started.
func SessionKey(s Session) string {
	if !s.HasStart() {
		return ""
	}
	return PartitionKey("", s.ID, s.StartedAt)
}

// CanMerge reports whether two candidate groups may be merged: they need the
// same non-empty partition key and the same subject code.
func CanMerge(keyA, subjectA, keyB, subjectB string) bool {
	return keyA != "" && keyA == keyB && subjectA == subjectB
}
