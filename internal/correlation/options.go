package correlation

import (
	"time"

	pstrings "proctor/pkg/platform/strings"
)

const (
	// DefaultWindowBuffer widens a session's time window on both ends.
	DefaultWindowBuffer = 15 * time.Minute
	// DefaultExamDuration bounds an unsubmitted session whose subject has no
	// configured duration.
	DefaultExamDuration = 2 * time.Hour
)

// DefaultPlaceholderNames are display names the client writes when it does
// not know who the participant is.
var DefaultPlaceholderNames = []string{
	"unknown",
	"unknown student",
	"unknown participant",
	"n/a",
}

// Options tunes the fuzzy matcher.
type Options struct {
	WindowBuffer     time.Duration
	DefaultDuration  time.Duration
	PlaceholderNames []string
}

// DefaultOptions returns the production matching parameters.
func DefaultOptions() Options {
	return Options{
		WindowBuffer:     DefaultWindowBuffer,
		DefaultDuration:  DefaultExamDuration,
		PlaceholderNames: DefaultPlaceholderNames,
	}
}

func (o Options) withDefaults() Options {
	if o.WindowBuffer < 0 {
		o.WindowBuffer = 0
	}
	if o.DefaultDuration <= 0 {
		o.DefaultDuration = DefaultExamDuration
	}
	if o.PlaceholderNames == nil {
		o.PlaceholderNames = DefaultPlaceholderNames
	}
	return o
}

func (o Options) placeholderSet() map[string]struct{} {
	set := make(map[string]struct{}, len(o.PlaceholderNames))
	for _, name := range o.PlaceholderNames {
		if n := pstrings.NormalizeName(name); n != "" {
			set[n] = struct{}{}
		}
	}
	return set
}
