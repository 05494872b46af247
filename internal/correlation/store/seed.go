package store

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"proctor/internal/correlation"
)

// Fixture is the YAML layout of a development seed file:
//
//	participants: [{id, display_name, alternate_id}]
//	subjects:     [{code, name, duration_minutes}]
//	sessions:     [{id, participant_id, subject_code, started_at, ...}]
//	violations:   [{id, session_id, type, occurred_at, details: {...}}]
//
// Timestamps are RFC 3339.
type Fixture struct {
	Participants []correlation.Participant    `yaml:"participants"`
	Subjects     []correlation.Subject        `yaml:"subjects"`
	Sessions     []correlation.Session        `yaml:"sessions"`
	Violations   []correlation.ViolationEvent `yaml:"violations"`
}

// DecodeFixture parses a seed document.
func DecodeFixture(r io.Reader) (*Fixture, error) {
	var f Fixture
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode fixture: %w", err)
	}
	for i := range f.Sessions {
		f.Sessions[i].Status = correlation.ParseSessionStatus(string(f.Sessions[i].Status))
	}
	return &f, nil
}

// LoadFixtureFile reads and parses the seed file at path.
func LoadFixtureFile(path string) (*Fixture, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open fixture: %w", err)
	}
	defer file.Close()
	return DecodeFixture(file)
}

// Seed loads f into s.
func Seed(s *InMemory, f *Fixture) {
	s.AddParticipants(f.Participants...)
	s.AddSubjects(f.Subjects...)
	s.AddSessions(f.Sessions...)
	s.AddViolations(f.Violations...)
}
