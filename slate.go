package votewatch

import (
	"errors"
	"fmt"
	"strings"
)

// Slate is the fixed, ordered list of candidates tracked by a [Watcher].
//
// The slate fixes the column order of the durable vote log and is the
// authoritative key space for persisted counts. It never changes for the
// lifetime of a Watcher.
type Slate []string

// DefaultSlate is the slate used when [WithSlate] is not given.
var DefaultSlate = Slate{
	"Serena Villata",
	"François Hug",
	"Cornelia Meinert",
	"Pr Gauci",
	"Jean-Baptiste Caillau",
	"Lise Arena",
	"Cédric Richard",
	"Agnès Festré",
}

// NewSlate validates names and returns them as a [Slate].
//
// Names are trimmed. Returns an error if the slate is empty, a name is blank
// or spans several lines, or a name appears twice.
func NewSlate(names ...string) (Slate, error) {
	if len(names) == 0 {
		return nil, errors.New("slate must contain at least one candidate")
	}

	slate := make(Slate, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for i, raw := range names {
		name := strings.TrimSpace(raw)
		if name == "" {
			return nil, fmt.Errorf("slate[%d]: candidate name is required", i)
		}
		if strings.ContainsAny(name, "\r\n") {
			return nil, fmt.Errorf("slate[%d]: candidate name %q must be a single line", i, name)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("slate[%d]: duplicate candidate %q", i, name)
		}
		seen[name] = struct{}{}
		slate = append(slate, name)
	}
	return slate, nil
}

// Contains reports whether name is on the slate.
func (s Slate) Contains(name string) bool {
	for _, n := range s {
		if n == name {
			return true
		}
	}
	return false
}

// Names returns a copy of the candidate names in slate order.
func (s Slate) Names() []string {
	return append([]string(nil), s...)
}
