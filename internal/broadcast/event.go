package broadcast

import (
	"encoding/json"

	"github.com/jpalmerr/votewatch/internal/store"
)

// Event types carried in [Event.Type].
const (
	EventInit   = "init"
	EventUpdate = "update"
)

// Event is the envelope pushed to observers.
//
// An "init" event carries the ordered history ([]store.Snapshot); an "update"
// event carries a single store.Snapshot.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// InitEvent builds the history replay sent to a newly registered observer.
func InitEvent(history []store.Snapshot) Event {
	if history == nil {
		history = []store.Snapshot{}
	}
	return Event{Type: EventInit, Payload: history}
}

// UpdateEvent builds the event fanned out for one new snapshot.
func UpdateEvent(s store.Snapshot) Event {
	return Event{Type: EventUpdate, Payload: s}
}

// Encode renders e as the JSON bytes written to observers.
func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}
