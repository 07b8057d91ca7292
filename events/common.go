package events

import (
	"encoding/json"
	"math"

	nanoid "github.com/matoous/go-nanoid/v2"
)

type BaseEvent struct {
	EventID string `json:"event_id,omitempty"`
	Type    string `json:"type"`
}

// NewEventID returns a fresh client event id.
func NewEventID() string {
	id, err := nanoid.New()
	if err != nil {
		panic(err)
	}
	return id
}

func NewBaseEvent(eventType string) BaseEvent {
	return BaseEvent{
		EventID: NewEventID(),
		Type:    eventType,
	}
}

// WithEventID returns a base event using id, or a generated one when id is empty.
func WithEventID(eventType, id string) BaseEvent {
	if id == "" {
		return NewBaseEvent(eventType)
	}
	return BaseEvent{EventID: id, Type: eventType}
}

func Parse[T any](data []byte) (*T, error) {
	var x T
	if err := json.Unmarshal(data, &x); err != nil {
		return nil, err
	}
	return &x, nil
}

// Inf is the unlimited value of an IntOrInf.
const Inf IntOrInf = math.MaxInt

// IntOrInf is a token cap that is either an integer or "inf" on the wire.
type IntOrInf int

func (m IntOrInf) IsInf() bool {
	return m == Inf
}

func (m IntOrInf) MarshalJSON() ([]byte, error) {
	if m.IsInf() {
		return []byte(`"inf"`), nil
	}
	return json.Marshal(int(m))
}

func (m *IntOrInf) UnmarshalJSON(data []byte) error {
	switch string(data) {
	case `"inf"`:
		*m = Inf
		return nil
	case "null", "":
		return nil
	}
	return json.Unmarshal(data, (*int)(m))
}

type typeStruct struct {
	Type string `json:"type"`
}

func isNull(data []byte) bool {
	return string(data) == "null"
}
