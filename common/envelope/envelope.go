// Package envelope defines the canonical message format exchanged between
// agents on the HASS message bus. Every message, regardless of transport
// subject, is wrapped in an Envelope.
package envelope

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Type classifies the payload carried by an envelope.
type Type string

const (
	TypeMarketData Type = "MARKET_DATA"
	TypeSignal     Type = "SIGNAL"
	TypeOrder      Type = "ORDER"
	TypeRisk       Type = "RISK"
	TypeExecution  Type = "EXECUTION"
	TypeSystem     Type = "SYSTEM"
	TypeControl    Type = "CONTROL"
)

// Priority is the delivery priority tier of a message.
// P0 is reserved for critical control traffic (halt, risk breaches);
// P3 is best-effort background traffic.
type Priority string

const (
	PriorityP0 Priority = "P0" // critical, 10ms budget
	PriorityP1 Priority = "P1" // high, 50ms budget
	PriorityP2 Priority = "P2" // medium, 100ms budget
	PriorityP3 Priority = "P3" // low, 500ms budget
)

// Lane returns the numeric dispatch lane for the priority, with P0 = 0.
// Unknown priorities map to the lowest lane.
func (p Priority) Lane() int {
	switch p {
	case PriorityP0:
		return 0
	case PriorityP1:
		return 1
	case PriorityP2:
		return 2
	case PriorityP3:
		return 3
	default:
		return 3
	}
}

// Valid reports whether p is one of the four defined tiers.
func (p Priority) Valid() bool {
	switch p {
	case PriorityP0, PriorityP1, PriorityP2, PriorityP3:
		return true
	}
	return false
}

// Envelope is the standard message format for inter-agent communication.
type Envelope struct {
	ID            string            `json:"id"`
	Type          Type              `json:"type"`
	Priority      Priority          `json:"priority"`
	Source        string            `json:"source"`
	Destination   string            `json:"destination"`
	Timestamp     time.Time         `json:"timestamp"`
	Payload       json.RawMessage   `json:"payload"`
	CorrelationID string            `json:"correlation_id,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// New creates an envelope with a fresh ID and current UTC timestamp.
// The payload is marshalled to JSON; an error is returned if it cannot be.
func New(typ Type, priority Priority, source, destination string, payload interface{}) (*Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	return &Envelope{
		ID:          uuid.New().String(),
		Type:        typ,
		Priority:    priority,
		Source:      source,
		Destination: destination,
		Timestamp:   time.Now().UTC(),
		Payload:     data,
	}, nil
}

// Validate checks the envelope for required fields and known values.
func (e *Envelope) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("envelope missing id")
	}
	if e.Type == "" {
		return fmt.Errorf("envelope missing type")
	}
	if !e.Priority.Valid() {
		return fmt.Errorf("invalid priority %q", e.Priority)
	}
	if e.Source == "" {
		return fmt.Errorf("envelope missing source")
	}
	if e.Timestamp.IsZero() {
		return fmt.Errorf("envelope missing timestamp")
	}
	return nil
}

// DecodePayload unmarshals the payload into v.
func (e *Envelope) DecodePayload(v interface{}) error {
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.Type, err)
	}
	return nil
}

// Encode marshals the envelope for transport.
func (e *Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// Decode parses an envelope from transport bytes and validates it.
func Decode(data []byte) (*Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return &e, nil
}

// WithMeta returns the envelope with a metadata key set, allocating the map
// on first use.
func (e *Envelope) WithMeta(key, value string) *Envelope {
	if e.Metadata == nil {
		e.Metadata = make(map[string]string)
	}
	e.Metadata[key] = value
	return e
}
