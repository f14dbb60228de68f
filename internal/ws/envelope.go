package ws

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/TheKaito2/Hybrid-complete/internal/domain"
)

// MessageType discriminates every message on the push channel.
type MessageType string

const (
	// TypeFrame is client -> server: one camera frame for detection.
	TypeFrame MessageType = "frame"
	// TypeDetections is server -> client: current-frame detection results.
	TypeDetections MessageType = "detections"
	// TypeCartUpdated is server -> client: a single item was added.
	TypeCartUpdated MessageType = "cart_updated"
	// TypeBatchAdded is server -> client: multiple items added in one action.
	TypeBatchAdded MessageType = "batch_added"
	// TypeCartCleared is server -> client: cart reset to empty.
	TypeCartCleared MessageType = "cart_cleared"
	// TypeItemRemoved is server -> client: one line removed or decremented.
	TypeItemRemoved MessageType = "item_removed"
)

// Known reports whether t belongs to the closed type set.
func (t MessageType) Known() bool {
	switch t {
	case TypeFrame, TypeDetections, TypeCartUpdated, TypeBatchAdded, TypeCartCleared, TypeItemRemoved:
		return true
	}
	return false
}

var (
	// ErrUnknownType marks a message whose type is outside the closed set.
	// Receivers drop such messages instead of failing the channel.
	ErrUnknownType = errors.New("unknown envelope type")

	// ErrDecode marks a message that is not valid JSON at all.
	ErrDecode = errors.New("malformed envelope")
)

// Envelope is the wire shape of every push-channel message. Payload fields
// are flat alongside the tag; only the ones relevant to Type are set.
type Envelope struct {
	Type MessageType `json:"type"`

	// frame
	Frame string `json:"frame,omitempty"`

	// detections
	Detections []domain.Detection `json:"detections,omitempty"`

	// cart notifications
	ProductName string `json:"product_name,omitempty"`
	ProductID   string `json:"product_id,omitempty"`
	ItemsCount  int    `json:"items_count,omitempty"`
	CartSize    int    `json:"cart_size,omitempty"`
}

// Decode parses a push-channel message. An unparseable payload yields
// ErrDecode; a parseable one with an unrecognized type yields ErrUnknownType
// so callers can skip it for forward compatibility.
func Decode(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if !env.Type.Known() {
		return env, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
	return env, nil
}
