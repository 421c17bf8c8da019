package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventKind names what changed in an owner's ledger.
type EventKind string

const (
	TransactionCreated  EventKind = "transaction.created"
	TransactionUpdated  EventKind = "transaction.updated"
	TransactionDeleted  EventKind = "transaction.deleted"
	TransactionImported EventKind = "transaction.imported"
	RegistryChanged     EventKind = "registry.changed"
)

func (k EventKind) Valid() bool {
	switch k {
	case TransactionCreated, TransactionUpdated, TransactionDeleted, TransactionImported, RegistryChanged:
		return true
	}
	return false
}

// LedgerEvent announces a committed ledger mutation. It carries ids only;
// consumers read the state they need from storage.
type LedgerEvent struct {
	Kind      EventKind `json:"kind"`
	OwnerID   string    `json:"ownerId"`
	EntityID  string    `json:"entityId,omitempty"`
	Count     int       `json:"count,omitempty"`
	Version   int64     `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

func NewLedgerEvent(kind EventKind, ownerID, entityID string, version int64) *LedgerEvent {
	return &LedgerEvent{
		Kind:      kind,
		OwnerID:   ownerID,
		EntityID:  entityID,
		Version:   version,
		Timestamp: time.Now(),
	}
}

func (m *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerEventFromJSON decodes an event and rejects unknown kinds or a
// missing owner.
func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var msg LedgerEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if !msg.Kind.Valid() {
		return nil, fmt.Errorf("unknown event kind %q", msg.Kind)
	}
	if msg.OwnerID == "" {
		return nil, fmt.Errorf("event %s without owner", msg.Kind)
	}
	return &msg, nil
}
