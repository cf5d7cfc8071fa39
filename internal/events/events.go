package events

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Event types dispatched by the domain services. Each one is the trigger
// of a cross-entity status cascade.
const (
	ContractCreatedEvent        = "contract.created"
	ContractApprovedEvent       = "contract.approved"
	CustomsReleaseReceivedEvent = "vessel.customs_release.received"
)

type Event interface {
	Type() string
}

// ContractCreated fires when a new contract referencing a request is
// inserted. Handlers move the request to "contracted".
type ContractCreated struct {
	ContractID string
	RequestID  string
}

func (e ContractCreated) Type() string { return ContractCreatedEvent }

// ContractApproved fires when a contract's status is set to approved.
// Handlers move the request to "applied".
type ContractApproved struct {
	ContractID string
	RequestID  string
}

func (e ContractApproved) Type() string { return ContractApprovedEvent }

// CustomsReleaseReceived fires when a customs-release document is attached
// to a vessel. Handlers complete the vessel and mark customs as received.
type CustomsReleaseReceived struct {
	VesselID string
	FileName string
}

func (e CustomsReleaseReceived) Type() string { return CustomsReleaseReceivedEvent }

// Handler reacts to an event inside the transaction that produced it.
// Returning an error aborts the whole transaction, primary write included.
type Handler func(tx *gorm.DB, event Event) error

// Dispatcher routes events to registered handlers synchronously. It holds
// no locking: registration happens during startup wiring, before any
// dispatch.
type Dispatcher struct {
	handlers map[string][]Handler
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		handlers: make(map[string][]Handler),
	}
}

// Register attaches a handler to an event type. Handlers run in
// registration order.
func (d *Dispatcher) Register(eventType string, handler Handler) {
	d.handlers[eventType] = append(d.handlers[eventType], handler)
}

// Dispatch runs every handler for the event within the given transaction.
// The first handler error stops the chain and is returned to the caller,
// which must roll back.
func (d *Dispatcher) Dispatch(tx *gorm.DB, event Event) error {
	handlers := d.handlers[event.Type()]

	log.Debug().
		Str("event_type", event.Type()).
		Int("handler_count", len(handlers)).
		Msg("dispatching domain event")

	for _, handler := range handlers {
		if err := handler(tx, event); err != nil {
			return fmt.Errorf("handler for %s failed: %w", event.Type(), err)
		}
	}
	return nil
}
