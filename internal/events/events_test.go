package events

import (
	"errors"
	"testing"

	"gorm.io/gorm"
)

func TestDispatchRunsHandlersInRegistrationOrder(t *testing.T) {
	dispatcher := NewDispatcher()

	var order []string
	dispatcher.Register(ContractCreatedEvent, func(tx *gorm.DB, event Event) error {
		order = append(order, "first")
		return nil
	})
	dispatcher.Register(ContractCreatedEvent, func(tx *gorm.DB, event Event) error {
		order = append(order, "second")
		return nil
	})

	err := dispatcher.Dispatch(nil, ContractCreated{ContractID: "CON_1", RequestID: "REQ_1"})
	if err != nil {
		t.Fatalf("Dispatch returned error: %v", err)
	}

	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Errorf("handlers ran in order %v, want [first second]", order)
	}
}

func TestDispatchStopsOnFirstHandlerError(t *testing.T) {
	dispatcher := NewDispatcher()
	handlerErr := errors.New("handler failed")

	secondRan := false
	dispatcher.Register(ContractApprovedEvent, func(tx *gorm.DB, event Event) error {
		return handlerErr
	})
	dispatcher.Register(ContractApprovedEvent, func(tx *gorm.DB, event Event) error {
		secondRan = true
		return nil
	})

	err := dispatcher.Dispatch(nil, ContractApproved{ContractID: "CON_1", RequestID: "REQ_1"})
	if !errors.Is(err, handlerErr) {
		t.Fatalf("Dispatch error = %v, want wrapped %v", err, handlerErr)
	}
	if secondRan {
		t.Error("second handler ran after the first one failed")
	}
}

func TestDispatchWithNoHandlersIsNoop(t *testing.T) {
	dispatcher := NewDispatcher()

	err := dispatcher.Dispatch(nil, CustomsReleaseReceived{VesselID: "VSL_1", FileName: "release.pdf"})
	if err != nil {
		t.Fatalf("Dispatch returned error for event with no handlers: %v", err)
	}
}

func TestEventTypes(t *testing.T) {
	tests := []struct {
		event Event
		want  string
	}{
		{ContractCreated{}, ContractCreatedEvent},
		{ContractApproved{}, ContractApprovedEvent},
		{CustomsReleaseReceived{}, CustomsReleaseReceivedEvent},
	}

	for _, tt := range tests {
		if got := tt.event.Type(); got != tt.want {
			t.Errorf("Type() = %q, want %q", got, tt.want)
		}
	}
}
