package services

import (
	"testing"

	"github.com/supportal/api/model"
)

func TestTicketTransitions(t *testing.T) {
	cases := []struct {
		from    model.TicketStatus
		to      model.TicketStatus
		allowed bool
	}{
		{model.TicketStatusOpen, model.TicketStatusInProgress, true},
		{model.TicketStatusOpen, model.TicketStatusWaitingForCustomer, false},
		{model.TicketStatusInProgress, model.TicketStatusWaitingForCustomer, true},
		{model.TicketStatusWaitingForCustomer, model.TicketStatusInProgress, true},
		{model.TicketStatusResolved, model.TicketStatusInProgress, true},
		{model.TicketStatusResolved, model.TicketStatusClosed, true},
		{model.TicketStatusClosed, model.TicketStatusOpen, false},
		{model.TicketStatusClosed, model.TicketStatusInProgress, false},
		{model.TicketStatusOpen, model.TicketStatusResolved, true},
	}

	for _, c := range cases {
		if got := transitionAllowed(c.from, c.to); got != c.allowed {
			t.Errorf("transition %s -> %s = %v, want %v", c.from, c.to, got, c.allowed)
		}
	}
}

func TestFilterInternalComments(t *testing.T) {
	comments := []model.TicketComment{
		{ID: 1, Content: "customer visible"},
		{ID: 2, Content: "agent note", IsInternal: true},
		{ID: 3, Content: "reply"},
	}

	visible := filterInternalComments(comments)
	if len(visible) != 2 {
		t.Fatalf("expected 2 visible comments, got %d", len(visible))
	}
	for _, c := range visible {
		if c.IsInternal {
			t.Error("internal comment leaked into customer view")
		}
	}
}
