package domain

// StagePlan enumerates the possible stage sequences after the created event
// has been verified. The plan is decided exactly once, when verification
// succeeds, rather than re-derived from mutable flags at each transition.
type StagePlan int

const (
	// PlanUnspecified represents an undecided plan.
	PlanUnspecified StagePlan = iota
	// PlanEventOnly finishes after the creation stage.
	PlanEventOnly
	// PlanEventThenTickets runs the ticket stage, then finishes.
	PlanEventThenTickets
	// PlanEventThenDomain runs the domain stage, then finishes.
	PlanEventThenDomain
	// PlanEventThenTicketsThenDomain runs both optional stages in order.
	PlanEventThenTicketsThenDomain
)

// DecidePlan picks the stage sequence for a verified publication.
func DecidePlan(req PublicationRequest) StagePlan {
	tickets := req.WantsTickets()
	domain := req.WantsDomain()
	switch {
	case tickets && domain:
		return PlanEventThenTicketsThenDomain
	case tickets:
		return PlanEventThenTickets
	case domain:
		return PlanEventThenDomain
	default:
		return PlanEventOnly
	}
}

// HasTickets reports whether the plan includes the ticket stage.
func (p StagePlan) HasTickets() bool {
	return p == PlanEventThenTickets || p == PlanEventThenTicketsThenDomain
}

// HasDomain reports whether the plan includes the domain stage.
func (p StagePlan) HasDomain() bool {
	return p == PlanEventThenDomain || p == PlanEventThenTicketsThenDomain
}

// String returns the plan label used in records and logs.
func (p StagePlan) String() string {
	switch p {
	case PlanEventOnly:
		return "event_only"
	case PlanEventThenTickets:
		return "event_then_tickets"
	case PlanEventThenDomain:
		return "event_then_domain"
	case PlanEventThenTicketsThenDomain:
		return "event_then_tickets_then_domain"
	default:
		return "unspecified"
	}
}
