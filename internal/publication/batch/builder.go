package batch

import (
	"strconv"
	"strings"

	"github.com/nyuiela/revent/internal/publication/domain"
)

// BuildCreationBatch builds the primary event-creation batch. The request
// must carry a resolvable time window and the content reference returned by
// the metadata upload.
func BuildCreationBatch(req domain.PublicationRequest, contentRef domain.ContentReference) (Batch, error) {
	if err := domain.ValidateTimeWindow(req.StartTime, req.EndTime); err != nil {
		return Batch{}, err
	}
	if strings.TrimSpace(string(contentRef)) == "" {
		return Batch{}, &domain.ValidationError{Field: "content_reference", Reason: "content reference is required"}
	}

	op := Operation{
		Target: TargetEventFactory,
		Name:   "createEvent",
		Args: []Arg{
			{Name: "title", Type: ArgTypeString, Value: req.Title},
			{Name: "metadataUri", Type: ArgTypeString, Value: string(contentRef)},
			{Name: "startTime", Type: ArgTypeUint, Value: strconv.FormatInt(req.StartTime.Unix(), 10)},
			{Name: "endTime", Type: ArgTypeUint, Value: strconv.FormatInt(req.EndTime.Unix(), 10)},
			{Name: "capacity", Type: ArgTypeUint, Value: strconv.Itoa(req.Capacity)},
			{Name: "ticketingEnabled", Type: ArgTypeBool, Value: strconv.FormatBool(req.TicketingEnabled)},
		},
	}
	return Batch{Operations: []Operation{op}}, nil
}

// BuildTicketBatch builds one createTicketType operation per ticket type.
// An empty ticket list yields an empty batch, never an error.
func BuildTicketBatch(eventID string, ticketTypes []domain.TicketType) (Batch, error) {
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return Batch{}, &domain.ValidationError{Field: "event_id", Reason: "event id is required"}
	}
	if len(ticketTypes) == 0 {
		return Batch{}, nil
	}

	ops := make([]Operation, 0, len(ticketTypes))
	for _, ticket := range ticketTypes {
		ops = append(ops, Operation{
			Target: TargetTicketMinter,
			Name:   "createTicketType",
			Args: []Arg{
				{Name: "eventId", Type: ArgTypeUint, Value: eventID},
				{Name: "name", Type: ArgTypeString, Value: ticket.Name},
				{Name: "price", Type: ArgTypeString, Value: ticket.Price},
				{Name: "currency", Type: ArgTypeString, Value: ticket.Currency},
				{Name: "quantity", Type: ArgTypeUint, Value: strconv.Itoa(ticket.Quantity)},
				{Name: "perks", Type: ArgTypeString, Value: strings.Join(ticket.Perks, ",")},
			},
		})
	}
	return Batch{Operations: ops}, nil
}

// BuildDomainBatch builds the domain-registration batch. Callers must only
// invoke it with a name already confirmed available; building with a taken
// name is a caller contract violation surfaced at submit time.
func BuildDomainBatch(eventID, domainName string) (Batch, error) {
	eventID = strings.TrimSpace(eventID)
	domainName = strings.TrimSpace(domainName)
	if eventID == "" {
		return Batch{}, &domain.ValidationError{Field: "event_id", Reason: "event id is required"}
	}
	if domainName == "" {
		return Batch{}, &domain.ValidationError{Field: "domain_name", Reason: "domain name is required"}
	}

	op := Operation{
		Target: TargetDomainRegistrar,
		Name:   "registerDomain",
		Args: []Arg{
			{Name: "eventId", Type: ArgTypeUint, Value: eventID},
			{Name: "name", Type: ArgTypeString, Value: strings.ToLower(domainName)},
		},
	}
	return Batch{Operations: []Operation{op}}, nil
}
