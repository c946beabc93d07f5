// Package domain holds the publication data model: the immutable request
// snapshot captured when a publication begins, its value records, and the
// error taxonomy shared by the publication pipeline.
package domain

import (
	"strings"
	"time"
)

// ContentReference is the stable identifier returned after uploading event
// metadata to the content store. It is immutable once assigned to a request.
type ContentReference string

// TicketType describes one purchasable ticket tier for an event.
type TicketType struct {
	Name     string
	Price    string
	Currency string
	Quantity int
	Perks    []string
}

// Host identifies one event host.
type Host struct {
	Name    string
	Address string
}

// AgendaItem is one scheduled entry in the event programme.
type AgendaItem struct {
	Title     string
	Speaker   string
	StartTime time.Time
}

// SocialLink points at an event's presence on an external platform.
type SocialLink struct {
	Platform string
	URL      string
}

// PublicationRequest is the validated, immutable snapshot of user-entered
// event data at the moment publication begins.
type PublicationRequest struct {
	Title       string
	Description string
	Location    string
	StartTime   time.Time
	EndTime     time.Time
	Capacity    int
	Category    string

	// Staged image payload, uploaded at most once per publication session.
	ImageName string
	ImageType string
	ImageData []byte

	TicketingEnabled bool
	SimpleMode       bool
	DomainName       string

	TicketTypes []TicketType
	Hosts       []Host
	Agenda      []AgendaItem
	SocialLinks []SocialLink
}

// NormalizeRequest trims free-text fields and validates the request snapshot.
// Both timestamps must resolve and the window must satisfy start < end before
// any batch can be built from the request.
func NormalizeRequest(req PublicationRequest) (PublicationRequest, error) {
	req.Title = strings.TrimSpace(req.Title)
	req.Description = strings.TrimSpace(req.Description)
	req.Location = strings.TrimSpace(req.Location)
	req.Category = strings.TrimSpace(req.Category)
	req.DomainName = strings.TrimSpace(req.DomainName)

	if req.Title == "" {
		return PublicationRequest{}, &ValidationError{Field: "title", Reason: "title is required"}
	}
	if err := ValidateTimeWindow(req.StartTime, req.EndTime); err != nil {
		return PublicationRequest{}, err
	}
	return req, nil
}

// ValidateTimeWindow enforces the start < end invariant on resolved timestamps.
func ValidateTimeWindow(start, end time.Time) error {
	if start.IsZero() {
		return &ValidationError{Field: "start_time", Reason: "start time is required"}
	}
	if end.IsZero() {
		return &ValidationError{Field: "end_time", Reason: "end time is required"}
	}
	if !start.Before(end) {
		return &ValidationError{Field: "time_window", Reason: "start time must be before end time"}
	}
	return nil
}

// HasImage reports whether an image is staged for upload.
func (r PublicationRequest) HasImage() bool {
	return len(r.ImageData) > 0
}

// WantsTickets reports whether the ticket stage applies to this request.
// Simple mode always bypasses ticket issuance.
func (r PublicationRequest) WantsTickets() bool {
	return r.TicketingEnabled && len(r.TicketTypes) > 0 && !r.SimpleMode
}

// WantsDomain reports whether a domain stage applies to this request.
func (r PublicationRequest) WantsDomain() bool {
	return r.DomainName != ""
}
