package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Lead-time floors for the scheduled date. The admin rule is shorter because
// admin moderation takes effect immediately.
const (
	OwnerMinLead = 2 * time.Hour
	AdminMinLead = 1 * time.Hour
)

// NewEvent carries the fields required to create an event. Optional flags
// default per Defaults.
type NewEvent struct {
	CategoryID  int64
	Title       string
	Annotation  string
	Description string
	EventDate   time.Time
	Lat         float64
	Lon         float64

	Paid              *bool
	ParticipantLimit  *int
	RequestModeration *bool
}

// EventPatch is a partial update: nil means "leave unchanged". Action, when
// present, drives the state machine; field edits never change state.
type EventPatch struct {
	CategoryID  *int64
	Title       *string
	Annotation  *string
	Description *string
	EventDate   *time.Time
	Lat         *float64
	Lon         *float64

	Paid              *bool
	ParticipantLimit  *int
	RequestModeration *bool

	Action *StateAction
}

func validationErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func checkLen(field, s string, min, max int) error {
	n := utf8.RuneCountInString(strings.TrimSpace(s))
	if n < min || n > max {
		return validationErr("%s must be %d-%d characters, got %d", field, min, max, n)
	}
	return nil
}

// Validate checks the field constraints and the lead-time rule for a new
// event, before any store interaction.
func (n *NewEvent) Validate(now time.Time) error {
	if err := checkLen("title", n.Title, 3, 120); err != nil {
		return err
	}
	if err := checkLen("annotation", n.Annotation, 20, 2000); err != nil {
		return err
	}
	if err := checkLen("description", n.Description, 20, 7000); err != nil {
		return err
	}
	if n.ParticipantLimit != nil && *n.ParticipantLimit < 0 {
		return validationErr("participantLimit must not be negative")
	}
	if n.EventDate.Before(now.Add(OwnerMinLead)) {
		return validationErr("eventDate must be at least %s ahead", OwnerMinLead)
	}
	return nil
}

// Build materializes the event with defaults applied: paid=false,
// participantLimit=0 (unlimited), requestModeration=true.
func (n *NewEvent) Build(initiatorID int64, now time.Time) *Event {
	e := &Event{
		InitiatorID:       initiatorID,
		CategoryID:        n.CategoryID,
		Title:             strings.TrimSpace(n.Title),
		Annotation:        strings.TrimSpace(n.Annotation),
		Description:       strings.TrimSpace(n.Description),
		EventDate:         n.EventDate,
		Lat:               n.Lat,
		Lon:               n.Lon,
		Paid:              false,
		ParticipantLimit:  0,
		RequestModeration: true,
		State:             EventPending,
		CreatedOn:         now,
	}
	if n.Paid != nil {
		e.Paid = *n.Paid
	}
	if n.ParticipantLimit != nil {
		e.ParticipantLimit = *n.ParticipantLimit
	}
	if n.RequestModeration != nil {
		e.RequestModeration = *n.RequestModeration
	}
	return e
}

// Apply merges the non-nil fields of the patch into a copy of the event and
// re-validates the touched constraints. minLead gates a new EventDate against
// now. State is untouched; actions are resolved separately by the caller.
func (p *EventPatch) Apply(e Event, now time.Time, minLead time.Duration) (Event, error) {
	if p.Title != nil {
		if err := checkLen("title", *p.Title, 3, 120); err != nil {
			return Event{}, err
		}
		e.Title = strings.TrimSpace(*p.Title)
	}
	if p.Annotation != nil {
		if err := checkLen("annotation", *p.Annotation, 20, 2000); err != nil {
			return Event{}, err
		}
		e.Annotation = strings.TrimSpace(*p.Annotation)
	}
	if p.Description != nil {
		if err := checkLen("description", *p.Description, 20, 7000); err != nil {
			return Event{}, err
		}
		e.Description = strings.TrimSpace(*p.Description)
	}
	if p.EventDate != nil {
		if p.EventDate.Before(now.Add(minLead)) {
			return Event{}, validationErr("eventDate must be at least %s ahead", minLead)
		}
		e.EventDate = *p.EventDate
	}
	if p.CategoryID != nil {
		e.CategoryID = *p.CategoryID
	}
	if p.Lat != nil {
		e.Lat = *p.Lat
	}
	if p.Lon != nil {
		e.Lon = *p.Lon
	}
	if p.Paid != nil {
		e.Paid = *p.Paid
	}
	if p.ParticipantLimit != nil {
		if *p.ParticipantLimit < 0 {
			return Event{}, validationErr("participantLimit must not be negative")
		}
		e.ParticipantLimit = *p.ParticipantLimit
	}
	if p.RequestModeration != nil {
		e.RequestModeration = *p.RequestModeration
	}
	return e, nil
}
