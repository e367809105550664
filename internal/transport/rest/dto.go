package rest

import (
	"strings"
	"time"

	"github.com/citypulse/event-service/internal/domain"
	"github.com/citypulse/event-service/internal/service"
)

// Wire format for scheduled dates, matching what the other city-pulse
// services exchange.
const dateTimeLayout = "2006-01-02 15:04:05"

type locationDTO struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type newEventRequest struct {
	Title             string      `json:"title"`
	Annotation        string      `json:"annotation"`
	Description       string      `json:"description"`
	Category          int64       `json:"category"`
	EventDate         string      `json:"eventDate"`
	Location          locationDTO `json:"location"`
	Paid              *bool       `json:"paid"`
	ParticipantLimit  *int        `json:"participantLimit"`
	RequestModeration *bool       `json:"requestModeration"`
}

func (in *newEventRequest) toDomain() (domain.NewEvent, error) {
	date, err := parseDateTime(in.EventDate)
	if err != nil {
		return domain.NewEvent{}, err
	}
	return domain.NewEvent{
		CategoryID:        in.Category,
		Title:             in.Title,
		Annotation:        in.Annotation,
		Description:       in.Description,
		EventDate:         date,
		Lat:               in.Location.Lat,
		Lon:               in.Location.Lon,
		Paid:              in.Paid,
		ParticipantLimit:  in.ParticipantLimit,
		RequestModeration: in.RequestModeration,
	}, nil
}

type updateEventRequest struct {
	Title             *string      `json:"title"`
	Annotation        *string      `json:"annotation"`
	Description       *string      `json:"description"`
	Category          *int64       `json:"category"`
	EventDate         *string      `json:"eventDate"`
	Location          *locationDTO `json:"location"`
	Paid              *bool        `json:"paid"`
	ParticipantLimit  *int         `json:"participantLimit"`
	RequestModeration *bool        `json:"requestModeration"`
	StateAction       *string      `json:"stateAction"`
}

func (in *updateEventRequest) toDomain() (domain.EventPatch, error) {
	p := domain.EventPatch{
		CategoryID:        in.Category,
		Title:             in.Title,
		Annotation:        in.Annotation,
		Description:       in.Description,
		Paid:              in.Paid,
		ParticipantLimit:  in.ParticipantLimit,
		RequestModeration: in.RequestModeration,
	}
	if in.EventDate != nil {
		date, err := parseDateTime(*in.EventDate)
		if err != nil {
			return domain.EventPatch{}, err
		}
		p.EventDate = &date
	}
	if in.Location != nil {
		p.Lat = &in.Location.Lat
		p.Lon = &in.Location.Lon
	}
	if in.StateAction != nil {
		a := domain.StateAction(strings.TrimSpace(*in.StateAction))
		p.Action = &a
	}
	return p, nil
}

type moderationRequest struct {
	RequestIDs []int64 `json:"requestIds"`
	Status     string  `json:"status"`
}

type eventView struct {
	ID                int64       `json:"id"`
	InitiatorID       int64       `json:"initiator"`
	Category          int64       `json:"category"`
	Title             string      `json:"title"`
	Annotation        string      `json:"annotation"`
	Description       string      `json:"description"`
	EventDate         string      `json:"eventDate"`
	Location          locationDTO `json:"location"`
	Paid              bool        `json:"paid"`
	ParticipantLimit  int         `json:"participantLimit"`
	RequestModeration bool        `json:"requestModeration"`
	State             string      `json:"state"`
	CreatedOn         string      `json:"createdOn"`
	PublishedOn       *string     `json:"publishedOn,omitempty"`
	ConfirmedRequests int         `json:"confirmedRequests"`
	Views             int64       `json:"views"`
}

func toEventView(e *domain.Event, confirmed int, views int64) eventView {
	v := eventView{
		ID:                e.ID,
		InitiatorID:       e.InitiatorID,
		Category:          e.CategoryID,
		Title:             e.Title,
		Annotation:        e.Annotation,
		Description:       e.Description,
		EventDate:         e.EventDate.UTC().Format(dateTimeLayout),
		Location:          locationDTO{Lat: e.Lat, Lon: e.Lon},
		Paid:              e.Paid,
		ParticipantLimit:  e.ParticipantLimit,
		RequestModeration: e.RequestModeration,
		State:             string(e.State),
		CreatedOn:         e.CreatedOn.UTC().Format(dateTimeLayout),
		ConfirmedRequests: confirmed,
		Views:             views,
	}
	if e.PublishedOn != nil {
		s := e.PublishedOn.UTC().Format(dateTimeLayout)
		v.PublishedOn = &s
	}
	return v
}

func toEnrichedView(e *service.EnrichedEvent) eventView {
	return toEventView(&e.Event, e.ConfirmedRequests, e.Views)
}

type requestView struct {
	ID        int64  `json:"id"`
	Event     int64  `json:"event"`
	Requester int64  `json:"requester"`
	Status    string `json:"status"`
	Created   string `json:"created"`
}

func toRequestView(r *domain.ParticipationRequest) requestView {
	return requestView{
		ID:        r.ID,
		Event:     r.EventID,
		Requester: r.RequesterID,
		Status:    string(r.Status),
		Created:   r.Created.UTC().Format(dateTimeLayout),
	}
}

func toRequestViews(reqs []domain.ParticipationRequest) []requestView {
	out := make([]requestView, 0, len(reqs))
	for i := range reqs {
		out = append(out, toRequestView(&reqs[i]))
	}
	return out
}

type moderationView struct {
	ConfirmedRequests []requestView `json:"confirmedRequests"`
	RejectedRequests  []requestView `json:"rejectedRequests"`
}

func parseDateTime(s string) (time.Time, error) {
	return time.Parse(dateTimeLayout, strings.TrimSpace(s))
}
