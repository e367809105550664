package domain

import (
	"context"
	"errors"
	"time"
)

type EventState string

const (
	EventPending   EventState = "PENDING"
	EventPublished EventState = "PUBLISHED"
	EventCanceled  EventState = "CANCELED"
)

type RequestStatus string

const (
	RequestPending   RequestStatus = "PENDING"
	RequestConfirmed RequestStatus = "CONFIRMED"
	RequestRejected  RequestStatus = "REJECTED"
	RequestCanceled  RequestStatus = "CANCELED"
)

// StateAction is a moderation action requested alongside an event patch.
// Owners may send SEND_TO_REVIEW / CANCEL_REVIEW; admins PUBLISH_EVENT /
// REJECT_EVENT. The two halves are disjoint: an action outside the caller's
// table fails with ErrInvalidAction.
type StateAction string

const (
	ActionSendToReview StateAction = "SEND_TO_REVIEW"
	ActionCancelReview StateAction = "CANCEL_REVIEW"
	ActionPublishEvent StateAction = "PUBLISH_EVENT"
	ActionRejectEvent  StateAction = "REJECT_EVENT"
)

var (
	ErrUserNotFound     = errors.New("user not found")
	ErrCategoryNotFound = errors.New("category not found")
	ErrEventNotFound    = errors.New("event not found")
	ErrRequestNotFound  = errors.New("participation request not found")

	ErrEventPublished  = errors.New("published event is frozen")     // owner edit of a PUBLISHED event
	ErrEventNotPending = errors.New("event is not pending review")   // admin edit outside PENDING
	ErrInvalidAction   = errors.New("action not permitted for role") // state machine rejection

	ErrNotInitiator       = errors.New("user is not the event initiator")
	ErrOwnEvent           = errors.New("initiator cannot request own event")
	ErrEventNotPublished  = errors.New("event is not published")
	ErrLimitReached       = errors.New("participant limit reached")
	ErrDuplicateRequest   = errors.New("participation request already exists")
	ErrModerationDisabled = errors.New("event does not moderate requests")
	ErrNotRequester       = errors.New("request belongs to another user")

	ErrValidation = errors.New("validation failed")
)

type Event struct {
	ID          int64
	InitiatorID int64
	CategoryID  int64

	Title       string
	Annotation  string
	Description string

	EventDate time.Time
	Lat       float64
	Lon       float64

	Paid              bool
	ParticipantLimit  int
	RequestModeration bool

	State       EventState
	CreatedOn   time.Time
	PublishedOn *time.Time
}

// Frozen reports whether the event may no longer be edited by anyone.
func (e *Event) Frozen() bool { return e.State == EventPublished }

type ParticipationRequest struct {
	ID          int64
	EventID     int64
	RequesterID int64
	Status      RequestStatus
	Created     time.Time
}

// ModerationResult partitions a processed batch by final status.
type ModerationResult struct {
	Confirmed []ParticipationRequest
	Rejected  []ParticipationRequest
}

// AdminEventFilter narrows the admin listing. Nil/empty slices mean "any".
type AdminEventFilter struct {
	InitiatorIDs []int64
	States       []EventState
	CategoryIDs  []int64
	RangeStart   *time.Time
	RangeEnd     *time.Time
	From         int
	Size         int
}

// EventStore is the durable store for events. Mutating methods persist the
// whole record; partial-update merging happens in the service layer.
type EventStore interface {
	Create(ctx context.Context, e *Event) (*Event, error)
	// Update persists the edited event. prev is the state the caller read
	// before editing; the store re-checks it under the row lock and refuses
	// the write when another writer moved the event in between.
	Update(ctx context.Context, e *Event, prev EventState) (*Event, error)
	GetByID(ctx context.Context, id int64) (*Event, error)
	GetByIDAndInitiator(ctx context.Context, id, initiatorID int64) (*Event, error)
	GetPublishedByID(ctx context.Context, id int64) (*Event, error)
	ListByInitiator(ctx context.Context, initiatorID int64, from, size int) ([]Event, error)
	ListAdmin(ctx context.Context, f AdminEventFilter) ([]Event, error)
}

// RequestStore is the durable store for participation requests. Admit and
// Moderate run as single transactions that lock the event row before reading
// the confirmed count, so capacity decisions serialize per event.
type RequestStore interface {
	// Admit creates a request after all eligibility checks pass, deciding the
	// initial status from the event's moderation settings.
	Admit(ctx context.Context, traceID string, requesterID, eventID int64) (*ParticipationRequest, error)

	// Moderate applies the capacity-constrained batch confirm/reject algorithm
	// on the caller's pending requests.
	Moderate(ctx context.Context, traceID string, initiatorID, eventID int64, requestIDs []int64, target RequestStatus) (*ModerationResult, error)

	Cancel(ctx context.Context, traceID string, requesterID, requestID int64) (*ParticipationRequest, error)

	ListByRequester(ctx context.Context, requesterID int64) ([]ParticipationRequest, error)
	ListByEventInitiator(ctx context.Context, eventID, initiatorID int64) ([]ParticipationRequest, error)
	CountConfirmed(ctx context.Context, eventID int64) (int, error)
}

// Directory resolves users and categories, which are owned by the CRUD
// service. Lookup only, never mutation.
type Directory interface {
	UserExists(ctx context.Context, id int64) (bool, error)
	CategoryExists(ctx context.Context, id int64) (bool, error)
}

// ViewCounter is the read-only stats collaborator. Hits never affect
// admission or lifecycle decisions.
type ViewCounter interface {
	RecordHit(ctx context.Context, uri, ip string) error
	Views(ctx context.Context, start, end time.Time, uris []string, unique bool) (map[string]int64, error)
}

var ErrCacheMiss = errors.New("cache miss")

// CacheRepository backs the short-TTL view-count cache and the request rate
// limiter. Failures are treated as misses, never as hard errors.
type CacheRepository interface {
	GetEventViews(ctx context.Context, eventID int64) (int64, error)
	SetEventViews(ctx context.Context, eventID int64, views int64) error

	AllowRequest(ctx context.Context, ip string, limit int, window time.Duration) (bool, error)
}
