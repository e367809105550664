package service

import (
	"context"
	"time"

	"github.com/citypulse/event-service/internal/audit"
	"github.com/citypulse/event-service/internal/domain"
)

// EventService owns the event state machine: who may change an event, when,
// and what the change does.
type EventService struct {
	events domain.EventStore
	dir    domain.Directory
	audit  *audit.Logger
	now    func() time.Time
}

func NewEventService(events domain.EventStore, dir domain.Directory, auditLog *audit.Logger) *EventService {
	return &EventService{
		events: events,
		dir:    dir,
		audit:  auditLog,
		now:    time.Now,
	}
}

func (s *EventService) requireUser(ctx context.Context, userID int64) error {
	ok, err := s.dir.UserExists(ctx, userID)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrUserNotFound
	}
	return nil
}

func (s *EventService) requireCategory(ctx context.Context, categoryID int64) error {
	ok, err := s.dir.CategoryExists(ctx, categoryID)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrCategoryNotFound
	}
	return nil
}

// Create validates the submission and stores the event in PENDING.
func (s *EventService) Create(ctx context.Context, initiatorID int64, n domain.NewEvent) (*domain.Event, error) {
	now := s.now()
	if err := n.Validate(now); err != nil {
		return nil, err
	}
	if err := s.requireUser(ctx, initiatorID); err != nil {
		return nil, err
	}
	if err := s.requireCategory(ctx, n.CategoryID); err != nil {
		return nil, err
	}

	created, err := s.events.Create(ctx, n.Build(initiatorID, now))
	if err != nil {
		return nil, err
	}
	if s.audit != nil {
		s.audit.EventCreated(ctx, created.ID, initiatorID)
	}
	return created, nil
}

// UpdateByInitiator applies a partial edit on behalf of the event owner.
// A PUBLISHED event is frozen; the optional action runs the owner half of the
// state machine.
func (s *EventService) UpdateByInitiator(ctx context.Context, initiatorID, eventID int64, patch domain.EventPatch) (*domain.Event, error) {
	if err := s.requireUser(ctx, initiatorID); err != nil {
		return nil, err
	}
	event, err := s.events.GetByIDAndInitiator(ctx, eventID, initiatorID)
	if err != nil {
		return nil, err
	}
	if event.Frozen() {
		return nil, domain.ErrEventPublished
	}

	patched, err := patch.Apply(*event, s.now(), domain.OwnerMinLead)
	if err != nil {
		return nil, err
	}
	if patch.CategoryID != nil {
		if err := s.requireCategory(ctx, *patch.CategoryID); err != nil {
			return nil, err
		}
	}
	if patch.Action != nil {
		next, err := domain.OwnerTransition(patched.State, *patch.Action)
		if err != nil {
			return nil, err
		}
		if s.audit != nil && next != patched.State {
			s.audit.EventStateChanged(ctx, eventID, patched.State, next, "initiator")
		}
		patched.State = next
	}
	return s.events.Update(ctx, &patched, event.State)
}

// UpdateByAdmin applies an administrator edit. Only PENDING events may be
// touched; PUBLISH_EVENT stamps publishedOn exactly once.
func (s *EventService) UpdateByAdmin(ctx context.Context, eventID int64, patch domain.EventPatch) (*domain.Event, error) {
	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.State != domain.EventPending {
		return nil, domain.ErrEventNotPending
	}

	now := s.now()
	patched, err := patch.Apply(*event, now, domain.AdminMinLead)
	if err != nil {
		return nil, err
	}
	if patch.CategoryID != nil {
		if err := s.requireCategory(ctx, *patch.CategoryID); err != nil {
			return nil, err
		}
	}
	if patch.Action != nil {
		next, err := domain.AdminTransition(patched.State, *patch.Action)
		if err != nil {
			return nil, err
		}
		if next == domain.EventPublished {
			publishedOn := now
			patched.PublishedOn = &publishedOn
		}
		if s.audit != nil && next != patched.State {
			s.audit.EventStateChanged(ctx, eventID, patched.State, next, "admin")
		}
		patched.State = next
	}
	return s.events.Update(ctx, &patched, event.State)
}

// ListByAdmin returns events matching the admin filter.
func (s *EventService) ListByAdmin(ctx context.Context, f domain.AdminEventFilter) ([]domain.Event, error) {
	if f.RangeStart != nil && f.RangeEnd != nil && f.RangeStart.After(*f.RangeEnd) {
		return nil, domain.ErrValidation
	}
	return s.events.ListAdmin(ctx, f)
}
