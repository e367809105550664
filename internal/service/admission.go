package service

import (
	"context"

	"github.com/citypulse/event-service/internal/audit"
	"github.com/citypulse/event-service/internal/domain"
)

// RequestService fronts the admission controller: eligibility-gated request
// creation and capacity-constrained batch moderation. The capacity-critical
// sequences themselves run inside RequestStore transactions so that the
// confirmed count is read and written under a per-event lock.
type RequestService struct {
	requests domain.RequestStore
	events   domain.EventStore
	dir      domain.Directory
	audit    *audit.Logger
}

func NewRequestService(requests domain.RequestStore, events domain.EventStore, dir domain.Directory, auditLog *audit.Logger) *RequestService {
	return &RequestService{
		requests: requests,
		events:   events,
		dir:      dir,
		audit:    auditLog,
	}
}

func (s *RequestService) requireUser(ctx context.Context, userID int64) error {
	ok, err := s.dir.UserExists(ctx, userID)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrUserNotFound
	}
	return nil
}

// Create admits a new participation request for a published event.
func (s *RequestService) Create(ctx context.Context, traceID string, requesterID, eventID int64) (*domain.ParticipationRequest, error) {
	if err := s.requireUser(ctx, requesterID); err != nil {
		return nil, err
	}
	req, err := s.requests.Admit(ctx, traceID, requesterID, eventID)
	if err != nil {
		return nil, err
	}
	if s.audit != nil {
		s.audit.RequestAdmitted(ctx, req.ID, eventID, requesterID, req.Status)
	}
	return req, nil
}

// Cancel withdraws the requester's own request, from any prior status.
func (s *RequestService) Cancel(ctx context.Context, traceID string, requesterID, requestID int64) (*domain.ParticipationRequest, error) {
	req, err := s.requests.Cancel(ctx, traceID, requesterID, requestID)
	if err != nil {
		return nil, err
	}
	if s.audit != nil {
		s.audit.RequestCanceled(ctx, requestID, requesterID)
	}
	return req, nil
}

// Moderate confirms or rejects a batch of pending requests on behalf of the
// event initiator. Confirmations beyond the remaining vacancies cascade into
// rejections instead of failing the batch.
func (s *RequestService) Moderate(ctx context.Context, traceID string, initiatorID, eventID int64, requestIDs []int64, target domain.RequestStatus) (*domain.ModerationResult, error) {
	if err := s.requireUser(ctx, initiatorID); err != nil {
		return nil, err
	}
	res, err := s.requests.Moderate(ctx, traceID, initiatorID, eventID, requestIDs, target)
	if err != nil {
		return nil, err
	}
	if s.audit != nil {
		s.audit.BatchModerated(ctx, eventID, initiatorID, len(res.Confirmed), len(res.Rejected))
	}
	return res, nil
}

// ListByRequester returns the user's own requests across events.
func (s *RequestService) ListByRequester(ctx context.Context, requesterID int64) ([]domain.ParticipationRequest, error) {
	if err := s.requireUser(ctx, requesterID); err != nil {
		return nil, err
	}
	return s.requests.ListByRequester(ctx, requesterID)
}

// ListByEventInitiator returns all requests for an event, visible only to its
// initiator.
func (s *RequestService) ListByEventInitiator(ctx context.Context, initiatorID, eventID int64) ([]domain.ParticipationRequest, error) {
	if err := s.requireUser(ctx, initiatorID); err != nil {
		return nil, err
	}
	if _, err := s.events.GetByID(ctx, eventID); err != nil {
		return nil, err
	}
	return s.requests.ListByEventInitiator(ctx, eventID, initiatorID)
}
