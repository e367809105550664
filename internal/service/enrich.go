package service

import (
	"context"
	"fmt"
	"time"

	"github.com/citypulse/event-service/internal/domain"
	"github.com/citypulse/event-service/internal/pkg/logger"
)

// EnrichedEvent decorates an event with its confirmed-request count and the
// view count reported by the stats collaborator.
type EnrichedEvent struct {
	domain.Event
	ConfirmedRequests int
	Views             int64
}

// Enricher serves the read side: public by-id lookups and initiator listings,
// decorated with counts. It never writes event or request state.
type Enricher struct {
	events   domain.EventStore
	requests domain.RequestStore
	dir      domain.Directory
	stats    domain.ViewCounter
	cache    domain.CacheRepository
	now      func() time.Time
}

func NewEnricher(events domain.EventStore, requests domain.RequestStore, dir domain.Directory, stats domain.ViewCounter, cache domain.CacheRepository) *Enricher {
	return &Enricher{
		events:   events,
		requests: requests,
		dir:      dir,
		stats:    stats,
		cache:    cache,
		now:      time.Now,
	}
}

func eventURI(eventID int64) string { return fmt.Sprintf("/events/%d", eventID) }

// GetPublished returns a published event by id, records the hit with the
// stats collaborator and decorates the result. Stats failures never fail the
// read; the hit is lost and views fall back to zero.
func (s *Enricher) GetPublished(ctx context.Context, eventID int64, clientIP string) (*EnrichedEvent, error) {
	event, err := s.events.GetPublishedByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if s.stats != nil {
		if err := s.stats.RecordHit(ctx, eventURI(eventID), clientIP); err != nil {
			logger.WithCtx(ctx).Warn().Err(err).Int64("event_id", eventID).Msg("record hit failed")
		}
	}
	return s.enrich(ctx, event)
}

// GetByInitiator returns one of the initiator's own events, any state.
func (s *Enricher) GetByInitiator(ctx context.Context, initiatorID, eventID int64) (*EnrichedEvent, error) {
	ok, err := s.dir.UserExists(ctx, initiatorID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	event, err := s.events.GetByIDAndInitiator(ctx, eventID, initiatorID)
	if err != nil {
		return nil, err
	}
	return s.enrich(ctx, event)
}

// ListByInitiator returns a from/size page of the initiator's events.
func (s *Enricher) ListByInitiator(ctx context.Context, initiatorID int64, from, size int) ([]EnrichedEvent, error) {
	ok, err := s.dir.UserExists(ctx, initiatorID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	events, err := s.events.ListByInitiator(ctx, initiatorID, from, size)
	if err != nil {
		return nil, err
	}
	out := make([]EnrichedEvent, 0, len(events))
	for i := range events {
		e, err := s.enrich(ctx, &events[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, nil
}

func (s *Enricher) enrich(ctx context.Context, event *domain.Event) (*EnrichedEvent, error) {
	out := &EnrichedEvent{Event: *event}
	if event.State != domain.EventPublished {
		return out, nil
	}

	confirmed, err := s.requests.CountConfirmed(ctx, event.ID)
	if err != nil {
		return nil, err
	}
	out.ConfirmedRequests = confirmed

	views, err := s.views(ctx, event)
	if err != nil {
		return nil, err
	}
	out.Views = views
	return out, nil
}

func (s *Enricher) views(ctx context.Context, event *domain.Event) (int64, error) {
	if event.PublishedOn == nil || s.stats == nil {
		return 0, nil
	}

	// cache failures count as misses
	if s.cache != nil {
		if v, err := s.cache.GetEventViews(ctx, event.ID); err == nil {
			return v, nil
		}
	}

	uri := eventURI(event.ID)
	hits, err := s.stats.Views(ctx, *event.PublishedOn, s.now(), []string{uri}, true)
	if err != nil {
		logger.WithCtx(ctx).Warn().Err(err).Int64("event_id", event.ID).Msg("view count unavailable")
		return 0, nil
	}
	views := hits[uri]

	if s.cache != nil {
		_ = s.cache.SetEventViews(ctx, event.ID, views)
	}
	return views, nil
}
