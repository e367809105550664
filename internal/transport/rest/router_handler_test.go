package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/citypulse/event-service/internal/domain"
	"github.com/citypulse/event-service/internal/security"
	"github.com/citypulse/event-service/internal/service"
	"github.com/citypulse/event-service/internal/transport/rest/response"
	"github.com/stretchr/testify/require"
)

type fakeVerifier struct {
	claims security.TokenClaims
	err    error
}

func (f fakeVerifier) VerifyAccessToken(token string) (security.TokenClaims, error) {
	return f.claims, f.err
}

type fakeCache struct {
	allow bool
	views map[int64]int64
}

func newFakeCache() *fakeCache {
	return &fakeCache{allow: true, views: map[int64]int64{}}
}

func (c *fakeCache) GetEventViews(ctx context.Context, eventID int64) (int64, error) {
	v, ok := c.views[eventID]
	if !ok {
		return 0, domain.ErrCacheMiss
	}
	return v, nil
}

func (c *fakeCache) SetEventViews(ctx context.Context, eventID int64, views int64) error {
	c.views[eventID] = views
	return nil
}

func (c *fakeCache) AllowRequest(ctx context.Context, ip string, limit int, window time.Duration) (bool, error) {
	return c.allow, nil
}

type fakeStores struct {
	createFn     func(ctx context.Context, e *domain.Event) (*domain.Event, error)
	updateFn     func(ctx context.Context, e *domain.Event, prev domain.EventState) (*domain.Event, error)
	getFn        func(ctx context.Context, id int64) (*domain.Event, error)
	getOwnFn     func(ctx context.Context, id, initiatorID int64) (*domain.Event, error)
	getPubFn     func(ctx context.Context, id int64) (*domain.Event, error)
	listOwnFn    func(ctx context.Context, initiatorID int64, from, size int) ([]domain.Event, error)
	listAdminFn  func(ctx context.Context, f domain.AdminEventFilter) ([]domain.Event, error)
	admitFn      func(ctx context.Context, tid string, requesterID, eventID int64) (*domain.ParticipationRequest, error)
	moderateFn   func(ctx context.Context, tid string, initiatorID, eventID int64, ids []int64, target domain.RequestStatus) (*domain.ModerationResult, error)
	cancelFn     func(ctx context.Context, tid string, requesterID, requestID int64) (*domain.ParticipationRequest, error)
	listReqFn    func(ctx context.Context, requesterID int64) ([]domain.ParticipationRequest, error)
	listByInitFn func(ctx context.Context, eventID, initiatorID int64) ([]domain.ParticipationRequest, error)
	countFn      func(ctx context.Context, eventID int64) (int, error)
}

var errNotStubbed = errors.New("not stubbed")

func (f *fakeStores) Create(ctx context.Context, e *domain.Event) (*domain.Event, error) {
	if f.createFn == nil {
		return nil, errNotStubbed
	}
	return f.createFn(ctx, e)
}
func (f *fakeStores) Update(ctx context.Context, e *domain.Event, prev domain.EventState) (*domain.Event, error) {
	if f.updateFn == nil {
		return nil, errNotStubbed
	}
	return f.updateFn(ctx, e, prev)
}
func (f *fakeStores) GetByID(ctx context.Context, id int64) (*domain.Event, error) {
	if f.getFn == nil {
		return nil, errNotStubbed
	}
	return f.getFn(ctx, id)
}
func (f *fakeStores) GetByIDAndInitiator(ctx context.Context, id, initiatorID int64) (*domain.Event, error) {
	if f.getOwnFn == nil {
		return nil, errNotStubbed
	}
	return f.getOwnFn(ctx, id, initiatorID)
}
func (f *fakeStores) GetPublishedByID(ctx context.Context, id int64) (*domain.Event, error) {
	if f.getPubFn == nil {
		return nil, errNotStubbed
	}
	return f.getPubFn(ctx, id)
}
func (f *fakeStores) ListByInitiator(ctx context.Context, initiatorID int64, from, size int) ([]domain.Event, error) {
	if f.listOwnFn == nil {
		return nil, errNotStubbed
	}
	return f.listOwnFn(ctx, initiatorID, from, size)
}
func (f *fakeStores) ListAdmin(ctx context.Context, filter domain.AdminEventFilter) ([]domain.Event, error) {
	if f.listAdminFn == nil {
		return nil, errNotStubbed
	}
	return f.listAdminFn(ctx, filter)
}

func (f *fakeStores) Admit(ctx context.Context, tid string, requesterID, eventID int64) (*domain.ParticipationRequest, error) {
	if f.admitFn == nil {
		return nil, errNotStubbed
	}
	return f.admitFn(ctx, tid, requesterID, eventID)
}
func (f *fakeStores) Moderate(ctx context.Context, tid string, initiatorID, eventID int64, ids []int64, target domain.RequestStatus) (*domain.ModerationResult, error) {
	if f.moderateFn == nil {
		return nil, errNotStubbed
	}
	return f.moderateFn(ctx, tid, initiatorID, eventID, ids, target)
}
func (f *fakeStores) Cancel(ctx context.Context, tid string, requesterID, requestID int64) (*domain.ParticipationRequest, error) {
	if f.cancelFn == nil {
		return nil, errNotStubbed
	}
	return f.cancelFn(ctx, tid, requesterID, requestID)
}
func (f *fakeStores) ListByRequester(ctx context.Context, requesterID int64) ([]domain.ParticipationRequest, error) {
	if f.listReqFn == nil {
		return nil, errNotStubbed
	}
	return f.listReqFn(ctx, requesterID)
}
func (f *fakeStores) ListByEventInitiator(ctx context.Context, eventID, initiatorID int64) ([]domain.ParticipationRequest, error) {
	if f.listByInitFn == nil {
		return nil, errNotStubbed
	}
	return f.listByInitFn(ctx, eventID, initiatorID)
}
func (f *fakeStores) CountConfirmed(ctx context.Context, eventID int64) (int, error) {
	if f.countFn == nil {
		return 0, nil
	}
	return f.countFn(ctx, eventID)
}

// Directory: every id resolves, keeps handler tests focused on transport.
func (f *fakeStores) UserExists(ctx context.Context, id int64) (bool, error)     { return true, nil }
func (f *fakeStores) CategoryExists(ctx context.Context, id int64) (bool, error) { return true, nil }

func newTestRouter(stores *fakeStores, cache *fakeCache, claims security.TokenClaims) http.Handler {
	events := service.NewEventService(stores, stores, nil)
	requests := service.NewRequestService(stores, stores, stores, nil)
	enrich := service.NewEnricher(stores, stores, stores, nil, cache)

	return NewRouter(RouterDeps{
		Cache:     cache,
		Handler:   NewHandler(events, requests, enrich),
		Verifier:  fakeVerifier{claims: claims},
		JWTIssuer: "auth-service",
	})
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) response.ErrorBody {
	t.Helper()
	var body response.ErrorBody
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body
}

func userClaims(id int64) security.TokenClaims {
	return security.TokenClaims{UserID: id, Role: "user", Issuer: "auth-service"}
}

func TestNewRouter_PanicsOnNilDeps(t *testing.T) {
	cache := newFakeCache()
	h := NewHandler(nil, nil, nil)

	require.Panics(t, func() {
		_ = NewRouter(RouterDeps{Cache: nil, Handler: h, Verifier: fakeVerifier{}, JWTIssuer: "x"})
	})
	require.Panics(t, func() {
		_ = NewRouter(RouterDeps{Cache: cache, Handler: nil, Verifier: fakeVerifier{}, JWTIssuer: "x"})
	})
	require.Panics(t, func() {
		_ = NewRouter(RouterDeps{Cache: cache, Handler: h, Verifier: nil, JWTIssuer: "x"})
	})
}

func TestRouter_CreateEvent_Created_201(t *testing.T) {
	stores := &fakeStores{
		createFn: func(ctx context.Context, e *domain.Event) (*domain.Event, error) {
			out := *e
			out.ID = 42
			return &out, nil
		},
	}
	r := newTestRouter(stores, newFakeCache(), userClaims(7))

	date := time.Now().Add(72 * time.Hour).UTC().Format(dateTimeLayout)
	body := `{
		"title": "City marathon",
		"annotation": "An annotation long enough to pass validation",
		"description": "A description long enough to pass validation too",
		"category": 3,
		"eventDate": "` + date + `",
		"location": {"lat": 55.75, "lon": 37.62}
	}`

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/7/events", bytes.NewBufferString(body))
	req.Header.Set("Authorization", "Bearer ok")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusCreated, rr.Code)

	var env struct {
		Data eventView `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	require.Equal(t, int64(42), env.Data.ID)
	require.Equal(t, "PENDING", env.Data.State)
	require.True(t, env.Data.RequestModeration)
}

func TestRouter_CreateEvent_InvalidJSON_400(t *testing.T) {
	r := newTestRouter(&fakeStores{}, newFakeCache(), userClaims(7))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/7/events", bytes.NewBufferString("{bad"))
	req.Header.Set("Authorization", "Bearer ok")
	req.Header.Set("X-Request-Id", "rid-1")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)
	errBody := decodeError(t, rr)
	require.Equal(t, "request.invalid", errBody.Error.Code)
	require.Equal(t, "rid-1", errBody.Error.RequestID)
}

func TestRouter_CreateEvent_ShortLeadTime_400(t *testing.T) {
	r := newTestRouter(&fakeStores{}, newFakeCache(), userClaims(7))

	date := time.Now().Add(30 * time.Minute).UTC().Format(dateTimeLayout)
	body := `{
		"title": "City marathon",
		"annotation": "An annotation long enough to pass validation",
		"description": "A description long enough to pass validation too",
		"category": 3,
		"eventDate": "` + date + `",
		"location": {"lat": 0, "lon": 0}
	}`

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/7/events", bytes.NewBufferString(body))
	req.Header.Set("Authorization", "Bearer ok")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "request.invalid", decodeError(t, rr).Error.Code)
}

func TestRouter_PathUserMismatch_403(t *testing.T) {
	r := newTestRouter(&fakeStores{}, newFakeCache(), userClaims(7))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/8/requests", nil)
	req.Header.Set("Authorization", "Bearer ok")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusForbidden, rr.Code)
	require.Equal(t, "auth.forbidden", decodeError(t, rr).Error.Code)
}

func TestRouter_MissingToken_401(t *testing.T) {
	r := newTestRouter(&fakeStores{}, newFakeCache(), userClaims(7))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/7/requests", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestRouter_CreateRequest_Duplicate_409(t *testing.T) {
	stores := &fakeStores{
		admitFn: func(ctx context.Context, tid string, requesterID, eventID int64) (*domain.ParticipationRequest, error) {
			return nil, domain.ErrDuplicateRequest
		},
	}
	r := newTestRouter(stores, newFakeCache(), userClaims(9))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/9/requests?eventId=5", nil)
	req.Header.Set("Authorization", "Bearer ok")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusConflict, rr.Code)
	require.Equal(t, "request.duplicate", decodeError(t, rr).Error.Code)
}

func TestRouter_CreateRequest_Created_201(t *testing.T) {
	stores := &fakeStores{
		admitFn: func(ctx context.Context, tid string, requesterID, eventID int64) (*domain.ParticipationRequest, error) {
			require.Equal(t, int64(9), requesterID)
			require.Equal(t, int64(5), eventID)
			return &domain.ParticipationRequest{
				ID: 1, EventID: eventID, RequesterID: requesterID,
				Status: domain.RequestPending, Created: time.Now(),
			}, nil
		},
	}
	r := newTestRouter(stores, newFakeCache(), userClaims(9))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/9/requests?eventId=5", nil)
	req.Header.Set("Authorization", "Bearer ok")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusCreated, rr.Code)

	var env struct {
		Data requestView `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	require.Equal(t, "PENDING", env.Data.Status)
}

func TestRouter_ModerateRequests_LimitReached_409(t *testing.T) {
	stores := &fakeStores{
		moderateFn: func(ctx context.Context, tid string, initiatorID, eventID int64, ids []int64, target domain.RequestStatus) (*domain.ModerationResult, error) {
			return nil, domain.ErrLimitReached
		},
	}
	r := newTestRouter(stores, newFakeCache(), userClaims(7))

	body := `{"requestIds":[1,2],"status":"CONFIRMED"}`
	req := httptest.NewRequest(http.MethodPatch, "/api/v1/users/7/events/5/requests", bytes.NewBufferString(body))
	req.Header.Set("Authorization", "Bearer ok")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusConflict, rr.Code)
	require.Equal(t, "request.limit_reached", decodeError(t, rr).Error.Code)
}

func TestRouter_ModerateRequests_Partition_200(t *testing.T) {
	stores := &fakeStores{
		moderateFn: func(ctx context.Context, tid string, initiatorID, eventID int64, ids []int64, target domain.RequestStatus) (*domain.ModerationResult, error) {
			return &domain.ModerationResult{
				Confirmed: []domain.ParticipationRequest{{ID: 1, Status: domain.RequestConfirmed}},
				Rejected:  []domain.ParticipationRequest{{ID: 2, Status: domain.RequestRejected}},
			}, nil
		},
	}
	r := newTestRouter(stores, newFakeCache(), userClaims(7))

	body := `{"requestIds":[1,2],"status":"CONFIRMED"}`
	req := httptest.NewRequest(http.MethodPatch, "/api/v1/users/7/events/5/requests", bytes.NewBufferString(body))
	req.Header.Set("Authorization", "Bearer ok")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var env struct {
		Data moderationView `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	require.Len(t, env.Data.ConfirmedRequests, 1)
	require.Len(t, env.Data.RejectedRequests, 1)
}

func TestRouter_AdminEvents_RequiresAdminRole(t *testing.T) {
	stores := &fakeStores{
		listAdminFn: func(ctx context.Context, f domain.AdminEventFilter) ([]domain.Event, error) {
			return nil, nil
		},
	}

	t.Run("plain user forbidden", func(t *testing.T) {
		r := newTestRouter(stores, newFakeCache(), userClaims(7))

		req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/events", nil)
		req.Header.Set("Authorization", "Bearer ok")
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)

		require.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("admin allowed", func(t *testing.T) {
		r := newTestRouter(stores, newFakeCache(), security.TokenClaims{
			UserID: 1, Role: "admin", Issuer: "auth-service",
		})

		req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/events?states=PENDING&from=0&size=10", nil)
		req.Header.Set("Authorization", "Bearer ok")
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)
	})
}

func TestRouter_PublicEvent_NoAuthRequired(t *testing.T) {
	pub := time.Now().Add(-time.Hour)
	stores := &fakeStores{
		getPubFn: func(ctx context.Context, id int64) (*domain.Event, error) {
			return &domain.Event{
				ID: id, InitiatorID: 7, State: domain.EventPublished,
				EventDate: time.Now().Add(48 * time.Hour), PublishedOn: &pub,
			}, nil
		},
		countFn: func(ctx context.Context, eventID int64) (int, error) { return 3, nil },
	}
	r := newTestRouter(stores, newFakeCache(), userClaims(7))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/events/5", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var env struct {
		Data eventView `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	require.Equal(t, 3, env.Data.ConfirmedRequests)
}

func TestRouter_PublicEvent_NotPublished_404(t *testing.T) {
	stores := &fakeStores{
		getPubFn: func(ctx context.Context, id int64) (*domain.Event, error) {
			return nil, domain.ErrEventNotFound
		},
	}
	r := newTestRouter(stores, newFakeCache(), userClaims(7))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/events/5", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusNotFound, rr.Code)
	require.Equal(t, "event.not_found", decodeError(t, rr).Error.Code)
}

func TestRouter_RateLimit_429(t *testing.T) {
	cache := newFakeCache()
	cache.allow = false
	r := newTestRouter(&fakeStores{}, cache, userClaims(7))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/events/5", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusTooManyRequests, rr.Code)
}

func TestRouter_SecurityHeaders_PresentOnOK(t *testing.T) {
	pub := time.Now().Add(-time.Hour)
	stores := &fakeStores{
		getPubFn: func(ctx context.Context, id int64) (*domain.Event, error) {
			return &domain.Event{ID: id, State: domain.EventPublished, PublishedOn: &pub}, nil
		},
	}
	r := newTestRouter(stores, newFakeCache(), userClaims(7))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/events/5", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	require.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))
	require.NotEmpty(t, rr.Header().Get("Content-Security-Policy"))
}
