package rest

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/citypulse/event-service/internal/domain"
	appCtx "github.com/citypulse/event-service/internal/pkg/context"
	"github.com/citypulse/event-service/internal/service"
	"github.com/citypulse/event-service/internal/transport/rest/response"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

type Handler struct {
	events   *service.EventService
	requests *service.RequestService
	enrich   *service.Enricher
}

func NewHandler(events *service.EventService, requests *service.RequestService, enrich *service.Enricher) *Handler {
	return &Handler{events: events, requests: requests, enrich: enrich}
}

func traceID(r *http.Request) string {
	id := appCtx.GetRequestID(r.Context())
	if id == "" {
		return "no-request-id"
	}
	return id
}

func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id, err == nil && id > 0
}

// authorizedUser resolves the {userID} path segment and checks it against the
// authenticated user. Tokens never grant access to another user's resources.
func (h *Handler) authorizedUser(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID, ok := pathID(r, "userID")
	if !ok {
		fail(w, r, http.StatusBadRequest, "request.invalid", "invalid userID", nil)
		return 0, false
	}
	auth, ok := GetAuth(r.Context())
	if !ok {
		fail(w, r, http.StatusUnauthorized, "auth.unauthorized", "unauthorized", nil)
		return 0, false
	}
	if auth.UserID != userID {
		fail(w, r, http.StatusForbidden, "auth.forbidden", "token does not match user", nil)
		return 0, false
	}
	return userID, true
}

func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authorizedUser(w, r)
	if !ok {
		return
	}

	var in newEventRequest
	if err := render.DecodeJSON(r.Body, &in); err != nil {
		fail(w, r, http.StatusBadRequest, "request.invalid", "invalid body", nil)
		return
	}
	n, err := in.toDomain()
	if err != nil {
		fail(w, r, http.StatusBadRequest, "request.invalid", "invalid eventDate", map[string]string{
			"eventDate": "expected " + dateTimeLayout,
		})
		return
	}

	created, err := h.events.Create(r.Context(), userID, n)
	if err != nil {
		handleErr(w, r, err)
		return
	}
	response.Data(w, http.StatusCreated, toEventView(created, 0, 0))
}

func (h *Handler) ListMyEvents(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authorizedUser(w, r)
	if !ok {
		return
	}
	from, size := parsePage(r.URL.Query().Get("from"), r.URL.Query().Get("size"))

	items, err := h.enrich.ListByInitiator(r.Context(), userID, from, size)
	if err != nil {
		handleErr(w, r, err)
		return
	}
	views := make([]eventView, 0, len(items))
	for i := range items {
		views = append(views, toEnrichedView(&items[i]))
	}
	response.Data(w, http.StatusOK, views)
}

func (h *Handler) GetMyEvent(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authorizedUser(w, r)
	if !ok {
		return
	}
	eventID, ok := pathID(r, "eventID")
	if !ok {
		fail(w, r, http.StatusBadRequest, "request.invalid", "invalid eventID", nil)
		return
	}

	item, err := h.enrich.GetByInitiator(r.Context(), userID, eventID)
	if err != nil {
		handleErr(w, r, err)
		return
	}
	response.Data(w, http.StatusOK, toEnrichedView(item))
}

func (h *Handler) UpdateMyEvent(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authorizedUser(w, r)
	if !ok {
		return
	}
	eventID, ok := pathID(r, "eventID")
	if !ok {
		fail(w, r, http.StatusBadRequest, "request.invalid", "invalid eventID", nil)
		return
	}

	var in updateEventRequest
	if err := render.DecodeJSON(r.Body, &in); err != nil {
		fail(w, r, http.StatusBadRequest, "request.invalid", "invalid body", nil)
		return
	}
	patch, err := in.toDomain()
	if err != nil {
		fail(w, r, http.StatusBadRequest, "request.invalid", "invalid eventDate", nil)
		return
	}

	updated, err := h.events.UpdateByInitiator(r.Context(), userID, eventID, patch)
	if err != nil {
		handleErr(w, r, err)
		return
	}
	response.Data(w, http.StatusOK, toEventView(updated, 0, 0))
}

func (h *Handler) EventRequests(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authorizedUser(w, r)
	if !ok {
		return
	}
	eventID, ok := pathID(r, "eventID")
	if !ok {
		fail(w, r, http.StatusBadRequest, "request.invalid", "invalid eventID", nil)
		return
	}

	items, err := h.requests.ListByEventInitiator(r.Context(), userID, eventID)
	if err != nil {
		handleErr(w, r, err)
		return
	}
	response.Data(w, http.StatusOK, toRequestViews(items))
}

func (h *Handler) ModerateRequests(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authorizedUser(w, r)
	if !ok {
		return
	}
	eventID, ok := pathID(r, "eventID")
	if !ok {
		fail(w, r, http.StatusBadRequest, "request.invalid", "invalid eventID", nil)
		return
	}

	var in moderationRequest
	if err := render.DecodeJSON(r.Body, &in); err != nil {
		fail(w, r, http.StatusBadRequest, "request.invalid", "invalid body", nil)
		return
	}
	target := domain.RequestStatus(strings.TrimSpace(in.Status))

	res, err := h.requests.Moderate(r.Context(), traceID(r), userID, eventID, in.RequestIDs, target)
	if err != nil {
		handleErr(w, r, err)
		return
	}
	response.Data(w, http.StatusOK, moderationView{
		ConfirmedRequests: toRequestViews(res.Confirmed),
		RejectedRequests:  toRequestViews(res.Rejected),
	})
}

func (h *Handler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authorizedUser(w, r)
	if !ok {
		return
	}
	eventID, err := strconv.ParseInt(r.URL.Query().Get("eventId"), 10, 64)
	if err != nil || eventID <= 0 {
		fail(w, r, http.StatusBadRequest, "request.invalid", "invalid eventId", map[string]string{
			"eventId": "must be a positive integer",
		})
		return
	}

	req, err := h.requests.Create(r.Context(), traceID(r), userID, eventID)
	if err != nil {
		handleErr(w, r, err)
		return
	}
	response.Data(w, http.StatusCreated, toRequestView(req))
}

func (h *Handler) MyRequests(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authorizedUser(w, r)
	if !ok {
		return
	}

	items, err := h.requests.ListByRequester(r.Context(), userID)
	if err != nil {
		handleErr(w, r, err)
		return
	}
	response.Data(w, http.StatusOK, toRequestViews(items))
}

func (h *Handler) CancelRequest(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authorizedUser(w, r)
	if !ok {
		return
	}
	requestID, ok := pathID(r, "requestID")
	if !ok {
		fail(w, r, http.StatusBadRequest, "request.invalid", "invalid requestID", nil)
		return
	}

	req, err := h.requests.Cancel(r.Context(), traceID(r), userID, requestID)
	if err != nil {
		handleErr(w, r, err)
		return
	}
	response.Data(w, http.StatusOK, toRequestView(req))
}

func (h *Handler) AdminListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, size := parsePage(q.Get("from"), q.Get("size"))

	f := domain.AdminEventFilter{
		InitiatorIDs: parseIDList(q.Get("users")),
		CategoryIDs:  parseIDList(q.Get("categories")),
		From:         from,
		Size:         size,
	}
	for _, s := range strings.Split(q.Get("states"), ",") {
		if s = strings.TrimSpace(s); s != "" {
			f.States = append(f.States, domain.EventState(s))
		}
	}
	if s := strings.TrimSpace(q.Get("rangeStart")); s != "" {
		t, err := parseDateTime(s)
		if err != nil {
			fail(w, r, http.StatusBadRequest, "request.invalid", "invalid rangeStart", nil)
			return
		}
		f.RangeStart = &t
	}
	if s := strings.TrimSpace(q.Get("rangeEnd")); s != "" {
		t, err := parseDateTime(s)
		if err != nil {
			fail(w, r, http.StatusBadRequest, "request.invalid", "invalid rangeEnd", nil)
			return
		}
		f.RangeEnd = &t
	}

	items, err := h.events.ListByAdmin(r.Context(), f)
	if err != nil {
		handleErr(w, r, err)
		return
	}
	views := make([]eventView, 0, len(items))
	for i := range items {
		views = append(views, toEventView(&items[i], 0, 0))
	}
	response.Data(w, http.StatusOK, views)
}

func (h *Handler) AdminUpdateEvent(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathID(r, "eventID")
	if !ok {
		fail(w, r, http.StatusBadRequest, "request.invalid", "invalid eventID", nil)
		return
	}

	var in updateEventRequest
	if err := render.DecodeJSON(r.Body, &in); err != nil {
		fail(w, r, http.StatusBadRequest, "request.invalid", "invalid body", nil)
		return
	}
	patch, err := in.toDomain()
	if err != nil {
		fail(w, r, http.StatusBadRequest, "request.invalid", "invalid eventDate", nil)
		return
	}

	updated, err := h.events.UpdateByAdmin(r.Context(), eventID, patch)
	if err != nil {
		handleErr(w, r, err)
		return
	}
	response.Data(w, http.StatusOK, toEventView(updated, 0, 0))
}

func (h *Handler) PublicEvent(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathID(r, "eventID")
	if !ok {
		fail(w, r, http.StatusBadRequest, "request.invalid", "invalid eventID", nil)
		return
	}

	item, err := h.enrich.GetPublished(r.Context(), eventID, clientIP(r))
	if err != nil {
		handleErr(w, r, err)
		return
	}
	response.Data(w, http.StatusOK, toEnrichedView(item))
}
