package domain

// InitialRequestStatus decides the status a new participation request is
// created with. Events that skip moderation, and events with no participant
// limit, confirm immediately; everything else starts PENDING.
func InitialRequestStatus(e *Event) RequestStatus {
	if !e.RequestModeration || e.ParticipantLimit == 0 {
		return RequestConfirmed
	}
	return RequestPending
}

// Vacancies returns the remaining admittable slots, or -1 when the event is
// unlimited (ParticipantLimit == 0).
func Vacancies(e *Event, confirmed int) int {
	if e.ParticipantLimit == 0 {
		return -1
	}
	v := e.ParticipantLimit - confirmed
	if v < 0 {
		v = 0
	}
	return v
}

// PlanAdmission assigns final statuses to a batch of pending requests.
//
// For REJECTED every request is rejected. For CONFIRMED the first
// min(vacancies, len) requests (in the caller's deterministic order) are
// confirmed and the overflow is rejected rather than failing the batch.
// vacancies < 0 means unlimited. Any other target is ErrInvalidAction.
//
// The caller must have verified vacancies > 0 (or unlimited) beforehand; a
// full event rejects the whole batch before any request is touched.
func PlanAdmission(pending []ParticipationRequest, vacancies int, target RequestStatus) (*ModerationResult, error) {
	res := &ModerationResult{}
	switch target {
	case RequestRejected:
		for i := range pending {
			pending[i].Status = RequestRejected
			res.Rejected = append(res.Rejected, pending[i])
		}
	case RequestConfirmed:
		for i := range pending {
			if vacancies < 0 || i < vacancies {
				pending[i].Status = RequestConfirmed
				res.Confirmed = append(res.Confirmed, pending[i])
			} else {
				pending[i].Status = RequestRejected
				res.Rejected = append(res.Rejected, pending[i])
			}
		}
	default:
		return nil, ErrInvalidAction
	}
	return res, nil
}
