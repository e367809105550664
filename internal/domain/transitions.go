package domain

type transitionKey struct {
	state  EventState
	action StateAction
}

// Role-scoped transition tables. Keeping the two roles in separate tables
// (instead of one switch interpreting the action per caller) means an action
// missing from the caller's table is rejected outright, including an owner
// attempting PUBLISH_EVENT and an admin attempting SEND_TO_REVIEW.
var ownerTransitions = map[transitionKey]EventState{
	{EventPending, ActionSendToReview}:  EventPending, // idempotent no-op
	{EventPending, ActionCancelReview}:  EventCanceled,
	{EventCanceled, ActionSendToReview}: EventPending,
	{EventCanceled, ActionCancelReview}: EventCanceled, // idempotent no-op
}

var adminTransitions = map[transitionKey]EventState{
	{EventPending, ActionPublishEvent}: EventPublished,
	{EventPending, ActionRejectEvent}:  EventCanceled,
}

// OwnerTransition resolves an initiator action against the current state.
// PUBLISHED has no outgoing transitions for any role.
func OwnerTransition(state EventState, action StateAction) (EventState, error) {
	next, ok := ownerTransitions[transitionKey{state, action}]
	if !ok {
		return "", ErrInvalidAction
	}
	return next, nil
}

// AdminTransition resolves an administrator action against the current state.
func AdminTransition(state EventState, action StateAction) (EventState, error) {
	next, ok := adminTransitions[transitionKey{state, action}]
	if !ok {
		return "", ErrInvalidAction
	}
	return next, nil
}
