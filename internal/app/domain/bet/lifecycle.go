package bet

import (
	"fmt"

	apperrors "github.com/pactpoint/backend/internal/errors"
)

// Event is something that happens to a bet and may move it to a new status.
type Event string

const (
	// EventProofSubmitted fires when the creator attaches proof in time.
	EventProofSubmitted Event = "proof_submitted"
	// EventDeadlinePassed fires when the sweeper finds the deadline expired
	// and at least one eligible challenger exists.
	EventDeadlinePassed Event = "deadline_passed"
	// EventDeadlinePassedUnchallenged fires when the deadline expires with
	// no eligible challengers; there is nobody to run a tribunal.
	EventDeadlinePassedUnchallenged Event = "deadline_passed_unchallenged"
	// EventProofWindowExpired fires when the grace window elapses without proof.
	EventProofWindowExpired Event = "proof_window_expired"
	// EventMajorityCool fires when cool votes exceed half the eligible set.
	EventMajorityCool Event = "majority_cool"
	// EventVotesExhausted fires when every eligible voter has voted and the
	// cool count never crossed the threshold.
	EventVotesExhausted Event = "votes_exhausted"
	// EventCancelled fires when the creator withdraws the bet.
	EventCancelled Event = "cancelled"
)

// transitions is the closed table of legal (status, event) pairs. Anything
// absent is an invalid transition.
var transitions = map[Status]map[Event]Status{
	StatusActive: {
		EventProofSubmitted:             StatusUnderReview,
		EventDeadlinePassed:             StatusAwaitingProof,
		EventDeadlinePassedUnchallenged: StatusLost,
		EventCancelled:                  StatusCancelled,
	},
	// Cancellation is only legal while a bet is active: once the deadline
	// sweep or a proof submission has happened, challengers are owed a
	// tribunal outcome and the creator cannot withdraw.
	StatusAwaitingProof: {
		EventProofSubmitted:     StatusUnderReview,
		EventProofWindowExpired: StatusLost,
	},
	StatusUnderReview: {
		EventMajorityCool:   StatusWon,
		EventVotesExhausted: StatusLost,
	},
}

// Next returns the status a bet in the given state moves to on the event,
// or an InvalidState error when the transition does not exist.
func Next(current Status, ev Event) (Status, error) {
	if byEvent, ok := transitions[current]; ok {
		if next, ok := byEvent[ev]; ok {
			return next, nil
		}
	}
	return "", apperrors.InvalidState(
		fmt.Sprintf("bet in status %q does not accept event %q", current, ev))
}

// CanTransition reports whether the (status, event) pair is legal.
func CanTransition(current Status, ev Event) bool {
	_, err := Next(current, ev)
	return err == nil
}
