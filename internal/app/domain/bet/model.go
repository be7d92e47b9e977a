// Package bet holds the bet aggregate and its lifecycle rules. All status
// transitions go through the table in lifecycle.go; services never assign a
// status directly.
package bet

import "time"

// Status is the lifecycle state of a bet.
type Status string

const (
	// StatusActive accepts challenges and proof submissions.
	StatusActive Status = "active"
	// StatusAwaitingProof is the grace window after the deadline during
	// which the creator may still submit proof.
	StatusAwaitingProof Status = "awaiting_proof"
	// StatusUnderReview means proof is submitted and the tribunal is voting.
	StatusUnderReview Status = "under_review"
	StatusWon         Status = "won"
	StatusLost        Status = "lost"
	StatusCancelled   Status = "cancelled"
)

// Terminal reports whether no further transition exists out of s.
func (s Status) Terminal() bool {
	return s == StatusWon || s == StatusLost || s == StatusCancelled
}

// VoteValue is a tribunal verdict on submitted proof.
type VoteValue string

const (
	VoteCool    VoteValue = "cool"
	VoteNotCool VoteValue = "not_cool"
)

// Valid reports whether v is one of the two accepted verdicts.
func (v VoteValue) Valid() bool {
	return v == VoteCool || v == VoteNotCool
}

// Bet is a personal commitment staked with points. Amount starts as the
// creator's stake and grows by each accepted challenge, so it always equals
// everything the creator has at risk.
type Bet struct {
	ID        string
	CreatorID string
	Title     string
	Criteria  string
	Amount    int64
	Deadline  time.Time
	// ProofDeadline is set when the bet enters the grace window.
	ProofDeadline *time.Time
	Status        Status
	Stars         int64

	ProofComment     string
	ProofMediaURL    string
	ProofSubmittedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ProofSubmitted reports whether the creator has attached proof.
func (b Bet) ProofSubmitted() bool {
	return b.ProofSubmittedAt != nil
}

// ProofVote is a single tribunal verdict. Immutable once cast; at most one
// per (bet, voter) pair.
type ProofVote struct {
	ID        string
	BetID     string
	VoterID   string
	Value     VoteValue
	CreatedAt time.Time
}

// Star is a toggle-style reaction, unique per (bet, user) pair.
type Star struct {
	ID        string
	BetID     string
	UserID    string
	CreatedAt time.Time
}
