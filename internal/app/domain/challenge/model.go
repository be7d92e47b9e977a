package challenge

import "time"

// Status is the lifecycle state of a challenge.
type Status string

const (
	// StatusPending means the stake is taken but the creator has not
	// matched it yet. Pending challengers still vote and share payouts.
	StatusPending Status = "pending"
	// StatusAccepted means the creator matched the stake.
	StatusAccepted Status = "accepted"
	// StatusRejected means the creator declined; the stake was refunded.
	StatusRejected Status = "rejected"
	// StatusCancelled means the bet was cancelled; the stake was refunded.
	StatusCancelled Status = "cancelled"
)

// Challenge is a counter-stake wagering that the bet creator will fail.
// The challenger's points are debited the moment the challenge is created.
type Challenge struct {
	ID           string
	BetID        string
	ChallengerID string
	Amount       int64
	Status       Status
	CreatedAt    time.Time
}

// Eligible reports whether the challenge counts toward the tribunal and the
// settlement pool: pending and accepted challenges both qualify.
func (c Challenge) Eligible() bool {
	return c.Status == StatusPending || c.Status == StatusAccepted
}
