// Package settlement computes where every staked point goes when a bet
// resolves. The functions are pure so the payout rules can be tested without
// a store; Apply performs the credits inside the caller's transaction.
//
// Conservation rule: for any outcome, the sum of credits plus the burned
// remainder equals the bet amount plus all eligible challenger stakes.
package settlement

import (
	"context"

	"github.com/pactpoint/backend/internal/app/domain/bet"
	"github.com/pactpoint/backend/internal/app/domain/challenge"
	"github.com/pactpoint/backend/internal/app/storage"
)

// Credit is a single payout to a user.
type Credit struct {
	UserID string
	Amount int64
}

// Outcome lists the credits a resolution produces. Burned is the rounding
// remainder (or the whole pot when nobody is eligible to receive it); it
// leaves circulation permanently.
type Outcome struct {
	Credits []Credit
	Burned  int64
}

// Total returns the sum of all credits.
func (o Outcome) Total() int64 {
	var sum int64
	for _, c := range o.Credits {
		sum += c.Amount
	}
	return sum
}

func eligibleOf(challenges []challenge.Challenge) []challenge.Challenge {
	var out []challenge.Challenge
	for _, c := range challenges {
		if c.Eligible() {
			out = append(out, c)
		}
	}
	return out
}

// Won pays the creator their full stake back plus every eligible challenger's
// stake. Challenger stakes were debited at challenge time, so nothing else
// moves.
func Won(b bet.Bet, challenges []challenge.Challenge) Outcome {
	payout := b.Amount
	for _, c := range eligibleOf(challenges) {
		payout += c.Amount
	}
	if payout == 0 {
		return Outcome{}
	}
	return Outcome{Credits: []Credit{{UserID: b.CreatorID, Amount: payout}}}
}

// Lost returns each eligible challenger their stake plus a share of the
// creator's pot proportional to their stake, rounded down. The rounding dust
// is burned. With no eligible challengers the whole pot burns.
func Lost(b bet.Bet, challenges []challenge.Challenge) Outcome {
	eligible := eligibleOf(challenges)
	if len(eligible) == 0 {
		return Outcome{Burned: b.Amount}
	}

	var totalStake int64
	for _, c := range eligible {
		totalStake += c.Amount
	}

	out := Outcome{Credits: make([]Credit, 0, len(eligible))}
	var distributed int64
	for _, c := range eligible {
		share := c.Amount * b.Amount / totalStake
		distributed += share
		out.Credits = append(out.Credits, Credit{UserID: c.ChallengerID, Amount: c.Amount + share})
	}
	out.Burned = b.Amount - distributed
	return out
}

// Cancelled unwinds the bet: the creator gets the full pot back (their stake
// plus whatever they matched) and every pending or accepted challenger gets
// their stake back.
func Cancelled(b bet.Bet, challenges []challenge.Challenge) Outcome {
	out := Outcome{}
	if b.Amount > 0 {
		out.Credits = append(out.Credits, Credit{UserID: b.CreatorID, Amount: b.Amount})
	}
	for _, c := range eligibleOf(challenges) {
		out.Credits = append(out.Credits, Credit{UserID: c.ChallengerID, Amount: c.Amount})
	}
	return out
}

// Apply credits every payout inside the given transaction.
func Apply(ctx context.Context, tx storage.Tx, o Outcome) error {
	for _, c := range o.Credits {
		if err := tx.CreditUser(ctx, c.UserID, c.Amount); err != nil {
			return err
		}
	}
	return nil
}
