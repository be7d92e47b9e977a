package settlement

import (
	"testing"

	"github.com/pactpoint/backend/internal/app/domain/bet"
	"github.com/pactpoint/backend/internal/app/domain/challenge"
)

func pot(b bet.Bet, challenges []challenge.Challenge) int64 {
	total := b.Amount
	for _, c := range challenges {
		if c.Eligible() {
			total += c.Amount
		}
	}
	return total
}

func TestWonPaysCreatorEverything(t *testing.T) {
	b := bet.Bet{ID: "b1", CreatorID: "creator", Amount: 7}
	challenges := []challenge.Challenge{
		{ChallengerID: "a", Amount: 4, Status: challenge.StatusPending},
		{ChallengerID: "b", Amount: 5, Status: challenge.StatusAccepted},
		{ChallengerID: "c", Amount: 9, Status: challenge.StatusRejected},
	}

	out := Won(b, challenges)
	if len(out.Credits) != 1 || out.Credits[0].UserID != "creator" {
		t.Fatalf("credits = %+v", out.Credits)
	}
	if out.Credits[0].Amount != 16 {
		t.Fatalf("creator payout = %d, want 16", out.Credits[0].Amount)
	}
	if out.Burned != 0 {
		t.Fatalf("burned = %d, want 0", out.Burned)
	}
}

func TestLostSplitsPotProportionally(t *testing.T) {
	// Creator staked 7; challengers staked 4 and 5. Each challenger gets
	// their stake back plus floor(stake/9 * 7); the dust point burns.
	b := bet.Bet{ID: "b1", CreatorID: "creator", Amount: 7}
	challenges := []challenge.Challenge{
		{ChallengerID: "a", Amount: 4, Status: challenge.StatusPending},
		{ChallengerID: "b", Amount: 5, Status: challenge.StatusPending},
	}

	out := Lost(b, challenges)
	want := map[string]int64{"a": 7, "b": 8}
	for _, c := range out.Credits {
		if c.Amount != want[c.UserID] {
			t.Fatalf("payout for %s = %d, want %d", c.UserID, c.Amount, want[c.UserID])
		}
		delete(want, c.UserID)
	}
	if len(want) != 0 {
		t.Fatalf("missing payouts: %v", want)
	}
	if out.Burned != 1 {
		t.Fatalf("burned = %d, want 1", out.Burned)
	}
}

func TestLostWithNoEligibleChallengersBurnsPot(t *testing.T) {
	b := bet.Bet{ID: "b1", CreatorID: "creator", Amount: 7}
	challenges := []challenge.Challenge{
		{ChallengerID: "a", Amount: 4, Status: challenge.StatusRejected},
	}

	out := Lost(b, challenges)
	if len(out.Credits) != 0 {
		t.Fatalf("credits = %+v, want none", out.Credits)
	}
	if out.Burned != 7 {
		t.Fatalf("burned = %d, want 7", out.Burned)
	}
}

func TestCancelledRefundsEveryone(t *testing.T) {
	b := bet.Bet{ID: "b1", CreatorID: "creator", Amount: 12}
	challenges := []challenge.Challenge{
		{ChallengerID: "a", Amount: 4, Status: challenge.StatusPending},
		{ChallengerID: "b", Amount: 5, Status: challenge.StatusAccepted},
		{ChallengerID: "c", Amount: 3, Status: challenge.StatusRejected},
	}

	out := Cancelled(b, challenges)
	want := map[string]int64{"creator": 12, "a": 4, "b": 5}
	for _, c := range out.Credits {
		if c.Amount != want[c.UserID] {
			t.Fatalf("refund for %s = %d, want %d", c.UserID, c.Amount, want[c.UserID])
		}
		delete(want, c.UserID)
	}
	if len(want) != 0 {
		t.Fatalf("missing refunds: %v", want)
	}
}

func TestOutcomesConservePoints(t *testing.T) {
	b := bet.Bet{ID: "b1", CreatorID: "creator", Amount: 13}
	challenges := []challenge.Challenge{
		{ChallengerID: "a", Amount: 3, Status: challenge.StatusPending},
		{ChallengerID: "b", Amount: 6, Status: challenge.StatusAccepted},
		{ChallengerID: "c", Amount: 2, Status: challenge.StatusPending},
		{ChallengerID: "d", Amount: 8, Status: challenge.StatusRejected},
	}
	total := pot(b, challenges)

	for name, out := range map[string]Outcome{
		"won":       Won(b, challenges),
		"lost":      Lost(b, challenges),
		"cancelled": Cancelled(b, challenges),
	} {
		if got := out.Total() + out.Burned; got != total {
			t.Fatalf("%s: credits+burned = %d, want %d", name, got, total)
		}
	}
}
