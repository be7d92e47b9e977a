package challenges

import (
	"context"
	"testing"
	"time"

	"github.com/pactpoint/backend/internal/app/domain/bet"
	"github.com/pactpoint/backend/internal/app/domain/challenge"
	"github.com/pactpoint/backend/internal/app/domain/user"
	betsvc "github.com/pactpoint/backend/internal/app/services/bets"
	"github.com/pactpoint/backend/internal/app/services/tribunal"
	"github.com/pactpoint/backend/internal/app/storage/memory"
	apperrors "github.com/pactpoint/backend/internal/errors"
)

var base = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func seedUser(t *testing.T, store *memory.Store, username string, pts int64) user.User {
	t.Helper()
	u, err := store.CreateUser(context.Background(), user.User{
		Username:       username,
		Email:          username + "@example.com",
		HashedPassword: "x",
		Points:         pts,
	})
	if err != nil {
		t.Fatalf("seed user %s: %v", username, err)
	}
	return u
}

func points(t *testing.T, store *memory.Store, id string) int64 {
	t.Helper()
	u, err := store.GetUser(context.Background(), id)
	if err != nil {
		t.Fatalf("get user %s: %v", id, err)
	}
	return u.Points
}

type fixture struct {
	store   *memory.Store
	svc     *Service
	creator user.User
	rival   user.User
	betID   string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	creator := seedUser(t, store, "alice", 10)
	rival := seedUser(t, store, "bob", 10)

	b, err := betsvc.New(store, nil, nil, nil).WithClock(fixedClock(base)).Create(
		context.Background(), creator.ID, betsvc.CreateInput{
			Title:    "I will run 5km every day",
			Amount:   7,
			Deadline: base.Add(24 * time.Hour),
		})
	if err != nil {
		t.Fatalf("create bet: %v", err)
	}

	return &fixture{
		store:   store,
		svc:     New(store, nil).WithClock(fixedClock(base)),
		creator: creator,
		rival:   rival,
		betID:   b.ID,
	}
}

func TestCreateDebitsChallengerImmediately(t *testing.T) {
	f := newFixture(t)

	c, err := f.svc.Create(context.Background(), f.rival.ID, f.betID, 4)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if c.Status != challenge.StatusPending {
		t.Fatalf("status = %s, want pending", c.Status)
	}
	if got := points(t, f.store, f.rival.ID); got != 6 {
		t.Fatalf("challenger points = %d, want 6", got)
	}
}

func TestCreateRejectsSelfChallenge(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(context.Background(), f.creator.ID, f.betID, 4)
	if !apperrors.IsCode(err, apperrors.CodeForbidden) {
		t.Fatalf("got %v", err)
	}
}

func TestCreateRejectsDuplicateChallenge(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.Create(ctx, f.rival.ID, f.betID, 2)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.svc.Create(ctx, f.rival.ID, f.betID, 3); !apperrors.IsCode(err, apperrors.CodeDuplicateChallenge) {
		t.Fatalf("duplicate: got %v", err)
	}
	if got := points(t, f.store, f.rival.ID); got != 8 {
		t.Fatalf("failed duplicate still debited: points = %d, want 8", got)
	}

	// A rejected challenge frees the user to challenge again.
	if _, err := f.svc.Reject(ctx, f.creator.ID, first.ID); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if _, err := f.svc.Create(ctx, f.rival.ID, f.betID, 3); err != nil {
		t.Fatalf("challenge after rejection: %v", err)
	}
}

func TestCreateRejectsAfterDeadline(t *testing.T) {
	f := newFixture(t)
	late := New(f.store, nil).WithClock(fixedClock(base.Add(25 * time.Hour)))

	_, err := late.Create(context.Background(), f.rival.ID, f.betID, 4)
	if !apperrors.IsCode(err, apperrors.CodeDeadlineExpired) {
		t.Fatalf("got %v", err)
	}
}

func TestCreateRejectsBadAmounts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Create(ctx, f.rival.ID, f.betID, 0); !apperrors.IsCode(err, apperrors.CodeInvalidAmount) {
		t.Fatalf("zero amount: got %v", err)
	}
	if _, err := f.svc.Create(ctx, f.rival.ID, f.betID, 11); !apperrors.IsCode(err, apperrors.CodeInsufficientFunds) {
		t.Fatalf("overdraft: got %v", err)
	}
	if got := points(t, f.store, f.rival.ID); got != 10 {
		t.Fatalf("challenger points = %d, want untouched 10", got)
	}
	list, err := f.svc.ListForBet(ctx, f.betID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("failed creates left %d challenges behind", len(list))
	}
}

func TestCreateRejectsUnknownBet(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(context.Background(), f.rival.ID, "missing", 4)
	if !apperrors.IsCode(err, apperrors.CodeNotFound) {
		t.Fatalf("got %v", err)
	}
}

func TestAcceptDebitsCreatorAndGrowsPot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c, err := f.svc.Create(ctx, f.rival.ID, f.betID, 3)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	accepted, err := f.svc.Accept(ctx, f.creator.ID, c.ID)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if accepted.Status != challenge.StatusAccepted {
		t.Fatalf("status = %s", accepted.Status)
	}
	// Creator started with 10, staked 7, matched 3.
	if got := points(t, f.store, f.creator.ID); got != 0 {
		t.Fatalf("creator points = %d, want 0", got)
	}
	b, err := f.store.GetBet(ctx, f.betID)
	if err != nil {
		t.Fatalf("get bet: %v", err)
	}
	if b.Amount != 10 {
		t.Fatalf("bet amount = %d, want 10", b.Amount)
	}
}

func TestAcceptRequiresCreatorAndPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c, err := f.svc.Create(ctx, f.rival.ID, f.betID, 3)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := f.svc.Accept(ctx, f.rival.ID, c.ID); !apperrors.IsCode(err, apperrors.CodeForbidden) {
		t.Fatalf("non-creator accept: got %v", err)
	}
	if _, err := f.svc.Accept(ctx, f.creator.ID, c.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, err := f.svc.Accept(ctx, f.creator.ID, c.ID); !apperrors.IsCode(err, apperrors.CodeInvalidState) {
		t.Fatalf("double accept: got %v", err)
	}
}

func TestAcceptFailsWhenCreatorCannotMatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Creator has 3 points left after staking 7.
	c, err := f.svc.Create(ctx, f.rival.ID, f.betID, 5)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.svc.Accept(ctx, f.creator.ID, c.ID); !apperrors.IsCode(err, apperrors.CodeInsufficientFunds) {
		t.Fatalf("got %v", err)
	}

	// Nothing moved: the challenge is still pending and the pot unchanged.
	got, err := f.store.GetChallenge(ctx, c.ID)
	if err != nil {
		t.Fatalf("get challenge: %v", err)
	}
	if got.Status != challenge.StatusPending {
		t.Fatalf("challenge status = %s, want pending", got.Status)
	}
	b, err := f.store.GetBet(ctx, f.betID)
	if err != nil {
		t.Fatalf("get bet: %v", err)
	}
	if b.Amount != 7 {
		t.Fatalf("bet amount = %d, want 7", b.Amount)
	}
}

func TestRejectRefundsChallenger(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c, err := f.svc.Create(ctx, f.rival.ID, f.betID, 4)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	rejected, err := f.svc.Reject(ctx, f.creator.ID, c.ID)
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rejected.Status != challenge.StatusRejected {
		t.Fatalf("status = %s", rejected.Status)
	}
	if got := points(t, f.store, f.rival.ID); got != 10 {
		t.Fatalf("challenger points = %d, want 10", got)
	}

	inbox, err := f.store.ListNotificationsForUser(ctx, f.rival.ID, 10)
	if err != nil || len(inbox) == 0 {
		t.Fatalf("challenger was not notified: %v", err)
	}
}

func TestRejectFailsOnceBetResolved(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	second := seedUser(t, f.store, "carol", 10)

	cA, err := f.svc.Create(ctx, f.rival.ID, f.betID, 4)
	if err != nil {
		t.Fatalf("create first challenge: %v", err)
	}
	if _, err := f.svc.Create(ctx, second.ID, f.betID, 5); err != nil {
		t.Fatalf("create second challenge: %v", err)
	}

	// Both challengers vote the proof down, resolving the bet LOST and
	// paying them stake plus their share of the creator's pot.
	trb := tribunal.New(f.store, nil, nil).WithClock(fixedClock(base.Add(time.Hour)))
	if _, err := trb.SubmitProof(ctx, f.creator.ID, f.betID, tribunal.ProofInput{Comment: "done"}); err != nil {
		t.Fatalf("submit proof: %v", err)
	}
	if _, err := trb.CastVote(ctx, f.rival.ID, f.betID, bet.VoteNotCool); err != nil {
		t.Fatalf("first vote: %v", err)
	}
	if _, err := trb.CastVote(ctx, second.ID, f.betID, bet.VoteNotCool); err != nil {
		t.Fatalf("second vote: %v", err)
	}
	if got := points(t, f.store, f.rival.ID); got != 13 {
		t.Fatalf("challenger points after loss = %d, want 13", got)
	}

	// The payout already covered the stake; a late reject must not mint a
	// second refund.
	if _, err := f.svc.Reject(ctx, f.creator.ID, cA.ID); !apperrors.IsCode(err, apperrors.CodeInvalidState) {
		t.Fatalf("reject on resolved bet: got %v", err)
	}
	if got := points(t, f.store, f.rival.ID); got != 13 {
		t.Fatalf("challenger points after rejected reject = %d, want 13", got)
	}
}

func TestRejectFailsDuringReview(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c, err := f.svc.Create(ctx, f.rival.ID, f.betID, 4)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	trb := tribunal.New(f.store, nil, nil).WithClock(fixedClock(base.Add(time.Hour)))
	if _, err := trb.SubmitProof(ctx, f.creator.ID, f.betID, tribunal.ProofInput{Comment: "done"}); err != nil {
		t.Fatalf("submit proof: %v", err)
	}

	// The eligible-voter set is fixed once the tribunal opens; the creator
	// cannot shrink it by rejecting challengers mid-vote.
	if _, err := f.svc.Reject(ctx, f.creator.ID, c.ID); !apperrors.IsCode(err, apperrors.CodeInvalidState) {
		t.Fatalf("reject during review: got %v", err)
	}
	if got := points(t, f.store, f.rival.ID); got != 6 {
		t.Fatalf("challenger points = %d, want 6", got)
	}
	if _, err := trb.CastVote(ctx, f.rival.ID, f.betID, bet.VoteNotCool); err != nil {
		t.Fatalf("challenger could not vote after failed reject: %v", err)
	}
}
