package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pactpoint/backend/internal/app/domain/bet"
	"github.com/pactpoint/backend/internal/app/domain/user"
	"github.com/pactpoint/backend/internal/app/storage"
	apperrors "github.com/pactpoint/backend/internal/errors"
)

func seedUser(t *testing.T, s *Store, username string, points int64) user.User {
	t.Helper()
	u, err := s.CreateUser(context.Background(), user.User{
		Username:       username,
		Email:          username + "@example.com",
		HashedPassword: "x",
		Points:         points,
	})
	if err != nil {
		t.Fatalf("seed %s: %v", username, err)
	}
	return u
}

func TestWithinTxRestoresStateOnError(t *testing.T) {
	s := New()
	ctx := context.Background()
	u := seedUser(t, s, "alice", 10)

	boom := errors.New("boom")
	err := s.WithinTx(ctx, func(tx storage.Tx) error {
		if err := tx.DebitUser(ctx, u.ID, 5); err != nil {
			return err
		}
		if _, err := tx.CreateBet(ctx, bet.Bet{
			CreatorID: u.ID,
			Title:     "doomed",
			Amount:    5,
			Deadline:  time.Now().Add(time.Hour),
			Status:    bet.StatusActive,
		}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithinTx err = %v", err)
	}

	got, err := s.GetUser(ctx, u.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if got.Points != 10 {
		t.Fatalf("points after rollback = %d, want 10", got.Points)
	}
	if _, total, err := s.ListBetsPublic(ctx, 0, 10); err != nil || total != 0 {
		t.Fatalf("bets after rollback: total=%d err=%v", total, err)
	}
}

func TestUniqueUsernameAndEmailIgnoreCase(t *testing.T) {
	s := New()
	ctx := context.Background()
	seedUser(t, s, "alice", 10)

	_, err := s.CreateUser(ctx, user.User{Username: "ALICE", Email: "new@example.com", Points: 10})
	if !apperrors.IsCode(err, apperrors.CodeAlreadyExists) {
		t.Fatalf("duplicate username: got %v", err)
	}
	_, err = s.CreateUser(ctx, user.User{Username: "fresh", Email: "Alice@Example.com", Points: 10})
	if !apperrors.IsCode(err, apperrors.CodeAlreadyExists) {
		t.Fatalf("duplicate email: got %v", err)
	}
}

func TestDebitUserFailsInsteadOfGoingNegative(t *testing.T) {
	s := New()
	ctx := context.Background()
	u := seedUser(t, s, "alice", 3)

	if err := s.DebitUser(ctx, u.ID, 4); !apperrors.IsCode(err, apperrors.CodeInsufficientFunds) {
		t.Fatalf("overdraft: got %v", err)
	}
	got, _ := s.GetUser(ctx, u.ID)
	if got.Points != 3 {
		t.Fatalf("points = %d, want 3", got.Points)
	}
}

func TestDuplicateVoteRejected(t *testing.T) {
	s := New()
	ctx := context.Background()
	u := seedUser(t, s, "alice", 10)
	b, err := s.CreateBet(ctx, bet.Bet{
		CreatorID: u.ID,
		Title:     "t",
		Amount:    1,
		Deadline:  time.Now().Add(time.Hour),
		Status:    bet.StatusUnderReview,
	})
	if err != nil {
		t.Fatalf("create bet: %v", err)
	}

	if _, err := s.CreateVote(ctx, bet.ProofVote{BetID: b.ID, VoterID: u.ID, Value: bet.VoteCool}); err != nil {
		t.Fatalf("first vote: %v", err)
	}
	if _, err := s.CreateVote(ctx, bet.ProofVote{BetID: b.ID, VoterID: u.ID, Value: bet.VoteNotCool}); !apperrors.IsCode(err, apperrors.CodeAlreadyVoted) {
		t.Fatalf("second vote: got %v", err)
	}
}

func TestListDueBets(t *testing.T) {
	s := New()
	ctx := context.Background()
	u := seedUser(t, s, "alice", 10)
	now := time.Now().UTC()

	mk := func(status bet.Status, deadline time.Time, proofDeadline *time.Time) bet.Bet {
		b, err := s.CreateBet(ctx, bet.Bet{
			CreatorID:     u.ID,
			Title:         "t",
			Amount:        1,
			Deadline:      deadline,
			ProofDeadline: proofDeadline,
			Status:        status,
		})
		if err != nil {
			t.Fatalf("create bet: %v", err)
		}
		return b
	}

	overdue := mk(bet.StatusActive, now.Add(-time.Hour), nil)
	mk(bet.StatusActive, now.Add(time.Hour), nil)
	expired := now.Add(-time.Minute)
	grace := mk(bet.StatusAwaitingProof, now.Add(-2*time.Hour), &expired)
	open := now.Add(time.Hour)
	mk(bet.StatusAwaitingProof, now.Add(-2*time.Hour), &open)
	mk(bet.StatusWon, now.Add(-time.Hour), nil)

	due, err := s.ListDueBets(ctx, now, 10)
	if err != nil {
		t.Fatalf("list due: %v", err)
	}
	ids := map[string]bool{}
	for _, b := range due {
		ids[b.ID] = true
	}
	if len(due) != 2 || !ids[overdue.ID] || !ids[grace.ID] {
		t.Fatalf("due = %d bets %v, want exactly overdue and grace-expired", len(due), ids)
	}
}

func TestStarLifecycle(t *testing.T) {
	s := New()
	ctx := context.Background()
	u := seedUser(t, s, "alice", 10)
	b, err := s.CreateBet(ctx, bet.Bet{
		CreatorID: u.ID,
		Title:     "t",
		Amount:    1,
		Deadline:  time.Now().Add(time.Hour),
		Status:    bet.StatusActive,
	})
	if err != nil {
		t.Fatalf("create bet: %v", err)
	}

	if _, err := s.GetStar(ctx, b.ID, u.ID); !apperrors.IsCode(err, apperrors.CodeNotFound) {
		t.Fatalf("missing star: got %v", err)
	}
	if _, err := s.CreateStar(ctx, bet.Star{BetID: b.ID, UserID: u.ID}); err != nil {
		t.Fatalf("create star: %v", err)
	}
	if _, err := s.GetStar(ctx, b.ID, u.ID); err != nil {
		t.Fatalf("get star: %v", err)
	}
	if err := s.DeleteStar(ctx, b.ID, u.ID); err != nil {
		t.Fatalf("delete star: %v", err)
	}
	if _, err := s.GetStar(ctx, b.ID, u.ID); !apperrors.IsCode(err, apperrors.CodeNotFound) {
		t.Fatalf("star after delete: got %v", err)
	}
}
