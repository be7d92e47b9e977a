// Package storage declares the persistence contracts for the betting
// domain. Two implementations exist: storage/memory for tests and local
// development, and storage/postgres for production.
package storage

import (
	"context"
	"time"

	"github.com/pactpoint/backend/internal/app/domain/bet"
	"github.com/pactpoint/backend/internal/app/domain/challenge"
	"github.com/pactpoint/backend/internal/app/domain/notification"
	"github.com/pactpoint/backend/internal/app/domain/user"
)

// UserStore persists user accounts. DebitUser and CreditUser are the only
// legal ways to change a balance; both must be atomic at the row level and
// DebitUser must fail with InsufficientFunds rather than go negative.
type UserStore interface {
	CreateUser(ctx context.Context, u user.User) (user.User, error)
	GetUser(ctx context.Context, id string) (user.User, error)
	GetUserByUsername(ctx context.Context, username string) (user.User, error)
	GetUserByEmail(ctx context.Context, email string) (user.User, error)
	ListUsers(ctx context.Context) ([]user.User, error)

	DebitUser(ctx context.Context, id string, amount int64) error
	CreditUser(ctx context.Context, id string, amount int64) error
}

// BetStore persists bet aggregates.
type BetStore interface {
	CreateBet(ctx context.Context, b bet.Bet) (bet.Bet, error)
	UpdateBet(ctx context.Context, b bet.Bet) (bet.Bet, error)
	GetBet(ctx context.Context, id string) (bet.Bet, error)
	// ListBetsByCreator returns the creator's bets newest first, plus the
	// total count for pagination.
	ListBetsByCreator(ctx context.Context, creatorID string, offset, limit int) ([]bet.Bet, int64, error)
	// ListBetsPublic returns all bets ordered by stars then recency, plus
	// the total count.
	ListBetsPublic(ctx context.Context, offset, limit int) ([]bet.Bet, int64, error)
	// ListDueBets returns bets the sweeper must act on: ACTIVE past their
	// deadline, or AWAITING_PROOF past their proof deadline.
	ListDueBets(ctx context.Context, now time.Time, limit int) ([]bet.Bet, error)
}

// ChallengeStore persists challenges.
type ChallengeStore interface {
	CreateChallenge(ctx context.Context, c challenge.Challenge) (challenge.Challenge, error)
	UpdateChallenge(ctx context.Context, c challenge.Challenge) (challenge.Challenge, error)
	GetChallenge(ctx context.Context, id string) (challenge.Challenge, error)
	ListChallengesForBet(ctx context.Context, betID string) ([]challenge.Challenge, error)
}

// VoteStore persists tribunal votes. Votes are immutable once created.
type VoteStore interface {
	CreateVote(ctx context.Context, v bet.ProofVote) (bet.ProofVote, error)
	ListVotesForBet(ctx context.Context, betID string) ([]bet.ProofVote, error)
}

// StarStore persists star reactions, unique per (bet, user).
type StarStore interface {
	GetStar(ctx context.Context, betID, userID string) (bet.Star, error)
	CreateStar(ctx context.Context, s bet.Star) (bet.Star, error)
	DeleteStar(ctx context.Context, betID, userID string) error
}

// NotificationStore persists user notifications.
type NotificationStore interface {
	CreateNotification(ctx context.Context, n notification.Notification) (notification.Notification, error)
	ListNotificationsForUser(ctx context.Context, userID string, limit int) ([]notification.Notification, error)
	CountUnreadNotifications(ctx context.Context, userID string) (int64, error)
	MarkNotificationRead(ctx context.Context, id, userID string) error
	MarkAllNotificationsRead(ctx context.Context, userID string) error
}

// Tx bundles every store inside one transaction. LockBet acquires the
// per-bet lock (SELECT ... FOR UPDATE in postgres) and returns the current
// row, which callers must re-validate before mutating.
type Tx interface {
	UserStore
	BetStore
	ChallengeStore
	VoteStore
	StarStore
	NotificationStore

	LockBet(ctx context.Context, id string) (bet.Bet, error)
}

// Store is the full persistence surface. WithinTx runs fn inside a single
// transaction: if fn returns an error the transaction rolls back and no
// partial mutation survives.
type Store interface {
	UserStore
	BetStore
	ChallengeStore
	VoteStore
	StarStore
	NotificationStore

	WithinTx(ctx context.Context, fn func(tx Tx) error) error
}
