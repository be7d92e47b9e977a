// Package challenges implements counter-staking against bets. A challenger's
// stake is debited the moment the challenge is created; accepting matches it
// from the creator's balance, rejecting refunds it.
package challenges

import (
	"context"
	"fmt"
	"time"

	"github.com/pactpoint/backend/internal/app/domain/bet"
	"github.com/pactpoint/backend/internal/app/domain/challenge"
	"github.com/pactpoint/backend/internal/app/domain/notification"
	"github.com/pactpoint/backend/internal/app/storage"
	apperrors "github.com/pactpoint/backend/internal/errors"
	"github.com/pactpoint/backend/pkg/logger"
)

// Service implements challenge operations.
type Service struct {
	store storage.Store
	log   *logger.Logger
	now   func() time.Time
}

// New constructs the service.
func New(store storage.Store, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("challenges")
	}
	return &Service{
		store: store,
		log:   log,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the service clock. Test hook.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Create stakes amount against the bet. The stake is debited immediately so
// a challenger can never promise points they do not hold.
func (s *Service) Create(ctx context.Context, challengerID, betID string, amount int64) (challenge.Challenge, error) {
	if amount <= 0 {
		return challenge.Challenge{}, apperrors.InvalidAmount(amount)
	}

	var created challenge.Challenge
	err := s.store.WithinTx(ctx, func(tx storage.Tx) error {
		b, err := tx.LockBet(ctx, betID)
		if err != nil {
			return err
		}
		if b.CreatorID == challengerID {
			return apperrors.Forbidden("you cannot challenge your own bet")
		}
		if b.Status != bet.StatusActive {
			return apperrors.InvalidState("bet is not open for challenges")
		}
		if !b.Deadline.After(s.now()) {
			return apperrors.DeadlineExpired("the bet deadline has passed")
		}

		existing, err := tx.ListChallengesForBet(ctx, betID)
		if err != nil {
			return err
		}
		for _, c := range existing {
			if c.ChallengerID == challengerID && c.Eligible() {
				return apperrors.DuplicateChallenge(betID)
			}
		}

		if err := tx.DebitUser(ctx, challengerID, amount); err != nil {
			return err
		}

		created, err = tx.CreateChallenge(ctx, challenge.Challenge{
			BetID:        betID,
			ChallengerID: challengerID,
			Amount:       amount,
			Status:       challenge.StatusPending,
		})
		if err != nil {
			return err
		}

		_, err = tx.CreateNotification(ctx, notification.Notification{
			UserID:  b.CreatorID,
			BetID:   b.ID,
			Message: fmt.Sprintf("someone staked %d points against %q", amount, b.Title),
		})
		return err
	})
	if err != nil {
		return challenge.Challenge{}, err
	}

	s.log.WithFields(map[string]interface{}{"bet_id": betID, "amount": amount}).Info("challenge created")
	return created, nil
}

// Accept matches the challenge from the creator's balance and raises the
// bet's pot by the same amount.
func (s *Service) Accept(ctx context.Context, actorID, challengeID string) (challenge.Challenge, error) {
	var accepted challenge.Challenge
	err := s.store.WithinTx(ctx, func(tx storage.Tx) error {
		c, err := tx.GetChallenge(ctx, challengeID)
		if err != nil {
			return err
		}
		b, err := tx.LockBet(ctx, c.BetID)
		if err != nil {
			return err
		}
		if b.CreatorID != actorID {
			return apperrors.Forbidden("only the bet creator can accept a challenge")
		}
		if c.Status != challenge.StatusPending {
			return apperrors.InvalidState("challenge is not pending")
		}
		if b.Status != bet.StatusActive {
			return apperrors.InvalidState("bet is no longer active")
		}

		if err := tx.DebitUser(ctx, actorID, c.Amount); err != nil {
			return err
		}

		c.Status = challenge.StatusAccepted
		accepted, err = tx.UpdateChallenge(ctx, c)
		if err != nil {
			return err
		}

		b.Amount += c.Amount
		if _, err := tx.UpdateBet(ctx, b); err != nil {
			return err
		}

		_, err = tx.CreateNotification(ctx, notification.Notification{
			UserID:  c.ChallengerID,
			BetID:   b.ID,
			Message: fmt.Sprintf("your %d point challenge on %q was accepted", c.Amount, b.Title),
		})
		return err
	})
	if err != nil {
		return challenge.Challenge{}, err
	}

	s.log.WithField("challenge_id", challengeID).Info("challenge accepted")
	return accepted, nil
}

// Reject declines the challenge and refunds the challenger's stake. Rejected
// challengers drop out of the tribunal and the payout pool.
func (s *Service) Reject(ctx context.Context, actorID, challengeID string) (challenge.Challenge, error) {
	var rejected challenge.Challenge
	err := s.store.WithinTx(ctx, func(tx storage.Tx) error {
		c, err := tx.GetChallenge(ctx, challengeID)
		if err != nil {
			return err
		}
		b, err := tx.LockBet(ctx, c.BetID)
		if err != nil {
			return err
		}
		if b.CreatorID != actorID {
			return apperrors.Forbidden("only the bet creator can reject a challenge")
		}
		if c.Status != challenge.StatusPending {
			return apperrors.InvalidState("challenge is not pending")
		}
		if b.Status != bet.StatusActive {
			return apperrors.InvalidState("bet is no longer active")
		}

		if err := tx.CreditUser(ctx, c.ChallengerID, c.Amount); err != nil {
			return err
		}

		c.Status = challenge.StatusRejected
		rejected, err = tx.UpdateChallenge(ctx, c)
		if err != nil {
			return err
		}

		_, err = tx.CreateNotification(ctx, notification.Notification{
			UserID:  c.ChallengerID,
			BetID:   b.ID,
			Message: fmt.Sprintf("your challenge on %q was declined; %d points refunded", b.Title, c.Amount),
		})
		return err
	})
	if err != nil {
		return challenge.Challenge{}, err
	}

	s.log.WithField("challenge_id", challengeID).Info("challenge rejected")
	return rejected, nil
}

// ListForBet returns the bet's challenges, oldest first.
func (s *Service) ListForBet(ctx context.Context, betID string) ([]challenge.Challenge, error) {
	if _, err := s.store.GetBet(ctx, betID); err != nil {
		return nil, err
	}
	return s.store.ListChallengesForBet(ctx, betID)
}
