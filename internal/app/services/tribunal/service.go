// Package tribunal handles proof submission and the challenger vote that
// decides a bet. Eligible voters are the pending and accepted challengers; a
// strict majority of cool votes wins the bet, and once everyone has voted
// without reaching that majority the bet is lost.
package tribunal

import (
	"context"
	"fmt"
	"time"

	"github.com/pactpoint/backend/internal/app/domain/bet"
	"github.com/pactpoint/backend/internal/app/domain/challenge"
	"github.com/pactpoint/backend/internal/app/domain/notification"
	"github.com/pactpoint/backend/internal/app/feedcache"
	"github.com/pactpoint/backend/internal/app/settlement"
	"github.com/pactpoint/backend/internal/app/storage"
	apperrors "github.com/pactpoint/backend/internal/errors"
	"github.com/pactpoint/backend/pkg/logger"
)

// Service implements the proof-and-vote flow.
type Service struct {
	store storage.Store
	cache feedcache.Cache
	log   *logger.Logger
	now   func() time.Time
}

// New constructs the service. cache may be nil.
func New(store storage.Store, cache feedcache.Cache, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("tribunal")
	}
	return &Service{
		store: store,
		cache: cache,
		log:   log,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the service clock. Test hook.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// ProofInput carries the creator's evidence.
type ProofInput struct {
	Comment  string
	MediaURL string
}

// SubmitProof attaches evidence to the bet and opens the vote. Allowed while
// the bet is active (before its deadline) or awaiting proof (inside the
// grace window); there must be at least one eligible challenger to judge it.
func (s *Service) SubmitProof(ctx context.Context, actorID, betID string, in ProofInput) (bet.Bet, error) {
	var updated bet.Bet
	err := s.store.WithinTx(ctx, func(tx storage.Tx) error {
		b, err := tx.LockBet(ctx, betID)
		if err != nil {
			return err
		}
		if b.CreatorID != actorID {
			return apperrors.Forbidden("only the creator can submit proof")
		}

		now := s.now()
		switch b.Status {
		case bet.StatusActive:
			if !b.Deadline.After(now) {
				return apperrors.DeadlineExpired("the bet deadline has passed; wait for the review window")
			}
		case bet.StatusAwaitingProof:
			if b.ProofDeadline != nil && !b.ProofDeadline.After(now) {
				return apperrors.DeadlineExpired("the proof window has closed")
			}
		default:
			return apperrors.InvalidState("bet does not accept proof in its current state")
		}

		challenges, err := tx.ListChallengesForBet(ctx, betID)
		if err != nil {
			return err
		}
		voters := eligibleVoters(challenges)
		if len(voters) == 0 {
			return apperrors.InvalidState("no challengers are available to review proof")
		}

		next, err := bet.Next(b.Status, bet.EventProofSubmitted)
		if err != nil {
			return err
		}

		b.Status = next
		b.ProofComment = in.Comment
		b.ProofMediaURL = in.MediaURL
		b.ProofSubmittedAt = &now
		updated, err = tx.UpdateBet(ctx, b)
		if err != nil {
			return err
		}

		for voterID := range voters {
			if _, err := tx.CreateNotification(ctx, notification.Notification{
				UserID:  voterID,
				BetID:   b.ID,
				Message: fmt.Sprintf("proof was submitted for %q; cast your vote", b.Title),
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return bet.Bet{}, err
	}

	s.invalidateFeed(ctx)
	s.log.WithField("bet_id", betID).Info("proof submitted")
	return updated, nil
}

// VoteResult reports what a cast vote did to the bet.
type VoteResult struct {
	Vote     bet.ProofVote
	Resolved bool
	Status   bet.Status
}

// CastVote records the voter's verdict and resolves the bet the moment the
// outcome is decided: cool votes past half the eligible voters win it, and a
// full set of votes without that majority loses it. The vote insert and any
// settlement happen in one transaction, so a bet can resolve exactly once.
func (s *Service) CastVote(ctx context.Context, voterID, betID string, value bet.VoteValue) (VoteResult, error) {
	if !value.Valid() {
		return VoteResult{}, apperrors.ValidationRejected("vote must be cool or not_cool")
	}

	var result VoteResult
	err := s.store.WithinTx(ctx, func(tx storage.Tx) error {
		b, err := tx.LockBet(ctx, betID)
		if err != nil {
			return err
		}
		if b.Status != bet.StatusUnderReview {
			return apperrors.InvalidState("bet is not under review")
		}

		challenges, err := tx.ListChallengesForBet(ctx, betID)
		if err != nil {
			return err
		}
		voters := eligibleVoters(challenges)
		if _, ok := voters[voterID]; !ok {
			return apperrors.Forbidden("only challengers of this bet may vote")
		}

		vote, err := tx.CreateVote(ctx, bet.ProofVote{BetID: betID, VoterID: voterID, Value: value})
		if err != nil {
			return err
		}
		result.Vote = vote

		votes, err := tx.ListVotesForBet(ctx, betID)
		if err != nil {
			return err
		}
		var cool int
		for _, v := range votes {
			if v.Value == bet.VoteCool {
				cool++
			}
		}

		switch {
		case cool > len(voters)/2:
			return s.resolve(ctx, tx, &result, b, challenges, bet.EventMajorityCool)
		case len(votes) >= len(voters):
			return s.resolve(ctx, tx, &result, b, challenges, bet.EventVotesExhausted)
		default:
			result.Status = b.Status
			return nil
		}
	})
	if err != nil {
		return VoteResult{}, err
	}

	if result.Resolved {
		s.invalidateFeed(ctx)
		s.log.WithFields(map[string]interface{}{"bet_id": betID, "status": result.Status}).Info("bet resolved by vote")
	}
	return result, nil
}

func (s *Service) resolve(ctx context.Context, tx storage.Tx, result *VoteResult, b bet.Bet, challenges []challenge.Challenge, ev bet.Event) error {
	next, err := bet.Next(b.Status, ev)
	if err != nil {
		return err
	}

	var outcome settlement.Outcome
	if next == bet.StatusWon {
		outcome = settlement.Won(b, challenges)
	} else {
		outcome = settlement.Lost(b, challenges)
	}
	if err := settlement.Apply(ctx, tx, outcome); err != nil {
		return err
	}

	b.Status = next
	if _, err := tx.UpdateBet(ctx, b); err != nil {
		return err
	}

	message := fmt.Sprintf("%q was judged and lost", b.Title)
	if next == bet.StatusWon {
		message = fmt.Sprintf("%q was judged and won", b.Title)
	}
	if _, err := tx.CreateNotification(ctx, notification.Notification{
		UserID:  b.CreatorID,
		BetID:   b.ID,
		Message: message,
	}); err != nil {
		return err
	}
	for _, c := range outcome.Credits {
		if c.UserID == b.CreatorID {
			continue
		}
		if _, err := tx.CreateNotification(ctx, notification.Notification{
			UserID:  c.UserID,
			BetID:   b.ID,
			Message: fmt.Sprintf("%q resolved in your favour; you received %d points", b.Title, c.Amount),
		}); err != nil {
			return err
		}
	}

	result.Resolved = true
	result.Status = next
	return nil
}

func eligibleVoters(challenges []challenge.Challenge) map[string]struct{} {
	voters := make(map[string]struct{})
	for _, c := range challenges {
		if c.Eligible() {
			voters[c.ChallengerID] = struct{}{}
		}
	}
	return voters
}

func (s *Service) invalidateFeed(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateAll(ctx); err != nil {
		s.log.WithError(err).Warn("feed cache invalidation failed")
	}
}
