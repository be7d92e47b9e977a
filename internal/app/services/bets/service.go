// Package bets manages the bet lifecycle from creation to cancellation,
// plus the public feed and star reactions. Deadline handling lives in the
// sweeper (sweeper.go); proof and voting live in the tribunal service.
package bets

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pactpoint/backend/internal/app/domain/bet"
	"github.com/pactpoint/backend/internal/app/domain/challenge"
	"github.com/pactpoint/backend/internal/app/domain/notification"
	"github.com/pactpoint/backend/internal/app/feedcache"
	"github.com/pactpoint/backend/internal/app/services/moderation"
	"github.com/pactpoint/backend/internal/app/settlement"
	"github.com/pactpoint/backend/internal/app/storage"
	apperrors "github.com/pactpoint/backend/internal/errors"
	"github.com/pactpoint/backend/pkg/logger"
)

const (
	maxTitleLen  = 200
	feedCacheTTL = 30 * time.Second
)

// Service implements bet operations.
type Service struct {
	store      storage.Store
	classifier *moderation.Service
	cache      feedcache.Cache
	log        *logger.Logger
	now        func() time.Time
}

// New constructs the service. cache may be nil to disable feed caching.
func New(store storage.Store, classifier *moderation.Service, cache feedcache.Cache, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("bets")
	}
	return &Service{
		store:      store,
		classifier: classifier,
		cache:      cache,
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the service clock. Test hook.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// CreateInput carries the fields needed to open a bet.
type CreateInput struct {
	Title    string
	Criteria string
	Amount   int64
	Deadline time.Time
}

// Create validates the commitment, debits the creator's stake and opens the
// bet. All balance changes happen in one transaction: a failed debit leaves
// no bet behind.
func (s *Service) Create(ctx context.Context, creatorID string, in CreateInput) (bet.Bet, error) {
	title := strings.TrimSpace(in.Title)
	if in.Amount <= 0 {
		return bet.Bet{}, apperrors.InvalidAmount(in.Amount)
	}
	if title == "" || len(title) > maxTitleLen {
		return bet.Bet{}, apperrors.ValidationRejected("title must be between 1 and 200 characters")
	}
	if !in.Deadline.After(s.now()) {
		return bet.Bet{}, apperrors.DeadlineExpired("deadline must be in the future")
	}

	if s.classifier != nil {
		verdict, err := s.classifier.Classify(ctx, title)
		if err != nil {
			return bet.Bet{}, apperrors.Internal("classify title", err)
		}
		if !verdict.Commitment {
			return bet.Bet{}, apperrors.ValidationRejected(verdict.Reason)
		}
	}

	var created bet.Bet
	err := s.store.WithinTx(ctx, func(tx storage.Tx) error {
		if err := tx.DebitUser(ctx, creatorID, in.Amount); err != nil {
			return err
		}
		var err error
		created, err = tx.CreateBet(ctx, bet.Bet{
			CreatorID: creatorID,
			Title:     title,
			Criteria:  strings.TrimSpace(in.Criteria),
			Amount:    in.Amount,
			Deadline:  in.Deadline.UTC(),
			Status:    bet.StatusActive,
		})
		return err
	})
	if err != nil {
		return bet.Bet{}, err
	}

	s.invalidateFeed(ctx)
	s.log.WithFields(map[string]interface{}{"bet_id": created.ID, "amount": created.Amount}).Info("bet created")
	return created, nil
}

// Get returns a bet with its challenges and votes.
func (s *Service) Get(ctx context.Context, id string) (bet.Bet, []challenge.Challenge, []bet.ProofVote, error) {
	b, err := s.store.GetBet(ctx, id)
	if err != nil {
		return bet.Bet{}, nil, nil, err
	}
	challenges, err := s.store.ListChallengesForBet(ctx, id)
	if err != nil {
		return bet.Bet{}, nil, nil, err
	}
	votes, err := s.store.ListVotesForBet(ctx, id)
	if err != nil {
		return bet.Bet{}, nil, nil, err
	}
	return b, challenges, votes, nil
}

// Page is one window of a bet listing.
type Page struct {
	Items []bet.Bet `json:"items"`
	Total int64     `json:"total"`
}

// ListMine returns the creator's bets, newest first.
func (s *Service) ListMine(ctx context.Context, creatorID string, offset, limit int) (Page, error) {
	offset, limit = clampWindow(offset, limit)
	items, total, err := s.store.ListBetsByCreator(ctx, creatorID, offset, limit)
	if err != nil {
		return Page{}, err
	}
	return Page{Items: items, Total: total}, nil
}

// Feed returns the public feed ordered by stars then recency, served from
// cache when possible.
func (s *Service) Feed(ctx context.Context, offset, limit int) (Page, error) {
	offset, limit = clampWindow(offset, limit)
	key := fmt.Sprintf("%d:%d", offset, limit)

	if s.cache != nil {
		if raw, ok, err := s.cache.Get(ctx, key); err != nil {
			s.log.WithError(err).Warn("feed cache get failed")
		} else if ok {
			var page Page
			if err := json.Unmarshal(raw, &page); err == nil {
				return page, nil
			}
		}
	}

	items, total, err := s.store.ListBetsPublic(ctx, offset, limit)
	if err != nil {
		return Page{}, err
	}
	page := Page{Items: items, Total: total}

	if s.cache != nil {
		if raw, err := json.Marshal(page); err == nil {
			if err := s.cache.Set(ctx, key, raw, feedCacheTTL); err != nil {
				s.log.WithError(err).Warn("feed cache set failed")
			}
		}
	}
	return page, nil
}

func clampWindow(offset, limit int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return offset, limit
}

// Cancel withdraws an unresolved bet. The creator gets the pot back and
// every open challenge is refunded and marked cancelled.
func (s *Service) Cancel(ctx context.Context, actorID, betID string) (bet.Bet, error) {
	var cancelled bet.Bet
	err := s.store.WithinTx(ctx, func(tx storage.Tx) error {
		b, err := tx.LockBet(ctx, betID)
		if err != nil {
			return err
		}
		if b.CreatorID != actorID {
			return apperrors.Forbidden("only the creator can cancel a bet")
		}
		next, err := bet.Next(b.Status, bet.EventCancelled)
		if err != nil {
			return err
		}

		challenges, err := tx.ListChallengesForBet(ctx, betID)
		if err != nil {
			return err
		}
		if err := settlement.Apply(ctx, tx, settlement.Cancelled(b, challenges)); err != nil {
			return err
		}
		for _, c := range challenges {
			if !c.Eligible() {
				continue
			}
			c.Status = challenge.StatusCancelled
			if _, err := tx.UpdateChallenge(ctx, c); err != nil {
				return err
			}
			if _, err := tx.CreateNotification(ctx, notification.Notification{
				UserID:  c.ChallengerID,
				BetID:   b.ID,
				Message: fmt.Sprintf("%q was cancelled; your %d point stake was refunded", b.Title, c.Amount),
			}); err != nil {
				return err
			}
		}

		b.Status = next
		cancelled, err = tx.UpdateBet(ctx, b)
		return err
	})
	if err != nil {
		return bet.Bet{}, err
	}

	s.invalidateFeed(ctx)
	s.log.WithField("bet_id", betID).Info("bet cancelled")
	return cancelled, nil
}

// ToggleStar stars the bet for the user, or removes the star if one exists.
// It returns the new starred state and the bet's star count.
func (s *Service) ToggleStar(ctx context.Context, userID, betID string) (bool, int64, error) {
	var (
		starred bool
		count   int64
	)
	err := s.store.WithinTx(ctx, func(tx storage.Tx) error {
		b, err := tx.LockBet(ctx, betID)
		if err != nil {
			return err
		}

		_, err = tx.GetStar(ctx, betID, userID)
		switch {
		case err == nil:
			if err := tx.DeleteStar(ctx, betID, userID); err != nil {
				return err
			}
			b.Stars--
		case apperrors.IsCode(err, apperrors.CodeNotFound):
			if _, err := tx.CreateStar(ctx, bet.Star{BetID: betID, UserID: userID}); err != nil {
				return err
			}
			b.Stars++
			starred = true
		default:
			return err
		}

		updated, err := tx.UpdateBet(ctx, b)
		if err != nil {
			return err
		}
		count = updated.Stars
		return nil
	})
	if err != nil {
		return false, 0, err
	}

	s.invalidateFeed(ctx)
	return starred, count, nil
}

func (s *Service) invalidateFeed(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateAll(ctx); err != nil {
		s.log.WithError(err).Warn("feed cache invalidation failed")
	}
}
