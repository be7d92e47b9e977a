package bets

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/pactpoint/backend/internal/app/domain/bet"
	"github.com/pactpoint/backend/internal/app/domain/notification"
	"github.com/pactpoint/backend/internal/app/feedcache"
	"github.com/pactpoint/backend/internal/app/settlement"
	"github.com/pactpoint/backend/internal/app/storage"
	"github.com/pactpoint/backend/internal/app/system"
	"github.com/pactpoint/backend/pkg/logger"
)

const sweepBatchSize = 100

// Sweeper advances bets whose deadlines have passed. An expired active bet
// with eligible challengers enters the proof grace window; without
// challengers it is lost outright and the pot burns. An expired grace window
// loses the bet and pays the challengers.
type Sweeper struct {
	store    storage.Store
	cache    feedcache.Cache
	interval time.Duration
	grace    time.Duration
	log      *logger.Logger
	now      func() time.Time

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

var _ system.Service = (*Sweeper)(nil)

// NewSweeper constructs the sweeper. cache may be nil.
func NewSweeper(store storage.Store, cache feedcache.Cache, interval, grace time.Duration, log *logger.Logger) *Sweeper {
	if log == nil {
		log = logger.NewDefault("sweeper")
	}
	if interval <= 0 {
		interval = time.Minute
	}
	if grace <= 0 {
		grace = 24 * time.Hour
	}
	return &Sweeper{
		store:    store,
		cache:    cache,
		interval: interval,
		grace:    grace,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the sweeper clock. Test hook.
func (s *Sweeper) WithClock(now func() time.Time) *Sweeper {
	s.now = now
	return s
}

func (s *Sweeper) Name() string { return "deadline-sweeper" }

// Start schedules periodic sweeps.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	c := cron.New()
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", s.interval), func() {
		s.RunOnce(context.Background(), s.now())
	}); err != nil {
		return fmt.Errorf("schedule sweep: %w", err)
	}
	c.Start()

	s.cron = c
	s.running = true
	s.log.Infof("deadline sweeper started (every %s, grace %s)", s.interval, s.grace)
	return nil
}

// Stop halts the schedule and waits for any in-flight sweep, bounded by ctx.
func (s *Sweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.running = false
	s.mu.Unlock()

	if c == nil {
		return nil
	}

	select {
	case <-c.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce sweeps every due bet as of now. Each bet is handled in its own
// transaction so one failure never blocks the rest; the status is re-checked
// under the lock because a proof or cancellation may have landed since the
// listing.
func (s *Sweeper) RunOnce(ctx context.Context, now time.Time) {
	due, err := s.store.ListDueBets(ctx, now, sweepBatchSize)
	if err != nil {
		s.log.WithError(err).Warn("list due bets failed")
		return
	}

	var swept int
	for _, candidate := range due {
		changed, err := s.sweepOne(ctx, candidate.ID, now)
		if err != nil {
			s.log.WithError(err).WithField("bet_id", candidate.ID).Warn("sweep failed")
			continue
		}
		if changed {
			swept++
		}
	}

	if swept > 0 {
		if s.cache != nil {
			if err := s.cache.InvalidateAll(ctx); err != nil {
				s.log.WithError(err).Warn("feed cache invalidation failed")
			}
		}
		s.log.Infof("swept %d bets", swept)
	}
}

func (s *Sweeper) sweepOne(ctx context.Context, betID string, now time.Time) (bool, error) {
	changed := false
	err := s.store.WithinTx(ctx, func(tx storage.Tx) error {
		b, err := tx.LockBet(ctx, betID)
		if err != nil {
			return err
		}

		switch b.Status {
		case bet.StatusActive:
			if b.Deadline.After(now) {
				return nil
			}
			changed = true
			return s.expireActive(ctx, tx, b)
		case bet.StatusAwaitingProof:
			if b.ProofDeadline == nil || b.ProofDeadline.After(now) {
				return nil
			}
			changed = true
			return s.expireGraceWindow(ctx, tx, b)
		default:
			return nil
		}
	})
	return changed && err == nil, err
}

func (s *Sweeper) expireActive(ctx context.Context, tx storage.Tx, b bet.Bet) error {
	challenges, err := tx.ListChallengesForBet(ctx, b.ID)
	if err != nil {
		return err
	}

	eligible := 0
	for _, c := range challenges {
		if c.Eligible() {
			eligible++
		}
	}

	if eligible == 0 {
		// Nobody staked against the creator, so there is nobody to judge
		// proof or to pay out. The pot burns.
		next, err := bet.Next(b.Status, bet.EventDeadlinePassedUnchallenged)
		if err != nil {
			return err
		}
		b.Status = next
		if _, err := tx.UpdateBet(ctx, b); err != nil {
			return err
		}
		_, err = tx.CreateNotification(ctx, notification.Notification{
			UserID:  b.CreatorID,
			BetID:   b.ID,
			Message: fmt.Sprintf("%q expired without challengers and was marked lost", b.Title),
		})
		return err
	}

	next, err := bet.Next(b.Status, bet.EventDeadlinePassed)
	if err != nil {
		return err
	}
	proofDeadline := b.Deadline.Add(s.grace)
	b.Status = next
	b.ProofDeadline = &proofDeadline
	if _, err := tx.UpdateBet(ctx, b); err != nil {
		return err
	}
	_, err = tx.CreateNotification(ctx, notification.Notification{
		UserID:  b.CreatorID,
		BetID:   b.ID,
		Message: fmt.Sprintf("%q reached its deadline; submit proof before %s", b.Title, proofDeadline.Format(time.RFC3339)),
	})
	return err
}

func (s *Sweeper) expireGraceWindow(ctx context.Context, tx storage.Tx, b bet.Bet) error {
	next, err := bet.Next(b.Status, bet.EventProofWindowExpired)
	if err != nil {
		return err
	}

	challenges, err := tx.ListChallengesForBet(ctx, b.ID)
	if err != nil {
		return err
	}
	outcome := settlement.Lost(b, challenges)
	if err := settlement.Apply(ctx, tx, outcome); err != nil {
		return err
	}

	b.Status = next
	if _, err := tx.UpdateBet(ctx, b); err != nil {
		return err
	}

	if _, err := tx.CreateNotification(ctx, notification.Notification{
		UserID:  b.CreatorID,
		BetID:   b.ID,
		Message: fmt.Sprintf("%q expired without proof; your stake went to the challengers", b.Title),
	}); err != nil {
		return err
	}
	for _, c := range outcome.Credits {
		if _, err := tx.CreateNotification(ctx, notification.Notification{
			UserID:  c.UserID,
			BetID:   b.ID,
			Message: fmt.Sprintf("%q resolved in your favour; you received %d points", b.Title, c.Amount),
		}); err != nil {
			return err
		}
	}
	return nil
}
