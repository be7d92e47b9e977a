// Package memory is an in-memory implementation of the storage interfaces.
// It is safe for concurrent use and is primarily intended for tests and
// local development. WithinTx snapshots the whole store and restores it when
// the transaction function fails, so rollback semantics match postgres.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pactpoint/backend/internal/app/domain/bet"
	"github.com/pactpoint/backend/internal/app/domain/challenge"
	"github.com/pactpoint/backend/internal/app/domain/notification"
	"github.com/pactpoint/backend/internal/app/domain/user"
	"github.com/pactpoint/backend/internal/app/storage"
	apperrors "github.com/pactpoint/backend/internal/errors"
)

// Store is the in-memory store.
type Store struct {
	mu sync.RWMutex
	st *state
}

type state struct {
	nextID        int64
	users         map[string]user.User
	usersByName   map[string]string
	usersByEmail  map[string]string
	bets          map[string]bet.Bet
	challenges    map[string]challenge.Challenge
	votes         map[string]bet.ProofVote
	stars         map[string]bet.Star
	notifications map[string]notification.Notification
}

var _ storage.Store = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{st: &state{
		nextID:        1,
		users:         make(map[string]user.User),
		usersByName:   make(map[string]string),
		usersByEmail:  make(map[string]string),
		bets:          make(map[string]bet.Bet),
		challenges:    make(map[string]challenge.Challenge),
		votes:         make(map[string]bet.ProofVote),
		stars:         make(map[string]bet.Star),
		notifications: make(map[string]notification.Notification),
	}}
}

func (s *state) clone() *state {
	return &state{
		nextID:        s.nextID,
		users:         cloneMap(s.users),
		usersByName:   cloneMap(s.usersByName),
		usersByEmail:  cloneMap(s.usersByEmail),
		bets:          cloneMap(s.bets),
		challenges:    cloneMap(s.challenges),
		votes:         cloneMap(s.votes),
		stars:         cloneMap(s.stars),
		notifications: cloneMap(s.notifications),
	}
}

func cloneMap[V any](m map[string]V) map[string]V {
	out := make(map[string]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *state) newID() string {
	id := s.nextID
	s.nextID++
	return fmt.Sprintf("%d", id)
}

// WithinTx serialises the whole store and restores the pre-transaction
// snapshot when fn fails.
func (s *Store) WithinTx(_ context.Context, fn func(tx storage.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	if err := fn(&txView{st: s.st}); err != nil {
		s.st = snapshot
		return err
	}
	return nil
}

// txView exposes the state as a storage.Tx. The Store's mutex is already
// held for the duration of the transaction.
type txView struct {
	st *state
}

var _ storage.Tx = (*txView)(nil)

func (t *txView) LockBet(ctx context.Context, id string) (bet.Bet, error) {
	// The store-wide mutex already serialises transactions.
	return t.st.getBet(id)
}

// UserStore ------------------------------------------------------------------

func (s *state) createUser(u user.User) (user.User, error) {
	key := strings.ToLower(u.Username)
	if _, taken := s.usersByName[key]; taken {
		return user.User{}, apperrors.AlreadyExists("username", u.Username)
	}
	emailKey := strings.ToLower(u.Email)
	if _, taken := s.usersByEmail[emailKey]; taken {
		return user.User{}, apperrors.AlreadyExists("email", u.Email)
	}

	if u.ID == "" {
		u.ID = s.newID()
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	s.users[u.ID] = u
	s.usersByName[key] = u.ID
	s.usersByEmail[emailKey] = u.ID
	return u, nil
}

func (s *state) getUser(id string) (user.User, error) {
	u, ok := s.users[id]
	if !ok {
		return user.User{}, apperrors.NotFound("user", id)
	}
	return u, nil
}

func (s *state) debitUser(id string, amount int64) error {
	u, err := s.getUser(id)
	if err != nil {
		return err
	}
	if amount <= 0 {
		return apperrors.InvalidAmount(amount)
	}
	if u.Points < amount {
		return apperrors.InsufficientFunds(u.Points, amount)
	}
	u.Points -= amount
	u.UpdatedAt = time.Now().UTC()
	s.users[id] = u
	return nil
}

func (s *state) creditUser(id string, amount int64) error {
	u, err := s.getUser(id)
	if err != nil {
		return err
	}
	if amount <= 0 {
		return apperrors.InvalidAmount(amount)
	}
	u.Points += amount
	u.UpdatedAt = time.Now().UTC()
	s.users[id] = u
	return nil
}

func (s *Store) CreateUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.createUser(u)
}

func (t *txView) CreateUser(_ context.Context, u user.User) (user.User, error) {
	return t.st.createUser(u)
}

func (s *Store) GetUser(_ context.Context, id string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.getUser(id)
}

func (t *txView) GetUser(_ context.Context, id string) (user.User, error) {
	return t.st.getUser(id)
}

func (s *state) getUserByUsername(username string) (user.User, error) {
	id, ok := s.usersByName[strings.ToLower(username)]
	if !ok {
		return user.User{}, apperrors.NotFound("user", username)
	}
	return s.users[id], nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.getUserByUsername(username)
}

func (t *txView) GetUserByUsername(_ context.Context, username string) (user.User, error) {
	return t.st.getUserByUsername(username)
}

func (s *state) getUserByEmail(email string) (user.User, error) {
	id, ok := s.usersByEmail[strings.ToLower(email)]
	if !ok {
		return user.User{}, apperrors.NotFound("user", email)
	}
	return s.users[id], nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.getUserByEmail(email)
}

func (t *txView) GetUserByEmail(_ context.Context, email string) (user.User, error) {
	return t.st.getUserByEmail(email)
}

func (s *state) listUsers() []user.User {
	out := make([]user.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (s *Store) ListUsers(_ context.Context) ([]user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.listUsers(), nil
}

func (t *txView) ListUsers(_ context.Context) ([]user.User, error) {
	return t.st.listUsers(), nil
}

func (s *Store) DebitUser(_ context.Context, id string, amount int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.debitUser(id, amount)
}

func (t *txView) DebitUser(_ context.Context, id string, amount int64) error {
	return t.st.debitUser(id, amount)
}

func (s *Store) CreditUser(_ context.Context, id string, amount int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.creditUser(id, amount)
}

func (t *txView) CreditUser(_ context.Context, id string, amount int64) error {
	return t.st.creditUser(id, amount)
}

// BetStore -------------------------------------------------------------------

func (s *state) createBet(b bet.Bet) (bet.Bet, error) {
	if b.ID == "" {
		b.ID = s.newID()
	} else if _, exists := s.bets[b.ID]; exists {
		return bet.Bet{}, apperrors.AlreadyExists("bet", b.ID)
	}
	now := time.Now().UTC()
	b.CreatedAt = now
	b.UpdatedAt = now
	s.bets[b.ID] = b
	return b, nil
}

func (s *state) updateBet(b bet.Bet) (bet.Bet, error) {
	original, ok := s.bets[b.ID]
	if !ok {
		return bet.Bet{}, apperrors.NotFound("bet", b.ID)
	}
	b.CreatedAt = original.CreatedAt
	b.UpdatedAt = time.Now().UTC()
	s.bets[b.ID] = b
	return b, nil
}

func (s *state) getBet(id string) (bet.Bet, error) {
	b, ok := s.bets[id]
	if !ok {
		return bet.Bet{}, apperrors.NotFound("bet", id)
	}
	return b, nil
}

func (s *Store) CreateBet(_ context.Context, b bet.Bet) (bet.Bet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.createBet(b)
}

func (t *txView) CreateBet(_ context.Context, b bet.Bet) (bet.Bet, error) {
	return t.st.createBet(b)
}

func (s *Store) UpdateBet(_ context.Context, b bet.Bet) (bet.Bet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.updateBet(b)
}

func (t *txView) UpdateBet(_ context.Context, b bet.Bet) (bet.Bet, error) {
	return t.st.updateBet(b)
}

func (s *Store) GetBet(_ context.Context, id string) (bet.Bet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.getBet(id)
}

func (t *txView) GetBet(_ context.Context, id string) (bet.Bet, error) {
	return t.st.getBet(id)
}

func paginate[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return nil
	}
	end := offset + limit
	if limit <= 0 || end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

func (s *state) listBetsByCreator(creatorID string, offset, limit int) ([]bet.Bet, int64) {
	var all []bet.Bet
	for _, b := range s.bets {
		if b.CreatorID == creatorID {
			all = append(all, b)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return paginate(all, offset, limit), int64(len(all))
}

func (s *Store) ListBetsByCreator(_ context.Context, creatorID string, offset, limit int) ([]bet.Bet, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items, total := s.st.listBetsByCreator(creatorID, offset, limit)
	return items, total, nil
}

func (t *txView) ListBetsByCreator(_ context.Context, creatorID string, offset, limit int) ([]bet.Bet, int64, error) {
	items, total := t.st.listBetsByCreator(creatorID, offset, limit)
	return items, total, nil
}

func (s *state) listBetsPublic(offset, limit int) ([]bet.Bet, int64) {
	all := make([]bet.Bet, 0, len(s.bets))
	for _, b := range s.bets {
		all = append(all, b)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Stars != all[j].Stars {
			return all[i].Stars > all[j].Stars
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	return paginate(all, offset, limit), int64(len(all))
}

func (s *Store) ListBetsPublic(_ context.Context, offset, limit int) ([]bet.Bet, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items, total := s.st.listBetsPublic(offset, limit)
	return items, total, nil
}

func (t *txView) ListBetsPublic(_ context.Context, offset, limit int) ([]bet.Bet, int64, error) {
	items, total := t.st.listBetsPublic(offset, limit)
	return items, total, nil
}

func (s *state) listDueBets(now time.Time, limit int) []bet.Bet {
	var due []bet.Bet
	for _, b := range s.bets {
		switch b.Status {
		case bet.StatusActive:
			if !b.Deadline.After(now) {
				due = append(due, b)
			}
		case bet.StatusAwaitingProof:
			if b.ProofDeadline != nil && !b.ProofDeadline.After(now) {
				due = append(due, b)
			}
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].Deadline.Before(due[j].Deadline) })
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due
}

func (s *Store) ListDueBets(_ context.Context, now time.Time, limit int) ([]bet.Bet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.listDueBets(now, limit), nil
}

func (t *txView) ListDueBets(_ context.Context, now time.Time, limit int) ([]bet.Bet, error) {
	return t.st.listDueBets(now, limit), nil
}

// ChallengeStore -------------------------------------------------------------

func (s *state) createChallenge(c challenge.Challenge) (challenge.Challenge, error) {
	if c.ID == "" {
		c.ID = s.newID()
	}
	c.CreatedAt = time.Now().UTC()
	s.challenges[c.ID] = c
	return c, nil
}

func (s *state) updateChallenge(c challenge.Challenge) (challenge.Challenge, error) {
	if _, ok := s.challenges[c.ID]; !ok {
		return challenge.Challenge{}, apperrors.NotFound("challenge", c.ID)
	}
	s.challenges[c.ID] = c
	return c, nil
}

func (s *state) getChallenge(id string) (challenge.Challenge, error) {
	c, ok := s.challenges[id]
	if !ok {
		return challenge.Challenge{}, apperrors.NotFound("challenge", id)
	}
	return c, nil
}

func (s *state) listChallengesForBet(betID string) []challenge.Challenge {
	var out []challenge.Challenge
	for _, c := range s.challenges {
		if c.BetID == betID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (s *Store) CreateChallenge(_ context.Context, c challenge.Challenge) (challenge.Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.createChallenge(c)
}

func (t *txView) CreateChallenge(_ context.Context, c challenge.Challenge) (challenge.Challenge, error) {
	return t.st.createChallenge(c)
}

func (s *Store) UpdateChallenge(_ context.Context, c challenge.Challenge) (challenge.Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.updateChallenge(c)
}

func (t *txView) UpdateChallenge(_ context.Context, c challenge.Challenge) (challenge.Challenge, error) {
	return t.st.updateChallenge(c)
}

func (s *Store) GetChallenge(_ context.Context, id string) (challenge.Challenge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.getChallenge(id)
}

func (t *txView) GetChallenge(_ context.Context, id string) (challenge.Challenge, error) {
	return t.st.getChallenge(id)
}

func (s *Store) ListChallengesForBet(_ context.Context, betID string) ([]challenge.Challenge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.listChallengesForBet(betID), nil
}

func (t *txView) ListChallengesForBet(_ context.Context, betID string) ([]challenge.Challenge, error) {
	return t.st.listChallengesForBet(betID), nil
}

// VoteStore ------------------------------------------------------------------

func voteKey(betID, voterID string) string {
	return betID + "/" + voterID
}

func (s *state) createVote(v bet.ProofVote) (bet.ProofVote, error) {
	for _, existing := range s.votes {
		if existing.BetID == v.BetID && existing.VoterID == v.VoterID {
			return bet.ProofVote{}, apperrors.AlreadyVoted(v.BetID)
		}
	}
	if v.ID == "" {
		v.ID = s.newID()
	}
	v.CreatedAt = time.Now().UTC()
	s.votes[v.ID] = v
	return v, nil
}

func (s *state) listVotesForBet(betID string) []bet.ProofVote {
	var out []bet.ProofVote
	for _, v := range s.votes {
		if v.BetID == betID {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (s *Store) CreateVote(_ context.Context, v bet.ProofVote) (bet.ProofVote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.createVote(v)
}

func (t *txView) CreateVote(_ context.Context, v bet.ProofVote) (bet.ProofVote, error) {
	return t.st.createVote(v)
}

func (s *Store) ListVotesForBet(_ context.Context, betID string) ([]bet.ProofVote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.listVotesForBet(betID), nil
}

func (t *txView) ListVotesForBet(_ context.Context, betID string) ([]bet.ProofVote, error) {
	return t.st.listVotesForBet(betID), nil
}

// StarStore ------------------------------------------------------------------

func (s *state) getStar(betID, userID string) (bet.Star, error) {
	st, ok := s.stars[voteKey(betID, userID)]
	if !ok {
		return bet.Star{}, apperrors.NotFound("star", betID)
	}
	return st, nil
}

func (s *state) createStar(st bet.Star) (bet.Star, error) {
	key := voteKey(st.BetID, st.UserID)
	if _, exists := s.stars[key]; exists {
		return bet.Star{}, apperrors.AlreadyExists("star", key)
	}
	if st.ID == "" {
		st.ID = s.newID()
	}
	st.CreatedAt = time.Now().UTC()
	s.stars[key] = st
	return st, nil
}

func (s *state) deleteStar(betID, userID string) error {
	key := voteKey(betID, userID)
	if _, ok := s.stars[key]; !ok {
		return apperrors.NotFound("star", key)
	}
	delete(s.stars, key)
	return nil
}

func (s *Store) GetStar(_ context.Context, betID, userID string) (bet.Star, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.getStar(betID, userID)
}

func (t *txView) GetStar(_ context.Context, betID, userID string) (bet.Star, error) {
	return t.st.getStar(betID, userID)
}

func (s *Store) CreateStar(_ context.Context, st bet.Star) (bet.Star, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.createStar(st)
}

func (t *txView) CreateStar(_ context.Context, st bet.Star) (bet.Star, error) {
	return t.st.createStar(st)
}

func (s *Store) DeleteStar(_ context.Context, betID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.deleteStar(betID, userID)
}

func (t *txView) DeleteStar(_ context.Context, betID, userID string) error {
	return t.st.deleteStar(betID, userID)
}

// NotificationStore ----------------------------------------------------------

func (s *state) createNotification(n notification.Notification) (notification.Notification, error) {
	if n.ID == "" {
		n.ID = s.newID()
	}
	n.CreatedAt = time.Now().UTC()
	s.notifications[n.ID] = n
	return n, nil
}

func (s *state) listNotificationsForUser(userID string, limit int) []notification.Notification {
	var out []notification.Notification
	for _, n := range s.notifications {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (s *state) countUnreadNotifications(userID string) int64 {
	var count int64
	for _, n := range s.notifications {
		if n.UserID == userID && !n.Read {
			count++
		}
	}
	return count
}

func (s *state) markNotificationRead(id, userID string) error {
	n, ok := s.notifications[id]
	if !ok || n.UserID != userID {
		return apperrors.NotFound("notification", id)
	}
	n.Read = true
	s.notifications[id] = n
	return nil
}

func (s *state) markAllNotificationsRead(userID string) {
	for id, n := range s.notifications {
		if n.UserID == userID && !n.Read {
			n.Read = true
			s.notifications[id] = n
		}
	}
}

func (s *Store) CreateNotification(_ context.Context, n notification.Notification) (notification.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.createNotification(n)
}

func (t *txView) CreateNotification(_ context.Context, n notification.Notification) (notification.Notification, error) {
	return t.st.createNotification(n)
}

func (s *Store) ListNotificationsForUser(_ context.Context, userID string, limit int) ([]notification.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.listNotificationsForUser(userID, limit), nil
}

func (t *txView) ListNotificationsForUser(_ context.Context, userID string, limit int) ([]notification.Notification, error) {
	return t.st.listNotificationsForUser(userID, limit), nil
}

func (s *Store) CountUnreadNotifications(_ context.Context, userID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.countUnreadNotifications(userID), nil
}

func (t *txView) CountUnreadNotifications(_ context.Context, userID string) (int64, error) {
	return t.st.countUnreadNotifications(userID), nil
}

func (s *Store) MarkNotificationRead(_ context.Context, id, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.markNotificationRead(id, userID)
}

func (t *txView) MarkNotificationRead(_ context.Context, id, userID string) error {
	return t.st.markNotificationRead(id, userID)
}

func (s *Store) MarkAllNotificationsRead(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.markAllNotificationsRead(userID)
	return nil
}

func (t *txView) MarkAllNotificationsRead(_ context.Context, userID string) error {
	t.st.markAllNotificationsRead(userID)
	return nil
}
