package bets

import (
	"context"
	"testing"
	"time"

	"github.com/pactpoint/backend/internal/app/domain/bet"
	"github.com/pactpoint/backend/internal/app/domain/user"
	"github.com/pactpoint/backend/internal/app/feedcache"
	"github.com/pactpoint/backend/internal/app/services/challenges"
	"github.com/pactpoint/backend/internal/app/services/moderation"
	"github.com/pactpoint/backend/internal/app/storage/memory"
	apperrors "github.com/pactpoint/backend/internal/errors"
)

var base = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func seedUser(t *testing.T, store *memory.Store, username string, points int64) user.User {
	t.Helper()
	u, err := store.CreateUser(context.Background(), user.User{
		Username:       username,
		Email:          username + "@example.com",
		HashedPassword: "x",
		Points:         points,
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

func newService(store *memory.Store) *Service {
	return New(store, nil, nil, nil).WithClock(fixedClock(base))
}

func TestCreateDebitsCreator(t *testing.T) {
	store := memory.New()
	svc := newService(store)
	creator := seedUser(t, store, "alice", 10)

	b, err := svc.Create(context.Background(), creator.ID, CreateInput{
		Title:    "I will run 5km every day",
		Amount:   7,
		Deadline: base.Add(24 * time.Hour),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if b.Status != bet.StatusActive {
		t.Fatalf("status = %s", b.Status)
	}
	if b.Amount != 7 {
		t.Fatalf("amount = %d", b.Amount)
	}
	if got := points(t, store, creator.ID); got != 3 {
		t.Fatalf("creator points = %d, want 3", got)
	}
}

func TestCreateRejectsInvalidAmount(t *testing.T) {
	store := memory.New()
	svc := newService(store)
	creator := seedUser(t, store, "alice", 10)

	for _, amount := range []int64{0, -5} {
		_, err := svc.Create(context.Background(), creator.ID, CreateInput{
			Title:    "I will run 5km every day",
			Amount:   amount,
			Deadline: base.Add(24 * time.Hour),
		})
		if !apperrors.IsCode(err, apperrors.CodeInvalidAmount) {
			t.Fatalf("amount %d: got %v", amount, err)
		}
	}
	if got := points(t, store, creator.ID); got != 10 {
		t.Fatalf("creator points = %d, want untouched 10", got)
	}
}

func TestCreateRejectsInsufficientFunds(t *testing.T) {
	store := memory.New()
	svc := newService(store)
	creator := seedUser(t, store, "alice", 10)

	_, err := svc.Create(context.Background(), creator.ID, CreateInput{
		Title:    "I will run 5km every day",
		Amount:   11,
		Deadline: base.Add(24 * time.Hour),
	})
	if !apperrors.IsCode(err, apperrors.CodeInsufficientFunds) {
		t.Fatalf("got %v", err)
	}
	if got := points(t, store, creator.ID); got != 10 {
		t.Fatalf("creator points = %d, want untouched 10", got)
	}
	page, err := svc.ListMine(context.Background(), creator.ID, 0, 10)
	if err != nil {
		t.Fatalf("list mine: %v", err)
	}
	if page.Total != 0 {
		t.Fatalf("a failed create left %d bets behind", page.Total)
	}
}

func TestCreateRejectsPastDeadline(t *testing.T) {
	store := memory.New()
	svc := newService(store)
	creator := seedUser(t, store, "alice", 10)

	_, err := svc.Create(context.Background(), creator.ID, CreateInput{
		Title:    "I will run 5km every day",
		Amount:   3,
		Deadline: base.Add(-time.Hour),
	})
	if !apperrors.IsCode(err, apperrors.CodeDeadlineExpired) {
		t.Fatalf("got %v", err)
	}
}

func TestCreateRejectsNonCommitmentTitle(t *testing.T) {
	store := memory.New()
	svc := New(store, moderation.New(nil, nil), nil, nil).WithClock(fixedClock(base))
	creator := seedUser(t, store, "alice", 10)

	_, err := svc.Create(context.Background(), creator.ID, CreateInput{
		Title:    "gym",
		Amount:   3,
		Deadline: base.Add(24 * time.Hour),
	})
	if !apperrors.IsCode(err, apperrors.CodeValidationRejected) {
		t.Fatalf("got %v", err)
	}
	if got := points(t, store, creator.ID); got != 10 {
		t.Fatalf("creator points = %d, want untouched 10", got)
	}
}

func TestCancelRefundsCreatorAndChallengers(t *testing.T) {
	store := memory.New()
	svc := newService(store)
	chSvc := challenges.New(store, nil).WithClock(fixedClock(base))
	ctx := context.Background()

	creator := seedUser(t, store, "alice", 10)
	rival := seedUser(t, store, "bob", 10)

	b, err := svc.Create(ctx, creator.ID, CreateInput{
		Title:    "I will run 5km every day",
		Amount:   7,
		Deadline: base.Add(24 * time.Hour),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := chSvc.Create(ctx, rival.ID, b.ID, 4); err != nil {
		t.Fatalf("challenge: %v", err)
	}

	cancelled, err := svc.Cancel(ctx, creator.ID, b.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != bet.StatusCancelled {
		t.Fatalf("status = %s", cancelled.Status)
	}
	if got := points(t, store, creator.ID); got != 10 {
		t.Fatalf("creator points = %d, want 10", got)
	}
	if got := points(t, store, rival.ID); got != 10 {
		t.Fatalf("challenger points = %d, want 10", got)
	}
}

func TestCancelRequiresCreator(t *testing.T) {
	store := memory.New()
	svc := newService(store)
	ctx := context.Background()

	creator := seedUser(t, store, "alice", 10)
	stranger := seedUser(t, store, "mallory", 10)

	b, err := svc.Create(ctx, creator.ID, CreateInput{
		Title:    "I will run 5km every day",
		Amount:   7,
		Deadline: base.Add(24 * time.Hour),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := svc.Cancel(ctx, stranger.ID, b.ID); !apperrors.IsCode(err, apperrors.CodeForbidden) {
		t.Fatalf("got %v", err)
	}
}

func TestCancelRejectsResolvedBet(t *testing.T) {
	store := memory.New()
	svc := newService(store)
	ctx := context.Background()

	creator := seedUser(t, store, "alice", 10)
	b, err := svc.Create(ctx, creator.ID, CreateInput{
		Title:    "I will run 5km every day",
		Amount:   7,
		Deadline: base.Add(24 * time.Hour),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := svc.Cancel(ctx, creator.ID, b.ID); err != nil {
		t.Fatalf("first cancel: %v", err)
	}
	if _, err := svc.Cancel(ctx, creator.ID, b.ID); !apperrors.IsCode(err, apperrors.CodeInvalidState) {
		t.Fatalf("second cancel: got %v", err)
	}
	if got := points(t, store, creator.ID); got != 10 {
		t.Fatalf("creator points = %d after double cancel, want 10", got)
	}
}

func TestToggleStar(t *testing.T) {
	store := memory.New()
	svc := newService(store)
	ctx := context.Background()

	creator := seedUser(t, store, "alice", 10)
	fan := seedUser(t, store, "bob", 10)

	b, err := svc.Create(ctx, creator.ID, CreateInput{
		Title:    "I will run 5km every day",
		Amount:   2,
		Deadline: base.Add(24 * time.Hour),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	starred, count, err := svc.ToggleStar(ctx, fan.ID, b.ID)
	if err != nil || !starred || count != 1 {
		t.Fatalf("first toggle: starred=%v count=%d err=%v", starred, count, err)
	}
	starred, count, err = svc.ToggleStar(ctx, fan.ID, b.ID)
	if err != nil || starred || count != 0 {
		t.Fatalf("second toggle: starred=%v count=%d err=%v", starred, count, err)
	}
}

func TestFeedOrdersByStarsThenRecency(t *testing.T) {
	store := memory.New()
	svc := newService(store)
	ctx := context.Background()

	creator := seedUser(t, store, "alice", 10)
	fan := seedUser(t, store, "bob", 10)

	first, err := svc.Create(ctx, creator.ID, CreateInput{
		Title: "I will run 5km every day", Amount: 1, Deadline: base.Add(24 * time.Hour),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	second, err := svc.Create(ctx, creator.ID, CreateInput{
		Title: "I will read a book each week", Amount: 1, Deadline: base.Add(24 * time.Hour),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, _, err := svc.ToggleStar(ctx, fan.ID, first.ID); err != nil {
		t.Fatalf("star: %v", err)
	}

	page, err := svc.Feed(ctx, 0, 10)
	if err != nil {
		t.Fatalf("feed: %v", err)
	}
	if page.Total != 2 || len(page.Items) != 2 {
		t.Fatalf("feed page = %+v", page)
	}
	if page.Items[0].ID != first.ID || page.Items[1].ID != second.ID {
		t.Fatalf("feed order = [%s, %s], want starred bet first", page.Items[0].ID, page.Items[1].ID)
	}
}

func TestFeedCacheServesAndInvalidates(t *testing.T) {
	store := memory.New()
	cache := feedcache.NewMemory()
	svc := New(store, nil, cache, nil).WithClock(fixedClock(base))
	ctx := context.Background()

	creator := seedUser(t, store, "alice", 20)

	if _, err := svc.Create(ctx, creator.ID, CreateInput{
		Title: "I will run 5km every day", Amount: 1, Deadline: base.Add(24 * time.Hour),
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	page, err := svc.Feed(ctx, 0, 10)
	if err != nil || page.Total != 1 {
		t.Fatalf("feed: total=%d err=%v", page.Total, err)
	}

	// Second read must come from the cache.
	if _, ok, _ := cache.Get(ctx, "0:10"); !ok {
		t.Fatal("feed page was not cached")
	}

	// A new bet invalidates the cache and shows up on the next read.
	if _, err := svc.Create(ctx, creator.ID, CreateInput{
		Title: "I will read a book each week", Amount: 1, Deadline: base.Add(24 * time.Hour),
	}); err != nil {
		t.Fatalf("create: %v", err)
	}
	page, err = svc.Feed(ctx, 0, 10)
	if err != nil || page.Total != 2 {
		t.Fatalf("feed after create: total=%d err=%v", page.Total, err)
	}
}
