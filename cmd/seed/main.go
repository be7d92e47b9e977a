// Package main seeds a database with demo users, bets and challenges.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/pactpoint/backend/internal/app/services/bets"
	"github.com/pactpoint/backend/internal/app/services/challenges"
	"github.com/pactpoint/backend/internal/app/services/users"
	"github.com/pactpoint/backend/internal/app/storage/postgres"
	"github.com/pactpoint/backend/internal/platform/migrations"
)

func main() {
	dsn := flag.String("dsn", os.Getenv("DATABASE_DSN"), "Postgres DSN to seed")
	flag.Parse()

	if *dsn == "" {
		log.Fatal("a Postgres DSN is required (-dsn or DATABASE_DSN)")
	}

	ctx := context.Background()

	db, err := sqlx.Open("postgres", *dsn)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("ping database: %v", err)
	}
	if err := migrations.Apply(ctx, db.DB); err != nil {
		log.Fatalf("apply migrations: %v", err)
	}

	store := postgres.New(db)
	userSvc := users.New(store, "seed-only", time.Minute, nil, nil)
	betSvc := bets.New(store, nil, nil, nil)
	challengeSvc := challenges.New(store, nil)

	seedUsers := []users.RegisterInput{
		{Username: "alice", Email: "alice@example.com", Password: "password1"},
		{Username: "bob", Email: "bob@example.com", Password: "password1"},
		{Username: "carol", Email: "carol@example.com", Password: "password1"},
	}

	ids := make(map[string]string, len(seedUsers))
	for _, in := range seedUsers {
		u, err := userSvc.Register(ctx, in)
		if err != nil {
			log.Fatalf("register %s: %v", in.Username, err)
		}
		ids[in.Username] = u.ID
		fmt.Printf("user %s (%s) with %d points\n", u.Username, u.ID, u.Points)
	}

	b, err := betSvc.Create(ctx, ids["alice"], bets.CreateInput{
		Title:    "I will run 5km every morning this week",
		Criteria: "Strava screenshots for all seven days",
		Amount:   7,
		Deadline: time.Now().UTC().Add(7 * 24 * time.Hour),
	})
	if err != nil {
		log.Fatalf("create bet: %v", err)
	}
	fmt.Printf("bet %s staked at %d points\n", b.ID, b.Amount)

	for _, c := range []struct {
		username string
		amount   int64
	}{
		{"bob", 4},
		{"carol", 5},
	} {
		ch, err := challengeSvc.Create(ctx, ids[c.username], b.ID, c.amount)
		if err != nil {
			log.Fatalf("challenge by %s: %v", c.username, err)
		}
		fmt.Printf("challenge %s: %s staked %d points\n", ch.ID, c.username, ch.Amount)
	}

	fmt.Println("seed complete")
}
