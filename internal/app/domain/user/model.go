package user

import "time"

// StartingPoints is credited to every new account at registration.
const StartingPoints int64 = 10

// User is a registered account. Points only change through the ledger
// debit/credit primitives on the store; nothing else may touch the balance.
type User struct {
	ID             string
	Username       string
	Email          string
	HashedPassword string
	Points         int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
