package notification

import "time"

// Notification is a short message delivered to a user, usually pointing at a
// bet that needs their attention (for example a proof awaiting their vote).
type Notification struct {
	ID        string
	UserID    string
	BetID     string
	Message   string
	Read      bool
	CreatedAt time.Time
}
