package domain

import "time"

// Chat is a conversation registered with the bot. RolloverCursor is the
// latest date whose rollover has been applied to this chat, nil if never.
type Chat struct {
	ID             int64
	UserID         int64
	RolloverCursor *Date
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NeedsRollover reports whether the rollover of yesterday has not yet
// been applied.
func (c *Chat) NeedsRollover(yesterday Date) bool {
	return c.RolloverCursor == nil || c.RolloverCursor.Before(yesterday)
}
