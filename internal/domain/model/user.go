package model

import "time"

// User is a registered account. PasswordHash is never serialized.
type User struct {
	ID           string            `json:"id"`
	Username     string            `json:"username"`
	Email        string            `json:"email"`
	PasswordHash string            `json:"-"`
	Profile      UserProfile       `json:"profile"`
	Teams        map[League]string `json:"favorite_teams,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
}

// LeaderboardEntry is one row of a points ranking.
type LeaderboardEntry struct {
	Rank     int    `json:"rank"`
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Points   int64  `json:"points"`
}

// TeamSpending is total spend by fans of one favorite team.
type TeamSpending struct {
	Team          string  `json:"favorite_team"`
	TotalSpending float64 `json:"total_spending"`
}

// ChannelCount is the number of transactions for one payment channel.
type ChannelCount struct {
	PaymentChannel string `json:"payment_channel"`
	Count          int64  `json:"transaction_count"`
}
