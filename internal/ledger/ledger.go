package ledger

import "time"

// Entry is a single row of the per-guild contribution ledger.
type Entry struct {
	GuildID     int64     `json:"guild_id" db:"guild_id"`
	UserID      int64     `json:"user_id" db:"user_id"`
	Username    string    `json:"username" db:"username"`
	Points      int       `json:"points" db:"points"`
	LastUpdated time.Time `json:"last_updated" db:"last_updated"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Row is one leaderboard page entry. Rank is 1-based over the full guild
// ordering (points descending, earlier last_updated wins ties), not per page.
type Row struct {
	Rank        int       `json:"rank" db:"rank"`
	UserID      int64     `json:"user_id" db:"user_id"`
	Username    string    `json:"username" db:"username"`
	Points      int       `json:"points" db:"points"`
	LastUpdated time.Time `json:"last_updated" db:"last_updated"`
}

// Page is one fetched leaderboard page with its pagination context.
type Page struct {
	Rows         []Row `json:"rows"`
	Page         int   `json:"page"`
	TotalPages   int   `json:"total_pages"`
	TotalMembers int   `json:"total_members"`
}

// Stats is a single member's ledger position.
type Stats struct {
	Username    string    `json:"username"`
	Points      int       `json:"points"`
	Rank        int       `json:"rank"`
	LastUpdated time.Time `json:"last_updated"`
	CreatedAt   time.Time `json:"created_at"`
}

// Profile is the optional customization extension of a ledger entry.
// It never exists without the entry it points at.
type Profile struct {
	CustomTitle    string `json:"custom_title"`
	StatusMessage  string `json:"status_message"`
	PreferredColor string `json:"preferred_color"`
	NotificationDM bool   `json:"notification_dm"`
}

// ProfileUpdate carries the fields a profile command may change. Nil fields
// are left untouched.
type ProfileUpdate struct {
	CustomTitle    *string
	StatusMessage  *string
	PreferredColor *string
	NotificationDM *bool
}

// GuildStats summarizes a whole guild's ledger.
type GuildStats struct {
	TotalMembers int     `json:"total_members"`
	TotalPoints  int64   `json:"total_points"`
	AvgPoints    float64 `json:"avg_points"`
	MaxPoints    int     `json:"max_points"`
}
