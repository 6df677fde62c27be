package billing

import "time"

type subscribeRequest struct {
	Plan   string `json:"plan"`
	Period string `json:"period"`
}

type seatRequest struct {
	MemberID string `json:"member_id"`
}

type infoResponse struct {
	Tier          string     `json:"tier"`
	Status        string     `json:"status"`
	MaxSeats      int        `json:"max_seats"`
	CurrentSeats  int        `json:"current_seats"`
	TrialEndsAt   *time.Time `json:"trial_ends_at,omitempty"`
	DaysRemaining int        `json:"days_remaining"`
	IsActive      bool       `json:"is_active"`
	Banner        bool       `json:"banner"`
	UpgradeNudge  bool       `json:"upgrade_nudge"`
	LockedOut     bool       `json:"locked_out"`
}
