package domain

import "time"

// DrawOutcome is one reward selected by a draw, linked to the DRAW_DEBIT that paid for it.
// It is derived from the transaction metadata and never stored on its own.
type DrawOutcome struct {
	TransactionID string    `json:"transaction_id"`
	PoolID        string    `json:"pool_id"`
	RewardID      string    `json:"reward_id"`
	Name          string    `json:"name"`
	Rarity        string    `json:"rarity"`
	Roll          int64     `json:"roll"`
	DrawnAt       time.Time `json:"drawn_at"`
}

// DrawResult groups the outcomes paid for by a single DRAW_DEBIT transaction
type DrawResult struct {
	TransactionID string        `json:"transaction_id"`
	PoolID        string        `json:"pool_id"`
	Cost          int64         `json:"cost"`
	BalanceAfter  int64         `json:"balance_after"`
	TotalWeight   int64         `json:"total_weight"`
	DrawnAt       time.Time     `json:"drawn_at"`
	Outcomes      []DrawOutcome `json:"outcomes"`
	Replayed      bool          `json:"-"`
}
