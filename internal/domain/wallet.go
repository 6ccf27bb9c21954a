package domain

import "time"

// Wallet Model
type Wallet struct {
	UserID    string    `gorm:"primaryKey;size:64" json:"user_id"` // Owning user, one wallet per user
	Balance   int64     `gorm:"not null;default:0" json:"balance"` // Balance in minor units, never negative
	Version   int64     `gorm:"not null;default:0" json:"version"` // Bumped by every committed mutation
	CreatedAt time.Time `json:"created_at"`                        // First provisioning time
	UpdatedAt time.Time `json:"updated_at"`                        // Last mutation time
}

// Currency is the single unit of account held by every wallet
const Currency = "UMBC"

// CanDebit reports whether the wallet can pay amount without going negative
func (w *Wallet) CanDebit(amount int64) bool {
	return amount > 0 && w.Balance >= amount
}
