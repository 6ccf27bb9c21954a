package gacha

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// drawMetadata is the outcome record stored on a DRAW_DEBIT transaction
type drawMetadata struct {
	PoolID      string        `json:"pool_id"`
	Count       int           `json:"count"`
	Seed        string        `json:"seed,omitempty"` // Decimal, a uint64 does not survive a float64
	TotalWeight int64         `json:"total_weight"`
	DrawnAt     time.Time     `json:"drawn_at"`
	Rolls       []int64       `json:"rolls"`
	Rewards     []drawnReward `json:"rewards,omitempty"`
}

type drawnReward struct {
	RewardID string `json:"reward_id"`
	Name     string `json:"name"`
	Rarity   string `json:"rarity"`
}

// encode produces the generic JSON object the ledger stores. Numbers come back
// as float64, the same shape a store returns after reading the column.
func (m *drawMetadata) encode() (map[string]interface{}, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode draw metadata: %w", err)
	}
	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to encode draw metadata: %w", err)
	}
	return out, nil
}

func decodeMetadata(m map[string]interface{}) (*drawMetadata, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to read draw metadata: %w", err)
	}
	var out drawMetadata
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to read draw metadata: %w", err)
	}
	return &out, nil
}

func formatSeed(seed *uint64) string {
	if seed == nil {
		return ""
	}
	return strconv.FormatUint(*seed, 10)
}
