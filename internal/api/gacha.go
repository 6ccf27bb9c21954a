package api

import (
	"net/http" // HTTP status codes

	"umbra_payment/internal/catalog"    // Pool catalog
	"umbra_payment/internal/domain"     // Importing domain models
	"umbra_payment/internal/gacha"      // Draw engine
	"umbra_payment/internal/middleware" // Wallet access check

	"github.com/gin-gonic/gin" // Gin web framework
)

// PoolView is a pool with its precomputed total weight
type PoolView struct {
	domain.Pool
	TotalWeight int64 `json:"total_weight"` // Sum of reward weights
}

// DrawRequest represents a draw request
type DrawRequest struct {
	UserID         string  `json:"user_id" validate:"required,max=64"`           // Paying wallet
	PoolID         string  `json:"pool_id" validate:"required,max=64"`           // Pool to draw from
	IdempotencyKey string  `json:"idempotency_key" validate:"omitempty,max=128"` // Retry token, or the Idempotency-Key header
	Count          int     `json:"count" validate:"omitempty,min=1,max=50"`      // Draws in one request, default 1
	Seed           *uint64 `json:"seed"`                                         // Reproducible rolls for this request only
}

// ListPoolsHandler returns every pool with rewards and weights
func ListPoolsHandler(pools catalog.Reader) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := pools.ListPools(c.Request.Context())
		if err != nil {
			writeError(c, err)
			return
		}
		views := make([]PoolView, 0, len(list))
		for _, p := range list {
			views = append(views, PoolView{Pool: p, TotalWeight: p.TotalWeight()})
		}
		writeSuccess(c, http.StatusOK, "", gin.H{"pools": views}, nil)
	}
}

// DrawHandler pays for and performs a draw
func DrawHandler(engine *gacha.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req DrawRequest // Bind JSON request to struct
		if !bindJSON(c, &req) {
			return
		}
		if !middleware.CanActFor(c, req.UserID) {
			writeFailure(c, http.StatusForbidden, "Forbidden", "Token does not grant access to this wallet", nil)
			return
		}
		key, err := idempotencyKey(c, req.IdempotencyKey)
		if err != nil {
			writeError(c, err)
			return
		}
		count := req.Count
		if count == 0 {
			count = 1 // Single draw by default
		}
		result, err := engine.DrawMulti(c.Request.Context(), req.UserID, req.PoolID, key, count, req.Seed)
		if err != nil {
			writeError(c, err)
			return
		}
		status, meta := replayMeta(result.Replayed)
		writeSuccess(c, status, "Draw successful", result, meta)
	}
}
