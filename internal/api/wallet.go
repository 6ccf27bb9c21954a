package api

import (
	"encoding/json" // json.Number amounts
	"net/http"      // HTTP status codes
	"strconv"       // Query parsing

	"umbra_payment/internal/domain" // Importing domain models
	"umbra_payment/internal/ledger" // Wallet ledger
	"umbra_payment/internal/utils"  // Amount parsing

	"github.com/gin-gonic/gin" // Gin web framework
)

// recentTransactions is the history shown with a wallet
const recentTransactions = 10

// WalletView is a wallet as returned to clients
type WalletView struct {
	*domain.Wallet
	Currency string `json:"currency"` // Unit of account
}

func viewOf(w *domain.Wallet) WalletView {
	return WalletView{Wallet: w, Currency: domain.Currency}
}

// TopUpRequest represents a top-up request
type TopUpRequest struct {
	Amount         json.Number            `json:"amount"`                                       // Positive whole number of minor units
	IdempotencyKey string                 `json:"idempotency_key" validate:"omitempty,max=128"` // Retry token, or the Idempotency-Key header
	Source         string                 `json:"source" validate:"omitempty,max=64"`           // Where the credit came from
	Metadata       map[string]interface{} `json:"metadata"`                                     // Free-form payload
}

// SpendRequest represents a spend request
type SpendRequest struct {
	Amount         json.Number            `json:"amount"`                                       // Positive whole number of minor units
	IdempotencyKey string                 `json:"idempotency_key" validate:"omitempty,max=128"` // Retry token, or the Idempotency-Key header
	Reason         string                 `json:"reason" validate:"omitempty,max=128"`          // What the coins paid for
	Metadata       map[string]interface{} `json:"metadata"`                                     // Free-form payload
}

// withTag adds a named field to caller metadata without mutating it
func withTag(metadata map[string]interface{}, name, value string) map[string]interface{} {
	if value == "" {
		return metadata
	}
	out := make(map[string]interface{}, len(metadata)+1)
	for k, v := range metadata {
		out[k] = v
	}
	out[name] = value
	return out
}

// parseMutation validates the amount and resolves the idempotency key
func parseMutation(c *gin.Context, raw json.Number, bodyKey string) (int64, string, bool) {
	amount, err := utils.ParseAmount(raw)
	if err != nil {
		writeFailure(c, http.StatusBadRequest, "InvalidAmount", err.Error(), nil)
		return 0, "", false
	}
	key, err := idempotencyKey(c, bodyKey)
	if err != nil {
		writeError(c, err)
		return 0, "", false
	}
	return amount, key, true
}

// respondMutation writes the transaction with the wallet as it is now
func respondMutation(c *gin.Context, l *ledger.Ledger, txn *domain.Transaction, message string) {
	wallet, err := l.GetWallet(c.Request.Context(), txn.UserID)
	if err != nil {
		writeError(c, err)
		return
	}
	status, meta := replayMeta(txn.Replayed)
	writeSuccess(c, status, message, gin.H{"wallet": viewOf(wallet), "transaction": txn}, meta)
}

// TopUpHandler credits a wallet
func TopUpHandler(l *ledger.Ledger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req TopUpRequest // Bind JSON request to struct
		if !bindJSON(c, &req) {
			return
		}
		amount, key, ok := parseMutation(c, req.Amount, req.IdempotencyKey)
		if !ok {
			return
		}
		metadata := withTag(req.Metadata, "source", req.Source)
		txn, err := l.TopUp(c.Request.Context(), c.Param("user_id"), amount, key, metadata)
		if err != nil {
			writeError(c, err)
			return
		}
		respondMutation(c, l, txn, "Top-up successful")
	}
}

// SpendHandler debits a wallet
func SpendHandler(l *ledger.Ledger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req SpendRequest // Bind JSON request to struct
		if !bindJSON(c, &req) {
			return
		}
		amount, key, ok := parseMutation(c, req.Amount, req.IdempotencyKey)
		if !ok {
			return
		}
		metadata := withTag(req.Metadata, "reason", req.Reason)
		txn, err := l.Spend(c.Request.Context(), c.Param("user_id"), amount, key, metadata)
		if err != nil {
			writeError(c, err)
			return
		}
		respondMutation(c, l, txn, "Spend successful")
	}
}

// GetWalletHandler returns the wallet with its most recent transactions
func GetWalletHandler(l *ledger.Ledger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Param("user_id")
		wallet, err := l.GetWallet(c.Request.Context(), userID)
		if err != nil {
			writeError(c, err)
			return
		}
		page, err := l.ListTransactions(c.Request.Context(), userID, ledger.Page{Limit: recentTransactions})
		if err != nil {
			writeError(c, err)
			return
		}
		writeSuccess(c, http.StatusOK, "", gin.H{"wallet": viewOf(wallet), "transactions": page.Transactions}, nil)
	}
}

// GetTransactionsHandler pages through wallet history, newest first
func GetTransactionsHandler(l *ledger.Ledger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var limit int
		if v := c.Query("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				writeFailure(c, http.StatusBadRequest, "InvalidRequest", "limit must be a positive integer", nil)
				return
			}
			limit = n
		}
		page, err := l.ListTransactions(c.Request.Context(), c.Param("user_id"), ledger.Page{Cursor: c.Query("cursor"), Limit: limit})
		if err != nil {
			writeError(c, err)
			return
		}
		writeSuccess(c, http.StatusOK, "", gin.H{"transactions": page.Transactions},
			gin.H{"next_cursor": page.NextCursor, "limit": page.Limit})
	}
}
