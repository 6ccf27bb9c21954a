package api

import (
	"net/http" // HTTP status codes

	"umbra_payment/internal/ledger" // Wallet ledger

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logging library
)

// ReconcileHandler replays a wallet's history against its stored balance.
// Inconsistencies are reported in the body and logged; the request itself succeeds.
func ReconcileHandler(l *ledger.Ledger) gin.HandlerFunc {
	return func(c *gin.Context) {
		rec, err := l.Reconcile(c.Request.Context(), c.Param("user_id"))
		if err != nil {
			writeError(c, err)
			return
		}
		if !rec.Consistent {
			// Log the mismatch with context
			logrus.WithFields(logrus.Fields{
				"user_id":  rec.UserID,   // Wallet owner
				"balance":  rec.Balance,  // Stored balance
				"replayed": rec.Replayed, // Balance rebuilt from history
				"mismatch": rec.Mismatch, // First inconsistency found
			}).Error("Wallet failed reconciliation")
		}
		writeSuccess(c, http.StatusOK, "", rec, nil)
	}
}
