package api

import (
	"net/http" // HTTP status codes

	"umbra_payment/internal/catalog"    // Pool catalog
	"umbra_payment/internal/gacha"      // Draw engine
	"umbra_payment/internal/ledger"     // Wallet ledger
	"umbra_payment/internal/middleware" // Custom middleware

	"github.com/gin-gonic/gin" // Gin web framework
)

// ServiceName is reported by the health check
const ServiceName = "umbra-payment"

// Deps are the collaborators the handlers serve
type Deps struct {
	Ledger    *ledger.Ledger
	Engine    *gacha.Engine
	Catalog   catalog.Reader
	JWTSecret string // Empty disables the identity check
}

// HealthHandler reports liveness
func HealthHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		writeSuccess(c, http.StatusOK, "", gin.H{"status": "ok", "service": ServiceName}, nil)
	}
}

// RegisterRoutes mounts every endpoint on r
func RegisterRoutes(r *gin.Engine, d Deps) {
	r.GET("/health", HealthHandler()) // Health endpoint

	protected := []gin.HandlerFunc{}
	if d.JWTSecret != "" {
		protected = append(protected, middleware.JWTAuthMiddleware(d.JWTSecret))
	}

	// Wallet routes
	walletGroup := r.Group("/wallets/:user_id", protected...)
	walletGroup.Use(middleware.WalletOwnerMiddleware("user_id"))
	walletGroup.GET("", GetWalletHandler(d.Ledger))                    // Wallet with recent history
	walletGroup.POST("/topup", TopUpHandler(d.Ledger))                 // Credit endpoint
	walletGroup.POST("/spend", SpendHandler(d.Ledger))                 // Debit endpoint
	walletGroup.GET("/transactions", GetTransactionsHandler(d.Ledger)) // History endpoint
	walletGroup.GET("/reconcile", middleware.OperatorOnlyMiddleware(), ReconcileHandler(d.Ledger))

	// Gacha routes
	gachaGroup := r.Group("/gacha")
	gachaGroup.GET("/pools", ListPoolsHandler(d.Catalog)) // Catalog endpoint
	drawChain := append(append([]gin.HandlerFunc{}, protected...), DrawHandler(d.Engine))
	gachaGroup.POST("/draw", drawChain...) // Draw endpoint

	r.NoRoute(func(c *gin.Context) {
		writeFailure(c, http.StatusNotFound, "NotFound", "Route not found", nil)
	})
}
