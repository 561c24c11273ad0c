package handler

import (
	"net/http"

	"fairplay-wallet/internal/adapter/http/middleware"
	redisStore "fairplay-wallet/internal/adapter/storage/redis"
	"fairplay-wallet/internal/core/ports"
	"fairplay-wallet/internal/metrics"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	WalletSvc      ports.WalletService
	DepositSvc     ports.DepositService
	GameSvc        ports.GameService
	Gateways       ports.GatewayRegistry
	TokenSvc       ports.TokenService
	RateLimitStore *redisStore.RateLimitStore          // nil = rate limiting disabled
	RateLimitRules map[string]middleware.RateLimitRule // nil = middleware.DefaultRateLimitRules()
	HealthCheckers []ports.HealthChecker
	Metrics        *metrics.Metrics
	MetricsHandler http.Handler // nil = promhttp.Handler()
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.Observe(deps.Metrics))
	r.Use(middleware.MaxBodySize(1 << 20))

	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	metricsHandler := deps.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	r.GET("/metrics", gin.WrapH(metricsHandler))

	rules := deps.RateLimitRules
	if rules == nil {
		rules = middleware.DefaultRateLimitRules()
	}
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	v1 := r.Group("/api/v1")

	// Gateway callbacks are authenticated by the provider signature. The IPN
	// comes from a few provider addresses and must always get a provider ack,
	// so only the browser return is limited per IP.
	callbackHandler := NewCallbackHandler(deps.DepositSvc, deps.Gateways, deps.Logger)
	payments := v1.Group("/payments/:provider")
	{
		payments.GET("/return", rl("callbacks"), callbackHandler.Return)
		payments.GET("/ipn", callbackHandler.Notify)
		payments.POST("/ipn", callbackHandler.Notify)
	}

	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)

	walletHandler := NewWalletHandler(deps.WalletSvc)
	wallets := v1.Group("/wallets/me", jwtAuth, rl("wallets"))
	{
		wallets.GET("", walletHandler.GetWallet)
		wallets.GET("/balance", walletHandler.GetBalance)
		wallets.GET("/transactions", walletHandler.ListTransactions)
		wallets.PUT("/currency", walletHandler.ChangeCurrency)
	}

	depositHandler := NewDepositHandler(deps.DepositSvc)
	v1.POST("/deposits", jwtAuth, rl("deposits"), depositHandler.CreateDeposit)

	gameHandler := NewGameHandler(deps.GameSvc, deps.WalletSvc)
	games := v1.Group("/games", jwtAuth)
	{
		games.POST("/seed", rl("seeds"), gameHandler.CommitSeed)
		games.POST("/:game/bets", rl("games"), gameHandler.PlaceBet)
		games.GET("/rounds/:id", rl("games"), gameHandler.GetRound)
	}

	return r
}
