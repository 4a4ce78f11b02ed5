package router

import (
	"context"
	"net/http"
	"time"

	"recharge-wallet/internal/handlers"
	"recharge-wallet/internal/middleware"
	"recharge-wallet/internal/models"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type Handlers struct {
	Auth         *handlers.AuthHandler
	User         *handlers.UserHandler
	Balance      *handlers.BalanceHandler
	Transaction  *handlers.TransactionHandler
	Recharge     *handlers.RechargeHandler
	Directory    *handlers.DirectoryHandler
	HealthPinger Pinger
}

type Options struct {
	JWTSecret string
	RateRPS   float64
	RateBurst int
}

func SetupRouter(h Handlers, opts Options, logger zerolog.Logger) *mux.Router {
	r := mux.NewRouter()

	rateLimiter := middleware.NewRateLimiter(rate.Limit(opts.RateRPS), opts.RateBurst)
	authenticate := middleware.Authentication(opts.JWTSecret, logger)

	r.Use(middleware.ErrorHandling(logger))
	r.Use(middleware.Metrics())
	r.Use(middleware.PerformanceMonitoring(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS())

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(rateLimiter.Middleware())
	api.Use(middleware.RequestValidation())

	auth := api.PathPrefix("/auth").Subrouter()
	auth.HandleFunc("/otp/request", h.Auth.RequestOTP).Methods("POST")
	auth.HandleFunc("/otp/verify", h.Auth.VerifyOTP).Methods("POST")

	users := api.PathPrefix("/users").Subrouter()
	users.Use(authenticate)
	users.HandleFunc("/me", h.User.GetProfile).Methods("GET")

	wallet := api.PathPrefix("/wallet").Subrouter()
	wallet.Use(authenticate)
	wallet.HandleFunc("/balance", h.Balance.GetCurrentBalance).Methods("GET")
	wallet.HandleFunc("/transactions", h.Transaction.GetHistory).Methods("GET")

	recharges := api.PathPrefix("/recharges").Subrouter()
	recharges.Use(authenticate)
	recharges.HandleFunc("", h.Recharge.SubmitRecharge).Methods("POST")
	recharges.HandleFunc("/{transactionID:[0-9]+}", h.Recharge.GetRecharge).Methods("GET")

	directory := api.PathPrefix("").Subrouter()
	directory.Use(authenticate)
	directory.HandleFunc("/operators", h.Directory.ListOperators).Methods("GET")
	directory.HandleFunc("/banks", h.Directory.ListBanks).Methods("GET")

	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(authenticate)
	admin.Use(middleware.RequireRole(string(models.RoleAdmin)))
	admin.HandleFunc("/users/{userID:[0-9]+}", h.User.GetUser).Methods("GET")
	admin.HandleFunc("/wallet/credit", h.Transaction.Credit).Methods("POST")
	admin.HandleFunc("/wallet/debit", h.Transaction.Debit).Methods("POST")
	admin.HandleFunc("/wallet/{userID:[0-9]+}/reconcile", h.Balance.ReconcileBalance).Methods("GET")
	admin.HandleFunc("/directory/operators/sync", h.Directory.SyncOperators).Methods("POST")
	admin.HandleFunc("/directory/banks/sync", h.Directory.SyncBanks).Methods("POST")
	admin.HandleFunc("/operators/{code}", h.Directory.SetOperatorStatus).Methods("PUT")
	admin.HandleFunc("/reconciliation", h.Recharge.TriggerReconciliation).Methods("POST")

	r.Handle("/metrics", promhttp.Handler()).Methods("GET")
	r.HandleFunc("/health", healthHandler(h.HealthPinger)).Methods("GET")

	return r
}

func healthHandler(p Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if p != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := p.PingContext(ctx); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte(`{"status":"unavailable"}`))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}
}
