// ==============================================================================
// PAYMENT PORTAL SERVICE MAIN - cmd/payment/main.go
// ==============================================================================
package main

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"swiftpay/internal/auth"
	"swiftpay/internal/domain"
	"swiftpay/internal/handler"
	"swiftpay/internal/middleware"
	"swiftpay/internal/payment"
	"swiftpay/internal/release"
	"swiftpay/internal/repository/postgres"
	"swiftpay/internal/settlement"
	"swiftpay/pkg/config"
	"swiftpay/pkg/logger"
	"swiftpay/pkg/validator"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logger.New("payment-portal")

	if err := cfg.ValidateCore(); err != nil {
		log.Fatal("Invalid configuration", map[string]interface{}{"error": err.Error()})
	}

	log.Info("Starting payment portal", map[string]interface{}{
		"port": cfg.Server.Port,
	})

	// Database connection
	db, err := sqlx.Connect("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatal("Failed to connect to database", map[string]interface{}{
			"error": err.Error(),
		})
	}
	defer db.Close()

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	log.Info("Database connected", nil)

	// Redis connection
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.URL,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Fatal("Failed to connect to Redis", map[string]interface{}{
			"error": err.Error(),
		})
	}

	log.Info("Redis connected", nil)

	// Repositories
	paymentRepo := postgres.NewPaymentRepository(db)
	userRepo := postgres.NewUserRepository(db)

	// Services
	val := validator.New()
	authService := auth.NewService(userRepo, cfg.JWT.Secret, cfg.JWT.Expiration)
	paymentService := payment.NewService(paymentRepo, val, log)
	gateway := settlement.NewGateway(cfg.Settlement, log)
	coordinator := release.NewCoordinator(paymentRepo, gateway, log, cfg.Settlement.RequestTimeout)

	// Handlers
	blacklist := middleware.NewRedisTokenBlacklist(redisClient)
	authHandler := handler.NewAuthHandler(authService, blacklist, log)
	paymentHandler := handler.NewPaymentHandler(paymentService, coordinator, log)

	// Router
	r := mux.NewRouter()

	r.Use(middleware.CORS)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.Recovery(log))
	r.Use(middleware.CorrelationID)
	r.Use(middleware.NewLoggingMiddleware(log).Log)
	r.Use(middleware.Metrics)
	r.Use(middleware.NewRateLimiter(redisClient, "global", 150, time.Minute).Limit)

	authMW := middleware.NewAuthMiddleware(cfg.JWT.Secret, blacklist)

	// Unauthenticated routes
	r.HandleFunc("/health", healthCheck).Methods("GET")
	r.HandleFunc("/ready", readyCheck(db)).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	login := r.PathPrefix("/api/v1/auth").Subrouter()
	login.Use(middleware.NewRateLimiter(redisClient, "login", 10, time.Minute).Limit)
	login.HandleFunc("/login", authHandler.Login).Methods("POST")

	// Settlement network callback, authenticated by shared key rather than JWT.
	r.Handle("/api/v1/payments/settlement-callback",
		requireSettlementKey(cfg.Settlement.APIKey, http.HandlerFunc(paymentHandler.SettlementCallback)),
	).Methods("POST")

	// Protected routes
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(authMW.Authenticate)
	api.Use(middleware.NewRateLimiter(redisClient, "api", 60, time.Minute).Limit)

	api.HandleFunc("/auth/me", authHandler.Me).Methods("GET")
	api.HandleFunc("/auth/logout", authHandler.Logout).Methods("POST")

	customerOnly := middleware.RequireRole(domain.RoleCustomer)
	employeeOnly := middleware.RequireRole(domain.RoleEmployee)

	api.Handle("/payments", customerOnly(http.HandlerFunc(paymentHandler.CreatePayment))).Methods("POST")
	api.Handle("/payments/my", customerOnly(http.HandlerFunc(paymentHandler.MyPayments))).Methods("GET")
	api.Handle("/payments", employeeOnly(http.HandlerFunc(paymentHandler.ListPayments))).Methods("GET")
	// Release endpoint requires an Idempotency-Key so a double-click or retry
	// replays the first outcome instead of opening a second batch.
	idempotency := middleware.NewIdempotencyMiddleware(redisClient, 24*time.Hour)
	api.Handle("/payments/submit-swift",
		employeeOnly(idempotency.Require(http.HandlerFunc(paymentHandler.SubmitBatch)))).Methods("POST")
	api.Handle("/payments/{id}/verify", employeeOnly(http.HandlerFunc(paymentHandler.VerifyPayment))).Methods("PUT")
	api.Handle("/payments/{id}/reject", employeeOnly(http.HandlerFunc(paymentHandler.RejectPayment))).Methods("PUT")

	// Start server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Graceful shutdown
	go func() {
		log.Info("Payment portal started", map[string]interface{}{
			"address": srv.Addr,
		})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed to start", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down payment portal...", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Payment portal forced to shutdown", map[string]interface{}{
			"error": err.Error(),
		})
	}

	log.Info("Payment portal stopped gracefully", nil)
}

func requireSettlementKey(apiKey string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		provided := r.Header.Get("X-Settlement-Key")
		if apiKey == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(apiKey)) != 1 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"invalid settlement key"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	_ = r
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy","service":"payment-portal","timestamp":"` + time.Now().Format(time.RFC3339) + `"}`))
}

func readyCheck(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_ = r
		if err := db.Ping(); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"not ready","reason":"database unavailable"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ready","service":"payment-portal"}`))
	}
}
