package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"paysuit/internal/handlers"
	"paysuit/internal/metrics"
	"paysuit/internal/models"
	"paysuit/internal/payments"
	"paysuit/internal/push"
	"paysuit/internal/store"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using defaults")
	}

	// Redis Configuration
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}
	redisPassword := os.Getenv("REDIS_PASSWORD")
	redisDBStr := os.Getenv("REDIS_DB")
	redisDB := 0
	if redisDBStr != "" {
		if db, err := strconv.Atoi(redisDBStr); err == nil {
			redisDB = db
		}
	}

	// Initialize Redis store (notification feed + live events)
	feedStore := store.NewRedisStore(&redis.Options{
		Addr:     redisAddr,
		Password: redisPassword,
		DB:       redisDB,
	})

	// PostgreSQL Configuration
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	// Initialize PostgreSQL store (system of record)
	pgStore, err := store.NewPostgresStore(databaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}

	// Run database migrations
	ctx := context.Background()
	if err := pgStore.RunMigrations(ctx); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Database migrations completed")

	metrics.MustRegister()

	// Push fan-out pipeline
	vapidPrivate, vapidPublic, err := push.LoadVAPIDKeys()
	if err != nil {
		log.Fatalf("Failed to load VAPID keys: %v", err)
	}
	vapidContact := os.Getenv("VAPID_CONTACT")
	if vapidContact == "" {
		vapidContact = "mailto:admin@paysuit.local"
	}
	sender := push.NewSender(pgStore, vapidPublic, vapidPrivate, vapidContact)

	h := handlers.NewHandler(pgStore, feedStore, sender, payments.SandboxGateway{})

	// Create a default admin account on first boot
	h.InitAdmin(ctx)

	// Public routes
	http.HandleFunc("/healthz", h.HealthHandler)
	http.HandleFunc("/api/register", h.RegisterHandler)
	http.HandleFunc("/api/login", h.LoginHandler)
	http.HandleFunc("/api/login/2fa", h.Verify2FALoginHandler)
	http.HandleFunc("/api/push/vapid-key", h.VAPIDKeyHandler)
	http.HandleFunc("/api/payments/callback", h.PaymentCallbackHandler)
	http.Handle("/metrics", promhttp.Handler())

	// Session routes
	http.HandleFunc("/api/logout", handlers.AuthMiddleware(h.LogoutHandler))
	http.HandleFunc("/events", handlers.AuthMiddleware(h.SSEHandler))
	http.HandleFunc("/api/me", handlers.AuthMiddleware(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			h.MeHandler(w, r)
		case http.MethodPut:
			h.UpdateProfileHandler(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}))
	http.HandleFunc("/api/me/password", handlers.AuthMiddleware(h.ChangePasswordHandler))
	http.HandleFunc("/api/me/houses", handlers.AuthMiddleware(h.MyHousesHandler))
	http.HandleFunc("/api/me/payments", handlers.AuthMiddleware(h.MyPaymentsHandler))

	// 2FA management
	http.HandleFunc("/api/2fa/generate", handlers.AuthMiddleware(h.Generate2FAHandler))
	http.HandleFunc("/api/2fa/enable", handlers.AuthMiddleware(h.Enable2FAHandler))
	http.HandleFunc("/api/2fa/disable", handlers.AuthMiddleware(h.Disable2FAHandler))

	// Push notifications
	http.HandleFunc("/api/push/subscribe", handlers.AuthMiddleware(h.SubscribeHandler))
	http.HandleFunc("/api/push/unsubscribe", handlers.AuthMiddleware(h.UnsubscribeHandler))
	http.HandleFunc("/api/push/send", handlers.RoleMiddleware(h.SendPushHandler,
		models.RoleAdmin, models.RoleLandlord))
	http.HandleFunc("/api/push/broadcast", handlers.RoleMiddleware(h.BroadcastPushHandler,
		models.RoleAdmin))

	// Notification feed
	http.HandleFunc("/api/notifications", handlers.AuthMiddleware(h.ListNotificationsHandler))
	http.HandleFunc("/api/notifications/purge", handlers.AuthMiddleware(h.PurgeNotificationsHandler))

	// Apartments and houses
	http.HandleFunc("/api/apartments", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			handlers.RoleMiddleware(h.ListApartmentsHandler, models.RoleAdmin, models.RoleLandlord)(w, r)
		case http.MethodPost:
			handlers.RoleMiddleware(h.CreateApartmentHandler, models.RoleLandlord)(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	http.HandleFunc("/api/apartments/", handlers.AuthMiddleware(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/houses"):
			h.ApartmentHousesHandler(w, r)
		case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/payments"):
			h.ApartmentPaymentsHandler(w, r)
		default:
			http.Error(w, "Not found", http.StatusNotFound)
		}
	}))
	http.HandleFunc("/api/houses/", handlers.AuthMiddleware(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		switch {
		case strings.HasSuffix(r.URL.Path, "/join"):
			handlers.RoleMiddleware(h.JoinHouseHandler, models.RoleTenant)(w, r)
		case strings.HasSuffix(r.URL.Path, "/vacate"):
			h.VacateHouseHandler(w, r)
		default:
			http.Error(w, "Not found", http.StatusNotFound)
		}
	}))

	// Payments
	http.HandleFunc("/api/payments/initiate", handlers.RoleMiddleware(h.InitiatePaymentHandler,
		models.RoleTenant))

	// Admin API routes (protected)
	http.HandleFunc("/api/admin/users", handlers.RoleMiddleware(h.GetUsersHandler, models.RoleAdmin))
	http.HandleFunc("/api/admin/users/", handlers.RoleMiddleware(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPut:
			h.UpdateUserRolesHandler(w, r)
		case http.MethodDelete:
			h.DeleteUserHandler(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}, models.RoleAdmin))
	http.HandleFunc("/api/admin/2fa/disable", handlers.RoleMiddleware(h.AdminDisable2FAHandler, models.RoleAdmin))
	http.HandleFunc("/api/admin/audit", handlers.RoleMiddleware(h.AuditLogHandler, models.RoleAdmin))

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Println("Listening on :" + port)
	if err := http.ListenAndServe(":"+port, nil); err != nil {
		log.Fatal(err)
	}
}
