package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/csrf"
	"github.com/gorilla/sessions"
	"github.com/guilucasv/teodorofit/internal/config"
	"github.com/guilucasv/teodorofit/internal/handlers"
	"github.com/guilucasv/teodorofit/internal/inventory"
	"github.com/guilucasv/teodorofit/internal/mailer"
	"github.com/guilucasv/teodorofit/internal/outbox"
	"github.com/guilucasv/teodorofit/internal/payment"
	"github.com/guilucasv/teodorofit/internal/store"
)

func main() {
	// Configure slog before anything else logs.
	handlerOpts := &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, handlerOpts))
	slog.SetDefault(logger)

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// 2. Init DB
	db, err := store.NewStore(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize store", "error", err)
		os.Exit(1)
	}
	if err := db.Migrate("migrations"); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	// 3. Session Setup
	sessionStore := sessions.NewCookieStore(cfg.SessionKey)
	sessionStore.Options.HttpOnly = true
	sessionStore.Options.Secure = cfg.CookieSecure
	sessionStore.Options.SameSite = http.SameSiteLaxMode
	sessionStore.Options.Path = "/"
	if cfg.CookieDomain != "" {
		sessionStore.Options.Domain = cfg.CookieDomain
	}

	// 4. Payment gateways and notifier
	mercadoPago := payment.NewMercadoPago(cfg.MercadoPagoToken, cfg.MercadoPagoBaseURL, cfg.GatewayTimeout)
	pagarMe := payment.NewPagarMe(cfg.PagarMeAPIKey, cfg.PagarMeBaseURL, cfg.GatewayTimeout)
	slog.Info("Mercado Pago", "configured", mercadoPago.Configured())
	slog.Info("Pagar.me", "configured", pagarMe.Configured())

	mail, err := mailer.New(mailer.Options{
		SMTPHost:     cfg.SMTPHost,
		SMTPPort:     cfg.SMTPPort,
		SMTPUser:     cfg.SMTPUser,
		SMTPPassword: cfg.SMTPPassword,
		From:         cfg.MailFrom,
		OperatorMail: cfg.OperatorMail,
		EmailDir:     cfg.EmailDir,
	})
	if err != nil {
		slog.Error("Failed to initialize mailer", "error", err)
		os.Exit(1)
	}

	inv := inventory.NewService(db)

	// 5. Outbox worker delivers the emails enqueued by checkout/webhooks.
	worker := outbox.NewWorker(db, mail)
	workerCtx, stopWorker := context.WithCancel(context.Background())
	go worker.Run(workerCtx)

	// 6. Setup Handlers
	adminHandler := &handlers.AdminHandler{
		Store:        db,
		SessionStore: sessionStore,
	}
	productHandler := &handlers.ProductHandler{
		Store:     db,
		UploadDir: cfg.UploadDir,
	}
	paymentHandler := &handlers.PaymentHandler{
		Store:       db,
		Inventory:   inv,
		MercadoPago: mercadoPago,
		PagarMe:     pagarMe,
	}
	webhookHandler := &handlers.WebhookHandler{
		Store:       db,
		MercadoPago: mercadoPago,
	}
	orderHandler := &handlers.OrderHandler{
		Store:       db,
		MercadoPago: mercadoPago,
		PagarMe:     pagarMe,
		MailEnabled: cfg.SMTPHost != "",
	}

	mux := http.NewServeMux()

	// Static Files (storefront assets)
	fileServer := http.FileServer(http.Dir("./static"))
	mux.Handle("/static/", http.StripPrefix("/static", fileServer))

	// Rate limiter for checkout submissions
	rateLimiter := handlers.NewRateLimiter(5 * time.Second)

	// Public Routes
	mux.HandleFunc("GET /api/products", productHandler.List)
	mux.HandleFunc("GET /api/status", orderHandler.Status)
	mux.HandleFunc("POST /api/pagamento-mercado-pago", rateLimiter.Middleware(paymentHandler.MercadoPagoPayment))
	mux.HandleFunc("POST /api/pagamento-pagar-me", rateLimiter.Middleware(paymentHandler.PagarMePayment))

	// Gateway callbacks
	mux.HandleFunc("POST /webhook/mercado-pago", webhookHandler.MercadoPagoWebhook)
	mux.HandleFunc("POST /webhook/pagar-me", webhookHandler.PagarMeWebhook)

	// Test-only manual approval (stands in for the webhook in development)
	mux.HandleFunc("POST /api/test/approve-payment/{id}", orderHandler.ApprovePayment)

	// Admin surface: session auth + CSRF. The front end fetches the token
	// from /api/admin/csrf and sends it back via X-CSRF-Token.
	protect := csrf.Protect(
		cfg.CSRFKey,
		csrf.Secure(cfg.CookieSecure),
		csrf.Path("/"),
		csrf.TrustedOrigins([]string{"localhost:" + cfg.Port, "127.0.0.1:" + cfg.Port}),
	)
	adminRoute := func(h http.HandlerFunc) http.Handler {
		return protect(http.HandlerFunc(adminHandler.AuthMiddleware(h)))
	}

	mux.Handle("GET /api/admin/csrf", protect(http.HandlerFunc(adminHandler.CSRFToken)))
	mux.Handle("POST /api/admin/login", protect(http.HandlerFunc(adminHandler.Login)))
	mux.Handle("POST /api/admin/logout", protect(http.HandlerFunc(adminHandler.Logout)))

	mux.Handle("POST /api/products", adminRoute(productHandler.Create))
	mux.Handle("DELETE /api/products/{id}", adminRoute(productHandler.Delete))
	mux.Handle("POST /api/admin/stock", adminRoute(productHandler.SetStock))
	mux.Handle("GET /api/admin/orders", adminRoute(adminHandler.ListOrders))
	mux.Handle("GET /api/admin/stats", adminRoute(adminHandler.Stats))
	mux.Handle("GET /api/admin/price-alerts", adminRoute(adminHandler.PriceAlerts))

	// Chain: Logger -> Security Headers -> Mux
	handler := handlers.LoggingMiddleware(
		handlers.SecurityHeadersMiddleware(mux),
	)

	// 7. Start Server with Graceful Shutdown
	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: handler,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("Server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to listen and serve", "error", err)
			os.Exit(1)
		}
	}()

	<-stop

	slog.Info("Shutting down server gracefully...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		slog.Error("Server shutdown failed", "error", err)
		os.Exit(1)
	}

	// Flush whatever the outbox still holds before exiting.
	stopWorker()
	worker.Drain()

	slog.Info("Server exited gracefully.")
}
