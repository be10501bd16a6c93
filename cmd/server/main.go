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

	"github.com/daniloescobar15/3dPrinterStoreFront/internal/api"
	"github.com/daniloescobar15/3dPrinterStoreFront/internal/cart"
	"github.com/daniloescobar15/3dPrinterStoreFront/internal/checkout"
	"github.com/daniloescobar15/3dPrinterStoreFront/internal/config"
	"github.com/daniloescobar15/3dPrinterStoreFront/internal/handlers"
	"github.com/daniloescobar15/3dPrinterStoreFront/internal/history"
	"github.com/daniloescobar15/3dPrinterStoreFront/internal/localstore"
	"github.com/daniloescobar15/3dPrinterStoreFront/internal/payments"
	"github.com/daniloescobar15/3dPrinterStoreFront/internal/session"
)

func main() {
	// Configure slog to output DEBUG level messages
	// This should be done as early as possible in main
	handlerOpts := &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}
	// Using TextHandler for console readability; for production JSONHandler might be preferred.
	logger := slog.New(slog.NewTextHandler(os.Stdout, handlerOpts))
	slog.SetDefault(logger)

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// 2. Persistent state (token, user, proxy flag)
	state, err := localstore.Open(cfg.StatePath)
	if err != nil {
		slog.Error("Failed to open state store", "error", err)
		os.Exit(1)
	}
	defer state.Close()

	// Payment history cache
	historyStore, err := history.New(cfg.HistoryDBPath)
	if err != nil {
		slog.Error("Failed to initialize history store", "error", err)
		os.Exit(1)
	}
	defer historyStore.Close()

	// Run Migrations
	if err := historyStore.Migrate("migrations"); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	// 3. Backend API pipeline and session manager
	client := api.New(cfg.APIBaseDirect, cfg.APIBaseProxy, cfg.AuthKey)
	sessionManager := session.New(client, state, cfg.ApplicationID)
	sessionManager.Restore()

	// Probe the backend once at startup. A connection failure on the direct
	// base flips future requests to the proxy.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := sessionManager.ProbeConnection(ctx); err != nil {
			slog.Warn("Backend API status probe failed", "error", err)
		} else {
			slog.Info("Backend API reachable", "base", client.BaseURL())
		}
	}()

	cartStore := cart.New()
	checkoutWorkflow := checkout.New(cartStore, client, cfg.CallbackURL)
	paymentService := payments.New(client, historyStore)

	// 4. Browser session setup
	sessionStore := sessions.NewCookieStore(cfg.SessionKey)
	sessionStore.Options.HttpOnly = true
	sessionStore.Options.Secure = cfg.CookieSecure // Configurable for production
	sessionStore.Options.SameSite = http.SameSiteLaxMode
	sessionStore.Options.Path = "/"
	if cfg.CookieDomain != "" {
		sessionStore.Options.Domain = cfg.CookieDomain
	}

	// 5. Init Templates
	templates := handlers.NewTemplateCache()
	if err := templates.Load("templates"); err != nil {
		slog.Error("Failed to load templates", "error", err)
		os.Exit(1)
	}

	// 6. Setup Handlers
	authHandler := &handlers.AuthHandler{
		Session:      sessionManager,
		SessionStore: sessionStore,
		Templates:    templates,
	}
	sessionManager.OnSessionExpired = authHandler.PushNotice

	shopHandler := &handlers.ShopHandler{
		Session:      sessionManager,
		Cart:         cartStore,
		Templates:    templates,
		SessionStore: sessionStore,
	}
	cartHandler := &handlers.CartHandler{
		Cart:         cartStore,
		Templates:    templates,
		SessionStore: sessionStore,
	}
	checkoutHandler := &handlers.CheckoutHandler{
		Cart:         cartStore,
		Workflow:     checkoutWorkflow,
		Templates:    templates,
		SessionStore: sessionStore,
	}
	paymentsHandler := &handlers.PaymentsHandler{
		Payments:     paymentService,
		Templates:    templates,
		SessionStore: sessionStore,
	}

	mux := http.NewServeMux()

	// Static Files
	fileServer := http.FileServer(http.Dir("./static"))
	mux.Handle("/static/", http.StripPrefix("/static", fileServer))

	// Rate Limiter for credential and payment submissions
	rateLimiter := handlers.NewRateLimiter(2 * time.Second)

	// Public Routes
	mux.HandleFunc("/{$}", shopHandler.Index)
	mux.HandleFunc("/products", shopHandler.Index)
	mux.HandleFunc("/product", shopHandler.Detail)

	mux.HandleFunc("/login", authHandler.LoginGet)
	mux.HandleFunc("POST /login", rateLimiter.Middleware(authHandler.LoginPost))
	mux.HandleFunc("POST /logout", authHandler.Logout)
	mux.HandleFunc("/profile", authHandler.RequireAuth(authHandler.Profile))
	mux.HandleFunc("POST /settings/proxy", authHandler.ToggleProxy)

	// Protected Routes
	mux.HandleFunc("/cart", authHandler.RequireAuth(cartHandler.View))
	mux.HandleFunc("POST /cart/add", authHandler.RequireAuth(cartHandler.Add))
	mux.HandleFunc("POST /cart/update", authHandler.RequireAuth(cartHandler.Update))
	mux.HandleFunc("POST /cart/remove", authHandler.RequireAuth(cartHandler.Remove))

	mux.HandleFunc("/checkout", authHandler.RequireAuth(checkoutHandler.Form))
	mux.HandleFunc("POST /checkout", rateLimiter.Middleware(authHandler.RequireAuth(checkoutHandler.Submit)))
	mux.HandleFunc("/checkout/success", authHandler.RequireAuth(checkoutHandler.Success))
	mux.HandleFunc("/checkout/voucher", authHandler.RequireAuth(checkoutHandler.Voucher))

	mux.HandleFunc("/payments", authHandler.RequireAuth(paymentsHandler.List))
	mux.HandleFunc("/payments/voucher", authHandler.RequireAuth(paymentsHandler.Voucher))
	mux.HandleFunc("POST /payments/cancel", authHandler.RequireAuth(paymentsHandler.Cancel))
	mux.HandleFunc("POST /payments/auto-refresh", authHandler.RequireAuth(paymentsHandler.ToggleAutoRefresh))

	// 7. Middleware Setup
	CSRF := csrf.Protect(
		cfg.CSRFKey,
		csrf.Secure(cfg.CookieSecure), // Configurable for production
		// Fix for "Forbidden - origin invalid": Trust local development origins
		csrf.TrustedOrigins([]string{"localhost:" + cfg.Port, "127.0.0.1:" + cfg.Port, "localhost", "127.0.0.1"}),
	)

	// Wrap the router with middleware chain
	// Chain: Logger -> Security Headers -> CSRF -> Mux
	handler := handlers.LoggingMiddleware(
		handlers.SecurityHeadersMiddleware(
			CSRF(mux),
		),
	)

	// 8. Start Server with Graceful Shutdown
	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: handler,
	}

	// Create a channel to listen for OS signals
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	// Goroutine to start the server
	go func() {
		slog.Info("Server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to listen and serve", "error", err)
			os.Exit(1)
		}
	}()

	// Block until a signal is received
	<-stop

	slog.Info("Shutting down server gracefully...")

	// Stop background work before closing the stores it writes to.
	paymentService.StopAutoRefresh()

	// Create a deadline to wait for.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		slog.Error("Server shutdown failed", "error", err)
		os.Exit(1)
	}

	slog.Info("Server exited gracefully.")
}
