package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/time/rate"

	"github.com/otp-auth-api/internal/application/auth"
	"github.com/otp-auth-api/internal/application/otp"
	"github.com/otp-auth-api/internal/application/session"
	"github.com/otp-auth-api/internal/application/user"
	"github.com/otp-auth-api/internal/config"
	"github.com/otp-auth-api/internal/infrastructure/dynamo"
	"github.com/otp-auth-api/internal/infrastructure/smtp"
	"github.com/otp-auth-api/internal/infrastructure/sns"
	"github.com/otp-auth-api/internal/infrastructure/token"
	"github.com/otp-auth-api/internal/transport/http/handler"
	appmiddleware "github.com/otp-auth-api/internal/transport/http/middleware"
)

// Deps holds the infrastructure dependencies for the router.
type Deps struct {
	UserRepo      *dynamo.UserRepo
	SessionRepo   *dynamo.SessionRepo
	OtpRepo       *dynamo.OtpRepo
	Mailer        smtp.Mailer
	SMSSender     sns.SMSSender
	TokenProvider *token.Provider
}

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	otpSvc := otp.NewService(deps.OtpRepo, otp.Config{
		CodeLength: cfg.OTPLength,
		TTL:        time.Duration(cfg.OTPTTLSeconds) * time.Second,
		Debug:      cfg.OTPDebug,
	})
	sessionSvc := session.NewService(deps.SessionRepo, deps.TokenProvider.RefreshTTL())
	userSvc := user.NewService(deps.UserRepo, otpSvc, user.Config{
		SeedEmail:            cfg.SeedEmail,
		SeedFirstName:        cfg.SeedFirstName,
		SeedLastName:         cfg.SeedLastName,
		RequireOnboardingOTP: cfg.RequireOnboardingOTP,
	})
	authSvc := auth.NewService(auth.ServiceDeps{
		OTP:                otpSvc,
		Sessions:           sessionSvc,
		Tokens:             deps.TokenProvider,
		Users:              userSvc,
		Mailer:             deps.Mailer,
		SMSSender:          deps.SMSSender,
		OTPTTL:             time.Duration(cfg.OTPTTLSeconds) * time.Second,
		OTPDebug:           cfg.OTPDebug,
		DefaultCountryCode: cfg.DefaultCountryCode,
		EmailSubject:       cfg.OTPEmailSubject,
	})

	authMw := appmiddleware.Auth(authSvc)

	// 5 requests/second, burst of 10, applied to the OTP endpoints.
	otpRL := appmiddleware.NewRateLimiter(rate.Limit(5), 10)

	healthH := handler.NewHealthHandler()
	authH := handler.NewAuthHandler(authSvc)
	userH := handler.NewUserHandler(userSvc, authSvc)

	mountAuth := func(r chi.Router) {
		r.With(otpRL.Limit).Post("/auth/otp/request", authH.RequestOTP)
		r.With(otpRL.Limit).Post("/auth/otp/verify", authH.VerifyOTP)
		r.Post("/auth/refresh", authH.Refresh)
		r.Post("/auth/logout", authH.Logout)
		r.With(authMw).Post("/auth/logout/all", authH.LogoutAll)
	}

	r.Get("/health", healthH.Check)

	// Auth routes are reachable both under /api and at the bare root for
	// client compatibility.
	mountAuth(r)
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", healthH.Check)
		mountAuth(r)

		r.With(otpRL.Limit).Post("/users/otp/request", userH.RequestPhoneOTP)

		r.Group(func(r chi.Router) {
			r.Use(authMw)

			r.Get("/users", userH.List)
			r.Post("/users", userH.Create)
			r.Get("/users/me", userH.GetMe)
			r.Put("/users/me", userH.UpdateMe)
		})
	})

	return r
}
