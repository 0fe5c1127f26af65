package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/upb/dino-games/backend/app"
	"github.com/upb/dino-games/backend/handlers"
	authmw "github.com/upb/dino-games/backend/middleware"
	"go.uber.org/zap"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(middleware.RequestID)
	r.Use(authmw.PeerAddr)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(deps.Logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.Config.Server.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check endpoints
	r.Get("/healthz", deps.HealthHandler.HandleHealth)
	r.Get("/readyz", deps.HealthHandler.HandleReadiness)

	if deps.Config.Observability.MetricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		if deps.RateLimit != nil {
			r.Use(authmw.Throttle(deps.RateLimit, deps.TrustedProxies, deps.Logger))
		}

		r.Route("/auth", func(r chi.Router) {
			r.Get("/test-connection", deps.AuthHandler.HandleTestConnection)

			r.Group(func(r chi.Router) {
				r.Use(deps.AuthMiddleware.RequireAuth)
				r.Post("/resend-verification", deps.AuthHandler.HandleResendVerification)
				r.Get("/check-verification", deps.AuthHandler.HandleCheckVerification)
				r.Get("/user-profile", deps.AuthHandler.HandleGetProfile)
				r.Patch("/user-profile", deps.AuthHandler.HandleUpdateProfile)
				r.Post("/refresh-profile", deps.AuthHandler.HandleRefreshProfile)
			})
		})

		// Games require a verified email address
		r.Route("/juegos", func(r chi.Router) {
			r.Use(deps.AuthMiddleware.RequireAuth)
			r.Use(deps.AuthMiddleware.RequireVerifiedEmail)
			r.Get("/", deps.GamesHandler.HandleListGames)
			r.Post("/puntaje", deps.GamesHandler.HandleSaveScore)
			r.Get("/mis-puntajes", deps.GamesHandler.HandleListScores)
			r.Get("/estadisticas", deps.GamesHandler.HandleStats)
		})
	})

	r.NotFound(handlers.NotFound)

	return r
}

// requestLogger logs one line per request through zap
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			logger.Info("request",
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)))
		})
	}
}
