package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"feastq/internal/config"
	"feastq/internal/constants"
	"feastq/internal/referral"
	"feastq/internal/reputation"
)

// ApiDependencies содержит зависимости для обработчиков API.
type ApiDependencies struct {
	Config     *config.Config
	Referrals  *referral.Issuer
	Reputation *reputation.Aggregator
	Logger     *zap.SugaredLogger
}

// NewRouter создает chi-роутер со всеми маршрутами API.
func NewRouter(deps ApiDependencies) *chi.Mux {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop().Sugar()
	}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(AccessLogMiddleware(deps.Logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.Config.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	SetupRoutes(r, deps)
	return r
}

// SetupRoutes настраивает все маршруты для API.
func SetupRoutes(r chi.Router, deps ApiDependencies) {
	h := &handlers{
		referrals:      deps.Referrals,
		reputation:     deps.Reputation,
		trustedProxies: parseTrustedProxies(deps.Config.TrustedProxies, deps.Logger),
		log:            deps.Logger,
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSONSuccess(w, "ok", nil)
	})

	// --- Публичные маршруты ---
	r.Post("/api/referrals/submit", h.SubmitReferral)
	r.Get("/api/public/menus/{menuId}/stats", h.GetPublicStats)

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(deps.Config.JWTSecret, deps.Logger))

		// --- Реферальная программа ---
		r.Get("/api/referrals/code", h.GetReferralCode)
		r.Get("/api/referrals/code/qr", h.GetReferralQRCode)
		r.Get("/api/referrals", h.ListReferrals)
		r.Get("/api/referrals/summary", h.GetReferralSummary)
		r.Get("/api/referrals/export", h.ExportReferrals)

		// --- Репутация меню (только владелец) ---
		r.Route("/api/menus/{menuId}", func(r chi.Router) {
			r.Get("/reputation", h.GetReputation)
			r.Get("/reviews", h.ListReviews)
			r.Post("/reviews/{reviewId}/response", h.RespondToReview)
			r.Post("/reviews/{reviewId}/status", h.ModerateReview)
		})

		// --- Маршруты для админов ---
		r.Route("/api/admin", func(r chi.Router) {
			r.Use(RoleMiddleware(constants.ROLE_ADMIN))
			r.Post("/referrals/{id}/status", h.UpdateReferralStatus)
		})
	})
}
