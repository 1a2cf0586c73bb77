package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bayanihan/pkg/db"
)

// Router assembles the HTTP surface. The trace middleware wraps everything so
// request ids land inside spans.
func (a *API) Router(trace func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	if trace != nil {
		r.Use(trace)
	}
	r.Use(metricsMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Session-Token", "X-User-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(httprate.LimitByIP(120, time.Minute))

	r.Get("/healthz", a.handleHealthz)
	r.Get("/readyz", a.handleReadyz)
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/auth/send-otp", a.handleSendOTP)
	r.Post("/auth/verify-otp", a.handleVerifyOTP)
	r.Post("/auth/google", a.handleGoogleSignIn)
	r.Post("/login", a.handleLogin)
	r.Post("/admin/login", a.handleAdminLogin)

	r.Group(func(r chi.Router) {
		r.Use(a.requireUser)
		r.Post("/logout", a.handleLogout)
		r.Get("/user/profile", a.handleUserProfile)
		r.Put("/user/update", a.handleUserUpdate)
		r.Delete("/user/delete-account", a.handleDeleteAccount)

		r.Post("/posts", a.handleCreatePost)
		r.Get("/posts/my-posts", a.handleMyPosts)
		r.Put("/posts/{id}", a.handleUpdatePost)

		r.Post("/posts/{postId}/comments", a.handleCreateComment)
		r.Post("/comments/{commentId}/like", a.handleToggleCommentLike)
		r.Post("/posts/{postId}/vote", a.handleToggleVote)
	})

	r.Get("/posts/approved", a.handleApprovedPosts)
	r.Get("/posts/{id}", a.handleGetPost)
	r.Get("/posts/{postId}/comments", a.handleListComments)
	r.Get("/posts/{postId}/vote-status", a.handleVoteStatus)

	r.Get("/locations/regions", a.handleRegions)
	r.Get("/locations/provinces", a.handleProvinces)
	r.Get("/locations/cities", a.handleCities)
	r.Get("/locations/districts", a.handleDistricts)
	r.Get("/locations/barangays", a.handleBarangays)

	r.Get("/partylists", a.handleListPartyLists)
	r.Get("/partylists/search", a.handleSearchPartyLists)
	r.Get("/partylists/{id}", a.handleGetPartyList)

	r.Get("/statistics/platform", a.handlePlatformStatistics)
	r.Get("/statistics/candidates", a.handleCandidateStatistics)

	r.Group(func(r chi.Router) {
		r.Use(a.requireAdmin)
		r.Get("/admin/posts", a.handleAdminPosts)
		r.Get("/admin/posts/pending", a.handleAdminPendingPosts)
		r.Post("/admin/posts/{id}/approve", a.handleApprovePost)
		r.Post("/admin/posts/{id}/reject", a.handleRejectPost)

		r.Get("/admin/partylists", a.handleAdminPartyLists)
		r.Post("/admin/partylists", a.handleCreatePartyList)
		r.Post("/admin/partylists/{id}/members", a.handleAddPartyListMember)
	})

	return r
}

func (a *API) handleHealthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReadyz confirms the database answers before reporting ready.
func (a *API) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	if a.store.DB != nil {
		if err := db.Ping(ctx, a.store.DB); err != nil {
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
