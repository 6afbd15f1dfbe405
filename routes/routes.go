package routes

import (
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/nghiatd-29581/badminton-tournament-app/handlers"
	"github.com/nghiatd-29581/badminton-tournament-app/middleware"
)

func SetupRoutes(
	router *chi.Mux,
	tournamentHandler *handlers.TournamentHandler,
	matchHandler *handlers.MatchHandler,
	liveHandler *handlers.LiveHandler,
	webSocketHandler *handlers.WebSocketHandler,
	adminAuth *middleware.AdminAuth,
) {
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Referee session tokens are opaque and minted server-side.
	router.Post("/sessions", matchHandler.CreateSessionHandler)

	router.Route("/tournaments", func(r chi.Router) {
		r.Get("/current", tournamentHandler.GetCurrentTournamentHandler)
		r.Get("/{tournamentID}", tournamentHandler.GetTournamentHandler)
		r.Get("/{tournamentID}/matches", tournamentHandler.ListTournamentMatchesHandler)
		r.Get("/{tournamentID}/standings", tournamentHandler.ListTournamentStandingsHandler)
		r.Get("/{tournamentID}/live", liveHandler.GetLiveSnapshotHandler)

		// Admin-only operations behind basic auth.
		r.Group(func(r chi.Router) {
			r.Use(adminAuth.Middleware)

			r.Post("/", tournamentHandler.CreateTournamentHandler)
			r.Post("/{tournamentID}/banner", tournamentHandler.UploadBannerHandler)
			r.Post("/{tournamentID}/standings/recalculate", tournamentHandler.RecalculateStandingsHandler)
		})
	})

	router.Route("/matches", func(r chi.Router) {
		// Referee lifecycle; exclusivity is enforced by the session
		// holder on the match row, not by auth.
		r.Post("/{matchID}/start", matchHandler.StartMatchHandler)
		r.Post("/{matchID}/score", matchHandler.AdjustScoreHandler)
		r.Post("/{matchID}/finish", matchHandler.FinishMatchHandler)

		r.Group(func(r chi.Router) {
			r.Use(adminAuth.Middleware)

			r.Post("/{matchID}/release", matchHandler.ForceReleaseMatchHandler)
		})
	})

	router.Get("/ws/tournaments/{tournamentID}", webSocketHandler.ServeTournamentWS)
}
