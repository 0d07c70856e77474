package routes

import (
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/opencourt/tournament-backend/handlers"
	"github.com/opencourt/tournament-backend/middleware"
)

// SetupRoutes собирает всё HTTP-API приложения на одном chi-роутере.
func SetupRoutes(
	router *chi.Mux,
	auth *middleware.Authenticator,
	authHandler *handlers.AuthHandler,
	tournamentHandler *handlers.TournamentHandler,
	categoryHandler *handlers.CategoryHandler,
	teamHandler *handlers.TeamHandler,
	registrationHandler *handlers.RegistrationHandler,
	sportConfigHandler *handlers.SportConfigHandler,
	webSocketHandler *handlers.WebSocketHandler,
) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Get("/swagger/*", httpSwagger.Handler())

	router.Route("/auth", func(r chi.Router) {
		r.Post("/signup", authHandler.SignUp)
		r.Post("/signin", authHandler.SignIn)

		r.Group(func(r chi.Router) {
			r.Use(auth.Authenticate)
			r.Get("/me", authHandler.Me)
		})
	})

	router.Route("/sports", func(r chi.Router) {
		r.Get("/", sportConfigHandler.List)
		r.Get("/{sport}", sportConfigHandler.GetBySport)

		r.Group(func(r chi.Router) {
			r.Use(auth.Authenticate)
			r.Use(middleware.RequireRole("organizer"))
			r.Put("/{sport}", sportConfigHandler.Upsert)
		})
	})

	router.Route("/tournaments", func(r chi.Router) {
		// Публичные маршруты для просмотра турниров
		r.Get("/", tournamentHandler.List)
		r.Get("/{tournamentID}", tournamentHandler.GetByID)
		r.Get("/{tournamentID}/categories", categoryHandler.ListByTournament)
		r.Get("/{tournamentID}/teams", teamHandler.ListByTournament)

		// Защищённые маршруты
		r.Group(func(r chi.Router) {
			r.Use(auth.Authenticate)

			r.Get("/mine", tournamentHandler.ListMine)
			r.Post("/{tournamentID}/registrations", registrationHandler.Register)
			r.Get("/{tournamentID}/registrations", registrationHandler.ListByTournament)

			// Создавать турниры могут только организаторы; дальнейшее
			// управление доступно и стаффу, права проверяет сервисный слой.
			r.With(middleware.RequireRole("organizer")).Post("/", tournamentHandler.Create)

			r.Group(func(r chi.Router) {
				r.Put("/{tournamentID}", tournamentHandler.Update)
				r.Delete("/{tournamentID}", tournamentHandler.Delete)

				r.Post("/{tournamentID}/open-registration", tournamentHandler.OpenRegistration)
				r.Post("/{tournamentID}/close-registration", tournamentHandler.CloseRegistration)
				r.Post("/{tournamentID}/start-auction", tournamentHandler.StartAuction)
				r.Post("/{tournamentID}/start", tournamentHandler.Start)
				r.Post("/{tournamentID}/complete", tournamentHandler.Complete)
				r.Post("/{tournamentID}/cancel", tournamentHandler.Cancel)

				r.Post("/{tournamentID}/staff", tournamentHandler.AddStaff)
				r.Delete("/{tournamentID}/staff/{userID}", tournamentHandler.RemoveStaff)
				r.Post("/{tournamentID}/banner", tournamentHandler.UploadBanner)

				r.Post("/{tournamentID}/categories", categoryHandler.Create)
				r.Post("/{tournamentID}/teams", teamHandler.Create)
				r.Post("/{tournamentID}/registrations/bulk-approve", registrationHandler.BulkApprove)
			})
		})
	})

	router.Route("/categories", func(r chi.Router) {
		r.Get("/{categoryID}", categoryHandler.GetByID)
		r.Get("/{categoryID}/registrations", registrationHandler.ListByCategory)

		r.Group(func(r chi.Router) {
			r.Use(auth.Authenticate)

			r.Put("/{categoryID}", categoryHandler.Update)
			r.Delete("/{categoryID}", categoryHandler.Delete)

			r.Post("/{categoryID}/open-registration", categoryHandler.OpenRegistration)
			r.Post("/{categoryID}/start-auction", categoryHandler.StartAuction)
			r.Post("/{categoryID}/configure-bracket", categoryHandler.ConfigureBracket)
			r.Post("/{categoryID}/start", categoryHandler.Start)
			r.Post("/{categoryID}/complete", categoryHandler.Complete)

			r.Get("/{categoryID}/auction-pool", registrationHandler.AuctionPool)
		})
	})

	router.Route("/teams", func(r chi.Router) {
		r.Get("/{teamID}", teamHandler.GetByID)
		r.Get("/{teamID}/roster", teamHandler.Roster)

		r.Group(func(r chi.Router) {
			r.Use(auth.Authenticate)

			r.Put("/{teamID}", teamHandler.Update)
			r.Delete("/{teamID}", teamHandler.Delete)
			r.Patch("/{teamID}/budget", teamHandler.UpdateBudget)
			r.Post("/{teamID}/budget/reset", teamHandler.ResetBudget)
			r.Post("/{teamID}/logo", teamHandler.UploadLogo)
		})
	})

	router.Route("/registrations", func(r chi.Router) {
		r.Use(auth.Authenticate)

		r.Get("/mine", registrationHandler.ListMine)
		r.Get("/{registrationID}", registrationHandler.GetByID)
		r.Post("/{registrationID}/withdraw", registrationHandler.Withdraw)
		r.Post("/{registrationID}/photo", registrationHandler.UploadPhoto)

		r.Group(func(r chi.Router) {
			r.Post("/{registrationID}/approve", registrationHandler.Approve)
			r.Post("/{registrationID}/reject", registrationHandler.Reject)
			r.Post("/{registrationID}/auction-assign", registrationHandler.AssignViaAuction)
			r.Post("/{registrationID}/assign", registrationHandler.ManualAssign)
			r.Post("/{registrationID}/unassign", registrationHandler.Unassign)
		})
	})

	router.Get("/ws/tournaments/{tournamentID}", webSocketHandler.ServeWs)
}
