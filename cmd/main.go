package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"

	"github.com/opencourt/tournament-backend/auction"
	"github.com/opencourt/tournament-backend/config"
	"github.com/opencourt/tournament-backend/db"
	"github.com/opencourt/tournament-backend/handlers"
	"github.com/opencourt/tournament-backend/middleware"
	"github.com/opencourt/tournament-backend/repositories"
	api "github.com/opencourt/tournament-backend/routes"
	"github.com/opencourt/tournament-backend/services"
	"github.com/opencourt/tournament-backend/storage"
)

func main() {
	// Настройка логгера
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort))

	// Подключение к базе данных
	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		} else {
			logger.Info("database connection closed")
		}
	}()
	logger.Info("database connection established")

	// Инициализация загрузчика файлов (Cloudflare R2)
	uploader, err := storage.NewCloudflareR2Uploader(storage.CloudflareR2UploaderConfig{
		AccountID:       cfg.R2AccountID,
		AccessKeyID:     cfg.R2AccessKeyID,
		SecretAccessKey: cfg.R2SecretAccessKey,
		BucketName:      cfg.R2BucketName,
		PublicBaseURL:   cfg.R2PublicBaseURL,
	})
	if err != nil {
		logger.Error("failed to initialize Cloudflare R2 uploader", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("Cloudflare R2 uploader initialized")

	// Hub аукционных событий
	hub := auction.NewHub()
	go hub.Run()
	logger.Info("auction event hub started")

	// Инициализация репозиториев
	userRepo := repositories.NewPostgresUserRepository(dbConn)
	tournamentRepo := repositories.NewPostgresTournamentRepository(dbConn)
	categoryRepo := repositories.NewPostgresCategoryRepository(dbConn)
	teamRepo := repositories.NewPostgresTeamRepository(dbConn)
	registrationRepo := repositories.NewPostgresRegistrationRepository(dbConn)
	sportConfigRepo := repositories.NewPostgresSportConfigRepository(dbConn)
	logger.Info("repositories initialized")

	// Репозиторий турниров сам отвечает на вопросы о правах.
	guard := tournamentRepo

	// Инициализация сервисов
	authService := services.NewAuthService(userRepo)
	tournamentService := services.NewTournamentService(tournamentRepo, guard, uploader, hub, logger)
	categoryService := services.NewCategoryService(categoryRepo, tournamentRepo, guard, hub)
	teamService := services.NewTeamService(teamRepo, tournamentRepo, guard, uploader)
	registrationService := services.NewRegistrationService(registrationRepo, tournamentRepo, categoryRepo, guard, uploader, logger)
	assignmentService := services.NewAssignmentService(registrationRepo, teamRepo, tournamentRepo, guard, hub, logger)
	sportConfigService := services.NewSportConfigService(sportConfigRepo)
	logger.Info("services initialized")

	// Инициализация HTTP-обработчиков
	authHandler := handlers.NewAuthHandler(authService, cfg.JWTSecretKey)
	tournamentHandler := handlers.NewTournamentHandler(tournamentService)
	categoryHandler := handlers.NewCategoryHandler(categoryService)
	teamHandler := handlers.NewTeamHandler(teamService, registrationService)
	registrationHandler := handlers.NewRegistrationHandler(registrationService, assignmentService)
	sportConfigHandler := handlers.NewSportConfigHandler(sportConfigService)
	webSocketHandler := handlers.NewWebSocketHandler(hub, tournamentService)
	logger.Info("HTTP handlers initialized")

	// Настройка маршрутизатора
	authenticator := middleware.NewAuthenticator(cfg.JWTSecretKey)
	router := chi.NewRouter()
	api.SetupRoutes(
		router,
		authenticator,
		authHandler,
		tournamentHandler,
		categoryHandler,
		teamHandler,
		registrationHandler,
		sportConfigHandler,
		webSocketHandler,
	)
	logger.Info("routes configured")

	// Настройка и запуск HTTP-сервера
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	// Ожидание сигнала завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("server stopped gracefully")
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()

		logger.Info("shutting down server", slog.Duration("timeout", 15*time.Second))
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			os.Exit(1)
		}
		logger.Info("server shutdown complete")
	}
	logger.Info("application exited")
}
