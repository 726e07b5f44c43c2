package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"otakuhub/internal/analytics"
	"otakuhub/internal/auth"
	"otakuhub/internal/catalog"
	"otakuhub/internal/events"
	"otakuhub/internal/users"
	"otakuhub/pkg/docstore"
	"otakuhub/pkg/models"
	"otakuhub/pkg/repository"
	"otakuhub/pkg/utils"
)

func main() {
	cfg := docstore.DefaultConfig()
	db := docstore.MustOpen(cfg)
	defer db.Close()

	router := gin.Default()

	// Optional: avoid “trusted all proxies” warning
	_ = router.SetTrustedProxies([]string{"127.0.0.1"})

	// Repositories
	userRepo := repository.New[models.User](db, models.UserSchema)
	animeRepo := repository.New[models.Anime](db, models.AnimeSchema)
	mangaRepo := repository.New[models.Manga](db, models.MangaSchema)
	genreRepo := repository.New[models.Genre](db, models.GenreSchema)
	demographicRepo := repository.New[models.Demographic](db, models.DemographicSchema)
	producerRepo := repository.New[models.Producer](db, models.ProducerSchema)
	animeReviewRepo := repository.New[models.AnimeReview](db, models.AnimeReviewSchema)
	mangaReviewRepo := repository.New[models.MangaReview](db, models.MangaReviewSchema)

	// Auth
	authCfg := utils.LoadAuthConfig()
	tokenSvc := auth.TokenService{
		Secret:     []byte(authCfg.JWTSecret),
		Issuer:     authCfg.JWTIssuer,
		AccessTTL:  authCfg.AccessTTL,
		RefreshTTL: authCfg.RefreshTTL,
	}
	gate := auth.NewGate(tokenSvc, userRepo)

	// The gate runs on every request; anonymous requests pass through
	// and the per-group policies decide what they may do.
	router.Use(gate.Middleware())

	hub := events.NewHub()
	router.GET("/ws", events.WSHandler(hub))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "db": cfg.Path})
	})

	router.GET("/ready", func(c *gin.Context) {
		stats := hub.Stats()
		if _, err := userRepo.GetAll(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":     "not_ready",
				"db_error":   err.Error(),
				"ws_clients": stats.WSClients,
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":     "ready",
			"db":         "ok",
			"ws_clients": stats.WSClients,
		})
	})

	router.GET("/debug", func(c *gin.Context) {
		stats := hub.Stats()
		c.JSON(http.StatusOK, gin.H{
			"db":         cfg.Path,
			"ws_clients": stats.WSClients,
		})
	})

	authHandler := auth.NewHandler(userRepo, tokenSvc)
	authHandler.RegisterRoutes(router.Group("/auth"))

	usersHandler := users.NewHandler(userRepo)
	usersHandler.RegisterRoutes(router.Group("/users"))

	// Catalog: reads are public, mutations need an authenticated user.
	policy := auth.RequireAuthOrReadOnly()
	catalog.NewHandler[models.Anime](animeRepo, hub).
		RegisterRoutes(router.Group("/anime", policy))
	catalog.NewHandler[models.Manga](mangaRepo, hub).
		RegisterRoutes(router.Group("/manga", policy))
	catalog.NewHandler[models.Genre](genreRepo, hub).
		RegisterRoutes(router.Group("/genres", policy))
	catalog.NewHandler[models.Demographic](demographicRepo, hub).
		RegisterRoutes(router.Group("/demographics", policy))
	catalog.NewHandler[models.Producer](producerRepo, hub).
		RegisterRoutes(router.Group("/producers", policy))

	// Reviews are self-resources: the review's user owns it.
	catalog.NewHandler[models.AnimeReview](animeReviewRepo, hub).
		WithOwnership("user", func(r *models.AnimeReview) string { return r.User.ID }).
		RegisterRoutes(router.Group("/anime-reviews", policy))
	catalog.NewHandler[models.MangaReview](mangaReviewRepo, hub).
		WithOwnership("user", func(r *models.MangaReview) string { return r.User.ID }).
		RegisterRoutes(router.Group("/manga-reviews", policy))

	analyticsHandler := analytics.NewHandler(animeRepo, animeReviewRepo)
	analyticsHandler.RegisterRoutes(router.Group("/analytics/anime"))

	srvCfg := utils.LoadServerConfig()
	httpSrv := &http.Server{
		Addr:    srvCfg.Addr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("HTTP API server listening on %s", srvCfg.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("shutdown signal received: %s", sig)
	case err := <-errCh:
		log.Printf("server error: %v", err)
	}

	log.Println("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown error: %v", err)
	}
	log.Println("server stopped")
}
