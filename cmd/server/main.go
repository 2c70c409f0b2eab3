package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rpattn/cmdbgraph/internal/api"
	"github.com/rpattn/cmdbgraph/internal/config"
	"github.com/rpattn/cmdbgraph/internal/db"
	"github.com/rpattn/cmdbgraph/internal/export"
	"github.com/rpattn/cmdbgraph/internal/ingestion"
	"github.com/rpattn/cmdbgraph/internal/middleware"
	"github.com/rpattn/cmdbgraph/internal/repository"
	"github.com/rpattn/cmdbgraph/internal/service"

	"github.com/rs/cors"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load(".")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	conn, err := db.NewConnection(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer conn.Close()

	if err := db.RunMigrations(cfg.Database); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Create repositories
	ciRepo := repository.NewCIRepository(conn.Pool)
	relRepo := repository.NewRelationshipRepository(conn.Pool)
	historyRepo := repository.NewHistoryRepository(conn.Pool)
	counterRepo := repository.NewCounterRepository(conn.Pool)

	// Create services
	allocator := service.NewAllocator(counterRepo)
	ciService := service.NewCIService(ciRepo, historyRepo, allocator)
	relService := service.NewRelationshipService(relRepo, ciRepo)
	impactService := service.NewImpactService(ciRepo, relRepo)

	handler := api.NewHandler(ciService, relService, impactService)
	importService := ingestion.NewService(ciService)
	exportService := export.NewService(ciService)

	mux := http.NewServeMux()
	mux.Handle("/", handler.Routes())
	mux.Handle("POST /api/cmdb/cis/import", ingestion.NewHTTPHandler(importService))
	mux.Handle("GET /api/cmdb/cis/export", export.NewHTTPHandler(exportService))

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000"},
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
	})

	root := corsHandler.Handler(
		middleware.LoggingMiddleware(
			middleware.ActorMiddleware(
				middleware.DataLoaderMiddleware(ciRepo)(mux),
			),
		),
	)

	server := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      root,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting CMDB server on %s", cfg.ListenAddr)

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
