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

	"github.com/joho/godotenv"

	"github.com/stenlabs/sten/backend/internal/config"
	"github.com/stenlabs/sten/backend/internal/handler"
	"github.com/stenlabs/sten/backend/internal/model/widget"
	aiService "github.com/stenlabs/sten/backend/internal/service/ai"
	analysisService "github.com/stenlabs/sten/backend/internal/service/analysis"
	"github.com/stenlabs/sten/backend/internal/service/conversation"
	"github.com/stenlabs/sten/backend/internal/service/identity"
	sessionService "github.com/stenlabs/sten/backend/internal/service/session"
	"github.com/stenlabs/sten/backend/internal/store"
	"github.com/stenlabs/sten/backend/internal/store/postgres"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	db := openStore(cfg.Store)

	registry := widget.NewMemoryRegistry([]widget.Ref{{
		ID:          cfg.Widget.WidgetID,
		PublicID:    cfg.Widget.PublicWidgetID,
		OwnerUserID: cfg.Widget.OwnerUserID,
	}})

	directory := conversation.StaticDirectory{}
	if cfg.Widget.BusinessName != "" {
		directory[cfg.Widget.OwnerUserID] = conversation.BusinessProfile{
			Name:             cfg.Widget.BusinessName,
			AgentInstruction: cfg.Widget.AgentInstruction,
		}
	}

	var agent conversation.AgentCapability
	var analyst analysisService.Capability
	if cfg.AI.Enabled() {
		agentSvc, err := aiService.NewAgent(ctx, cfg.AI, db)
		if err != nil {
			log.Printf("warning: failed to initialize agent capability: %v", err)
			log.Println("continuing without AI replies - check the ARK_* environment variables")
		} else {
			agent = agentSvc
			analyst = aiService.NewAnalyst(agentSvc.ChatModel())
			log.Println("agent capability initialized successfully")
		}
	} else {
		log.Println("model credentials not configured, guest turns will be stored without replies")
	}

	identitySvc := identity.NewService(db)
	turns := conversation.NewService(db, directory, agent)
	sessions := sessionService.NewService(identitySvc, db, db, turns)
	analyzer := analysisService.NewService(db, db, analyst)

	router := handler.NewRouter(registry, sessions, analyzer, db)

	startServer(ctx, cfg.Server, router)
}

// openStore picks the durable backend: postgres when DATABASE_URL is set,
// the in-memory store otherwise.
func openStore(cfg config.StoreConfig) store.Store {
	if cfg.DatabaseURL == "" {
		log.Println("DATABASE_URL not set, using in-memory store")
		return store.NewMemory()
	}

	pg, err := postgres.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to open postgres store: %v", err)
	}
	if err := pg.AutoMigrate(); err != nil {
		log.Fatalf("failed to migrate postgres store: %v", err)
	}
	log.Println("postgres store initialized successfully")
	return pg
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("Sten widget backend listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
