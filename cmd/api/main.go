package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/zhouzirui/yesno-chat/backend/internal/config"
	"github.com/zhouzirui/yesno-chat/backend/internal/handler"
	"github.com/zhouzirui/yesno-chat/backend/internal/service/answer"
	"github.com/zhouzirui/yesno-chat/backend/internal/service/chat"
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

	provider, err := newAnswerProvider(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to initialize answer provider: %v", err)
	}
	log.Printf("answer provider: %s", cfg.Answer.Provider)

	chatService := chat.NewService(provider, chat.Config{
		TimeLayout:  cfg.Chat.TimeLayout,
		Location:    cfg.Chat.Location,
		MaxSessions: cfg.Chat.MaxSessions,
		Controller: chat.ControllerConfig{
			FetchTimeout: cfg.Answer.Timeout,
			DiscardStale: cfg.Chat.DiscardStale,
		},
	})

	router := handler.NewRouter(chatService, cfg.Server.AllowedOrigins)

	startServer(ctx, cfg.Server, router)

	log.Println("waiting for in-flight answers")
	chatService.Wait()
}

func newAnswerProvider(ctx context.Context, cfg *config.Config) (answer.Provider, error) {
	if cfg.Answer.Provider == config.ProviderOracle {
		chatModel, err := cfg.AI.NewChatModel(ctx)
		if err != nil {
			return nil, err
		}
		return answer.NewOracleProvider(ctx, chatModel)
	}

	return answer.NewYesNoClient(
		answer.WithURL(cfg.Answer.URL),
		answer.WithTimeout(cfg.Answer.Timeout),
	), nil
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
		// Event streams end with the process context instead of holding Shutdown open.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	log.Printf("yes/no chat backend listening on %s", addr)
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
