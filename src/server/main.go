package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/itay-sho/co-buddies-server/src/bus"
	"github.com/itay-sho/co-buddies-server/src/config"
	"github.com/itay-sho/co-buddies-server/src/db"
	"github.com/itay-sho/co-buddies-server/src/matchmaker"
	"github.com/itay-sho/co-buddies-server/src/notifier"
	"github.com/itay-sho/co-buddies-server/src/orchestrator"
	"github.com/itay-sho/co-buddies-server/src/rabbitmq"
	"github.com/itay-sho/co-buddies-server/src/repository"
	"github.com/itay-sho/co-buddies-server/src/router"
	"github.com/itay-sho/co-buddies-server/src/storage"
)

// Server assembles the actor topology and the HTTP/WebSocket surface.
type Server struct {
	config    *config.GlobalConfig
	database  *db.DB
	publisher *rabbitmq.AMQPPublisher
	bus       *bus.Bus

	storage      *storage.Actor
	notifier     *notifier.Actor
	matchmaker   *matchmaker.Matchmaker
	orchestrator *orchestrator.Orchestrator

	http            *http.Server
	actorCancel     context.CancelFunc
	shutdownHandler ShutdownHandlerInterface
}

// NewServer creates a new server instance
func NewServer(cfg *config.GlobalConfig) (*Server, error) {
	database, err := db.NewDB(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	publisher, err := rabbitmq.NewAMQPPublisher(cfg.AMQPURL())
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	b := bus.New()
	repo := repository.NewRepository(database)

	storageActor, err := storage.New(b, repo)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage actor: %w", err)
	}
	notifierActor, err := notifier.New(b, publisher)
	if err != nil {
		return nil, fmt.Errorf("failed to create notifier: %w", err)
	}
	matchmakerActor, err := matchmaker.New(b, nil, cfg.MatchmakingPeriod)
	if err != nil {
		return nil, fmt.Errorf("failed to create matchmaker: %w", err)
	}
	orchestratorActor, err := orchestrator.New(b)
	if err != nil {
		return nil, fmt.Errorf("failed to create orchestrator: %w", err)
	}

	server := &Server{
		config:       cfg,
		database:     database,
		publisher:    publisher,
		bus:          b,
		storage:      storageActor,
		notifier:     notifierActor,
		matchmaker:   matchmakerActor,
		orchestrator: orchestratorActor,
	}
	server.shutdownHandler = NewShutdownHandler(server)
	return server, nil
}

// Run starts the actors and the HTTP server, blocking until shutdown.
func (s *Server) Run() error {
	osSignals := make(chan os.Signal, 1)
	signal.Notify(osSignals, syscall.SIGINT, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	s.actorCancel = cancel

	go s.storage.Run(ctx)
	go s.notifier.Run(ctx)
	go s.matchmaker.Run(ctx)
	go s.orchestrator.Run(ctx)

	serverDone := s.startServerGoroutine(ctx)

	return s.shutdownHandler.HandleShutdown(serverDone, osSignals)
}

// startServerGoroutine starts the HTTP server in a goroutine and returns a channel for errors
func (s *Server) startServerGoroutine(ctx context.Context) chan error {
	serverDone := make(chan error, 1)

	go func() {
		r := router.NewRouter(ctx, s.config, s.bus)
		s.http = &http.Server{
			Addr:    fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
			Handler: r,
		}

		slog.Info("Starting chat service",
			"host", s.config.Host,
			"port", s.config.Port)

		serverDone <- s.startServer()
	}()

	return serverDone
}

// startServer starts the HTTP server and handles errors
func (s *Server) startServer() error {
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}
