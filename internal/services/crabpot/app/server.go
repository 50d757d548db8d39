// Package server wires the crab pot runtime and gRPC lifecycle.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	crabpotv1 "github.com/louisbranch/crabpot/api/crabpot/v1"
	"github.com/louisbranch/crabpot/internal/platform/config"
	"github.com/louisbranch/crabpot/internal/platform/timeouts"
	crabpotservice "github.com/louisbranch/crabpot/internal/services/crabpot/api/grpc/crabpot"
	"github.com/louisbranch/crabpot/internal/services/crabpot/domain/engine"
	"github.com/louisbranch/crabpot/internal/services/crabpot/domain/notify"
	"github.com/louisbranch/crabpot/internal/services/crabpot/domain/outcome"
	crabpotsqlite "github.com/louisbranch/crabpot/internal/services/crabpot/storage/sqlite"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

type serverEnv struct {
	DBPath           string  `env:"CRABPOT_DB_PATH"`
	WinProbability   float64 `env:"CRABPOT_WIN_PROBABILITY" envDefault:"0.5"`
	PayoutAmount     uint64  `env:"CRABPOT_PAYOUT_AMOUNT" envDefault:"10000000"`
	MaxMessageLength int     `env:"CRABPOT_MAX_MESSAGE_LENGTH" envDefault:"280"`
	InitialFunds     uint64  `env:"CRABPOT_INITIAL_FUNDS"`
	OutcomeSecret    string  `env:"CRABPOT_OUTCOME_SECRET"`
	OperatorToken    string  `env:"CRABPOT_OPERATOR_TOKEN"`
}

func loadServerEnv() (serverEnv, error) {
	var cfg serverEnv
	if err := config.ParseEnv(&cfg); err != nil {
		return serverEnv{}, err
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		cfg.DBPath = filepath.Join("data", "crabpot.db")
	}
	return cfg, nil
}

// Server hosts the crab pot gRPC API, the event notifier, and storage
// lifecycle.
type Server struct {
	listener   net.Listener
	grpcServer *grpc.Server
	health     *health.Server
	notifier   *notify.Notifier
	store      *crabpotsqlite.Store
}

// New creates a configured crab pot server listening on the provided port.
func New(port int) (*Server, error) {
	return NewWithAddr(fmt.Sprintf(":%d", port))
}

// NewWithAddr creates a configured crab pot server for the provided address.
func NewWithAddr(addr string) (*Server, error) {
	env, err := loadServerEnv()
	if err != nil {
		return nil, err
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	store, err := openCrabPotStore(env.DBPath)
	if err != nil {
		_ = listener.Close()
		return nil, err
	}

	decider, err := newDecider(env)
	if err != nil {
		_ = listener.Close()
		_ = store.Close()
		return nil, err
	}

	notifier := notify.New(notify.WithLogger(log.Printf))
	eng, err := engine.New(store, decider, notifier, engine.Config{
		PayoutAmount:    env.PayoutAmount,
		MaxMessageRunes: env.MaxMessageLength,
	})
	if err != nil {
		_ = listener.Close()
		_ = store.Close()
		return nil, fmt.Errorf("build crab pot engine: %w", err)
	}

	seedCtx, cancel := context.WithTimeout(context.Background(), timeouts.GRPCRequest)
	seeded, err := eng.SeedFunds(seedCtx, env.InitialFunds)
	cancel()
	if err != nil {
		_ = listener.Close()
		_ = store.Close()
		return nil, fmt.Errorf("seed vault: %w", err)
	}
	if seeded {
		log.Printf("vault seeded with %d gwei", env.InitialFunds)
	}

	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	apiService := crabpotservice.NewService(eng, notifier, crabpotservice.WithOperatorToken(env.OperatorToken))
	healthServer := health.NewServer()
	crabpotv1.RegisterCrabPotServiceServer(grpcServer, apiService)
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(crabpotv1.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	return &Server{
		listener:   listener,
		grpcServer: grpcServer,
		health:     healthServer,
		notifier:   notifier,
		store:      store,
	}, nil
}

// Addr returns the listener address for the server.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Run creates and serves a crab pot server until context cancellation.
func Run(ctx context.Context, port int) error {
	server, err := New(port)
	if err != nil {
		return err
	}
	return server.Serve(ctx)
}

// Serve starts the gRPC server until context cancellation.
func (s *Server) Serve(ctx context.Context) error {
	if s == nil {
		return errors.New("server is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	defer s.Close()

	log.Printf("crab pot server listening at %v", s.listener.Addr())
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.grpcServer.Serve(s.listener)
	}()

	select {
	case <-ctx.Done():
		if s.health != nil {
			s.health.Shutdown()
		}
		s.stopGracefully()
		err := <-serveErr
		if err == nil || errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return fmt.Errorf("serve gRPC: %w", err)
	case err := <-serveErr:
		if err == nil || errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return fmt.Errorf("serve gRPC: %w", err)
	}
}

// stopGracefully drains in-flight calls, then forces open watch streams
// closed once timeouts.Shutdown elapses.
func (s *Server) stopGracefully() {
	stopped := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(timeouts.Shutdown):
		log.Printf("graceful stop timed out; closing open streams")
		s.grpcServer.Stop()
		<-stopped
	}
}

// Close releases crab pot server resources.
func (s *Server) Close() {
	if s == nil {
		return
	}
	if s.health != nil {
		s.health.Shutdown()
	}
	if s.grpcServer != nil {
		s.grpcServer.Stop()
	}
	if s.listener != nil {
		_ = s.listener.Close()
	}
	if s.notifier != nil {
		ctx, cancel := context.WithTimeout(context.Background(), timeouts.NotifierDrain)
		if err := s.notifier.Close(ctx); err != nil {
			log.Printf("close event notifier: %v", err)
		}
		cancel()
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			log.Printf("close crab pot store: %v", err)
		}
	}
}

func newDecider(env serverEnv) (*outcome.Engine, error) {
	secret := []byte(strings.TrimSpace(env.OutcomeSecret))
	if len(secret) == 0 {
		generated, err := outcome.NewSecret()
		if err != nil {
			return nil, fmt.Errorf("generate outcome secret: %w", err)
		}
		log.Printf("CRABPOT_OUTCOME_SECRET not set; outcome proofs verify only for this process")
		secret = generated
	}
	decider, err := outcome.NewEngine(secret, env.WinProbability)
	if err != nil {
		return nil, fmt.Errorf("build outcome engine: %w", err)
	}
	return decider, nil
}

func openCrabPotStore(path string) (*crabpotsqlite.Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	store, err := crabpotsqlite.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open crab pot sqlite store: %w", err)
	}
	return store, nil
}
