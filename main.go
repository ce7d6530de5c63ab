package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mtnptrsn/zon/broadcast"
	"github.com/mtnptrsn/zon/config"
	"github.com/mtnptrsn/zon/logger"
	"github.com/mtnptrsn/zon/mapgen"
	"github.com/mtnptrsn/zon/monitor"
	"github.com/mtnptrsn/zon/persistence"
	"github.com/mtnptrsn/zon/room"
	"github.com/mtnptrsn/zon/rpc"
	"github.com/mtnptrsn/zon/server"
	"github.com/mtnptrsn/zon/services"
	"github.com/mtnptrsn/zon/session"
	"github.com/mtnptrsn/zon/ticker"
)

func openStore(cfg config.Config) (persistence.RoomStore, error) {
	pg := cfg.Database.Postgres
	timeout := cfg.Game.StoreTimeout
	switch cfg.Database.Driver {
	case "gorm":
		return persistence.NewGormPostgreSQL(pg.Host, pg.Port, pg.User, pg.Password, pg.DBName, timeout)
	case "postgres":
		return persistence.NewPostgreSQL(pg.Host, pg.Port, pg.User, pg.Password, pg.DBName, timeout)
	case "memory":
		return persistence.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}

func main() {
	// Load configuration
	cfg, err := config.LoadConfig(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger.Init(cfg.Log.Development)
	defer logger.Sync()

	// Initialize Database
	store, err := openStore(*cfg)
	if err != nil {
		logger.Log.Fatalf("Failed to connect to database: %v", err)
	}
	defer store.Close()
	logger.Log.Infof("Room store ready (%s).", cfg.Database.Driver)

	mon := monitor.NewMonitor("zon")
	mon.StartServer(cfg.Server.MetricsAddress)

	sessions := session.NewManager()
	rooms := room.NewService(
		store,
		mapgen.NewRandomGenerator(cfg.MapGen),
		broadcast.NewSessionBroadcaster(sessions, cfg.Game.HomeHitbox),
		cfg.Game,
		room.WithMonitor(mon),
	)
	stats := services.NewStatsService(store)

	rpcServer, err := rpc.NewServer(cfg.Server.RPCAddress)
	if err != nil {
		logger.Log.Fatalf("Failed to create RPC server: %v", err)
	}
	if err := rpcServer.Register(rpc.NewGameService(rooms, stats, cfg.Game.StoreTimeout)); err != nil {
		logger.Log.Fatalf("Failed to register RPC service: %v", err)
	}
	go rpcServer.Start()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tick := ticker.New(rooms, cfg.Game, ticker.WithMonitor(mon))
	tick.Start(ctx)

	gameServer := server.NewGameServer(cfg.Server.HTTPAddress, rooms, stats, sessions, server.WithMonitor(mon))
	errCh := make(chan error, 1)
	go func() { errCh <- gameServer.Start() }()

	select {
	case <-ctx.Done():
		logger.Log.Info("Shutting down.")
	case err := <-errCh:
		if err != nil {
			logger.Log.Errorf("Game server stopped: %v", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := gameServer.Shutdown(shutdownCtx); err != nil {
		logger.Log.Errorf("Game server shutdown: %v", err)
	}
	tick.Stop()
	rpcServer.Stop()
	if err := mon.Shutdown(shutdownCtx); err != nil {
		logger.Log.Errorf("Metrics server shutdown: %v", err)
	}
}
