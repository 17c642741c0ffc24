// Package app owns the application context: every logical store behind its
// own coarse lock, plus the command handlers the CLI drives. Locks are held
// only for the read/modify/write itself, never across provider calls,
// instance waits, or any other suspension point.
package app

import (
	"sync"

	"go.uber.org/zap"

	"github.com/quasar/mcfleet/internal/auth"
	"github.com/quasar/mcfleet/internal/config"
	"github.com/quasar/mcfleet/internal/core"
	"github.com/quasar/mcfleet/internal/relay"
	"github.com/quasar/mcfleet/internal/store"
)

// App is the process-wide application context. It is shared by reference
// into every command handler; there is no ambient global state.
type App struct {
	cfg    *config.Config
	logger *zap.Logger

	provider  auth.Provider
	connector core.Connector
	relay     *relay.Relay

	registryMu  sync.Mutex
	controllers *core.Registry

	clientsMu sync.Mutex
	clients   *store.ClientList

	serversMu sync.Mutex
	servers   *store.ServerList

	cacheMu sync.Mutex
	cache   *auth.Cache

	authMu  sync.Mutex
	ongoing map[string]*auth.Authentication
}

// New loads the persisted stores from the config's data dir and starts the
// notification relay.
func New(cfg *config.Config, provider auth.Provider, connector core.Connector,
	sink relay.Sink, logger *zap.Logger) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("initialising application context", zap.String("dataDir", cfg.DataDir))
	return &App{
		cfg:         cfg,
		logger:      logger,
		provider:    provider,
		connector:   connector,
		relay:       relay.New(sink, cfg.RelayBuffer, cfg.LogsDir, logger),
		controllers: core.NewRegistry(logger),
		clients:     store.LoadClients(cfg.DataDir, logger),
		servers:     store.LoadServers(cfg.DataDir, logger),
		cache:       auth.LoadCache(cfg.DataDir, logger),
		ongoing:     make(map[string]*auth.Authentication),
	}
}

// Relay exposes the notification relay, mainly so handlers and the CLI can
// push informational chat lines.
func (a *App) Relay() *relay.Relay {
	return a.relay
}

// Close tears down every controller and stops the relay.
func (a *App) Close() error {
	a.registryMu.Lock()
	a.controllers.Close()
	a.registryMu.Unlock()
	return a.relay.Close()
}
