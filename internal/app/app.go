// Package app provides application initialization and dependency wiring.
//
// App is the container that assembles the taurimind server: configuration,
// storage, the event bus, Genkit with its model plugins, the actor
// registries and the HTTP API.
package app

import (
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taurimind/server/api"
	"github.com/taurimind/server/internal/config"
	"github.com/taurimind/server/internal/conversation"
	"github.com/taurimind/server/internal/log"
	"github.com/taurimind/server/internal/model"
	"github.com/taurimind/server/internal/notify"
	"github.com/taurimind/server/internal/store"
	"github.com/taurimind/server/internal/user"
)

// App is the core application container.
type App struct {
	// Configuration
	Config *config.Config
	Logger log.Logger

	// Core services
	Genkit        *genkit.Genkit
	DBPool        *pgxpool.Pool // nil when running on the in-memory store
	Store         store.Versioned
	Bus           *notify.Bus
	Models        *model.Registry
	Conversations *conversation.Registry
	Users         *user.Registry
	Server        *api.Server

	// Lifecycle management
	otelCleanup func()
}

// Close gracefully shuts down all resources.
func (a *App) Close() error {
	a.Logger.Info("shutting down application")

	if a.Bus != nil {
		if err := a.Bus.Close(); err != nil {
			a.Logger.Warn("closing event bus", "error", err)
		}
	}
	if a.DBPool != nil {
		a.DBPool.Close()
		a.Logger.Info("database pool closed")
	}
	if a.otelCleanup != nil {
		a.otelCleanup()
	}

	return nil
}
