// File: internal/service/components.go
package service

import (
	"go.uber.org/zap"

	"github.com/xkilldash9x/rglaunch/internal/config"
	"github.com/xkilldash9x/rglaunch/internal/launcher"
	"github.com/xkilldash9x/rglaunch/internal/ledger"
	"github.com/xkilldash9x/rglaunch/internal/preset"
)

// Components holds the initialized services behind the launch commands.
type Components struct {
	Config   *config.Config
	Catalog  *preset.Catalog
	Ledger   ledger.Store
	Launcher *launcher.Launcher

	logger *zap.Logger
}

// NewComponents assembles components from already constructed parts.
func NewComponents(cfg *config.Config, catalog *preset.Catalog, store ledger.Store, l *launcher.Launcher, logger *zap.Logger) *Components {
	if store == nil {
		store = ledger.NopStore{}
	}
	return &Components{
		Config:   cfg,
		Catalog:  catalog,
		Ledger:   store,
		Launcher: l,
		logger:   logger,
	}
}

// Shutdown releases the ledger connection.
func (c *Components) Shutdown() {
	if c.Ledger == nil {
		return
	}
	if err := c.Ledger.Close(); err != nil {
		c.logger.Warn("Error closing run ledger.", zap.Error(err))
		return
	}
	c.logger.Debug("Run ledger closed.")
}
