// File: internal/service/factory.go
package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/rglaunch/internal/config"
	"github.com/xkilldash9x/rglaunch/internal/launcher"
	"github.com/xkilldash9x/rglaunch/internal/ledger"
	"github.com/xkilldash9x/rglaunch/internal/preset"
)

// ComponentFactory creates the components a command needs. Commands depend on
// the interface so tests can substitute their own wiring.
type ComponentFactory interface {
	Create(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Components, error)
}

type concreteFactory struct{}

// NewComponentFactory returns the production factory.
func NewComponentFactory() ComponentFactory {
	return &concreteFactory{}
}

// Create loads the preset catalog, opens the configured ledger and builds the launcher.
func (f *concreteFactory) Create(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Components, error) {
	catalog, err := preset.LoadCatalog(cfg.Launcher.PresetsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load presets: %w", err)
	}
	logger.Debug("Preset catalog loaded.", zap.Strings("presets", catalog.Names()))

	store, err := ledger.Open(ctx, cfg.Ledger, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open run ledger: %w", err)
	}
	logger.Debug("Run ledger opened.", zap.String("backend", cfg.Ledger.Backend))

	l := launcher.New(logger, cfg.Launcher.GracePeriod)
	return NewComponents(cfg, catalog, store, l, logger), nil
}
