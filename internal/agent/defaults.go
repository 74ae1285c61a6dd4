package agent

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/ashureev/printdesk/internal/templates"
)

// DefaultRouterConfig configures NewDefaultRouter.
type DefaultRouterConfig struct {
	Catalog        *templates.Catalog
	Chooser        *Chooser
	Logger         *slog.Logger
	HandlerTimeout time.Duration
	DefaultDPI     int
}

// NewDefaultRouter builds a router with the standard handler set registered.
func NewDefaultRouter(cfg DefaultRouterConfig) (*Router, error) {
	if cfg.Catalog == nil {
		cfg.Catalog = templates.Default()
	}
	if cfg.Chooser == nil {
		cfg.Chooser = NewChooser(0)
	}

	router, err := NewRouter(
		WithCatalog(cfg.Catalog),
		WithChooser(cfg.Chooser),
		WithLogger(cfg.Logger),
		WithHandlerTimeout(cfg.HandlerTimeout),
	)
	if err != nil {
		return nil, err
	}

	handlers := []Handler{
		NewGratitudeHandler(cfg.Catalog, cfg.Chooser),
		NewRepeatHandler(cfg.Catalog, cfg.Chooser),
		NewSizeCalculationHandler(),
		NewPrintSizeHandler(cfg.DefaultDPI),
	}
	for _, h := range handlers {
		if err := router.Register(h); err != nil {
			return nil, fmt.Errorf("register %s: %w", h.Name(), err)
		}
	}
	return router, nil
}
