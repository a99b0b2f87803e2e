// Package app wires the inventar components together. A Container is created
// once per process and hands out shared instances on first use.
package app

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/erazemk/inventar/internal/config"
	"github.com/erazemk/inventar/internal/db"
	"github.com/erazemk/inventar/internal/inventory"
	"github.com/erazemk/inventar/internal/live"
	"github.com/erazemk/inventar/internal/metrics"
	"github.com/erazemk/inventar/internal/repository"
	"github.com/erazemk/inventar/internal/store"
)

var _ inventory.Repository = (*repository.Items)(nil)

// ErrUnsupportedKind is returned by Service for a kind the container cannot build.
var ErrUnsupportedKind = errors.New("app: unsupported service kind")

// Container owns the database, the change tracker and the services built on them.
type Container struct {
	cfg    *config.Config
	logger *slog.Logger
	reg    prometheus.Registerer

	storeOnce sync.Once
	storeErr  error
	db        *sql.DB
	tracker   *live.Tracker
	items     *store.Items
	metrics   *metrics.Metrics

	svcOnce sync.Once
	svcErr  error
	svc     *inventory.Service
}

// NewContainer returns a container that opens nothing until first use. A nil
// registry disables metrics.
func NewContainer(cfg *config.Config, logger *slog.Logger, reg prometheus.Registerer) *Container {
	if logger == nil {
		logger = slog.Default()
	}
	return &Container{cfg: cfg, logger: logger, reg: reg}
}

func (c *Container) init() error {
	c.storeOnce.Do(func() {
		database, err := db.Open(c.cfg.DBPath)
		if err != nil {
			c.storeErr = err
			return
		}
		if err := db.Migrate(database); err != nil {
			database.Close()
			c.storeErr = fmt.Errorf("migrating database: %w", err)
			return
		}

		if c.reg != nil {
			m, err := metrics.New(c.reg)
			if err != nil {
				database.Close()
				c.storeErr = fmt.Errorf("registering metrics: %w", err)
				return
			}
			c.metrics = m
		}

		c.db = database
		c.tracker = live.NewTracker(c.logger)
		c.items = store.NewItems(database, c.tracker)

		if err := c.metrics.GaugeFunc("live_subscribers", "Active live query subscriptions.", func() float64 {
			return float64(c.tracker.Subscribers())
		}); err != nil {
			c.logger.Warn("registering subscriber gauge", "error", err)
		}
		c.logger.Info("database ready", "path", c.cfg.DBPath)
	})
	return c.storeErr
}

// DB returns the shared database handle.
func (c *Container) DB() (*sql.DB, error) {
	if err := c.init(); err != nil {
		return nil, err
	}
	return c.db, nil
}

// Tracker returns the change tracker shared by every live query.
func (c *Container) Tracker() (*live.Tracker, error) {
	if err := c.init(); err != nil {
		return nil, err
	}
	return c.tracker, nil
}

// Items returns the process-wide item store.
func (c *Container) Items() (*store.Items, error) {
	if err := c.init(); err != nil {
		return nil, err
	}
	return c.items, nil
}

// Metrics returns the collectors, or nil when metrics are disabled.
func (c *Container) Metrics() *metrics.Metrics {
	if c.init() != nil {
		return nil
	}
	return c.metrics
}

// Service returns the service of the given kind. Only inventory.Kind is known.
func (c *Container) Service(kind string) (*inventory.Service, error) {
	if kind != inventory.Kind {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedKind, kind)
	}

	c.svcOnce.Do(func() {
		items, err := c.Items()
		if err != nil {
			c.svcErr = err
			return
		}
		c.svc = inventory.NewService(repository.NewItems(items),
			inventory.WithLogger(c.logger),
			inventory.WithMetrics(c.metrics),
		)
	})
	return c.svc, c.svcErr
}

// Close stops the service, dropping queued mutations, and closes the database.
func (c *Container) Close() error {
	if c.svc != nil {
		c.svc.Close()
	}
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}
