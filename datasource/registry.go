package datasource

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Registry owns the configured data-source pools.
type Registry struct {
	logger  *zap.Logger
	clients map[string]Client
	dbs     []*sql.DB
}

// NewRegistry creates an empty registry. Clients can be added with Add.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		logger:  logger,
		clients: make(map[string]Client),
	}
}

// Open opens and pings every configured data source. Pings run concurrently;
// if any source fails, all pools are closed and the first error is returned.
func Open(ctx context.Context, logger *zap.Logger, configs []Config) (*Registry, error) {
	r := NewRegistry(logger)

	for _, cfg := range configs {
		if _, exists := r.clients[cfg.Name]; exists {
			_ = r.Close()
			return nil, fmt.Errorf("duplicate data source name: %s", cfg.Name)
		}
		driverName, err := sqlDriverName(cfg.Driver)
		if err != nil {
			_ = r.Close()
			return nil, fmt.Errorf("data source %s: %w", cfg.Name, err)
		}
		db, err := sql.Open(driverName, cfg.DSN)
		if err != nil {
			_ = r.Close()
			return nil, fmt.Errorf("failed to open data source %s: %w", cfg.Name, err)
		}
		r.dbs = append(r.dbs, db)
		r.clients[cfg.Name] = NewSQLClient(logger, cfg.Name, cfg.Driver, db)
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, db := range r.dbs {
		name := configs[i].Name
		g.Go(func() error {
			if err := db.PingContext(gctx); err != nil {
				return fmt.Errorf("failed to ping data source %s: %w", name, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		_ = r.Close()
		return nil, err
	}

	logger.Info("data sources opened", zap.Strings("names", r.Names()))
	return r, nil
}

// Add registers a client under its own name, replacing any previous one.
func (r *Registry) Add(c Client) {
	r.clients[c.Name()] = c
}

// Get returns the named client or nil.
func (r *Registry) Get(name string) Client {
	return r.clients[name]
}

// Clients returns a copy of the name to client mapping.
func (r *Registry) Clients() map[string]Client {
	out := make(map[string]Client, len(r.clients))
	for name, c := range r.clients {
		out[name] = c
	}
	return out
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.clients))
	for name := range r.clients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close closes every pool opened by the registry.
func (r *Registry) Close() error {
	var errs []error
	for _, db := range r.dbs {
		if err := db.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	r.dbs = nil
	return errors.Join(errs...)
}
