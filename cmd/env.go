package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/medicalexcom/sourcematch/internal/fetch"
	"github.com/medicalexcom/sourcematch/internal/resolver"
	"github.com/medicalexcom/sourcematch/internal/store"
)

// env bundles the wired dependencies for a command invocation.
type env struct {
	store  store.Store
	engine *resolver.Engine
}

// initEngine builds the store, provider, fetcher, and engine from config.
func initEngine(ctx context.Context) (*env, error) {
	st, err := openStore(ctx)
	if err != nil {
		return nil, err
	}

	provider := resolver.NewProvider(cfg.Serper, cfg.Resolver.SearchRatePerSec)
	fetcher := fetch.NewHTTPFetcher(time.Duration(cfg.Resolver.FetchTimeoutSecs) * time.Second)
	engine := resolver.New(st, st, provider, fetcher, cfg.Resolver)

	if cfg.Resolver.OverridesPath != "" {
		overrides, err := resolver.LoadOverrides(cfg.Resolver.OverridesPath)
		if err != nil {
			_ = st.Close()
			return nil, err
		}
		engine.SetOverrides(overrides)
	}

	return &env{store: st, engine: engine}, nil
}

func openStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	case "sqlite":
		return store.NewSQLite(cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func (e *env) Close() {
	_ = e.store.Close()
}
