package cli

import (
	"context"
	"errors"
	"time"

	"syncademic/internal/auth"
	"syncademic/internal/bus"
	"syncademic/internal/cache"
	"syncademic/internal/calendar"
	"syncademic/internal/config"
	"syncademic/internal/ics"
	appLog "syncademic/internal/log"
	"syncademic/internal/store"
	syncer "syncademic/internal/sync"
)

// app wires the sync core together for CLI runs: Postgres-backed stores
// when a DSN is configured, in-memory otherwise.
type app struct {
	cfg      *config.Config
	bus      *bus.Bus
	profiles store.ProfileStore
	usage    store.UsageStore
	auths    store.AuthStore
	orch     *syncer.Orchestrator
	gateway  calendar.Gateway

	closers []func()
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg, bus: bus.New()}

	if cfg.PostgresDSN != "" {
		pg, err := store.Connect(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		if err := pg.Migrate(ctx); err != nil {
			pg.Close()
			return nil, err
		}
		a.profiles, a.usage, a.auths = pg, pg, pg
		a.closers = append(a.closers, pg.Close)
		appLog.Info("using postgres document store")
	} else {
		mem := store.NewMemory()
		a.profiles, a.usage, a.auths = mem, mem, mem
		appLog.Info("using in-memory document store")
	}

	icsCache := cache.New(cache.NewFileBlobStore(cfg.CacheDir))
	icsCache.SubscribeTo(a.bus)

	fetcher := ics.NewFetcher(ics.FetcherOptions{
		MaxRedirects:    cfg.MaxRedirects,
		MaxPayloadBytes: cfg.MaxPayloadBytes,
		Timeout:         cfg.FetchTimeout,
	})

	// The real target-calendar gateway is an external collaborator wired
	// at deploy time; CLI runs use the in-process gateway.
	a.gateway = calendar.NewMemoryGateway()

	tokenSource := auth.TokenSourceFunc(func(ctx context.Context, refreshToken string) (string, time.Time, error) {
		return "", time.Time{}, errors.New("token refresh not configured")
	})
	provider := auth.NewProvider(a.auths, tokenSource)

	a.orch = syncer.NewOrchestrator(cfg, a.profiles, a.usage, provider, fetcher, a.gateway, a.bus)
	return a, nil
}

func (a *app) close() {
	for _, fn := range a.closers {
		fn()
	}
}
