package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mucks/proofmarket/internal/crypto"
	"github.com/mucks/proofmarket/internal/domain"
	"github.com/mucks/proofmarket/internal/engine"
	"github.com/mucks/proofmarket/internal/notify"
	"github.com/mucks/proofmarket/internal/server"
	"github.com/mucks/proofmarket/internal/server/handler"
	"github.com/mucks/proofmarket/internal/server/ws"
)

// ServeMode runs the API server: the engine, the HTTP + WebSocket surface,
// and the event pump that fans committed events out to the cache, the
// notifier, and the settlement archiver.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting serve mode")

	g, ctx := errgroup.WithContext(ctx)

	eng := engine.New(deps.Ledger, deps.Treasury, deps.Bus, a.cfg.OracleAddress(), a.logger, engine.Options{
		LockManager: deps.LockManager,
		LockTTL:     a.cfg.Ledger.LockTTL.Duration,
	})

	// Event pump: one subscriber per concern so a slow notifier cannot
	// stall cache invalidation.
	g.Go(func() error {
		return a.runEventPump(ctx, deps)
	})

	if !a.cfg.Server.Enabled {
		a.logger.WarnContext(ctx, "serve mode with server.enabled=false; only the event pump is running")
		return g.Wait()
	}

	// WebSocket hub.
	hub := ws.NewHub(deps.Bus, a.logger)
	g.Go(func() error {
		err := hub.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	// Markets read through the cache when Redis is wired.
	marketSvc := newMarketReader(eng, deps)

	handlers := server.Handlers{
		Health:    handler.NewHealthHandler(deps.HealthChecks),
		Markets:   handler.NewMarketHandler(marketSvc, a.logger),
		Bets:      handler.NewBetHandler(eng, a.logger),
		Lifecycle: handler.NewLifecycleHandler(eng, a.logger),
		Claims:    handler.NewClaimHandler(eng, a.logger),
	}

	srv := server.NewServer(server.Config{
		Port:             a.cfg.Server.Port,
		CORSOrigins:      a.cfg.Server.CORSOrigins,
		RequireSignature: a.cfg.Server.RequireSignature,
		RateLimit:        a.cfg.Server.RateLimit,
		RateWindow:       a.cfg.Server.RateWindow.Duration,
	}, handlers, hub, deps.RateLimiter, a.logger)

	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// runEventPump consumes committed ledger events and drives the read-side
// reactions: cache invalidation, settlement archiving, and notifications.
// Failures are logged and skipped; the pump never blocks ledger operations.
func (a *App) runEventPump(ctx context.Context, deps *Dependencies) error {
	events, err := deps.Bus.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("app: event pump subscribe: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			a.handleEvent(ctx, deps, ev)
		}
	}
}

// handleEvent applies the read-side reactions for one event.
func (a *App) handleEvent(ctx context.Context, deps *Dependencies, ev domain.Event) {
	// Every event mutates its market, so the cached copy is stale.
	if deps.MarketCache != nil {
		if err := deps.MarketCache.Invalidate(ctx, ev.MarketID); err != nil {
			a.logger.WarnContext(ctx, "event pump: cache invalidation failed",
				slog.Int64("market_id", ev.MarketID),
				slog.String("error", err.Error()),
			)
		}
	}

	if ev.Type == domain.EventMarketResolved && deps.Archiver != nil {
		if err := deps.Archiver.Archive(ctx, ev.MarketID); err != nil {
			a.logger.WarnContext(ctx, "event pump: settlement archive failed",
				slog.Int64("market_id", ev.MarketID),
				slog.String("error", err.Error()),
			)
		}
	}

	event, title, message := notify.FormatEvent(ev)
	if err := deps.Notifier.Notify(ctx, event, title, message); err != nil {
		a.logger.WarnContext(ctx, "event pump: notification failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

// marketReader layers the Redis market cache over the engine's reads. Writes
// go straight to the engine; Get consults the cache first and fills it on a
// miss. The event pump invalidates entries when the market changes.
type marketReader struct {
	*engine.Engine
	cache domain.MarketCache
}

func newMarketReader(eng *engine.Engine, deps *Dependencies) *marketReader {
	return &marketReader{Engine: eng, cache: deps.MarketCache}
}

// GetMarket returns the market from the cache when possible.
func (r *marketReader) GetMarket(ctx context.Context, id int64) (domain.Market, error) {
	if r.cache == nil {
		return r.Engine.GetMarket(ctx, id)
	}

	if m, err := r.cache.Get(ctx, id); err == nil {
		return m, nil
	}

	m, err := r.Engine.GetMarket(ctx, id)
	if err != nil {
		return domain.Market{}, err
	}
	// Best-effort fill; a failed Set only costs the next reader a query.
	_ = r.cache.Set(ctx, m)
	return m, nil
}

// seedMarket is one demonstration market created by seed mode.
type seedMarket struct {
	title       string
	description string
	category    string
	deadline    time.Duration // offset from now
	stake       *big.Int
}

// ether is 10^18 wei.
var ether = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// centiEther returns n/100 ether in wei.
func centiEther(n int64) *big.Int {
	out := new(big.Int).Mul(big.NewInt(n), ether)
	return out.Quo(out, big.NewInt(100))
}

// seedMarkets are the demonstration markets created by seed mode.
var seedMarkets = []seedMarket{
	{
		title:       "Will Tesla deliver Robotaxi in 2026?",
		description: "Tesla has promised fully autonomous robotaxis by 2026. Will they achieve Level 5 autonomy and launch a commercial robotaxi service?",
		category:    "AI",
		deadline:    2 * 365 * 24 * time.Hour,
		stake:       centiEther(1),
	},
	{
		title:       "Will OpenAI launch GPT-6 by Q2 2025?",
		description: "OpenAI has been rapidly iterating on GPT models. Will GPT-6 be released to the public by the end of Q2 2025?",
		category:    "AI/ML",
		deadline:    182 * 24 * time.Hour,
		stake:       centiEther(1),
	},
	{
		title:       "Will Apple release AR glasses by 2025?",
		description: "Apple has been working on AR/VR technology. Will they release consumer AR glasses by the end of 2025?",
		category:    "Gaming",
		deadline:    365 * 24 * time.Hour,
		stake:       centiEther(1),
	},
	{
		title:       "Will Ethereum reach $10,000 by end of 2025?",
		description: "Ethereum has been gaining adoption. Will the price reach $10,000 USD by December 31, 2025?",
		category:    "DeFi",
		deadline:    365 * 24 * time.Hour,
		stake:       centiEther(1),
	},
	{
		title:       "Will SpaceX land humans on Mars by 2030?",
		description: "SpaceX has ambitious plans for Mars colonization. Will they successfully land humans on Mars by 2030?",
		category:    "Space",
		deadline:    5 * 365 * 24 * time.Hour,
		stake:       centiEther(1),
	},
}

// SeedMode populates a fresh backend with demonstration markets and places an
// opening bet on each side, then exits. The oracle key doubles as the
// creator; two generated wallets act as the opening bettors.
func (a *App) SeedMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting seed mode")

	signer, err := a.oracleSigner()
	if err != nil {
		return fmt.Errorf("seed mode: %w", err)
	}
	creator := signer.Address()

	yesBettor, err := crypto.GenerateSigner()
	if err != nil {
		return fmt.Errorf("seed mode: generate yes bettor: %w", err)
	}
	noBettor, err := crypto.GenerateSigner()
	if err != nil {
		return fmt.Errorf("seed mode: generate no bettor: %w", err)
	}

	betPerSide, ok := new(big.Int).SetString(a.cfg.Seed.BetPerSide, 10)
	if !ok || betPerSide.Sign() <= 0 {
		return fmt.Errorf("seed mode: invalid seed.bet_per_side %q", a.cfg.Seed.BetPerSide)
	}

	eng := engine.New(deps.Ledger, deps.Treasury, deps.Bus, a.cfg.OracleAddress(), a.logger, engine.Options{
		LockManager: deps.LockManager,
		LockTTL:     a.cfg.Ledger.LockTTL.Duration,
	})

	limit := len(seedMarkets)
	if a.cfg.Seed.Markets > 0 && a.cfg.Seed.Markets < limit {
		limit = a.cfg.Seed.Markets
	}

	now := time.Now()
	for _, sm := range seedMarkets[:limit] {
		metadata, err := json.Marshal(map[string]string{
			"title":       sm.title,
			"description": sm.description,
			"category":    sm.category,
		})
		if err != nil {
			return fmt.Errorf("seed mode: marshal metadata: %w", err)
		}

		id, err := eng.CreateMarket(ctx, creator, now.Add(sm.deadline), string(metadata), sm.stake)
		if err != nil {
			return fmt.Errorf("seed mode: create market %q: %w", sm.title, err)
		}

		if err := eng.PlaceBet(ctx, id, yesBettor.Address(), domain.SideYes, betPerSide); err != nil {
			return fmt.Errorf("seed mode: yes bet on market %d: %w", id, err)
		}
		if err := eng.PlaceBet(ctx, id, noBettor.Address(), domain.SideNo, betPerSide); err != nil {
			return fmt.Errorf("seed mode: no bet on market %d: %w", id, err)
		}

		a.logger.InfoContext(ctx, "seeded market",
			slog.Int64("market_id", id),
			slog.String("title", sm.title),
		)
	}

	a.logger.InfoContext(ctx, "seed complete", slog.Int("markets", limit))
	return nil
}

// oracleSigner loads the oracle's signing key from the raw hex key or the
// encrypted keyfile, whichever is configured.
func (a *App) oracleSigner() (*crypto.Signer, error) {
	keyHex, err := crypto.LoadKey(crypto.KeyConfig{
		RawPrivateKey:    a.cfg.Oracle.PrivateKey,
		EncryptedKeyPath: a.cfg.Oracle.EncryptedKeyPath,
		KeyPassword:      a.cfg.Oracle.KeyPassword,
	})
	if err != nil {
		return nil, fmt.Errorf("load oracle key: %w", err)
	}
	return crypto.NewSigner(keyHex)
}
