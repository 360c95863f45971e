package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"github.com/smitsergei/tma-subscription-sub002/internal/config"
	"github.com/smitsergei/tma-subscription-sub002/internal/domain/model"
	pg "github.com/smitsergei/tma-subscription-sub002/internal/infra/db/postgres"
	"github.com/smitsergei/tma-subscription-sub002/internal/infra/logging"
	red "github.com/smitsergei/tma-subscription-sub002/internal/infra/redis"
	"github.com/smitsergei/tma-subscription-sub002/internal/usecase"
)

// Seeds a demo channel with a few products and a promo code for manual testing.
func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	channelID := flag.Int64("channel", -1001000000001, "telegram id of the channel to sell")
	reset := flag.Bool("reset", false, "wipe all shop data before seeding")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := logging.New(cfg.Log, true)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()
	if err := pg.Migrate(ctx, pool); err != nil {
		log.Fatalf("migrations: %v", err)
	}

	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	defer redisClient.Close()

	if *reset {
		_, err = pool.Exec(ctx, `
			TRUNCATE
				broadcasts, demo_accesses, subscriptions, payments, promo_usages,
				promo_codes, products, channels
			CASCADE;
		`)
		if err != nil {
			log.Fatalf("truncate: %v", err)
		}
		fmt.Println("shop data wiped")
	}

	// Products go through the cached repo so stale catalog entries are evicted.
	products := pg.NewProductRepoCacheDecorator(pg.NewProductRepo(pool), redisClient, cfg.Redis.TTL)
	catalogUC := usecase.NewCatalogUseCase(pg.NewChannelRepo(pool), products, nil, logger)
	promoUC := usecase.NewPromoUseCase(pg.NewPromoRepo(pool), pg.NewTxManager(pool), nil, logger)

	existing, err := catalogUC.ListActiveProducts(ctx)
	if err != nil {
		log.Fatalf("list products: %v", err)
	}
	if len(existing) > 0 {
		fmt.Printf("%d products already present. No changes.\n", len(existing))
		for _, p := range existing {
			fmt.Printf("  - %s (id=%s, days=%d, price=%s %s)\n", p.Name, p.ID, p.PeriodDays, p.EffectivePrice(), p.Currency)
		}
		return
	}

	ch, err := catalogUC.CreateChannel(ctx, &model.Channel{
		ID:          model.TelegramID(*channelID),
		Name:        "Premium Signals",
		Description: "Private channel used for local testing",
	})
	if err != nil {
		log.Fatalf("create channel: %v", err)
	}

	seed := []struct {
		Name     string
		Days     int
		Price    string
		Discount string
		DemoDays int
	}{
		{"Weekly", 7, "1.5", "", 1},
		{"Monthly", 30, "5", "4.5", 3},
		{"Quarterly", 90, "12", "", 0},
	}
	for _, s := range seed {
		p := &model.Product{
			ChannelID:  ch.ID,
			Name:       s.Name,
			Price:      decimal.RequireFromString(s.Price),
			Currency:   cfg.Payment.Currency,
			PeriodDays: s.Days,
			IsActive:   true,
			AllowDemo:  s.DemoDays > 0,
			DemoDays:   s.DemoDays,
		}
		if s.Discount != "" {
			d := decimal.RequireFromString(s.Discount)
			p.DiscountPrice = &d
		}
		created, err := catalogUC.CreateProduct(ctx, p)
		if err != nil {
			log.Fatalf("create product %q: %v", s.Name, err)
		}
		fmt.Printf("seeded: %s (id=%s, days=%d, price=%s %s)\n", created.Name, created.ID, created.PeriodDays, created.EffectivePrice(), created.Currency)
	}

	if promo, err := promoUC.Create(ctx, "WELCOME10", 10, 100); err != nil {
		log.Printf("promo: %v", err)
	} else {
		fmt.Printf("seeded promo: %s (-%d%%, %d uses)\n", promo.Code, promo.DiscountPercent, promo.MaxUses)
	}

	fmt.Println("Seeding complete.")
}
