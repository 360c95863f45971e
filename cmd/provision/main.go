package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/smitsergei/tma-subscription-sub002/internal/config"
	"github.com/smitsergei/tma-subscription-sub002/internal/domain/model"
	pg "github.com/smitsergei/tma-subscription-sub002/internal/infra/db/postgres"
	"github.com/smitsergei/tma-subscription-sub002/internal/infra/logging"
	"github.com/smitsergei/tma-subscription-sub002/internal/usecase"
)

const usage = `usage: provision [-config path] <command> [telegram_id]

commands:
  add <telegram_id>     grant admin rights
  remove <telegram_id>  revoke admin rights
  list                  print all admins`

// Manages the admin table out of band. The HTTP API has no route that
// creates admins.
func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	flag.Usage = func() { fmt.Fprintln(os.Stderr, usage) }
	flag.Parse()
	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.LoadConfig(*cfgPath, false)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := logging.New(cfg.Log, false)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	identityUC := usecase.NewIdentityUseCase(nil, nil, pg.NewUserRepo(pool), pg.NewAdminRepo(pool), nil, logger)

	switch cmd := args[0]; cmd {
	case "list":
		admins, err := identityUC.ListAdmins(ctx)
		if err != nil {
			log.Fatalf("list: %v", err)
		}
		for _, a := range admins {
			fmt.Printf("%s\tsince %s\n", a.TelegramID, a.CreatedAt.Format(time.RFC3339))
		}
	case "add", "remove":
		if len(args) != 2 {
			flag.Usage()
			os.Exit(2)
		}
		id, err := model.ParseTelegramID(args[1])
		if err != nil || id <= 0 {
			log.Fatalf("invalid telegram id %q", args[1])
		}
		if cmd == "add" {
			err = identityUC.EnsureAdmins(ctx, []int64{id.Int64()})
		} else {
			err = identityUC.RemoveAdmin(ctx, id)
		}
		if err != nil {
			log.Fatalf("%s: %v", cmd, err)
		}
		fmt.Printf("%s %s: ok\n", cmd, id)
	default:
		flag.Usage()
		os.Exit(2)
	}
}
