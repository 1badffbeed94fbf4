// Command blogifyctl runs operator tasks against the Blogify database:
// migrations, bootstrapping admins and changing roles.
package main

import (
	"context"
	"errors"
	"log"
	"os"
	"slices"

	"github.com/dmitrijs2005/blogify/internal/admin"
	"github.com/dmitrijs2005/blogify/internal/flagx"
	"github.com/dmitrijs2005/blogify/internal/logging"
	"github.com/dmitrijs2005/blogify/internal/server/auth"
	"github.com/dmitrijs2005/blogify/internal/server/config"
	"github.com/dmitrijs2005/blogify/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/blogify/internal/server/services"
)

func main() {
	os.Exit(run())
}

func run() int {

	ctx := context.Background()
	cfg := config.LoadConfig()
	logger := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	db, err := repomanager.OpenDB(ctx, cfg.DatabaseDSN)
	if err != nil {
		log.Printf("%v", err)
		return 1
	}
	defer db.Close()

	rm := repomanager.NewPostgresRepositoryManager()
	issuer := auth.NewTokenIssuer(cfg.AccessTokenSecret, cfg.RefreshTokenSecret,
		cfg.AccessTokenValidityDuration, cfg.RefreshTokenValidityDuration)
	us := services.NewUserService(db, rm, auth.NewBcryptHasher(cfg.BcryptCost), issuer, nil, logger)

	migrate := func(ctx context.Context) error { return rm.RunMigrations(ctx, db) }
	app := admin.NewApp(us, migrate, os.Stdin, os.Stdout, logger)

	shared := append(slices.Clone(config.FlagNames), "-c", "-config")
	if err := app.Run(ctx, flagx.RemoveArgs(os.Args[1:], shared)); err != nil {
		if !errors.Is(err, admin.ErrUsage) {
			log.Printf("%v", err)
		}
		return 1
	}
	return 0
}
