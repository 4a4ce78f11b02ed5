// Command syncdirectory seeds the operator and bank directories from the recharge
// provider and exits.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"recharge-wallet/internal/aggregator"
	"recharge-wallet/internal/config"
	"recharge-wallet/internal/db"
	"recharge-wallet/internal/ledger"
	"recharge-wallet/internal/logger"
	"recharge-wallet/internal/services"
)

func main() {
	operators := flag.Bool("operators", false, "sync the operator directory")
	banks := flag.Bool("banks", false, "sync the bank directory")
	timeout := flag.Duration("timeout", 2*time.Minute, "overall deadline")
	flag.Parse()

	cfg := config.LoadConfig()
	log := logger.InitLogger(cfg.LogLevel, !cfg.IsProduction())

	if !*operators && !*banks {
		*operators, *banks = true, true
	}

	database, err := db.InitDB(cfg.Database.URL, db.PoolOptions{MaxOpenConns: 4})
	if err != nil {
		log.Fatal().Err(err).Msg("Database connection failed")
	}
	defer database.Close()

	if err := db.RunMigrations(database); err != nil {
		log.Fatal().Err(err).Msg("Migrations failed")
	}

	provider := aggregator.NewClient(aggregator.Config{
		BaseURL:       cfg.Aggregator.BaseURL,
		PartnerID:     cfg.Aggregator.PartnerID,
		AuthorisedKey: cfg.Aggregator.AuthorisedKey,
		JWTKey:        cfg.Aggregator.JWTKey,
		Timeout:       cfg.Aggregator.Timeout,
	}, log)
	directory := services.NewDirectoryService(ledger.NewStore(database, log), provider, log)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	failed := false
	if *operators {
		report, err := directory.SyncOperators(ctx)
		if err != nil {
			log.Error().Err(err).Msg("Operator sync failed")
			failed = true
		} else {
			log.Info().Int("fetched", report.Fetched).Int("upserted", report.Upserted).Msg("Operators synced")
		}
	}
	if *banks {
		report, err := directory.SyncBanks(ctx)
		if err != nil {
			log.Error().Err(err).Msg("Bank sync failed")
			failed = true
		} else {
			log.Info().Int("fetched", report.Fetched).Int("upserted", report.Upserted).Msg("Banks synced")
		}
	}

	if failed {
		database.Close()
		os.Exit(1)
	}
}
