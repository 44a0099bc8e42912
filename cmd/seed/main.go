package main

import (
	"context"
	"flag"
	"log"

	"github.com/assacalos/megvie/internal/config"
	"github.com/assacalos/megvie/internal/logger"
	"github.com/assacalos/megvie/internal/model"

	"github.com/joho/godotenv"
)

func main() {
	configFile := flag.String("config", "", "config file (e.g. etc/config-dev.yaml)")
	password := flag.String("password", "password", "password given to every seeded account")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.Load(*configFile)
	logger.Init(cfg.Log)

	db, err := cfg.OpenGormDB()
	if err != nil {
		log.Fatal("db connect failed: ", err)
	}
	if err := model.AutoMigrate(db); err != nil {
		log.Fatal("db migrate failed: ", err)
	}
	ctx := context.Background()

	// Step 1: one account per role
	n, err := seedAccounts(ctx, db, *password)
	if err != nil {
		log.Fatal("accounts seed failed: ", err)
	}
	logger.Info("accounts seeded", "created", n)

	// Step 2: professions
	n, err = seedCrafts(ctx, db)
	if err != nil {
		log.Fatal("crafts seed failed: ", err)
	}
	logger.Info("crafts seeded", "created", n)

	logger.Info("=== all done ===")
}
