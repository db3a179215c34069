package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/hackgods/clinic-appointment-scheduling/internal/config"
	"github.com/hackgods/clinic-appointment-scheduling/internal/db"
	"github.com/hackgods/clinic-appointment-scheduling/internal/seed"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	doctors := flag.Int("doctors", 100, "number of doctors to create")
	patients := flag.Int("patients", 9000, "number of patients to create")
	seedValue := flag.Uint64("seed", uint64(time.Now().UnixNano()), "random seed")
	flag.Parse()

	log.Println("seed starting")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}
	if cfg.PostgresDSN == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, db.PoolOptions{AppName: "clinic-seed", MaxConns: int32(cfg.PostgresMaxConn)})
	cancel()
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	catalog := seed.Generate(*seedValue, *doctors, *patients)
	err = seed.Insert(context.Background(), pool, catalog, func(table string, done, total int) {
		log.Printf("%s seeded: %d/%d", table, done, total)
	})
	if err != nil {
		log.Fatalf("seed: %v", err)
	}

	log.Println("seed complete")
}
