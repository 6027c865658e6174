package main

import (
	"context"
	"database/sql"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/fabline-dev/shift-planner/backend/internal/config"
	"github.com/fabline-dev/shift-planner/backend/internal/repository"
	"github.com/fabline-dev/shift-planner/backend/internal/seed"
	"github.com/fabline-dev/shift-planner/backend/internal/utils"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	var op int
	var n int
	var start string
	var days int

	flag.IntVar(&op, "op", 0, "operation (1: seed factory catalog + workforce + demand, 2: insert random planner users, 3: insert demand slots)")
	flag.IntVar(&n, "n", 25, "number of records to insert")
	flag.StringVar(&start, "start", "", "first demand date (YYYY-MM-DD, defaults to tomorrow)")
	flag.IntVar(&days, "days", 14, "number of days of demand to insert")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	dbpool, err := sql.Open("pgx", cfg.Database.DSN)
	if err != nil {
		logger.Error("failed to create database connection pool", "error", err)
		return
	}
	defer dbpool.Close()

	dbpool.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	dbpool.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	dbpool.SetConnMaxIdleTime(time.Duration(cfg.Database.MaxIdleTime) * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Database.ConnectTimeout)*time.Second)
	defer cancel()

	// sql.Open only builds the pool object, it does not dial, so ping explicitly.
	if err := dbpool.PingContext(ctx); err != nil {
		logger.Error("failed to connect to the database", "error", err)
		return
	}

	repo := repository.NewRepository(cfg, dbpool)

	switch op {
	case 0:
		slog.Error("no operation given")
	case 1:
		if n <= 0 {
			slog.Error("employee count must be positive")
			return
		}
		seed.SeedFactory(context.Background(), repo, n, cfg.Email.UserDomain)
	case 2:
		if n <= 0 {
			slog.Error("user count must be positive")
			return
		}
		password := cfg.Seed.User.Password
		if password == "" {
			password = utils.GenerateRandomPassword(12)
			slog.Info("no seed password configured, generated one", slog.String("password", password))
		}
		cnt := 0
		for i := 0; i < n; i++ {
			user, err := utils.GenerateRandomUser(password, cfg.Email.UserDomain)
			if err != nil {
				slog.Error("failed to generate random user", slog.String("error", err.Error()))
				continue
			}
			if err := repo.CreateUser(context.Background(), user); err != nil {
				slog.Error("failed to insert user", slog.String("error", err.Error()))
				continue
			}
			cnt++
		}
		slog.Info("users inserted", slog.Int("count", cnt))
	case 3:
		from := time.Now().AddDate(0, 0, 1)
		if start != "" {
			parsed, err := time.Parse("2006-01-02", start)
			if err != nil {
				slog.Error("invalid start date, expected YYYY-MM-DD", slog.String("start", start))
				return
			}
			from = parsed
		}
		if days <= 0 {
			slog.Error("days must be positive")
			return
		}
		seed.SeedDemand(context.Background(), repo, from, days)
	default:
		slog.Error("unknown operation")
	}
}
