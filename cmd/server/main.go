// Package main provides the API server entry point for the yield streamer service.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/cloudwalk/yield-streamer/internal/api"
	"github.com/cloudwalk/yield-streamer/internal/clock"
	"github.com/cloudwalk/yield-streamer/internal/config"
	"github.com/cloudwalk/yield-streamer/internal/logging"
	"github.com/cloudwalk/yield-streamer/internal/models"
	"github.com/cloudwalk/yield-streamer/internal/schedule"
	"github.com/cloudwalk/yield-streamer/internal/service"
	"github.com/cloudwalk/yield-streamer/internal/storage"
	"github.com/cloudwalk/yield-streamer/internal/streamer"
	"github.com/cloudwalk/yield-streamer/internal/token"
	"github.com/cloudwalk/yield-streamer/internal/tracker"
	"github.com/cloudwalk/yield-streamer/internal/types"
	"github.com/cloudwalk/yield-streamer/internal/worker"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize structured logging
	logLevel := logging.ParseLogLevel(cfg.Logging.Level)
	logFormat := logging.ParseLogFormat(cfg.Logging.Format)
	logging.InitGlobalLogger(logLevel, logFormat)

	logger := logging.GetGlobalLogger()
	logger.WithFields(map[string]interface{}{
		"level":  cfg.Logging.Level,
		"format": cfg.Logging.Format,
	}).Info("Structured logging initialized")

	ctx := context.Background()

	// Connect to databases. The engine holds its truth in memory, so each
	// store degrades independently: no Postgres means no durable claim state,
	// no ClickHouse means no archive, no Redis means no preview cache.
	postgres, err := storage.NewPostgresDB(&cfg.Database.Postgres)
	if err != nil {
		logger.WithError(err).Warn("Postgres unavailable, running without durable claim state")
		postgres = nil
	} else {
		defer postgres.Close()

		databaseURL := fmt.Sprintf(
			"postgres://%s:%s@%s:%s/%s?sslmode=disable",
			cfg.Database.Postgres.User,
			cfg.Database.Postgres.Password,
			cfg.Database.Postgres.Host,
			cfg.Database.Postgres.Port,
			cfg.Database.Postgres.Database,
		)
		if err := storage.RunMigrations(databaseURL, "migrations/postgres"); err != nil {
			logger.WithError(err).Fatal("Failed to run Postgres migrations")
		}
	}

	clickhouseDB, err := storage.NewClickHouseDB(&cfg.Database.ClickHouse)
	if err != nil {
		logger.WithError(err).Warn("ClickHouse unavailable, running without the archive")
		clickhouseDB = nil
	} else {
		defer clickhouseDB.Close()

		if err := storage.RunClickHouseMigrations(clickhouseDB, "migrations/clickhouse"); err != nil {
			logger.WithError(err).Fatal("Failed to run ClickHouse migrations")
		}
	}

	redisCache, err := storage.NewRedisCache(&cfg.Database.Redis)
	if err != nil {
		logger.WithError(err).Warn("Redis unavailable, running without the preview cache")
		redisCache = nil
	} else {
		defer redisCache.Close()
	}

	// Token source
	var (
		payer       streamer.Payer
		live        tracker.LiveBalanceSource
		tokenSource common.Address
		simToken    *token.SimToken
	)
	switch cfg.Token.Mode {
	case "erc20":
		erc20, err := token.NewERC20Token(token.ERC20Config{
			RPCURL:      cfg.Token.RPCURL,
			Contract:    common.HexToAddress(cfg.Token.Address),
			ChainID:     cfg.Token.ChainID,
			TreasuryKey: cfg.Token.TreasuryKey,
		})
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to the token contract")
		}
		defer erc20.Close()

		payer = erc20
		live = erc20
		tokenSource = common.HexToAddress(cfg.Token.Address)
		logger.WithFields(map[string]interface{}{
			"contract": cfg.Token.Address,
			"chainId":  cfg.Token.ChainID,
		}).Info("ERC-20 token source initialized")

	case "sim":
		address := common.HexToAddress("0x0000000000000000000000000000000000000001")
		reserve := common.HexToAddress(cfg.Token.ReserveAddress)
		simToken = token.NewSimToken(address, reserve)

		payer = simToken
		live = simToken
		tokenSource = address
		logger.Info("Simulated token source initialized")

	default:
		logger.WithField("mode", cfg.Token.Mode).Fatal("Unknown token mode")
	}

	// Accounting clock
	dayCounter := clock.NewCounter(clock.System{}, cfg.Streamer.EpochShift, cfg.Streamer.DayLength)
	currentDay, err := dayCounter.CurrentDay()
	if err != nil {
		logger.WithError(err).Fatal("Failed to read the accounting clock")
	}

	// Repositories
	var (
		claimRepo  *storage.ClaimStateRepository
		schedRepo  *storage.ScheduleRepository
		recordRepo *storage.BalanceRecordRepository
		eventRepo  *storage.ClaimEventRepository
	)
	if postgres != nil {
		claimRepo = storage.NewClaimStateRepository(postgres)
		schedRepo = storage.NewScheduleRepository(postgres)
	}
	if clickhouseDB != nil {
		recordRepo = storage.NewBalanceRecordRepository(clickhouseDB)
		eventRepo = storage.NewClaimEventRepository(clickhouseDB)
	}

	// Schedule, warmed from Postgres
	scheduleStore := schedule.NewStore()
	if schedRepo != nil {
		if err := warmSchedule(ctx, scheduleStore, schedRepo); err != nil {
			logger.WithError(err).Fatal("Failed to restore the yield schedule")
		}
	}

	// Tracker initialization day and fee receiver come from persisted meta on
	// restart; a first run pins them to today and the configured receiver.
	initDay := currentDay
	feeReceiver := common.HexToAddress(cfg.Streamer.FeeReceiver)
	if schedRepo != nil {
		meta, err := schedRepo.GetTrackerMeta(ctx)
		if err != nil {
			logger.WithError(err).Fatal("Failed to read tracker meta")
		}
		if meta != nil {
			initDay = types.Day(meta.InitDay)
			if meta.FeeReceiver != "" {
				feeReceiver = common.HexToAddress(meta.FeeReceiver)
			}
		} else {
			err := schedRepo.UpsertTrackerMeta(ctx, &models.TrackerMeta{
				InitDay:     uint64(initDay),
				FeeReceiver: feeReceiver.Hex(),
			})
			if err != nil {
				logger.WithError(err).Fatal("Failed to persist tracker meta")
			}
		}
	}
	logger.WithFields(map[string]interface{}{
		"initDay":    uint64(initDay),
		"currentDay": uint64(currentDay),
	}).Info("Accounting clock initialized")

	// Archiver
	var archiver *worker.Archiver
	if recordRepo != nil && eventRepo != nil {
		archiver, err = worker.NewArchiver(&worker.ArchiverConfig{
			Records:       recordRepo,
			Events:        eventRepo,
			FlushInterval: cfg.Archiver.FlushInterval,
			BufferSize:    cfg.Archiver.BufferSize,
		})
		if err != nil {
			logger.WithError(err).Fatal("Failed to create the archiver")
		}
		if err := archiver.Start(); err != nil {
			logger.WithError(err).Fatal("Failed to start the archiver")
		}
	}

	// Balance tracker, warmed from the ClickHouse archive
	var sink tracker.RecordSink
	if archiver != nil {
		sink = archiver
	}
	balanceTracker := tracker.New(tracker.Config{
		InitDay:     initDay,
		TokenSource: tokenSource,
		Live:        live,
		Clock:       dayCounter,
		Sink:        sink,
	})
	if simToken != nil {
		simToken.SetHook(balanceTracker)
	}
	if recordRepo != nil {
		if err := warmTracker(ctx, balanceTracker, recordRepo); err != nil {
			logger.WithError(err).Fatal("Failed to restore balance history")
		}
	}

	// Yield engine, warmed from persisted claim states
	var journal streamer.ClaimJournal
	if archiver != nil {
		journal = archiver
	}
	engine := streamer.New(streamer.Config{
		Balances:    balanceTracker,
		Schedule:    scheduleStore,
		Clock:       dayCounter,
		RateScale:   cfg.Streamer.RateScale,
		FeeRate:     cfg.Streamer.FeeRate,
		FeeReceiver: feeReceiver,
		Payer:       payer,
		Journal:     journal,
	})
	if claimRepo != nil {
		if err := warmClaimStates(ctx, engine, claimRepo); err != nil {
			logger.WithError(err).Fatal("Failed to restore claim states")
		}
	}

	// Application service
	var (
		cache     service.PreviewCache
		claims    service.ClaimStatePersistence
		schedules service.SchedulePersistence
	)
	if redisCache != nil {
		cache = storage.NewCacheService(redisCache, cfg.Cache.TTL)
	}
	if claimRepo != nil {
		claims = claimRepo
	}
	if schedRepo != nil {
		schedules = schedRepo
	}
	yieldService := service.NewYieldService(engine, balanceTracker, scheduleStore, cache, claims, schedules)

	// HTTP server
	serverConfig := &api.ServerConfig{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    15 * time.Second,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		AdminKey:        cfg.Admin.Key,
		FreeTierRPS:     cfg.RateLimit.FreeTier,
		BasicTierRPS:    cfg.RateLimit.BasicTier,
		PremiumTierRPS:  cfg.RateLimit.PremiumTier,
	}
	server := api.NewServer(serverConfig, yieldService)

	go func() {
		if err := server.Start(); err != nil {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	logger.WithFields(map[string]interface{}{
		"host": cfg.Server.Host,
		"port": cfg.Server.Port,
	}).Info("Server started successfully")

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), serverConfig.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}
	if archiver != nil {
		if err := archiver.Stop(shutdownCtx); err != nil {
			logger.WithError(err).Error("Archiver did not stop cleanly")
		}
	}

	logger.Info("Server exited")
}

// warmSchedule replays the persisted schedule into the in-memory store.
func warmSchedule(ctx context.Context, store *schedule.Store, repo *storage.ScheduleRepository) error {
	rates, err := repo.ListYieldRates(ctx)
	if err != nil {
		return err
	}
	for _, stored := range rates {
		record, err := stored.ToYieldRateRecord()
		if err != nil {
			return err
		}
		if err := store.ConfigureYieldRate(record.EffectiveDay, record.Rate); err != nil {
			return err
		}
	}

	lookBacks, err := repo.ListLookBacks(ctx)
	if err != nil {
		return err
	}
	for _, stored := range lookBacks {
		record := stored.ToLookBackRecord()
		if err := store.ConfigureLookBackPeriod(record.EffectiveDay, record.Length); err != nil {
			return err
		}
	}
	return nil
}

// warmTracker replays archived balance records into the tracker.
func warmTracker(ctx context.Context, t *tracker.BalanceTracker, repo *storage.BalanceRecordRepository) error {
	accounts, err := repo.ListAccounts(ctx)
	if err != nil {
		return err
	}
	for _, account := range accounts {
		rows, err := repo.ListByAccount(ctx, account)
		if err != nil {
			return err
		}
		records := make([]types.BalanceRecord, 0, len(rows))
		for _, row := range rows {
			record, err := row.ToBalanceRecord()
			if err != nil {
				return err
			}
			records = append(records, record)
		}
		if err := t.Restore(common.HexToAddress(account), records); err != nil {
			return err
		}
	}
	return nil
}

// warmClaimStates replays persisted claim states into the engine.
func warmClaimStates(ctx context.Context, engine *streamer.Engine, repo *storage.ClaimStateRepository) error {
	states, err := repo.List(ctx)
	if err != nil {
		return err
	}
	for _, stored := range states {
		state, err := stored.ToClaimState()
		if err != nil {
			return err
		}
		if err := engine.RestoreClaimState(common.HexToAddress(stored.Account), state); err != nil {
			return err
		}
	}
	return nil
}
