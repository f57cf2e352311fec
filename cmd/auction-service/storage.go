package main

import (
	"context"
	"database/sql"
	"fmt"

	"auction-core/internal/config"
	"auction-core/internal/domain"
	"auction-core/internal/infrastructure/memory"
	"auction-core/internal/infrastructure/mysql"
	"auction-core/internal/infrastructure/redis"
	"auction-core/internal/services"
	"auction-core/pkg/logger"
	"auction-core/pkg/utils"

	redisClient "github.com/go-redis/redis/v8"
)

type auctionRegistry = domain.Registry[domain.AuctionID, domain.AccountID, domain.CurrencyID, domain.Balance, domain.BlockNumber]

type ledger interface {
	domain.FundCustody[domain.AccountID, domain.CurrencyID, domain.Balance]
	services.Depositor[domain.AccountID, domain.CurrencyID, domain.Balance]
}

// stores are the persistence collaborators selected by storage.backend.
// Every backend but memory keeps all shared state in Redis or MySQL, so
// several instances can serve the same auctions.
type stores struct {
	registry   auctionRegistry
	ledger     ledger
	jobs       domain.SchedulerRepository
	bids       domain.BidRepository
	locker     domain.KeyedLocker
	stateCache domain.AuctionStateCache
	db         *sql.DB
}

func (s *stores) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func openStores(ctx context.Context, cfg *config.Config, rdb *redisClient.Client, log logger.Logger) (*stores, error) {
	switch cfg.Storage.Backend {
	case "memory":
		return &stores{
			registry:   memory.NewRegistry[domain.AuctionID, domain.AccountID, domain.CurrencyID, domain.Balance, domain.BlockNumber](),
			jobs:       memory.NewSchedulerRepository(),
			bids:       memory.NewEventLog(),
			locker:     memory.NewLocker(),
			stateCache: memory.NewStateCache(),
			ledger:     memory.NewLedger[domain.AccountID, domain.CurrencyID, domain.Balance](),
		}, nil

	case "redis":
		return &stores{
			registry:   redis.NewRegistry[domain.AuctionID, domain.AccountID, domain.CurrencyID, domain.Balance, domain.BlockNumber](rdb, cfg.Storage.KeyPrefix),
			jobs:       redis.NewSchedulerRepository(rdb, cfg.Storage.KeyPrefix),
			bids:       redis.NewBidRepository(rdb, cfg.Storage.KeyPrefix),
			locker:     redis.NewLocker(rdb, cfg.Storage.KeyPrefix, cfg.Storage.LockTTL, log),
			stateCache: redis.NewStateCache(rdb, cfg.Storage.KeyPrefix),
			ledger:     redis.NewLedger[domain.AccountID, domain.CurrencyID, domain.Balance](rdb, cfg.Storage.KeyPrefix),
		}, nil

	case "mysql":
		db, err := utils.InitializeMysql(ctx, cfg.MySQL)
		if err != nil {
			return nil, err
		}
		if err := mysql.EnsureSchema(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
		log.Info("Connected to MySQL")
		return &stores{
			registry:   mysql.NewRegistry[domain.AuctionID, domain.AccountID, domain.CurrencyID, domain.Balance, domain.BlockNumber](db),
			jobs:       mysql.NewSchedulerRepository(db),
			bids:       mysql.NewBidRepository(db),
			locker:     redis.NewLocker(rdb, cfg.Storage.KeyPrefix, cfg.Storage.LockTTL, log),
			stateCache: redis.NewStateCache(rdb, cfg.Storage.KeyPrefix),
			ledger:     redis.NewLedger[domain.AccountID, domain.CurrencyID, domain.Balance](rdb, cfg.Storage.KeyPrefix),
			db:         db,
		}, nil

	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}
