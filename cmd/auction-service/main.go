package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"auction-core/internal/clock"
	"auction-core/internal/config"
	"auction-core/internal/domain"
	"auction-core/internal/infrastructure/leader"
	"auction-core/internal/infrastructure/redis"
	"auction-core/internal/services"
	"auction-core/pkg/logger"

	redisClient "github.com/go-redis/redis/v8"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New().Fatal("Failed to load config", "error", err)
	}

	log, err := logger.NewWithConfig(cfg.Log.Level)
	if err != nil {
		logger.New().Fatal("Invalid log level", "level", cfg.Log.Level, "error", err)
	}
	log = log.With("instance_id", cfg.Instance.ID)
	log.Info("Starting auction service", "config", cfg.GetConfigString())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("Auction service failed", "error", err)
		os.Exit(1)
	}
	log.Info("Auction service stopped")
}

func run(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	rdb := redisClient.NewClient(&redisClient.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return err
	}
	log.Info("Connected to Redis", "address", cfg.Redis.Address)

	st, err := openStores(pingCtx, cfg, rdb, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Error("Failed to close storage", "error", err)
		}
	}()

	tiers := make(services.IncrementTiers[domain.Balance], 0, len(cfg.Auction.IncrementTiers))
	for _, t := range cfg.Auction.IncrementTiers {
		tiers = append(tiers, services.IncrementTier[domain.Balance]{Below: domain.Balance(t.Below), Step: domain.Balance(t.Step)})
	}
	rules := services.NewBiddingRuleDao[domain.Balance](rdb, services.NewIncrementTiers(tiers...))
	if err := rules.LoadRules(pingCtx); err != nil {
		return err
	}

	handler, err := services.NewPolicyHandler[domain.AuctionID, domain.AccountID, domain.CurrencyID, domain.Balance, domain.BlockNumber](
		st.registry, rules, st.ledger,
		services.Policy[domain.AccountID, domain.Balance, domain.BlockNumber]{
			ExtensionWindow: domain.BlockNumber(cfg.Auction.ExtensionWindow),
			ExtensionPeriod: domain.BlockNumber(cfg.Auction.ExtensionPeriod),
			MinimumBid:      domain.Balance(cfg.Auction.MinimumBid),
			AllowEqualBids:  cfg.Auction.AllowEqualBids,
			Beneficiary:     domain.AccountID(cfg.Auction.Beneficiary),
		},
		log.With("component", "handler"),
	)
	if err != nil {
		return err
	}

	blocks := clock.NewBlocks[domain.BlockNumber](cfg.Clock.Genesis, cfg.Clock.BlockInterval)

	manager := services.NewAuctionManager[domain.AuctionID, domain.AccountID, domain.CurrencyID, domain.Balance, domain.BlockNumber](
		st.registry,
		handler,
		st.ledger,
		st.locker,
		st.stateCache,
		redis.NewEventPublisher(rdb, cfg.Redis.EventChannel),
		st.bids,
		blocks,
		log.With("component", "manager"),
	)

	election := leader.NewRedisLeaderElection(rdb, cfg.Storage.KeyPrefix+":leader", cfg.Leader.TTL, log.With("component", "leader"))
	scheduler := services.NewCronAuctionScheduler[domain.AuctionID, domain.BlockNumber](
		cfg.Scheduler.Spec, st.jobs, manager, blocks, election, cfg.Instance.ID, log.With("component", "scheduler"))
	manager.SetScheduler(scheduler)

	if err := scheduler.Start(ctx); err != nil {
		return err
	}
	go election.Campaign(ctx, cfg.Instance.ID, cfg.Leader.TTL/3)

	executor := services.NewCommandExecutor(manager, st.ledger, log.With("component", "commands"))
	commands := redis.NewCommandQueue(rdb, cfg.Redis.CommandQueue, log.With("component", "commands"))

	err = commands.Consume(ctx, executor.Handle)
	log.Info("Shutting down auction service")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	if err := scheduler.Stop(); err != nil {
		log.Error("Failed to stop scheduler", "error", err)
	}
	if err := election.ReleaseLeadership(shutdownCtx, cfg.Instance.ID); err != nil {
		log.Error("Failed to release leadership", "error", err)
	}

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
