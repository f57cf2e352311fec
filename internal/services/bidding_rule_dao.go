package services

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"

	"auction-core/internal/domain"

	"github.com/go-redis/redis/v8"
)

const defaultRulesKey = "bid_increment_rules"

// IncrementRules gives the smallest raise allowed over the current bid.
type IncrementRules[B domain.Unsigned] interface {
	MinimumIncrement(current B) B
}

type IncrementTier[B domain.Unsigned] struct {
	// Exclusive upper bound of the current bid, 0 for the last tier.
	Below B `json:"below"`
	Step  B `json:"step"`
}

// IncrementTiers is a ladder of increments ordered by Below, with the
// open-ended tier last.
type IncrementTiers[B domain.Unsigned] []IncrementTier[B]

func NewIncrementTiers[B domain.Unsigned](tiers ...IncrementTier[B]) IncrementTiers[B] {
	out := append(IncrementTiers[B](nil), tiers...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Below == 0 || out[j].Below == 0 {
			return out[j].Below == 0 && out[i].Below != 0
		}
		return out[i].Below < out[j].Below
	})
	return out
}

func (t IncrementTiers[B]) MinimumIncrement(current B) B {
	for _, tier := range t {
		if tier.Below == 0 || current < tier.Below {
			return tier.Step
		}
	}
	return 0
}

type incrementRuleSet[B domain.Unsigned] struct {
	Tiers []IncrementTier[B] `json:"tiers"`
}

// BiddingRuleDao keeps the increment ladder in Redis so every instance
// applies the same rules. The defaults are written when the key is missing.
type BiddingRuleDao[B domain.Unsigned] struct {
	client   *redis.Client
	key      string
	defaults IncrementTiers[B]

	mu    sync.RWMutex
	rules IncrementTiers[B]
}

func NewBiddingRuleDao[B domain.Unsigned](client *redis.Client, defaults IncrementTiers[B]) *BiddingRuleDao[B] {
	return &BiddingRuleDao[B]{
		client:   client,
		key:      defaultRulesKey,
		defaults: defaults,
	}
}

func (v *BiddingRuleDao[B]) LoadRules(ctx context.Context) error {
	data, err := v.client.Get(ctx, v.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			v.setRules(v.defaults)
			return v.saveRules(ctx)
		}
		return err
	}

	var set incrementRuleSet[B]
	if err := json.Unmarshal([]byte(data), &set); err != nil {
		return err
	}

	v.setRules(NewIncrementTiers(set.Tiers...))
	return nil
}

// SaveRules replaces the ladder for every instance.
func (v *BiddingRuleDao[B]) SaveRules(ctx context.Context, tiers IncrementTiers[B]) error {
	v.setRules(NewIncrementTiers(tiers...))
	return v.saveRules(ctx)
}

func (v *BiddingRuleDao[B]) setRules(tiers IncrementTiers[B]) {
	v.mu.Lock()
	v.rules = tiers
	v.mu.Unlock()
}

func (v *BiddingRuleDao[B]) saveRules(ctx context.Context) error {
	v.mu.RLock()
	data, err := json.Marshal(incrementRuleSet[B]{Tiers: v.rules})
	v.mu.RUnlock()
	if err != nil {
		return err
	}

	return v.client.Set(ctx, v.key, string(data), 0).Err()
}

func (v *BiddingRuleDao[B]) MinimumIncrement(current B) B {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if v.rules == nil {
		return v.defaults.MinimumIncrement(current)
	}
	return v.rules.MinimumIncrement(current)
}
