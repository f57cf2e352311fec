package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"auction-core/internal/domain"
	"auction-core/pkg/logger"

	"github.com/go-redis/redis/v8"
)

// Placeholder for an unset optional field in a command.
const unset = "-"

const defaultQueuePoll = time.Second

// CommandQueue reads colon separated commands from a Redis list:
//
//	create:<start>:<end>:<accepts>:<dispenses>
//	bid:<auction>:<account>:<currency>:<amount>
//	close:<auction>
//	deposit:<account>:<currency>:<amount>
//
// Optional create fields take "-" when unset. Producers RPUSH and every
// instance pops with BLPOP, so each command runs on exactly one instance.
type CommandQueue struct {
	client *redis.Client
	key    string
	poll   time.Duration
	log    logger.Logger
}

func NewCommandQueue(client *redis.Client, key string, log logger.Logger) *CommandQueue {
	return &CommandQueue{
		client: client,
		key:    key,
		poll:   defaultQueuePoll,
		log:    log,
	}
}

// Push appends a raw command to the queue.
func (q *CommandQueue) Push(ctx context.Context, payload string) error {
	return q.client.RPush(ctx, q.key, payload).Err()
}

// Consume blocks until ctx is done. Malformed commands and handler failures
// are logged and skipped.
func (q *CommandQueue) Consume(ctx context.Context, handler domain.CommandHandler) error {
	q.log.Info("Consuming auction commands", "queue", q.key)

	for {
		if err := ctx.Err(); err != nil {
			q.log.Info("Command consumer stopped")
			return err
		}

		res, err := q.client.BLPop(ctx, q.poll, q.key).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			q.log.Error("Failed to read command", "queue", q.key, "error", err)
			select {
			case <-ctx.Done():
			case <-time.After(q.poll):
			}
			continue
		}

		// res is [key, value]
		payload := res[1]
		cmd, err := parseCommand(payload)
		if err != nil {
			q.log.Error("Failed to parse command", "payload", payload, "error", err)
			continue
		}

		if err := handler(ctx, cmd); err != nil {
			q.log.Error("Failed to handle command", "kind", cmd.Kind, "payload", payload, "error", err)
		}
	}
}

func parseCommand(payload string) (*domain.Command, error) {
	parts := strings.Split(strings.TrimSpace(payload), ":")
	cmd := &domain.Command{Kind: domain.CommandKind(parts[0])}
	args := parts[1:]

	var err error
	switch cmd.Kind {
	case domain.CommandCreate:
		if len(args) != 4 {
			return nil, fmt.Errorf("invalid create command: %s", payload)
		}
		if cmd.Start, err = strconv.ParseUint(args[0], 10, 64); err != nil {
			return nil, fmt.Errorf("invalid start: %w", err)
		}
		if args[1] != unset {
			end, err := strconv.ParseUint(args[1], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid end: %w", err)
			}
			cmd.End = &end
		}
		cmd.Accepts = optional(args[2])
		cmd.Dispenses = optional(args[3])

	case domain.CommandBid:
		if len(args) != 4 {
			return nil, fmt.Errorf("invalid bid command: %s", payload)
		}
		if cmd.AuctionID, err = strconv.ParseUint(args[0], 10, 64); err != nil {
			return nil, fmt.Errorf("invalid auction id: %w", err)
		}
		cmd.Account, cmd.Currency = args[1], args[2]
		if cmd.Amount, err = strconv.ParseUint(args[3], 10, 64); err != nil {
			return nil, fmt.Errorf("invalid amount: %w", err)
		}

	case domain.CommandClose:
		if len(args) != 1 {
			return nil, fmt.Errorf("invalid close command: %s", payload)
		}
		if cmd.AuctionID, err = strconv.ParseUint(args[0], 10, 64); err != nil {
			return nil, fmt.Errorf("invalid auction id: %w", err)
		}

	case domain.CommandDeposit:
		if len(args) != 3 {
			return nil, fmt.Errorf("invalid deposit command: %s", payload)
		}
		cmd.Account, cmd.Currency = args[0], args[1]
		if cmd.Amount, err = strconv.ParseUint(args[2], 10, 64); err != nil {
			return nil, fmt.Errorf("invalid amount: %w", err)
		}

	default:
		return nil, fmt.Errorf("unknown command %q", parts[0])
	}

	if cmd.Kind == domain.CommandBid || cmd.Kind == domain.CommandDeposit {
		if cmd.Account == "" || cmd.Currency == "" {
			return nil, fmt.Errorf("missing account or currency: %s", payload)
		}
	}
	return cmd, nil
}

func optional(s string) *string {
	if s == unset || s == "" {
		return nil
	}
	return &s
}
