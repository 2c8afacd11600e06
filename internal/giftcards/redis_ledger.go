package giftcards

import (
	"context"
	"errors"
	"strconv"

	goredis "github.com/redis/go-redis/v9"

	pkgerrors "github.com/fairwaylabs/fairway-pos-backend/pkg/errors"
	"github.com/fairwaylabs/fairway-pos-backend/pkg/money"
	"github.com/fairwaylabs/fairway-pos-backend/pkg/redis"
)

// RedisLedger keeps gift card balances as integer cents in Redis. Redemption
// runs under WATCH so a concurrent draw on the same code fails rather than
// double-spending; conflicts are surfaced, not retried.
type RedisLedger struct {
	client *redis.Client
}

// NewRedisLedger wires the gift card ledger onto the shared Redis client.
func NewRedisLedger(client *redis.Client) (*RedisLedger, error) {
	if client == nil {
		return nil, errors.New("redis client required")
	}
	return &RedisLedger{client: client}, nil
}

func (l *RedisLedger) Redeem(ctx context.Context, code string, amount money.Cents) (money.Cents, error) {
	if amount <= 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "redeem amount must be positive")
	}
	key := redis.GiftCardKey(code)

	var remaining money.Cents
	err := l.client.Raw().Watch(ctx, func(tx *goredis.Tx) error {
		balance, err := readBalance(ctx, tx.Get(ctx, key))
		if err != nil {
			return err
		}
		if balance < amount {
			return pkgerrors.New(pkgerrors.CodePayment, "insufficient gift card balance").
				WithDetails(map[string]any{"balance": balance.Float()})
		}
		remaining = balance - amount
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, key, int64(remaining), 0)
			return nil
		})
		return err
	}, key)

	if err != nil {
		if errors.Is(err, goredis.TxFailedErr) {
			return 0, pkgerrors.Wrap(pkgerrors.CodePayment, err, "gift card modified concurrently")
		}
		if typed := pkgerrors.As(err); typed != nil {
			return 0, typed
		}
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "gift card redeem failed")
	}
	return remaining, nil
}

func (l *RedisLedger) Credit(ctx context.Context, code string, amount money.Cents) error {
	if amount <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "credit amount must be positive")
	}
	if err := l.client.Raw().IncrBy(ctx, redis.GiftCardKey(code), int64(amount)).Err(); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "gift card credit failed")
	}
	return nil
}

func (l *RedisLedger) Balance(ctx context.Context, code string) (money.Cents, error) {
	return readBalance(ctx, l.client.Raw().Get(ctx, redis.GiftCardKey(code)))
}

func readBalance(ctx context.Context, cmd *goredis.StringCmd) (money.Cents, error) {
	raw, err := cmd.Result()
	if errors.Is(err, goredis.Nil) {
		return 0, pkgerrors.New(pkgerrors.CodePayment, "unknown gift card")
	}
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "gift card lookup failed")
	}
	cents, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "corrupt gift card balance")
	}
	return money.Cents(cents), nil
}
