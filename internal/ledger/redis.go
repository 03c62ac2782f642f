package ledger

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

const REDIS_KEY_USER_BALANCE = "casino:balance:"

// Both scripts open the account with the opening balance on first touch so a
// new user never reads as zero.
var debitScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	redis.call('SET', KEYS[1], ARGV[2])
end
local balance = tonumber(redis.call('GET', KEYS[1]))
if balance < tonumber(ARGV[1]) then
	return {0, tostring(balance)}
end
return {1, redis.call('INCRBYFLOAT', KEYS[1], '-' .. ARGV[1])}
`)

var creditScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	redis.call('SET', KEYS[1], ARGV[2])
end
return redis.call('INCRBYFLOAT', KEYS[1], ARGV[1])
`)

// Redis keeps balances as Redis floats. Debits run as a Lua script so the
// balance check and the decrement cannot interleave with another request.
type Redis struct {
	client  *redis.Client
	opening float64
}

func NewRedis(client *redis.Client, openingBalance float64) *Redis {
	return &Redis{client: client, opening: openingBalance}
}

func balanceKey(userID string) string {
	return REDIS_KEY_USER_BALANCE + userID
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(RoundCents(v), 'f', 2, 64)
}

func parseAmount(v interface{}) (float64, error) {
	s, ok := v.(string)
	if !ok {
		return 0, fmt.Errorf("unexpected redis reply %T", v)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return RoundCents(f), nil
}

func (r *Redis) Balance(ctx context.Context, userID string) (float64, error) {
	if userID == "" {
		return 0, ErrUnknownUser
	}
	key := balanceKey(userID)
	balance, err := r.client.Get(ctx, key).Float64()
	if errors.Is(err, redis.Nil) {
		if err := r.client.SetNX(ctx, key, formatAmount(r.opening), 0).Err(); err != nil {
			return 0, fmt.Errorf("open account: %w", err)
		}
		return r.client.Get(ctx, key).Float64()
	}
	if err != nil {
		return 0, fmt.Errorf("get balance: %w", err)
	}
	return RoundCents(balance), nil
}

func (r *Redis) Debit(ctx context.Context, userID string, amount float64) (float64, error) {
	if err := checkArgs(userID, amount); err != nil {
		return 0, err
	}
	res, err := debitScript.Run(ctx, r.client, []string{balanceKey(userID)},
		formatAmount(amount), formatAmount(r.opening)).Slice()
	if err != nil {
		return 0, fmt.Errorf("debit: %w", err)
	}
	if len(res) != 2 {
		return 0, fmt.Errorf("debit: unexpected reply length %d", len(res))
	}
	balance, err := parseAmount(res[1])
	if err != nil {
		return 0, fmt.Errorf("debit: %w", err)
	}
	if accepted, _ := res[0].(int64); accepted == 0 {
		return balance, ErrInsufficientFunds
	}
	return balance, nil
}

func (r *Redis) Credit(ctx context.Context, userID string, amount float64) (float64, error) {
	if err := checkArgs(userID, amount); err != nil {
		return 0, err
	}
	res, err := creditScript.Run(ctx, r.client, []string{balanceKey(userID)},
		formatAmount(amount), formatAmount(r.opening)).Result()
	if err != nil {
		return 0, fmt.Errorf("credit: %w", err)
	}
	balance, err := parseAmount(res)
	if err != nil {
		return 0, fmt.Errorf("credit: %w", err)
	}
	return balance, nil
}

func (r *Redis) SetBalance(ctx context.Context, userID string, balance float64) error {
	if userID == "" {
		return ErrUnknownUser
	}
	if balance < 0 {
		return ErrInvalidAmount
	}
	if err := r.client.Set(ctx, balanceKey(userID), formatAmount(balance), 0).Err(); err != nil {
		return fmt.Errorf("set balance: %w", err)
	}
	return nil
}
