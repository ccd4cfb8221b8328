package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/merchshop/storefront-backend/pkg/logger"
	pkgredis "github.com/merchshop/storefront-backend/pkg/redis"
)

const buyNowMarker = "1"

// Persistence loads and saves cart state. Missing data loads as an empty cart.
type Persistence interface {
	Load(ctx context.Context, sessionID string) (State, error)
	Save(ctx context.Context, sessionID string, state State) error
}

// RedisPersistence keeps the items and the buy-now flag under two separate keys.
type RedisPersistence struct {
	kv   pkgredis.KV
	ttl  time.Duration
	logg *logger.Logger
}

// NewRedisPersistence builds the Redis adapter. A zero ttl keeps carts forever.
func NewRedisPersistence(kv pkgredis.KV, ttl time.Duration, logg *logger.Logger) (*RedisPersistence, error) {
	if kv == nil {
		return nil, fmt.Errorf("redis kv required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &RedisPersistence{kv: kv, ttl: ttl, logg: logg}, nil
}

// Load reads both keys. Unreadable or inconsistent data is repaired rather
// than surfaced: invalid lines are dropped, duplicate lines merged up to stock, and a
// buy-now flag without exactly one line is ignored.
func (p *RedisPersistence) Load(ctx context.Context, sessionID string) (State, error) {
	var state State

	raw, err := p.kv.Get(ctx, p.kv.CartItemsKey(sessionID))
	switch {
	case errors.Is(err, pkgredis.ErrNil):
	case err != nil:
		return State{}, fmt.Errorf("read cart items: %w", err)
	default:
		var items []Item
		if err := json.Unmarshal([]byte(raw), &items); err != nil {
			p.logg.Warn(p.logg.WithField(ctx, "error", err.Error()), "discarding unreadable cart items")
		} else {
			state.Items = p.sanitize(ctx, items)
		}
	}

	flag, err := p.kv.Get(ctx, p.kv.CartBuyNowKey(sessionID))
	switch {
	case errors.Is(err, pkgredis.ErrNil):
	case err != nil:
		return State{}, fmt.Errorf("read buy now flag: %w", err)
	default:
		state.BuyNowActive = flag == buyNowMarker && len(state.Items) == 1
		if flag == buyNowMarker && len(state.Items) != 1 {
			p.logg.Warn(p.logg.WithField(ctx, "items", len(state.Items)), "ignoring stale buy now flag")
		}
	}

	return state, nil
}

// Save replaces the lines and the flag in one MULTI/EXEC, so readers never
// see one key updated without the other.
func (p *RedisPersistence) Save(ctx context.Context, sessionID string, state State) error {
	itemsKey := p.kv.CartItemsKey(sessionID)
	flagKey := p.kv.CartBuyNowKey(sessionID)

	var payload []byte
	if len(state.Items) > 0 {
		encoded, err := json.Marshal(state.Items)
		if err != nil {
			return fmt.Errorf("encode cart items: %w", err)
		}
		payload = encoded
	}

	err := p.kv.TxPipelined(ctx, func(pipe pkgredis.Pipeliner) error {
		if payload == nil {
			pipe.Del(ctx, itemsKey)
		} else {
			pipe.Set(ctx, itemsKey, string(payload), p.ttl)
		}
		if state.BuyNowActive {
			pipe.Set(ctx, flagKey, buyNowMarker, p.ttl)
		} else {
			pipe.Del(ctx, flagKey)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("write cart: %w", err)
	}
	return nil
}

func (p *RedisPersistence) sanitize(ctx context.Context, items []Item) []Item {
	out := make([]Item, 0, len(items))
	repaired := 0
	for _, item := range items {
		if item.Product.validate() != nil || item.Quantity < 1 {
			repaired++
			continue
		}
		if item.Size == "" {
			item.Size = NoSize
		}
		if idx := indexOf(out, item.Key()); idx >= 0 {
			out[idx].Quantity += item.Quantity
			if stock := out[idx].Product.Stock; stock > 0 && out[idx].Quantity > stock {
				out[idx].Quantity = stock
			}
			repaired++
			continue
		}
		out = append(out, item)
	}
	if repaired > 0 {
		p.logg.Warn(p.logg.WithField(ctx, "repaired", repaired), "repaired persisted cart")
	}
	return out
}
