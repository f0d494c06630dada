package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lukman83/pricewatch/internal/models"
)

const (
	redisCurrentKey    = "pricewatch:current"
	redisHistoryPrefix = "pricewatch:history:"
	redisHistoryIndex  = "pricewatch:history:keys"
	redisLastCheckKey  = "pricewatch:last_check"
	redisPairSeparator = "|"
)

// Redis keeps current prices in one hash and each pair's history in a
// capped list.
type Redis struct {
	Client    *redis.Client
	retention int
}

// NewRedis connects to a redis:// URL.
func NewRedis(ctx context.Context, url string, retention int) (*Redis, error) {
	if url == "" {
		return nil, errors.New("redis store: REDIS_URL is not set")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis store: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis store: ping: %w", err)
	}
	return NewRedisFromClient(client, retention), nil
}

func NewRedisFromClient(client *redis.Client, retention int) *Redis {
	return &Redis{Client: client, retention: retentionOrDefault(retention)}
}

func historyKey(productID, siteID string) string {
	return redisHistoryPrefix + productID + ":" + siteID
}

func (r *Redis) UpsertCurrentPrice(ctx context.Context, cp models.CurrentPrice) error {
	b, err := json.Marshal(cp)
	if err != nil {
		return err
	}
	field := cp.ProductID + redisPairSeparator + cp.SiteID
	if err := r.Client.HSet(ctx, redisCurrentKey, field, b).Err(); err != nil {
		return fmt.Errorf("upsert current price %s: %w", models.PairKey(cp.ProductID, cp.SiteID), err)
	}
	return nil
}

func (r *Redis) LastHistoryEntry(ctx context.Context, productID, siteID string) (*models.HistoryEntry, error) {
	val, err := r.Client.LIndex(ctx, historyKey(productID, siteID), -1).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("last history entry %s: %w", models.PairKey(productID, siteID), err)
	}
	var e models.HistoryEntry
	if err := json.Unmarshal([]byte(val), &e); err != nil {
		return nil, fmt.Errorf("decode history entry: %w", err)
	}
	return &e, nil
}

func (r *Redis) AppendHistoryEntry(ctx context.Context, e models.HistoryEntry) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	key := historyKey(e.ProductID, e.SiteID)
	_, err = r.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, b)
		pipe.LTrim(ctx, key, int64(-r.retention), -1)
		pipe.SAdd(ctx, redisHistoryIndex, key)
		return nil
	})
	if err != nil {
		return fmt.Errorf("append history %s: %w", models.PairKey(e.ProductID, e.SiteID), err)
	}
	return nil
}

func (r *Redis) SetLastCheck(ctx context.Context, t time.Time) error {
	if err := r.Client.Set(ctx, redisLastCheckKey, t.UTC().Format(time.RFC3339Nano), 0).Err(); err != nil {
		return fmt.Errorf("set last check: %w", err)
	}
	return nil
}

func (r *Redis) LastCheck(ctx context.Context) (time.Time, bool, error) {
	val, err := r.Client.Get(ctx, redisLastCheckKey).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("last check: %w", err)
	}
	t, err := time.Parse(time.RFC3339Nano, val)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("last check: %w", err)
	}
	return t, true, nil
}

func (r *Redis) ListCurrentPrices(ctx context.Context) ([]models.CurrentPrice, error) {
	fields, err := r.Client.HGetAll(ctx, redisCurrentKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list current prices: %w", err)
	}
	out := make([]models.CurrentPrice, 0, len(fields))
	for field, val := range fields {
		var cp models.CurrentPrice
		if err := json.Unmarshal([]byte(val), &cp); err != nil {
			return nil, fmt.Errorf("decode current price %s: %w", field, err)
		}
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ProductID != out[j].ProductID {
			return out[i].ProductID < out[j].ProductID
		}
		return out[i].SiteID < out[j].SiteID
	})
	return out, nil
}

func (r *Redis) ListHistory(ctx context.Context, since time.Time) ([]models.HistoryEntry, error) {
	keys, err := r.Client.SMembers(ctx, redisHistoryIndex).Result()
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	if len(keys) == 0 {
		return nil, nil
	}

	cmds := make([]*redis.StringSliceCmd, len(keys))
	_, err = r.Client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, key := range keys {
			cmds[i] = pipe.LRange(ctx, key, 0, -1)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}

	var out []models.HistoryEntry
	for _, cmd := range cmds {
		for _, val := range cmd.Val() {
			var e models.HistoryEntry
			if err := json.Unmarshal([]byte(val), &e); err != nil {
				return nil, fmt.Errorf("decode history entry: %w", err)
			}
			if !e.CheckedAt.Before(since) {
				out = append(out, e)
			}
		}
	}
	sortHistory(out)
	return out, nil
}

func (r *Redis) Close() error { return r.Client.Close() }
