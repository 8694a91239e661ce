package config

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"os"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

var (
	rdb    *redis.Client
	locker *redislock.Client
)

func GetRedisLock() *redislock.Client {
	return locker
}

// ConnectRedisWithRetry connects and sets the global Redis client + lock client.
func ConnectRedisWithRetry() {
	redisAddr := redisAddress()

	var attempt int
	for {
		attempt++
		client := redis.NewClient(&redis.Options{
			Addr:     redisAddr,
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       0,
			PoolSize: 100,
		})
		if err := client.Ping(context.Background()).Err(); err == nil {
			rdb = client
			locker = redislock.New(rdb)
			log.Printf("connected to redis (attempt=%d addr=%s)", attempt, redisAddr)
			return
		} else {
			_ = client.Close()
			sleep := backoff(attempt)
			log.Printf("failed to connect redis (attempt=%d addr=%s): %v; retrying in %s", attempt, redisAddr, err, sleep)
			time.Sleep(sleep)
		}
	}
}

func redisAddress() string {
	addr := os.Getenv("REDIS_ADDRESS")
	if addr == "" {
		addr = "localhost:6379"
	}
	return addr
}

func GetRedisObject(ctx context.Context, key string, dest interface{}) (bool, error) {
	if rdb == nil {
		return false, nil
	}
	return getJSON(ctx, rdb, key, dest)
}

func SetRedisObject(ctx context.Context, key string, obj interface{}, exp time.Duration) error {
	if rdb == nil {
		return nil
	}
	return setJSON(ctx, rdb, key, obj, exp)
}

func RemoveRedisKey(ctx context.Context, keys ...string) error {
	if rdb == nil {
		return nil
	}
	return rdb.Del(ctx, keys...).Err()
}

func GetCacheLifespan() time.Duration {
	return time.Duration(intFromEnv("CACHE_LIFESPAN", 1)) * time.Hour
}

func getJSON(ctx context.Context, client *redis.Client, key string, dest interface{}) (bool, error) {
	val, err := client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(val, dest); err != nil {
		return false, err
	}
	return true, nil
}

func setJSON(ctx context.Context, client *redis.Client, key string, obj interface{}, exp time.Duration) error {
	b, err := json.Marshal(obj)
	if err != nil {
		return err
	}
	return client.Set(ctx, key, b, exp).Err()
}

// RedisCache is a cache client owned by whoever constructs it. Unlike the global
// client above it has an explicit Connect/Close lifecycle and is handed to
// collaborators (the permission service) at construction time.
type RedisCache struct {
	addr   string
	prefix string

	mu     sync.RWMutex
	client *redis.Client
}

func NewRedisCache(addr string, prefix string) *RedisCache {
	if addr == "" {
		addr = redisAddress()
	}
	return &RedisCache{addr: addr, prefix: prefix}
}

func (c *RedisCache) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     c.addr,
		Password: os.Getenv("REDIS_PASSWORD"),
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return err
	}
	c.client = client
	return nil
}

func (c *RedisCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client == nil {
		return nil
	}
	err := c.client.Close()
	c.client = nil
	return err
}

func (c *RedisCache) conn() (*redis.Client, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.client == nil {
		return nil, errors.New("redis cache is not connected")
	}
	return c.client, nil
}

func (c *RedisCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	client, err := c.conn()
	if err != nil {
		return false, err
	}
	return getJSON(ctx, client, c.prefix+key, dest)
}

func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	client, err := c.conn()
	if err != nil {
		return err
	}
	return setJSON(ctx, client, c.prefix+key, value, ttl)
}

func (c *RedisCache) Delete(ctx context.Context, keys ...string) error {
	client, err := c.conn()
	if err != nil {
		return err
	}
	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = c.prefix + k
	}
	return client.Del(ctx, prefixed...).Err()
}
