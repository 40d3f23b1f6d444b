package hybrid

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ownerKeyPrefix prefixes the lease key contended over by every process
// sharing a deployment; the key is scoped per Config.Owner so an "http"-only and "rpc"-only
// pair never fight over the same lease.
const ownerKeyPrefix = "memvault:sync-owner:"

const leaseTTL = 15 * time.Second

// ownerLease arbitrates which process instance runs the sync dispatcher
// when a deployment runs both an HTTP and an RPC server over the same
// backends (spec §4.4.4). Grounded on the pack's go-redis/redis/v8 client
// usage (suryanshp1-QuantumFlow's episodic store): a SET NX PX key acts as
// a renewable distributed lock in place of that store's vector-index use of
// the same client.
type ownerLease struct {
	client   *redis.Client
	key      string
	holderID string
	mode     SyncOwner

	held atomic.Bool

	cancel context.CancelFunc
	done   chan struct{}
}

func newOwnerLease(cfg Config) (*ownerLease, error) {
	l := &ownerLease{
		key:      ownerKeyPrefix + string(cfg.Owner),
		holderID: uuid.NewString(),
		mode:     cfg.Owner,
	}

	if cfg.RedisAddr == "" {
		// Single-process deployment: always own the queue, no coordination
		// needed.
		l.held.Store(true)
		return l, nil
	}

	l.client = redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := l.client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("hybrid: connect to redis at %s: %w", cfg.RedisAddr, err)
	}

	return l, nil
}

// start launches the background acquire/renew loop. No-op when there is no
// Redis client (single-process mode already holds the lease permanently).
func (l *ownerLease) start(ctx context.Context) {
	if l.client == nil {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.done = make(chan struct{})

	go func() {
		defer close(l.done)
		ticker := time.NewTicker(leaseTTL / 3)
		defer ticker.Stop()

		l.tryAcquireOrRenew(runCtx)
		for {
			select {
			case <-runCtx.Done():
				l.release()
				return
			case <-ticker.C:
				l.tryAcquireOrRenew(runCtx)
			}
		}
	}()
}

func (l *ownerLease) tryAcquireOrRenew(ctx context.Context) {
	ok, err := l.client.SetNX(ctx, l.key, l.holderID, leaseTTL).Result()
	if err != nil {
		log.Warn().Err(err).Str("key", l.key).Msg("hybrid: owner lease acquire failed")
		l.held.Store(false)
		return
	}
	if ok {
		l.held.Store(true)
		return
	}

	// Not newly acquired; check whether we already hold it and renew.
	current, err := l.client.Get(ctx, l.key).Result()
	if err == redis.Nil {
		l.held.Store(false)
		return
	}
	if err != nil {
		log.Warn().Err(err).Str("key", l.key).Msg("hybrid: owner lease check failed")
		l.held.Store(false)
		return
	}
	if current != l.holderID {
		l.held.Store(false)
		return
	}
	_ = l.client.Expire(ctx, l.key, leaseTTL).Err()
	l.held.Store(true)
}

func (l *ownerLease) release() {
	if l.client == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	current, err := l.client.Get(ctx, l.key).Result()
	if err == nil && current == l.holderID {
		_ = l.client.Del(ctx, l.key).Err()
	}
	l.held.Store(false)
}

// isOwner reports whether this instance should currently be running the
// dispatcher/drift loops.
func (l *ownerLease) isOwner() bool {
	return l.held.Load()
}

func (l *ownerLease) close() {
	if l.cancel != nil {
		l.cancel()
		<-l.done
	}
	if l.client != nil {
		_ = l.client.Close()
	}
}
