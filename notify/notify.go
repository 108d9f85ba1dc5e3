package notify

import (
	"context"
	"crypto/md5"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/go-redis/redis/extra/redisotel/v8"
	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"
)

const (
	ringLimit = 20
	dedupTTL  = time.Minute
)

type Notification struct {
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// Ring collects transient user-visible notifications. Duplicate messages
// within dedupTTL are suppressed through redis when it is reachable;
// without redis every message goes through. Notify never fails.
type Ring struct {
	mu          sync.Mutex
	items       []Notification
	redisClient *redis.Client
}

func New() *Ring {
	server := os.Getenv("REDIS_ADDRESS")
	if server == "" {
		server = "localhost:6379"
	}

	r := &Ring{}
	r.redisClient = redis.NewClient(&redis.Options{Addr: server})
	if _, err := r.redisClient.Ping(context.TODO()).Result(); err != nil {
		log.Warn().Err(err).Msg("Redis unreachable, notification dedup disabled")
		r.redisClient = nil
	} else {
		r.redisClient.AddHook(redisotel.NewTracingHook())
	}
	return r
}

func (r *Ring) Notify(message string) {
	if r.redisClient != nil {
		hash := fmt.Sprintf("%x", md5.Sum([]byte(message)))
		set, err := r.redisClient.SetNX(context.TODO(), hash, message, dedupTTL).Result()
		if err != nil {
			log.Error().Err(err).Msg("Failed to reach redis, skipping dedup")
		} else if !set {
			log.Debug().Str("hash", hash).Msg("Duplicate notification suppressed")
			return
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, Notification{Message: message, Time: time.Now()})
	if len(r.items) > ringLimit {
		r.items = r.items[len(r.items)-ringLimit:]
	}
}

// Drain returns pending notifications and clears them: each toast is
// shown once.
func (r *Ring) Drain() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.items
	r.items = nil
	return out
}
