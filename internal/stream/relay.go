package stream

import (
	"context"       // Subscription lifetime
	"encoding/json" // Wire format of relayed changes
	"strings"       // Channel name parsing
	"time"          // Reconnect delay

	"github.com/redis/go-redis/v9" // Redis Pub/Sub
	"github.com/sirupsen/logrus"   // Structured logging
)

// ChannelPrefix namespaces the Redis channels changes are relayed on
const ChannelPrefix = "coin_portal:account:"

// RedisRelay shares changes between server instances. Publish delivers locally and to Redis;
// Run feeds changes written by any instance into the local hub. The hub drops revisions it
// already delivered, so a change seen both ways reaches subscribers once.
type RedisRelay struct {
	rdb *redis.Client
	hub *Hub
	log *logrus.Entry
}

// NewRedisRelay creates a relay in front of hub
func NewRedisRelay(rdb *redis.Client, hub *Hub, log *logrus.Entry) *RedisRelay {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &RedisRelay{rdb: rdb, hub: hub, log: log.WithField("component", "stream_relay")}
}

// Channel returns the Redis channel for accountID
func Channel(accountID string) string {
	return ChannelPrefix + accountID
}

// Publish implements Publisher
func (r *RedisRelay) Publish(ctx context.Context, change Change) {
	r.hub.Publish(ctx, change)

	payload, err := json.Marshal(change)
	if err != nil {
		r.log.WithError(err).Error("Failed to encode change")
		return
	}
	if err := r.rdb.Publish(ctx, Channel(change.AccountID), payload).Err(); err != nil {
		r.log.WithFields(logrus.Fields{
			"account_id": change.AccountID,
			"revision":   change.Revision,
			"error":      err.Error(),
		}).Warn("Failed to relay change")
	}
}

// Run consumes relayed changes until ctx is cancelled, reconnecting on failure
func (r *RedisRelay) Run(ctx context.Context) {
	for {
		if err := r.consume(ctx); err != nil && ctx.Err() == nil {
			r.log.WithError(err).Warn("Relay subscription lost, reconnecting")
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second):
		}
	}
}

func (r *RedisRelay) consume(ctx context.Context) error {
	ps := r.rdb.PSubscribe(ctx, ChannelPrefix+"*")
	defer ps.Close()
	if _, err := ps.Receive(ctx); err != nil {
		return err
	}
	msgs := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			change, err := DecodeChange(msg.Channel, msg.Payload)
			if err != nil {
				r.log.WithFields(logrus.Fields{"channel": msg.Channel, "error": err.Error()}).Warn("Dropping malformed change")
				continue
			}
			r.hub.Publish(ctx, change)
		}
	}
}

// DecodeChange parses a relayed change and checks it belongs to channel
func DecodeChange(channel, payload string) (Change, error) {
	var change Change
	if err := json.Unmarshal([]byte(payload), &change); err != nil {
		return Change{}, err
	}
	if strings.TrimPrefix(channel, ChannelPrefix) != change.AccountID || change.AccountID == "" {
		return Change{}, ErrInvalidAccount
	}
	return change, nil
}
