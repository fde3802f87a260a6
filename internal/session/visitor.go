// Package session resolves caller identity and a chat target to a durable
// conversation identifier.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// VisitorRegistry maps an opaque client installation key to a stable visitor
// id. The id is generated once per installation and reused for every support
// session that installation opens.
type VisitorRegistry struct {
	client *redis.Client
	prefix string
}

func NewVisitorRegistry(redisURL string) (*VisitorRegistry, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewVisitorRegistryWithClient(client), nil
}

func NewVisitorRegistryWithClient(client *redis.Client) *VisitorRegistry {
	return &VisitorRegistry{
		client: client,
		prefix: "visitor:",
	}
}

func (r *VisitorRegistry) key(clientKey string) string {
	return r.prefix + clientKey
}

// EnsureVisitor returns the visitor id for a client key, generating and
// persisting one on first sight. Concurrent calls for the same key converge
// on one id: SETNX decides the winner and everyone reads the stored value.
func (r *VisitorRegistry) EnsureVisitor(ctx context.Context, clientKey string) (uuid.UUID, error) {
	if clientKey == "" {
		return uuid.Nil, fmt.Errorf("client key is required")
	}
	key := r.key(clientKey)

	candidate := uuid.New()
	// No expiry: the visitor id lives as long as the installation.
	if _, err := r.client.SetNX(ctx, key, candidate.String(), 0).Result(); err != nil {
		return uuid.Nil, fmt.Errorf("store visitor id: %w", err)
	}

	val, err := r.client.Get(ctx, key).Result()
	if err != nil {
		return uuid.Nil, fmt.Errorf("read visitor id: %w", err)
	}
	id, err := uuid.Parse(val)
	if err != nil {
		return uuid.Nil, fmt.Errorf("corrupt visitor id %q: %w", val, err)
	}
	return id, nil
}

func (r *VisitorRegistry) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *VisitorRegistry) Close() error {
	return r.client.Close()
}
