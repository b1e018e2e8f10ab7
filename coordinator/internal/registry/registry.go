// Package registry tracks the agent fleet in Redis. Each agent holds a
// keyed record refreshed by heartbeats; records expire when an agent
// stops heartbeating so a crashed agent disappears on its own.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/self-labs/hass-stack/coordinator/internal/models"
)

const (
	agentKeyPrefix = "hass:agents:"
	errorKeyPrefix = "hass:errors:"
)

// ErrAgentNotFound is returned when a named agent has no registry record.
var ErrAgentNotFound = errors.New("agent not found")

// Registry stores agent records with a heartbeat TTL.
type Registry struct {
	redis *redis.Client

	// ttl is how long a record survives without a heartbeat.
	ttl time.Duration
	// errorWindow bounds the per-agent error budget counter.
	errorWindow time.Duration
}

// New connects to Redis and verifies the connection.
func New(redisURL string, heartbeatInterval, errorWindow time.Duration) (*Registry, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return NewWithClient(client, heartbeatInterval, errorWindow), nil
}

// NewWithClient wraps an existing Redis client. Records expire after
// three missed heartbeats.
func NewWithClient(client *redis.Client, heartbeatInterval, errorWindow time.Duration) *Registry {
	return &Registry{
		redis:       client,
		ttl:         3 * heartbeatInterval,
		errorWindow: errorWindow,
	}
}

// Register creates or resets the record for an agent. New agents start
// in the initializing state until their first heartbeat.
func (r *Registry) Register(ctx context.Context, name string, priority int) (*models.AgentInfo, error) {
	if name == "" {
		return nil, fmt.Errorf("agent name required")
	}

	info := &models.AgentInfo{
		Name:         name,
		Status:       models.StatusInitializing,
		Priority:     priority,
		RegisteredAt: time.Now().UTC(),
	}
	if err := r.save(ctx, info); err != nil {
		return nil, err
	}
	return info, nil
}

// Deregister marks an agent stopped and lets the record expire shortly.
func (r *Registry) Deregister(ctx context.Context, name string) error {
	info, err := r.Get(ctx, name)
	if err != nil {
		return err
	}
	info.Status = models.StatusStopped

	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("marshal agent record: %w", err)
	}
	// Keep the stopped record visible for one TTL so operators see the
	// shutdown rather than an unexplained disappearance.
	if err := r.redis.Set(ctx, agentKeyPrefix+name, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("deregister agent: %w", err)
	}
	return nil
}

// Heartbeat refreshes an agent's record and TTL. Agents in the
// initializing state are promoted to active on their first beat;
// isolated and stopped agents keep their status until recovery or
// re-registration changes it.
func (r *Registry) Heartbeat(ctx context.Context, name string) error {
	info, err := r.Get(ctx, name)
	if errors.Is(err, ErrAgentNotFound) {
		// An expired record means the agent missed enough beats to be
		// considered dead. Re-admit it as initializing.
		info = &models.AgentInfo{
			Name:         name,
			Status:       models.StatusInitializing,
			RegisteredAt: time.Now().UTC(),
		}
	} else if err != nil {
		return err
	}

	info.LastHeartbeat = time.Now().UTC()
	if info.Status == models.StatusInitializing {
		info.Status = models.StatusActive
	}
	return r.save(ctx, info)
}

// SetStatus overwrites an agent's status.
func (r *Registry) SetStatus(ctx context.Context, name string, status models.AgentStatus) error {
	info, err := r.Get(ctx, name)
	if err != nil {
		return err
	}
	info.Status = status
	return r.save(ctx, info)
}

// Get returns one agent's record.
func (r *Registry) Get(ctx context.Context, name string) (*models.AgentInfo, error) {
	data, err := r.redis.Get(ctx, agentKeyPrefix+name).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrAgentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get agent record: %w", err)
	}

	var info models.AgentInfo
	if err := json.Unmarshal([]byte(data), &info); err != nil {
		return nil, fmt.Errorf("unmarshal agent record: %w", err)
	}

	count, err := r.errorCount(ctx, name)
	if err != nil {
		return nil, err
	}
	info.ErrorCount = count
	return &info, nil
}

// List returns all live agent records sorted by name.
func (r *Registry) List(ctx context.Context) ([]*models.AgentInfo, error) {
	var agents []*models.AgentInfo

	iter := r.redis.Scan(ctx, 0, agentKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		info, err := r.Get(ctx, key[len(agentKeyPrefix):])
		if errors.Is(err, ErrAgentNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		agents = append(agents, info)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan agent records: %w", err)
	}

	sort.Slice(agents, func(i, j int) bool { return agents[i].Name < agents[j].Name })
	return agents, nil
}

// RecordError increments the agent's error counter within the rolling
// budget window and returns the new count.
func (r *Registry) RecordError(ctx context.Context, name string) (int64, error) {
	key := errorKeyPrefix + name
	count, err := r.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("increment error count: %w", err)
	}
	if count == 1 {
		if err := r.redis.Expire(ctx, key, r.errorWindow).Err(); err != nil {
			return count, fmt.Errorf("set error window: %w", err)
		}
	}
	return count, nil
}

func (r *Registry) errorCount(ctx context.Context, name string) (int64, error) {
	count, err := r.redis.Get(ctx, errorKeyPrefix+name).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get error count: %w", err)
	}
	return count, nil
}

func (r *Registry) save(ctx context.Context, info *models.AgentInfo) error {
	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("marshal agent record: %w", err)
	}
	if err := r.redis.Set(ctx, agentKeyPrefix+info.Name, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("save agent record: %w", err)
	}
	return nil
}

// Close releases the Redis connection.
func (r *Registry) Close() error {
	return r.redis.Close()
}
