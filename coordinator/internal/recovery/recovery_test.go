package recovery

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/self-labs/hass-stack/common/envelope"
	"github.com/self-labs/hass-stack/common/logging"
	"github.com/self-labs/hass-stack/common/messaging"
	"github.com/self-labs/hass-stack/common/retry"
	"github.com/self-labs/hass-stack/coordinator/internal/models"
	"github.com/self-labs/hass-stack/coordinator/internal/registry"
)

type fakePublisher struct {
	mu        sync.Mutex
	published map[string][][]byte
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{published: make(map[string][][]byte)}
}

func (f *fakePublisher) Publish(ctx context.Context, subject string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published[subject] = append(f.published[subject], data)
	return nil
}

func (f *fakePublisher) PublishMsg(ctx context.Context, msg *messaging.Message) error {
	return f.Publish(ctx, msg.Subject, msg.Data)
}

func (f *fakePublisher) Request(ctx context.Context, subject string, data []byte, timeout time.Duration) (*messaging.Message, error) {
	return nil, nil
}

func (f *fakePublisher) Close() error { return nil }

func (f *fakePublisher) messages(subject string) [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.published[subject]
}

func newTestProtocol(t *testing.T, budget int64) (*Protocol, *registry.Registry, *fakePublisher) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	reg := registry.NewWithClient(client, 10*time.Second, time.Minute)
	bus := newFakePublisher()
	logger := logging.New(logging.ParseLevel("error"), "text")
	return New(reg, bus, logger, budget), reg, bus
}

func report(agent, severity string) models.ErrorReport {
	return models.ErrorReport{
		Agent:     agent,
		Severity:  severity,
		Operation: "place_order",
		Error:     "broker unreachable",
		Timestamp: time.Now().UTC(),
	}
}

func TestHaltBroadcastsControl(t *testing.T) {
	proto, _, bus := newTestProtocol(t, 10)
	ctx := context.Background()

	require.NoError(t, proto.Handle(ctx, report("execution", "E0")))

	msgs := bus.messages(messaging.SubjectControlHalt)
	require.Len(t, msgs, 1)

	env, err := envelope.Decode(msgs[0])
	require.NoError(t, err)
	assert.Equal(t, envelope.TypeControl, env.Type)
	assert.Equal(t, envelope.PriorityP0, env.Priority)
	assert.Equal(t, "coordinator", env.Source)

	var halt map[string]interface{}
	require.NoError(t, env.DecodePayload(&halt))
	assert.Equal(t, "execution", halt["agent"])
	assert.Equal(t, "broker unreachable", halt["reason"])
}

func TestIsolateMarksAgent(t *testing.T) {
	proto, reg, bus := newTestProtocol(t, 10)
	ctx := context.Background()

	_, err := reg.Register(ctx, "media_analysis", 2)
	require.NoError(t, err)

	require.NoError(t, proto.Handle(ctx, report("media_analysis", "E1")))

	info, err := reg.Get(ctx, "media_analysis")
	require.NoError(t, err)
	assert.Equal(t, models.StatusIsolated, info.Status)
	assert.False(t, info.Status.Routable())
	assert.Empty(t, bus.messages(messaging.SubjectControlHalt))
}

func TestRetryReinstatesAfterHeartbeat(t *testing.T) {
	proto, reg, _ := newTestProtocol(t, 10)
	proto.SetPolicy(retry.Policy{Base: 5 * time.Millisecond, Cap: 20 * time.Millisecond, MaxAttempts: 10})
	ctx := context.Background()

	_, err := reg.Register(ctx, "market_data", 1)
	require.NoError(t, err)
	require.NoError(t, reg.Heartbeat(ctx, "market_data"))
	require.NoError(t, reg.SetStatus(ctx, "market_data", models.StatusDegraded))

	// Error happened in the past; the heartbeat above is newer, so the
	// probe reinstates the agent.
	r := report("market_data", "E2")
	r.Timestamp = time.Now().Add(-time.Minute)
	require.NoError(t, proto.Handle(ctx, r))

	require.Eventually(t, func() bool {
		info, err := reg.Get(ctx, "market_data")
		return err == nil && info.Status == models.StatusActive
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRetryDegradesSilentAgent(t *testing.T) {
	proto, reg, _ := newTestProtocol(t, 10)
	proto.SetPolicy(retry.Policy{Base: time.Millisecond, Cap: 5 * time.Millisecond, MaxAttempts: 3})
	ctx := context.Background()

	_, err := reg.Register(ctx, "options_flow", 1)
	require.NoError(t, err)
	require.NoError(t, reg.Heartbeat(ctx, "options_flow"))

	// Error is newer than the last heartbeat, and no new beat arrives.
	require.NoError(t, proto.Handle(ctx, report("options_flow", "E2")))

	require.Eventually(t, func() bool {
		info, err := reg.Get(ctx, "options_flow")
		return err == nil && info.Status == models.StatusDegraded
	}, 2*time.Second, 10*time.Millisecond)
}

func TestLogSeverityLeavesStatusAlone(t *testing.T) {
	proto, reg, bus := newTestProtocol(t, 10)
	ctx := context.Background()

	_, err := reg.Register(ctx, "risk_management", 0)
	require.NoError(t, err)
	require.NoError(t, reg.Heartbeat(ctx, "risk_management"))

	require.NoError(t, proto.Handle(ctx, report("risk_management", "E3")))

	info, err := reg.Get(ctx, "risk_management")
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, info.Status)
	assert.Empty(t, bus.messages(messaging.SubjectControlHalt))
}

func TestBudgetBreachDegrades(t *testing.T) {
	proto, reg, _ := newTestProtocol(t, 3)
	ctx := context.Background()

	_, err := reg.Register(ctx, "execution", 0)
	require.NoError(t, err)
	require.NoError(t, reg.Heartbeat(ctx, "execution"))

	for i := 0; i < 3; i++ {
		require.NoError(t, proto.Handle(ctx, report("execution", "E3")))
	}
	info, err := reg.Get(ctx, "execution")
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, info.Status)

	require.NoError(t, proto.Handle(ctx, report("execution", "E3")))
	info, err = reg.Get(ctx, "execution")
	require.NoError(t, err)
	assert.Equal(t, models.StatusDegraded, info.Status)
	assert.Equal(t, int64(4), info.ErrorCount)
}
