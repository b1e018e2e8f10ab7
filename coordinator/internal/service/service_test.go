package service

import (
	"context"
	"errors"
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
	"github.com/self-labs/hass-stack/coordinator/internal/dispatcher"
	"github.com/self-labs/hass-stack/coordinator/internal/models"
	"github.com/self-labs/hass-stack/coordinator/internal/recovery"
	"github.com/self-labs/hass-stack/coordinator/internal/regime"
	"github.com/self-labs/hass-stack/coordinator/internal/registry"
)

type fakeSub struct{ subject string }

func (s *fakeSub) Unsubscribe() error { return nil }
func (s *fakeSub) Subject() string    { return s.subject }
func (s *fakeSub) IsValid() bool      { return true }

type fakeBus struct {
	mu        sync.Mutex
	published map[string][][]byte
}

func newFakeBus() *fakeBus {
	return &fakeBus{published: map[string][][]byte{}}
}

func (b *fakeBus) Publish(_ context.Context, subject string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published[subject] = append(b.published[subject], data)
	return nil
}

func (b *fakeBus) PublishMsg(ctx context.Context, msg *messaging.Message) error {
	return b.Publish(ctx, msg.Subject, msg.Data)
}

func (b *fakeBus) Request(context.Context, string, []byte, time.Duration) (*messaging.Message, error) {
	return nil, errors.New("not implemented")
}

func (b *fakeBus) Subscribe(subject string, _ messaging.MessageHandler) (messaging.Subscription, error) {
	return &fakeSub{subject: subject}, nil
}

func (b *fakeBus) QueueSubscribe(subject, _ string, _ messaging.MessageHandler) (messaging.Subscription, error) {
	return &fakeSub{subject: subject}, nil
}

func (b *fakeBus) Close() error      { return nil }
func (b *fakeBus) Drain() error      { return nil }
func (b *fakeBus) IsConnected() bool { return true }

func (b *fakeBus) messages(subject string) [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.published[subject]
}

func newTestService(t *testing.T) (*Service, *registry.Registry, *fakeBus) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	reg := registry.NewWithClient(client, 10*time.Second, time.Minute)

	bus := newFakeBus()
	logger := logging.New(logging.ParseLevel("error"), "text")

	disp := dispatcher.New(dispatcher.DefaultConfig())
	t.Cleanup(disp.Stop)

	rec := recovery.New(reg, bus, logger, 100)
	det := regime.New(regime.DefaultThresholds())

	svc := New(reg, disp, rec, det, bus, logger)
	require.NoError(t, svc.Start())
	t.Cleanup(svc.Stop)
	return svc, reg, bus
}

func systemMessage(t *testing.T, subject string, payload interface{}) *messaging.Message {
	t.Helper()
	env, err := envelope.New(envelope.TypeSystem, envelope.PriorityP2, "market_data", "coordinator", payload)
	require.NoError(t, err)
	data, err := env.Encode()
	require.NoError(t, err)
	return &messaging.Message{Subject: subject, Data: data}
}

func TestRegistrationFlowsThroughDispatcher(t *testing.T) {
	svc, reg, _ := newTestService(t)
	ctx := context.Background()

	msg := systemMessage(t, messaging.SubjectAgentsRegistered,
		map[string]interface{}{"agent": "market_data", "priority": 1})
	require.NoError(t, svc.enqueue(ctx, msg))

	require.Eventually(t, func() bool {
		info, err := reg.Get(ctx, "market_data")
		return err == nil && info.Status == models.StatusInitializing
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHeartbeatActivatesAgent(t *testing.T) {
	svc, reg, _ := newTestService(t)
	ctx := context.Background()

	_, err := reg.Register(ctx, "risk_management", 0)
	require.NoError(t, err)

	msg := systemMessage(t, messaging.AgentHeartbeatSubject("risk_management"),
		map[string]interface{}{"agent": "risk_management", "sequence": 1})
	require.NoError(t, svc.enqueue(ctx, msg))

	require.Eventually(t, func() bool {
		info, err := reg.Get(ctx, "risk_management")
		return err == nil && info.Status == models.StatusActive
	}, 2*time.Second, 10*time.Millisecond)
}

func TestErrorReportTriggersRecovery(t *testing.T) {
	svc, reg, bus := newTestService(t)
	ctx := context.Background()

	_, err := reg.Register(ctx, "execution", 0)
	require.NoError(t, err)

	msg := systemMessage(t, messaging.SubjectSystemErrors, models.ErrorReport{
		Agent:     "execution",
		Severity:  "E0",
		Operation: "place_order",
		Error:     "broker rejecting everything",
		Timestamp: time.Now().UTC(),
	})
	require.NoError(t, svc.enqueue(ctx, msg))

	require.Eventually(t, func() bool {
		return len(bus.messages(messaging.SubjectControlHalt)) == 1
	}, 2*time.Second, 10*time.Millisecond)

	env, err := envelope.Decode(bus.messages(messaging.SubjectControlHalt)[0])
	require.NoError(t, err)
	assert.Equal(t, envelope.PriorityP0, env.Priority)
}

func TestIsolationReportMarksAgent(t *testing.T) {
	svc, reg, _ := newTestService(t)
	ctx := context.Background()

	_, err := reg.Register(ctx, "media_analysis", 2)
	require.NoError(t, err)

	msg := systemMessage(t, messaging.SubjectSystemErrors, models.ErrorReport{
		Agent:     "media_analysis",
		Severity:  "E1",
		Operation: "fetch_news",
		Error:     "upstream returning garbage",
		Timestamp: time.Now().UTC(),
	})
	require.NoError(t, svc.enqueue(ctx, msg))

	require.Eventually(t, func() bool {
		info, err := reg.Get(ctx, "media_analysis")
		return err == nil && info.Status == models.StatusIsolated
	}, 2*time.Second, 10*time.Millisecond)
}

func TestVIXBarDrivesRegimeChange(t *testing.T) {
	svc, _, bus := newTestService(t)
	ctx := context.Background()

	env, err := envelope.New(envelope.TypeMarketData, envelope.PriorityP2, "market_data", "broadcast",
		map[string]interface{}{"symbol": "VIX", "open": 38.0, "close": 41.5})
	require.NoError(t, err)
	data, err := env.Encode()
	require.NoError(t, err)
	require.NoError(t, svc.enqueue(ctx, &messaging.Message{
		Subject: messaging.MarketBarSubject("VIX"),
		Data:    data,
	}))

	require.Eventually(t, func() bool {
		state := svc.EvaluateRegime(ctx)
		return state.Regime == models.RegimeCrisis
	}, 2*time.Second, 10*time.Millisecond)

	published := bus.messages(messaging.SubjectControlRegime)
	require.Len(t, published, 1)

	regimeEnv, err := envelope.Decode(published[0])
	require.NoError(t, err)
	assert.Equal(t, envelope.TypeControl, regimeEnv.Type)
	assert.Equal(t, envelope.PriorityP0, regimeEnv.Priority)

	var state models.RegimeState
	require.NoError(t, regimeEnv.DecodePayload(&state))
	assert.Equal(t, models.RegimeCrisis, state.Regime)
	assert.Equal(t, 0.25, state.SizingMultiplier)
	assert.Equal(t, 41.5, state.VIX)
}

func TestMalformedMessageDropped(t *testing.T) {
	svc, _, _ := newTestService(t)

	err := svc.enqueue(context.Background(), &messaging.Message{
		Subject: messaging.SubjectAgentsRegistered,
		Data:    []byte("not an envelope"),
	})
	assert.NoError(t, err)
}

func TestLaneDepths(t *testing.T) {
	svc, _, _ := newTestService(t)

	depths := svc.LaneDepths()
	require.Len(t, depths, 4)
	assert.Contains(t, depths, "P0")
	assert.Contains(t, depths, "P3")
}
