package heartbeat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/self-labs/hass-stack/common/envelope"
	"github.com/self-labs/hass-stack/common/logging"
	"github.com/self-labs/hass-stack/common/messaging"
	"github.com/self-labs/hass-stack/common/retry"
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

func newTestBeacon(bus messaging.Publisher) *Beacon {
	logger := logging.New(logging.ParseLevel("error"), "text")
	return NewBeacon(bus, "market_data", 1, time.Second, logger)
}

func TestBeatPublishesOnAgentSubject(t *testing.T) {
	bus := newFakePublisher()
	beacon := newTestBeacon(bus)
	ctx := context.Background()

	require.NoError(t, beacon.Beat(ctx))
	require.NoError(t, beacon.Beat(ctx))

	msgs := bus.messages("agents.heartbeat.status.market_data")
	require.Len(t, msgs, 2)

	env, err := envelope.Decode(msgs[1])
	require.NoError(t, err)
	assert.Equal(t, envelope.TypeSystem, env.Type)
	assert.Equal(t, envelope.PriorityP2, env.Priority)
	assert.Equal(t, "market_data", env.Source)

	var b beat
	require.NoError(t, env.DecodePayload(&b))
	assert.Equal(t, "market_data", b.Agent)
	assert.Equal(t, uint64(2), b.Sequence)
}

func TestReportErrorCarriesSeverity(t *testing.T) {
	bus := newFakePublisher()
	beacon := newTestBeacon(bus)

	err := beacon.ReportError(context.Background(), retry.SeverityIsolate, "fetch_bars", errors.New("feed down"))
	require.NoError(t, err)

	msgs := bus.messages(messaging.SubjectSystemErrors)
	require.Len(t, msgs, 1)

	env, err := envelope.Decode(msgs[0])
	require.NoError(t, err)

	var report errorReport
	require.NoError(t, env.DecodePayload(&report))
	assert.Equal(t, "E1", report.Severity)
	assert.Equal(t, "fetch_bars", report.Operation)
	assert.Equal(t, "feed down", report.Error)
}

func TestRunAnnouncesThenBeats(t *testing.T) {
	bus := newFakePublisher()
	logger := logging.New(logging.ParseLevel("error"), "text")
	beacon := NewBeacon(bus, "execution", 0, 20*time.Millisecond, logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		beacon.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return len(bus.messages("agents.heartbeat.status.execution")) >= 2
	}, 2*time.Second, 10*time.Millisecond)
	cancel()
	<-done

	announce := bus.messages(messaging.SubjectAgentsRegistered)
	require.Len(t, announce, 1)

	env, err := envelope.Decode(announce[0])
	require.NoError(t, err)
	var reg registration
	require.NoError(t, env.DecodePayload(&reg))
	assert.Equal(t, "execution", reg.Agent)
	assert.Equal(t, 0, reg.Priority)
}
